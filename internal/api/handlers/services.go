package routes

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"knockwise/internal/osm"
	"knockwise/internal/service/boundary"
	"knockwise/internal/service/detection"
	"knockwise/internal/service/grid"
	"knockwise/internal/service/loader"
	"knockwise/internal/service/storage"
)

// StatusClientClosedRequest is reported when the caller went away mid-request.
const StatusClientClosedRequest = 499

// Services is everything the handlers need.
type Services struct {
	Store       *storage.GridStore
	Loader      *loader.Loader
	Detector    *detection.Detector
	Resolver    *boundary.Resolver
	CellSizeDeg float64
	MaxBlocks   int
	Persistence bool
}

func respondError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{
		"status":  "error",
		"message": err.Error(),
	})
}

// respondServiceError maps service errors to HTTP statuses.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, context.Canceled):
		respondError(c, StatusClientClosedRequest, err)
	case errors.Is(err, context.DeadlineExceeded):
		respondError(c, http.StatusRequestTimeout, err)
	case errors.Is(err, osm.ErrQueryFailed):
		respondError(c, http.StatusBadGateway, err)
	case errors.Is(err, loader.ErrBlockNotFound):
		respondError(c, http.StatusNotFound, err)
	case errors.Is(err, boundary.ErrUnresolved):
		respondError(c, http.StatusNotFound, err)
	case errors.Is(err, grid.ErrTooManyBlocks),
		errors.Is(err, detection.ErrInvalidPolygon):
		respondError(c, http.StatusBadRequest, err)
	default:
		respondError(c, http.StatusInternalServerError, err)
	}
}
