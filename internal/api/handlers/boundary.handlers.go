package routes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"knockwise/internal/model"
)

type resolveRequest struct {
	Name   string        `json:"name"`
	Center *model.LatLng `json:"center"`
}

// SetupBoundaryHandlers registers community boundary lookup
func SetupBoundaryHandlers(router *gin.RouterGroup, svc *Services) {
	router.POST("/boundaries/resolve", func(c *gin.Context) {
		var req resolveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
		if req.Name == "" && req.Center == nil {
			respondError(c, http.StatusBadRequest, errors.New("name or center is required"))
			return
		}
		b, err := svc.Resolver.Resolve(c.Request.Context(), req.Name, req.Center)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	})
}
