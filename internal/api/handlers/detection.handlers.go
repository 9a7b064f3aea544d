package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"knockwise/internal/model"
)

type detectionRequest struct {
	Name        string         `json:"name"`
	Coordinates []model.LatLng `json:"coordinates" binding:"required"`
}

// SetupDetectionHandlers registers full-area building detection
func SetupDetectionHandlers(router *gin.RouterGroup, svc *Services) {
	router.POST("/detections", func(c *gin.Context) {
		var req detectionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
		res, err := svc.Detector.Detect(c.Request.Context(), req.Name, req.Coordinates)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	})
}
