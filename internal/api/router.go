package api

import (
	routes "knockwise/internal/api/handlers"

	"github.com/gin-gonic/gin"
)

// SetupRouter initializes all application routes
func SetupRouter(r *gin.Engine, svc *routes.Services) {
	// API group
	api := r.Group("/api")

	// Setup main handlers
	routes.SetupMainHandlers(r.Group(""), svc)

	routes.SetupBoundaryHandlers(api, svc)
	routes.SetupGridHandlers(api, svc)
	routes.SetupDetectionHandlers(api, svc)
}
