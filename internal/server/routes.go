package server

import (
	"github.com/OFFIS-RIT/wikigraph/internal/server/middleware"
	"github.com/OFFIS-RIT/wikigraph/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api")

	// Graph routes
	apiRoutes.GET("/graphs", routes.GetGraphsHandler)
	apiRoutes.GET("/graphs/:id", routes.GetGraphHandler)
	apiRoutes.GET("/graphs/:id/gml", routes.GetGraphGMLHandler)
	apiRoutes.GET("/graphs/:id/aliases", routes.GetGraphAliasesHandler)
	apiRoutes.GET("/graphs/:id/artifacts", routes.GetGraphArtifactsHandler)
	apiRoutes.DELETE("/graphs/:id", routes.DeleteGraphHandler, middleware.AuthMiddleware)

	// Crawl routes
	apiRoutes.POST("/crawls", routes.CreateCrawlHandler, middleware.AuthMiddleware)
	apiRoutes.GET("/crawls/:id", routes.GetCrawlHandler)
}
