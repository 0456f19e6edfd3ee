package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all API routes. metrics serves GET /metrics.
func SetupRoutes(router *gin.Engine, handler *Handler, metrics http.Handler) {
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}
	router.NoRoute(handler.NotFound)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/ranges", handler.Ranges)
		v1.GET("/classify", handler.Classify)
		v1.GET("/taxonomy/:dimension", handler.Taxonomy)

		towns := v1.Group("/towns/:id")
		{
			towns.GET("/drilldown", handler.TownDrilldown)
			towns.GET("/totals", handler.TownTotals)
		}

		categories := v1.Group("/categories/:id")
		{
			categories.GET("/drilldown", handler.CategoryDrilldown)
			categories.GET("/totals", handler.CategoryTotals)
		}

		upstream := v1.Group("/upstream")
		{
			upstream.GET("/status", handler.UpstreamStatus)
			upstream.POST("/reset", handler.ResetUpstream)
		}
	}
}
