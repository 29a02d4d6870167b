package routes

import (
	"net/http"

	"multiverse-copilot-backend/internal/app"

	"github.com/gin-gonic/gin"
)

// SetupHealthRoutes registers the liveness endpoint
func SetupHealthRoutes(router *gin.Engine, a *app.App) {
	router.GET("/health", func(c *gin.Context) {
		vectors, ids := a.Store.Stats()
		c.JSON(http.StatusOK, gin.H{
			"status":        "ok",
			"app":           a.Cfg.AppName,
			"mock":          a.Cfg.UseMockProviders,
			"index_vectors": vectors,
			"index_ids":     ids,
		})
	})
}
