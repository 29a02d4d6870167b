package routes

import (
	"net/http"

	"multiverse-copilot-backend/internal/app"
	"multiverse-copilot-backend/internal/logger"
	"multiverse-copilot-backend/models"
	"multiverse-copilot-backend/utils"

	"github.com/gin-gonic/gin"
)

// SetupPlaybookRoutes registers the agent automation endpoint
func SetupPlaybookRoutes(router *gin.Engine, a *app.App) {
	router.POST("/playbook/run", HandlePlaybookRun(a))
}

// HandlePlaybookRun dispatches a named automation playbook to the agent
// provider and relays its result
func HandlePlaybookRun(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.PlaybookRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request body", err.Error())
			return
		}
		if req.Name == "" {
			utils.RespondWithBadRequest(c, "name is required", nil)
			return
		}

		result, err := a.Agent.RunPlaybook(c.Request.Context(), req.Name, req.Payload)
		if err != nil {
			logger.Error("playbook run failed", "playbook", req.Name, "error", err)
			utils.RespondWithInternalError(c)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
