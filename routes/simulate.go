package routes

import (
	"errors"
	"net/http"

	"multiverse-copilot-backend/internal/app"
	"multiverse-copilot-backend/internal/kb"
	"multiverse-copilot-backend/internal/logger"
	"multiverse-copilot-backend/models"
	"multiverse-copilot-backend/utils"

	"github.com/gin-gonic/gin"
)

// SetupSimulationRoutes registers the decision-simulation endpoints
func SetupSimulationRoutes(router *gin.Engine, a *app.App) {
	router.POST("/decision/spec", HandleDecisionSpec(a))
	router.POST("/simulate", HandleSimulate(a))
}

// HandleDecisionSpec extracts a structured decision spec from free text.
// Extraction never fails; on provider or parse trouble the deterministic
// fallback spec is returned.
func HandleDecisionSpec(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.DecisionSpecRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request body", err.Error())
			return
		}
		if err := req.Validate(); err != nil {
			utils.RespondWithValidationError(c, err.Error(), nil)
			return
		}

		spec := a.Sim.ExtractDecisionSpec(c.Request.Context(), req.SourceText())
		c.JSON(http.StatusOK, spec)
	}
}

// HandleSimulate runs the full simulation pipeline for one decision
func HandleSimulate(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SimulateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request body", err.Error())
			return
		}
		if err := req.Validate(); err != nil {
			utils.RespondWithValidationError(c, err.Error(), nil)
			return
		}

		result, err := a.Sim.Run(c.Request.Context(), &req)
		if err != nil {
			var verr *models.ValidationError
			switch {
			case errors.As(err, &verr):
				utils.RespondWithValidationError(c,
					"Model output failed validation after repair", verr.Reason)
			case errors.Is(err, kb.ErrEmbeddingUnavailable):
				utils.RespondWithServiceUnavailable(c, "Embedding backend is unavailable")
			case errors.Is(err, kb.ErrDimensionMismatch):
				utils.RespondWithValidationError(c, "Embedding dimension mismatch", err.Error())
			default:
				logger.Error("simulation failed", "error", err)
				utils.RespondWithInternalError(c)
			}
			return
		}

		c.JSON(http.StatusOK, result)
	}
}
