package routes

import (
	"encoding/base64"
	"net/http"
	"time"

	"multiverse-copilot-backend/internal/app"
	"multiverse-copilot-backend/internal/logger"
	"multiverse-copilot-backend/models"
	"multiverse-copilot-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var voiceUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Browser origins are already filtered by the CORS layer
	CheckOrigin: func(r *http.Request) bool { return true },
}

// voiceInboundFrame is one client message on the stream socket
type voiceInboundFrame struct {
	AudioBase64 string `json:"audio_base64"`
}

// SetupVoiceRoutes registers the voice session endpoints
func SetupVoiceRoutes(router *gin.Engine, a *app.App) {
	router.POST("/voice/session", HandleVoiceSession(a))
	router.GET("/voice/stream/:session_id", HandleVoiceStream(a))
}

// HandleVoiceSession creates a new speech session and returns its id
func HandleVoiceSession(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := a.Voice.CreateSession()
		logger.Info("voice session created", "session_id", sessionID)
		c.JSON(http.StatusOK, models.VoiceSessionResponse{SessionID: sessionID})
	}
}

// HandleVoiceStream upgrades to a websocket and relays audio chunks through
// the speech provider. Each inbound frame carries base64 audio; each outbound
// frame carries the provider's partial or final transcript plus audio.
func HandleVoiceStream(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("session_id")
		if sessionID == "" {
			utils.RespondWithBadRequest(c, "session_id is required", nil)
			return
		}

		conn, err := voiceUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Error("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		logger.Info("voice stream opened", "session_id", sessionID)
		for {
			var frame voiceInboundFrame
			if err := conn.ReadJSON(&frame); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Warn("voice stream closed unexpectedly", "session_id", sessionID, "error", err)
				}
				return
			}

			audio, err := base64.StdEncoding.DecodeString(frame.AudioBase64)
			if err != nil {
				conn.WriteJSON(gin.H{"error": "invalid base64 audio"})
				continue
			}

			out, err := a.Voice.ProcessChunk(c.Request.Context(), sessionID, audio)
			if err != nil {
				logger.Error("speech processing failed", "session_id", sessionID, "error", err)
				conn.WriteJSON(gin.H{"error": "speech processing failed"})
				continue
			}

			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(out); err != nil {
				logger.Warn("voice stream write failed", "session_id", sessionID, "error", err)
				return
			}
		}
	}
}
