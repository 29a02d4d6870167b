package routes

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"multiverse-copilot-backend/internal/app"
	"multiverse-copilot-backend/internal/kb"
	"multiverse-copilot-backend/internal/logger"
	"multiverse-copilot-backend/internal/queue"
	"multiverse-copilot-backend/models"
	"multiverse-copilot-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	defaultTopK = 5
	maxTopK     = 20
)

// SetupKBRoutes registers document ingestion and retrieval endpoints
func SetupKBRoutes(router *gin.Engine, a *app.App, queueClient *asynq.Client) {
	router.POST("/kb/upload", HandleKBUpload(a))
	router.POST("/kb/upload/async", HandleKBAsyncUpload(a, queueClient))
	router.POST("/kb/query", HandleKBQuery(a))
}

// HandleKBUpload ingests a document synchronously: extract, chunk, embed,
// persist
func HandleKBUpload(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		filename, data, ok := readUploadedFile(c, a)
		if !ok {
			return
		}

		docID, chunks, err := a.KB.UploadDocument(c.Request.Context(), filename, data)
		if err != nil {
			respondKBError(c, err)
			return
		}

		c.JSON(http.StatusOK, models.KBUploadResponse{DocID: docID, Chunks: chunks})
	}
}

// HandleKBAsyncUpload stages the file on disk and enqueues ingestion for the
// worker. The response carries a task id, not a doc id.
func HandleKBAsyncUpload(a *app.App, queueClient *asynq.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if queueClient == nil {
			utils.RespondWithError(c, http.StatusServiceUnavailable,
				"queue_unavailable", "Async ingestion is not available", nil)
			return
		}

		filename, data, ok := readUploadedFile(c, a)
		if !ok {
			return
		}

		taskID := uuid.NewString()
		if err := os.MkdirAll(a.Cfg.FileStorageDir, 0o755); err != nil {
			logger.Error("failed to create storage dir", "error", err)
			utils.RespondWithInternalError(c)
			return
		}
		stagedPath := filepath.Join(a.Cfg.FileStorageDir, taskID+"_"+filepath.Base(filename))
		if err := os.WriteFile(stagedPath, data, 0o644); err != nil {
			logger.Error("failed to stage upload", "error", err)
			utils.RespondWithInternalError(c)
			return
		}

		task, err := queue.NewIngestTask(taskID, filename, stagedPath)
		if err != nil {
			logger.Error("failed to build ingest task", "error", err)
			utils.RespondWithInternalError(c)
			return
		}
		if _, err := queueClient.Enqueue(task); err != nil {
			logger.Error("failed to enqueue ingest task", "error", err)
			utils.RespondWithError(c, http.StatusServiceUnavailable,
				"queue_unavailable", "Failed to enqueue ingestion task", nil)
			return
		}

		logger.Info("document queued for ingestion", "task_id", taskID, "file", filename)
		c.JSON(http.StatusAccepted, models.KBAsyncUploadResponse{TaskID: taskID, Queued: true})
	}
}

// HandleKBQuery embeds the query and returns the nearest chunks
func HandleKBQuery(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.KBQueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request body", err.Error())
			return
		}
		if req.Query == "" {
			utils.RespondWithBadRequest(c, "query is required", nil)
			return
		}
		topK := req.TopK
		if topK <= 0 {
			topK = defaultTopK
		}
		if topK > maxTopK {
			topK = maxTopK
		}

		matches, err := a.KB.Query(c.Request.Context(), req.Query, topK)
		if err != nil {
			respondKBError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.KBQueryResponse{Matches: matches})
	}
}

// readUploadedFile pulls the multipart "file" field and enforces the size cap
func readUploadedFile(c *gin.Context, a *app.App) (string, []byte, bool) {
	if err := c.Request.ParseMultipartForm(a.Cfg.MaxFileSize); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "file_too_large",
			"File size exceeds maximum limit", nil)
		return "", nil, false
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		utils.RespondWithBadRequest(c, "No file provided", nil)
		return "", nil, false
	}
	defer file.Close()

	if header.Size > a.Cfg.MaxFileSize {
		utils.RespondWithError(c, http.StatusBadRequest, "file_too_large",
			"File size exceeds maximum limit", gin.H{"max_bytes": a.Cfg.MaxFileSize})
		return "", nil, false
	}

	data, err := io.ReadAll(file)
	if err != nil {
		logger.Error("failed to read upload", "error", err)
		utils.RespondWithInternalError(c)
		return "", nil, false
	}
	return header.Filename, data, true
}

func respondKBError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, kb.ErrEmbeddingUnavailable):
		utils.RespondWithServiceUnavailable(c, "Embedding backend is unavailable")
	case errors.Is(err, kb.ErrDimensionMismatch):
		utils.RespondWithValidationError(c, "Embedding dimension mismatch", err.Error())
	default:
		logger.Error("kb operation failed", "error", err)
		utils.RespondWithInternalError(c)
	}
}
