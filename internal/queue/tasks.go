package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"multiverse-copilot-backend/internal/kb"
	"multiverse-copilot-backend/internal/logger"

	"github.com/hibiken/asynq"
)

const TaskIngestDocument = "kb:ingest"

// IngestPayload describes one queued document ingestion. The file has
// already been saved under the storage dir by the upload handler.
type IngestPayload struct {
	TaskID   string `json:"task_id"`
	Filename string `json:"filename"`
	FilePath string `json:"file_path"`
}

func NewIngestTask(taskID, filename, filePath string) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestPayload{
		TaskID:   taskID,
		Filename: filename,
		FilePath: filePath,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(
		TaskIngestDocument,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("critical"),
	), nil
}

// TaskProcessor handles queued ingestion jobs against the shared KB service
type TaskProcessor struct {
	kb *kb.Service
}

func NewTaskProcessor(kbService *kb.Service) *TaskProcessor {
	return &TaskProcessor{kb: kbService}
}

func (p *TaskProcessor) IngestDocument(ctx context.Context, t *asynq.Task) error {
	var payload IngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	logger.Info("ingesting queued document", "task_id", payload.TaskID, "file", payload.Filename)

	data, err := os.ReadFile(payload.FilePath)
	if err != nil {
		return fmt.Errorf("failed to read staged file: %w", err)
	}

	docID, chunks, err := p.kb.UploadDocument(ctx, payload.Filename, data)
	if err != nil {
		return err
	}

	// Staged copy is no longer needed once chunks are persisted
	if err := os.Remove(payload.FilePath); err != nil {
		logger.Warn("failed to remove staged file", "path", payload.FilePath, "error", err)
	}

	logger.Info("queued document ingested", "task_id", payload.TaskID, "doc_id", docID, "chunks", chunks)
	return nil
}
