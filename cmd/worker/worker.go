package main

import (
	"context"
	"log"

	"multiverse-copilot-backend/internal/app"
	"multiverse-copilot-backend/internal/config"
	"multiverse-copilot-backend/internal/logger"
	"multiverse-copilot-backend/internal/queue"

	"github.com/hibiken/asynq"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	// The worker shares the application wiring with the API server so
	// ingestion writes to the same store with the same embedder
	application, err := app.New(cfg)
	if err != nil {
		log.Fatal("Failed to initialize application:", err)
	}
	defer application.Close()

	// Create Asynq server
	server := asynq.NewServer(
		config.AsynqRedisOpt(cfg),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("Task failed: %s, error: %v", task.Type(), err)
			}),
		},
	)

	// Create task processor
	processor := queue.NewTaskProcessor(application.KB)

	// Create mux and register handlers
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIngestDocument, processor.IngestDocument)

	log.Println("Starting Asynq worker...")
	log.Printf("   Queues: critical(6), default(3), low(1)")

	if err := server.Run(mux); err != nil {
		log.Fatalf("Worker failed: %v", err)
	}
}
