package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	AppName     string
	Port        string
	GinMode     string
	CORSOrigins []string

	// Provider selection. When true every provider (LLM, embeddings, speech,
	// playbook automation) is served by deterministic in-process mocks.
	UseMockProviders bool

	// Gemini
	GeminiAPIKey          string
	GeminiModel           string
	GoogleEmbeddingsModel string
	GeminiTier            string

	// Knowledge base storage
	KBDBPath       string
	KBIndexPath    string
	KBChunkSize    int
	KBChunkOverlap int
	KBContextLimit int

	// Upload handling
	MaxFileSize    int64
	FileStorageDir string

	// Redis (rate limiting + asynq)
	RedisURL      string
	RedisPassword string
	RedisDB       int

	RateLimitReqs   int
	RateLimitWindow int

	// Telemetry
	TracingEnabled bool
	OTLPEndpoint   string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		AppName:     getEnv("APP_NAME", "multiverse-copilot"),
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000"), ","),

		UseMockProviders: getEnvBool("USE_MOCK_PROVIDERS", true),

		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GeminiModel:           getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		GeminiTier:            getEnv("GEMINI_TIER", "free"),

		KBDBPath:       getEnv("KB_DB_PATH", "data/kb.sqlite3"),
		KBIndexPath:    getEnv("KB_INDEX_PATH", "data/kb.index"),
		KBChunkSize:    getEnvInt("KB_CHUNK_SIZE", 800),
		KBChunkOverlap: getEnvInt("KB_CHUNK_OVERLAP", 120),
		KBContextLimit: getEnvInt("KB_CONTEXT_LIMIT", 8),

		MaxFileSize:    getEnvInt64("MAX_FILE_SIZE", 20971520), // 20MB
		FileStorageDir: getEnv("FILE_STORAGE_DIR", "./storage"),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		TracingEnabled: getEnvBool("TRACING_ENABLED", false),
		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", "localhost:4317"),
	}

	// Real providers cannot run without credentials
	if !cfg.UseMockProviders && cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required when USE_MOCK_PROVIDERS=false - set it in .env file")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.KBDBPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %v", err)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
