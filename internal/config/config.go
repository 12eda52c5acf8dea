package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// DataDir is the base directory for runtime data (catalog DB, snapshots).
	DataDir     string
	DBPath      string
	SnapshotDir string

	// Embedding sidecar process.
	EmbedCommand        string
	EmbedModel          string
	EmbedDevice         string
	EmbedBatchSize      int
	EmbedRequestTimeout time.Duration
	EmbedStartupTimeout time.Duration

	// Answer generation LLM (OpenAI-compatible chat completions API).
	LLMBaseURL   string
	LLMModelName string
	LLMAPIKey    string

	WalkMaxDepth int

	APIPort   string
	LogLevel  slog.Level
	LogFormat string
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates the rest.
// If a .env file exists in the current directory or project root, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	// Check current directory first, then walk up to find project root
	_ = godotenv.Load()

	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ { // Limit search depth
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break // Reached filesystem root
			}
			dir = parent
		}
	}

	dataDir := getEnv("DATA_DIR", "./data")

	cfg := &Config{
		DataDir:      dataDir,
		DBPath:       getEnv("DB_PATH", filepath.Join(dataDir, "indexpanel.db")),
		SnapshotDir:  getEnv("SNAPSHOT_DIR", filepath.Join(dataDir, "snapshots")),
		EmbedCommand: getEnv("EMBED_COMMAND", "python3 embedding-service.py"),
		EmbedModel:   getEnv("EMBED_MODEL", "all-MiniLM-L6-v2"),
		EmbedDevice:  getEnv("EMBED_DEVICE", "cuda"),
		LLMBaseURL:   getEnv("LLM_BASE_URL", "http://localhost:8080"),
		LLMModelName: getEnv("LLM_MODEL", "Llama-3.1-8B-Instruct"),
		LLMAPIKey:    getEnv("LLM_API_KEY", "dummy-key"),
		APIPort:      getEnv("API_PORT", "9000"),
		LogFormat:    getEnv("LOG_FORMAT", "text"),
	}

	cfg.EmbedBatchSize, err = getEnvInt("EMBED_BATCH_SIZE", 10)
	if err != nil {
		return nil, err
	}
	if cfg.EmbedBatchSize <= 0 {
		return nil, fmt.Errorf("EMBED_BATCH_SIZE must be greater than 0")
	}

	requestSecs, err := getEnvInt("EMBED_REQUEST_TIMEOUT_SECONDS", 30)
	if err != nil {
		return nil, err
	}
	startupSecs, err := getEnvInt("EMBED_STARTUP_TIMEOUT_SECONDS", 120)
	if err != nil {
		return nil, err
	}
	cfg.EmbedRequestTimeout = time.Duration(requestSecs) * time.Second
	cfg.EmbedStartupTimeout = time.Duration(startupSecs) * time.Second

	cfg.WalkMaxDepth, err = getEnvInt("WALK_MAX_DEPTH", 10)
	if err != nil {
		return nil, err
	}
	if cfg.WalkMaxDepth <= 0 {
		return nil, fmt.Errorf("WALK_MAX_DEPTH must be greater than 0")
	}

	cfg.LogLevel, err = parseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}

	if cfg.EmbedCommand == "" {
		return nil, fmt.Errorf("EMBED_COMMAND is required")
	}

	// Create data directories up front so the catalog and snapshot store
	// never race on first write.
	for _, dir := range []string{filepath.Dir(cfg.DBPath), cfg.SnapshotDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
		}
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value.
func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return parsed, nil
}

// parseLogLevel converts a level name to a slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", level)
	}
}
