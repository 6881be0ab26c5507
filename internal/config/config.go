// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir           string // Base directory for the catalog and history databases
	Port              int
	LogLevel          string
	Pretty            bool // Human-readable console log output
	TickInterval      time.Duration
	ConsensusURL      string // Predictive consensus HTTP endpoint ("" disables it)
	ConsensusWSURL    string // Optional consensus websocket stream
	ProofServiceURL   string // External proof service ("" uses the embedded synthesizer)
	RunRetention      time.Duration
	RetentionSchedule string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("REPLAY_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:           absDataDir,
		Port:              getEnvAsInt("REPLAY_PORT", 8090),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		Pretty:            getEnvAsBool("LOG_PRETTY", false),
		TickInterval:      getEnvAsDuration("TICK_INTERVAL", time.Second),
		ConsensusURL:      getEnv("CONSENSUS_URL", ""),
		ConsensusWSURL:    getEnv("CONSENSUS_WS_URL", ""),
		ProofServiceURL:   getEnv("PROOF_SERVICE_URL", ""),
		RunRetention:      getEnvAsDuration("RUN_RETENTION", 30*24*time.Hour),
		RetentionSchedule: getEnv("RETENTION_SCHEDULE", "0 0 3 * * *"), // 3 AM daily
	}

	if cfg.TickInterval <= 0 {
		return nil, fmt.Errorf("TICK_INTERVAL must be positive")
	}

	return cfg, nil
}

// CatalogDBPath returns the scenario catalog database path
func (c *Config) CatalogDBPath() string {
	return filepath.Join(c.DataDir, "catalog.db")
}

// HistoryDBPath returns the run history database path
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
