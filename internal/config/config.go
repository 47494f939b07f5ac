// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment variables
type Config struct {
	DataDir       string // Base directory for all databases (always absolute)
	PolicyFile    string // Path to the decision policy YAML (optional)
	POSFeedURL    string // Websocket URL of the POS sales feed (empty disables the client)
	LogLevel      string
	Port          int
	DevMode       bool
	AgentSchedule string // Cron expression for the autonomous agent loop
	AgentEnabled  bool
	DriftFeatures []string // Feature sets the drift monitor tracks
	Policy        *Policy  // Decision policy (thresholds, cooloff, allocator tuning)
}

// Load reads configuration from environment variables and the policy file
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("STOREOPS_DATA_DIR", "")
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
		DataDir:       absDataDir,
		PolicyFile:    getEnv("STOREOPS_POLICY_FILE", ""),
		POSFeedURL:    getEnv("STOREOPS_POS_FEED_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		Port:          getEnvAsInt("STOREOPS_PORT", 8010),
		DevMode:       getEnvAsBool("DEV_MODE", false),
		AgentSchedule: getEnv("STOREOPS_AGENT_SCHEDULE", "0 */15 * * * *"),
		AgentEnabled:  getEnvAsBool("STOREOPS_AGENT_ENABLED", true),
		DriftFeatures: []string{"pricing_score", "transfer_score"},
	}

	policy, err := LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, err
	}
	cfg.Policy = policy

	return cfg, nil
}

// Helper functions
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
