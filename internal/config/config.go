// Package config handles application configuration management.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Base directory for all chatsync data (~/.chatsync)
	BaseDir string

	// API settings for the Agent X backend
	API APIConfig

	// Default profession context applied to new conversations
	Profession string
}

// APIConfig holds backend connection settings.
type APIConfig struct {
	// BaseURL of the Agent X backend (default: http://localhost:8000)
	BaseURL string

	// UserID presented to the backend on every send
	UserID string

	// IDToken is the bearer credential. Empty means unauthenticated; the
	// engine then stays on the offline path.
	IDToken string

	// Timeout applies to connect and receive on every request
	Timeout time.Duration

	// RateLimit is requests per minute against the backend
	RateLimit int

	// ProbeInterval is how often connectivity is re-checked
	ProbeInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseDir:    DefaultBaseDir(),
		Profession: "general",
		API: APIConfig{
			BaseURL:       "http://localhost:8000",
			Timeout:       60 * time.Second,
			RateLimit:     30,
			ProbeInterval: 10 * time.Second,
		},
	}
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if url := os.Getenv("AGENTX_API_URL"); url != "" {
		cfg.API.BaseURL = url
	}
	if userID := os.Getenv("AGENTX_USER_ID"); userID != "" {
		cfg.API.UserID = userID
	}
	if token := os.Getenv("AGENTX_ID_TOKEN"); token != "" {
		cfg.API.IDToken = token
	}
	if profession := os.Getenv("CHATSYNC_PROFESSION"); profession != "" {
		cfg.Profession = profession
	}
	if dir := os.Getenv("CHATSYNC_HOME"); dir != "" {
		cfg.BaseDir = dir
	}

	if err := ensureDirectories(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ensureDirectories creates required directories if they don't exist.
func ensureDirectories(cfg *Config) error {
	dirs := []string{
		cfg.BaseDir,
		filepath.Join(cfg.BaseDir, "logs"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
