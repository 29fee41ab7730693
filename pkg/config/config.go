// Package config loads the service configuration from the environment.
// main loads a .env file first (if present); everything here reads plain
// environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/seldon-labs/psychohistory/pkg/models"
	"github.com/seldon-labs/psychohistory/pkg/tree"
)

// Default listen port for the HTTP server.
const DefaultPort = 8080

// Config is the complete service configuration.
type Config struct {
	// HTTP
	Port    int
	SiteURL string // allowed CORS origin; empty allows any

	// LLM
	LLMProvider LLMProvider
	LLMAPIKey   string
	LLMModel    string // empty uses the provider's default model

	// Search
	SearchProvider SearchProvider
	SearchAPIKey   string

	// Tree building
	MaxDepth      int
	MaxConcurrent int
}

// Load reads configuration from the environment and applies defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           DefaultPort,
		SiteURL:        os.Getenv("SITE_URL"),
		LLMProvider:    LLMProvider(getEnv("LLM_PROVIDER", string(LLMProviderOpenAI))),
		LLMAPIKey:      os.Getenv("LLM_API_KEY"),
		LLMModel:       os.Getenv("LLM_MODEL"),
		SearchProvider: SearchProvider(getEnv("SEARCH_PROVIDER", string(SearchProviderMock))),
		SearchAPIKey:   os.Getenv("SEARCH_API_KEY"),
		MaxDepth:       models.DefaultDepth,
		MaxConcurrent:  tree.DefaultMaxConcurrent,
	}

	var err error
	if cfg.Port, err = getEnvInt("HTTP_PORT", cfg.Port); err != nil {
		return nil, err
	}
	if cfg.MaxDepth, err = getEnvInt("MAX_DEPTH", cfg.MaxDepth); err != nil {
		return nil, err
	}
	if cfg.MaxConcurrent, err = getEnvInt("MAX_CONCURRENT", cfg.MaxConcurrent); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field consistency. Real search providers need an
// API key; the mock provider does not.
func (c *Config) Validate() error {
	if !c.LLMProvider.IsValid() {
		return fmt.Errorf("invalid LLM_PROVIDER %q (expected openai or anthropic)", c.LLMProvider)
	}
	if c.LLMAPIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	if !c.SearchProvider.IsValid() {
		return fmt.Errorf("invalid SEARCH_PROVIDER %q (expected mock, brave, or serper)", c.SearchProvider)
	}
	if c.SearchProvider != SearchProviderMock && c.SearchAPIKey == "" {
		return fmt.Errorf("SEARCH_API_KEY is required for provider %q", c.SearchProvider)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid HTTP_PORT %d", c.Port)
	}
	if c.MaxDepth < models.MinDepth || c.MaxDepth > models.MaxDepth {
		return fmt.Errorf("MAX_DEPTH %d out of range [%d, %d]", c.MaxDepth, models.MinDepth, models.MaxDepth)
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("MAX_CONCURRENT must be positive, got %d", c.MaxConcurrent)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}
