package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Database struct {
		ConnectionString string `yaml:"connection_string"`
	} `yaml:"database"`
	OpenAI struct {
		BaseURL        string `yaml:"base_url"`
		APIKeyEnv      string `yaml:"api_key_env"`
		EmbeddingModel string `yaml:"embedding_model"`
		ChatModel      string `yaml:"chat_model"`
		Dimensions     int    `yaml:"dimensions"`
	} `yaml:"openai"`
	Index struct {
		Store      string `yaml:"store"` // "pgvector" or "memory"
		AllowReset bool   `yaml:"allow_reset"`
	} `yaml:"index"`
	Processing struct {
		ChunkSize    int `yaml:"chunk_size"`
		ChunkOverlap int `yaml:"chunk_overlap"`
		MaxResults   int `yaml:"max_results"`
	} `yaml:"processing"`
}

// Load loads configuration from file or returns defaults
func Load() (*Config, error) {
	// Pick up a local .env if present so secrets stay out of the yaml file.
	_ = godotenv.Load()

	cfg := Default()

	configPath := filepath.Join(os.Getenv("HOME"), ".docuspace", "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if dsn := os.Getenv("DOCUSPACE_DATABASE_URL"); dsn != "" {
		cfg.Database.ConnectionString = dsn
	}

	return cfg, nil
}

// Save saves configuration to file
func (c *Config) Save() error {
	configDir := filepath.Join(os.Getenv("HOME"), ".docuspace")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath := filepath.Join(configDir, "config.yaml")
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

// APIKey resolves the OpenAI-compatible API key from the configured env var.
func (c *Config) APIKey() string {
	return os.Getenv(c.OpenAI.APIKeyEnv)
}

// Default returns default configuration
func Default() *Config {
	cfg := &Config{}

	cfg.Database.ConnectionString = "postgres://postgres@localhost/postgres?sslmode=disable"
	cfg.OpenAI.BaseURL = "https://api.openai.com/v1"
	cfg.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	cfg.OpenAI.EmbeddingModel = "text-embedding-3-small"
	cfg.OpenAI.ChatModel = "gpt-4o-mini"
	cfg.OpenAI.Dimensions = 1536
	cfg.Index.Store = "pgvector"
	cfg.Index.AllowReset = false
	cfg.Processing.ChunkSize = 500
	cfg.Processing.ChunkOverlap = 50
	cfg.Processing.MaxResults = 10

	return cfg
}
