// Package config provides configuration loading and structs for the librarian server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Search    SearchConfig    `yaml:"search"`
	Store     StoreConfig     `yaml:"store"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver       string `yaml:"driver"`        // sqlite or postgres
	DatabasePath string `yaml:"database_path"` // sqlite file, or ":memory:"
	DatabaseURL  string `yaml:"database_url"`  // postgres DSN
}

// EmbeddingConfig holds embedder settings.
type EmbeddingConfig struct {
	Provider        string `yaml:"provider"` // mock or onnx
	ModelPath       string `yaml:"model_path"`
	LibraryPath     string `yaml:"library_path"`
	Dimensions      int    `yaml:"dimensions"`
	MaxTokens       int    `yaml:"max_tokens"`
	CacheSize       int    `yaml:"cache_size"`
	Concurrency     int    `yaml:"concurrency"`
	RedisURL        string `yaml:"redis_url"` // optional second-level cache
	RedisTTLSeconds int    `yaml:"redis_ttl_seconds"`
}

// IndexConfig holds LSH and keyword index settings.
type IndexConfig struct {
	NumPlanes      int    `yaml:"num_planes"`
	Seed           int64  `yaml:"seed"` // 0 seeds from the clock
	KeywordBackend string `yaml:"keyword_backend"`
}

// SearchConfig holds result size limits.
type SearchConfig struct {
	DefaultTopK int `yaml:"default_top_k"`
	MaxTopK     int `yaml:"max_top_k"`
}

// StoreConfig holds timeouts for calls to the embedder and persistence.
type StoreConfig struct {
	EmbedTimeoutSeconds   int `yaml:"embed_timeout_seconds"`
	PersistTimeoutSeconds int `yaml:"persist_timeout_seconds"`
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	if cfg.Storage.DatabasePath != ":memory:" {
		cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	}
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.DatabasePath == "" {
			return fmt.Errorf("storage.database_path is required for sqlite")
		}
	case "postgres":
		if strings.TrimSpace(c.Storage.DatabaseURL) == "" {
			return fmt.Errorf("storage.database_url is required for postgres")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q (supported: sqlite, postgres)", c.Storage.Driver)
	}
	switch c.Embedding.Provider {
	case "mock":
	case "onnx":
		if c.Embedding.ModelPath == "" {
			return fmt.Errorf("embedding.model_path is required for onnx")
		}
	default:
		return fmt.Errorf("unknown embedding.provider %q (supported: mock, onnx)", c.Embedding.Provider)
	}
	switch c.Index.KeywordBackend {
	case "memory", "bleve":
	default:
		return fmt.Errorf("unknown index.keyword_backend %q (supported: memory, bleve)", c.Index.KeywordBackend)
	}
	if c.Index.NumPlanes < 1 || c.Index.NumPlanes > 64 {
		return fmt.Errorf("index.num_planes must be between 1 and 64, got %d", c.Index.NumPlanes)
	}
	if c.Search.DefaultTopK > c.Search.MaxTopK {
		return fmt.Errorf("search.default_top_k (%d) exceeds search.max_top_k (%d)", c.Search.DefaultTopK, c.Search.MaxTopK)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
