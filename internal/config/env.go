package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// EnvPrefix namespaces environment overrides.
const EnvPrefix = "LIBRARIAN_"

// LoadDotEnv loads variables from the given .env files (default ".env") without
// overriding variables already set. Missing files are not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// ApplyEnv overrides cfg with LIBRARIAN_* environment variables. Malformed numbers are ignored.
func ApplyEnv(cfg *Config) {
	applyBool("DEBUG", &cfg.Debug)

	applyString("HOST", &cfg.Server.Host)
	applyInt("PORT", &cfg.Server.Port)

	applyString("STORAGE_DRIVER", &cfg.Storage.Driver)
	applyString("DATABASE_PATH", &cfg.Storage.DatabasePath)
	applyString("DATABASE_URL", &cfg.Storage.DatabaseURL)

	applyString("EMBEDDING_PROVIDER", &cfg.Embedding.Provider)
	applyString("MODEL_PATH", &cfg.Embedding.ModelPath)
	applyString("ONNX_LIBRARY_PATH", &cfg.Embedding.LibraryPath)
	applyInt("EMBEDDING_DIMS", &cfg.Embedding.Dimensions)
	applyInt("EMBEDDING_CACHE_SIZE", &cfg.Embedding.CacheSize)
	applyInt("EMBED_CONCURRENCY", &cfg.Embedding.Concurrency)
	applyString("REDIS_URL", &cfg.Embedding.RedisURL)
	applyInt("REDIS_TTL", &cfg.Embedding.RedisTTLSeconds)

	applyInt("NUM_PLANES", &cfg.Index.NumPlanes)
	applyInt64("LSH_SEED", &cfg.Index.Seed)
	applyString("KEYWORD_BACKEND", &cfg.Index.KeywordBackend)

	applyInt("DEFAULT_TOP_K", &cfg.Search.DefaultTopK)
	applyInt("MAX_TOP_K", &cfg.Search.MaxTopK)

	applyInt("EMBED_TIMEOUT", &cfg.Store.EmbedTimeoutSeconds)
	applyInt("PERSIST_TIMEOUT", &cfg.Store.PersistTimeoutSeconds)
}

func applyString(key string, target *string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		*target = v
	}
}

func applyInt(key string, target *int) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func applyInt64(key string, target *int64) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*target = n
		}
	}
}

func applyBool(key string, target *bool) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*target = b
		}
	}
}
