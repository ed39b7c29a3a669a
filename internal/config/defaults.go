package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/librarian/data/db/librarian.db"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "mock"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.Concurrency == 0 {
		cfg.Embedding.Concurrency = 4
	}
	if cfg.Embedding.RedisTTLSeconds == 0 {
		cfg.Embedding.RedisTTLSeconds = 86400
	}
	if cfg.Index.NumPlanes == 0 {
		cfg.Index.NumPlanes = 10
	}
	if cfg.Index.KeywordBackend == "" {
		cfg.Index.KeywordBackend = "memory"
	}
	if cfg.Search.DefaultTopK == 0 {
		cfg.Search.DefaultTopK = 5
	}
	if cfg.Search.MaxTopK == 0 {
		cfg.Search.MaxTopK = 100
	}
	if cfg.Store.EmbedTimeoutSeconds == 0 {
		cfg.Store.EmbedTimeoutSeconds = 30
	}
	if cfg.Store.PersistTimeoutSeconds == 0 {
		cfg.Store.PersistTimeoutSeconds = 10
	}
}
