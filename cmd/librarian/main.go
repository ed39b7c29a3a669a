// Package main is the librarian CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/librarian/internal/cli"
	"github.com/hyperjump/librarian/internal/config"
	"github.com/hyperjump/librarian/internal/embedding"
	"github.com/hyperjump/librarian/internal/indexer"
	"github.com/hyperjump/librarian/internal/keyword"
	"github.com/hyperjump/librarian/internal/library"
	"github.com/hyperjump/librarian/internal/models"
	"github.com/hyperjump/librarian/internal/server"
	"github.com/hyperjump/librarian/internal/storage"
	"github.com/hyperjump/librarian/internal/vector"
	"github.com/hyperjump/librarian/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/librarian/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory wins if it exists; a missing default file falls back to built-in
// defaults. .env files and LIBRARIAN_* variables are applied last.
// Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, "", err
	}
	cfg, resolved, err := readConfig(path)
	if err != nil {
		return nil, "", err
	}
	config.ApplyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, resolved, nil
}

func readConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "import":
		runImport()
	case "delete":
		runDelete()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("librarian version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	restored, err := components.Store.Restore(context.Background())
	if err != nil {
		logger.Fatal("Failed to restore libraries", zap.Error(err))
	}
	logger.Info("libraries restored", zap.Int("count", restored))

	srv := server.NewServer(components.Store, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: librarian search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Semantic search embeds the query, collects candidates from the LSH bucket and
reranks them by cosine similarity. --keyword switches to exact term lookup.

Examples:
  librarian search machine learning
  librarian search --top-k 10 --library papers "neural networks"
  librarian search --keyword transformer
  librarian search --server "" --output json query   # no running server
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchConfigPathFromArgs returns the value of -config/--config from args if present, else defaultPath.
func searchConfigPathFromArgs(args []string, defaultPath string) string {
	for i, a := range args {
		if (a == "-config" || a == "--config") && i+1 < len(args) {
			return args[i+1]
		}
		if v, ok := strings.CutPrefix(a, "--config="); ok {
			return v
		}
		if v, ok := strings.CutPrefix(a, "-config="); ok {
			return v
		}
	}
	return defaultPath
}

// searchTopKDefaultFromConfig returns the configured default top-k, or 5 when the
// config cannot be loaded.
func searchTopKDefaultFromConfig(path string) int {
	cfg, _, err := loadConfig(path)
	if err != nil || cfg == nil || cfg.Search.DefaultTopK <= 0 {
		return 5
	}
	return cfg.Search.DefaultTopK
}

// searchArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runSearch() {
	searchArgs := searchArgsReorder(os.Args[2:])
	configPath := searchConfigPathFromArgs(searchArgs, defaultConfigPath)

	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPathFlag := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = load libraries from storage directly)")
	topK := fs.Int("top-k", searchTopKDefaultFromConfig(configPath), "number of results")
	libraryID := fs.String("library", "", "restrict results to one library")
	keywordMode := fs.Bool("keyword", false, "exact keyword lookup instead of semantic search")
	outputFormat := fs.String("output", "text", "output format: text (human-readable), compact (one result per line), or json (parseable)")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgs)

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *keywordMode {
		query := models.KeywordQuery{Term: queryStr, LibraryID: *libraryID}
		var response *models.KeywordResponse
		if *serverURL != "" {
			response, err = keywordSearchViaHTTP(*serverURL, query)
		} else {
			err = withStore(*configPathFlag, func(store *library.Store) error {
				var searchErr error
				response, searchErr = store.KeywordSearch(query)
				return searchErr
			})
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteKeywordResults(os.Stdout, response, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	query := models.SearchQuery{QueryText: queryStr, TopK: *topK, LibraryID: *libraryID}
	var response *models.SearchResponse
	if *serverURL != "" {
		response, err = searchViaHTTP(*serverURL, query)
	} else {
		err = withStore(*configPathFlag, func(store *library.Store) error {
			var searchErr error
			response, searchErr = store.Search(context.Background(), query)
			return searchErr
		})
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// withStore builds the components from the config at path, restores persisted
// libraries and calls fn with the store.
func withStore(path string, fn func(*library.Store) error) error {
	cfg, _, err := loadConfig(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()
	if _, err := components.Store.Restore(context.Background()); err != nil {
		return fmt.Errorf("restore libraries: %w", err)
	}
	return fn(components.Store)
}

func searchViaHTTP(serverURL string, query models.SearchQuery) (*models.SearchResponse, error) {
	var response models.SearchResponse
	if err := postJSON(serverURL+"/api/v1/search", query, http.StatusOK, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func keywordSearchViaHTTP(serverURL string, query models.KeywordQuery) (*models.KeywordResponse, error) {
	var response models.KeywordResponse
	if err := postJSON(serverURL+"/api/v1/search/keyword", query, http.StatusOK, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func postJSON(endpoint string, body interface{}, wantStatus int, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := http.Post(endpoint, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return decodeResponse(resp, wantStatus, out)
}

func decodeResponse(resp *http.Response, wantStatus int, out interface{}) error {
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// runImport creates a library from a JSON file holding a models.Library.
func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = write to storage directly)")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: librarian import [flags] <library.json>")
		os.Exit(1)
	}
	lib, err := readLibraryFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		os.Exit(1)
	}

	var created models.Library
	if *serverURL != "" {
		err = postJSON(*serverURL+"/api/v1/libraries", lib, http.StatusCreated, &created)
	} else {
		err = withStore(*configPath, func(store *library.Store) error {
			out, createErr := store.CreateLibrary(context.Background(), lib)
			if createErr == nil {
				created = *out
			}
			return createErr
		})
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		os.Exit(1)
	}
	chunks := 0
	for _, doc := range created.Documents {
		chunks += len(doc.Chunks)
	}
	fmt.Printf("Library imported: %s (%d documents, %d chunks)\n", created.ID, len(created.Documents), chunks)
}

func readLibraryFile(path string) (*models.Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lib models.Library
	if err := json.Unmarshal(data, &lib); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &lib, nil
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = delete from storage directly)")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: librarian delete [flags] <library-id>")
		os.Exit(1)
	}
	id := fs.Arg(0)

	var err error
	if *serverURL != "" {
		var req *http.Request
		req, err = http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/libraries/"+url.PathEscape(id), nil)
		if err == nil {
			var resp *http.Response
			resp, err = http.DefaultClient.Do(req)
			if err == nil {
				err = decodeResponse(resp, http.StatusOK, nil)
			}
		}
	} else {
		err = withStore(*configPath, func(store *library.Store) error {
			return store.DeleteLibrary(context.Background(), id)
		})
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Deletion failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Library deleted: %s\n", id)
}

// statusConfigResponse holds configuration info returned by status.
type statusConfigResponse struct {
	StorageDriver       string `json:"storage_driver"`
	DatabasePath        string `json:"database_path,omitempty"`
	EmbeddingProvider   string `json:"embedding_provider"`
	EmbeddingDimensions int    `json:"embedding_dimensions,omitempty"`
	NumPlanes           int    `json:"num_planes"`
	KeywordBackend      string `json:"keyword_backend"`
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	Libraries      int                   `json:"libraries"`
	Documents      int                   `json:"documents"`
	Chunks         int                   `json:"chunks"`
	Index          indexer.Stats         `json:"index"`
	Persisted      storage.Counts        `json:"persisted"`
	DiskUsageBytes *int64                `json:"disk_usage_bytes,omitempty"`
	Config         *statusConfigResponse `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	} else {
		res, err := statusDirect(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		writeStatusText(os.Stdout, &status)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func statusDirect(path string) (*statusResponse, error) {
	cfg, _, err := loadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	var status *statusResponse
	err = withStore(path, func(store *library.Store) error {
		stats, statsErr := store.Stats(context.Background())
		if statsErr != nil {
			return statsErr
		}
		status = &statusResponse{
			Libraries: stats.Libraries,
			Documents: stats.Documents,
			Chunks:    stats.Chunks,
			Index:     stats.Index,
			Persisted: stats.Persisted,
			Config: &statusConfigResponse{
				StorageDriver:       cfg.Storage.Driver,
				DatabasePath:        cfg.Storage.DatabasePath,
				EmbeddingProvider:   cfg.Embedding.Provider,
				EmbeddingDimensions: cfg.Embedding.Dimensions,
				NumPlanes:           cfg.Index.NumPlanes,
				KeywordBackend:      cfg.Index.KeywordBackend,
			},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if cfg.Storage.Driver == storage.DriverSQLite && cfg.Storage.DatabasePath != ":memory:" {
		if diskBytes, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath); err == nil {
			status.DiskUsageBytes = &diskBytes
		}
	}
	return status, nil
}

func writeStatusText(w io.Writer, status *statusResponse) {
	fmt.Fprintf(w, "libraries:          %d   # libraries loaded in memory\n", status.Libraries)
	fmt.Fprintf(w, "documents:          %d\n", status.Documents)
	fmt.Fprintf(w, "chunks:             %d\n", status.Chunks)
	fmt.Fprintf(w, "vectors:            %d   # chunks in the LSH index\n", status.Index.Vectors)
	fmt.Fprintf(w, "buckets:            %d\n", status.Index.Buckets)
	fmt.Fprintf(w, "terms:              %d   # distinct keyword terms\n", status.Index.Terms)
	fmt.Fprintf(w, "persisted_chunks:   %d\n", status.Persisted.Chunks)
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d\n", *status.DiskUsageBytes)
	}
	if status.Config != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		fmt.Fprintf(w, "storage_driver:     %s\n", status.Config.StorageDriver)
		if status.Config.DatabasePath != "" {
			fmt.Fprintf(w, "database_path:      %s\n", status.Config.DatabasePath)
		}
		fmt.Fprintf(w, "embedding_provider: %s\n", status.Config.EmbeddingProvider)
		if status.Config.EmbeddingDimensions > 0 {
			fmt.Fprintf(w, "embedding_dims:     %d\n", status.Config.EmbeddingDimensions)
		}
		fmt.Fprintf(w, "num_planes:         %d\n", status.Config.NumPlanes)
		fmt.Fprintf(w, "keyword_backend:    %s\n", status.Config.KeywordBackend)
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	var s statusResponse
	if err := decodeResponse(resp, http.StatusOK, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Components holds initialized services.
type Components struct {
	Store *library.Store
	// Redis is closed separately; the store only closes the embedder it wraps.
	Redis *embedding.RedisCache
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	dsn := cfg.Storage.DatabasePath
	if cfg.Storage.Driver == storage.DriverPostgres {
		dsn = cfg.Storage.DatabaseURL
	}
	st, err := storage.New(cfg.Storage.Driver, dsn, storage.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	inner, modelName := newEmbedder(cfg, logger)
	cacheOpts := []embedding.CacheOption{embedding.WithModelName(modelName)}
	var redisCache *embedding.RedisCache
	if cfg.Embedding.RedisURL != "" {
		client, err := embedding.NewRedisClient(cfg.Embedding.RedisURL)
		if err != nil {
			_ = inner.Close()
			_ = st.Close()
			return nil, fmt.Errorf("failed to initialize embedding cache: %w", err)
		}
		redisCache = embedding.NewRedisCache(client, cfg.Embedding.RedisTTLSeconds, logger)
		cacheOpts = append(cacheOpts, embedding.WithRemoteCache(redisCache))
	}
	embedder := embedding.NewCachedEmbedder(inner, cfg.Embedding.CacheSize, cacheOpts...)

	keywords, err := keyword.NewKeywordIndex(cfg.Index.KeywordBackend)
	if err != nil {
		_ = embedder.Close()
		_ = st.Close()
		if redisCache != nil {
			_ = redisCache.Close()
		}
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	vectors := vector.NewLSHIndex(cfg.Index.NumPlanes, cfg.Index.Seed)
	logger.Info("indexes initialized",
		zap.Int("num_planes", cfg.Index.NumPlanes),
		zap.Int64("seed", cfg.Index.Seed),
		zap.String("keyword_backend", cfg.Index.KeywordBackend))

	coordinator := indexer.NewCoordinator(vectors, keywords,
		indexer.WithLogger(logger),
		indexer.WithEmbedder(embedder))
	store := library.New(st, embedder, coordinator,
		library.WithLogger(logger),
		library.WithTimeouts(
			time.Duration(cfg.Store.EmbedTimeoutSeconds)*time.Second,
			time.Duration(cfg.Store.PersistTimeoutSeconds)*time.Second),
		library.WithEmbedConcurrency(cfg.Embedding.Concurrency),
		library.WithTopK(cfg.Search.DefaultTopK, cfg.Search.MaxTopK))

	return &Components{Store: store, Redis: redisCache}, nil
}

// newEmbedder returns the configured embedder and the name used to namespace cached
// embeddings. An ONNX model that fails to load falls back to the mock embedder.
func newEmbedder(cfg *config.Config, logger *zap.Logger) (embedding.Embedder, string) {
	mockName := fmt.Sprintf("mock-%d", cfg.Embedding.Dimensions)
	if cfg.Embedding.Provider != "onnx" {
		return embedding.NewMockEmbedder(cfg.Embedding.Dimensions), mockName
	}
	onnxEmbedder, err := embedding.NewONNXEmbedder(embedding.ONNXOptions{
		ModelPath:   cfg.Embedding.ModelPath,
		LibraryPath: cfg.Embedding.LibraryPath,
		Dimensions:  cfg.Embedding.Dimensions,
		MaxTokens:   cfg.Embedding.MaxTokens,
	})
	if err != nil {
		logger.Warn("failed to load ONNX model, falling back to mock embedder",
			zap.String("model_path", cfg.Embedding.ModelPath),
			zap.Error(err))
		return embedding.NewMockEmbedder(cfg.Embedding.Dimensions), mockName
	}
	return onnxEmbedder, filepath.Base(cfg.Embedding.ModelPath)
}

func printUsage() {
	fmt.Println(`librarian - Vector search over libraries of text chunks

Usage:
  librarian server [flags]              Start the HTTP server
  librarian search [flags] <query>      Search chunks
  librarian import [flags] <file.json>  Create a library from a JSON file
  librarian delete [flags] <id>         Delete a library
  librarian status [flags]              Show store/index status
  librarian version                     Show version
  librarian help                        Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/librarian/config.yaml)
  --debug            Enable debug logging

Search Flags:
  --config string    Config file path (for direct storage mode; also used for the default top-k)
  --server string    Server URL (default: http://localhost:8080). Use --server "" when no server is running.
  --top-k int        Number of results (default from config, or 5)
  --library string   Restrict results to one library
  --keyword          Exact keyword lookup instead of semantic search
  --output string    Output format: text, compact or json (default: text)

Import/Delete Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080)

Status Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct storage.
  --output string    Output format: text or json (default: text)

Environment:
  LIBRARIAN_* variables (e.g. LIBRARIAN_PORT, LIBRARIAN_DATABASE_PATH) override the
  config file. A .env file in the working directory is loaded first.

Examples:
  librarian server
  librarian import papers.json
  librarian search "machine learning algorithms"
  librarian search --library papers --top-k 10 "neural networks"
  librarian search --keyword transformer
  librarian delete papers
  librarian status --output json`)
}
