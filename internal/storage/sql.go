package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/hyperjump/librarian/internal/models"
	"github.com/hyperjump/librarian/internal/vector"
)

// Driver names accepted by New.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// dialect captures the differences between the supported databases.
type dialect struct {
	name       string
	driver     string
	blobType   string
	dollarArgs bool
}

var (
	sqliteDialect   = dialect{name: DriverSQLite, driver: "sqlite3", blobType: "BLOB"}
	postgresDialect = dialect{name: DriverPostgres, driver: "postgres", blobType: "BYTEA", dollarArgs: true}
)

// rebind rewrites '?' placeholders to $1..$n for dialects that need it.
func (d dialect) rebind(query string) string {
	if !d.dollarArgs {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d dialect) schema() string {
	return fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS libraries (
		id TEXT PRIMARY KEY,
		metadata TEXT
	);

	CREATE TABLE IF NOT EXISTS documents (
		library_id TEXT NOT NULL,
		id TEXT NOT NULL,
		metadata TEXT,
		PRIMARY KEY (library_id, id)
	);

	CREATE TABLE IF NOT EXISTS chunks (
		library_id TEXT NOT NULL,
		document_id TEXT NOT NULL,
		id TEXT NOT NULL,
		text TEXT NOT NULL,
		embedding %s,
		metadata TEXT,
		PRIMARY KEY (library_id, document_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(library_id, document_id);
	`, d.blobType)
}

// statementDef pairs a statement's SQL with the function extracting its arguments from a row.
type statementDef struct {
	query string
	args  func(Row) ([]any, error)
	// mustMatch makes a zero-row result an error.
	mustMatch bool
}

var statements = map[Statement]statementDef{
	InsertLibraries: {
		query: `INSERT INTO libraries (id, metadata) VALUES (?, ?)`,
		args: func(r Row) ([]any, error) {
			meta, err := encodeMetadata(r.Metadata)
			return []any{r.ID, meta}, err
		},
	},
	InsertDocuments: {
		query: `INSERT INTO documents (library_id, id, metadata) VALUES (?, ?, ?)`,
		args: func(r Row) ([]any, error) {
			meta, err := encodeMetadata(r.Metadata)
			return []any{r.LibraryID, r.ID, meta}, err
		},
	},
	InsertChunks: {
		query: `INSERT INTO chunks (library_id, document_id, id, text, embedding, metadata) VALUES (?, ?, ?, ?, ?, ?)`,
		args: func(r Row) ([]any, error) {
			meta, err := encodeMetadata(r.Metadata)
			return []any{r.LibraryID, r.DocumentID, r.ID, r.Text, vector.EncodeEmbedding(r.Embedding), meta}, err
		},
	},
	UpdateLibraries: {
		query: `UPDATE libraries SET metadata = ? WHERE id = ?`,
		args: func(r Row) ([]any, error) {
			meta, err := encodeMetadata(r.Metadata)
			return []any{meta, r.ID}, err
		},
		mustMatch: true,
	},
	UpdateDocuments: {
		query: `UPDATE documents SET metadata = ? WHERE library_id = ? AND id = ?`,
		args: func(r Row) ([]any, error) {
			meta, err := encodeMetadata(r.Metadata)
			return []any{meta, r.LibraryID, r.ID}, err
		},
		mustMatch: true,
	},
	UpdateChunks: {
		query: `UPDATE chunks SET text = ?, embedding = ?, metadata = ? WHERE library_id = ? AND document_id = ? AND id = ?`,
		args: func(r Row) ([]any, error) {
			meta, err := encodeMetadata(r.Metadata)
			return []any{r.Text, vector.EncodeEmbedding(r.Embedding), meta, r.LibraryID, r.DocumentID, r.ID}, err
		},
		mustMatch: true,
	},
	DeleteLibraries: {
		query: `DELETE FROM libraries WHERE id = ?`,
		args:  func(r Row) ([]any, error) { return []any{r.ID}, nil },
	},
	DeleteDocuments: {
		query: `DELETE FROM documents WHERE library_id = ? AND id = ?`,
		args:  func(r Row) ([]any, error) { return []any{r.LibraryID, r.ID}, nil },
	},
	DeleteChunks: {
		query: `DELETE FROM chunks WHERE library_id = ? AND document_id = ? AND id = ?`,
		args:  func(r Row) ([]any, error) { return []any{r.LibraryID, r.DocumentID, r.ID}, nil },
	},
}

// SQLStorage implements Storage on database/sql.
type SQLStorage struct {
	db      *sql.DB
	dialect dialect
	logger  *zap.Logger
}

// Option configures an SQLStorage.
type Option func(*SQLStorage)

// WithLogger sets a logger for debug output (batches executed, rows loaded).
func WithLogger(l *zap.Logger) Option {
	return func(s *SQLStorage) { s.logger = l }
}

// New opens storage for driver ("sqlite" or "postgres"). For sqlite, dsn is a file path or ":memory:".
func New(driver, dsn string, opts ...Option) (*SQLStorage, error) {
	switch driver {
	case DriverSQLite, "":
		return NewSQLiteStorage(dsn, opts...)
	case DriverPostgres:
		return NewPostgresStorage(dsn, opts...)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s (supported: sqlite, postgres)", driver)
	}
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string, opts ...Option) (*SQLStorage, error) {
	inMemory := dbPath == ":memory:" || strings.HasPrefix(dbPath, "file::memory:")
	if !inMemory {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}
	db, err := sql.Open(sqliteDialect.driver, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; an in-memory database also exists per connection.
	db.SetMaxOpenConns(1)

	if !inMemory {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL: %w", err)
		}
	}
	return newSQLStorage(db, sqliteDialect, opts)
}

// NewPostgresStorage connects to dsn and initializes the schema.
func NewPostgresStorage(dsn string, opts ...Option) (*SQLStorage, error) {
	db, err := sql.Open(postgresDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return newSQLStorage(db, postgresDialect, opts)
}

func newSQLStorage(db *sql.DB, d dialect, opts []Option) (*SQLStorage, error) {
	if _, err := db.Exec(d.schema()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	s := &SQLStorage{db: db, dialect: d, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Driver returns the dialect name.
func (s *SQLStorage) Driver() string {
	return s.dialect.name
}

// ExecuteBatch applies stmt to every row in one transaction.
func (s *SQLStorage) ExecuteBatch(ctx context.Context, stmt Statement, rows []Row) error {
	return s.ExecuteBatches(ctx, Batch{Statement: stmt, Rows: rows})
}

// ExecuteBatches applies the batches in order in one transaction.
func (s *SQLStorage) ExecuteBatches(ctx context.Context, batches ...Batch) error {
	for _, b := range batches {
		if _, ok := statements[b.Statement]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownStatement, b.Statement)
		}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, b := range batches {
		if len(b.Rows) == 0 {
			continue
		}
		if err := s.execBatch(ctx, tx, b); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLStorage) execBatch(ctx context.Context, tx *sql.Tx, b Batch) error {
	def := statements[b.Statement]
	stmt, err := tx.PrepareContext(ctx, s.dialect.rebind(def.query))
	if err != nil {
		return fmt.Errorf("prepare %s: %w", b.Statement, err)
	}
	defer stmt.Close()

	for _, row := range b.Rows {
		args, err := def.args(row)
		if err != nil {
			return fmt.Errorf("%s %q: %w", b.Statement, row.ID, err)
		}
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return fmt.Errorf("%s %q: %w", b.Statement, row.ID, err)
		}
		if def.mustMatch {
			if n, err := res.RowsAffected(); err == nil && n == 0 {
				return fmt.Errorf("%s %q: %w", b.Statement, row.ID, ErrRowNotFound)
			}
		}
	}
	s.logger.Debug("batch executed", zap.String("statement", string(b.Statement)), zap.Int("rows", len(b.Rows)))
	return nil
}

// Fetch runs query and returns each row as a column-name map. BLOB/BYTEA values are returned as []byte.
func (s *SQLStorage) Fetch(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		m := make(map[string]any, len(cols))
		for i, c := range cols {
			m[c] = vals[i]
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// LoadLibraries reads every library, document and chunk and reassembles the aggregate.
// Orphaned documents or chunks (whose parent row is missing) are skipped with a warning.
func (s *SQLStorage) LoadLibraries(ctx context.Context) ([]*models.Library, error) {
	libs, order, err := s.loadLibraryRows(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.loadDocumentRows(ctx, libs); err != nil {
		return nil, err
	}
	if err := s.loadChunkRows(ctx, libs); err != nil {
		return nil, err
	}
	out := make([]*models.Library, 0, len(order))
	for _, id := range order {
		out = append(out, libs[id])
	}
	s.logger.Debug("libraries loaded", zap.Int("libraries", len(out)))
	return out, nil
}

func (s *SQLStorage) loadLibraryRows(ctx context.Context) (map[string]*models.Library, []string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, metadata FROM libraries ORDER BY id`)
	if err != nil {
		return nil, nil, fmt.Errorf("load libraries: %w", err)
	}
	defer rows.Close()
	libs := make(map[string]*models.Library)
	var order []string
	for rows.Next() {
		var id string
		var meta sql.NullString
		if err := rows.Scan(&id, &meta); err != nil {
			return nil, nil, err
		}
		md, err := decodeMetadata(meta.String)
		if err != nil {
			return nil, nil, fmt.Errorf("library %q: %w", id, err)
		}
		libs[id] = &models.Library{ID: id, Documents: make(map[string]*models.Document), Metadata: md}
		order = append(order, id)
	}
	return libs, order, rows.Err()
}

func (s *SQLStorage) loadDocumentRows(ctx context.Context, libs map[string]*models.Library) error {
	rows, err := s.db.QueryContext(ctx, `SELECT library_id, id, metadata FROM documents`)
	if err != nil {
		return fmt.Errorf("load documents: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var libID, id string
		var meta sql.NullString
		if err := rows.Scan(&libID, &id, &meta); err != nil {
			return err
		}
		lib, ok := libs[libID]
		if !ok {
			s.logger.Warn("skipping orphaned document", zap.String("library_id", libID), zap.String("document_id", id))
			continue
		}
		md, err := decodeMetadata(meta.String)
		if err != nil {
			return fmt.Errorf("document %q: %w", id, err)
		}
		lib.Documents[id] = &models.Document{ID: id, Chunks: make(map[string]*models.TextChunk), Metadata: md}
	}
	return rows.Err()
}

func (s *SQLStorage) loadChunkRows(ctx context.Context, libs map[string]*models.Library) error {
	rows, err := s.db.QueryContext(ctx, `SELECT library_id, document_id, id, text, embedding, metadata FROM chunks`)
	if err != nil {
		return fmt.Errorf("load chunks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var libID, docID, id, text string
		var blob []byte
		var meta sql.NullString
		if err := rows.Scan(&libID, &docID, &id, &text, &blob, &meta); err != nil {
			return err
		}
		lib, ok := libs[libID]
		if !ok {
			s.logger.Warn("skipping orphaned chunk", zap.String("library_id", libID), zap.String("chunk_id", id))
			continue
		}
		doc, ok := lib.Documents[docID]
		if !ok {
			s.logger.Warn("skipping orphaned chunk", zap.String("document_id", docID), zap.String("chunk_id", id))
			continue
		}
		emb, err := vector.DecodeEmbedding(blob)
		if err != nil {
			return fmt.Errorf("chunk %q: %w", id, err)
		}
		md, err := decodeMetadata(meta.String)
		if err != nil {
			return fmt.Errorf("chunk %q: %w", id, err)
		}
		doc.Chunks[id] = &models.TextChunk{ID: id, Text: text, Embedding: emb, Metadata: md}
	}
	return rows.Err()
}

// Counts returns row totals per table.
func (s *SQLStorage) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	for _, q := range []struct {
		table string
		dst   *int64
	}{
		{"libraries", &c.Libraries},
		{"documents", &c.Documents},
		{"chunks", &c.Chunks},
	} {
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+q.table).Scan(q.dst); err != nil {
			return Counts{}, fmt.Errorf("count %s: %w", q.table, err)
		}
	}
	return c, nil
}

// Close closes the database connection.
func (s *SQLStorage) Close() error {
	return s.db.Close()
}

// encodeMetadata stores nil as NULL so it loads back as nil.
func encodeMetadata(m map[string]string) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return string(b), nil
}

func decodeMetadata(s string) (map[string]string, error) {
	if s == "" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return m, nil
}
