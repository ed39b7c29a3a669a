// Package library implements the authoritative library store. It sequences
// validation, embedding, persistence, index mutation and cache commit for every
// library and chunk operation.
package library

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hyperjump/librarian/internal/embedding"
	"github.com/hyperjump/librarian/internal/indexer"
	"github.com/hyperjump/librarian/internal/models"
	"github.com/hyperjump/librarian/internal/storage"
	"github.com/hyperjump/librarian/internal/vector"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultEmbedTimeout   = 30 * time.Second
	defaultPersistTimeout = 10 * time.Second
	defaultConcurrency    = 4
	defaultTopK           = 5
	defaultMaxTopK        = 100
)

// Store owns the library cache and the indexes derived from it.
//
// Mutations hold a per-library lock for their whole duration and the commit lock
// only while applying index and cache changes. External calls (embedder,
// persistence) happen before the commit, so a failure there leaves memory untouched.
// Reads hold the commit lock shared and return deep copies.
type Store struct {
	storage  storage.Storage
	embedder embedding.Embedder
	index    *indexer.Coordinator
	logger   *zap.Logger

	embedTimeout   time.Duration
	persistTimeout time.Duration
	concurrency    int
	defaultTopK    int
	maxTopK        int

	commitMu  sync.RWMutex
	libraries map[string]*models.Library

	locksMu sync.Mutex
	locks   map[string]*libraryLock
}

type libraryLock struct {
	mu   sync.Mutex
	refs int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithTimeouts bounds embedder and persistence calls. Non-positive values keep the defaults.
func WithTimeouts(embed, persist time.Duration) Option {
	return func(s *Store) {
		if embed > 0 {
			s.embedTimeout = embed
		}
		if persist > 0 {
			s.persistTimeout = persist
		}
	}
}

// WithEmbedConcurrency limits how many documents are embedded in parallel.
func WithEmbedConcurrency(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithTopK sets the result count used when a search omits top_k, and its upper bound.
func WithTopK(def, max int) Option {
	return func(s *Store) {
		if def > 0 {
			s.defaultTopK = def
		}
		if max > 0 {
			s.maxTopK = max
		}
	}
}

// Stats summarizes the cache, the indexes and persisted row counts.
type Stats struct {
	Libraries int            `json:"libraries"`
	Documents int            `json:"documents"`
	Chunks    int            `json:"chunks"`
	Index     indexer.Stats  `json:"index"`
	Persisted storage.Counts `json:"persisted"`
}

// New returns an empty store. Call Restore to load persisted libraries.
func New(st storage.Storage, emb embedding.Embedder, index *indexer.Coordinator, opts ...Option) *Store {
	s := &Store{
		storage:        st,
		embedder:       emb,
		index:          index,
		logger:         zap.NewNop(),
		embedTimeout:   defaultEmbedTimeout,
		persistTimeout: defaultPersistTimeout,
		concurrency:    defaultConcurrency,
		defaultTopK:    defaultTopK,
		maxTopK:        defaultMaxTopK,
		libraries:      make(map[string]*models.Library),
		locks:          make(map[string]*libraryLock),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateLibrary embeds, persists and indexes lib, then adds it to the cache.
// A library without an ID gets a generated one. The stored copy is returned.
func (s *Store) CreateLibrary(ctx context.Context, lib *models.Library) (*models.Library, error) {
	const op = "create library"
	if lib == nil {
		return nil, models.NewOpError(op, "", fmt.Errorf("%w: library is required", models.ErrBadRequest))
	}
	lib = lib.Clone()
	if err := lib.Normalize(); err != nil {
		return nil, models.NewOpError(op, lib.ID, fmt.Errorf("%w: %v", models.ErrBadRequest, err))
	}
	unlock := s.lock(lib.ID)
	defer unlock()

	if _, ok := s.cached(lib.ID); ok {
		return nil, models.NewOpError(op, lib.ID, models.ErrConflict)
	}
	if err := s.embedLibrary(ctx, lib); err != nil {
		return nil, models.NewOpError(op, lib.ID, err)
	}
	if err := s.validateLibrary(lib); err != nil {
		return nil, models.NewOpError(op, lib.ID, err)
	}
	if err := s.persist(ctx, storage.LibraryBatches(lib, false)...); err != nil {
		return nil, models.NewOpError(op, lib.ID, err)
	}

	s.commitMu.Lock()
	if err := s.index.IndexLibrary(lib); err != nil {
		_ = s.index.DeleteLibrary(lib)
		s.commitMu.Unlock()
		s.compensate(ctx, op, lib.ID, storage.DeleteLibraryBatches(lib)...)
		return nil, models.NewOpError(op, lib.ID, indexFailure(err))
	}
	s.libraries[lib.ID] = lib
	s.commitMu.Unlock()

	s.logger.Info("library created",
		zap.String("library_id", lib.ID),
		zap.Int("documents", len(lib.Documents)),
		zap.Int("chunks", lib.ChunkCount()))
	return s.snapshot(lib.ID), nil
}

// GetLibrary returns a copy of the cached library.
func (s *Store) GetLibrary(id string) (*models.Library, error) {
	s.commitMu.RLock()
	defer s.commitMu.RUnlock()
	lib, ok := s.libraries[id]
	if !ok {
		return nil, models.NewOpError("get library", id, models.ErrNotFound)
	}
	return lib.Clone(), nil
}

// ListLibraries returns copies of every cached library ordered by ID.
func (s *Store) ListLibraries() []*models.Library {
	s.commitMu.RLock()
	defer s.commitMu.RUnlock()
	ids := make([]string, 0, len(s.libraries))
	for id := range s.libraries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*models.Library, len(ids))
	for i, id := range ids {
		out[i] = s.libraries[id].Clone()
	}
	return out
}

// GetChunks returns copies of every chunk of the library in document then chunk ID order.
func (s *Store) GetChunks(id string) ([]*models.TextChunk, error) {
	s.commitMu.RLock()
	defer s.commitMu.RUnlock()
	lib, ok := s.libraries[id]
	if !ok {
		return nil, models.NewOpError("get chunks", id, models.ErrNotFound)
	}
	chunks := make([]*models.TextChunk, 0, lib.ChunkCount())
	lib.Walk(func(_ *models.Document, c *models.TextChunk) {
		chunks = append(chunks, c.Clone())
	})
	return chunks, nil
}

// UpdateLibrary replaces the cached library with lib. Documents and chunks are
// classified as new or existing against the cached version of the same library:
// existing rows are updated, new rows inserted, and rows the update dropped are
// deleted. Chunks without an embedding, or whose text changed while the embedding
// did not, are re-embedded. The whole library is then re-indexed.
func (s *Store) UpdateLibrary(ctx context.Context, lib *models.Library) (*models.Library, error) {
	const op = "update library"
	if lib == nil || lib.ID == "" {
		return nil, models.NewOpError(op, "", fmt.Errorf("%w: library id is required", models.ErrBadRequest))
	}
	lib = lib.Clone()
	if err := lib.Normalize(); err != nil {
		return nil, models.NewOpError(op, lib.ID, fmt.Errorf("%w: %v", models.ErrBadRequest, err))
	}
	unlock := s.lock(lib.ID)
	defer unlock()

	old, ok := s.cached(lib.ID)
	if !ok {
		return nil, models.NewOpError(op, lib.ID, models.ErrNotFound)
	}
	clearStaleEmbeddings(old, lib)
	if err := s.embedLibrary(ctx, lib); err != nil {
		return nil, models.NewOpError(op, lib.ID, err)
	}
	if err := s.validateLibrary(lib); err != nil {
		return nil, models.NewOpError(op, lib.ID, err)
	}
	if err := s.persist(ctx, updateBatches(old, lib)...); err != nil {
		return nil, models.NewOpError(op, lib.ID, err)
	}

	s.commitMu.Lock()
	if err := s.reindex(old, lib); err != nil {
		s.commitMu.Unlock()
		restore := append(storage.DeleteLibraryBatches(lib), storage.LibraryBatches(old, false)...)
		s.compensate(ctx, op, lib.ID, restore...)
		return nil, models.NewOpError(op, lib.ID, indexFailure(err))
	}
	s.libraries[lib.ID] = lib
	s.commitMu.Unlock()

	s.logger.Info("library updated",
		zap.String("library_id", lib.ID),
		zap.Int("documents", len(lib.Documents)),
		zap.Int("chunks", lib.ChunkCount()))
	return s.snapshot(lib.ID), nil
}

// DeleteLibrary removes the library's rows child-first, then its index entries,
// then the cache entry. The cached library is read before it is removed.
func (s *Store) DeleteLibrary(ctx context.Context, id string) error {
	const op = "delete library"
	unlock := s.lock(id)
	defer unlock()

	lib, ok := s.cached(id)
	if !ok {
		return models.NewOpError(op, id, models.ErrNotFound)
	}
	if err := s.persist(ctx, storage.DeleteLibraryBatches(lib)...); err != nil {
		return models.NewOpError(op, id, err)
	}

	s.commitMu.Lock()
	if err := s.index.DeleteLibrary(lib); err != nil {
		_ = s.index.IndexLibrary(lib)
		s.commitMu.Unlock()
		s.compensate(ctx, op, id, storage.LibraryBatches(lib, false)...)
		return models.NewOpError(op, id, indexFailure(err))
	}
	delete(s.libraries, id)
	s.commitMu.Unlock()

	s.logger.Info("library deleted", zap.String("library_id", id))
	return nil
}

// Restore loads every persisted library into the cache and indexes. Libraries
// already cached are skipped. It returns the number of libraries loaded.
func (s *Store) Restore(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.persistTimeout)
	defer cancel()
	libs, err := s.storage.LoadLibraries(ctx)
	if err != nil {
		return 0, models.NewOpError("restore", "", fmt.Errorf("%w: %w", models.ErrUpstream, err))
	}
	loaded := 0
	for _, lib := range libs {
		unlock := s.lock(lib.ID)
		added, err := s.restoreOne(lib)
		unlock()
		if err != nil {
			return loaded, models.NewOpError("restore", lib.ID, err)
		}
		if added {
			loaded++
		}
	}
	s.logger.Info("libraries restored", zap.Int("libraries", loaded), zap.Int("persisted", len(libs)))
	return loaded, nil
}

func (s *Store) restoreOne(lib *models.Library) (bool, error) {
	if _, ok := s.cached(lib.ID); ok {
		s.logger.Warn("library already cached, skipping restore", zap.String("library_id", lib.ID))
		return false, nil
	}
	unembedded := 0
	lib.Walk(func(_ *models.Document, c *models.TextChunk) {
		if len(c.Embedding) == 0 {
			unembedded++
		}
	})
	if unembedded > 0 {
		return false, fmt.Errorf("%w: %d persisted chunks have no embedding", models.ErrInconsistent, unembedded)
	}
	if err := s.validateLibrary(lib); err != nil {
		return false, err
	}
	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	if err := s.index.IndexLibrary(lib); err != nil {
		_ = s.index.DeleteLibrary(lib)
		return false, indexFailure(err)
	}
	s.libraries[lib.ID] = lib
	return true, nil
}

// Stats reports cache totals, index sizes and persisted row counts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	s.commitMu.RLock()
	st.Libraries = len(s.libraries)
	for _, lib := range s.libraries {
		st.Documents += len(lib.Documents)
		st.Chunks += lib.ChunkCount()
	}
	st.Index = s.index.Stats()
	s.commitMu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, s.persistTimeout)
	defer cancel()
	counts, err := s.storage.Counts(ctx)
	if err != nil {
		return st, models.NewOpError("stats", "", fmt.Errorf("%w: %w", models.ErrUpstream, err))
	}
	st.Persisted = counts
	return st, nil
}

// Close releases the indexes, the embedder and persistence.
func (s *Store) Close() error {
	return errors.Join(s.index.Close(), s.embedder.Close(), s.storage.Close())
}

// lock serializes mutations of one library. Entries are dropped when no caller holds or waits on them.
func (s *Store) lock(id string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &libraryLock{}
		s.locks[id] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.locksMu.Unlock()
	}
}

// cached returns the live cache entry. Callers must hold the library's lock
// and must only modify the entry while holding the commit lock.
func (s *Store) cached(id string) (*models.Library, bool) {
	s.commitMu.RLock()
	defer s.commitMu.RUnlock()
	lib, ok := s.libraries[id]
	return lib, ok
}

func (s *Store) snapshot(id string) *models.Library {
	s.commitMu.RLock()
	defer s.commitMu.RUnlock()
	return s.libraries[id].Clone()
}

// reindex swaps old's index entries for updated's. On failure the old entries are restored.
func (s *Store) reindex(old, updated *models.Library) error {
	if err := s.index.DeleteLibrary(old); err != nil {
		_ = s.index.IndexLibrary(old)
		return err
	}
	if err := s.index.IndexLibrary(updated); err != nil {
		_ = s.index.DeleteLibrary(updated)
		_ = s.index.IndexLibrary(old)
		return err
	}
	return nil
}

// embedLibrary fills in missing embeddings, one EmbedBatch call per document.
func (s *Store) embedLibrary(ctx context.Context, lib *models.Library) error {
	ctx, cancel := context.WithTimeout(ctx, s.embedTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	embedded := 0
	for _, docID := range lib.DocumentIDs() {
		doc := lib.Documents[docID]
		var pending []*models.TextChunk
		for _, chunkID := range doc.ChunkIDs() {
			if c := doc.Chunks[chunkID]; len(c.Embedding) == 0 {
				pending = append(pending, c)
			}
		}
		if len(pending) == 0 {
			continue
		}
		embedded += len(pending)
		g.Go(func() error {
			texts := make([]string, len(pending))
			for i, c := range pending {
				texts[i] = c.Text
			}
			vecs, err := s.embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed document %q: %w", doc.ID, err)
			}
			if len(vecs) != len(pending) {
				return fmt.Errorf("embed document %q: got %d embeddings for %d chunks", doc.ID, len(vecs), len(pending))
			}
			for i, c := range pending {
				c.Embedding = vecs[i]
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: %w", models.ErrUpstream, err)
	}
	if embedded > 0 {
		s.logger.Debug("embedded chunks", zap.String("library_id", lib.ID), zap.Int("chunks", embedded))
	}
	return nil
}

// embedText embeds a single text within the embed timeout.
func (s *Store) embedText(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, s.embedTimeout)
	defer cancel()
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: embed: %w", models.ErrUpstream, err)
	}
	return vec, nil
}

// validateLibrary checks every chunk embedding against the index dimensionality.
func (s *Store) validateLibrary(lib *models.Library) error {
	embs := make([][]float32, 0, lib.ChunkCount())
	lib.Walk(func(_ *models.Document, c *models.TextChunk) {
		embs = append(embs, c.Embedding)
	})
	return s.validateEmbeddings(embs...)
}

func (s *Store) validateEmbeddings(embs ...[]float32) error {
	if len(embs) == 0 {
		return nil
	}
	if err := s.index.ValidateEmbeddings(embs...); err != nil {
		if errors.Is(err, vector.ErrDimensionMismatch) {
			return fmt.Errorf("%w: %w", models.ErrBadRequest, err)
		}
		return fmt.Errorf("%w: %w", models.ErrUpstream, err)
	}
	return nil
}

func (s *Store) persist(ctx context.Context, batches ...storage.Batch) error {
	ctx, cancel := context.WithTimeout(ctx, s.persistTimeout)
	defer cancel()
	if err := s.storage.ExecuteBatches(ctx, batches...); err != nil {
		return fmt.Errorf("%w: persist: %w", models.ErrUpstream, err)
	}
	return nil
}

func (s *Store) persistRows(ctx context.Context, stmt storage.Statement, rows ...storage.Row) error {
	ctx, cancel := context.WithTimeout(ctx, s.persistTimeout)
	defer cancel()
	if err := s.storage.ExecuteBatch(ctx, stmt, rows); err != nil {
		return fmt.Errorf("%w: persist: %w", models.ErrUpstream, err)
	}
	return nil
}

// compensate undoes an already committed persistence change after the index commit failed.
// It runs even if ctx has been cancelled.
func (s *Store) compensate(ctx context.Context, op, id string, batches ...storage.Batch) {
	if err := s.persist(context.WithoutCancel(ctx), batches...); err != nil {
		s.logger.Error("compensating persistence call failed; persisted rows may be ahead of the cache",
			zap.String("op", op), zap.String("id", id), zap.Error(err))
	}
}

func indexFailure(err error) error {
	return fmt.Errorf("%w: index: %w", models.ErrInconsistent, err)
}

// clearStaleEmbeddings drops embeddings of updated chunks whose text changed but
// whose embedding was carried over unchanged from the cached version.
func clearStaleEmbeddings(old, updated *models.Library) {
	updated.Walk(func(doc *models.Document, c *models.TextChunk) {
		prevDoc, ok := old.Documents[doc.ID]
		if !ok {
			return
		}
		prev, ok := prevDoc.Chunks[c.ID]
		if !ok {
			return
		}
		if prev.Text != c.Text && equalEmbeddings(prev.Embedding, c.Embedding) {
			c.Embedding = nil
		}
	})
}

func equalEmbeddings(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// updateBatches diffs updated against old: deletes child-first, then updates and
// inserts parent-first, all in one transaction.
func updateBatches(old, updated *models.Library) []storage.Batch {
	var delChunks, delDocs, updDocs, insDocs, updChunks, insChunks []storage.Row

	for _, docID := range old.DocumentIDs() {
		prevDoc := old.Documents[docID]
		doc, kept := updated.Documents[docID]
		for _, chunkID := range prevDoc.ChunkIDs() {
			if kept {
				if _, ok := doc.Chunks[chunkID]; ok {
					continue
				}
			}
			delChunks = append(delChunks, storage.ChunkRow(old.ID, docID, prevDoc.Chunks[chunkID]))
		}
		if !kept {
			delDocs = append(delDocs, storage.DocumentRow(old.ID, prevDoc))
		}
	}

	for _, docID := range updated.DocumentIDs() {
		doc := updated.Documents[docID]
		prevDoc, existed := old.Documents[docID]
		if existed {
			updDocs = append(updDocs, storage.DocumentRow(updated.ID, doc))
		} else {
			insDocs = append(insDocs, storage.DocumentRow(updated.ID, doc))
		}
		for _, chunkID := range doc.ChunkIDs() {
			row := storage.ChunkRow(updated.ID, docID, doc.Chunks[chunkID])
			if existed {
				if _, ok := prevDoc.Chunks[chunkID]; ok {
					updChunks = append(updChunks, row)
					continue
				}
			}
			insChunks = append(insChunks, row)
		}
	}

	return []storage.Batch{
		{Statement: storage.DeleteChunks, Rows: delChunks},
		{Statement: storage.DeleteDocuments, Rows: delDocs},
		{Statement: storage.UpdateLibraries, Rows: []storage.Row{storage.LibraryRow(updated)}},
		{Statement: storage.UpdateDocuments, Rows: updDocs},
		{Statement: storage.InsertDocuments, Rows: insDocs},
		{Statement: storage.UpdateChunks, Rows: updChunks},
		{Statement: storage.InsertChunks, Rows: insChunks},
	}
}
