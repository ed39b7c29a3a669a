// Package storage persists libraries, documents and chunks as batched parameterized row operations.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/librarian/internal/models"
)

// Statement names a parameterized row operation.
type Statement string

// Supported statements.
const (
	InsertLibraries Statement = "insert_libraries"
	InsertDocuments Statement = "insert_documents"
	InsertChunks    Statement = "insert_chunks"
	UpdateLibraries Statement = "update_libraries"
	UpdateDocuments Statement = "update_documents"
	UpdateChunks    Statement = "update_chunks"
	DeleteLibraries Statement = "delete_libraries"
	DeleteDocuments Statement = "delete_documents"
	DeleteChunks    Statement = "delete_chunks"
)

var (
	// ErrUnknownStatement is returned for a statement name not listed above.
	ErrUnknownStatement = errors.New("unknown statement")
	// ErrRowNotFound is returned when an update matches no row.
	ErrRowNotFound = errors.New("row not found")
)

// Row is one parameter set. Which fields are read depends on the statement:
// libraries use ID and Metadata; documents add LibraryID; chunks add DocumentID, Text and Embedding.
// Deletes only read the key fields.
type Row struct {
	ID         string
	LibraryID  string
	DocumentID string
	Text       string
	Embedding  []float32
	Metadata   map[string]string
}

// Batch is a statement applied to many rows.
type Batch struct {
	Statement Statement
	Rows      []Row
}

// Counts reports persisted row totals.
type Counts struct {
	Libraries int64 `json:"libraries"`
	Documents int64 `json:"documents"`
	Chunks    int64 `json:"chunks"`
}

// Storage is the persistence capability consumed by the library store.
type Storage interface {
	// ExecuteBatch applies stmt to every row in one transaction.
	ExecuteBatch(ctx context.Context, stmt Statement, rows []Row) error
	// ExecuteBatches applies the batches in order in one transaction. Empty batches are skipped.
	ExecuteBatches(ctx context.Context, batches ...Batch) error
	// Fetch runs a read-only query for diagnostics. Placeholders are written as '?'.
	Fetch(ctx context.Context, query string, args ...any) ([]map[string]any, error)
	// LoadLibraries reads every persisted library with its documents and chunks.
	LoadLibraries(ctx context.Context) ([]*models.Library, error)
	Counts(ctx context.Context) (Counts, error)
	Close() error
}

// LibraryRow returns the row for a library.
func LibraryRow(lib *models.Library) Row {
	return Row{ID: lib.ID, Metadata: lib.Metadata}
}

// DocumentRow returns the row for a document of libraryID.
func DocumentRow(libraryID string, doc *models.Document) Row {
	return Row{ID: doc.ID, LibraryID: libraryID, Metadata: doc.Metadata}
}

// ChunkRow returns the row for a chunk of (libraryID, docID).
func ChunkRow(libraryID, docID string, c *models.TextChunk) Row {
	return Row{
		ID:         c.ID,
		LibraryID:  libraryID,
		DocumentID: docID,
		Text:       c.Text,
		Embedding:  c.Embedding,
		Metadata:   c.Metadata,
	}
}

// LibraryBatches returns insert (or update) batches for a whole library in dependency order:
// library, then documents, then chunks.
func LibraryBatches(lib *models.Library, update bool) []Batch {
	libStmt, docStmt, chunkStmt := InsertLibraries, InsertDocuments, InsertChunks
	if update {
		libStmt, docStmt, chunkStmt = UpdateLibraries, UpdateDocuments, UpdateChunks
	}
	var docs, chunks []Row
	for _, docID := range lib.DocumentIDs() {
		doc := lib.Documents[docID]
		docs = append(docs, DocumentRow(lib.ID, doc))
		for _, chunkID := range doc.ChunkIDs() {
			chunks = append(chunks, ChunkRow(lib.ID, docID, doc.Chunks[chunkID]))
		}
	}
	return []Batch{
		{Statement: libStmt, Rows: []Row{LibraryRow(lib)}},
		{Statement: docStmt, Rows: docs},
		{Statement: chunkStmt, Rows: chunks},
	}
}

// DeleteLibraryBatches returns delete batches for a whole library, child-first.
func DeleteLibraryBatches(lib *models.Library) []Batch {
	var docs, chunks []Row
	for _, docID := range lib.DocumentIDs() {
		doc := lib.Documents[docID]
		docs = append(docs, DocumentRow(lib.ID, doc))
		for _, chunkID := range doc.ChunkIDs() {
			chunks = append(chunks, ChunkRow(lib.ID, docID, doc.Chunks[chunkID]))
		}
	}
	return []Batch{
		{Statement: DeleteChunks, Rows: chunks},
		{Statement: DeleteDocuments, Rows: docs},
		{Statement: DeleteLibraries, Rows: []Row{LibraryRow(lib)}},
	}
}
