// Package models defines the library aggregate (libraries, documents, chunks) and search types.
package models

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// TextChunk is the atomic indexed unit: a piece of text and its embedding.
// Embedding is empty until computed.
type TextChunk struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Embedding []float32         `json:"embedding,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Document owns its chunks, keyed by chunk ID.
type Document struct {
	ID       string                `json:"id"`
	Chunks   map[string]*TextChunk `json:"chunks"`
	Metadata map[string]string     `json:"metadata,omitempty"`
}

// Library owns its documents, keyed by document ID.
type Library struct {
	ID        string               `json:"id"`
	Documents map[string]*Document `json:"documents"`
	Metadata  map[string]string    `json:"metadata,omitempty"`
}

// Clone returns a deep copy of the chunk.
func (c *TextChunk) Clone() *TextChunk {
	if c == nil {
		return nil
	}
	out := &TextChunk{ID: c.ID, Text: c.Text, Metadata: cloneMetadata(c.Metadata)}
	if c.Embedding != nil {
		out.Embedding = make([]float32, len(c.Embedding))
		copy(out.Embedding, c.Embedding)
	}
	return out
}

// Clone returns a deep copy of the document and its chunks.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{
		ID:       d.ID,
		Chunks:   make(map[string]*TextChunk, len(d.Chunks)),
		Metadata: cloneMetadata(d.Metadata),
	}
	for id, c := range d.Chunks {
		out.Chunks[id] = c.Clone()
	}
	return out
}

// Clone returns a deep copy of the library.
func (l *Library) Clone() *Library {
	if l == nil {
		return nil
	}
	out := &Library{
		ID:        l.ID,
		Documents: make(map[string]*Document, len(l.Documents)),
		Metadata:  cloneMetadata(l.Metadata),
	}
	for id, d := range l.Documents {
		out.Documents[id] = d.Clone()
	}
	return out
}

// Normalize fills missing IDs and checks that every map key agrees with the ID of
// the entry stored under it. A library without an ID gets a generated one.
func (l *Library) Normalize() error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Documents == nil {
		l.Documents = make(map[string]*Document)
	}
	for key, doc := range l.Documents {
		if doc == nil {
			return fmt.Errorf("document %q is null", key)
		}
		if doc.ID == "" {
			doc.ID = key
		}
		if doc.ID != key {
			return fmt.Errorf("document key %q does not match id %q", key, doc.ID)
		}
		if err := doc.normalize(); err != nil {
			return err
		}
	}
	return nil
}

func (d *Document) normalize() error {
	if d.Chunks == nil {
		d.Chunks = make(map[string]*TextChunk)
	}
	for key, c := range d.Chunks {
		if c == nil {
			return fmt.Errorf("chunk %q in document %q is null", key, d.ID)
		}
		if c.ID == "" {
			c.ID = key
		}
		if c.ID != key {
			return fmt.Errorf("chunk key %q in document %q does not match id %q", key, d.ID, c.ID)
		}
	}
	return nil
}

// DocumentIDs returns document IDs in sorted order.
func (l *Library) DocumentIDs() []string {
	ids := make([]string, 0, len(l.Documents))
	for id := range l.Documents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ChunkIDs returns chunk IDs in sorted order.
func (d *Document) ChunkIDs() []string {
	ids := make([]string, 0, len(d.Chunks))
	for id := range d.Chunks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FindChunk returns the first document (in document ID order) holding chunkID.
func (l *Library) FindChunk(chunkID string) (*Document, *TextChunk, bool) {
	for _, docID := range l.DocumentIDs() {
		doc := l.Documents[docID]
		if c, ok := doc.Chunks[chunkID]; ok {
			return doc, c, true
		}
	}
	return nil, nil, false
}

// Walk calls fn for every chunk in document then chunk ID order.
func (l *Library) Walk(fn func(doc *Document, chunk *TextChunk)) {
	for _, docID := range l.DocumentIDs() {
		doc := l.Documents[docID]
		for _, chunkID := range doc.ChunkIDs() {
			fn(doc, doc.Chunks[chunkID])
		}
	}
}

// ChunkCount returns the number of chunks across all documents.
func (l *Library) ChunkCount() int {
	n := 0
	for _, d := range l.Documents {
		n += len(d.Chunks)
	}
	return n
}

func cloneMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
