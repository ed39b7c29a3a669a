package keyword

import (
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/whitespace"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/librarian/internal/models"
)

const (
	// analyzerName splits on whitespace and lower-cases, matching Tokenize.
	analyzerName = "lower_whitespace"

	fieldText      = "text"
	fieldLibraryID = "library_id"
	fieldDocID     = "doc_id"
	fieldChunkID   = "chunk_id"
	fieldSeq       = "seq"
)

// BleveIndex implements KeywordIndex on an in-memory bleve index.
// Each chunk ref is one bleve document whose text field holds its remaining tokens.
type BleveIndex struct {
	mu      sync.Mutex
	index   bleve.Index
	seq     int64
	entries map[string]*bleveEntry
}

type bleveEntry struct {
	ref    models.ChunkRef
	seq    int64
	tokens []string
}

// NewBleveIndex creates a memory-only bleve index.
func NewBleveIndex() (*BleveIndex, error) {
	im, err := buildMapping()
	if err != nil {
		return nil, err
	}
	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index, entries: make(map[string]*bleveEntry)}, nil
}

func buildMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()
	if err := im.AddCustomAnalyzer(analyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     whitespace.Name,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return nil, fmt.Errorf("register analyzer: %w", err)
	}

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = analyzerName
	textFieldMapping.IncludeTermVectors = false
	docMapping.AddFieldMappingsAt(fieldText, textFieldMapping)
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt(fieldLibraryID, keywordFieldMapping)
	docMapping.AddFieldMappingsAt(fieldDocID, keywordFieldMapping)
	docMapping.AddFieldMappingsAt(fieldChunkID, keywordFieldMapping)
	docMapping.AddFieldMappingsAt(fieldSeq, bleve.NewNumericFieldMapping())
	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping
	return im, nil
}

func bleveID(ref models.ChunkRef) string {
	return ref.LibraryID + "\x00" + ref.DocumentID + "\x00" + ref.ChunkID
}

// Add indexes the chunk. Re-adding a ref merges tokens and keeps its original position.
func (b *BleveIndex) Add(libraryID, docID string, chunk *models.TextChunk) error {
	ref := models.ChunkRef{LibraryID: libraryID, DocumentID: docID, ChunkID: chunk.ID}
	tokens := Tokenize(chunk.Text)
	b.mu.Lock()
	defer b.mu.Unlock()
	id := bleveID(ref)
	e, ok := b.entries[id]
	if !ok {
		if len(tokens) == 0 {
			return nil
		}
		e = &bleveEntry{ref: ref, seq: b.seq}
		b.seq++
	}
	merged := mergeTokens(e.tokens, tokens)
	if ok && len(merged) == len(e.tokens) {
		return nil
	}
	e.tokens = merged
	if err := b.indexEntry(id, e); err != nil {
		return err
	}
	b.entries[id] = e
	return nil
}

func (b *BleveIndex) indexEntry(id string, e *bleveEntry) error {
	doc := map[string]interface{}{
		fieldText:      strings.Join(e.tokens, " "),
		fieldLibraryID: e.ref.LibraryID,
		fieldDocID:     e.ref.DocumentID,
		fieldChunkID:   e.ref.ChunkID,
		fieldSeq:       float64(e.seq),
	}
	if err := b.index.Index(id, doc); err != nil {
		return fmt.Errorf("bleve index %q: %w", e.ref.ChunkID, err)
	}
	return nil
}

// Search runs an exact term query on the text field, ordered by first insertion.
func (b *BleveIndex) Search(term string) ([]models.ChunkRef, error) {
	term = NormalizeTerm(term)
	if term == "" {
		return nil, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	ids, err := b.searchLocked(textQuery(term))
	if err != nil {
		return nil, err
	}
	refs := make([]models.ChunkRef, 0, len(ids))
	for _, id := range ids {
		if e, ok := b.entries[id]; ok {
			refs = append(refs, e.ref)
		}
	}
	return refs, nil
}

// DeleteChunk removes term from every document of chunkID.
func (b *BleveIndex) DeleteChunk(term, chunkID string) error {
	return b.deleteTerm(term, fieldChunkID, chunkID)
}

// DeleteLibrary removes term from every document of libraryID.
func (b *BleveIndex) DeleteLibrary(term, libraryID string) error {
	return b.deleteTerm(term, fieldLibraryID, libraryID)
}

func (b *BleveIndex) deleteTerm(term, field, value string) error {
	term = NormalizeTerm(term)
	if term == "" {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	fq := bleve.NewTermQuery(value)
	fq.SetField(field)
	ids, err := b.searchLocked(bleve.NewConjunctionQuery(textQuery(term), fq))
	if err != nil {
		return err
	}
	for _, id := range ids {
		e, ok := b.entries[id]
		if !ok {
			continue
		}
		e.tokens = withoutToken(e.tokens, term)
		if err := b.storeLocked(id, e); err != nil {
			return err
		}
	}
	return nil
}

// RemoveChunk removes the chunk's tokens from its document, deleting it once none remain.
func (b *BleveIndex) RemoveChunk(libraryID, docID string, chunk *models.TextChunk) error {
	id := bleveID(models.ChunkRef{LibraryID: libraryID, DocumentID: docID, ChunkID: chunk.ID})
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[id]
	if !ok {
		return nil
	}
	for _, tok := range Tokenize(chunk.Text) {
		e.tokens = withoutToken(e.tokens, tok)
	}
	return b.storeLocked(id, e)
}

// RemoveLibraryChunk removes the library's refs under each token of chunk.Text.
func (b *BleveIndex) RemoveLibraryChunk(libraryID string, chunk *models.TextChunk) error {
	for _, tok := range Tokenize(chunk.Text) {
		if err := b.DeleteLibrary(tok, libraryID); err != nil {
			return err
		}
	}
	return nil
}

// Terms returns the number of distinct tokens across indexed documents.
func (b *BleveIndex) Terms() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	seen := make(map[string]struct{})
	for _, e := range b.entries {
		for _, t := range e.tokens {
			seen[t] = struct{}{}
		}
	}
	return len(seen)
}

// DocCount returns the number of bleve documents.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

// storeLocked re-indexes e, or deletes it when no tokens remain.
func (b *BleveIndex) storeLocked(id string, e *bleveEntry) error {
	if len(e.tokens) > 0 {
		return b.indexEntry(id, e)
	}
	if err := b.index.Delete(id); err != nil {
		return fmt.Errorf("bleve delete %q: %w", e.ref.ChunkID, err)
	}
	delete(b.entries, id)
	return nil
}

func (b *BleveIndex) searchLocked(q blevequery.Query) ([]string, error) {
	if len(b.entries) == 0 {
		return nil, nil
	}
	req := bleve.NewSearchRequest(q)
	req.Size = len(b.entries)
	req.SortBy([]string{fieldSeq})
	results, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	ids := make([]string, len(results.Hits))
	for i, hit := range results.Hits {
		ids[i] = hit.ID
	}
	return ids, nil
}

func textQuery(term string) blevequery.Query {
	q := bleve.NewTermQuery(term)
	q.SetField(fieldText)
	return q
}

func mergeTokens(have, add []string) []string {
	seen := make(map[string]struct{}, len(have))
	out := append([]string(nil), have...)
	for _, t := range have {
		seen[t] = struct{}{}
	}
	for _, t := range add {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

func withoutToken(tokens []string, term string) []string {
	out := tokens[:0]
	for _, t := range tokens {
		if t != term {
			out = append(out, t)
		}
	}
	return out
}
