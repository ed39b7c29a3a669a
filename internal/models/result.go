package models

// SearchResult is a single reranked hit.
type SearchResult struct {
	Chunk      *TextChunk `json:"chunk"`
	Similarity float64    `json:"similarity"`
	LibraryID  string     `json:"library_id"`
	DocumentID string     `json:"document_id"`
	Rank       int        `json:"rank"`
}

// SearchResponse is the response for a semantic search request.
type SearchResponse struct {
	Results    []*SearchResult `json:"results"`
	Candidates int             `json:"candidates"` // size of the approximate candidate set before reranking
	QueryTime  int64           `json:"query_time_ms"`
	Query      string          `json:"query"`
}

// KeywordHit is a chunk matched by the inverted index.
type KeywordHit struct {
	Chunk      *TextChunk `json:"chunk"`
	LibraryID  string     `json:"library_id"`
	DocumentID string     `json:"document_id"`
}

// KeywordResponse is the response for a keyword search request.
type KeywordResponse struct {
	Results []*KeywordHit `json:"results"`
	Term    string        `json:"term"`
}
