package models

import (
	"fmt"
	"strings"
)

// SearchQuery is a semantic search request.
type SearchQuery struct {
	QueryText string `json:"query"`
	TopK      int    `json:"top_k,omitempty"`
	LibraryID string `json:"library_id,omitempty"` // optional: restrict candidates to one library
}

// Validate checks the query and normalizes TopK into [1, maxTopK], using defaultTopK when unset.
func (q *SearchQuery) Validate(defaultTopK, maxTopK int) error {
	if strings.TrimSpace(q.QueryText) == "" {
		return fmt.Errorf("%w: query cannot be empty", ErrBadRequest)
	}
	if q.TopK < 0 {
		return fmt.Errorf("%w: top_k must not be negative", ErrBadRequest)
	}
	if q.TopK == 0 {
		q.TopK = defaultTopK
	}
	if maxTopK > 0 && q.TopK > maxTopK {
		q.TopK = maxTopK
	}
	return nil
}

// KeywordQuery is an exact keyword lookup request.
type KeywordQuery struct {
	Term      string `json:"term"`
	LibraryID string `json:"library_id,omitempty"`
}

// Validate checks that a term is present.
func (q *KeywordQuery) Validate() error {
	if strings.TrimSpace(q.Term) == "" {
		return fmt.Errorf("%w: term cannot be empty", ErrBadRequest)
	}
	return nil
}
