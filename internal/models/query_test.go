package models

import (
	"errors"
	"testing"
)

func TestSearchQuery_Validate(t *testing.T) {
	tests := []struct {
		name     string
		query    *SearchQuery
		wantErr  bool
		wantTopK int
	}{
		{"empty query", &SearchQuery{QueryText: ""}, true, 0},
		{"blank query", &SearchQuery{QueryText: "   "}, true, 0},
		{"negative top_k", &SearchQuery{QueryText: "x", TopK: -1}, true, 0},
		{"sets default top_k", &SearchQuery{QueryText: "x"}, false, 5},
		{"keeps top_k", &SearchQuery{QueryText: "x", TopK: 3}, false, 3},
		{"caps top_k", &SearchQuery{QueryText: "x", TopK: 500}, false, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate(5, 100)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrBadRequest) {
					t.Errorf("expected ErrBadRequest, got %v", err)
				}
				return
			}
			if tt.query.TopK != tt.wantTopK {
				t.Errorf("TopK = %d, want %d", tt.query.TopK, tt.wantTopK)
			}
		})
	}
}

func TestKeywordQuery_Validate(t *testing.T) {
	if err := (&KeywordQuery{Term: ""}).Validate(); !errors.Is(err, ErrBadRequest) {
		t.Errorf("empty term: got %v", err)
	}
	if err := (&KeywordQuery{Term: "alpha"}).Validate(); err != nil {
		t.Errorf("valid term: got %v", err)
	}
}

func TestOpError(t *testing.T) {
	err := NewOpError("get library", "lib1", ErrNotFound)
	if !errors.Is(err, ErrNotFound) {
		t.Error("OpError should unwrap to ErrNotFound")
	}
	if got := err.Error(); got != `get library "lib1": not found` {
		t.Errorf("Error() = %q", got)
	}
	if NewOpError("op", "id", nil) != nil {
		t.Error("nil error should stay nil")
	}
}
