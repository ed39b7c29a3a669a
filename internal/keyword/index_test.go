package keyword

import (
	"reflect"
	"testing"

	"github.com/hyperjump/librarian/internal/models"
)

func backends(t *testing.T) map[string]KeywordIndex {
	t.Helper()
	out := make(map[string]KeywordIndex)
	for _, kind := range []string{BackendMemory, BackendBleve} {
		idx, err := NewKeywordIndex(kind)
		if err != nil {
			t.Fatalf("NewKeywordIndex(%s): %v", kind, err)
		}
		t.Cleanup(func() { _ = idx.Close() })
		out[kind] = idx
	}
	return out
}

func ref(lib, doc, chunk string) models.ChunkRef {
	return models.ChunkRef{LibraryID: lib, DocumentID: doc, ChunkID: chunk}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Alpha beta", []string{"alpha", "beta"}},
		{"  the The\tTHE\n", []string{"the"}},
		{"", []string{}},
		{"running runs", []string{"running", "runs"}},
	}
	for _, tt := range tests {
		if got := Tokenize(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Tokenize(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewKeywordIndex_Unknown(t *testing.T) {
	if _, err := NewKeywordIndex("solr"); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestKeywordIndex_AlphaBeta(t *testing.T) {
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_ = idx.Add("lib", "doc", &models.TextChunk{ID: "c1", Text: "alpha"})
			_ = idx.Add("lib", "doc", &models.TextChunk{ID: "c2", Text: "beta"})
			got, err := idx.Search("alpha")
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, []models.ChunkRef{ref("lib", "doc", "c1")}) {
				t.Errorf("Search(alpha) = %v", got)
			}
			got, _ = idx.Search("ALPHA")
			if len(got) != 1 {
				t.Errorf("search should case-fold, got %v", got)
			}
			got, _ = idx.Search("gamma")
			if len(got) != 0 {
				t.Errorf("Search(gamma) = %v", got)
			}
		})
	}
}

func TestKeywordIndex_InsertionOrder(t *testing.T) {
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_ = idx.Add("lib", "d", &models.TextChunk{ID: "z", Text: "shared one"})
			_ = idx.Add("lib", "d", &models.TextChunk{ID: "a", Text: "shared two"})
			_ = idx.Add("lib", "d", &models.TextChunk{ID: "m", Text: "Shared three"})
			got, _ := idx.Search("shared")
			want := []models.ChunkRef{ref("lib", "d", "z"), ref("lib", "d", "a"), ref("lib", "d", "m")}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("Search(shared) = %v, want %v", got, want)
			}
		})
	}
}

func TestKeywordIndex_TermKeyedDeletion(t *testing.T) {
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_ = idx.Add("lib1", "d", &models.TextChunk{ID: "c1", Text: "red green"})
			_ = idx.Add("lib2", "d", &models.TextChunk{ID: "c2", Text: "red blue"})

			if err := idx.DeleteChunk("red", "c1"); err != nil {
				t.Fatal(err)
			}
			got, _ := idx.Search("red")
			if !reflect.DeepEqual(got, []models.ChunkRef{ref("lib2", "d", "c2")}) {
				t.Errorf("after DeleteChunk: %v", got)
			}
			// Only the given term is affected.
			if got, _ := idx.Search("green"); len(got) != 1 {
				t.Errorf("green should still match c1, got %v", got)
			}

			if err := idx.DeleteLibrary("red", "lib2"); err != nil {
				t.Fatal(err)
			}
			if got, _ := idx.Search("red"); len(got) != 0 {
				t.Errorf("after DeleteLibrary: %v", got)
			}
			if idx.Terms() != 2 {
				t.Errorf("Terms = %d, want 2 (green, blue)", idx.Terms())
			}
		})
	}
}

func TestKeywordIndex_RemoveChunk(t *testing.T) {
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c1 := &models.TextChunk{ID: "c1", Text: "quick brown fox"}
			c2 := &models.TextChunk{ID: "c1", Text: "quick red fox"}
			_ = idx.Add("lib1", "d", c1)
			_ = idx.Add("lib2", "d", c2)
			if err := idx.RemoveChunk("lib1", "d", c1); err != nil {
				t.Fatal(err)
			}
			got, _ := idx.Search("quick")
			if !reflect.DeepEqual(got, []models.ChunkRef{ref("lib2", "d", "c1")}) {
				t.Errorf("Search(quick) = %v", got)
			}
			if got, _ := idx.Search("brown"); len(got) != 0 {
				t.Errorf("Search(brown) = %v", got)
			}
			if err := idx.RemoveLibraryChunk("lib2", c2); err != nil {
				t.Fatal(err)
			}
			if idx.Terms() != 0 {
				t.Errorf("Terms = %d, want 0", idx.Terms())
			}
		})
	}
}

func TestKeywordIndex_AddIsIdempotent(t *testing.T) {
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c := &models.TextChunk{ID: "c1", Text: "one two two"}
			_ = idx.Add("lib", "d", c)
			_ = idx.Add("lib", "d", c)
			for _, term := range []string{"one", "two"} {
				got, _ := idx.Search(term)
				if len(got) != 1 {
					t.Errorf("Search(%s) = %v", term, got)
				}
			}
			if idx.Terms() != 2 {
				t.Errorf("Terms = %d", idx.Terms())
			}
		})
	}
}
