package models

import (
	"reflect"
	"testing"
)

func testLibrary() *Library {
	return &Library{
		ID: "lib1",
		Documents: map[string]*Document{
			"d2": {Chunks: map[string]*TextChunk{"c3": {Text: "gamma"}}},
			"d1": {ID: "d1", Chunks: map[string]*TextChunk{
				"c2": {Text: "beta", Embedding: []float32{0, 1}},
				"c1": {ID: "c1", Text: "alpha", Embedding: []float32{1, 0}},
			}},
		},
		Metadata: map[string]string{"name": "test"},
	}
}

func TestLibrary_Normalize(t *testing.T) {
	lib := testLibrary()
	if err := lib.Normalize(); err != nil {
		t.Fatal(err)
	}
	if lib.Documents["d2"].ID != "d2" {
		t.Errorf("document id not filled from key: %q", lib.Documents["d2"].ID)
	}
	if lib.Documents["d1"].Chunks["c2"].ID != "c2" {
		t.Errorf("chunk id not filled from key")
	}

	noID := &Library{}
	if err := noID.Normalize(); err != nil {
		t.Fatal(err)
	}
	if noID.ID == "" || noID.Documents == nil {
		t.Errorf("expected generated id and empty documents, got %+v", noID)
	}
}

func TestLibrary_NormalizeRejectsMismatchedKeys(t *testing.T) {
	tests := []struct {
		name string
		lib  *Library
	}{
		{"document key", &Library{Documents: map[string]*Document{"a": {ID: "b"}}}},
		{"chunk key", &Library{Documents: map[string]*Document{"a": {Chunks: map[string]*TextChunk{"x": {ID: "y"}}}}}},
		{"null document", &Library{Documents: map[string]*Document{"a": nil}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.lib.Normalize(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLibrary_CloneIsDeep(t *testing.T) {
	lib := testLibrary()
	_ = lib.Normalize()
	cp := lib.Clone()
	if !reflect.DeepEqual(lib, cp) {
		t.Fatal("clone differs from original")
	}
	cp.Documents["d1"].Chunks["c1"].Embedding[0] = 42
	cp.Documents["d1"].Chunks["c1"].Text = "changed"
	cp.Metadata["name"] = "other"
	delete(cp.Documents, "d2")
	if lib.Documents["d1"].Chunks["c1"].Embedding[0] != 1 || lib.Documents["d1"].Chunks["c1"].Text != "alpha" {
		t.Error("mutating clone changed original chunk")
	}
	if lib.Metadata["name"] != "test" || len(lib.Documents) != 2 {
		t.Error("mutating clone changed original library")
	}
}

func TestLibrary_FindChunkAndWalk(t *testing.T) {
	lib := testLibrary()
	_ = lib.Normalize()
	doc, c, ok := lib.FindChunk("c3")
	if !ok || doc.ID != "d2" || c.Text != "gamma" {
		t.Errorf("FindChunk(c3) = %v %v %v", doc, c, ok)
	}
	if _, _, ok := lib.FindChunk("missing"); ok {
		t.Error("FindChunk(missing) should fail")
	}
	var order []string
	lib.Walk(func(_ *Document, c *TextChunk) { order = append(order, c.ID) })
	if !reflect.DeepEqual(order, []string{"c1", "c2", "c3"}) {
		t.Errorf("Walk order = %v", order)
	}
	if lib.ChunkCount() != 3 {
		t.Errorf("ChunkCount = %d", lib.ChunkCount())
	}
}

func TestRefSet_InsertionOrder(t *testing.T) {
	s := NewRefSet()
	a := ChunkRef{"l", "d", "a"}
	b := ChunkRef{"l", "d", "b"}
	c := ChunkRef{"l", "d", "c"}
	s.Add(b)
	s.Add(a)
	s.Add(c)
	if s.Add(b) {
		t.Error("re-adding should report false")
	}
	if got := s.Refs(); !reflect.DeepEqual(got, []ChunkRef{b, a, c}) {
		t.Errorf("Refs() = %v", got)
	}
	if !s.Remove(a) || s.Remove(a) {
		t.Error("Remove should succeed once")
	}
	n := s.RemoveFunc(func(r ChunkRef) bool { return r.ChunkID == "c" })
	if n != 1 || s.Len() != 1 || !s.Contains(b) {
		t.Errorf("after RemoveFunc: n=%d len=%d", n, s.Len())
	}
}
