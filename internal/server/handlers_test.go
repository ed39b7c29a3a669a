package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hyperjump/librarian/internal/config"
	"github.com/hyperjump/librarian/internal/embedding"
	"github.com/hyperjump/librarian/internal/indexer"
	"github.com/hyperjump/librarian/internal/keyword"
	"github.com/hyperjump/librarian/internal/library"
	"github.com/hyperjump/librarian/internal/models"
	"github.com/hyperjump/librarian/internal/storage"
	"github.com/hyperjump/librarian/internal/vector"
	"go.uber.org/zap"
)

type testServer struct {
	handler  http.Handler
	embedder *embedding.MockEmbedder
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	lsh := vector.NewLSHIndex(1, 1)
	if err := lsh.SetPlanes([][]float32{{1, -1}}); err != nil {
		t.Fatal(err)
	}
	embedder := embedding.NewMockEmbedder(2)
	store := library.New(st, embedder, indexer.NewCoordinator(lsh, keyword.NewInvertedIndex()))
	t.Cleanup(func() { _ = store.Close() })

	cfg := config.Default()
	cfg.Storage.DatabasePath = ":memory:"
	srv := NewServer(store, cfg, zap.NewNop())
	return &testServer{handler: srv.Router(), embedder: embedder}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	r := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, r)
	return w
}

func sampleLibrary() *models.Library {
	return &models.Library{
		ID: "lib1",
		Documents: map[string]*models.Document{
			"d1": {ID: "d1", Chunks: map[string]*models.TextChunk{
				"c1": {ID: "c1", Text: "alpha", Embedding: []float32{1, 0}},
				"c2": {ID: "c2", Text: "beta", Embedding: []float32{0, 1}},
			}},
		},
	}
}

func TestLibraryLifecycle(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/libraries", sampleLibrary())
	if w.Code != http.StatusCreated {
		t.Fatalf("create: got %d %s", w.Code, w.Body.String())
	}
	if w := ts.do(t, http.MethodPost, "/api/v1/libraries", sampleLibrary()); w.Code != http.StatusConflict {
		t.Errorf("duplicate create: got %d", w.Code)
	}

	w = ts.do(t, http.MethodGet, "/api/v1/libraries/lib1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: got %d", w.Code)
	}
	var lib models.Library
	if err := json.NewDecoder(w.Body).Decode(&lib); err != nil {
		t.Fatal(err)
	}
	if len(lib.Documents["d1"].Chunks) != 2 {
		t.Errorf("chunks: got %d", len(lib.Documents["d1"].Chunks))
	}

	w = ts.do(t, http.MethodGet, "/api/v1/libraries", nil)
	var list struct {
		Libraries []models.Library `json:"libraries"`
	}
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list.Libraries) != 1 {
		t.Errorf("list: got %d libraries", len(list.Libraries))
	}

	w = ts.do(t, http.MethodGet, "/api/v1/libraries/lib1/chunks", nil)
	var chunks struct {
		Chunks []models.TextChunk `json:"chunks"`
	}
	if err := json.NewDecoder(w.Body).Decode(&chunks); err != nil {
		t.Fatal(err)
	}
	if len(chunks.Chunks) != 2 || chunks.Chunks[0].ID != "c1" {
		t.Errorf("chunks: got %+v", chunks.Chunks)
	}

	if w := ts.do(t, http.MethodDelete, "/api/v1/libraries/lib1", nil); w.Code != http.StatusOK {
		t.Errorf("delete: got %d", w.Code)
	}
	if w := ts.do(t, http.MethodGet, "/api/v1/libraries/lib1", nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete: got %d", w.Code)
	}
}

func TestUpdateLibrary(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/v1/libraries", sampleLibrary())

	updated := sampleLibrary()
	updated.ID = ""
	updated.Metadata = map[string]string{"owner": "ana"}
	w := ts.do(t, http.MethodPut, "/api/v1/libraries/lib1", updated)
	if w.Code != http.StatusOK {
		t.Fatalf("update: got %d %s", w.Code, w.Body.String())
	}
	var lib models.Library
	_ = json.NewDecoder(w.Body).Decode(&lib)
	if lib.Metadata["owner"] != "ana" {
		t.Errorf("metadata: got %v", lib.Metadata)
	}

	mismatched := sampleLibrary()
	mismatched.ID = "other"
	if w := ts.do(t, http.MethodPut, "/api/v1/libraries/lib1", mismatched); w.Code != http.StatusBadRequest {
		t.Errorf("mismatched id: got %d", w.Code)
	}
	if w := ts.do(t, http.MethodPut, "/api/v1/libraries/nope", sampleLibrary()); w.Code != http.StatusBadRequest {
		t.Errorf("body id differs from path: got %d", w.Code)
	}
	missing := sampleLibrary()
	missing.ID = ""
	if w := ts.do(t, http.MethodPut, "/api/v1/libraries/nope", missing); w.Code != http.StatusNotFound {
		t.Errorf("update missing: got %d", w.Code)
	}
}

func TestChunkRoutes(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/v1/libraries", sampleLibrary())
	ts.do(t, http.MethodPost, "/api/v1/libraries", &models.Library{ID: "empty"})

	w := ts.do(t, http.MethodPost, "/api/v1/libraries/lib1/documents/d1/chunks", models.TextChunk{ID: "c3", Text: "gamma"})
	if w.Code != http.StatusCreated {
		t.Fatalf("add chunk: got %d %s", w.Code, w.Body.String())
	}
	var chunk models.TextChunk
	_ = json.NewDecoder(w.Body).Decode(&chunk)
	if chunk.ID != "c3" || len(chunk.Embedding) != 2 {
		t.Errorf("added chunk: got %+v", chunk)
	}

	if w := ts.do(t, http.MethodPost, "/api/v1/libraries/lib1/documents/zz/chunks", models.TextChunk{Text: "x"}); w.Code != http.StatusNotFound {
		t.Errorf("add to missing document: got %d", w.Code)
	}
	if w := ts.do(t, http.MethodPost, "/api/v1/libraries/empty/documents/d1/chunks", models.TextChunk{Text: "x"}); w.Code != http.StatusBadRequest {
		t.Errorf("add to library without documents: got %d", w.Code)
	}

	w = ts.do(t, http.MethodPut, "/api/v1/libraries/lib1/documents/d1/chunks/c3", models.TextChunk{Text: "delta"})
	if w.Code != http.StatusOK {
		t.Errorf("update chunk: got %d %s", w.Code, w.Body.String())
	}

	if w := ts.do(t, http.MethodDelete, "/api/v1/libraries/lib1/chunks/c3", nil); w.Code != http.StatusOK {
		t.Errorf("delete chunk: got %d", w.Code)
	}
	if w := ts.do(t, http.MethodDelete, "/api/v1/libraries/lib1/chunks/c3", nil); w.Code != http.StatusNotFound {
		t.Errorf("delete chunk twice: got %d", w.Code)
	}
}

func TestSearchRoutes(t *testing.T) {
	ts := newTestServer(t)
	ts.embedder.SetEmbedding("first axis", []float32{1, 0})
	ts.do(t, http.MethodPost, "/api/v1/libraries", sampleLibrary())

	w := ts.do(t, http.MethodPost, "/api/v1/search", models.SearchQuery{QueryText: "first axis", TopK: 3})
	if w.Code != http.StatusOK {
		t.Fatalf("search: got %d %s", w.Code, w.Body.String())
	}
	var resp models.SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Chunk.ID != "c1" {
		t.Errorf("search results: got %+v", resp.Results)
	}

	w = ts.do(t, http.MethodPost, "/api/v1/search/keyword", models.KeywordQuery{Term: "Beta"})
	var kw models.KeywordResponse
	if err := json.NewDecoder(w.Body).Decode(&kw); err != nil {
		t.Fatal(err)
	}
	if len(kw.Results) != 1 || kw.Results[0].Chunk.ID != "c2" {
		t.Errorf("keyword results: got %+v", kw.Results)
	}

	if w := ts.do(t, http.MethodPost, "/api/v1/search", "{not json"); w.Code != http.StatusBadRequest {
		t.Errorf("invalid body: got %d", w.Code)
	}
	if w := ts.do(t, http.MethodPost, "/api/v1/search", models.SearchQuery{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty query: got %d", w.Code)
	}

	ts.embedder.SetError(errors.New("model offline"))
	if w := ts.do(t, http.MethodPost, "/api/v1/search", models.SearchQuery{QueryText: "anything"}); w.Code != http.StatusBadGateway {
		t.Errorf("embedder failure: got %d", w.Code)
	}
}

func TestHealthAndStatus(t *testing.T) {
	ts := newTestServer(t)
	if w := ts.do(t, http.MethodGet, "/health", nil); w.Code != http.StatusOK {
		t.Errorf("health: got %d", w.Code)
	}
	ts.do(t, http.MethodPost, "/api/v1/libraries", sampleLibrary())

	w := ts.do(t, http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out["chunks"] != float64(2) {
		t.Errorf("chunks: got %v", out["chunks"])
	}
	if _, ok := out["config"]; !ok {
		t.Error("status should include config")
	}
	if _, ok := out["disk_usage_bytes"]; ok {
		t.Error("in-memory database has no disk usage")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.NewOpError("get library", "x", models.ErrNotFound), http.StatusNotFound},
		{models.NewOpError("create library", "x", models.ErrConflict), http.StatusConflict},
		{fmt.Errorf("%w: no candidates", models.ErrBadRequest), http.StatusBadRequest},
		{fmt.Errorf("%w: persist: %w", models.ErrUpstream, errors.New("down")), http.StatusBadGateway},
		{models.ErrInconsistent, http.StatusInternalServerError},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
