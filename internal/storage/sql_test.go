package storage

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hyperjump/librarian/internal/models"
)

func newTestStorage(t *testing.T) *SQLStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "sub", "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleLibrary() *models.Library {
	return &models.Library{
		ID:       "lib1",
		Metadata: map[string]string{"owner": "ana"},
		Documents: map[string]*models.Document{
			"d1": {ID: "d1", Metadata: map[string]string{"title": "One"}, Chunks: map[string]*models.TextChunk{
				"c1": {ID: "c1", Text: "alpha", Embedding: []float32{1, 0}},
				"c2": {ID: "c2", Text: "beta", Embedding: []float32{0, 1}, Metadata: map[string]string{"page": "2"}},
			}},
			"d2": {ID: "d2", Chunks: map[string]*models.TextChunk{}},
		},
	}
}

func TestSQLStorage_RoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	lib := sampleLibrary()

	if err := s.ExecuteBatches(ctx, LibraryBatches(lib, false)...); err != nil {
		t.Fatal(err)
	}
	libs, err := s.LoadLibraries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(libs) != 1 {
		t.Fatalf("loaded %d libraries", len(libs))
	}
	if !reflect.DeepEqual(libs[0], lib) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", libs[0], lib)
	}

	counts, err := s.Counts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts != (Counts{Libraries: 1, Documents: 2, Chunks: 2}) {
		t.Errorf("Counts = %+v", counts)
	}
}

func TestSQLStorage_Update(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	lib := sampleLibrary()
	_ = s.ExecuteBatches(ctx, LibraryBatches(lib, false)...)

	lib.Metadata["owner"] = "bo"
	lib.Documents["d1"].Chunks["c1"].Text = "ALPHA"
	lib.Documents["d1"].Chunks["c1"].Embedding = []float32{0.5, 0.5}
	if err := s.ExecuteBatches(ctx, LibraryBatches(lib, true)...); err != nil {
		t.Fatal(err)
	}
	libs, _ := s.LoadLibraries(ctx)
	if !reflect.DeepEqual(libs[0], lib) {
		t.Errorf("after update got %+v", libs[0])
	}

	err := s.ExecuteBatch(ctx, UpdateChunks, []Row{{ID: "missing", LibraryID: "lib1", DocumentID: "d1"}})
	if !errors.Is(err, ErrRowNotFound) {
		t.Errorf("update of missing row: got %v", err)
	}
}

func TestSQLStorage_DeleteChildFirst(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	lib := sampleLibrary()
	_ = s.ExecuteBatches(ctx, LibraryBatches(lib, false)...)

	if err := s.ExecuteBatch(ctx, DeleteChunks, []Row{ChunkRow("lib1", "d1", lib.Documents["d1"].Chunks["c1"])}); err != nil {
		t.Fatal(err)
	}
	counts, _ := s.Counts(ctx)
	if counts.Chunks != 1 {
		t.Errorf("chunks after single delete = %d", counts.Chunks)
	}
	if err := s.ExecuteBatches(ctx, DeleteLibraryBatches(lib)...); err != nil {
		t.Fatal(err)
	}
	counts, _ = s.Counts(ctx)
	if counts != (Counts{}) {
		t.Errorf("Counts after delete = %+v", counts)
	}
}

func TestSQLStorage_BatchIsAtomic(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	err := s.ExecuteBatches(ctx,
		Batch{Statement: InsertLibraries, Rows: []Row{{ID: "a"}}},
		Batch{Statement: InsertLibraries, Rows: []Row{{ID: "b"}, {ID: "b"}}},
	)
	if err == nil {
		t.Fatal("expected duplicate key error")
	}
	counts, _ := s.Counts(ctx)
	if counts.Libraries != 0 {
		t.Errorf("failed transaction left %d libraries", counts.Libraries)
	}
}

func TestSQLStorage_UnknownStatement(t *testing.T) {
	s := newTestStorage(t)
	err := s.ExecuteBatch(context.Background(), Statement("drop_everything"), []Row{{ID: "x"}})
	if !errors.Is(err, ErrUnknownStatement) {
		t.Errorf("got %v", err)
	}
}

func TestSQLStorage_Fetch(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	_ = s.ExecuteBatches(ctx, LibraryBatches(sampleLibrary(), false)...)
	rows, err := s.Fetch(ctx, `SELECT id, text FROM chunks WHERE library_id = ? ORDER BY id`, "lib1")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows", len(rows))
	}
	if asString(rows[0]["id"]) != "c1" || asString(rows[1]["text"]) != "beta" {
		t.Errorf("rows = %v", rows)
	}
}

// asString accepts either representation a driver may use for TEXT columns.
func asString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	}
	return ""
}

func TestSQLStorage_InMemory(t *testing.T) {
	s, err := New(DriverSQLite, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	ctx := context.Background()
	if err := s.ExecuteBatch(ctx, InsertLibraries, []Row{{ID: "x"}}); err != nil {
		t.Fatal(err)
	}
	counts, err := s.Counts(ctx)
	if err != nil || counts.Libraries != 1 {
		t.Errorf("Counts = %+v, %v", counts, err)
	}
	if s.Driver() != DriverSQLite {
		t.Errorf("Driver = %s", s.Driver())
	}
}

func TestNew_UnknownDriver(t *testing.T) {
	if _, err := New("oracle", ""); err == nil {
		t.Error("expected error")
	}
}

func TestDialect_Rebind(t *testing.T) {
	q := `UPDATE chunks SET text = ? WHERE library_id = ? AND id = ?`
	if got := sqliteDialect.rebind(q); got != q {
		t.Errorf("sqlite rebind changed query: %s", got)
	}
	want := `UPDATE chunks SET text = $1 WHERE library_id = $2 AND id = $3`
	if got := postgresDialect.rebind(q); got != want {
		t.Errorf("postgres rebind = %s", got)
	}
}
