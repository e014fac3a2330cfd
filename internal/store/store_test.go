package store

import (
	"context"
	"testing"

	"github.com/54b3r/scout-go/internal/rag"
	"github.com/54b3r/scout-go/internal/tracking"
)

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_EmptyReadsNotFound(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	rec, found, err := s.Read(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if found || rec != nil {
		t.Errorf("want not found, got found=%v rec=%v", found, rec)
	}
}

func TestStore_WriteAndRead(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	rec := tracking.NewRecord("corpus-1")
	rec.Add("gs://b/a.pdf", &rag.DocumentMetadata{Source: "gs://b/a.pdf", PublicationYear: 2023, FileType: "pdf"})
	rec.Add("gs://b/b.pdf", nil)

	if err := s.Write(ctx, rec); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, found, err := s.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !found {
		t.Fatal("want found")
	}
	if got.CorpusID != "corpus-1" {
		t.Errorf("corpus id: want corpus-1, got %q", got.CorpusID)
	}
	if got.Len() != 2 || !got.Has("gs://b/a.pdf") || !got.Has("gs://b/b.pdf") {
		t.Errorf("documents: got %v", got.Refs())
	}
	if md := got.Metadata["gs://b/a.pdf"]; md.PublicationYear != 2023 || md.FileType != "pdf" {
		t.Errorf("metadata: got %+v", md)
	}
	if _, ok := got.Metadata["gs://b/b.pdf"]; ok {
		t.Error("want no metadata for gs://b/b.pdf")
	}
}

func TestStore_WriteReplaces(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	first := tracking.NewRecord("corpus-1")
	first.Add("gs://b/old.pdf", nil)
	if err := s.Write(ctx, first); err != nil {
		t.Fatalf("write first: %v", err)
	}

	second := tracking.NewRecord("corpus-2")
	second.Add("gs://b/new.pdf", nil)
	if err := s.Write(ctx, second); err != nil {
		t.Fatalf("write second: %v", err)
	}

	got, _, err := s.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.CorpusID != "corpus-2" || got.Has("gs://b/old.pdf") || !got.Has("gs://b/new.pdf") {
		t.Errorf("want only corpus-2/new.pdf, got %q %v", got.CorpusID, got.Refs())
	}
}

func TestStore_EmptyRecordWithBindingIsFound(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Write(ctx, tracking.NewRecord("corpus-1")); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, found, err := s.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !found || got.CorpusID != "corpus-1" || got.Len() != 0 {
		t.Errorf("got found=%v rec=%+v", found, got)
	}
}

func TestStore_Reset(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	rec := tracking.NewRecord("corpus-1")
	rec.Add("gs://b/a.pdf", nil)
	if err := s.Write(ctx, rec); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, found, err := s.Read(ctx); err != nil || found {
		t.Errorf("after reset: want not found, got found=%v err=%v", found, err)
	}
	// Resetting an empty store is fine.
	if err := s.Reset(ctx); err != nil {
		t.Errorf("second reset: %v", err)
	}
}
