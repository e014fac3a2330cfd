package rag

import (
	"context"
	"errors"
	"testing"
)

func TestPointID_Deterministic(t *testing.T) {
	t.Parallel()

	a := pointID("gs://b/a.pdf", 0)
	if a != pointID("gs://b/a.pdf", 0) {
		t.Error("pointID must be stable for the same ref and index")
	}
	if a == pointID("gs://b/a.pdf", 1) || a == pointID("gs://b/c.pdf", 0) {
		t.Error("pointID must differ across chunks and documents")
	}
}

func TestQdrantRetrieve_RejectsReranker(t *testing.T) {
	t.Parallel()

	s := &QdrantCorpusService{}
	_, err := s.Retrieve(context.Background(), RetrievalRequest{
		CorpusID:      "papers__abc",
		Query:         "q",
		RerankerModel: "gemini-2.5-flash",
	})
	if !errors.Is(err, ErrUnsupportedArgument) {
		t.Errorf("expected ErrUnsupportedArgument, got %v", err)
	}
}

func TestExtractText(t *testing.T) {
	t.Parallel()

	got, err := ExtractText("notes.md", []byte("# Title\nbody"))
	if err != nil || got != "# Title\nbody" {
		t.Errorf("plain text: got %q, %v", got, err)
	}
	if _, err := ExtractText("blob.bin", []byte{0xff, 0xfe, 0x00}); err == nil {
		t.Error("expected error for non-UTF-8 binary")
	}
	if _, err := ExtractText("broken.PDF", []byte("not a pdf")); err == nil {
		t.Error("expected error for a malformed PDF")
	}
}

func TestDocumentMetadata_Map(t *testing.T) {
	t.Parallel()

	m := DocumentMetadata{
		Source:             "gs://b/2023-01-15-x.pdf",
		IngestionTimestamp: 1673740800,
		PublicationDate:    "2023-01-15",
		FileType:           "pdf",
	}.Map()
	if m["ingestion_timestamp"] != "2023-01-15T00:00:00Z" {
		t.Errorf("ingestion_timestamp: got %q", m["ingestion_timestamp"])
	}
	if m["publication_date"] != "2023-01-15" || m["file_type"] != "pdf" || m["source"] == "" {
		t.Errorf("unexpected map: %v", m)
	}
}
