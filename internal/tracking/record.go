// Package tracking records which documents have been ingested into which
// corpus, so ingestion can skip work that is already done.
//
// A record is only trustworthy for the corpus ID it is bound to. Live
// enumeration of the corpus is the source of truth whenever it is
// available; the persisted copies (object storage first, a local SQLite
// database as fallback) and an in-process copy cover the cases where it
// is not.
package tracking

import (
	"maps"
	"slices"
	"strings"

	"github.com/54b3r/scout-go/internal/rag"
)

// Record is the set of ingested document references for one corpus.
type Record struct {
	// CorpusID is the corpus the record describes. Empty means unbound.
	CorpusID string

	// Documents is the set of ingested references.
	Documents map[string]struct{}

	// Metadata holds the metadata derived for each reference at ingestion.
	Metadata map[string]rag.DocumentMetadata
}

// NewRecord returns an empty record bound to corpusID.
func NewRecord(corpusID string) *Record {
	return &Record{
		CorpusID:  corpusID,
		Documents: make(map[string]struct{}),
		Metadata:  make(map[string]rag.DocumentMetadata),
	}
}

// Has reports whether ref has been ingested.
func (r *Record) Has(ref string) bool {
	_, ok := r.Documents[ref]
	return ok
}

// Add marks ref as ingested. md is stored when non-nil.
func (r *Record) Add(ref string, md *rag.DocumentMetadata) {
	r.Documents[ref] = struct{}{}
	if md != nil {
		r.Metadata[ref] = *md
	}
}

// Len returns the number of tracked references.
func (r *Record) Len() int { return len(r.Documents) }

// Refs returns the tracked references in sorted order.
func (r *Record) Refs() []string {
	return slices.Sorted(maps.Keys(r.Documents))
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	return &Record{
		CorpusID:  r.CorpusID,
		Documents: maps.Clone(r.Documents),
		Metadata:  maps.Clone(r.Metadata),
	}
}

// Union adds every document and metadata entry of other to r. Existing
// metadata entries win.
func (r *Record) Union(other *Record) {
	for ref := range other.Documents {
		r.Documents[ref] = struct{}{}
	}
	for ref, md := range other.Metadata {
		if _, ok := r.Metadata[ref]; !ok {
			r.Metadata[ref] = md
		}
	}
}

// Rebind moves the record to corpusID, dropping every entry that encodes a
// path inside the previous corpus. Plain object-storage references survive
// because they identify source documents, not corpus files. It returns the
// number of entries dropped.
func (r *Record) Rebind(corpusID string) int {
	dropped := 0
	for ref := range r.Documents {
		if corpusQualified(ref) {
			delete(r.Documents, ref)
			delete(r.Metadata, ref)
			dropped++
		}
	}
	for ref := range r.Metadata {
		if _, ok := r.Documents[ref]; !ok {
			delete(r.Metadata, ref)
		}
	}
	r.CorpusID = corpusID
	return dropped
}

// corpusQualified reports whether ref names a file inside a corpus rather
// than a source document.
func corpusQualified(ref string) bool {
	return strings.HasPrefix(ref, "projects/") ||
		strings.HasPrefix(ref, "qdrant://") ||
		strings.Contains(ref, "/ragCorpora/")
}

// fileRecord is the persisted tracking file layout.
type fileRecord struct {
	CorpusID  *string  `json:"corpus_id"`
	Documents []string `json:"documents"`
}

// toFile converts r to its persisted layout.
func (r *Record) toFile() fileRecord {
	f := fileRecord{Documents: r.Refs()}
	if r.CorpusID != "" {
		id := r.CorpusID
		f.CorpusID = &id
	}
	return f
}

// fromFile builds a record from the persisted layouts.
func fromFile(f fileRecord, md map[string]rag.DocumentMetadata) *Record {
	id := ""
	if f.CorpusID != nil {
		id = *f.CorpusID
	}
	r := NewRecord(id)
	for _, ref := range f.Documents {
		r.Documents[ref] = struct{}{}
	}
	for ref, m := range md {
		if r.Has(ref) {
			r.Metadata[ref] = m
		}
	}
	return r
}
