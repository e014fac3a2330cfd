package storage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/api/option"
)

// newTestGCS wires a GCS store to an httptest server standing in for the
// Cloud Storage JSON API.
func newTestGCS(t *testing.T, h http.HandlerFunc) *GCS {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	g, err := NewGCS(context.Background(), GCSConfig{
		Bucket: "papers",
		Options: []option.ClientOption{
			option.WithEndpoint(srv.URL + "/storage/v1/"),
			option.WithoutAuthentication(),
			option.WithHTTPClient(srv.Client()),
		},
	})
	if err != nil {
		t.Fatalf("NewGCS: %v", err)
	}
	return g
}

func TestGCS_List_SkipsPlaceholders(t *testing.T) {
	t.Parallel()

	g := newTestGCS(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/b/papers/o") {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("prefix"); got != "arxiv/" {
			t.Errorf("prefix: got %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]string{
				{"name": "arxiv/"},
				{"name": "arxiv/2023-01-15-a.pdf"},
				{"name": "arxiv/b.pdf"},
			},
		})
	})

	refs, err := g.List(context.Background(), "arxiv/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"gs://papers/arxiv/2023-01-15-a.pdf", "gs://papers/arxiv/b.pdf"}
	if len(refs) != len(want) {
		t.Fatalf("got %v, want %v", refs, want)
	}
	for i := range want {
		if refs[i] != want[i] {
			t.Errorf("refs[%d]: got %q, want %q", i, refs[i], want[i])
		}
	}
}

func TestGCS_ReadJSON_Missing(t *testing.T) {
	t.Parallel()

	g := newTestGCS(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"No such object"}}`))
	})

	var v map[string]any
	found, err := g.ReadJSON(context.Background(), "tracking/ingested_docs.json", &v)
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if found {
		t.Error("expected found=false for a missing object")
	}

	exists, err := g.Exists(context.Background(), "tracking/ingested_docs.json")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Error("expected Exists=false")
	}

	if err := g.Delete(context.Background(), "tracking/ingested_docs.json"); err != nil {
		t.Errorf("Delete of a missing object should succeed, got %v", err)
	}
}

func TestGCS_ReadJSON_Found(t *testing.T) {
	t.Parallel()

	g := newTestGCS(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("alt") != "media" {
			t.Errorf("expected a media download, got %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"corpus_id":"c1","documents":["gs://papers/a.pdf"]}`))
	})

	var v struct {
		CorpusID  string   `json:"corpus_id"`
		Documents []string `json:"documents"`
	}
	found, err := g.ReadJSON(context.Background(), "tracking/ingested_docs.json", &v)
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if !found || v.CorpusID != "c1" || len(v.Documents) != 1 {
		t.Errorf("unexpected decode: found=%v v=%+v", found, v)
	}
}

func TestNewGCS_RequiresBucket(t *testing.T) {
	t.Parallel()

	if _, err := NewGCS(context.Background(), GCSConfig{}); err == nil {
		t.Fatal("expected error for empty bucket")
	}
}
