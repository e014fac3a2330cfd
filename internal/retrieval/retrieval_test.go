package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"google.golang.org/api/googleapi"

	"github.com/54b3r/scout-go/internal/rag"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRetriever fails reranked calls with rerankErr and returns payload.
type fakeRetriever struct {
	payload   string
	rerankErr error
	err       error
	reqs      []rag.RetrievalRequest
}

func (f *fakeRetriever) Retrieve(_ context.Context, req rag.RetrievalRequest) (json.RawMessage, error) {
	f.reqs = append(f.reqs, req)
	if req.RerankerModel != "" && f.rerankErr != nil {
		return nil, f.rerankErr
	}
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.payload), nil
}

const twoContexts = `{"contexts":{"contexts":[
	{"sourceUri":"gs://b/a.pdf","text":"alpha","score":0.2},
	{"sourceUri":"gs://b/b.pdf","text":"beta","score":0.4}
]}}`

func newEngine(t *testing.T, r Retriever, rerank bool) *Engine {
	t.Helper()
	e, err := New(Config{
		Corpus:            r,
		TopK:              5,
		DistanceThreshold: 0.6,
		UseReranking:      rerank,
		RerankerModel:     "gemini-2.5-flash",
		Logger:            quietLogger(),
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func TestRetrieve_Defaults(t *testing.T) {
	t.Parallel()
	r := &fakeRetriever{payload: twoContexts}
	e := newEngine(t, r, false)

	got, err := e.Retrieve(context.Background(), "q", Options{})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(got) != 2 || got[0].Text != "alpha" || got[1].SourceURI != "gs://b/b.pdf" {
		t.Errorf("contexts: %+v", got)
	}
	req := r.reqs[0]
	if req.TopK != 5 || req.DistanceThreshold != 0.6 || req.RerankerModel != "" {
		t.Errorf("request: %+v", req)
	}
}

func TestRetrieve_OptionsOverride(t *testing.T) {
	t.Parallel()
	r := &fakeRetriever{payload: twoContexts}
	e := newEngine(t, r, false)
	on := true

	if _, err := e.Retrieve(context.Background(), "q", Options{TopK: 2, DistanceThreshold: 0.3, UseReranking: &on, RerankerModel: "m2"}); err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	req := r.reqs[0]
	if req.TopK != 2 || req.DistanceThreshold != 0.3 || req.RerankerModel != "m2" {
		t.Errorf("request: %+v", req)
	}
}

func TestRetrieve_RerankDegradation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
	}{
		{"http 429", &googleapi.Error{Code: http.StatusTooManyRequests, Message: "rate limited"}},
		{"http 403", &googleapi.Error{Code: http.StatusForbidden, Message: "denied"}},
		{"quota message", errors.New("RESOURCE_EXHAUSTED: quota exceeded for ranking")},
		{"unsupported", fmt.Errorf("qdrant: %w", rag.ErrUnsupportedArgument)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r := &fakeRetriever{payload: twoContexts, rerankErr: tc.err}
			e := newEngine(t, r, true)

			got, err := e.Retrieve(context.Background(), "q", Options{})
			if err != nil {
				t.Fatalf("retrieve: %v", err)
			}
			if len(got) != 2 {
				t.Errorf("want contexts from the plain retrieval, got %d", len(got))
			}
			if len(r.reqs) != 2 || r.reqs[0].RerankerModel == "" || r.reqs[1].RerankerModel != "" {
				t.Errorf("want reranked call then plain call, got %+v", r.reqs)
			}
		})
	}
}

func TestRetrieve_OtherRerankErrorPropagates(t *testing.T) {
	t.Parallel()
	r := &fakeRetriever{rerankErr: &googleapi.Error{Code: http.StatusInternalServerError}}
	e := newEngine(t, r, true)

	if _, err := e.Retrieve(context.Background(), "q", Options{}); err == nil {
		t.Fatal("want error")
	}
	if len(r.reqs) != 1 {
		t.Errorf("should not re-issue on a non-quota error, got %d calls", len(r.reqs))
	}
}

func TestRetrieve_ErrorWithoutRerank(t *testing.T) {
	t.Parallel()
	r := &fakeRetriever{err: errors.New("unavailable")}
	e := newEngine(t, r, false)

	if _, err := e.Retrieve(context.Background(), "q", Options{}); err == nil {
		t.Fatal("want error")
	}
}

func TestNormalize_Shapes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		payload   string
		wantTexts []string
	}{
		{"nested array", twoContexts, []string{"alpha", "beta"}},
		{"single context with text", `{"contexts":{"text":"solo","sourceUri":"gs://b/s.pdf"}}`, []string{"solo"}},
		{"nested single object", `{"contexts":{"contexts":{"text":"one"}}}`, []string{"one"}},
		{"accessor data", `{"contexts":{"data":[{"text":"d1"},{"text":"d2"}]}}`, []string{"d1", "d2"}},
		{"accessor retrievals at root", `{"retrievals":[{"content":"r1"}]}`, []string{"r1"}},
		{"legacy retrieval_contexts", `{"retrieval_contexts":[{"chunk":{"text":"c1"}}]}`, []string{"c1"}},
		{"bare array", `[{"text":"x"},{"text":"y"}]`, []string{"x", "y"}},
		{"contexts array", `{"contexts":[{"text":"p"}]}`, []string{"p"}},
		{"indexed object", `{"contexts":{"0":{"text":"i0"},"1":{"text":"i1"},"3":{"text":"gap"}}}`, []string{"i0", "i1"}},
		{"chunk data fallback", `{"contexts":{"contexts":[{"chunk":{"data":"cd"}}]}}`, []string{"cd"}},
		{"items without text dropped", `{"contexts":{"contexts":[{"sourceUri":"gs://b/x"},{"text":"kept"}]}}`, []string{"kept"}},
		{"empty object", `{}`, nil},
		{"empty contexts", `{"contexts":{}}`, nil},
		{"unrecognised", `{"unexpected":{"shape":true}}`, nil},
		{"invalid json", `{"contexts":`, nil},
		{"scalar", `42`, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Normalize([]byte(tc.payload), quietLogger())
			if len(got) != len(tc.wantTexts) {
				t.Fatalf("want %d contexts, got %d: %+v", len(tc.wantTexts), len(got), got)
			}
			for i, want := range tc.wantTexts {
				if got[i].Text != want {
					t.Errorf("context %d: want %q, got %q", i, want, got[i].Text)
				}
			}
		})
	}
}

func TestContext_FieldFallbacks(t *testing.T) {
	t.Parallel()
	got := Normalize([]byte(`[
		{"text":"a","source_uri":"gs://b/a","relevanceScore":0.9},
		{"text":"b","ragFileId":"files/7","distance":0.25},
		{"text":"c","file_id":"f9"}
	]`), quietLogger())
	if len(got) != 3 {
		t.Fatalf("want 3 contexts, got %d", len(got))
	}
	if got[0].SourceURI != "gs://b/a" || got[0].Score == nil || *got[0].Score != 0.9 {
		t.Errorf("context 0: %+v", got[0])
	}
	if got[1].SourceURI != "files/7" || got[1].Score == nil || *got[1].Score != 0.25 {
		t.Errorf("context 1: %+v", got[1])
	}
	if got[2].SourceURI != "f9" || got[2].Score != nil {
		t.Errorf("context 2: %+v", got[2])
	}
}
