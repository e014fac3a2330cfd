package rag

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"google.golang.org/api/option"
)

// newTestVertex wires the Vertex backend to an httptest server standing in
// for the regional aiplatform endpoint.
func newTestVertex(t *testing.T, h http.HandlerFunc) *VertexCorpusService {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	v, err := NewVertexCorpusService(context.Background(), VertexConfig{
		Project:  "proj",
		Location: "us-central1",
		Options: []option.ClientOption{
			option.WithEndpoint(srv.URL + "/"),
			option.WithoutAuthentication(),
			option.WithHTTPClient(srv.Client()),
		},
		PollInterval:     time.Millisecond,
		OperationTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("NewVertexCorpusService: %v", err)
	}
	return v
}

func TestVertex_ListCorpora(t *testing.T) {
	t.Parallel()

	v := newTestVertex(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/projects/proj/locations/us-central1/ragCorpora") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"ragCorpora":[
			{"name":"projects/proj/locations/us-central1/ragCorpora/1","displayName":"scout_corpus"},
			{"name":"projects/proj/locations/us-central1/ragCorpora/2","displayName":"other"}]}`)
	})

	corpora, err := v.ListCorpora(context.Background())
	if err != nil {
		t.Fatalf("ListCorpora: %v", err)
	}
	if len(corpora) != 2 || corpora[0].DisplayName != "scout_corpus" {
		t.Errorf("unexpected corpora: %+v", corpora)
	}
}

func TestVertex_CreateCorpus_PollsOperation(t *testing.T) {
	t.Parallel()

	polls := 0
	v := newTestVertex(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/ragCorpora"):
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["displayName"] != "scout_corpus" {
				t.Errorf("displayName: got %v", body["displayName"])
			}
			_, _ = io.WriteString(w, `{"name":"projects/proj/locations/us-central1/operations/op1"}`)
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/operations/op1"):
			polls++
			if polls < 2 {
				_, _ = io.WriteString(w, `{"name":"op1","done":false}`)
				return
			}
			_, _ = io.WriteString(w, `{"name":"op1","done":true,"response":{
				"name":"projects/proj/locations/us-central1/ragCorpora/9","displayName":"scout_corpus"}}`)
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	})

	c, err := v.CreateCorpus(context.Background(), CorpusSpec{DisplayName: "scout_corpus", EmbeddingModel: "gemini-embedding-001"})
	if err != nil {
		t.Fatalf("CreateCorpus: %v", err)
	}
	if c.ID != "projects/proj/locations/us-central1/ragCorpora/9" {
		t.Errorf("ID: got %q", c.ID)
	}
	if polls < 2 {
		t.Errorf("expected polling until done, polls=%d", polls)
	}
}

func TestVertex_CreateCorpus_OperationError(t *testing.T) {
	t.Parallel()

	v := newTestVertex(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"name":"op","done":true,"error":{"code":7,"message":"permission denied on project"}}`)
	})

	_, err := v.CreateCorpus(context.Background(), CorpusSpec{DisplayName: "x"})
	if !IsQuotaOrPermission(err) {
		t.Errorf("expected a permission error, got %v", err)
	}
}

func TestVertex_ImportFiles_MetadataUnsupported(t *testing.T) {
	t.Parallel()

	v := newTestVertex(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected, got %s %s", r.Method, r.URL.Path)
	})

	_, err := v.ImportFiles(context.Background(), "projects/proj/locations/us-central1/ragCorpora/1", ImportRequest{
		Refs:     []string{"gs://b/a.pdf"},
		Metadata: map[string]DocumentMetadata{"gs://b/a.pdf": {Source: "gs://b/a.pdf"}},
	})
	if !errors.Is(err, ErrUnsupportedArgument) {
		t.Errorf("expected ErrUnsupportedArgument, got %v", err)
	}
}

func TestVertex_ImportFiles_SendsChunking(t *testing.T) {
	t.Parallel()

	v := newTestVertex(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/ragFiles:import") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body struct {
			ImportRagFilesConfig struct {
				GcsSource struct {
					Uris []string `json:"uris"`
				} `json:"gcsSource"`
				RagFileTransformationConfig struct {
					RagFileChunkingConfig struct {
						FixedLengthChunking struct {
							ChunkSize    int `json:"chunkSize"`
							ChunkOverlap int `json:"chunkOverlap"`
						} `json:"fixedLengthChunking"`
					} `json:"ragFileChunkingConfig"`
				} `json:"ragFileTransformationConfig"`
			} `json:"importRagFilesConfig"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		cfg := body.ImportRagFilesConfig
		if len(cfg.GcsSource.Uris) != 2 {
			t.Errorf("uris: got %v", cfg.GcsSource.Uris)
		}
		if c := cfg.RagFileTransformationConfig.RagFileChunkingConfig.FixedLengthChunking; c.ChunkSize != 512 || c.ChunkOverlap != 100 {
			t.Errorf("chunking: got %+v", c)
		}
		_, _ = io.WriteString(w, `{"name":"projects/proj/locations/us-central1/operations/imp1"}`)
	})

	h, err := v.ImportFiles(context.Background(), "projects/proj/locations/us-central1/ragCorpora/1", ImportRequest{
		Refs:     []string{"gs://b/a.pdf", "gs://b/b.pdf"},
		Chunking: ChunkingConfig{Size: 512, Overlap: 100},
	})
	if err != nil {
		t.Fatalf("ImportFiles: %v", err)
	}
	if h.Name() != "projects/proj/locations/us-central1/operations/imp1" {
		t.Errorf("handle name: got %q", h.Name())
	}
}

func TestVertex_Retrieve_ReturnsRawPayload(t *testing.T) {
	t.Parallel()

	v := newTestVertex(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/locations/us-central1:retrieveContexts") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		q := body["query"].(map[string]any)
		cfg := q["ragRetrievalConfig"].(map[string]any)
		if _, ok := cfg["ranking"]; !ok {
			t.Error("expected ranking stage when a reranker is set")
		}
		_, _ = io.WriteString(w, `{"contexts":{"contexts":[{"sourceUri":"gs://b/a.pdf","text":"alpha","score":0.2}]}}`)
	})

	raw, err := v.Retrieve(context.Background(), RetrievalRequest{
		CorpusID:          "projects/proj/locations/us-central1/ragCorpora/1",
		Query:             "alpha?",
		TopK:              5,
		DistanceThreshold: 0.6,
		RerankerModel:     "gemini-2.5-flash",
	})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if !strings.Contains(string(raw), `"text":"alpha"`) {
		t.Errorf("payload missing context text: %s", raw)
	}
}
