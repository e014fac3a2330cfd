package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// clearEnv unsets keys for the duration of the test.
func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	path, err := Load("/nonexistent/path/config.yaml", slog.Default())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
gcp:
  project: research-lab
  location: europe-west4
corpus:
  name: papers
  chunk_size: 1024
retrieval:
  top_k: 8
  distance_threshold: 0.45
  use_reranking: false
storage:
  bucket: rag-research-papers
  document_prefixes: [cves/, uploaded_papers/]
  use_cloud_tracking: false
ingestion:
  requests_per_minute: 30
generation:
  provider: azure
  temperature: 0.3
  azure:
    endpoint: https://my-resource.openai.azure.com
    deployment: gpt-4o
logging:
  level: debug
  format: text
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	checks := map[string]string{
		"GOOGLE_CLOUD_PROJECT":    "research-lab",
		"GOOGLE_CLOUD_LOCATION":   "europe-west4",
		"RAG_CORPUS_NAME":         "papers",
		"RAG_CHUNK_SIZE":          "1024",
		"RAG_TOP_K":               "8",
		"RAG_DISTANCE_THRESHOLD":  "0.45",
		"RAG_USE_RERANKING":       "false",
		"GCS_BUCKET":              "rag-research-papers",
		"DOCUMENT_PREFIXES":       "cves/,uploaded_papers/",
		"USE_CLOUD_TRACKING":      "false",
		"RAG_IMPORT_RPM":          "30",
		"MODEL_PROVIDER":          "azure",
		"RAG_TEMPERATURE":         "0.3",
		"AZURE_OPENAI_ENDPOINT":   "https://my-resource.openai.azure.com",
		"AZURE_OPENAI_DEPLOYMENT": "gpt-4o",
		"LOG_LEVEL":               "debug",
		"LOG_FORMAT":              "text",
	}
	keys := make([]string, 0, len(checks))
	for k := range checks {
		keys = append(keys, k)
	}
	clearEnv(t, keys...)

	loaded, err := Load(cfgPath, slog.Default())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}
	for k, want := range checks {
		if got := os.Getenv(k); got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("storage:\n  bucket: from-yaml\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("GCS_BUCKET", "from-env")

	if _, err := Load(cfgPath, slog.Default()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := os.Getenv("GCS_BUCKET"); got != "from-env" {
		t.Errorf("GCS_BUCKET: expected env override %q, got %q", "from-env", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(cfgPath, slog.Default()); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("GCS_BUCKET=dotenv-bucket\nRAG_CORPUS_NAME=dotenv-corpus\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	clearEnv(t, "RAG_CORPUS_NAME")
	t.Setenv("GCS_BUCKET", "already-set")

	if err := LoadDotEnv(slog.Default(), envPath, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("GCS_BUCKET"); got != "already-set" {
		t.Errorf("GCS_BUCKET overwritten: got %q", got)
	}
	if got := os.Getenv("RAG_CORPUS_NAME"); got != "dotenv-corpus" {
		t.Errorf("RAG_CORPUS_NAME: got %q", got)
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t,
		"GOOGLE_CLOUD_PROJECT", "GOOGLE_CLOUD_LOCATION", "CORPUS_BACKEND", "RAG_CORPUS_NAME",
		"RAG_TOP_K", "RAG_DISTANCE_THRESHOLD", "RAG_TEMPERATURE", "RAG_USE_RERANKING",
		"DOCUMENT_PREFIXES", "USE_CLOUD_TRACKING", "CLOUD_TRACKING_PATH", "RAG_CHUNK_SIZE",
		"RAG_CHUNK_OVERLAP", "RAG_BATCH_SIZE", "RAG_IMPORT_RPM", "SCOUT_TRACKING_DB",
	)

	s := FromEnv()
	if s.Location != DefaultLocation || s.CorpusName != DefaultCorpusName || s.CorpusBackend != BackendVertex {
		t.Errorf("unexpected identity defaults: %+v", s)
	}
	if s.TopK != 5 || s.DistanceThreshold != 0.6 || s.Temperature != float32(0.2) {
		t.Errorf("unexpected retrieval defaults: top_k=%d threshold=%v temp=%v", s.TopK, s.DistanceThreshold, s.Temperature)
	}
	if s.UseReranking {
		t.Error("reranking should default off")
	}
	if !s.UseCloudTracking || s.CloudTrackingPath != DefaultCloudTrackingPath {
		t.Errorf("unexpected tracking defaults: %v %q", s.UseCloudTracking, s.CloudTrackingPath)
	}
	if !reflect.DeepEqual(s.DocumentPrefixes, DefaultDocumentPrefixes) {
		t.Errorf("prefixes: got %v", s.DocumentPrefixes)
	}
	if s.ChunkSize != 512 || s.ChunkOverlap != 100 || s.BatchSize != 25 {
		t.Errorf("unexpected chunk/batch defaults: %d %d %d", s.ChunkSize, s.ChunkOverlap, s.BatchSize)
	}
	if !s.LocalTrackingEnabled() {
		t.Error("local tracking should default on")
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("CORPUS_BACKEND", "QDRANT")
	t.Setenv("RAG_TOP_K", "12")
	t.Setenv("RAG_DISTANCE_THRESHOLD", "not-a-number")
	t.Setenv("RAG_USE_RERANKING", "true")
	t.Setenv("DOCUMENT_PREFIXES", " a/ ,, b/ ")
	t.Setenv("USE_CLOUD_TRACKING", "false")
	t.Setenv("SCOUT_TRACKING_DB", "disabled")

	s := FromEnv()
	if s.CorpusBackend != BackendQdrant {
		t.Errorf("backend: got %q", s.CorpusBackend)
	}
	if s.TopK != 12 {
		t.Errorf("top_k: got %d", s.TopK)
	}
	if s.DistanceThreshold != DefaultDistanceThreshold {
		t.Errorf("unparsable threshold should fall back, got %v", s.DistanceThreshold)
	}
	if !s.UseReranking || s.UseCloudTracking {
		t.Errorf("bools: reranking=%v cloud=%v", s.UseReranking, s.UseCloudTracking)
	}
	if !reflect.DeepEqual(s.DocumentPrefixes, []string{"a/", "b/"}) {
		t.Errorf("prefixes: got %v", s.DocumentPrefixes)
	}
	if s.LocalTrackingEnabled() {
		t.Error("local tracking should be disabled")
	}
}

func TestSettings_Validate(t *testing.T) {
	t.Parallel()

	valid := Settings{
		ProjectID:     "p",
		Location:      DefaultLocation,
		CorpusBackend: BackendVertex,
		CorpusName:    DefaultCorpusName,
		Bucket:        "b",
		TopK:          5,
		ChunkSize:     512,
		ChunkOverlap:  100,
	}

	tests := []struct {
		name      string
		mutate    func(*Settings)
		wantField string
	}{
		{"valid", func(*Settings) {}, ""},
		{"missing bucket", func(s *Settings) { s.Bucket = "" }, "GCS_BUCKET"},
		{"vertex without project", func(s *Settings) { s.ProjectID = "" }, "GOOGLE_CLOUD_PROJECT"},
		{"qdrant without project", func(s *Settings) {
			s.ProjectID = ""
			s.CorpusBackend = BackendQdrant
			s.Qdrant.Host = "localhost"
		}, ""},
		{"unknown backend", func(s *Settings) { s.CorpusBackend = "pinecone" }, "CORPUS_BACKEND"},
		{"zero top_k", func(s *Settings) { s.TopK = 0 }, "RAG_TOP_K"},
		{"overlap too large", func(s *Settings) { s.ChunkOverlap = 512 }, "RAG_CHUNK_OVERLAP"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := valid
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
			if cfgErr.Field != tt.wantField {
				t.Errorf("field: got %q, want %q", cfgErr.Field, tt.wantField)
			}
		})
	}
}

func TestNumberStr(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float64
		want string
	}{
		{0.0, ""},
		{0.2, "0.2"},
		{0.45, "0.45"},
		{1.0, "1"},
	}
	for _, tt := range tests {
		if got := float64Str(tt.in); got != tt.want {
			t.Errorf("float64Str(%v) = %q, want %q", tt.in, got, tt.want)
		}
		if got := float32Str(float32(tt.in)); got != tt.want {
			t.Errorf("float32Str(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
