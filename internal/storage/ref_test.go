package storage

import "testing"

func TestParseRef(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		ref     string
		bucket  string
		object  string
		wantErr bool
	}{
		{name: "nested object", ref: "gs://papers/arxiv/2023-01-15-x.pdf", bucket: "papers", object: "arxiv/2023-01-15-x.pdf"},
		{name: "bucket only", ref: "gs://papers", bucket: "papers", object: ""},
		{name: "missing scheme", ref: "papers/x.pdf", wantErr: true},
		{name: "empty bucket", ref: "gs:///x.pdf", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			bucket, object, err := ParseRef(tc.ref)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.ref)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if bucket != tc.bucket || object != tc.object {
				t.Errorf("got (%q, %q), want (%q, %q)", bucket, object, tc.bucket, tc.object)
			}
		})
	}
}

func TestConsoleURL(t *testing.T) {
	t.Parallel()

	if got := ConsoleURL("gs://b/dir/f.pdf"); got != "https://storage.cloud.google.com/b/dir/f.pdf" {
		t.Errorf("got %q", got)
	}
	if got := ConsoleURL("https://example.com/f.pdf"); got != "https://example.com/f.pdf" {
		t.Errorf("non-gs reference should be unchanged, got %q", got)
	}
}

func TestURIAndBaseName(t *testing.T) {
	t.Parallel()

	ref := URI("b", "/dir/f.pdf")
	if ref != "gs://b/dir/f.pdf" {
		t.Errorf("URI: got %q", ref)
	}
	if got := BaseName(ref); got != "f.pdf" {
		t.Errorf("BaseName: got %q", got)
	}
}
