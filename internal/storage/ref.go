package storage

import (
	"fmt"
	"path"
	"strings"
)

// Scheme is the URI scheme of Cloud Storage object references.
const Scheme = "gs://"

// ParseRef splits a gs://bucket/object reference into its parts.
func ParseRef(ref string) (bucket, object string, err error) {
	if !strings.HasPrefix(ref, Scheme) {
		return "", "", fmt.Errorf("storage: %q is not a %s reference", ref, Scheme)
	}
	rest := strings.TrimPrefix(ref, Scheme)
	bucket, object, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("storage: %q has no bucket", ref)
	}
	return bucket, object, nil
}

// URI builds a gs:// reference.
func URI(bucket, object string) string {
	return Scheme + bucket + "/" + strings.TrimPrefix(object, "/")
}

// ConsoleURL converts a gs:// reference into an authenticated browser URL.
// Other references are returned unchanged.
func ConsoleURL(ref string) string {
	bucket, object, err := ParseRef(ref)
	if err != nil {
		return ref
	}
	return "https://storage.cloud.google.com/" + bucket + "/" + object
}

// BaseName returns the last path element of a reference.
func BaseName(ref string) string {
	return path.Base(strings.TrimPrefix(ref, Scheme))
}
