package rag

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error categories shared by every corpus backend. Backends wrap their
// native errors with these so the orchestration layer can classify failures
// without knowing which service produced them.
var (
	// ErrUnsupportedArgument indicates the service rejected an optional
	// argument (per-file metadata, embedding model override) it does not know.
	ErrUnsupportedArgument = errors.New("rag: unsupported argument")

	// ErrQuotaOrPermission indicates the caller lacks permission or quota for
	// the requested feature.
	ErrQuotaOrPermission = errors.New("rag: quota exceeded or permission denied")

	// ErrAlreadyExists indicates the resource (usually an imported file) is
	// already present.
	ErrAlreadyExists = errors.New("rag: already exists")

	// ErrNotFound indicates the requested corpus or file does not exist.
	ErrNotFound = errors.New("rag: not found")

	// ErrResponseShape indicates a service payload could not be interpreted.
	ErrResponseShape = errors.New("rag: unexpected response shape")

	// ErrTransientIO indicates a network or storage failure that may succeed
	// on a later attempt.
	ErrTransientIO = errors.New("rag: transient I/O failure")
)

// IsQuotaOrPermission reports whether err is a permission or quota failure.
func IsQuotaOrPermission(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrQuotaOrPermission) {
		return true
	}
	switch httpCode(err) {
	case http.StatusForbidden, http.StatusTooManyRequests:
		return true
	}
	switch grpcCode(err) {
	case codes.PermissionDenied, codes.ResourceExhausted:
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "quota")
}

// IsUnsupportedArgument reports whether the service rejected an optional argument.
func IsUnsupportedArgument(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnsupportedArgument) {
		return true
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unknown name") ||
		strings.Contains(msg, "unexpected keyword") ||
		strings.Contains(msg, "unsupported argument") {
		return true
	}
	return false
}

// IsUnsupportedEmbeddingModel reports whether a corpus creation failed
// because the requested embedding model is unavailable.
func IsUnsupportedEmbeddingModel(err error) bool {
	if err == nil {
		return false
	}
	if IsUnsupportedArgument(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "embedding") {
		return false
	}
	return httpCode(err) == http.StatusBadRequest ||
		grpcCode(err) == codes.InvalidArgument ||
		strings.Contains(msg, "not supported") ||
		strings.Contains(msg, "invalid")
}

// IsAlreadyExists reports whether err means the resource is already present.
func IsAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAlreadyExists) {
		return true
	}
	if httpCode(err) == http.StatusConflict || grpcCode(err) == codes.AlreadyExists {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "already exists")
}

// IsNotFound reports whether err means the resource is absent.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return true
	}
	return httpCode(err) == http.StatusNotFound || grpcCode(err) == codes.NotFound
}

// httpCode extracts an HTTP status from the Google API error types, or 0.
func httpCode(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	var aerr genai.APIError
	if errors.As(err, &aerr) {
		return aerr.Code
	}
	return 0
}

// grpcCode extracts a gRPC status code from err, or codes.OK.
func grpcCode(err error) codes.Code {
	if s, ok := status.FromError(err); ok {
		return s.Code()
	}
	return codes.OK
}
