package rag

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestClassifiers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		quota      bool
		unsupp     bool
		exists     bool
		notFound   bool
		embedModel bool
	}{
		{name: "nil", err: nil},
		{name: "sentinel quota", err: fmt.Errorf("wrap: %w", ErrQuotaOrPermission), quota: true},
		{name: "googleapi 403", err: &googleapi.Error{Code: http.StatusForbidden}, quota: true},
		{name: "googleapi 429", err: &googleapi.Error{Code: http.StatusTooManyRequests}, quota: true},
		{name: "genai 403", err: genai.APIError{Code: http.StatusForbidden, Message: "denied"}, quota: true},
		{name: "grpc permission denied", err: status.Error(codes.PermissionDenied, "no"), quota: true},
		{name: "grpc exhausted", err: status.Error(codes.ResourceExhausted, "slow down"), quota: true},
		{name: "message quota", err: errors.New("Quota exceeded for reranker"), quota: true},
		{name: "sentinel unsupported", err: fmt.Errorf("x: %w", ErrUnsupportedArgument), unsupp: true, embedModel: true},
		{name: "unknown field", err: errors.New(`Invalid JSON payload received. Unknown name "metadata"`), unsupp: true, embedModel: true},
		{name: "grpc already exists", err: status.Error(codes.AlreadyExists, "dup"), exists: true},
		{name: "googleapi 409", err: &googleapi.Error{Code: http.StatusConflict}, exists: true},
		{name: "message already exists", err: errors.New("file already exists in corpus"), exists: true},
		{name: "googleapi 404", err: &googleapi.Error{Code: http.StatusNotFound}, notFound: true},
		{name: "grpc not found", err: status.Error(codes.NotFound, "gone"), notFound: true},
		{
			name:       "bad embedding model",
			err:        &googleapi.Error{Code: http.StatusBadRequest, Message: "embedding model text-embedding-x is not supported"},
			embedModel: true,
		},
		{name: "bad request unrelated", err: &googleapi.Error{Code: http.StatusBadRequest, Message: "display name too long"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := IsQuotaOrPermission(tc.err); got != tc.quota {
				t.Errorf("IsQuotaOrPermission = %v, want %v", got, tc.quota)
			}
			if got := IsUnsupportedArgument(tc.err); got != tc.unsupp {
				t.Errorf("IsUnsupportedArgument = %v, want %v", got, tc.unsupp)
			}
			if got := IsAlreadyExists(tc.err); got != tc.exists {
				t.Errorf("IsAlreadyExists = %v, want %v", got, tc.exists)
			}
			if got := IsNotFound(tc.err); got != tc.notFound {
				t.Errorf("IsNotFound = %v, want %v", got, tc.notFound)
			}
			if got := IsUnsupportedEmbeddingModel(tc.err); got != tc.embedModel {
				t.Errorf("IsUnsupportedEmbeddingModel = %v, want %v", got, tc.embedModel)
			}
		})
	}
}
