// Package storage provides access to the object storage bucket that holds
// source documents and the durable tracking records.
package storage

import (
	"context"
	"errors"
)

// ErrNotExist is returned by Read when the object does not exist.
var ErrNotExist = errors.New("storage: object does not exist")

// ObjectStore is the object-storage contract used by ingestion and tracking.
// Object names are relative to the store's bucket; List returns full
// gs:// references. Implementations must be safe for concurrent use.
type ObjectStore interface {
	// List returns the references of every object under prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Upload copies a local file to dest and returns its reference.
	Upload(ctx context.Context, localPath, dest string) (string, error)

	// UploadDir uploads every regular file under localDir to prefix,
	// preserving relative paths, and returns the new references.
	UploadDir(ctx context.Context, localDir, prefix string) ([]string, error)

	// Read returns the object's bytes or ErrNotExist.
	Read(ctx context.Context, name string) ([]byte, error)

	// ReadJSON decodes the object into v. found is false when the object
	// does not exist, in which case v is untouched.
	ReadJSON(ctx context.Context, name string, v any) (found bool, err error)

	// WriteJSON encodes v and replaces the object.
	WriteJSON(ctx context.Context, name string, v any) error

	// Exists reports whether the object exists.
	Exists(ctx context.Context, name string) (bool, error)

	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, name string) error
}
