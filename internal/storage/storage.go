// Package storage provides the object storage collaborator used to persist
// scheme manifests and other durable bytes. Implementations include S3 and
// local filesystem for testing.
package storage

import (
	"context"
	"errors"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrStoreFailed    = errors.New("store failed")
	ErrRetrieveFailed = errors.New("retrieve failed")
	ErrDeleteFailed   = errors.New("delete failed")
)

// ObjectStorage abstracts durable byte storage with metadata.
type ObjectStorage interface {
	// Store writes bytes under a key with optional metadata.
	Store(ctx context.Context, key string, data []byte, metadata map[string]string) error

	// Retrieve reads the bytes previously stored under a key.
	// Returns ErrObjectNotFound when the key is absent.
	Retrieve(ctx context.Context, key string) ([]byte, error)

	// List returns all keys under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes an object. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists checks whether an object exists under a key.
	Exists(ctx context.Context, key string) (bool, error)
}
