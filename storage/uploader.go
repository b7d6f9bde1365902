package storage

import (
	"context"
	"io"
)

// UploadResult describes a stored object: the bucket key, the public URL
// clients load it from, and the ETag the backend reported.
type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

// FileUploader stores the game's binary blobs. Today that is mirrored song
// artwork under artwork/; implementations must be safe for concurrent use
// by request handlers.
type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)

	Delete(ctx context.Context, key string) error

	// GetPublicURL resolves a key against the bucket's public base URL.
	GetPublicURL(key string) string
}
