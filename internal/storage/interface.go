// Package storage keeps uploaded face images and, optionally, the song
// catalog CSV in S3-compatible object storage.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// ErrObjectNotFound is returned by Download when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage defines the interface for object storage operations
type ObjectStorage interface {
	// Upload uploads an object to storage
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download downloads an object from storage
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// GetURL returns the URL for accessing an object
	GetURL(key string) string

	// Delete deletes an object from storage
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)
}

// ImageKey builds the object key of an uploaded image: <prefix><id>.<format>.
func ImageKey(prefix, id, format string) string {
	if format == "" {
		format = "bin"
	}
	name := id + "." + strings.ToLower(format)
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}
