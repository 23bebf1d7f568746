package catalog

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/timmy/moodtune/internal/storage"
)

// Source provides the raw catalog CSV.
type Source interface {
	// Open returns a reader over the CSV. The caller closes it.
	Open(ctx context.Context) (io.ReadCloser, error)

	// Name identifies the source in logs.
	Name() string
}

// FileSource reads the catalog from a local file.
type FileSource struct {
	Path string
}

// NewFileSource creates a FileSource for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Open implements Source.
func (s *FileSource) Open(_ context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open catalog file: %w", err)
	}
	return f, nil
}

// Name implements Source.
func (s *FileSource) Name() string {
	return "file:" + s.Path
}

// ObjectSource reads the catalog from object storage.
type ObjectSource struct {
	Storage storage.ObjectStorage
	Key     string
}

// NewObjectSource creates an ObjectSource for key in store.
func NewObjectSource(store storage.ObjectStorage, key string) *ObjectSource {
	return &ObjectSource{Storage: store, Key: key}
}

// Open implements Source.
func (s *ObjectSource) Open(ctx context.Context) (io.ReadCloser, error) {
	rc, err := s.Storage.Download(ctx, s.Key)
	if err != nil {
		return nil, fmt.Errorf("download catalog object: %w", err)
	}
	return rc, nil
}

// Name implements Source.
func (s *ObjectSource) Name() string {
	return "object:" + s.Key
}
