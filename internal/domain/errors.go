package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds surfaced by the recommendation pipeline. Callers match them
// with errors.Is; LoadError and SchemaError carry extra context.
var (
	ErrFaceNotFound     = errors.New("no face detected in image")
	ErrInvalidImage     = errors.New("invalid image")
	ErrLoad             = errors.New("artifact load failed")
	ErrSchema           = errors.New("catalog schema invalid")
	ErrDataUnavailable  = errors.New("no music data available")
	ErrInference        = errors.New("emotion inference failed")
	ErrRecordNotFound   = errors.New("record not found")
	ErrUnsupportedImage = fmt.Errorf("%w: unsupported content type", ErrInvalidImage)
)

// LoadError reports that the model or the catalog could not be loaded.
type LoadError struct {
	Artifact string
	Err      error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Artifact, e.Err)
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrLoad) match any LoadError.
func (e *LoadError) Is(target error) bool {
	return target == ErrLoad
}

// SchemaError reports required catalog columns missing from the source.
type SchemaError struct {
	Missing []string
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing required columns in catalog: %s", strings.Join(e.Missing, ", "))
}

// Is makes errors.Is(err, ErrSchema) match any SchemaError.
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}
