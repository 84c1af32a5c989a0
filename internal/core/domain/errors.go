package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrTemporary    = errors.New("temporary failure")

	// ErrUnsupportedType is a skip signal, not a failure: the file type has no normalizer.
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrDecode          = errors.New("decode error")
	ErrIngest          = errors.New("ingest error")

	ErrEmbeddingGateway  = errors.New("embedding gateway error")
	ErrGenerationGateway = errors.New("generation gateway error")
	ErrVectorIndex       = errors.New("vector index error")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// FileError reports a per-file failure. Kind is ErrDecode or ErrIngest.
type FileError struct {
	Filename string
	Kind     error
	Err      error
}

func NewFileError(kind error, filename string, err error) *FileError {
	return &FileError{Filename: filename, Kind: kind, Err: err}
}

func (e *FileError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Filename, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Filename, e.Kind, e.Err)
}

func (e *FileError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}
