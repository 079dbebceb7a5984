package domain

import (
	"errors"
	"fmt"
)

// Semantic error kinds. Infrastructure wraps its failures in one of these
// so callers can branch on meaning instead of matching driver errors.
var (
	// ErrDocumentNotFound: the document id resolves to nothing. A job
	// processing a vanished document treats this as a no-op, not a failure.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrJobNotFound: the job id resolves to nothing.
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidInput: the caller's request can never succeed as given.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTemporary: the operation failed for reasons that may clear on
	// their own (broker down, provider overloaded).
	ErrTemporary = errors.New("temporary failure")
)

// WrapError attaches the operation and a semantic kind to err. Both the
// kind and the original error stay matchable through errors.Is.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

// IsKind reports whether err carries the given semantic kind.
func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
