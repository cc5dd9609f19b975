package metastore

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a chunk or document id is unknown.
	ErrNotFound = errors.New("not found")

	// ErrCorrupt is returned when a serialized record set cannot be decoded.
	ErrCorrupt = errors.New("corrupt metadata")
)

// ErrValidation indicates a record that fails the store's shape checks.
type ErrValidation struct {
	Field  string
	Reason string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}
