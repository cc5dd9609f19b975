package fragdb

import (
	"errors"
	"fmt"

	"github.com/fragdb/fragdb/engine"
	"github.com/fragdb/fragdb/index"
	"github.com/fragdb/fragdb/metastore"
)

var (
	// ErrNotFound is returned when a document or chunk is not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrCorruptIndex is returned when an index snapshot fails validation
	// (bad magic, version, checksum, or internal structure).
	ErrCorruptIndex = errors.New("corrupt index snapshot")

	// ErrCorruptMetadata is returned when a metadata snapshot fails
	// validation.
	ErrCorruptMetadata = errors.New("corrupt metadata snapshot")

	// ErrInconsistent is returned when an invariant violation is detected,
	// e.g. a vector with no metadata record. Run Reconcile to repair.
	ErrInconsistent = errors.New("inconsistent state")

	// ErrTransient is returned for retryable backend failures (journal or
	// blob store). The operation can be safely retried; interrupted work
	// resumes from its last completed phase.
	ErrTransient = errors.New("transient failure")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// ErrInvalidDimension indicates an invalid configured dimension.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvalidDimension struct {
	Dimension int
	cause     error
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("invalid dimension: %d", e.Dimension)
}

func (e *ErrInvalidDimension) Unwrap() error { return e.cause }

// ErrValidation indicates an invalid field in an ingest request or record.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrValidation struct {
	Field  string
	Reason string
	cause  error
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ErrValidation) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Not found unification.
	if errors.Is(err, metastore.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	// Dimension and argument normalization.
	var dm *index.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ErrDimensionMismatch{Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}
	var id *index.ErrInvalidDimension
	if errors.As(err, &id) {
		return &ErrInvalidDimension{Dimension: id.Dimension, cause: err}
	}
	var ev *metastore.ErrValidation
	if errors.As(err, &ev) {
		return &ErrValidation{Field: ev.Field, Reason: ev.Reason, cause: err}
	}
	if errors.Is(err, index.ErrInvalidK) {
		return fmt.Errorf("%w: %w", ErrInvalidK, err)
	}

	// Corruption.
	if errors.Is(err, index.ErrCorrupt) {
		return fmt.Errorf("%w: %w", ErrCorruptIndex, err)
	}
	if errors.Is(err, metastore.ErrCorrupt) {
		return fmt.Errorf("%w: %w", ErrCorruptMetadata, err)
	}

	// Coordinator state.
	if errors.Is(err, engine.ErrInconsistent) {
		return fmt.Errorf("%w: %w", ErrInconsistent, err)
	}
	if errors.Is(err, engine.ErrTransient) {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}

	return err
}
