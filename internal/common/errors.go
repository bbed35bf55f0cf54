// Package common defines shared sentinel and typed errors used across the
// ingestion engine. Sentinels are matched with errors.Is, typed errors with
// errors.As.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// ErrAssemblyConflict is returned by the compare-and-swap status
	// transition when another caller already moved the session out of
	// the uploading state.
	ErrAssemblyConflict = errors.New("assembly already in progress")

	// Service-level errors.
	ErrInternal = errors.New("internal error")
)

// InvalidParametersError reports a caller error: a required argument was
// missing or malformed.
type InvalidParametersError struct {
	Reason string
}

func (e *InvalidParametersError) Error() string {
	return fmt.Sprintf("invalid parameters: %s", e.Reason)
}

// NewInvalidParameters builds an InvalidParametersError with the given reason.
func NewInvalidParameters(reason string) *InvalidParametersError {
	return &InvalidParametersError{Reason: reason}
}

// ChunkMissingError is fatal to assembly: the chunk with the given index
// could not be read. The caller may prompt a re-upload of that chunk and
// retry the assembly.
type ChunkMissingError struct {
	UploadID string
	Index    int
	Err      error
}

func (e *ChunkMissingError) Error() string {
	return fmt.Sprintf("upload %s: chunk %d missing or unreadable", e.UploadID, e.Index)
}

func (e *ChunkMissingError) Unwrap() error {
	return e.Err
}

// SizeMismatchError is fatal to assembly: the measured artifact size
// disagrees with the size the session declared, which signals truncation
// or corruption of the chunk set.
type SizeMismatchError struct {
	UploadID string
	Declared int64
	Measured int64
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("upload %s: assembled size %d does not match declared size %d",
		e.UploadID, e.Measured, e.Declared)
}
