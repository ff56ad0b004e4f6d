package models

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	// ErrConflictDetected is returned by save under the manual policy when
	// the document file changed externally since the last observed state.
	ErrConflictDetected = errors.New("conflict detected: document changed externally")

	// ErrConflictExternalNewer is returned by save under the timestamp
	// policy when the external copy carries a newer lastModified stamp.
	ErrConflictExternalNewer = errors.New("external document is newer")
)

// ValidationError reports a persisted payload that matches neither the
// canonical nor a known legacy shape.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid document: %s: %s", e.Field, e.Reason)
}

// MigrationError reports a failure during legacy-to-canonical migration.
type MigrationError struct {
	Step string
	Err  error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration %s: %v", e.Step, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

// ConflictError wraps a conflict sentinel with the timestamps that
// triggered it, for diagnostics.
type ConflictError struct {
	FileModTime   int64 // epoch ms of the on-disk file
	LastKnownTime int64 // epoch ms watermark this process last observed
	Err           error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%v (file modified at %d, last known %d)",
		e.Err, e.FileModTime, e.LastKnownTime)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}
