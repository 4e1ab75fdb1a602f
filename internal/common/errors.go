// Package common defines the error taxonomy shared by the local store, the
// remote client and the sync engine. Callers should match with errors.Is.
package common

import (
	"errors"

	"go.uber.org/multierr"
)

var (
	// ErrNotFound is returned when a local identifier does not resolve to a
	// live record of the current account.
	ErrNotFound = errors.New("not found")

	// ErrValidation rejects malformed input before anything is persisted.
	ErrValidation = errors.New("validation error")

	// ErrRemoteFailure wraps any network or server error.
	ErrRemoteFailure = errors.New("remote failure")

	// ErrPartialSync marks a sync pass where some records failed.
	ErrPartialSync = errors.New("partial sync failure")

	// ErrContractViolation is returned when the server answers a successful
	// request without a remote identifier or update timestamp.
	ErrContractViolation = errors.New("remote contract violation")

	// ErrNotLoggedIn is returned for remote operations without a remote account.
	ErrNotLoggedIn = errors.New("not logged in")
)

// PartialSyncError aggregates the per-record failures of one sync pass.
// Work that succeeded before and after a failure is already committed.
type PartialSyncError struct {
	Err error
}

func NewPartialSyncError(errs ...error) *PartialSyncError {
	return &PartialSyncError{Err: multierr.Combine(errs...)}
}

func (e *PartialSyncError) Error() string {
	return ErrPartialSync.Error() + ": " + e.Err.Error()
}

// Failures returns the individual errors collected during the pass.
func (e *PartialSyncError) Failures() []error {
	return multierr.Errors(e.Err)
}

func (e *PartialSyncError) Is(target error) bool {
	return target == ErrPartialSync
}

func (e *PartialSyncError) Unwrap() []error {
	return e.Failures()
}
