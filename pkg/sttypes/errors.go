package sttypes

import (
	"errors"
	"fmt"
)

// Sentinel errors for the taxonomy in spec §7. Use [errors.Is] against these
// to classify a failure; the HTTP and MCP adapters are the only places that
// map them onto transport-specific status codes.
var (
	// ErrInvalidArgument covers a missing audio path, a non-1-D sample array,
	// or an unrecognised enum value caught before any model work begins.
	ErrInvalidArgument = errors.New("sttgate: invalid argument")

	// ErrResourceRejected is returned when admission control determines the
	// request cannot be safely served given current capacity.
	ErrResourceRejected = errors.New("sttgate: resource rejected")

	// ErrInferenceFailed wraps a failure raised by the acoustic model during
	// transcribe.
	ErrInferenceFailed = errors.New("sttgate: inference failed")

	// ErrModelLoadFailed wraps a failure raised by the acoustic model during
	// construction. The registry releases its build lock without caching a
	// model for the key.
	ErrModelLoadFailed = errors.New("sttgate: model load failed")

	// ErrInputIO covers temp-file write failures and upload read failures.
	ErrInputIO = errors.New("sttgate: input I/O error")
)

// ResourceRejectedError carries the snapshot observed at the moment an
// admission decision failed, so callers (and the audit log) can record why.
type ResourceRejectedError struct {
	Reason   string
	Snapshot ResourceSnapshot
	Estimate Estimate
}

func (e *ResourceRejectedError) Error() string {
	return fmt.Sprintf("sttgate: resource rejected: %s", e.Reason)
}

func (e *ResourceRejectedError) Unwrap() error { return ErrResourceRejected }

// ModelLoadFailedError wraps the underlying acoustic-model construction error
// together with the key that failed to load.
type ModelLoadFailedError struct {
	Key   ModelKey
	Cause error
}

func (e *ModelLoadFailedError) Error() string {
	return fmt.Sprintf("sttgate: model load failed for %s: %v", e.Key, e.Cause)
}

func (e *ModelLoadFailedError) Unwrap() error { return errors.Join(ErrModelLoadFailed, e.Cause) }

// InferenceFailedError wraps the underlying acoustic-model transcribe error.
type InferenceFailedError struct {
	Key   ModelKey
	Cause error
}

func (e *InferenceFailedError) Error() string {
	return fmt.Sprintf("sttgate: inference failed for %s: %v", e.Key, e.Cause)
}

func (e *InferenceFailedError) Unwrap() error { return errors.Join(ErrInferenceFailed, e.Cause) }
