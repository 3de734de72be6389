package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the session, reader and orchestrator.
var (
	// ErrConnectivity is returned when no wallet provider is available.
	ErrConnectivity = errors.New("no wallet provider available")

	// ErrUserRejected is returned when the user declines a connect or sign prompt.
	ErrUserRejected = errors.New("user rejected the request")

	// ErrAlreadyDone is returned when the action was already performed,
	// e.g. a second vote in the same round.
	ErrAlreadyDone = errors.New("action already performed")

	// ErrInsufficientResource is returned when the contract cannot fund
	// the requested action.
	ErrInsufficientResource = errors.New("insufficient resource")

	// ErrNoSession is returned when an operation needs a signing capability
	// and none is held.
	ErrNoSession = errors.New("no active session")

	// ErrInFlight is returned when the same action on the same target is
	// already outstanding.
	ErrInFlight = errors.New("operation already in flight")

	// ErrInvalidInput is returned when local validation fails.
	ErrInvalidInput = errors.New("invalid input")
)

// SnapshotError wraps a read-side failure. The mirror is left untouched.
type SnapshotError struct {
	Cause error
}

func (e *SnapshotError) Error() string {
	return fmt.Sprintf("load snapshot: %v", e.Cause)
}

func (e *SnapshotError) Unwrap() error { return e.Cause }

// SubmissionError is a rejection or timeout during submit or finality wait.
// Reason holds the human-readable text reported by the contract, if any.
type SubmissionError struct {
	Reason string
	Cause  error
}

func (e *SubmissionError) Error() string {
	switch {
	case e.Reason != "" && e.Cause != nil:
		return fmt.Sprintf("submission failed: %s: %v", e.Reason, e.Cause)
	case e.Reason != "":
		return "submission failed: " + e.Reason
	case e.Cause != nil:
		return fmt.Sprintf("submission failed: %v", e.Cause)
	}
	return "submission failed"
}

func (e *SubmissionError) Unwrap() error { return e.Cause }

// OverflowError is returned when an on-chain integer does not fit in int64,
// or exceeds Limit when one is set.
type OverflowError struct {
	Field string
	Value string
	Limit int64
}

func (e *OverflowError) Error() string {
	if e.Limit > 0 {
		return fmt.Sprintf("%s: value %s exceeds limit %d", e.Field, e.Value, e.Limit)
	}
	return fmt.Sprintf("%s: value %s overflows int64", e.Field, e.Value)
}
