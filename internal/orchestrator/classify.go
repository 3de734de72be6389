package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"voting-token-client/internal/domain"
	"voting-token-client/internal/ethereum"
	"voting-token-client/internal/notify"
)

// Class is the error category of a failed intent.
type Class string

const (
	ClassNone         Class = ""
	ClassDeclined     Class = "declined"
	ClassInvalidInput Class = "invalid_input"
	ClassInFlight     Class = "in_flight"
	ClassConnectivity Class = "connectivity"
	ClassNoSession    Class = "no_session"
	ClassUserRejected Class = "user_rejected"
	ClassAlreadyDone  Class = "already_done"
	ClassInsufficient Class = "insufficient_resource"
	ClassSnapshot     Class = "snapshot"
	ClassSubmission   Class = "submission"
)

func (c Class) severity() notify.Severity {
	switch c {
	case ClassUserRejected:
		return notify.SeverityInfo
	case ClassAlreadyDone, ClassInFlight, ClassNoSession, ClassSnapshot:
		return notify.SeverityWarning
	default:
		return notify.SeverityError
	}
}

// Revert reason fragments the contract uses.
const (
	markerAlreadyVoted = "already voted"
	markerInsufficient = "insufficient"
)

// Classify maps a submit or finality failure onto the error taxonomy. The
// returned error wraps the matching domain sentinel or is a
// *domain.SubmissionError.
func Classify(err error) (Class, error) {
	switch {
	case err == nil:
		return ClassNone, nil
	case errors.Is(err, domain.ErrConnectivity):
		return ClassConnectivity, err
	case errors.Is(err, domain.ErrNoSession):
		return ClassNoSession, err
	case errors.Is(err, domain.ErrUserRejected):
		return ClassUserRejected, err
	case errors.Is(err, domain.ErrAlreadyDone):
		return ClassAlreadyDone, err
	case errors.Is(err, domain.ErrInsufficientResource):
		return ClassInsufficient, err
	}

	var snapErr *domain.SnapshotError
	if errors.As(err, &snapErr) {
		return ClassSnapshot, err
	}

	reason := revertReason(err)
	lower := strings.ToLower(reason)
	switch {
	case strings.Contains(lower, markerAlreadyVoted):
		return ClassAlreadyDone, fmt.Errorf("%w: %w", domain.ErrAlreadyDone, err)
	case strings.Contains(lower, markerInsufficient):
		return ClassInsufficient, fmt.Errorf("%w: %w", domain.ErrInsufficientResource, err)
	}
	return ClassSubmission, &domain.SubmissionError{Reason: reason, Cause: err}
}

func revertReason(err error) string {
	var rev *ethereum.RevertError
	if errors.As(err, &rev) {
		return rev.Reason
	}
	return ""
}

// Reason returns the contract-provided reason carried by err, if any.
func Reason(err error) string {
	var subErr *domain.SubmissionError
	if errors.As(err, &subErr) && subErr.Reason != "" {
		return subErr.Reason
	}
	return revertReason(err)
}
