// Package notify defines how the core surfaces progress, toasts and
// yes/no confirmations to whatever renders them.
package notify

import (
	"context"
)

// Severity classifies a toast.
type Severity int

const (
	SeverityInfo Severity = iota
	SeveritySuccess
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeveritySuccess:
		return "success"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

// Gateway is the notification surface consumed by the orchestrator.
type Gateway interface {
	// NotifyProgress shows a busy indicator with msg. Calling it again
	// replaces the message.
	NotifyProgress(msg string)

	// ClearProgress hides the busy indicator. Safe to call when hidden.
	ClearProgress()

	// Notify shows an auto-expiring toast.
	Notify(msg string, severity Severity)

	// Confirm blocks until the user answers or ctx is done.
	Confirm(ctx context.Context, msg string) (bool, error)
}

// Discard is a Gateway that shows nothing and declines every confirmation.
type Discard struct{}

func (Discard) NotifyProgress(string)   {}
func (Discard) ClearProgress()          {}
func (Discard) Notify(string, Severity) {}

func (Discard) Confirm(context.Context, string) (bool, error) {
	return false, nil
}

var _ Gateway = Discard{}
