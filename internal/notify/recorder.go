package notify

import (
	"context"
	"sync"
)

// Event is one call recorded by Recorder.
type Event struct {
	Kind     string // progress, clear, notify, confirm
	Message  string
	Severity Severity
}

// Recorder records every gateway call and answers confirmations from a
// script. Once the script is exhausted it answers Default.
type Recorder struct {
	mu      sync.Mutex
	events  []Event
	answers []bool
	busy    bool

	Default bool
	// OnConfirm, when set, runs before the answer is returned.
	OnConfirm func(msg string)
}

// NewRecorder answers confirmations with answers, in order.
func NewRecorder(answers ...bool) *Recorder {
	return &Recorder{answers: answers}
}

func (r *Recorder) record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	switch e.Kind {
	case "progress":
		r.busy = true
	case "clear":
		r.busy = false
	}
}

func (r *Recorder) NotifyProgress(msg string) {
	r.record(Event{Kind: "progress", Message: msg})
}

func (r *Recorder) ClearProgress() {
	r.record(Event{Kind: "clear"})
}

func (r *Recorder) Notify(msg string, severity Severity) {
	r.record(Event{Kind: "notify", Message: msg, Severity: severity})
}

func (r *Recorder) Confirm(ctx context.Context, msg string) (bool, error) {
	r.record(Event{Kind: "confirm", Message: msg})
	if r.OnConfirm != nil {
		r.OnConfirm(msg)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.answers) == 0 {
		return r.Default, nil
	}
	ok := r.answers[0]
	r.answers = r.answers[1:]
	return ok, nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Busy reports whether progress is currently shown.
func (r *Recorder) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.busy
}

// Toasts returns the notify events.
func (r *Recorder) Toasts() []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Kind == "notify" {
			out = append(out, e)
		}
	}
	return out
}

// Last returns the most recent toast, or a zero Event.
func (r *Recorder) Last() Event {
	toasts := r.Toasts()
	if len(toasts) == 0 {
		return Event{}
	}
	return toasts[len(toasts)-1]
}

var _ Gateway = (*Recorder)(nil)
