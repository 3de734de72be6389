// Package orchestrator drives user intents against the voting contract.
// Every intent runs: pre-check → confirm → submit → wait for finality →
// refresh the mirror.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/sirupsen/logrus"

	"voting-token-client/internal/contract"
	"voting-token-client/internal/domain"
	"voting-token-client/internal/ethereum"
	"voting-token-client/internal/log"
	"voting-token-client/internal/mirror"
	"voting-token-client/internal/notify"
	"voting-token-client/internal/observability"
	"voting-token-client/internal/session"
)

// State is the position of an intent in its lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StatePreChecked State = "pre_checked"
	StateConfirmed  State = "confirmed"
	StateSubmitted  State = "submitted"
	StateFinalized  State = "finalized"
	StateFailed     State = "failed"
)

// Finalizer waits until a submitted transaction is durably applied.
type Finalizer interface {
	WaitFinalized(ctx context.Context, hash ethtypes.HexBytes0xPrefix, msg *ethereum.CallMsg) (*ethereum.Receipt, error)
}

// Sessions is the part of the session manager the orchestrator uses.
type Sessions interface {
	Capability() (*session.Capability, error)
	Refresh(ctx context.Context) (*domain.Snapshot, error)
	ReloadProfile(ctx context.Context) error
	Mirror() *mirror.Store
}

// Orchestrator executes intents one protocol run at a time per target.
// Different intents may run concurrently.
type Orchestrator struct {
	sessions  Sessions
	voting    *contract.Voting
	gateway   notify.Gateway
	finalizer Finalizer
	lifetime  context.Context
	inFlight  *inFlight
}

// Options for creating Orchestrator.
type Options struct {
	Sessions  Sessions
	Voting    *contract.Voting
	Gateway   notify.Gateway
	Finalizer Finalizer

	// Lifetime bounds finality waits and post-submit refreshes. Only its
	// cancellation (process teardown) abandons a submitted intent.
	// Defaults to context.Background().
	Lifetime context.Context
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Gateway == nil {
		opts.Gateway = notify.Discard{}
	}
	if opts.Lifetime == nil {
		opts.Lifetime = context.Background()
	}
	return &Orchestrator{
		sessions:  opts.Sessions,
		voting:    opts.Voting,
		gateway:   opts.Gateway,
		finalizer: opts.Finalizer,
		lifetime:  opts.Lifetime,
		inFlight:  newInFlight(),
	}
}

// Outcome is the result of one Execute call.
type Outcome struct {
	ID      uuid.UUID
	Action  string
	State   State
	History []State
	TxHash  string
	Class   Class
	Err     error
	// Message is the text surfaced through the gateway, if any.
	Message string
	// RefreshErr is set when the intent was finalized but the follow-up
	// snapshot load failed.
	RefreshErr error
}

func (out *Outcome) transition(s State) {
	out.State = s
	out.History = append(out.History, s)
}

// Succeeded reports whether the intent was finalized.
func (out *Outcome) Succeeded() bool {
	return out.State == StateFinalized
}

// Execute runs intent through the full protocol. Failures are classified,
// surfaced through the gateway and returned in the Outcome; Execute itself
// never fails. Progress is cleared and the in-flight marker released on
// every path.
func (o *Orchestrator) Execute(ctx context.Context, intent Intent) (out *Outcome) {
	out = &Outcome{ID: uuid.New(), Action: intent.Action()}
	out.transition(StateIdle)
	ctx = log.WithLogField(ctx, "intent", out.ID.String())
	ctx = log.WithLogField(ctx, "action", out.Action)

	var p *plan
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err := &domain.SubmissionError{Cause: fmt.Errorf("internal error: %v", r)}
			msg := "Transaction failed"
			if p != nil {
				msg = p.message(ClassSubmission, err)
			}
			o.fail(ctx, out, ClassSubmission, err, msg, notify.SeverityError)
		}
		observability.RecordIntent(out.Action, string(out.State), string(out.Class))
		log.L(ctx).WithFields(logrus.Fields{
			"state":   out.State,
			"class":   out.Class,
			"tx":      out.TxHash,
			"elapsed": time.Since(start).String(),
		}).Info("Intent completed")
	}()

	p, err := intent.plan(ctx, o)
	if err != nil {
		o.failInput(ctx, out, err)
		return out
	}

	if !o.inFlight.acquire(p.key) {
		o.fail(ctx, out, ClassInFlight, fmt.Errorf("%w: %s", domain.ErrInFlight, p.key), "This action is already in progress", notify.SeverityWarning)
		return out
	}
	defer o.inFlight.release(p.key)

	if p.precheck != nil {
		if err := p.precheck(); err != nil {
			o.fail(ctx, out, ClassAlreadyDone, err, p.precheckMsg, notify.SeverityWarning)
			return out
		}
	}
	out.transition(StatePreChecked)

	if p.confirm != "" {
		ok, err := o.gateway.Confirm(ctx, p.confirm)
		if err != nil || !ok {
			out.Class = ClassDeclined
			out.transition(StateIdle)
			log.L(ctx).Debug("Intent declined")
			return out
		}
	}
	out.transition(StateConfirmed)

	o.gateway.NotifyProgress(p.progress)
	defer o.gateway.ClearProgress()

	c, err := o.sessions.Capability()
	if err != nil {
		o.failClassified(ctx, out, p, err)
		return out
	}
	msg, err := p.build(ctx, c)
	if err != nil {
		o.failClassified(ctx, out, p, err)
		return out
	}
	hash, err := c.Send(ctx, msg)
	if err != nil {
		o.failClassified(ctx, out, p, err)
		return out
	}
	out.TxHash = hash.String()
	out.transition(StateSubmitted)
	log.L(ctx).WithField("tx", out.TxHash).Info("Intent submitted")

	// From here on only process teardown may interrupt the intent.
	life := log.WithLogger(o.lifetime, log.L(ctx))
	sent := *msg
	account := c.Account()
	sent.From = &account

	waitStart := time.Now()
	_, err = o.finalizer.WaitFinalized(life, hash, &sent)
	observability.RecordFinalityWait(out.Action, time.Since(waitStart).Seconds())
	if err != nil {
		o.failClassified(ctx, out, p, err)
		return out
	}
	out.transition(StateFinalized)

	if _, err := o.sessions.Refresh(life); err != nil {
		out.RefreshErr = err
		log.L(ctx).WithError(err).Warn("Refresh after intent failed")
	}
	if p.after != nil {
		p.after(life)
	}
	out.Message = p.success
	o.gateway.Notify(p.success, notify.SeveritySuccess)
	if out.RefreshErr != nil {
		o.gateway.Notify("Transaction confirmed but data could not be refreshed", notify.SeverityWarning)
	}
	return out
}

func (o *Orchestrator) fail(ctx context.Context, out *Outcome, class Class, err error, msg string, sev notify.Severity) {
	out.Class = class
	out.Err = err
	out.transition(StateFailed)
	log.L(ctx).WithError(err).WithField("class", class).Warn("Intent failed")
	if msg != "" {
		out.Message = msg
		o.gateway.Notify(msg, sev)
	}
}

func (o *Orchestrator) failInput(ctx context.Context, out *Outcome, err error) {
	var verr *validationError
	if errors.As(err, &verr) {
		o.fail(ctx, out, ClassInvalidInput, err, verr.msg, verr.severity)
		return
	}
	o.fail(ctx, out, ClassInvalidInput, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err), err.Error(), notify.SeverityError)
}

func (o *Orchestrator) failClassified(ctx context.Context, out *Outcome, p *plan, err error) {
	class, wrapped := Classify(err)
	o.fail(ctx, out, class, wrapped, p.message(class, wrapped), class.severity())
}
