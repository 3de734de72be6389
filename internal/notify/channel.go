package notify

import (
	"context"
	"sync"
	"time"

	"voting-token-client/internal/observability"
)

// DefaultToastTTL is how long a toast stays visible.
const DefaultToastTTL = 4 * time.Second

// Toast is a visible notification.
type Toast struct {
	Message   string
	Severity  Severity
	ExpiresAt time.Time
}

// ChannelGateway keeps progress and toast state for a renderer to poll,
// and publishes confirmations on a channel for it to answer.
type ChannelGateway struct {
	mu       sync.Mutex
	busy     bool
	progress string
	toast    *Toast
	ttl      time.Duration
	now      func() time.Time
	requests chan *Confirmation
}

// Option configures a ChannelGateway.
type Option func(*ChannelGateway)

// WithToastTTL sets the toast lifetime.
func WithToastTTL(ttl time.Duration) Option {
	return func(g *ChannelGateway) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *ChannelGateway) {
		g.now = now
	}
}

// NewChannelGateway creates a gateway with an unbuffered request channel.
func NewChannelGateway(opts ...Option) *ChannelGateway {
	g := &ChannelGateway{
		ttl:      DefaultToastTTL,
		now:      time.Now,
		requests: make(chan *Confirmation),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *ChannelGateway) NotifyProgress(msg string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.busy = true
	g.progress = msg
}

func (g *ChannelGateway) ClearProgress() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.busy = false
	g.progress = ""
}

// Progress returns the busy message and whether the indicator is shown.
func (g *ChannelGateway) Progress() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.progress, g.busy
}

func (g *ChannelGateway) Notify(msg string, severity Severity) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.toast = &Toast{Message: msg, Severity: severity, ExpiresAt: g.now().Add(g.ttl)}
}

// Toast returns the current toast, or nil once it has expired.
func (g *ChannelGateway) Toast() *Toast {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.toast == nil || !g.now().Before(g.toast.ExpiresAt) {
		g.toast = nil
		return nil
	}
	t := *g.toast
	return &t
}

// Requests delivers confirmations awaiting an answer.
func (g *ChannelGateway) Requests() <-chan *Confirmation {
	return g.requests
}

// Confirm publishes a confirmation and waits for it to be resolved.
func (g *ChannelGateway) Confirm(ctx context.Context, msg string) (bool, error) {
	c := NewConfirmation(msg)
	observability.AddPendingConfirmations(1)
	defer observability.AddPendingConfirmations(-1)
	select {
	case g.requests <- c:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	return c.Wait(ctx)
}

var _ Gateway = (*ChannelGateway)(nil)
