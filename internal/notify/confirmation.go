package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrAlreadyResolved is returned when a confirmation is answered twice.
var ErrAlreadyResolved = errors.New("confirmation already resolved")

// Confirmation is a pending yes/no question. It resolves exactly once.
type Confirmation struct {
	ID        uuid.UUID
	Message   string
	CreatedAt time.Time

	once   sync.Once
	answer bool
	done   chan struct{}
}

// NewConfirmation creates an unresolved confirmation.
func NewConfirmation(msg string) *Confirmation {
	return &Confirmation{
		ID:        uuid.New(),
		Message:   msg,
		CreatedAt: time.Now(),
		done:      make(chan struct{}),
	}
}

// Resolve records the answer. Only the first call has any effect.
func (c *Confirmation) Resolve(ok bool) error {
	err := ErrAlreadyResolved
	c.once.Do(func() {
		c.answer = ok
		close(c.done)
		err = nil
	})
	return err
}

// Done is closed once the confirmation is resolved.
func (c *Confirmation) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until resolved or ctx is done. On cancellation the
// confirmation resolves as declined.
func (c *Confirmation) Wait(ctx context.Context) (bool, error) {
	select {
	case <-c.done:
		return c.answer, nil
	case <-ctx.Done():
		_ = c.Resolve(false)
		<-c.done
		if c.answer {
			return true, nil
		}
		return false, ctx.Err()
	}
}
