package notify

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Terminal writes progress and toasts as lines and reads y/N answers.
type Terminal struct {
	mu      sync.Mutex
	out     io.Writer
	in      *bufio.Reader
	autoYes bool
	busy    bool

	// lines is fed by a single reader goroutine, started on the first
	// prompt and closed at end of input.
	readOnce sync.Once
	lines    chan string
}

// NewTerminal creates a terminal gateway. With autoYes every confirmation
// is accepted without reading in.
func NewTerminal(out io.Writer, in io.Reader, autoYes bool) *Terminal {
	return &Terminal{out: out, in: bufio.NewReader(in), autoYes: autoYes}
}

func (t *Terminal) NotifyProgress(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.busy = true
	fmt.Fprintf(t.out, "... %s\n", msg)
}

func (t *Terminal) ClearProgress() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.busy = false
}

func (t *Terminal) Notify(msg string, severity Severity) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "[%s] %s\n", strings.ToUpper(severity.String()), msg)
}

// Confirm asks msg and waits for a line. Anything but y/yes declines.
func (t *Terminal) Confirm(ctx context.Context, msg string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.autoYes {
		fmt.Fprintf(t.out, "%s [y/N] y\n", msg)
		return true, nil
	}
	fmt.Fprintf(t.out, "%s [y/N] ", msg)

	c := NewConfirmation(msg)
	select {
	case line, ok := <-t.answers():
		answer := strings.ToLower(strings.TrimSpace(line))
		_ = c.Resolve(ok && (answer == "y" || answer == "yes"))
	case <-ctx.Done():
	}
	return c.Wait(ctx)
}

func (t *Terminal) answers() <-chan string {
	t.readOnce.Do(func() {
		t.lines = make(chan string)
		go t.readLines()
	})
	return t.lines
}

// readLines owns t.in. A line typed after a cancelled prompt goes to the
// next one.
func (t *Terminal) readLines() {
	defer close(t.lines)
	for {
		line, err := t.in.ReadString('\n')
		if line != "" {
			t.lines <- line
		}
		if err != nil {
			return
		}
	}
}

var _ Gateway = (*Terminal)(nil)
