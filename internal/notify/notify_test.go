package notify

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmation_ResolvesOnce(t *testing.T) {
	c := NewConfirmation("sure?")
	require.NoError(t, c.Resolve(true))
	assert.ErrorIs(t, c.Resolve(false), ErrAlreadyResolved)

	ok, err := c.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, ok, "second resolution must not change the answer")
}

func TestConfirmation_ConcurrentResolve(t *testing.T) {
	c := NewConfirmation("race")
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if c.Resolve(i%2 == 0) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestConfirmation_CancelDeclines(t *testing.T) {
	c := NewConfirmation("q")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ok, err := c.Wait(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, c.Resolve(true), ErrAlreadyResolved)
}

func TestChannelGateway_Confirm(t *testing.T) {
	g := NewChannelGateway()
	go func() {
		req := <-g.Requests()
		assert.Equal(t, "End round?", req.Message)
		assert.NoError(t, req.Resolve(true))
		assert.Error(t, req.Resolve(false))
	}()
	ok, err := g.Confirm(context.Background(), "End round?")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestChannelGateway_ConfirmCancelled(t *testing.T) {
	g := NewChannelGateway()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	ok, err := g.Confirm(ctx, "nobody listening")
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestChannelGateway_ProgressIdempotent(t *testing.T) {
	g := NewChannelGateway()
	g.ClearProgress()
	_, busy := g.Progress()
	assert.False(t, busy)

	g.NotifyProgress("Casting Vote...")
	g.NotifyProgress("Casting Vote...")
	msg, busy := g.Progress()
	assert.True(t, busy)
	assert.Equal(t, "Casting Vote...", msg)

	g.ClearProgress()
	g.ClearProgress()
	_, busy = g.Progress()
	assert.False(t, busy)
}

func TestChannelGateway_ToastExpires(t *testing.T) {
	now := time.Unix(1000, 0)
	g := NewChannelGateway(WithClock(func() time.Time { return now }), WithToastTTL(4*time.Second))

	assert.Nil(t, g.Toast())
	g.Notify("Vote Cast Successfully!", SeveritySuccess)
	toast := g.Toast()
	require.NotNil(t, toast)
	assert.Equal(t, SeveritySuccess, toast.Severity)

	now = now.Add(3 * time.Second)
	assert.NotNil(t, g.Toast())
	now = now.Add(time.Second)
	assert.Nil(t, g.Toast())
}

func TestRecorder_ScriptedAnswers(t *testing.T) {
	r := NewRecorder(true, false)
	ctx := context.Background()
	ok, _ := r.Confirm(ctx, "a")
	assert.True(t, ok)
	ok, _ = r.Confirm(ctx, "b")
	assert.False(t, ok)
	ok, _ = r.Confirm(ctx, "c")
	assert.False(t, ok)

	r.NotifyProgress("x")
	assert.True(t, r.Busy())
	r.Notify("done", SeverityInfo)
	r.ClearProgress()
	assert.False(t, r.Busy())
	assert.Equal(t, "done", r.Last().Message)
	assert.Len(t, r.Events(), 6)
}

func TestTerminal(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminal(&out, strings.NewReader("yes\nn\n"), false)
	ctx := context.Background()

	ok, err := term.Confirm(ctx, "Vote for Alice in this round?")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = term.Confirm(ctx, "again?")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = term.Confirm(ctx, "eof?")
	require.NoError(t, err)
	assert.False(t, ok)

	term.NotifyProgress("Minting Tokens to Treasury...")
	term.Notify("Mint Failed", SeverityError)
	assert.Contains(t, out.String(), "... Minting Tokens to Treasury...")
	assert.Contains(t, out.String(), "[ERROR] Mint Failed")

	out.Reset()
	term = NewTerminal(&out, strings.NewReader(""), true)
	ok, err = term.Confirm(ctx, "auto?")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTerminal_CancelledPromptKeepsReader(t *testing.T) {
	pr, pw := io.Pipe()
	var out bytes.Buffer
	term := NewTerminal(&out, pr, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ok, err := term.Confirm(ctx, "End round?")
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)

	go func() {
		_, _ = pw.Write([]byte("y\n"))
		_ = pw.Close()
	}()
	ok, err = term.Confirm(context.Background(), "Vote for Bob in this round?")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = term.Confirm(context.Background(), "after eof?")
	require.NoError(t, err)
	assert.False(t, ok)
}
