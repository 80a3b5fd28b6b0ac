package codeentry

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock fires callbacks synchronously from Advance.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	clock *fakeClock
	at    time.Duration
	fn    func()
	done  bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now + d, fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()
	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.done || t.at > target {
				continue
			}
			if next == nil || t.at < next.at {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.done = true
		c.now = next.at
		c.mu.Unlock()
		next.fn()
	}
}

// pending counts timers that are neither fired nor stopped.
func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.done {
			n++
		}
	}
	return n
}

type fakeFocus struct {
	mu    sync.Mutex
	calls []int
}

func (f *fakeFocus) Focus(index int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, index)
}

func (f *fakeFocus) last() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return -1
	}
	return f.calls[len(f.calls)-1]
}

func (f *fakeFocus) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeVerifier struct {
	mu    sync.Mutex
	codes []string
	err   error
	gate  chan struct{}
}

func (v *fakeVerifier) Verify(ctx context.Context, code string) error {
	v.mu.Lock()
	v.codes = append(v.codes, code)
	gate, err := v.gate, v.err
	v.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (v *fakeVerifier) calls() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.codes...)
}

type fakeResender struct {
	calls atomic.Int32
	err   error
}

func (r *fakeResender) Resend(context.Context) error {
	r.calls.Add(1)
	return r.err
}

type harness struct {
	c        *Controller
	clock    *fakeClock
	focus    *fakeFocus
	verifier *fakeVerifier
	resender *fakeResender
	changes  atomic.Int32
}

func newHarness(t *testing.T, mutate ...func(*Options)) *harness {
	t.Helper()
	h := &harness{
		clock:    &fakeClock{},
		focus:    &fakeFocus{},
		verifier: &fakeVerifier{},
		resender: &fakeResender{},
	}
	opts := DefaultOptions()
	opts.Clock = h.clock
	opts.Focus = h.focus
	opts.Verifier = h.verifier
	opts.Resender = h.resender
	opts.OnChange = func() { h.changes.Add(1) }
	for _, m := range mutate {
		m(&opts)
	}
	c, err := New(opts)
	require.NoError(t, err)
	c.Start()
	t.Cleanup(c.Close)
	h.c = c
	return h
}

func noDebounce(o *Options) { o.Debounce = 0 }

func (h *harness) typeCode(digits string) {
	for i := 0; i < len(digits); i++ {
		h.c.OnCellInput(i, digits[i:i+1])
	}
}

// settle lets the debounce fire and waits for the verifier to answer.
func (h *harness) settle() {
	h.clock.Advance(DefaultDebounce)
	h.c.Wait()
}
