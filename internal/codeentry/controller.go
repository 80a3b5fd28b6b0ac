package codeentry

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Reproduced timings of the verification screen.
const (
	DefaultDebounce     = 300 * time.Millisecond
	DefaultCooldown     = 60 * time.Second
	DefaultNoticeWindow = 3 * time.Second
)

// ErrNoVerifier is returned by New when Options.Verifier is nil.
var ErrNoVerifier = errors.New("codeentry: verifier required")

// State is the submission lifecycle of one verification attempt.
type State int

const (
	Idle State = iota
	Submitting
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// FocusManager moves input focus between rendered cells. Focus must be a
// no-op for a cell that is not mounted.
type FocusManager interface {
	Focus(index int)
}

// Verifier checks a complete code. A nil error means the code was accepted.
type Verifier interface {
	Verify(ctx context.Context, code string) error
}

// Resender asks for a fresh code to be delivered.
type Resender interface {
	Resend(ctx context.Context) error
}

// Options configures a Controller. Zero durations disable the matching delay:
// no debounce, no cooldown, notices that stay until replaced.
type Options struct {
	Length       int
	Debounce     time.Duration
	Cooldown     time.Duration
	NoticeWindow time.Duration

	Clock    Clock
	Focus    FocusManager
	Verifier Verifier
	Resender Resender

	// OnChange is called after every visible state change, outside the
	// controller's lock and possibly from a timer goroutine.
	OnChange func()
	Log      *zap.Logger
}

// DefaultOptions returns the screen's reproduced timings for a six digit code.
func DefaultOptions() Options {
	return Options{
		Length:       DefaultLength,
		Debounce:     DefaultDebounce,
		Cooldown:     DefaultCooldown,
		NoticeWindow: DefaultNoticeWindow,
	}
}

// Snapshot is everything a host needs to render the screen.
type Snapshot struct {
	Cells     []string
	// Focus is the focused cell. Hosts move focus through the controller
	// (MoveFocus and the input events), so it matches the FocusManager.
	Focus     int
	State     State
	Remaining int
	CanResend bool
	Notice    string
	Error     string
}

// Controller coordinates one verification attempt. Its methods are safe to
// call from any goroutine; all events are applied one at a time.
type Controller struct {
	mu    sync.Mutex
	opts  Options
	log   *zap.Logger
	slots *Slots

	focus        int
	pendingFocus int
	state        State
	remaining    int
	notice       string
	errText      string
	started      bool
	closed       bool

	// owned handles, released by Close
	ticker      Timer
	tickGen     uint64
	debounce    Timer
	debounceGen uint64
	noticeTimer Timer
	noticeGen   uint64

	ctx    context.Context
	cancel context.CancelFunc
	tasks  errgroup.Group
}

type noFocus struct{}

func (noFocus) Focus(int) {}

// New builds a controller. Call Start once the cells are mounted and Close
// when the screen goes away.
func New(opts Options) (*Controller, error) {
	if opts.Verifier == nil {
		return nil, ErrNoVerifier
	}
	if opts.Length < 1 {
		opts.Length = DefaultLength
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.Focus == nil {
		opts.Focus = noFocus{}
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		opts:         opts,
		log:          log.Named("codeentry"),
		slots:        NewSlots(opts.Length),
		pendingFocus: -1,
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

// Start focuses the first cell and starts the resend cooldown. Later calls
// do nothing.
func (c *Controller) Start() {
	c.apply(func() bool {
		if c.started {
			return false
		}
		c.started = true
		c.moveFocus(0)
		c.startCooldown()
		return true
	})
}

// OnCellInput handles text typed into cell index.
func (c *Controller) OnCellInput(index int, text string) {
	c.apply(func() bool {
		if c.state == Succeeded || !c.slots.Set(index, text) {
			return false
		}
		if c.slots.Get(index) != "" && index < c.slots.Len()-1 {
			c.moveFocus(index + 1)
		}
		c.checkCompletion()
		return true
	})
}

// OnCellBackspace handles backspace in cell index. A filled cell is cleared
// in place; an empty cell clears and focuses the one before it.
func (c *Controller) OnCellBackspace(index int) {
	c.apply(func() bool {
		if c.state == Succeeded || index < 0 || index >= c.slots.Len() {
			return false
		}
		switch {
		case c.slots.Get(index) != "":
			c.slots.Clear(index)
		case index > 0:
			c.slots.Clear(index - 1)
			c.moveFocus(index - 1)
		default:
			return false
		}
		c.checkCompletion()
		return true
	})
}

// OnCellPaste spreads the digits of text over the cells starting at index.
func (c *Controller) OnCellPaste(index int, text string) {
	c.apply(func() bool {
		if c.state == Succeeded || index < 0 || index >= c.slots.Len() {
			return false
		}
		c.slots.Fill(index, Digits(text))
		next := c.slots.FirstEmpty()
		if next == -1 {
			next = c.slots.Len() - 1
		}
		c.moveFocus(next)
		c.checkCompletion()
		return true
	})
}

// MoveFocus shifts focus by delta cells for host navigation keys. Moves
// past either end are dropped.
func (c *Controller) MoveFocus(delta int) {
	c.apply(func() bool {
		next := c.focus + delta
		if c.state == Succeeded || delta == 0 || next < 0 || next >= c.slots.Len() {
			return false
		}
		c.moveFocus(next)
		return true
	})
}

// OnSubmit is the manual submit path. An incomplete code only shows the
// length error.
func (c *Controller) OnSubmit() {
	c.apply(func() bool {
		if c.state != Idle {
			return false
		}
		if !c.slots.Full() {
			c.errText = IncompleteMessage(c.slots.Len())
			return true
		}
		c.stopDebounce()
		return c.dispatch()
	})
}

// OnResendClicked requests a new code once the cooldown has run out.
func (c *Controller) OnResendClicked() {
	c.apply(func() bool {
		if c.state == Succeeded || c.remaining > 0 {
			return false
		}
		c.showNotice(ResentNotice)
		c.startCooldown()
		if r := c.opts.Resender; r != nil {
			ctx := c.ctx
			c.tasks.Go(func() error {
				if err := r.Resend(ctx); err != nil {
					c.resendFailed(err)
				}
				return nil
			})
		}
		c.log.Debug("resend requested")
		return true
	})
}

// Snapshot returns a copy of the render state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Cells:     c.slots.Values(),
		Focus:     c.focus,
		State:     c.state,
		Remaining: c.remaining,
		CanResend: c.remaining == 0,
		Notice:    c.notice,
		Error:     c.errText,
	}
}

// Wait blocks until in-flight Verifier and Resender calls have returned.
func (c *Controller) Wait() {
	_ = c.tasks.Wait()
}

// Close releases the ticker, debounce and notice timers, cancels in-flight
// calls and waits for them. Every event after Close is ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopDebounce()
	c.stopTicker()
	c.stopNotice()
	c.cancel()
	c.mu.Unlock()

	c.Wait()
}

// apply runs fn under the lock, then delivers focus and change notifications
// outside it. fn reports whether anything visible changed.
func (c *Controller) apply(fn func() bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	changed := fn()
	focus := c.pendingFocus
	c.pendingFocus = -1
	c.mu.Unlock()

	if focus >= 0 {
		c.opts.Focus.Focus(focus)
	}
	if changed && c.opts.OnChange != nil {
		c.opts.OnChange()
	}
}

func (c *Controller) moveFocus(index int) {
	c.focus = index
	c.pendingFocus = index
}

// checkCompletion arms a dispatch whenever the sequence is full while idle
// and drops a pending one once it is not.
func (c *Controller) checkCompletion() {
	if c.state != Idle {
		return
	}
	c.stopDebounce()
	if !c.slots.Full() {
		return
	}
	if c.opts.Debounce <= 0 {
		c.dispatch()
		return
	}
	gen := c.debounceGen
	c.debounce = c.opts.Clock.AfterFunc(c.opts.Debounce, func() {
		c.apply(func() bool {
			if gen != c.debounceGen {
				return false
			}
			c.debounce = nil
			return c.dispatch()
		})
	})
}

func (c *Controller) dispatch() bool {
	if c.state != Idle {
		return false
	}
	if !c.slots.Full() {
		c.errText = IncompleteMessage(c.slots.Len())
		return true
	}
	code := c.slots.Code()
	c.state = Submitting
	c.errText = ""
	ctx := c.ctx
	c.tasks.Go(func() error {
		c.finish(c.opts.Verifier.Verify(ctx, code))
		return nil
	})
	c.log.Debug("code dispatched")
	return true
}

func (c *Controller) finish(err error) {
	c.apply(func() bool {
		if c.state != Submitting {
			return false
		}
		c.stopDebounce()
		if err == nil {
			c.state = Succeeded
			c.errText = ""
			c.stopTicker()
			c.stopNotice()
			c.notice = VerifiedNotice
			c.log.Info("code accepted")
			return true
		}
		c.state = Failed
		c.log.Info("code rejected", zap.Error(err))
		c.errText = messageFor(err, InvalidCodeMessage)
		c.slots.Reset()
		c.state = Idle
		c.moveFocus(0)
		return true
	})
}

func (c *Controller) resendFailed(err error) {
	c.apply(func() bool {
		if c.state == Succeeded {
			return false
		}
		c.log.Warn("resend failed", zap.Error(err))
		c.showNotice(messageFor(err, ResendFailedMessage))
		return true
	})
}

func (c *Controller) startCooldown() {
	c.stopTicker()
	c.remaining = int((c.opts.Cooldown + time.Second - 1) / time.Second)
	if c.remaining > 0 {
		c.scheduleTick()
	}
}

func (c *Controller) scheduleTick() {
	gen := c.tickGen
	c.ticker = c.opts.Clock.AfterFunc(time.Second, func() {
		c.apply(func() bool {
			if gen != c.tickGen {
				return false
			}
			c.ticker = nil
			c.remaining--
			if c.remaining > 0 {
				c.scheduleTick()
			} else {
				c.remaining = 0
			}
			return true
		})
	})
}

func (c *Controller) showNotice(text string) {
	c.stopNotice()
	c.notice = text
	if c.opts.NoticeWindow <= 0 {
		return
	}
	gen := c.noticeGen
	c.noticeTimer = c.opts.Clock.AfterFunc(c.opts.NoticeWindow, func() {
		c.apply(func() bool {
			if gen != c.noticeGen {
				return false
			}
			c.noticeTimer = nil
			c.notice = ""
			return true
		})
	})
}

// The stop helpers bump the generation so a callback that already fired and
// is waiting for the lock becomes a no-op.

func (c *Controller) stopDebounce() {
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
	c.debounceGen++
}

func (c *Controller) stopTicker() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
	c.tickGen++
}

func (c *Controller) stopNotice() {
	if c.noticeTimer != nil {
		c.noticeTimer.Stop()
		c.noticeTimer = nil
	}
	c.noticeGen++
}
