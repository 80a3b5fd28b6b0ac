package codeentry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewRequiresVerifier(t *testing.T) {
	c, err := New(Options{})
	require.ErrorIs(t, err, ErrNoVerifier)
	require.Nil(t, c)
}

func TestStartFocusesFirstCell(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	require.Equal(t, 0, h.focus.last())
	snap := h.c.Snapshot()
	require.Equal(t, Idle, snap.State)
	require.Equal(t, 60, snap.Remaining)
	require.False(t, snap.CanResend)
	require.Len(t, snap.Cells, 6)

	h.c.Start()
	require.Equal(t, 1, h.focus.count())
}

func TestEntryAdvancesFocus(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	for i := 0; i < 5; i++ {
		h.c.OnCellInput(i, "7")
		require.Equal(t, i+1, h.focus.last())
		require.Equal(t, i+1, h.c.Snapshot().Focus)
	}
	before := h.focus.count()
	h.c.OnCellInput(5, "7")
	require.Equal(t, before, h.focus.count())
}

func TestPartialEntryNeverDispatches(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.typeCode("12345")
	h.c.OnCellInput(5, "")
	h.clock.Advance(2 * time.Second)
	h.c.Wait()

	require.Empty(t, h.verifier.calls())
	require.Equal(t, Idle, h.c.Snapshot().State)
}

func TestLastCellAloneDoesNotDispatch(t *testing.T) {
	t.Parallel()
	h := newHarness(t, noDebounce)

	h.c.OnCellInput(5, "1")
	h.c.Wait()
	require.Empty(t, h.verifier.calls())
}

func TestNonDigitInputIgnored(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	changes := h.changes.Load()

	h.c.OnCellInput(0, "x")
	h.c.OnCellInput(0, "4a")

	snap := h.c.Snapshot()
	require.Equal(t, []string{"", "", "", "", "", ""}, snap.Cells)
	require.Equal(t, 0, snap.Focus)
	require.Equal(t, changes, h.changes.Load())
}

func TestRepeatedKeystrokeKeepsLatestDigit(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.c.OnCellInput(0, "3")
	h.c.OnCellInput(0, "37")
	require.Equal(t, "7", h.c.Snapshot().Cells[0])
}

func TestBackspaceOnEmptyCellMovesBack(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.typeCode("12")
	require.Equal(t, 2, h.focus.last())

	h.c.OnCellBackspace(2)
	snap := h.c.Snapshot()
	require.Equal(t, []string{"1", "", "", "", "", ""}, snap.Cells)
	require.Equal(t, 1, snap.Focus)
	require.Equal(t, 1, h.focus.last())
}

func TestBackspaceOnFilledCellStaysPut(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.typeCode("123")
	calls := h.focus.count()

	h.c.OnCellBackspace(1)
	require.Equal(t, []string{"1", "", "3", "", "", ""}, h.c.Snapshot().Cells)
	require.Equal(t, calls, h.focus.count())
}

func TestBackspaceOnFirstEmptyCellIsNoop(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	changes := h.changes.Load()

	h.c.OnCellBackspace(0)
	require.Equal(t, changes, h.changes.Load())
	require.Equal(t, 1, h.focus.count())
}

func TestTypedCodeDispatchesOnce(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.typeCode("420691")
	h.c.Wait()
	require.Empty(t, h.verifier.calls(), "dispatch must wait for the debounce")

	h.settle()
	require.Equal(t, []string{"420691"}, h.verifier.calls())

	snap := h.c.Snapshot()
	require.Equal(t, Succeeded, snap.State)
	require.Equal(t, VerifiedNotice, snap.Notice)
	require.Empty(t, snap.Error)

	h.clock.Advance(time.Second)
	h.c.Wait()
	require.Len(t, h.verifier.calls(), 1)
}

func TestRejectedCodeResets(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.verifier.err = errors.New("code mismatch")

	h.typeCode("000000")
	h.settle()

	require.Equal(t, []string{"000000"}, h.verifier.calls())
	snap := h.c.Snapshot()
	require.Equal(t, []string{"", "", "", "", "", ""}, snap.Cells)
	require.Equal(t, Idle, snap.State)
	require.Equal(t, 0, snap.Focus)
	require.Equal(t, 0, h.focus.last())
	require.Equal(t, InvalidCodeMessage, snap.Error)
}

func TestRejectionMessageFromVerifier(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.verifier.err = &Rejection{Message: "This code has expired. Request a new one."}

	h.typeCode("111111")
	h.settle()
	require.Equal(t, "This code has expired. Request a new one.", h.c.Snapshot().Error)
}

func TestRetryAfterRejection(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.verifier.err = errors.New("code mismatch")

	h.typeCode("000000")
	h.settle()

	h.verifier.mu.Lock()
	h.verifier.err = nil
	h.verifier.mu.Unlock()

	h.typeCode("420691")
	require.Equal(t, InvalidCodeMessage, h.c.Snapshot().Error, "error stays until the next attempt")
	h.settle()

	require.Equal(t, []string{"000000", "420691"}, h.verifier.calls())
	snap := h.c.Snapshot()
	require.Equal(t, Succeeded, snap.State)
	require.Empty(t, snap.Error)
}

func TestDebounceRearmsOnEdit(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.typeCode("123456")
	h.clock.Advance(200 * time.Millisecond)
	h.c.OnCellInput(5, "9")
	h.clock.Advance(200 * time.Millisecond)
	h.c.Wait()
	require.Empty(t, h.verifier.calls())

	h.clock.Advance(100 * time.Millisecond)
	h.c.Wait()
	require.Equal(t, []string{"123459"}, h.verifier.calls())
}

func TestIncompleteBeforeDebounceCancels(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.typeCode("123456")
	h.c.OnCellBackspace(5)
	h.clock.Advance(time.Second)
	h.c.Wait()

	require.Empty(t, h.verifier.calls())
	require.Equal(t, Idle, h.c.Snapshot().State)
}

func TestSecondCompletionWhileSubmittingIsIgnored(t *testing.T) {
	t.Parallel()
	h := newHarness(t, noDebounce)
	gate := make(chan struct{})
	h.verifier.gate = gate

	h.c.OnCellPaste(0, "123456")
	require.Equal(t, Submitting, h.c.Snapshot().State)

	h.c.OnCellPaste(0, "654321")
	h.c.OnSubmit()
	close(gate)
	h.c.Wait()

	require.Equal(t, []string{"123456"}, h.verifier.calls())
	require.Equal(t, Succeeded, h.c.Snapshot().State)
}

func TestManualSubmitIncomplete(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.typeCode("123")
	h.c.OnSubmit()

	snap := h.c.Snapshot()
	require.Equal(t, "Please enter all 6 digits", snap.Error)
	require.Equal(t, IncompleteMessage(6), snap.Error)
	require.Equal(t, Idle, snap.State)
	require.Equal(t, []string{"1", "2", "3", "", "", ""}, snap.Cells)
	h.c.Wait()
	require.Empty(t, h.verifier.calls())
}

func TestManualSubmitSkipsDebounce(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.typeCode("987654")
	h.c.OnSubmit()
	require.Equal(t, Submitting, h.c.Snapshot().State)
	h.c.Wait()

	h.clock.Advance(DefaultDebounce)
	h.c.Wait()
	require.Equal(t, []string{"987654"}, h.verifier.calls())
}

func TestInputIgnoredAfterSuccess(t *testing.T) {
	t.Parallel()
	h := newHarness(t, noDebounce)

	h.typeCode("420691")
	h.c.Wait()
	require.Equal(t, Succeeded, h.c.Snapshot().State)

	h.c.OnCellBackspace(5)
	h.c.OnCellInput(0, "1")
	h.c.OnCellPaste(0, "000000")
	h.c.OnSubmit()
	h.c.Wait()

	snap := h.c.Snapshot()
	require.Equal(t, []string{"4", "2", "0", "6", "9", "1"}, snap.Cells)
	require.Len(t, h.verifier.calls(), 1)
}

func TestSuccessStopsCountdown(t *testing.T) {
	t.Parallel()
	h := newHarness(t, noDebounce)

	h.clock.Advance(5 * time.Second)
	h.typeCode("420691")
	h.c.Wait()

	remaining := h.c.Snapshot().Remaining
	require.Equal(t, 55, remaining)
	require.Zero(t, h.clock.pending())

	h.clock.Advance(10 * time.Second)
	require.Equal(t, remaining, h.c.Snapshot().Remaining)
}

func TestCloseReleasesTimers(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.typeCode("123456")
	require.Equal(t, 2, h.clock.pending(), "ticker and debounce")

	h.c.Close()
	require.Zero(t, h.clock.pending())

	h.c.OnCellBackspace(5)
	h.clock.Advance(time.Minute)
	h.c.Wait()
	require.Empty(t, h.verifier.calls())
	require.Equal(t, 60, h.c.Snapshot().Remaining)
}

func TestCloseCancelsVerification(t *testing.T) {
	t.Parallel()
	h := newHarness(t, noDebounce)
	h.verifier.gate = make(chan struct{})

	h.typeCode("123456")
	require.Equal(t, Submitting, h.c.Snapshot().State)

	h.c.Close()
	require.Len(t, h.verifier.calls(), 1)
	require.Equal(t, Submitting, h.c.Snapshot().State)
}

func TestOnChangeNotified(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	before := h.changes.Load()

	h.c.OnCellInput(0, "5")
	require.Equal(t, before+1, h.changes.Load())

	h.clock.Advance(time.Second)
	require.Equal(t, before+2, h.changes.Load())
}

func TestStateString(t *testing.T) {
	require.Equal(t, "idle", Idle.String())
	require.Equal(t, "submitting", Submitting.String())
	require.Equal(t, "succeeded", Succeeded.String())
	require.Equal(t, "failed", Failed.String())
	require.Equal(t, "unknown", State(42).String())
}

func TestMoveFocusStaysInRange(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	changes := h.changes.Load()

	h.c.MoveFocus(-1)
	require.Equal(t, 0, h.c.Snapshot().Focus)
	require.Equal(t, changes, h.changes.Load())

	h.c.MoveFocus(1)
	h.c.MoveFocus(1)
	require.Equal(t, 2, h.c.Snapshot().Focus)
	require.Equal(t, 2, h.focus.last())

	h.c.OnCellInput(2, "5")
	require.Equal(t, 3, h.c.Snapshot().Focus)

	for i := 0; i < 5; i++ {
		h.c.MoveFocus(1)
	}
	require.Equal(t, 5, h.c.Snapshot().Focus)
	require.Equal(t, 5, h.focus.last())
}
