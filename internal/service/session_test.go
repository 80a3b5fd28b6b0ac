package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coozie/coozie/internal/codeentry"
)

func TestCodeSessionMapsErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	session := &CodeSession{Service: f.svc, Email: "ada@example.com"}

	err := session.Verify(ctx, "123456")
	var rej *codeentry.Rejection
	require.ErrorAs(t, err, &rej)
	require.Equal(t, NoActiveCodeMessage, rej.Message)
	require.ErrorIs(t, err, ErrNoActiveCode)

	_, err = f.svc.Issue(ctx, "ada@example.com")
	require.NoError(t, err)
	code := f.mailer.last()

	err = session.Verify(ctx, wrong(code))
	require.ErrorAs(t, err, &rej)
	require.Equal(t, codeentry.InvalidCodeMessage, rej.Message)
	require.Empty(t, session.Token())

	require.NoError(t, session.Verify(ctx, code))
	require.NotEmpty(t, session.Token())
}

func TestCodeSessionResendThrottled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	session := &CodeSession{Service: f.svc, Email: "ada@example.com"}

	for i := 0; i < 3; i++ {
		require.NoError(t, session.Resend(ctx))
		f.clock.Advance(time.Second)
	}
	err := session.Resend(ctx)
	var rej *codeentry.Rejection
	require.ErrorAs(t, err, &rej)
	require.Equal(t, ThrottledMessage, rej.Message)
}

func TestRejectionPassesUnknownErrors(t *testing.T) {
	t.Parallel()
	boom := errors.New("disk full")
	require.Same(t, boom, rejection(boom))
}

func TestCodeSessionExpiryMessages(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	session := &CodeSession{Service: f.svc, Email: "ada@example.com"}
	var rej *codeentry.Rejection

	_, err := f.svc.Issue(ctx, "ada@example.com")
	require.NoError(t, err)
	code := f.mailer.last()
	for i := 0; i < 5; i++ {
		err = session.Verify(ctx, wrong(code))
	}
	require.ErrorAs(t, err, &rej)
	require.Equal(t, "Too many attempts, please resend.", rej.Message)

	f.clock.Advance(time.Minute)
	require.NoError(t, session.Resend(ctx))
	f.clock.Advance(10 * time.Minute)
	err = session.Verify(ctx, f.mailer.last())
	require.ErrorAs(t, err, &rej)
	require.Equal(t, "Code expired, please resend.", rej.Message)
}
