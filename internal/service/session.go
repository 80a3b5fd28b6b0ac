package service

import (
	"context"
	"errors"
	"sync"

	"github.com/coozie/coozie/internal/codeentry"
)

// User-facing texts for service failures.
const (
	ExpiredMessage      = "Code expired, please resend."
	TooManyMessage      = "Too many attempts, please resend."
	NoActiveCodeMessage = "No active code, please resend."
	ThrottledMessage    = "Too many requests, try again later."
)

var (
	_ codeentry.Verifier = (*CodeSession)(nil)
	_ codeentry.Resender = (*CodeSession)(nil)
)

// CodeSession binds one email address to the controller's Verifier and
// Resender and keeps the token from a successful verification.
type CodeSession struct {
	Service *VerificationService
	Email   string

	mu    sync.Mutex
	token string
}

func (s *CodeSession) Verify(ctx context.Context, code string) error {
	token, err := s.Service.Verify(ctx, s.Email, code)
	if err != nil {
		return rejection(err)
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

func (s *CodeSession) Resend(ctx context.Context) error {
	if err := s.Service.Resend(ctx, s.Email); err != nil {
		return rejection(err)
	}
	return nil
}

// Token returns the session token, or "" before a successful Verify.
func (s *CodeSession) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func rejection(err error) error {
	var msg string
	switch {
	case errors.Is(err, ErrCodeInvalid):
		msg = codeentry.InvalidCodeMessage
	case errors.Is(err, ErrCodeExpired):
		msg = ExpiredMessage
	case errors.Is(err, ErrTooManyAttempts):
		msg = TooManyMessage
	case errors.Is(err, ErrNoActiveCode):
		msg = NoActiveCodeMessage
	case errors.Is(err, ErrResendThrottled):
		msg = ThrottledMessage
	default:
		return err
	}
	return &codeentry.Rejection{Message: msg, Err: err}
}
