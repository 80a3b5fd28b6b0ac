package codeentry

import (
	"errors"
	"fmt"
)

// Texts shown to the user.
const (
	InvalidCodeMessage   = "Invalid verification code. Please try again."
	ResendFailedMessage  = "Could not resend the code. Please try again later."
	ResentNotice         = "✓ Verification code resent!"
	VerifiedNotice       = "✓ Verification successful! Redirecting..."
	incompleteCodeFormat = "Please enter all %d digits"
)

// IncompleteMessage is the validation error for a code shorter than n digits.
func IncompleteMessage(n int) string {
	return fmt.Sprintf(incompleteCodeFormat, n)
}

// Rejection lets a Verifier or Resender choose the message the user sees.
// Any other error is shown with the controller's generic text.
type Rejection struct {
	Message string
	Err     error
}

func (r *Rejection) Error() string {
	if r.Err == nil {
		return r.Message
	}
	return r.Message + ": " + r.Err.Error()
}

func (r *Rejection) Unwrap() error { return r.Err }

func messageFor(err error, fallback string) string {
	var r *Rejection
	if errors.As(err, &r) && r.Message != "" {
		return r.Message
	}
	return fallback
}
