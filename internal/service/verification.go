package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/coozie/coozie/internal/config"
	"github.com/coozie/coozie/internal/database"
	"github.com/coozie/coozie/internal/database/repository"
)

var (
	ErrResendThrottled = errors.New("resend throttled")
	ErrTooManyAttempts = errors.New("too many attempts")
	ErrCodeExpired     = errors.New("code expired")
	ErrCodeInvalid     = errors.New("code invalid")
	ErrNoActiveCode    = errors.New("no active code")
)

// Policy bounds how codes are issued and checked.
type Policy struct {
	Length       int
	TTL          time.Duration
	MaxAttempts  int
	MaxResends   int
	ResendWindow time.Duration
	HashCost     int // bcrypt cost; 0 means bcrypt.DefaultCost
}

func DefaultPolicy() Policy {
	return Policy{
		Length:       6,
		TTL:          10 * time.Minute,
		MaxAttempts:  5,
		MaxResends:   3,
		ResendWindow: 10 * time.Minute,
	}
}

func PolicyFromConfig(c config.CodeConfig) Policy {
	return Policy{
		Length:       c.Length,
		TTL:          c.TTL,
		MaxAttempts:  c.MaxAttempts,
		MaxResends:   c.MaxResends,
		ResendWindow: c.ResendWindow,
	}
}

// Mailer delivers a code to an address.
type Mailer interface {
	SendCode(ctx context.Context, to, code string, ttl time.Duration) error
}

// Issued describes a code that was just sent.
type Issued struct {
	Email     string
	ExpiresAt time.Time
}

// VerificationService issues and checks email verification codes. Every send
// stores a new bcrypt hash; the plain code only ever reaches the Mailer.
type VerificationService struct {
	DB     *sql.DB
	Users  *repository.UserRepo
	Codes  *repository.CodeRepo
	Mailer Mailer
	Tokens *TokenIssuer
	Policy Policy
	Clock  func() time.Time
	Log    *zap.Logger
}

func (s *VerificationService) now() time.Time {
	if s.Clock != nil {
		return s.Clock().UTC().Truncate(time.Second)
	}
	return database.Now()
}

// inTx runs fn with repos bound to one transaction. Without a DB it runs
// fn on the plain repos.
func (s *VerificationService) inTx(ctx context.Context, fn func(*repository.UserRepo, *repository.CodeRepo) error) error {
	if s.DB == nil {
		return fn(s.Users, s.Codes)
	}
	return database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		return fn(s.Users.WithTx(tx), s.Codes.WithTx(tx))
	})
}

func (s *VerificationService) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

// Issue sends a fresh code to email, subject to the resend throttle.
func (s *VerificationService) Issue(ctx context.Context, email string) (Issued, error) {
	email, err := ValidateEmail(email)
	if err != nil {
		return Issued{}, err
	}
	if s.Users == nil || s.Codes == nil || s.Mailer == nil {
		return Issued{}, fmt.Errorf("verification: repositories or mailer not configured")
	}
	now := s.now()
	user, err := s.Users.Upsert(ctx, email, now)
	if err != nil {
		return Issued{}, err
	}

	if s.Policy.MaxResends > 0 {
		sent, err := s.Codes.CountSince(ctx, user.ID, now.Add(-s.Policy.ResendWindow))
		if err != nil {
			return Issued{}, err
		}
		if sent >= s.Policy.MaxResends {
			s.log().Info("resend throttled", zap.String("email", email), zap.Int("sent", sent))
			return Issued{}, ErrResendThrottled
		}
	}

	code, err := GenerateCode(s.Policy.Length)
	if err != nil {
		return Issued{}, err
	}
	cost := s.Policy.HashCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), cost)
	if err != nil {
		return Issued{}, fmt.Errorf("bcrypt generate: %w", err)
	}
	// Store the row only after delivery; a failed send keeps the previous
	// code live.
	if err := s.Mailer.SendCode(ctx, email, code, s.Policy.TTL); err != nil {
		return Issued{}, fmt.Errorf("send code: %w", err)
	}
	rec, err := s.Codes.Create(ctx, user.ID, string(hash), now, now.Add(s.Policy.TTL))
	if err != nil {
		return Issued{}, err
	}
	s.log().Info("code issued", zap.String("email", email), zap.Time("expires_at", rec.ExpiresAt))
	return Issued{Email: email, ExpiresAt: rec.ExpiresAt}, nil
}

// Resend issues a new code; the previous one is superseded.
func (s *VerificationService) Resend(ctx context.Context, email string) error {
	_, err := s.Issue(ctx, email)
	return err
}

// Verify checks code against the latest send for email. On success the code
// is consumed, the user is marked verified and a session token is returned.
func (s *VerificationService) Verify(ctx context.Context, email, code string) (string, error) {
	email = NormalizeEmail(email)
	user, err := s.Users.ByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrNoActiveCode
	}
	rec, err := s.Codes.Latest(ctx, user.ID)
	if err != nil {
		return "", err
	}
	if rec == nil || rec.Confirmed {
		return "", ErrNoActiveCode
	}
	now := s.now()
	if rec.Expired(now) {
		return "", ErrCodeExpired
	}

	if err := bcrypt.CompareHashAndPassword([]byte(rec.CodeHash), []byte(code)); err != nil {
		attempts, incErr := s.Codes.IncrementAttempts(ctx, rec.ID)
		if incErr != nil {
			return "", incErr
		}
		s.log().Info("code mismatch", zap.String("email", email), zap.Int("attempts", attempts))
		if s.Policy.MaxAttempts > 0 && attempts >= s.Policy.MaxAttempts {
			if err := s.Codes.ExpireNow(ctx, rec.ID, now); err != nil {
				return "", err
			}
			return "", ErrTooManyAttempts
		}
		return "", ErrCodeInvalid
	}

	err = s.inTx(ctx, func(users *repository.UserRepo, codes *repository.CodeRepo) error {
		if err := codes.MarkConfirmed(ctx, rec.ID); err != nil {
			return err
		}
		return users.MarkVerified(ctx, user.ID, now)
	})
	if err != nil {
		return "", fmt.Errorf("confirm code: %w", err)
	}
	s.log().Info("code confirmed", zap.String("email", email))
	if s.Tokens == nil {
		return "", nil
	}
	return s.Tokens.Issue(email)
}

// GenerateCode returns n uniformly random decimal digits.
func GenerateCode(n int) (string, error) {
	if n < 1 || n > 18 {
		return "", fmt.Errorf("code length %d out of range", n)
	}
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
	v, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", n, v.Int64()), nil
}
