package service

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/coozie/coozie/internal/secrets"
)

// ErrNoSigningKey is returned when a TokenIssuer has no key.
var ErrNoSigningKey = errors.New("token: signing key not configured")

// Claims is the payload of a session token.
type Claims struct {
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
	jwt.RegisteredClaims
}

// TokenIssuer signs HS256 session tokens for verified addresses.
type TokenIssuer struct {
	Key    []byte
	TTL    time.Duration
	Issuer string
	Clock  func() time.Time
}

func (t *TokenIssuer) now() time.Time {
	if t.Clock != nil {
		return t.Clock()
	}
	return time.Now()
}

func (t *TokenIssuer) Issue(email string) (string, error) {
	if len(t.Key) == 0 {
		return "", ErrNoSigningKey
	}
	now := t.now()
	claims := Claims{
		Email:    email,
		Verified: true,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  email,
			Issuer:   t.Issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if t.TTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(t.TTL))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.Key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse validates a token signed by this issuer and returns its claims.
func (t *TokenIssuer) Parse(token string) (*Claims, error) {
	if len(t.Key) == 0 {
		return nil, ErrNoSigningKey
	}
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	}
	if t.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.Issuer))
	}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return t.Key, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// SecretStore is the part of the secrets store the key resolver needs.
type SecretStore interface {
	Get(name string) (string, error)
	Put(name, value string) error
}

// ResolveSigningKey returns the configured key, else the stored one, else a
// fresh random key that is stored for the next run.
func ResolveSigningKey(configured string, store SecretStore) ([]byte, error) {
	if configured != "" {
		return []byte(configured), nil
	}
	stored, err := store.Get(secrets.SigningKey)
	switch {
	case err == nil:
		key, err := base64.StdEncoding.DecodeString(stored)
		if err != nil {
			return nil, fmt.Errorf("stored signing key: %w", err)
		}
		return key, nil
	case !errors.Is(err, secrets.ErrNotFound):
		return nil, err
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	if err := store.Put(secrets.SigningKey, base64.StdEncoding.EncodeToString(key)); err != nil {
		return nil, fmt.Errorf("store signing key: %w", err)
	}
	return key, nil
}
