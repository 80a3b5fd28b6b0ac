package service

import (
	"errors"
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
)

// ErrInvalidEmail is returned for addresses that cannot receive a code.
var ErrInvalidEmail = errors.New("invalid email address")

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var commonDomains = []string{
	"gmail.com",
	"googlemail.com",
	"yahoo.com",
	"outlook.com",
	"hotmail.com",
	"live.com",
	"icloud.com",
	"me.com",
	"aol.com",
	"proton.me",
	"protonmail.com",
	"gmx.com",
	"mail.ru",
	"yandex.ru",
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail normalises email and checks its shape.
func ValidateEmail(email string) (string, error) {
	email = NormalizeEmail(email)
	if !emailPattern.MatchString(email) {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// SuggestEmail returns a corrected address when the domain is a likely typo
// of a common provider, or "" when there is nothing to suggest.
func SuggestEmail(email string) string {
	email = NormalizeEmail(email)
	at := strings.LastIndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return ""
	}
	local, domain := email[:at], email[at+1:]
	best, bestDist := "", 3
	for _, d := range commonDomains {
		if d == domain {
			return ""
		}
		if dist := levenshtein.ComputeDistance(domain, d); dist < bestDist {
			best, bestDist = d, dist
		}
	}
	if best == "" {
		return ""
	}
	return local + "@" + best
}
