package userforms

import (
	"strings"
	"time"
	"unicode"
)

// PasswordPolicy decides when an account's password expires.
type PasswordPolicy interface {
	// Expiration returns the time the password expires, or false if it never does
	Expiration(account *Account) (time.Time, bool)
}

// ExpiryPolicy expires passwords MaxAge after they were last changed.
// A zero MaxAge disables expiry.
type ExpiryPolicy struct {
	MaxAge time.Duration
}

func (p *ExpiryPolicy) Expiration(account *Account) (time.Time, bool) {
	if p == nil || p.MaxAge <= 0 || account == nil || account.PasswordChangedAt.IsZero() {
		return time.Time{}, false
	}
	return account.PasswordChangedAt.Add(p.MaxAge), true
}

// PasswordExpired reports whether the policy's expiration for account is before now.
func PasswordExpired(policy PasswordPolicy, account *Account, now time.Time) bool {
	if policy == nil {
		return false
	}
	expires, ok := policy.Expiration(account)
	return ok && expires.Before(now)
}

// PasswordRule is one password strength constraint. Each failed rule yields
// its own violation on the pass field.
type PasswordRule struct {
	Name    string
	Message string
	Arg     any
	Check   func(password string) bool
}

// DefaultPasswordRules returns the built-in strength rules.
func DefaultPasswordRules(minLength int) []PasswordRule {
	if minLength <= 0 {
		minLength = 8
	}
	return []PasswordRule{
		{
			Name:    "length",
			Message: "Password must be at least %d characters long.",
			Arg:     minLength,
			Check:   func(p string) bool { return len([]rune(p)) >= minLength },
		},
		{
			Name:    "letter",
			Message: "Password must contain at least one letter.",
			Check:   func(p string) bool { return strings.IndexFunc(p, unicode.IsLetter) >= 0 },
		},
		{
			Name:    "digit",
			Message: "Password must contain at least one digit.",
			Check:   func(p string) bool { return strings.IndexFunc(p, unicode.IsDigit) >= 0 },
		},
	}
}
