package platform

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAuthChallenge means the platform wants interactive verification (2FA or CAPTCHA)
	// before it accepts a password login.
	ErrAuthChallenge = errors.New("platform requires interactive verification; use the browser login flow or session cookies instead")
	// ErrUnauthorized means the platform rejected the session credentials.
	ErrUnauthorized = errors.New("credentials were rejected or have expired")
	// ErrMissingCredentials is returned when neither cookies nor a password were supplied.
	ErrMissingCredentials = errors.New("missing credentials")

	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// RateLimitError reports an upstream 429. RetryAfter is zero when the platform gave no hint.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("platform rate limit reached, retry after %s", e.RetryAfter)
	}
	return "platform rate limit reached"
}

// AuthError wraps an authentication failure with the platform's own reason.
type AuthError struct {
	Platform string
	Reason   string
	Err      error
}

func (e *AuthError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s authentication failed: %s", e.Platform, e.Reason)
	}
	return fmt.Sprintf("%s authentication failed: %v", e.Platform, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }
