package login

import "errors"

var (
	// ErrCapacityExceeded means every login slot is busy. Callers should retry later.
	ErrCapacityExceeded = errors.New("too many active browser sessions, try again later")
	// ErrSessionNotFound is returned by Verify for unknown or already finished sessions.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired is returned by Verify when the pending session outlived its TTL.
	ErrSessionExpired = errors.New("session expired")
)

// Failure messages reported to the caller.
const (
	msgFormNotFound   = "Login form not found - cookie consent may be blocking"
	msgCaptcha        = "LinkedIn is showing a CAPTCHA."
	msgCodeInputMiss  = "Could not find verification code input"
	msgSessionClosed  = "Session was closed during verification"
	msgSessionEvicted = "Session expired: too many pending logins"
)
