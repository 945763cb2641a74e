// internal/browser/errors.go
package browser

import (
	"errors"
	"fmt"
)

var (
	// ErrNavigationTimeout reports that a page did not finish loading within its bound.
	// Callers treat it as non-fatal and inspect whatever state was reached.
	ErrNavigationTimeout = errors.New("navigation timed out")
	// ErrSettleTimeout reports that network activity did not go quiet within its bound.
	ErrSettleTimeout = errors.New("page did not settle")
	// ErrElementNotFound is returned by probes whose selector matched nothing.
	ErrElementNotFound = errors.New("element not found")
	// ErrPageClosed is returned for operations on a page whose session was released.
	ErrPageClosed = errors.New("page is closed")
)

// LaunchError wraps a failure to start the browser engine.
type LaunchError struct {
	Err error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch browser: %v", e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }
