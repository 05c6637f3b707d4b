package executor

import (
	"errors"
	"fmt"
)

// ErrorKind classifies executor/browser-plane errors.
type ErrorKind int

const (
	// ErrorKindDriverSpawn indicates the browser driver subprocess could
	// not be launched.
	ErrorKindDriverSpawn ErrorKind = iota
	// ErrorKindBrowserStepFailed indicates a single dispatched action's
	// round trip to the driver failed (not the same as an action
	// completing with Success=false, which is a normal ActionResult).
	ErrorKindBrowserStepFailed
)

// Error wraps an executor-level failure with a classification.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("executor: %v", e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// IsBrowserStepFailed reports whether err is a step round-trip failure.
func IsBrowserStepFailed(err error) bool {
	var eerr *Error
	if errors.As(err, &eerr) {
		return eerr.Kind == ErrorKindBrowserStepFailed
	}
	return false
}

// IsDriverSpawnFailed reports whether err is a driver launch failure.
func IsDriverSpawnFailed(err error) bool {
	var eerr *Error
	if errors.As(err, &eerr) {
		return eerr.Kind == ErrorKindDriverSpawn
	}
	return false
}
