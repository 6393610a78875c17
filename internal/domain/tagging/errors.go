package tagging

import (
	"errors"
	"fmt"
)

var (
	// ErrNotClaimHolder is returned when a strategy binds without holding the claim
	ErrNotClaimHolder = errors.New("strategy does not hold the tag claim")

	// ErrAlreadyInstalled is returned when binding a handle that is already installed
	ErrAlreadyInstalled = errors.New("tag handle already installed")

	// ErrNilTrackFunc is returned when binding a nil track function
	ErrNilTrackFunc = errors.New("track function is nil")

	// ErrInlineUnavailable marks the inline strategy as not viable (no snippet configured)
	ErrInlineUnavailable = errors.New("inline bootstrap snippet not configured")

	// ErrScriptLoad is the transient load failure of an external script
	ErrScriptLoad = errors.New("script load failed")

	// ErrClaimHeld is the skip reason of a strategy that found another strategy's live claim
	ErrClaimHeld = errors.New("tag claim held by another strategy")

	// ErrLoadTimeout is the failure of a script load that neither loaded nor errored in time
	ErrLoadTimeout = errors.New("script load timed out")
)

// ScriptLoadError wraps a transient load failure with the script URL
type ScriptLoadError struct {
	Strategy StrategyKind
	URL      string
	Err      error
}

// Error implements the error interface
func (e *ScriptLoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s (%s)", ErrScriptLoad, e.URL, e.Strategy)
	}
	return fmt.Sprintf("%s: %s (%s): %v", ErrScriptLoad, e.URL, e.Strategy, e.Err)
}

// Unwrap allows errors.Is(err, ErrScriptLoad) and access to the cause
func (e *ScriptLoadError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrScriptLoad}
	}
	return []error{ErrScriptLoad, e.Err}
}

// NewScriptLoadError creates a ScriptLoadError
func NewScriptLoadError(strategy StrategyKind, url string, cause error) *ScriptLoadError {
	return &ScriptLoadError{Strategy: strategy, URL: url, Err: cause}
}
