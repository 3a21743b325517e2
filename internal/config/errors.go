package config

import "fmt"

// Error is a fatal startup configuration problem. The producer never retries it.
type Error struct {
	Field  string
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "config error"
	}
	if e.Err != nil {
		return fmt.Sprintf("config: %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
