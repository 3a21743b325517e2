package transport

import (
	"errors"
	"fmt"
)

// #region kind

// Kind classifies a transport failure. The producer loop picks its recovery
// from the kind alone.
type Kind int

const (
	// KindConnect: the engine refused the connection or was not ready in time.
	KindConnect Kind = iota + 1
	// KindTimeout: no response within the request deadline.
	KindTimeout
	// KindConnectionLost: the connection broke mid-session.
	KindConnectionLost
	// KindProtocol: the engine answered with a remote failure or an undecodable reply.
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindConnect:
		return "connect"
	case KindTimeout:
		return "timeout"
	case KindConnectionLost:
		return "connection_lost"
	case KindProtocol:
		return "protocol"
	}
	return "unknown"
}

// #endregion kind

// #region error

// Error is returned by every Session operation that fails.
type Error struct {
	Kind   Kind
	Op     string
	Target string
	// Code and Detail carry the remote status of a protocol failure.
	Code   string
	Detail string
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "transport error"
	}
	msg := fmt.Sprintf("%s %s: %s", e.Op, e.Target, e.Kind)
	if e.Code != "" {
		msg += fmt.Sprintf(" (%s: %s)", e.Code, e.Detail)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf extracts the failure kind from err. Errors that did not come from a
// Session are reported as KindConnectionLost so callers tear the session down.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) && te != nil {
		return te.Kind
	}
	return KindConnectionLost
}

// #endregion error
