// Package relayerr carries the error taxonomy shared by the router, the
// registry, the listener and the HTTP layer.
//
// Errors are plain values: callers match them with errors.Is against the
// per-kind sentinels and format them however their surface needs (HTTP body,
// chat reply, log line).
package relayerr

import (
	"errors"
	"strings"
)

type Kind string

const (
	KindStoreUnavailable Kind = "store_unavailable"
	KindTransport        Kind = "transport"
	KindInvalidSeverity  Kind = "invalid_severity"
	KindDelivery         Kind = "delivery"
	KindInvalid          Kind = "invalid"
)

var (
	ErrStoreUnavailable = &Error{Kind: KindStoreUnavailable, Msg: "store unavailable"}
	ErrTransport        = &Error{Kind: KindTransport, Msg: "transport error"}
	ErrInvalidSeverity  = &Error{Kind: KindInvalidSeverity, Msg: "invalid severity"}
	ErrDelivery         = &Error{Kind: KindDelivery, Msg: "delivery failed"}
	ErrInvalid          = &Error{Kind: KindInvalid, Msg: "invalid request"}
)

// Error is a classified failure.
type Error struct {
	Kind Kind
	// Op names the failing operation (e.g. "registry.set").
	Op string
	// Msg is a human-readable summary safe to show to chat users and HTTP callers.
	Msg string
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Msg != "" {
		b.WriteString(e.Msg)
	} else {
		b.WriteString(string(e.Kind))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrTransport)
// works regardless of Op/Msg.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func E(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

func StoreUnavailable(op string, err error) *Error {
	return E(KindStoreUnavailable, op, "store unavailable", err)
}

func Transport(op string, err error) *Error {
	return E(KindTransport, op, "transport error", err)
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Message returns the user-facing text for err: the Msg of a classified
// error, or err.Error() otherwise.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		if e.Err != nil {
			return e.Msg + ": " + e.Err.Error()
		}
		return e.Msg
	}
	return err.Error()
}
