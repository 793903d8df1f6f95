package rcon

import (
	"errors"
	"fmt"
)

// Session error taxonomy. Callers distinguish transient failures (retry
// with backoff) from terminal ones (bad password) by type.
var (
	// ErrDisconnected is returned when a command is submitted on a
	// session that has no authenticated connection and reconnecting failed.
	ErrDisconnected = errors.New("rcon: session not authenticated")

	// ErrTimeout is returned when no matching response arrived within
	// the configured window. The connection is kept alive.
	ErrTimeout = errors.New("rcon: timed out waiting for response")

	// ErrClosed is returned when the underlying connection dropped
	// mid-call. The next call will attempt a transparent reconnect.
	ErrClosed = errors.New("rcon: connection closed")
)

// AuthError indicates the server rejected the RCON password. It is
// terminal: retrying with the same password cannot succeed.
type AuthError struct {
	Addr string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("rcon: authentication rejected by %s (wrong password)", e.Addr)
}

// ConnectError indicates the transport could not be established
// (refused, unreachable, timeout). Retryable by the caller.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("rcon: failed to connect to %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}
