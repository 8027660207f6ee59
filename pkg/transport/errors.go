package transport

import (
	stderrors "errors"
	"fmt"

	"github.com/gezibash/arc-kernel/pkg/errors"
)

var (
	// ErrConnection marks a failure to establish or keep a stream's
	// underlying connection (refused, timed out, reset).
	ErrConnection = stderrors.New("connection error")

	// ErrProtocol marks a malformed inbound frame or line.
	ErrProtocol = stderrors.New("protocol error")

	// ErrClosed is returned by operations on a closed stream or bus.
	ErrClosed = errors.ErrClosed
)

// ConnError describes a connection failure.
type ConnError struct {
	Op   string // "dial", "accept", "read", "write"
	Kind string // boundary kind, e.g. "tcp"
	Addr string
	Err  error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("%s %s %s: %v", e.Kind, e.Op, e.Addr, e.Err)
}

// Unwrap exposes both the ErrConnection class and the cause.
func (e *ConnError) Unwrap() []error {
	return []error{ErrConnection, e.Err}
}

// ProtocolError describes an undecodable frame.
type ProtocolError struct {
	Kind string
	Err  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: malformed frame: %v", e.Kind, e.Err)
}

// Unwrap exposes both the ErrProtocol class and the cause.
func (e *ProtocolError) Unwrap() []error {
	return []error{ErrProtocol, e.Err}
}
