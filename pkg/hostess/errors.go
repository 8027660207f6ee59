package hostess

import (
	"fmt"

	"github.com/gezibash/arc-kernel/pkg/errors"
)

var (
	// ErrUnknownService means the identity is not registered or no longer live.
	ErrUnknownService = fmt.Errorf("unknown service: %w", errors.ErrNotFound)

	// ErrUnknownTerminal means the service is live but has no such terminal.
	ErrUnknownTerminal = fmt.Errorf("unknown terminal: %w", errors.ErrNotFound)

	// ErrReservationConflict means the terminal is held by another reservation.
	ErrReservationConflict = fmt.Errorf("reservation conflict: %w", errors.ErrConflict)

	// ErrTerminalDirection means the terminal's direction does not admit
	// the requested role.
	ErrTerminalDirection = fmt.Errorf("terminal direction mismatch: %w", errors.ErrConflict)

	// ErrInvalidManifest means a manifest failed validation.
	ErrInvalidManifest = fmt.Errorf("invalid manifest: %w", errors.ErrInvalidInput)

	// ErrDuplicateIdentity means a caller-supplied identity is already live.
	ErrDuplicateIdentity = fmt.Errorf("duplicate identity: %w", errors.ErrAlreadyExists)
)

// Error reports a failed registry operation and what it was applied to.
type Error struct {
	Op       string // "register", "heartbeat", "mark-in-use", ...
	Service  string
	Terminal string
	// ReservedBy is the current holder on a reservation conflict.
	ReservedBy string
	Err        error
}

func (e *Error) Error() string {
	target := e.Service
	if e.Terminal != "" {
		target += "/" + e.Terminal
	}
	msg := e.Op
	if target != "" {
		msg += " " + target
	}
	msg += ": " + e.Err.Error()
	if e.ReservedBy != "" {
		msg += " (held by " + e.ReservedBy + ")"
	}
	return "hostess: " + msg
}

func (e *Error) Unwrap() error { return e.Err }

func invalid(format string, args ...any) error {
	return &Error{Op: "register", Err: fmt.Errorf("%w: "+format, append([]any{ErrInvalidManifest}, args...)...)}
}
