package monitor

import (
	"errors"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	// ErrProtocol marks a malformed or invalid inbound message. The frame
	// is dropped; the session stays active.
	ErrProtocol = errors.New("protocol error")

	// ErrSessionActive is returned when a connection is refused because a
	// session is already active and the policy is reject.
	ErrSessionActive = errors.New("session already active")

	// ErrListenerClosed marks operations against a stopped listener.
	ErrListenerClosed = errors.New("listener closed")
)
