package obs

import "errors"

var (
	// ErrNotConnected is returned when an operation needs a live
	// websocket session and none is established.
	ErrNotConnected = errors.New("display connection not established")

	// ErrRequestFailed is returned when obs-websocket reports a
	// non-success status for a request.
	ErrRequestFailed = errors.New("display request failed")

	// ErrIdentification is returned when the Hello/Identify exchange
	// does not complete.
	ErrIdentification = errors.New("display identification failed")
)
