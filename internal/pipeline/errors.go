package pipeline

import "errors"

var (
	// ErrQueueFull is returned when a frame cannot be accepted without
	// blocking the session reader.
	ErrQueueFull = errors.New("shot queue is full")

	// ErrQueueClosed is returned when enqueueing after shutdown.
	ErrQueueClosed = errors.New("shot queue is closed")

	// ErrShutdownTimeout is returned when the worker does not drain in
	// time during shutdown.
	ErrShutdownTimeout = errors.New("worker shutdown timed out")
)
