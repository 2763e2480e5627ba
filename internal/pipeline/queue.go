// Package pipeline moves decoded shot frames from the monitor session to
// the enrichment worker through a bounded in-memory queue.
package pipeline

import (
	"context"
	"sync"

	"github.com/opengolfcoach/bridge/internal/domain/model"
	"github.com/opengolfcoach/bridge/pkg/metrics"
)

// defaultQueueCapacity bounds how many shots may wait for enrichment. Shots
// arrive at human swing cadence, so a small buffer is plenty.
const defaultQueueCapacity = 64

// Queue provides non-blocking offer and channel-based dequeue semantics.
type Queue interface {
	// Offer adds a frame to the queue. It returns false if the queue is
	// full or closed; the caller drops the frame rather than block the
	// session reader.
	Offer(ctx context.Context, frame *model.RawShotFrame) bool

	// Dequeue returns a channel that receives frames as they become
	// available. The channel is closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan *model.RawShotFrame

	// Len returns the current number of queued frames.
	Len() int

	// Close shuts the queue down. After closing, no new frames are
	// accepted and the dequeue channel drains then closes.
	Close() error
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	frames chan *model.RawShotFrame

	mu     sync.RWMutex
	closed bool
}

// QueueOption configures an InMemoryQueue.
type QueueOption func(*queueConfig)

type queueConfig struct {
	capacity int
}

// WithCapacity sets the queue capacity.
func WithCapacity(n int) QueueOption {
	return func(c *queueConfig) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// NewInMemoryQueue creates a bounded in-memory queue.
func NewInMemoryQueue(opts ...QueueOption) *InMemoryQueue {
	cfg := queueConfig{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(&cfg)
	}

	metrics.UpdateQueueDepth(0)
	return &InMemoryQueue{
		frames: make(chan *model.RawShotFrame, cfg.capacity),
	}
}

// Offer adds a frame to the queue without blocking.
func (q *InMemoryQueue) Offer(ctx context.Context, frame *model.RawShotFrame) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueDropped()
		return false
	}

	select {
	case q.frames <- frame:
		metrics.UpdateQueueDepth(len(q.frames))
		return true
	case <-ctx.Done():
		metrics.RecordQueueDropped()
		return false
	default:
		metrics.RecordQueueDropped()
		return false
	}
}

// Dequeue returns the consumer channel.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan *model.RawShotFrame {
	out := make(chan *model.RawShotFrame)
	go func() {
		defer close(out)
		for frame := range q.frames {
			select {
			case out <- frame:
				metrics.UpdateQueueDepth(len(q.frames))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued frames.
func (q *InMemoryQueue) Len() int {
	return len(q.frames)
}

// Close shuts the queue down.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.frames)
	q.closed = true
	return nil
}
