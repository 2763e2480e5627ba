package pipeline

import (
	"context"
	"fmt"

	"github.com/opengolfcoach/bridge/internal/domain/mapper"
	"github.com/opengolfcoach/bridge/internal/domain/model"
	"github.com/opengolfcoach/bridge/pkg/logger"
)

// Enricher turns a raw frame into an enriched shot record.
type Enricher interface {
	Enrich(ctx context.Context, frame *model.RawShotFrame) (*model.EnrichedShotRecord, error)
}

// Display receives formatted data point values for presentation.
type Display interface {
	Publish(values []model.DataPointValue)
}

// Store persists enriched shots.
type Store interface {
	Record(ctx context.Context, rec *model.EnrichedShotRecord, values []model.DataPointValue) error
}

// Broadcaster announces enriched shots to external subscribers.
type Broadcaster interface {
	Publish(ctx context.Context, rec *model.EnrichedShotRecord) error
}

// SettingsFunc returns the presentation settings to apply to the next shot.
// Settings are sampled once per shot so a mid-pipeline settings change never
// splits a single shot across two unit systems.
type SettingsFunc func() mapper.Settings

// Consumer defines how the worker receives frames.
type Consumer interface {
	Dequeue(ctx context.Context) <-chan *model.RawShotFrame
}

// Worker drains the queue and pushes each shot through enrichment,
// formatting, display, persistence, and broadcast.
type Worker struct {
	queue       Consumer
	enricher    Enricher
	mapper      *mapper.Mapper
	settings    SettingsFunc
	display     Display
	store       Store
	broadcaster Broadcaster
	logger      logger.Logger

	shutdown chan struct{}
	done     chan struct{}
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithStore attaches a shot history store.
func WithStore(s Store) WorkerOption {
	return func(w *Worker) {
		w.store = s
	}
}

// WithBroadcaster attaches an external shot broadcaster.
func WithBroadcaster(b Broadcaster) WorkerOption {
	return func(w *Worker) {
		w.broadcaster = b
	}
}

// WithWorkerLogger sets the worker logger.
func WithWorkerLogger(l logger.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = l
	}
}

// NewWorker creates a worker. Store and broadcaster are optional; display,
// enricher, mapper, and settings are required.
func NewWorker(queue Consumer, enricher Enricher, m *mapper.Mapper, settings SettingsFunc, display Display, opts ...WorkerOption) *Worker {
	w := &Worker{
		queue:    queue,
		enricher: enricher,
		mapper:   m,
		settings: settings,
		display:  display,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Run starts the worker loop until ctx is canceled, the queue closes, or
// Shutdown is called.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	frames := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if err := w.process(ctx, frame); err != nil {
				w.logger.Error(ctx, "processing shot", logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker and waits for the current shot to finish.
func (w *Worker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "worker shutdown timed out")
		return fmt.Errorf("%w: %v", ErrShutdownTimeout, ctx.Err())
	}
}

// process handles a single frame. Enrichment failures other than validation
// come back as degraded records, so an unreachable calculator still results
// in values on the display.
func (w *Worker) process(ctx context.Context, frame *model.RawShotFrame) error {
	rec, err := w.enricher.Enrich(ctx, frame)
	if err != nil {
		return fmt.Errorf("enriching shot: %w", err)
	}

	settings := w.settings()
	values := w.mapper.Map(rec, settings)

	w.display.Publish(values)

	if w.store != nil {
		if err := w.store.Record(ctx, rec, values); err != nil {
			w.logger.Warn(ctx, "recording shot history", logger.Error(err))
		}
	}

	if w.broadcaster != nil {
		if err := w.broadcaster.Publish(ctx, rec); err != nil {
			w.logger.Warn(ctx, "broadcasting shot", logger.Error(err))
		}
	}

	return nil
}
