// Package service assembles the bridge pipeline: monitor listener, shot
// queue, enrichment worker, display publisher, and the optional history and
// broadcast sinks.
package service

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/opengolfcoach/bridge/internal/adapters/broadcast"
	"github.com/opengolfcoach/bridge/internal/adapters/monitor"
	"github.com/opengolfcoach/bridge/internal/adapters/obs"
	"github.com/opengolfcoach/bridge/internal/adapters/repository"
	"github.com/opengolfcoach/bridge/internal/config"
	"github.com/opengolfcoach/bridge/internal/domain/enrich"
	"github.com/opengolfcoach/bridge/internal/domain/mapper"
	"github.com/opengolfcoach/bridge/internal/domain/model"
	"github.com/opengolfcoach/bridge/internal/domain/registry"
	"github.com/opengolfcoach/bridge/internal/pipeline"
	"github.com/opengolfcoach/bridge/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCalculator overrides the enrichment calculator. Tests inject fakes
// through this.
func WithCalculator(c enrich.Calculator) Option {
	return func(s *Service) {
		s.calculator = c
	}
}

// WithDisplay overrides the display publisher.
func WithDisplay(d DisplayPublisher) Option {
	return func(s *Service) {
		s.display = d
	}
}

// DisplayPublisher is the display surface the pipeline writes to.
type DisplayPublisher interface {
	Start(ctx context.Context)
	Stop()
	Connected() bool
	EnsureSources(ids []string)
	Publish(values []model.DataPointValue)
}

// Service owns the bridge components and their lifecycle.
type Service struct {
	mu  sync.Mutex
	cfg *config.Config

	calculator  enrich.Calculator
	gateway     *enrich.Gateway
	queue       *pipeline.InMemoryQueue
	worker      *pipeline.Worker
	listener    *monitor.Listener
	display     DisplayPublisher
	store       *repository.Store
	broadcaster *broadcast.Publisher
	mapper      *mapper.Mapper

	settings atomic.Pointer[mapper.Settings]

	started bool
	logger  logger.Logger
}

// New constructs a Service from configuration.
func New(cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		cfg:    cfg,
		mapper: mapper.New(),
	}

	settings := SettingsFromConfig(cfg)
	s.settings.Store(&settings)

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	return s
}

// SettingsFromConfig derives presentation settings from configuration.
// Reload paths use it to rebuild a settings snapshot from a fresh config.
func SettingsFromConfig(cfg *config.Config) mapper.Settings {
	settings := mapper.Settings{
		EnabledIDs: cfg.EnabledDataPoints,
		UnitSystem: cfg.UnitSystem,
		ShowLabels: cfg.ShowLabels,
		ShowUnits:  cfg.ShowUnits,
		Placeholder: func() string {
			if cfg.Placeholder != "" {
				return cfg.Placeholder
			}
			return mapper.DefaultPlaceholder
		}(),
	}
	return settings
}

// Settings returns the presentation settings applied to the next shot.
func (s *Service) Settings() mapper.Settings {
	return *s.settings.Load()
}

// ApplySettings swaps presentation settings. The swap is atomic and takes
// effect between shots, never mid-shot.
func (s *Service) ApplySettings(settings mapper.Settings) {
	s.settings.Store(&settings)
	if s.display != nil {
		s.display.EnsureSources(enabledIDs(settings))
	}
}

func enabledIDs(settings mapper.Settings) []string {
	if settings.EnabledIDs != nil {
		return settings.EnabledIDs
	}
	return registry.DefaultEnabledIDs()
}

// Start initializes and starts all components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	cfg := s.cfg
	s.logger.Info(ctx, "starting bridge service")

	if s.calculator == nil {
		s.calculator = enrich.NewTCPCalculator(cfg.CalculatorAddr())
	}
	s.gateway = enrich.New(s.calculator,
		enrich.WithTimeout(cfg.CalculatorTimeout),
	)

	if s.display == nil {
		s.display = obs.NewPublisher(cfg.DisplayURL(),
			obs.WithPassword(cfg.DisplayPassword),
			obs.WithSourcePrefix(cfg.SourcePrefix),
			obs.WithScene(cfg.Scene),
		)
	}
	s.display.Start(ctx)
	s.display.EnsureSources(enabledIDs(s.Settings()))

	if cfg.HistoryPath != "" {
		store, err := repository.NewStore(cfg.HistoryPath,
			repository.WithHistoryLimit(cfg.HistoryLimit),
		)
		if err != nil {
			return fmt.Errorf("opening shot history: %w", err)
		}
		s.store = store
	}

	if cfg.NATSURL != "" {
		s.broadcaster = broadcast.NewPublisher(
			broadcast.WithSubject(cfg.NATSSubject),
		)
		if err := s.broadcaster.Connect(ctx, cfg.NATSURL); err != nil {
			// Broadcast is best effort; the bridge runs without it.
			s.logger.Warn(ctx, "nats unavailable, broadcasting disabled", logger.Error(err))
		}
	}

	s.queue = pipeline.NewInMemoryQueue(
		pipeline.WithCapacity(cfg.QueueSize),
	)

	workerOpts := []pipeline.WorkerOption{}
	if s.store != nil {
		workerOpts = append(workerOpts, pipeline.WithStore(s.store))
	}
	if s.broadcaster != nil {
		workerOpts = append(workerOpts, pipeline.WithBroadcaster(s.broadcaster))
	}
	s.worker = pipeline.NewWorker(s.queue, s.gateway, s.mapper, s.Settings, s.display, workerOpts...)
	go s.worker.Run(ctx)

	s.listener = monitor.NewListener(cfg.ListenAddr(), s.queue,
		monitor.WithPolicy(monitor.Policy(cfg.SessionPolicy)),
		monitor.WithGameID(cfg.GameID),
		monitor.WithHandshakeTimeout(cfg.HandshakeTimeout),
		monitor.WithIdleInterval(cfg.IdleInterval),
		monitor.WithIdleCloseTimeout(cfg.IdleCloseTimeout),
	)
	if err := s.listener.Start(ctx); err != nil {
		return fmt.Errorf("starting monitor listener: %w", err)
	}

	s.started = true
	s.logger.Info(ctx, "bridge service started",
		logger.String("listen", cfg.ListenAddr()),
		logger.String("display", cfg.DisplayURL()),
	)
	return nil
}

// Stop gracefully shuts down all components in reverse dependency order.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(ctx, "stopping bridge service")

	s.listener.Stop(ctx)
	_ = s.queue.Close()
	if err := s.worker.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker shutdown", logger.Error(err))
	}
	s.display.Stop()
	if s.broadcaster != nil {
		s.broadcaster.Close()
	}
	if s.store != nil {
		_ = s.store.Close()
	}

	s.started = false
	s.logger.Info(ctx, "bridge service stopped")
}

// ListenerAddr returns the bound monitor address; nil before Start. Tests
// configure port 0 and read the real port from here.
func (s *Service) ListenerAddr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// SessionState reports the monitor session state for health checks.
func (s *Service) SessionState() string {
	if s.listener == nil {
		return "stopped"
	}
	sess := s.listener.ActiveSession()
	if sess == nil {
		return "none"
	}
	return sess.State().String()
}

// DisplayConnected reports display connectivity for health checks.
func (s *Service) DisplayConnected() bool {
	if s.display == nil {
		return false
	}
	return s.display.Connected()
}

// History exposes the shot store; nil when history is disabled.
func (s *Service) History() *repository.Store {
	return s.store
}
