// Package broadcast publishes enriched shots to a NATS subject so other
// range tools (leaderboards, session recorders) can subscribe without
// touching the display path.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/opengolfcoach/bridge/internal/domain/model"
	"github.com/opengolfcoach/bridge/pkg/logger"
	"github.com/opengolfcoach/bridge/pkg/metrics"
)

// DefaultSubject is the subject shots are announced on.
const DefaultSubject = "ogc.shots"

const reconnectWait = 2 * time.Second

// Option configures a Publisher.
type Option func(*Publisher)

// WithSubject overrides the publish subject.
func WithSubject(subject string) Option {
	return func(p *Publisher) {
		if subject != "" {
			p.subject = subject
		}
	}
}

// WithLogger sets the publisher logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Publisher) {
		p.logger = l
	}
}

// Publisher is an optional NATS fanout. When no server is configured or the
// connection is down, publishing is a silent no-op; the display path never
// depends on it.
type Publisher struct {
	subject string
	logger  logger.Logger

	mu      sync.Mutex
	conn    *nats.Conn
	enabled bool
}

// NewPublisher creates a disabled publisher. Call Connect to enable it.
func NewPublisher(opts ...Option) *Publisher {
	p := &Publisher{
		subject: DefaultSubject,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get().Named("broadcast")
	}
	return p
}

// Connect establishes the NATS connection with automatic reconnects.
func (p *Publisher) Connect(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	opts := []nats.Option{
		nats.Name("opengolfcoach-bridge"),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			p.logger.Warn(ctx, "nats disconnected", logger.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			p.logger.Info(ctx, "nats reconnected", logger.String("url", nc.ConnectedUrl()))
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		p.enabled = false
		return fmt.Errorf("connecting to nats: %w", err)
	}

	p.conn = conn
	p.enabled = true
	p.logger.Info(ctx, "nats connected", logger.String("url", url))
	return nil
}

// shotPayload is the wire form of a broadcast shot. All values are SI.
type shotPayload struct {
	ID         string    `json:"id"`
	ReceivedAt time.Time `json:"received_at"`
	Degraded   bool      `json:"degraded"`

	BallSpeedMPS float64 `json:"ball_speed_mps"`
	VLADeg       float64 `json:"launch_angle_v_deg"`
	HLADeg       float64 `json:"launch_angle_h_deg"`
	TotalSpinRPM float64 `json:"total_spin_rpm"`
	SpinAxisDeg  float64 `json:"spin_axis_deg"`

	ClubSpeedMPS     *float64 `json:"club_speed_mps,omitempty"`
	ClubPathDeg      *float64 `json:"club_path_deg,omitempty"`
	FaceToTargetDeg  *float64 `json:"face_to_target_deg,omitempty"`
	AngleOfAttackDeg *float64 `json:"angle_of_attack_deg,omitempty"`

	Flight *flightPayload `json:"flight,omitempty"`
}

type flightPayload struct {
	CarryM      float64 `json:"carry_m"`
	TotalM      float64 `json:"total_m"`
	OfflineM    float64 `json:"offline_m"`
	PeakHeightM float64 `json:"peak_height_m"`
	HangTimeS   float64 `json:"hang_time_s"`
	DescentDeg  float64 `json:"descent_angle_deg"`
	ShotName    string  `json:"shot_name"`
	ShotRank    string  `json:"shot_rank"`
}

// Publish announces an enriched shot. It returns nil when the publisher is
// disabled so callers need no special casing.
func (p *Publisher) Publish(ctx context.Context, rec *model.EnrichedShotRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.enabled || p.conn == nil {
		return nil
	}

	payload := shotPayload{
		ID:               rec.Canonical.ID,
		ReceivedAt:       rec.Canonical.ReceivedAt,
		Degraded:         rec.Degraded(),
		BallSpeedMPS:     rec.Canonical.BallSpeedMPS,
		VLADeg:           rec.Canonical.VLADeg,
		HLADeg:           rec.Canonical.HLADeg,
		TotalSpinRPM:     rec.Canonical.TotalSpinRPM,
		SpinAxisDeg:      rec.Canonical.SpinAxisDeg,
		ClubSpeedMPS:     rec.Canonical.ClubSpeedMPS,
		ClubPathDeg:      rec.Canonical.ClubPathDeg,
		FaceToTargetDeg:  rec.Canonical.FaceToTargetDeg,
		AngleOfAttackDeg: rec.Canonical.AngleOfAttackDeg,
	}
	if d := rec.Derived; d != nil {
		payload.Flight = &flightPayload{
			CarryM:      d.CarryM,
			TotalM:      d.TotalM,
			OfflineM:    d.OfflineM,
			PeakHeightM: d.PeakHeightM,
			HangTimeS:   d.HangTimeS,
			DescentDeg:  d.DescentDeg,
			ShotName:    d.ShotName,
			ShotRank:    d.ShotRank,
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		metrics.RecordBroadcastError()
		return fmt.Errorf("encoding shot broadcast: %w", err)
	}

	if err := p.conn.Publish(p.subject, data); err != nil {
		metrics.RecordBroadcastError()
		return fmt.Errorf("publishing shot broadcast: %w", err)
	}

	metrics.RecordBroadcast()
	return nil
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
		p.enabled = false
	}
}

// IsConnected reports whether the NATS connection is live.
func (p *Publisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled && p.conn != nil && p.conn.IsConnected()
}
