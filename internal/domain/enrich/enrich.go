// Package enrich converts decoded shot frames into canonical records and
// invokes the external derived-metrics calculator.
package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opengolfcoach/bridge/internal/domain/model"
	"github.com/opengolfcoach/bridge/pkg/logger"
	"github.com/opengolfcoach/bridge/pkg/metrics"
)

// Validation bounds for canonical records. Frames outside these are sensor
// glitches, not shots.
const (
	maxBallSpeedMPS = 120.0
	maxSpinRPM      = 20000.0
	maxLaunchDeg    = 80.0
	maxAxisDeg      = 90.0
)

// defaultTimeout bounds one calculator call.
const defaultTimeout = 5 * time.Second

// Calculator computes derived metrics from a canonical record. The real
// implementation speaks to the external opengolfcoach service; tests supply
// fakes.
type Calculator interface {
	Calculate(ctx context.Context, rec model.CanonicalShotRecord) (*model.DerivedMetrics, error)
}

// Option applies a configuration option to the Gateway.
type Option func(*Gateway)

// WithTimeout bounds each calculator call.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithLogger sets a custom logger for the gateway.
func WithLogger(l logger.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// Gateway owns the raw→canonical→enriched conversion. A calculator failure
// degrades the record instead of propagating: the pipeline always gets a
// publishable record for a successfully decoded frame.
type Gateway struct {
	calc    Calculator
	timeout time.Duration
	logger  logger.Logger
}

// New constructs a Gateway around calc.
func New(calc Calculator, opts ...Option) *Gateway {
	g := &Gateway{
		calc:    calc,
		timeout: defaultTimeout,
		logger:  logger.Get().Named("enrich"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Canonicalize normalizes a raw frame to SI units and validates ranges.
func Canonicalize(frame *model.RawShotFrame) (model.CanonicalShotRecord, error) {
	speed := frame.BallSpeed
	if frame.Imperial {
		speed *= model.MPSPerMPH
	}

	rec := model.CanonicalShotRecord{
		ID:           uuid.New().String(),
		ReceivedAt:   time.Now().UTC(),
		BallSpeedMPS: speed,
		VLADeg:       frame.VLA,
		HLADeg:       frame.HLA,
		TotalSpinRPM: frame.TotalSpin,
		SpinAxisDeg:  frame.SpinAxis,
		BackspinRPM:  frame.Backspin,
		SidespinRPM:  frame.Sidespin,
		DeviceID:     frame.DeviceID,
		ShotNumber:   frame.ShotNumber,
	}
	if frame.ClubSpeed != nil {
		cs := *frame.ClubSpeed
		if frame.Imperial {
			cs *= model.MPSPerMPH
		}
		rec.ClubSpeedMPS = &cs
	}
	rec.ClubPathDeg = frame.ClubPath
	rec.FaceToTargetDeg = frame.FaceToTarget
	rec.AngleOfAttackDeg = frame.AngleOfAttack

	switch {
	case rec.BallSpeedMPS <= 0 || rec.BallSpeedMPS > maxBallSpeedMPS:
		return model.CanonicalShotRecord{}, fmt.Errorf("%w: ball speed %.1f m/s out of range", ErrInvalidFrame, rec.BallSpeedMPS)
	case rec.TotalSpinRPM < 0 || rec.TotalSpinRPM > maxSpinRPM:
		return model.CanonicalShotRecord{}, fmt.Errorf("%w: total spin %.0f rpm out of range", ErrInvalidFrame, rec.TotalSpinRPM)
	case rec.VLADeg < -maxLaunchDeg || rec.VLADeg > maxLaunchDeg:
		return model.CanonicalShotRecord{}, fmt.Errorf("%w: vertical launch %.1f° out of range", ErrInvalidFrame, rec.VLADeg)
	case rec.HLADeg < -maxLaunchDeg || rec.HLADeg > maxLaunchDeg:
		return model.CanonicalShotRecord{}, fmt.Errorf("%w: horizontal launch %.1f° out of range", ErrInvalidFrame, rec.HLADeg)
	case rec.SpinAxisDeg < -maxAxisDeg || rec.SpinAxisDeg > maxAxisDeg:
		return model.CanonicalShotRecord{}, fmt.Errorf("%w: spin axis %.1f° out of range", ErrInvalidFrame, rec.SpinAxisDeg)
	}
	if rec.BackspinRPM != nil && (*rec.BackspinRPM < 0 || *rec.BackspinRPM > maxSpinRPM) {
		return model.CanonicalShotRecord{}, fmt.Errorf("%w: backspin %.0f rpm out of range", ErrInvalidFrame, *rec.BackspinRPM)
	}
	return rec, nil
}

// Enrich converts frame to a canonical record and calls the calculator with
// a bounded timeout. On calculator failure it returns a degraded record with
// Derived nil; only validation failures return an error.
func (g *Gateway) Enrich(ctx context.Context, frame *model.RawShotFrame) (*model.EnrichedShotRecord, error) {
	rec, err := Canonicalize(frame)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	derived, err := g.calc.Calculate(callCtx, rec)
	metrics.RecordEnrichmentLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordEnrichmentFailure()
		g.logger.Warn(ctx, "enrichment degraded; publishing direct fields only",
			logger.String("shotID", rec.ID),
			logger.Error(err),
		)
		return &model.EnrichedShotRecord{Canonical: rec}, nil
	}

	metrics.RecordShotEnriched()
	return &model.EnrichedShotRecord{Canonical: rec, Derived: derived}, nil
}
