// Package model contains domain models passed between layers.
package model

import "time"

// Unit conversion factors between the canonical SI representation and the
// display units offered by the registry.
const (
	MPHPerMPS     = 2.2369362920544 // meters/second -> miles/hour
	MPSPerMPH     = 0.44704         // miles/hour -> meters/second
	YardsPerMeter = 1.0936132983377
	FeetPerMeter  = 3.2808398950131
)

// RawShotFrame is the wire-level decoded form of one shot message from the
// launch monitor. It is transient: it exists only between decode and
// canonicalization and is never stored or published directly.
type RawShotFrame struct {
	BallSpeed float64 // as sent by the monitor, unit depends on Imperial
	VLA       float64 // vertical launch angle, degrees
	HLA       float64 // horizontal launch angle, degrees
	TotalSpin float64 // rpm
	SpinAxis  float64 // degrees, negative = draw side

	// Optional ball fields; nil when the monitor did not send them.
	Backspin *float64
	Sidespin *float64

	// Optional club-side fields; nil when the monitor did not send them.
	ClubSpeed     *float64
	ClubPath      *float64
	FaceToTarget  *float64
	AngleOfAttack *float64

	// Imperial reports whether speeds in this frame are mph rather than m/s.
	Imperial bool

	DeviceID   string
	ShotNumber int
}

// CanonicalShotRecord is the unit-normalized, validated representation of one
// shot's direct sensor measurements. All speeds are meters/second, all angles
// degrees, all spin rpm. Treat values as immutable once constructed.
type CanonicalShotRecord struct {
	ID         string
	ReceivedAt time.Time

	BallSpeedMPS float64
	VLADeg       float64
	HLADeg       float64
	TotalSpinRPM float64
	SpinAxisDeg  float64

	BackspinRPM *float64
	SidespinRPM *float64

	ClubSpeedMPS     *float64
	ClubPathDeg      *float64
	FaceToTargetDeg  *float64
	AngleOfAttackDeg *float64

	DeviceID   string
	ShotNumber int
}

// DerivedMetrics holds the calculator's enrichment output in SI units.
type DerivedMetrics struct {
	CarryM      float64
	TotalM      float64
	OfflineM    float64 // positive = right of target line
	PeakHeightM float64
	HangTimeS   float64
	DescentDeg  float64

	BackspinRPM float64
	SidespinRPM float64

	ShotName string // e.g. "Fade", "Pull Hook"
	ShotRank string // letter grade, e.g. "A"

	// Club-delivery estimates derived from ball flight.
	EstClubSpeedMPS float64
	EstSmashFactor  float64
	EstAttackDeg    float64
}

// EnrichedShotRecord pairs a canonical record with its derived metrics.
// Derived is nil when enrichment degraded; direct fields are still valid.
type EnrichedShotRecord struct {
	Canonical CanonicalShotRecord
	Derived   *DerivedMetrics
}

// Degraded reports whether enrichment failed and only direct fields are
// available for display.
func (r *EnrichedShotRecord) Degraded() bool {
	return r.Derived == nil
}

// DataPointValue is one formatted display field, produced fresh per shot.
// Never persisted; the display host owns everything beyond this pair.
type DataPointValue struct {
	ID   string
	Text string
}
