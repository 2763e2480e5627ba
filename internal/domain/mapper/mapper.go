// Package mapper turns enriched shot records into formatted display values.
package mapper

import (
	"strconv"
	"strings"

	"github.com/opengolfcoach/bridge/internal/domain/model"
	"github.com/opengolfcoach/bridge/internal/domain/registry"
)

// Unit systems accepted by Settings.UnitSystem.
const (
	UnitImperial = "imperial"
	UnitMetric   = "metric"
)

// DefaultPlaceholder is rendered for fields without a value.
const DefaultPlaceholder = "--"

// Settings is the display configuration snapshot one batch is produced
// under. A snapshot applies to the whole batch; it is never mixed mid-shot.
type Settings struct {
	// EnabledIDs selects which data points appear. Nil means the registry
	// defaults; an empty non-nil slice disables everything.
	EnabledIDs []string

	UnitSystem  string // UnitImperial or UnitMetric
	ShowLabels  bool
	ShowUnits   bool
	Placeholder string // empty means DefaultPlaceholder
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		UnitSystem:  UnitImperial,
		ShowLabels:  true,
		ShowUnits:   true,
		Placeholder: DefaultPlaceholder,
	}
}

// Mapper produces ordered DataPointValue batches from enriched records.
type Mapper struct{}

// New constructs a Mapper.
func New() *Mapper {
	return &Mapper{}
}

// Map renders one batch for rec under s. Output order follows the registry
// catalog; disabled ids are omitted entirely, absent fields render the
// placeholder so the display never shows a previous shot's value.
func (m *Mapper) Map(rec *model.EnrichedShotRecord, s Settings) []model.DataPointValue {
	enabled := enabledSet(s.EnabledIDs)
	placeholder := s.Placeholder
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}

	out := make([]model.DataPointValue, 0, len(enabled))
	for _, def := range registry.All() {
		if !enabled[def.ID] {
			continue
		}
		text := placeholder
		if def.Quantity == registry.QuantityText {
			if v, ok := resolveText(def.ID, rec); ok {
				text = v
			}
		} else if v, ok := resolveNumber(def.ID, rec); ok {
			text = formatNumber(def, v, s.UnitSystem)
		}
		out = append(out, model.DataPointValue{
			ID:   def.ID,
			Text: compose(def, text, s),
		})
	}
	return out
}

// enabledSet resolves the configured id list against the registry; unknown
// ids are ignored rather than rejected so a stale config cannot break a shot.
func enabledSet(ids []string) map[string]bool {
	set := make(map[string]bool)
	if ids == nil {
		ids = registry.DefaultEnabledIDs()
	}
	for _, id := range ids {
		if _, ok := registry.Lookup(id); ok {
			set[id] = true
		}
	}
	return set
}

// resolveNumber extracts the canonical (SI) numeric value for a data point.
// The bool result is false when the field is absent for this shot.
func resolveNumber(id string, rec *model.EnrichedShotRecord) (float64, bool) {
	c := &rec.Canonical
	d := rec.Derived
	switch id {
	case "ball_speed":
		return c.BallSpeedMPS, true
	case "launch_angle_v":
		return c.VLADeg, true
	case "launch_angle_h":
		return c.HLADeg, true
	case "total_spin":
		return c.TotalSpinRPM, true
	case "spin_axis":
		return c.SpinAxisDeg, true
	case "backspin":
		if d != nil {
			return d.BackspinRPM, true
		}
		return deref(c.BackspinRPM)
	case "sidespin":
		if d != nil {
			return d.SidespinRPM, true
		}
		return deref(c.SidespinRPM)
	case "carry":
		if d != nil {
			return d.CarryM, true
		}
	case "total":
		if d != nil {
			return d.TotalM, true
		}
	case "offline":
		if d != nil {
			return d.OfflineM, true
		}
	case "peak_height":
		if d != nil {
			return d.PeakHeightM, true
		}
	case "hang_time":
		if d != nil {
			return d.HangTimeS, true
		}
	case "descent_angle":
		if d != nil {
			return d.DescentDeg, true
		}
	case "club_speed":
		return deref(c.ClubSpeedMPS)
	case "club_path":
		return deref(c.ClubPathDeg)
	case "face_to_target":
		return deref(c.FaceToTargetDeg)
	case "angle_of_attack":
		return deref(c.AngleOfAttackDeg)
	case "est_club_speed":
		if d != nil {
			return d.EstClubSpeedMPS, true
		}
	case "est_smash_factor":
		if d != nil {
			return d.EstSmashFactor, true
		}
	case "est_attack_angle":
		if d != nil {
			return d.EstAttackDeg, true
		}
	}
	return 0, false
}

func resolveText(id string, rec *model.EnrichedShotRecord) (string, bool) {
	d := rec.Derived
	if d == nil {
		return "", false
	}
	switch id {
	case "shot_name":
		return d.ShotName, d.ShotName != ""
	case "shot_rank":
		return d.ShotRank, d.ShotRank != ""
	}
	return "", false
}

func deref(p *float64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}

// formatNumber converts the SI value into the batch's unit system and
// renders it at the definition's precision.
func formatNumber(def registry.Definition, v float64, unitSystem string) string {
	if unitSystem == UnitImperial {
		switch def.Quantity {
		case registry.QuantitySpeed:
			v *= model.MPHPerMPS
		case registry.QuantityDistance:
			v *= model.YardsPerMeter
		}
	}
	text := strconv.FormatFloat(v, 'f', def.Precision, 64)
	if def.Signed && v >= 0 {
		text = "+" + text
	}
	return text
}

// compose assembles the final display text from label, value and unit.
func compose(def registry.Definition, value string, s Settings) string {
	parts := make([]string, 0, 3)
	if s.ShowLabels {
		parts = append(parts, def.Label+":")
	}
	parts = append(parts, value)
	if s.ShowUnits {
		unit := def.UnitMetric
		if s.UnitSystem == UnitImperial {
			unit = def.UnitImperial
		}
		if unit != "" {
			parts = append(parts, unit)
		}
	}
	return strings.Join(parts, " ")
}
