// Package registry is the static catalog of dashboard data points.
//
// The catalog is immutable at runtime: which points are shown and in which
// unit system is configuration applied by the mapper, never a mutation here.
package registry

// Category groups related data points for configuration UIs.
type Category string

// Data point categories.
const (
	CategoryBall     Category = "BALL"
	CategorySpin     Category = "SPIN"
	CategoryFlight   Category = "FLIGHT"
	CategoryShot     Category = "SHOT"
	CategoryClub     Category = "CLUB"
	CategoryDelivery Category = "DELIVERY"
)

// Quantity identifies how a numeric value converts between unit systems.
type Quantity int

// Quantities understood by the formatter.
const (
	QuantityText     Quantity = iota // no numeric conversion
	QuantitySpeed                    // m/s canonical; mph imperial
	QuantityDistance                 // meters canonical; yards imperial
	QuantityAngle                    // degrees in both systems
	QuantitySpin                     // rpm in both systems
	QuantitySeconds                  // seconds in both systems
	QuantityFactor                   // dimensionless ratio
)

// Definition describes one dashboard field. Definitions are read-only; the
// enabled set and unit system live in BridgeConfig.
type Definition struct {
	ID       string
	Category Category
	Label    string
	Quantity Quantity

	// Unit suffixes shown after the value when units are visible.
	UnitImperial string
	UnitMetric   string

	// Precision is the number of decimals in the formatted value.
	Precision int

	// Signed values always carry an explicit sign, e.g. offline distance.
	Signed bool

	// Derived fields come from the enrichment calculator and may be absent
	// on a degraded shot. Direct fields always have a value.
	Derived bool

	// DefaultEnabled controls whether the point is shown when the
	// configuration does not name an enabled set.
	DefaultEnabled bool
}

// catalog is the full, ordered set of dashboard fields. Mapper output
// preserves this order.
var catalog = []Definition{
	// Ball launch
	{ID: "ball_speed", Category: CategoryBall, Label: "Ball Speed", Quantity: QuantitySpeed, UnitImperial: "mph", UnitMetric: "m/s", Precision: 1, DefaultEnabled: true},
	{ID: "launch_angle_v", Category: CategoryBall, Label: "Launch Angle", Quantity: QuantityAngle, UnitImperial: "°", UnitMetric: "°", Precision: 1, DefaultEnabled: true},
	{ID: "launch_angle_h", Category: CategoryBall, Label: "Horizontal", Quantity: QuantityAngle, UnitImperial: "°", UnitMetric: "°", Precision: 1, Signed: true},

	// Spin
	{ID: "total_spin", Category: CategorySpin, Label: "Total Spin", Quantity: QuantitySpin, UnitImperial: "rpm", UnitMetric: "rpm", Precision: 0, DefaultEnabled: true},
	{ID: "spin_axis", Category: CategorySpin, Label: "Spin Axis", Quantity: QuantityAngle, UnitImperial: "°", UnitMetric: "°", Precision: 1, Signed: true},
	{ID: "backspin", Category: CategorySpin, Label: "Backspin", Quantity: QuantitySpin, UnitImperial: "rpm", UnitMetric: "rpm", Precision: 0, Derived: true, DefaultEnabled: true},
	{ID: "sidespin", Category: CategorySpin, Label: "Sidespin", Quantity: QuantitySpin, UnitImperial: "rpm", UnitMetric: "rpm", Precision: 0, Signed: true, Derived: true, DefaultEnabled: true},

	// Flight
	{ID: "carry", Category: CategoryFlight, Label: "Carry", Quantity: QuantityDistance, UnitImperial: "yds", UnitMetric: "m", Precision: 1, Derived: true, DefaultEnabled: true},
	{ID: "total", Category: CategoryFlight, Label: "Total", Quantity: QuantityDistance, UnitImperial: "yds", UnitMetric: "m", Precision: 1, Derived: true, DefaultEnabled: true},
	{ID: "offline", Category: CategoryFlight, Label: "Offline", Quantity: QuantityDistance, UnitImperial: "yds", UnitMetric: "m", Precision: 1, Signed: true, Derived: true, DefaultEnabled: true},
	{ID: "peak_height", Category: CategoryFlight, Label: "Peak Height", Quantity: QuantityDistance, UnitImperial: "yds", UnitMetric: "m", Precision: 1, Derived: true, DefaultEnabled: true},
	{ID: "hang_time", Category: CategoryFlight, Label: "Hang Time", Quantity: QuantitySeconds, UnitImperial: "s", UnitMetric: "s", Precision: 2, Derived: true, DefaultEnabled: true},
	{ID: "descent_angle", Category: CategoryFlight, Label: "Descent Angle", Quantity: QuantityAngle, UnitImperial: "°", UnitMetric: "°", Precision: 1, Derived: true},

	// Shot classification
	{ID: "shot_name", Category: CategoryShot, Label: "Shot Shape", Quantity: QuantityText, Derived: true, DefaultEnabled: true},
	{ID: "shot_rank", Category: CategoryShot, Label: "Grade", Quantity: QuantityText, Derived: true, DefaultEnabled: true},

	// Club (direct, only some monitors send these)
	{ID: "club_speed", Category: CategoryClub, Label: "Club Speed", Quantity: QuantitySpeed, UnitImperial: "mph", UnitMetric: "m/s", Precision: 1},
	{ID: "club_path", Category: CategoryClub, Label: "Club Path", Quantity: QuantityAngle, UnitImperial: "°", UnitMetric: "°", Precision: 1, Signed: true},
	{ID: "face_to_target", Category: CategoryClub, Label: "Face Angle", Quantity: QuantityAngle, UnitImperial: "°", UnitMetric: "°", Precision: 1, Signed: true},
	{ID: "angle_of_attack", Category: CategoryClub, Label: "Attack Angle", Quantity: QuantityAngle, UnitImperial: "°", UnitMetric: "°", Precision: 1, Signed: true},

	// Delivery estimates (derived from ball flight when club data is absent)
	{ID: "est_club_speed", Category: CategoryDelivery, Label: "Est. Club Speed", Quantity: QuantitySpeed, UnitImperial: "mph", UnitMetric: "m/s", Precision: 1, Derived: true},
	{ID: "est_smash_factor", Category: CategoryDelivery, Label: "Est. Smash", Quantity: QuantityFactor, Precision: 2, Derived: true},
	{ID: "est_attack_angle", Category: CategoryDelivery, Label: "Est. Attack", Quantity: QuantityAngle, UnitImperial: "°", UnitMetric: "°", Precision: 1, Signed: true, Derived: true},
}

var byID = func() map[string]Definition {
	m := make(map[string]Definition, len(catalog))
	for _, d := range catalog {
		m[d.ID] = d
	}
	return m
}()

// All returns the full catalog in display order. Callers must not mutate the
// returned slice.
func All() []Definition {
	return catalog
}

// Lookup returns the definition for id.
func Lookup(id string) (Definition, bool) {
	d, ok := byID[id]
	return d, ok
}

// DefaultEnabledIDs returns the ids shown when no enabled set is configured,
// in display order.
func DefaultEnabledIDs() []string {
	ids := make([]string, 0, len(catalog))
	for _, d := range catalog {
		if d.DefaultEnabled {
			ids = append(ids, d.ID)
		}
	}
	return ids
}

// Count returns the catalog size.
func Count() int {
	return len(catalog)
}
