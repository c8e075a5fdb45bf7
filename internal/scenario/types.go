// Package scenario provides the built-in scenario catalog and the
// custom-scenario builder (spec.md §6): named lists of vehicle definitions
// that the engine turns into live vehicles at reset.
package scenario

import "github.com/sarabaciu19/V2X-Intersection-Safety/internal/vehicle"

// VehicleDef is one vehicle's definition within a scenario, expressed in the
// same vocabulary the custom builder's external API accepts.
type VehicleDef struct {
	ID              string           `json:"id"`
	Direction       vehicle.Direction `json:"direction"`
	Intent          vehicle.Intent    `json:"intent"`
	Priority        vehicle.Priority  `json:"priority"`
	SpeedMultiplier float64          `json:"speed_multiplier"`
	V2XEnabled      bool             `json:"v2x_enabled"`
	NoStop          bool             `json:"no_stop"`
	QueueIndex      int              `json:"-"` // position in its approach's spawn queue; derived, not user-supplied
}

// Scenario is a named, ordered list of vehicle definitions plus whether the
// intersection runs with a signal controller (spec.md §3).
type Scenario struct {
	Name        string
	Description string
	HasSignal   bool
	Vehicles    []VehicleDef
}

// ToSpec converts a definition into a vehicle.Spec, applying field defaults
// per the custom-builder validation rules (spec.md §6).
func (d VehicleDef) ToSpec() vehicle.Spec {
	intent := d.Intent
	if intent == "" {
		intent = vehicle.Straight
	}
	priority := d.Priority
	if priority == "" {
		priority = vehicle.NormalPriority
	}
	mult := d.SpeedMultiplier
	if mult == 0 {
		mult = 1.0
	}
	return vehicle.Spec{
		ID:              d.ID,
		Direction:       d.Direction,
		Intent:          intent,
		Priority:        priority,
		SpeedMultiplier: mult,
		V2XCapable:      d.V2XEnabled,
		NoStop:          d.NoStop,
	}
}
