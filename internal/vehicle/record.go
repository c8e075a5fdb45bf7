package vehicle

import "math"

// Record is the public, bus-published view of a vehicle: everything another
// component (arbiter, agent, advisor, facade) is allowed to read.
type Record struct {
	ID                 string
	Direction          Direction
	Intent             Intent
	Priority           Priority
	V2XCapable         bool
	NoStop             bool
	Position           Point
	Velocity           Vector
	BaseVelocity       Vector
	SpeedKmh           float64
	HeadingRad         float64
	State              State
	Clearance          bool
	AgentYield         bool
	DistanceToStop     float64
	DistanceToCenter   float64
	InsideIntersection bool
}

// ToRecord produces the public record a vehicle publishes to the state bus
// each tick.
func (v *Vehicle) ToRecord() Record {
	return Record{
		ID:                 v.ID,
		Direction:          v.Direction,
		Intent:             v.Intent,
		Priority:           v.Priority,
		V2XCapable:         v.V2XCapable,
		NoStop:             v.NoStop,
		Position:           v.Position,
		Velocity:           v.Velocity,
		BaseVelocity:       v.baseVelocity,
		SpeedKmh:           SpeedKmh(v.Velocity),
		HeadingRad:         math.Atan2(v.Velocity.X, -v.Velocity.Y),
		State:              v.State,
		Clearance:          v.Clearance,
		AgentYield:         v.AgentYield,
		DistanceToStop:     DistanceToStopLine(v.Direction, v.Position),
		DistanceToCenter:   DistanceToIntersection(v.Position),
		InsideIntersection: InsideIntersectionBox(v.Position),
	}
}

// ToFields converts the record into the generic map[string]any payload the
// bus stores (internal/bus.Record.Fields).
func (r Record) ToFields() map[string]any {
	return map[string]any{
		"id":                  r.ID,
		"direction":           string(r.Direction),
		"intent":              string(r.Intent),
		"priority":            string(r.Priority),
		"v2x_capable":         r.V2XCapable,
		"no_stop":             r.NoStop,
		"x":                   r.Position.X,
		"y":                   r.Position.Y,
		"vx":                  r.Velocity.X,
		"vy":                  r.Velocity.Y,
		"base_vx":             r.BaseVelocity.X,
		"base_vy":             r.BaseVelocity.Y,
		"speed_kmh":           r.SpeedKmh,
		"heading_rad":         r.HeadingRad,
		"state":               string(r.State),
		"clearance":           r.Clearance,
		"agent_yield":         r.AgentYield,
		"distance_to_stop":    r.DistanceToStop,
		"distance_to_center":  r.DistanceToCenter,
		"inside_intersection": r.InsideIntersection,
	}
}
