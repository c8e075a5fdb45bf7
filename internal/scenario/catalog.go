package scenario

import "github.com/sarabaciu19/V2X-Intersection-Safety/internal/vehicle"

// builtin is the fixed catalog of demonstration scenarios, ported from the
// historical scenarios package (perpendicular.py, speed_diff.py,
// emergency.py, intents.py, multi.py, no_v2x.py, traffic_jam.py). Each
// narrative scenario there is re-expressed here in direction/intent/
// speed-multiplier terms; the geometry itself (spawn point, stop line, turn
// snap) is derived by the vehicle package from Direction+Intent alone.
var builtin = []Scenario{
	{
		Name:        "perpendicular",
		Description: "two vehicles approach on perpendicular roads with no signal",
		HasSignal:   false,
		Vehicles: []VehicleDef{
			{ID: "A", Direction: vehicle.North, Intent: vehicle.Straight, Priority: vehicle.NormalPriority, SpeedMultiplier: 1.0, V2XEnabled: true},
			{ID: "B", Direction: vehicle.West, Intent: vehicle.Straight, Priority: vehicle.NormalPriority, SpeedMultiplier: 1.0, V2XEnabled: true},
		},
	},
	{
		Name:        "speed_diff",
		Description: "one vehicle crosses much faster than the other; slower vehicle must yield",
		HasSignal:   false,
		Vehicles: []VehicleDef{
			{ID: "A", Direction: vehicle.North, Intent: vehicle.Straight, Priority: vehicle.NormalPriority, SpeedMultiplier: 1.8, NoStop: true, V2XEnabled: true},
			{ID: "B", Direction: vehicle.West, Intent: vehicle.Straight, Priority: vehicle.NormalPriority, SpeedMultiplier: 1.0, V2XEnabled: true},
		},
	},
	{
		Name:        "emergency",
		Description: "an ambulance coming from the west turns left, heading north, and preempts the signal",
		HasSignal:   true,
		Vehicles: []VehicleDef{
			{ID: "AMB", Direction: vehicle.West, Intent: vehicle.Left, Priority: vehicle.EmergencyPriority, SpeedMultiplier: 1.5, NoStop: true, V2XEnabled: true},
			{ID: "B", Direction: vehicle.North, Intent: vehicle.Straight, Priority: vehicle.NormalPriority, SpeedMultiplier: 1.0, V2XEnabled: true},
			{ID: "C", Direction: vehicle.East, Intent: vehicle.Straight, Priority: vehicle.NormalPriority, SpeedMultiplier: 1.0, V2XEnabled: true},
		},
	},
	{
		Name:        "intents",
		Description: "four vehicles exercising straight, left and right turns together",
		HasSignal:   true,
		Vehicles: []VehicleDef{
			{ID: "A", Direction: vehicle.North, Intent: vehicle.Left, Priority: vehicle.NormalPriority, SpeedMultiplier: 1.0, V2XEnabled: true},
			{ID: "B", Direction: vehicle.South, Intent: vehicle.Right, Priority: vehicle.NormalPriority, SpeedMultiplier: 1.0, V2XEnabled: true},
			{ID: "C", Direction: vehicle.East, Intent: vehicle.Straight, Priority: vehicle.NormalPriority, SpeedMultiplier: 1.0, V2XEnabled: true},
			{ID: "D", Direction: vehicle.West, Intent: vehicle.Straight, Priority: vehicle.NormalPriority, SpeedMultiplier: 1.0, V2XEnabled: true},
		},
	},
	{
		Name:        "multi",
		Description: "four-way straight traffic with a live signal",
		HasSignal:   true,
		Vehicles: []VehicleDef{
			{ID: "A", Direction: vehicle.North, Intent: vehicle.Straight, Priority: vehicle.NormalPriority, SpeedMultiplier: 1.0, V2XEnabled: true},
			{ID: "B", Direction: vehicle.South, Intent: vehicle.Straight, Priority: vehicle.NormalPriority, SpeedMultiplier: 1.0, V2XEnabled: true},
			{ID: "C", Direction: vehicle.East, Intent: vehicle.Straight, Priority: vehicle.NormalPriority, SpeedMultiplier: 1.0, V2XEnabled: true},
			{ID: "D", Direction: vehicle.West, Intent: vehicle.Straight, Priority: vehicle.NormalPriority, SpeedMultiplier: 1.0, V2XEnabled: true},
		},
	},
	{
		Name:        "no_v2x",
		Description: "a non-V2X vehicle self-manages off the raw signal light and risks collision with a V2X vehicle",
		HasSignal:   true,
		Vehicles: []VehicleDef{
			{ID: "A", Direction: vehicle.North, Intent: vehicle.Straight, Priority: vehicle.NormalPriority, SpeedMultiplier: 1.0, NoStop: true, V2XEnabled: true},
			{ID: "B", Direction: vehicle.West, Intent: vehicle.Straight, Priority: vehicle.NormalPriority, SpeedMultiplier: 1.0, NoStop: true, V2XEnabled: false},
		},
	},
	{
		Name:        "traffic_jam",
		Description: "a queue on every approach plus an ambulance cutting through",
		HasSignal:   true,
		Vehicles: []VehicleDef{
			{ID: "A1", Direction: vehicle.North, Intent: vehicle.Straight, Priority: vehicle.NormalPriority, SpeedMultiplier: 1.0, V2XEnabled: true, QueueIndex: 0},
			{ID: "A2", Direction: vehicle.North, Intent: vehicle.Straight, Priority: vehicle.NormalPriority, SpeedMultiplier: 1.0, V2XEnabled: true, QueueIndex: 1},
			{ID: "S1", Direction: vehicle.South, Intent: vehicle.Straight, Priority: vehicle.NormalPriority, SpeedMultiplier: 1.0, V2XEnabled: true, QueueIndex: 0},
			{ID: "E1", Direction: vehicle.East, Intent: vehicle.Straight, Priority: vehicle.NormalPriority, SpeedMultiplier: 1.0, V2XEnabled: true, QueueIndex: 0},
			{ID: "V1", Direction: vehicle.West, Intent: vehicle.Straight, Priority: vehicle.NormalPriority, SpeedMultiplier: 1.0, V2XEnabled: true, QueueIndex: 0},
			{ID: "AMB", Direction: vehicle.South, Intent: vehicle.Straight, Priority: vehicle.EmergencyPriority, SpeedMultiplier: 1.4, NoStop: true, V2XEnabled: true, QueueIndex: 1},
		},
	},
}

// Names returns the built-in catalog's scenario names in catalog order.
func Names() []string {
	names := make([]string, len(builtin))
	for i, s := range builtin {
		names[i] = s.Name
	}
	return names
}

// Get looks up a built-in scenario by name.
func Get(name string) (Scenario, bool) {
	for _, s := range builtin {
		if s.Name == name {
			return s, true
		}
	}
	return Scenario{}, false
}
