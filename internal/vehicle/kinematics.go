package vehicle

// CarFollowingInput summarizes the nearest ahead neighbor on the same
// approach, as computed by the caller (the engine has the full vehicle list;
// a vehicle only needs the gap and the leader's current speed ratio).
type CarFollowingInput struct {
	Found            bool
	Gap              float64 // px to the nearest ahead neighbor, same approach, not yet turned
	LeaderSpeedRatio float64 // leader's |v| / |base v|, 0..1
}

// occupancyRange is how close (px, to the stop line) a V2X-capable vehicle
// must be before its intersection-occupancy sensor starts shrinking speed.
const occupancyRange = 150.0

// brakingRange is the distance (px, to the stop line) at which stop-line
// braking begins.
const brakingRange = 90.0

// carFollowingNear/carFollowingFar bound the car-following ramp (spec.md
// §4.3 rule 2): a hard stop at or below carFollowingNear, full speed at or
// above carFollowingFar, linear in between.
const (
	carFollowingNear = 55.0
	carFollowingFar  = 180.0
)

// DesiredSpeedFactor evaluates the four ordered rules of the desired-speed
// policy (spec.md §4.3) and returns the minimum (most restrictive) factor.
// Each rule defaults to 1.0 (inapplicable) unless its own condition holds.
func (v *Vehicle) DesiredSpeedFactor(cf CarFollowingInput, intersectionOccupied bool, infraLight string) float64 {
	// Rule 1: an agent-set yield flag forces a full stop and short-circuits
	// every other rule.
	if v.AgentYield {
		return 0
	}

	factor := 1.0

	// Rule 2: car-following. Hard stop at or below carFollowingNear; a linear
	// ramp up to full speed at carFollowingFar, further bounded by the
	// leader's own speed ratio but never below the creep floor.
	if cf.Found {
		switch {
		case cf.Gap <= carFollowingNear:
			factor = 0
		case cf.Gap <= carFollowingFar:
			ratio := CreepFloor + (1-CreepFloor)*((cf.Gap-carFollowingNear)/(carFollowingFar-carFollowingNear))
			if cf.LeaderSpeedRatio < ratio {
				ratio = cf.LeaderSpeedRatio
			}
			if ratio < CreepFloor {
				ratio = CreepFloor
			}
			factor = minF(factor, ratio)
		}
	}

	beforeStopLine := DistanceToStopLine(v.Direction, v.Position) > 0

	// Rule 3: intersection-occupancy sensor, V2X-capable vehicles only.
	if v.V2XCapable && beforeStopLine && intersectionOccupied {
		d := DistanceToStopLine(v.Direction, v.Position)
		if d <= occupancyRange {
			ratio := CreepFloor + (1-CreepFloor)*(d/occupancyRange)
			factor = minF(factor, ratio)
		}
	}

	// Rule 4: stop-line braking, unless the vehicle has clearance or is
	// flagged to never stop.
	if beforeStopLine && !v.NoStop && !v.Clearance {
		d := DistanceToStopLine(v.Direction, v.Position)
		if d <= 1 {
			factor = minF(factor, 0)
		} else if d <= brakingRange {
			ratio := CreepFloor + (1-CreepFloor)*(d/brakingRange)
			factor = minF(factor, ratio)
		}
	}

	return factor
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
