// Package arbiter implements the central arbiter (C5): it grants and revokes
// clearance among V2X-capable vehicles waiting at the intersection, applying
// emergency override, the right-hand rule with a time-to-arrival override,
// and signal-aware admission, then greedily admits further non-conflicting
// vehicles.
package arbiter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sarabaciu19/V2X-Intersection-Safety/internal/eventlog"
	"github.com/sarabaciu19/V2X-Intersection-Safety/internal/signal"
	"github.com/sarabaciu19/V2X-Intersection-Safety/internal/vehicle"
)

// ttaDelta is the time-to-arrival margin (seconds) by which a vehicle must
// out-arrive its right-hand-rule blocker to override the rule.
const ttaDelta = 2.0

// ticksPerSecond converts tick-denominated speeds to seconds for TTA.
const ticksPerSecond = 30.0

// infiniteTTA marks a vehicle that is stationary or moving away from the
// intersection: it never poses a time-to-arrival conflict.
const infiniteTTA = 999.0

// movingAwayRange is how close (position units) a vehicle already heading
// away from the intersection center must be before its TTA is treated as
// infinite, rather than as a (meaningless, growing) distance/speed ratio.
const movingAwayRange = 150.0

// Arbiter holds no persistent state beyond its event log sink; every decision
// is recomputed each tick from the current vehicle set.
type Arbiter struct {
	log *eventlog.Sink
}

// New returns an Arbiter that reports decisions to log.
func New(log *eventlog.Sink) *Arbiter {
	return &Arbiter{log: log}
}

// Decide grants and revokes clearance among this tick's vehicles, given the
// current signal state and whether this intersection has a signal at all,
// and returns the set of vehicle IDs granted clearance this tick and the set
// revoked.
func (a *Arbiter) Decide(vehicles []vehicle.Record, sig signal.State, hasSignal bool) (granted, revoked map[string]bool) {
	granted = map[string]bool{}
	revoked = map[string]bool{}

	var live, crossing []vehicle.Record
	for _, v := range vehicles {
		if !v.V2XCapable {
			continue // non-V2X vehicles self-manage against the raw signal light
		}
		switch v.State {
		case vehicle.Moving, vehicle.Braking, vehicle.Waiting:
			live = append(live, v)
		case vehicle.Crossing:
			crossing = append(crossing, v)
		}
	}
	if len(live) == 0 {
		return granted, revoked
	}

	var urgent, normal []vehicle.Record
	for _, v := range live {
		if v.Priority == vehicle.EmergencyPriority {
			urgent = append(urgent, v)
		} else {
			normal = append(normal, v)
		}
	}

	if len(urgent) > 0 {
		for _, v := range urgent {
			if !v.Clearance {
				granted[v.ID] = true
				a.log.LogDecision(v.ID, "CLEARANCE", 0, "emergency — absolute priority")
			}
		}
		for _, v := range normal {
			if v.Clearance {
				revoked[v.ID] = true
			}
		}
		return granted, revoked
	}

	active := make([]vehicle.Record, 0, len(crossing))
	active = append(active, crossing...)

	if hasSignal {
		a.decideSignaled(normal, active, sig, granted, revoked)
	} else {
		a.decideUnsignaled(normal, active, granted, revoked)
	}

	return granted, revoked
}

// decideSignaled implements spec.md §4.5 "With signal": eligibility is
// restricted to the current green approach(es), a winner is picked purely by
// the right-hand rule and the left-turn-yields rule (no time-to-arrival
// override applies once a signal governs the intersection), and further
// non-conflicting eligible vehicles are admitted greedily.
func (a *Arbiter) decideSignaled(normal, active []vehicle.Record, sig signal.State, granted, revoked map[string]bool) {
	var waiting []vehicle.Record
	for _, v := range normal {
		if v.State == vehicle.Waiting || v.State == vehicle.Braking {
			waiting = append(waiting, v)
		}
	}

	// Only vehicles whose own approach currently shows green are eligible —
	// the arbiter resolves cooperative ordering within a green window, it
	// does not override a red aspect. Anything already holding clearance on a
	// red or yellow light loses it (spec.md §4.5).
	eligible := make([]vehicle.Record, 0, len(waiting))
	for _, v := range waiting {
		light := sig.LightForDirection(v.Direction)
		if light == signal.Green {
			eligible = append(eligible, v)
			continue
		}
		if v.Clearance {
			revoked[v.ID] = true
			switch light {
			case signal.Red:
				a.log.LogDecision(v.ID, "STOP", 0, "signal turned red")
			case signal.Yellow:
				a.log.LogDecision(v.ID, "HOLD", 0, "signal turned yellow")
			}
		}
	}

	for len(eligible) > 0 {
		winner := pickWinnerSignaled(eligible)
		if winner == nil {
			break
		}
		if conflictsWithAny(*winner, active) {
			eligible = removeByID(eligible, winner.ID)
			continue
		}
		if !winner.Clearance {
			granted[winner.ID] = true
			a.log.LogDecision(winner.ID, "CLEARANCE", 0, "right of way granted")
		}
		active = append(active, *winner)
		eligible = removeByID(eligible, winner.ID)
	}
}

// decideUnsignaled implements spec.md §4.5 "Without signal": pure right-hand
// rule with a time-to-arrival override. Unlike the signaled branch, the
// right-hand and TTA relations are evaluated against every live V2X vehicle —
// including one still approaching (Moving) that never itself waits, such as
// a no-stop vehicle — not only against other waiting vehicles, so a fast
// approaching vehicle can be seen as a blocker (or an overrider) at all.
func (a *Arbiter) decideUnsignaled(normal, active []vehicle.Record, granted, revoked map[string]bool) {
	tta := ttaByID(normal)
	byID := make(map[string]vehicle.Record, len(normal))
	for _, v := range normal {
		byID[v.ID] = v
	}

	blocked := map[string]bool{}       // must yield outright this tick
	overrides := map[string][]string{} // overrider id -> right-of-way holder ids it overrode
	overridden := map[string]bool{}    // right-of-way holder ids that lost out to an overrider

	for _, v := range normal {
		free := true
		var beaten []string
		for _, o := range normal {
			if o.ID == v.ID || !Conflicts(v, o) || o.Direction != vehicle.RightOf[v.Direction] {
				continue
			}
			if tta[v.ID]-tta[o.ID] < -ttaDelta {
				beaten = append(beaten, o.ID) // v arrives more than ttaDelta before o: overrides it
				continue
			}
			free = false // o still holds right-of-way over v
			break
		}
		if !free {
			blocked[v.ID] = true
			continue
		}
		if len(beaten) > 0 {
			overrides[v.ID] = beaten
			for _, id := range beaten {
				overridden[id] = true
			}
		}
	}

	activeConflict := make([]vehicle.Record, 0, len(active)+len(overrides))
	activeConflict = append(activeConflict, active...)

	for id, beatenIDs := range overrides {
		v := byID[id]
		if !v.Clearance {
			granted[id] = true
		}
		names := strings.Join(beatenIDs, ", ")
		a.log.LogDecision(id, "CLEARANCE_SPEED", tta[id], fmt.Sprintf("time-to-arrival override of %s's right-of-way", names))
		activeConflict = append(activeConflict, v)
	}
	for id := range overridden {
		v := byID[id]
		if v.Clearance {
			revoked[id] = true
		}
		a.log.LogDecision(id, "YIELD_SPEED_OVERRIDE", tta[id], "legal right-of-way violated by speed")
	}

	var waiting []vehicle.Record
	for _, v := range normal {
		if v.State != vehicle.Waiting && v.State != vehicle.Braking {
			continue
		}
		if granted[v.ID] || blocked[v.ID] {
			continue
		}
		waiting = append(waiting, v)
	}
	sort.Slice(waiting, func(i, j int) bool { return tta[waiting[i].ID] < tta[waiting[j].ID] })

	for _, v := range waiting {
		if conflictsWithAny(v, activeConflict) {
			continue
		}
		if !v.Clearance {
			granted[v.ID] = true
			a.log.LogDecision(v.ID, "CLEARANCE", tta[v.ID], "right of way granted")
		}
		activeConflict = append(activeConflict, v)
	}

	for _, v := range normal {
		if (v.State != vehicle.Waiting && v.State != vehicle.Braking) || !blocked[v.ID] {
			continue
		}
		if v.Clearance && !granted[v.ID] {
			revoked[v.ID] = true
		}
	}
}

// GrantManual implements the operator "grant clearance" facade operation
// (spec.md §6): it checks that the vehicle exists and is waiting, and logs
// the grant regardless of the arbiter's own ordering. It does not set the
// clearance flag itself; the caller does that when ok is true.
func (a *Arbiter) GrantManual(id string, vehicles []vehicle.Record) (ok bool, reason string) {
	for _, v := range vehicles {
		if v.ID != id {
			continue
		}
		if v.State != vehicle.Waiting {
			return false, fmt.Sprintf("%s is not waiting", id)
		}
		a.log.LogDecision(id, "CLEARANCE", 0, "manual clearance granted by operator")
		return true, ""
	}
	return false, fmt.Sprintf("%s not found or not waiting", id)
}

// ttaByID computes, for each vehicle, its time-to-arrival at the
// intersection center: Euclidean distance to center divided by the
// magnitude of the vehicle's base velocity (spec.md §4.5) — not its current,
// possibly-braked velocity, or a waiting vehicle's TTA would collapse to
// infinity and the speed-dominance override could never trigger. A vehicle
// already moving away from the center, within movingAwayRange of it, is
// treated as posing no arrival conflict at all.
func ttaByID(vehicles []vehicle.Record) map[string]float64 {
	out := make(map[string]float64, len(vehicles))
	for _, v := range vehicles {
		speed := v.BaseVelocity.Magnitude()
		if speed <= 0 {
			out[v.ID] = infiniteTTA
			continue
		}
		dx := vehicle.IntersectionX - v.Position.X
		dy := vehicle.IntersectionY - v.Position.Y
		if dx*v.BaseVelocity.X+dy*v.BaseVelocity.Y <= 0 && v.DistanceToCenter < movingAwayRange {
			out[v.ID] = infiniteTTA
			continue
		}
		out[v.ID] = (v.DistanceToCenter / speed) / ticksPerSecond
	}
	return out
}

// pickWinnerSignaled applies the right-hand rule and the left-turn-yields
// rule among this tick's green-lit eligible vehicles. Once a signal governs
// the intersection, no time-to-arrival override applies — the signal is the
// sole authority admission defers to (spec.md §4.5 "With signal").
func pickWinnerSignaled(waiting []vehicle.Record) *vehicle.Record {
	if len(waiting) == 0 {
		return nil
	}
	if len(waiting) == 1 {
		w := waiting[0]
		return &w
	}

	byDir := make(map[vehicle.Direction]vehicle.Record, len(waiting))
	for _, v := range waiting {
		byDir[v.Direction] = v
	}

	for _, v := range waiting {
		if _, ok := byDir[vehicle.RightOf[v.Direction]]; ok {
			continue // yields to the vehicle on its right
		}
		if v.Intent == vehicle.Left {
			hasNonLeftOther := false
			for _, o := range waiting {
				if o.ID != v.ID && o.Intent != vehicle.Left {
					hasNonLeftOther = true
					break
				}
			}
			if hasNonLeftOther {
				continue
			}
		}
		winner := v
		return &winner
	}
	w := waiting[0]
	return &w
}

func removeByID(vehicles []vehicle.Record, id string) []vehicle.Record {
	out := vehicles[:0]
	for _, v := range vehicles {
		if v.ID != id {
			out = append(out, v)
		}
	}
	return out
}

// conflictsWithAny reports whether v's movement conflicts with any already
// active (crossing or newly admitted) movement.
func conflictsWithAny(v vehicle.Record, active []vehicle.Record) bool {
	for _, a := range active {
		if Conflicts(v, a) {
			return true
		}
	}
	return false
}

// Conflicts reports whether two vehicle movements would cross paths inside
// the intersection box. Vehicles from the same approach queue behind one
// another and never conflict; two straight movements from opposite
// approaches run in parallel. No further intent is exempted: unlike
// agent.pathConflicts, an opposite-approach pair conflicts whenever either
// vehicle is not going straight, right turns included.
func Conflicts(a, b vehicle.Record) bool {
	if a.Direction == b.Direction {
		return false
	}
	if isOpposite(a.Direction, b.Direction) && a.Intent == vehicle.Straight && b.Intent == vehicle.Straight {
		return false
	}
	return true
}

func isOpposite(a, b vehicle.Direction) bool {
	switch a {
	case vehicle.North:
		return b == vehicle.South
	case vehicle.South:
		return b == vehicle.North
	case vehicle.East:
		return b == vehicle.West
	case vehicle.West:
		return b == vehicle.East
	}
	return false
}
