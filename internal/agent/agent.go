// Package agent implements the per-vehicle V2V/V2I decision agent (C6): a
// short-circuit pipeline that ends in either a deterministic time-to-collision
// evaluation or delegation to a remote advisor. An agent only ever sets its
// vehicle's agent_yield flag — it never mutates velocity directly (spec.md
// §9 supersedes the historical direct-mutation design).
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/sarabaciu19/V2X-Intersection-Safety/internal/eventlog"
	"github.com/sarabaciu19/V2X-Intersection-Safety/internal/vehicle"
)

// Time-to-collision thresholds (seconds), grounded on
// original_source/services/collision.py's TTC_BRAKE/TTC_YIELD.
const (
	TTCBrake = 3.0
	TTCYield = 1.5
)

const ticksPerSecond = 30.0

// relevantRange is the distance (px) to the intersection center inside which
// a vehicle starts negotiating with neighbors at all (spec.md §4.6 step 7).
const relevantRange = 150.0

// memoryCapacity bounds the agent's own decision history (spec.md §4.6: >= 10 entries).
const memoryCapacity = 16

// Action is the verdict an agent reaches for one tick.
type Action string

const (
	Go    Action = "go"
	Brake Action = "brake"
	Yield Action = "yield"
)

// Decision is one tick's agent verdict plus its rationale.
type Decision struct {
	Action Action
	TTC    float64
	Reason string
	Source string // "deterministic" or "advisor"
}

// Advisor is the subset of the remote advisor client (C7) an agent depends
// on. Defining the interface here (rather than importing the advisor
// package) lets the engine wire a concrete client without an import cycle.
type Advisor interface {
	Resolve(ctx context.Context, q Query) (Action, string, error)
}

// Query is what an agent sends the advisor when it delegates.
type Query struct {
	Self   vehicle.Record
	Others []vehicle.Record
	TTC    float64
}

// Agent is the per-vehicle decision process.
type Agent struct {
	VehicleID   string
	Cooperation bool
	Advisor     Advisor

	lastAction Action
	memory     []Decision
	log        *eventlog.Sink
}

// New returns an Agent for a single vehicle.
func New(vehicleID string, cooperation bool, advisor Advisor, log *eventlog.Sink) *Agent {
	return &Agent{VehicleID: vehicleID, Cooperation: cooperation, Advisor: advisor, lastAction: Go, log: log}
}

// Decide runs the ten-step decision pipeline for one tick (spec.md §4.6) and
// updates v.AgentYield accordingly. others excludes the infrastructure record
// and the vehicle itself.
func (a *Agent) Decide(ctx context.Context, v *vehicle.Vehicle, others []vehicle.Record) Decision {
	// 1: non-V2X vehicles never negotiate; they self-manage off the raw
	// signal light (internal/vehicle.Step handles that directly).
	if !v.V2XCapable {
		return a.finish(v, Decision{Action: Go, Reason: "no V2X radio; no negotiation", Source: "deterministic"})
	}

	// 2: cooperation disabled — collision demonstration mode.
	if !a.Cooperation {
		return a.finish(v, Decision{Action: Go, Reason: "cooperation disabled", Source: "deterministic"})
	}

	// 3: nothing left to decide once resolved.
	if v.State == vehicle.Done || v.State == vehicle.Crashed {
		return a.finish(v, Decision{Action: Go, Reason: "already resolved", Source: "deterministic"})
	}

	// 4: already crossing — motion is owned by the vehicle model now.
	if v.State == vehicle.Crossing {
		return a.finish(v, Decision{Action: Go, Reason: "already crossing", Source: "deterministic"})
	}

	// 5: waiting reflects the arbiter's clearance verdict, not a fresh
	// negotiation.
	if v.State == vehicle.Waiting {
		if v.Clearance {
			return a.finish(v, Decision{Action: Go, Reason: "clearance granted", Source: "deterministic"})
		}
		return a.finish(v, Decision{Action: Yield, Reason: "waiting for clearance", Source: "deterministic"})
	}

	// 6: a no-stop vehicle never yields to other traffic.
	if v.NoStop {
		return a.finish(v, Decision{Action: Go, Reason: "no-stop vehicle", Source: "deterministic"})
	}

	self := v.ToRecord()

	// 7: far from the intersection — nothing to negotiate yet.
	if self.DistanceToCenter >= relevantRange {
		return a.finish(v, Decision{Action: Go, Reason: "far from intersection", Source: "deterministic"})
	}

	// 8: relevant neighbors — V2X-capable, still live, close, on a different
	// approach, and path-conflicting.
	relevant := make([]vehicle.Record, 0, len(others))
	for _, o := range others {
		if !o.V2XCapable || o.State == vehicle.Done || o.State == vehicle.Crossing {
			continue
		}
		if o.DistanceToCenter >= relevantRange {
			continue
		}
		if o.Direction == self.Direction {
			continue
		}
		if !pathConflicts(self, o) {
			continue
		}
		relevant = append(relevant, o)
	}

	// 9: no relevant neighbor — proceed.
	if len(relevant) == 0 {
		return a.finish(v, Decision{Action: Go, Reason: "no relevant neighbor", Source: "deterministic"})
	}

	// 10: delegate to the remote advisor when one is configured, else fall
	// back to the deterministic evaluator.
	myTTC := TimeToIntersection(self)
	decision := a.evaluate(self, myTTC, relevant)
	if a.Advisor != nil {
		if act, reason, err := a.Advisor.Resolve(ctx, Query{Self: self, Others: relevant, TTC: myTTC}); err == nil {
			decision = Decision{Action: act, TTC: myTTC, Reason: reason, Source: "advisor"}
		}
	}

	return a.finish(v, decision)
}

// evaluate is the deterministic per-neighbor evaluation loop (spec.md §4.6
// "Deterministic evaluator"), grounded on the historical Agent._evaluate
// method.
func (a *Agent) evaluate(self vehicle.Record, myTTC float64, neighbors []vehicle.Record) Decision {
	for _, o := range neighbors {
		otherTTC := TimeToIntersection(o)
		if otherTTC >= 2*TTCBrake {
			continue
		}
		if o.Priority == vehicle.EmergencyPriority && self.Priority != vehicle.EmergencyPriority {
			return Decision{Action: Yield, TTC: myTTC, Reason: fmt.Sprintf("%s is an emergency vehicle — absolute priority", o.ID), Source: "deterministic"}
		}
		if self.Priority == vehicle.EmergencyPriority {
			return Decision{Action: Go, TTC: myTTC, Reason: "emergency priority", Source: "deterministic"}
		}
		if o.NoStop && otherTTC < myTTC {
			return Decision{Action: Yield, TTC: myTTC, Reason: fmt.Sprintf("%s will not stop and arrives first", o.ID), Source: "deterministic"}
		}
		if vehicle.RightOf[self.Direction] == o.Direction {
			return Decision{Action: Yield, TTC: myTTC, Reason: fmt.Sprintf("%s approaches from the right", o.ID), Source: "deterministic"}
		}
		if otherTTC < myTTC-0.5 {
			return Decision{Action: Yield, TTC: myTTC, Reason: fmt.Sprintf("%s arrives sooner", o.ID), Source: "deterministic"}
		}
	}
	return Decision{Action: Go, TTC: myTTC, Reason: "clear of relevant neighbors", Source: "deterministic"}
}

// pathConflicts reports whether self and o's movements cross inside the
// intersection box: any perpendicular pairing conflicts, and on the same
// axis (opposite approaches) a conflict exists only if at least one of the
// two is turning left (spec.md §4.6 step 8).
func pathConflicts(self, o vehicle.Record) bool {
	if isOpposite(self.Direction, o.Direction) {
		return self.Intent == vehicle.Left || o.Intent == vehicle.Left
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

// finish applies the decision to the vehicle (agent_yield only), logs it on
// action change, and records it in the bounded decision memory.
func (a *Agent) finish(v *vehicle.Vehicle, d Decision) Decision {
	v.AgentYield = d.Action == Yield

	if d.Action != a.lastAction && a.log != nil {
		a.log.LogDecision(a.VehicleID, strings.ToUpper(string(d.Action)), d.TTC, fmt.Sprintf("%s [%s]", d.Reason, d.Source))
	}
	a.lastAction = d.Action

	a.memory = append(a.memory, d)
	if len(a.memory) > memoryCapacity {
		a.memory = a.memory[len(a.memory)-memoryCapacity:]
	}
	return d
}

// Memory returns the agent's recent decisions, most recent last.
func (a *Agent) Memory() []Decision { return a.memory }

// TimeToIntersection mirrors collision.py's time_to_intersection: distance
// to the intersection center over current speed, in seconds; a stationary
// vehicle is treated as arbitrarily far away.
func TimeToIntersection(v vehicle.Record) float64 {
	speed := v.Velocity.Magnitude()
	if speed <= 0 {
		return 999.0
	}
	return (v.DistanceToCenter / speed) / ticksPerSecond
}
