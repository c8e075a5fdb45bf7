// Package signal implements the four-phase deterministic traffic signal
// controller (C4): a fixed green/yellow cycle for the {N,S} and {E,V}
// approach pairs, with emergency-vehicle preemption.
package signal

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/sarabaciu19/V2X-Intersection-Safety/internal/bus"
	"github.com/sarabaciu19/V2X-Intersection-Safety/internal/vehicle"
)

// Phase durations, in ticks at 30 ticks/s (5s green, 1s yellow per pair).
const (
	GreenTicks  = 150
	YellowTicks = 30
	cycleTicks  = 2 * (GreenTicks + YellowTicks)

	emergencyRange   = 250.0
	approachingRange = 300.0
)

// Light is the aspect shown to one approach pair.
type Light string

const (
	Green  Light = "green"
	Yellow Light = "yellow"
	Red    Light = "red"
)

// Approaching describes one vehicle heading toward the intersection, as
// reported in the INFRA record.
type Approaching struct {
	ID       string
	Distance float64
}

// State is the controller's published view (spec.md §4.4).
type State struct {
	LightFor         map[vehicle.Direction]Light
	Aggregate        Light // any green wins, else any yellow, else red (spec.md §4.4)
	Emergency        bool
	EmergencyVehicle string
	Approaching      []Approaching
	RiskAlert        bool
}

// pairA is {North, South}; every direction not in pairA belongs to pair B,
// {East, West}.
var pairA = map[vehicle.Direction]bool{vehicle.North: true, vehicle.South: true}

// Controller is the stateful four-phase signal.
type Controller struct {
	timer int // ticks elapsed in the current (non-emergency) cycle

	emergencyActive bool
	emergencyID     string
	emergencyDir    vehicle.Direction
	savedTimer      int // timer value to resume once the emergency clears

	lastAggregate Light
	log           *logrus.Logger
}

// Option configures a Controller at construction.
type Option func(*Controller)

// WithLogger overrides the logger used for phase-transition lines.
func WithLogger(l *logrus.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// New returns a Controller starting at the beginning of its green phase.
func New(opts ...Option) *Controller {
	c := &Controller{log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reset returns the controller to its initial phase, for scenario reset.
func (c *Controller) Reset() {
	c.timer = 0
	c.emergencyActive = false
	c.emergencyID = ""
	c.emergencyDir = ""
	c.savedTimer = 0
	c.lastAggregate = ""
}

// Step advances the controller by one tick given the current vehicle
// records (as published to the bus), and returns the state published to
// INFRA this tick.
func (c *Controller) Step(vehicles map[string]vehicle.Record) State {
	emergencyID, emergencyDir := c.detectEmergency(vehicles)
	if emergencyID != "" {
		if !c.emergencyActive {
			c.savedTimer = c.timer
		}
		c.emergencyActive = true
		c.emergencyID = emergencyID
		c.emergencyDir = emergencyDir
	} else if c.emergencyActive {
		// Emergency cleared: resume the cycle from where it was preempted;
		// this tick counts as the first tick of the resumed cycle.
		c.emergencyActive = false
		c.emergencyID = ""
		c.emergencyDir = ""
		c.timer = c.savedTimer + 1
	} else {
		c.timer++
	}

	lightFor := c.computeLights()
	aggregate := aggregateLight(lightFor)
	if aggregate != c.lastAggregate {
		c.log.WithFields(logrus.Fields{"from": c.lastAggregate, "to": aggregate}).Info("signal phase transition")
		c.lastAggregate = aggregate
	}

	approaching := c.detectApproaching(vehicles)
	return State{
		LightFor:         lightFor,
		Aggregate:        aggregate,
		Emergency:        c.emergencyActive,
		EmergencyVehicle: c.emergencyID,
		Approaching:      approaching,
		RiskAlert:        len(approaching) >= 2,
	}
}

// computeLights derives the per-direction light from the controller's
// current phase. Under emergency preemption, only the emergency vehicle's
// own approach is held green; every other approach (including its axis
// partner) is held red (spec.md §4.4).
func (c *Controller) computeLights() map[vehicle.Direction]Light {
	out := map[vehicle.Direction]Light{vehicle.North: Red, vehicle.South: Red, vehicle.East: Red, vehicle.West: Red}

	if c.emergencyActive {
		out[c.emergencyDir] = Green
		return out
	}

	pos := c.timer % cycleTicks
	var aLight, bLight Light
	switch {
	case pos < GreenTicks:
		aLight, bLight = Green, Red
	case pos < GreenTicks+YellowTicks:
		aLight, bLight = Yellow, Red
	case pos < GreenTicks+YellowTicks+GreenTicks:
		aLight, bLight = Red, Green
	default:
		aLight, bLight = Red, Yellow
	}
	out[vehicle.North] = aLight
	out[vehicle.South] = aLight
	out[vehicle.East] = bLight
	out[vehicle.West] = bLight
	return out
}

// aggregateLight derives the single at-a-glance light from the four
// per-direction lights: any green wins, else any yellow, else red
// (spec.md §4.4).
func aggregateLight(lightFor map[vehicle.Direction]Light) Light {
	sawYellow := false
	for _, l := range lightFor {
		if l == Green {
			return Green
		}
		if l == Yellow {
			sawYellow = true
		}
	}
	if sawYellow {
		return Yellow
	}
	return Red
}

// LightForDirection returns the current light for a single direction from a
// State, or Red when the direction has no entry.
func (s State) LightForDirection(d vehicle.Direction) Light {
	if l, ok := s.LightFor[d]; ok {
		return l
	}
	return Red
}

func (c *Controller) detectEmergency(vehicles map[string]vehicle.Record) (id string, dir vehicle.Direction) {
	for vid, v := range vehicles {
		if v.Priority != vehicle.EmergencyPriority {
			continue
		}
		if v.DistanceToCenter < emergencyRange {
			return vid, v.Direction
		}
	}
	return "", ""
}

func (c *Controller) detectApproaching(vehicles map[string]vehicle.Record) []Approaching {
	var out []Approaching
	for vid, v := range vehicles {
		d := v.DistanceToCenter
		if d >= approachingRange {
			continue
		}
		dx := v.Position.X - vehicle.IntersectionX
		dy := v.Position.Y - vehicle.IntersectionY
		dot := dx*v.Velocity.X + dy*v.Velocity.Y
		if dot < 0 {
			out = append(out, Approaching{ID: vid, Distance: math.Round(d*10) / 10})
		}
	}
	return out
}

// ToFields converts a State to the generic payload published on the bus
// under bus.InfraKey.
func (s State) ToFields() map[string]any {
	approaching := make([]map[string]any, 0, len(s.Approaching))
	for _, a := range s.Approaching {
		approaching = append(approaching, map[string]any{"id": a.ID, "distance": a.Distance})
	}
	return map[string]any{
		"light":             string(s.Aggregate),
		"light_n":           string(s.LightFor[vehicle.North]),
		"light_s":           string(s.LightFor[vehicle.South]),
		"light_e":           string(s.LightFor[vehicle.East]),
		"light_v":           string(s.LightFor[vehicle.West]),
		"emergency":         s.Emergency,
		"emergency_vehicle": s.EmergencyVehicle,
		"approaching":       approaching,
		"risk_alert":        s.RiskAlert,
		"x":                 vehicle.IntersectionX,
		"y":                 vehicle.IntersectionY,
		"id":                bus.InfraKey,
		"priority":          "infrastructure",
	}
}
