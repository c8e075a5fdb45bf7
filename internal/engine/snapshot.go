package engine

import (
	"github.com/sarabaciu19/V2X-Intersection-Safety/internal/agent"
	"github.com/sarabaciu19/V2X-Intersection-Safety/internal/eventlog"
	"github.com/sarabaciu19/V2X-Intersection-Safety/internal/scenario"
	"github.com/sarabaciu19/V2X-Intersection-Safety/internal/vehicle"
)

// ApproachingView is one vehicle reported inbound by the signal controller.
type ApproachingView struct {
	ID       string
	Distance float64
}

// SemaphoreView is the snapshot's semaphore section (spec.md §6).
type SemaphoreView struct {
	Light            string
	Lights           map[string]string // N, S, E, V → color
	Emergency        bool
	EmergencyVehicle string
	Approaching      []ApproachingView
	HasSemaphore     bool
}

// RiskView is the snapshot's global risk section: the single most urgent
// conflicting pair, grounded on collision.py's assess_risk.
type RiskView struct {
	Risk   bool
	TTC    float64
	Action string
	Pair   *[2]string
}

// RiskZone is one visualizable conflict zone: a pair of vehicles both
// within the brake-TTC horizon of the intersection center.
type RiskZone struct {
	X, Y, Radius float64
	Level        string // high, medium, low
	Vehicles     [2]string
	TTC          float64
}

// CollisionRecord is one physical collision event (spec.md §6).
type CollisionRecord struct {
	Vehicles [2]string
	Tick     int
}

// Snapshot is the whole-tick, torn-read-free external view of the engine
// (spec.md §6). Readers must never see a snapshot composed from a partially
// applied tick.
type Snapshot struct {
	Tick           int
	Timestamp      float64
	Cooperation    bool
	Scenario       string
	Paused         bool
	HasSignal      bool
	Vehicles       []vehicle.Record
	Semaphore      SemaphoreView
	Risk           RiskView
	RiskZones      []RiskZone
	Collisions     []CollisionRecord
	EventLog       []eventlog.Entry
	AgentsMemory   map[string][]agent.Decision
	CustomScenario []scenario.VehicleDef
}
