// Package engine implements the scheduler/engine (C8): the fixed-tick
// cooperative loop that composes the state bus, event log, vehicle model,
// signal controller, arbiter, per-vehicle agents, and advisor client into one
// running simulation, plus the scenario lifecycle and the external facade
// (spec.md §4.8, §6).
package engine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/sarabaciu19/V2X-Intersection-Safety/internal/advisor"
	"github.com/sarabaciu19/V2X-Intersection-Safety/internal/agent"
	"github.com/sarabaciu19/V2X-Intersection-Safety/internal/arbiter"
	"github.com/sarabaciu19/V2X-Intersection-Safety/internal/bus"
	"github.com/sarabaciu19/V2X-Intersection-Safety/internal/config"
	"github.com/sarabaciu19/V2X-Intersection-Safety/internal/eventlog"
	"github.com/sarabaciu19/V2X-Intersection-Safety/internal/scenario"
	"github.com/sarabaciu19/V2X-Intersection-Safety/internal/signal"
	"github.com/sarabaciu19/V2X-Intersection-Safety/internal/vehicle"
)

const (
	collisionDistance = 20.0 // px; collision.py's COLLISION_DIST
	crashTimeoutTicks = 60
	ticksPerSecond    = 30.0
	defaultScenario   = "perpendicular"
)

// Engine owns every live vehicle, agent, and shared component, and runs the
// tick loop described in spec.md §4.8. All mutation happens on e.mu; the
// composed snapshot is stored behind an atomic pointer so a reader never
// observes a torn, partially-applied tick (spec.md §5).
type Engine struct {
	mu sync.Mutex

	bus     *bus.Bus
	log     *eventlog.Sink
	sigCtrl *signal.Controller
	arb     *arbiter.Arbiter
	adv     *advisor.Client
	builder *scenario.Builder
	logger  *logrus.Logger

	vehicles map[string]*vehicle.Vehicle
	agents   map[string]*agent.Agent
	order    []string // stable, insertion-order vehicle ids

	cooperation  bool
	paused       bool
	tick         int
	scenarioName string
	hasSignal    bool
	lastSignal   signal.State

	crashTimers map[string]int
	collisions  []CollisionRecord

	snap atomic.Pointer[Snapshot]
}

// New constructs an Engine wired per cfg and loads the default scenario.
func New(cfg config.Config, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	e := &Engine{
		bus:         bus.New(),
		log:         eventlog.New(eventlog.WithLogger(logger)),
		sigCtrl:     signal.New(signal.WithLogger(logger)),
		builder:     scenario.NewBuilder(),
		logger:      logger,
		cooperation: true,
	}
	e.arb = arbiter.New(e.log)
	e.adv = advisor.New(advisor.Config{
		BaseURL:        cfg.AdvisorBaseURL,
		Model:          cfg.AdvisorModel,
		Workers:        cfg.AdvisorWorkers,
		ProbeTimeout:   cfg.AdvisorProbeTimeout,
		RequestTimeout: cfg.AdvisorRequestTimeout,
	}, logger)

	e.mu.Lock()
	_ = e.resetLocked(defaultScenario)
	e.composeSnapshotLocked()
	e.mu.Unlock()
	return e
}

// Snapshot returns the most recently composed whole-tick view.
func (e *Engine) Snapshot() Snapshot {
	p := e.snap.Load()
	if p == nil {
		return Snapshot{}
	}
	return *p
}

// Scenarios returns the built-in catalog names plus "custom", and the
// currently active scenario's name.
func (e *Engine) Scenarios() (names []string, current string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	names = append(append([]string{}, scenario.Names()...), "custom")
	return names, e.scenarioName
}

// Reset loads name (or reloads the current scenario if name is empty).
func (e *Engine) Reset(name string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if name == "" {
		name = e.scenarioName
	}
	if err := e.resetLocked(name); err != nil {
		return "", err
	}
	e.composeSnapshotLocked()
	return e.scenarioName, nil
}

func (e *Engine) resetLocked(name string) error {
	var sc scenario.Scenario
	if name == "custom" {
		sc = e.builder.GetCustom()
	} else {
		var ok bool
		sc, ok = scenario.Get(name)
		if !ok {
			return fmt.Errorf("unknown scenario %q", name)
		}
	}

	e.bus.Clear()
	e.log.Clear()
	e.adv.Reset()
	e.sigCtrl.Reset()

	e.vehicles = make(map[string]*vehicle.Vehicle, len(sc.Vehicles))
	e.agents = make(map[string]*agent.Agent, len(sc.Vehicles))
	e.order = make([]string, 0, len(sc.Vehicles))
	e.crashTimers = make(map[string]int)
	e.collisions = nil
	e.tick = 0
	e.scenarioName = name
	e.hasSignal = sc.HasSignal
	e.lastSignal = allGreenState()

	for _, def := range sc.Vehicles {
		v := vehicle.NewAtQueuePosition(def.ToSpec(), e.tick, def.QueueIndex)
		e.vehicles[def.ID] = v
		e.agents[def.ID] = agent.New(def.ID, e.cooperation, e.adv, e.log)
		e.order = append(e.order, def.ID)
		if v.Spawned(e.tick) {
			e.bus.Publish(def.ID, v.ToRecord().ToFields())
		}
	}

	e.log.LogInfo(fmt.Sprintf("scenario %q loaded", name))
	return nil
}

// ToggleCooperation flips the cooperation flag; turning it off revokes every
// pending clearance (spec.md §4.8).
func (e *Engine) ToggleCooperation() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cooperation = !e.cooperation
	for _, ag := range e.agents {
		ag.Cooperation = e.cooperation
	}
	if !e.cooperation {
		for _, v := range e.vehicles {
			v.Clearance = false
		}
	}
	e.composeSnapshotLocked()
	return e.cooperation
}

// Start clears the paused flag.
func (e *Engine) Start() {
	e.mu.Lock()
	e.paused = false
	e.mu.Unlock()
}

// Stop sets the paused flag.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
}

// GrantClearance forces clearance on a single waiting vehicle (spec.md §6).
func (e *Engine) GrantClearance(id string) (ok bool, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	records := make([]vehicle.Record, 0, len(e.order))
	for _, vid := range e.order {
		records = append(records, e.vehicles[vid].ToRecord())
	}
	ok, reason = e.arb.GrantManual(id, records)
	if ok {
		e.vehicles[id].Clearance = true
		e.composeSnapshotLocked()
	}
	return ok, reason
}

// AddVehicle validates and appends a vehicle to the custom builder.
func (e *Engine) AddVehicle(raw []byte) (scenario.VehicleDef, error) {
	def, err := e.builder.AddVehicle(raw)
	if err != nil {
		return def, err
	}
	e.mirrorCustom()
	return def, nil
}

// UpdateVehicle merges a partial spec onto an existing custom-builder vehicle.
func (e *Engine) UpdateVehicle(id string, partial []byte) (scenario.VehicleDef, error) {
	def, err := e.builder.UpdateVehicle(id, partial)
	if err != nil {
		return def, err
	}
	e.mirrorCustom()
	return def, nil
}

// RemoveVehicle deletes a vehicle from the custom builder.
func (e *Engine) RemoveVehicle(id string) (bool, string) {
	if !e.builder.RemoveVehicle(id) {
		return false, fmt.Sprintf("%s not found in custom scenario", id)
	}
	e.mirrorCustom()
	return true, ""
}

// ClearCustom empties the custom builder's vehicle list.
func (e *Engine) ClearCustom() {
	e.builder.ClearCustom()
	e.mirrorCustom()
}

// SetCustomSignal sets whether the custom scenario runs with a signal.
func (e *Engine) SetCustomSignal(on bool) {
	e.builder.SetCustomSignal(on)
	e.mirrorCustom()
}

// GetCustom returns the custom builder's current state.
func (e *Engine) GetCustom() scenario.Scenario {
	return e.builder.GetCustom()
}

// mirrorCustom rebuilds the live vehicle set from the builder whenever the
// custom scenario is the one currently active (spec.md §4.8).
func (e *Engine) mirrorCustom() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.scenarioName != "custom" {
		return
	}
	_ = e.resetLocked("custom")
	e.composeSnapshotLocked()
}

// Step advances the simulation by exactly one tick, following the
// normative ordering of spec.md §4.8.
func (e *Engine) Step() {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.recoverTick()

	if e.paused {
		return
	}
	e.tick++

	if len(e.order) > 0 && e.allDoneLocked() {
		_ = e.resetLocked(e.scenarioName)
		e.composeSnapshotLocked()
		return
	}

	// 4: signal controller, fed the pre-tick vehicle records.
	preTick := e.liveRecordsLocked()
	if e.hasSignal {
		e.lastSignal = e.sigCtrl.Step(preTick)
	} else {
		e.lastSignal = allGreenState()
	}
	e.bus.Publish(bus.InfraKey, e.lastSignal.ToFields())

	// 5: publish each vehicle's pre-decision record.
	for id, r := range preTick {
		e.bus.Publish(id, r.ToFields())
	}

	// 6: arbiter, cooperation permitting.
	if e.cooperation {
		records := make([]vehicle.Record, 0, len(preTick))
		for _, r := range preTick {
			records = append(records, r)
		}
		granted, revoked := e.arb.Decide(records, e.lastSignal, e.hasSignal)
		for id := range granted {
			e.vehicles[id].Clearance = true
		}
		for id := range revoked {
			e.vehicles[id].Clearance = false
		}
	}

	// 7: each agent decides in stable order.
	ctx := context.Background()
	for _, id := range e.order {
		v := e.vehicles[id]
		if !v.Live(e.tick) {
			continue
		}
		others := othersRecords(preTick, e.order, id)
		e.agents[id].Decide(ctx, v, others)
	}
	for _, id := range e.order {
		v := e.vehicles[id]
		switch v.State {
		case vehicle.Waiting, vehicle.Crossing, vehicle.Crashed, vehicle.Done:
			v.AgentYield = false
		}
	}

	// 8: integrate every vehicle (Step itself no-ops for unspawned/crashed/done).
	for _, id := range e.order {
		v := e.vehicles[id]
		cf := carFollowingInput(v, e.vehicles, e.order, e.tick)
		occupied := intersectionOccupied(e.vehicles, e.order, e.tick, id)
		infraLight := string(e.lastSignal.LightForDirection(v.Direction))
		v.Step(e.tick, cf, occupied, infraLight)
	}

	// 9: publish updated records.
	for _, id := range e.order {
		v := e.vehicles[id]
		if !v.Spawned(e.tick) {
			continue
		}
		e.bus.Publish(id, v.ToRecord().ToFields())
	}

	// 10: collision detection among live vehicles.
	e.detectCollisionsLocked()

	// 11: advance crash timers.
	for id, since := range e.crashTimers {
		if e.tick-since >= crashTimeoutTicks {
			e.vehicles[id].State = vehicle.Done
		}
	}

	// 12: garbage-collect resolved collisions.
	e.gcCollisionsLocked()

	// 13: compose the exposed snapshot.
	e.composeSnapshotLocked()
}

func (e *Engine) allDoneLocked() bool {
	for _, id := range e.order {
		if e.vehicles[id].State != vehicle.Done {
			return false
		}
	}
	return true
}

func (e *Engine) liveRecordsLocked() map[string]vehicle.Record {
	out := make(map[string]vehicle.Record, len(e.order))
	for _, id := range e.order {
		v := e.vehicles[id]
		if v.Live(e.tick) {
			out[id] = v.ToRecord()
		}
	}
	return out
}

func (e *Engine) detectCollisionsLocked() {
	for i := 0; i < len(e.order); i++ {
		vi := e.vehicles[e.order[i]]
		if !vi.Live(e.tick) {
			continue
		}
		for j := i + 1; j < len(e.order); j++ {
			vj := e.vehicles[e.order[j]]
			if !vj.Live(e.tick) {
				continue
			}
			dist := math.Hypot(vi.Position.X-vj.Position.X, vi.Position.Y-vj.Position.Y)
			if dist >= collisionDistance {
				continue
			}
			vi.MarkCrashed()
			vj.MarkCrashed()
			e.crashTimers[vi.ID] = e.tick
			e.crashTimers[vj.ID] = e.tick
			e.collisions = append(e.collisions, CollisionRecord{Vehicles: [2]string{vi.ID, vj.ID}, Tick: e.tick})
			e.log.LogCollision(vi.ID, vj.ID)
		}
	}
}

func (e *Engine) gcCollisionsLocked() {
	kept := e.collisions[:0]
	for _, c := range e.collisions {
		a, okA := e.vehicles[c.Vehicles[0]]
		b, okB := e.vehicles[c.Vehicles[1]]
		if okA && okB && a.State == vehicle.Done && b.State == vehicle.Done {
			continue
		}
		kept = append(kept, c)
	}
	e.collisions = kept
}

// recoverTick guards a tick against a programmer error so it never
// propagates to the facade (spec.md §7): the tick is skipped and logged,
// the loop continues on the next Step call.
func (e *Engine) recoverTick() {
	if r := recover(); r != nil {
		e.logger.WithField("panic", r).Error("tick panicked; tick skipped")
	}
}

func (e *Engine) composeSnapshotLocked() {
	records := make(map[string]vehicle.Record, len(e.order))
	visible := make([]vehicle.Record, 0, len(e.order))
	for _, id := range e.order {
		v := e.vehicles[id]
		if !v.Spawned(e.tick) {
			continue
		}
		r := v.ToRecord()
		if v.State != vehicle.Done {
			records[id] = r
			visible = append(visible, r)
		}
	}

	risk, zones := assessRisk(e.order, records)

	memory := make(map[string][]agent.Decision, len(e.agents))
	for id, ag := range e.agents {
		memory[id] = append([]agent.Decision(nil), ag.Memory()...)
	}

	snap := &Snapshot{
		Tick:           e.tick,
		Timestamp:      float64(e.tick) / ticksPerSecond,
		Cooperation:    e.cooperation,
		Scenario:       e.scenarioName,
		Paused:         e.paused,
		HasSignal:      e.hasSignal,
		Vehicles:       visible,
		Semaphore:      semaphoreView(e.hasSignal, e.lastSignal),
		Risk:           risk,
		RiskZones:      zones,
		Collisions:     append([]CollisionRecord(nil), e.collisions...),
		EventLog:       e.log.GetRecent(20),
		AgentsMemory:   memory,
		CustomScenario: e.builder.GetCustom().Vehicles,
	}
	e.snap.Store(snap)
}

func allGreenState() signal.State {
	return signal.State{
		LightFor: map[vehicle.Direction]signal.Light{
			vehicle.North: signal.Green, vehicle.South: signal.Green,
			vehicle.East: signal.Green, vehicle.West: signal.Green,
		},
		Aggregate: signal.Green,
	}
}

func semaphoreView(hasSignal bool, s signal.State) SemaphoreView {
	lights := map[string]string{
		"N": string(s.LightFor[vehicle.North]),
		"S": string(s.LightFor[vehicle.South]),
		"E": string(s.LightFor[vehicle.East]),
		"V": string(s.LightFor[vehicle.West]),
	}
	approaching := make([]ApproachingView, 0, len(s.Approaching))
	for _, a := range s.Approaching {
		approaching = append(approaching, ApproachingView{ID: a.ID, Distance: a.Distance})
	}
	return SemaphoreView{
		Light: string(s.Aggregate), Lights: lights,
		Emergency: s.Emergency, EmergencyVehicle: s.EmergencyVehicle,
		Approaching: approaching, HasSemaphore: hasSignal,
	}
}

func othersRecords(records map[string]vehicle.Record, order []string, exclude string) []vehicle.Record {
	out := make([]vehicle.Record, 0, len(records))
	for _, id := range order {
		if id == exclude {
			continue
		}
		if r, ok := records[id]; ok {
			out = append(out, r)
		}
	}
	return out
}

// carFollowingInput finds the nearest same-approach vehicle ahead of v,
// measured by distance to the stop line, grounded on the car-following rule
// of spec.md §4.3.
func carFollowingInput(v *vehicle.Vehicle, vehicles map[string]*vehicle.Vehicle, order []string, tick int) vehicle.CarFollowingInput {
	var best vehicle.CarFollowingInput
	bestGap := math.Inf(1)
	dv := vehicle.DistanceToStopLine(v.Direction, v.Position)
	for _, id := range order {
		o := vehicles[id]
		if o == v || !o.Spawned(tick) || o.State == vehicle.Done || o.Turned || o.Direction != v.Direction {
			continue
		}
		do := vehicle.DistanceToStopLine(o.Direction, o.Position)
		gap := dv - do
		if gap <= 0 || gap >= bestGap {
			continue
		}
		ratio := 0.0
		if base := vehicle.BaseSpeedUnit * o.SpeedMultiplier; base > 0 {
			ratio = o.Velocity.Magnitude() / base
		}
		bestGap = gap
		best = vehicle.CarFollowingInput{Found: true, Gap: gap, LeaderSpeedRatio: ratio}
	}
	return best
}

// intersectionOccupied reports whether any other spawned, not-done vehicle
// currently sits inside the intersection box (spec.md §4.3 rule 3).
func intersectionOccupied(vehicles map[string]*vehicle.Vehicle, order []string, tick int, exclude string) bool {
	for _, id := range order {
		if id == exclude {
			continue
		}
		o := vehicles[id]
		if !o.Spawned(tick) || o.State == vehicle.Done {
			continue
		}
		if vehicle.InsideIntersectionBox(o.Position) {
			return true
		}
	}
	return false
}
