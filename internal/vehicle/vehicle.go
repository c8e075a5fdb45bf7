package vehicle

// Spec is the immutable-at-spawn identity of a vehicle, as provided by the
// scenario that created it.
type Spec struct {
	ID              string
	Direction       Direction
	Intent          Intent
	Priority        Priority
	SpeedMultiplier float64
	V2XCapable      bool
	NoStop          bool
	SpawnTick       int
}

// Vehicle is one simulated vehicle: its identity, derived geometry, and
// mutable per-tick state (spec.md §3).
type Vehicle struct {
	Spec

	// Derived at spawn; fixed for the vehicle's lifetime.
	exitDir      Direction
	stopLine     float64
	baseVelocity Vector

	// Mutable per-tick state.
	Position   Point
	Velocity   Vector
	State      State
	Clearance  bool
	AgentYield bool
	Turned     bool

	travelDir Direction // entry Direction until the turn point, then exitDir
}

// New constructs a Vehicle from spec with its derived geometry, in the
// Moving state. It does not place the vehicle: Position is left at the zero
// point for the caller to set (NewAtQueuePosition places it at its queued
// spawn point). SpawnTick is taken from spec as given.
func New(spec Spec) *Vehicle {
	if spec.SpeedMultiplier <= 0 {
		spec.SpeedMultiplier = 1.0
	}
	unit := unitVelocity[spec.Direction]
	base := Vector{X: unit.X * BaseSpeedUnit * spec.SpeedMultiplier, Y: unit.Y * BaseSpeedUnit * spec.SpeedMultiplier}
	return &Vehicle{
		Spec:         spec,
		exitDir:      ExitDirection(spec.Direction, spec.Intent),
		stopLine:     StopLineCoordinate(spec.Direction),
		baseVelocity: base,
		travelDir:    spec.Direction,
		State:        Moving,
	}
}

// NewAtQueuePosition is a convenience constructor used by the engine at
// scenario reset: it places the vehicle at its queued spawn point and staggers its
// spawn tick by queueIndex.
func NewAtQueuePosition(spec Spec, currentTick, queueIndex int) *Vehicle {
	spec.SpawnTick = currentTick + SpawnTickDelay(queueIndex)
	v := New(spec)
	v.Position = SpawnPosition(spec.Direction, queueIndex)
	return v
}

// Spawned reports whether the vehicle has become active as of tick.
func (v *Vehicle) Spawned(tick int) bool { return tick >= v.SpawnTick }

// Live reports whether the vehicle still participates in collision detection
// and agent decisions: spawned, not crashed, and not finished.
func (v *Vehicle) Live(tick int) bool {
	return v.Spawned(tick) && v.State != Crashed && v.State != Done
}

// MarkCrashed transitions the vehicle into the crashed state. The engine owns
// the since-crashed tick count; the vehicle only tracks that it has crashed.
func (v *Vehicle) MarkCrashed() {
	v.State = Crashed
	v.Velocity = Vector{}
}

// Step advances the vehicle by one tick: it evaluates the desired-speed
// policy, integrates position, applies the turn-once-at-center snap, and
// updates State. infraLight is the current light for v's own
// approach, consulted only by non-V2X vehicles before they cross the stop
// line (spec.md §4.3, §4.5).
func (v *Vehicle) Step(tick int, cf CarFollowingInput, intersectionOccupied bool, infraLight string) {
	if v.State == Crashed || v.State == Done {
		return
	}
	if !v.Spawned(tick) {
		return
	}

	beforeStopLine := DistanceToStopLine(v.Direction, v.Position) > 0
	if !v.V2XCapable && beforeStopLine && infraLight == "green" {
		v.Clearance = true
	}

	factor := v.DesiredSpeedFactor(cf, intersectionOccupied, infraLight)
	v.Velocity = Vector{X: v.baseVelocity.X * factor, Y: v.baseVelocity.Y * factor}
	v.Position.X += v.Velocity.X
	v.Position.Y += v.Velocity.Y

	if !v.Turned && hasReachedTurnPoint(v.Direction, v.Position) {
		v.applyTurn()
	}

	v.updateState(factor)
}

// applyTurn snaps the vehicle's travel direction and base velocity to its
// exit direction once it reaches the intersection center, preserving speed
// magnitude (spec.md §4.3 "Turning").
func (v *Vehicle) applyTurn() {
	v.Turned = true
	if v.exitDir == v.Direction {
		return
	}
	mag := Vector{X: v.baseVelocity.X, Y: v.baseVelocity.Y}.Magnitude()
	unit := unitVelocity[v.exitDir]
	v.baseVelocity = Vector{X: unit.X * mag, Y: unit.Y * mag}
	v.travelDir = v.exitDir
}

func (v *Vehicle) updateState(factor float64) {
	switch {
	case InsideIntersectionBox(v.Position):
		v.State = Crossing
	case isOffScreen(v.travelDir, v.Position):
		v.State = Done
	case v.Velocity.Magnitude() < 0.05:
		v.State = Waiting
	case factor < 1:
		v.State = Braking
	default:
		v.State = Moving
	}
}

// DistanceToIntersectionCenter returns v's current Euclidean distance to the
// intersection center.
func (v *Vehicle) DistanceToIntersectionCenter() float64 {
	return DistanceToIntersection(v.Position)
}
