package arbiter

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/sarabaciu19/V2X-Intersection-Safety/internal/eventlog"
	"github.com/sarabaciu19/V2X-Intersection-Safety/internal/signal"
	"github.com/sarabaciu19/V2X-Intersection-Safety/internal/vehicle"
)

func waitingRecord(id string, d vehicle.Direction, intent vehicle.Intent) vehicle.Record {
	return vehicle.Record{
		ID: id, Direction: d, Intent: intent, Priority: vehicle.NormalPriority,
		V2XCapable: true, State: vehicle.Waiting,
	}
}

func allGreen() signal.State {
	return signal.State{LightFor: map[vehicle.Direction]signal.Light{
		vehicle.North: signal.Green, vehicle.South: signal.Green,
		vehicle.East: signal.Green, vehicle.West: signal.Green,
	}}
}

func TestArbiterEmergencyPriority(t *testing.T) {
	Convey("Given an emergency vehicle and a normal vehicle both waiting", t, func() {
		a := New(eventlog.New())
		emergency := waitingRecord("amb", vehicle.North, vehicle.Straight)
		emergency.Priority = vehicle.EmergencyPriority
		normal := waitingRecord("n1", vehicle.East, vehicle.Straight)
		normal.Clearance = true

		granted, revoked := a.Decide([]vehicle.Record{emergency, normal}, allGreen(), true)

		Convey("the emergency vehicle is granted clearance", func() {
			So(granted["amb"], ShouldBeTrue)
		})

		Convey("the normal vehicle's clearance is revoked", func() {
			So(revoked["n1"], ShouldBeTrue)
		})
	})
}

func TestArbiterRightHandRule(t *testing.T) {
	Convey("Given two conflicting waiting vehicles, one from the other's right", t, func() {
		a := New(eventlog.New())
		// West is to the right of North (vehicle.RightOf[North] == West).
		fromNorth := waitingRecord("n", vehicle.North, vehicle.Straight)
		fromWest := waitingRecord("w", vehicle.West, vehicle.Straight)

		granted, _ := a.Decide([]vehicle.Record{fromNorth, fromWest}, allGreen(), true)

		Convey("the vehicle on the right is granted clearance first", func() {
			So(granted["w"], ShouldBeTrue)
		})
	})
}

func TestArbiterLeftTurnYields(t *testing.T) {
	Convey("Given a left-turning vehicle alongside a straight-through vehicle with no right-hand conflict", t, func() {
		a := New(eventlog.New())
		left := waitingRecord("l", vehicle.North, vehicle.Left)
		straight := waitingRecord("s", vehicle.South, vehicle.Straight)

		granted, _ := a.Decide([]vehicle.Record{left, straight}, allGreen(), true)

		Convey("the straight-through vehicle is granted first", func() {
			So(granted["s"], ShouldBeTrue)
			So(granted["l"], ShouldBeFalse)
		})
	})
}

func TestArbiterSignalAwareAdmission(t *testing.T) {
	Convey("Given a waiting vehicle whose approach currently shows red", t, func() {
		a := New(eventlog.New())
		v := waitingRecord("n", vehicle.North, vehicle.Straight)
		redForNorth := signal.State{LightFor: map[vehicle.Direction]signal.Light{
			vehicle.North: signal.Red, vehicle.South: signal.Red,
			vehicle.East: signal.Green, vehicle.West: signal.Green,
		}}

		granted, _ := a.Decide([]vehicle.Record{v}, redForNorth, true)

		Convey("it is not granted clearance", func() {
			So(granted["n"], ShouldBeFalse)
		})
	})
}

func TestArbiterGreedyAdmission(t *testing.T) {
	Convey("Given two non-conflicting vehicles that don't block one another by the right-hand rule", t, func() {
		a := New(eventlog.New())
		// North/South straight is non-conflicting with nobody else present.
		n := waitingRecord("n", vehicle.North, vehicle.Straight)
		s := waitingRecord("s", vehicle.South, vehicle.Straight)

		granted, _ := a.Decide([]vehicle.Record{n, s}, allGreen(), true)

		Convey("both are admitted in the same tick", func() {
			So(granted["n"], ShouldBeTrue)
			So(granted["s"], ShouldBeTrue)
		})
	})
}

func TestConflicts(t *testing.T) {
	Convey("Movement conflict rules", t, func() {
		n := vehicle.Record{Direction: vehicle.North, Intent: vehicle.Straight}
		s := vehicle.Record{Direction: vehicle.South, Intent: vehicle.Straight}
		e := vehicle.Record{Direction: vehicle.East, Intent: vehicle.Right}
		w := vehicle.Record{Direction: vehicle.West, Intent: vehicle.Left}

		So(Conflicts(n, s), ShouldBeFalse)
		So(Conflicts(n, e), ShouldBeTrue) // a right turn still crosses a perpendicular path
		So(Conflicts(n, w), ShouldBeTrue)
	})
}

func TestArbiterUnsignaledSpeedOverride(t *testing.T) {
	Convey("Given a fast no-stop vehicle approaching and a waiting vehicle on its right", t, func() {
		a := New(eventlog.New())
		// North is fast enough to out-arrive West by more than ttaDelta, even
		// though West is North's right-hand neighbor and would otherwise hold
		// right-of-way. North never reaches Waiting (no-stop), so it must be
		// evaluated as a blocker/overrider purely from its live (Moving) state.
		fast := vehicle.Record{
			ID: "A", Direction: vehicle.North, Intent: vehicle.Straight,
			Priority: vehicle.NormalPriority, V2XCapable: true, NoStop: true,
			State: vehicle.Moving, BaseVelocity: vehicle.Vector{X: 0, Y: 5.4},
			DistanceToCenter: 27,
		}
		waiting := vehicle.Record{
			ID: "B", Direction: vehicle.West, Intent: vehicle.Straight,
			Priority: vehicle.NormalPriority, V2XCapable: true,
			State: vehicle.Waiting, BaseVelocity: vehicle.Vector{X: 3, Y: 0},
			DistanceToCenter: 300,
		}

		granted, _ := a.Decide([]vehicle.Record{fast, waiting}, signal.State{}, false)

		Convey("the fast vehicle is granted clearance despite not waiting", func() {
			So(granted["A"], ShouldBeTrue)
		})

		Convey("the right-of-way holder it overrode is not granted this tick", func() {
			So(granted["B"], ShouldBeFalse)
		})

		Convey("both events land in the log", func() {
			recent := a.log.GetRecent(10)
			var sawOverride, sawSpeed bool
			for _, e := range recent {
				switch {
				case e.Actor == "B" && e.Action == "YIELD_SPEED_OVERRIDE":
					sawOverride = true
				case e.Actor == "A" && e.Action == "CLEARANCE_SPEED":
					sawSpeed = true
				}
			}
			So(sawOverride, ShouldBeTrue)
			So(sawSpeed, ShouldBeTrue)
		})
	})
}

func TestArbiterUnsignaledPlainYield(t *testing.T) {
	Convey("Given two waiting vehicles with no speed advantage over one another", t, func() {
		a := New(eventlog.New())
		fromNorth := vehicle.Record{
			ID: "n", Direction: vehicle.North, Intent: vehicle.Straight,
			Priority: vehicle.NormalPriority, V2XCapable: true,
			State: vehicle.Waiting, BaseVelocity: vehicle.Vector{X: 0, Y: 3},
			DistanceToCenter: 90,
		}
		fromWest := vehicle.Record{
			ID: "w", Direction: vehicle.West, Intent: vehicle.Straight,
			Priority: vehicle.NormalPriority, V2XCapable: true,
			State: vehicle.Waiting, BaseVelocity: vehicle.Vector{X: 3, Y: 0},
			DistanceToCenter: 90,
		}

		granted, _ := a.Decide([]vehicle.Record{fromNorth, fromWest}, signal.State{}, false)

		Convey("the vehicle on the right proceeds and the other yields", func() {
			So(granted["w"], ShouldBeTrue)
			So(granted["n"], ShouldBeFalse)
		})
	})
}

func TestArbiterManualGrant(t *testing.T) {
	Convey("Given a waiting vehicle", t, func() {
		a := New(eventlog.New())
		v := waitingRecord("n", vehicle.North, vehicle.Straight)

		Convey("a manual grant succeeds", func() {
			ok, _ := a.GrantManual("n", []vehicle.Record{v})
			So(ok, ShouldBeTrue)
		})

		Convey("a manual grant for an unknown id fails", func() {
			ok, reason := a.GrantManual("ghost", []vehicle.Record{v})
			So(ok, ShouldBeFalse)
			So(reason, ShouldNotBeEmpty)
		})
	})
}
