package signal

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/sarabaciu19/V2X-Intersection-Safety/internal/vehicle"
)

func TestControllerCycle(t *testing.T) {
	Convey("Given a fresh controller with no vehicles", t, func() {
		c := New()

		Convey("it starts green for N/S and red for E/V", func() {
			st := c.Step(nil)
			So(st.LightFor[vehicle.North], ShouldEqual, Green)
			So(st.LightFor[vehicle.South], ShouldEqual, Green)
			So(st.LightFor[vehicle.East], ShouldEqual, Red)
			So(st.LightFor[vehicle.West], ShouldEqual, Red)
		})

		Convey("after GreenTicks it turns yellow for the same pair", func() {
			var st State
			for i := 0; i < GreenTicks; i++ {
				st = c.Step(nil)
			}
			So(st.LightFor[vehicle.North], ShouldEqual, Yellow)
		})

		Convey("after a full cycle it returns to A green", func() {
			var st State
			for i := 0; i < cycleTicks; i++ {
				st = c.Step(nil)
			}
			So(st.LightFor[vehicle.North], ShouldEqual, Green)
		})
	})
}

func TestControllerEmergencyPreemption(t *testing.T) {
	Convey("Given an East-approach phase with an emergency vehicle nearby", t, func() {
		c := New()
		for i := 0; i < GreenTicks+YellowTicks+10; i++ {
			c.Step(nil)
		}
		before := c.timer

		vehicles := map[string]vehicle.Record{
			"amb": {
				Priority:         vehicle.EmergencyPriority,
				Direction:        vehicle.East,
				Position:         vehicle.Point{X: vehicle.IntersectionX + 100, Y: vehicle.IntersectionY},
				DistanceToCenter: 100,
			},
		}

		Convey("the signal preempts to green for only the emergency vehicle's own approach", func() {
			st := c.Step(vehicles)
			So(st.Emergency, ShouldBeTrue)
			So(st.EmergencyVehicle, ShouldEqual, "amb")
			So(st.LightFor[vehicle.East], ShouldEqual, Green)
			So(st.LightFor[vehicle.North], ShouldEqual, Red)
			So(st.LightFor[vehicle.South], ShouldEqual, Red)
			So(st.LightFor[vehicle.West], ShouldEqual, Red)
		})

		Convey("the cycle timer is frozen while the emergency is active", func() {
			c.Step(vehicles)
			c.Step(vehicles)
			So(c.timer, ShouldEqual, before)
		})

		Convey("once the emergency clears the cycle resumes from its saved timer", func() {
			c.Step(vehicles)
			c.Step(nil)
			So(c.timer, ShouldEqual, before+1)
		})
	})
}

func TestControllerApproachingAndRisk(t *testing.T) {
	Convey("Given two vehicles approaching within range", t, func() {
		c := New()
		vehicles := map[string]vehicle.Record{
			"a": {Position: vehicle.Point{X: vehicle.IntersectionX - 100, Y: vehicle.IntersectionY}, Velocity: vehicle.Vector{X: 3, Y: 0}, DistanceToCenter: 100},
			"b": {Position: vehicle.Point{X: vehicle.IntersectionX, Y: vehicle.IntersectionY - 100}, Velocity: vehicle.Vector{X: 0, Y: 3}, DistanceToCenter: 100},
		}

		Convey("both are reported approaching and risk_alert is set", func() {
			st := c.Step(vehicles)
			So(len(st.Approaching), ShouldEqual, 2)
			So(st.RiskAlert, ShouldBeTrue)
		})
	})

	Convey("Given a vehicle moving away from the intersection", t, func() {
		c := New()
		vehicles := map[string]vehicle.Record{
			"a": {Position: vehicle.Point{X: vehicle.IntersectionX - 100, Y: vehicle.IntersectionY}, Velocity: vehicle.Vector{X: -3, Y: 0}, DistanceToCenter: 100},
		}

		Convey("it is not reported as approaching", func() {
			st := c.Step(vehicles)
			So(len(st.Approaching), ShouldEqual, 0)
		})
	})
}
