package scenario

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestBuiltinCatalog(t *testing.T) {
	Convey("Given the built-in catalog", t, func() {
		names := Names()

		Convey("it has all seven demonstration scenarios", func() {
			So(names, ShouldContain, "perpendicular")
			So(names, ShouldContain, "speed_diff")
			So(names, ShouldContain, "emergency")
			So(names, ShouldContain, "intents")
			So(names, ShouldContain, "multi")
			So(names, ShouldContain, "no_v2x")
			So(names, ShouldContain, "traffic_jam")
			So(len(names), ShouldEqual, 7)
		})

		Convey("each scenario's vehicle ids are unique", func() {
			for _, name := range names {
				s, ok := Get(name)
				So(ok, ShouldBeTrue)
				seen := map[string]bool{}
				for _, v := range s.Vehicles {
					So(seen[v.ID], ShouldBeFalse)
					seen[v.ID] = true
				}
			}
		})

		Convey("an unknown name is not found", func() {
			_, ok := Get("nonexistent")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestBuilderAddUpdateRemove(t *testing.T) {
	Convey("Given an empty custom builder", t, func() {
		b := NewBuilder()

		Convey("adding a valid vehicle succeeds and applies defaults", func() {
			def, err := b.AddVehicle([]byte(`{"id":"A","direction":"N"}`))
			So(err, ShouldBeNil)
			So(def.Intent, ShouldEqual, "straight")
			So(def.SpeedMultiplier, ShouldEqual, 1.0)
			So(def.V2XEnabled, ShouldBeTrue)
			So(len(b.GetCustom().Vehicles), ShouldEqual, 1)
		})

		Convey("adding a second vehicle with a duplicate id fails", func() {
			_, err := b.AddVehicle([]byte(`{"id":"A","direction":"N"}`))
			So(err, ShouldBeNil)
			_, err = b.AddVehicle([]byte(`{"id":"A","direction":"S"}`))
			So(err, ShouldNotBeNil)
		})

		Convey("adding a vehicle with an invalid direction fails schema validation", func() {
			_, err := b.AddVehicle([]byte(`{"id":"A","direction":"X"}`))
			So(err, ShouldNotBeNil)
		})

		Convey("adding a vehicle with out-of-range speed_multiplier fails", func() {
			_, err := b.AddVehicle([]byte(`{"id":"A","direction":"N","speed_multiplier":5.0}`))
			So(err, ShouldNotBeNil)
		})

		Convey("updating an existing vehicle merges the partial fields", func() {
			_, err := b.AddVehicle([]byte(`{"id":"A","direction":"N"}`))
			So(err, ShouldBeNil)
			updated, err := b.UpdateVehicle("A", []byte(`{"speed_multiplier":2.0}`))
			So(err, ShouldBeNil)
			So(updated.SpeedMultiplier, ShouldEqual, 2.0)
			So(updated.Direction, ShouldEqual, "N")
		})

		Convey("updating an unknown vehicle id fails", func() {
			_, err := b.UpdateVehicle("ghost", []byte(`{"speed_multiplier":2.0}`))
			So(err, ShouldNotBeNil)
		})

		Convey("removing a vehicle drops it from the list", func() {
			_, _ = b.AddVehicle([]byte(`{"id":"A","direction":"N"}`))
			ok := b.RemoveVehicle("A")
			So(ok, ShouldBeTrue)
			So(len(b.GetCustom().Vehicles), ShouldEqual, 0)
		})

		Convey("clearing empties the builder and set_custom_signal is remembered", func() {
			_, _ = b.AddVehicle([]byte(`{"id":"A","direction":"N"}`))
			b.SetCustomSignal(true)
			b.ClearCustom()
			got := b.GetCustom()
			So(len(got.Vehicles), ShouldEqual, 0)
			So(got.HasSignal, ShouldBeTrue)
		})

		Convey("vehicles sharing a direction receive increasing queue indices", func() {
			a, _ := b.AddVehicle([]byte(`{"id":"A","direction":"N"}`))
			c, _ := b.AddVehicle([]byte(`{"id":"C","direction":"N"}`))
			So(a.QueueIndex, ShouldEqual, 0)
			So(c.QueueIndex, ShouldEqual, 1)
		})
	})
}
