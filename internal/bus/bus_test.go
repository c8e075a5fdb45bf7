package bus

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestBus(t *testing.T) {
	Convey("Given an empty bus", t, func() {
		b := New()

		Convey("Get on a missing key reports absence", func() {
			_, ok := b.Get("A")
			So(ok, ShouldBeFalse)
		})

		Convey("Publish then Get returns the same fields", func() {
			b.Publish("A", map[string]any{"x": 1.0})
			rec, ok := b.Get("A")
			So(ok, ShouldBeTrue)
			So(rec.Fields["x"], ShouldEqual, 1.0)
		})

		Convey("Publish overwrites rather than merges", func() {
			b.Publish("A", map[string]any{"x": 1.0, "y": 2.0})
			b.Publish("A", map[string]any{"x": 3.0})
			rec, _ := b.Get("A")
			So(rec.Fields, ShouldResemble, map[string]any{"x": 3.0})
		})

		Convey("GetAll returns every published record", func() {
			b.Publish("A", map[string]any{"x": 1.0})
			b.Publish("B", map[string]any{"x": 2.0})
			all := b.GetAll()
			So(len(all), ShouldEqual, 2)
		})

		Convey("GetAll is a shallow copy independent of further writes", func() {
			b.Publish("A", map[string]any{"x": 1.0})
			all := b.GetAll()
			b.Publish("B", map[string]any{"x": 2.0})
			So(len(all), ShouldEqual, 1)
		})

		Convey("GetOthers excludes only the named key", func() {
			b.Publish("A", map[string]any{})
			b.Publish("B", map[string]any{})
			b.Publish("INFRA", map[string]any{})
			others := b.GetOthers("A")
			So(len(others), ShouldEqual, 2)
			_, hasA := others["A"]
			So(hasA, ShouldBeFalse)
		})

		Convey("Clear empties the bus", func() {
			b.Publish("A", map[string]any{})
			b.Clear()
			all := b.GetAll()
			So(len(all), ShouldEqual, 0)
		})
	})
}
