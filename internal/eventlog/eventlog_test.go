package eventlog

import (
	"bytes"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSink(t *testing.T) {
	Convey("Given a fresh sink", t, func() {
		s := New()

		Convey("LogDecision is retrievable via GetRecent", func() {
			s.LogDecision("A", "YIELD", 1.2, "right-of-way")
			recent := s.GetRecent(10)
			So(len(recent), ShouldEqual, 1)
			So(recent[0].Actor, ShouldEqual, "A")
			So(recent[0].Action, ShouldEqual, "YIELD")
		})

		Convey("GetRecent never returns more than requested", func() {
			for i := 0; i < 5; i++ {
				s.LogInfo("tick")
			}
			So(len(s.GetRecent(3)), ShouldEqual, 3)
		})

		Convey("the ring is bounded", func() {
			for i := 0; i < ringCapacity+20; i++ {
				s.LogInfo("tick")
			}
			So(len(s.GetRecent(ringCapacity+20)), ShouldEqual, ringCapacity)
		})

		Convey("Clear empties the ring", func() {
			s.LogInfo("tick")
			s.Clear()
			So(len(s.GetRecent(10)), ShouldEqual, 0)
		})

		Convey("LogCollision tags both vehicle ids", func() {
			e := s.LogCollision("A", "B")
			So(e.Actor, ShouldEqual, "A+B")
			So(e.Action, ShouldEqual, "COLLISION")
		})

		Convey("a durable writer receives a mirror on each append", func() {
			var buf bytes.Buffer
			s2 := New(WithWriter(&buf))
			s2.LogInfo("hello")
			So(buf.Len(), ShouldBeGreaterThan, 0)
		})
	})
}
