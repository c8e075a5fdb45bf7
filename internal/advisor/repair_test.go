package advisor

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRepairJSON(t *testing.T) {
	Convey("Given a well-formed response", t, func() {
		So(repairJSON(`{"action":"GO","reason":"clear"}`), ShouldEqual, `{"action":"GO","reason":"clear"}`)
	})

	Convey("Given an empty response", t, func() {
		So(repairJSON(""), ShouldEqual, "{}")
	})

	Convey("Given a response with trailing garbage after a complete object", t, func() {
		repaired := repairJSON(`{"action":"YIELD","reason":"ok"} trailing noise`)
		So(repaired, ShouldEqual, `{"action":"YIELD","reason":"ok"}`)
	})

	Convey("Given a truncated response missing the closing brace and quote", t, func() {
		repaired := repairJSON(`{"action":"BRAKE","reason":"too close`)
		So(repaired, ShouldEqual, `{"action":"BRAKE","reason":"too close"}`)
	})

	Convey("Given unrecoverable garbage", t, func() {
		So(repairJSON("not json at all }}}"), ShouldEqual, "{}")
	})
}
