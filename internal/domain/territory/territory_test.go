package territory_test

import (
	"testing"

	"github.com/okian/turf/internal/domain/model"
	"github.com/okian/turf/internal/domain/territory"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDerive(t *testing.T) {
	Convey("Given a run path", t, func() {
		Convey("Fewer than three points claim nothing", func() {
			ring, ok := territory.Derive([]model.Coordinate{model.At(0, 0), model.At(1, 1)})
			So(ok, ShouldBeFalse)
			So(ring, ShouldBeNil)

			_, ok = territory.Derive(nil)
			So(ok, ShouldBeFalse)
		})

		Convey("Three points give the padded bounding box", func() {
			path := []model.Coordinate{{X: 0, Y: 0}, {X: 0.002, Y: 0}, {X: 0.002, Y: 0.002}}
			ring, ok := territory.Derive(path)
			So(ok, ShouldBeTrue)
			So(ring, ShouldHaveLength, 5)
			So(ring[0], ShouldResemble, ring[4])

			So(ring[0].X, ShouldAlmostEqual, -0.001, 1e-12)
			So(ring[0].Y, ShouldAlmostEqual, -0.001, 1e-12)
			So(ring[1].X, ShouldAlmostEqual, 0.003, 1e-12)
			So(ring[1].Y, ShouldAlmostEqual, -0.001, 1e-12)
			So(ring[2].X, ShouldAlmostEqual, 0.003, 1e-12)
			So(ring[2].Y, ShouldAlmostEqual, 0.003, 1e-12)
			So(ring[3].X, ShouldAlmostEqual, -0.001, 1e-12)
			So(ring[3].Y, ShouldAlmostEqual, 0.003, 1e-12)
		})

		Convey("Every path point lies inside the ring", func() {
			path := []model.Coordinate{model.At(52.5, 13.4), model.At(52.51, 13.39), model.At(52.49, 13.41), model.At(52.5, 13.4)}
			ring, ok := territory.Derive(path)
			So(ok, ShouldBeTrue)
			for _, p := range path {
				So(p.X, ShouldBeGreaterThan, ring[0].X)
				So(p.X, ShouldBeLessThan, ring[2].X)
				So(p.Y, ShouldBeGreaterThan, ring[0].Y)
				So(p.Y, ShouldBeLessThan, ring[2].Y)
			}
		})

		Convey("A stationary run still claims a buffer-sized box", func() {
			same := model.At(10, 10)
			ring, ok := territory.Derive([]model.Coordinate{same, same, same}, territory.WithBuffer(0.01))
			So(ok, ShouldBeTrue)
			So(ring[2].X-ring[0].X, ShouldAlmostEqual, 0.02, 1e-12)
		})
	})
}

func TestAreaSquareMeters(t *testing.T) {
	Convey("The area of a 0.002 degree square", t, func() {
		ring, _ := territory.Derive([]model.Coordinate{{X: 0.001, Y: 0.001}, {X: 0.001, Y: 0.001}, {X: 0.001, Y: 0.001}})
		So(territory.AreaSquareMeters(ring), ShouldAlmostEqual, 0.002*0.002*111_000*111_000, 1e-3)
		So(territory.AreaSquareMeters(nil), ShouldEqual, 0)
	})
}
