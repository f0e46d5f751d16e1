package stride_test

import (
	"math"
	"testing"

	"github.com/okian/turf/internal/domain/stride"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFixed_Steps(t *testing.T) {
	Convey("Given the default stride estimator", t, func() {
		est := stride.New()
		So(est.Length(), ShouldEqual, stride.DefaultLength)

		Convey("Zero distance is zero steps", func() {
			So(est.Steps(0), ShouldEqual, 0)
		})

		Convey("100 m is 128 steps", func() {
			So(est.Steps(100), ShouldEqual, 128)
		})

		Convey("Halves round away from zero", func() {
			So(est.Steps(0.39), ShouldEqual, 1)
			So(est.Steps(0.38), ShouldEqual, 0)
		})

		Convey("Invalid distances yield zero", func() {
			So(est.Steps(-10), ShouldEqual, 0)
			So(est.Steps(math.NaN()), ShouldEqual, 0)
			So(est.Steps(math.Inf(1)), ShouldEqual, 0)
		})
	})

	Convey("Given a custom stride", t, func() {
		So(stride.New(stride.WithLength(1)).Steps(10.4), ShouldEqual, 10)
		So(stride.New(stride.WithLength(-1)).Length(), ShouldEqual, stride.DefaultLength)
	})
}
