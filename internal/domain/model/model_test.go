package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/turf/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestWindowRange(t *testing.T) {
	Convey("Given a fixed instant", t, func() {
		now := time.Date(2024, time.March, 10, 15, 30, 0, 0, time.UTC)

		Convey("Daily spans the calendar day", func() {
			from, to := model.WindowDaily.Range(now, time.UTC)
			So(from, ShouldEqual, time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC))
			So(to, ShouldEqual, time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC))
		})

		Convey("Daily follows the configured location", func() {
			loc := time.FixedZone("UTC+10", 10*3600)
			from, _ := model.WindowDaily.Range(now, loc)
			So(from.Equal(time.Date(2024, time.March, 11, 0, 0, 0, 0, loc)), ShouldBeTrue)
		})

		Convey("Weekly is the trailing seven days", func() {
			from, to := model.WindowWeekly.Range(now, time.UTC)
			So(to, ShouldEqual, now)
			So(to.Sub(from), ShouldEqual, 7*24*time.Hour)
		})

		Convey("All-time starts in 2020", func() {
			from, to := model.WindowAllTime.Range(now, nil)
			So(from, ShouldEqual, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
			So(to, ShouldEqual, now)
		})

		Convey("Bounds are inclusive", func() {
			from, to := model.WindowWeekly.Range(now, time.UTC)
			So(model.Contains(from, to, from), ShouldBeTrue)
			So(model.Contains(from, to, to), ShouldBeTrue)
			So(model.Contains(from, to, to.Add(time.Nanosecond)), ShouldBeFalse)
		})
	})
}

func TestParseWindow(t *testing.T) {
	Convey("ParseWindow", t, func() {
		for in, want := range map[string]model.Window{
			"daily": model.WindowDaily, "WEEKLY": model.WindowWeekly,
			"all-time": model.WindowAllTime, "alltime": model.WindowAllTime,
		} {
			got, err := model.ParseWindow(in)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, want)
		}

		_, err := model.ParseWindow("monthly")
		So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
	})
}

func TestRunClone(t *testing.T) {
	Convey("Given a run with points and a territory", t, func() {
		end := time.Now()
		hint := 12
		run := model.Run{
			ID:        "r1",
			EndTime:   &end,
			Points:    []model.RunPoint{{Location: model.At(1, 2), ReportedSteps: &hint}},
			Territory: []model.Coordinate{{X: 1, Y: 1}},
		}

		Convey("Mutating the clone leaves the original untouched", func() {
			c := run.Clone()
			c.Points[0].Location = model.At(9, 9)
			*c.Points[0].ReportedSteps = 99
			c.Territory[0].X = 5
			*c.EndTime = end.Add(time.Hour)

			So(run.Points[0].Location, ShouldResemble, model.At(1, 2))
			So(*run.Points[0].ReportedSteps, ShouldEqual, 12)
			So(run.Territory[0].X, ShouldEqual, 1)
			So(run.EndTime.Equal(end), ShouldBeTrue)
		})

		Convey("Path keeps insertion order with swapped axes", func() {
			p := run.Path()
			So(p, ShouldHaveLength, 1)
			So(p[0].Lat(), ShouldEqual, 1)
			So(p[0].Lon(), ShouldEqual, 2)
		})

		Convey("Open states", func() {
			So(model.StateActive.IsOpen(), ShouldBeTrue)
			So(model.StatePaused.IsOpen(), ShouldBeTrue)
			So(model.StateEnded.IsOpen(), ShouldBeFalse)
		})
	})
}
