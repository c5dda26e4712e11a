package stats_test

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"stageline/internal/domain"
	"stageline/internal/stage"
	"stageline/internal/stats"
)

func fee(v float64) *float64 { return &v }

func TestAggregation(t *testing.T) {
	Convey("Given a mixed entry set", t, func() {
		entries := []domain.PipelineEntry{
			{ID: 1, JobID: 42, Stage: stage.Identified},
			{ID: 2, JobID: 42, Stage: stage.PhoneScreen},
			{ID: 3, JobID: 42, Stage: stage.Interview2, PlacementFee: fee(0)},
			{ID: 4, JobID: 7, Stage: stage.Placed, PlacementFee: fee(25000), UpdatedAt: "2024-06-10T09:00:00Z"},
			{ID: 5, JobID: 7, Stage: stage.Placed, PlacementFee: fee(12500.5), UpdatedAt: "2024-05-30T09:00:00Z"},
			{ID: 6, JobID: 9, Stage: stage.Rejected},
			{ID: 7, JobID: 9, Stage: stage.SubmittedToClient},
		}

		Convey("Counts are grouped by stage", func() {
			counts := stats.CountByStage(entries)
			So(counts[stage.Placed], ShouldEqual, 2)
			So(counts[stage.Identified], ShouldEqual, 1)
			So(counts[stage.OnHold], ShouldEqual, 0)
		})

		Convey("Total value sums every set fee", func() {
			So(stats.TotalValue(entries), ShouldEqual, 37500.5)
		})

		Convey("Placed count agrees with the stage count", func() {
			So(stats.PlacedCount(entries), ShouldEqual, stats.CountByStage(entries)[stage.Placed])
		})

		Convey("Interview count covers screening through final interview", func() {
			So(stats.InterviewCount(entries), ShouldEqual, 3)
		})

		Convey("Summarize reports this month's placements", func() {
			now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
			s := stats.Summarize(entries, now)
			So(s.TotalCandidates, ShouldEqual, 7)
			So(s.UniqueJobs, ShouldEqual, 3)
			So(s.PlacedCount, ShouldEqual, 2)
			So(s.PlacedThisMonth, ShouldEqual, 1)
			So(s.TotalPipelineValue, ShouldEqual, 37500.5)
		})

		Convey("Results do not depend on earlier calls", func() {
			first := stats.TotalValue(entries)
			entries = entries[:3]
			So(stats.TotalValue(entries), ShouldEqual, 0)
			So(first, ShouldEqual, 37500.5)
		})
	})

	Convey("An empty set aggregates to zero", t, func() {
		s := stats.Summarize(nil, time.Now())
		So(s.TotalCandidates, ShouldEqual, 0)
		So(s.TotalPipelineValue, ShouldEqual, 0)
		So(len(s.StageCounts), ShouldEqual, 0)
	})
}
