package app_test

import (
	"context"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"stageline/internal/app"
	"stageline/internal/board"
	"stageline/internal/config"
	"stageline/internal/domain"
	"stageline/internal/logging"
	"stageline/internal/server"
	"stageline/internal/stage"
	"stageline/internal/transition"
)

const catalogYAML = `board:
  sort: alpha
  activity_page_size: 2
catalog:
  employers:
    - id: 1
      name: Acme LLP
  jobs:
    - id: 42
      employer_id: 1
      title: Litigation Associate
`

func TestServiceAndBoardWiring(t *testing.T) {
	Convey("Given a workspace with a catalog", t, func() {
		ctx := context.Background()
		cfg, err := config.FromYAML([]byte(catalogYAML))
		So(err, ShouldBeNil)
		svc, err := app.OpenService(ctx, t.TempDir(), cfg, logging.Discard())
		So(err, ShouldBeNil)
		Reset(func() { svc.DB.Close() })

		handler, err := server.New(server.Config{Service: svc, Metrics: app.NewMetrics(svc), Logger: logging.Discard()})
		So(err, ShouldBeNil)
		ts := httptest.NewServer(handler)
		Reset(ts.Close)

		b, err := app.NewBoard(cfg, ts.URL, domain.Filter{JobID: 42}, logging.Discard())
		So(err, ShouldBeNil)

		Convey("The board reads the sort mode and the synced catalog", func() {
			So(b.Store.Snapshot().Sort, ShouldEqual, board.SortAlpha)
			sum := b.Engine.AddCandidates(ctx, domain.AddRequest{
				JobID: 42,
				Candidates: []domain.Candidate{
					{AttorneyID: "a-1", Name: "Zed Ortiz"},
					{AttorneyID: "a-2", Name: "Ada Park"},
					{AttorneyID: "a-3", Name: "Bo Chen"},
				},
				Stage: stage.Contacted,
			})
			So(sum.Err, ShouldBeNil)
			So(sum.Message, ShouldEqual, "3 candidates added to pipeline")

			cols := b.Store.Snapshot().Columns()
			var contacted []string
			for _, c := range cols {
				if c.Stage == stage.Contacted {
					for _, e := range c.Entries {
						contacted = append(contacted, e.AttorneyName)
					}
				}
			}
			So(contacted, ShouldResemble, []string{"Ada Park", "Bo Chen", "Zed Ortiz"})

			Convey("and the feed pages through history", func() {
				So(b.Feed.Load(ctx), ShouldBeNil)
				So(len(b.Feed.Lines()), ShouldEqual, 2)
				So(b.Feed.HasMore(), ShouldBeTrue)
				So(b.Feed.More(ctx), ShouldBeNil)
				So(len(b.Feed.Lines()), ShouldEqual, 3)
				So(b.Feed.HasMore(), ShouldBeFalse)
			})

			Convey("and a gated move can be cancelled", func() {
				e, ok := b.Store.Find(sum.Results[0].ID)
				So(ok, ShouldBeTrue)
				res := b.Engine.RequestMove(ctx, e.ID, e.Stage, stage.Rejected)
				So(res.Outcome, ShouldEqual, transition.OutcomeGated)
				So(res.Pending.Prompt.Label, ShouldEqual, "Reason (optional)")
				res = b.Engine.Cancel(ctx)
				So(res.Outcome, ShouldEqual, transition.OutcomeCancelled)
				after, _ := b.Store.Find(e.ID)
				So(after.Stage, ShouldEqual, stage.Contacted)
			})
		})
	})
}
