package stage_test

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"stageline/internal/stage"
)

func TestRegistry(t *testing.T) {
	Convey("Given the stage registry", t, func() {
		all := stage.Ordered()

		Convey("It lists fifteen stages in board order", func() {
			So(len(all), ShouldEqual, 15)
			So(all[0], ShouldEqual, stage.Identified)
			So(all[3], ShouldEqual, stage.PhoneScreen)
			So(all[11], ShouldEqual, stage.Placed)
			So(all[14], ShouldEqual, stage.OnHold)
			for i, s := range all {
				So(stage.Index(s), ShouldEqual, i)
				So(s.Valid(), ShouldBeTrue)
			}
		})

		Convey("Ordered returns a copy", func() {
			all[0] = stage.Placed
			So(stage.Ordered()[0], ShouldEqual, stage.Identified)
		})

		Convey("Only closing, offer and placement stages are gated", func() {
			gated := map[stage.Stage]bool{
				stage.Rejected:      true,
				stage.Withdrawn:     true,
				stage.OfferExtended: true,
				stage.Placed:        true,
			}
			count := 0
			for _, s := range stage.Ordered() {
				So(stage.RequiresGate(s), ShouldEqual, gated[s])
				if !stage.RequiresGate(s) {
					count++
				}
			}
			So(count, ShouldEqual, 11)
		})

		Convey("Themes follow the stage families", func() {
			So(stage.Classify(stage.Contacted), ShouldEqual, stage.ThemeEarly)
			So(stage.Classify(stage.SubmittedToClient), ShouldEqual, stage.ThemeInterview)
			So(stage.Classify(stage.ReferenceCheck), ShouldEqual, stage.ThemeOffer)
			So(stage.Classify(stage.Placed), ShouldEqual, stage.ThemeOffer)
			So(stage.Classify(stage.Withdrawn), ShouldEqual, stage.ThemeClosedNegative)
			So(stage.OnHold.Theme(), ShouldEqual, stage.ThemeHold)
		})

		Convey("Interview stages are the five screening and interview steps", func() {
			So(stage.IsInterview(stage.PhoneScreen), ShouldBeTrue)
			So(stage.IsInterview(stage.FinalInterview), ShouldBeTrue)
			So(stage.IsInterview(stage.ReferenceCheck), ShouldBeFalse)
			So(stage.IsInterview(stage.Responded), ShouldBeFalse)
		})
	})
}

func TestParse(t *testing.T) {
	Convey("Parse accepts wire and compact spellings", t, func() {
		for _, in := range []string{"Phone Screen", "PhoneScreen", "phone-screen", "phone_screen"} {
			s, err := stage.Parse(in)
			So(err, ShouldBeNil)
			So(s, ShouldEqual, stage.PhoneScreen)
		}
		s, err := stage.Parse("interview 1")
		So(err, ShouldBeNil)
		So(s, ShouldEqual, stage.Interview1)

		Convey("And rejects unknown names", func() {
			_, err := stage.Parse("Hired")
			So(errors.Is(err, stage.ErrUnknownStage), ShouldBeTrue)
			_, err = stage.Parse("  ")
			So(errors.Is(err, stage.ErrUnknownStage), ShouldBeTrue)
		})
	})
}

func TestPrompt(t *testing.T) {
	Convey("Gated stages describe their note step", t, func() {
		p := stage.PromptFor(stage.Rejected)
		So(p.Label, ShouldEqual, "Reason (optional)")
		So(p.Placeholder, ShouldEqual, "Why is this candidate being rejected?")
		So(p.StartDate, ShouldBeFalse)

		So(stage.PromptFor(stage.Withdrawn).Placeholder, ShouldEqual, "Why is this candidate being withdrawn?")
		So(stage.PromptFor(stage.OfferExtended).Label, ShouldEqual, "Offer Details (optional)")

		placed := stage.PromptFor(stage.Placed)
		So(placed.Label, ShouldEqual, "Notes (optional)")
		So(placed.StartDate, ShouldBeTrue)
	})

	Convey("ComposeNote appends the start date for placements only", t, func() {
		So(stage.ComposeNote(stage.Placed, "Great fit", "2024-03-01"), ShouldEqual, "Great fit | Start date: 2024-03-01")
		So(stage.ComposeNote(stage.Placed, "", "2024-03-01"), ShouldEqual, "Start date: 2024-03-01")
		So(stage.ComposeNote(stage.Placed, "Great fit", ""), ShouldEqual, "Great fit")
		So(stage.ComposeNote(stage.Rejected, "No", "2024-03-01"), ShouldEqual, "No")
	})
}
