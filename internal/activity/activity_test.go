package activity_test

import (
	"context"
	"errors"
	"testing"

	"stageline/internal/activity"
	"stageline/internal/domain"
	"stageline/internal/stage"
)

func from(s stage.Stage) *stage.Stage { return &s }

func TestRender(t *testing.T) {
	base := domain.ActivityRecord{AttorneyName: "Dana Reyes", JobTitle: "Litigation Associate", EmployerName: "Acme LLP"}
	cases := []struct {
		name string
		mod  func(r *domain.ActivityRecord)
		kind activity.Kind
		text string
	}{
		{
			name: "created",
			mod:  func(r *domain.ActivityRecord) { r.ToStage = stage.Identified; r.Note = "Added to pipeline" },
			kind: activity.KindAdded,
			text: `Dana Reyes added to Litigation Associate at Acme LLP - "Added to pipeline"`,
		},
		{
			name: "placed",
			mod:  func(r *domain.ActivityRecord) { r.FromStage = from(stage.OfferAccepted); r.ToStage = stage.Placed },
			kind: activity.KindPlaced,
			text: "Dana Reyes placed at Litigation Associate at Acme LLP",
		},
		{
			name: "rejected",
			mod: func(r *domain.ActivityRecord) {
				r.FromStage = from(stage.Interview1)
				r.ToStage = stage.Rejected
				r.Note = "Not enough trial work"
			},
			kind: activity.KindClosed,
			text: `Dana Reyes rejected for Litigation Associate - "Not enough trial work"`,
		},
		{
			name: "withdrawn without employer",
			mod: func(r *domain.ActivityRecord) {
				r.EmployerName = ""
				r.FromStage = from(stage.Contacted)
				r.ToStage = stage.Withdrawn
			},
			kind: activity.KindClosed,
			text: "Dana Reyes withdrawn for Litigation Associate",
		},
		{
			name: "moved",
			mod:  func(r *domain.ActivityRecord) { r.FromStage = from(stage.Contacted); r.ToStage = stage.PhoneScreen; r.Note = "  " },
			kind: activity.KindMoved,
			text: "Dana Reyes moved from Contacted to Phone Screen for Litigation Associate at Acme LLP",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := base
			tc.mod(&r)
			line := activity.Render(r)
			if line.Kind != tc.kind {
				t.Fatalf("kind: expected %s, got %s", tc.kind, line.Kind)
			}
			if line.Text != tc.text {
				t.Fatalf("text:\nexpected %s\ngot      %s", tc.text, line.Text)
			}
			if line.Icon == "" {
				t.Fatalf("expected an icon")
			}
		})
	}
}

type pagedSource struct {
	records []domain.ActivityRecord
	calls   [][2]int
	err     error
}

func (s *pagedSource) Activity(_ context.Context, limit, offset int) (activity.Page, error) {
	s.calls = append(s.calls, [2]int{limit, offset})
	if s.err != nil {
		return activity.Page{}, s.err
	}
	end := offset + limit
	if end > len(s.records) {
		end = len(s.records)
	}
	if offset > end {
		offset = end
	}
	return activity.Page{Records: s.records[offset:end], Total: len(s.records)}, nil
}

func TestFeedPaging(t *testing.T) {
	src := &pagedSource{}
	for i := 0; i < 5; i++ {
		src.records = append(src.records, domain.ActivityRecord{ID: int64(5 - i), AttorneyName: "C", JobTitle: "J", ToStage: stage.Identified})
	}
	feed := activity.NewFeed(src, 2)
	ctx := context.Background()
	if err := feed.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(feed.Lines()) != 2 || !feed.HasMore() || feed.Total() != 5 {
		t.Fatalf("unexpected first page: %d lines, more=%v", len(feed.Lines()), feed.HasMore())
	}
	for feed.HasMore() {
		if err := feed.More(ctx); err != nil {
			t.Fatalf("more: %v", err)
		}
	}
	if len(feed.Lines()) != 5 {
		t.Fatalf("expected 5 lines, got %d", len(feed.Lines()))
	}
	want := [][2]int{{2, 0}, {2, 2}, {2, 4}}
	if len(src.calls) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, src.calls)
	}
	for i := range want {
		if src.calls[i] != want[i] {
			t.Fatalf("expected calls %v, got %v", want, src.calls)
		}
	}
	if err := feed.More(ctx); err != nil || len(src.calls) != 3 {
		t.Fatalf("More after the last page should not fetch")
	}

	// reload starts over
	if err := feed.Load(ctx); err != nil || len(feed.Lines()) != 2 {
		t.Fatalf("reload: %v, %d lines", err, len(feed.Lines()))
	}
}

func TestFeedKeepsLinesOnError(t *testing.T) {
	src := &pagedSource{records: []domain.ActivityRecord{{AttorneyName: "A", ToStage: stage.Identified}, {AttorneyName: "B", ToStage: stage.Identified}}}
	feed := activity.NewFeed(src, 1)
	if err := feed.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	src.err = errors.New("boom")
	if err := feed.More(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if len(feed.Lines()) != 1 || !feed.HasMore() {
		t.Fatalf("failed page must not change the feed")
	}
}
