package board_test

import (
	"testing"

	"stageline/internal/board"
	"stageline/internal/domain"
	"stageline/internal/stage"
)

func entry(id int64, name string, s stage.Stage, added, updated string) domain.PipelineEntry {
	return domain.PipelineEntry{ID: id, AttorneyName: name, Stage: s, AddedAt: added, UpdatedAt: updated}
}

func ids(entries []domain.PipelineEntry) []int64 {
	out := make([]int64, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func equalIDs(t *testing.T, got []domain.PipelineEntry, want ...int64) {
	t.Helper()
	g := ids(got)
	if len(g) != len(want) {
		t.Fatalf("expected ids %v, got %v", want, g)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("expected ids %v, got %v", want, g)
		}
	}
}

func TestGroupByStageHidesEmptyClosedColumns(t *testing.T) {
	entries := []domain.PipelineEntry{
		entry(1, "Ann", stage.Identified, "", ""),
		entry(2, "Bob", stage.Withdrawn, "", ""),
	}
	groups := board.GroupByStage(entries, domain.Filter{})
	if len(groups) != 13 {
		t.Fatalf("expected 13 keys, got %d", len(groups))
	}
	if _, ok := groups[stage.Rejected]; ok {
		t.Fatalf("empty Rejected should be hidden without a job filter")
	}
	if _, ok := groups[stage.OnHold]; ok {
		t.Fatalf("empty On Hold should be hidden without a job filter")
	}
	if len(groups[stage.Withdrawn]) != 1 {
		t.Fatalf("non-empty Withdrawn must be kept")
	}
	if got, ok := groups[stage.Contacted]; !ok || got == nil || len(got) != 0 {
		t.Fatalf("empty open stage should map to an empty slice, got %v (present=%v)", got, ok)
	}
}

func TestGroupByStageKeepsAllColumnsForSingleJob(t *testing.T) {
	groups := board.GroupByStage(nil, domain.Filter{JobID: 42})
	if len(groups) != 15 {
		t.Fatalf("expected all 15 stages with a job filter, got %d", len(groups))
	}
	for _, s := range stage.Ordered() {
		if _, ok := groups[s]; !ok {
			t.Fatalf("missing stage %s", s)
		}
	}
	// employer or search filters do not count as a single job
	groups = board.GroupByStage(nil, domain.Filter{EmployerID: 7, Search: "ann"})
	if len(groups) != 12 {
		t.Fatalf("expected 12 stages, got %d", len(groups))
	}
}

func TestSortAlphaIsStable(t *testing.T) {
	entries := []domain.PipelineEntry{
		entry(1, "bob", stage.Identified, "", ""),
		entry(2, "Alice", stage.Identified, "", ""),
		entry(3, "Bob", stage.Identified, "", ""),
		entry(4, "alice", stage.Identified, "", ""),
	}
	sorted := board.Sort(entries, board.SortAlpha)
	equalIDs(t, sorted, 2, 4, 1, 3)
	equalIDs(t, entries, 1, 2, 3, 4)
}

func TestSortByTimestamp(t *testing.T) {
	entries := []domain.PipelineEntry{
		entry(1, "A", stage.Identified, "2024-01-01T00:00:00Z", ""),
		entry(2, "B", stage.Identified, "", ""),
		entry(3, "C", stage.Identified, "2024-01-01T00:00:00Z", "2024-03-01T00:00:00Z"),
		entry(4, "D", stage.Identified, "2024-02-01T00:00:00Z", ""),
	}
	equalIDs(t, board.Sort(entries, board.SortNewest), 3, 4, 1, 2)
	equalIDs(t, board.Sort(entries, board.SortOldest), 1, 4, 3, 2)
	// unknown modes fall back to newest
	equalIDs(t, board.Sort(entries, ""), 3, 4, 1, 2)
}

func TestViewStateColumns(t *testing.T) {
	v := board.ViewState{Sort: board.SortAlpha}.ReplaceAll([]domain.PipelineEntry{
		entry(1, "Zed", stage.Contacted, "", ""),
		entry(2, "amy", stage.Contacted, "", ""),
		entry(3, "Kim", stage.Placed, "", ""),
	})
	cols := v.Columns()
	if len(cols) != 12 {
		t.Fatalf("expected 12 columns, got %d", len(cols))
	}
	if cols[0].Stage != stage.Identified || cols[1].Stage != stage.Contacted {
		t.Fatalf("columns out of order: %s, %s", cols[0].Stage, cols[1].Stage)
	}
	equalIDs(t, cols[1].Entries, 2, 1)
	if cols[11].Stage != stage.Placed || cols[11].Theme != stage.ThemeOffer {
		t.Fatalf("unexpected last column %+v", cols[11])
	}
}

func TestStoreReplaceAllCopies(t *testing.T) {
	s := board.NewStore(domain.Filter{JobID: 42}, "")
	in := []domain.PipelineEntry{entry(1, "Ann", stage.Identified, "", "")}
	s.ReplaceAll(in)
	in[0].Stage = stage.Placed

	snap := s.Snapshot()
	if snap.Sort != board.SortNewest {
		t.Fatalf("expected default sort newest, got %s", snap.Sort)
	}
	if snap.Entries[0].Stage != stage.Identified {
		t.Fatalf("store must not alias caller slice")
	}
	snap.Entries[0].Stage = stage.Rejected
	got, ok := s.Find(1)
	if !ok || got.Stage != stage.Identified {
		t.Fatalf("snapshot must not alias store state, got %+v", got)
	}
	if _, ok := s.Find(99); ok {
		t.Fatalf("unexpected entry 99")
	}
}

func TestParseSortMode(t *testing.T) {
	for in, want := range map[string]board.SortMode{"": board.SortNewest, "Oldest": board.SortOldest, "alpha": board.SortAlpha} {
		got, err := board.ParseSortMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseSortMode(%q) = %s, %v", in, got, err)
		}
	}
	if _, err := board.ParseSortMode("random"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
