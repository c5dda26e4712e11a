package board

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"stageline/internal/domain"
	"stageline/internal/stage"
)

// SortMode orders cards inside a column.
type SortMode string

const (
	SortNewest SortMode = "newest"
	SortOldest SortMode = "oldest"
	SortAlpha  SortMode = "alpha"
)

func ParseSortMode(s string) (SortMode, error) {
	switch SortMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortNewest:
		return SortNewest, nil
	case SortOldest:
		return SortOldest, nil
	case SortAlpha:
		return SortAlpha, nil
	default:
		return "", fmt.Errorf("invalid sort mode %q (want newest, oldest or alpha)", s)
	}
}

// ViewState is everything the board needs to lay itself out.
type ViewState struct {
	Entries []domain.PipelineEntry
	Filter  domain.Filter
	Sort    SortMode
}

// ReplaceAll returns v with its entry set swapped for a copy of entries.
func (v ViewState) ReplaceAll(entries []domain.PipelineEntry) ViewState {
	v.Entries = clone(entries)
	return v
}

// Column is one stage of the laid out board.
type Column struct {
	Stage   stage.Stage
	Theme   stage.Theme
	Entries []domain.PipelineEntry
}

// Columns sorts the entries and groups them in board order.
func (v ViewState) Columns() []Column {
	groups := GroupByStage(Sort(v.Entries, v.Sort), v.Filter)
	var cols []Column
	for _, s := range stage.Ordered() {
		entries, ok := groups[s]
		if !ok {
			continue
		}
		cols = append(cols, Column{Stage: s, Theme: s.Theme(), Entries: entries})
	}
	return cols
}

// GroupByStage keys every stage, with an empty slice when it has no entries.
// Rejected, Withdrawn and On Hold are left out when empty unless the filter
// is scoped to a single job. Entries with an unknown stage are dropped.
func GroupByStage(entries []domain.PipelineEntry, filter domain.Filter) map[stage.Stage][]domain.PipelineEntry {
	groups := make(map[stage.Stage][]domain.PipelineEntry, len(stage.Ordered()))
	for _, s := range stage.Ordered() {
		groups[s] = []domain.PipelineEntry{}
	}
	for _, e := range entries {
		if _, ok := groups[e.Stage]; !ok {
			continue
		}
		groups[e.Stage] = append(groups[e.Stage], e)
	}
	if !filter.SingleJob() {
		for _, s := range stage.Ordered() {
			if stage.HiddenWhenEmpty(s) && len(groups[s]) == 0 {
				delete(groups, s)
			}
		}
	}
	return groups
}

// Sort returns a sorted copy of entries. Entries without a usable timestamp
// go last in both newest and oldest order.
func Sort(entries []domain.PipelineEntry, mode SortMode) []domain.PipelineEntry {
	out := clone(entries)
	switch mode {
	case SortAlpha:
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].AttorneyName) < strings.ToLower(out[j].AttorneyName)
		})
	case SortOldest:
		sortByTime(out, false)
	default:
		sortByTime(out, true)
	}
	return out
}

func sortByTime(entries []domain.PipelineEntry, desc bool) {
	sort.SliceStable(entries, func(i, j int) bool {
		ti, iok := entries[i].LastTouched()
		tj, jok := entries[j].LastTouched()
		switch {
		case !iok || !jok:
			return iok && !jok
		case desc:
			return ti.After(tj)
		default:
			return ti.Before(tj)
		}
	})
}

func clone(entries []domain.PipelineEntry) []domain.PipelineEntry {
	out := make([]domain.PipelineEntry, len(entries))
	copy(out, entries)
	return out
}

// Store holds the client visible ViewState. ReplaceAll is the only way the
// entry set changes.
type Store struct {
	mu    sync.RWMutex
	state ViewState
}

func NewStore(filter domain.Filter, mode SortMode) *Store {
	if mode == "" {
		mode = SortNewest
	}
	return &Store{state: ViewState{Filter: filter, Sort: mode}}
}

func (s *Store) ReplaceAll(entries []domain.PipelineEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = s.state.ReplaceAll(entries)
}

// Snapshot returns a copy that is safe to read without the lock.
func (s *Store) Snapshot() ViewState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ReplaceAll(s.state.Entries)
}

func (s *Store) Filter() domain.Filter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Filter
}

func (s *Store) SetFilter(f domain.Filter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Filter = f
}

func (s *Store) SetSort(mode SortMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Sort = mode
}

// Find looks up an entry in the current set.
func (s *Store) Find(id int64) (domain.PipelineEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.state.Entries {
		if e.ID == id {
			return e, true
		}
	}
	return domain.PipelineEntry{}, false
}
