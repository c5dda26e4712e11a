// Package stats derives dashboard numbers from a pipeline entry set. Every
// function recomputes from its input; nothing is cached between calls.
package stats

import (
	"time"

	"stageline/internal/domain"
	"stageline/internal/stage"
)

// Summary is the dashboard view of one scope (all pipelines, a job or an
// employer).
type Summary struct {
	TotalCandidates    int                 `json:"total_candidates"`
	UniqueJobs         int                 `json:"unique_jobs"`
	StageCounts        map[stage.Stage]int `json:"stage_counts"`
	TotalPipelineValue float64             `json:"total_pipeline_value"`
	InterviewCount     int                 `json:"interview_count"`
	PlacedCount        int                 `json:"placed_count"`
	PlacedThisMonth    int                 `json:"placed_this_month"`
}

func CountByStage(entries []domain.PipelineEntry) map[stage.Stage]int {
	counts := make(map[stage.Stage]int)
	for _, e := range entries {
		counts[e.Stage]++
	}
	return counts
}

// TotalValue sums placement fees over entries that have one.
func TotalValue(entries []domain.PipelineEntry) float64 {
	var total float64
	for _, e := range entries {
		if e.PlacementFee != nil {
			total += *e.PlacementFee
		}
	}
	return total
}

func InterviewCount(entries []domain.PipelineEntry) int {
	n := 0
	for _, e := range entries {
		if stage.IsInterview(e.Stage) {
			n++
		}
	}
	return n
}

func PlacedCount(entries []domain.PipelineEntry) int {
	n := 0
	for _, e := range entries {
		if e.Stage == stage.Placed {
			n++
		}
	}
	return n
}

func UniqueJobs(entries []domain.PipelineEntry) int {
	seen := make(map[int64]struct{})
	for _, e := range entries {
		seen[e.JobID] = struct{}{}
	}
	return len(seen)
}

// PlacedSince counts placements last touched at or after since.
func PlacedSince(entries []domain.PipelineEntry, since time.Time) int {
	n := 0
	for _, e := range entries {
		if e.Stage != stage.Placed {
			continue
		}
		if t, ok := e.LastTouched(); ok && !t.Before(since) {
			n++
		}
	}
	return n
}

// Summarize computes the full dashboard for entries as of now.
func Summarize(entries []domain.PipelineEntry, now time.Time) Summary {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return Summary{
		TotalCandidates:    len(entries),
		UniqueJobs:         UniqueJobs(entries),
		StageCounts:        CountByStage(entries),
		TotalPipelineValue: TotalValue(entries),
		InterviewCount:     InterviewCount(entries),
		PlacedCount:        PlacedCount(entries),
		PlacedThisMonth:    PlacedSince(entries, monthStart),
	}
}
