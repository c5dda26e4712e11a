package transition

import (
	"context"
	"fmt"

	"stageline/internal/domain"
)

// AddSummary reports a bulk add. Warnings holds one line per candidate that
// was already in the pipeline.
type AddSummary struct {
	Results  []domain.AddResult
	Added    int
	Existing int
	Message  string
	Warnings []string
	Err      error
}

// AddCandidates adds candidates to one job's pipeline and reloads the board.
func (e *Engine) AddCandidates(ctx context.Context, req domain.AddRequest) AddSummary {
	results, err := e.Backend.Add(ctx, req)
	if err != nil {
		e.logger().Warn("bulk add failed", "job_id", req.JobID, "candidates", len(req.Candidates), "error", err)
		e.Reload(ctx)
		e.emit(Event{Kind: EventFailed, Err: err})
		return AddSummary{Err: err}
	}
	sum := SummarizeAdd(results)
	e.Reload(ctx)
	e.emit(Event{Kind: EventBulkAdded, Message: sum.Message})
	return sum
}

// SummarizeAdd builds the toast and per-duplicate warnings for results.
func SummarizeAdd(results []domain.AddResult) AddSummary {
	sum := AddSummary{Results: results}
	for _, r := range results {
		switch r.Status {
		case domain.AddStatusAdded:
			sum.Added++
		case domain.AddStatusExists:
			sum.Existing++
			sum.Warnings = append(sum.Warnings, fmt.Sprintf("%s is already in this pipeline (%s)", r.Name, r.Stage))
		}
	}
	plural := "s"
	if sum.Added == 1 {
		plural = ""
	}
	sum.Message = fmt.Sprintf("%d candidate%s added to pipeline", sum.Added, plural)
	if sum.Existing > 0 {
		sum.Message += fmt.Sprintf(" (%d already in pipeline)", sum.Existing)
	}
	return sum
}
