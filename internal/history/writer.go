// Package history writes the append-only pipeline_history log. Rows are
// written inside the caller's transaction so a stage change and its history
// line commit together.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"stageline/internal/stage"
)

// CreatedNote is recorded on the history line of a new entry.
const CreatedNote = "Added to pipeline"

type Writer struct {
	Now func() time.Time
}

// Change is one history line. A nil From marks the creation of the entry.
type Change struct {
	PipelineID int64
	From       *stage.Stage
	To         stage.Stage
	Note       string
	ChangedBy  string
}

func (w Writer) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

// Append inserts c and returns the new history id.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, c Change) (int64, error) {
	ts := w.now().UTC().Format(time.RFC3339)
	res, err := tx.ExecContext(ctx, `INSERT INTO pipeline_history(pipeline_id,from_stage,to_stage,note,changed_by,changed_at) VALUES (?,?,?,?,?,?)`,
		c.PipelineID, nullableStage(c.From), string(c.To), c.Note, c.ChangedBy, ts)
	if err != nil {
		return 0, fmt.Errorf("append history for entry %d: %w", c.PipelineID, err)
	}
	return res.LastInsertId()
}

// Created is the history line for an entry that just entered a pipeline.
func Created(pipelineID int64, to stage.Stage, by string) Change {
	return Change{PipelineID: pipelineID, To: to, Note: CreatedNote, ChangedBy: by}
}

// Moved is the history line for a stage transition.
func Moved(pipelineID int64, from, to stage.Stage, note, by string) Change {
	return Change{PipelineID: pipelineID, From: &from, To: to, Note: note, ChangedBy: by}
}

func nullableStage(s *stage.Stage) any {
	if s == nil {
		return nil
	}
	return string(*s)
}
