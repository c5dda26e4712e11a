package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"stageline/internal/domain"
	"stageline/internal/history"
	"stageline/internal/repo"
	"stageline/internal/stage"
	"stageline/internal/stats"
)

// ErrInvalid marks a request the caller has to fix.
var ErrInvalid = errors.New("invalid request")

// Service is the persistence side of the pipeline API. Every mutation runs
// in one transaction together with its history line.
type Service struct {
	DB      *sql.DB
	Repo    repo.Repo
	History history.Writer
	Now     func() time.Time
	Logger  *slog.Logger
}

func New(db *sql.DB) Service {
	return Service{
		DB:      db,
		Repo:    repo.Repo{DB: db},
		History: history.Writer{},
		Now:     time.Now,
		Logger:  slog.Default(),
	}
}

func (s Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s Service) stamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func (s Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s Service) begin(ctx context.Context) (*sql.Tx, history.Writer, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	w := s.History
	if w.Now == nil {
		w.Now = s.now
	}
	return tx, w, err
}

// List is the read path of the board.
func (s Service) List(ctx context.Context, f domain.Filter) ([]domain.PipelineEntry, error) {
	if f.Stage != "" && !f.Stage.Valid() {
		return nil, fmt.Errorf("%w: %q", stage.ErrUnknownStage, string(f.Stage))
	}
	return s.Repo.ListEntries(ctx, f)
}

func (s Service) Get(ctx context.Context, id int64) (domain.PipelineEntry, error) {
	return s.Repo.GetEntry(ctx, s.DB, id)
}

// Add puts candidates on one job's pipeline. Candidates already on it are
// reported as exists with their current stage.
func (s Service) Add(ctx context.Context, req domain.AddRequest) ([]domain.AddResult, error) {
	if req.JobID == 0 {
		return nil, fmt.Errorf("%w: job_id is required", ErrInvalid)
	}
	if len(req.Candidates) == 0 {
		return nil, fmt.Errorf("%w: candidates are required", ErrInvalid)
	}
	initial := req.Stage
	if initial == "" {
		initial = stage.Identified
	}
	if !initial.Valid() {
		return nil, fmt.Errorf("%w: %q", stage.ErrUnknownStage, string(initial))
	}
	if req.PlacementFee != nil && *req.PlacementFee < 0 {
		return nil, fmt.Errorf("%w: placement_fee must not be negative", ErrInvalid)
	}
	addedBy := strings.TrimSpace(req.AddedBy)
	if addedBy == "" {
		addedBy = "Admin"
	}

	tx, hw, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := s.Repo.GetJob(ctx, tx, req.JobID); err != nil {
		return nil, fmt.Errorf("job %d: %w", req.JobID, err)
	}
	ts := s.stamp()
	results := make([]domain.AddResult, 0, len(req.Candidates))
	for i, c := range req.Candidates {
		if strings.TrimSpace(c.AttorneyID) == "" {
			return nil, fmt.Errorf("%w: candidates[%d].attorney_id is required", ErrInvalid, i)
		}
		source := c.Source
		if source == "" {
			source = domain.SourceFP
		}
		if source != domain.SourceFP && source != domain.SourceCustom {
			return nil, fmt.Errorf("%w: candidates[%d].source must be fp or custom", ErrInvalid, i)
		}
		existing, err := s.Repo.FindEntry(ctx, tx, req.JobID, c.AttorneyID, source)
		switch {
		case err == nil:
			results = append(results, domain.AddResult{Status: domain.AddStatusExists, ID: existing.ID, AttorneyID: c.AttorneyID, Name: c.Name, Stage: existing.Stage})
			continue
		case !errors.Is(err, repo.ErrNotFound):
			return nil, err
		}
		id, err := s.Repo.InsertEntry(ctx, tx, domain.PipelineEntry{
			JobID:          req.JobID,
			AttorneyID:     c.AttorneyID,
			AttorneySource: source,
			AttorneyName:   c.Name,
			AttorneyFirm:   c.CurrentFirm,
			AttorneyEmail:  c.Email,
			Stage:          initial,
			Notes:          req.Notes,
			PlacementFee:   req.PlacementFee,
			AddedBy:        addedBy,
			AddedAt:        ts,
			UpdatedAt:      ts,
		})
		if err != nil {
			return nil, err
		}
		if _, err := hw.Append(ctx, tx, history.Created(id, initial, addedBy)); err != nil {
			return nil, err
		}
		results = append(results, domain.AddResult{Status: domain.AddStatusAdded, ID: id, AttorneyID: c.AttorneyID, Name: c.Name, Stage: initial})
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	s.logger().Info("pipeline entries added", "job_id", req.JobID, "requested", len(req.Candidates), "results", len(results))
	return results, nil
}

// Move changes an entry's stage and records the transition. Moving to the
// current stage succeeds without writing anything. Notes are left as they
// are, including when an entry leaves a closed stage.
func (s Service) Move(ctx context.Context, id int64, to stage.Stage, note, changedBy string) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", stage.ErrUnknownStage, string(to))
	}
	if changedBy == "" {
		changedBy = "Admin"
	}
	tx, hw, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	current, err := s.Repo.GetEntry(ctx, tx, id)
	if err != nil {
		return fmt.Errorf("pipeline entry %d: %w", id, err)
	}
	if current.Stage == to {
		return nil
	}
	if err := s.Repo.UpdateStage(ctx, tx, id, to, s.stamp()); err != nil {
		return err
	}
	if _, err := hw.Append(ctx, tx, history.Moved(id, current.Stage, to, note, changedBy)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.logger().Info("pipeline stage moved", "entry_id", id, "from", current.Stage, "to", to)
	return nil
}

func (s Service) SetNotes(ctx context.Context, id int64, notes string) error {
	if err := s.Repo.UpdateNotes(ctx, s.DB, id, notes, s.stamp()); err != nil {
		return fmt.Errorf("pipeline entry %d: %w", id, err)
	}
	return nil
}

func (s Service) SetFee(ctx context.Context, id int64, fee float64) error {
	if fee < 0 {
		return fmt.Errorf("%w: placement_fee must not be negative", ErrInvalid)
	}
	if err := s.Repo.UpdateFee(ctx, s.DB, id, fee, s.stamp()); err != nil {
		return fmt.Errorf("pipeline entry %d: %w", id, err)
	}
	return nil
}

// Remove deletes an entry together with its history.
func (s Service) Remove(ctx context.Context, id int64) error {
	tx, _, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := s.Repo.DeleteEntry(ctx, tx, id); err != nil {
		return fmt.Errorf("pipeline entry %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.logger().Info("pipeline entry removed", "entry_id", id)
	return nil
}

// Activity returns one page of history, newest first.
func (s Service) Activity(ctx context.Context, limit, offset int) ([]domain.ActivityRecord, int, error) {
	if offset < 0 {
		offset = 0
	}
	return s.Repo.ActivityPage(ctx, limit, offset)
}

func (s Service) Check(ctx context.Context, attorneyIDs []string) (map[string][]domain.Placement, error) {
	return s.Repo.PlacementsFor(ctx, attorneyIDs)
}

// Stats summarizes the pipeline, or one job's pipeline when jobID is set.
func (s Service) Stats(ctx context.Context, jobID int64) (stats.Summary, error) {
	entries, err := s.Repo.ListEntries(ctx, domain.Filter{JobID: jobID})
	if err != nil {
		return stats.Summary{}, err
	}
	return stats.Summarize(entries, s.now()), nil
}

// SyncCatalog upserts the employers and jobs entries hang off.
func (s Service) SyncCatalog(ctx context.Context, employers []domain.Employer, jobs []domain.Job) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, e := range employers {
		if err := s.Repo.UpsertEmployer(ctx, tx, e); err != nil {
			return fmt.Errorf("employer %d: %w", e.ID, err)
		}
	}
	for _, j := range jobs {
		if err := s.Repo.UpsertJob(ctx, tx, j); err != nil {
			return fmt.Errorf("job %d: %w", j.ID, err)
		}
	}
	return tx.Commit()
}
