package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"stageline/internal/domain"
	"stageline/internal/stage"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// Queryer is satisfied by *sql.DB and *sql.Tx.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const entryColumns = `p.id,p.attorney_id,p.attorney_source,p.attorney_name,p.attorney_firm,p.attorney_email,
p.job_id,COALESCE(j.title,''),j.employer_id,e.name,p.stage,p.notes,p.placement_fee,p.added_by,p.added_at,p.updated_at`

const entryFrom = ` FROM pipeline p JOIN jobs j ON p.job_id = j.id LEFT JOIN employers e ON j.employer_id = e.id `

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (domain.PipelineEntry, error) {
	var p domain.PipelineEntry
	var employerID sql.NullInt64
	var employerName sql.NullString
	var fee sql.NullFloat64
	var st string
	err := row.Scan(&p.ID, &p.AttorneyID, &p.AttorneySource, &p.AttorneyName, &p.AttorneyFirm, &p.AttorneyEmail,
		&p.JobID, &p.JobTitle, &employerID, &employerName, &st, &p.Notes, &fee, &p.AddedBy, &p.AddedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	p.Stage = stage.Stage(st)
	if employerID.Valid {
		p.EmployerID = employerID.Int64
	}
	if employerName.Valid {
		p.EmployerName = employerName.String
	}
	if fee.Valid {
		v := fee.Float64
		p.PlacementFee = &v
	}
	return p, nil
}

// ListEntries returns entries matching f, most recently updated first.
func (r Repo) ListEntries(ctx context.Context, f domain.Filter) ([]domain.PipelineEntry, error) {
	var clauses []string
	var args []any
	if f.JobID != 0 {
		clauses = append(clauses, "p.job_id=?")
		args = append(args, f.JobID)
	}
	if f.EmployerID != 0 {
		clauses = append(clauses, "j.employer_id=?")
		args = append(args, f.EmployerID)
	}
	if f.Stage != "" {
		clauses = append(clauses, "p.stage=?")
		args = append(args, string(f.Stage))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		clauses = append(clauses, "(p.attorney_name LIKE ? OR p.attorney_firm LIKE ?)")
		like := "%" + s + "%"
		args = append(args, like, like)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+entryColumns+entryFrom+where+` ORDER BY p.updated_at DESC, p.id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.PipelineEntry{}
	for rows.Next() {
		p, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) GetEntry(ctx context.Context, q Queryer, id int64) (domain.PipelineEntry, error) {
	return scanEntry(q.QueryRowContext(ctx, `SELECT `+entryColumns+entryFrom+`WHERE p.id=?`, id))
}

// FindEntry looks up the entry for one candidate on one job.
func (r Repo) FindEntry(ctx context.Context, q Queryer, jobID int64, attorneyID, source string) (domain.PipelineEntry, error) {
	return scanEntry(q.QueryRowContext(ctx, `SELECT `+entryColumns+entryFrom+`WHERE p.job_id=? AND p.attorney_id=? AND p.attorney_source=?`,
		jobID, attorneyID, source))
}

func (r Repo) InsertEntry(ctx context.Context, tx *sql.Tx, p domain.PipelineEntry) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO pipeline(job_id,attorney_id,attorney_source,attorney_name,attorney_firm,attorney_email,stage,notes,placement_fee,added_by,added_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.JobID, p.AttorneyID, p.AttorneySource, p.AttorneyName, p.AttorneyFirm, p.AttorneyEmail,
		string(p.Stage), p.Notes, nullableFloat(p.PlacementFee), p.AddedBy, p.AddedAt, p.UpdatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert pipeline entry: %w", err)
	}
	return res.LastInsertId()
}

func (r Repo) UpdateStage(ctx context.Context, q Queryer, id int64, to stage.Stage, updatedAt string) error {
	return expectOne(q.ExecContext(ctx, `UPDATE pipeline SET stage=?, updated_at=? WHERE id=?`, string(to), updatedAt, id))
}

func (r Repo) UpdateNotes(ctx context.Context, q Queryer, id int64, notes, updatedAt string) error {
	return expectOne(q.ExecContext(ctx, `UPDATE pipeline SET notes=?, updated_at=? WHERE id=?`, notes, updatedAt, id))
}

func (r Repo) UpdateFee(ctx context.Context, q Queryer, id int64, fee float64, updatedAt string) error {
	return expectOne(q.ExecContext(ctx, `UPDATE pipeline SET placement_fee=?, updated_at=? WHERE id=?`, fee, updatedAt, id))
}

// DeleteEntry removes an entry and its history.
func (r Repo) DeleteEntry(ctx context.Context, tx *sql.Tx, id int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM pipeline_history WHERE pipeline_id=?`, id); err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	return expectOne(tx.ExecContext(ctx, `DELETE FROM pipeline WHERE id=?`, id))
}

// ActivityPage returns history newest first along with the total count.
func (r Repo) ActivityPage(ctx context.Context, limit, offset int) ([]domain.ActivityRecord, int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT h.id,h.pipeline_id,p.attorney_name,p.attorney_firm,p.job_id,COALESCE(j.title,''),e.name,h.from_stage,h.to_stage,h.note,h.changed_by,h.changed_at
FROM pipeline_history h
JOIN pipeline p ON h.pipeline_id = p.id
JOIN jobs j ON p.job_id = j.id
LEFT JOIN employers e ON j.employer_id = e.id
ORDER BY h.changed_at DESC, h.id DESC
LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	res := []domain.ActivityRecord{}
	for rows.Next() {
		var a domain.ActivityRecord
		var employer, from sql.NullString
		var to string
		if err := rows.Scan(&a.ID, &a.PipelineID, &a.AttorneyName, &a.AttorneyFirm, &a.JobID, &a.JobTitle, &employer, &from, &to, &a.Note, &a.ChangedBy, &a.ChangedAt); err != nil {
			return nil, 0, err
		}
		if employer.Valid {
			a.EmployerName = employer.String
		}
		if from.Valid {
			s := stage.Stage(from.String)
			a.FromStage = &s
		}
		a.ToStage = stage.Stage(to)
		res = append(res, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM pipeline_history`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return res, total, nil
}

// PlacementsFor maps each attorney id to the pipelines it appears in.
func (r Repo) PlacementsFor(ctx context.Context, attorneyIDs []string) (map[string][]domain.Placement, error) {
	res := map[string][]domain.Placement{}
	if len(attorneyIDs) == 0 {
		return res, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(attorneyIDs)), ",")
	args := make([]any, len(attorneyIDs))
	for i, id := range attorneyIDs {
		args[i] = id
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT p.attorney_id,p.stage,COALESCE(j.title,''),e.name`+entryFrom+`WHERE p.attorney_id IN (`+placeholders+`) ORDER BY p.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var aid, st, title string
		var employer sql.NullString
		if err := rows.Scan(&aid, &st, &title, &employer); err != nil {
			return nil, err
		}
		res[aid] = append(res[aid], domain.Placement{Stage: stage.Stage(st), JobTitle: title, EmployerName: employer.String})
	}
	return res, rows.Err()
}

func (r Repo) UpsertEmployer(ctx context.Context, q Queryer, e domain.Employer) error {
	_, err := q.ExecContext(ctx, `INSERT INTO employers(id,name) VALUES (?,?) ON CONFLICT(id) DO UPDATE SET name=excluded.name`, e.ID, e.Name)
	return err
}

func (r Repo) UpsertJob(ctx context.Context, q Queryer, j domain.Job) error {
	status := j.Status
	if status == "" {
		status = "Active"
	}
	_, err := q.ExecContext(ctx, `INSERT INTO jobs(id,employer_id,title,status) VALUES (?,?,?,?)
ON CONFLICT(id) DO UPDATE SET employer_id=excluded.employer_id, title=excluded.title, status=excluded.status`,
		j.ID, nullableID(j.EmployerID), j.Title, status)
	return err
}

func (r Repo) GetJob(ctx context.Context, q Queryer, id int64) (domain.Job, error) {
	var j domain.Job
	var employerID sql.NullInt64
	err := q.QueryRowContext(ctx, `SELECT id,employer_id,title,status FROM jobs WHERE id=?`, id).Scan(&j.ID, &employerID, &j.Title, &j.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return j, ErrNotFound
	}
	j.EmployerID = employerID.Int64
	return j, err
}

func expectOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableID(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
