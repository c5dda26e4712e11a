package domain

import (
	"strings"
	"time"

	"stageline/internal/stage"
)

const (
	SourceFP     = "fp"
	SourceCustom = "custom"
)

// PipelineEntry links one candidate to one job at one current stage.
type PipelineEntry struct {
	ID             int64       `json:"id"`
	AttorneyID     string      `json:"attorney_id"`
	AttorneySource string      `json:"attorney_source" enum:"fp,custom"`
	AttorneyName   string      `json:"attorney_name"`
	AttorneyFirm   string      `json:"attorney_firm,omitempty"`
	AttorneyEmail  string      `json:"attorney_email,omitempty"`
	JobID          int64       `json:"job_id"`
	JobTitle       string      `json:"job_title,omitempty"`
	EmployerID     int64       `json:"employer_id,omitempty"`
	EmployerName   string      `json:"employer_name,omitempty"`
	Stage          stage.Stage `json:"stage"`
	Notes          string      `json:"notes,omitempty"`
	PlacementFee   *float64    `json:"placement_fee,omitempty"`
	AddedBy        string      `json:"added_by,omitempty"`
	AddedAt        string      `json:"added_at,omitempty" format:"date-time"`
	UpdatedAt      string      `json:"updated_at,omitempty" format:"date-time"`
}

// DisplayName is the candidate name shown on cards and confirmations.
func (e PipelineEntry) DisplayName() string {
	if strings.TrimSpace(e.AttorneyName) == "" {
		return "Candidate"
	}
	return e.AttorneyName
}

// LastTouched is updated_at, falling back to added_at. ok is false when
// neither parses.
func (e PipelineEntry) LastTouched() (time.Time, bool) {
	if t, ok := ParseTime(e.UpdatedAt); ok {
		return t, true
	}
	return ParseTime(e.AddedAt)
}

// ActivityRecord is one append-only line of pipeline history. A nil
// FromStage marks the creation of the entry.
type ActivityRecord struct {
	ID           int64        `json:"id"`
	PipelineID   int64        `json:"pipeline_id"`
	AttorneyName string       `json:"attorney_name"`
	AttorneyFirm string       `json:"attorney_firm,omitempty"`
	JobID        int64        `json:"job_id"`
	JobTitle     string       `json:"job_title"`
	EmployerName string       `json:"employer_name,omitempty"`
	FromStage    *stage.Stage `json:"from_stage"`
	ToStage      stage.Stage  `json:"to_stage"`
	Note         string       `json:"note,omitempty"`
	ChangedBy    string       `json:"changed_by,omitempty"`
	ChangedAt    string       `json:"changed_at" format:"date-time"`
}

// Filter narrows the pipeline read path. Zero values mean no filter.
type Filter struct {
	JobID      int64       `json:"job_id,omitempty"`
	EmployerID int64       `json:"employer_id,omitempty"`
	Search     string      `json:"search,omitempty"`
	Stage      stage.Stage `json:"stage,omitempty"`
}

// SingleJob reports whether the view is scoped to one job.
func (f Filter) SingleJob() bool { return f.JobID != 0 }

// Candidate is one row of a bulk add.
type Candidate struct {
	AttorneyID  string `json:"attorney_id"`
	Name        string `json:"name"`
	CurrentFirm string `json:"current_firm,omitempty"`
	Email       string `json:"email,omitempty"`
	Source      string `json:"source,omitempty" enum:"fp,custom"`
}

// AddRequest adds N candidates to one job's pipeline.
type AddRequest struct {
	JobID        int64       `json:"job_id"`
	Candidates   []Candidate `json:"candidates"`
	Stage        stage.Stage `json:"stage,omitempty"`
	Notes        string      `json:"notes,omitempty"`
	PlacementFee *float64    `json:"placement_fee,omitempty"`
	AddedBy      string      `json:"added_by,omitempty"`
}

const (
	AddStatusAdded  = "added"
	AddStatusExists = "exists"
)

// AddResult is the per-candidate outcome of a bulk add.
type AddResult struct {
	Status     string      `json:"status" enum:"added,exists"`
	ID         int64       `json:"id,omitempty"`
	AttorneyID string      `json:"attorney_id,omitempty"`
	Name       string      `json:"name"`
	Stage      stage.Stage `json:"stage"`
}

// Employer and Job are the catalog rows pipeline entries hang off.
type Employer struct {
	ID   int64  `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

type Job struct {
	ID         int64  `json:"id" yaml:"id"`
	EmployerID int64  `json:"employer_id" yaml:"employer_id"`
	Title      string `json:"title" yaml:"title"`
	Status     string `json:"status,omitempty" yaml:"status"`
}

// Placement is one row of the per-attorney pipeline check.
type Placement struct {
	Stage        stage.Stage `json:"stage"`
	JobTitle     string      `json:"job_title"`
	EmployerName string      `json:"employer_name,omitempty"`
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime reads the timestamp formats the store has written over time.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
