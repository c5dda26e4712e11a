package activity

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"stageline/internal/domain"
	"stageline/internal/stage"
)

// Kind is the verb family of an activity line.
type Kind string

const (
	KindAdded  Kind = "added"
	KindPlaced Kind = "placed"
	KindClosed Kind = "closed"
	KindMoved  Kind = "moved"
)

var icons = map[Kind]string{
	KindAdded:  "+",
	KindPlaced: "*",
	KindClosed: "x",
	KindMoved:  ">",
}

// Line is a rendered activity record.
type Line struct {
	Kind      Kind   `json:"kind"`
	Icon      string `json:"icon"`
	Text      string `json:"text"`
	ChangedAt string `json:"changed_at"`
}

// Render turns a history record into the sentence shown in feeds.
func Render(r domain.ActivityRecord) Line {
	name := r.AttorneyName
	if strings.TrimSpace(name) == "" {
		name = "Candidate"
	}
	job := r.JobTitle
	if r.EmployerName != "" {
		job += " at " + r.EmployerName
	}

	var kind Kind
	var text string
	switch {
	case r.FromStage == nil:
		kind = KindAdded
		text = fmt.Sprintf("%s added to %s", name, job)
	case r.ToStage == stage.Placed:
		kind = KindPlaced
		text = fmt.Sprintf("%s placed at %s", name, job)
	case stage.IsClosed(r.ToStage):
		kind = KindClosed
		text = fmt.Sprintf("%s %s for %s", name, strings.ToLower(string(r.ToStage)), r.JobTitle)
	default:
		kind = KindMoved
		text = fmt.Sprintf("%s moved from %s to %s for %s", name, *r.FromStage, r.ToStage, job)
	}
	if note := strings.TrimSpace(r.Note); note != "" {
		text += fmt.Sprintf(" - %q", note)
	}
	return Line{Kind: kind, Icon: icons[kind], Text: text, ChangedAt: r.ChangedAt}
}

// Page is one slice of the newest-first activity log.
type Page struct {
	Records []domain.ActivityRecord `json:"activities"`
	Total   int                     `json:"total"`
}

// Source reads the activity log.
type Source interface {
	Activity(ctx context.Context, limit, offset int) (Page, error)
}

// Feed pages through a Source and keeps the rendered lines loaded so far.
type Feed struct {
	src   Source
	limit int

	mu     sync.Mutex
	offset int
	total  int
	lines  []Line
}

func NewFeed(src Source, pageSize int) *Feed {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Feed{src: src, limit: pageSize}
}

// Load resets the feed to its first page.
func (f *Feed) Load(ctx context.Context) error {
	page, err := f.src.Activity(ctx, f.limit, 0)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = renderAll(nil, page.Records)
	f.offset = len(page.Records)
	f.total = page.Total
	return nil
}

// More appends the next page. It is a no-op once everything is loaded.
func (f *Feed) More(ctx context.Context) error {
	f.mu.Lock()
	offset := f.offset
	done := offset >= f.total
	f.mu.Unlock()
	if done {
		return nil
	}
	page, err := f.src.Activity(ctx, f.limit, offset)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = renderAll(f.lines, page.Records)
	f.offset = offset + len(page.Records)
	f.total = page.Total
	if len(page.Records) == 0 {
		f.total = f.offset
	}
	return nil
}

func (f *Feed) HasMore() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offset < f.total
}

func (f *Feed) Total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total
}

func (f *Feed) Lines() []Line {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Line, len(f.lines))
	copy(out, f.lines)
	return out
}

func renderAll(dst []Line, records []domain.ActivityRecord) []Line {
	for _, r := range records {
		dst = append(dst, Render(r))
	}
	return dst
}
