package transition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"

	"stageline/internal/board"
	"stageline/internal/domain"
	"stageline/internal/stage"
)

// Backend is the pipeline API as the engine sees it. Move must return an
// error when the server does not acknowledge the move.
type Backend interface {
	List(ctx context.Context, f domain.Filter) ([]domain.PipelineEntry, error)
	Move(ctx context.Context, id int64, to stage.Stage, note string) error
	SetNotes(ctx context.Context, id int64, notes string) error
	SetPlacementFee(ctx context.Context, id int64, fee float64) error
	Remove(ctx context.Context, id int64) error
	Add(ctx context.Context, req domain.AddRequest) ([]domain.AddResult, error)
}

type Outcome string

const (
	OutcomeNoop      Outcome = "noop"
	OutcomeCommitted Outcome = "committed"
	OutcomeGated     Outcome = "gated"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// PendingMove is a gated move waiting for its note step.
type PendingMove struct {
	EntryID int64        `json:"entry_id"`
	From    stage.Stage  `json:"from_stage"`
	To      stage.Stage  `json:"to_stage"`
	Prompt  stage.Prompt `json:"prompt"`
}

// GateInput is what the user typed into the note step.
type GateInput struct {
	Note      string
	StartDate string
}

// Result is how every engine operation resolves. Message is the user facing
// confirmation and is empty unless the mutation was committed.
type Result struct {
	Outcome Outcome
	EntryID int64
	Message string
	Pending *PendingMove
	Err     error
}

var (
	ErrNoPendingMove = errors.New("no pending move")
	ErrNotConfirmed  = errors.New("removal not confirmed")
)

// Engine applies stage moves and related mutations. It never edits the
// store in place: every outcome ends with a reload from the backend.
type Engine struct {
	Backend Backend
	Store   *board.Store
	Logger  *slog.Logger

	mu      sync.Mutex
	pending *PendingMove
	subs    map[int]func(Event)
	nextSub int
}

func New(backend Backend, store *board.Store) *Engine {
	return &Engine{Backend: backend, Store: store, Logger: slog.Default()}
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Pending returns the parked gated move, if any.
func (e *Engine) Pending() (PendingMove, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return PendingMove{}, false
	}
	return *e.pending, true
}

// RequestMove moves an entry between stages. Moves into gated stages are
// parked until Confirm or Cancel.
func (e *Engine) RequestMove(ctx context.Context, entryID int64, from, to stage.Stage) Result {
	if from == to {
		return Result{Outcome: OutcomeNoop, EntryID: entryID}
	}
	if !to.Valid() {
		err := fmt.Errorf("%w: %q", stage.ErrUnknownStage, string(to))
		e.logger().Warn("move rejected", "entry_id", entryID, "to", to, "error", err)
		e.Reload(ctx)
		e.emit(Event{Kind: EventFailed, EntryID: entryID, Err: err})
		return Result{Outcome: OutcomeFailed, EntryID: entryID, Err: err}
	}
	if !stage.RequiresGate(to) {
		return e.commitMove(ctx, entryID, to, "")
	}

	pm := &PendingMove{EntryID: entryID, From: from, To: to, Prompt: stage.PromptFor(to)}
	e.mu.Lock()
	if e.pending != nil {
		e.logger().Debug("replacing pending move", "entry_id", e.pending.EntryID, "to", e.pending.To)
	}
	e.pending = pm
	e.mu.Unlock()

	cp := *pm
	e.emit(Event{Kind: EventGateOpened, EntryID: entryID, Pending: &cp})
	return Result{Outcome: OutcomeGated, EntryID: entryID, Pending: &cp}
}

// Confirm commits the parked move with the composed note.
func (e *Engine) Confirm(ctx context.Context, in GateInput) Result {
	e.mu.Lock()
	pm := e.pending
	e.pending = nil
	e.mu.Unlock()
	if pm == nil {
		return Result{Outcome: OutcomeNoop, Err: ErrNoPendingMove}
	}
	return e.commitMove(ctx, pm.EntryID, pm.To, stage.ComposeNote(pm.To, in.Note, in.StartDate))
}

// Cancel drops the parked move and reloads so the entry shows where it was.
func (e *Engine) Cancel(ctx context.Context) Result {
	e.mu.Lock()
	pm := e.pending
	e.pending = nil
	e.mu.Unlock()
	e.Reload(ctx)
	if pm == nil {
		return Result{Outcome: OutcomeNoop, Err: ErrNoPendingMove}
	}
	e.emit(Event{Kind: EventCancelled, EntryID: pm.EntryID, Pending: pm})
	return Result{Outcome: OutcomeCancelled, EntryID: pm.EntryID}
}

func (e *Engine) commitMove(ctx context.Context, entryID int64, to stage.Stage, note string) Result {
	name := e.nameOf(entryID)
	return e.commit(ctx, entryID, "move", func(ctx context.Context) error {
		return e.Backend.Move(ctx, entryID, to, note)
	}, fmt.Sprintf("%s moved to %s", name, to))
}

// SetNote replaces the entry's notes.
func (e *Engine) SetNote(ctx context.Context, entryID int64, text string) Result {
	return e.commit(ctx, entryID, "notes", func(ctx context.Context) error {
		return e.Backend.SetNotes(ctx, entryID, text)
	}, "Notes updated")
}

// SetPlacementFee parses raw and stores it as the entry's placement fee.
func (e *Engine) SetPlacementFee(ctx context.Context, entryID int64, raw string) Result {
	fee := ParseFee(raw)
	return e.commit(ctx, entryID, "fee", func(ctx context.Context) error {
		return e.Backend.SetPlacementFee(ctx, entryID, fee)
	}, "Placement fee updated to $"+humanize.Commaf(fee))
}

// Remove deletes the entry. Without confirmation nothing is sent.
func (e *Engine) Remove(ctx context.Context, entryID int64, confirmed bool) Result {
	if !confirmed {
		return Result{Outcome: OutcomeNoop, EntryID: entryID, Err: ErrNotConfirmed}
	}
	name := e.nameOf(entryID)
	return e.commit(ctx, entryID, "remove", func(ctx context.Context) error {
		return e.Backend.Remove(ctx, entryID)
	}, name+" removed from pipeline")
}

func (e *Engine) commit(ctx context.Context, entryID int64, op string, call func(context.Context) error, message string) Result {
	if err := call(ctx); err != nil {
		e.logger().Warn("pipeline mutation failed", "op", op, "entry_id", entryID, "error", err)
		e.Reload(ctx)
		e.emit(Event{Kind: EventFailed, EntryID: entryID, Err: err})
		return Result{Outcome: OutcomeFailed, EntryID: entryID, Err: err}
	}
	e.Reload(ctx)
	e.emit(Event{Kind: EventCommitted, EntryID: entryID, Message: message})
	return Result{Outcome: OutcomeCommitted, EntryID: entryID, Message: message}
}

// Reload replaces the store with the backend's view of the current filter.
// A failed reload leaves the store as it was.
func (e *Engine) Reload(ctx context.Context) error {
	entries, err := e.Backend.List(ctx, e.Store.Filter())
	if err != nil {
		e.logger().Warn("pipeline reload failed", "error", err)
		e.emit(Event{Kind: EventReloadFailed, Err: err})
		return err
	}
	e.Store.ReplaceAll(entries)
	e.emit(Event{Kind: EventReloaded})
	return nil
}

// SetFilter rescopes the board and reloads it.
func (e *Engine) SetFilter(ctx context.Context, f domain.Filter) error {
	e.Store.SetFilter(f)
	return e.Reload(ctx)
}

func (e *Engine) nameOf(entryID int64) string {
	if entry, ok := e.Store.Find(entryID); ok {
		return entry.DisplayName()
	}
	return "Candidate"
}

// ParseFee reads a fee typed by a user. Dollar signs, commas and spaces are
// ignored; anything unparseable or negative is 0.
func ParseFee(raw string) float64 {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(raw))
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
