package stage

import (
	"fmt"
	"strings"
)

// Prompt describes the note step shown before a gated move is committed.
type Prompt struct {
	Stage       Stage  `json:"stage"`
	Label       string `json:"label"`
	Placeholder string `json:"placeholder"`
	StartDate   bool   `json:"start_date"`
}

// PromptFor returns the note step for a move into s.
func PromptFor(s Stage) Prompt {
	p := Prompt{Stage: s, Label: "Note (optional)", Placeholder: "Add a note..."}
	switch s {
	case Rejected, Withdrawn:
		p.Label = "Reason (optional)"
		p.Placeholder = fmt.Sprintf("Why is this candidate being %s?", strings.ToLower(string(s)))
	case OfferExtended:
		p.Label = "Offer Details (optional)"
		p.Placeholder = "Offer details..."
	case Placed:
		p.Label = "Notes (optional)"
		p.Placeholder = "Any placement notes..."
		p.StartDate = true
	}
	return p
}

// ComposeNote builds the note persisted for a confirmed move into s. A start
// date is only recorded for placements.
func ComposeNote(s Stage, note, startDate string) string {
	note = strings.TrimSpace(note)
	startDate = strings.TrimSpace(startDate)
	if s != Placed || startDate == "" {
		return note
	}
	if note != "" {
		note += " | "
	}
	return note + "Start date: " + startDate
}
