package stage

import (
	"errors"
	"fmt"
	"strings"
)

// Stage is one step of a candidate's hiring workflow for a job. The value is
// the display name used on the wire.
type Stage string

const (
	Identified        Stage = "Identified"
	Contacted         Stage = "Contacted"
	Responded         Stage = "Responded"
	PhoneScreen       Stage = "Phone Screen"
	SubmittedToClient Stage = "Submitted to Client"
	Interview1        Stage = "Interview 1"
	Interview2        Stage = "Interview 2"
	FinalInterview    Stage = "Final Interview"
	ReferenceCheck    Stage = "Reference Check"
	OfferExtended     Stage = "Offer Extended"
	OfferAccepted     Stage = "Offer Accepted"
	Placed            Stage = "Placed"
	Rejected          Stage = "Rejected"
	Withdrawn         Stage = "Withdrawn"
	OnHold            Stage = "On Hold"
)

// Theme groups stages for display.
type Theme string

const (
	ThemeEarly          Theme = "early"
	ThemeInterview      Theme = "interview"
	ThemeOffer          Theme = "offer"
	ThemeClosedNegative Theme = "closed-negative"
	ThemeHold           Theme = "hold"
)

var ErrUnknownStage = errors.New("unknown stage")

var ordered = []Stage{
	Identified,
	Contacted,
	Responded,
	PhoneScreen,
	SubmittedToClient,
	Interview1,
	Interview2,
	FinalInterview,
	ReferenceCheck,
	OfferExtended,
	OfferAccepted,
	Placed,
	Rejected,
	Withdrawn,
	OnHold,
}

var themes = map[Stage]Theme{
	Identified:        ThemeEarly,
	Contacted:         ThemeEarly,
	Responded:         ThemeEarly,
	PhoneScreen:       ThemeInterview,
	SubmittedToClient: ThemeInterview,
	Interview1:        ThemeInterview,
	Interview2:        ThemeInterview,
	FinalInterview:    ThemeInterview,
	ReferenceCheck:    ThemeOffer,
	OfferExtended:     ThemeOffer,
	OfferAccepted:     ThemeOffer,
	Placed:            ThemeOffer,
	Rejected:          ThemeClosedNegative,
	Withdrawn:         ThemeClosedNegative,
	OnHold:            ThemeHold,
}

var index = func() map[Stage]int {
	m := make(map[Stage]int, len(ordered))
	for i, s := range ordered {
		m[s] = i
	}
	return m
}()

// Ordered returns the stages in board order. The slice is a copy.
func Ordered() []Stage {
	out := make([]Stage, len(ordered))
	copy(out, ordered)
	return out
}

// Classify returns the display theme of s. Unknown stages fall back to early.
func Classify(s Stage) Theme {
	if t, ok := themes[s]; ok {
		return t
	}
	return ThemeEarly
}

func (s Stage) Theme() Theme { return Classify(s) }

func (s Stage) Valid() bool {
	_, ok := index[s]
	return ok
}

func (s Stage) String() string { return string(s) }

// Index is the position of s in board order, or -1.
func Index(s Stage) int {
	if i, ok := index[s]; ok {
		return i
	}
	return -1
}

// RequiresGate reports whether moving into s must pause for a note step.
func RequiresGate(s Stage) bool {
	switch s {
	case Rejected, Withdrawn, OfferExtended, Placed:
		return true
	default:
		return false
	}
}

// IsInterview reports whether s counts toward the interview metric.
func IsInterview(s Stage) bool {
	switch s {
	case PhoneScreen, SubmittedToClient, Interview1, Interview2, FinalInterview:
		return true
	default:
		return false
	}
}

// IsClosed reports whether s closes the candidate out of the job.
func IsClosed(s Stage) bool {
	return s == Rejected || s == Withdrawn
}

// HiddenWhenEmpty reports whether the board drops the column when it has no
// entries and no job filter is set.
func HiddenWhenEmpty(s Stage) bool {
	return s == Rejected || s == Withdrawn || s == OnHold
}

// Parse accepts the wire value or a compact spelling such as PhoneScreen,
// phone-screen or phone_screen.
func Parse(raw string) (Stage, error) {
	key := compact(raw)
	if key == "" {
		return "", fmt.Errorf("%w: empty", ErrUnknownStage)
	}
	for _, s := range ordered {
		if compact(string(s)) == key {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStage, raw)
}

func compact(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch r {
		case ' ', '-', '_':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
