package main

import (
	"bytes"
	"strings"
	"testing"

	"stageline/internal/board"
	"stageline/internal/domain"
	"stageline/internal/stage"
)

func TestParseCandidate(t *testing.T) {
	c, err := parseCandidate("a-1=Ada Park@Park & Lee")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.AttorneyID != "a-1" || c.Name != "Ada Park" || c.CurrentFirm != "Park & Lee" {
		t.Fatalf("unexpected candidate %+v", c)
	}
	if _, err := parseCandidate("Ada Park"); err == nil {
		t.Fatalf("expected error without an id")
	}
}

func TestReadGateAsksForStartDateOnPlacement(t *testing.T) {
	var out bytes.Buffer
	in, err := readGate(strings.NewReader("Great fit\n2024-03-01\n"), &out, stage.PromptFor(stage.Placed))
	if err != nil {
		t.Fatalf("read gate: %v", err)
	}
	if in.Note != "Great fit" || in.StartDate != "2024-03-01" {
		t.Fatalf("unexpected gate input %+v", in)
	}
	if !strings.Contains(out.String(), "Notes (optional)") || !strings.Contains(out.String(), "Start Date") {
		t.Fatalf("unexpected prompt %q", out.String())
	}

	out.Reset()
	in, err = readGate(strings.NewReader("not a fit"), &out, stage.PromptFor(stage.Rejected))
	if err != nil {
		t.Fatalf("read gate at EOF: %v", err)
	}
	if in.Note != "not a fit" || in.StartDate != "" || strings.Contains(out.String(), "Start Date") {
		t.Fatalf("unexpected rejected gate %+v %q", in, out.String())
	}
}

func TestRenderBoard(t *testing.T) {
	fee := 30000.0
	v := board.ViewState{
		Entries: []domain.PipelineEntry{
			{ID: 1, AttorneyName: "Ada Park", JobTitle: "Litigation Associate", EmployerName: "Acme LLP", Stage: stage.Placed, PlacementFee: &fee},
			{ID: 2, Stage: stage.Contacted},
		},
		Sort: board.SortAlpha,
	}
	var out bytes.Buffer
	renderBoard(&out, v.Columns())
	got := out.String()
	for _, want := range []string{"Placed (1)", "Contacted (1)", "Identified (0)", "$30,000", "Litigation Associate @ Acme LLP", "Candidate"} {
		if !strings.Contains(got, want) {
			t.Fatalf("board missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Rejected") {
		t.Fatalf("empty closed columns should be hidden without a job filter:\n%s", got)
	}
}

func TestCheckGateFlags(t *testing.T) {
	cases := []struct {
		name      string
		to        stage.Stage
		note      string
		startDate string
		cancel    bool
		yes       bool
		wantErr   string
	}{
		{name: "plain direct move", to: stage.PhoneScreen},
		{name: "cancel on direct move", to: stage.PhoneScreen, cancel: true, wantErr: "--cancel"},
		{name: "note on direct move", to: stage.Contacted, note: "hi", wantErr: "--note"},
		{name: "start date on direct move", to: stage.Contacted, startDate: "2024-03-01", wantErr: "--start-date"},
		{name: "yes on direct move", to: stage.Contacted, yes: true, wantErr: "--yes"},
		{name: "note on rejection", to: stage.Rejected, note: "not a fit"},
		{name: "start date on placement", to: stage.Placed, note: "great", startDate: "2024-03-01"},
		{name: "start date on rejection", to: stage.Rejected, startDate: "2024-03-01", wantErr: "--start-date"},
		{name: "cancel gated move", to: stage.Withdrawn, cancel: true},
		{name: "cancel with note", to: stage.Withdrawn, cancel: true, note: "x", wantErr: "--cancel"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := checkGateFlags(tc.to, tc.note, tc.startDate, tc.cancel, tc.yes)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error mentioning %s, got %v", tc.wantErr, err)
			}
		})
	}
}
