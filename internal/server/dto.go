package server

import (
	"stageline/internal/domain"
	"stageline/internal/stage"
)

// Request payloads

type MoveRequest struct {
	Stage string `json:"stage" example:"Phone Screen"`
	Note  string `json:"note,omitempty"`
}

type NotesRequest struct {
	Notes string `json:"notes"`
}

type FeeRequest struct {
	PlacementFee float64 `json:"placement_fee" example:"30000"`
}

type CheckRequest struct {
	AttorneyIDs []string `json:"attorney_ids"`
}

// Response payloads

type OKResponse struct {
	OK bool `json:"ok"`
}

type PipelineResponse struct {
	Pipeline    []domain.PipelineEntry `json:"pipeline"`
	Stages      []stage.Stage          `json:"stages"`
	StageThemes map[string]string      `json:"stage_themes"`
}

type AddResponse struct {
	Results []domain.AddResult `json:"results"`
}

type ActivityResponse struct {
	Activities []domain.ActivityRecord `json:"activities"`
	Total      int                     `json:"total"`
}

type CheckResponse struct {
	Pipelines map[string][]domain.Placement `json:"pipelines"`
}

type StageResponse struct {
	Name   stage.Stage  `json:"name"`
	Theme  stage.Theme  `json:"theme"`
	Gated  bool         `json:"gated"`
	Prompt stage.Prompt `json:"prompt"`
}

type StagesResponse struct {
	Stages []StageResponse `json:"stages"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	SchemaVersion int    `json:"schema_version"`
}

// Conversion helpers

func pipelineResponse(entries []domain.PipelineEntry) PipelineResponse {
	ordered := stage.Ordered()
	themes := make(map[string]string, len(ordered))
	for _, s := range ordered {
		themes[string(s)] = string(s.Theme())
	}
	return PipelineResponse{
		Pipeline:    nonNilSlice(entries),
		Stages:      ordered,
		StageThemes: themes,
	}
}

func stagesResponse() StagesResponse {
	res := StagesResponse{}
	for _, s := range stage.Ordered() {
		res.Stages = append(res.Stages, StageResponse{
			Name:   s,
			Theme:  s.Theme(),
			Gated:  stage.RequiresGate(s),
			Prompt: stage.PromptFor(s),
		})
	}
	return res
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
