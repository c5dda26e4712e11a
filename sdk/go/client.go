package stagelinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"stageline/internal/activity"
	"stageline/internal/domain"
	"stageline/internal/stage"
	"stageline/internal/stats"
)

// Client is a minimal Pipeline HTTP API client.
type Client struct {
	BaseURL    string
	BasePath   string
	RequestID  func() string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/api",
		Timeout:  10 * time.Second,
	}
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Body)
}

// NotAcknowledgedError is returned when the server answers {"ok": false}.
type NotAcknowledgedError struct {
	Op string
	ID int64
}

func (e NotAcknowledgedError) Error() string {
	return fmt.Sprintf("%s on pipeline entry %d not acknowledged", e.Op, e.ID)
}

type ack struct {
	OK bool `json:"ok"`
}

// PipelineList is the read path response. Stages and StageThemes describe
// the board layout the server uses.
type PipelineList struct {
	Pipeline    []domain.PipelineEntry      `json:"pipeline"`
	Stages      []stage.Stage               `json:"stages,omitempty"`
	StageThemes map[stage.Stage]stage.Theme `json:"stage_themes,omitempty"`
}

// StageInfo describes one registry stage.
type StageInfo struct {
	Name   stage.Stage  `json:"name"`
	Theme  stage.Theme  `json:"theme"`
	Gated  bool         `json:"gated"`
	Prompt stage.Prompt `json:"prompt"`
}

// List fetches pipeline entries for a filter.
func (c *Client) List(ctx context.Context, f domain.Filter) ([]domain.PipelineEntry, error) {
	resp, err := c.ListPipeline(ctx, f)
	if err != nil {
		return nil, err
	}
	return resp.Pipeline, nil
}

func (c *Client) ListPipeline(ctx context.Context, f domain.Filter) (PipelineList, error) {
	q := url.Values{}
	if f.JobID != 0 {
		q.Set("job_id", strconv.FormatInt(f.JobID, 10))
	}
	if f.EmployerID != 0 {
		q.Set("employer_id", strconv.FormatInt(f.EmployerID, 10))
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Stage != "" {
		q.Set("stage", string(f.Stage))
	}
	endpoint := "pipeline"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PipelineList
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Add creates pipeline entries for a job. Duplicates come back as "exists".
func (c *Client) Add(ctx context.Context, req domain.AddRequest) ([]domain.AddResult, error) {
	var resp struct {
		Results []domain.AddResult `json:"results"`
	}
	if err := c.do(ctx, http.MethodPost, "pipeline", req, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Move commits a stage transition.
func (c *Client) Move(ctx context.Context, id int64, to stage.Stage, note string) error {
	body := map[string]any{"stage": to, "note": note}
	return c.acked(ctx, "move", id, http.MethodPost, fmt.Sprintf("pipeline/%d/move", id), body)
}

func (c *Client) SetNotes(ctx context.Context, id int64, notes string) error {
	body := map[string]any{"notes": notes}
	return c.acked(ctx, "notes", id, http.MethodPost, fmt.Sprintf("pipeline/%d/notes", id), body)
}

func (c *Client) SetPlacementFee(ctx context.Context, id int64, fee float64) error {
	body := map[string]any{"placement_fee": fee}
	return c.acked(ctx, "fee", id, http.MethodPost, fmt.Sprintf("pipeline/%d/fee", id), body)
}

func (c *Client) Remove(ctx context.Context, id int64) error {
	return c.acked(ctx, "remove", id, http.MethodDelete, fmt.Sprintf("pipeline/%d", id), nil)
}

// Activity reads one page of the newest-first history.
func (c *Client) Activity(ctx context.Context, limit, offset int) (activity.Page, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	var resp activity.Page
	err := c.do(ctx, http.MethodGet, "activity?"+q.Encode(), nil, &resp)
	return resp, err
}

// Stats returns the dashboard summary, optionally for one job.
func (c *Client) Stats(ctx context.Context, jobID int64) (stats.Summary, error) {
	endpoint := "pipeline/stats"
	if jobID != 0 {
		endpoint += "?job_id=" + strconv.FormatInt(jobID, 10)
	}
	var resp stats.Summary
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Check reports which pipelines the given attorneys are already in.
func (c *Client) Check(ctx context.Context, attorneyIDs []string) (map[string][]domain.Placement, error) {
	var resp struct {
		Pipelines map[string][]domain.Placement `json:"pipelines"`
	}
	body := map[string]any{"attorney_ids": attorneyIDs}
	if err := c.do(ctx, http.MethodPost, "pipeline/check", body, &resp); err != nil {
		return nil, err
	}
	return resp.Pipelines, nil
}

func (c *Client) Stages(ctx context.Context) ([]StageInfo, error) {
	var resp struct {
		Stages []StageInfo `json:"stages"`
	}
	err := c.do(ctx, http.MethodGet, "stages", nil, &resp)
	return resp.Stages, err
}

func (c *Client) acked(ctx context.Context, op string, id int64, method, endpoint string, body any) error {
	var resp ack
	if err := c.do(ctx, method, endpoint, body, &resp); err != nil {
		return err
	}
	if !resp.OK {
		return NotAcknowledgedError{Op: op, ID: id}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.RequestID != nil {
		req.Header.Set("X-Request-ID", c.RequestID())
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
