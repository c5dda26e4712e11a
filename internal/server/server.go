package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"stageline/internal/domain"
	"stageline/internal/metrics"
	"stageline/internal/migrate"
	"stageline/internal/pipeline"
	"stageline/internal/repo"
	"stageline/internal/stage"
	"stageline/internal/stats"
)

// Config for the HTTP API handler.
type Config struct {
	Service  pipeline.Service
	BasePath string
	// Metrics is optional. When set, /metrics is served and requests and
	// moves are counted.
	Metrics *metrics.Manager
	Logger  *slog.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"pipeline entry 7: not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope every endpoint answers with.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the pipeline API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Service.DB == nil {
		return nil, errors.New("server: pipeline service has no database")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(requestIDMiddleware)
	router.Use(accessLogMiddleware(logger, cfg.Metrics))
	hcfg := huma.DefaultConfig("Stageline Pipeline API", "0.3.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	h := handlers{svc: cfg.Service, metrics: cfg.Metrics}
	registerDocs(router, basePath)
	registerHealth(group, h)
	registerStages(group)
	registerPipeline(group, h)
	registerActivity(group, h)
	registerOpenAPI(router, api, basePath)
	if cfg.Metrics != nil {
		router.Get("/metrics", cfg.Metrics.Handler().ServeHTTP)
	}
	return router, nil
}

type handlers struct {
	svc     pipeline.Service
	metrics *metrics.Manager
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, stage.ErrUnknownStage):
		return newAPIError(http.StatusBadRequest, "unknown_stage", err.Error(), nil)
	case errors.Is(err, pipeline.ErrInvalid):
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Stageline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body HealthResponse `json:"body"`
	}, error) {
		if err := h.svc.DB.PingContext(ctx); err != nil {
			return nil, newAPIError(http.StatusServiceUnavailable, "unavailable", "database unavailable", map[string]any{"error": err.Error()})
		}
		v, err := migrate.Current(ctx, h.svc.DB)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body HealthResponse `json:"body"`
		}{Body: HealthResponse{Status: "ok", SchemaVersion: v}}, nil
	})
}

func registerStages(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-stages",
		Method:      http.MethodGet,
		Path:        "/stages",
		Summary:     "Stage registry",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body StagesResponse `json:"body"`
	}, error) {
		return &struct {
			Body StagesResponse `json:"body"`
		}{Body: stagesResponse()}, nil
	})
}

func registerPipeline(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "list-pipeline",
		Method:      http.MethodGet,
		Path:        "/pipeline",
		Summary:     "List pipeline entries",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		JobID      int64  `query:"job_id"`
		EmployerID int64  `query:"employer_id"`
		Search     string `query:"search"`
		Stage      string `query:"stage"`
	}) (*struct {
		Body PipelineResponse `json:"body"`
	}, error) {
		f := domain.Filter{JobID: input.JobID, EmployerID: input.EmployerID, Search: strings.TrimSpace(input.Search)}
		if input.Stage != "" {
			s, err := stage.Parse(input.Stage)
			if err != nil {
				return nil, handleError(err)
			}
			f.Stage = s
		}
		entries, err := h.svc.List(ctx, f)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PipelineResponse `json:"body"`
		}{Body: pipelineResponse(entries)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "add-candidates",
		Method:      http.MethodPost,
		Path:        "/pipeline",
		Summary:     "Add candidates to a job pipeline",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body domain.AddRequest `json:"body"`
	}) (*struct {
		Body AddResponse `json:"body"`
	}, error) {
		req := input.Body
		if req.Stage != "" {
			s, err := stage.Parse(string(req.Stage))
			if err != nil {
				return nil, handleError(err)
			}
			req.Stage = s
		}
		results, err := h.svc.Add(ctx, req)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AddResponse `json:"body"`
		}{Body: AddResponse{Results: nonNilSlice(results)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "move-entry",
		Method:      http.MethodPost,
		Path:        "/pipeline/{id}/move",
		Summary:     "Move an entry to another stage",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ID    int64       `path:"id"`
		Actor string      `header:"X-Actor"`
		Body  MoveRequest `json:"body"`
	}) (*struct {
		Body OKResponse `json:"body"`
	}, error) {
		to, err := stage.Parse(input.Body.Stage)
		if err != nil {
			return nil, handleError(err)
		}
		if err := h.svc.Move(ctx, input.ID, to, input.Body.Note, strings.TrimSpace(input.Actor)); err != nil {
			return nil, handleError(err)
		}
		if h.metrics != nil {
			h.metrics.RecordMove(to)
		}
		return okResponse(), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-entry-notes",
		Method:      http.MethodPost,
		Path:        "/pipeline/{id}/notes",
		Summary:     "Replace an entry's notes",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   int64        `path:"id"`
		Body NotesRequest `json:"body"`
	}) (*struct {
		Body OKResponse `json:"body"`
	}, error) {
		if err := h.svc.SetNotes(ctx, input.ID, input.Body.Notes); err != nil {
			return nil, handleError(err)
		}
		return okResponse(), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-entry-fee",
		Method:      http.MethodPost,
		Path:        "/pipeline/{id}/fee",
		Summary:     "Set an entry's placement fee",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   int64      `path:"id"`
		Body FeeRequest `json:"body"`
	}) (*struct {
		Body OKResponse `json:"body"`
	}, error) {
		if err := h.svc.SetFee(ctx, input.ID, input.Body.PlacementFee); err != nil {
			return nil, handleError(err)
		}
		return okResponse(), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-entry",
		Method:      http.MethodDelete,
		Path:        "/pipeline/{id}",
		Summary:     "Remove an entry from the pipeline",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body OKResponse `json:"body"`
	}, error) {
		if err := h.svc.Remove(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return okResponse(), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "check-attorneys",
		Method:      http.MethodPost,
		Path:        "/pipeline/check",
		Summary:     "Pipelines the given attorneys are already in",
	}, func(ctx context.Context, input *struct {
		Body CheckRequest `json:"body"`
	}) (*struct {
		Body CheckResponse `json:"body"`
	}, error) {
		found, err := h.svc.Check(ctx, input.Body.AttorneyIDs)
		if err != nil {
			return nil, handleError(err)
		}
		if found == nil {
			found = map[string][]domain.Placement{}
		}
		return &struct {
			Body CheckResponse `json:"body"`
		}{Body: CheckResponse{Pipelines: found}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "pipeline-stats",
		Method:      http.MethodGet,
		Path:        "/pipeline/stats",
		Summary:     "Pipeline dashboard numbers",
	}, func(ctx context.Context, input *struct {
		JobID int64 `query:"job_id"`
	}) (*struct {
		Body stats.Summary `json:"body"`
	}, error) {
		sum, err := h.svc.Stats(ctx, input.JobID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body stats.Summary `json:"body"`
		}{Body: sum}, nil
	})
}

func registerActivity(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "list-activity",
		Method:      http.MethodGet,
		Path:        "/activity",
		Summary:     "Pipeline history, newest first",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Limit  int `query:"limit" default:"50"`
		Offset int `query:"offset" default:"0"`
	}) (*struct {
		Body ActivityResponse `json:"body"`
	}, error) {
		records, total, err := h.svc.Activity(ctx, normalizeLimit(input.Limit), input.Offset)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ActivityResponse `json:"body"`
		}{Body: ActivityResponse{Activities: nonNilSlice(records), Total: total}}, nil
	})
}

func okResponse() *struct {
	Body OKResponse `json:"body"`
} {
	return &struct {
		Body OKResponse `json:"body"`
	}{Body: OKResponse{OK: true}}
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}
