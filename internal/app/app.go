// Package app wires the server side and the board side from a loaded config.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"stageline/internal/activity"
	"stageline/internal/board"
	"stageline/internal/config"
	"stageline/internal/db"
	"stageline/internal/domain"
	"stageline/internal/metrics"
	"stageline/internal/migrate"
	"stageline/internal/pipeline"
	"stageline/internal/transition"
	stagelinesdk "stageline/sdk/go"
)

// OpenService opens the workspace database, applies pending migrations and
// upserts the configured catalog. The caller closes the returned service's DB.
func OpenService(ctx context.Context, workspace string, cfg *config.Config, logger *slog.Logger) (pipeline.Service, error) {
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return pipeline.Service{}, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return pipeline.Service{}, fmt.Errorf("migrate: %w", err)
	}
	svc := pipeline.New(conn)
	if logger != nil {
		svc.Logger = logger
	}
	if err := svc.SyncCatalog(ctx, cfg.Catalog.Employers, cfg.Catalog.Jobs); err != nil {
		conn.Close()
		return pipeline.Service{}, fmt.Errorf("sync catalog: %w", err)
	}
	return svc, nil
}

// NewMetrics builds the metrics manager whose pipeline gauges read from svc.
func NewMetrics(svc pipeline.Service) *metrics.Manager {
	return metrics.NewManager(metrics.WithSource(func(ctx context.Context) ([]domain.PipelineEntry, error) {
		return svc.List(ctx, domain.Filter{})
	}))
}

// Board is the client side: a pipeline API client, the board store the
// transition engine keeps in sync, and the activity feed.
type Board struct {
	Client *stagelinesdk.Client
	Store  *board.Store
	Engine *transition.Engine
	Feed   *activity.Feed
}

// NewBoard builds a board for filter f against the configured API. baseURL
// overrides client.base_url when set.
func NewBoard(cfg *config.Config, baseURL string, f domain.Filter, logger *slog.Logger) (*Board, error) {
	mode, err := board.ParseSortMode(cfg.Board.Sort)
	if err != nil {
		return nil, err
	}
	if baseURL == "" {
		baseURL = cfg.Client.BaseURL
	}
	client := stagelinesdk.New(baseURL)
	if cfg.Server.BasePath != "" {
		client.BasePath = cfg.Server.BasePath
	}
	if cfg.Client.Timeout > 0 {
		client.Timeout = cfg.Client.Timeout
	}
	store := board.NewStore(f, mode)
	eng := transition.New(client, store)
	if logger != nil {
		eng.Logger = logger
	}
	return &Board{
		Client: client,
		Store:  store,
		Engine: eng,
		Feed:   activity.NewFeed(client, cfg.Board.ActivityPageSize),
	}, nil
}
