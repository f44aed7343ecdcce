package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bugsage-dev/bugsage/internal/config"
	"github.com/bugsage-dev/bugsage/internal/observability"
	"github.com/bugsage-dev/bugsage/internal/persistence"
)

// runtimeDeps are the shared pieces every command needs.
type runtimeDeps struct {
	cfg    *config.Config
	logger *zap.Logger
	pg     *persistence.Postgres
}

func (r *runtimeDeps) close() {
	if r.pg != nil {
		r.pg.Close()
	}
	_ = r.logger.Sync()
}

// bootstrap loads configuration, builds the logger and connects to
// Postgres.
func bootstrap(ctx context.Context) (*runtimeDeps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger = logger.With(zap.String("service", cfg.App.Name), zap.String("version", cfg.App.Version))

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &runtimeDeps{cfg: cfg, logger: logger, pg: pg}, nil
}
