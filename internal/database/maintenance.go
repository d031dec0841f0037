package database

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Optimize runs SQLite's PRAGMA optimize to refresh planner stats.
func (e *Engine) Optimize(ctx context.Context) error {
	return e.maintain(ctx, "PRAGMA optimize")
}

// Vacuum rebuilds the database file to reclaim unused space.
func (e *Engine) Vacuum(ctx context.Context) error {
	return e.maintain(ctx, "VACUUM")
}

func (e *Engine) maintain(ctx context.Context, stmt string) error {
	if !e.cfg.IsSQLite() {
		return &ConfigurationError{Err: fmt.Errorf("%s is only supported on SQLite engines, not %q", stmt, e.cfg.Driver)}
	}
	if e.TxDepth(ctx) > 0 {
		return fmt.Errorf("%s cannot run inside a transaction", stmt)
	}
	if _, err := e.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("failed to run %s: %w", stmt, err)
	}
	log.Info().Str("statement", stmt).Msg("Database maintenance complete")
	return nil
}
