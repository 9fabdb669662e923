package app

import (
	"context"
	"fmt"

	"market-eye/internal/storage"
)

// Migrate applies the embedded database migrations.
func (a *App) Migrate(ctx context.Context) error {
	if a.Config.Database.DSN == "" {
		return fmt.Errorf("cannot migrate: %w", storage.ErrNotConfigured)
	}

	version, err := storage.Migrate(ctx, a.Config.Database.DSN)
	if err != nil {
		return err
	}

	a.Logger.Info().Int64("version", version).Msg("database schema up to date")
	fmt.Fprintf(a.Out, "schema version %d\n", version)
	return nil
}
