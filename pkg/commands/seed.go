package commands

import (
	"context"
	"fmt"

	"github.com/agrovault/trialbase/pkg/application"
	"github.com/agrovault/trialbase/pkg/commands/common"
	"github.com/agrovault/trialbase/pkg/composables"
)

// SeedDatabase runs migrations and the seed functions every module
// registered. Seeders run inside one transaction so a failed seed
// leaves the database untouched.
func SeedDatabase(mods ...application.Module) error {
	ctx := context.Background()

	app, pool, err := common.NewApplicationWithDefaults(mods...)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer pool.Close()

	if err := app.Migrations().Run(); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	seedCtx := composables.WithTx(composables.WithPool(ctx, pool), tx)
	if err := app.Seed(seedCtx); err != nil {
		return fmt.Errorf("failed to seed database: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit seed transaction: %w", err)
	}
	return nil
}
