package commands

import (
	"fmt"

	"github.com/agrovault/trialbase/pkg/application"
	"github.com/agrovault/trialbase/pkg/commands/common"
)

// Migrate applies or rolls back the schema of all given modules.
// Direction is "up" or "down".
func Migrate(direction string, mods ...application.Module) error {
	app, pool, err := common.NewApplicationWithDefaults(mods...)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer pool.Close()

	switch direction {
	case "up":
		if err := app.Migrations().Run(); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
	case "down":
		if err := app.Migrations().Rollback(); err != nil {
			return fmt.Errorf("failed to roll back migrations: %w", err)
		}
	default:
		return fmt.Errorf("unknown migration direction %q (expected up|down)", direction)
	}
	return nil
}
