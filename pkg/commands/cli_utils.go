package commands

import (
	"github.com/spf13/cobra"

	"github.com/agrovault/trialbase/modules"
)

// NewUtilityCommands creates the operational commands (serve, migrate,
// seed).
func NewUtilityCommands() []*cobra.Command {
	return []*cobra.Command{
		newServeCmd(),
		newMigrateCmd(),
		newSeedCmd(),
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Serve(modules.BuiltInModules...)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate [up|down]",
		Short: "Apply or roll back the database schema",
		Long:  `Applies the schema registered by every built-in module, or rolls it back with "down".`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := "up"
			if len(args) == 1 {
				direction = args[0]
			}
			return Migrate(direction, modules.BuiltInModules...)
		},
	}
	return cmd
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the database with reference data",
		Long:  `Populates the catalog with the bundled sites, species, cultivars, treatments and citations. Safe to re-run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return SeedDatabase(modules.BuiltInModules...)
		},
	}
}
