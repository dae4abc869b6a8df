package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agrovault/trialbase/pkg/commands"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "trialbase",
		Short:         "TrialBase operations tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(commands.NewUtilityCommands()...)
	return cmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
