package main

import (
	"github.com/spf13/cobra"

	"github.com/ovaphlow/pitchfork/service-library/internal/schema"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables, indexes and triggers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := schema.Steps(db)
			if err := schema.Run(cmd.Context(), svc.Logger, steps); err != nil {
				return err
			}
			ok("schema up to date (%d tables)", len(steps))
			return nil
		},
	}
}
