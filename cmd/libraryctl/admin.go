package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ovaphlow/pitchfork/service-library/internal/person"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Grant or revoke the administrator role",
	}
	cmd.AddCommand(adminRoleCmd("grant", true), adminRoleCmd("revoke", false))
	return cmd
}

func adminRoleCmd(use string, admin bool) *cobra.Command {
	return &cobra.Command{
		Use:     use + " <email>",
		Short:   use + " administrator access for the person with <email>",
		Example: "  libraryctl admin " + use + " mario.rossi@example.com",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := svc.People.SetAdminByEmail(cmd.Context(), args[0], admin)
			if errors.Is(err, person.ErrNotFound) {
				return fmt.Errorf("no person with email %q; the account must sign in once first", args[0])
			}
			if err != nil {
				return err
			}
			if admin {
				ok("%s is now an administrator", args[0])
			} else {
				ok("%s is no longer an administrator", args[0])
			}
			return nil
		},
	}
}
