package main

import (
	"errors"
	"fmt"

	"cheesecave/internal/repository"
	repodb "cheesecave/internal/repository/db"
	"cheesecave/internal/service"

	"github.com/spf13/cobra"
)

func newOperatorCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operator",
		Short: "Manage accounts allowed to use the remote panel",
	}
	cmd.AddCommand(newOperatorAddCommand(opts))
	return cmd
}

func newOperatorAddCommand(opts *rootOptions) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create an operator account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				return errors.New("--password is required")
			}
			db, err := repodb.InitDB(opts.settings.DB.Path)
			if err != nil {
				return fmt.Errorf("init sqlite: %w", err)
			}
			defer db.Close()

			auth := service.NewAuthService(repository.NewOperatorRepository(db), service.AuthConfig{})
			id, err := auth.SignUp(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			opts.log.Infow("operator_created", "id", id, "username", args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "operator %q created with id %d\n", args[0], id)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password for the new operator")
	return cmd
}
