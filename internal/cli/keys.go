package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lifesync/lifesync/internal/database"
	"github.com/lifesync/lifesync/internal/store"
)

// NewKeysCommand creates the keys command group.
func NewKeysCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys",
	}
	cmd.AddCommand(newKeysCreateCommand(rootOpts))
	return cmd
}

func newKeysCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key for a user",
		Long:  "Create an API key for a user. The token is printed once and cannot be recovered.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID <= 0 {
				return errors.New("--user must be a positive user id")
			}
			db, err := database.Open(rootOpts.Config.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			token, key, err := store.NewAPIKeyStore(db).Create(cmd.Context(), userID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "created key %s for user %d\n", key.Prefix, userID)
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "user id that owns the key")
	cmd.MarkFlagRequired("user")
	return cmd
}
