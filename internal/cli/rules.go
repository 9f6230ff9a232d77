package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lifesync/lifesync/internal/automation"
)

// NewRulesCommand creates the rules command group.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and prune automation rules",
	}
	cmd.AddCommand(newRulesListCommand(rootOpts))
	cmd.AddCommand(newRulesPruneCommand(rootOpts))
	return cmd
}

func newRulesListCommand(rootOpts *RootOptions) *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print a user's automation rules as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID <= 0 {
				return errors.New("--user must be a positive user id")
			}
			_, store, closeStores, err := openStores(cmd.Context(), rootOpts.Config)
			if err != nil {
				return err
			}
			defer closeStores()

			rules, err := automation.NewRuleStore(store).List(cmd.Context(), userID)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rules)
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "user id")
	cmd.MarkFlagRequired("user")
	return cmd
}

func newRulesPruneCommand(rootOpts *RootOptions) *cobra.Command {
	var userID int64
	var before string

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete a user's rules created before a point in time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID <= 0 {
				return errors.New("--user must be a positive user id")
			}
			cutoff, err := time.Parse(time.RFC3339, before)
			if err != nil {
				return fmt.Errorf("--before: %w", err)
			}
			_, store, closeStores, err := openStores(cmd.Context(), rootOpts.Config)
			if err != nil {
				return err
			}
			defer closeStores()

			n, err := automation.NewRuleStore(store).PruneBefore(cmd.Context(), userID, cutoff)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d rules\n", n)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "user id")
	cmd.Flags().StringVar(&before, "before", "", "RFC3339 cutoff; older rules are deleted")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("before")
	return cmd
}
