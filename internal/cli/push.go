package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lifesync/lifesync/internal/push"
)

// NewPushCommand creates the push command group.
func NewPushCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Web push utilities",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "vapid-keys",
		Short: "Generate a VAPID key pair in .env format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, priv, err := push.GenerateVAPIDKeys()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "LIFESYNC_VAPID_PUBLIC_KEY=%s\nLIFESYNC_VAPID_PRIVATE_KEY=%s\n", pub, priv)
			return nil
		},
	})
	return cmd
}
