package cli

import (
	"fmt"
	"io"

	"github.com/dukerupert/menuboard/internal/push"
	"github.com/spf13/cobra"
)

// NewVAPIDKeysCommand creates the vapid-keys command.
func NewVAPIDKeysCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "vapid-keys",
		Short: "Generate a VAPID key pair for push notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, priv, err := push.GenerateVAPIDKeys()
			if err != nil {
				return err
			}
			keys := map[string]string{"public_key": pub, "private_key": priv}
			return rootOpts.print(cmd.OutOrStdout(), keys, func(w io.Writer) {
				fmt.Fprintf(w, "MENUBOARD_VAPID_PUBLIC_KEY=%s\n", pub)
				fmt.Fprintf(w, "MENUBOARD_VAPID_PRIVATE_KEY=%s\n", priv)
			})
		},
	}
}
