package cli

import (
	"fmt"
	"io"

	"github.com/dukerupert/menuboard/internal/model"
	"github.com/spf13/cobra"
)

// NewDispatchCommand creates the dispatch command.
func NewDispatchCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		flags  deviceFlags
		change model.StatusChange
	)

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Notify a customer of an order status change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := flags.client(rootOpts).Dispatch(cmd.Context(), change)
			if err != nil {
				return err
			}
			return rootOpts.print(cmd.OutOrStdout(), res, func(w io.Writer) {
				switch {
				case res.Success && res.Message == "":
					fmt.Fprintln(w, "notification sent")
				case res.Success:
					fmt.Fprintln(w, res.Message)
				default:
					fmt.Fprintf(w, "not sent: %s\n", res.Message)
				}
			})
		},
	}

	cmd.Flags().StringVar(&change.OrderID, "order", "", "order ID")
	cmd.Flags().StringVar(&change.NewStatus, "status", "", "new order status (required)")
	cmd.Flags().StringVarP(&change.EstablishmentID, "establishment", "e", "", "establishment ID (required)")
	cmd.Flags().StringVar(&change.CustomerPhone, "phone", "", "customer phone (required)")
	cmd.Flags().StringVar(&change.EstablishmentName, "name", "", "establishment display name")
	cmd.Flags().StringVar(&flags.APIURL, "api-url", "", "API base URL")
	cmd.Flags().StringVar(&flags.APIKey, "api-key", "", "API key")
	cmd.MarkFlagRequired("status")
	cmd.MarkFlagRequired("establishment")
	cmd.MarkFlagRequired("phone")

	return cmd
}
