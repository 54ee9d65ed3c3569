package cli

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/dukerupert/menuboard/internal/model"
	ws "github.com/dukerupert/menuboard/internal/websocket"
	"github.com/spf13/cobra"
)

// NewNotificationsCommand creates the notifications command group.
func NewNotificationsCommand(rootOpts *RootOptions) *cobra.Command {
	var flags deviceFlags

	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Admin notifications",
	}
	cmd.PersistentFlags().StringVar(&flags.APIURL, "api-url", "", "API base URL")
	cmd.PersistentFlags().StringVar(&flags.APIKey, "api-key", "", "service API key")

	cmd.AddCommand(&cobra.Command{
		Use:   "watch",
		Short: "Print admin notification changes as they happen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client := flags.client(rootOpts)
			out := cmd.OutOrStdout()
			return ws.Subscribe(ctx, client.FeedURL(), client.Header(), func(m ws.Message) {
				if rootOpts.Format == "json" {
					json.NewEncoder(out).Encode(m)
					return
				}
				fmt.Fprintln(out, formatChange(m))
			})
		},
	})

	return cmd
}

// formatChange renders one change feed message as a line of text.
func formatChange(m ws.Message) string {
	switch m.Event {
	case ws.EventInsert, ws.EventUpdate:
		var n model.AdminNotification
		data, _ := json.Marshal(m.Record)
		if err := json.Unmarshal(data, &n); err == nil && n.ID != "" {
			state := "unread"
			if n.Read {
				state = "read"
			}
			return fmt.Sprintf("%s %s [%s] %s: %s (%s)", m.Event, n.ID, n.Kind, n.Title, n.Message, state)
		}
		return fmt.Sprintf("%s %s", m.Event, m.Table)
	case ws.EventDelete:
		if m.OldID == "" {
			return fmt.Sprintf("%s %s", m.Event, m.Table)
		}
		return fmt.Sprintf("%s %s", m.Event, m.OldID)
	default:
		return m.Type
	}
}
