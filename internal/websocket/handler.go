package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"
)

// HandleWebSocket returns an HTTP handler that upgrades connections to WebSocket
// and streams the changes of table to them.
func HandleWebSocket(hub *Hub, table string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // dashboards are served from other origins
		})
		if err != nil {
			logger.Error("websocket accept", "table", table, "error", err)
			return
		}

		logger.Debug("websocket connected", "table", table, "remote", r.RemoteAddr)
		client := NewClient(hub, conn, table)
		client.Run(r.Context())
	}
}
