package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	ws "github.com/coder/websocket"
)

// Subscribe dials a change feed at url and calls fn for every message until
// ctx is done or the server closes the connection. header carries the API key.
func Subscribe(ctx context.Context, url string, header http.Header, fn func(Message)) error {
	conn, resp, err := ws.Dial(ctx, url, &ws.DialOptions{HTTPHeader: header})
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial change feed: %s: %w", resp.Status, err)
		}
		return fmt.Errorf("dial change feed: %w", err)
	}
	defer conn.CloseNow()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil || ws.CloseStatus(err) == ws.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("read change feed: %w", err)
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return fmt.Errorf("decode change: %w", err)
		}
		fn(msg)
	}
}
