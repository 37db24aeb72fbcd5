package client

import (
	"context"
	"errors"
	"strings"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"trustreg/internal/registry"
)

// Event mirrors the frames pushed by the server's watch endpoint.
type Event struct {
	Name    string                 `json:"name"`
	Message registry.UpdateMessage `json:"message"`
}

// Watch streams committed values of name to fn until ctx ends, the server
// closes the stream, or fn returns an error.
func (c *Client) Watch(ctx context.Context, name string, fn func(Event) error) error {
	u := c.url("watch", name)
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}

	conn, _, err := websocket.Dial(ctx, u, nil)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	for {
		var ev Event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			if ctx.Err() != nil || websocket.CloseStatus(err) == websocket.StatusGoingAway ||
				websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return err
		}
		if err := fn(ev); err != nil {
			if errors.Is(err, ErrStopWatch) {
				return nil
			}
			return err
		}
	}
}

// ErrStopWatch may be returned by a Watch callback to end the stream cleanly.
var ErrStopWatch = errors.New("stop watching")
