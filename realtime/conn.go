package realtime

import (
	"context"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/pkg/errors"
)

// Conn is the transport seam for the notification channel. Production uses a
// websocket; tests substitute fakes.
type Conn interface {
	ReadJSON(ctx context.Context, v any) error
	WriteJSON(ctx context.Context, v any) error
	Close() error
}

type Dialer func(ctx context.Context, url string) (Conn, error)

// WebsocketDialer opens a websocket connection to the realtime endpoint.
func WebsocketDialer(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[WebsocketDialer] dial")
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

var _ Conn = (*wsConn)(nil)

func (c *wsConn) ReadJSON(ctx context.Context, v any) error {
	return wsjson.Read(ctx, c.conn, v)
}

func (c *wsConn) WriteJSON(ctx context.Context, v any) error {
	return wsjson.Write(ctx, c.conn, v)
}

func (c *wsConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "detach")
}
