package ws

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Dialer opens authenticated websocket connections to the chat server.
type Dialer struct {
	URL    string
	dialer *websocket.Dialer
}

func NewDialer(url string, handshakeTimeout time.Duration) *Dialer {
	return &Dialer{
		URL: url,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

// Dial connects with the access token in the Authorization header.
func (d *Dialer) Dial(ctx context.Context, token string) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, res, err := d.dialer.DialContext(ctx, d.URL, header)
	if err != nil {
		if res != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", d.URL, err, res.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", d.URL, err)
	}
	return conn, nil
}
