package httpclient

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"envanter/internal/apperr"
	"envanter/internal/models"
)

// Subscribe opens the /auth/events websocket for token's session. The
// returned channel closes when ctx is done or the server ends the stream.
func (c *Client) Subscribe(ctx context.Context, token string) (<-chan models.AuthEvent, error) {
	const op = "remote.Subscribe"

	wsURL := c.baseURL + "/auth/events"
	switch {
	case strings.HasPrefix(wsURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(wsURL, "https://")
	case strings.HasPrefix(wsURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(wsURL, "http://")
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.http.Timeout}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			se := &statusError{Status: resp.StatusCode, Message: err.Error()}
			if errors.Is(err, websocket.ErrBadHandshake) {
				return nil, apperr.New(kindFor(se), op, se)
			}
		}
		c.logger.Warn("auth stream dial failed", "error", err)
		return nil, apperr.Transport(op, err)
	}

	out := make(chan models.AuthEvent)
	done := make(chan struct{})

	// Closing the connection is what unblocks the reader on cancellation.
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		conn.Close()
	}()

	go func() {
		defer close(out)
		defer close(done)
		for {
			var ev models.AuthEvent
			if err := conn.ReadJSON(&ev); err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.logger.Debug("auth stream ended", "error", err)
				}
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
