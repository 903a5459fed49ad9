package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/coder/websocket"
)

// maxFrameBytes bounds one notification; documents carry base64 images.
const maxFrameBytes = 32 << 20

// Client is a WebSocket subscription to one owner's document.
type Client struct {
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Dial subscribes to owner's notifications at baseURL (ws:// or wss://) and
// returns once the hub has accepted the subscription. fn is called from the
// client's read goroutine for every document message.
func Dial(ctx context.Context, baseURL, owner, token string, fn func(Message)) (*Client, error) {
	u := fmt.Sprintf("%s/ws?owner=%s", baseURL, url.QueryEscape(owner))
	opts := &websocket.DialOptions{HTTPHeader: http.Header{}}
	if token != "" {
		opts.HTTPHeader.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := websocket.Dial(ctx, u, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", owner, err)
	}
	conn.SetReadLimit(maxFrameBytes)

	_, data, err := conn.Read(ctx)
	if err != nil {
		_ = conn.Close(websocket.StatusInternalError, "")
		return nil, fmt.Errorf("failed to read subscription greeting: %w", err)
	}
	var hello Message
	if err := json.Unmarshal(data, &hello); err != nil || hello.Type != MessageTypeHello {
		_ = conn.Close(websocket.StatusProtocolError, "")
		return nil, fmt.Errorf("unexpected subscription greeting")
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	c := &Client{conn: conn, cancel: cancel, done: make(chan struct{})}
	go c.readLoop(loopCtx, fn)
	return c, nil
}

func (c *Client) readLoop(ctx context.Context, fn func(Message)) {
	defer close(c.done)
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == MessageTypeDocument && msg.Document != nil {
			fn(msg)
		}
	}
}

// Done is closed when the subscription ends for any reason.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close ends the subscription and waits for the read goroutine.
func (c *Client) Close() {
	c.once.Do(func() {
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
		c.cancel()
		<-c.done
	})
}
