// Package client is a small WebSocket client for the gateway.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Message is one reply or notification received from the gateway.
type Message struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// Decode unmarshals Params into v.
func (m Message) Decode(v any) error {
	return json.Unmarshal(m.Params, v)
}

type Client struct {
	Conn *websocket.Conn

	sendMu   sync.Mutex
	incoming chan Message
	closing  chan struct{}
	done     chan struct{}
	once     sync.Once
	err      error
}

// Dial connects to url, e.g. ws://localhost:9000/.
func Dial(ctx context.Context, url string) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := &Client{
		Conn:     conn,
		incoming: make(chan Message, 256),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.incoming)
	for {
		var msg Message
		if err := c.Conn.ReadJSON(&msg); err != nil {
			c.err = err
			return
		}
		select {
		case c.incoming <- msg:
		case <-c.closing:
			return
		}
	}
}

// Send issues one command. With no params the gateway's "null" marker is sent.
func (c *Client) Send(method string, params ...any) error {
	if len(params) == 0 {
		params = []any{"null"}
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.Conn.WriteJSON(map[string]any{"method": method, "params": params})
}

// Next returns the next message, in arrival order.
func (c *Client) Next(ctx context.Context) (Message, error) {
	select {
	case msg, ok := <-c.incoming:
		if !ok {
			<-c.done
			return Message{}, fmt.Errorf("connection closed: %w", c.err)
		}
		return msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// Expect returns the next message with the given method, skipping others.
func (c *Client) Expect(ctx context.Context, method string) (Message, error) {
	for {
		msg, err := c.Next(ctx)
		if err != nil {
			return Message{}, err
		}
		if msg.Method == method {
			return msg, nil
		}
	}
}

// Close sends a normal close frame and closes the socket.
func (c *Client) Close() error {
	c.once.Do(func() { close(c.closing) })
	c.sendMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	c.Conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.sendMu.Unlock()
	err := c.Conn.Close()
	<-c.done
	return err
}
