package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Handler processes a received envelope. Return nil to send no reply.
type Handler func(env Envelope) (*Envelope, error)

// Connection is one live link to the game server. Handlers must be
// registered before ReadLoop starts.
type Connection struct {
	ws       *websocket.Conn
	handlers map[string]Handler
	writeMu  sync.Mutex
	closed   sync.Once
	closeErr error
}

// Dial opens a websocket to the game server.
func Dial(ctx context.Context, url string, timeout time.Duration) (*Connection, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ws, resp, err := dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewConnection(ws, nil), nil
}

func NewConnection(ws *websocket.Conn, handlers map[string]Handler) *Connection {
	if handlers == nil {
		handlers = make(map[string]Handler)
	}
	ws.SetReadLimit(maxMessageSize)
	return &Connection{
		ws:       ws,
		handlers: handlers,
	}
}

func (c *Connection) RegisterHandler(msgType string, handler Handler) {
	c.handlers[msgType] = handler
}

func (c *Connection) Send(msgType string, data any) error {
	env, err := NewEnvelope(msgType, data)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return WriteEnvelope(c.ws, env)
}

// ReadLoop blocks until the connection closes or errors. A clean close by
// either side returns nil.
func (c *Connection) ReadLoop() error {
	for {
		env, err := ReadEnvelope(c.ws)
		if err != nil {
			if isClosed(err) {
				slog.Info("connection closed")
				return nil
			}
			slog.Info("connection read ended", "error", err)
			return err
		}

		handler, ok := c.handlers[env.Type]
		if !ok {
			slog.Warn("no handler for message type", "type", env.Type)
			continue
		}

		resp, err := handler(env)
		if err != nil {
			slog.Error("handler error", "type", env.Type, "error", err)
			continue
		}

		if resp != nil {
			c.writeMu.Lock()
			err := WriteEnvelope(c.ws, *resp)
			c.writeMu.Unlock()
			if err != nil {
				slog.Error("failed to send response", "type", resp.Type, "error", err)
				return err
			}
			slog.Debug("sent response", "type", resp.Type)
		}
	}
}

// Close sends a close frame and releases the socket. Safe to call more than once.
func (c *Connection) Close() error {
	c.closed.Do(func() {
		c.writeMu.Lock()
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

func isClosed(err error) bool {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		switch ce.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
			return true
		}
		return false
	}
	return errors.Is(err, net.ErrClosed)
}
