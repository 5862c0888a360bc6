package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"pymata-gateway/internal/app"
	"pymata-gateway/internal/model"

	"github.com/gorilla/websocket"
)

const (
	shutdownTimeout      = 5 * time.Second
	reasonServerShutdown = "server shutdown"
)

// Handler handles a single WebSocket connection.
type Handler struct {
	Conn   *websocket.Conn
	App    *app.Service
	Router *app.Router
	SendMu sync.Mutex

	id           string
	writeTimeout time.Duration
	log          *slog.Logger
	closed       atomic.Bool
	once         sync.Once
}

// NewHandler creates the handler for an accepted connection and its router.
func NewHandler(conn *websocket.Conn, svc *app.Service, id string, writeTimeout time.Duration, logger *slog.Logger) *Handler {
	h := &Handler{
		Conn:         conn,
		App:          svc,
		id:           id,
		writeTimeout: writeTimeout,
		log:          logger.With("conn", id, "peer", conn.RemoteAddr().String()),
	}
	h.Router = svc.NewRouter(h, h.log)
	return h
}

// Send implements app.MessageSender. Frames are encoded outside the lock so
// a bad payload never blocks other writers.
func (h *Handler) Send(msg model.Message) error {
	if h.closed.Load() {
		return model.ErrConnectionClosed
	}
	data, err := model.Encode(msg.Method, msg.Params)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrMalformedPayload, err)
	}

	h.SendMu.Lock()
	defer h.SendMu.Unlock()
	if h.closed.Load() {
		return model.ErrConnectionClosed
	}
	if h.writeTimeout > 0 {
		h.Conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	}
	if err := h.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %v", model.ErrTransportFailure, err)
	}
	return nil
}

// Loop reads frames until the peer goes away, then tears the session down.
func (h *Handler) Loop() {
	reason := "client closed"
	defer func() {
		h.shutdown(reason)
	}()

	for {
		kind, data, err := h.Conn.ReadMessage()
		if err != nil {
			reason = closeReason(err)
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				h.log.Warn("read error", "err", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			h.App.Metrics.RecordMalformed()
			h.log.Warn("ignoring non-text frame", "type", kind)
			continue
		}
		h.handleFrame(data)
	}
}

func (h *Handler) handleFrame(data []byte) {
	if h.App.State() != model.StateOpen {
		return
	}
	cmd, err := model.Decode(data)
	if err != nil {
		h.App.Metrics.RecordMalformed()
		h.log.Warn("ignoring malformed frame", "err", err)
		return
	}
	if err := h.Router.Dispatch(cmd); err != nil {
		h.log.Debug("command not dispatched", "method", cmd.Method, "err", err)
	}
}

// Close ends the session from the server side with a going away frame.
func (h *Handler) Close(reason string) {
	if !h.closed.Load() {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, reason)
		if err := h.Conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
			h.log.Debug("close frame not sent", "err", err)
		}
	}
	h.shutdown(reason)
}

// shutdown runs once per connection regardless of which side ended it.
func (h *Handler) shutdown(reason string) {
	h.once.Do(func() {
		h.App.Closing(h.id)
		h.closed.Store(true)
		h.Router.Close()

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		h.App.Close(ctx, h.id, reason, h.Router.Stats())

		h.SendMu.Lock()
		h.Conn.Close()
		h.SendMu.Unlock()
	})
}

func closeReason(err error) string {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		if ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway {
			return "client closed"
		}
		return fmt.Sprintf("close %d", ce.Code)
	}
	return "transport error"
}
