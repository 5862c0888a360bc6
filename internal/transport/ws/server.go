package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"pymata-gateway/internal/app"
	"pymata-gateway/internal/model"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Server accepts WebSocket clients for the gateway. Only one client is
// served at a time; later handshakes get 409 until it leaves.
type Server struct {
	App          *app.Service
	Upgrader     websocket.Upgrader
	WriteTimeout time.Duration

	log      *slog.Logger
	mu       sync.Mutex
	handlers map[*Handler]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// NewServer creates a new WebSocket server.
func NewServer(svc *app.Service, writeTimeout time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		App:          svc,
		WriteTimeout: writeTimeout,
		Upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // browser clients are served from anywhere
			},
		},
		log:      logger.With("component", "ws"),
		handlers: make(map[*Handler]struct{}),
	}
}

// ServeHTTP handles the WebSocket handshake and connection.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	id := uuid.NewString()
	if err := s.App.Acquire(id, r.RemoteAddr); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, model.ErrSessionBusy) {
			status = http.StatusConflict
		}
		s.log.Warn("rejecting connection", "peer", r.RemoteAddr, "err", err)
		http.Error(w, err.Error(), status)
		return
	}

	conn, err := s.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.App.Release(id)
		s.App.Metrics.RecordConnection("upgrade_failed")
		s.log.Warn("upgrade failed", "peer", r.RemoteAddr, "err", err)
		return
	}

	// The hijacked request context ends with this handler, not the socket.
	ctx := context.WithoutCancel(r.Context())
	if err := s.App.Open(ctx, id); err != nil {
		s.App.Metrics.RecordConnection("device_failed")
		s.log.Error("device unavailable", "conn", id, "err", err)
		msg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "device unavailable")
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		conn.Close()
		s.App.Release(id)
		return
	}

	s.log.Info("new connection", "conn", id, "peer", r.RemoteAddr)
	h := NewHandler(conn, s.App, id, s.WriteTimeout, s.log)
	s.track(h)
	defer s.untrack(h)
	h.Loop()
}

func (s *Server) track(h *Handler) {
	s.mu.Lock()
	s.handlers[h] = struct{}{}
	closed := s.closed
	s.mu.Unlock()
	if closed {
		h.Close(reasonServerShutdown)
	}
}

func (s *Server) untrack(h *Handler) {
	s.mu.Lock()
	delete(s.handlers, h)
	s.mu.Unlock()
}

// Shutdown refuses new handshakes, closes the live session with a going
// away frame and waits for its teardown to be journaled. http.Server's
// own Shutdown does not wait for hijacked connections, so call this
// after it.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	live := make([]*Handler, 0, len(s.handlers))
	for h := range s.handlers {
		live = append(live, h)
	}
	s.mu.Unlock()

	for _, h := range live {
		h.Close(reasonServerShutdown)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
