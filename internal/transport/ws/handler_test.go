package ws

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pymata-gateway/internal/app"
	"pymata-gateway/internal/device"
	"pymata-gateway/internal/firmata"
	"pymata-gateway/internal/model"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloseReason(t *testing.T) {
	assert.Equal(t, "client closed", closeReason(&websocket.CloseError{Code: websocket.CloseNormalClosure}))
	assert.Equal(t, "client closed", closeReason(&websocket.CloseError{Code: websocket.CloseGoingAway}))
	assert.Equal(t, "close 1006", closeReason(&websocket.CloseError{Code: websocket.CloseAbnormalClosure}))
	assert.Equal(t, "transport error", closeReason(io.ErrUnexpectedEOF))
	assert.Equal(t, "transport error", closeReason(errors.New("boom")))
}

func TestServerRejectsPlainHTTP(t *testing.T) {
	sim := firmata.NewSimulator()
	svc := app.NewService(firmata.NewBoard(sim.Dial, firmata.Config{}, nil), nil, nil, nil)
	srv := httptest.NewServer(NewServer(svc, 0, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Disconnected", svc.State().String(), "failed upgrade releases the session")
}

// countingDevice counts Shutdown calls on a simulated board.
type countingDevice struct {
	device.Device
	shutdowns atomic.Int32
}

func (d *countingDevice) Shutdown(ctx context.Context) error {
	d.shutdowns.Add(1)
	return d.Device.Shutdown(ctx)
}

func (s *Server) live() []*Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Handler, 0, len(s.handlers))
	for h := range s.handlers {
		out = append(out, h)
	}
	return out
}

func TestHandlerShutdownRunsOnce(t *testing.T) {
	sim := firmata.NewSimulator()
	dev := &countingDevice{Device: firmata.NewBoard(sim.Dial, firmata.Config{QueryTimeout: time.Second}, nil)}
	svc := app.NewService(dev, nil, nil, nil)
	s := NewServer(svc, time.Second, nil)
	srv := httptest.NewServer(s)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return len(s.live()) == 1 }, 2*time.Second, 5*time.Millisecond)
	h := s.live()[0]

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				h.shutdown("transport error")
			} else {
				h.Close(reasonServerShutdown)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), dev.shutdowns.Load())
	assert.Equal(t, model.StateDisconnected, svc.State())
	assert.ErrorIs(t, h.Send(model.Message{Method: "digital_message_reply", Params: []any{4, 1}}), model.ErrConnectionClosed)
	require.Eventually(t, func() bool { return len(s.live()) == 0 }, 2*time.Second, 5*time.Millisecond)
}
