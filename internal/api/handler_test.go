package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pymata-gateway/internal/app"
	"pymata-gateway/internal/firmata"
	"pymata-gateway/internal/metric"
	"pymata-gateway/internal/model"
	"pymata-gateway/internal/repo"
	"pymata-gateway/internal/transport/ws"
	"pymata-gateway/pkg/client"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 3 * time.Second

type gateway struct {
	sim     *firmata.Simulator
	board   *firmata.Board
	svc     *app.Service
	metrics *metric.Metrics
	ws      *ws.Server
	srv     *httptest.Server
	wsURL   string
}

func newGateway(t *testing.T) *gateway {
	t.Helper()
	gin.SetMode(gin.TestMode)

	journal, err := repo.NewSQLiteRepo(filepath.Join(t.TempDir(), "gateway.db"))
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })

	sim := firmata.NewSimulator()
	board := firmata.NewBoard(sim.Dial, firmata.Config{QueryTimeout: 2 * time.Second}, nil)
	m := metric.New()
	svc := app.NewService(board, journal, m, nil)

	wsServer := ws.NewServer(svc, time.Second, nil)
	engine := gin.New()
	NewHandler(svc, wsServer).SetupRoutes(engine)
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	t.Cleanup(func() { _ = board.Shutdown(context.Background()) })

	return &gateway{
		sim:     sim,
		board:   board,
		svc:     svc,
		metrics: m,
		ws:      wsServer,
		srv:     srv,
		wsURL:   "ws" + strings.TrimPrefix(srv.URL, "http") + "/",
	}
}

func (g *gateway) dial(t *testing.T) *client.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	c, err := client.Dial(ctx, g.wsURL)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return g.svc.State() == model.StateOpen }, waitFor, 5*time.Millisecond)
	return c
}

func expect(t *testing.T, c *client.Client, method string, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	msg, err := c.Expect(ctx, method)
	require.NoError(t, err)
	require.NoError(t, msg.Decode(v))
}

func TestGatewayRoundTrip(t *testing.T) {
	g := newGateway(t)
	c := g.dial(t)
	defer c.Close()

	assert.GreaterOrEqual(t, g.sim.Resets(), 1, "device is reset when a client connects")

	require.NoError(t, c.Send("get_firmware_version"))
	var fw string
	expect(t, c, "firmware_version_reply", &fw)
	assert.Equal(t, "2.5 FirmataPlus", fw)

	require.NoError(t, c.Send("set_pin_mode", "13", "1"))
	require.NoError(t, c.Send("digital_write", "13", "1"))
	assert.Eventually(t, func() bool { return g.sim.DigitalOutput(13) == 1 }, waitFor, 5*time.Millisecond)

	require.NoError(t, c.Send("get_pin_state", "13"))
	var state []int
	expect(t, c, "pin_state_reply", &state)
	assert.Equal(t, []int{13, 1, 1}, state)
}

func TestGatewayNotifications(t *testing.T) {
	g := newGateway(t)
	c := g.dial(t)
	defer c.Close()

	require.NoError(t, c.Send("set_pin_mode", "4", "0"))
	var ev []int
	expect(t, c, "digital_message_reply", &ev)
	assert.Equal(t, []int{4, 0}, ev)

	g.sim.SetDigitalInput(4, 1)
	expect(t, c, "digital_message_reply", &ev)
	assert.Equal(t, []int{4, 1}, ev)

	require.NoError(t, c.Send("digital_read", "4"))
	expect(t, c, "digital_read_reply", &ev)
	assert.Equal(t, []int{4, 1}, ev)
}

func TestGatewayIgnoresBadFrames(t *testing.T) {
	g := newGateway(t)
	c := g.dial(t)
	defer c.Close()

	require.NoError(t, c.Conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, c.Conn.WriteMessage(websocket.TextMessage, []byte(`{"method":"digital_write","params":"13"}`)))
	require.NoError(t, c.Conn.WriteMessage(websocket.BinaryMessage, []byte{0x90, 0x01}))
	require.NoError(t, c.Send("no_such_method", "1"))

	require.NoError(t, c.Send("get_pymata_version"))
	var version string
	expect(t, c, "pymata_version_reply", &version)
	assert.Equal(t, firmata.Version, version)
	assert.Equal(t, float64(3), testutil.ToFloat64(g.metrics.MalformedPayloads))
}

func TestGatewaySingleClient(t *testing.T) {
	g := newGateway(t)
	c := g.dial(t)

	_, resp, err := websocket.DefaultDialer.Dial(g.wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	require.NoError(t, c.Close())
	require.Eventually(t, func() bool { return g.svc.State() == model.StateDisconnected }, waitFor, 5*time.Millisecond)
	assert.False(t, g.board.Running())

	c2 := g.dial(t)
	defer c2.Close()
	assert.True(t, g.board.Running())
}

func TestGatewayShutdownClosesSession(t *testing.T) {
	g := newGateway(t)
	c := g.dial(t)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, g.ws.Shutdown(ctx))

	assert.Equal(t, model.StateDisconnected, g.svc.State())
	assert.False(t, g.board.Running())

	_, err := c.Next(ctx)
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, websocket.CloseGoingAway, ce.Code)

	sessions, err := g.svc.Sessions(5)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "server shutdown", sessions[0].CloseReason)
	assert.NotNil(t, sessions[0].ClosedAt)

	_, resp, err := websocket.DefaultDialer.Dial(g.wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHTTPEndpoints(t *testing.T) {
	g := newGateway(t)

	resp, err := http.Get(g.srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	c := g.dial(t)
	var st model.Status
	getJSON(t, g.srv.URL+"/status", &st)
	assert.Equal(t, "Open", st.State)
	assert.True(t, st.DeviceRunning)
	assert.Equal(t, model.Version, st.Version)

	require.NoError(t, c.Close())
	require.Eventually(t, func() bool { return g.svc.State() == model.StateDisconnected }, waitFor, 5*time.Millisecond)

	var sessions []model.SessionRecord
	getJSON(t, g.srv.URL+"/sessions?limit=5", &sessions)
	require.Len(t, sessions, 1)
	assert.Equal(t, st.ConnectionID, sessions[0].ID)
	assert.Equal(t, "client closed", sessions[0].CloseReason)

	resp, err = http.Get(g.srv.URL + "/sessions?limit=x")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(g.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}
