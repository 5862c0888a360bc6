package metric

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m := New()

	m.RecordCommand("digital_write", "ok")
	m.RecordCommand("digital_write", "ok")
	m.RecordCommand("unknown", "unknown_method")
	m.RecordReply("analog_read_reply")
	m.RecordNotification("digital_message_reply")
	m.RecordMalformed()
	m.RecordDropped("closed")
	m.RecordConnection("busy")
	m.SetConnectionState(2)
	m.ObserveDeviceCall("analog_read", time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CommandsTotal.WithLabelValues("digital_write", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandsTotal.WithLabelValues("unknown", "unknown_method")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RepliesTotal.WithLabelValues("analog_read_reply")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("digital_message_reply")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MalformedPayloads))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DroppedMessages.WithLabelValues("closed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConnectionsTotal.WithLabelValues("busy")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ConnectionState))
	assert.Equal(t, 1, testutil.CollectAndCount(m.DeviceCallDuration))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordCommand("x", "ok")
		m.RecordReply("x")
		m.RecordNotification("x")
		m.RecordMalformed()
		m.RecordDropped("x")
		m.RecordConnection("x")
		m.SetConnectionState(1)
		m.ObserveDeviceCall("x", time.Now())
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.RecordCommand("analog_read", "ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `gateway_commands_total{method="analog_read",result="ok"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
