package app

import (
	"context"
	"path/filepath"
	"testing"

	"pymata-gateway/internal/metric"
	"pymata-gateway/internal/model"
	"pymata-gateway/internal/repo"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJournal(t *testing.T) *repo.SQLiteRepo {
	t.Helper()
	r, err := repo.NewSQLiteRepo(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestSessionLifecycle(t *testing.T) {
	dev := &mockDevice{}
	dev.On("Running").Return(false).Once()
	dev.On("Start").Return(nil).Once()
	dev.On("SendReset").Return(nil).Once()
	dev.On("Shutdown").Return(nil).Once()
	journal := newJournal(t)
	m := metric.New()
	svc := NewService(dev, journal, m, nil)
	ctx := context.Background()

	require.NoError(t, svc.Acquire("c1", "10.0.0.2:5000"))
	assert.Equal(t, model.StateConnecting, svc.State())

	require.NoError(t, svc.Open(ctx, "c1"))
	assert.Equal(t, model.StateOpen, svc.State())

	dev.On("Running").Return(true)
	st := svc.Status()
	assert.Equal(t, "Open", st.State)
	assert.Equal(t, "c1", st.ConnectionID)
	assert.True(t, st.DeviceRunning)

	svc.Close(ctx, "c1", "client closed", model.SessionStats{Commands: 4, Replies: 2})
	assert.Equal(t, model.StateDisconnected, svc.State())
	dev.AssertExpectations(t)

	sessions, err := svc.Sessions(10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "c1", sessions[0].ID)
	assert.Equal(t, "client closed", sessions[0].CloseReason)
	assert.Equal(t, int64(4), sessions[0].Commands)
	require.NotNil(t, sessions[0].ClosedAt)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ConnectionsTotal.WithLabelValues("accepted")))
}

func TestSecondConnectionIsBusy(t *testing.T) {
	m := metric.New()
	svc := NewService(&mockDevice{}, nil, m, nil)

	require.NoError(t, svc.Acquire("c1", "a"))
	err := svc.Acquire("c2", "b")
	assert.ErrorIs(t, err, model.ErrSessionBusy)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ConnectionsTotal.WithLabelValues("busy")))

	svc.Release("c2")
	assert.Equal(t, model.StateConnecting, svc.State(), "release by a non-holder is ignored")

	svc.Release("c1")
	assert.Equal(t, model.StateDisconnected, svc.State())
	assert.NoError(t, svc.Acquire("c2", "b"))
}

func TestOpenResetFailureStillOpens(t *testing.T) {
	dev := &mockDevice{}
	dev.On("Running").Return(true)
	dev.On("SendReset").Return(model.ErrDeviceFailure)
	svc := NewService(dev, nil, nil, nil)

	require.NoError(t, svc.Acquire("c1", "a"))
	require.NoError(t, svc.Open(context.Background(), "c1"))
	assert.Equal(t, model.StateOpen, svc.State())
	dev.AssertNotCalled(t, "Start")
}

func TestOpenStartFailure(t *testing.T) {
	dev := &mockDevice{}
	dev.On("Running").Return(false)
	dev.On("Start").Return(model.ErrDeviceFailure)
	svc := NewService(dev, nil, nil, nil)

	require.NoError(t, svc.Acquire("c1", "a"))
	err := svc.Open(context.Background(), "c1")
	assert.ErrorIs(t, err, model.ErrDeviceFailure)
	assert.Equal(t, model.StateConnecting, svc.State())
	dev.AssertNotCalled(t, "SendReset")
}

func TestCloseIgnoresStaleConnection(t *testing.T) {
	dev := &mockDevice{}
	svc := NewService(dev, nil, nil, nil)

	require.NoError(t, svc.Acquire("c1", "a"))
	svc.Close(context.Background(), "old", "client closed", model.SessionStats{})

	assert.Equal(t, model.StateConnecting, svc.State())
	dev.AssertNotCalled(t, "Shutdown")
}

func TestSessionsWithoutJournal(t *testing.T) {
	svc := NewService(&mockDevice{}, nil, nil, nil)
	sessions, err := svc.Sessions(5)
	assert.NoError(t, err)
	assert.Empty(t, sessions)
}
