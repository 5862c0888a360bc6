package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pymata-gateway/internal/device"
	"pymata-gateway/internal/metric"
	"pymata-gateway/internal/model"
	"pymata-gateway/internal/repo"
)

// MessageSender delivers one outbound message on the active connection.
type MessageSender interface {
	Send(msg model.Message) error
}

// Service binds one device to at most one client connection at a time.
type Service struct {
	Device  device.Device
	Repo    repo.Repository
	Metrics *metric.Metrics

	log *slog.Logger

	mu     sync.Mutex
	state  model.ConnState
	connID string
	peer   string
}

// NewService creates the session service. Repo and metrics may be nil.
func NewService(dev device.Device, r repo.Repository, m *metric.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Device:  dev,
		Repo:    r,
		Metrics: m,
		log:     logger.With("component", "session"),
		state:   model.StateDisconnected,
	}
}

// Acquire reserves the session for a new connection. It fails with
// ErrSessionBusy while another connection holds it.
func (s *Service) Acquire(connID, peer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != model.StateDisconnected {
		s.Metrics.RecordConnection("busy")
		return fmt.Errorf("%w: held by %s (%s)", model.ErrSessionBusy, s.connID, s.state)
	}
	s.connID = connID
	s.peer = peer
	s.setStateLocked(model.StateConnecting)
	return nil
}

// Open starts the device if needed and resets it for the new client.
func (s *Service) Open(ctx context.Context, connID string) error {
	if !s.Device.Running() {
		if err := s.Device.Start(ctx); err != nil {
			return fmt.Errorf("failed to start device: %w", err)
		}
	}
	// A failed reset does not stop the connection from opening.
	if err := s.Device.SendReset(ctx); err != nil {
		s.log.Warn("device reset failed", "conn", connID, "err", err)
	}

	s.mu.Lock()
	peer := s.peer
	s.setStateLocked(model.StateOpen)
	s.mu.Unlock()

	s.Metrics.RecordConnection("accepted")
	if s.Repo != nil {
		if err := s.Repo.OpenSession(connID, peer, time.Now()); err != nil {
			s.log.Warn("journal open failed", "conn", connID, "err", err)
		}
	}
	s.log.Info("session opened", "conn", connID, "peer", peer)
	return nil
}

// Closing marks the session as shutting down; inbound messages stop being processed.
func (s *Service) Closing(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connID == connID {
		s.setStateLocked(model.StateClosing)
	}
}

// Close shuts the device down and releases the session.
func (s *Service) Close(ctx context.Context, connID, reason string, stats model.SessionStats) {
	s.mu.Lock()
	if s.connID != connID {
		s.mu.Unlock()
		return
	}
	s.setStateLocked(model.StateClosing)
	s.mu.Unlock()

	if err := s.Device.Shutdown(ctx); err != nil {
		s.log.Warn("device shutdown failed", "conn", connID, "err", err)
	}
	if s.Repo != nil {
		if err := s.Repo.CloseSession(connID, time.Now(), reason, stats); err != nil {
			s.log.Warn("journal close failed", "conn", connID, "err", err)
		}
	}

	s.mu.Lock()
	s.connID = ""
	s.peer = ""
	s.setStateLocked(model.StateDisconnected)
	s.mu.Unlock()
	s.log.Info("session closed", "conn", connID, "reason", reason,
		"commands", stats.Commands, "replies", stats.Replies, "notifications", stats.Notifications)
}

// Release frees a session that never reached Open.
func (s *Service) Release(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connID == connID {
		s.connID = ""
		s.peer = ""
		s.setStateLocked(model.StateDisconnected)
	}
}

// State returns the current connection state.
func (s *Service) State() model.ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Service) setStateLocked(st model.ConnState) {
	s.state = st
	s.Metrics.SetConnectionState(int(st))
}

// Status returns a snapshot for the HTTP status endpoint.
func (s *Service) Status() model.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.Status{
		State:         s.state.String(),
		ConnectionID:  s.connID,
		Peer:          s.peer,
		DeviceRunning: s.Device.Running(),
		Version:       model.Version,
	}
}

// Sessions lists journaled sessions, newest first.
func (s *Service) Sessions(limit int) ([]model.SessionRecord, error) {
	if s.Repo == nil {
		return nil, nil
	}
	return s.Repo.ListSessions(limit)
}
