package model

import "time"

// Version is the gateway release.
const Version = "1.0.0"

// NullToken is the single parameter a client sends for a zero-argument command.
const NullToken = "null"

// Sentinel values substituted into replies when the device has nothing to report.
const (
	SentinelUnknown = "Unknown"
	SentinelNone    = "None"
)

// Message is the wire envelope shared by commands, replies and notifications.
type Message struct {
	Method string `json:"method"`
	Params any    `json:"params"`
}

// Command is a decoded inbound message.
type Command struct {
	Method string
	Params []any
	// NoParams is set when the client sent the "null" token.
	NoParams bool
}

// ConnState represents the lifecycle state of a client connection.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting             // Handshake in progress
	StateOpen                   // Messages are dispatched
	StateClosing                // Device shutdown pending
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateOpen:
		return "Open"
	case StateClosing:
		return "Closing"
	default:
		return "Unknown"
	}
}

// SessionRecord is one journaled client connection.
type SessionRecord struct {
	ID            string     `json:"id"`
	Peer          string     `json:"peer"`
	OpenedAt      time.Time  `json:"opened_at"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
	CloseReason   string     `json:"close_reason,omitempty"`
	Commands      int64      `json:"commands"`
	Replies       int64      `json:"replies"`
	Notifications int64      `json:"notifications"`
	Dropped       int64      `json:"dropped"`
}

// SessionStats are the counters accumulated over a connection's lifetime.
type SessionStats struct {
	Commands      int64
	Replies       int64
	Notifications int64
	Dropped       int64
}

// Status is the gateway snapshot served on the HTTP status endpoint.
type Status struct {
	State         string `json:"state"`
	ConnectionID  string `json:"connection_id,omitempty"`
	Peer          string `json:"peer,omitempty"`
	DeviceRunning bool   `json:"device_running"`
	Version       string `json:"version"`
}
