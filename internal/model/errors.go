package model

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownMethod    = errors.New("unknown method")
	ErrInvalidArguments = errors.New("invalid arguments")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrDeviceFailure    = errors.New("device failure")
	ErrTransportFailure = errors.New("transport failure")
	ErrConnectionClosed = errors.New("connection closed")
	ErrSessionBusy      = errors.New("session busy")
	ErrDeviceNotStarted = errors.New("device not started")
	ErrNoValue          = errors.New("no value available")
	ErrQueueFull        = errors.New("command queue full")
)

// CommandError attaches the method name to a classified failure.
type CommandError struct {
	Method string
	Err    error
	Detail string
}

func (e *CommandError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %v: %s", e.Method, e.Err, e.Detail)
	}
	return fmt.Sprintf("%s: %v", e.Method, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError wraps err with the method that caused it.
func NewCommandError(method string, err error, detail string) *CommandError {
	return &CommandError{Method: method, Err: err, Detail: detail}
}

// Class returns a short label for err, used as a metric label.
func Class(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnknownMethod):
		return "unknown_method"
	case errors.Is(err, ErrInvalidArguments):
		return "invalid_arguments"
	case errors.Is(err, ErrMalformedPayload):
		return "malformed_payload"
	case errors.Is(err, ErrQueueFull):
		return "overloaded"
	case errors.Is(err, ErrConnectionClosed), errors.Is(err, ErrTransportFailure):
		return "transport"
	default:
		return "device"
	}
}
