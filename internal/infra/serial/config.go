package serial

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"
)

const (
	DefaultBaudRate    = 57600
	DefaultReadTimeout = time.Millisecond
)

var (
	ErrClosed = errors.New("serial: port closed")
	// ErrTimeout matches os.ErrDeadlineExceeded so callers can poll on it.
	ErrTimeout = fmt.Errorf("serial: read timed out: %w", os.ErrDeadlineExceeded)
)

// Config holds serial port configuration.
type Config struct {
	// Device path (e.g., /dev/ttyACM0)
	Device   string
	BaudRate int

	// ReadTimeout bounds one Read call; it is the polling granularity.
	ReadTimeout time.Duration

	RTSOnConnect bool
	DTROnConnect bool
}

// DefaultConfig returns a Config for an Arduino running StandardFirmata.
func DefaultConfig(device string) Config {
	return Config{
		Device:       device,
		BaudRate:     DefaultBaudRate,
		ReadTimeout:  DefaultReadTimeout,
		RTSOnConnect: true,
		DTROnConnect: true,
	}
}

// ListPorts returns candidate serial devices, sorted and de-duplicated.
func ListPorts() ([]string, error) {
	var patterns []string
	switch runtime.GOOS {
	case "linux":
		patterns = []string{
			"/dev/ttyACM*",
			"/dev/ttyUSB*",
			"/dev/serial/by-id/*",
		}
	case "darwin":
		patterns = []string{
			"/dev/tty.usbmodem*",
			"/dev/tty.usbserial*",
			"/dev/cu.usbmodem*",
			"/dev/cu.usbserial*",
		}
	default:
		return nil, fmt.Errorf("serial: unsupported platform %s", runtime.GOOS)
	}
	return globPorts(patterns), nil
}

func globPorts(patterns []string) []string {
	seen := make(map[string]bool)
	var ports []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		for _, m := range matches {
			resolved, err := filepath.EvalSymlinks(m)
			if err != nil {
				resolved = m
			}
			if !seen[resolved] {
				seen[resolved] = true
				ports = append(ports, resolved)
			}
		}
	}
	sort.Strings(ports)
	return ports
}

// Detect returns the first available serial device.
func Detect() (string, error) {
	ports, err := ListPorts()
	if err != nil {
		return "", err
	}
	if len(ports) == 0 {
		return "", errors.New("serial: no serial device found")
	}
	return ports[0], nil
}
