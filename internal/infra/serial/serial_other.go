//go:build !linux && !darwin

package serial

import (
	"fmt"
	"runtime"
)

// Port is unavailable on this platform.
type Port struct{}

func Open(cfg Config) (*Port, error) {
	return nil, fmt.Errorf("serial: unsupported platform %s", runtime.GOOS)
}

func (p *Port) Read(buf []byte) (int, error)  { return 0, ErrClosed }
func (p *Port) Write(buf []byte) (int, error) { return 0, ErrClosed }
func (p *Port) Close() error                  { return nil }
func (p *Port) Device() string                { return "" }
