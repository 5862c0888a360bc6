package firmata

import (
	"context"
	"fmt"
	"io"
	"time"

	"pymata-gateway/internal/infra/serial"
)

// AutoDetectPort is the port name that asks for serial autodetection.
const AutoDetectPort = "None"

// SerialDialer opens a serial port. An empty port or AutoDetectPort picks
// the first serial device found.
func SerialDialer(port string, baud int, poll time.Duration) Dialer {
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		dev := port
		if dev == "" || dev == AutoDetectPort {
			found, err := serial.Detect()
			if err != nil {
				return nil, fmt.Errorf("failed to detect serial port: %w", err)
			}
			dev = found
		}
		cfg := serial.DefaultConfig(dev)
		cfg.BaudRate = baud
		cfg.ReadTimeout = poll
		p, err := serial.Open(cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}
