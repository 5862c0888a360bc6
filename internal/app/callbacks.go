package app

import (
	"time"

	"pymata-gateway/internal/device"
)

// Notification methods, one per event family.
const (
	notifyDigital      = "digital_message_reply"
	notifyAnalog       = "analog_message_reply"
	notifyDigitalLatch = "digital_latch_data_reply"
	notifyAnalogLatch  = "analog_latch_data_reply"
	notifyEncoder      = "encoder_data_reply"
	notifySonar        = "sonar_data_reply"
	notifyI2C          = "i2c_read_request_reply"
)

// latchTimeLayout renders latch timestamps in local time.
const latchTimeLayout = "2006-01-02 15:04:05"

// Multiplexer builds the adapters handed to the device. Each adapter turns
// one raw event into one notification on the shared outbound channel.
type Multiplexer struct {
	notify func(method string, params any)
}

func newMultiplexer(notify func(method string, params any)) *Multiplexer {
	return &Multiplexer{notify: notify}
}

func (m *Multiplexer) Digital() device.PinCallback {
	return func(pin, value int) {
		m.notify(notifyDigital, []any{pin, value})
	}
}

func (m *Multiplexer) Analog() device.PinCallback {
	return func(pin, value int) {
		m.notify(notifyAnalog, []any{pin, value})
	}
}

func (m *Multiplexer) DigitalLatch() device.LatchCallback {
	return func(pin, value int, ts time.Time) {
		m.notify(notifyDigitalLatch, []any{pin, value, ts.Local().Format(latchTimeLayout)})
	}
}

func (m *Multiplexer) AnalogLatch() device.LatchCallback {
	return func(pin, value int, ts time.Time) {
		m.notify(notifyAnalogLatch, []any{pin, value, ts.Local().Format(latchTimeLayout)})
	}
}

func (m *Multiplexer) Encoder() device.DataCallback {
	return m.data(notifyEncoder)
}

func (m *Multiplexer) Sonar() device.DataCallback {
	return m.data(notifySonar)
}

func (m *Multiplexer) I2C() device.DataCallback {
	return m.data(notifyI2C)
}

// data forwards the payload as delivered.
func (m *Multiplexer) data(method string) device.DataCallback {
	return func(data []int) {
		m.notify(method, data)
	}
}
