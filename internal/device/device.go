// Package device defines the boundary between the gateway and a microcontroller.
package device

import (
	"context"
	"time"
)

// PinCallback receives a pin change.
type PinCallback func(pin, value int)

// LatchCallback receives a latch trigger with the time it fired.
type LatchCallback func(pin, value int, ts time.Time)

// DataCallback receives a raw data report (encoder, sonar, i2c).
type DataCallback func(data []int)

// PinMode is a Firmata pin mode.
type PinMode int

const (
	ModeInput   PinMode = 0x00
	ModeOutput  PinMode = 0x01
	ModeAnalog  PinMode = 0x02
	ModePWM     PinMode = 0x03
	ModeServo   PinMode = 0x04
	ModeI2C     PinMode = 0x06
	ModeOneWire PinMode = 0x07
	ModeStepper PinMode = 0x08
	ModeEncoder PinMode = 0x09
	ModeSerial  PinMode = 0x0A
	ModePullup  PinMode = 0x0B
	ModeSonar   PinMode = 0x0C
	ModeTone    PinMode = 0x0D
	ModeIgnore  PinMode = 0x7F
)

// I2CReadMode selects the kind of I2C read request.
type I2CReadMode int

const (
	I2CWrite            I2CReadMode = 0x00
	I2CRead             I2CReadMode = 0x08
	I2CReadContinuously I2CReadMode = 0x10
	I2CStopReading      I2CReadMode = 0x18
	I2CEndTxMask        I2CReadMode = 0x40
)

// ToneCommand starts or stops a tone.
type ToneCommand int

const (
	ToneTone   ToneCommand = 0
	ToneNoTone ToneCommand = 1
)

// ThresholdType compares a latched value against its threshold.
type ThresholdType int

const (
	ThresholdEQ ThresholdType = iota
	ThresholdGT
	ThresholdLT
	ThresholdGTE
	ThresholdLTE
)

// Met reports whether value satisfies the threshold.
func (t ThresholdType) Met(value, threshold int) bool {
	switch t {
	case ThresholdEQ:
		return value == threshold
	case ThresholdGT:
		return value > threshold
	case ThresholdLT:
		return value < threshold
	case ThresholdGTE:
		return value >= threshold
	case ThresholdLTE:
		return value <= threshold
	default:
		return false
	}
}

// LatchState is the arming state of a latch entry.
type LatchState int

const (
	LatchIgnore LatchState = iota
	LatchArmed
	LatchLatched
)

// LatchData is a snapshot of one latch entry.
type LatchData struct {
	State         LatchState
	ThresholdType ThresholdType
	Threshold     int
	Value         int
	Timestamp     time.Time
}

// Device is the microcontroller surface the gateway drives.
// Callbacks passed to Enable*/Set*/Config methods are invoked from the
// device's delivery goroutine, in arrival order, until superseded or the
// device shuts down.
type Device interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
	SendReset(ctx context.Context) error
	Running() bool

	AnalogRead(ctx context.Context, pin int) (int, error)
	AnalogWrite(ctx context.Context, pin, value int) error
	DigitalRead(ctx context.Context, pin int) (int, error)
	DigitalWrite(ctx context.Context, pin, value int) error

	EnableAnalogReporting(ctx context.Context, pin int, cb PinCallback) error
	DisableAnalogReporting(ctx context.Context, pin int) error
	EnableDigitalReporting(ctx context.Context, pin int, cb PinCallback) error
	DisableDigitalReporting(ctx context.Context, pin int) error

	EncoderConfig(ctx context.Context, pinA, pinB int, cb DataCallback) error
	EncoderRead(ctx context.Context, pin int) (int, error)
	SonarConfig(ctx context.Context, trigger, echo int, cb DataCallback, interval, maxDistance int) error
	SonarRead(ctx context.Context, trigger int) (int, error)

	AnalogLatchData(ctx context.Context, pin int) (*LatchData, error)
	DigitalLatchData(ctx context.Context, pin int) (*LatchData, error)
	SetAnalogLatch(ctx context.Context, pin int, tt ThresholdType, threshold int, cb LatchCallback) error
	SetDigitalLatch(ctx context.Context, pin, threshold int, cb LatchCallback) error

	AnalogMap(ctx context.Context) ([]int, error)
	CapabilityReport(ctx context.Context) ([]int, error)
	FirmwareVersion(ctx context.Context) (string, error)
	ProtocolVersion(ctx context.Context) (string, error)
	LibraryVersion(ctx context.Context) (string, error)
	PinState(ctx context.Context, pin int) ([]int, error)

	I2CConfig(ctx context.Context, delay int) error
	I2CReadData(ctx context.Context, address int) ([]int, error)
	I2CReadRequest(ctx context.Context, address, register, count int, mode I2CReadMode, cb DataCallback) error
	I2CWriteRequest(ctx context.Context, address int, data []int) error

	PlayTone(ctx context.Context, pin int, cmd ToneCommand, frequency, duration int) error
	SetPinMode(ctx context.Context, pin int, mode PinMode, cb PinCallback) error
	SetSamplingInterval(ctx context.Context, interval int) error
	ServoConfig(ctx context.Context, pin, minPulse, maxPulse int) error
	StepperConfig(ctx context.Context, stepsPerRevolution int, pins []int) error
	StepperStep(ctx context.Context, speed, steps int) error
}
