package app

import (
	"context"

	"pymata-gateway/internal/device"

	"github.com/stretchr/testify/mock"
)

// mockDevice is a testify double for device.Device.
type mockDevice struct {
	mock.Mock
}

var _ device.Device = (*mockDevice)(nil)

func (m *mockDevice) Start(ctx context.Context) error {
	return m.Called().Error(0)
}

func (m *mockDevice) Shutdown(ctx context.Context) error {
	return m.Called().Error(0)
}

func (m *mockDevice) SendReset(ctx context.Context) error {
	return m.Called().Error(0)
}

func (m *mockDevice) Running() bool {
	return m.Called().Bool(0)
}

func (m *mockDevice) AnalogRead(ctx context.Context, pin int) (int, error) {
	args := m.Called(pin)
	return args.Int(0), args.Error(1)
}

func (m *mockDevice) AnalogWrite(ctx context.Context, pin, value int) error {
	return m.Called(pin, value).Error(0)
}

func (m *mockDevice) DigitalRead(ctx context.Context, pin int) (int, error) {
	args := m.Called(pin)
	return args.Int(0), args.Error(1)
}

func (m *mockDevice) DigitalWrite(ctx context.Context, pin, value int) error {
	return m.Called(pin, value).Error(0)
}

func (m *mockDevice) EnableAnalogReporting(ctx context.Context, pin int, cb device.PinCallback) error {
	return m.Called(pin, cb).Error(0)
}

func (m *mockDevice) DisableAnalogReporting(ctx context.Context, pin int) error {
	return m.Called(pin).Error(0)
}

func (m *mockDevice) EnableDigitalReporting(ctx context.Context, pin int, cb device.PinCallback) error {
	return m.Called(pin, cb).Error(0)
}

func (m *mockDevice) DisableDigitalReporting(ctx context.Context, pin int) error {
	return m.Called(pin).Error(0)
}

func (m *mockDevice) EncoderConfig(ctx context.Context, pinA, pinB int, cb device.DataCallback) error {
	return m.Called(pinA, pinB, cb).Error(0)
}

func (m *mockDevice) EncoderRead(ctx context.Context, pin int) (int, error) {
	args := m.Called(pin)
	return args.Int(0), args.Error(1)
}

func (m *mockDevice) SonarConfig(ctx context.Context, trigger, echo int, cb device.DataCallback, interval, maxDistance int) error {
	return m.Called(trigger, echo, cb, interval, maxDistance).Error(0)
}

func (m *mockDevice) SonarRead(ctx context.Context, trigger int) (int, error) {
	args := m.Called(trigger)
	return args.Int(0), args.Error(1)
}

func (m *mockDevice) AnalogLatchData(ctx context.Context, pin int) (*device.LatchData, error) {
	args := m.Called(pin)
	data, _ := args.Get(0).(*device.LatchData)
	return data, args.Error(1)
}

func (m *mockDevice) DigitalLatchData(ctx context.Context, pin int) (*device.LatchData, error) {
	args := m.Called(pin)
	data, _ := args.Get(0).(*device.LatchData)
	return data, args.Error(1)
}

func (m *mockDevice) SetAnalogLatch(ctx context.Context, pin int, tt device.ThresholdType, threshold int, cb device.LatchCallback) error {
	return m.Called(pin, tt, threshold, cb).Error(0)
}

func (m *mockDevice) SetDigitalLatch(ctx context.Context, pin, threshold int, cb device.LatchCallback) error {
	return m.Called(pin, threshold, cb).Error(0)
}

func (m *mockDevice) AnalogMap(ctx context.Context) ([]int, error) {
	return m.ints(m.Called())
}

func (m *mockDevice) CapabilityReport(ctx context.Context) ([]int, error) {
	return m.ints(m.Called())
}

func (m *mockDevice) FirmwareVersion(ctx context.Context) (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *mockDevice) ProtocolVersion(ctx context.Context) (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *mockDevice) LibraryVersion(ctx context.Context) (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *mockDevice) PinState(ctx context.Context, pin int) ([]int, error) {
	return m.ints(m.Called(pin))
}

func (m *mockDevice) I2CConfig(ctx context.Context, delay int) error {
	return m.Called(delay).Error(0)
}

func (m *mockDevice) I2CReadData(ctx context.Context, address int) ([]int, error) {
	return m.ints(m.Called(address))
}

func (m *mockDevice) I2CReadRequest(ctx context.Context, address, register, count int, mode device.I2CReadMode, cb device.DataCallback) error {
	return m.Called(address, register, count, mode, cb).Error(0)
}

func (m *mockDevice) I2CWriteRequest(ctx context.Context, address int, data []int) error {
	return m.Called(address, data).Error(0)
}

func (m *mockDevice) PlayTone(ctx context.Context, pin int, cmd device.ToneCommand, frequency, duration int) error {
	return m.Called(pin, cmd, frequency, duration).Error(0)
}

func (m *mockDevice) SetPinMode(ctx context.Context, pin int, mode device.PinMode, cb device.PinCallback) error {
	return m.Called(pin, mode, cb).Error(0)
}

func (m *mockDevice) SetSamplingInterval(ctx context.Context, interval int) error {
	return m.Called(interval).Error(0)
}

func (m *mockDevice) ServoConfig(ctx context.Context, pin, minPulse, maxPulse int) error {
	return m.Called(pin, minPulse, maxPulse).Error(0)
}

func (m *mockDevice) StepperConfig(ctx context.Context, stepsPerRevolution int, pins []int) error {
	return m.Called(stepsPerRevolution, pins).Error(0)
}

func (m *mockDevice) StepperStep(ctx context.Context, speed, steps int) error {
	return m.Called(speed, steps).Error(0)
}

func (m *mockDevice) ints(args mock.Arguments) ([]int, error) {
	data, _ := args.Get(0).([]int)
	return data, args.Error(1)
}
