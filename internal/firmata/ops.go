package firmata

import (
	"context"
	"fmt"

	"pymata-gateway/internal/device"
	"pymata-gateway/internal/model"
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", model.ErrInvalidArguments, fmt.Sprintf(format, args...))
}

func checkPin(pin int) error {
	if pin < 0 || pin > 127 {
		return invalid("pin %d out of range", pin)
	}
	return nil
}

// SendReset issues a SYSTEM_RESET to the board.
func (b *Board) SendReset(ctx context.Context) error {
	return b.write([]byte{SystemReset})
}

// AnalogRead returns the last reported value of an analog channel.
func (b *Board) AnalogRead(ctx context.Context, pin int) (int, error) {
	if !b.Running() {
		return 0, model.ErrDeviceNotStarted
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.analog[pin], nil
}

// AnalogWrite sets a PWM or servo value, falling back to EXTENDED_ANALOG
// for pins above 15 or values wider than 14 bits.
func (b *Board) AnalogWrite(ctx context.Context, pin, value int) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	if value < 0 {
		return invalid("negative analog value %d", value)
	}
	if pin <= 15 && value < 1<<14 {
		return b.write([]byte{AnalogMessage | byte(pin), lsb(value), msb(value)})
	}
	data := []byte{byte(pin)}
	for v := value; ; v >>= 7 {
		data = append(data, lsb(v))
		if v>>7 == 0 {
			break
		}
	}
	return b.write(sysex(ExtendedAnalog, data...))
}

// DigitalRead returns the last reported value of a digital pin.
func (b *Board) DigitalRead(ctx context.Context, pin int) (int, error) {
	if !b.Running() {
		return 0, model.ErrDeviceNotStarted
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.digital[pin], nil
}

// DigitalWrite sets one output pin by rewriting its whole port.
func (b *Board) DigitalWrite(ctx context.Context, pin, value int) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	port := pin / 8
	if port >= maxPorts {
		return invalid("pin %d has no digital port", pin)
	}
	mask := 1 << (pin % 8)

	b.mu.Lock()
	if value != 0 {
		b.digitalOut[port] |= mask
	} else {
		b.digitalOut[port] &^= mask
	}
	state := b.digitalOut[port]
	b.mu.Unlock()

	return b.write([]byte{DigitalMessage | byte(port), lsb(state), msb(state)})
}

func (b *Board) EnableAnalogReporting(ctx context.Context, pin int, cb device.PinCallback) error {
	if pin < 0 || pin > 15 {
		return invalid("analog channel %d out of range", pin)
	}
	if cb != nil {
		b.analogCbs.Set(pin, cb)
	}
	return b.write([]byte{ReportAnalog | byte(pin), 1})
}

func (b *Board) DisableAnalogReporting(ctx context.Context, pin int) error {
	if pin < 0 || pin > 15 {
		return invalid("analog channel %d out of range", pin)
	}
	return b.write([]byte{ReportAnalog | byte(pin), 0})
}

func (b *Board) EnableDigitalReporting(ctx context.Context, pin int, cb device.PinCallback) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	if cb != nil {
		b.digitalCbs.Set(pin, cb)
	}
	return b.write([]byte{ReportDigital | byte(pin/8), 1})
}

func (b *Board) DisableDigitalReporting(ctx context.Context, pin int) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	return b.write([]byte{ReportDigital | byte(pin/8), 0})
}

// EncoderConfig attaches a FirmataPlus rotary encoder to two pins.
func (b *Board) EncoderConfig(ctx context.Context, pinA, pinB int, cb device.DataCallback) error {
	if err := checkPin(pinA); err != nil {
		return err
	}
	if err := checkPin(pinB); err != nil {
		return err
	}
	if cb != nil {
		b.encoderCbs.Set(pinA, cb)
	}
	b.mu.Lock()
	b.encoders[pinA] = 0
	b.mu.Unlock()
	return b.write(sysex(EncoderConfig, byte(pinA), byte(pinB)))
}

func (b *Board) EncoderRead(ctx context.Context, pin int) (int, error) {
	if !b.Running() {
		return 0, model.ErrDeviceNotStarted
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.encoders[pin]
	if !ok {
		return 0, model.ErrNoValue
	}
	return v, nil
}

// SonarConfig attaches a FirmataPlus HC-SR04 style sensor.
func (b *Board) SonarConfig(ctx context.Context, trigger, echo int, cb device.DataCallback, interval, maxDistance int) error {
	if err := checkPin(trigger); err != nil {
		return err
	}
	if err := checkPin(echo); err != nil {
		return err
	}
	if interval < 0 || interval > 127 {
		return invalid("ping interval %d out of range", interval)
	}
	if cb != nil {
		b.sonarCbs.Set(trigger, cb)
	}
	b.mu.Lock()
	b.sonars[trigger] = 0
	b.mu.Unlock()
	return b.write(sysex(SonarConfig, byte(trigger), byte(echo), byte(interval), lsb(maxDistance), msb(maxDistance)))
}

func (b *Board) SonarRead(ctx context.Context, trigger int) (int, error) {
	if !b.Running() {
		return 0, model.ErrDeviceNotStarted
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.sonars[trigger]
	if !ok {
		return 0, model.ErrNoValue
	}
	return v, nil
}

// AnalogLatchData returns the latch entry for pin. A latched entry is
// cleared once read.
func (b *Board) AnalogLatchData(ctx context.Context, pin int) (*device.LatchData, error) {
	return b.readLatch(b.analogLatches, b.analogLatchCbs, pin)
}

func (b *Board) DigitalLatchData(ctx context.Context, pin int) (*device.LatchData, error) {
	return b.readLatch(b.digitalLatches, b.digitalLatchCbs, pin)
}

func (b *Board) readLatch(latches map[int]*device.LatchData, cbs *device.Registry[device.LatchCallback], pin int) (*device.LatchData, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := latches[pin]
	if !ok {
		return nil, model.ErrNoValue
	}
	snapshot := *l
	if l.State == device.LatchLatched {
		delete(latches, pin)
		cbs.Remove(pin)
	}
	return &snapshot, nil
}

// SetAnalogLatch arms a one-shot latch on an analog channel.
func (b *Board) SetAnalogLatch(ctx context.Context, pin int, tt device.ThresholdType, threshold int, cb device.LatchCallback) error {
	if tt < device.ThresholdEQ || tt > device.ThresholdLTE {
		return invalid("threshold type %d", tt)
	}
	if threshold < 0 || threshold > 1023 {
		return invalid("analog threshold %d out of range", threshold)
	}
	b.mu.Lock()
	b.analogLatches[pin] = &device.LatchData{State: device.LatchArmed, ThresholdType: tt, Threshold: threshold}
	b.mu.Unlock()
	if cb != nil {
		b.analogLatchCbs.Set(pin, cb)
	}
	return nil
}

// SetDigitalLatch arms a one-shot latch that fires when pin equals threshold.
func (b *Board) SetDigitalLatch(ctx context.Context, pin, threshold int, cb device.LatchCallback) error {
	if threshold != 0 && threshold != 1 {
		return invalid("digital threshold %d", threshold)
	}
	b.mu.Lock()
	b.digitalLatches[pin] = &device.LatchData{State: device.LatchArmed, ThresholdType: device.ThresholdEQ, Threshold: threshold}
	b.mu.Unlock()
	if cb != nil {
		b.digitalLatchCbs.Set(pin, cb)
	}
	return nil
}

func (b *Board) AnalogMap(ctx context.Context) ([]int, error) {
	r, err := b.query(ctx, waitKey{kind: AnalogMappingResponse}, sysex(AnalogMappingQuery))
	if err != nil {
		return nil, err
	}
	return r.data, nil
}

func (b *Board) CapabilityReport(ctx context.Context) ([]int, error) {
	r, err := b.query(ctx, waitKey{kind: CapabilityResponse}, sysex(CapabilityQuery))
	if err != nil {
		return nil, err
	}
	return r.data, nil
}

// FirmwareVersion returns the cached firmware report, querying the board
// the first time.
func (b *Board) FirmwareVersion(ctx context.Context) (string, error) {
	if !b.Running() {
		return "", model.ErrDeviceNotStarted
	}
	b.mu.Lock()
	fw := b.firmware
	b.mu.Unlock()
	if fw != "" {
		return fw, nil
	}
	r, err := b.query(ctx, waitKey{kind: ReportFirmware}, sysex(ReportFirmware))
	if err != nil {
		return "", err
	}
	return r.text, nil
}

func (b *Board) ProtocolVersion(ctx context.Context) (string, error) {
	if !b.Running() {
		return "", model.ErrDeviceNotStarted
	}
	b.mu.Lock()
	pv := b.protocol
	b.mu.Unlock()
	if pv != "" {
		return pv, nil
	}
	r, err := b.query(ctx, waitKey{kind: ReportVersion}, []byte{ReportVersion})
	if err != nil {
		return "", err
	}
	return r.text, nil
}

func (b *Board) LibraryVersion(ctx context.Context) (string, error) {
	return Version, nil
}

// PinState returns [pin, mode, state] as reported by the board.
func (b *Board) PinState(ctx context.Context, pin int) ([]int, error) {
	if err := checkPin(pin); err != nil {
		return nil, err
	}
	r, err := b.query(ctx, waitKey{kind: PinStateResponse, id: pin}, sysex(PinStateQuery, byte(pin)))
	if err != nil {
		return nil, err
	}
	return r.data, nil
}

func (b *Board) I2CConfig(ctx context.Context, delay int) error {
	if delay < 0 {
		return invalid("negative i2c delay %d", delay)
	}
	return b.write(sysex(I2CConfig, lsb(delay), msb(delay)))
}

// I2CReadData returns the last reply from address as [address, register, data...].
func (b *Board) I2CReadData(ctx context.Context, address int) ([]int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.i2c[address]
	if !ok {
		return nil, model.ErrNoValue
	}
	return append([]int(nil), data...), nil
}

func (b *Board) I2CReadRequest(ctx context.Context, address, register, count int, mode device.I2CReadMode, cb device.DataCallback) error {
	if address < 0 || address > 127 {
		return invalid("i2c address %d out of range", address)
	}
	if cb != nil {
		b.i2cCbs.Set(address, cb)
	}
	return b.write(sysex(I2CRequest, byte(address), byte(mode)&0x7F,
		lsb(register), msb(register), lsb(count), msb(count)))
}

func (b *Board) I2CWriteRequest(ctx context.Context, address int, data []int) error {
	if address < 0 || address > 127 {
		return invalid("i2c address %d out of range", address)
	}
	payload := []byte{byte(address), byte(device.I2CWrite)}
	for _, v := range data {
		payload = append(payload, lsb(v), msb(v))
	}
	return b.write(sysex(I2CRequest, payload...))
}

// PlayTone starts a FirmataPlus tone, or stops it for ToneNoTone.
func (b *Board) PlayTone(ctx context.Context, pin int, cmd device.ToneCommand, frequency, duration int) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	if cmd == device.ToneTone {
		return b.write(sysex(ToneData, byte(device.ToneTone), byte(pin),
			lsb(frequency), msb(frequency), lsb(duration), msb(duration)))
	}
	return b.write(sysex(ToneData, byte(device.ToneNoTone), byte(pin)))
}

// SetPinMode configures a pin. Input and analog modes also enable
// reporting and register cb for the pin.
func (b *Board) SetPinMode(ctx context.Context, pin int, mode device.PinMode, cb device.PinCallback) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	switch mode {
	case device.ModeAnalog:
		wire := b.FirstAnalogPin() + pin
		if err := b.write([]byte{SetPinModeCmd, byte(wire), byte(mode)}); err != nil {
			return err
		}
		return b.EnableAnalogReporting(ctx, pin, cb)
	case device.ModeInput, device.ModePullup:
		if err := b.write([]byte{SetPinModeCmd, byte(pin), byte(mode)}); err != nil {
			return err
		}
		return b.EnableDigitalReporting(ctx, pin, cb)
	default:
		return b.write([]byte{SetPinModeCmd, byte(pin), byte(mode) & 0x7F})
	}
}

// SetSamplingInterval sets the analog sampling period in milliseconds.
func (b *Board) SetSamplingInterval(ctx context.Context, interval int) error {
	if interval < 1 || interval >= 1<<14 {
		return invalid("sampling interval %d out of range", interval)
	}
	return b.write(sysex(SamplingInterval, lsb(interval), msb(interval)))
}

func (b *Board) ServoConfig(ctx context.Context, pin, minPulse, maxPulse int) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	return b.write(sysex(ServoConfig, byte(pin), lsb(minPulse), msb(minPulse), lsb(maxPulse), msb(maxPulse)))
}

func (b *Board) StepperConfig(ctx context.Context, stepsPerRevolution int, pins []int) error {
	if len(pins) != 2 && len(pins) != 4 {
		return invalid("stepper needs 2 or 4 pins, got %d", len(pins))
	}
	data := []byte{stepperConfigure, lsb(stepsPerRevolution), msb(stepsPerRevolution)}
	for _, p := range pins {
		if err := checkPin(p); err != nil {
			return err
		}
		data = append(data, byte(p))
	}
	return b.write(sysex(StepperData, data...))
}

// StepperStep moves the motor; negative steps reverse direction.
func (b *Board) StepperStep(ctx context.Context, speed, steps int) error {
	direction := byte(0)
	if steps > 0 {
		direction = 1
	} else {
		steps = -steps
	}
	return b.write(sysex(StepperData, stepperStep,
		lsb(speed), msb(speed), byte((speed>>14)&0x7F),
		lsb(steps), msb(steps), direction))
}
