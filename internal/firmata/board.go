package firmata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"pymata-gateway/internal/device"
	"pymata-gateway/internal/model"
)

// Dialer opens the byte stream to the board.
type Dialer func(ctx context.Context) (io.ReadWriteCloser, error)

// Config controls board start-up and query timing.
type Config struct {
	// Wait is how long Start waits for the board to reboot after the port opens.
	Wait time.Duration
	// QueryTimeout bounds every request/response exchange with the board.
	QueryTimeout time.Duration
}

type waitKey struct {
	kind byte
	id   int
}

type reply struct {
	data []int
	text string
}

// Board implements device.Device for a Firmata board.
type Board struct {
	dial Dialer
	cfg  Config
	log  *slog.Logger

	writeMu sync.Mutex

	mu             sync.Mutex
	conn           io.ReadWriteCloser
	running        bool
	done           chan struct{}
	firstAnalogPin int
	firmware       string
	protocol       string
	analog         map[int]int
	digital        map[int]int
	digitalSeen    map[int]bool
	digitalOut     [maxPorts]int
	encoders       map[int]int
	sonars         map[int]int
	i2c            map[int][]int
	analogLatches  map[int]*device.LatchData
	digitalLatches map[int]*device.LatchData
	waiters        map[waitKey][]chan reply

	analogCbs       *device.Registry[device.PinCallback]
	digitalCbs      *device.Registry[device.PinCallback]
	encoderCbs      *device.Registry[device.DataCallback]
	sonarCbs        *device.Registry[device.DataCallback]
	i2cCbs          *device.Registry[device.DataCallback]
	analogLatchCbs  *device.Registry[device.LatchCallback]
	digitalLatchCbs *device.Registry[device.LatchCallback]
}

var _ device.Device = (*Board)(nil)

// NewBoard creates a stopped board.
func NewBoard(dial Dialer, cfg Config, logger *slog.Logger) *Board {
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &Board{
		dial:            dial,
		cfg:             cfg,
		log:             logger.With("component", "firmata"),
		analogCbs:       device.NewRegistry[device.PinCallback](),
		digitalCbs:      device.NewRegistry[device.PinCallback](),
		encoderCbs:      device.NewRegistry[device.DataCallback](),
		sonarCbs:        device.NewRegistry[device.DataCallback](),
		i2cCbs:          device.NewRegistry[device.DataCallback](),
		analogLatchCbs:  device.NewRegistry[device.LatchCallback](),
		digitalLatchCbs: device.NewRegistry[device.LatchCallback](),
	}
	b.resetState()
	return b
}

// resetState clears cached board state. Caller holds mu or owns b exclusively.
func (b *Board) resetState() {
	b.firstAnalogPin = defaultFirstAnalogPin
	b.firmware = ""
	b.protocol = ""
	b.analog = make(map[int]int)
	b.digital = make(map[int]int)
	b.digitalSeen = make(map[int]bool)
	b.digitalOut = [maxPorts]int{}
	b.encoders = make(map[int]int)
	b.sonars = make(map[int]int)
	b.i2c = make(map[int][]int)
	b.analogLatches = make(map[int]*device.LatchData)
	b.digitalLatches = make(map[int]*device.LatchData)
	b.waiters = make(map[waitKey][]chan reply)
}

func (b *Board) resetCallbacks() {
	b.analogCbs.Reset()
	b.digitalCbs.Reset()
	b.encoderCbs.Reset()
	b.sonarCbs.Reset()
	b.i2cCbs.Reset()
	b.analogLatchCbs.Reset()
	b.digitalLatchCbs.Reset()
}

// Start opens the stream, starts the reader and learns the analog pin layout.
// Starting a running board is a no-op.
func (b *Board) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return nil
	}
	conn, err := b.dial(ctx)
	if err != nil {
		b.mu.Unlock()
		return fmt.Errorf("%w: failed to open board: %v", model.ErrDeviceFailure, err)
	}
	b.resetState()
	b.conn = conn
	b.running = true
	b.done = make(chan struct{})
	done := b.done
	b.mu.Unlock()

	go b.readLoop(conn, done)

	if b.cfg.Wait > 0 {
		b.log.Info("waiting for board", "wait", b.cfg.Wait)
		select {
		case <-time.After(b.cfg.Wait):
		case <-ctx.Done():
			b.Shutdown(context.Background())
			return ctx.Err()
		}
	}

	amap, err := b.AnalogMap(ctx)
	if err != nil {
		b.log.Warn("analog map unavailable, assuming default layout", "err", err)
		return nil
	}
	for pin, ch := range amap {
		if ch != noAnalogChannel {
			b.mu.Lock()
			b.firstAnalogPin = pin
			b.mu.Unlock()
			break
		}
	}
	b.log.Info("board started", "first_analog_pin", b.FirstAnalogPin())
	return nil
}

// Shutdown resets the board and closes the stream. It is idempotent and a
// stopped board can be started again.
func (b *Board) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return nil
	}
	b.running = false
	conn := b.conn
	done := b.done
	b.conn = nil
	for key, chans := range b.waiters {
		for _, ch := range chans {
			close(ch)
		}
		delete(b.waiters, key)
	}
	b.mu.Unlock()

	b.writeMu.Lock()
	_, werr := conn.Write([]byte{SystemReset})
	b.writeMu.Unlock()
	if werr != nil {
		b.log.Debug("reset on shutdown failed", "err", werr)
	}

	err := conn.Close()
	select {
	case <-done:
	case <-ctx.Done():
	}
	b.resetCallbacks()
	b.log.Info("board shut down")
	if err != nil {
		return fmt.Errorf("%w: close: %v", model.ErrDeviceFailure, err)
	}
	return nil
}

// Running reports whether the board stream is open.
func (b *Board) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// FirstAnalogPin is the digital pin number of analog channel 0.
func (b *Board) FirstAnalogPin() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.firstAnalogPin
}

func (b *Board) write(data []byte) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return model.ErrDeviceNotStarted
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("%w: write: %v", model.ErrDeviceFailure, err)
	}
	return nil
}

// query writes req and waits for the reply registered under key.
func (b *Board) query(ctx context.Context, key waitKey, req []byte) (reply, error) {
	ch := make(chan reply, 1)
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return reply{}, model.ErrDeviceNotStarted
	}
	b.waiters[key] = append(b.waiters[key], ch)
	b.mu.Unlock()

	if err := b.write(req); err != nil {
		b.dropWaiter(key, ch)
		return reply{}, err
	}

	timer := time.NewTimer(b.cfg.QueryTimeout)
	defer timer.Stop()
	select {
	case r, ok := <-ch:
		if !ok {
			return reply{}, model.ErrDeviceNotStarted
		}
		return r, nil
	case <-timer.C:
		b.dropWaiter(key, ch)
		return reply{}, fmt.Errorf("%w: query 0x%02X timed out", model.ErrDeviceFailure, key.kind)
	case <-ctx.Done():
		b.dropWaiter(key, ch)
		return reply{}, ctx.Err()
	}
}

func (b *Board) dropWaiter(key waitKey, ch chan reply) {
	b.mu.Lock()
	defer b.mu.Unlock()
	chans := b.waiters[key]
	for i, c := range chans {
		if c == ch {
			b.waiters[key] = append(chans[:i], chans[i+1:]...)
			break
		}
	}
	if len(b.waiters[key]) == 0 {
		delete(b.waiters, key)
	}
}

// resolve hands r to every waiter on key. Caller holds mu.
func (b *Board) resolve(key waitKey, r reply) {
	for _, ch := range b.waiters[key] {
		ch <- r
	}
	delete(b.waiters, key)
}

func (b *Board) readLoop(conn io.Reader, done chan struct{}) {
	defer close(done)
	parser := NewParser(true)
	buf := make([]byte, 256)
	for {
		n, err := conn.Read(buf)
		for _, c := range buf[:n] {
			if f, ok := parser.Feed(c); ok {
				b.handle(f)
			}
		}
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			if b.Running() {
				b.log.Warn("board stream ended", "err", err)
			}
			return
		}
	}
}

// handle updates cached state under mu, then runs callbacks after
// releasing it so they may call back into the board.
func (b *Board) handle(f Frame) {
	var fire []func()

	b.mu.Lock()
	switch {
	case f.Sysex:
		fire = b.handleSysex(f)
	case f.Command == DigitalMessage:
		fire = b.handleDigital(f.Channel, int(f.Data[0])|int(f.Data[1])<<7)
	case f.Command == AnalogMessage:
		fire = b.handleAnalog(f.Channel, int(f.Data[0])|int(f.Data[1])<<7)
	case f.Command == ReportVersion:
		b.protocol = fmt.Sprintf("%d.%d", f.Data[0], f.Data[1])
		b.resolve(waitKey{kind: ReportVersion}, reply{text: b.protocol})
	}
	b.mu.Unlock()

	for _, fn := range fire {
		fn()
	}
}

func (b *Board) handleDigital(port, mask int) []func() {
	var fire []func()
	now := time.Now()
	for bit := 0; bit < 8; bit++ {
		pin := port*8 + bit
		value := (mask >> bit) & 1
		changed := !b.digitalSeen[pin] || b.digital[pin] != value
		b.digital[pin] = value
		b.digitalSeen[pin] = true
		if !changed {
			continue
		}
		if cb, ok := b.digitalCbs.Get(pin); ok && cb != nil {
			fire = append(fire, func() { cb(pin, value) })
		}
		if l := b.digitalLatches[pin]; l != nil && l.State == device.LatchArmed && value == l.Threshold {
			l.State = device.LatchLatched
			l.Value = value
			l.Timestamp = now
			if cb, ok := b.digitalLatchCbs.Get(pin); ok && cb != nil {
				fire = append(fire, func() { cb(pin, value, now) })
			}
		}
	}
	return fire
}

func (b *Board) handleAnalog(pin, value int) []func() {
	var fire []func()
	prev, seen := b.analog[pin]
	b.analog[pin] = value
	if cb, ok := b.analogCbs.Get(pin); ok && cb != nil && (!seen || prev != value) {
		fire = append(fire, func() { cb(pin, value) })
	}
	if l := b.analogLatches[pin]; l != nil && l.State == device.LatchArmed && l.ThresholdType.Met(value, l.Threshold) {
		now := time.Now()
		l.State = device.LatchLatched
		l.Value = value
		l.Timestamp = now
		if cb, ok := b.analogLatchCbs.Get(pin); ok && cb != nil {
			fire = append(fire, func() { cb(pin, value, now) })
		}
	}
	return fire
}

func (b *Board) handleSysex(f Frame) []func() {
	d := f.Data
	switch f.Command {
	case ReportFirmware:
		if len(d) < 2 {
			return nil
		}
		name := make([]byte, 0, len(d)/2)
		for _, c := range decode14(d[2:]) {
			name = append(name, byte(c))
		}
		b.firmware = strings.TrimSpace(fmt.Sprintf("%d.%d %s", d[0], d[1], name))
		b.resolve(waitKey{kind: ReportFirmware}, reply{text: b.firmware})

	case CapabilityResponse:
		b.resolve(waitKey{kind: CapabilityResponse}, reply{data: toInts(d)})

	case AnalogMappingResponse:
		b.resolve(waitKey{kind: AnalogMappingResponse}, reply{data: toInts(d)})

	case PinStateResponse:
		if len(d) < 2 {
			return nil
		}
		state := 0
		for i, c := range d[2:] {
			state |= int(c) << (7 * i)
		}
		pin := int(d[0])
		b.resolve(waitKey{kind: PinStateResponse, id: pin}, reply{data: []int{pin, int(d[1]), state}})

	case ExtendedAnalog:
		if len(d) < 2 {
			return nil
		}
		value := 0
		for i, c := range d[1:] {
			value |= int(c) << (7 * i)
		}
		return b.handleAnalog(int(d[0]), value)

	case I2CReply:
		vals := decode14(d)
		if len(vals) < 2 {
			return nil
		}
		addr := vals[0]
		b.i2c[addr] = vals
		if cb, ok := b.i2cCbs.Get(addr); ok && cb != nil {
			data := append([]int(nil), vals...)
			return []func(){func() { cb(data) }}
		}

	case EncoderData:
		if len(d) < 3 {
			return nil
		}
		pin := int(d[0])
		value := int(d[1]) | int(d[2])<<7
		if value > 8192 {
			value -= 16384
		}
		b.encoders[pin] = value
		if cb, ok := b.encoderCbs.Get(pin); ok && cb != nil {
			return []func(){func() { cb([]int{pin, value}) }}
		}

	case SonarData:
		if len(d) < 3 {
			return nil
		}
		trigger := int(d[0])
		value := int(d[1]) | int(d[2])<<7
		b.sonars[trigger] = value
		if cb, ok := b.sonarCbs.Get(trigger); ok && cb != nil {
			return []func(){func() { cb([]int{trigger, value}) }}
		}

	case StringData:
		text := make([]byte, 0, len(d)/2)
		for _, c := range decode14(d) {
			text = append(text, byte(c))
		}
		b.log.Debug("board message", "text", string(text))

	default:
		b.log.Debug("unhandled sysex", "id", fmt.Sprintf("0x%02X", f.Command))
	}
	return nil
}
