package firmata

import (
	"context"
	"io"
	"net"
	"sync"
)

const (
	simPins        = 20
	simFirstAnalog = 14
)

// Simulator is an in-process FirmataPlus board. Each Dial hands out a new
// stream; pin state survives reconnects, reporting flags do not.
type Simulator struct {
	mu            sync.Mutex
	conn          net.Conn
	writeMu       sync.Mutex
	modes         map[int]int
	inputs        [simPins]int
	outputs       [maxPorts]int
	analog        map[int]int
	analogOut     map[int]int
	reportAnalog  map[int]bool
	reportDigital map[int]bool
	sonars        map[int]int
	encoders      map[int]int
	frames        []Frame
	resets        int
}

// NewSimulator returns a board with every pin in input mode.
func NewSimulator() *Simulator {
	return &Simulator{
		modes:         make(map[int]int),
		analog:        make(map[int]int),
		analogOut:     make(map[int]int),
		reportAnalog:  make(map[int]bool),
		reportDigital: make(map[int]bool),
		sonars:        make(map[int]int),
		encoders:      make(map[int]int),
	}
}

// Dial implements Dialer.
func (s *Simulator) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	host, board := net.Pipe()
	s.mu.Lock()
	s.conn = board
	s.reportAnalog = make(map[int]bool)
	s.reportDigital = make(map[int]bool)
	s.mu.Unlock()

	go s.serve(board)
	go s.send([]byte{ReportVersion, 2, 5})
	return host, nil
}

func (s *Simulator) serve(conn net.Conn) {
	defer conn.Close()
	parser := NewParser(false)
	buf := make([]byte, 128)
	for {
		n, err := conn.Read(buf)
		for _, c := range buf[:n] {
			if f, ok := parser.Feed(c); ok {
				s.handle(f)
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *Simulator) send(data []byte) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, _ = conn.Write(data)
}

func (s *Simulator) handle(f Frame) {
	s.mu.Lock()
	s.frames = append(s.frames, f)
	var out [][]byte

	switch {
	case f.Sysex:
		out = s.handleSysex(f)
	case f.Command == ReportVersion:
		out = append(out, []byte{ReportVersion, 2, 5})
	case f.Command == SystemReset:
		s.resets++
		s.reportAnalog = make(map[int]bool)
		s.reportDigital = make(map[int]bool)
	case f.Command == SetPinModeCmd:
		s.modes[int(f.Data[0])] = int(f.Data[1])
	case f.Command == DigitalMessage:
		s.outputs[f.Channel] = int(f.Data[0]) | int(f.Data[1])<<7
	case f.Command == AnalogMessage:
		s.analogOut[f.Channel] = int(f.Data[0]) | int(f.Data[1])<<7
	case f.Command == ReportAnalog:
		s.reportAnalog[f.Channel] = f.Data[0] != 0
		if f.Data[0] != 0 {
			out = append(out, analogFrame(f.Channel, s.analog[f.Channel]))
		}
	case f.Command == ReportDigital:
		s.reportDigital[f.Channel] = f.Data[0] != 0
		if f.Data[0] != 0 {
			out = append(out, s.portFrame(f.Channel))
		}
	}
	s.mu.Unlock()

	for _, msg := range out {
		s.send(msg)
	}
}

func (s *Simulator) handleSysex(f Frame) [][]byte {
	switch f.Command {
	case ReportFirmware:
		payload := []byte{2, 5}
		for _, c := range []byte("FirmataPlus") {
			payload = append(payload, lsb(int(c)), msb(int(c)))
		}
		return [][]byte{sysex(ReportFirmware, payload...)}

	case CapabilityQuery:
		var payload []byte
		for pin := 0; pin < simPins; pin++ {
			payload = append(payload, 0x00, 1, 0x01, 1)
			if pin >= simFirstAnalog {
				payload = append(payload, 0x02, 10)
			}
			payload = append(payload, 0x7F)
		}
		return [][]byte{sysex(CapabilityResponse, payload...)}

	case AnalogMappingQuery:
		payload := make([]byte, simPins)
		for pin := range payload {
			if pin >= simFirstAnalog {
				payload[pin] = byte(pin - simFirstAnalog)
			} else {
				payload[pin] = noAnalogChannel
			}
		}
		return [][]byte{sysex(AnalogMappingResponse, payload...)}

	case PinStateQuery:
		if len(f.Data) < 1 {
			return nil
		}
		pin := int(f.Data[0])
		state := (s.outputs[pin/8] >> (pin % 8)) & 1
		return [][]byte{sysex(PinStateResponse, byte(pin), byte(s.modes[pin]), byte(state))}

	case I2CRequest:
		if len(f.Data) < 6 || f.Data[1]&0x18 == 0 || f.Data[1]&0x18 == 0x18 {
			return nil
		}
		addr := int(f.Data[0])
		register := int(f.Data[2]) | int(f.Data[3])<<7
		count := int(f.Data[4]) | int(f.Data[5])<<7
		payload := []byte{lsb(addr), msb(addr), lsb(register), msb(register)}
		for i := 0; i < count; i++ {
			v := (register + i) & 0xFF
			payload = append(payload, lsb(v), msb(v))
		}
		return [][]byte{sysex(I2CReply, payload...)}

	case SonarConfig:
		if len(f.Data) >= 1 {
			trigger := int(f.Data[0])
			if _, ok := s.sonars[trigger]; !ok {
				s.sonars[trigger] = 0
			}
		}

	case EncoderConfig:
		if len(f.Data) >= 1 {
			pin := int(f.Data[0])
			if _, ok := s.encoders[pin]; !ok {
				s.encoders[pin] = 0
			}
		}
	}
	return nil
}

func analogFrame(ch, value int) []byte {
	return []byte{AnalogMessage | byte(ch), lsb(value), msb(value)}
}

// portFrame reports a digital port. Caller holds mu.
func (s *Simulator) portFrame(port int) []byte {
	mask := 0
	for bit := 0; bit < 8; bit++ {
		pin := port*8 + bit
		if pin < simPins && s.inputs[pin] != 0 {
			mask |= 1 << bit
		}
	}
	return []byte{DigitalMessage | byte(port), lsb(mask), msb(mask)}
}

// SetDigitalInput drives an input pin, reporting its port when enabled.
func (s *Simulator) SetDigitalInput(pin, value int) {
	s.mu.Lock()
	if value != 0 {
		value = 1
	}
	s.inputs[pin] = value
	var msg []byte
	if s.reportDigital[pin/8] {
		msg = s.portFrame(pin / 8)
	}
	s.mu.Unlock()
	if msg != nil {
		s.send(msg)
	}
}

// SetAnalogInput drives an analog channel, reporting it when enabled.
func (s *Simulator) SetAnalogInput(ch, value int) {
	s.mu.Lock()
	s.analog[ch] = value
	report := s.reportAnalog[ch]
	s.mu.Unlock()
	if report {
		s.send(analogFrame(ch, value))
	}
}

// SetSonarDistance reports a distance for a configured sonar.
func (s *Simulator) SetSonarDistance(trigger, cm int) {
	s.mu.Lock()
	_, ok := s.sonars[trigger]
	s.sonars[trigger] = cm
	s.mu.Unlock()
	if ok {
		s.send(sysex(SonarData, byte(trigger), lsb(cm), msb(cm)))
	}
}

// SetEncoderValue reports a position for a configured encoder.
func (s *Simulator) SetEncoderValue(pin, value int) {
	s.mu.Lock()
	_, ok := s.encoders[pin]
	s.encoders[pin] = value
	s.mu.Unlock()
	if ok {
		raw := value
		if raw < 0 {
			raw += 16384
		}
		s.send(sysex(EncoderData, byte(pin), lsb(raw), msb(raw)))
	}
}

// SendString emits a STRING_DATA message.
func (s *Simulator) SendString(text string) {
	var payload []byte
	for _, c := range []byte(text) {
		payload = append(payload, lsb(int(c)), msb(int(c)))
	}
	s.send(sysex(StringData, payload...))
}

// DigitalOutput returns the last value written to an output pin.
func (s *Simulator) DigitalOutput(pin int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (s.outputs[pin/8] >> (pin % 8)) & 1
}

// AnalogOutput returns the last analog value written to pin.
func (s *Simulator) AnalogOutput(pin int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analogOut[pin]
}

// PinMode returns the last mode set on pin.
func (s *Simulator) PinMode(pin int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modes[pin]
}

// Resets counts SYSTEM_RESET messages received.
func (s *Simulator) Resets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}

// Frames returns the sysex frames received with the given id.
func (s *Simulator) Frames(id byte) []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Frame
	for _, f := range s.frames {
		if f.Sysex && f.Command == id {
			out = append(out, f)
		}
	}
	return out
}
