package firmata

// Frame is one complete Firmata message.
type Frame struct {
	// Command is the status byte with the channel nibble cleared for
	// ranged commands, or the sysex id when Sysex is set.
	Command byte
	Channel int
	Data    []byte
	Sysex   bool
}

// Parser splits a Firmata byte stream into frames. It resynchronises on
// the next status byte when data bytes arrive out of place.
type Parser struct {
	fromBoard bool

	cmd     byte
	channel int
	need    int
	buf     []byte
	inSysex bool
}

// NewParser returns a parser. fromBoard selects the direction, which
// matters for REPORT_VERSION: the board replies with two data bytes while
// the host query has none.
func NewParser(fromBoard bool) *Parser {
	return &Parser{fromBoard: fromBoard}
}

// Feed consumes one byte and returns a frame when it completes one.
func (p *Parser) Feed(b byte) (Frame, bool) {
	if p.inSysex {
		switch {
		case b == EndSysex:
			p.inSysex = false
			if len(p.buf) == 0 {
				return Frame{}, false
			}
			f := Frame{Command: p.buf[0], Data: append([]byte(nil), p.buf[1:]...), Sysex: true}
			p.buf = p.buf[:0]
			return f, true
		case b&0x80 == 0:
			p.buf = append(p.buf, b)
			return Frame{}, false
		default:
			// Status byte inside sysex: drop the partial frame.
			p.inSysex = false
			p.buf = p.buf[:0]
		}
	}

	if b&0x80 != 0 {
		return p.start(b)
	}

	if p.need == 0 {
		// Stray data byte.
		return Frame{}, false
	}
	p.buf = append(p.buf, b)
	if len(p.buf) < p.need {
		return Frame{}, false
	}
	f := Frame{Command: p.cmd, Channel: p.channel, Data: append([]byte(nil), p.buf...)}
	p.reset()
	return f, true
}

func (p *Parser) start(b byte) (Frame, bool) {
	p.reset()
	if b == StartSysex {
		p.inSysex = true
		return Frame{}, false
	}

	if b < 0xF0 {
		p.cmd = b & 0xF0
		p.channel = int(b & 0x0F)
	} else {
		p.cmd = b
	}

	switch p.cmd {
	case DigitalMessage, AnalogMessage, SetPinModeCmd, SetDigitalPinValue:
		p.need = 2
	case ReportAnalog, ReportDigital:
		p.need = 1
	case ReportVersion:
		if p.fromBoard {
			p.need = 2
		} else {
			return Frame{Command: ReportVersion}, true
		}
	case SystemReset:
		return Frame{Command: SystemReset}, true
	default:
		p.need = 0
	}
	return Frame{}, false
}

func (p *Parser) reset() {
	p.cmd = 0
	p.channel = 0
	p.need = 0
	p.buf = p.buf[:0]
}
