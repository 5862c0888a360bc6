// Package firmata drives a microcontroller running StandardFirmata or
// FirmataPlus over a byte stream.
package firmata

// Message commands. The low nibble of ranged commands carries a port or pin.
const (
	DigitalMessage     byte = 0x90
	AnalogMessage      byte = 0xE0
	ReportAnalog       byte = 0xC0
	ReportDigital      byte = 0xD0
	SetPinModeCmd      byte = 0xF4
	SetDigitalPinValue byte = 0xF5
	ReportVersion      byte = 0xF9
	SystemReset        byte = 0xFF
	StartSysex         byte = 0xF0
	EndSysex           byte = 0xF7
)

// Sysex identifiers.
const (
	ToneData              byte = 0x5F
	EncoderConfig         byte = 0x60
	EncoderData           byte = 0x61
	SonarConfig           byte = 0x62
	SonarData             byte = 0x63
	AnalogMappingQuery    byte = 0x69
	AnalogMappingResponse byte = 0x6A
	CapabilityQuery       byte = 0x6B
	CapabilityResponse    byte = 0x6C
	PinStateQuery         byte = 0x6D
	PinStateResponse      byte = 0x6E
	ExtendedAnalog        byte = 0x6F
	ServoConfig           byte = 0x70
	StringData            byte = 0x71
	StepperData           byte = 0x72
	I2CRequest            byte = 0x76
	I2CReply              byte = 0x77
	I2CConfig             byte = 0x78
	ReportFirmware        byte = 0x79
	SamplingInterval      byte = 0x7A
)

const (
	stepperConfigure byte = 0
	stepperStep      byte = 1

	// Analog map entry for a pin with no analog channel.
	noAnalogChannel = 0x7F

	defaultFirstAnalogPin = 14
	maxPorts              = 16
)

// Version is reported as the library version of this engine.
const Version = "1.0.0-firmata"

func lsb(v int) byte {
	return byte(v & 0x7F)
}

func msb(v int) byte {
	return byte((v >> 7) & 0x7F)
}

// sysex frames cmd and data between START_SYSEX and END_SYSEX.
func sysex(cmd byte, data ...byte) []byte {
	out := make([]byte, 0, len(data)+3)
	out = append(out, StartSysex, cmd)
	out = append(out, data...)
	return append(out, EndSysex)
}

// decode14 joins 7-bit LSB/MSB pairs into values.
func decode14(data []byte) []int {
	out := make([]int, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		out = append(out, int(data[i])|int(data[i+1])<<7)
	}
	return out
}

func toInts(data []byte) []int {
	out := make([]int, len(data))
	for i, b := range data {
		out[i] = int(b)
	}
	return out
}
