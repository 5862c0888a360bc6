package app

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"pymata-gateway/internal/device"
)

// args coerces positional parameters, keeping the first failure.
type args struct {
	params []any
	err    error
}

func (a *args) fail(i int, format string, v ...any) {
	if a.err == nil {
		a.err = fmt.Errorf("param %d: %s", i, fmt.Sprintf(format, v...))
	}
}

func (a *args) int(i int) int {
	n, err := toInt(a.params[i])
	if err != nil {
		a.fail(i, "%v", err)
	}
	return n
}

// raw returns the parameter as decoded, for tokens matched by exact value.
func (a *args) raw(i int) any {
	return a.params[i]
}

func (a *args) ints(i int) []int {
	list, ok := a.params[i].([]any)
	if !ok {
		a.fail(i, "want list of integers, got %T", a.params[i])
		return nil
	}
	out := make([]int, 0, len(list))
	for j, item := range list {
		n, err := toInt(item)
		if err != nil {
			a.fail(i, "element %d: %v", j, err)
			return nil
		}
		out = append(out, n)
	}
	return out
}

// toInt accepts JSON integers and decimal strings with optional sign and
// surrounding whitespace.
func toInt(v any) (int, error) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), nil
		}
		f, err := n.Float64()
		if err != nil || f != math.Trunc(f) {
			return 0, fmt.Errorf("%q is not an integer", n.String())
		}
		return int(f), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int(n), nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", n)
		}
		return int(i), nil
	default:
		return 0, fmt.Errorf("want integer, got %T", v)
	}
}

// i2cReadMode maps the client's read-type token. Only the exact strings
// "0" to "3" select a read; anything else, of any type, stops reading.
func i2cReadMode(token any) device.I2CReadMode {
	switch token {
	case "0":
		return device.I2CReadContinuously
	case "1":
		return device.I2CRead
	case "2":
		return device.I2CRead | device.I2CEndTxMask
	case "3":
		return device.I2CReadContinuously | device.I2CEndTxMask
	default:
		return device.I2CStopReading
	}
}

// toneCommand plays a tone only for the exact string "TONE_TONE".
func toneCommand(token any) device.ToneCommand {
	if token == "TONE_TONE" {
		return device.ToneTone
	}
	return device.ToneNoTone
}
