package app

import (
	"context"

	"pymata-gateway/internal/device"
	"pymata-gateway/internal/model"
)

func command(arity int, prepare func(r *Router, a *args) task) handlerSpec {
	return handlerSpec{kind: kindCommand, arity: arity, prepare: prepare}
}

func query(arity int, prepare func(r *Router, a *args) task) handlerSpec {
	return handlerSpec{kind: kindQuery, arity: arity, prepare: prepare}
}

func subscribe(arity int, prepare func(r *Router, a *args) task) handlerSpec {
	return handlerSpec{kind: kindSubscribe, arity: arity, prepare: prepare}
}

// dispatchTable maps every supported method to its handler.
func dispatchTable() map[string]handlerSpec {
	return map[string]handlerSpec{
		"analog_read":  query(1, pinRead("analog_read", "analog_read_reply", device.Device.AnalogRead)),
		"digital_read": query(1, pinRead("digital_read", "digital_read_reply", device.Device.DigitalRead)),
		"encoder_read": query(1, pinRead("encoder_read", "encoder_read_reply", device.Device.EncoderRead)),
		"sonar_read":   query(1, pinRead("sonar_read", "sonar_read_reply", device.Device.SonarRead)),

		"analog_write": command(2, func(r *Router, a *args) task {
			pin, value := a.int(0), a.int(1)
			return r.exec("analog_write", func(ctx context.Context) error {
				return r.dev.AnalogWrite(ctx, pin, value)
			})
		}),
		"digital_write": command(2, func(r *Router, a *args) task {
			pin, value := a.int(0), a.int(1)
			return r.exec("digital_write", func(ctx context.Context) error {
				return r.dev.DigitalWrite(ctx, pin, value)
			})
		}),
		"disable_analog_reporting": command(1, func(r *Router, a *args) task {
			pin := a.int(0)
			return r.exec("disable_analog_reporting", func(ctx context.Context) error {
				return r.dev.DisableAnalogReporting(ctx, pin)
			})
		}),
		"disable_digital_reporting": command(1, func(r *Router, a *args) task {
			pin := a.int(0)
			return r.exec("disable_digital_reporting", func(ctx context.Context) error {
				return r.dev.DisableDigitalReporting(ctx, pin)
			})
		}),
		"enable_analog_reporting": subscribe(1, func(r *Router, a *args) task {
			pin := a.int(0)
			return r.exec("enable_analog_reporting", func(ctx context.Context) error {
				return r.dev.EnableAnalogReporting(ctx, pin, r.mux.Analog())
			})
		}),
		"enable_digital_reporting": subscribe(1, func(r *Router, a *args) task {
			pin := a.int(0)
			return r.exec("enable_digital_reporting", func(ctx context.Context) error {
				return r.dev.EnableDigitalReporting(ctx, pin, r.mux.Digital())
			})
		}),
		"encoder_config": subscribe(2, func(r *Router, a *args) task {
			pinA, pinB := a.int(0), a.int(1)
			return r.exec("encoder_config", func(ctx context.Context) error {
				return r.dev.EncoderConfig(ctx, pinA, pinB, r.mux.Encoder())
			})
		}),
		"sonar_config": subscribe(4, func(r *Router, a *args) task {
			trigger, echo, interval, maxDistance := a.int(0), a.int(1), a.int(2), a.int(3)
			return r.exec("sonar_config", func(ctx context.Context) error {
				return r.dev.SonarConfig(ctx, trigger, echo, r.mux.Sonar(), interval, maxDistance)
			})
		}),

		"get_analog_latch_data": query(1, func(r *Router, a *args) task {
			pin := a.int(0)
			return func(ctx context.Context) {
				var data *device.LatchData
				err := r.call("get_analog_latch_data", func() (err error) {
					data, err = r.dev.AnalogLatchData(ctx, pin)
					return err
				})
				if err != nil || data == nil {
					r.reply("get_analog_latch_data_reply", []any{pin, model.SentinelNone})
					return
				}
				r.reply("get_analog_latch_data_reply", []any{pin, []any{
					int(data.State), int(data.ThresholdType), data.Threshold, data.Value, latchStamp(data),
				}})
			}
		}),
		"get_digital_latch_data": query(1, func(r *Router, a *args) task {
			pin := a.int(0)
			return func(ctx context.Context) {
				var data *device.LatchData
				err := r.call("get_digital_latch_data", func() (err error) {
					data, err = r.dev.DigitalLatchData(ctx, pin)
					return err
				})
				if err != nil || data == nil {
					r.reply("get_digital_latch_data_reply", []any{pin, model.SentinelNone})
					return
				}
				r.reply("get_digital_latch_data_reply", []any{pin, []any{
					int(data.State), data.Threshold, data.Value, latchStamp(data),
				}})
			}
		}),

		"get_analog_map": query(0, listQuery("get_analog_map", "analog_map_reply", model.SentinelNone,
			func(r *Router, ctx context.Context) ([]int, error) { return r.dev.AnalogMap(ctx) })),
		"get_capability_report": query(0, listQuery("get_capability_report", "capability_report_reply", model.SentinelNone,
			func(r *Router, ctx context.Context) ([]int, error) { return r.dev.CapabilityReport(ctx) })),
		"get_firmware_version": query(0, textQuery("get_firmware_version", "firmware_version_reply", device.Device.FirmwareVersion)),
		"get_protocol_version": query(0, textQuery("get_protocol_version", "protocol_version_reply", device.Device.ProtocolVersion)),
		"get_pymata_version":   query(0, textQuery("get_pymata_version", "pymata_version_reply", device.Device.LibraryVersion)),
		"get_pin_state": query(1, func(r *Router, a *args) task {
			pin := a.int(0)
			return listQuery("get_pin_state", "pin_state_reply", model.SentinelUnknown,
				func(r *Router, ctx context.Context) ([]int, error) { return r.dev.PinState(ctx, pin) })(r, a)
		}),

		"i2c_config": command(1, func(r *Router, a *args) task {
			delay := a.int(0)
			return r.exec("i2c_config", func(ctx context.Context) error {
				return r.dev.I2CConfig(ctx, delay)
			})
		}),
		"i2c_read_data": query(1, func(r *Router, a *args) task {
			address := a.int(0)
			return listQuery("i2c_read_data", "i2c_read_data_reply", model.SentinelNone,
				func(r *Router, ctx context.Context) ([]int, error) { return r.dev.I2CReadData(ctx, address) })(r, a)
		}),
		"i2c_read_request": subscribe(4, func(r *Router, a *args) task {
			address, register, count := a.int(0), a.int(1), a.int(2)
			mode := i2cReadMode(a.raw(3))
			return r.exec("i2c_read_request", func(ctx context.Context) error {
				return r.dev.I2CReadRequest(ctx, address, register, count, mode, r.mux.I2C())
			})
		}),
		"i2c_write_request": command(2, func(r *Router, a *args) task {
			address, data := a.int(0), a.ints(1)
			return r.exec("i2c_write_request", func(ctx context.Context) error {
				return r.dev.I2CWriteRequest(ctx, address, data)
			})
		}),

		"play_tone": command(4, func(r *Router, a *args) task {
			pin, tone, frequency, duration := a.int(0), toneCommand(a.raw(1)), a.int(2), a.int(3)
			return r.exec("play_tone", func(ctx context.Context) error {
				return r.dev.PlayTone(ctx, pin, tone, frequency, duration)
			})
		}),
		"set_analog_latch": subscribe(3, func(r *Router, a *args) task {
			pin, tt, threshold := a.int(0), device.ThresholdType(a.int(1)), a.int(2)
			return r.exec("set_analog_latch", func(ctx context.Context) error {
				return r.dev.SetAnalogLatch(ctx, pin, tt, threshold, r.mux.AnalogLatch())
			})
		}),
		"set_digital_latch": subscribe(2, func(r *Router, a *args) task {
			pin, threshold := a.int(0), a.int(1)
			return r.exec("set_digital_latch", func(ctx context.Context) error {
				return r.dev.SetDigitalLatch(ctx, pin, threshold, r.mux.DigitalLatch())
			})
		}),
		"set_pin_mode": subscribe(2, func(r *Router, a *args) task {
			pin, mode := a.int(0), device.PinMode(a.int(1))
			var cb device.PinCallback
			switch mode {
			case device.ModeInput:
				cb = r.mux.Digital()
			case device.ModeAnalog:
				cb = r.mux.Analog()
			}
			return r.exec("set_pin_mode", func(ctx context.Context) error {
				return r.dev.SetPinMode(ctx, pin, mode, cb)
			})
		}),
		"set_sampling_interval": command(1, func(r *Router, a *args) task {
			interval := a.int(0)
			return r.exec("set_sampling_interval", func(ctx context.Context) error {
				return r.dev.SetSamplingInterval(ctx, interval)
			})
		}),
		"servo_config": command(3, func(r *Router, a *args) task {
			pin, minPulse, maxPulse := a.int(0), a.int(1), a.int(2)
			return r.exec("servo_config", func(ctx context.Context) error {
				return r.dev.ServoConfig(ctx, pin, minPulse, maxPulse)
			})
		}),
		"stepper_config": command(2, func(r *Router, a *args) task {
			steps, pins := a.int(0), a.ints(1)
			return r.exec("stepper_config", func(ctx context.Context) error {
				return r.dev.StepperConfig(ctx, steps, pins)
			})
		}),
		"stepper_step": command(2, func(r *Router, a *args) task {
			speed, steps := a.int(0), a.int(1)
			return r.exec("stepper_step", func(ctx context.Context) error {
				return r.dev.StepperStep(ctx, speed, steps)
			})
		}),
	}
}

// exec wraps a fire-and-forget device call; failures are only logged.
func (r *Router) exec(method string, fn func(ctx context.Context) error) task {
	return func(ctx context.Context) {
		_ = r.call(method, func() error { return fn(ctx) })
	}
}

// pinRead builds a [pin, value] query. A failed read answers [pin, "None"].
func pinRead(method, replyMethod string, read func(device.Device, context.Context, int) (int, error)) func(*Router, *args) task {
	return func(r *Router, a *args) task {
		pin := a.int(0)
		return func(ctx context.Context) {
			var value int
			err := r.call(method, func() (err error) {
				value, err = read(r.dev, ctx, pin)
				return err
			})
			if err != nil {
				r.reply(replyMethod, []any{pin, model.SentinelNone})
				return
			}
			r.reply(replyMethod, []any{pin, value})
		}
	}
}

// listQuery replies with the device's list, or sentinel when it has none.
func listQuery(method, replyMethod, sentinel string, read func(*Router, context.Context) ([]int, error)) func(*Router, *args) task {
	return func(r *Router, a *args) task {
		return func(ctx context.Context) {
			var data []int
			err := r.call(method, func() (err error) {
				data, err = read(r, ctx)
				return err
			})
			if err != nil || data == nil {
				r.reply(replyMethod, sentinel)
				return
			}
			r.reply(replyMethod, data)
		}
	}
}

// textQuery replies with the device's string, or "Unknown".
func textQuery(method, replyMethod string, read func(device.Device, context.Context) (string, error)) func(*Router, *args) task {
	return func(r *Router, a *args) task {
		return func(ctx context.Context) {
			var text string
			err := r.call(method, func() (err error) {
				text, err = read(r.dev, ctx)
				return err
			})
			if err != nil || text == "" {
				r.reply(replyMethod, model.SentinelUnknown)
				return
			}
			r.reply(replyMethod, text)
		}
	}
}

// latchStamp is the trigger time in fractional Unix seconds, or 0 when
// the latch has not fired.
func latchStamp(d *device.LatchData) float64 {
	if d.Timestamp.IsZero() {
		return 0
	}
	return float64(d.Timestamp.UnixNano()) / 1e9
}
