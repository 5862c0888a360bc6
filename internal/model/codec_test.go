package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCommand(t *testing.T) {
	cmd, err := Decode([]byte(`{"method":"digital_write","params":["13","1"]}`))
	require.NoError(t, err)
	assert.Equal(t, "digital_write", cmd.Method)
	assert.Equal(t, []any{"13", "1"}, cmd.Params)
	assert.False(t, cmd.NoParams)
}

func TestDecodeKeepsNumbers(t *testing.T) {
	cmd, err := Decode([]byte(`{"method":"analog_write","params":[3, 200]}`))
	require.NoError(t, err)
	require.Len(t, cmd.Params, 2)
	assert.Equal(t, json.Number("3"), cmd.Params[0])
	assert.Equal(t, json.Number("200"), cmd.Params[1])
}

func TestDecodeNullToken(t *testing.T) {
	for _, payload := range []string{
		`{"method":"get_firmware_version","params":["null"]}`,
		`{"method":"get_firmware_version","params":[null]}`,
	} {
		cmd, err := Decode([]byte(payload))
		require.NoError(t, err, payload)
		assert.True(t, cmd.NoParams, payload)
		assert.Nil(t, cmd.Params, payload)
	}
}

func TestDecodeMalformed(t *testing.T) {
	cases := []string{
		`not json`,
		`[]`,
		`{"params":["1"]}`,
		`{"method":"","params":[]}`,
		`{"method":7,"params":[]}`,
		`{"method":"digital_read","params":"1"}`,
		`{"method":"digital_read"}`,
	}
	for _, c := range cases {
		_, err := Decode([]byte(c))
		assert.ErrorIs(t, err, ErrMalformedPayload, c)
	}
}

func TestEncode(t *testing.T) {
	b, err := Encode("analog_read_reply", []any{2, 512})
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"analog_read_reply","params":[2,512]}`, string(b))

	b, err = Encode("firmware_version_reply", SentinelUnknown)
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"firmware_version_reply","params":"Unknown"}`, string(b))
}

func TestEncodeFailure(t *testing.T) {
	_, err := Encode("bad", []any{make(chan int)})
	assert.Error(t, err)
}

func TestCommandErrorClass(t *testing.T) {
	err := NewCommandError("digital_write", ErrInvalidArguments, "want 2 params")
	assert.True(t, errors.Is(err, ErrInvalidArguments))
	assert.Equal(t, "invalid_arguments", Class(err))
	assert.Equal(t, "digital_write: invalid arguments: want 2 params", err.Error())

	assert.Equal(t, "ok", Class(nil))
	assert.Equal(t, "device", Class(fmt.Errorf("wrap: %w", ErrDeviceFailure)))
	assert.Equal(t, "transport", Class(ErrConnectionClosed))
	assert.Equal(t, "overloaded", Class(NewCommandError("digital_write", ErrQueueFull, "")))
}

func TestConnStateString(t *testing.T) {
	assert.Equal(t, "Open", StateOpen.String())
	assert.Equal(t, "Closing", StateClosing.String())
	assert.Equal(t, "Unknown", ConnState(42).String())
}
