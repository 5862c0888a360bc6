package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const envelopeSchema = `{
	"type": "object",
	"required": ["method", "params"],
	"properties": {
		"method": {"type": "string", "minLength": 1},
		"params": {"type": "array"}
	}
}`

var compiledEnvelope *gojsonschema.Schema

func init() {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(envelopeSchema))
	if err != nil {
		panic(fmt.Sprintf("model: compile envelope schema: %v", err))
	}
	compiledEnvelope = s
}

// Decode validates a text frame and turns it into a Command.
// Numbers are kept as json.Number so integer coercion stays exact.
func Decode(data []byte) (Command, error) {
	result, err := compiledEnvelope.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return Command{}, fmt.Errorf("%w: %s", ErrMalformedPayload, strings.Join(msgs, "; "))
	}

	var raw struct {
		Method string `json:"method"`
		Params []any  `json:"params"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	cmd := Command{Method: raw.Method, Params: raw.Params}
	if len(raw.Params) == 1 && isNullToken(raw.Params[0]) {
		cmd.Params = nil
		cmd.NoParams = true
	}
	return cmd, nil
}

func isNullToken(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == NullToken
}

// Encode renders an outbound reply or notification.
func Encode(method string, params any) ([]byte, error) {
	b, err := json.Marshal(Message{Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", method, err)
	}
	return b, nil
}
