package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Step is one scripted command.
type Step struct {
	Method string        `yaml:"method"`
	Params []any         `yaml:"params"`
	Wait   time.Duration `yaml:"wait"`
}

type Script struct {
	Steps []Step `yaml:"steps"`
}

func loadScript(r io.Reader) (*Script, error) {
	var s Script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	for i, st := range s.Steps {
		if st.Method == "" {
			return nil, fmt.Errorf("step %d: method is required", i+1)
		}
	}
	return &s, nil
}

// parseLine splits "method p1 p2 [a, b]" into a method and its params.
// Scalars stay strings; bracketed lists are decoded as JSON.
func parseLine(line string) (string, []any, error) {
	tokens, err := tokenize(line)
	if err != nil {
		return "", nil, err
	}
	if len(tokens) == 0 {
		return "", nil, nil
	}
	params := make([]any, 0, len(tokens)-1)
	for _, tok := range tokens[1:] {
		if strings.HasPrefix(tok, "[") {
			var list []any
			if err := json.Unmarshal([]byte(tok), &list); err != nil {
				return "", nil, fmt.Errorf("bad list %s: %w", tok, err)
			}
			params = append(params, list)
			continue
		}
		params = append(params, tok)
	}
	return tokens[0], params, nil
}

func tokenize(line string) ([]string, error) {
	var (
		tokens []string
		cur    strings.Builder
		depth  int
	)
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range line {
		switch {
		case r == '[':
			depth++
			cur.WriteRune(r)
		case r == ']':
			if depth == 0 {
				return nil, fmt.Errorf("unbalanced ]")
			}
			depth--
			cur.WriteRune(r)
		case (r == ' ' || r == '\t') && depth == 0:
			flush()
		case r == ' ' || r == '\t':
			// spaces inside lists are dropped
		default:
			cur.WriteRune(r)
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced [")
	}
	flush()
	return tokens, nil
}
