package generation

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrNotJSON         = errors.New("response is not a JSON object")
	ErrMissingKey      = errors.New("response is missing a required key")
	ErrNoMarkupMarkers = errors.New("response has no recognizable markup")
)

// Contract is the structural check a response must pass before it is
// accepted. Check returns the canonical text to keep.
type Contract interface {
	Name() string
	Schema() *Schema
	Check(raw string) (string, error)
}

// \x60 is a backtick; raw strings cannot contain one.
var fenceRegex = regexp.MustCompile("(?s)^\x60\x60\x60[a-zA-Z]*\\s*\n(.*?)\\s*\x60\x60\x60$")

// StripFences removes a surrounding markdown code fence, if any.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRegex.FindStringSubmatch(s); len(m) == 2 {
		return strings.TrimSpace(m[1])
	}
	return s
}

// SchemaContract accepts a JSON object carrying every required top-level
// key of its schema. Extra keys are tolerated.
type SchemaContract struct {
	Label string
	Shape *Schema
	// Validate runs after the key check for deeper rules.
	Validate func(doc map[string]json.RawMessage) error
}

func (c SchemaContract) Name() string    { return c.Label }
func (c SchemaContract) Schema() *Schema { return c.Shape }

func (c SchemaContract) Check(raw string) (string, error) {
	text := StripFences(raw)

	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &doc); err != nil || doc == nil {
		return "", ErrNotJSON
	}

	if c.Shape != nil {
		for _, key := range c.Shape.Required {
			v, ok := doc[key]
			if !ok || string(v) == "null" {
				return "", fmt.Errorf("%w: %q", ErrMissingKey, key)
			}
		}
	}

	if c.Validate != nil {
		if err := c.Validate(doc); err != nil {
			return "", err
		}
	}
	return text, nil
}

// latexMarkers are the tokens accepted as evidence of a LaTeX document.
var latexMarkers = []string{`\documentclass`, `\section`, `\subsection`, `\begin{`, `\[`, `\(`, `$`}

// MarkupContract is a heuristic check for LaTeX output. It can be fooled in
// both directions.
type MarkupContract struct {
	Label string
}

func (c MarkupContract) Name() string    { return c.Label }
func (c MarkupContract) Schema() *Schema { return nil }

func (c MarkupContract) Check(raw string) (string, error) {
	text := StripFences(raw)
	for _, m := range latexMarkers {
		if strings.Contains(text, m) {
			return text, nil
		}
	}
	return "", ErrNoMarkupMarkers
}
