package compiler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// flatten renders a JSON document without its outer delimiters. Object
// members keep their source order, which a map round-trip would lose.
func flatten(raw []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var lines []string
	switch t := tok.(type) {
	case json.Delim:
		closing := json.Delim('}')
		if t == '[' {
			closing = ']'
		}
		for dec.More() {
			var line string
			if t == '{' {
				key, err := dec.Token()
				if err != nil {
					return "", fmt.Errorf("%w: %v", ErrMalformed, err)
				}
				val, err := readValue(dec)
				if err != nil {
					return "", err
				}
				line = fmt.Sprintf("%v: %s", key, val)
			} else {
				line, err = readValue(dec)
				if err != nil {
					return "", err
				}
			}
			lines = append(lines, line)
		}
		if end, err := dec.Token(); err != nil || end != closing {
			return "", fmt.Errorf("%w: unterminated %v", ErrMalformed, t)
		}
	default:
		lines = append(lines, scalar(tok))
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("%w: trailing data", ErrMalformed)
	}
	return strings.Join(lines, "\n"), nil
}

func readValue(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return scalar(tok), nil
	}

	var parts []string
	for dec.More() {
		if delim == '{' {
			key, err := dec.Token()
			if err != nil {
				return "", fmt.Errorf("%w: %v", ErrMalformed, err)
			}
			val, err := readValue(dec)
			if err != nil {
				return "", err
			}
			parts = append(parts, fmt.Sprintf("%v: %s", key, val))
			continue
		}
		val, err := readValue(dec)
		if err != nil {
			return "", err
		}
		parts = append(parts, val)
	}
	if _, err := dec.Token(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if delim == '{' {
		return "{" + strings.Join(parts, ", ") + "}", nil
	}
	return "[" + strings.Join(parts, ", ") + "]", nil
}

func scalar(tok json.Token) string {
	switch v := tok.(type) {
	case nil:
		return "null"
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(v)
	}
}
