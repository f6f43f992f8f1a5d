package generation

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"latex fence", "```latex\n\\section{x}\n```", `\section{x}`},
		{"surrounding whitespace", "  \n```json\n{}\n```\n ", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripFences(tt.input))
		})
	}
}

func testContract() SchemaContract {
	return SchemaContract{
		Label: "test",
		Shape: &Schema{
			Type:     TypeObject,
			Required: []string{"Overview", "Conclusion"},
		},
	}
}

func TestSchemaContract_Check(t *testing.T) {
	c := testContract()

	t.Run("accepts required keys and tolerates extras", func(t *testing.T) {
		out, err := c.Check(`{"Overview": "o", "Conclusion": "c", "Extra": 1}`)
		require.NoError(t, err)
		assert.JSONEq(t, `{"Overview": "o", "Conclusion": "c", "Extra": 1}`, out)
	})

	t.Run("strips fences before parsing", func(t *testing.T) {
		out, err := c.Check("```json\n{\"Overview\": \"o\", \"Conclusion\": \"c\"}\n```")
		require.NoError(t, err)
		assert.True(t, json.Valid([]byte(out)))
	})

	t.Run("rejects missing key", func(t *testing.T) {
		_, err := c.Check(`{"Overview": "o"}`)
		assert.ErrorIs(t, err, ErrMissingKey)
	})

	t.Run("rejects null required key", func(t *testing.T) {
		_, err := c.Check(`{"Overview": "o", "Conclusion": null}`)
		assert.ErrorIs(t, err, ErrMissingKey)
	})

	t.Run("rejects non-object", func(t *testing.T) {
		for _, raw := range []string{`not json`, `[1,2]`, `null`, `"text"`} {
			_, err := c.Check(raw)
			assert.ErrorIs(t, err, ErrNotJSON, raw)
		}
	})

	t.Run("runs deeper validation", func(t *testing.T) {
		deep := c
		boom := errors.New("bad overview")
		deep.Validate = func(doc map[string]json.RawMessage) error { return boom }
		_, err := deep.Check(`{"Overview": "o", "Conclusion": "c"}`)
		assert.ErrorIs(t, err, boom)
	})
}

func TestMarkupContract_Check(t *testing.T) {
	c := MarkupContract{Label: "latex"}
	assert.Nil(t, c.Schema())

	for _, ok := range []string{
		`\documentclass{article}`,
		`\section{Overview}`,
		`\begin{itemize}`,
		`inline $x$ math`,
		"```latex\n\\subsection{a}\n```",
	} {
		_, err := c.Check(ok)
		assert.NoError(t, err, ok)
	}

	_, err := c.Check("Just a plain paragraph of prose.")
	assert.ErrorIs(t, err, ErrNoMarkupMarkers)
}
