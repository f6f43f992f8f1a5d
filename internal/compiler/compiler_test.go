package compiler

import (
	"context"
	"strings"
	"testing"

	"github.com/hugh/go-assess/pkg/util"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memLoader(t *testing.T, files map[string]string) FSLoader {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, body := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(body), 0o644))
	}
	return FSLoader{Fs: fs}
}

func TestCompile_SkipsMissingDocument(t *testing.T) {
	loader := memLoader(t, map[string]string{
		"ok.json": `{"a": 1}`,
	})
	c := New(loader, WithLogger(util.NopLogger()))

	out := c.Compile(context.Background(), []string{"ok.json", "missing.json"})

	assert.Equal(t, "ok.json:\na: 1\n--\n", out)
	assert.NotContains(t, out, "missing.json")
}

func TestCompile_PreservesInputOrder(t *testing.T) {
	loader := memLoader(t, map[string]string{
		"questionnaire.json": `{"organization_name": "Acme"}`,
		"dig_domain.json":    `{"A": ["203.0.113.10"]}`,
		"nmap.json":          `{"ports": [22, 443]}`,
	})
	c := New(loader, WithLogger(util.NopLogger()))
	locations := []string{"nmap.json", "questionnaire.json", "dig_domain.json"}

	out := c.Compile(context.Background(), locations)

	last := -1
	for _, loc := range locations {
		assert.Equal(t, 1, strings.Count(out, loc+":\n"), loc)
		idx := strings.Index(out, loc+":\n")
		assert.Greater(t, idx, last, "block %s out of order", loc)
		last = idx
	}
	assert.Equal(t, len(locations), strings.Count(out, "\n"+Separator+"\n"))
}

func TestCompile_MalformedDocumentDoesNotAbortBatch(t *testing.T) {
	loader := memLoader(t, map[string]string{
		"bad.json":   `{"a": `,
		"good.json":  `{"b": true}`,
		"empty.json": "",
	})
	c := New(loader, WithLogger(util.NopLogger()))

	out := c.Compile(context.Background(), []string{"bad.json", "empty.json", "good.json"})

	assert.Equal(t, "good.json:\nb: true\n--\n", out)
}

func TestCompile_PlaceholderPolicy(t *testing.T) {
	loader := memLoader(t, map[string]string{
		"bad.json": `not json`,
	})
	c := New(loader, WithLogger(util.NopLogger()), WithErrorPolicy(Placeholder))

	out := c.Compile(context.Background(), []string{"missing.json", "bad.json"})

	assert.Equal(t,
		"missing.json:\n[unavailable: not found]\n--\n"+
			"bad.json:\n[unavailable: malformed]\n--\n",
		out)
}

func TestCompile_EmptyInput(t *testing.T) {
	c := New(memLoader(t, nil), WithLogger(util.NopLogger()))
	assert.Equal(t, "", c.Compile(context.Background(), nil))
}

func TestCompile_PrettyFormat(t *testing.T) {
	loader := memLoader(t, map[string]string{
		"doc.json": `{"z":1,"a":{"k":"v"}}`,
	})
	c := New(loader, WithLogger(util.NopLogger()), WithFormat(FormatPretty))

	out := c.Compile(context.Background(), []string{"doc.json"})

	expected := "doc.json:\n{\n  \"z\": 1,\n  \"a\": {\n    \"k\": \"v\"\n  }\n}\n--\n"
	assert.Equal(t, expected, out)
}

func TestCompileSources_UsesLabel(t *testing.T) {
	loader := memLoader(t, map[string]string{
		"01HZX/abc": `{"MX": "mail.example.com"}`,
	})
	c := New(loader, WithLogger(util.NopLogger()))

	out := c.CompileSources(context.Background(), []Source{{Label: "dig_mx.json", Location: "01HZX/abc"}})

	assert.Equal(t, "dig_mx.json:\nMX: mail.example.com\n--\n", out)
}

func TestFlatten(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "keeps key order",
			input:    `{"zeta": 1, "alpha": 2}`,
			expected: "zeta: 1\nalpha: 2",
		},
		{
			name:     "nested values stay inline",
			input:    `{"dns": {"spf": "v=spf1 -all", "mx": ["a", "b"]}, "ok": false, "note": null}`,
			expected: "dns: {spf: v=spf1 -all, mx: [a, b]}\nok: false\nnote: null",
		},
		{
			name:     "top-level array",
			input:    `[{"port": 3389, "state": "open"}, 443]`,
			expected: "{port: 3389, state: open}\n443",
		},
		{
			name:     "numbers keep their text",
			input:    `{"cvss": 9.80}`,
			expected: "cvss: 9.80",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := flatten([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestFlatten_RejectsTrailingData(t *testing.T) {
	_, err := flatten([]byte(`{"a":1} {"b":2}`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("Pretty")
	require.NoError(t, err)
	assert.Equal(t, FormatPretty, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatFlat, f)

	_, err = ParseFormat("yaml")
	assert.Error(t, err)
}
