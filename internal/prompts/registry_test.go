package prompts

import (
	"encoding/json"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/hugh/go-assess/internal/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExample(t *testing.T) {
	assert.Equal(t, "Example:\nin\n\nout", Example("in", "out"))
}

func TestDefault_LoadsEmbeddedCatalog(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	assert.NotEmpty(t, r.DefaultPersona())
	assert.Contains(t, r.ReportInstructions(models.ReportFormatJSON), "JSON object")
	assert.Contains(t, r.ReportInstructions(models.ReportFormatLaTeX), `\documentclass`)
	assert.Contains(t, r.RiskInstructions(), "Do not repeat")
}

func TestReportInstructions_CorrelationAndAnalysis(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	text := r.ReportInstructions(models.ReportFormatJSON)
	for _, want := range []string{"_dmarc", "A records", "MX records", "Port scan", "Overview", "Conclusion"} {
		assert.Contains(t, text, want)
	}
}

func TestReportExample_EmbedsSchemaShapedOutput(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	ex := r.ReportExample(models.ReportFormatJSON)
	require.True(t, strings.HasPrefix(ex, "Example:\n"))

	_, output, found := strings.Cut(strings.TrimPrefix(ex, "Example:\n"), "\n--\n\n")
	require.True(t, found)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(output), &payload))
	for _, key := range []string{
		"Overview", "Organizational Information", "Security Questionnaire Review",
		"DNS & Email Security", "Port Scanning Results", "Risk Assessment & Readiness Summary",
		"Recommendations", "Conclusion",
	} {
		assert.Contains(t, payload, key)
	}

	latex := r.ReportExample(models.ReportFormatLaTeX)
	assert.Contains(t, latex, `\section{Overview}`)
}

func TestRiskExample_LeavesOutExistingRisk(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	ex := r.RiskExample()
	assert.Contains(t, ex, "Example current risks:")
	assert.Contains(t, ex, "Exposed Remote Desktop (RDP)")

	_, output, found := strings.Cut(ex, "\n\n{\n  \"vulnerabilities\"")
	require.True(t, found)
	assert.NotContains(t, output, "Remote Desktop")
	assert.Contains(t, output, "Missing DMARC Policy")
}

func TestLoad_IncompleteCatalog(t *testing.T) {
	fsys := fstest.MapFS{
		"catalog.yaml": &fstest.MapFile{Data: []byte("persona: hi\nrisk: find risks\n")},
	}

	_, err := Load(fsys)
	assert.ErrorIs(t, err, ErrIncompleteCatalog)
}

func TestLoad_RejectsInvalidJSONExample(t *testing.T) {
	catalog := `
report:
  core: analyze
  output:
    json: json please
    latex: latex please
risk: find risks
examples:
  report_context: ctx.txt
  report_output_json: out.json
  report_output_latex: out.tex
  risk_input: risk_in.json
  risk_existing: existing.json
  risk_output: risk_out.json
`
	fsys := fstest.MapFS{
		"catalog.yaml":  &fstest.MapFile{Data: []byte(catalog)},
		"ctx.txt":       &fstest.MapFile{Data: []byte("a:\nb\n--\n")},
		"out.json":      &fstest.MapFile{Data: []byte(`{"Overview": "x"}`)},
		"out.tex":       &fstest.MapFile{Data: []byte(`\section{x}`)},
		"risk_in.json":  &fstest.MapFile{Data: []byte(`{`)},
		"existing.json": &fstest.MapFile{Data: []byte(`[]`)},
		"risk_out.json": &fstest.MapFile{Data: []byte(`{"vulnerabilities": []}`)},
	}

	_, err := Load(fsys)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "risk_input")

	fsys["risk_in.json"] = &fstest.MapFile{Data: []byte(`{"Overview": "y"}`)}
	r, err := Load(fsys)
	require.NoError(t, err)
	assert.Equal(t, "analyze\n\njson please", r.ReportInstructions(models.ReportFormatJSON))
	assert.Equal(t, "", r.DefaultPersona())
}
