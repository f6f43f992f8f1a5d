package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/hugh/go-assess/internal/database/models"
	"github.com/hugh/go-assess/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportContract_JSON(t *testing.T) {
	c := ReportContract(models.ReportFormatJSON)
	assert.Equal(t, Sections, c.Schema().Required)

	text, err := c.Check("```json\n" + reportJSON(t, "fine") + "\n```")
	require.NoError(t, err)
	assert.Equal(t, reportJSON(t, "fine"), text)

	_, err = c.Check(`{"Overview": "only this"}`)
	assert.ErrorIs(t, err, generation.ErrMissingKey)

	bad := `{"Overview": ["not", "a", "string"], "Organizational Information": [], "Security Questionnaire Review": [],
		"DNS & Email Security": [], "Port Scanning Results": [], "Risk Assessment & Readiness Summary": [],
		"Recommendations": [], "Conclusion": "done"}`
	_, err = c.Check(bad)
	assert.ErrorIs(t, err, ErrInvalidReport)
}

func TestReportContract_LaTeX(t *testing.T) {
	c := ReportContract(models.ReportFormatLaTeX)
	assert.Nil(t, c.Schema())

	_, err := c.Check(`\documentclass{article}\begin{document}hi\end{document}`)
	assert.NoError(t, err)

	_, err = c.Check("plain prose with no markup")
	assert.ErrorIs(t, err, generation.ErrNoMarkupMarkers)
}

func TestPayloadEncoding(t *testing.T) {
	doc := `\documentclass{article}` + "\n" + `\section{Overview} "quoted"`

	payload, err := EncodePayload(models.ReportFormatLaTeX, doc)
	require.NoError(t, err)
	quoted, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"format": "latex", "document": `+string(quoted)+`}`, string(payload))

	text, err := DocumentText(models.ReportFormatLaTeX, payload)
	require.NoError(t, err)
	assert.Equal(t, doc, text)

	payload, err = EncodePayload(models.ReportFormatJSON, `{"Overview": "x"}`)
	require.NoError(t, err)
	text, err = DocumentText(models.ReportFormatJSON, payload)
	require.NoError(t, err)
	assert.Equal(t, `{"Overview": "x"}`, text)

	_, err = EncodePayload(models.ReportFormatJSON, "not json")
	assert.Error(t, err)
}
