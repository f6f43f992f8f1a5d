package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func reportJSON(t *testing.T, overview string) string {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		SectionOverview:       overview,
		SectionOrganization:   []string{"Organization: Test Organization", "External IP: 203.0.113.10"},
		SectionQuestionnaire:  []string{"MFA for email: missing."},
		SectionDNS:            []string{"No DMARC record is published."},
		SectionPorts:          []string{"203.0.113.10: port 3389 (RDP) is open."},
		SectionReadiness:      []string{"Email spoofing: High."},
		SectionRecommendation: []string{"Publish a DMARC policy.", "Close port 3389."},
		SectionConclusion:     "Two issues need attention.",
	})
	require.NoError(t, err)
	return string(b)
}

func riskJSON(t *testing.T, names ...string) string {
	t.Helper()
	items := make([]map[string]any, 0, len(names))
	for _, name := range names {
		items = append(items, map[string]any{
			"risk_name":         name,
			"overview":          name + " was found.",
			"severity":          "High",
			"affected_elements": []string{name + " element"},
			"recommendations": map[string]any{
				"easy_fix":      "fix " + name,
				"long_term_fix": "prevent " + name,
			},
		})
	}
	b, err := json.Marshal(map[string]any{"vulnerabilities": items})
	require.NoError(t, err)
	return string(b)
}
