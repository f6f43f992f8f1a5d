package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hugh/go-assess/internal/database/models"
	"github.com/hugh/go-assess/internal/generation"
	"gorm.io/datatypes"
)

// ReportStage labels report generation in logs and metrics.
const ReportStage = "report"

// Report payload sections, in the order they are requested.
const (
	SectionOverview       = "Overview"
	SectionOrganization   = "Organizational Information"
	SectionQuestionnaire  = "Security Questionnaire Review"
	SectionDNS            = "DNS & Email Security"
	SectionPorts          = "Port Scanning Results"
	SectionReadiness      = "Risk Assessment & Readiness Summary"
	SectionRecommendation = "Recommendations"
	SectionConclusion     = "Conclusion"
)

var Sections = []string{
	SectionOverview,
	SectionOrganization,
	SectionQuestionnaire,
	SectionDNS,
	SectionPorts,
	SectionReadiness,
	SectionRecommendation,
	SectionConclusion,
}

var ErrInvalidReport = errors.New("report section has the wrong type")

// ReportSchema describes the JSON report payload.
func ReportSchema() *generation.Schema {
	list := func(desc string) *generation.Schema {
		return &generation.Schema{
			Type:        generation.TypeArray,
			Description: desc,
			Items:       &generation.Schema{Type: generation.TypeString},
		}
	}

	return &generation.Schema{
		Type: generation.TypeObject,
		Properties: map[string]*generation.Schema{
			SectionOverview:       {Type: generation.TypeString, Description: "Executive summary of the assessment."},
			SectionOrganization:   list("Name, domains, IP addresses and assessment date."),
			SectionQuestionnaire:  list("Review of each questionnaire answer."),
			SectionDNS:            list("Analysis of NS, MX, SPF, DMARC and related records."),
			SectionPorts:          list("Open ports per scanned IP and what they expose."),
			SectionReadiness:      list("Risk areas with a rating and a short justification."),
			SectionRecommendation: list("Prioritized, concrete actions."),
			SectionConclusion:     {Type: generation.TypeString, Description: "Closing summary."},
		},
		PropertyOrdering: Sections,
		Required:         Sections,
	}
}

// ReportContract returns the structural check for a report in format.
func ReportContract(format models.ReportFormat) generation.Contract {
	if format == models.ReportFormatLaTeX {
		return generation.MarkupContract{Label: "report-latex"}
	}
	return generation.SchemaContract{
		Label:    "report-json",
		Shape:    ReportSchema(),
		Validate: validateReport,
	}
}

func validateReport(doc map[string]json.RawMessage) error {
	for _, key := range []string{SectionOverview, SectionConclusion} {
		var s string
		if err := json.Unmarshal(doc[key], &s); err != nil {
			return fmt.Errorf("%w: %s must be a string", ErrInvalidReport, key)
		}
	}
	for _, key := range Sections[1 : len(Sections)-1] {
		var items []json.RawMessage
		if err := json.Unmarshal(doc[key], &items); err != nil {
			return fmt.Errorf("%w: %s must be a list", ErrInvalidReport, key)
		}
	}
	return nil
}

// latexPayload wraps a LaTeX document so every payload is a JSON value.
type latexPayload struct {
	Format   models.ReportFormat `json:"format"`
	Document string              `json:"document"`
}

// EncodePayload turns accepted report text into the stored payload.
func EncodePayload(format models.ReportFormat, text string) (datatypes.JSON, error) {
	if format == models.ReportFormatLaTeX {
		b, err := json.Marshal(latexPayload{Format: format, Document: text})
		if err != nil {
			return nil, fmt.Errorf("encoding latex payload: %w", err)
		}
		return datatypes.JSON(b), nil
	}
	if !json.Valid([]byte(text)) {
		return nil, fmt.Errorf("encoding report payload: %w", generation.ErrNotJSON)
	}
	return datatypes.JSON(text), nil
}

// DocumentText returns the report body as generated: the JSON object for
// JSON reports and the LaTeX source for LaTeX reports.
func DocumentText(format models.ReportFormat, payload datatypes.JSON) (string, error) {
	if format != models.ReportFormatLaTeX {
		return string(payload), nil
	}
	var p latexPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return "", fmt.Errorf("decoding latex payload: %w", err)
	}
	return p.Document, nil
}
