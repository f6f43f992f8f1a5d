package reconcile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/go-assess/internal/database/models"
	"gorm.io/datatypes"
)

// ListKey is the top-level key of a generated risk list.
const ListKey = "vulnerabilities"

// Finding is one candidate risk produced by the model.
type Finding struct {
	Name             string                `json:"risk_name"`
	Overview         string                `json:"overview"`
	Severity         models.Severity       `json:"severity"`
	AffectedElements []string              `json:"affected_elements"`
	Recommendations  models.Recommendation `json:"recommendations"`
}

// RiskList is the generated document.
type RiskList struct {
	Vulnerabilities []Finding `json:"vulnerabilities"`
}

// UnmarshalJSON accepts a severity given as a category name or a 0-10
// score, and affected elements given as a list or a comma-separated string.
func (f *Finding) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name             string                `json:"risk_name"`
		Overview         string                `json:"overview"`
		Severity         json.RawMessage       `json:"severity"`
		AffectedElements json.RawMessage       `json:"affected_elements"`
		Recommendations  models.Recommendation `json:"recommendations"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	sev, err := parseSeverity(raw.Severity)
	if err != nil {
		return fmt.Errorf("risk %q: %w", raw.Name, err)
	}
	elements, err := parseElements(raw.AffectedElements)
	if err != nil {
		return fmt.Errorf("risk %q: %w", raw.Name, err)
	}

	*f = Finding{
		Name:             strings.TrimSpace(raw.Name),
		Overview:         strings.TrimSpace(raw.Overview),
		Severity:         sev,
		AffectedElements: elements,
		Recommendations:  raw.Recommendations,
	}
	return nil
}

func parseSeverity(raw json.RawMessage) (models.Severity, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", errors.New("severity is missing")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return models.ParseSeverity(s)
	}
	var score float64
	if err := json.Unmarshal(raw, &score); err != nil {
		return "", fmt.Errorf("severity must be a category or a score: %w", err)
	}
	if score < 0 || score > 10 {
		return "", fmt.Errorf("severity score %v out of range", score)
	}
	return models.SeverityFromScore(score), nil
}

func parseElements(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return models.SplitElements(s), nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("affected_elements must be a list of strings: %w", err)
	}
	return models.CleanElements(list), nil
}

// ToRisk converts the finding into a row attached to a report.
func (f Finding) ToRisk(reportID, orgID uuid.UUID) models.Risk {
	return models.Risk{
		ReportID:         reportID,
		OrganizationID:   orgID,
		Name:             f.Name,
		Overview:         f.Overview,
		Severity:         f.Severity,
		AffectedElements: f.AffectedElements,
		Recommendations:  datatypes.NewJSONType(f.Recommendations),
	}
}
