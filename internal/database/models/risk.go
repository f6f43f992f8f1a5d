package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities so that critical sorts highest.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// SeverityFromScore maps a 0-10 numeric score (plain or CVSS) to a category.
func SeverityFromScore(score float64) Severity {
	switch {
	case score >= 9:
		return SeverityCritical
	case score >= 7:
		return SeverityHigh
	case score >= 4:
		return SeverityMedium
	case score > 0:
		return SeverityLow
	default:
		return SeverityInfo
	}
}

// ParseSeverity accepts a category name in any case ("Informational" too)
// or a numeric score in string form.
func ParseSeverity(v string) (Severity, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "critical":
		return SeverityCritical, nil
	case "high":
		return SeverityHigh, nil
	case "medium", "moderate":
		return SeverityMedium, nil
	case "low":
		return SeverityLow, nil
	case "info", "informational", "none":
		return SeverityInfo, nil
	}
	if score, err := strconv.ParseFloat(v, 64); err == nil && score >= 0 && score <= 10 {
		return SeverityFromScore(score), nil
	}
	return "", fmt.Errorf("unrecognized severity %q", v)
}

type Resource struct {
	Type        string `json:"type"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

type Recommendation struct {
	EasyFix     string     `json:"easy_fix"`
	LongTermFix string     `json:"long_term_fix"`
	Resources   []Resource `json:"resources,omitempty"`
}

type Risk struct {
	Base
	ReportID       uuid.UUID `gorm:"type:uuid;index;not null" json:"report_id"`
	OrganizationID uuid.UUID `gorm:"type:uuid;index;not null" json:"organization_id"`

	Name             string   `gorm:"not null" json:"risk_name"`
	Overview         string   `gorm:"type:text" json:"overview"`
	Severity         Severity `gorm:"not null;index" json:"severity"`
	SeverityRank     int      `gorm:"index" json:"-"`
	AffectedElements []string `gorm:"type:text;serializer:json" json:"affected_elements"`

	Recommendations datatypes.JSONType[Recommendation] `json:"recommendations"`

	// Resolution
	IsArchived bool       `gorm:"default:false;index" json:"is_archived"`
	ArchivedAt int64      `json:"archived_at,omitempty"`
	ArchivedBy *uuid.UUID `gorm:"type:uuid" json:"archived_by,omitempty"`

	// Relationships
	Report       *Report       `gorm:"foreignKey:ReportID" json:"-"`
	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"-"`
}

func (Risk) TableName() string {
	return "risks"
}

func (r *Risk) BeforeSave(tx *gorm.DB) error {
	r.SeverityRank = r.Severity.Rank()
	return nil
}

const elementSeparator = ", "

// JoinElements renders affected elements as one line for prompts and display.
func JoinElements(elements []string) string {
	return strings.Join(elements, elementSeparator)
}

// SplitElements parses a comma-separated element string. Only model output
// arrives in this form; stored risks keep the list as-is.
func SplitElements(s string) []string {
	return CleanElements(strings.Split(s, ","))
}

// CleanElements trims each element and drops blanks. It returns nil when
// nothing is left.
func CleanElements(elements []string) []string {
	var out []string
	for _, e := range elements {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}

func (r *Risk) Elements() []string {
	return CleanElements(r.AffectedElements)
}
