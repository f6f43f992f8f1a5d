package models

import (
	"slices"

	"github.com/google/uuid"
)

type Capability string

const (
	CapInvite          Capability = "invite"
	CapEditPermissions Capability = "edit_permissions"
	CapViewAnyReport   Capability = "view_any_report"
	CapGenerateReport  Capability = "generate_report"
	CapExportReport    Capability = "export_report"
	CapViewRisk        Capability = "view_risk"
	CapResolveRisk     Capability = "resolve_risk"
	CapGenerateRisk    Capability = "generate_risk"
)

// AllCapabilities is granted to organization owners on registration.
var AllCapabilities = []Capability{
	CapInvite, CapEditPermissions, CapViewAnyReport, CapGenerateReport,
	CapExportReport, CapViewRisk, CapResolveRisk, CapGenerateRisk,
}

type AutoFrequency string

const (
	FrequencyNone      AutoFrequency = "none"
	FrequencyMonthly   AutoFrequency = "monthly"
	FrequencyQuarterly AutoFrequency = "quarterly"
	FrequencyYearly    AutoFrequency = "yearly"
)

// CronExpr returns the schedule for automated report runs, or "" for none.
func (f AutoFrequency) CronExpr() string {
	switch f {
	case FrequencyMonthly:
		return "0 0 1 * *"
	case FrequencyQuarterly:
		return "0 0 1 */3 *"
	case FrequencyYearly:
		return "0 0 1 1 *"
	default:
		return ""
	}
}

func (f AutoFrequency) Valid() bool {
	switch f {
	case FrequencyNone, FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
		return true
	}
	return false
}

type User struct {
	Base
	Email          string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash   string     `gorm:"not null" json:"-"`
	Name           string     `json:"name"`
	OrganizationID *uuid.UUID `gorm:"type:uuid;index" json:"organization_id,omitempty"`
	Role           string     `gorm:"default:'member'" json:"role"` // owner, admin, member
	IsActive       bool       `gorm:"default:true" json:"is_active"`

	// Display preferences
	FontSize string `gorm:"default:'medium'" json:"font_size"` // small, medium, large
	Theme    string `gorm:"default:'dark'" json:"theme"`       // dark, light

	// Automated report generation
	AutoFrequency AutoFrequency `gorm:"default:'none';index" json:"auto_frequency"`
	NextAutoRunAt int64         `gorm:"index" json:"next_auto_run_at,omitempty"`

	Capabilities []Capability `gorm:"type:text;serializer:json" json:"capabilities"`

	// Relationships
	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) Has(c Capability) bool {
	return slices.Contains(u.Capabilities, c)
}

// OrgID returns the user's organization or uuid.Nil when unaffiliated.
func (u *User) OrgID() uuid.UUID {
	if u.OrganizationID == nil {
		return uuid.Nil
	}
	return *u.OrganizationID
}
