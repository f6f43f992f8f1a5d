package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ReportFormat string

const (
	ReportFormatJSON  ReportFormat = "json"
	ReportFormatLaTeX ReportFormat = "latex"
)

func (f ReportFormat) Valid() bool {
	return f == ReportFormatJSON || f == ReportFormatLaTeX
}

// Report is written once by the pipeline and never updated afterwards.
type Report struct {
	Base
	UserID         uuid.UUID    `gorm:"type:uuid;index;not null" json:"user_id"`
	OrganizationID uuid.UUID    `gorm:"type:uuid;index;not null" json:"organization_id"`
	Name           string       `gorm:"not null" json:"name"`
	Format         ReportFormat `gorm:"not null;default:'json'" json:"format"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Payload datatypes.JSON `json:"payload"`

	// Relationships
	User         *User         `gorm:"foreignKey:UserID" json:"-"`
	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"-"`
	Risks        []Risk        `gorm:"foreignKey:ReportID" json:"risks,omitempty"`
}

func (Report) TableName() string {
	return "reports"
}
