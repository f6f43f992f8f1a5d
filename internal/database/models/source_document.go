package models

import "github.com/google/uuid"

type DocumentKind string

const (
	DocumentQuestionnaire DocumentKind = "questionnaire"
	DocumentDNS           DocumentKind = "dns"
	DocumentPortScan      DocumentKind = "port_scan"
	DocumentOther         DocumentKind = "other"
)

func (k DocumentKind) Valid() bool {
	switch k {
	case DocumentQuestionnaire, DocumentDNS, DocumentPortScan, DocumentOther:
		return true
	}
	return false
}

// SourceDocument is a raw scan or questionnaire upload. The body lives in
// the artifact store under StorageKey.
type SourceDocument struct {
	Base
	OrganizationID uuid.UUID    `gorm:"type:uuid;index;not null" json:"organization_id"`
	UploadedBy     uuid.UUID    `gorm:"type:uuid" json:"uploaded_by"`
	Name           string       `gorm:"not null" json:"name"`
	Kind           DocumentKind `gorm:"not null;default:'other'" json:"kind"`
	StorageKey     string       `gorm:"uniqueIndex;not null" json:"-"`
	Size           int64        `json:"size"`

	// Relationships
	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"-"`
}

func (SourceDocument) TableName() string {
	return "source_documents"
}
