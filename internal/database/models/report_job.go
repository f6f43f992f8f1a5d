package models

import "github.com/google/uuid"

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

type JobTrigger string

const (
	JobTriggerManual    JobTrigger = "manual"
	JobTriggerScheduled JobTrigger = "scheduled"
)

// ReportJob tracks one queued pipeline invocation.
type ReportJob struct {
	Base
	OrganizationID uuid.UUID  `gorm:"type:uuid;index;not null" json:"organization_id"`
	UserID         uuid.UUID  `gorm:"type:uuid;index;not null" json:"user_id"`
	Status         JobStatus  `gorm:"not null;index;default:'pending'" json:"status"`
	Trigger        JobTrigger `gorm:"default:'manual'" json:"trigger"`

	// Scope
	DocumentIDs []uuid.UUID  `gorm:"type:text;serializer:json" json:"document_ids,omitempty"`
	Format      ReportFormat `json:"format"`
	Persona     string       `json:"persona,omitempty"`

	// Execution
	StartedAt   int64  `json:"started_at,omitempty"`
	CompletedAt int64  `json:"completed_at,omitempty"`
	FailureKind string `json:"failure_kind,omitempty"`
	Reason      string `json:"reason,omitempty"`

	// Outcome
	ReportID   *uuid.UUID `gorm:"type:uuid" json:"report_id,omitempty"`
	RisksAdded int        `gorm:"default:0" json:"risks_added"`

	// Asynq task ID for tracking
	TaskID string `gorm:"index" json:"task_id,omitempty"`

	// Relationships
	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"-"`
}

func (ReportJob) TableName() string {
	return "report_jobs"
}
