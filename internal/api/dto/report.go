package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-assess/internal/database/models"
)

type CreateReportRequest struct {
	DocumentIDs []string `json:"document_ids,omitempty"`
	Format      string   `json:"format,omitempty"`
	Persona     string   `json:"persona,omitempty"`
}

func (r CreateReportRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Format != "" && !models.ReportFormat(r.Format).Valid() {
		errors["format"] = "Format must be json or latex"
	}
	for _, id := range r.DocumentIDs {
		if _, err := uuid.Parse(id); err != nil {
			errors["document_ids"] = "Invalid document ID: " + id
			break
		}
	}
	if len(r.Persona) > 2000 {
		errors["persona"] = "Persona must be at most 2000 characters"
	}

	return errors
}

// ParsedDocumentIDs assumes Validate passed.
func (r CreateReportRequest) ParsedDocumentIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(r.DocumentIDs))
	for _, s := range r.DocumentIDs {
		ids = append(ids, uuid.MustParse(s))
	}
	return ids
}

type ReportJobResponse struct {
	ID          string   `json:"id"`
	Status      string   `json:"status"`
	Trigger     string   `json:"trigger"`
	Format      string   `json:"format"`
	DocumentIDs []string `json:"document_ids,omitempty"`
	StartedAt   int64    `json:"started_at,omitempty"`
	CompletedAt int64    `json:"completed_at,omitempty"`
	FailureKind string   `json:"failure_kind,omitempty"`
	Reason      string   `json:"reason,omitempty"`
	ReportID    *string  `json:"report_id,omitempty"`
	RisksAdded  int      `json:"risks_added"`
	CreatedAt   string   `json:"created_at"`
}

func NewReportJobResponse(job *models.ReportJob) ReportJobResponse {
	resp := ReportJobResponse{
		ID:          job.ID.String(),
		Status:      string(job.Status),
		Trigger:     string(job.Trigger),
		Format:      string(job.Format),
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
		FailureKind: job.FailureKind,
		Reason:      job.Reason,
		RisksAdded:  job.RisksAdded,
		CreatedAt:   job.CreatedAt.Format(time.RFC3339),
	}
	for _, id := range job.DocumentIDs {
		resp.DocumentIDs = append(resp.DocumentIDs, id.String())
	}
	if job.ReportID != nil {
		s := job.ReportID.String()
		resp.ReportID = &s
	}
	return resp
}

type ReportResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Format      string          `json:"format"`
	UserID      string          `json:"user_id"`
	StartedAt   string          `json:"started_at"`
	CompletedAt string          `json:"completed_at,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	RiskCount   int             `json:"risk_count"`
	Risks       []RiskResponse  `json:"risks,omitempty"`
}

// NewReportResponse includes the payload and risks only when withPayload
// is set.
func NewReportResponse(report *models.Report, withPayload bool) ReportResponse {
	resp := ReportResponse{
		ID:        report.ID.String(),
		Name:      report.Name,
		Format:    string(report.Format),
		UserID:    report.UserID.String(),
		StartedAt: report.StartedAt.Format(time.RFC3339),
		RiskCount: len(report.Risks),
	}
	if report.CompletedAt != nil {
		resp.CompletedAt = report.CompletedAt.Format(time.RFC3339)
	}
	if withPayload {
		resp.Payload = json.RawMessage(report.Payload)
		for i := range report.Risks {
			resp.Risks = append(resp.Risks, NewRiskResponse(&report.Risks[i]))
		}
	}
	return resp
}

type RiskResponse struct {
	ID               string                `json:"id"`
	ReportID         string                `json:"report_id"`
	Name             string                `json:"risk_name"`
	Overview         string                `json:"overview"`
	Severity         string                `json:"severity"`
	AffectedElements []string              `json:"affected_elements"`
	Recommendations  models.Recommendation `json:"recommendations"`
	IsArchived       bool                  `json:"is_archived"`
	ArchivedAt       int64                 `json:"archived_at,omitempty"`
	CreatedAt        string                `json:"created_at"`
}

func NewRiskResponse(risk *models.Risk) RiskResponse {
	elements := risk.Elements()
	if elements == nil {
		elements = []string{}
	}
	return RiskResponse{
		ID:               risk.ID.String(),
		ReportID:         risk.ReportID.String(),
		Name:             risk.Name,
		Overview:         risk.Overview,
		Severity:         string(risk.Severity),
		AffectedElements: elements,
		Recommendations:  risk.Recommendations.Data(),
		IsArchived:       risk.IsArchived,
		ArchivedAt:       risk.ArchivedAt,
		CreatedAt:        risk.CreatedAt.Format(time.RFC3339),
	}
}

type DocumentResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Size      int64  `json:"size"`
	CreatedAt string `json:"created_at"`
}

func NewDocumentResponse(doc *models.SourceDocument) DocumentResponse {
	return DocumentResponse{
		ID:        doc.ID.String(),
		Name:      doc.Name,
		Kind:      string(doc.Kind),
		Size:      doc.Size,
		CreatedAt: doc.CreatedAt.Format(time.RFC3339),
	}
}
