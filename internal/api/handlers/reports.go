package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/go-assess/internal/api/dto"
	"github.com/hugh/go-assess/internal/api/middleware"
	"github.com/hugh/go-assess/internal/api/validation"
	"github.com/hugh/go-assess/internal/database/models"
	"github.com/hugh/go-assess/internal/pipeline"
	"github.com/hugh/go-assess/internal/tasks"
	"gorm.io/gorm"
)

type ReportHandler struct {
	db            *gorm.DB
	queue         tasks.Enqueuer
	logger        *slog.Logger
	defaultFormat models.ReportFormat
	jobTimeout    time.Duration
}

func NewReportHandler(db *gorm.DB, queue tasks.Enqueuer, logger *slog.Logger, defaultFormat models.ReportFormat, jobTimeout time.Duration) *ReportHandler {
	if !defaultFormat.Valid() {
		defaultFormat = models.ReportFormatJSON
	}
	return &ReportHandler{
		db:            db,
		queue:         queue,
		logger:        logger,
		defaultFormat: defaultFormat,
		jobTimeout:    jobTimeout,
	}
}

// Create handles POST /api/v1/reports
func (h *ReportHandler) Create(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrganizationID(r.Context())
	userID := middleware.GetUserID(r.Context())

	var req dto.CreateReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	docIDs := req.ParsedDocumentIDs()
	if len(docIDs) > 0 {
		var count int64
		if err := h.db.WithContext(r.Context()).Model(&models.SourceDocument{}).
			Where("organization_id = ? AND id IN ?", orgID, docIDs).
			Count(&count).Error; err != nil {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to verify documents"})
			return
		}
		if int(count) != len(docIDs) {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "One or more documents not found"})
			return
		}
	}

	format := h.defaultFormat
	if req.Format != "" {
		format = models.ReportFormat(req.Format)
	}

	job, err := tasks.EnqueueReportJob(r.Context(), h.db, h.queue, tasks.JobSpec{
		OrganizationID: orgID,
		UserID:         userID,
		DocumentIDs:    docIDs,
		Format:         format,
		Persona:        validation.SanitizeString(req.Persona),
		Trigger:        models.JobTriggerManual,
	}, h.jobTimeout)
	if err != nil {
		if errors.Is(err, tasks.ErrQueueUnavailable) {
			h.logger.Error("failed to enqueue report job", "error", err, "organization_id", orgID)
			writeJSON(w, http.StatusServiceUnavailable, dto.NewReportJobResponse(job))
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create report job"})
		return
	}

	writeJSON(w, http.StatusAccepted, dto.NewReportJobResponse(job))
}

// GetJob handles GET /api/v1/report-jobs/{id}
func (h *ReportHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrganizationID(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid job ID"})
		return
	}

	var job models.ReportJob
	query := h.db.WithContext(r.Context()).Where("id = ? AND organization_id = ?", id, orgID)
	query = h.scopeToViewer(r, query)
	if err := query.First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Report job not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get report job"})
		return
	}

	writeJSON(w, http.StatusOK, dto.NewReportJobResponse(&job))
}

// List handles GET /api/v1/reports
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrganizationID(r.Context())

	pagination := dto.ParsePagination(r.URL.Query())

	query := h.db.WithContext(r.Context()).Model(&models.Report{}).Where("organization_id = ?", orgID)
	query = h.scopeToViewer(r, query)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to count reports"})
		return
	}

	var reports []models.Report
	if err := query.
		Preload("Risks", func(db *gorm.DB) *gorm.DB { return db.Select("id", "report_id") }).
		Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.PerPage).
		Find(&reports).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list reports"})
		return
	}

	response := make([]dto.ReportResponse, len(reports))
	for i := range reports {
		response[i] = dto.NewReportResponse(&reports[i], false)
	}

	writeJSON(w, http.StatusOK, dto.NewPage(response, total, pagination))
}

// Get handles GET /api/v1/reports/{id}
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	report, ok := h.loadReport(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, dto.NewReportResponse(report, true))
}

// Export handles GET /api/v1/reports/{id}/export
func (h *ReportHandler) Export(w http.ResponseWriter, r *http.Request) {
	report, ok := h.loadReport(w, r)
	if !ok {
		return
	}

	text, err := pipeline.DocumentText(report.Format, report.Payload)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to export report"})
		return
	}

	filename := exportFilename(report.Name)
	var body []byte
	switch report.Format {
	case models.ReportFormatLaTeX:
		w.Header().Set("Content-Type", "application/x-tex")
		filename += ".tex"
		body = []byte(text)
	default:
		var buf bytes.Buffer
		if err := json.Indent(&buf, []byte(text), "", "    "); err != nil {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to export report"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		filename += ".json"
		body = buf.Bytes()
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *ReportHandler) loadReport(w http.ResponseWriter, r *http.Request) (*models.Report, bool) {
	orgID := middleware.GetOrganizationID(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid report ID"})
		return nil, false
	}

	var report models.Report
	query := h.db.WithContext(r.Context()).Where("id = ? AND organization_id = ?", id, orgID)
	query = h.scopeToViewer(r, query)
	if err := query.
		Preload("Risks", func(db *gorm.DB) *gorm.DB { return db.Order("severity_rank DESC, created_at ASC") }).
		First(&report).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Report not found"})
			return nil, false
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get report"})
		return nil, false
	}
	return &report, true
}

// scopeToViewer limits a query to the caller's own rows unless they may
// view every report in the organization.
func (h *ReportHandler) scopeToViewer(r *http.Request, query *gorm.DB) *gorm.DB {
	if user := middleware.GetUser(r.Context()); user != nil && user.Has(models.CapViewAnyReport) {
		return query
	}
	return query.Where("user_id = ?", middleware.GetUserID(r.Context()))
}

func exportFilename(name string) string {
	name = validation.SanitizeFilename(name)
	name = strings.ReplaceAll(name, " ", "_")
	if name == "" {
		return "report"
	}
	return name
}
