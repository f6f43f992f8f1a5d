package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/go-assess/internal/api/dto"
	"github.com/hugh/go-assess/internal/api/middleware"
	"github.com/hugh/go-assess/internal/database/models"
	"gorm.io/gorm"
)

type RiskHandler struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRiskHandler(db *gorm.DB) *RiskHandler {
	return &RiskHandler{db: db, now: time.Now}
}

// List handles GET /api/v1/risks
func (h *RiskHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrganizationID(r.Context())

	pagination := dto.ParsePagination(r.URL.Query())

	query := h.db.WithContext(r.Context()).Model(&models.Risk{}).Where("organization_id = ?", orgID)

	if s := r.URL.Query().Get("severity"); s != "" {
		severity, err := models.ParseSeverity(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid severity"})
			return
		}
		query = query.Where("severity = ?", severity)
	}

	switch r.URL.Query().Get("archived") {
	case "", "false":
		query = query.Where("is_archived = ?", false)
	case "true":
		query = query.Where("is_archived = ?", true)
	case "all":
	default:
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "archived must be true, false, or all"})
		return
	}

	if reportID := r.URL.Query().Get("report_id"); reportID != "" {
		if id, err := uuid.Parse(reportID); err == nil {
			query = query.Where("report_id = ?", id)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to count risks"})
		return
	}

	var risks []models.Risk
	if err := query.
		Order("severity_rank DESC, created_at ASC").
		Offset(pagination.Offset()).
		Limit(pagination.PerPage).
		Find(&risks).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list risks"})
		return
	}

	response := make([]dto.RiskResponse, len(risks))
	for i := range risks {
		response[i] = dto.NewRiskResponse(&risks[i])
	}

	writeJSON(w, http.StatusOK, dto.NewPage(response, total, pagination))
}

// Get handles GET /api/v1/risks/{id}
func (h *RiskHandler) Get(w http.ResponseWriter, r *http.Request) {
	risk, ok := h.loadRisk(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dto.NewRiskResponse(risk))
}

// Archive handles PUT /api/v1/risks/{id}/archive
func (h *RiskHandler) Archive(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	risk, ok := h.loadRisk(w, r)
	if !ok {
		return
	}
	if risk.IsArchived {
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Risk is already archived"})
		return
	}

	now := h.now().Unix()
	updates := map[string]interface{}{
		"is_archived": true,
		"archived_at": now,
		"archived_by": userID,
	}
	// Guard on is_archived so a concurrent archive is reported as a conflict.
	result := h.db.WithContext(r.Context()).Model(&models.Risk{}).
		Where("id = ? AND is_archived = ?", risk.ID, false).
		Updates(updates)
	if result.Error != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to archive risk"})
		return
	}
	if result.RowsAffected == 0 {
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Risk is already archived"})
		return
	}

	risk.IsArchived = true
	risk.ArchivedAt = now
	risk.ArchivedBy = &userID
	writeJSON(w, http.StatusOK, dto.NewRiskResponse(risk))
}

func (h *RiskHandler) loadRisk(w http.ResponseWriter, r *http.Request) (*models.Risk, bool) {
	orgID := middleware.GetOrganizationID(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid risk ID"})
		return nil, false
	}

	var risk models.Risk
	if err := h.db.WithContext(r.Context()).
		Where("id = ? AND organization_id = ?", id, orgID).
		First(&risk).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Risk not found"})
			return nil, false
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get risk"})
		return nil, false
	}
	return &risk, true
}
