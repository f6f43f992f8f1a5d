package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/go-assess/internal/api/dto"
	"github.com/hugh/go-assess/internal/api/middleware"
	"github.com/hugh/go-assess/internal/auth"
	"github.com/hugh/go-assess/internal/database/models"
	"gorm.io/gorm"
)

type OrganizationHandler struct {
	db      *gorm.DB
	members auth.MemberManager
}

func NewOrganizationHandler(db *gorm.DB, members auth.MemberManager) *OrganizationHandler {
	return &OrganizationHandler{db: db, members: members}
}

// Get handles GET /api/v1/organization
func (h *OrganizationHandler) Get(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrganizationID(r.Context())

	var org models.Organization
	if err := h.db.WithContext(r.Context()).First(&org, "id = ?", orgID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Organization not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get organization"})
		return
	}

	var members []models.User
	if err := h.db.WithContext(r.Context()).
		Where("organization_id = ?", orgID).
		Order("created_at ASC").
		Find(&members).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list members"})
		return
	}

	writeJSON(w, http.StatusOK, dto.NewOrganizationResponse(&org, members))
}

// UpdatePosture handles PUT /api/v1/organization/posture
func (h *OrganizationHandler) UpdatePosture(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrganizationID(r.Context())

	var req dto.PostureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	var org models.Organization
	if err := h.db.WithContext(r.Context()).First(&org, "id = ?", orgID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Organization not found"})
		return
	}

	if updates := req.Updates(); len(updates) > 0 {
		if err := h.db.WithContext(r.Context()).Model(&org).Updates(updates).Error; err != nil {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update organization"})
			return
		}
	}

	if err := h.db.WithContext(r.Context()).First(&org, "id = ?", orgID).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get organization"})
		return
	}
	writeJSON(w, http.StatusOK, dto.NewOrganizationResponse(&org, nil))
}

// AddMember handles POST /api/v1/organization/members
func (h *OrganizationHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrganizationID(r.Context())

	var req dto.InviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	user, err := h.members.AddMember(r.Context(), orgID, auth.MemberInput{
		Email:        req.Email,
		Role:         req.Role,
		Capabilities: dto.ParseCapabilities(req.Capabilities),
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserNotFound):
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "No account exists for that email"})
		case errors.Is(err, auth.ErrAlreadyAffiliated):
			writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "User already belongs to an organization"})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to add member"})
		}
		return
	}

	writeJSON(w, http.StatusCreated, dto.NewUserDTO(user))
}

// SetCapabilities handles PUT /api/v1/organization/members/{id}/capabilities
func (h *OrganizationHandler) SetCapabilities(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrganizationID(r.Context())

	memberID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid member ID"})
		return
	}

	var req dto.CapabilitiesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	var target models.User
	if err := h.db.WithContext(r.Context()).
		Where("id = ? AND organization_id = ?", memberID, orgID).
		First(&target).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Member not found"})
		return
	}
	// Owners always hold every capability.
	if target.Role == "owner" {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Owner permissions cannot be changed"})
		return
	}

	user, err := h.members.SetCapabilities(r.Context(), orgID, memberID, dto.ParseCapabilities(req.Capabilities))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update permissions"})
		return
	}

	writeJSON(w, http.StatusOK, dto.NewUserDTO(user))
}
