package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/go-assess/internal/api/dto"
	"github.com/hugh/go-assess/internal/api/middleware"
	"github.com/hugh/go-assess/internal/api/validation"
	"github.com/hugh/go-assess/internal/artifacts"
	"github.com/hugh/go-assess/internal/database/models"
	"gorm.io/gorm"
)

// MaxDocumentSize bounds a single uploaded scan document.
const MaxDocumentSize = 10 << 20

type DocumentHandler struct {
	db     *gorm.DB
	store  artifacts.Store
	logger *slog.Logger
}

func NewDocumentHandler(db *gorm.DB, store artifacts.Store, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{db: db, store: store, logger: logger}
}

// Upload handles POST /api/v1/documents (multipart field "file")
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrganizationID(r.Context())
	userID := middleware.GetUserID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, MaxDocumentSize+1<<20)
	if err := r.ParseMultipartForm(MaxDocumentSize); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid upload"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "File is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxDocumentSize+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Failed to read upload"})
		return
	}
	if len(data) > MaxDocumentSize {
		writeJSON(w, http.StatusRequestEntityTooLarge, dto.ErrorResponse{Error: "Document is too large"})
		return
	}
	if !validation.IsJSONDocument(data) {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Document must be a JSON object or array"})
		return
	}

	kind := models.DocumentKind(r.FormValue("kind"))
	if kind == "" {
		kind = models.DocumentOther
	}
	if !kind.Valid() {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Details: map[string]string{"kind": "Kind must be questionnaire, dns, port_scan, or other"},
		})
		return
	}

	name := validation.SanitizeFilename(header.Filename)
	if name == "" {
		name = "document.json"
	}

	key := artifacts.NewKey(orgID, name)
	if err := h.store.Save(r.Context(), key, data); err != nil {
		h.logger.Error("failed to store document", "error", err, "organization_id", orgID)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to store document"})
		return
	}

	doc := models.SourceDocument{
		OrganizationID: orgID,
		UploadedBy:     userID,
		Name:           name,
		Kind:           kind,
		StorageKey:     key,
		Size:           int64(len(data)),
	}
	if err := h.db.WithContext(r.Context()).Create(&doc).Error; err != nil {
		if derr := h.store.Delete(r.Context(), key); derr != nil {
			h.logger.Warn("failed to remove orphaned document", "error", derr, "key", key)
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to save document"})
		return
	}

	writeJSON(w, http.StatusCreated, dto.NewDocumentResponse(&doc))
}

// List handles GET /api/v1/documents
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrganizationID(r.Context())

	query := h.db.WithContext(r.Context()).Where("organization_id = ?", orgID)
	if kind := r.URL.Query().Get("kind"); kind != "" {
		query = query.Where("kind = ?", kind)
	}

	var docs []models.SourceDocument
	if err := query.Order("created_at ASC").Find(&docs).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list documents"})
		return
	}

	response := make([]dto.DocumentResponse, len(docs))
	for i := range docs {
		response[i] = dto.NewDocumentResponse(&docs[i])
	}

	writeJSON(w, http.StatusOK, response)
}

// Delete handles DELETE /api/v1/documents/{id}
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrganizationID(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid document ID"})
		return
	}

	var doc models.SourceDocument
	if err := h.db.WithContext(r.Context()).
		Where("id = ? AND organization_id = ?", id, orgID).
		First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Document not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get document"})
		return
	}

	if err := h.db.WithContext(r.Context()).Delete(&doc).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete document"})
		return
	}
	if err := h.store.Delete(r.Context(), doc.StorageKey); err != nil {
		h.logger.Warn("failed to remove document body", "error", err, "key", doc.StorageKey)
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Document deleted"})
}
