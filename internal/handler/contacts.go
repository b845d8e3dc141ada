package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/support-inbox/internal/model"
	"github.com/capitalize-ai/support-inbox/internal/service"
	"github.com/capitalize-ai/support-inbox/pkg/logger"
)

// ContactHandler handles contact endpoints.
type ContactHandler struct {
	service *service.ContactService
	logger  *logger.Logger
}

// NewContactHandler creates a new contact handler.
func NewContactHandler(svc *service.ContactService, log *logger.Logger) *ContactHandler {
	return &ContactHandler{service: svc, logger: log}
}

// List handles GET /api/v1/contacts
func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.List(r.Context(), queryInt(r, "limit", 20), queryInt(r, "offset", 0))
	if err != nil {
		writeAppError(w, r, h.logger, err, "list contacts")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create handles POST /api/v1/contacts
func (h *ContactHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateContactRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, h.logger, err, "create contact")
		return
	}

	contact, err := h.service.Create(r.Context(), &req)
	if err != nil {
		writeAppError(w, r, h.logger, err, "create contact")
		return
	}
	writeJSON(w, http.StatusCreated, contact)
}

// Get handles GET /api/v1/contacts/:id
func (h *ContactHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeAppError(w, r, h.logger, err, "get contact")
		return
	}

	contact, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeAppError(w, r, h.logger, err, "get contact")
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

// GetByPhone handles GET /api/v1/contacts/phone/:phone
// The number may be raw or channel-prefixed; it is normalized first.
func (h *ContactHandler) GetByPhone(w http.ResponseWriter, r *http.Request) {
	contact, err := h.service.FindByPhone(r.Context(), chi.URLParam(r, "phone"))
	if err != nil {
		writeAppError(w, r, h.logger, err, "get contact by phone")
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

// Update handles PUT /api/v1/contacts/:id
func (h *ContactHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeAppError(w, r, h.logger, err, "update contact")
		return
	}

	var req model.UpdateContactRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, h.logger, err, "update contact")
		return
	}

	contact, err := h.service.Rename(r.Context(), id, &req)
	if err != nil {
		writeAppError(w, r, h.logger, err, "update contact")
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

// Delete handles DELETE /api/v1/contacts/:id
func (h *ContactHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeAppError(w, r, h.logger, err, "delete contact")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		writeAppError(w, r, h.logger, err, "delete contact")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
