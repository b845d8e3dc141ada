// Package handler provides HTTP handlers for the API.
package handler

import (
	"net/http"

	"github.com/capitalize-ai/support-inbox/internal/apperr"
	"github.com/capitalize-ai/support-inbox/internal/authz"
	"github.com/capitalize-ai/support-inbox/internal/middleware"
	"github.com/capitalize-ai/support-inbox/internal/model"
	"github.com/capitalize-ai/support-inbox/internal/service"
	"github.com/capitalize-ai/support-inbox/pkg/logger"
)

// ConversationHandler handles conversation endpoints.
type ConversationHandler struct {
	service *service.ConversationService
	logger  *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(svc *service.ConversationService, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: svc,
		logger:  log,
	}
}

// Create handles POST /api/v1/conversations
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateConversationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, h.logger, err, "create conversation")
		return
	}

	conv, err := h.service.Create(r.Context(), &req)
	if err != nil {
		writeAppError(w, r, h.logger, err, "create conversation")
		return
	}

	writeJSON(w, http.StatusCreated, conv)
}

// List handles GET /api/v1/conversations
// Agents only see conversations assigned to them.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.ConversationFilter{
		Status:          model.ConversationStatus(q.Get("status")),
		AssignedAgentID: q.Get("agent_id"),
		ContactID:       q.Get("contact_id"),
		Limit:           queryInt(r, "limit", 20),
		Offset:          queryInt(r, "offset", 0),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, http.StatusBadRequest, apperr.KindInvalidPayload, "invalid status filter")
		return
	}

	if p := middleware.GetPrincipal(r.Context()); p != nil && authz.NormalizeRole(p.Role) == authz.RoleAgent {
		filter.AssignedAgentID = p.ID
	}

	resp, err := h.service.List(r.Context(), filter)
	if err != nil {
		writeAppError(w, r, h.logger, err, "list conversations")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Visible guards the /conversations/:id routes. Agents get 404 for
// conversations that are not assigned to them.
func (h *ConversationHandler) Visible(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := middleware.GetPrincipal(r.Context())
		if p == nil || authz.NormalizeRole(p.Role) != authz.RoleAgent {
			next.ServeHTTP(w, r)
			return
		}

		id, err := pathID(r, "id")
		if err != nil {
			writeAppError(w, r, h.logger, err, "load conversation")
			return
		}
		conv, err := h.service.Get(r.Context(), id)
		if err != nil {
			writeAppError(w, r, h.logger, err, "load conversation")
			return
		}
		if conv.AssignedAgentID == nil || *conv.AssignedAgentID != p.ID {
			writeAppError(w, r, h.logger, apperr.NotFound("conversation %s not found", id), "load conversation")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Get handles GET /api/v1/conversations/:id
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeAppError(w, r, h.logger, err, "get conversation")
		return
	}

	conv, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeAppError(w, r, h.logger, err, "get conversation")
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// Assign handles PUT /api/v1/conversations/:id/assign
func (h *ConversationHandler) Assign(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeAppError(w, r, h.logger, err, "assign conversation")
		return
	}

	var req model.AssignConversationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, h.logger, err, "assign conversation")
		return
	}

	conv, err := h.service.Assign(r.Context(), id, req.AgentID)
	if err != nil {
		writeAppError(w, r, h.logger, err, "assign conversation")
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// Transition handles PUT /api/v1/conversations/:id/status
func (h *ConversationHandler) Transition(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeAppError(w, r, h.logger, err, "change conversation status")
		return
	}

	var req model.TransitionConversationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, h.logger, err, "change conversation status")
		return
	}

	conv, err := h.service.Transition(r.Context(), id, req.Status)
	if err != nil {
		writeAppError(w, r, h.logger, err, "change conversation status")
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// Delete handles DELETE /api/v1/conversations/:id
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeAppError(w, r, h.logger, err, "delete conversation")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		writeAppError(w, r, h.logger, err, "delete conversation")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
