package handler

import (
	"net/http"
	"strings"

	"github.com/capitalize-ai/support-inbox/internal/apperr"
	"github.com/capitalize-ai/support-inbox/internal/model"
	"github.com/capitalize-ai/support-inbox/internal/service"
	"github.com/capitalize-ai/support-inbox/pkg/logger"
)

// WhatsAppHandler handles direct outbound sends.
type WhatsAppHandler struct {
	dispatcher *service.Dispatcher
	logger     *logger.Logger
}

// NewWhatsAppHandler creates a new WhatsApp handler.
func NewWhatsAppHandler(dispatcher *service.Dispatcher, log *logger.Logger) *WhatsAppHandler {
	return &WhatsAppHandler{dispatcher: dispatcher, logger: log}
}

// Send handles POST /api/v1/whatsapp/send
func (h *WhatsAppHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req model.SendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, h.logger, err, "send whatsapp message")
		return
	}

	id, err := h.dispatcher.Send(r.Context(), req.Phone, req.Message)
	h.writeSendResult(w, r, id, err)
}

// SendTemplate handles POST /api/v1/whatsapp/send-template
func (h *WhatsAppHandler) SendTemplate(w http.ResponseWriter, r *http.Request) {
	var req model.SendTemplateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, h.logger, err, "send whatsapp template")
		return
	}

	id, err := h.dispatcher.SendTemplate(r.Context(), req.Phone, req.TemplateName, service.TemplateParams{
		Positional: req.Parameters,
		Named:      req.Named,
	})
	h.writeSendResult(w, r, id, err)
}

// Status handles GET /api/v1/whatsapp/message-status?message_id=SM...
func (h *WhatsAppHandler) Status(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("message_id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, apperr.KindInvalidPayload, "message_id is required")
		return
	}

	status := h.dispatcher.Status(r.Context(), id)
	writeJSON(w, http.StatusOK, &model.StatusResponse{
		Success: status != model.ProviderUnknown,
		Status:  status,
	})
}

// writeSendResult reports provider failures in the send response body so
// callers see the provider's message.
func (h *WhatsAppHandler) writeSendResult(w http.ResponseWriter, r *http.Request, id string, err error) {
	if err != nil {
		if apperr.Is(err, apperr.KindDispatch) {
			writeJSON(w, http.StatusBadGateway, &model.SendResponse{Error: apperr.MessageOf(err)})
			return
		}
		writeAppError(w, r, h.logger, err, "send whatsapp message")
		return
	}
	writeJSON(w, http.StatusOK, &model.SendResponse{Success: true, ProviderMessageID: id})
}
