package handler

import (
	"net/http"
	"strconv"

	"github.com/capitalize-ai/support-inbox/internal/middleware"
	"github.com/capitalize-ai/support-inbox/internal/model"
	"github.com/capitalize-ai/support-inbox/internal/service"
	"github.com/capitalize-ai/support-inbox/pkg/logger"
)

// MessageHandler handles message endpoints.
type MessageHandler struct {
	messageService *service.MessageService
	dispatcher     *service.Dispatcher
	logger         *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(
	msgSvc *service.MessageService,
	dispatcher *service.Dispatcher,
	log *logger.Logger,
) *MessageHandler {
	return &MessageHandler{
		messageService: msgSvc,
		dispatcher:     dispatcher,
		logger:         log,
	}
}

// List handles GET /api/v1/conversations/:id/messages
// Supports ?after_sequence=N for resuming from a specific point.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	conversationID, err := pathID(r, "id")
	if err != nil {
		writeAppError(w, r, h.logger, err, "get messages")
		return
	}

	afterSequence := uint64(0)
	if seq := r.URL.Query().Get("after_sequence"); seq != "" {
		if parsed, err := strconv.ParseUint(seq, 10, 64); err == nil {
			afterSequence = parsed
		}
	}

	resp, err := h.messageService.GetMessages(r.Context(), conversationID, afterSequence, queryInt(r, "limit", 50))
	if err != nil {
		writeAppError(w, r, h.logger, err, "get messages")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Send handles POST /api/v1/conversations/:id/messages
// The reply goes out to the contact and is recorded as an agent message.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	conversationID, err := pathID(r, "id")
	if err != nil {
		writeAppError(w, r, h.logger, err, "send message")
		return
	}

	var req model.SendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, h.logger, err, "send message")
		return
	}
	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeAppError(w, r, h.logger, err, "send message")
		return
	}

	msg, err := h.dispatcher.SendToConversation(r.Context(), conversationID, middleware.GetUserID(r.Context()), req.Content)
	if err != nil {
		writeAppError(w, r, h.logger, err, "send message")
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

// MarkRead handles POST /api/v1/conversations/:id/read
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	conversationID, err := pathID(r, "id")
	if err != nil {
		writeAppError(w, r, h.logger, err, "mark messages read")
		return
	}

	n, err := h.messageService.MarkRead(r.Context(), conversationID)
	if err != nil {
		writeAppError(w, r, h.logger, err, "mark messages read")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}
