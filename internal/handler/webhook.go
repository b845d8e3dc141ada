package handler

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/support-inbox/internal/apperr"
	"github.com/capitalize-ai/support-inbox/internal/middleware"
	"github.com/capitalize-ai/support-inbox/internal/model"
	"github.com/capitalize-ai/support-inbox/internal/service"
	"github.com/capitalize-ai/support-inbox/pkg/logger"
)

// SignatureChecker verifies that a webhook request was signed by the
// provider.
type SignatureChecker interface {
	ValidForm(fullURL string, form url.Values, signature string) bool
	ValidBody(fullURL string, body []byte, signature string) bool
}

// WebhookHandler receives inbound message notifications.
type WebhookHandler struct {
	ingestor  *service.Ingestor
	signature SignatureChecker
	publicURL string
	logger    *logger.Logger
}

// NewWebhookHandler creates a new webhook handler. A nil signature checker
// disables signature validation. publicURL is the externally visible base
// URL the provider signs against; when empty it is rebuilt from the request.
func NewWebhookHandler(ingestor *service.Ingestor, signature SignatureChecker, publicURL string, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		ingestor:  ingestor,
		signature: signature,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    log,
	}
}

// Receive handles POST /webhooks/whatsapp
// The provider always gets 200 once the request is authenticated; pipeline
// outcomes are logged and counted, never reported back.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.logger.Warn("failed to read webhook body", zap.Error(err))
		writeJSON(w, http.StatusOK, &model.WebhookAck{Success: true})
		return
	}

	ev, form, err := decodeInbound(r.Header.Get("Content-Type"), body)

	if h.signature != nil && !h.verify(r, body, form) {
		h.logger.Warn("webhook signature rejected",
			zap.String("remote_addr", r.RemoteAddr),
			zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
		)
		writeError(w, http.StatusForbidden, apperr.KindForbidden, "invalid signature")
		return
	}

	if err != nil {
		h.logger.Warn("failed to decode webhook payload", zap.Error(err))
		writeJSON(w, http.StatusOK, &model.WebhookAck{Success: true})
		return
	}

	// processing outlives a provider that hangs up early
	res := h.ingestor.Process(context.WithoutCancel(r.Context()), ev)
	h.logger.Debug("webhook processed",
		zap.String("message_sid", ev.MessageID),
		zap.String("state", string(res.State)),
		zap.Bool("duplicate", res.Duplicate),
	)

	writeJSON(w, http.StatusOK, &model.WebhookAck{Success: true})
}

func (h *WebhookHandler) verify(r *http.Request, body []byte, form url.Values) bool {
	sig := r.Header.Get("X-Twilio-Signature")
	if sig == "" {
		return false
	}
	fullURL := h.requestURL(r)
	if form != nil {
		return h.signature.ValidForm(fullURL, form, sig)
	}
	return h.signature.ValidBody(fullURL, body, sig)
}

func (h *WebhookHandler) requestURL(r *http.Request) string {
	if h.publicURL != "" {
		return h.publicURL + r.URL.RequestURI()
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

// decodeInbound decodes either the provider's form fields or a JSON body.
// form is non-nil for form-encoded requests.
func decodeInbound(contentType string, body []byte) (*model.InboundEvent, url.Values, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "application/json" {
		var ev model.InboundEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, nil, apperr.Wrap(apperr.KindInvalidPayload, err, "invalid JSON payload")
		}
		return &ev, nil, nil
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.KindInvalidPayload, err, "invalid form payload")
	}

	ev := &model.InboundEvent{
		MessageID: form.Get("MessageSid"),
		AccountID: form.Get("AccountSid"),
		From:      form.Get("From"),
		To:        form.Get("To"),
		Body:      form.Get("Body"),
		MediaURL:  form.Get("MediaUrl0"),
		MediaType: form.Get("MediaContentType0"),
	}
	if ev.MessageID == "" {
		ev.MessageID = form.Get("SmsMessageSid")
	}
	if n, err := strconv.Atoi(form.Get("NumMedia")); err == nil {
		ev.NumMedia = n
	}
	return ev, form, nil
}
