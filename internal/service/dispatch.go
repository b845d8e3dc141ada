package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/capitalize-ai/support-inbox/internal/apperr"
	"github.com/capitalize-ai/support-inbox/internal/model"
	"github.com/capitalize-ai/support-inbox/internal/phone"
	"github.com/capitalize-ai/support-inbox/pkg/logger"
	"github.com/capitalize-ai/support-inbox/pkg/metrics"
	"github.com/capitalize-ai/support-inbox/pkg/tracing"
)

// Provider is the outbound messaging API. Addresses are channel-prefixed.
type Provider interface {
	Send(ctx context.Context, from, to, body string) (string, error)
	FetchStatus(ctx context.Context, id string) (string, error)
}

// DispatcherConfig configures outbound sends.
type DispatcherConfig struct {
	// Channel is the provider address prefix, e.g. "whatsapp".
	Channel string
	// From is the business number messages are sent from.
	From string
	// Templates maps template names to their text.
	Templates map[string]string
}

// TemplateParams are substituted into a template: Positional[i] replaces
// "{i}" and Named[k] replaces "{k}".
type TemplateParams struct {
	Positional []string
	Named      map[string]string
}

// Dispatcher sends outbound messages through the provider.
type Dispatcher struct {
	cfg           DispatcherConfig
	provider      Provider
	normalizer    phone.Normalizer
	contacts      *ContactService
	conversations *ConversationService
	messages      *MessageService
	logger        *logger.Logger
}

// NewDispatcher creates a new outbound dispatcher.
func NewDispatcher(
	cfg DispatcherConfig,
	provider Provider,
	normalizer phone.Normalizer,
	contacts *ContactService,
	conversations *ConversationService,
	messages *MessageService,
	log *logger.Logger,
) *Dispatcher {
	if cfg.Channel == "" {
		cfg.Channel = "whatsapp"
	}
	return &Dispatcher{
		cfg:           cfg,
		provider:      provider,
		normalizer:    normalizer,
		contacts:      contacts,
		conversations: conversations,
		messages:      messages,
		logger:        log,
	}
}

// Send delivers body to phone and returns the provider message id.
// Provider failures are returned as apperr.KindDispatch errors carrying the
// provider's message.
func (d *Dispatcher) Send(ctx context.Context, rawPhone, body string) (string, error) {
	return d.send(ctx, "text", rawPhone, body)
}

// SendTemplate renders the named template locally and sends the result.
// A name with no configured template is used as the template text.
func (d *Dispatcher) SendTemplate(ctx context.Context, rawPhone, name string, params TemplateParams) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", apperr.InvalidPayload("template name is required")
	}
	body := d.renderTemplate(name, params)
	return d.send(ctx, "template", rawPhone, body)
}

// Status returns the delivery state of a sent message. Provider errors and
// unknown ids map to model.ProviderUnknown.
func (d *Dispatcher) Status(ctx context.Context, providerID string) model.ProviderStatus {
	if strings.TrimSpace(providerID) == "" {
		return model.ProviderUnknown
	}

	raw, err := d.provider.FetchStatus(ctx, providerID)
	if err != nil {
		d.logger.Warn("failed to fetch message status",
			zap.String("provider_message_id", providerID),
			zap.Error(err),
		)
		return model.ProviderUnknown
	}
	return model.ParseProviderStatus(raw)
}

// SendToConversation sends an agent reply to the conversation's contact and
// records it as an outbound message.
func (d *Dispatcher) SendToConversation(ctx context.Context, conversationID, agentID, body string) (*model.Message, error) {
	conv, err := d.conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	contact, err := d.contacts.Get(ctx, conv.ContactID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation contact: %w", err)
	}

	providerID, err := d.send(ctx, "reply", contact.Phone, body)
	if err != nil {
		return nil, err
	}

	var sender *string
	if agentID != "" {
		sender = &agentID
	}
	msg, _, err := d.messages.Record(ctx, model.RecordInput{
		ConversationID:    conv.ID,
		SenderKind:        model.SenderAgent,
		SenderID:          sender,
		Content:           body,
		Type:              model.MessageText,
		ProviderMessageID: providerID,
	})
	if err != nil {
		// the message left already; the caller must not resend it
		d.logger.Error("sent reply could not be recorded",
			zap.String("conversation_id", conv.ID),
			zap.String("provider_message_id", providerID),
			zap.Error(err),
		)
		return nil, err
	}
	return msg, nil
}

func (d *Dispatcher) send(ctx context.Context, kind, rawPhone, body string) (id string, err error) {
	ctx, span := tracing.Tracer("dispatch").Start(ctx, "dispatch.send")
	defer span.End()
	span.SetAttributes(attribute.String("dispatch.kind", kind))

	defer func() {
		metrics.RecordDispatch(kind, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if strings.TrimSpace(body) == "" {
		return "", apperr.InvalidPayload("message body is required")
	}
	to, err := d.normalizer.Normalize(rawPhone)
	if err != nil {
		return "", err
	}
	from, err := d.normalizer.Normalize(d.cfg.From)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, err, "sender number is not configured")
	}

	id, err = d.provider.Send(ctx,
		phone.ChannelAddress(d.cfg.Channel, from),
		phone.ChannelAddress(d.cfg.Channel, to),
		body,
	)
	if err != nil {
		if !apperr.Is(err, apperr.KindDispatch) {
			err = apperr.Dispatch(err, err.Error())
		}
		d.logger.Error("outbound send failed",
			zap.String("kind", kind),
			zap.String("to", to),
			zap.Error(err),
		)
		return "", err
	}

	d.logger.Info("outbound message sent",
		zap.String("kind", kind),
		zap.String("to", to),
		zap.String("provider_message_id", id),
	)
	return id, nil
}

func (d *Dispatcher) renderTemplate(name string, params TemplateParams) string {
	text, ok := d.cfg.Templates[name]
	if !ok {
		text = name
	}
	return RenderTemplate(text, params)
}

// RenderTemplate substitutes params into text in a single pass, so
// replacement values are never expanded again. A text without
// placeholders gets its positional parameters appended as
// "text: p0, p1".
func RenderTemplate(text string, params TemplateParams) string {
	if !strings.ContainsRune(text, '{') {
		if len(params.Positional) == 0 {
			return text
		}
		return text + ": " + strings.Join(params.Positional, ", ")
	}

	pairs := make([]string, 0, 2*(len(params.Positional)+len(params.Named)))
	for i, v := range params.Positional {
		pairs = append(pairs, "{"+strconv.Itoa(i)+"}", v)
	}
	for k, v := range params.Named {
		pairs = append(pairs, "{"+k+"}", v)
	}
	if len(pairs) == 0 {
		return text
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
