package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

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

// IngestState is a step of the inbound event state machine.
type IngestState string

const (
	StateReceived  IngestState = "received"
	StateValidated IngestState = "validated"
	StateResolved  IngestState = "resolved"
	StateRecorded  IngestState = "recorded"
	StateCompleted IngestState = "completed"
	StateRejected  IngestState = "rejected"
	StateFailed    IngestState = "failed"
)

// IngestResult describes how one inbound event ended.
type IngestResult struct {
	State IngestState
	// Duplicate is set when the event was a replay of a recorded message.
	Duplicate      bool
	ContactID      string
	ConversationID string
	MessageID      string
	Err            error
}

// IngestConfig holds the expectations inbound events are checked against.
type IngestConfig struct {
	// AccountID must match the event's account; empty accepts any.
	AccountID string
	// Number is the business number events must be addressed to; empty
	// accepts any.
	Number  string
	Timeout time.Duration
}

// Ingestor runs inbound webhook events through validation, contact and
// conversation resolution, and message recording.
type Ingestor struct {
	cfg           IngestConfig
	normalizer    phone.Normalizer
	contacts      *ContactService
	conversations *ConversationService
	messages      *MessageService
	logger        *logger.Logger
}

// NewIngestor creates a new ingestion pipeline.
func NewIngestor(
	cfg IngestConfig,
	normalizer phone.Normalizer,
	contacts *ContactService,
	conversations *ConversationService,
	messages *MessageService,
	log *logger.Logger,
) *Ingestor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Ingestor{
		cfg:           cfg,
		normalizer:    normalizer,
		contacts:      contacts,
		conversations: conversations,
		messages:      messages,
		logger:        log,
	}
}

// Process runs one event to a terminal state. It never returns an error
// or panics: failures are logged, counted and reported in the result.
func (i *Ingestor) Process(ctx context.Context, ev *model.InboundEvent) (res IngestResult) {
	start := time.Now()
	res.State = StateReceived

	ctx, cancel := context.WithTimeout(ctx, i.cfg.Timeout)
	defer cancel()

	ctx, span := tracing.Tracer("ingest").Start(ctx, "ingest.process")
	defer span.End()

	var sid string
	if ev != nil {
		sid = ev.MessageID
	}
	log := i.logger.With(zap.String("message_sid", sid))

	defer func() {
		if r := recover(); r != nil {
			res.State = StateFailed
			res.Err = fmt.Errorf("panic during ingestion: %v", r)
		}

		label := string(res.State)
		if res.Duplicate {
			label = "duplicate"
		}
		metrics.RecordIngest(label, time.Since(start).Seconds())
		span.SetAttributes(
			attribute.String("ingest.state", string(res.State)),
			attribute.Bool("ingest.duplicate", res.Duplicate),
			attribute.String("ingest.message_sid", sid),
		)

		switch res.State {
		case StateRejected:
			log.Warn("inbound event rejected", zap.Error(res.Err))
		case StateFailed:
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
			log.Error("inbound event failed", zap.Error(res.Err))
		default:
			log.Info("inbound event processed",
				zap.String("conversation_id", res.ConversationID),
				zap.String("message_id", res.MessageID),
				zap.Bool("duplicate", res.Duplicate),
			)
		}
	}()

	// Validated
	canonical, err := i.validate(ev)
	if err != nil {
		res.State = StateRejected
		res.Err = err
		return res
	}
	res.State = StateValidated

	// Resolved
	contact, err := i.contacts.ResolveOrCreate(ctx, canonical)
	if err != nil {
		return i.fail(ctx, res, fmt.Errorf("failed to resolve contact: %w", err))
	}
	res.ContactID = contact.ID

	conv, _, err := i.conversations.ResolveOpenOrCreate(ctx, contact.ID)
	if err != nil {
		return i.fail(ctx, res, fmt.Errorf("failed to resolve conversation: %w", err))
	}
	res.ConversationID = conv.ID
	res.State = StateResolved

	// Recorded
	msg, created, err := i.messages.Record(ctx, model.RecordInput{
		ConversationID:    conv.ID,
		SenderKind:        model.SenderContact,
		Content:           ev.Content(),
		Type:              ev.MessageType(),
		FromProvider:      true,
		ProviderMessageID: ev.MessageID,
	})
	if err != nil {
		return i.fail(ctx, res, fmt.Errorf("failed to record message: %w", err))
	}
	res.MessageID = msg.ID
	res.Duplicate = !created
	res.State = StateRecorded

	if err := i.contacts.UpdateLastSeen(ctx, contact.ID, time.Now()); err != nil {
		log.Warn("failed to update contact last seen",
			zap.String("contact_id", contact.ID),
			zap.Error(err),
		)
	}

	if err := ctx.Err(); err != nil {
		return i.fail(ctx, res, err)
	}
	res.State = StateCompleted
	return res
}

// fail ends the run as Failed. A context timeout takes precedence over the
// error reported by the stage it interrupted.
func (i *Ingestor) fail(ctx context.Context, res IngestResult, err error) IngestResult {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = fmt.Errorf("%w: %v", ctxErr, err)
	}
	res.State = StateFailed
	res.Err = err
	return res
}

// validate checks the event and returns the sender's canonical phone.
func (i *Ingestor) validate(ev *model.InboundEvent) (string, error) {
	if ev == nil {
		return "", apperr.InvalidPayload("empty event")
	}
	var missing []string
	if strings.TrimSpace(ev.MessageID) == "" {
		missing = append(missing, "messageId")
	}
	if strings.TrimSpace(ev.From) == "" {
		missing = append(missing, "from")
	}
	if strings.TrimSpace(ev.AccountID) == "" {
		missing = append(missing, "accountId")
	}
	if strings.TrimSpace(ev.Body) == "" && !ev.HasMedia() {
		missing = append(missing, "body")
	}
	if len(missing) > 0 {
		return "", apperr.InvalidPayload("missing fields: %s", strings.Join(missing, ", "))
	}

	if i.cfg.AccountID != "" && ev.AccountID != i.cfg.AccountID {
		return "", apperr.InvalidPayload("unexpected account %s", ev.AccountID)
	}
	if i.cfg.Number != "" {
		want, err := i.normalizer.Normalize(i.cfg.Number)
		if err != nil {
			return "", fmt.Errorf("configured number: %w", err)
		}
		got, err := i.normalizer.Normalize(ev.To)
		if err != nil || got != want {
			return "", apperr.InvalidPayload("event addressed to %q, expected %s", ev.To, want)
		}
	}

	return i.normalizer.Normalize(ev.From)
}
