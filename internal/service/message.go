package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/support-inbox/internal/apperr"
	"github.com/capitalize-ai/support-inbox/internal/model"
	"github.com/capitalize-ai/support-inbox/internal/store"
	"github.com/capitalize-ai/support-inbox/pkg/logger"
	"github.com/capitalize-ai/support-inbox/pkg/metrics"
)

// MessageService records and lists conversation messages.
type MessageService struct {
	messages            store.MessageRepository
	conversationService *ConversationService
	journal             Journal
	logger              *logger.Logger
}

// NewMessageService creates a new message service. journal may be nil.
func NewMessageService(
	messages store.MessageRepository,
	conversationService *ConversationService,
	journal Journal,
	log *logger.Logger,
) *MessageService {
	if journal == nil {
		journal = nopJournal{}
	}
	return &MessageService{
		messages:            messages,
		conversationService: conversationService,
		journal:             journal,
		logger:              log,
	}
}

// Record persists a message. When in.ProviderMessageID is set and a message
// with that id already exists, the existing message is returned and created
// is false. Provider retries therefore never produce a second row.
func (s *MessageService) Record(ctx context.Context, in model.RecordInput) (*model.Message, bool, error) {
	if in.ConversationID == "" {
		return nil, false, apperr.InvalidPayload("conversation id is required")
	}
	if in.SenderKind != model.SenderAgent && in.SenderKind != model.SenderContact {
		return nil, false, apperr.InvalidPayload("unknown sender kind %q", in.SenderKind)
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, false, apperr.InvalidPayload("message content is required")
	}
	if in.Type == "" {
		in.Type = model.MessageText
	}
	if !in.Type.Valid() {
		return nil, false, apperr.InvalidPayload("unknown message type %q", in.Type)
	}

	var providerID *string
	if in.ProviderMessageID != "" {
		if existing, err := s.findReplay(ctx, in.ProviderMessageID); err != nil || existing != nil {
			return existing, false, err
		}
		pid := in.ProviderMessageID
		providerID = &pid
	}

	msg := &model.Message{
		ID:                uuid.Must(uuid.NewV7()).String(),
		ConversationID:    in.ConversationID,
		SenderKind:        in.SenderKind,
		SenderID:          in.SenderID,
		Content:           in.Content,
		Type:              in.Type,
		FromProvider:      in.FromProvider,
		ProviderMessageID: providerID,
		CreatedAt:         time.Now().UTC(),
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		if providerID != nil && apperr.Is(err, apperr.KindConflict) {
			// a concurrent delivery of the same event won the insert
			existing, ferr := s.findReplay(ctx, *providerID)
			if ferr != nil {
				return nil, false, ferr
			}
			if existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, fmt.Errorf("failed to record message: %w", err)
	}

	metrics.MessagesTotal.WithLabelValues(string(msg.SenderKind)).Inc()

	if err := s.conversationService.TouchLastMessage(ctx, msg.ConversationID, msg.CreatedAt); err != nil {
		s.logger.Warn("failed to update conversation last message time",
			zap.String("conversation_id", msg.ConversationID),
			zap.Error(err),
		)
	}

	if _, err := s.journal.PublishMessage(ctx, msg); err != nil {
		metrics.JournalPublishErrors.WithLabelValues("message").Inc()
		s.logger.Warn("failed to publish message to journal",
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
	}

	return msg, true, nil
}

// findReplay returns the message carrying providerID, or nil when none
// exists yet.
func (s *MessageService) findReplay(ctx context.Context, providerID string) (*model.Message, error) {
	existing, err := s.messages.FindByProviderID(ctx, providerID)
	if err == nil {
		metrics.MessagesDeduplicatedTotal.Inc()
		s.logger.Debug("provider message already recorded",
			zap.String("provider_message_id", providerID),
			zap.String("message_id", existing.ID),
		)
		return existing, nil
	}
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, nil
	}
	return nil, fmt.Errorf("failed to look up provider message: %w", err)
}

// GetMessages retrieves messages for a conversation after the given
// sequence, in creation order.
func (s *MessageService) GetMessages(ctx context.Context, conversationID string, afterSequence uint64, limit int) (*model.ListMessagesResponse, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	if _, err := s.conversationService.Get(ctx, conversationID); err != nil {
		return nil, err
	}

	// one extra row tells whether another page exists
	messages, err := s.messages.ListByConversation(ctx, conversationID, afterSequence, limit+1)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[:limit]
	}
	if messages == nil {
		messages = []model.Message{}
	}

	lastSeq := afterSequence
	if n := len(messages); n > 0 {
		lastSeq = messages[n-1].Seq
	}

	return &model.ListMessagesResponse{
		Messages:     messages,
		HasMore:      hasMore,
		LastSequence: lastSeq,
	}, nil
}

// MarkRead flags every unread message of the conversation as read and
// returns how many changed.
func (s *MessageService) MarkRead(ctx context.Context, conversationID string) (int64, error) {
	if _, err := s.conversationService.Get(ctx, conversationID); err != nil {
		return 0, err
	}

	n, err := s.messages.MarkRead(ctx, conversationID, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}
	return n, nil
}
