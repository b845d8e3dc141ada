package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/support-inbox/internal/apperr"
	"github.com/capitalize-ai/support-inbox/internal/model"
	"github.com/capitalize-ai/support-inbox/internal/store"
	"github.com/capitalize-ai/support-inbox/pkg/logger"
	"github.com/capitalize-ai/support-inbox/pkg/metrics"
)

// Journal receives recorded messages and conversation events. The NATS
// stream manager implements it; publishing is best effort.
type Journal interface {
	PublishMessage(ctx context.Context, msg *model.Message) (uint64, error)
	PublishEvent(ctx context.Context, event *model.ConversationEvent) error
}

type nopJournal struct{}

func (nopJournal) PublishMessage(context.Context, *model.Message) (uint64, error) { return 0, nil }
func (nopJournal) PublishEvent(context.Context, *model.ConversationEvent) error   { return nil }

// transitions lists the allowed status edges.
var transitions = map[model.ConversationStatus][]model.ConversationStatus{
	model.StatusActive:   {model.StatusPaused, model.StatusResolved},
	model.StatusPaused:   {model.StatusActive, model.StatusResolved},
	model.StatusResolved: {model.StatusActive},
}

// CanTransition reports whether a conversation may move from one status to
// another. Staying in the same status is always allowed.
func CanTransition(from, to model.ConversationStatus) bool {
	if from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ConversationService handles conversation operations.
type ConversationService struct {
	conversations store.ConversationRepository
	journal       Journal
	logger        *logger.Logger

	// contactLocks serializes open-or-create per contact; convLocks
	// serializes read-modify-write of one conversation.
	contactLocks *keyLock
	convLocks    *keyLock
}

// NewConversationService creates a new conversation service. journal may be
// nil.
func NewConversationService(conversations store.ConversationRepository, journal Journal, log *logger.Logger) *ConversationService {
	if journal == nil {
		journal = nopJournal{}
	}
	return &ConversationService{
		conversations: conversations,
		journal:       journal,
		logger:        log,
		contactLocks:  newKeyLock(),
		convLocks:     newKeyLock(),
	}
}

// ResolveOpenOrCreate returns the contact's most recently updated open
// conversation, or opens a new active one. created reports whether a new
// conversation was opened.
//
// Resolved conversations are never reopened here: a contact writing after
// resolution starts a fresh conversation.
func (s *ConversationService) ResolveOpenOrCreate(ctx context.Context, contactID string) (*model.Conversation, bool, error) {
	unlock, err := s.contactLocks.Lock(ctx, contactID)
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	conv, err := s.conversations.FindOpenByContact(ctx, contactID)
	if err == nil {
		return conv, false, nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return nil, false, fmt.Errorf("failed to find open conversation: %w", err)
	}

	conv = &model.Conversation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		ContactID: contactID,
		Status:    model.StatusActive,
		Priority:  model.PriorityMedium,
	}
	if err := s.conversations.Create(ctx, conv); err != nil {
		if !apperr.Is(err, apperr.KindConflict) {
			return nil, false, fmt.Errorf("failed to create conversation: %w", err)
		}
		// another process opened one first
		conv, err = s.conversations.FindOpenByContact(ctx, contactID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to re-fetch conversation after conflict: %w", err)
		}
		return conv, false, nil
	}

	metrics.ConversationsTotal.WithLabelValues("inbound").Inc()
	s.logger.Info("conversation created",
		zap.String("conversation_id", conv.ID),
		zap.String("contact_id", contactID),
	)
	s.publishEvent(ctx, conv.ID, model.EventTypeCreated, "inbound message", nil)

	return conv, true, nil
}

// Create opens a conversation explicitly. It fails with a conflict when the
// contact already has an open conversation.
func (s *ConversationService) Create(ctx context.Context, req *model.CreateConversationRequest) (*model.Conversation, error) {
	priority := req.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !priority.Valid() {
		return nil, apperr.InvalidPayload("unknown priority %q", priority)
	}

	unlock, err := s.contactLocks.Lock(ctx, req.ContactID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	conv := &model.Conversation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		ContactID: req.ContactID,
		Status:    model.StatusActive,
		Priority:  priority,
		Notes:     req.Notes,
	}
	if err := s.conversations.Create(ctx, conv); err != nil {
		return nil, err
	}

	metrics.ConversationsTotal.WithLabelValues("api").Inc()
	s.logger.Info("conversation created",
		zap.String("conversation_id", conv.ID),
		zap.String("contact_id", req.ContactID),
	)
	s.publishEvent(ctx, conv.ID, model.EventTypeCreated, "api", nil)

	return conv, nil
}

// Get retrieves a conversation by ID.
func (s *ConversationService) Get(ctx context.Context, id string) (*model.Conversation, error) {
	return s.conversations.Get(ctx, id)
}

// List retrieves conversations matching f, most recently updated first.
func (s *ConversationService) List(ctx context.Context, f model.ConversationFilter) (*model.ListConversationsResponse, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.InvalidPayload("unknown status %q", f.Status)
	}
	f.Limit = clampLimit(f.Limit)
	if f.Offset < 0 {
		f.Offset = 0
	}

	convs, total, err := s.conversations.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	if convs == nil {
		convs = []model.Conversation{}
	}

	return &model.ListConversationsResponse{
		Conversations: convs,
		Total:         total,
		HasMore:       f.Offset+len(convs) < total,
	}, nil
}

// Assign sets the conversation's agent. The status is left unchanged.
func (s *ConversationService) Assign(ctx context.Context, id, agentID string) (*model.Conversation, error) {
	unlock, err := s.convLocks.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	conv, err := s.conversations.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	conv.AssignedAgentID = &agentID
	if err := s.conversations.Update(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to assign conversation: %w", err)
	}

	s.logger.Info("conversation assigned",
		zap.String("conversation_id", id),
		zap.String("agent_id", agentID),
	)
	s.publishEvent(ctx, id, model.EventTypeAssigned, "", map[string]any{"agent_id": agentID})

	return conv, nil
}

// Transition moves the conversation to status. Disallowed edges fail with
// apperr.KindInvalidTransition; reopening while the contact has another
// open conversation fails with apperr.KindConflict.
func (s *ConversationService) Transition(ctx context.Context, id string, status model.ConversationStatus) (*model.Conversation, error) {
	if !status.Valid() {
		return nil, apperr.InvalidPayload("unknown status %q", status)
	}

	unlock, err := s.convLocks.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	conv, err := s.conversations.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	from := conv.Status
	if from == status {
		return conv, nil
	}
	if !CanTransition(from, status) {
		return nil, apperr.InvalidTransition("cannot move conversation from %s to %s", from, status)
	}

	// reopening competes with inbound resolution for the same contact
	if !from.Open() && status.Open() {
		unlockContact, err := s.contactLocks.Lock(ctx, conv.ContactID)
		if err != nil {
			return nil, err
		}
		defer unlockContact()
	}

	conv.Status = status
	if err := s.conversations.Update(ctx, conv); err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			return nil, apperr.Conflict("contact %s already has an open conversation", conv.ContactID)
		}
		return nil, fmt.Errorf("failed to update conversation status: %w", err)
	}

	s.logger.Info("conversation status changed",
		zap.String("conversation_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(status)),
	)
	s.publishEvent(ctx, id, model.EventTypeStatusChanged, "",
		map[string]any{"from": string(from), "to": string(status)})

	return conv, nil
}

// TouchLastMessage sets last_message_at to ts unless it is already later.
func (s *ConversationService) TouchLastMessage(ctx context.Context, id string, ts time.Time) error {
	unlock, err := s.convLocks.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	conv, err := s.conversations.Get(ctx, id)
	if err != nil {
		return err
	}
	if conv.LastMessageAt != nil && conv.LastMessageAt.After(ts) {
		return nil
	}

	ts = ts.UTC()
	conv.LastMessageAt = &ts
	if err := s.conversations.Update(ctx, conv); err != nil {
		return fmt.Errorf("failed to update last message time: %w", err)
	}
	return nil
}

// Delete removes a conversation and its messages.
func (s *ConversationService) Delete(ctx context.Context, id string) error {
	if err := s.conversations.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("conversation deleted", zap.String("conversation_id", id))
	s.publishEvent(ctx, id, model.EventTypeDeleted, "", nil)
	return nil
}

func (s *ConversationService) publishEvent(ctx context.Context, convID string, typ model.EventType, reason string, meta map[string]any) {
	event := &model.ConversationEvent{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: convID,
		Type:           typ,
		Reason:         reason,
		Metadata:       meta,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.journal.PublishEvent(ctx, event); err != nil {
		metrics.JournalPublishErrors.WithLabelValues("event").Inc()
		s.logger.Warn("failed to publish conversation event",
			zap.String("conversation_id", convID),
			zap.String("type", string(typ)),
			zap.Error(err),
		)
	}
}
