// Package service provides business logic for the support inbox.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/support-inbox/internal/apperr"
	"github.com/capitalize-ai/support-inbox/internal/model"
	"github.com/capitalize-ai/support-inbox/internal/phone"
	"github.com/capitalize-ai/support-inbox/internal/store"
	"github.com/capitalize-ai/support-inbox/pkg/logger"
	"github.com/capitalize-ai/support-inbox/pkg/metrics"
)

// ContactService resolves and manages contacts.
type ContactService struct {
	contacts   store.ContactRepository
	normalizer phone.Normalizer
	logger     *logger.Logger
}

// NewContactService creates a new contact service.
func NewContactService(contacts store.ContactRepository, normalizer phone.Normalizer, log *logger.Logger) *ContactService {
	return &ContactService{
		contacts:   contacts,
		normalizer: normalizer,
		logger:     log,
	}
}

// ResolveOrCreate returns the contact owning canonicalPhone, creating it
// with the phone as display name on first sight. Concurrent callers with
// the same phone all receive the same contact.
func (s *ContactService) ResolveOrCreate(ctx context.Context, canonicalPhone string) (*model.Contact, error) {
	c, err := s.contacts.FindByPhone(ctx, canonicalPhone)
	if err == nil {
		return c, nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return nil, fmt.Errorf("failed to look up contact: %w", err)
	}

	c = &model.Contact{
		ID:    uuid.Must(uuid.NewV7()).String(),
		Phone: canonicalPhone,
		Name:  canonicalPhone,
	}
	err = s.contacts.Create(ctx, c)
	if err == nil {
		metrics.ContactsTotal.Inc()
		s.logger.Info("contact created",
			zap.String("contact_id", c.ID),
			zap.String("phone", canonicalPhone),
		)
		return c, nil
	}
	if !apperr.Is(err, apperr.KindConflict) {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}

	// lost the race; the winner's row is the contact
	c, err = s.contacts.FindByPhone(ctx, canonicalPhone)
	if err != nil {
		return nil, fmt.Errorf("failed to re-fetch contact after conflict: %w", err)
	}
	return c, nil
}

// UpdateLastSeen records that the contact was active at ts.
func (s *ContactService) UpdateLastSeen(ctx context.Context, contactID string, ts time.Time) error {
	return s.contacts.UpdateLastSeen(ctx, contactID, ts)
}

// Get retrieves a contact by ID.
func (s *ContactService) Get(ctx context.Context, id string) (*model.Contact, error) {
	return s.contacts.Get(ctx, id)
}

// FindByPhone normalizes rawPhone and returns the contact owning it.
func (s *ContactService) FindByPhone(ctx context.Context, rawPhone string) (*model.Contact, error) {
	canonical, err := s.normalizer.Normalize(rawPhone)
	if err != nil {
		return nil, err
	}
	return s.contacts.FindByPhone(ctx, canonical)
}

// List retrieves contacts, newest first.
func (s *ContactService) List(ctx context.Context, limit, offset int) (*model.ListContactsResponse, error) {
	limit = clampLimit(limit)
	if offset < 0 {
		offset = 0
	}

	contacts, total, err := s.contacts.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	if contacts == nil {
		contacts = []model.Contact{}
	}

	return &model.ListContactsResponse{
		Contacts: contacts,
		Total:    total,
		HasMore:  offset+len(contacts) < total,
	}, nil
}

// Create registers a contact explicitly. Unlike ResolveOrCreate, an
// existing phone number is reported as a conflict.
func (s *ContactService) Create(ctx context.Context, req *model.CreateContactRequest) (*model.Contact, error) {
	canonical, err := s.normalizer.Normalize(req.Phone)
	if err != nil {
		return nil, err
	}

	name := req.Name
	if name == "" {
		name = canonical
	}
	c := &model.Contact{
		ID:    uuid.Must(uuid.NewV7()).String(),
		Phone: canonical,
		Name:  name,
	}
	if err := s.contacts.Create(ctx, c); err != nil {
		return nil, err
	}

	metrics.ContactsTotal.Inc()
	s.logger.Info("contact created",
		zap.String("contact_id", c.ID),
		zap.String("phone", canonical),
	)
	return c, nil
}

// Rename changes the display name and avatar of a contact.
func (s *ContactService) Rename(ctx context.Context, id string, req *model.UpdateContactRequest) (*model.Contact, error) {
	c, err := s.contacts.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	c.Name = req.Name
	if req.AvatarURL != "" {
		c.AvatarURL = req.AvatarURL
	}
	if err := s.contacts.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to update contact: %w", err)
	}
	return c, nil
}

// Delete soft-deletes a contact. Its conversations are kept.
func (s *ContactService) Delete(ctx context.Context, id string) error {
	if err := s.contacts.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("contact deleted", zap.String("contact_id", id))
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}
