package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/capitalize-ai/support-inbox/internal/apperr"
	"github.com/capitalize-ai/support-inbox/internal/model"
)

// pgUniqueViolation is the SQLSTATE of a unique constraint violation.
const pgUniqueViolation = "23505"

// GormStore persists to PostgreSQL through gorm.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open gorm connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Contacts() ContactRepository           { return gormContacts{s.db} }
func (s *GormStore) Conversations() ConversationRepository { return gormConversations{s.db} }
func (s *GormStore) Messages() MessageRepository           { return gormMessages{s.db} }
func (s *GormStore) Roles() RoleRepository                 { return gormRoles{s.db} }
func (s *GormStore) Users() UserRepository                 { return gormUsers{s.db} }

// Ping checks the database connection.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// translate maps driver errors onto the apperr taxonomy.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.Wrap(apperr.KindNotFound, err, "%s not found", what)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Wrap(apperr.KindConflict, err, "%s already exists", what)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return apperr.Wrap(apperr.KindConflict, err, "%s already exists", what)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func affected(res *gorm.DB, what string) error {
	if res.Error != nil {
		return translate(res.Error, what)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("%s not found", what)
	}
	return nil
}

// Contacts

type gormContacts struct{ db *gorm.DB }

func (r gormContacts) FindByPhone(ctx context.Context, phone string) (*model.Contact, error) {
	var c model.Contact
	if err := r.db.WithContext(ctx).Where("phone_number = ?", phone).First(&c).Error; err != nil {
		return nil, translate(err, "contact")
	}
	return &c, nil
}

func (r gormContacts) Get(ctx context.Context, id string) (*model.Contact, error) {
	var c model.Contact
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, translate(err, "contact")
	}
	return &c, nil
}

func (r gormContacts) List(ctx context.Context, limit, offset int) ([]model.Contact, int, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Contact{}).Count(&total).Error; err != nil {
		return nil, 0, translate(err, "contacts")
	}
	var contacts []model.Contact
	q := r.db.WithContext(ctx).Order("created_at DESC").Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&contacts).Error; err != nil {
		return nil, 0, translate(err, "contacts")
	}
	return contacts, int(total), nil
}

func (r gormContacts) Create(ctx context.Context, c *model.Contact) error {
	return translate(r.db.WithContext(ctx).Create(c).Error, "contact")
}

func (r gormContacts) Update(ctx context.Context, c *model.Contact) error {
	res := r.db.WithContext(ctx).Model(&model.Contact{}).Where("id = ?", c.ID).Updates(map[string]any{
		"phone_number": c.Phone,
		"name":         c.Name,
		"avatar_url":   c.AvatarURL,
	})
	return affected(res, "contact")
}

func (r gormContacts) UpdateLastSeen(ctx context.Context, id string, ts time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.Contact{}).Where("id = ?", id).Update("last_seen", ts.UTC())
	return affected(res, "contact")
}

func (r gormContacts) Delete(ctx context.Context, id string) error {
	return affected(r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Contact{}), "contact")
}

// Conversations

type gormConversations struct{ db *gorm.DB }

func (r gormConversations) FindOpenByContact(ctx context.Context, contactID string) (*model.Conversation, error) {
	var c model.Conversation
	err := r.db.WithContext(ctx).
		Where("contact_id = ? AND status <> ?", contactID, model.StatusResolved).
		Order("updated_at DESC").
		First(&c).Error
	if err != nil {
		return nil, translate(err, "open conversation")
	}
	return &c, nil
}

func (r gormConversations) Get(ctx context.Context, id string) (*model.Conversation, error) {
	var c model.Conversation
	if err := r.db.WithContext(ctx).Preload("Contact").Where("id = ?", id).First(&c).Error; err != nil {
		return nil, translate(err, "conversation")
	}
	return &c, nil
}

func (r gormConversations) List(ctx context.Context, f model.ConversationFilter) ([]model.Conversation, int, error) {
	q := r.db.WithContext(ctx).Model(&model.Conversation{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.ContactID != "" {
		q = q.Where("contact_id = ?", f.ContactID)
	}
	if f.AssignedAgentID != "" {
		q = q.Where("assigned_agent_id = ?", f.AssignedAgentID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate(err, "conversations")
	}

	var convs []model.Conversation
	q = q.Preload("Contact").Order("updated_at DESC").Offset(f.Offset)
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if err := q.Find(&convs).Error; err != nil {
		return nil, 0, translate(err, "conversations")
	}
	return convs, int(total), nil
}

func (r gormConversations) Create(ctx context.Context, c *model.Conversation) error {
	return translate(r.db.WithContext(ctx).Omit("Contact").Create(c).Error, "conversation")
}

func (r gormConversations) Update(ctx context.Context, c *model.Conversation) error {
	res := r.db.WithContext(ctx).Model(&model.Conversation{}).Where("id = ?", c.ID).Updates(map[string]any{
		"assigned_agent_id": c.AssignedAgentID,
		"status":            c.Status,
		"priority":          c.Priority,
		"notes":             c.Notes,
		"last_message_at":   c.LastMessageAt,
		"updated_at":        time.Now().UTC(),
	})
	return affected(res, "conversation")
}

func (r gormConversations) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&model.Message{}).Error; err != nil {
			return translate(err, "messages")
		}
		return affected(tx.Where("id = ?", id).Delete(&model.Conversation{}), "conversation")
	})
}

// Messages

type gormMessages struct{ db *gorm.DB }

func (r gormMessages) FindByProviderID(ctx context.Context, providerMessageID string) (*model.Message, error) {
	var m model.Message
	if err := r.db.WithContext(ctx).Where("provider_message_id = ?", providerMessageID).First(&m).Error; err != nil {
		return nil, translate(err, "message")
	}
	return &m, nil
}

// Create lets the database assign Seq from its sequence and returns it.
func (r gormMessages) Create(ctx context.Context, m *model.Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return translate(r.db.WithContext(ctx).Create(m).Error, "message")
}

func (r gormMessages) ListByConversation(ctx context.Context, conversationID string, afterSeq uint64, limit int) ([]model.Message, error) {
	var msgs []model.Message
	q := r.db.WithContext(ctx).
		Where("conversation_id = ? AND seq > ?", conversationID, afterSeq).
		Order("seq ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&msgs).Error; err != nil {
		return nil, translate(err, "messages")
	}
	return msgs, nil
}

func (r gormMessages) MarkRead(ctx context.Context, conversationID string, ts time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("conversation_id = ? AND is_read = ?", conversationID, false).
		Updates(map[string]any{"is_read": true, "read_at": ts.UTC()})
	if res.Error != nil {
		return 0, translate(res.Error, "messages")
	}
	return res.RowsAffected, nil
}

// Roles

type gormRoles struct{ db *gorm.DB }

func (r gormRoles) FindByName(ctx context.Context, name string) (*model.Role, error) {
	var role model.Role
	if err := r.db.WithContext(ctx).Where("name = ? AND is_active = ?", name, true).First(&role).Error; err != nil {
		return nil, translate(err, "role")
	}
	return &role, nil
}

func (r gormRoles) Get(ctx context.Context, id string) (*model.Role, error) {
	var role model.Role
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&role).Error; err != nil {
		return nil, translate(err, "role")
	}
	return &role, nil
}

func (r gormRoles) List(ctx context.Context) ([]model.Role, error) {
	var roles []model.Role
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("name ASC").Find(&roles).Error; err != nil {
		return nil, translate(err, "roles")
	}
	return roles, nil
}

func (r gormRoles) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Role{}).Count(&n).Error; err != nil {
		return 0, translate(err, "roles")
	}
	return n, nil
}

func (r gormRoles) Create(ctx context.Context, role *model.Role) error {
	return translate(r.db.WithContext(ctx).Create(role).Error, "role")
}

func (r gormRoles) Update(ctx context.Context, role *model.Role) error {
	res := r.db.WithContext(ctx).Model(&model.Role{}).Where("id = ?", role.ID).Updates(map[string]any{
		"name":        role.Name,
		"description": role.Description,
		"permissions": role.Permissions,
		"is_active":   role.Active,
	})
	return affected(res, "role")
}

func (r gormRoles) Deactivate(ctx context.Context, id string) error {
	return affected(r.db.WithContext(ctx).Model(&model.Role{}).Where("id = ?", id).Update("is_active", false), "role")
}

// Users

type gormUsers struct{ db *gorm.DB }

func (r gormUsers) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Preload("Role").Where("LOWER(email) = LOWER(?)", email).First(&u).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &u, nil
}

func (r gormUsers) Get(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Preload("Role").Where("id = ?", id).First(&u).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &u, nil
}

func (r gormUsers) List(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Preload("Role").Order("email ASC").Find(&users).Error; err != nil {
		return nil, translate(err, "users")
	}
	return users, nil
}

func (r gormUsers) Create(ctx context.Context, u *model.User) error {
	return translate(r.db.WithContext(ctx).Omit("Role").Create(u).Error, "user")
}

func (r gormUsers) Update(ctx context.Context, u *model.User) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", u.ID).Updates(map[string]any{
		"email":         u.Email,
		"name":          u.Name,
		"password_hash": u.PasswordHash,
		"role_id":       u.RoleID,
		"avatar_url":    u.AvatarURL,
		"status":        u.Status,
	})
	return affected(res, "user")
}

func (r gormUsers) Delete(ctx context.Context, id string) error {
	return affected(r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.User{}), "user")
}
