package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/capitalize-ai/support-inbox/internal/apperr"
	"github.com/capitalize-ai/support-inbox/internal/model"
)

// MemoryStore keeps everything in process memory. It enforces the same
// uniqueness rules as the database schema and is used for local runs
// without DATABASE_URL and in tests.
type MemoryStore struct {
	mu sync.RWMutex

	contacts      map[string]*model.Contact
	conversations map[string]*model.Conversation
	messages      map[string]*model.Message
	roles         map[string]*model.Role
	users         map[string]*model.User

	seq uint64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contacts:      make(map[string]*model.Contact),
		conversations: make(map[string]*model.Conversation),
		messages:      make(map[string]*model.Message),
		roles:         make(map[string]*model.Role),
		users:         make(map[string]*model.User),
	}
}

func (s *MemoryStore) Contacts() ContactRepository           { return memContacts{s} }
func (s *MemoryStore) Conversations() ConversationRepository { return memConversations{s} }
func (s *MemoryStore) Messages() MessageRepository           { return memMessages{s} }
func (s *MemoryStore) Roles() RoleRepository                 { return memRoles{s} }
func (s *MemoryStore) Users() UserRepository                 { return memUsers{s} }

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func stamp(created, updated *time.Time) {
	now := time.Now().UTC()
	if created.IsZero() {
		*created = now
	}
	*updated = now
}

func page[T any](items []T, limit, offset int) []T {
	total := len(items)
	start := offset
	if start > total {
		start = total
	}
	end := total
	if limit > 0 && start+limit < total {
		end = start + limit
	}
	return items[start:end]
}

// Contacts

type memContacts struct{ s *MemoryStore }

func (r memContacts) findByPhone(phone string) *model.Contact {
	for _, c := range r.s.contacts {
		if c.Phone == phone && !c.DeletedAt.Valid {
			return c
		}
	}
	return nil
}

func (r memContacts) FindByPhone(ctx context.Context, phone string) (*model.Contact, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if c := r.findByPhone(phone); c != nil {
		cp := *c
		return &cp, nil
	}
	return nil, apperr.NotFound("contact with phone %s not found", phone)
}

func (r memContacts) Get(ctx context.Context, id string) (*model.Contact, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.contacts[id]
	if !ok || c.DeletedAt.Valid {
		return nil, apperr.NotFound("contact %s not found", id)
	}
	cp := *c
	return &cp, nil
}

func (r memContacts) List(ctx context.Context, limit, offset int) ([]model.Contact, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []model.Contact
	for _, c := range r.s.contacts {
		if !c.DeletedAt.Valid {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), len(out), nil
}

func (r memContacts) Create(ctx context.Context, c *model.Contact) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.findByPhone(c.Phone) != nil {
		return apperr.Conflict("contact with phone %s already exists", c.Phone)
	}
	if _, ok := r.s.contacts[c.ID]; ok {
		return apperr.Conflict("contact %s already exists", c.ID)
	}
	stamp(&c.CreatedAt, &c.UpdatedAt)
	cp := *c
	r.s.contacts[c.ID] = &cp
	return nil
}

func (r memContacts) Update(ctx context.Context, c *model.Contact) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.contacts[c.ID]
	if !ok || existing.DeletedAt.Valid {
		return apperr.NotFound("contact %s not found", c.ID)
	}
	if other := r.findByPhone(c.Phone); other != nil && other.ID != c.ID {
		return apperr.Conflict("contact with phone %s already exists", c.Phone)
	}
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	cp := *c
	r.s.contacts[c.ID] = &cp
	return nil
}

func (r memContacts) UpdateLastSeen(ctx context.Context, id string, ts time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.contacts[id]
	if !ok || c.DeletedAt.Valid {
		return apperr.NotFound("contact %s not found", id)
	}
	ts = ts.UTC()
	c.LastSeen = &ts
	return nil
}

func (r memContacts) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.contacts[id]
	if !ok || c.DeletedAt.Valid {
		return apperr.NotFound("contact %s not found", id)
	}
	c.DeletedAt.Time = time.Now().UTC()
	c.DeletedAt.Valid = true
	return nil
}

// Conversations

type memConversations struct{ s *MemoryStore }

func (r memConversations) openFor(contactID, exceptID string) *model.Conversation {
	var found *model.Conversation
	for _, c := range r.s.conversations {
		if c.ContactID != contactID || !c.Status.Open() || c.ID == exceptID {
			continue
		}
		if found == nil || c.UpdatedAt.After(found.UpdatedAt) {
			found = c
		}
	}
	return found
}

func (r memConversations) FindOpenByContact(ctx context.Context, contactID string) (*model.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if c := r.openFor(contactID, ""); c != nil {
		cp := *c
		return &cp, nil
	}
	return nil, apperr.NotFound("no open conversation for contact %s", contactID)
}

func (r memConversations) Get(ctx context.Context, id string) (*model.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.conversations[id]
	if !ok {
		return nil, apperr.NotFound("conversation %s not found", id)
	}
	cp := *c
	return &cp, nil
}

func (r memConversations) List(ctx context.Context, f model.ConversationFilter) ([]model.Conversation, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []model.Conversation
	for _, c := range r.s.conversations {
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.ContactID != "" && c.ContactID != f.ContactID {
			continue
		}
		if f.AssignedAgentID != "" && (c.AssignedAgentID == nil || *c.AssignedAgentID != f.AssignedAgentID) {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return page(out, f.Limit, f.Offset), len(out), nil
}

func (r memConversations) Create(ctx context.Context, c *model.Conversation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.conversations[c.ID]; ok {
		return apperr.Conflict("conversation %s already exists", c.ID)
	}
	if c.Status.Open() && r.openFor(c.ContactID, "") != nil {
		return apperr.Conflict("contact %s already has an open conversation", c.ContactID)
	}
	stamp(&c.CreatedAt, &c.UpdatedAt)
	cp := *c
	r.s.conversations[c.ID] = &cp
	return nil
}

func (r memConversations) Update(ctx context.Context, c *model.Conversation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.conversations[c.ID]
	if !ok {
		return apperr.NotFound("conversation %s not found", c.ID)
	}
	if c.Status.Open() && r.openFor(c.ContactID, c.ID) != nil {
		return apperr.Conflict("contact %s already has an open conversation", c.ContactID)
	}
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	cp := *c
	r.s.conversations[c.ID] = &cp
	return nil
}

func (r memConversations) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.conversations[id]; !ok {
		return apperr.NotFound("conversation %s not found", id)
	}
	delete(r.s.conversations, id)
	for mid, m := range r.s.messages {
		if m.ConversationID == id {
			delete(r.s.messages, mid)
		}
	}
	return nil
}

// Messages

type memMessages struct{ s *MemoryStore }

func (r memMessages) byProviderID(pid string) *model.Message {
	for _, m := range r.s.messages {
		if m.ProviderMessageID != nil && *m.ProviderMessageID == pid {
			return m
		}
	}
	return nil
}

func (r memMessages) FindByProviderID(ctx context.Context, providerMessageID string) (*model.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if m := r.byProviderID(providerMessageID); m != nil {
		cp := *m
		return &cp, nil
	}
	return nil, apperr.NotFound("message with provider id %s not found", providerMessageID)
}

func (r memMessages) Create(ctx context.Context, m *model.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.conversations[m.ConversationID]; !ok {
		return apperr.NotFound("conversation %s not found", m.ConversationID)
	}
	if _, ok := r.s.messages[m.ID]; ok {
		return apperr.Conflict("message %s already exists", m.ID)
	}
	if m.ProviderMessageID != nil && r.byProviderID(*m.ProviderMessageID) != nil {
		return apperr.Conflict("message with provider id %s already exists", *m.ProviderMessageID)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	r.s.seq++
	m.Seq = r.s.seq
	cp := *m
	r.s.messages[m.ID] = &cp
	return nil
}

func (r memMessages) ListByConversation(ctx context.Context, conversationID string, afterSeq uint64, limit int) ([]model.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []model.Message
	for _, m := range r.s.messages {
		if m.ConversationID == conversationID && m.Seq > afterSeq {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return page(out, limit, 0), nil
}

func (r memMessages) MarkRead(ctx context.Context, conversationID string, ts time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	ts = ts.UTC()
	for _, m := range r.s.messages {
		if m.ConversationID == conversationID && !m.IsRead {
			m.IsRead = true
			readAt := ts
			m.ReadAt = &readAt
			n++
		}
	}
	return n, nil
}

// Roles

type memRoles struct{ s *MemoryStore }

func (r memRoles) activeByName(name, exceptID string) *model.Role {
	for _, role := range r.s.roles {
		if role.Active && role.Name == name && role.ID != exceptID {
			return role
		}
	}
	return nil
}

func (r memRoles) FindByName(ctx context.Context, name string) (*model.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if role := r.activeByName(name, ""); role != nil {
		cp := *role
		return &cp, nil
	}
	return nil, apperr.NotFound("role %q not found", name)
}

func (r memRoles) Get(ctx context.Context, id string) (*model.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	role, ok := r.s.roles[id]
	if !ok {
		return nil, apperr.NotFound("role %s not found", id)
	}
	cp := *role
	return &cp, nil
}

func (r memRoles) List(ctx context.Context) ([]model.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []model.Role
	for _, role := range r.s.roles {
		if role.Active {
			out = append(out, *role)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r memRoles) Count(ctx context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.roles)), nil
}

func (r memRoles) Create(ctx context.Context, role *model.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.roles[role.ID]; ok {
		return apperr.Conflict("role %s already exists", role.ID)
	}
	if role.Active && r.activeByName(role.Name, "") != nil {
		return apperr.Conflict("role %q already exists", role.Name)
	}
	stamp(&role.CreatedAt, &role.UpdatedAt)
	cp := *role
	r.s.roles[role.ID] = &cp
	return nil
}

func (r memRoles) Update(ctx context.Context, role *model.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.roles[role.ID]
	if !ok {
		return apperr.NotFound("role %s not found", role.ID)
	}
	if role.Active && r.activeByName(role.Name, role.ID) != nil {
		return apperr.Conflict("role %q already exists", role.Name)
	}
	role.CreatedAt = existing.CreatedAt
	role.UpdatedAt = time.Now().UTC()
	cp := *role
	r.s.roles[role.ID] = &cp
	return nil
}

func (r memRoles) Deactivate(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	role, ok := r.s.roles[id]
	if !ok {
		return apperr.NotFound("role %s not found", id)
	}
	role.Active = false
	role.UpdatedAt = time.Now().UTC()
	return nil
}

// Users

type memUsers struct{ s *MemoryStore }

func (r memUsers) withRole(u *model.User) *model.User {
	cp := *u
	cp.Role = nil
	if u.RoleID != nil {
		if role, ok := r.s.roles[*u.RoleID]; ok {
			rc := *role
			cp.Role = &rc
		}
	}
	return &cp
}

func (r memUsers) byEmail(email string) *model.User {
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return u
		}
	}
	return nil
}

func (r memUsers) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if u := r.byEmail(email); u != nil {
		return r.withRole(u), nil
	}
	return nil, apperr.NotFound("user %s not found", email)
}

func (r memUsers) Get(ctx context.Context, id string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, apperr.NotFound("user %s not found", id)
	}
	return r.withRole(u), nil
}

func (r memUsers) List(ctx context.Context) ([]model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]model.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, *r.withRole(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (r memUsers) Create(ctx context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[u.ID]; ok {
		return apperr.Conflict("user %s already exists", u.ID)
	}
	if r.byEmail(u.Email) != nil {
		return apperr.Conflict("email %s already registered", u.Email)
	}
	stamp(&u.CreatedAt, &u.UpdatedAt)
	cp := *u
	cp.Role = nil
	r.s.users[u.ID] = &cp
	return nil
}

func (r memUsers) Update(ctx context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.users[u.ID]
	if !ok {
		return apperr.NotFound("user %s not found", u.ID)
	}
	if other := r.byEmail(u.Email); other != nil && other.ID != u.ID {
		return apperr.Conflict("email %s already registered", u.Email)
	}
	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	cp := *u
	cp.Role = nil
	r.s.users[u.ID] = &cp
	return nil
}

func (r memUsers) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[id]; !ok {
		return apperr.NotFound("user %s not found", id)
	}
	delete(r.s.users, id)
	return nil
}
