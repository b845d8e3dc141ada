package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/capitalize-ai/support-inbox/internal/apperr"
	"github.com/capitalize-ai/support-inbox/internal/model"
)

func newContact(t *testing.T, st *MemoryStore, phone string) *model.Contact {
	t.Helper()
	c := &model.Contact{ID: uuid.NewString(), Phone: phone}
	require.NoError(t, st.Contacts().Create(context.Background(), c))
	return c
}

func newConversation(t *testing.T, st *MemoryStore, contactID string, status model.ConversationStatus) *model.Conversation {
	t.Helper()
	c := &model.Conversation{ID: uuid.NewString(), ContactID: contactID, Status: status, Priority: model.PriorityMedium}
	require.NoError(t, st.Conversations().Create(context.Background(), c))
	return c
}

func TestMemoryContacts_PhoneUniqueAmongLive(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	c := newContact(t, st, "+34600111222")

	err := st.Contacts().Create(ctx, &model.Contact{ID: uuid.NewString(), Phone: "+34600111222"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	require.NoError(t, st.Contacts().Delete(ctx, c.ID))
	_, err = st.Contacts().Get(ctx, c.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	// The deleted contact releases its number.
	newContact(t, st, "+34600111222")
}

func TestMemoryContacts_ReturnsCopies(t *testing.T) {
	st := NewMemoryStore()
	c := newContact(t, st, "+34600111222")

	got, err := st.Contacts().Get(context.Background(), c.ID)
	require.NoError(t, err)
	got.Name = "mutated"

	again, err := st.Contacts().Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Empty(t, again.Name)
}

func TestMemoryConversations_OneOpenPerContact(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	contact := newContact(t, st, "+34600111222")
	first := newConversation(t, st, contact.ID, model.StatusActive)

	err := st.Conversations().Create(ctx, &model.Conversation{ID: uuid.NewString(), ContactID: contact.ID, Status: model.StatusPaused})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	first.Status = model.StatusResolved
	require.NoError(t, st.Conversations().Update(ctx, first))
	second := newConversation(t, st, contact.ID, model.StatusActive)

	open, err := st.Conversations().FindOpenByContact(ctx, contact.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, open.ID)

	// Reopening the first would make two open conversations.
	first.Status = model.StatusActive
	err = st.Conversations().Update(ctx, first)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestMemoryConversations_ListFilters(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	agent := uuid.NewString()

	for i := 0; i < 3; i++ {
		contact := newContact(t, st, fmt.Sprintf("+3460011122%d", i))
		conv := newConversation(t, st, contact.ID, model.StatusActive)
		if i == 0 {
			conv.AssignedAgentID = &agent
			require.NoError(t, st.Conversations().Update(ctx, conv))
		}
	}

	all, total, err := st.Conversations().List(ctx, model.ConversationFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, 3, total)

	mine, total, err := st.Conversations().List(ctx, model.ConversationFilter{AssignedAgentID: agent})
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	assert.Equal(t, 1, total)

	resolved, _, err := st.Conversations().List(ctx, model.ConversationFilter{Status: model.StatusResolved})
	require.NoError(t, err)
	assert.Empty(t, resolved)
}

func TestMemoryMessages_SequenceAndProviderID(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	contact := newContact(t, st, "+34600111222")
	conv := newConversation(t, st, contact.ID, model.StatusActive)

	sid := "SM1"
	m1 := &model.Message{ID: uuid.NewString(), ConversationID: conv.ID, SenderKind: model.SenderContact, Content: "a", ProviderMessageID: &sid}
	require.NoError(t, st.Messages().Create(ctx, m1))

	dup := &model.Message{ID: uuid.NewString(), ConversationID: conv.ID, SenderKind: model.SenderContact, Content: "a", ProviderMessageID: &sid}
	assert.True(t, apperr.Is(st.Messages().Create(ctx, dup), apperr.KindConflict))

	m2 := &model.Message{ID: uuid.NewString(), ConversationID: conv.ID, SenderKind: model.SenderAgent, Content: "b"}
	require.NoError(t, st.Messages().Create(ctx, m2))
	assert.Greater(t, m2.Seq, m1.Seq)

	orphan := &model.Message{ID: uuid.NewString(), ConversationID: uuid.NewString(), Content: "x"}
	assert.True(t, apperr.Is(st.Messages().Create(ctx, orphan), apperr.KindNotFound))

	after, err := st.Messages().ListByConversation(ctx, conv.ID, m1.Seq, 0)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, m2.ID, after[0].ID)

	found, err := st.Messages().FindByProviderID(ctx, "SM1")
	require.NoError(t, err)
	assert.Equal(t, m1.ID, found.ID)

	n, err := st.Messages().MarkRead(ctx, conv.ID, time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	n, err = st.Messages().MarkRead(ctx, conv.ID, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, st.Conversations().Delete(ctx, conv.ID))
	_, err = st.Messages().FindByProviderID(ctx, "SM1")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestMemoryMessages_PagesBySequence(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		created []time.Time
	}{
		{"timestamps reversed against insert order", []time.Time{base.Add(2 * time.Millisecond), base.Add(time.Millisecond), base}},
		{"identical timestamps", []time.Time{base, base, base}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewMemoryStore()
			ctx := context.Background()
			contact := newContact(t, st, "+34600111222")
			conv := newConversation(t, st, contact.ID, model.StatusActive)

			var inserted []string
			for i, ts := range tt.created {
				m := &model.Message{ID: uuid.NewString(), ConversationID: conv.ID, SenderKind: model.SenderContact, Content: fmt.Sprint(i), CreatedAt: ts}
				require.NoError(t, st.Messages().Create(ctx, m))
				inserted = append(inserted, m.Content)
			}

			var paged []string
			var after uint64
			for {
				page, err := st.Messages().ListByConversation(ctx, conv.ID, after, 1)
				require.NoError(t, err)
				if len(page) == 0 {
					break
				}
				paged = append(paged, page[0].Content)
				after = page[0].Seq
			}
			assert.Equal(t, inserted, paged)
		})
	}
}

func TestMemoryUsers_LoadRole(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	role := &model.Role{ID: uuid.NewString(), Name: "Agente", Active: true}
	require.NoError(t, st.Roles().Create(ctx, role))
	assert.True(t, apperr.Is(st.Roles().Create(ctx, &model.Role{ID: uuid.NewString(), Name: "Agente", Active: true}), apperr.KindConflict))

	u := &model.User{ID: uuid.NewString(), Email: "ana@example.com", Name: "Ana", RoleID: &role.ID}
	require.NoError(t, st.Users().Create(ctx, u))

	got, err := st.Users().FindByEmail(ctx, "ANA@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Agente", got.RoleName())

	require.NoError(t, st.Roles().Deactivate(ctx, role.ID))
	_, err = st.Roles().FindByName(ctx, "Agente")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	count, err := st.Roles().Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil, "contact"))
	assert.True(t, apperr.Is(translate(gorm.ErrRecordNotFound, "contact"), apperr.KindNotFound))
	assert.True(t, apperr.Is(translate(gorm.ErrDuplicatedKey, "contact"), apperr.KindConflict))

	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "idx_contacts_phone_live"}
	err := translate(fmt.Errorf("insert: %w", pgErr), "contact")
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	other := errors.New("connection reset")
	err = translate(other, "contact")
	assert.ErrorIs(t, err, other)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}
