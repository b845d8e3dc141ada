package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/support-inbox/internal/apperr"
	"github.com/capitalize-ai/support-inbox/internal/model"
)

func newConversation(t *testing.T, env *testEnv) *model.Conversation {
	t.Helper()
	contact := newContact(t, env, "+34600111222")
	conv, _, err := env.conversations.ResolveOpenOrCreate(context.Background(), contact.ID)
	require.NoError(t, err)
	return conv
}

func TestRecordDeduplicatesProviderID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := newConversation(t, env)

	in := model.RecordInput{
		ConversationID:    conv.ID,
		SenderKind:        model.SenderContact,
		Content:           "Hola",
		FromProvider:      true,
		ProviderMessageID: "SM1",
	}
	first, created, err := env.messages.Record(ctx, in)
	require.NoError(t, err)
	assert.True(t, created)

	in.Content = "changed on retry"
	second, created, err := env.messages.Record(ctx, in)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Hola", second.Content)

	assert.Equal(t, 1, env.countMessages(t, conv.ID))
	assert.Len(t, env.journal.messages, 1)
}

func TestRecordDeduplicatesConcurrently(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := newConversation(t, env)

	const workers = 24
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, _, err := env.messages.Record(ctx, model.RecordInput{
				ConversationID:    conv.ID,
				SenderKind:        model.SenderContact,
				Content:           "Hola",
				ProviderMessageID: "SM-race",
			})
			if assert.NoError(t, err) {
				ids[i] = m.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, env.countMessages(t, conv.ID))
}

func TestRecordWithoutProviderIDNeverDeduplicates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := newConversation(t, env)

	in := model.RecordInput{ConversationID: conv.ID, SenderKind: model.SenderAgent, Content: "ok"}
	_, _, err := env.messages.Record(ctx, in)
	require.NoError(t, err)
	_, _, err = env.messages.Record(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, 2, env.countMessages(t, conv.ID))
}

func TestRecordValidatesInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := newConversation(t, env)

	tests := []struct {
		name string
		in   model.RecordInput
		kind apperr.Kind
	}{
		{"empty content", model.RecordInput{ConversationID: conv.ID, SenderKind: model.SenderContact}, apperr.KindInvalidPayload},
		{"bad sender", model.RecordInput{ConversationID: conv.ID, SenderKind: "bot", Content: "x"}, apperr.KindInvalidPayload},
		{"bad type", model.RecordInput{ConversationID: conv.ID, SenderKind: model.SenderContact, Content: "x", Type: "sticker"}, apperr.KindInvalidPayload},
		{"missing conversation", model.RecordInput{SenderKind: model.SenderContact, Content: "x"}, apperr.KindInvalidPayload},
		{"unknown conversation", model.RecordInput{ConversationID: "nope", SenderKind: model.SenderContact, Content: "x"}, apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := env.messages.Record(ctx, tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}
}

func TestRecordBumpsLastMessage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := newConversation(t, env)
	assert.Nil(t, conv.LastMessageAt)

	m, _, err := env.messages.Record(ctx, model.RecordInput{ConversationID: conv.ID, SenderKind: model.SenderContact, Content: "x"})
	require.NoError(t, err)

	got, err := env.conversations.Get(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastMessageAt)
	assert.True(t, got.LastMessageAt.Equal(m.CreatedAt))
}

func TestGetMessagesOrderAndPaging(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := newConversation(t, env)

	for _, c := range []string{"one", "two", "three", "four", "five"} {
		_, _, err := env.messages.Record(ctx, model.RecordInput{ConversationID: conv.ID, SenderKind: model.SenderContact, Content: c})
		require.NoError(t, err)
	}

	page, err := env.messages.GetMessages(ctx, conv.ID, 0, 2)
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, "one", page.Messages[0].Content)
	assert.Equal(t, "two", page.Messages[1].Content)
	assert.True(t, page.HasMore)
	assert.Less(t, page.Messages[0].Seq, page.Messages[1].Seq)

	rest, err := env.messages.GetMessages(ctx, conv.ID, page.LastSequence, 10)
	require.NoError(t, err)
	require.Len(t, rest.Messages, 3)
	assert.Equal(t, "three", rest.Messages[0].Content)
	assert.Equal(t, "five", rest.Messages[2].Content)
	assert.False(t, rest.HasMore)

	_, err = env.messages.GetMessages(ctx, "missing", 0, 10)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestGetMessagesPagesAcrossSkewedTimestamps(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := newConversation(t, env)

	// Concurrent writers can stamp CreatedAt in the opposite order of insertion.
	now := time.Now().UTC()
	for _, m := range []model.Message{
		{ID: uuid.NewString(), ConversationID: conv.ID, SenderKind: model.SenderContact, Content: "B", CreatedAt: now.Add(time.Millisecond)},
		{ID: uuid.NewString(), ConversationID: conv.ID, SenderKind: model.SenderContact, Content: "A", CreatedAt: now},
		{ID: uuid.NewString(), ConversationID: conv.ID, SenderKind: model.SenderContact, Content: "C", CreatedAt: now},
	} {
		m := m
		require.NoError(t, env.store.Messages().Create(ctx, &m))
	}

	var contents []string
	var after uint64
	for {
		page, err := env.messages.GetMessages(ctx, conv.ID, after, 1)
		require.NoError(t, err)
		for _, m := range page.Messages {
			contents = append(contents, m.Content)
		}
		if !page.HasMore {
			break
		}
		after = page.LastSequence
	}
	assert.Equal(t, []string{"B", "A", "C"}, contents)
}

func TestMarkRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := newConversation(t, env)

	for i := 0; i < 3; i++ {
		_, _, err := env.messages.Record(ctx, model.RecordInput{ConversationID: conv.ID, SenderKind: model.SenderContact, Content: "x"})
		require.NoError(t, err)
	}

	n, err := env.messages.MarkRead(ctx, conv.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	n, err = env.messages.MarkRead(ctx, conv.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	page, err := env.messages.GetMessages(ctx, conv.ID, 0, 10)
	require.NoError(t, err)
	for _, m := range page.Messages {
		assert.True(t, m.IsRead)
		assert.NotNil(t, m.ReadAt)
	}
}
