package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/capitalize-ai/support-inbox/internal/model"
	"github.com/capitalize-ai/support-inbox/internal/phone"
	"github.com/capitalize-ai/support-inbox/internal/store"
	"github.com/capitalize-ai/support-inbox/pkg/logger"
)

type testEnv struct {
	store         *store.MemoryStore
	contacts      *ContactService
	conversations *ConversationService
	messages      *MessageService
	ingestor      *Ingestor
	dispatcher    *Dispatcher
	provider      *fakeProvider
	journal       *recordingJournal
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, store.NewMemoryStore())
}

func newTestEnvWithStore(t *testing.T, st *store.MemoryStore) *testEnv {
	t.Helper()
	log := logger.Nop()
	normalizer := phone.NewNormalizer(8)
	journal := &recordingJournal{}
	provider := &fakeProvider{}

	contacts := NewContactService(st.Contacts(), normalizer, log)
	conversations := NewConversationService(st.Conversations(), journal, log)
	messages := NewMessageService(st.Messages(), conversations, journal, log)

	return &testEnv{
		store:         st,
		contacts:      contacts,
		conversations: conversations,
		messages:      messages,
		ingestor: NewIngestor(IngestConfig{AccountID: "AC123", Timeout: 5 * time.Second},
			normalizer, contacts, conversations, messages, log),
		dispatcher: NewDispatcher(DispatcherConfig{
			Channel:   "whatsapp",
			From:      "+14155238886",
			Templates: map[string]string{"welcome": "Hola {name}, tu pedido {0} está listo"},
		}, provider, normalizer, contacts, conversations, messages, log),
		provider: provider,
		journal:  journal,
	}
}

func (e *testEnv) countMessages(t *testing.T, conversationID string) int {
	t.Helper()
	msgs, err := e.store.Messages().ListByConversation(context.Background(), conversationID, 0, 0)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	return len(msgs)
}

// fakeProvider records sends and answers status queries from a table.
type fakeProvider struct {
	mu       sync.Mutex
	sent     []sentMessage
	statuses map[string]string
	sendErr  error
	n        int
}

type sentMessage struct {
	From, To, Body string
}

func (p *fakeProvider) Send(ctx context.Context, from, to, body string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sendErr != nil {
		return "", p.sendErr
	}
	p.n++
	p.sent = append(p.sent, sentMessage{From: from, To: to, Body: body})
	return fmt.Sprintf("SMout%d", p.n), nil
}

func (p *fakeProvider) FetchStatus(ctx context.Context, id string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.statuses[id]
	if !ok {
		return "", errors.New("message not found")
	}
	return s, nil
}

func (p *fakeProvider) last() sentMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent[len(p.sent)-1]
}

// recordingJournal keeps everything published to it.
type recordingJournal struct {
	mu       sync.Mutex
	messages []*model.Message
	events   []*model.ConversationEvent
}

func (j *recordingJournal) PublishMessage(ctx context.Context, msg *model.Message) (uint64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.messages = append(j.messages, msg)
	return uint64(len(j.messages)), nil
}

func (j *recordingJournal) PublishEvent(ctx context.Context, event *model.ConversationEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, event)
	return nil
}

func (j *recordingJournal) eventTypes() []model.EventType {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]model.EventType, len(j.events))
	for i, e := range j.events {
		out[i] = e.Type
	}
	return out
}
