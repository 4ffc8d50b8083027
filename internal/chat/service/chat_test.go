package service

import (
	"context"
	"testing"
	"time"

	chaterrors "meistro/internal/chat/errors"
	"meistro/pkg/config"
	apperrors "meistro/pkg/errors"
	"meistro/pkg/logger"
	"meistro/pkg/model"
)

type mockConversationRepo struct {
	findByIDFn           func(ctx context.Context, id string) (*model.Conversation, error)
	findByParticipantsFn func(ctx context.Context, userA, userB string) (*model.Conversation, error)
	createFn             func(ctx context.Context, conversation *model.Conversation) error
	findByParticipantFn  func(ctx context.Context, userID string, limit int) ([]*model.Conversation, error)
}

func (m *mockConversationRepo) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, chaterrors.ErrConversationNotFound
}

func (m *mockConversationRepo) FindByParticipants(ctx context.Context, userA, userB string) (*model.Conversation, error) {
	if m.findByParticipantsFn != nil {
		return m.findByParticipantsFn(ctx, userA, userB)
	}
	return nil, chaterrors.ErrConversationNotFound
}

func (m *mockConversationRepo) Create(ctx context.Context, conversation *model.Conversation) error {
	if m.createFn != nil {
		return m.createFn(ctx, conversation)
	}
	conversation.ID = "507f1f77bcf86cd799439033"
	conversation.CreatedAt = time.Now()
	return nil
}

func (m *mockConversationRepo) FindByParticipant(ctx context.Context, userID string, limit int) ([]*model.Conversation, error) {
	if m.findByParticipantFn != nil {
		return m.findByParticipantFn(ctx, userID, limit)
	}
	return nil, nil
}

type mockMessageRepo struct {
	createFn  func(ctx context.Context, message *model.Message) error
	findFn    func(ctx context.Context, conversationID string, limit int, offset int64) ([]*model.Message, error)
	countFn   func(ctx context.Context, conversationID string) (int64, error)
	unreadFn  func(ctx context.Context, conversationID, userID string, after time.Time, cap int) (int64, error)
	created   []*model.Message
}

func (m *mockMessageRepo) Create(ctx context.Context, message *model.Message) error {
	if m.createFn != nil {
		return m.createFn(ctx, message)
	}
	message.ID = "507f1f77bcf86cd799439044"
	message.CreatedAt = time.Now()
	m.created = append(m.created, message)
	return nil
}

func (m *mockMessageRepo) FindByConversation(ctx context.Context, conversationID string, limit int, offset int64) ([]*model.Message, error) {
	if m.findFn != nil {
		return m.findFn(ctx, conversationID, limit, offset)
	}
	return nil, nil
}

func (m *mockMessageRepo) CountByConversation(ctx context.Context, conversationID string) (int64, error) {
	if m.countFn != nil {
		return m.countFn(ctx, conversationID)
	}
	return 0, nil
}

func (m *mockMessageRepo) CountUnread(ctx context.Context, conversationID, userID string, after time.Time, cap int) (int64, error) {
	if m.unreadFn != nil {
		return m.unreadFn(ctx, conversationID, userID, after, cap)
	}
	return 0, nil
}

type mockMarkerRepo struct {
	upsertFn func(ctx context.Context, conversationID, userID string, lastReadAt time.Time) error
	findFn   func(ctx context.Context, conversationID, userID string) (*model.ReadMarker, error)
	upserts  int
}

func (m *mockMarkerRepo) Upsert(ctx context.Context, conversationID, userID string, lastReadAt time.Time) error {
	m.upserts++
	if m.upsertFn != nil {
		return m.upsertFn(ctx, conversationID, userID, lastReadAt)
	}
	return nil
}

func (m *mockMarkerRepo) Find(ctx context.Context, conversationID, userID string) (*model.ReadMarker, error) {
	if m.findFn != nil {
		return m.findFn(ctx, conversationID, userID)
	}
	return nil, chaterrors.ErrMarkerNotFound
}

type mockDispatcher struct {
	transitions []*model.BookingTransitionedEvent
	messages    []*model.MessageSentEvent
}

func (m *mockDispatcher) BookingTransitioned(ctx context.Context, event *model.BookingTransitionedEvent) {
	m.transitions = append(m.transitions, event)
}

func (m *mockDispatcher) MessageSent(ctx context.Context, event *model.MessageSentEvent) {
	m.messages = append(m.messages, event)
}

func testConfig() *config.Config {
	return &config.Config{
		Log: logger.New(logger.Config{Level: logger.ERROR, Format: logger.TEXT, Service: "test"}),
	}
}

func fixtureConversation() *model.Conversation {
	return &model.Conversation{
		ID:             "507f1f77bcf86cd799439033",
		ParticipantIDs: []string{"user-a", "user-b"},
		CreatedAt:      time.Now().Add(-time.Hour),
	}
}

func newTestService(convs *mockConversationRepo, msgs *mockMessageRepo, markers *mockMarkerRepo, d *mockDispatcher) ChatService {
	return NewChatService(convs, msgs, markers, d, testConfig())
}

func TestSendMessage_StoresAndDispatches(t *testing.T) {
	conversation := fixtureConversation()
	convs := &mockConversationRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Conversation, error) {
			return conversation, nil
		},
	}
	msgs := &mockMessageRepo{}
	dispatcher := &mockDispatcher{}
	svc := newTestService(convs, msgs, &mockMarkerRepo{}, dispatcher)

	message, err := svc.SendMessage(context.Background(), "user-a", conversation.ID, &model.SendMessageRequest{
		Text: "  see you at 3  ",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if message.Text != "see you at 3" {
		t.Errorf("expected trimmed text, got %q", message.Text)
	}
	if message.SenderID != "user-a" {
		t.Errorf("expected sender user-a, got %q", message.SenderID)
	}
	if len(dispatcher.messages) != 1 {
		t.Fatalf("expected 1 message event, got %d", len(dispatcher.messages))
	}
	event := dispatcher.messages[0]
	if event.RecipientID != "user-b" {
		t.Errorf("expected recipient user-b, got %q", event.RecipientID)
	}
}

func TestSendMessage_EmptyAfterTrim(t *testing.T) {
	svc := newTestService(&mockConversationRepo{}, &mockMessageRepo{}, &mockMarkerRepo{}, &mockDispatcher{})

	_, err := svc.SendMessage(context.Background(), "user-a", "507f1f77bcf86cd799439033", &model.SendMessageRequest{
		Text: "   \n\t  ",
	})
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Errorf("expected VALIDATION_ERROR for whitespace-only text, got %v", err)
	}
}

func TestSendMessage_NonParticipantForbidden(t *testing.T) {
	conversation := fixtureConversation()
	convs := &mockConversationRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Conversation, error) {
			return conversation, nil
		},
	}
	dispatcher := &mockDispatcher{}
	svc := newTestService(convs, &mockMessageRepo{}, &mockMarkerRepo{}, dispatcher)

	_, err := svc.SendMessage(context.Background(), "stranger", conversation.ID, &model.SendMessageRequest{
		Text: "hello",
	})
	if !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Errorf("expected FORBIDDEN, got %v", err)
	}
	if len(dispatcher.messages) != 0 {
		t.Errorf("expected no events, got %d", len(dispatcher.messages))
	}
}

func TestSendMessage_ConversationNotFound(t *testing.T) {
	svc := newTestService(&mockConversationRepo{}, &mockMessageRepo{}, &mockMarkerRepo{}, &mockDispatcher{})

	_, err := svc.SendMessage(context.Background(), "user-a", "507f1f77bcf86cd799439099", &model.SendMessageRequest{
		Text: "hello",
	})
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestMarkRead_UpsertsMarker(t *testing.T) {
	conversation := fixtureConversation()
	convs := &mockConversationRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Conversation, error) {
			return conversation, nil
		},
	}
	var gotUser string
	var gotAt time.Time
	markers := &mockMarkerRepo{
		upsertFn: func(ctx context.Context, conversationID, userID string, lastReadAt time.Time) error {
			gotUser = userID
			gotAt = lastReadAt
			return nil
		},
	}
	svc := newTestService(convs, &mockMessageRepo{}, markers, &mockDispatcher{})

	before := time.Now()
	if err := svc.MarkRead(context.Background(), "user-b", conversation.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotUser != "user-b" {
		t.Errorf("expected marker for user-b, got %q", gotUser)
	}
	if gotAt.Before(before) {
		t.Errorf("expected marker at or after %v, got %v", before, gotAt)
	}
}

func TestMarkRead_NonParticipantForbidden(t *testing.T) {
	conversation := fixtureConversation()
	convs := &mockConversationRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Conversation, error) {
			return conversation, nil
		},
	}
	markers := &mockMarkerRepo{}
	svc := newTestService(convs, &mockMessageRepo{}, markers, &mockDispatcher{})

	err := svc.MarkRead(context.Background(), "stranger", conversation.ID)
	if !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Errorf("expected FORBIDDEN, got %v", err)
	}
	if markers.upserts != 0 {
		t.Errorf("expected no upserts, got %d", markers.upserts)
	}
}

func TestOpenConversation_ReturnsExisting(t *testing.T) {
	existing := fixtureConversation()
	convs := &mockConversationRepo{
		findByParticipantsFn: func(ctx context.Context, userA, userB string) (*model.Conversation, error) {
			return existing, nil
		},
		createFn: func(ctx context.Context, conversation *model.Conversation) error {
			t.Fatal("should not create when conversation exists")
			return nil
		},
	}
	svc := newTestService(convs, &mockMessageRepo{}, &mockMarkerRepo{}, &mockDispatcher{})

	conversation, err := svc.OpenConversation(context.Background(), "user-a", "user-b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conversation.ID != existing.ID {
		t.Errorf("expected existing conversation %s, got %s", existing.ID, conversation.ID)
	}
}

func TestOpenConversation_CreatesOnFirstContact(t *testing.T) {
	svc := newTestService(&mockConversationRepo{}, &mockMessageRepo{}, &mockMarkerRepo{}, &mockDispatcher{})

	conversation, err := svc.OpenConversation(context.Background(), "user-a", "user-b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conversation.ID == "" {
		t.Error("expected created conversation to carry an ID")
	}
}

func TestOpenConversation_DuplicateInsertReturnsExisting(t *testing.T) {
	// Two users open the same pair at once: the loser of the insert race
	// gets the winner's conversation, not an error.
	existing := fixtureConversation()
	lookups := 0
	convs := &mockConversationRepo{
		findByParticipantsFn: func(ctx context.Context, userA, userB string) (*model.Conversation, error) {
			lookups++
			if lookups == 1 {
				return nil, chaterrors.ErrConversationNotFound
			}
			return existing, nil
		},
		createFn: func(ctx context.Context, conversation *model.Conversation) error {
			return chaterrors.ErrConversationExists
		},
	}
	svc := newTestService(convs, &mockMessageRepo{}, &mockMarkerRepo{}, &mockDispatcher{})

	conversation, err := svc.OpenConversation(context.Background(), "user-a", "user-b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conversation.ID != existing.ID {
		t.Errorf("expected existing conversation %s, got %s", existing.ID, conversation.ID)
	}
	if lookups != 2 {
		t.Errorf("expected a second lookup after the duplicate insert, got %d", lookups)
	}
}

func TestOpenConversation_SelfRejected(t *testing.T) {
	svc := newTestService(&mockConversationRepo{}, &mockMessageRepo{}, &mockMarkerRepo{}, &mockDispatcher{})

	_, err := svc.OpenConversation(context.Background(), "user-a", "user-a")
	if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
}

func TestListMessages_NonParticipantForbidden(t *testing.T) {
	conversation := fixtureConversation()
	convs := &mockConversationRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Conversation, error) {
			return conversation, nil
		},
	}
	svc := newTestService(convs, &mockMessageRepo{}, &mockMarkerRepo{}, &mockDispatcher{})

	_, _, err := svc.ListMessages(context.Background(), "stranger", conversation.ID, 20, 0)
	if !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Errorf("expected FORBIDDEN, got %v", err)
	}
}
