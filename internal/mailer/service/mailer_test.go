package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"meistro/internal/mailer/repository"
	"meistro/pkg/kafka"
	"meistro/pkg/logger"
	"meistro/pkg/mail"
	"meistro/pkg/model"
	"meistro/pkg/sealer"
)

type mockPrefsRepo struct {
	prefs map[string]*model.NotificationPreferences
	err   error
}

func (m *mockPrefsRepo) FindByUserID(ctx context.Context, userID string) (*model.NotificationPreferences, error) {
	if m.err != nil {
		return nil, m.err
	}
	prefs, ok := m.prefs[userID]
	if !ok {
		return nil, repository.ErrPrefsNotFound
	}
	return prefs, nil
}

type mockSender struct {
	sent   []mail.Email
	sendFn func(ctx context.Context, email mail.Email) error
}

func (m *mockSender) Send(ctx context.Context, email mail.Email) error {
	m.sent = append(m.sent, email)
	if m.sendFn != nil {
		return m.sendFn(ctx, email)
	}
	return nil
}

const testPortalURL = "https://portal.test/settings/notifications"

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: logger.ERROR, Format: logger.TEXT, Service: "test"})
}

func bookingEventMessage(t *testing.T, event *model.BookingTransitionedEvent) kafka.Message {
	t.Helper()
	return kafka.NewMessage().
		WithKey(event.BookingID).
		WithValue(event).
		WithEventType(model.EventBookingTransitioned).
		Build()
}

func chatEventMessage(t *testing.T, event *model.MessageSentEvent) kafka.Message {
	t.Helper()
	return kafka.NewMessage().
		WithKey(event.ConversationID).
		WithValue(event).
		WithEventType(model.EventMessageSent).
		Build()
}

func optedInPrefs(userID, email string) *model.NotificationPreferences {
	return &model.NotificationPreferences{
		UserID:        userID,
		Email:         email,
		BookingEmails: true,
		MessageEmails: true,
	}
}

func TestHandleBookingEvent_DecisionTable(t *testing.T) {
	tests := []struct {
		name     string
		event    model.BookingTransitionedEvent
		prefs    map[string]*model.NotificationPreferences
		wantMail bool
	}{
		{
			name: "confirmed notifies customer",
			event: model.BookingTransitionedEvent{
				BookingID: "b-1", ProviderID: "p-1", CustomerID: "c-1",
				ActorID: "p-1", NewStatus: model.StatusConfirmed,
			},
			prefs:    map[string]*model.NotificationPreferences{"c-1": optedInPrefs("c-1", "c@example.com")},
			wantMail: true,
		},
		{
			name: "declined notifies customer",
			event: model.BookingTransitionedEvent{
				BookingID: "b-1", ProviderID: "p-1", CustomerID: "c-1",
				ActorID: "p-1", NewStatus: model.StatusDeclined,
			},
			prefs:    map[string]*model.NotificationPreferences{"c-1": optedInPrefs("c-1", "c@example.com")},
			wantMail: true,
		},
		{
			name: "customer cancellation notifies provider",
			event: model.BookingTransitionedEvent{
				BookingID: "b-1", ProviderID: "p-1", CustomerID: "c-1",
				ActorID: "c-1", NewStatus: model.StatusCancelled,
			},
			prefs:    map[string]*model.NotificationPreferences{"p-1": optedInPrefs("p-1", "p@example.com")},
			wantMail: true,
		},
		{
			name: "completed sends nothing",
			event: model.BookingTransitionedEvent{
				BookingID: "b-1", ProviderID: "p-1", CustomerID: "c-1",
				ActorID: "p-1", NewStatus: model.StatusCompleted,
			},
			prefs:    map[string]*model.NotificationPreferences{"c-1": optedInPrefs("c-1", "c@example.com")},
			wantMail: false,
		},
		{
			name: "guest booking has nobody to mail",
			event: model.BookingTransitionedEvent{
				BookingID: "b-1", ProviderID: "p-1", CustomerID: "",
				ActorID: "p-1", NewStatus: model.StatusConfirmed,
			},
			prefs:    map[string]*model.NotificationPreferences{},
			wantMail: false,
		},
		{
			name: "missing prefs skip silently",
			event: model.BookingTransitionedEvent{
				BookingID: "b-1", ProviderID: "p-1", CustomerID: "c-1",
				ActorID: "p-1", NewStatus: model.StatusConfirmed,
			},
			prefs:    map[string]*model.NotificationPreferences{},
			wantMail: false,
		},
		{
			name: "booking emails disabled",
			event: model.BookingTransitionedEvent{
				BookingID: "b-1", ProviderID: "p-1", CustomerID: "c-1",
				ActorID: "p-1", NewStatus: model.StatusConfirmed,
			},
			prefs: map[string]*model.NotificationPreferences{
				"c-1": {UserID: "c-1", Email: "c@example.com", BookingEmails: false, MessageEmails: true},
			},
			wantMail: false,
		},
		{
			name: "empty email address",
			event: model.BookingTransitionedEvent{
				BookingID: "b-1", ProviderID: "p-1", CustomerID: "c-1",
				ActorID: "p-1", NewStatus: model.StatusConfirmed,
			},
			prefs: map[string]*model.NotificationPreferences{
				"c-1": {UserID: "c-1", Email: "", BookingEmails: true},
			},
			wantMail: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &mockSender{}
			svc := NewMailerService(&mockPrefsRepo{prefs: tt.prefs}, sender, testPortalURL, testLogger())

			err := svc.HandleBookingEvent(context.Background(), bookingEventMessage(t, &tt.event))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tt.wantMail && len(sender.sent) != 1 {
				t.Errorf("expected 1 email, got %d", len(sender.sent))
			}
			if !tt.wantMail && len(sender.sent) != 0 {
				t.Errorf("expected no email, got %d", len(sender.sent))
			}
		})
	}
}

func TestHandleChatEvent_DecisionTable(t *testing.T) {
	tests := []struct {
		name     string
		event    model.MessageSentEvent
		prefs    map[string]*model.NotificationPreferences
		wantMail bool
	}{
		{
			name: "message notifies recipient",
			event: model.MessageSentEvent{
				ConversationID: "conv-1", MessageID: "m-1",
				SenderID: "a", RecipientID: "b", Text: "hello", SentAt: time.Now(),
			},
			prefs:    map[string]*model.NotificationPreferences{"b": optedInPrefs("b", "b@example.com")},
			wantMail: true,
		},
		{
			name: "whitespace-only text skipped",
			event: model.MessageSentEvent{
				ConversationID: "conv-1", MessageID: "m-1",
				SenderID: "a", RecipientID: "b", Text: "  \n ", SentAt: time.Now(),
			},
			prefs:    map[string]*model.NotificationPreferences{"b": optedInPrefs("b", "b@example.com")},
			wantMail: false,
		},
		{
			name: "message emails disabled",
			event: model.MessageSentEvent{
				ConversationID: "conv-1", MessageID: "m-1",
				SenderID: "a", RecipientID: "b", Text: "hello", SentAt: time.Now(),
			},
			prefs: map[string]*model.NotificationPreferences{
				"b": {UserID: "b", Email: "b@example.com", BookingEmails: true, MessageEmails: false},
			},
			wantMail: false,
		},
		{
			name: "missing recipient prefs",
			event: model.MessageSentEvent{
				ConversationID: "conv-1", MessageID: "m-1",
				SenderID: "a", RecipientID: "b", Text: "hello", SentAt: time.Now(),
			},
			prefs:    map[string]*model.NotificationPreferences{},
			wantMail: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &mockSender{}
			svc := NewMailerService(&mockPrefsRepo{prefs: tt.prefs}, sender, testPortalURL, testLogger())

			err := svc.HandleChatEvent(context.Background(), chatEventMessage(t, &tt.event))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tt.wantMail && len(sender.sent) != 1 {
				t.Errorf("expected 1 email, got %d", len(sender.sent))
			}
			if !tt.wantMail && len(sender.sent) != 0 {
				t.Errorf("expected no email, got %d", len(sender.sent))
			}
		})
	}
}

func TestChatEmailTruncatesOnRuneBoundary(t *testing.T) {
	sender := &mockSender{}
	prefs := map[string]*model.NotificationPreferences{"b": optedInPrefs("b", "b@example.com")}
	svc := NewMailerService(&mockPrefsRepo{prefs: prefs}, sender, testPortalURL, testLogger())

	event := model.MessageSentEvent{
		ConversationID: "conv-1", MessageID: "m-1",
		SenderID: "a", RecipientID: "b",
		Text:   strings.Repeat("ש", 250),
		SentAt: time.Now(),
	}
	if err := svc.HandleChatEvent(context.Background(), chatEventMessage(t, &event)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(sender.sent))
	}

	body := sender.sent[0].Body
	if !utf8.ValidString(body) {
		t.Error("email body contains invalid UTF-8")
	}
	if !strings.Contains(body, strings.Repeat("ש", 200)+"…") {
		t.Error("expected text cut to 200 characters followed by an ellipsis")
	}
	if strings.Contains(body, strings.Repeat("ש", 201)) {
		t.Error("expected no more than 200 message characters in the body")
	}
}

func TestBookingEmailCarriesPreferenceLink(t *testing.T) {
	sender := &mockSender{}
	prefs := &mockPrefsRepo{prefs: map[string]*model.NotificationPreferences{
		"c-1": optedInPrefs("c-1", "c@example.com"),
	}}
	svc := NewMailerService(prefs, sender, testPortalURL, testLogger())

	event := &model.BookingTransitionedEvent{
		BookingID: "b-1", ProviderID: "p-1", CustomerID: "c-1",
		ActorID: "p-1", NewStatus: model.StatusConfirmed,
	}
	if err := svc.HandleBookingEvent(context.Background(), bookingEventMessage(t, event)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(sender.sent))
	}

	body := sender.sent[0].Body
	marker := testPortalURL + "?token="
	idx := strings.Index(body, marker)
	if idx < 0 {
		t.Fatalf("email body missing preference link, body: %q", body)
	}

	token := strings.TrimSpace(body[idx+len(marker):])
	userID, scope, err := sealer.ParseOpaqueToken(token)
	if err != nil {
		t.Fatalf("footer token does not parse: %v", err)
	}
	if userID != "c-1" || scope != "email-prefs" {
		t.Errorf("token payload = (%q, %q), want (c-1, email-prefs)", userID, scope)
	}
}

func TestMailerWithoutPortalOmitsFooter(t *testing.T) {
	sender := &mockSender{}
	prefs := &mockPrefsRepo{prefs: map[string]*model.NotificationPreferences{
		"c-1": optedInPrefs("c-1", "c@example.com"),
	}}
	svc := NewMailerService(prefs, sender, "", testLogger())

	event := &model.BookingTransitionedEvent{
		BookingID: "b-1", ProviderID: "p-1", CustomerID: "c-1",
		ActorID: "p-1", NewStatus: model.StatusConfirmed,
	}
	if err := svc.HandleBookingEvent(context.Background(), bookingEventMessage(t, event)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(sender.sent))
	}
	if strings.Contains(sender.sent[0].Body, "?token=") {
		t.Error("expected no preference link when portal URL is unset")
	}
}

func TestHandleBookingEvent_SendFailureIsNotRetried(t *testing.T) {
	sender := &mockSender{
		sendFn: func(ctx context.Context, email mail.Email) error {
			return errors.New("smtp relay down")
		},
	}
	prefs := &mockPrefsRepo{prefs: map[string]*model.NotificationPreferences{
		"c-1": optedInPrefs("c-1", "c@example.com"),
	}}
	svc := NewMailerService(prefs, sender, testPortalURL, testLogger())

	event := &model.BookingTransitionedEvent{
		BookingID: "b-1", ProviderID: "p-1", CustomerID: "c-1",
		ActorID: "p-1", NewStatus: model.StatusConfirmed,
	}

	// A nil return keeps the consumer from redelivering; the one send
	// attempt is all this event gets.
	if err := svc.HandleBookingEvent(context.Background(), bookingEventMessage(t, event)); err != nil {
		t.Fatalf("expected nil after send failure, got %v", err)
	}

	if len(sender.sent) != 1 {
		t.Errorf("expected exactly 1 send attempt, got %d", len(sender.sent))
	}
	if svc.Failures() != 1 {
		t.Errorf("expected failure counter 1, got %d", svc.Failures())
	}
}

func TestHandleBookingEvent_PrefsStorageErrorIsTransient(t *testing.T) {
	svc := NewMailerService(&mockPrefsRepo{err: errors.New("connection reset")}, &mockSender{}, testPortalURL, testLogger())

	event := &model.BookingTransitionedEvent{
		BookingID: "b-1", ProviderID: "p-1", CustomerID: "c-1",
		ActorID: "p-1", NewStatus: model.StatusConfirmed,
	}

	err := svc.HandleBookingEvent(context.Background(), bookingEventMessage(t, event))
	if err == nil {
		t.Fatal("expected error for prefs storage failure")
	}
	if kafka.ClassifyError(err) != kafka.ErrorTypeTransient {
		t.Errorf("expected transient classification, got %v", kafka.ClassifyError(err))
	}
}

func TestHandleBookingEvent_MalformedPayloadIsPermanent(t *testing.T) {
	svc := NewMailerService(&mockPrefsRepo{}, &mockSender{}, testPortalURL, testLogger())

	msg := kafka.Message{Key: "b-1", Value: []byte("{not json"), Headers: map[string]string{}}

	err := svc.HandleBookingEvent(context.Background(), msg)
	if err == nil {
		t.Fatal("expected error for malformed payload")
	}
	if kafka.ClassifyError(err) != kafka.ErrorTypePermanent {
		t.Errorf("expected permanent classification, got %v", kafka.ClassifyError(err))
	}
}
