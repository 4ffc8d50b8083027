package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"meistro/pkg/kafka"
	"meistro/pkg/logger"
	"meistro/pkg/model"
)

type mockPublisher struct {
	topic     string
	published []kafka.Message
	publishFn func(ctx context.Context, msg kafka.Message) error
}

func (m *mockPublisher) Publish(ctx context.Context, msg kafka.Message) error {
	m.published = append(m.published, msg)
	if m.publishFn != nil {
		return m.publishFn(ctx, msg)
	}
	return nil
}

func (m *mockPublisher) Topic() string {
	return m.topic
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: logger.ERROR, Format: logger.TEXT, Service: "test"})
}

func TestBookingTransitioned_PublishesToBookingTopic(t *testing.T) {
	bookingPub := &mockPublisher{topic: "meistro.booking-events"}
	chatPub := &mockPublisher{topic: "meistro.chat-events"}
	d := NewKafkaDispatcher(bookingPub, chatPub, testLogger())

	event := &model.BookingTransitionedEvent{
		BookingID:    "507f1f77bcf86cd799439011",
		ListingID:    "listing-1",
		ProviderID:   "provider-1",
		CustomerID:   "customer-1",
		ActorID:      "provider-1",
		NewStatus:    model.StatusConfirmed,
		TransitionAt: time.Now(),
	}

	d.BookingTransitioned(context.Background(), event)

	if len(bookingPub.published) != 1 {
		t.Fatalf("expected 1 message on booking topic, got %d", len(bookingPub.published))
	}
	if len(chatPub.published) != 0 {
		t.Fatalf("expected no messages on chat topic, got %d", len(chatPub.published))
	}

	msg := bookingPub.published[0]
	if msg.Key != event.BookingID {
		t.Errorf("expected key %q, got %q", event.BookingID, msg.Key)
	}
	if msg.GetEventType() != model.EventBookingTransitioned {
		t.Errorf("expected event type %q, got %q", model.EventBookingTransitioned, msg.GetEventType())
	}
	if msg.GetEventID() == "" {
		t.Error("expected event ID header to be set")
	}

	var decoded model.BookingTransitionedEvent
	if err := msg.DecodeValue(&decoded); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if decoded.NewStatus != model.StatusConfirmed {
		t.Errorf("expected status %q, got %q", model.StatusConfirmed, decoded.NewStatus)
	}
}

func TestMessageSent_PublishesToChatTopic(t *testing.T) {
	bookingPub := &mockPublisher{topic: "meistro.booking-events"}
	chatPub := &mockPublisher{topic: "meistro.chat-events"}
	d := NewKafkaDispatcher(bookingPub, chatPub, testLogger())

	event := &model.MessageSentEvent{
		ConversationID: "conv-1",
		MessageID:      "msg-1",
		SenderID:       "user-a",
		RecipientID:    "user-b",
		Text:           "see you at 3",
		SentAt:         time.Now(),
	}

	d.MessageSent(context.Background(), event)

	if len(chatPub.published) != 1 {
		t.Fatalf("expected 1 message on chat topic, got %d", len(chatPub.published))
	}
	if len(bookingPub.published) != 0 {
		t.Fatalf("expected no messages on booking topic, got %d", len(bookingPub.published))
	}
	if chatPub.published[0].Key != event.ConversationID {
		t.Errorf("expected key %q, got %q", event.ConversationID, chatPub.published[0].Key)
	}
}

func TestDispatch_SwallowsPublishErrors(t *testing.T) {
	bookingPub := &mockPublisher{
		topic: "meistro.booking-events",
		publishFn: func(ctx context.Context, msg kafka.Message) error {
			return errors.New("broker unreachable")
		},
	}
	chatPub := &mockPublisher{topic: "meistro.chat-events"}
	d := NewKafkaDispatcher(bookingPub, chatPub, testLogger())

	// Must not panic or propagate the error.
	d.BookingTransitioned(context.Background(), &model.BookingTransitionedEvent{
		BookingID:  "b-1",
		ProviderID: "p-1",
		ActorID:    "p-1",
		NewStatus:  model.StatusDeclined,
	})

	if len(bookingPub.published) != 1 {
		t.Fatalf("expected publish attempt despite error, got %d", len(bookingPub.published))
	}
}

func TestDispatch_SurvivesCancelledRequestContext(t *testing.T) {
	bookingPub := &mockPublisher{topic: "meistro.booking-events"}
	chatPub := &mockPublisher{topic: "meistro.chat-events"}
	d := NewKafkaDispatcher(bookingPub, chatPub, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bookingPub.publishFn = func(publishCtx context.Context, msg kafka.Message) error {
		// Publishing context must be detached from the finished request.
		if publishCtx.Err() != nil {
			t.Error("expected a live context for publishing after request cancellation")
		}
		return nil
	}

	d.BookingTransitioned(ctx, &model.BookingTransitionedEvent{
		BookingID:  "b-1",
		ProviderID: "p-1",
		ActorID:    "p-1",
		NewStatus:  model.StatusCancelled,
	})

	if len(bookingPub.published) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(bookingPub.published))
	}
}

func TestRecipient_ResolvesNonActingParty(t *testing.T) {
	tests := []struct {
		name     string
		event    model.BookingTransitionedEvent
		expected string
	}{
		{
			name:     "provider acts, customer notified",
			event:    model.BookingTransitionedEvent{ProviderID: "p-1", CustomerID: "c-1", ActorID: "p-1"},
			expected: "c-1",
		},
		{
			name:     "customer acts, provider notified",
			event:    model.BookingTransitionedEvent{ProviderID: "p-1", CustomerID: "c-1", ActorID: "c-1"},
			expected: "p-1",
		},
		{
			name:     "provider acts on guest booking, nobody to notify",
			event:    model.BookingTransitionedEvent{ProviderID: "p-1", CustomerID: "", ActorID: "p-1"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.event.Recipient(); got != tt.expected {
				t.Errorf("Recipient() = %q, want %q", got, tt.expected)
			}
		})
	}
}
