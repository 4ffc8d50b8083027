package dispatch

import (
	"context"
	"time"

	"meistro/pkg/kafka"
	"meistro/pkg/logger"
	"meistro/pkg/model"
)

// Dispatcher publishes domain events after a state change has been committed.
// Publishing is fire-and-forget: failures are logged and swallowed so they
// never affect the outcome of the request that produced the event.
type Dispatcher interface {
	BookingTransitioned(ctx context.Context, event *model.BookingTransitionedEvent)
	MessageSent(ctx context.Context, event *model.MessageSentEvent)
}

// Publisher is the slice of kafka.Producer the dispatcher needs.
type Publisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
	Topic() string
}

const publishTimeout = 5 * time.Second

type kafkaDispatcher struct {
	bookingPublisher Publisher
	chatPublisher    Publisher
	log              *logger.Logger
}

func NewKafkaDispatcher(bookingPublisher Publisher, chatPublisher Publisher, log *logger.Logger) Dispatcher {
	return &kafkaDispatcher{
		bookingPublisher: bookingPublisher,
		chatPublisher:    chatPublisher,
		log:              log,
	}
}

func (d *kafkaDispatcher) BookingTransitioned(ctx context.Context, event *model.BookingTransitionedEvent) {
	d.publish(ctx, d.bookingPublisher, model.EventBookingTransitioned, event.BookingID, event)
}

func (d *kafkaDispatcher) MessageSent(ctx context.Context, event *model.MessageSentEvent) {
	d.publish(ctx, d.chatPublisher, model.EventMessageSent, event.ConversationID, event)
}

// publish serializes and sends one event. The context is detached from the
// request so a finished request does not cancel an in-flight publish.
func (d *kafkaDispatcher) publish(ctx context.Context, publisher Publisher, eventType string, key string, event any) {
	msg := kafka.NewMessage().
		WithKey(key).
		WithValue(event).
		WithEventType(eventType).
		WithSource("meistro").
		Build()

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := publisher.Publish(publishCtx, msg); err != nil {
		d.log.Error("Failed to publish event",
			"event_type", eventType,
			"topic", publisher.Topic(),
			"key", key,
			"error", err)
		return
	}

	d.log.Debug("Event published",
		"event_type", eventType,
		"topic", publisher.Topic(),
		"key", key)
}
