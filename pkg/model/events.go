package model

import "time"

const (
	EventBookingTransitioned = "booking.transitioned"
	EventMessageSent         = "chat.message-sent"
)

// BookingTransitionedEvent is published for every successful transition.
// Consumers decide which statuses warrant a notification.
type BookingTransitionedEvent struct {
	BookingID    string        `json:"booking_id"`
	ListingID    string        `json:"listing_id"`
	ProviderID   string        `json:"provider_id"`
	CustomerID   string        `json:"customer_id,omitempty"`
	ActorID      string        `json:"actor_id"`
	NewStatus    BookingStatus `json:"new_status"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	ContactName  string        `json:"contact_name,omitempty"`
	TransitionAt time.Time     `json:"transition_at"`
}

// Recipient resolves who should be told about the transition: the party that
// did not act. Empty when the counterpart is a guest without an account.
func (e *BookingTransitionedEvent) Recipient() string {
	if e.ActorID == e.ProviderID {
		return e.CustomerID
	}
	return e.ProviderID
}

type MessageSentEvent struct {
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	SenderID       string    `json:"sender_id"`
	RecipientID    string    `json:"recipient_id"`
	Text           string    `json:"text"`
	SentAt         time.Time `json:"sent_at"`
}
