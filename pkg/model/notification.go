package model

import "time"

// NotificationPreferences gates outbound email per recipient. Read-only for
// this module; owned by the account/profile service.
type NotificationPreferences struct {
	UserID        string `json:"user_id" bson:"user_id"`
	Email         string `json:"email" bson:"email"`
	BookingEmails bool   `json:"booking_emails" bson:"booking_emails"`
	MessageEmails bool   `json:"message_emails" bson:"message_emails"`
}

// UnreadCount is the aggregated activity badge for one user. Pending bookings
// include both roles: requested bookings awaiting the user as provider and
// the user's own requests still awaiting the provider.
type UnreadCount struct {
	PendingBookings int `json:"pending_bookings"`
	UnreadMessages  int `json:"unread_messages"`
	Total           int `json:"total"`
}

// BookingLock is an advisory lock serializing the confirm path per provider.
// Acquired by inserting a document with a deterministic _id; a duplicate key
// error means another confirm holds the lock. TTL index on expires_at clears
// leaked locks.
type BookingLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
