package model

import (
	"time"
)

type BookingStatus string

const (
	StatusRequested BookingStatus = "requested"
	StatusConfirmed BookingStatus = "confirmed"
	StatusDeclined  BookingStatus = "declined"
	StatusCancelled BookingStatus = "cancelled"
	StatusCompleted BookingStatus = "completed"
)

// Terminal reports whether no further transition is permitted out of s.
func (s BookingStatus) Terminal() bool {
	switch s {
	case StatusDeclined, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

type BookingAction string

const (
	ActionConfirm  BookingAction = "confirm"
	ActionDecline  BookingAction = "decline"
	ActionCancel   BookingAction = "cancel"
	ActionComplete BookingAction = "complete"
)

type Booking struct {
	ID              string        `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	ListingID       string        `json:"listing_id" bson:"listing_id" validate:"required,min=1,max=64"`
	ProviderID      string        `json:"provider_id" bson:"provider_id" validate:"required,min=1,max=64"`
	CustomerID      string        `json:"customer_id,omitempty" bson:"customer_id,omitempty" validate:"omitempty,min=1,max=64"`
	ContactName     string        `json:"contact_name,omitempty" bson:"contact_name,omitempty" validate:"omitempty,min=2,max=100"`
	ContactPhone    string        `json:"contact_phone,omitempty" bson:"contact_phone,omitempty" validate:"omitempty,e164"`
	StartTime       time.Time     `json:"start_time" bson:"start_time" validate:"required"`
	DurationMinutes int           `json:"duration_minutes" bson:"duration_minutes" validate:"required,min=1,max=1440"`
	EndTime         time.Time     `json:"end_time" bson:"end_time"`
	Status          BookingStatus `json:"status" bson:"status" validate:"required,oneof=requested confirmed declined cancelled completed"`
	Note            string        `json:"note,omitempty" bson:"note,omitempty" validate:"omitempty,max=1000"`
	CreatedAt       time.Time     `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt       time.Time     `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}

// ComputeEndTime derives the denormalized end_time from start_time and duration.
// Stored alongside start_time so overlap queries stay index-friendly.
func (b *Booking) ComputeEndTime() {
	b.EndTime = b.StartTime.Add(time.Duration(b.DurationMinutes) * time.Minute)
}

// IsParticipant reports whether userID is the provider or the customer.
func (b *Booking) IsParticipant(userID string) bool {
	if userID == "" {
		return false
	}
	return userID == b.ProviderID || (b.CustomerID != "" && userID == b.CustomerID)
}

// OtherParty returns the counterpart of actorID on this booking. The empty
// string means the counterpart is a guest with no account.
func (b *Booking) OtherParty(actorID string) string {
	if actorID == b.ProviderID {
		return b.CustomerID
	}
	return b.ProviderID
}

// BookingRequest is the creation payload. Guests omit customer_id and supply
// contact details instead.
type BookingRequest struct {
	ListingID       string `json:"listing_id" validate:"required,min=1,max=64"`
	ProviderID      string `json:"provider_id" validate:"required,min=1,max=64"`
	CustomerID      string `json:"customer_id,omitempty" validate:"omitempty,min=1,max=64"`
	ContactName     string `json:"contact_name,omitempty" validate:"omitempty,min=2,max=100"`
	ContactPhone    string `json:"contact_phone,omitempty" validate:"omitempty"`
	StartTime       string `json:"start_time" validate:"required"`
	DurationMinutes int    `json:"duration_minutes" validate:"required,min=1,max=1440"`
	Note            string `json:"note,omitempty" validate:"omitempty,max=1000"`
}

type TransitionRequest struct {
	Action BookingAction `json:"action" validate:"required,oneof=confirm decline cancel complete"`
}
