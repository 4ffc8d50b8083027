package model

import "time"

type Conversation struct {
	ID             string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	ParticipantIDs []string  `json:"participant_ids" bson:"participant_ids" validate:"required,min=2,max=2,dive,min=1,max=64"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
}

// HasParticipant reports whether userID belongs to the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, id := range c.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the counterpart of userID, or the empty string
// when userID is not a participant.
func (c *Conversation) OtherParticipant(userID string) string {
	for _, id := range c.ParticipantIDs {
		if id != userID {
			return id
		}
	}
	return ""
}

type Message struct {
	ID             string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	ConversationID string    `json:"conversation_id" bson:"conversation_id" validate:"required,mongodb"`
	SenderID       string    `json:"sender_id" bson:"sender_id" validate:"required,min=1,max=64"`
	Text           string    `json:"text" bson:"text" validate:"required,min=1,max=4000"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
}

// ReadMarker is the per-(conversation, user) read pointer. A message from
// another sender newer than LastReadAt counts as unread; a missing marker
// means everything is unread. Written only by its owning user.
type ReadMarker struct {
	ConversationID string    `json:"conversation_id" bson:"conversation_id"`
	UserID         string    `json:"user_id" bson:"user_id"`
	LastReadAt     time.Time `json:"last_read_at" bson:"last_read_at"`
}

type SendMessageRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}

type OpenConversationRequest struct {
	ParticipantID string `json:"participant_id" validate:"required,min=1,max=64"`
}
