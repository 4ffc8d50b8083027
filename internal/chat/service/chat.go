package service

import (
	"context"
	"errors"
	"time"

	chaterrors "meistro/internal/chat/errors"
	"meistro/internal/chat/repository"
	"meistro/internal/dispatch"
	"meistro/pkg/config"
	apperrors "meistro/pkg/errors"
	"meistro/pkg/model"
	"meistro/pkg/sanitizer"
)

type ChatService interface {
	OpenConversation(ctx context.Context, actorID string, otherID string) (*model.Conversation, error)
	SendMessage(ctx context.Context, actorID string, conversationID string, req *model.SendMessageRequest) (*model.Message, error)
	MarkRead(ctx context.Context, actorID string, conversationID string) error
	ListMessages(ctx context.Context, actorID string, conversationID string, limit int, offset int64) ([]*model.Message, int64, error)
}

type chatService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	markers       repository.ReadMarkerRepository
	dispatcher    dispatch.Dispatcher
	cfg           *config.Config
}

func NewChatService(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	markers repository.ReadMarkerRepository,
	dispatcher dispatch.Dispatcher,
	cfg *config.Config,
) ChatService {
	return &chatService{
		conversations: conversations,
		messages:      messages,
		markers:       markers,
		dispatcher:    dispatcher,
		cfg:           cfg,
	}
}

// OpenConversation returns the conversation between the caller and otherID,
// creating it on first contact.
func (s *chatService) OpenConversation(ctx context.Context, actorID string, otherID string) (*model.Conversation, error) {
	if otherID == "" {
		return nil, apperrors.InvalidInput("participant_id is required")
	}
	if otherID == actorID {
		return nil, apperrors.InvalidInput("cannot open a conversation with yourself")
	}

	conversation, err := s.conversations.FindByParticipants(ctx, actorID, otherID)
	if err == nil {
		return conversation, nil
	}
	if !errors.Is(err, chaterrors.ErrConversationNotFound) {
		s.cfg.Log.Error("Failed to look up conversation", "error", err)
		return nil, apperrors.Internal("Failed to look up conversation", err)
	}

	conversation = &model.Conversation{
		ParticipantIDs: []string{actorID, otherID},
	}
	if err := s.conversations.Create(ctx, conversation); err != nil {
		// Lost the first-contact race: the other participant (or a retry)
		// created the pair first, so return theirs.
		if errors.Is(err, chaterrors.ErrConversationExists) {
			existing, findErr := s.conversations.FindByParticipants(ctx, actorID, otherID)
			if findErr != nil {
				s.cfg.Log.Error("Failed to look up conversation after duplicate insert", "error", findErr)
				return nil, apperrors.Internal("Failed to look up conversation", findErr)
			}
			return existing, nil
		}
		s.cfg.Log.Error("Failed to create conversation", "error", err)
		return nil, apperrors.Internal("Failed to create conversation", err)
	}

	s.cfg.Log.Info("Conversation created", "id", conversation.ID)
	return conversation, nil
}

func (s *chatService) SendMessage(ctx context.Context, actorID string, conversationID string, req *model.SendMessageRequest) (*model.Message, error) {
	text := sanitizer.NormalizeMessageText(req.Text)
	if text == "" {
		return nil, apperrors.Validation("Message text cannot be empty", nil)
	}
	if len(text) > 4000 {
		return nil, apperrors.Validation("Message text exceeds maximum length", map[string]any{
			"max_length": 4000,
		})
	}

	conversation, err := s.findConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(actorID) {
		return nil, apperrors.Forbidden("Only conversation participants may send messages")
	}

	message := &model.Message{
		ConversationID: conversation.ID,
		SenderID:       actorID,
		Text:           text,
	}
	if err := s.messages.Create(ctx, message); err != nil {
		s.cfg.Log.Error("Failed to store message", "conversation_id", conversation.ID, "error", err)
		return nil, apperrors.Internal("Failed to send message", err)
	}

	s.cfg.Log.Info("Message sent",
		"conversation_id", conversation.ID,
		"message_id", message.ID,
	)

	s.dispatcher.MessageSent(ctx, &model.MessageSentEvent{
		ConversationID: conversation.ID,
		MessageID:      message.ID,
		SenderID:       actorID,
		RecipientID:    conversation.OtherParticipant(actorID),
		Text:           text,
		SentAt:         message.CreatedAt,
	})

	return message, nil
}

// MarkRead advances the caller's read marker to now. The marker is owned by
// a single writer, so the upsert cannot conflict with anyone else's.
func (s *chatService) MarkRead(ctx context.Context, actorID string, conversationID string) error {
	conversation, err := s.findConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conversation.HasParticipant(actorID) {
		return apperrors.Forbidden("Only conversation participants may mark it read")
	}

	if err := s.markers.Upsert(ctx, conversation.ID, actorID, time.Now().UTC()); err != nil {
		s.cfg.Log.Error("Failed to upsert read marker",
			"conversation_id", conversation.ID,
			"user_id", actorID,
			"error", err)
		return apperrors.Internal("Failed to mark conversation read", err)
	}

	return nil
}

func (s *chatService) ListMessages(ctx context.Context, actorID string, conversationID string, limit int, offset int64) ([]*model.Message, int64, error) {
	conversation, err := s.findConversation(ctx, conversationID)
	if err != nil {
		return nil, 0, err
	}
	if !conversation.HasParticipant(actorID) {
		return nil, 0, apperrors.Forbidden("Only conversation participants may read messages")
	}

	messages, err := s.messages.FindByConversation(ctx, conversation.ID, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to list messages", "conversation_id", conversation.ID, "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve messages", err)
	}

	count, err := s.messages.CountByConversation(ctx, conversation.ID)
	if err != nil {
		s.cfg.Log.Error("Failed to count messages", "conversation_id", conversation.ID, "error", err)
		return nil, 0, apperrors.Internal("Failed to count messages", err)
	}

	return messages, count, nil
}

func (s *chatService) findConversation(ctx context.Context, id string) (*model.Conversation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Conversation ID cannot be empty")
	}

	conversation, err := s.conversations.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, chaterrors.ErrConversationNotFound) {
			return nil, apperrors.NotFoundWithID("Conversation", id)
		}
		if errors.Is(err, chaterrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid conversation ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve conversation", err)
	}

	return conversation, nil
}
