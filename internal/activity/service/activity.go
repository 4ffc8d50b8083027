package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	chaterrors "meistro/internal/chat/errors"
	chatrepo "meistro/internal/chat/repository"
	"meistro/pkg/config"
	"meistro/pkg/model"
)

// PendingCounter is the slice of the booking service the badge needs.
type PendingCounter interface {
	CountPendingForUser(ctx context.Context, userID string) (int64, error)
}

// ActivityService aggregates the unified activity badge. The badge is
// advisory: any failure degrades to zeros rather than failing the request.
type ActivityService interface {
	UnreadCount(ctx context.Context, userID string) *model.UnreadCount
}

type activityService struct {
	bookings      PendingCounter
	conversations chatrepo.ConversationRepository
	messages      chatrepo.MessageRepository
	markers       chatrepo.ReadMarkerRepository
	cfg           *config.Config
}

func NewActivityService(
	bookings PendingCounter,
	conversations chatrepo.ConversationRepository,
	messages chatrepo.MessageRepository,
	markers chatrepo.ReadMarkerRepository,
	cfg *config.Config,
) ActivityService {
	return &activityService{
		bookings:      bookings,
		conversations: conversations,
		messages:      messages,
		markers:       markers,
		cfg:           cfg,
	}
}

func (s *activityService) UnreadCount(ctx context.Context, userID string) *model.UnreadCount {
	var pending, unread int64
	var errPending, errUnread error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		pending, errPending = s.bookings.CountPendingForUser(ctx, userID)
	}()

	go func() {
		defer wg.Done()
		unread, errUnread = s.countUnreadMessages(ctx, userID)
	}()

	wg.Wait()

	if errPending != nil || errUnread != nil {
		s.cfg.Log.Error("Activity badge degraded to zeros",
			"user_id", userID,
			"pending_error", errPending,
			"unread_error", errUnread,
		)
		return &model.UnreadCount{}
	}

	return &model.UnreadCount{
		PendingBookings: int(pending),
		UnreadMessages:  int(unread),
		Total:           int(pending + unread),
	}
}

// countUnreadMessages fans out over the user's conversations with a bounded
// worker set. Each worker reads the user's marker (missing means everything
// is unread) and counts newer messages from the other party, capped per
// conversation.
func (s *activityService) countUnreadMessages(ctx context.Context, userID string) (int64, error) {
	conversations, err := s.conversations.FindByParticipant(ctx, userID, s.cfg.UnreadScanLimit)
	if err != nil {
		return 0, err
	}
	if len(conversations) == 0 {
		return 0, nil
	}

	var total atomic.Int64
	var mu sync.Mutex
	var firstErr error
	jobs := make(chan *model.Conversation)

	workers := s.cfg.UnreadFanout
	if workers < 1 {
		workers = 1
	}
	if workers > len(conversations) {
		workers = len(conversations)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for conversation := range jobs {
				count, err := s.unreadInConversation(ctx, conversation.ID, userID)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					continue
				}
				total.Add(count)
			}
		}()
	}

	for _, conversation := range conversations {
		jobs <- conversation
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return 0, firstErr
	}

	return total.Load(), nil
}

func (s *activityService) unreadInConversation(ctx context.Context, conversationID string, userID string) (int64, error) {
	var after time.Time

	marker, err := s.markers.Find(ctx, conversationID, userID)
	if err == nil {
		after = marker.LastReadAt
	} else if !errors.Is(err, chaterrors.ErrMarkerNotFound) {
		return 0, err
	}

	return s.messages.CountUnread(ctx, conversationID, userID, after, s.cfg.UnreadScanLimit)
}
