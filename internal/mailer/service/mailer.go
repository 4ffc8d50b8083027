package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"meistro/internal/mailer/repository"
	"meistro/pkg/kafka"
	"meistro/pkg/logger"
	"meistro/pkg/mail"
	"meistro/pkg/model"
	"meistro/pkg/sealer"
)

// MailerService turns consumed domain events into at most one email each.
// A send failure is logged and counted but never returned to the consumer:
// returning an error would trigger redelivery and a second send attempt.
type MailerService struct {
	prefs          repository.NotificationPrefsRepository
	sender         mail.Sender
	log            *logger.Logger
	prefsPortalURL string

	sent     atomic.Int64
	skipped  atomic.Int64
	failures atomic.Int64
}

func NewMailerService(prefs repository.NotificationPrefsRepository, sender mail.Sender, prefsPortalURL string, log *logger.Logger) *MailerService {
	return &MailerService{
		prefs:          prefs,
		sender:         sender,
		prefsPortalURL: prefsPortalURL,
		log:            log,
	}
}

// Statuses that warrant telling the other party. A completed booking changes
// nothing the recipient has to act on, so it sends no mail.
var notifiableStatuses = map[model.BookingStatus]bool{
	model.StatusConfirmed: true,
	model.StatusDeclined:  true,
	model.StatusCancelled: true,
}

// HandleBookingEvent is the MessageHandler for the booking events topic.
func (s *MailerService) HandleBookingEvent(ctx context.Context, msg kafka.Message) error {
	var event model.BookingTransitionedEvent
	if err := msg.DecodeValue(&event); err != nil {
		return kafka.NewPermanentError("malformed booking event", err)
	}

	if !notifiableStatuses[event.NewStatus] {
		s.skip("status not notifiable", "booking_id", event.BookingID, "status", event.NewStatus)
		return nil
	}

	recipient := event.Recipient()
	if recipient == "" {
		s.skip("no account to notify", "booking_id", event.BookingID)
		return nil
	}

	prefs, err := s.loadPrefs(ctx, recipient)
	if err != nil {
		return err
	}
	if prefs == nil || !prefs.BookingEmails || prefs.Email == "" {
		s.skip("booking emails disabled", "booking_id", event.BookingID, "user_id", recipient)
		return nil
	}

	s.send(ctx, mail.Email{
		To:      prefs.Email,
		Subject: bookingSubject(&event),
		Body:    bookingBody(&event) + s.prefsFooter(recipient),
	}, "booking_id", event.BookingID)
	return nil
}

// HandleChatEvent is the MessageHandler for the chat events topic.
func (s *MailerService) HandleChatEvent(ctx context.Context, msg kafka.Message) error {
	var event model.MessageSentEvent
	if err := msg.DecodeValue(&event); err != nil {
		return kafka.NewPermanentError("malformed chat event", err)
	}

	if strings.TrimSpace(event.Text) == "" {
		s.skip("empty message text", "message_id", event.MessageID)
		return nil
	}
	if event.RecipientID == "" {
		s.skip("no recipient", "message_id", event.MessageID)
		return nil
	}

	prefs, err := s.loadPrefs(ctx, event.RecipientID)
	if err != nil {
		return err
	}
	if prefs == nil || !prefs.MessageEmails || prefs.Email == "" {
		s.skip("message emails disabled", "message_id", event.MessageID, "user_id", event.RecipientID)
		return nil
	}

	s.send(ctx, mail.Email{
		To:      prefs.Email,
		Subject: "You have a new message",
		Body:    chatBody(&event) + s.prefsFooter(event.RecipientID),
	}, "message_id", event.MessageID)
	return nil
}

// Sent, Skipped and Failures expose delivery counters for logging and health.
func (s *MailerService) Sent() int64     { return s.sent.Load() }
func (s *MailerService) Skipped() int64  { return s.skipped.Load() }
func (s *MailerService) Failures() int64 { return s.failures.Load() }

// loadPrefs returns nil prefs (skip) for a missing document and an error only
// for storage failures, which are retryable before any send has happened.
func (s *MailerService) loadPrefs(ctx context.Context, userID string) (*model.NotificationPreferences, error) {
	prefs, err := s.prefs.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrPrefsNotFound) {
			return nil, nil
		}
		return nil, kafka.NewTransientError("failed to load notification preferences", err)
	}
	return prefs, nil
}

func (s *MailerService) send(ctx context.Context, email mail.Email, logArgs ...any) {
	if err := s.sender.Send(ctx, email); err != nil {
		s.failures.Add(1)
		s.log.Error("Email delivery failed", append(logArgs, "to", email.To, "error", err)...)
		return
	}
	s.sent.Add(1)
	s.log.Info("Email sent", append(logArgs, "to", email.To)...)
}

// prefsFooter links the recipient to the preference portal with a sealed
// token, so opting out never requires a login.
func (s *MailerService) prefsFooter(userID string) string {
	if s.prefsPortalURL == "" || userID == "" {
		return ""
	}
	token, err := sealer.CreateOpaqueToken(userID, "email-prefs")
	if err != nil {
		s.log.Warn("Failed to create preference token", "user_id", userID, "error", err)
		return ""
	}
	return fmt.Sprintf("\nManage email notifications: %s?token=%s\n", s.prefsPortalURL, token)
}

func (s *MailerService) skip(reason string, logArgs ...any) {
	s.skipped.Add(1)
	s.log.Debug("Email skipped: "+reason, logArgs...)
}

func bookingSubject(event *model.BookingTransitionedEvent) string {
	switch event.NewStatus {
	case model.StatusConfirmed:
		return "Your booking is confirmed"
	case model.StatusDeclined:
		return "Your booking request was declined"
	case model.StatusCancelled:
		return "A booking was cancelled"
	}
	return "Booking update"
}

func bookingBody(event *model.BookingTransitionedEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Booking %s is now %s.\n\n", event.BookingID, event.NewStatus)
	fmt.Fprintf(&b, "When: %s - %s\n",
		event.StartTime.Format(time.RFC1123),
		event.EndTime.Format(time.RFC1123),
	)
	if event.ContactName != "" {
		fmt.Fprintf(&b, "Contact: %s\n", event.ContactName)
	}
	return b.String()
}

func chatBody(event *model.MessageSentEvent) string {
	text := truncateRunes(strings.TrimSpace(event.Text), 200)
	return fmt.Sprintf("New message received at %s:\n\n%s\n",
		event.SentAt.Format(time.RFC1123), text)
}

// truncateRunes cuts on a rune boundary so multi-byte text is never split
// mid-character.
func truncateRunes(s string, max int) string {
	count := 0
	for i := range s {
		if count == max {
			return s[:i] + "…"
		}
		count++
	}
	return s
}
