package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingerrors "meistro/internal/booking/errors"
	"meistro/internal/booking/repository"
	"meistro/internal/booking/validator"
	"meistro/internal/dispatch"
	"meistro/pkg/config"
	mongotx "meistro/pkg/db/mongo"
	apperrors "meistro/pkg/errors"
	"meistro/pkg/model"
	"meistro/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/mongo"
)

type BookingService interface {
	Create(ctx context.Context, actorID string, req *model.BookingRequest) (*model.Booking, error)
	GetByID(ctx context.Context, actorID string, id string) (*model.Booking, error)
	ListForUser(ctx context.Context, actorID string, role string, status model.BookingStatus, limit int, offset int64) ([]*model.Booking, int64, error)
	Transition(ctx context.Context, actorID string, id string, action model.BookingAction) (*model.Booking, error)
	CountPendingForUser(ctx context.Context, userID string) (int64, error)
}

var knownStatuses = map[model.BookingStatus]bool{
	model.StatusRequested: true,
	model.StatusConfirmed: true,
	model.StatusDeclined:  true,
	model.StatusCancelled: true,
	model.StatusCompleted: true,
}

// transitionRule describes one edge of the booking state machine.
type transitionRule struct {
	from         map[model.BookingStatus]bool
	to           model.BookingStatus
	providerOnly bool
}

var transitionRules = map[model.BookingAction]transitionRule{
	model.ActionConfirm: {
		from:         map[model.BookingStatus]bool{model.StatusRequested: true},
		to:           model.StatusConfirmed,
		providerOnly: true,
	},
	model.ActionDecline: {
		from:         map[model.BookingStatus]bool{model.StatusRequested: true},
		to:           model.StatusDeclined,
		providerOnly: true,
	},
	model.ActionCancel: {
		from:         map[model.BookingStatus]bool{model.StatusRequested: true, model.StatusConfirmed: true},
		to:           model.StatusCancelled,
		providerOnly: false,
	},
	model.ActionComplete: {
		from:         map[model.BookingStatus]bool{model.StatusConfirmed: true},
		to:           model.StatusCompleted,
		providerOnly: true,
	},
}

type bookingService struct {
	repo       repository.BookingRepository
	lockRepo   repository.BookingLockRepository
	validator  *validator.BookingValidator
	dispatcher dispatch.Dispatcher
	cfg        *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	lockRepo repository.BookingLockRepository,
	validator *validator.BookingValidator,
	dispatcher dispatch.Dispatcher,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:       repo,
		lockRepo:   lockRepo,
		validator:  validator,
		dispatcher: dispatcher,
		cfg:        cfg,
	}
}

func (s *bookingService) Create(ctx context.Context, actorID string, req *model.BookingRequest) (*model.Booking, error) {
	if err := s.validator.ValidateRequest(req); err != nil {
		s.cfg.Log.Warn("Booking request validation failed", "error", err)
		return nil, apperrors.Validation("Invalid booking request", map[string]any{"error": err.Error()})
	}

	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		return nil, apperrors.InvalidInput("start_time must be RFC3339")
	}

	booking := &model.Booking{
		ListingID:       req.ListingID,
		ProviderID:      req.ProviderID,
		CustomerID:      req.CustomerID,
		ContactName:     sanitizer.NormalizeName(req.ContactName),
		StartTime:       startTime,
		DurationMinutes: req.DurationMinutes,
		Status:          model.StatusRequested,
		Note:            sanitizer.NormalizeNote(req.Note),
	}
	booking.ComputeEndTime()

	// An authenticated caller is always the customer on the bookings they
	// create, regardless of what the payload claims.
	if actorID != "" {
		booking.CustomerID = actorID
	}

	if req.ContactPhone != "" {
		phone := sanitizer.NormalizePhone(req.ContactPhone)
		if phone == "" {
			return nil, apperrors.Validation("Invalid booking request", map[string]any{
				"error": "contact_phone could not be parsed as a valid phone number",
			})
		}
		booking.ContactPhone = phone
	}

	if err := s.validator.Validate(booking); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "error", err)
		return nil, apperrors.Validation("Invalid booking request", map[string]any{"error": err.Error()})
	}

	if err := s.repo.Create(ctx, booking); err != nil {
		s.cfg.Log.Error("Failed to create booking", "error", err)
		return nil, apperrors.Internal("Failed to create booking", err)
	}

	s.cfg.Log.Info("Booking created",
		"id", booking.ID,
		"listing_id", booking.ListingID,
		"provider_id", booking.ProviderID,
		"start_time", booking.StartTime,
	)
	return booking, nil
}

func (s *bookingService) GetByID(ctx context.Context, actorID string, id string) (*model.Booking, error) {
	booking, err := s.findBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	if !booking.IsParticipant(actorID) {
		return nil, apperrors.Forbidden("Only booking participants may view this booking")
	}

	return booking, nil
}

func (s *bookingService) ListForUser(ctx context.Context, actorID string, role string, status model.BookingStatus, limit int, offset int64) ([]*model.Booking, int64, error) {
	if role != repository.RoleProvider && role != repository.RoleCustomer {
		return nil, 0, apperrors.InvalidInput("role must be 'provider' or 'customer'")
	}
	if status != "" && !knownStatuses[status] {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("unknown status: %s", status))
	}

	bookings, err := s.repo.FindByParticipant(ctx, actorID, role, status, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to list bookings", "user_id", actorID, "role", role, "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve bookings", err)
	}

	count, err := s.repo.CountByParticipant(ctx, actorID, role, status)
	if err != nil {
		s.cfg.Log.Error("Failed to count bookings", "user_id", actorID, "role", role, "error", err)
		return nil, 0, apperrors.Internal("Failed to count bookings", err)
	}

	return bookings, count, nil
}

func (s *bookingService) Transition(ctx context.Context, actorID string, id string, action model.BookingAction) (*model.Booking, error) {
	rule, ok := transitionRules[action]
	if !ok {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown action: %s", action))
	}

	booking, err := s.findBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeTransition(booking, actorID, rule); err != nil {
		return nil, err
	}
	if err := checkStatus(booking, action, rule); err != nil {
		return nil, err
	}

	var updated *model.Booking
	if action == model.ActionConfirm {
		updated, err = s.confirmWithConflictCheck(ctx, booking)
	} else {
		updated, err = s.applyTransition(ctx, booking, action, rule)
	}
	if err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Booking transitioned",
		"id", updated.ID,
		"action", action,
		"status", updated.Status,
		"actor_id", actorID,
	)

	s.dispatcher.BookingTransitioned(ctx, &model.BookingTransitionedEvent{
		BookingID:    updated.ID,
		ListingID:    updated.ListingID,
		ProviderID:   updated.ProviderID,
		CustomerID:   updated.CustomerID,
		ActorID:      actorID,
		NewStatus:    updated.Status,
		StartTime:    updated.StartTime,
		EndTime:      updated.EndTime,
		ContactName:  updated.ContactName,
		TransitionAt: updated.UpdatedAt,
	})

	return updated, nil
}

func (s *bookingService) CountPendingForUser(ctx context.Context, userID string) (int64, error) {
	count, err := s.repo.CountRequestedForUser(ctx, userID)
	if err != nil {
		s.cfg.Log.Error("Failed to count pending bookings", "user_id", userID, "error", err)
		return 0, apperrors.Internal("Failed to count pending bookings", err)
	}
	return count, nil
}

// --- Helpers ---

func (s *bookingService) findBooking(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingerrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, bookingerrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}

	return booking, nil
}

func (s *bookingService) authorizeTransition(booking *model.Booking, actorID string, rule transitionRule) error {
	if !booking.IsParticipant(actorID) {
		return apperrors.Forbidden("Only booking participants may act on this booking")
	}
	if rule.providerOnly && actorID != booking.ProviderID {
		return apperrors.Forbidden("Only the provider may perform this action")
	}
	return nil
}

func checkStatus(booking *model.Booking, action model.BookingAction, rule transitionRule) error {
	if rule.from[booking.Status] {
		return nil
	}

	details := map[string]any{
		"current_status": booking.Status,
		"action":         action,
	}
	if booking.Status.Terminal() {
		return apperrors.InvalidState(
			fmt.Sprintf("Booking is %s; no further transitions are allowed", booking.Status),
			details,
		)
	}
	return apperrors.InvalidState(
		fmt.Sprintf("Cannot %s a booking in status %s", action, booking.Status),
		details,
	)
}

// nextUpdatedAt keeps updated_at strictly increasing even when the wall
// clock has not advanced past the previous write.
func nextUpdatedAt(previous time.Time) time.Time {
	now := time.Now().UTC().Truncate(time.Millisecond)
	if !now.After(previous) {
		return previous.Add(time.Millisecond)
	}
	return now
}

// applyTransition performs a non-confirm transition with a compare-and-set
// on the current status so concurrent requests cannot double-apply.
func (s *bookingService) applyTransition(ctx context.Context, booking *model.Booking, action model.BookingAction, rule transitionRule) (*model.Booking, error) {
	updatedAt := nextUpdatedAt(booking.UpdatedAt)

	err := s.repo.UpdateStatus(ctx, booking.ID, booking.Status, rule.to, updatedAt)
	if err != nil {
		if errors.Is(err, bookingerrors.ErrStaleStatus) {
			current, findErr := s.findBooking(ctx, booking.ID)
			if findErr != nil {
				return nil, findErr
			}
			return nil, checkStatus(current, action, rule)
		}
		s.cfg.Log.Error("Failed to transition booking", "id", booking.ID, "action", action, "error", err)
		return nil, apperrors.Internal("Failed to transition booking", err)
	}

	updated := *booking
	updated.Status = rule.to
	updated.UpdatedAt = updatedAt
	return &updated, nil
}

// confirmWithConflictCheck serializes confirmation per provider with an
// advisory lock, then re-checks status and scans for confirmed overlaps
// inside a transaction. Lock contention and transient transaction errors
// are retried a bounded number of times.
func (s *bookingService) confirmWithConflictCheck(ctx context.Context, booking *model.Booking) (*model.Booking, error) {
	var lastErr error

	for attempt := 1; attempt <= s.cfg.ConfirmMaxAttempts; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(attempt-1) * s.cfg.ConfirmRetryBackoff
			select {
			case <-ctx.Done():
				return nil, apperrors.Timeout("Confirmation cancelled")
			case <-time.After(backoff):
			}
		}

		updated, err := s.tryConfirm(ctx, booking)
		if err == nil {
			return updated, nil
		}

		if !isRetryableConfirmError(err) {
			return nil, err
		}

		lastErr = err
		s.cfg.Log.Warn("Retrying booking confirmation",
			"id", booking.ID,
			"attempt", attempt,
			"max_attempts", s.cfg.ConfirmMaxAttempts,
			"error", err,
		)
	}

	s.cfg.Log.Error("Booking confirmation exhausted retries", "id", booking.ID, "error", lastErr)
	return nil, apperrors.Unavailable("booking confirmation")
}

func (s *bookingService) tryConfirm(ctx context.Context, booking *model.Booking) (*model.Booking, error) {
	lockID, err := s.acquireProviderLock(ctx, booking.ProviderID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if releaseErr := s.lockRepo.Delete(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release confirmation lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	var updated *model.Booking
	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		current, err := s.repo.FindByID(sessCtx, booking.ID)
		if err != nil {
			if errors.Is(err, bookingerrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Booking", booking.ID)
			}
			return apperrors.Internal("Failed to re-read booking", err)
		}

		if current.Status != model.StatusRequested {
			return checkStatus(current, model.ActionConfirm, transitionRules[model.ActionConfirm])
		}

		if err := s.verifyNoConflict(sessCtx, current); err != nil {
			return err
		}

		updatedAt := nextUpdatedAt(current.UpdatedAt)
		if err := s.repo.UpdateStatus(sessCtx, current.ID, model.StatusRequested, model.StatusConfirmed, updatedAt); err != nil {
			if errors.Is(err, bookingerrors.ErrStaleStatus) {
				return apperrors.InvalidState("Booking status changed during confirmation", map[string]any{
					"booking_id": current.ID,
				})
			}
			return apperrors.Internal("Failed to confirm booking", err)
		}

		confirmed := *current
		confirmed.Status = model.StatusConfirmed
		confirmed.UpdatedAt = updatedAt
		updated = &confirmed
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (s *bookingService) verifyNoConflict(ctx context.Context, booking *model.Booking) error {
	existing, err := s.repo.FindConfirmedOverlapping(ctx, booking.ProviderID, booking.StartTime, booking.EndTime, s.cfg.OverlapScanLimit)
	if err != nil {
		return apperrors.Internal("Failed to check for conflicting bookings", err)
	}

	for _, b := range existing {
		if b.ID == booking.ID {
			continue
		}
		if overlaps(b.StartTime, b.EndTime, booking.StartTime, booking.EndTime) {
			return apperrors.SchedulingConflict(fmt.Sprintf(
				"Booking overlaps a confirmed booking (%s - %s)",
				b.StartTime.Format(time.RFC3339),
				b.EndTime.Format(time.RFC3339),
			))
		}
	}
	return nil
}

// Half-open intervals: back-to-back bookings sharing an endpoint do not
// conflict.
func overlaps(start1, end1, start2, end2 time.Time) bool {
	return start1.Before(end2) && end1.After(start2)
}

func (s *bookingService) acquireProviderLock(ctx context.Context, providerID string) (string, error) {
	lockID := fmt.Sprintf("confirm_lock_%s", providerID)

	lock := &model.BookingLock{
		ID:        lockID,
		ExpiresAt: time.Now().Add(s.cfg.ConfirmLockTTL),
	}

	_, err := s.lockRepo.Create(ctx, lock)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", fmt.Errorf("%w: provider %s", bookingerrors.ErrLockHeld, providerID)
		}
		return "", apperrors.Internal("Failed to acquire confirmation lock", err)
	}

	return lockID, nil
}

func isRetryableConfirmError(err error) bool {
	if errors.Is(err, bookingerrors.ErrLockHeld) {
		return true
	}
	if apperrors.IsAppError(err) {
		return false
	}
	return mongotx.IsTransient(err)
}
