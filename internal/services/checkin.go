package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"orbit/internal/domain"
)

type checkInService struct {
	eventRepo   domain.EventRepository
	checkInRepo domain.CheckInRepository
	userRepo    domain.UserRepository
	logger      *slog.Logger
}

// NewCheckInService creates a CheckInService with the given repositories.
func NewCheckInService(
	eventRepo domain.EventRepository,
	checkInRepo domain.CheckInRepository,
	userRepo domain.UserRepository,
	logger *slog.Logger,
) domain.CheckInService {
	return &checkInService{
		eventRepo:   eventRepo,
		checkInRepo: checkInRepo,
		userRepo:    userRepo,
		logger:      logger,
	}
}

// CheckIn adds the user to the event's roster. The roster insert is the
// primary write: if it fails, the check-in did not happen and the error is
// returned. The count increment and attended-history append are secondary
// writes; their failures are logged and reported in the result flags only,
// because the roster is the source of truth and the cached count is a
// repairable projection (SyncCheckedInCount).
func (s *checkInService) CheckIn(ctx context.Context, eventID, userID string) (domain.CheckInResult, error) {
	if _, err := s.eventRepo.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.CheckInResult{}, domain.ErrNotFound
		}
		return domain.CheckInResult{}, fmt.Errorf("get event: %w", err)
	}

	profile, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.CheckInResult{}, domain.ErrUserNotFound
		}
		return domain.CheckInResult{}, fmt.Errorf("get user profile: %w", err)
	}

	// Already checked in: no side effects, not an error.
	if existing, err := s.checkInRepo.GetByEventAndUser(ctx, eventID, userID); err == nil {
		return domain.CheckInResult{Record: existing, Created: false}, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.CheckInResult{}, fmt.Errorf("get check-in: %w", err)
	}

	rec := domain.NewCheckInRecord(eventID, profile, time.Now())
	if err := s.checkInRepo.Create(ctx, rec); err != nil {
		return domain.CheckInResult{}, fmt.Errorf("create check-in: %w", err)
	}

	result := domain.CheckInResult{Record: rec, Created: true, CountUpdated: true, HistoryUpdated: true}

	if err := s.eventRepo.IncrementCheckedInCount(ctx, eventID, 1); err != nil {
		result.CountUpdated = false
		s.logger.WarnContext(ctx, "checked-in count increment failed; roster write succeeded",
			"event_id", eventID, "user_id", userID, "err", err)
	}
	if err := s.userRepo.AppendAttendedEvent(ctx, userID, eventID); err != nil {
		result.HistoryUpdated = false
		s.logger.WarnContext(ctx, "attended-events append failed; roster write succeeded",
			"event_id", eventID, "user_id", userID, "err", err)
	}

	return result, nil
}

// CheckOut removes the user from the roster. The delete is the primary write;
// the decrement is secondary and unconditional, with no floor at zero. The
// reconciler owns correctness of the cached count.
func (s *checkInService) CheckOut(ctx context.Context, eventID, userID string) (domain.CheckOutResult, error) {
	if _, err := s.checkInRepo.GetByEventAndUser(ctx, eventID, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.CheckOutResult{Removed: false}, nil
		}
		return domain.CheckOutResult{}, fmt.Errorf("get check-in: %w", err)
	}

	if err := s.checkInRepo.Delete(ctx, eventID, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Raced with another check-out; the row is gone, desired state reached.
			return domain.CheckOutResult{Removed: false}, nil
		}
		return domain.CheckOutResult{}, fmt.Errorf("delete check-in: %w", err)
	}

	result := domain.CheckOutResult{Removed: true, CountUpdated: true}
	if err := s.eventRepo.IncrementCheckedInCount(ctx, eventID, -1); err != nil {
		result.CountUpdated = false
		s.logger.WarnContext(ctx, "checked-in count decrement failed; roster delete succeeded",
			"event_id", eventID, "user_id", userID, "err", err)
	}
	return result, nil
}

func (s *checkInService) IsCheckedIn(ctx context.Context, eventID, userID string) (bool, error) {
	_, err := s.checkInRepo.GetByEventAndUser(ctx, eventID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get check-in: %w", err)
	}
	return true, nil
}

func (s *checkInService) ListRoster(ctx context.Context, eventID string) ([]*domain.CheckInRecord, error) {
	if _, err := s.eventRepo.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	recs, err := s.checkInRepo.ListByEventID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	if recs == nil {
		recs = []*domain.CheckInRecord{}
	}
	return recs, nil
}

// SyncCheckedInCount overwrites the cached count with the roster's actual
// cardinality. Unconditional set, not increment/decrement, so running it twice
// with no intervening roster change leaves the count unchanged.
func (s *checkInService) SyncCheckedInCount(ctx context.Context, eventID string) error {
	count, err := s.checkInRepo.CountByEventID(ctx, eventID)
	if err != nil {
		return fmt.Errorf("count roster: %w", err)
	}
	if err := s.eventRepo.SetCheckedInCount(ctx, eventID, count); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("set checked-in count: %w", err)
	}
	return nil
}
