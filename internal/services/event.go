package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"orbit/internal/domain"
)

type eventService struct {
	eventRepo      domain.EventRepository
	checkInRepo    domain.CheckInRepository
	logger         *slog.Logger
	contextTimeout time.Duration
}

func NewEventService(
	eventRepo domain.EventRepository,
	checkInRepo domain.CheckInRepository,
	logger *slog.Logger,
	timeout time.Duration,
) domain.EventService {
	return &eventService{
		eventRepo:      eventRepo,
		checkInRepo:    checkInRepo,
		logger:         logger,
		contextTimeout: timeout,
	}
}

func (s *eventService) CreateEvent(ctx context.Context, event *domain.Event) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	event.Title = strings.TrimSpace(event.Title)
	if event.Title == "" {
		return domain.ErrInvalidInput
	}
	if event.HostID == "" {
		return fmt.Errorf("event host is required")
	}
	event.CheckedInCount = 0
	event.CreatedAt = time.Now()

	return s.eventRepo.Create(ctx, event)
}

// GetEvent returns the event, reconciling its cached checked-in count against
// the roster first. Staleness of the count is bounded by "until next view of
// this event"; a reconcile failure degrades to the possibly stale count.
func (s *eventService) GetEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	count, err := s.checkInRepo.CountByEventID(ctx, eventID)
	if err != nil {
		s.logger.WarnContext(ctx, "count reconcile skipped", "event_id", eventID, "err", err)
		return event, nil
	}
	if count != event.CheckedInCount {
		if err := s.eventRepo.SetCheckedInCount(ctx, eventID, count); err != nil {
			s.logger.WarnContext(ctx, "count reconcile write failed", "event_id", eventID, "err", err)
		}
		event.CheckedInCount = count
	}
	return event, nil
}

func (s *eventService) ListEvents(ctx context.Context, params domain.PaginationParams) ([]*domain.Event, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	events, total, err := s.eventRepo.List(ctx, params)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	if events == nil {
		events = []*domain.Event{}
	}
	return events, total, nil
}

func (s *eventService) ListEventsByHost(ctx context.Context, hostID string) ([]*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	events, err := s.eventRepo.ListByHostID(ctx, hostID)
	if err != nil {
		return nil, fmt.Errorf("list events by host: %w", err)
	}
	if events == nil {
		events = []*domain.Event{}
	}
	return events, nil
}

func (s *eventService) UpdateEvent(ctx context.Context, eventID, hostID string, update domain.EventUpdate) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	if event.HostID != hostID {
		return nil, domain.ErrForbidden
	}
	updated, err := s.eventRepo.Update(ctx, eventID, update)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("update event: %w", err)
	}
	return updated, nil
}

func (s *eventService) DeleteEvent(ctx context.Context, eventID, hostID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("get event: %w", err)
	}
	if event.HostID != hostID {
		return domain.ErrForbidden
	}
	if err := s.eventRepo.Delete(ctx, eventID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}
