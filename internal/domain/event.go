package domain

import (
	"context"
	"time"
)

// Event represents a discoverable event.
// CheckedInCount is a denormalized cache of the event's roster cardinality.
// It may transiently drift under concurrent check-ins/outs; the roster is the
// source of truth and the count is repaired by CheckInService.SyncCheckedInCount.
// swagger:model Event
type Event struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Date           string    `json:"date"`
	Location       string    `json:"location"`
	Description    string    `json:"description"`
	Category       *string   `json:"category,omitempty"`
	Link           *string   `json:"link,omitempty"`
	Capacity       *int      `json:"capacity,omitempty"`
	HostID         string    `json:"host_id"`
	HostName       string    `json:"host_name"`
	CheckedInCount int       `json:"checked_in_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewEvent returns a new Event with a zero checked-in count.
// ID is set by the repository on create.
func NewEvent(title, date, location, description, hostID, hostName string, createdAt time.Time) *Event {
	return &Event{
		Title:       title,
		Date:        date,
		Location:    location,
		Description: description,
		HostID:      hostID,
		HostName:    hostName,
		CreatedAt:   createdAt,
	}
}

// EventUpdate carries the mutable event fields for a partial update.
// Nil pointers leave the corresponding column unchanged.
type EventUpdate struct {
	Title       *string
	Date        *string
	Location    *string
	Description *string
	Category    *string
	Link        *string
	Capacity    *int
}

// EventRepository defines the interface for event storage.
type EventRepository interface {
	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id string) (*Event, error)
	List(ctx context.Context, params PaginationParams) ([]*Event, int, error)
	ListByHostID(ctx context.Context, hostID string) ([]*Event, error)
	Update(ctx context.Context, eventID string, update EventUpdate) (*Event, error)
	// Delete removes the event and all of its roster rows (bulk cleanup).
	Delete(ctx context.Context, id string) error
	// IncrementCheckedInCount atomically adds delta to the cached count.
	// The decrement path does not floor at zero; the reconciler corrects drift.
	IncrementCheckedInCount(ctx context.Context, eventID string, delta int) error
	// SetCheckedInCount unconditionally overwrites the cached count.
	SetCheckedInCount(ctx context.Context, eventID string, count int) error
}

// EventFeed delivers live event snapshots. SubscribeList sends the current
// event list immediately and again after every event write (create, update,
// delete, count change). SubscribeEvent does the same for one event; a nil
// event means it was deleted. Unsubscribe funcs are safe to call more than
// once.
type EventFeed interface {
	SubscribeList(onChange func(events []*Event)) (unsubscribe func(), err error)
	SubscribeEvent(eventID string, onChange func(event *Event)) (unsubscribe func(), err error)
}

// EventService defines event management operations.
type EventService interface {
	CreateEvent(ctx context.Context, event *Event) error
	// GetEvent returns the event, opportunistically reconciling its cached
	// checked-in count against the roster before returning.
	GetEvent(ctx context.Context, eventID string) (*Event, error)
	ListEvents(ctx context.Context, params PaginationParams) ([]*Event, int, error)
	ListEventsByHost(ctx context.Context, hostID string) ([]*Event, error)
	UpdateEvent(ctx context.Context, eventID, hostID string, update EventUpdate) (*Event, error)
	DeleteEvent(ctx context.Context, eventID, hostID string) error
}
