package domain

import (
	"context"
	"time"
)

// CheckInRecord is a roster entry: one row per (event, user) pair. Presence
// of the row is the sole signal of "checked in"; check-out deletes the row.
// The recruiter fields are copied from the profile only when non-empty.
// swagger:model CheckInRecord
type CheckInRecord struct {
	EventID       string    `json:"event_id"`
	UserID        string    `json:"user_id"`
	Name          string    `json:"name"`
	Role          Role      `json:"role"`
	Company       *string   `json:"company,omitempty"`
	RecruitingFor *string   `json:"recruiting_for,omitempty"`
	LookingFor    *string   `json:"looking_for,omitempty"`
	CheckedInAt   time.Time `json:"checked_in_at"`
}

// NewCheckInRecord builds a roster entry from the user's profile, copying the
// optional recruiter fields only when they are set and non-empty.
func NewCheckInRecord(eventID string, profile *UserProfile, checkedInAt time.Time) *CheckInRecord {
	rec := &CheckInRecord{
		EventID:     eventID,
		UserID:      profile.ID,
		Name:        profile.Name,
		Role:        profile.Role,
		CheckedInAt: checkedInAt,
	}
	if profile.Company != nil && *profile.Company != "" {
		rec.Company = profile.Company
	}
	if profile.RecruitingFor != nil && *profile.RecruitingFor != "" {
		rec.RecruitingFor = profile.RecruitingFor
	}
	if profile.LookingFor != nil && *profile.LookingFor != "" {
		rec.LookingFor = profile.LookingFor
	}
	return rec
}

// CheckInResult reports the outcome of a check-in as an explicit two-phase
// result. Created reflects the primary roster write; CountUpdated and
// HistoryUpdated reflect the best-effort secondary writes. The caller decides
// how to surface secondary failures; the roster write alone means success.
type CheckInResult struct {
	Record         *CheckInRecord `json:"record"`
	Created        bool           `json:"created"`
	CountUpdated   bool           `json:"count_updated"`
	HistoryUpdated bool           `json:"history_updated"`
}

// CheckOutResult reports the outcome of a check-out. Removed reflects the
// primary roster delete; CountUpdated the best-effort decrement.
type CheckOutResult struct {
	Removed      bool `json:"removed"`
	CountUpdated bool `json:"count_updated"`
}

// CheckInRepository defines storage for roster entries.
type CheckInRepository interface {
	// Create inserts the roster entry. A concurrent duplicate for the same
	// (event, user) lands as an overwrite, preserving row uniqueness.
	Create(ctx context.Context, rec *CheckInRecord) error
	GetByEventAndUser(ctx context.Context, eventID, userID string) (*CheckInRecord, error)
	// Delete removes the entry. Returns ErrNotFound if no row was deleted.
	Delete(ctx context.Context, eventID, userID string) error
	ListByEventID(ctx context.Context, eventID string) ([]*CheckInRecord, error)
	CountByEventID(ctx context.Context, eventID string) (int, error)
}

// CheckInService defines the check-in/check-out core and the count reconciler.
type CheckInService interface {
	// CheckIn adds the user to the event's roster. If already checked in,
	// returns Created=false with no side effects and a nil error.
	CheckIn(ctx context.Context, eventID, userID string) (CheckInResult, error)
	// CheckOut removes the user from the roster. If not checked in, returns
	// Removed=false with no side effects and a nil error.
	CheckOut(ctx context.Context, eventID, userID string) (CheckOutResult, error)
	IsCheckedIn(ctx context.Context, eventID, userID string) (bool, error)
	ListRoster(ctx context.Context, eventID string) ([]*CheckInRecord, error)
	// SyncCheckedInCount overwrites the event's cached count with the roster's
	// actual cardinality. Idempotent.
	SyncCheckedInCount(ctx context.Context, eventID string) error
}

// RosterFeed delivers live roster snapshots. Subscribe sends the full current
// roster immediately and again after every add/remove for that event. The
// returned unsubscribe func stops delivery and is safe to call more than once.
type RosterFeed interface {
	Subscribe(eventID string, onChange func(roster []*CheckInRecord)) (unsubscribe func(), err error)
}
