package domain

import (
	"context"
	"time"
)

// Role is the application role chosen at sign-up.
type Role string

const (
	RoleAttendee  Role = "attendee"
	RoleHost      Role = "host"
	RoleRecruiter Role = "recruiter"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAttendee, RoleHost, RoleRecruiter:
		return true
	}
	return false
}

// UserProfile represents a registered user. The recruiter fields are present
// only for recruiter accounts; nil means the field was never set, which is
// distinct from an empty string.
// swagger:model UserProfile
type UserProfile struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Role          Role      `json:"role"`
	Company       *string   `json:"company,omitempty"`
	RecruitingFor *string   `json:"recruiting_for,omitempty"`
	LookingFor    *string   `json:"looking_for,omitempty"`
	CreatedAt     time.Time `json:"created_at"`

	PasswordHash string `json:"-"`
	Salt         string `json:"-"`
}

// NewUserProfile returns a new UserProfile. ID is set by the repository on create.
func NewUserProfile(email, name string, role Role, createdAt time.Time) *UserProfile {
	return &UserProfile{
		Email:     email,
		Name:      name,
		Role:      role,
		CreatedAt: createdAt,
	}
}

// ProfileUpdate carries the mutable profile fields for a partial update.
type ProfileUpdate struct {
	Name          *string
	Company       *string
	RecruitingFor *string
	LookingFor    *string
}

// PasswordHasher handles salt generation, hashing, and verification.
// Implementations may use bcrypt, argon2, etc.
type PasswordHasher interface {
	GenerateSalt() (string, error)
	Hash(salt, password string) (hash string, err error)
	Compare(hash, salt, password string) error
}

// TokenIssuer issues tokens (e.g. JWT) for an authenticated user.
type TokenIssuer interface {
	Issue(userID, email string, role Role, expiry time.Duration) (string, error)
}

// TokenVerifier verifies a token and returns the authenticated user ID.
type TokenVerifier interface {
	Verify(token string) (userID string, err error)
}

// UserRepository defines the interface for user profile storage.
type UserRepository interface {
	Create(ctx context.Context, user *UserProfile) error
	GetByEmail(ctx context.Context, email string) (*UserProfile, error)
	GetByID(ctx context.Context, id string) (*UserProfile, error)
	Update(ctx context.Context, userID string, update ProfileUpdate) (*UserProfile, error)
	// AppendAttendedEvent records that the user has checked in to the event
	// at least once. Idempotent set-add; entries are never removed.
	AppendAttendedEvent(ctx context.Context, userID, eventID string) error
	ListAttendedEventIDs(ctx context.Context, userID string) ([]string, error)
}

// SignUpInput carries the fields required to create an account.
type SignUpInput struct {
	Email         string
	Password      string
	Name          string
	Role          Role
	Company       string
	RecruitingFor string
	LookingFor    string
}

// UserService defines the business logic for accounts and profiles.
type UserService interface {
	// SignUp creates the account and returns a signed token plus the profile.
	// A welcome email is sent best-effort; its failure does not fail sign-up.
	SignUp(ctx context.Context, input SignUpInput) (token string, user *UserProfile, err error)
	Login(ctx context.Context, email, password string) (token string, user *UserProfile, err error)
	GetByID(ctx context.Context, id string) (*UserProfile, error)
	Update(ctx context.Context, userID string, update ProfileUpdate) (*UserProfile, error)
	// ListAttendedEvents returns the events the user has ever checked in to,
	// in first-check-in order. Checked-out events remain (history survives).
	ListAttendedEvents(ctx context.Context, userID string) ([]*Event, error)
}
