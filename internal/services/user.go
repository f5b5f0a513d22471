package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"orbit/internal/domain"
)

var emailRegexp = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

const minPasswordLength = 8

type userService struct {
	userRepo     domain.UserRepository
	eventRepo    domain.EventRepository
	hasher       domain.PasswordHasher
	tokenIssuer  domain.TokenIssuer
	tokenExpiry  time.Duration
	emailService domain.EmailService
	logger       *slog.Logger
}

// NewUserService creates a UserService with the given repositories and auth ports.
func NewUserService(
	userRepo domain.UserRepository,
	eventRepo domain.EventRepository,
	hasher domain.PasswordHasher,
	tokenIssuer domain.TokenIssuer,
	tokenExpiry time.Duration,
	emailService domain.EmailService,
	logger *slog.Logger,
) domain.UserService {
	return &userService{
		userRepo:     userRepo,
		eventRepo:    eventRepo,
		hasher:       hasher,
		tokenIssuer:  tokenIssuer,
		tokenExpiry:  tokenExpiry,
		emailService: emailService,
		logger:       logger,
	}
}

func (s *userService) SignUp(ctx context.Context, input domain.SignUpInput) (string, *domain.UserProfile, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if !emailRegexp.MatchString(email) {
		return "", nil, fmt.Errorf("%w: invalid email format", domain.ErrInvalidInput)
	}
	if len(input.Password) < minPasswordLength {
		return "", nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, minPasswordLength)
	}
	if !input.Role.Valid() {
		return "", nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, input.Role)
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return "", nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}

	salt, err := s.hasher.GenerateSalt()
	if err != nil {
		return "", nil, fmt.Errorf("generate salt: %w", err)
	}
	hash, err := s.hasher.Hash(salt, input.Password)
	if err != nil {
		return "", nil, fmt.Errorf("hash password: %w", err)
	}

	user := domain.NewUserProfile(email, name, input.Role, time.Now())
	user.PasswordHash = hash
	user.Salt = salt
	// Recruiter metadata is stored only when provided; empty strings stay NULL.
	if v := strings.TrimSpace(input.Company); v != "" {
		user.Company = &v
	}
	if v := strings.TrimSpace(input.RecruitingFor); v != "" {
		user.RecruitingFor = &v
	}
	if v := strings.TrimSpace(input.LookingFor); v != "" {
		user.LookingFor = &v
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return "", nil, domain.ErrDuplicateEmail
		}
		return "", nil, fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokenIssuer.Issue(user.ID, user.Email, user.Role, s.tokenExpiry)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}

	if s.emailService != nil {
		data := &domain.WelcomeEmailData{Email: user.Email, Name: user.Name, Role: user.Role}
		if err := s.emailService.SendWelcomeMessage(ctx, data); err != nil {
			s.logger.WarnContext(ctx, "welcome email failed", "email", user.Email, "err", err)
		}
	}

	return token, user, nil
}

func (s *userService) Login(ctx context.Context, email, password string) (string, *domain.UserProfile, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", nil, domain.ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("get user: %w", err)
	}
	if err := s.hasher.Compare(user.PasswordHash, user.Salt, password); err != nil {
		return "", nil, domain.ErrInvalidCredentials
	}
	token, err := s.tokenIssuer.Issue(user.ID, user.Email, user.Role, s.tokenExpiry)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return token, user, nil
}

func (s *userService) GetByID(ctx context.Context, id string) (*domain.UserProfile, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *userService) Update(ctx context.Context, userID string, update domain.ProfileUpdate) (*domain.UserProfile, error) {
	if update.Name != nil {
		trimmed := strings.TrimSpace(*update.Name)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", domain.ErrInvalidInput)
		}
		update.Name = &trimmed
	}
	user, err := s.userRepo.Update(ctx, userID, update)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// ListAttendedEvents resolves the user's append-only attended-event history
// into event records. Events deleted since attendance are skipped.
func (s *userService) ListAttendedEvents(ctx context.Context, userID string) ([]*domain.Event, error) {
	ids, err := s.userRepo.ListAttendedEventIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list attended event ids: %w", err)
	}

	events := []*domain.Event{}
	for _, id := range ids {
		ev, err := s.eventRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("get attended event: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}
