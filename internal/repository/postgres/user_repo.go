package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"orbit/internal/domain"
)

type userRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) domain.UserRepository {
	return &userRepository{DB: db}
}

const userColumns = `id, email, name, role, company, recruiting_for, looking_for, password_hash, salt, created_at`

func scanUser(row interface{ Scan(...any) error }) (*domain.UserProfile, error) {
	u := &domain.UserProfile{}
	err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.Role,
		&u.Company, &u.RecruitingFor, &u.LookingFor,
		&u.PasswordHash, &u.Salt, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *userRepository) Create(ctx context.Context, u *domain.UserProfile) error {
	query := `
		INSERT INTO users (email, name, role, company, recruiting_for, looking_for, password_hash, salt, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err := r.DB.QueryRowContext(ctx, query,
		u.Email, u.Name, u.Role,
		u.Company, u.RecruitingFor, u.LookingFor,
		u.PasswordHash, u.Salt, u.CreatedAt,
	).Scan(&u.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return domain.ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.UserProfile, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(r.DB.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.UserProfile, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *userRepository) Update(ctx context.Context, userID string, update domain.ProfileUpdate) (*domain.UserProfile, error) {
	query := `
		UPDATE users
		SET name           = COALESCE($2, name),
		    company        = COALESCE($3, company),
		    recruiting_for = COALESCE($4, recruiting_for),
		    looking_for    = COALESCE($5, looking_for)
		WHERE id = $1
		RETURNING ` + userColumns + `
	`
	u, err := scanUser(r.DB.QueryRowContext(ctx, query, userID,
		update.Name, update.Company, update.RecruitingFor, update.LookingFor,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// AppendAttendedEvent is an idempotent set-add: rows in attended_events are
// append-only and never deleted, so the history survives check-out.
func (r *userRepository) AppendAttendedEvent(ctx context.Context, userID, eventID string) error {
	query := `
		INSERT INTO attended_events (user_id, event_id, first_checked_in_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, event_id) DO NOTHING
	`
	_, err := r.DB.ExecContext(ctx, query, userID, eventID)
	return err
}

func (r *userRepository) ListAttendedEventIDs(ctx context.Context, userID string) ([]string, error) {
	query := `
		SELECT event_id
		FROM attended_events
		WHERE user_id = $1
		ORDER BY first_checked_in_at ASC
	`
	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
