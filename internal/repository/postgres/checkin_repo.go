package postgres

import (
	"context"
	"database/sql"
	"errors"

	"orbit/internal/domain"
)

// rosterChannel is the LISTEN/NOTIFY channel carrying event IDs whose roster
// changed. The feed package listens on it.
const rosterChannel = "roster_changes"

type checkInRepository struct {
	DB *sql.DB
}

func NewCheckInRepository(db *sql.DB) domain.CheckInRepository {
	return &checkInRepository{DB: db}
}

// Create inserts the roster entry and notifies roster_changes in the same
// statement. ON CONFLICT makes a racing duplicate land as an overwrite, so
// (event_id, user_id) uniqueness holds even when two check-in attempts both
// observed "absent".
func (r *checkInRepository) Create(ctx context.Context, rec *domain.CheckInRecord) error {
	query := `
		WITH ins AS (
			INSERT INTO checkins (event_id, user_id, name, role, company, recruiting_for, looking_for, checked_in_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (event_id, user_id) DO UPDATE
			SET name = EXCLUDED.name,
			    role = EXCLUDED.role,
			    company = EXCLUDED.company,
			    recruiting_for = EXCLUDED.recruiting_for,
			    looking_for = EXCLUDED.looking_for,
			    checked_in_at = EXCLUDED.checked_in_at
			RETURNING event_id
		)
		SELECT pg_notify('` + rosterChannel + `', event_id::text) FROM ins
	`
	_, err := r.DB.ExecContext(ctx, query,
		rec.EventID, rec.UserID, rec.Name, rec.Role,
		rec.Company, rec.RecruitingFor, rec.LookingFor, rec.CheckedInAt,
	)
	return err
}

func (r *checkInRepository) GetByEventAndUser(ctx context.Context, eventID, userID string) (*domain.CheckInRecord, error) {
	query := `
		SELECT event_id, user_id, name, role, company, recruiting_for, looking_for, checked_in_at
		FROM checkins
		WHERE event_id = $1 AND user_id = $2
	`
	rec := &domain.CheckInRecord{}
	err := r.DB.QueryRowContext(ctx, query, eventID, userID).Scan(
		&rec.EventID, &rec.UserID, &rec.Name, &rec.Role,
		&rec.Company, &rec.RecruitingFor, &rec.LookingFor, &rec.CheckedInAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// Delete removes the roster entry and notifies roster_changes in the same
// statement. No row deleted means no notification is sent.
func (r *checkInRepository) Delete(ctx context.Context, eventID, userID string) error {
	query := `
		WITH del AS (
			DELETE FROM checkins
			WHERE event_id = $1 AND user_id = $2
			RETURNING event_id
		)
		SELECT pg_notify('` + rosterChannel + `', event_id::text) FROM del
	`
	rows, err := r.DB.QueryContext(ctx, query, eventID, userID)
	if err != nil {
		return err
	}
	defer rows.Close()
	deleted := rows.Next()
	if err := rows.Err(); err != nil {
		return err
	}
	if !deleted {
		return domain.ErrNotFound
	}
	return nil
}

func (r *checkInRepository) ListByEventID(ctx context.Context, eventID string) ([]*domain.CheckInRecord, error) {
	query := `
		SELECT event_id, user_id, name, role, company, recruiting_for, looking_for, checked_in_at
		FROM checkins
		WHERE event_id = $1
		ORDER BY checked_in_at ASC
	`
	rows, err := r.DB.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recs := []*domain.CheckInRecord{}
	for rows.Next() {
		rec := &domain.CheckInRecord{}
		if err := rows.Scan(
			&rec.EventID, &rec.UserID, &rec.Name, &rec.Role,
			&rec.Company, &rec.RecruitingFor, &rec.LookingFor, &rec.CheckedInAt,
		); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *checkInRepository) CountByEventID(ctx context.Context, eventID string) (int, error) {
	var count int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM checkins WHERE event_id = $1`, eventID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
