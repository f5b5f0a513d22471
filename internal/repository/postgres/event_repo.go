package postgres

import (
	"context"
	"database/sql"
	"errors"

	"orbit/internal/domain"
)

// eventChannel is the LISTEN/NOTIFY channel carrying IDs of events whose row
// changed. Every write in this repository notifies it in the same statement;
// the feed package listens on it.
const eventChannel = "event_changes"

type eventRepository struct {
	DB *sql.DB
}

func NewEventRepository(db *sql.DB) domain.EventRepository {
	return &eventRepository{DB: db}
}

func (r *eventRepository) Create(ctx context.Context, event *domain.Event) error {
	query := `
		WITH ins AS (
			INSERT INTO events (title, date, location, description, category, link, capacity, host_id, host_name, checked_in_count, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10)
			RETURNING id
		)
		SELECT ins.id FROM ins, pg_notify('` + eventChannel + `', ins.id::text)
	`
	return r.DB.QueryRowContext(ctx, query,
		event.Title, event.Date, event.Location, event.Description,
		event.Category, event.Link, event.Capacity,
		event.HostID, event.HostName, event.CreatedAt,
	).Scan(&event.ID)
}

const eventColumns = `id, title, date, location, description, category, link, capacity, host_id, host_name, checked_in_count, created_at`

func scanEvent(row interface{ Scan(...any) error }) (*domain.Event, error) {
	ev := &domain.Event{}
	err := row.Scan(
		&ev.ID, &ev.Title, &ev.Date, &ev.Location, &ev.Description,
		&ev.Category, &ev.Link, &ev.Capacity,
		&ev.HostID, &ev.HostName, &ev.CheckedInCount, &ev.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE id = $1
	`
	ev, err := scanEvent(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return ev, nil
}

func (r *eventRepository) List(ctx context.Context, params domain.PaginationParams) ([]*domain.Event, int, error) {
	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT ` + eventColumns + `
		FROM events
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.DB.QueryContext(ctx, query, params.PageSize, params.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	events := []*domain.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (r *eventRepository) ListByHostID(ctx context.Context, hostID string) ([]*domain.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE host_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.DB.QueryContext(ctx, query, hostID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []*domain.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *eventRepository) Update(ctx context.Context, eventID string, update domain.EventUpdate) (*domain.Event, error) {
	query := `
		WITH upd AS (
			UPDATE events
			SET title       = COALESCE($2, title),
			    date        = COALESCE($3, date),
			    location    = COALESCE($4, location),
			    description = COALESCE($5, description),
			    category    = COALESCE($6, category),
			    link        = COALESCE($7, link),
			    capacity    = COALESCE($8, capacity)
			WHERE id = $1
			RETURNING ` + eventColumns + `
		)
		SELECT ` + eventColumns + ` FROM upd, pg_notify('` + eventChannel + `', upd.id::text)
	`
	ev, err := scanEvent(r.DB.QueryRowContext(ctx, query, eventID,
		update.Title, update.Date, update.Location, update.Description,
		update.Category, update.Link, update.Capacity,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return ev, nil
}

// Delete removes the event row and notifies event_changes in the same
// statement; checkins rows go with it via ON DELETE CASCADE on
// checkins.event_id.
func (r *eventRepository) Delete(ctx context.Context, id string) error {
	query := `
		WITH del AS (
			DELETE FROM events
			WHERE id = $1
			RETURNING id
		)
		SELECT pg_notify('` + eventChannel + `', id::text) FROM del
	`
	return r.execNotify(ctx, query, id)
}

func (r *eventRepository) IncrementCheckedInCount(ctx context.Context, eventID string, delta int) error {
	query := `
		WITH upd AS (
			UPDATE events
			SET checked_in_count = checked_in_count + $2
			WHERE id = $1
			RETURNING id
		)
		SELECT pg_notify('` + eventChannel + `', id::text) FROM upd
	`
	return r.execNotify(ctx, query, eventID, delta)
}

func (r *eventRepository) SetCheckedInCount(ctx context.Context, eventID string, count int) error {
	query := `
		WITH upd AS (
			UPDATE events
			SET checked_in_count = $2
			WHERE id = $1
			RETURNING id
		)
		SELECT pg_notify('` + eventChannel + `', id::text) FROM upd
	`
	return r.execNotify(ctx, query, eventID, count)
}

// execNotify runs a write wrapped in a notifying CTE. Zero rows back means the
// write matched nothing and no notification was sent.
func (r *eventRepository) execNotify(ctx context.Context, query string, args ...any) error {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	matched := rows.Next()
	if err := rows.Err(); err != nil {
		return err
	}
	if !matched {
		return domain.ErrNotFound
	}
	return nil
}
