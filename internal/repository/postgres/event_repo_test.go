package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"orbit/internal/domain"
)

var eventCols = []string{"id", "title", "date", "location", "description", "category", "link", "capacity", "host_id", "host_name", "checked_in_count", "created_at"}

func TestEventRepository_Create(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("returns generated id, count starts at zero", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		ev := domain.NewEvent("Go Meetup", "2026-09-12", "Lisbon", "Monthly", "host-1", "Dana", now)
		mock.ExpectQuery(`WITH ins AS \(\s*INSERT INTO events[\s\S]*pg_notify\('event_changes'`).
			WithArgs(ev.Title, ev.Date, ev.Location, ev.Description, nil, nil, nil, ev.HostID, ev.HostName, ev.CreatedAt).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("ev-uuid-1"))

		repo := NewEventRepository(db)
		require.NoError(t, repo.Create(ctx, ev))
		require.Equal(t, "ev-uuid-1", ev.ID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`INSERT INTO events`).WillReturnError(sql.ErrConnDone)

		repo := NewEventRepository(db)
		ev := domain.NewEvent("Go Meetup", "2026-09-12", "Lisbon", "", "host-1", "Dana", now)
		require.Error(t, repo.Create(ctx, ev))
	})
}

func TestEventRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT id, title, date, location, description, category, link, capacity, host_id, host_name, checked_in_count, created_at\s+FROM events\s+WHERE id = \$1`).
			WithArgs("ev-1").
			WillReturnRows(sqlmock.NewRows(eventCols).
				AddRow("ev-1", "Go Meetup", "2026-09-12", "Lisbon", "Monthly", nil, nil, nil, "host-1", "Dana", 3, now))

		repo := NewEventRepository(db)
		ev, err := repo.GetByID(ctx, "ev-1")
		require.NoError(t, err)
		require.Equal(t, "Go Meetup", ev.Title)
		require.Equal(t, 3, ev.CheckedInCount)
		require.Nil(t, ev.Capacity)
	})

	t.Run("not found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT id, title`).
			WithArgs("ev-missing").
			WillReturnError(sql.ErrNoRows)

		repo := NewEventRepository(db)
		_, err = repo.GetByID(ctx, "ev-missing")
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestEventRepository_List(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM events`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(25))
	mock.ExpectQuery(`SELECT id, title, date, location, description, category, link, capacity, host_id, host_name, checked_in_count, created_at\s+FROM events\s+ORDER BY created_at DESC\s+LIMIT \$1 OFFSET \$2`).
		WithArgs(20, 20).
		WillReturnRows(sqlmock.NewRows(eventCols).
			AddRow("ev-21", "Event 21", "2026-09-12", "Lisbon", "", nil, nil, nil, "host-1", "Dana", 0, now))

	repo := NewEventRepository(db)
	events, total, err := repo.List(ctx, domain.PaginationParams{Page: 2, PageSize: 20})
	require.NoError(t, err)
	require.Equal(t, 25, total)
	require.Len(t, events, 1)
	require.Equal(t, "ev-21", events[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepository_Update(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("partial update via COALESCE", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		title := "New Title"
		mock.ExpectQuery(`UPDATE events\s+SET title\s+= COALESCE\(\$2, title\)`).
			WithArgs("ev-1", title, nil, nil, nil, nil, nil, nil).
			WillReturnRows(sqlmock.NewRows(eventCols).
				AddRow("ev-1", title, "2026-09-12", "Lisbon", "", nil, nil, nil, "host-1", "Dana", 0, now))

		repo := NewEventRepository(db)
		ev, err := repo.Update(ctx, "ev-1", domain.EventUpdate{Title: &title})
		require.NoError(t, err)
		require.Equal(t, title, ev.Title)
	})

	t.Run("not found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`UPDATE events`).WillReturnError(sql.ErrNoRows)

		repo := NewEventRepository(db)
		_, err = repo.Update(ctx, "ev-missing", domain.EventUpdate{})
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestEventRepository_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("deleted and notified", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`WITH del AS \(\s*DELETE FROM events[\s\S]*pg_notify\('event_changes'`).
			WithArgs("ev-1").
			WillReturnRows(sqlmock.NewRows([]string{"pg_notify"}).AddRow(nil))

		repo := NewEventRepository(db)
		require.NoError(t, repo.Delete(ctx, "ev-1"))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`WITH del AS \(\s*DELETE FROM events`).
			WithArgs("ev-missing").
			WillReturnRows(sqlmock.NewRows([]string{"pg_notify"}))

		repo := NewEventRepository(db)
		require.ErrorIs(t, repo.Delete(ctx, "ev-missing"), domain.ErrNotFound)
	})
}

func TestEventRepository_Counts(t *testing.T) {
	ctx := context.Background()

	t.Run("increment applies delta and notifies", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`UPDATE events\s+SET checked_in_count = checked_in_count \+ \$2\s+WHERE id = \$1[\s\S]*pg_notify\('event_changes'`).
			WithArgs("ev-1", 1).
			WillReturnRows(sqlmock.NewRows([]string{"pg_notify"}).AddRow(nil))

		repo := NewEventRepository(db)
		require.NoError(t, repo.IncrementCheckedInCount(ctx, "ev-1", 1))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("decrement has no floor", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`UPDATE events\s+SET checked_in_count = checked_in_count \+ \$2\s+WHERE id = \$1`).
			WithArgs("ev-1", -1).
			WillReturnRows(sqlmock.NewRows([]string{"pg_notify"}).AddRow(nil))

		repo := NewEventRepository(db)
		require.NoError(t, repo.IncrementCheckedInCount(ctx, "ev-1", -1))
	})

	t.Run("increment on missing event", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`UPDATE events\s+SET checked_in_count = checked_in_count`).
			WithArgs("ev-missing", 1).
			WillReturnRows(sqlmock.NewRows([]string{"pg_notify"}))

		repo := NewEventRepository(db)
		require.ErrorIs(t, repo.IncrementCheckedInCount(ctx, "ev-missing", 1), domain.ErrNotFound)
	})

	t.Run("set overwrites unconditionally", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`UPDATE events\s+SET checked_in_count = \$2\s+WHERE id = \$1`).
			WithArgs("ev-1", 7).
			WillReturnRows(sqlmock.NewRows([]string{"pg_notify"}).AddRow(nil))

		repo := NewEventRepository(db)
		require.NoError(t, repo.SetCheckedInCount(ctx, "ev-1", 7))
	})
}
