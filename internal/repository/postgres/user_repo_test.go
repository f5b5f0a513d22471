package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"orbit/internal/domain"
)

var userCols = []string{"id", "email", "name", "role", "company", "recruiting_for", "looking_for", "password_hash", "salt", "created_at"}

func TestUserRepository_Create(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	newUser := func() *domain.UserProfile {
		u := domain.NewUserProfile("ana@example.com", "Ana", domain.RoleAttendee, now)
		u.PasswordHash = "hash"
		u.Salt = "salt"
		return u
	}

	t.Run("returns generated id", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		u := newUser()
		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs(u.Email, u.Name, u.Role, nil, nil, nil, u.PasswordHash, u.Salt, u.CreatedAt).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("user-uuid-1"))

		repo := NewUserRepository(db)
		require.NoError(t, repo.Create(ctx, u))
		require.Equal(t, "user-uuid-1", u.ID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation maps to ErrDuplicateEmail", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`INSERT INTO users`).
			WillReturnError(&pq.Error{Code: "23505"})

		repo := NewUserRepository(db)
		require.ErrorIs(t, repo.Create(ctx, newUser()), domain.ErrDuplicateEmail)
	})

	t.Run("other db error passes through", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`INSERT INTO users`).WillReturnError(sql.ErrConnDone)

		repo := NewUserRepository(db)
		err = repo.Create(ctx, newUser())
		require.Error(t, err)
		require.NotErrorIs(t, err, domain.ErrDuplicateEmail)
	})
}

func TestUserRepository_GetByEmail(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT id, email, name, role, company, recruiting_for, looking_for, password_hash, salt, created_at FROM users WHERE email = \$1`).
			WithArgs("ana@example.com").
			WillReturnRows(sqlmock.NewRows(userCols).
				AddRow("u-1", "ana@example.com", "Ana", "attendee", nil, nil, nil, "hash", "salt", now))

		repo := NewUserRepository(db)
		u, err := repo.GetByEmail(ctx, "ana@example.com")
		require.NoError(t, err)
		require.Equal(t, "u-1", u.ID)
		require.Equal(t, domain.RoleAttendee, u.Role)
	})

	t.Run("not found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT id, email`).
			WithArgs("ghost@example.com").
			WillReturnError(sql.ErrNoRows)

		repo := NewUserRepository(db)
		_, err = repo.GetByEmail(ctx, "ghost@example.com")
		require.ErrorIs(t, err, domain.ErrUserNotFound)
	})
}

func TestUserRepository_Update(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	name := "New Name"
	mock.ExpectQuery(`UPDATE users\s+SET name\s+= COALESCE\(\$2, name\)`).
		WithArgs("u-1", name, nil, nil, nil).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("u-1", "ana@example.com", name, "attendee", nil, nil, nil, "hash", "salt", now))

	repo := NewUserRepository(db)
	u, err := repo.Update(ctx, "u-1", domain.ProfileUpdate{Name: &name})
	require.NoError(t, err)
	require.Equal(t, name, u.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_AppendAttendedEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("first append inserts", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(`INSERT INTO attended_events`).
			WithArgs("u-1", "ev-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		repo := NewUserRepository(db)
		require.NoError(t, repo.AppendAttendedEvent(ctx, "u-1", "ev-1"))
	})

	t.Run("repeat append is a no-op", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(`INSERT INTO attended_events`).
			WithArgs("u-1", "ev-1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		repo := NewUserRepository(db)
		require.NoError(t, repo.AppendAttendedEvent(ctx, "u-1", "ev-1"))
	})
}

func TestUserRepository_ListAttendedEventIDs(t *testing.T) {
	ctx := context.Background()

	t.Run("ordered by first check-in", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT event_id\s+FROM attended_events\s+WHERE user_id = \$1\s+ORDER BY first_checked_in_at ASC`).
			WithArgs("u-1").
			WillReturnRows(sqlmock.NewRows([]string{"event_id"}).AddRow("ev-2").AddRow("ev-1"))

		repo := NewUserRepository(db)
		ids, err := repo.ListAttendedEventIDs(ctx, "u-1")
		require.NoError(t, err)
		require.Equal(t, []string{"ev-2", "ev-1"}, ids)
	})

	t.Run("no history", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT event_id`).
			WithArgs("u-1").
			WillReturnRows(sqlmock.NewRows([]string{"event_id"}))

		repo := NewUserRepository(db)
		ids, err := repo.ListAttendedEventIDs(ctx, "u-1")
		require.NoError(t, err)
		require.NotNil(t, ids)
		require.Empty(t, ids)
	})
}
