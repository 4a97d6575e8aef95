package warning

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tullo/trust/internal/clock"
	"github.com/tullo/trust/internal/database"
	"github.com/tullo/trust/internal/karma"
	"github.com/tullo/trust/internal/repository"
)

var userCols = []string{"id", "email", "display_name", "email_verified", "role", "token_version",
	"banned", "banned_reason", "suspended_until", "suspension_reason", "warnings", "karma_points",
	"created_at", "updated_at"}

func newPostgresTracker(t *testing.T) (*Tracker, *repository.PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})

	store := repository.NewPostgresStore(&database.DB{DB: db})
	clk := clock.NewFake(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	return NewTracker(store, karma.NewLedger(store, clk, nil), clk, nil), store, mock
}

// The user row lock has to be taken before the warnings are counted, otherwise
// two transactions can both count two warnings and skip the ban.
func TestTracker_Issue_Postgres_LocksUserBeforeCounting(t *testing.T) {
	tracker, store, mock := newPostgresTracker(t)
	userID, modID := uuid.New(), uuid.New()
	now := time.Date(2024, 4, 28, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1 FOR UPDATE")).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(userID.String(), "u@example.com", "U", true, "user", 0, false, nil, nil, nil, 2, -30, now, now))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_warnings")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM user_warnings WHERE user_id = $1 AND expires_at > $2")).
		WithArgs(userID, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET warnings = $1")).
		WithArgs(3, userID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET banned = true")).
		WithArgs(AutoBanReason, userID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET token_version = token_version + 1")).
		WithArgs(userID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET karma_points = karma_points + $2")).
		WillReturnRows(sqlmock.NewRows([]string{"balance_after"}).AddRow(-80))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO moderation_logs")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var out *Outcome
	err := store.WithTx(context.Background(), func(repos repository.Repositories) error {
		var err error
		out, err = tracker.Issue(context.Background(), repos, userID, modID, "spam", nil)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 3, out.ActiveCount)
	assert.True(t, out.AutoBanned)
}

func TestTracker_Issue_Postgres_AlreadyBanned(t *testing.T) {
	tracker, store, mock := newPostgresTracker(t)
	userID, modID := uuid.New(), uuid.New()
	now := time.Date(2024, 4, 28, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1 FOR UPDATE")).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(userID.String(), "u@example.com", "U", true, "user", 1, true, AutoBanReason, nil, nil, 3, -95, now, now))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_warnings")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM user_warnings")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET warnings = $1")).
		WithArgs(4, userID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var out *Outcome
	err := store.WithTx(context.Background(), func(repos repository.Repositories) error {
		var err error
		out, err = tracker.Issue(context.Background(), repos, userID, modID, "spam", nil)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 4, out.ActiveCount)
	assert.False(t, out.AutoBanned)
}
