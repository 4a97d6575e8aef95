package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/tullo/trust/internal/database"
	"github.com/tullo/trust/internal/models"
)

// Users is the user directory as seen by the engine
type Users interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// GetForUpdate loads the user and, inside a transaction, locks the row
	// until commit so decisions based on it cannot interleave.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListModerators(ctx context.Context) ([]models.User, error)
	SetBanned(ctx context.Context, id uuid.UUID, reason *string) error
	SetSuspended(ctx context.Context, id uuid.UUID, until time.Time, reason *string) error
	SetWarningCount(ctx context.Context, id uuid.UUID, count int) error
	// RevokeTokens invalidates every token issued to the user so far.
	RevokeTokens(ctx context.Context, id uuid.UUID) error
}

type Reports interface {
	Create(ctx context.Context, report *models.Report) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Report, error)
	List(ctx context.Context, filter models.ReportFilter) ([]models.Report, error)
	// MarkResolved moves a pending report to a terminal status. It returns
	// false when the report was not pending (or does not exist).
	MarkResolved(ctx context.Context, id uuid.UUID, status models.ReportStatus, moderatorID uuid.UUID, at time.Time, notes *string) (bool, error)
}

type Warnings interface {
	Create(ctx context.Context, warning *models.UserWarning) error
	CountActive(ctx context.Context, userID uuid.UUID, now time.Time) (int, error)
	// ListByUser returns warnings newest first. A non-nil activeAt keeps only
	// warnings still active at that instant.
	ListByUser(ctx context.Context, userID uuid.UUID, activeAt *time.Time) ([]models.UserWarning, error)
}

type ModerationLogs interface {
	Append(ctx context.Context, log *models.ModerationLog) error
	ListByTarget(ctx context.Context, userID uuid.UUID, limit int) ([]models.ModerationLog, error)
	ListByReport(ctx context.Context, reportID uuid.UUID) ([]models.ModerationLog, error)
}

type Karma interface {
	// Add applies delta to the user's balance as one atomic increment and
	// records the ledger row.
	Add(ctx context.Context, userID uuid.UUID, eventType models.KarmaEventType, delta int, at time.Time) (*models.KarmaEvent, error)
	History(ctx context.Context, userID uuid.UUID, limit int) ([]models.KarmaEvent, error)
}

// Directory answers existence questions about content owned by other services
type Directory interface {
	GroupExists(ctx context.Context, id uuid.UUID) (bool, error)
	MessageExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Repositories bundles the repositories bound to one connection or transaction
type Repositories struct {
	Users     Users
	Reports   Reports
	Warnings  Warnings
	Logs      ModerationLogs
	Karma     Karma
	Directory Directory
}

// Store hands out repositories and runs units of work
type Store interface {
	Repos() Repositories
	WithTx(ctx context.Context, fn func(repos Repositories) error) error
}

// PostgresStore implements Store on database/sql
type PostgresStore struct {
	db *database.DB
}

func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Repos() Repositories {
	return newRepositories(s.db)
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(repos Repositories) error) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		return fn(newRepositories(tx))
	})
}

func newRepositories(q database.Querier) Repositories {
	return Repositories{
		Users:     NewUserRepository(q),
		Reports:   NewReportRepository(q),
		Warnings:  NewWarningRepository(q),
		Logs:      NewModerationRepository(q),
		Karma:     NewKarmaRepository(q),
		Directory: NewDirectoryRepository(q),
	}
}
