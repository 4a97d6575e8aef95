package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tullo/trust/internal/apperr"
	"github.com/tullo/trust/internal/database"
	"github.com/tullo/trust/internal/models"
)

const userColumns = `id, email, display_name, email_verified, role, token_version,
	banned, banned_reason, suspended_until, suspension_reason, warnings, karma_points,
	created_at, updated_at`

type UserRepository struct {
	db database.Querier
}

func NewUserRepository(db database.Querier) *UserRepository {
	return &UserRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var bannedReason, suspensionReason sql.NullString
	var suspendedUntil sql.NullTime
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.EmailVerified,
		&user.Role,
		&user.TokenVersion,
		&user.Banned,
		&bannedReason,
		&suspendedUntil,
		&suspensionReason,
		&user.Warnings,
		&user.KarmaPoints,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if bannedReason.Valid {
		user.BannedReason = &bannedReason.String
	}
	if suspensionReason.Valid {
		user.SuspensionReason = &suspensionReason.String
	}
	if suspendedUntil.Valid {
		t := suspendedUntil.Time.UTC()
		user.SuspendedUntil = &t
	}
	return user, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetForUpdate retrieves a user and locks the row for the enclosing transaction
func (r *UserRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, id)
}

func (r *UserRepository) getOne(ctx context.Context, query string, id uuid.UUID) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("user")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ListModerators returns every moderator and admin
func (r *UserRepository) ListModerators(ctx context.Context) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role IN ($1, $2) ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, models.RoleModerator, models.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to query moderators: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate moderators: %w", err)
	}
	return users, nil
}

// SetBanned marks the user banned. A nil reason leaves banned_reason untouched.
func (r *UserRepository) SetBanned(ctx context.Context, id uuid.UUID, reason *string) error {
	query := `
		UPDATE users
		SET banned = true, banned_reason = COALESCE($1, banned_reason), updated_at = NOW()
		WHERE id = $2
	`
	return r.execOne(ctx, "ban user", query, reason, id)
}

// SetSuspended sets suspended_until. A nil reason leaves suspension_reason untouched.
func (r *UserRepository) SetSuspended(ctx context.Context, id uuid.UUID, until time.Time, reason *string) error {
	query := `
		UPDATE users
		SET suspended_until = $1, suspension_reason = COALESCE($2, suspension_reason), updated_at = NOW()
		WHERE id = $3
	`
	return r.execOne(ctx, "suspend user", query, until, reason, id)
}

// SetWarningCount refreshes the cached active-warning count
func (r *UserRepository) SetWarningCount(ctx context.Context, id uuid.UUID, count int) error {
	query := `UPDATE users SET warnings = $1, updated_at = NOW() WHERE id = $2`
	return r.execOne(ctx, "update warning count", query, count, id)
}

// RevokeTokens bumps token_version; tokens carrying an older version are rejected
func (r *UserRepository) RevokeTokens(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE users SET token_version = token_version + 1, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, "revoke tokens", query, id)
}

func (r *UserRepository) execOne(ctx context.Context, op, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return apperr.NotFound("user")
	}

	return nil
}
