package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tullo/trust/internal/database"
	"github.com/tullo/trust/internal/models"
)

type WarningRepository struct {
	db database.Querier
}

func NewWarningRepository(db database.Querier) *WarningRepository {
	return &WarningRepository{db: db}
}

// Create inserts a warning. Warnings are never updated afterwards.
func (r *WarningRepository) Create(ctx context.Context, w *models.UserWarning) error {
	query := `
		INSERT INTO user_warnings (id, user_id, warned_by, reason, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.db.ExecContext(ctx, query, w.ID, w.UserID, w.WarnedBy, w.Reason, w.ExpiresAt, w.CreatedAt); err != nil {
		return fmt.Errorf("failed to create warning: %w", err)
	}
	return nil
}

// CountActive counts warnings with expires_at strictly after now
func (r *WarningRepository) CountActive(ctx context.Context, userID uuid.UUID, now time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM user_warnings WHERE user_id = $1 AND expires_at > $2`
	if err := r.db.QueryRowContext(ctx, query, userID, now).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count warnings: %w", err)
	}
	return count, nil
}

func (r *WarningRepository) ListByUser(ctx context.Context, userID uuid.UUID, activeAt *time.Time) ([]models.UserWarning, error) {
	query := `SELECT id, user_id, warned_by, reason, expires_at, created_at FROM user_warnings WHERE user_id = $1`
	args := []any{userID}
	if activeAt != nil {
		query += ` AND expires_at > $2`
		args = append(args, *activeAt)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query warnings: %w", err)
	}
	defer rows.Close()

	res := []models.UserWarning{}
	for rows.Next() {
		var w models.UserWarning
		if err := rows.Scan(&w.ID, &w.UserID, &w.WarnedBy, &w.Reason, &w.ExpiresAt, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan warning: %w", err)
		}
		res = append(res, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate warnings: %w", err)
	}
	return res, nil
}
