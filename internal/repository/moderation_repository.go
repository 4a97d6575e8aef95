package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/tullo/trust/internal/database"
	"github.com/tullo/trust/internal/models"
)

const logColumns = `id, moderator_id, target_user_id, report_id, action_type, duration_days, reason, metadata, created_at`

type ModerationRepository struct {
	db database.Querier
}

func NewModerationRepository(db database.Querier) *ModerationRepository {
	return &ModerationRepository{db: db}
}

// Append records a moderation outcome. Rows are never updated or deleted.
func (r *ModerationRepository) Append(ctx context.Context, log *models.ModerationLog) error {
	meta := sql.NullString{}
	if log.Metadata != nil {
		b, err := json.Marshal(log.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode moderation metadata: %w", err)
		}
		meta = sql.NullString{String: string(b), Valid: true}
	}

	query := `
		INSERT INTO moderation_logs (id, moderator_id, target_user_id, report_id, action_type, duration_days, reason, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if _, err := r.db.ExecContext(ctx, query, log.ID, log.ModeratorID, log.TargetUserID, log.ReportID, log.ActionType, log.DurationDays, log.Reason, meta, log.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert moderation log: %w", err)
	}
	return nil
}

func (r *ModerationRepository) ListByTarget(ctx context.Context, userID uuid.UUID, limit int) ([]models.ModerationLog, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + logColumns + ` FROM moderation_logs WHERE target_user_id = $1 ORDER BY created_at DESC LIMIT $2`
	return r.list(ctx, query, userID, limit)
}

func (r *ModerationRepository) ListByReport(ctx context.Context, reportID uuid.UUID) ([]models.ModerationLog, error) {
	query := `SELECT ` + logColumns + ` FROM moderation_logs WHERE report_id = $1 ORDER BY created_at`
	return r.list(ctx, query, reportID)
}

func (r *ModerationRepository) list(ctx context.Context, query string, args ...any) ([]models.ModerationLog, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query moderation logs: %w", err)
	}
	defer rows.Close()

	res := []models.ModerationLog{}
	for rows.Next() {
		var m models.ModerationLog
		var reportID uuid.NullUUID
		var duration sql.NullInt64
		var meta sql.NullString
		if err := rows.Scan(&m.ID, &m.ModeratorID, &m.TargetUserID, &reportID, &m.ActionType, &duration, &m.Reason, &meta, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan moderation log: %w", err)
		}
		if reportID.Valid {
			m.ReportID = &reportID.UUID
		}
		if duration.Valid {
			d := int(duration.Int64)
			m.DurationDays = &d
		}
		if meta.Valid {
			if err := json.Unmarshal([]byte(meta.String), &m.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode moderation metadata: %w", err)
			}
		}
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate moderation logs: %w", err)
	}
	return res, nil
}
