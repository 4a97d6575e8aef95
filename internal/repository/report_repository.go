package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tullo/trust/internal/apperr"
	"github.com/tullo/trust/internal/database"
	"github.com/tullo/trust/internal/models"
)

const (
	defaultReportLimit = 50
	maxReportLimit     = 200
)

const reportColumns = `id, reporter_id, reported_user_id, reported_group_id, reported_message_id,
	reason, description, evidence_url, status, priority, resolved_by, resolved_at,
	resolution_notes, created_at, updated_at`

type ReportRepository struct {
	db database.Querier
}

func NewReportRepository(db database.Querier) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create inserts a new report
func (r *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	query := `
		INSERT INTO reports (id, reporter_id, reported_user_id, reported_group_id, reported_message_id,
			reason, description, evidence_url, status, priority, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		report.ID,
		report.ReporterID,
		report.ReportedUserID,
		report.ReportedGroupID,
		report.ReportedMessageID,
		report.Reason,
		report.Description,
		report.EvidenceURL,
		report.Status,
		report.Priority,
		report.CreatedAt,
		report.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

// GetByID retrieves a report by ID
func (r *ReportRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`
	report, err := scanReport(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("report")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return report, nil
}

// List returns reports ordered by priority (urgent first), then newest first
func (r *ReportRepository) List(ctx context.Context, filter models.ReportFilter) ([]models.Report, error) {
	conds := []string{}
	args := []any{}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		conds = append(conds, fmt.Sprintf("priority = $%d", len(args)))
	}
	if filter.ReportedUserID != nil {
		args = append(args, *filter.ReportedUserID)
		conds = append(conds, fmt.Sprintf("reported_user_id = $%d", len(args)))
	}

	query := `SELECT ` + reportColumns + ` FROM reports`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}

	limit, offset := clampPage(filter.Limit, filter.Offset)
	args = append(args, limit, offset)
	query += fmt.Sprintf(`
		ORDER BY CASE priority WHEN 'urgent' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END DESC,
			created_at DESC
		LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	reports := []models.Report{}
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, *report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reports: %w", err)
	}
	return reports, nil
}

// MarkResolved is the compare-and-set that moves a report out of pending. The
// WHERE clause asserts the prior status, so of two racing resolutions only one
// updates a row.
func (r *ReportRepository) MarkResolved(ctx context.Context, id uuid.UUID, status models.ReportStatus, moderatorID uuid.UUID, at time.Time, notes *string) (bool, error) {
	query := `
		UPDATE reports
		SET status = $1, resolved_by = $2, resolved_at = $3, resolution_notes = $4, updated_at = $3
		WHERE id = $5 AND status = $6
	`
	result, err := r.db.ExecContext(ctx, query, status, moderatorID, at, notes, id, models.StatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to resolve report: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

func scanReport(row rowScanner) (*models.Report, error) {
	report := &models.Report{}
	var groupID, messageID, resolvedBy uuid.NullUUID
	var evidenceURL, notes sql.NullString
	var resolvedAt sql.NullTime
	err := row.Scan(
		&report.ID,
		&report.ReporterID,
		&report.ReportedUserID,
		&groupID,
		&messageID,
		&report.Reason,
		&report.Description,
		&evidenceURL,
		&report.Status,
		&report.Priority,
		&resolvedBy,
		&resolvedAt,
		&notes,
		&report.CreatedAt,
		&report.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if groupID.Valid {
		report.ReportedGroupID = &groupID.UUID
	}
	if messageID.Valid {
		report.ReportedMessageID = &messageID.UUID
	}
	if resolvedBy.Valid {
		report.ResolvedBy = &resolvedBy.UUID
	}
	if evidenceURL.Valid {
		report.EvidenceURL = &evidenceURL.String
	}
	if notes.Valid {
		report.ResolutionNotes = &notes.String
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time.UTC()
		report.ResolvedAt = &t
	}
	return report, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultReportLimit
	}
	if limit > maxReportLimit {
		limit = maxReportLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
