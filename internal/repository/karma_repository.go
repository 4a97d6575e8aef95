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

type KarmaRepository struct {
	db database.Querier
}

func NewKarmaRepository(db database.Querier) *KarmaRepository {
	return &KarmaRepository{db: db}
}

// Add increments users.karma_points in the database and appends the ledger row
// in the same statement, so concurrent events never lose an update.
func (r *KarmaRepository) Add(ctx context.Context, userID uuid.UUID, eventType models.KarmaEventType, delta int, at time.Time) (*models.KarmaEvent, error) {
	query := `
		WITH updated AS (
			UPDATE users SET karma_points = karma_points + $2, updated_at = NOW()
			WHERE id = $1
			RETURNING id, karma_points
		)
		INSERT INTO karma_events (id, user_id, event_type, delta, balance_after, created_at)
		SELECT $3, updated.id, $4, $2, updated.karma_points, $5 FROM updated
		RETURNING balance_after
	`
	ev := &models.KarmaEvent{
		ID:        uuid.New(),
		UserID:    userID,
		EventType: eventType,
		Delta:     delta,
		CreatedAt: at,
	}
	err := r.db.QueryRowContext(ctx, query, userID, delta, ev.ID, eventType, at).Scan(&ev.BalanceAfter)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("user")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to apply karma: %w", err)
	}
	return ev, nil
}

// History returns the newest ledger rows first
func (r *KarmaRepository) History(ctx context.Context, userID uuid.UUID, limit int) ([]models.KarmaEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, user_id, event_type, delta, balance_after, created_at
		FROM karma_events WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query karma events: %w", err)
	}
	defer rows.Close()

	res := []models.KarmaEvent{}
	for rows.Next() {
		var ev models.KarmaEvent
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.EventType, &ev.Delta, &ev.BalanceAfter, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan karma event: %w", err)
		}
		res = append(res, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate karma events: %w", err)
	}
	return res, nil
}
