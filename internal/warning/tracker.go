package warning

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tullo/trust/internal/clock"
	"github.com/tullo/trust/internal/karma"
	"github.com/tullo/trust/internal/models"
	"github.com/tullo/trust/internal/repository"
)

const (
	// TTL is how long a warning counts toward escalation
	TTL = 7 * 24 * time.Hour
	// AutoBanThreshold active warnings ban the user
	AutoBanThreshold = 3
	AutoBanReason    = "Automatic ban after receiving 3 warnings"
)

var autoBanCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "trust_auto_bans",
	Help: "Number of bans produced by warning accumulation",
})

type Tracker struct {
	store  repository.Store
	ledger *karma.Ledger
	clock  clock.Clock
	logger *slog.Logger
}

func NewTracker(store repository.Store, ledger *karma.Ledger, clk clock.Clock, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{store: store, ledger: ledger, clock: clk, logger: logger.With("component", "warnings")}
}

// Outcome is the result of issuing a warning
type Outcome struct {
	Warning     *models.UserWarning
	ActiveCount int
	AutoBanned  bool
	AutoBanLog  *models.ModerationLog
}

// Issue creates a warning inside the caller's unit of work, recomputes the
// active count from the warning rows and, when the threshold is reached,
// bans the user in that same unit of work. Callers must hold the user row
// (GetForUpdate) so concurrent warnings cannot both miss the threshold.
func (t *Tracker) Issue(ctx context.Context, repos repository.Repositories, userID, moderatorID uuid.UUID, reason string, reportID *uuid.UUID) (*Outcome, error) {
	user, err := repos.Users.GetForUpdate(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := t.clock.Now()
	w := &models.UserWarning{
		ID:        uuid.New(),
		UserID:    userID,
		WarnedBy:  moderatorID,
		Reason:    reason,
		ExpiresAt: now.Add(TTL),
		CreatedAt: now,
	}
	if err := repos.Warnings.Create(ctx, w); err != nil {
		return nil, err
	}

	count, err := repos.Warnings.CountActive(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	if err := repos.Users.SetWarningCount(ctx, userID, count); err != nil {
		return nil, err
	}

	out := &Outcome{Warning: w, ActiveCount: count}
	if count < AutoBanThreshold || user.Banned {
		return out, nil
	}

	banLog, err := t.autoBan(ctx, repos, userID, moderatorID, reportID, count)
	if err != nil {
		return nil, fmt.Errorf("auto-ban: %w", err)
	}
	out.AutoBanned = true
	out.AutoBanLog = banLog
	return out, nil
}

func (t *Tracker) autoBan(ctx context.Context, repos repository.Repositories, userID, moderatorID uuid.UUID, reportID *uuid.UUID, count int) (*models.ModerationLog, error) {
	reason := AutoBanReason
	if err := repos.Users.SetBanned(ctx, userID, &reason); err != nil {
		return nil, err
	}
	if err := repos.Users.RevokeTokens(ctx, userID); err != nil {
		return nil, err
	}
	if _, err := t.ledger.ApplyIn(ctx, repos, userID, models.KarmaBanned, nil); err != nil {
		return nil, err
	}

	log := &models.ModerationLog{
		ID:           uuid.New(),
		ModeratorID:  moderatorID,
		TargetUserID: userID,
		ReportID:     reportID,
		ActionType:   models.ActionBan,
		Reason:       models.AutoBanReason,
		Metadata: map[string]any{
			"trigger":         "warning_threshold",
			"active_warnings": count,
		},
		CreatedAt: t.clock.Now(),
	}
	if err := repos.Logs.Append(ctx, log); err != nil {
		return nil, err
	}

	autoBanCount.Inc()
	t.logger.Info("user auto-banned", "user_id", userID, "active_warnings", count)
	return log, nil
}

// ActiveCount counts the user's active warnings from the warning rows, never
// from the cached counter on the user record.
func (t *Tracker) ActiveCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return t.store.Repos().Warnings.CountActive(ctx, userID, t.clock.Now())
}

// List returns the user's warnings, newest first
func (t *Tracker) List(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]models.UserWarning, error) {
	var activeAt *time.Time
	if activeOnly {
		now := t.clock.Now()
		activeAt = &now
	}
	return t.store.Repos().Warnings.ListByUser(ctx, userID, activeAt)
}
