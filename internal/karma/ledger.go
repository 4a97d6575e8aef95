package karma

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tullo/trust/internal/apperr"
	"github.com/tullo/trust/internal/clock"
	"github.com/tullo/trust/internal/models"
	"github.com/tullo/trust/internal/repository"
)

// Ledger applies signed point deltas to user balances. Every change is an
// append-only ledger row; the balance on the user record is its running sum,
// incremented atomically by the store.
type Ledger struct {
	store  repository.Store
	clock  clock.Clock
	logger *slog.Logger
}

func NewLedger(store repository.Store, clk clock.Clock, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{store: store, clock: clk, logger: logger.With("component", "karma")}
}

// Apply records eventType for userID and returns the new balance. A non-nil
// override replaces the table delta.
func (l *Ledger) Apply(ctx context.Context, userID uuid.UUID, eventType models.KarmaEventType, override *int) (int, error) {
	ev, err := l.ApplyIn(ctx, l.store.Repos(), userID, eventType, override)
	if err != nil {
		return 0, err
	}
	return ev.BalanceAfter, nil
}

// ApplyIn is Apply bound to the given repositories, typically those of an
// enclosing unit of work.
func (l *Ledger) ApplyIn(ctx context.Context, repos repository.Repositories, userID uuid.UUID, eventType models.KarmaEventType, override *int) (*models.KarmaEvent, error) {
	delta, ok := Points(eventType)
	if !ok {
		return nil, apperr.Validation(fmt.Sprintf("unknown karma event %q", eventType))
	}
	if override != nil {
		delta = *override
	}

	ev, err := repos.Karma.Add(ctx, userID, eventType, delta, l.clock.Now())
	if err != nil {
		return nil, err
	}

	karmaEventCount.WithLabelValues(string(eventType)).Inc()
	l.logger.Debug("karma applied", "user_id", userID, "type", eventType, "delta", delta, "balance", ev.BalanceAfter)
	return ev, nil
}

// Balance returns the materialised balance
func (l *Ledger) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	u, err := l.store.Repos().Users.GetByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return u.KarmaPoints, nil
}

// History returns the newest ledger rows for userID
func (l *Ledger) History(ctx context.Context, userID uuid.UUID, limit int) ([]models.KarmaEvent, error) {
	return l.store.Repos().Karma.History(ctx, userID, limit)
}
