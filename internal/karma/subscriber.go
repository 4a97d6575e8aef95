package karma

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tullo/trust/internal/cache"
	"github.com/tullo/trust/internal/models"
)

// PublishedEvent is the message collaborating services publish on the
// karma_events channel instead of calling the HTTP endpoint.
type PublishedEvent struct {
	UserID    uuid.UUID             `json:"user_id"`
	EventType models.KarmaEventType `json:"event_type"`
	Magnitude *int                  `json:"magnitude,omitempty"`
}

// Subscriber applies karma events published on redis
type Subscriber struct {
	redis  *cache.RedisClient
	ledger *Ledger
	logger *slog.Logger
}

func NewSubscriber(redis *cache.RedisClient, ledger *Ledger, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{redis: redis, ledger: ledger, logger: logger.With("component", "karma-subscriber")}
}

// Run consumes the channel until ctx is cancelled
func (s *Subscriber) Run(ctx context.Context) {
	if s.redis == nil {
		s.logger.Warn("karma subscriber requires redis; not started")
		return
	}

	ps := s.redis.Subscribe(ctx, cache.ChannelKarmaEvents)
	defer ps.Close()

	ch := ps.Channel()
	s.logger.Info("karma subscriber listening", "channel", cache.ChannelKarmaEvents)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := s.Handle(ctx, msg.Payload); err != nil {
				karmaSubscriberErrors.Inc()
				s.logger.Warn("failed to apply published karma event", "err", err)
			}
		}
	}
}

// Handle decodes and applies one published event
func (s *Subscriber) Handle(ctx context.Context, payload string) error {
	var ev PublishedEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return fmt.Errorf("decode karma event: %w", err)
	}
	if ev.UserID == uuid.Nil {
		return fmt.Errorf("karma event without user_id")
	}

	balance, err := s.ledger.Apply(ctx, ev.UserID, ev.EventType, ev.Magnitude)
	if err != nil {
		return fmt.Errorf("apply %s for %s: %w", ev.EventType, ev.UserID, err)
	}
	s.logger.Debug("published karma event applied", "user_id", ev.UserID, "type", ev.EventType, "balance", balance)
	return nil
}
