package notify

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tullo/trust/internal/apperr"
	"github.com/tullo/trust/internal/cache"
	"github.com/tullo/trust/internal/models"
)

// Dispatcher hands a notification to the delivery system. Fire-and-forget.
type Dispatcher interface {
	Send(ctx context.Context, n models.Notification) error
}

// Mailer hands an email to the mail system
type Mailer interface {
	Send(ctx context.Context, e models.Email) error
}

var deliveryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "trust_delivery_failures",
	Help: "Number of notifications or emails that could not be handed off",
}, []string{"channel", "type"})

// RedisDispatcher publishes notifications on the notifications channel
type RedisDispatcher struct {
	redis *cache.RedisClient
}

func NewRedisDispatcher(redis *cache.RedisClient) *RedisDispatcher {
	return &RedisDispatcher{redis: redis}
}

func (d *RedisDispatcher) Send(ctx context.Context, n models.Notification) error {
	if err := d.redis.Publish(ctx, cache.ChannelNotifications, n); err != nil {
		return apperr.Transient("notifications", err)
	}
	return nil
}

// RedisMailer appends emails to the outbox list drained by the mail service
type RedisMailer struct {
	redis *cache.RedisClient
}

func NewRedisMailer(redis *cache.RedisClient) *RedisMailer {
	return &RedisMailer{redis: redis}
}

func (m *RedisMailer) Send(ctx context.Context, e models.Email) error {
	if err := m.redis.Enqueue(ctx, cache.QueueEmailOutbox, e); err != nil {
		return apperr.Transient("email", err)
	}
	return nil
}

// LogDispatcher only logs. Used when redis is unavailable.
type LogDispatcher struct {
	Logger *slog.Logger
}

func (d LogDispatcher) Send(ctx context.Context, n models.Notification) error {
	d.Logger.Info("notification (not delivered)", "user_id", n.UserID, "type", n.Type)
	return nil
}

// LogMailer only logs. Used when redis is unavailable.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) Send(ctx context.Context, e models.Email) error {
	m.Logger.Info("email (not delivered)", "template", e.Template, "to", e.To)
	return nil
}

// BestEffort sends n and swallows any failure after logging it. The caller's
// outcome never depends on delivery.
func BestEffort(ctx context.Context, logger *slog.Logger, d Dispatcher, n models.Notification) {
	if d == nil {
		return
	}
	if err := d.Send(ctx, n); err != nil {
		deliveryFailures.WithLabelValues("notification", n.Type).Inc()
		logger.Warn("notification delivery failed", "user_id", n.UserID, "type", n.Type, "err", err)
	}
}

// BestEffortEmail is BestEffort for email
func BestEffortEmail(ctx context.Context, logger *slog.Logger, m Mailer, e models.Email) {
	if m == nil {
		return
	}
	if err := m.Send(ctx, e); err != nil {
		deliveryFailures.WithLabelValues("email", e.Template).Inc()
		logger.Warn("email delivery failed", "template", e.Template, "err", err)
	}
}
