package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tullo/trust/internal/apperr"
	"golang.org/x/time/rate"
)

// BucketStore is a shared token bucket, normally redis
type BucketStore interface {
	AllowAction(ctx context.Context, userID uuid.UUID, action string, perMinute, burst int) (bool, error)
}

// RateLimiter limits an action per user. The shared store is consulted first;
// when it is missing or failing, a per-process limiter takes over.
type RateLimiter struct {
	action    string
	perMinute int
	burst     int
	shared    BucketStore
	logger    *slog.Logger

	limiters map[uuid.UUID]*rate.Limiter
	mu       sync.Mutex
}

func NewRateLimiter(action string, perMinute, burst int, shared BucketStore, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimiter{
		action:    action,
		perMinute: perMinute,
		burst:     burst,
		shared:    shared,
		logger:    logger,
		limiters:  make(map[uuid.UUID]*rate.Limiter),
	}
}

func (rl *RateLimiter) getLimiter(userID uuid.UUID) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.limiters[userID]
	if !exists {
		limiter = rate.NewLimiter(rate.Limit(float64(rl.perMinute)/60), rl.burst)
		rl.limiters[userID] = limiter
	}
	return limiter
}

// Allow reports whether userID may perform the action now
func (rl *RateLimiter) Allow(ctx context.Context, userID uuid.UUID) bool {
	if rl.shared != nil {
		ok, err := rl.shared.AllowAction(ctx, userID, rl.action, rl.perMinute, rl.burst)
		if err == nil {
			return ok
		}
		rl.logger.Warn("shared rate limiter unavailable, using local", "action", rl.action, "err", err)
	}
	return rl.getLimiter(userID).Allow()
}

// Cleanup drops local limiters periodically until ctx is done
func (rl *RateLimiter) Cleanup(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.mu.Lock()
				if len(rl.limiters) > 10000 {
					rl.limiters = make(map[uuid.UUID]*rate.Limiter)
				}
				rl.mu.Unlock()
			}
		}
	}()
}

// RateLimitMiddleware limits requests per user
func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get(ContextUserID)
		if !exists {
			c.Next()
			return
		}

		uid, ok := userID.(uuid.UUID)
		if !ok {
			c.Next()
			return
		}

		if !rl.Allow(c.Request.Context(), uid) {
			abort(c, apperr.RateLimited("Rate limit exceeded"))
			return
		}

		c.Next()
	}
}
