package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tullo/trust/internal/apperr"
	"github.com/tullo/trust/internal/clock"
	"github.com/tullo/trust/internal/gate"
)

var gateDenials = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "trust_gate_denials",
	Help: "Number of requests refused because the caller is banned or suspended",
}, []string{"reason"})

// SuspensionGate refuses banned and currently suspended callers. Must run
// after AuthMiddleware.
func SuspensionGate(clk clock.Clock) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			abort(c, apperr.Unauthorized("Unauthorized"))
			return
		}

		d := gate.Evaluate(user, clk.Now())
		if !d.Allowed {
			gateDenials.WithLabelValues(d.Reason).Inc()
			body := gin.H{"error": "Account restricted", "reason": d.Reason}
			if d.Detail != "" {
				body["detail"] = d.Detail
			}
			if d.Until != nil {
				body["until"] = d.Until
			}
			c.AbortWithStatusJSON(http.StatusForbidden, body)
			return
		}
		c.Next()
	}
}
