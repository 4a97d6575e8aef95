package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tullo/trust/internal/clock"
	"github.com/tullo/trust/internal/gate"
	"github.com/tullo/trust/internal/karma"
	"github.com/tullo/trust/internal/middleware"
	"github.com/tullo/trust/internal/moderation"
	"github.com/tullo/trust/internal/warning"
)

// UserHandler serves a user's standing, warnings and audit trail
type UserHandler struct {
	warnings *warning.Tracker
	engine   *moderation.Engine
	ledger   *karma.Ledger
	clock    clock.Clock
	logger   *slog.Logger
}

func NewUserHandler(warnings *warning.Tracker, engine *moderation.Engine, ledger *karma.Ledger, clk clock.Clock, logger *slog.Logger) *UserHandler {
	return &UserHandler{warnings: warnings, engine: engine, ledger: ledger, clock: clk, logger: logger}
}

// GetWarnings lists warnings; ?active=true keeps only unexpired ones
func (h *UserHandler) GetWarnings(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	activeOnly := c.Query("active") == "true"
	warnings, err := h.warnings.List(c.Request.Context(), id, activeOnly)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	active, err := h.warnings.ActiveCount(c.Request.Context(), id)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"warnings": warnings, "active_count": active})
}

func (h *UserHandler) GetModerationLogs(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", 50)
	if !ok {
		return
	}

	logs, err := h.engine.Logs(c.Request.Context(), id, limit)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"moderation_logs": logs})
}

// GetStanding reports the caller's own gate decision, active warnings and karma
func (h *UserHandler) GetStanding(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	active, err := h.warnings.ActiveCount(c.Request.Context(), user.ID)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	balance, err := h.ledger.Balance(c.Request.Context(), user.ID)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":         user.ID,
		"decision":        gate.Evaluate(user, h.clock.Now()),
		"active_warnings": active,
		"karma_points":    balance,
	})
}
