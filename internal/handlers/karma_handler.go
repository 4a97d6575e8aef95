package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tullo/trust/internal/karma"
	"github.com/tullo/trust/internal/models"
)

type KarmaHandler struct {
	ledger *karma.Ledger
	logger *slog.Logger
}

func NewKarmaHandler(ledger *karma.Ledger, logger *slog.Logger) *KarmaHandler {
	return &KarmaHandler{ledger: ledger, logger: logger}
}

func (h *KarmaHandler) GetKarma(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	balance, err := h.ledger.Balance(c.Request.Context(), id)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": id, "karma_points": balance})
}

func (h *KarmaHandler) GetHistory(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", 50)
	if !ok {
		return
	}

	events, err := h.ledger.History(c.Request.Context(), id, limit)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// ApplyKarma records an activity event reported by another service
func (h *KarmaHandler) ApplyKarma(c *gin.Context) {
	var req models.ApplyKarmaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	balance, err := h.ledger.Apply(c.Request.Context(), req.UserID, models.KarmaEventType(req.EventType), req.Magnitude)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": req.UserID, "karma_points": balance})
}
