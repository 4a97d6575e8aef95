package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tullo/trust/internal/apperr"
	"github.com/tullo/trust/internal/middleware"
	"github.com/tullo/trust/internal/models"
	"github.com/tullo/trust/internal/moderation"
	"github.com/tullo/trust/internal/report"
)

type ReportHandler struct {
	registry *report.Registry
	engine   *moderation.Engine
	logger   *slog.Logger
}

func NewReportHandler(registry *report.Registry, engine *moderation.Engine, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{registry: registry, engine: engine, logger: logger}
}

// CreateReport files a report against another user
func (h *ReportHandler) CreateReport(c *gin.Context) {
	var req models.CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	userID, _ := c.Get(middleware.ContextUserID)
	in := report.SubmitInput{
		ReporterID:        userID.(uuid.UUID),
		ReportedUserID:    req.ReportedUserID,
		ReportedGroupID:   req.ReportedGroupID,
		ReportedMessageID: req.ReportedMessageID,
		Reason:            models.ReportReason(req.Reason),
		Description:       req.Description,
		EvidenceURL:       req.EvidenceURL,
	}
	if req.Priority != nil {
		p := models.ReportPriority(*req.Priority)
		in.Priority = &p
	}

	rep, err := h.registry.Submit(c.Request.Context(), in)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, rep)
}

// ListReports returns the moderation queue
func (h *ReportHandler) ListReports(c *gin.Context) {
	var filter models.ReportFilter
	if s := c.Query("status"); s != "" {
		st := models.ReportStatus(s)
		filter.Status = &st
	}
	if p := c.Query("priority"); p != "" {
		pr := models.ReportPriority(p)
		filter.Priority = &pr
	}
	if u := c.Query("reported_user_id"); u != "" {
		id, err := uuid.Parse(u)
		if err != nil {
			ErrorResponse(c, http.StatusBadRequest, "Invalid reported_user_id")
			return
		}
		filter.ReportedUserID = &id
	}
	var ok bool
	if filter.Limit, ok = queryInt(c, "limit", 0); !ok {
		return
	}
	if filter.Offset, ok = queryInt(c, "offset", 0); !ok {
		return
	}

	reports, err := h.registry.List(c.Request.Context(), filter)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

func (h *ReportHandler) GetReport(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	rep, err := h.registry.Get(c.Request.Context(), id)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	logs, err := h.engine.ReportLogs(c.Request.Context(), id)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": rep, "moderation_logs": logs})
}

// ResolveReport applies a moderator decision. A report resolved concurrently
// by someone else answers 409 with the winning outcome.
func (h *ReportHandler) ResolveReport(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	var req models.ResolveReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	userID, _ := c.Get(middleware.ContextUserID)
	res, err := h.engine.Resolve(c.Request.Context(), moderation.ResolveInput{
		ReportID:     id,
		ModeratorID:  userID.(uuid.UUID),
		Action:       req.Action,
		DurationDays: req.DurationDays,
		Notes:        req.Notes,
	})
	if err != nil {
		if apperr.Is(err, apperr.CodeConflict) {
			if current, gerr := h.registry.Get(c.Request.Context(), id); gerr == nil {
				c.JSON(http.StatusConflict, gin.H{"error": "Report already resolved", "code": apperr.CodeConflict, "report": current})
				return
			}
		}
		RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
