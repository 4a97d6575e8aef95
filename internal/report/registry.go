package report

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tullo/trust/internal/apperr"
	"github.com/tullo/trust/internal/clock"
	"github.com/tullo/trust/internal/models"
	"github.com/tullo/trust/internal/notify"
	"github.com/tullo/trust/internal/repository"
)

var reportsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "trust_reports_submitted",
	Help: "Number of reports submitted",
}, []string{"reason"})

// Registry owns report creation and lookup. Resolution lives in the
// moderation engine.
type Registry struct {
	store    repository.Store
	notifier notify.Dispatcher
	clock    clock.Clock
	logger   *slog.Logger
}

func NewRegistry(store repository.Store, notifier notify.Dispatcher, clk clock.Clock, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{store: store, notifier: notifier, clock: clk, logger: logger.With("component", "reports")}
}

type SubmitInput struct {
	ReporterID        uuid.UUID
	ReportedUserID    uuid.UUID
	ReportedGroupID   *uuid.UUID
	ReportedMessageID *uuid.UUID
	Reason            models.ReportReason
	Description       string
	EvidenceURL       *string
	Priority          *models.ReportPriority
}

func (in SubmitInput) validate() error {
	if in.ReporterID == uuid.Nil || in.ReportedUserID == uuid.Nil {
		return apperr.Validation("reporter and reported user are required")
	}
	if in.ReporterID == in.ReportedUserID {
		return apperr.Validation("you cannot report yourself")
	}
	if !in.Reason.Valid() {
		return apperr.Validation("invalid report reason")
	}
	if strings.TrimSpace(in.Description) == "" {
		return apperr.Validation("description is required")
	}
	if in.Priority != nil && !in.Priority.Valid() {
		return apperr.Validation("invalid report priority")
	}
	return nil
}

// Submit files a new pending report and alerts moderators
func (r *Registry) Submit(ctx context.Context, in SubmitInput) (*models.Report, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	repos := r.store.Repos()
	if _, err := repos.Users.GetByID(ctx, in.ReportedUserID); err != nil {
		return nil, err
	}
	if in.ReportedGroupID != nil {
		ok, err := repos.Directory.GroupExists(ctx, *in.ReportedGroupID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.NotFound("group")
		}
	}
	if in.ReportedMessageID != nil {
		ok, err := repos.Directory.MessageExists(ctx, *in.ReportedMessageID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.NotFound("message")
		}
	}

	priority := models.PriorityMedium
	if in.Priority != nil {
		priority = *in.Priority
	}

	now := r.clock.Now()
	report := &models.Report{
		ID:                uuid.New(),
		ReporterID:        in.ReporterID,
		ReportedUserID:    in.ReportedUserID,
		ReportedGroupID:   in.ReportedGroupID,
		ReportedMessageID: in.ReportedMessageID,
		Reason:            in.Reason,
		Description:       strings.TrimSpace(in.Description),
		EvidenceURL:       in.EvidenceURL,
		Status:            models.StatusPending,
		Priority:          priority,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := repos.Reports.Create(ctx, report); err != nil {
		return nil, err
	}

	reportsSubmitted.WithLabelValues(string(report.Reason)).Inc()
	r.logger.Info("report submitted", "report_id", report.ID, "reason", report.Reason, "priority", report.Priority)

	r.alertModerators(ctx, report)
	return report, nil
}

func (r *Registry) alertModerators(ctx context.Context, report *models.Report) {
	mods, err := r.store.Repos().Users.ListModerators(ctx)
	if err != nil {
		r.logger.Warn("failed to list moderators for new report", "report_id", report.ID, "err", err)
		return
	}
	for _, m := range mods {
		notify.BestEffort(ctx, r.logger, r.notifier, models.Notification{
			UserID: m.ID,
			Type:   models.NotifyNewReport,
			Payload: map[string]any{
				"report_id":        report.ID,
				"reported_user_id": report.ReportedUserID,
				"reason":           report.Reason,
				"priority":         report.Priority,
			},
		})
	}
}

func (r *Registry) Get(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	return r.store.Repos().Reports.GetByID(ctx, id)
}

// List returns the moderation queue, most urgent first
func (r *Registry) List(ctx context.Context, filter models.ReportFilter) ([]models.Report, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, apperr.Validation("invalid status filter")
	}
	if filter.Priority != nil && !filter.Priority.Valid() {
		return nil, apperr.Validation("invalid priority filter")
	}
	return r.store.Repos().Reports.List(ctx, filter)
}
