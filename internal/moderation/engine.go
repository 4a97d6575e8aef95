package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tullo/trust/internal/apperr"
	"github.com/tullo/trust/internal/clock"
	"github.com/tullo/trust/internal/karma"
	"github.com/tullo/trust/internal/models"
	"github.com/tullo/trust/internal/notify"
	"github.com/tullo/trust/internal/repository"
	"github.com/tullo/trust/internal/warning"
)

// Engine resolves reports into account-state changes
type Engine struct {
	store    repository.Store
	warnings *warning.Tracker
	ledger   *karma.Ledger
	notifier notify.Dispatcher
	mailer   notify.Mailer
	clock    clock.Clock
	logger   *slog.Logger
}

type Config struct {
	Store    repository.Store
	Warnings *warning.Tracker
	Ledger   *karma.Ledger
	Notifier notify.Dispatcher
	Mailer   notify.Mailer
	Clock    clock.Clock
	Logger   *slog.Logger
}

func NewEngine(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &Engine{
		store:    cfg.Store,
		warnings: cfg.Warnings,
		ledger:   cfg.Ledger,
		notifier: cfg.Notifier,
		mailer:   cfg.Mailer,
		clock:    clk,
		logger:   logger.With("component", "moderation"),
	}
}

type ResolveInput struct {
	ReportID     uuid.UUID
	ModeratorID  uuid.UUID
	Action       string
	DurationDays int
	Notes        string
}

// Resolution is the committed outcome of Resolve
type Resolution struct {
	Report         *models.Report        `json:"report"`
	Log            *models.ModerationLog `json:"moderation_log"`
	AutoBanLog     *models.ModerationLog `json:"auto_ban_log,omitempty"`
	Warning        *models.UserWarning   `json:"warning,omitempty"`
	ActiveWarnings int                   `json:"active_warnings"`
	NewKarma       int                   `json:"new_karma"`
	Target         *models.User          `json:"-"`
	action         Action
}

// Resolve commits a pending report to a terminal state and applies the
// action to the reported user. Every write happens in one unit of work: if any
// step fails nothing is persisted and the report stays pending. Notifications
// and email go out only after commit and never affect the result.
func (e *Engine) Resolve(ctx context.Context, in ResolveInput) (*Resolution, error) {
	action, err := ParseAction(in.Action, in.DurationDays)
	if err != nil {
		return nil, err
	}

	var notes *string
	if in.Notes != "" {
		n := in.Notes
		notes = &n
	}

	var res *Resolution
	err = e.store.WithTx(ctx, func(repos repository.Repositories) error {
		r, err := e.resolveIn(ctx, repos, in, action, notes)
		res = r
		return err
	})
	if err != nil {
		if apperr.Is(err, apperr.CodeConflict) {
			resolveConflicts.Inc()
		}
		return nil, err
	}

	resolutionCount.WithLabelValues(action.Name()).Inc()
	e.logger.Info("report resolved",
		"report_id", res.Report.ID,
		"moderator_id", in.ModeratorID,
		"target_user_id", res.Report.ReportedUserID,
		"action", action.Name(),
		"auto_banned", res.AutoBanLog != nil,
	)

	e.dispatch(context.WithoutCancel(ctx), res)
	return res, nil
}

func (e *Engine) resolveIn(ctx context.Context, repos repository.Repositories, in ResolveInput, action Action, notes *string) (*Resolution, error) {
	now := e.clock.Now()

	ok, err := repos.Reports.MarkResolved(ctx, in.ReportID, action.ReportStatus(), in.ModeratorID, now, notes)
	if err != nil {
		return nil, err
	}
	if !ok {
		if _, err := repos.Reports.GetByID(ctx, in.ReportID); err != nil {
			return nil, err
		}
		return nil, apperr.Conflict("report is no longer pending")
	}

	report, err := repos.Reports.GetByID(ctx, in.ReportID)
	if err != nil {
		return nil, err
	}

	target, err := repos.Users.GetForUpdate(ctx, report.ReportedUserID)
	if err != nil {
		return nil, err
	}

	reason := string(report.Reason)
	if notes != nil {
		reason = *notes
	}

	log := &models.ModerationLog{
		ID:           uuid.New(),
		ModeratorID:  in.ModeratorID,
		TargetUserID: target.ID,
		ReportID:     &report.ID,
		ActionType:   action.LogType(),
		Reason:       reason,
		Metadata: map[string]any{
			"action":        action.Name(),
			"report_reason": report.Reason,
		},
		CreatedAt: now,
	}
	if s, ok := action.(Suspend); ok {
		days := s.Days
		log.DurationDays = &days
	}
	if err := repos.Logs.Append(ctx, log); err != nil {
		return nil, err
	}

	res := &Resolution{Report: report, Log: log, action: action}

	switch a := action.(type) {
	case Warn:
		out, err := e.warnings.Issue(ctx, repos, target.ID, in.ModeratorID, reason, &report.ID)
		if err != nil {
			return nil, err
		}
		res.Warning = out.Warning
		res.ActiveWarnings = out.ActiveCount
		res.AutoBanLog = out.AutoBanLog
	case Suspend:
		until := now.Add(time.Duration(a.Days) * 24 * time.Hour)
		if err := repos.Users.SetSuspended(ctx, target.ID, until, notes); err != nil {
			return nil, err
		}
		if err := repos.Users.RevokeTokens(ctx, target.ID); err != nil {
			return nil, err
		}
	case Ban:
		if err := repos.Users.SetBanned(ctx, target.ID, notes); err != nil {
			return nil, err
		}
		if err := repos.Users.RevokeTokens(ctx, target.ID); err != nil {
			return nil, err
		}
	case Dismiss:
	default:
		return nil, apperr.Internal(fmt.Sprintf("unhandled action %T", action), nil)
	}

	if ev, ok := action.KarmaEvent(); ok {
		if _, err := e.ledger.ApplyIn(ctx, repos, target.ID, ev, nil); err != nil {
			return nil, err
		}
	}

	updated, err := repos.Users.GetByID(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	res.Target = updated
	res.NewKarma = updated.KarmaPoints
	return res, nil
}

func (e *Engine) dispatch(ctx context.Context, res *Resolution) {
	report := res.Report
	target := res.Target

	notify.BestEffort(ctx, e.logger, e.notifier, models.Notification{
		UserID: report.ReporterID,
		Type:   models.NotifyReportResolved,
		Payload: map[string]any{
			"report_id": report.ID,
			"status":    report.Status,
		},
	})

	for _, n := range targetNotices(res) {
		notify.BestEffort(ctx, e.logger, e.notifier, models.Notification{
			UserID:  target.ID,
			Type:    n.kind,
			Payload: n.payload,
		})
		if target.EmailVerified && n.template != "" {
			notify.BestEffortEmail(ctx, e.logger, e.mailer, models.Email{
				Template: n.template,
				To:       target.Email,
				Args:     mergeArgs(n.payload, map[string]any{"display_name": target.DisplayName}),
			})
		}
	}
}

type notice struct {
	kind     string
	template string
	payload  map[string]any
}

// targetNotices lists what the reported user is told. Dismissals are silent.
func targetNotices(res *Resolution) []notice {
	target := res.Target
	var out []notice

	switch a := res.action.(type) {
	case Warn:
		out = append(out, notice{
			kind:     models.NotifyUserWarned,
			template: models.EmailAccountWarned,
			payload: map[string]any{
				"reason":          res.Log.Reason,
				"active_warnings": res.ActiveWarnings,
				"expires_at":      res.Warning.ExpiresAt,
			},
		})
		if res.AutoBanLog != nil {
			out = append(out, notice{
				kind:     models.NotifyUserBanned,
				template: models.EmailAccountBanned,
				payload:  map[string]any{"reason": warning.AutoBanReason},
			})
		}
	case Suspend:
		payload := map[string]any{"days": a.Days, "reason": res.Log.Reason}
		if target.SuspendedUntil != nil {
			payload["until"] = *target.SuspendedUntil
		}
		out = append(out, notice{
			kind:     models.NotifyUserSuspended,
			template: models.EmailAccountSuspended,
			payload:  payload,
		})
	case Ban:
		out = append(out, notice{
			kind:     models.NotifyUserBanned,
			template: models.EmailAccountBanned,
			payload:  map[string]any{"reason": res.Log.Reason},
		})
	}
	return out
}

func mergeArgs(a, b map[string]any) map[string]any {
	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Logs returns the audit trail for a user, newest first
func (e *Engine) Logs(ctx context.Context, userID uuid.UUID, limit int) ([]models.ModerationLog, error) {
	return e.store.Repos().Logs.ListByTarget(ctx, userID, limit)
}

// ReportLogs returns the audit entries written while resolving a report
func (e *Engine) ReportLogs(ctx context.Context, reportID uuid.UUID) ([]models.ModerationLog, error) {
	return e.store.Repos().Logs.ListByReport(ctx, reportID)
}
