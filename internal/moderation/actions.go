package moderation

import (
	"fmt"
	"strings"

	"github.com/tullo/trust/internal/apperr"
	"github.com/tullo/trust/internal/karma"
	"github.com/tullo/trust/internal/models"
)

// Action is a resolution outcome. The variants are Warn, Suspend, Ban and
// Dismiss; each carries its log type, report status and karma event as data.
type Action interface {
	Name() string
	LogType() models.ActionType
	ReportStatus() models.ReportStatus
	KarmaEvent() (models.KarmaEventType, bool)
	isAction()
}

type Warn struct{}

func (Warn) Name() string { return "warn" }
func (Warn) LogType() models.ActionType { return models.ActionWarn }
func (Warn) ReportStatus() models.ReportStatus { return models.StatusResolved }
func (Warn) KarmaEvent() (models.KarmaEventType, bool) { return models.KarmaWarning, true }
func (Warn) isAction() {}

// Suspend denies access for Days days (3, 7 or 30)
type Suspend struct {
	Days int
}

func (s Suspend) Name() string { return fmt.Sprintf("suspend_%dd", s.Days) }
func (Suspend) LogType() models.ActionType { return models.ActionSuspend }
func (Suspend) ReportStatus() models.ReportStatus { return models.StatusResolved }
func (s Suspend) KarmaEvent() (models.KarmaEventType, bool) { return karma.SuspensionEvent(s.Days) }
func (Suspend) isAction() {}

type Ban struct{}

func (Ban) Name() string { return "ban" }
func (Ban) LogType() models.ActionType { return models.ActionBan }
func (Ban) ReportStatus() models.ReportStatus { return models.StatusResolved }
func (Ban) KarmaEvent() (models.KarmaEventType, bool) { return models.KarmaBanned, true }
func (Ban) isAction() {}

type Dismiss struct{}

func (Dismiss) Name() string { return "dismiss" }
func (Dismiss) LogType() models.ActionType { return models.ActionDismissReport }
func (Dismiss) ReportStatus() models.ReportStatus { return models.StatusDismissed }
func (Dismiss) KarmaEvent() (models.KarmaEventType, bool) { return "", false }
func (Dismiss) isAction() {}

// ParseAction maps a requested resolution to its variant. durationDays is
// only read for a bare "suspend". Unknown names are rejected.
func ParseAction(name string, durationDays int) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "warn":
		return Warn{}, nil
	case "suspend":
		return newSuspend(durationDays)
	case "suspend_3d":
		return Suspend{Days: 3}, nil
	case "suspend_7d":
		return Suspend{Days: 7}, nil
	case "suspend_30d":
		return Suspend{Days: 30}, nil
	case "ban":
		return Ban{}, nil
	case "dismiss", "no_action":
		return Dismiss{}, nil
	}
	return nil, apperr.Validation(fmt.Sprintf("unknown resolution action %q", name))
}

func newSuspend(days int) (Action, error) {
	if _, ok := karma.SuspensionEvent(days); !ok {
		return nil, apperr.Validation("suspension must be 3, 7 or 30 days")
	}
	return Suspend{Days: days}, nil
}
