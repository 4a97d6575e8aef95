package models

import (
	"time"

	"github.com/google/uuid"
)

type ActionType string

const (
	ActionWarn          ActionType = "warn"
	ActionSuspend       ActionType = "suspend"
	ActionUnsuspend     ActionType = "unsuspend"
	ActionBan           ActionType = "ban"
	ActionUnban         ActionType = "unban"
	ActionRoleChange    ActionType = "role_change"
	ActionPasswordReset ActionType = "password_reset"
	ActionGroupApproved ActionType = "group_approved"
	ActionGroupRejected ActionType = "group_rejected"
	ActionDeleteContent ActionType = "delete_content"
	ActionDismissReport ActionType = "dismiss_report"
)

func (a ActionType) Valid() bool {
	switch a {
	case ActionWarn, ActionSuspend, ActionUnsuspend, ActionBan, ActionUnban,
		ActionRoleChange, ActionPasswordReset, ActionGroupApproved,
		ActionGroupRejected, ActionDeleteContent, ActionDismissReport:
		return true
	}
	return false
}

// AutoBanReason is the log reason recorded when a ban is produced by warning
// accumulation rather than by a moderator.
const AutoBanReason = "auto"

// ModerationLog is the append-only audit record of a moderation outcome
type ModerationLog struct {
	ID           uuid.UUID      `json:"id" db:"id"`
	ModeratorID  uuid.UUID      `json:"moderator_id" db:"moderator_id"`
	TargetUserID uuid.UUID      `json:"target_user_id" db:"target_user_id"`
	ReportID     *uuid.UUID     `json:"report_id,omitempty" db:"report_id"`
	ActionType   ActionType     `json:"action_type" db:"action_type"`
	DurationDays *int           `json:"duration_days,omitempty" db:"duration_days"`
	Reason       string         `json:"reason" db:"reason"`
	Metadata     map[string]any `json:"metadata,omitempty" db:"metadata"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
}

// UserWarning is a time-boxed mark. It is never edited; it ages out.
type UserWarning struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	WarnedBy  uuid.UUID `json:"warned_by" db:"warned_by"`
	Reason    string    `json:"reason" db:"reason"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Active reports whether the warning still counts at now.
func (w UserWarning) Active(now time.Time) bool {
	return w.ExpiresAt.After(now)
}
