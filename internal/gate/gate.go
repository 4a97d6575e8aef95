// Package gate decides whether an account may currently act. Evaluation is a
// pure comparison of the user's trust fields against "now": suspensions lift
// by time passing alone, with no write and no background sweep.
package gate

import (
	"time"

	"github.com/tullo/trust/internal/models"
)

const (
	ReasonBanned    = "banned"
	ReasonSuspended = "suspended"
)

// Decision is the outcome of Evaluate. Until is set only for suspensions.
type Decision struct {
	Allowed bool       `json:"allowed"`
	Reason  string     `json:"reason,omitempty"`
	Detail  string     `json:"detail,omitempty"`
	Until   *time.Time `json:"until,omitempty"`
}

func Evaluate(user *models.User, now time.Time) Decision {
	if user.Banned {
		d := Decision{Reason: ReasonBanned}
		if user.BannedReason != nil {
			d.Detail = *user.BannedReason
		}
		return d
	}

	if user.SuspendedUntil != nil && now.Before(*user.SuspendedUntil) {
		until := *user.SuspendedUntil
		d := Decision{Reason: ReasonSuspended, Until: &until}
		if user.SuspensionReason != nil {
			d.Detail = *user.SuspensionReason
		}
		return d
	}

	return Decision{Allowed: true}
}
