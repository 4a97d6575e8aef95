package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
	RoleService   = "service"
)

// User is the slice of the account record the engine reads and writes. Trust
// fields are owned by this engine; the rest belongs to the user directory.
type User struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Email         string    `json:"email" db:"email"`
	DisplayName   string    `json:"display_name" db:"display_name"`
	EmailVerified bool      `json:"email_verified" db:"email_verified"`
	Role          string    `json:"role" db:"role"`
	TokenVersion  int       `json:"-" db:"token_version"`

	Banned           bool       `json:"banned" db:"banned"`
	BannedReason     *string    `json:"banned_reason,omitempty" db:"banned_reason"`
	SuspendedUntil   *time.Time `json:"suspended_until,omitempty" db:"suspended_until"`
	SuspensionReason *string    `json:"suspension_reason,omitempty" db:"suspension_reason"`
	Warnings         int        `json:"warnings" db:"warnings"` // cached, display only
	KarmaPoints      int        `json:"karma_points" db:"karma_points"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsModerator reports whether the user may act on reports
func (u *User) IsModerator() bool {
	return u.Role == RoleModerator || u.Role == RoleAdmin
}
