package models

import "github.com/google/uuid"

// Notification types sent to the external dispatcher
const (
	NotifyNewReport      = "new_report"
	NotifyReportResolved = "report_resolved"
	NotifyUserWarned     = "user_warned"
	NotifyUserSuspended  = "user_suspended"
	NotifyUserBanned     = "user_banned"
)

// Email templates handed to the external mailer
const (
	EmailAccountWarned    = "account_warned"
	EmailAccountSuspended = "account_suspended"
	EmailAccountBanned    = "account_banned"
)

type Notification struct {
	UserID  uuid.UUID      `json:"user_id"`
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

type Email struct {
	Template string         `json:"template"`
	To       string         `json:"to"`
	Args     map[string]any `json:"args,omitempty"`
}
