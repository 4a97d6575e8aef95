package models

import (
	"time"

	"github.com/google/uuid"
)

type ReportReason string

const (
	ReasonSpam                 ReportReason = "spam"
	ReasonHarassment           ReportReason = "harassment"
	ReasonInappropriateContent ReportReason = "inappropriate_content"
	ReasonFakeProfile          ReportReason = "fake_profile"
	ReasonOther                ReportReason = "other"
)

func (r ReportReason) Valid() bool {
	switch r {
	case ReasonSpam, ReasonHarassment, ReasonInappropriateContent, ReasonFakeProfile, ReasonOther:
		return true
	}
	return false
}

type ReportStatus string

const (
	StatusPending   ReportStatus = "pending"
	StatusResolved  ReportStatus = "resolved"
	StatusDismissed ReportStatus = "dismissed"
)

func (s ReportStatus) Valid() bool {
	switch s {
	case StatusPending, StatusResolved, StatusDismissed:
		return true
	}
	return false
}

// Terminal statuses are never left once reached.
func (s ReportStatus) Terminal() bool {
	return s == StatusResolved || s == StatusDismissed
}

type ReportPriority string

const (
	PriorityLow    ReportPriority = "low"
	PriorityMedium ReportPriority = "medium"
	PriorityHigh   ReportPriority = "high"
	PriorityUrgent ReportPriority = "urgent"
)

func (p ReportPriority) Valid() bool {
	return p.Rank() > 0
}

// Rank orders priorities for the moderation queue, urgent highest.
func (p ReportPriority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityUrgent:
		return 4
	}
	return 0
}

type Report struct {
	ID                uuid.UUID      `json:"id" db:"id"`
	ReporterID        uuid.UUID      `json:"reporter_id" db:"reporter_id"`
	ReportedUserID    uuid.UUID      `json:"reported_user_id" db:"reported_user_id"`
	ReportedGroupID   *uuid.UUID     `json:"reported_group_id,omitempty" db:"reported_group_id"`
	ReportedMessageID *uuid.UUID     `json:"reported_message_id,omitempty" db:"reported_message_id"`
	Reason            ReportReason   `json:"reason" db:"reason"`
	Description       string         `json:"description" db:"description"`
	EvidenceURL       *string        `json:"evidence_url,omitempty" db:"evidence_url"`
	Status            ReportStatus   `json:"status" db:"status"`
	Priority          ReportPriority `json:"priority" db:"priority"`
	ResolvedBy        *uuid.UUID     `json:"resolved_by,omitempty" db:"resolved_by"`
	ResolvedAt        *time.Time     `json:"resolved_at,omitempty" db:"resolved_at"`
	ResolutionNotes   *string        `json:"resolution_notes,omitempty" db:"resolution_notes"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at" db:"updated_at"`
}

// ReportFilter narrows the moderation queue
type ReportFilter struct {
	Status         *ReportStatus
	Priority       *ReportPriority
	ReportedUserID *uuid.UUID
	Limit          int
	Offset         int
}

type CreateReportRequest struct {
	ReportedUserID    uuid.UUID  `json:"reported_user_id" binding:"required"`
	ReportedGroupID   *uuid.UUID `json:"reported_group_id,omitempty"`
	ReportedMessageID *uuid.UUID `json:"reported_message_id,omitempty"`
	Reason            string     `json:"reason" binding:"required"`
	Description       string     `json:"description" binding:"required,max=2000"`
	EvidenceURL       *string    `json:"evidence_url,omitempty" binding:"omitempty,url"`
	Priority          *string    `json:"priority,omitempty"`
}

type ResolveReportRequest struct {
	Action       string `json:"action" binding:"required"`
	DurationDays int    `json:"duration_days,omitempty"`
	Notes        string `json:"notes,omitempty" binding:"max=2000"`
}
