package models

import (
	"time"

	"github.com/google/uuid"
)

type KarmaEventType string

const (
	KarmaCreateGroup        KarmaEventType = "create_group"
	KarmaJoinGroup          KarmaEventType = "join_group"
	KarmaLeaderGainedMember KarmaEventType = "leader_gained_member"
	KarmaCreateEvent        KarmaEventType = "create_event"
	KarmaUploadFile         KarmaEventType = "upload_file"
	KarmaSendMessage        KarmaEventType = "send_message"
	KarmaGoodRating         KarmaEventType = "good_rating"

	KarmaBanned           KarmaEventType = "banned"
	KarmaSuspended30d     KarmaEventType = "suspended_30d"
	KarmaSuspended7d      KarmaEventType = "suspended_7d"
	KarmaKickedFromGroup  KarmaEventType = "kicked_from_group"
	KarmaWarning          KarmaEventType = "warning"
	KarmaSuspended3d      KarmaEventType = "suspended_3d"
	KarmaLeaderLostMember KarmaEventType = "leader_lost_member"
	KarmaLeaveGroup       KarmaEventType = "leave_group"
	KarmaBadRating        KarmaEventType = "bad_rating"
)

// KarmaEvent is one row of the append-only karma ledger. BalanceAfter is the
// materialised balance right after Delta was applied.
type KarmaEvent struct {
	ID           uuid.UUID      `json:"id" db:"id"`
	UserID       uuid.UUID      `json:"user_id" db:"user_id"`
	EventType    KarmaEventType `json:"event_type" db:"event_type"`
	Delta        int            `json:"delta" db:"delta"`
	BalanceAfter int            `json:"balance_after" db:"balance_after"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
}

type ApplyKarmaRequest struct {
	UserID    uuid.UUID `json:"user_id" binding:"required"`
	EventType string    `json:"event_type" binding:"required"`
	Magnitude *int      `json:"magnitude,omitempty"`
}
