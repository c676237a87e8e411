package model

import (
	"time"

	"github.com/jackc/pgtype"
)

const (
	TableEvent = "events"
)

type EventKind string

const (
	EventKindCreated  EventKind = "Created"
	EventKindJoined   EventKind = "Joined"
	EventKindResolved EventKind = "Resolved"
	EventKindRefunded EventKind = "Refunded"
)

// Immutable fact emitted by the wager program, stored once per (signature, index)
type Event struct {
	// Transaction signature
	Signature string `gorm:"primaryKey"`

	// Ordinal of the event within the transaction, 0 for single event transactions
	Index int `gorm:"primaryKey;column:event_index"`

	Slot         uint64
	Kind         EventKind
	MatchAddress string

	// Decoded event data
	Payload pgtype.JSONB `gorm:"type:jsonb"`

	ObservedAt time.Time
}

func (Event) TableName() string {
	return TableEvent
}
