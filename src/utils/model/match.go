package model

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
	"golang.org/x/exp/slices"
)

const (
	TableMatch = "matches"
)

type MatchStatus string

const (
	MatchStatusWaiting            MatchStatus = "Waiting"
	MatchStatusAwaitingRandomness MatchStatus = "AwaitingRandomness"
	MatchStatusResolved           MatchStatus = "Resolved"
	MatchStatusRefunded           MatchStatus = "Refunded"
)

// Statuses that have a deadline and may be refunded after it passes
var DeadlineStatuses = []MatchStatus{MatchStatusWaiting, MatchStatusAwaitingRandomness}

func (self MatchStatus) IsTerminal() bool {
	return self == MatchStatusResolved || self == MatchStatusRefunded
}

func (self MatchStatus) HasDeadline() bool {
	return slices.Contains(DeadlineStatuses, self)
}

type Match struct {
	// On-chain address of the match account
	Address string `gorm:"primaryKey"`

	Creator string

	// Creator first, then whoever joined
	Players pq.StringArray `gorm:"type:text[]"`

	Game          string
	Mode          string
	StakeLamports uint64
	IsPrivate     bool

	Status MatchStatus

	// Unix time after which an unresolved match can be refunded
	Deadline int64

	// Set after the match is resolved
	WinnerSide   sql.NullInt16
	Winner       sql.NullString
	PayoutAmount sql.NullInt64

	// Verifiable randomness account used to pick the winner
	RandomnessAccount sql.NullString

	// Transactions
	CreateTx sql.NullString
	JoinTx   sql.NullString
	PayoutTx sql.NullString
	RefundTx sql.NullString

	// Lifecycle
	CreatedAt  time.Time
	JoinedAt   sql.NullTime
	ResolvedAt sql.NullTime
	RefundedAt sql.NullTime
	UpdatedAt  time.Time

	// Incremented on every update, used for conditional writes
	Version int64
}

func (Match) TableName() string {
	return TableMatch
}

// Deep copy, safe to modify without touching the original
func (self *Match) Clone() *Match {
	out := *self
	out.Players = append(pq.StringArray(nil), self.Players...)
	return &out
}

func (self *Match) DeadlineTime() time.Time {
	return time.Unix(self.Deadline, 0)
}
