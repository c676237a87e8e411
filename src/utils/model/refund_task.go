package model

import (
	"database/sql"
	"time"
)

const (
	TableRefundTask = "refund_tasks"
)

type RefundTask struct {
	MatchAddress string `gorm:"primaryKey"`

	// Unix time after which the refund is due
	Deadline int64

	ScheduledAt time.Time

	// Match got terminated some other way
	CanceledAt sql.NullTime

	// Refund transaction got submitted
	ExecutedAt          sql.NullTime
	ExecutedTransaction sql.NullString

	// Retrying stopped after the grace period
	FailedAt sql.NullTime

	// Submission bookkeeping
	Attempts  int
	LastError string
}

func (RefundTask) TableName() string {
	return TableRefundTask
}

func (self *RefundTask) IsPending() bool {
	return !self.CanceledAt.Valid && !self.ExecutedAt.Valid && !self.FailedAt.Valid
}

func (self *RefundTask) DeadlineTime() time.Time {
	return time.Unix(self.Deadline, 0)
}
