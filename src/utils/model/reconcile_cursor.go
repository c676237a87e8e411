package model

import "database/sql"

const (
	TableReconcileCursor = "reconcile_cursor"
)

// Progress of the reconciliation pass, which may take several runs.
// A pass pages signatures newest first from the top of the ledger down to Floor.
type ReconcileCursor struct {
	Name SyncedComponent `gorm:"primaryKey"`

	// Oldest signature read so far, paging continues before it.
	// Empty when no pass is in progress.
	Before string

	// Lowest slot of the current pass
	Floor uint64

	// Runs spent on the current pass
	Runs int

	// Current pass repeats the range of the previous one
	IsRescan bool

	// Floor for the next pass. Set when a pass spanned several runs,
	// events deferred in its first runs are picked up by the rescan.
	RescanFloor sql.NullInt64
}

func (ReconcileCursor) TableName() string {
	return TableReconcileCursor
}

func (self *ReconcileCursor) InProgress() bool {
	return self.Before != ""
}
