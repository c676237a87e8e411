package model

const (
	TableSyncState = "sync_state"
)

type SyncedComponent string

const (
	SyncedComponentIndexer    SyncedComponent = "Indexer"
	SyncedComponentReconciler SyncedComponent = "Reconciler"
)

// Ingestion checkpoint, one row per synced component
type SyncState struct {
	Name SyncedComponent `gorm:"primaryKey"`

	// Highest slot of a fully applied event
	FinishedSlot uint64

	// Incremented on every update
	Version int64
}

func (SyncState) TableName() string {
	return TableSyncState
}
