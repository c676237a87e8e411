package report

import (
	"go.uber.org/atomic"
)

type IndexerErrors struct {
	ApplyRetries        atomic.Uint64 `json:"apply_retries"`
	ApplyFailures       atomic.Uint64 `json:"apply_failures"`
	ReconcileFailures   atomic.Uint64 `json:"reconcile_failures"`
	TransactionDownload atomic.Uint64 `json:"transaction_download"`
	Checkpoint          atomic.Uint64 `json:"checkpoint"`
}

type IndexerState struct {
	// Last persisted checkpoint
	FinishedSlot atomic.Uint64 `json:"finished_slot"`

	// Ledger height seen during the last reconciliation
	CurrentSlot atomic.Uint64 `json:"current_slot"`
	SlotsBehind atomic.Int64  `json:"slots_behind"`

	EventsQueued      atomic.Uint64 `json:"events_queued"`
	EventsApplied     atomic.Uint64 `json:"events_applied"`
	EventsDuplicated  atomic.Uint64 `json:"events_duplicated"`
	EventsDiscarded   atomic.Uint64 `json:"events_discarded"`
	EventsDeferred    atomic.Uint64 `json:"events_deferred"`
	EventsUndecodable atomic.Uint64 `json:"events_undecodable"`

	AverageEventsAppliedPerMinute atomic.Float64 `json:"average_events_applied_per_minute"`

	ReconcileRuns          atomic.Uint64 `json:"reconcile_runs"`
	ReconcileSignatures    atomic.Uint64 `json:"reconcile_signatures"`
	TransactionsDownloaded atomic.Uint64 `json:"transactions_downloaded"`
	LastReconcileTimestamp atomic.Int64  `json:"last_reconcile_timestamp"`

	NotificationsDropped atomic.Uint64 `json:"notifications_dropped"`
}

type IndexerReport struct {
	State  IndexerState  `json:"state"`
	Errors IndexerErrors `json:"errors"`
}
