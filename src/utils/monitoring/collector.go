package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Collector struct {
	monitor *Monitor

	// Run
	UpForSeconds *prometheus.Desc

	// Indexer
	FinishedSlot                  *prometheus.Desc
	SlotsBehind                   *prometheus.Desc
	EventsApplied                 *prometheus.Desc
	EventsDuplicated              *prometheus.Desc
	EventsDiscarded               *prometheus.Desc
	EventsDeferred                *prometheus.Desc
	EventsUndecodable             *prometheus.Desc
	AverageEventsAppliedPerMinute *prometheus.Desc
	ReconcileRuns                 *prometheus.Desc
	TransactionsDownloaded        *prometheus.Desc
	NotificationsDropped          *prometheus.Desc

	// Subscriber
	SubscriberConnected *prometheus.Desc
	LogsReceived        *prometheus.Desc

	// Refunder
	RefundsExecuted *prometheus.Desc
	RefundsCanceled *prometheus.Desc
	RefundsOverdue  *prometheus.Desc

	// Pool
	PoolAccounts       *prometheus.Desc
	PoolCapacityErrors *prometheus.Desc
	PoolConflicts      *prometheus.Desc
	PoolInvalidated    *prometheus.Desc

	// Publisher
	MessagesPublished *prometheus.Desc

	// Errors
	ApplyFailures       *prometheus.Desc
	ReconcileFailures   *prometheus.Desc
	TransactionDownload *prometheus.Desc
	RefundSubmit        *prometheus.Desc
	PoolProvision       *prometheus.Desc
	PoolCommit          *prometheus.Desc
	PoolVerify          *prometheus.Desc
	Publish             *prometheus.Desc
}

func NewCollector() *Collector {
	labels := prometheus.Labels{
		"app": "arena-syncer",
	}

	return &Collector{
		UpForSeconds: prometheus.NewDesc("up_for_seconds", "", nil, labels),

		FinishedSlot:                  prometheus.NewDesc("indexer_finished_slot", "", nil, labels),
		SlotsBehind:                   prometheus.NewDesc("indexer_slots_behind", "", nil, labels),
		EventsApplied:                 prometheus.NewDesc("indexer_events_applied", "", nil, labels),
		EventsDuplicated:              prometheus.NewDesc("indexer_events_duplicated", "", nil, labels),
		EventsDiscarded:               prometheus.NewDesc("indexer_events_discarded", "", nil, labels),
		EventsDeferred:                prometheus.NewDesc("indexer_events_deferred", "", nil, labels),
		EventsUndecodable:             prometheus.NewDesc("indexer_events_undecodable", "", nil, labels),
		AverageEventsAppliedPerMinute: prometheus.NewDesc("indexer_average_events_applied_per_minute", "", nil, labels),
		ReconcileRuns:                 prometheus.NewDesc("indexer_reconcile_runs", "", nil, labels),
		TransactionsDownloaded:        prometheus.NewDesc("indexer_transactions_downloaded", "", nil, labels),
		NotificationsDropped:          prometheus.NewDesc("indexer_notifications_dropped", "", nil, labels),

		SubscriberConnected: prometheus.NewDesc("subscriber_connected", "", nil, labels),
		LogsReceived:        prometheus.NewDesc("subscriber_logs_received", "", nil, labels),

		RefundsExecuted: prometheus.NewDesc("refunder_executed", "", nil, labels),
		RefundsCanceled: prometheus.NewDesc("refunder_canceled", "", nil, labels),
		RefundsOverdue:  prometheus.NewDesc("refunder_overdue", "", nil, labels),

		PoolAccounts:       prometheus.NewDesc("pool_accounts", "", []string{"status"}, labels),
		PoolCapacityErrors: prometheus.NewDesc("pool_capacity_errors", "", nil, labels),
		PoolConflicts:      prometheus.NewDesc("pool_conflicts", "", nil, labels),
		PoolInvalidated:    prometheus.NewDesc("pool_invalidated", "", nil, labels),

		MessagesPublished: prometheus.NewDesc("publisher_messages_published", "", nil, labels),

		// Errors
		ApplyFailures:       prometheus.NewDesc("error_apply", "", nil, labels),
		ReconcileFailures:   prometheus.NewDesc("error_reconcile", "", nil, labels),
		TransactionDownload: prometheus.NewDesc("error_tx_download", "", nil, labels),
		RefundSubmit:        prometheus.NewDesc("error_refund_submit", "", nil, labels),
		PoolProvision:       prometheus.NewDesc("error_pool_provision", "", nil, labels),
		PoolCommit:          prometheus.NewDesc("error_pool_commit", "", nil, labels),
		PoolVerify:          prometheus.NewDesc("error_pool_verify", "", nil, labels),
		Publish:             prometheus.NewDesc("error_publish", "", nil, labels),
	}
}

func (self *Collector) WithMonitor(m *Monitor) *Collector {
	self.monitor = m
	return self
}

func (self *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- self.UpForSeconds

	ch <- self.FinishedSlot
	ch <- self.SlotsBehind
	ch <- self.EventsApplied
	ch <- self.EventsDuplicated
	ch <- self.EventsDiscarded
	ch <- self.EventsDeferred
	ch <- self.EventsUndecodable
	ch <- self.AverageEventsAppliedPerMinute
	ch <- self.ReconcileRuns
	ch <- self.TransactionsDownloaded
	ch <- self.NotificationsDropped

	ch <- self.SubscriberConnected
	ch <- self.LogsReceived

	ch <- self.RefundsExecuted
	ch <- self.RefundsCanceled
	ch <- self.RefundsOverdue

	ch <- self.PoolAccounts
	ch <- self.PoolCapacityErrors
	ch <- self.PoolConflicts
	ch <- self.PoolInvalidated

	ch <- self.MessagesPublished

	// Errors
	ch <- self.ApplyFailures
	ch <- self.ReconcileFailures
	ch <- self.TransactionDownload
	ch <- self.RefundSubmit
	ch <- self.PoolProvision
	ch <- self.PoolCommit
	ch <- self.PoolVerify
	ch <- self.Publish
}

func boolToFloat(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

// Collect implements required collect function for all prometheus collectors
func (self *Collector) Collect(ch chan<- prometheus.Metric) {
	r := &self.monitor.Report
	self.monitor.fill()

	ch <- prometheus.MustNewConstMetric(self.UpForSeconds, prometheus.GaugeValue, float64(r.Run.State.UpForSeconds.Load()))

	ch <- prometheus.MustNewConstMetric(self.FinishedSlot, prometheus.GaugeValue, float64(r.Indexer.State.FinishedSlot.Load()))
	ch <- prometheus.MustNewConstMetric(self.SlotsBehind, prometheus.GaugeValue, float64(r.Indexer.State.SlotsBehind.Load()))
	ch <- prometheus.MustNewConstMetric(self.EventsApplied, prometheus.CounterValue, float64(r.Indexer.State.EventsApplied.Load()))
	ch <- prometheus.MustNewConstMetric(self.EventsDuplicated, prometheus.CounterValue, float64(r.Indexer.State.EventsDuplicated.Load()))
	ch <- prometheus.MustNewConstMetric(self.EventsDiscarded, prometheus.CounterValue, float64(r.Indexer.State.EventsDiscarded.Load()))
	ch <- prometheus.MustNewConstMetric(self.EventsDeferred, prometheus.CounterValue, float64(r.Indexer.State.EventsDeferred.Load()))
	ch <- prometheus.MustNewConstMetric(self.EventsUndecodable, prometheus.CounterValue, float64(r.Indexer.State.EventsUndecodable.Load()))
	ch <- prometheus.MustNewConstMetric(self.AverageEventsAppliedPerMinute, prometheus.GaugeValue, r.Indexer.State.AverageEventsAppliedPerMinute.Load())
	ch <- prometheus.MustNewConstMetric(self.ReconcileRuns, prometheus.CounterValue, float64(r.Indexer.State.ReconcileRuns.Load()))
	ch <- prometheus.MustNewConstMetric(self.TransactionsDownloaded, prometheus.CounterValue, float64(r.Indexer.State.TransactionsDownloaded.Load()))
	ch <- prometheus.MustNewConstMetric(self.NotificationsDropped, prometheus.CounterValue, float64(r.Indexer.State.NotificationsDropped.Load()))

	ch <- prometheus.MustNewConstMetric(self.SubscriberConnected, prometheus.GaugeValue, boolToFloat(r.Subscriber.State.IsConnected.Load()))
	ch <- prometheus.MustNewConstMetric(self.LogsReceived, prometheus.CounterValue, float64(r.Subscriber.State.LogsReceived.Load()))

	ch <- prometheus.MustNewConstMetric(self.RefundsExecuted, prometheus.CounterValue, float64(r.Refunder.State.Executed.Load()))
	ch <- prometheus.MustNewConstMetric(self.RefundsCanceled, prometheus.CounterValue, float64(r.Refunder.State.Canceled.Load()))
	ch <- prometheus.MustNewConstMetric(self.RefundsOverdue, prometheus.CounterValue, float64(r.Refunder.State.Overdue.Load()))

	ch <- prometheus.MustNewConstMetric(self.PoolAccounts, prometheus.GaugeValue, float64(r.Pool.State.Available.Load()), "available")
	ch <- prometheus.MustNewConstMetric(self.PoolAccounts, prometheus.GaugeValue, float64(r.Pool.State.InUse.Load()), "in_use")
	ch <- prometheus.MustNewConstMetric(self.PoolAccounts, prometheus.GaugeValue, float64(r.Pool.State.Cooldown.Load()), "cooldown")
	ch <- prometheus.MustNewConstMetric(self.PoolAccounts, prometheus.GaugeValue, float64(r.Pool.State.Invalid.Load()), "invalid")
	ch <- prometheus.MustNewConstMetric(self.PoolCapacityErrors, prometheus.CounterValue, float64(r.Pool.State.CapacityErrors.Load()))
	ch <- prometheus.MustNewConstMetric(self.PoolConflicts, prometheus.CounterValue, float64(r.Pool.State.Conflicts.Load()))
	ch <- prometheus.MustNewConstMetric(self.PoolInvalidated, prometheus.CounterValue, float64(r.Pool.State.Invalidated.Load()))

	ch <- prometheus.MustNewConstMetric(self.MessagesPublished, prometheus.CounterValue, float64(r.Publisher.State.MessagesPublished.Load()))

	// Errors
	ch <- prometheus.MustNewConstMetric(self.ApplyFailures, prometheus.CounterValue, float64(r.Indexer.Errors.ApplyFailures.Load()))
	ch <- prometheus.MustNewConstMetric(self.ReconcileFailures, prometheus.CounterValue, float64(r.Indexer.Errors.ReconcileFailures.Load()))
	ch <- prometheus.MustNewConstMetric(self.TransactionDownload, prometheus.CounterValue, float64(r.Indexer.Errors.TransactionDownload.Load()))
	ch <- prometheus.MustNewConstMetric(self.RefundSubmit, prometheus.CounterValue, float64(r.Refunder.Errors.Submit.Load()))
	ch <- prometheus.MustNewConstMetric(self.PoolProvision, prometheus.CounterValue, float64(r.Pool.Errors.Provision.Load()))
	ch <- prometheus.MustNewConstMetric(self.PoolCommit, prometheus.CounterValue, float64(r.Pool.Errors.Commit.Load()))
	ch <- prometheus.MustNewConstMetric(self.PoolVerify, prometheus.CounterValue, float64(r.Pool.Errors.Verify.Load()))
	ch <- prometheus.MustNewConstMetric(self.Publish, prometheus.CounterValue, float64(r.Publisher.Errors.Publish.Load()))
}
