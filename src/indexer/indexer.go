package indexer

import (
	"github.com/arena-labs/syncer/src/utils/config"
	"github.com/arena-labs/syncer/src/utils/monitoring"
	"github.com/arena-labs/syncer/src/utils/notify"
	"github.com/arena-labs/syncer/src/utils/program"
	"github.com/arena-labs/syncer/src/utils/repository"
	"github.com/arena-labs/syncer/src/utils/task"
)

// Keeps match state in sync with the program.
// Events come from the log subscription and from periodic reconciliation, both feed the same applier.
type Indexer struct {
	*task.Task

	Applier    *Applier
	Reconciler *Reconciler
	Listener   *Listener
}

func NewIndexer(config *config.Config) (self *Indexer) {
	self = new(Indexer)

	self.Applier = NewApplier(config)

	self.Reconciler = NewReconciler(config).
		WithSink(self.Applier)

	// Gaps left by a dropped connection are filled right after reconnecting
	self.Listener = NewListener(config).
		WithSink(self.Applier).
		WithOnConnected(self.Reconciler.Trigger)

	self.Task = task.NewTask(config, "indexer").
		WithSubtask(self.Applier.Task).
		WithSubtask(self.Reconciler.Task).
		WithSubtask(self.Listener.Task)

	return
}

func (self *Indexer) WithStore(v repository.Store) *Indexer {
	self.Applier.WithStore(v)
	self.Reconciler.WithStore(v)
	return self
}

func (self *Indexer) WithParser(v *program.Parser) *Indexer {
	self.Reconciler.WithParser(v)
	self.Listener.WithParser(v)
	return self
}

func (self *Indexer) WithLedger(v Ledger) *Indexer {
	self.Reconciler.WithLedger(v)
	return self
}

func (self *Indexer) WithPool(v RandomnessAssigner) *Indexer {
	self.Applier.WithPool(v)
	return self
}

func (self *Indexer) WithBroadcaster(v *notify.Broadcaster) *Indexer {
	self.Applier.WithBroadcaster(v)
	return self
}

func (self *Indexer) WithMonitor(v *monitoring.Monitor) *Indexer {
	self.Applier.WithMonitor(v)
	self.Reconciler.WithMonitor(v)
	self.Listener.WithMonitor(v)
	return self
}
