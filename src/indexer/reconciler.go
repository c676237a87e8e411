package indexer

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/arena-labs/syncer/src/utils/config"
	"github.com/arena-labs/syncer/src/utils/model"
	"github.com/arena-labs/syncer/src/utils/monitoring"
	"github.com/arena-labs/syncer/src/utils/monitoring/report"
	"github.com/arena-labs/syncer/src/utils/program"
	"github.com/arena-labs/syncer/src/utils/repository"
	"github.com/arena-labs/syncer/src/utils/solana"
	"github.com/arena-labs/syncer/src/utils/task"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/xid"
)

type Ledger interface {
	GetSlot(ctx context.Context) (uint64, error)
	GetSignaturesForAddress(ctx context.Context, address string, opts solana.SignaturesOpts) ([]*solana.SignatureInfo, error)
	GetTransaction(ctx context.Context, signature string) (*solana.Transaction, error)
}

// Pull path: finds program transactions missed by the subscription and feeds their events to the sink
type Reconciler struct {
	*task.Task

	ledger Ledger
	parser *program.Parser
	store  repository.Store
	sink   EventSink
	report *report.IndexerReport

	// Runs reconciliation before the next period
	trigger task.Trigger
}

func NewReconciler(config *config.Config) (self *Reconciler) {
	self = new(Reconciler)
	self.report = &report.IndexerReport{}
	self.trigger = task.NewTrigger()

	self.Task = task.NewTask(config, "reconciler").
		WithTriggeredSubtaskFunc(config.Indexer.ReconcileInterval, self.trigger, self.run).
		WithWorkerPool(config.Indexer.ReconcileNumWorkers, config.Indexer.ReconcileWorkerQueueSize)

	return
}

func (self *Reconciler) WithLedger(v Ledger) *Reconciler {
	self.ledger = v
	return self
}

func (self *Reconciler) WithParser(v *program.Parser) *Reconciler {
	self.parser = v
	return self
}

func (self *Reconciler) WithStore(v repository.Store) *Reconciler {
	self.store = v
	return self
}

func (self *Reconciler) WithSink(v EventSink) *Reconciler {
	self.sink = v
	return self
}

func (self *Reconciler) WithMonitor(v *monitoring.Monitor) *Reconciler {
	self.report = v.GetReport().Indexer
	return self
}

// Requests a reconciliation run without waiting for the next period
func (self *Reconciler) Trigger() {
	self.trigger.Fire()
}

func (self *Reconciler) run() error {
	_, err := self.Reconcile(self.Ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		self.report.Errors.ReconcileFailures.Inc()
		self.Log.WithError(err).Warn("Reconciliation failed")
	}
	return nil
}

// Finds signatures that have no stored events, newest first. Continues the
// pass described by cursor and moves the cursor to where paging stopped.
func (self *Reconciler) missingSignatures(ctx context.Context, cursor *model.ReconcileCursor) (out []*solana.SignatureInfo, done bool, err error) {
	limit := self.Config.Indexer.ReconcileSignatureLimit
	opts := solana.SignaturesOpts{Limit: limit, Before: cursor.Before}

	for page := 0; page < max(self.Config.Indexer.ReconcileMaxPages, 1); page++ {
		var infos []*solana.SignatureInfo
		infos, err = self.ledger.GetSignaturesForAddress(ctx, self.parser.ProgramId(), opts)
		if err != nil {
			return
		}

		for _, info := range infos {
			if info.Slot < cursor.Floor {
				// Everything older was handled before
				done = true
				return
			}

			if info.Failed() || self.sink.IsKnown(info.Signature) {
				continue
			}

			var exists bool
			exists, err = self.store.Events().ExistsBySignature(ctx, info.Signature)
			if err != nil {
				return
			}
			if exists {
				continue
			}

			out = append(out, info)
		}

		if len(infos) == 0 || len(infos) < limit {
			done = true
			return
		}
		opts.Before = infos[len(infos)-1].Signature
		cursor.Before = opts.Before
	}

	return
}

// Starts a new pass unless one is in progress
func (self *Reconciler) startPass(cursor *model.ReconcileCursor, checkpoint uint64) {
	if cursor.InProgress() {
		return
	}

	var floor uint64
	if checkpoint > self.Config.Indexer.ReconcileLookbackSlots {
		floor = checkpoint - self.Config.Indexer.ReconcileLookbackSlots
	}

	rescan := cursor.RescanFloor.Valid && uint64(cursor.RescanFloor.Int64) < floor
	if rescan {
		floor = uint64(cursor.RescanFloor.Int64)
	}

	*cursor = model.ReconcileCursor{
		Name:     model.SyncedComponentReconciler,
		Floor:    floor,
		IsRescan: rescan,
	}
}

// Remembers where the pass stopped. A finished pass that took several runs
// asks for one rescan of its range.
func (self *Reconciler) finishRun(ctx context.Context, cursor *model.ReconcileCursor, done bool) error {
	cursor.Runs++
	if done {
		next := &model.ReconcileCursor{Name: model.SyncedComponentReconciler}
		if cursor.Runs > 1 && !cursor.IsRescan {
			next.RescanFloor = sql.NullInt64{Int64: int64(cursor.Floor), Valid: true}
		}
		*cursor = *next
	}
	return self.store.Events().SetReconcileCursor(ctx, cursor)
}

func (self *Reconciler) download(ctx context.Context, signature string) (tx *solana.Transaction, err error) {
	err = task.NewRetry().
		WithContext(ctx).
		WithMaxElapsedTime(time.Minute).
		WithMaxInterval(5 * time.Second).
		WithOnError(func(err error, isDurationAcceptable bool) error {
			if errors.Is(err, context.Canceled) {
				return backoff.Permanent(err)
			}
			self.report.Errors.TransactionDownload.Inc()
			self.Log.WithError(err).WithField("signature", signature).Warn("Failed to download transaction, retrying")
			return err
		}).
		Run(func() (err error) {
			tx, err = self.ledger.GetTransaction(ctx, signature)
			return
		})
	return
}

// One reconciliation run. Returns the number of events handed to the sink.
func (self *Reconciler) Reconcile(ctx context.Context) (enqueued int, err error) {
	log := self.Log.WithField("run", xid.New().String())

	checkpoint, err := self.store.Events().GetCheckpoint(ctx)
	if err != nil {
		return
	}

	slot, err := self.ledger.GetSlot(ctx)
	if err != nil {
		log.WithError(err).Warn("Failed to get current slot")
	} else {
		self.report.State.CurrentSlot.Store(slot)
	}

	cursor, err := self.store.Events().GetReconcileCursor(ctx)
	if err != nil {
		return
	}
	self.startPass(cursor, checkpoint)

	missing, done, err := self.missingSignatures(ctx, cursor)
	if err != nil {
		return
	}
	log = log.WithField("floor", cursor.Floor).WithField("pass_done", done)

	defer func() {
		if err != nil {
			return
		}
		err = self.finishRun(ctx, cursor, done)
	}()

	self.report.State.ReconcileRuns.Inc()
	self.report.State.LastReconcileTimestamp.Store(time.Now().Unix())

	if len(missing) == 0 {
		log.WithField("checkpoint", checkpoint).Debug("Nothing to reconcile")
		return
	}

	self.report.State.ReconcileSignatures.Add(uint64(len(missing)))
	log.WithField("count", len(missing)).WithField("checkpoint", checkpoint).Info("Found missing transactions")

	// Download in parallel
	txs := make([]*solana.Transaction, len(missing))
	var wg sync.WaitGroup
	for i, info := range missing {
		wg.Add(1)
		self.SubmitToWorker(func() {
			defer wg.Done()
			tx, err := self.download(ctx, info.Signature)
			if err != nil {
				log.WithError(err).WithField("signature", info.Signature).Warn("Giving up downloading transaction")
				return
			}
			self.report.State.TransactionsDownloaded.Inc()
			txs[i] = tx
		})
	}
	wg.Wait()

	if err = ctx.Err(); err != nil {
		return
	}

	// Oldest first, so events of a match are applied in ledger order
	for i := len(missing) - 1; i >= 0; i-- {
		tx := txs[i]
		if tx == nil || tx.Failed() {
			continue
		}

		slot := tx.Slot
		if slot == 0 {
			slot = missing[i].Slot
		}

		for _, event := range self.parser.ParseLogs(missing[i].Signature, slot, tx.Logs()) {
			self.sink.Enqueue(event)
			enqueued++
		}
	}

	log.WithField("events", enqueued).Info("Reconciliation finished")
	return
}
