package refund

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arena-labs/syncer/src/utils/config"
	"github.com/arena-labs/syncer/src/utils/model"
	"github.com/arena-labs/syncer/src/utils/monitoring"
	"github.com/arena-labs/syncer/src/utils/monitoring/report"
	"github.com/arena-labs/syncer/src/utils/notify"
	"github.com/arena-labs/syncer/src/utils/repository"
	"github.com/arena-labs/syncer/src/utils/task"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

const maxUpdateAttempts = 3

type Submitter interface {
	SubmitRefund(ctx context.Context, match *model.Match) (signature string, err error)
}

type Releaser interface {
	Release(ctx context.Context, matchAddress string) error
}

// Refunds matches that weren't resolved before their deadline
type Scheduler struct {
	*task.Task

	store       repository.Store
	submitter   Submitter
	pool        Releaser
	broadcaster *notify.Broadcaster
	report      *report.RefunderReport

	now func() time.Time
}

func NewScheduler(config *config.Config) (self *Scheduler) {
	self = new(Scheduler)
	self.report = &report.RefunderReport{}
	self.now = time.Now

	self.Task = task.NewTask(config, "refunder").
		WithPeriodicSubtaskFunc(config.Refunder.Interval, self.tick).
		WithWorkerPool(config.Refunder.NumWorkers, config.Refunder.WorkerQueueSize)

	return
}

func (self *Scheduler) WithStore(v repository.Store) *Scheduler {
	self.store = v
	return self
}

func (self *Scheduler) WithSubmitter(v Submitter) *Scheduler {
	self.submitter = v
	return self
}

func (self *Scheduler) WithPool(v Releaser) *Scheduler {
	self.pool = v
	return self
}

func (self *Scheduler) WithBroadcaster(v *notify.Broadcaster) *Scheduler {
	self.broadcaster = v
	return self
}

func (self *Scheduler) WithMonitor(v *monitoring.Monitor) *Scheduler {
	self.report = v.GetReport().Refunder
	return self
}

func (self *Scheduler) WithClock(now func() time.Time) *Scheduler {
	self.now = now
	return self
}

func (self *Scheduler) tick() error {
	_, err := self.Tick(self.Ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		self.report.Errors.Database.Inc()
		self.Log.WithError(err).Warn("Failed to list due refunds")
	}
	return nil
}

// Handles all refunds due now. Returns the number of matches refunded.
func (self *Scheduler) Tick(ctx context.Context) (executed int, err error) {
	log := self.Log.WithField("run", xid.New().String())
	self.report.State.Ticks.Inc()

	tasks, err := self.store.RefundTasks().ListDue(ctx, self.now(), self.Config.Refunder.BatchSize)
	if err != nil {
		return
	}
	if len(tasks) == 0 {
		return
	}

	self.report.State.Due.Add(uint64(len(tasks)))
	log.WithField("count", len(tasks)).Debug("Refunds due")

	var (
		wg    sync.WaitGroup
		count atomic.Int64
	)
	for _, t := range tasks {
		wg.Add(1)
		self.SubmitToWorker(func() {
			defer wg.Done()
			if self.handle(ctx, log.WithField("match", t.MatchAddress), t) {
				count.Inc()
			}
		})
	}
	wg.Wait()

	return int(count.Load()), nil
}

func (self *Scheduler) cancel(ctx context.Context, log *logrus.Entry, matchAddress string) {
	err := self.store.RefundTasks().Cancel(ctx, matchAddress, self.now())
	if err != nil {
		self.report.Errors.Database.Inc()
		log.WithError(err).Warn("Failed to cancel refund")
		return
	}
	self.report.State.Canceled.Inc()
	log.Debug("Match finished, refund canceled")
}

func (self *Scheduler) handle(ctx context.Context, log *logrus.Entry, t *model.RefundTask) bool {
	now := self.now()

	match, err := self.store.Matches().Get(ctx, t.MatchAddress)
	if errors.Is(err, repository.ErrNotFound) {
		self.cancel(ctx, log, t.MatchAddress)
		return false
	}
	if err != nil {
		self.report.Errors.Database.Inc()
		log.WithError(err).Warn("Failed to get match")
		return false
	}

	if match.Status.IsTerminal() {
		self.cancel(ctx, log, t.MatchAddress)
		return false
	}

	if now.Unix() < match.Deadline {
		// Deadline moved since the task was scheduled
		err = self.store.RefundTasks().Upsert(ctx, match.Address, match.Deadline, now)
		if err != nil {
			self.report.Errors.Database.Inc()
		}
		return false
	}

	grace := self.Config.Refunder.GracePeriod
	if grace > 0 && now.After(match.DeadlineTime().Add(grace)) {
		self.report.State.Overdue.Inc()
		log.WithField("attempts", t.Attempts).WithField("last_error", t.LastError).
			Error("Refund not executed within the grace period, giving up")
		err = self.store.RefundTasks().MarkFailed(ctx, t.MatchAddress, fmt.Sprintf("grace period exceeded: %s", t.LastError), now)
		if err != nil {
			self.report.Errors.Database.Inc()
		}
		return false
	}

	submitCtx, cancel := context.WithTimeout(ctx, self.Config.Refunder.SubmitTimeout)
	signature, err := self.submitter.SubmitRefund(submitCtx, match)
	cancel()
	if err != nil {
		self.report.Errors.Submit.Inc()
		log.WithError(err).WithField("attempts", t.Attempts+1).Warn("Failed to submit refund, will retry")
		err = self.store.RefundTasks().RecordFailure(ctx, t.MatchAddress, err.Error())
		if err != nil {
			self.report.Errors.Database.Inc()
		}
		return false
	}

	refunded, err := self.commit(ctx, match, signature)
	if err != nil {
		self.report.Errors.Database.Inc()
		log.WithError(err).WithField("signature", signature).Warn("Refund sent but not recorded")
		return false
	}
	if refunded == nil {
		// Match finished some other way while the refund was in flight
		self.cancel(ctx, log, t.MatchAddress)
		return false
	}

	self.report.State.Executed.Inc()
	log.WithField("signature", signature).Info("Match refunded")

	if self.pool != nil {
		err = self.pool.Release(ctx, match.Address)
		if err != nil {
			log.WithError(err).Warn("Failed to release randomness account")
		}
	}

	self.broadcaster.Emit(model.EventKindRefunded, refunded)
	return true
}

// Marks the match refunded unless it reached a terminal status in the meantime.
// Returns nil match if it did.
func (self *Scheduler) commit(ctx context.Context, match *model.Match, signature string) (out *model.Match, err error) {
	now := self.now()

	for i := 0; i < maxUpdateAttempts; i++ {
		next := match.Clone()
		next.Status = model.MatchStatusRefunded
		next.RefundTx = sql.NullString{String: signature, Valid: true}
		next.RefundedAt = sql.NullTime{Time: now, Valid: true}
		next.UpdatedAt = now

		err = self.store.Transaction(ctx, func(tx repository.Store) error {
			err := tx.Matches().Update(ctx, next, match.Status)
			if err != nil {
				return err
			}
			return tx.RefundTasks().MarkExecuted(ctx, match.Address, signature, now)
		})
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return nil, err
		}

		// Someone else changed the match, decide on its current state
		match, err = self.store.Matches().Get(ctx, match.Address)
		if err != nil {
			return nil, err
		}

		if match.Status == model.MatchStatusRefunded && match.RefundTx.String == signature {
			// Indexer applied our own refund first
			err = self.store.RefundTasks().MarkExecuted(ctx, match.Address, signature, now)
			if errors.Is(err, repository.ErrConflict) {
				err = nil
			}
			return match, err
		}

		if match.Status.IsTerminal() {
			return nil, nil
		}
	}

	return nil, repository.ErrConflict
}
