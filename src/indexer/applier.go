package indexer

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/arena-labs/syncer/src/pool"
	"github.com/arena-labs/syncer/src/utils/config"
	"github.com/arena-labs/syncer/src/utils/model"
	"github.com/arena-labs/syncer/src/utils/monitoring"
	"github.com/arena-labs/syncer/src/utils/monitoring/report"
	"github.com/arena-labs/syncer/src/utils/notify"
	"github.com/arena-labs/syncer/src/utils/program"
	"github.com/arena-labs/syncer/src/utils/repository"
	"github.com/arena-labs/syncer/src/utils/task"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgtype"
	"github.com/patrickmn/go-cache"
)

// Randomness accounts for matches that were joined or finished
type RandomnessAssigner interface {
	AssignToMatch(ctx context.Context, matchAddress, preferred string) (string, error)
	Release(ctx context.Context, matchAddress string) error
}

type outcome int

const (
	outcomeApplied outcome = iota
	outcomeDuplicate
	outcomeDiscarded
	outcomeDeferred
)

// Applies events to the match state. Events of the same match are applied one at a time,
// in the order they were enqueued. Different matches are handled in parallel.
type Applier struct {
	*task.Task

	store       repository.Store
	pool        RandomnessAssigner
	broadcaster *notify.Broadcaster
	report      *report.IndexerReport

	// Keys of events that don't need to be looked up in the database
	seen *cache.Cache

	shards []chan *program.Event

	now func() time.Time
}

func NewApplier(config *config.Config) (self *Applier) {
	self = new(Applier)
	self.report = &report.IndexerReport{}
	self.now = time.Now
	self.seen = cache.New(config.Indexer.SeenCacheExpiration, config.Indexer.SeenCacheExpiration)

	numShards := config.Indexer.ApplierNumShards
	if numShards <= 0 {
		numShards = 1
	}

	self.Task = task.NewTask(config, "applier")

	self.shards = make([]chan *program.Event, numShards)
	for i := range self.shards {
		ch := make(chan *program.Event, config.Indexer.ApplierShardQueueSize)
		self.shards[i] = ch
		self.Task = self.Task.WithSubtaskFunc(func() error {
			return self.runShard(ch)
		})
	}

	return
}

func (self *Applier) WithStore(v repository.Store) *Applier {
	self.store = v
	return self
}

func (self *Applier) WithPool(v RandomnessAssigner) *Applier {
	self.pool = v
	return self
}

func (self *Applier) WithBroadcaster(v *notify.Broadcaster) *Applier {
	self.broadcaster = v
	return self
}

func (self *Applier) WithMonitor(v *monitoring.Monitor) *Applier {
	self.report = v.GetReport().Indexer
	return self
}

func (self *Applier) WithClock(now func() time.Time) *Applier {
	self.now = now
	return self
}

func eventKey(signature string, index int) string {
	return fmt.Sprintf("%s:%d", signature, index)
}

func (self *Applier) shard(matchAddress string) chan *program.Event {
	h := fnv.New32a()
	_, _ = h.Write([]byte(matchAddress))
	return self.shards[h.Sum32()%uint32(len(self.shards))]
}

// Queues the event for applying. Blocks while the match's queue is full.
func (self *Applier) Enqueue(event *program.Event) {
	if _, found := self.seen.Get(eventKey(event.Signature, event.Index)); found {
		self.report.State.EventsDuplicated.Inc()
		return
	}

	select {
	case self.shard(event.MatchAddress) <- event:
		self.report.State.EventsQueued.Inc()
	case <-self.StopChannel:
	}
}

// True if any event of the transaction was applied by this process recently
func (self *Applier) IsKnown(signature string) bool {
	_, found := self.seen.Get(signature)
	return found
}

func (self *Applier) runShard(ch chan *program.Event) error {
	for {
		select {
		case <-self.StopChannel:
			return nil
		case event := <-ch:
			self.applyWithRetry(event)
		}
	}
}

func (self *Applier) applyWithRetry(event *program.Event) {
	log := self.Log.WithField("signature", event.Signature).WithField("index", event.Index)

	err := task.NewRetry().
		WithContext(self.Ctx).
		WithMaxElapsedTime(self.Config.Indexer.ApplierMaxElapsedTime).
		WithMaxInterval(self.Config.Indexer.ApplierMaxInterval).
		WithOnError(func(err error, isDurationAcceptable bool) error {
			if errors.Is(err, context.Canceled) {
				return backoff.Permanent(err)
			}
			self.report.Errors.ApplyRetries.Inc()
			log.WithError(err).Warn("Failed to apply event, retrying")
			return err
		}).
		Run(func() error {
			return self.Apply(self.Ctx, event)
		})
	if err != nil && self.Ctx.Err() == nil {
		// Not persisted, reconciliation will deliver it again
		self.report.Errors.ApplyFailures.Inc()
		log.WithError(err).Error("Giving up applying event")
	}
}

// Applies a single event. Only storage failures are returned, events that
// can't be applied are recorded and discarded.
func (self *Applier) Apply(ctx context.Context, event *program.Event) (err error) {
	key := eventKey(event.Signature, event.Index)
	if _, found := self.seen.Get(key); found {
		self.report.State.EventsDuplicated.Inc()
		return nil
	}

	log := self.Log.WithField("signature", event.Signature).
		WithField("index", event.Index).
		WithField("kind", event.Kind).
		WithField("match", event.MatchAddress)

	payload, decodeErr := event.Decode()
	if decodeErr != nil {
		self.report.State.EventsUndecodable.Inc()
		log.WithError(decodeErr).Warn("Failed to decode event data")
	}

	now := self.now()

	var (
		result outcome
		next   *model.Match
		reason error
	)

	err = self.store.Transaction(ctx, func(tx repository.Store) error {
		exists, err := tx.Events().Exists(ctx, event.Signature, event.Index)
		if err != nil {
			return err
		}
		if exists {
			result = outcomeDuplicate
			return nil
		}

		current, err := tx.Matches().Get(ctx, event.MatchAddress)
		if errors.Is(err, repository.ErrNotFound) {
			current = nil
		} else if err != nil {
			return err
		}

		reason = decodeErr
		if reason == nil {
			next, reason = Transition(current, event, payload, now)
		}

		if errors.Is(reason, ErrUnknownMatch) {
			result = outcomeDeferred
			return nil
		}

		err = tx.Events().Insert(ctx, self.toModel(event, payload, decodeErr, now))
		if errors.Is(err, repository.ErrAlreadyExists) {
			result = outcomeDuplicate
			return nil
		}
		if err != nil {
			return err
		}

		if reason != nil {
			result = outcomeDiscarded
			return nil
		}

		next.UpdatedAt = now
		if current == nil {
			err = tx.Matches().Create(ctx, next)
		} else {
			err = tx.Matches().Update(ctx, next, current.Status)
		}
		if err != nil {
			return err
		}

		switch {
		case next.Status.HasDeadline() && next.Deadline > 0:
			err = tx.RefundTasks().Upsert(ctx, next.Address, next.Deadline, now)
		case next.Status.IsTerminal():
			err = tx.RefundTasks().Cancel(ctx, next.Address, now)
		}
		if err != nil {
			return err
		}

		result = outcomeApplied
		return nil
	})
	if err != nil {
		return
	}

	switch result {
	case outcomeDuplicate:
		self.report.State.EventsDuplicated.Inc()
		log.Debug("Event already applied")
	case outcomeDeferred:
		self.report.State.EventsDeferred.Inc()
		log.Info("Match isn't known yet, deferring event")
		return nil
	case outcomeDiscarded:
		self.report.State.EventsDiscarded.Inc()
		log.WithError(reason).Debug("Event recorded without effect")
		self.checkpoint(ctx, event.Slot)
	case outcomeApplied:
		self.report.State.EventsApplied.Inc()
		log.WithField("status", next.Status).Info("Event applied")
		next = self.afterApply(ctx, event, payload, next)
		self.broadcaster.Emit(event.Kind, next)
		self.checkpoint(ctx, event.Slot)
	}

	self.seen.SetDefault(key, struct{}{})
	self.seen.SetDefault(event.Signature, struct{}{})
	return nil
}

// Randomness pool side effects, they don't affect whether the event got applied
func (self *Applier) afterApply(ctx context.Context, event *program.Event, payload program.Payload, match *model.Match) *model.Match {
	if self.pool == nil {
		return match
	}

	log := self.Log.WithField("match", match.Address)

	switch {
	case event.Kind == model.EventKindJoined:
		joined := payload.(*program.JoinedPayload)
		_, err := self.pool.AssignToMatch(ctx, match.Address, joined.RandomnessAccount)
		if errors.Is(err, pool.ErrNoAvailableAccount) {
			log.WithError(err).Warn("No randomness account for joined match, will retry later")
			return match
		}
		if err != nil {
			log.WithError(err).Warn("Failed to assign randomness account, will retry later")
			return match
		}

		updated, err := self.store.Matches().Get(ctx, match.Address)
		if err == nil {
			return updated
		}

	case match.Status.IsTerminal():
		err := self.pool.Release(ctx, match.Address)
		if err != nil {
			log.WithError(err).Warn("Failed to release randomness account, will retry later")
		}
	}

	return match
}

func (self *Applier) checkpoint(ctx context.Context, slot uint64) {
	err := self.store.Events().SetCheckpoint(ctx, slot)
	if err != nil {
		self.report.Errors.Checkpoint.Inc()
		self.Log.WithError(err).WithField("slot", slot).Warn("Failed to persist checkpoint")
		return
	}

	for {
		finished := self.report.State.FinishedSlot.Load()
		if slot <= finished || self.report.State.FinishedSlot.CompareAndSwap(finished, slot) {
			return
		}
	}
}

func (self *Applier) toModel(event *program.Event, payload program.Payload, decodeErr error, now time.Time) *model.Event {
	out := &model.Event{
		Signature:    event.Signature,
		Index:        event.Index,
		Slot:         event.Slot,
		Kind:         event.Kind,
		MatchAddress: event.MatchAddress,
		ObservedAt:   now,
	}

	var err error
	if decodeErr == nil {
		err = out.Payload.Set(payload)
	} else {
		err = out.Payload.Set(nil)
	}
	if err != nil {
		self.Log.WithError(err).Warn("Failed to encode event payload")
		out.Payload = pgtype.JSONB{Status: pgtype.Null}
	}
	return out
}
