package memory

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/arena-labs/syncer/src/utils/model"
	"github.com/arena-labs/syncer/src/utils/repository"
)

type refundTasks struct {
	*Store
}

func (self *refundTasks) Get(ctx context.Context, matchAddress string) (*model.RefundTask, error) {
	defer self.lock()()
	task, ok := self.state.tasks[matchAddress]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *task
	return &out, nil
}

func (self *refundTasks) Upsert(ctx context.Context, matchAddress string, deadline int64, now time.Time) error {
	defer self.lock()()
	task, ok := self.state.tasks[matchAddress]
	if !ok {
		self.state.tasks[matchAddress] = &model.RefundTask{
			MatchAddress: matchAddress,
			Deadline:     deadline,
			ScheduledAt:  now,
		}
		return nil
	}
	if task.IsPending() {
		task.Deadline = deadline
	}
	return nil
}

func (self *refundTasks) Cancel(ctx context.Context, matchAddress string, now time.Time) error {
	defer self.lock()()
	task, ok := self.state.tasks[matchAddress]
	if ok && task.IsPending() {
		task.CanceledAt = sql.NullTime{Time: now, Valid: true}
	}
	return nil
}

func (self *refundTasks) MarkExecuted(ctx context.Context, matchAddress, signature string, now time.Time) error {
	return self.updatePending(matchAddress, func(task *model.RefundTask) {
		task.ExecutedAt = sql.NullTime{Time: now, Valid: true}
		task.ExecutedTransaction = sql.NullString{String: signature, Valid: true}
	})
}

func (self *refundTasks) MarkFailed(ctx context.Context, matchAddress, reason string, now time.Time) error {
	return self.updatePending(matchAddress, func(task *model.RefundTask) {
		task.FailedAt = sql.NullTime{Time: now, Valid: true}
		task.LastError = reason
	})
}

func (self *refundTasks) RecordFailure(ctx context.Context, matchAddress, reason string) error {
	return self.updatePending(matchAddress, func(task *model.RefundTask) {
		task.Attempts++
		task.LastError = reason
	})
}

func (self *refundTasks) ListDue(ctx context.Context, now time.Time, limit int) (out []*model.RefundTask, err error) {
	defer self.lock()()
	for _, task := range self.state.tasks {
		if task.IsPending() && task.Deadline <= now.Unix() {
			t := *task
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Deadline < out[j].Deadline
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return
}

func (self *refundTasks) updatePending(matchAddress string, f func(task *model.RefundTask)) error {
	defer self.lock()()
	task, ok := self.state.tasks[matchAddress]
	if !ok || !task.IsPending() {
		return repository.ErrConflict
	}
	f(task)
	return nil
}
