package repository

import (
	"context"
	"errors"
	"time"

	"github.com/arena-labs/syncer/src/utils/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const pendingRefundTask = "canceled_at IS NULL AND executed_at IS NULL AND failed_at IS NULL"

type gormRefundTasks struct {
	db *gorm.DB
}

func (self *gormRefundTasks) Get(ctx context.Context, matchAddress string) (out *model.RefundTask, err error) {
	out = new(model.RefundTask)
	err = self.db.WithContext(ctx).
		Where("match_address = ?", matchAddress).
		First(out).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return
}

func (self *gormRefundTasks) Upsert(ctx context.Context, matchAddress string, deadline int64, now time.Time) error {
	task := &model.RefundTask{
		MatchAddress: matchAddress,
		Deadline:     deadline,
		ScheduledAt:  now,
	}
	return self.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "match_address"}},
			DoUpdates: clause.AssignmentColumns([]string{"deadline"}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "refund_tasks.canceled_at IS NULL AND refund_tasks.executed_at IS NULL AND refund_tasks.failed_at IS NULL"},
			}},
		}).
		Create(task).
		Error
}

func (self *gormRefundTasks) Cancel(ctx context.Context, matchAddress string, now time.Time) error {
	return self.db.WithContext(ctx).
		Model(&model.RefundTask{}).
		Where("match_address = ? AND "+pendingRefundTask, matchAddress).
		Update("canceled_at", now).
		Error
}

func (self *gormRefundTasks) MarkExecuted(ctx context.Context, matchAddress, signature string, now time.Time) error {
	return self.updatePending(ctx, matchAddress, map[string]interface{}{
		"executed_at":          now,
		"executed_transaction": signature,
	})
}

func (self *gormRefundTasks) MarkFailed(ctx context.Context, matchAddress, reason string, now time.Time) error {
	return self.updatePending(ctx, matchAddress, map[string]interface{}{
		"failed_at":  now,
		"last_error": reason,
	})
}

func (self *gormRefundTasks) RecordFailure(ctx context.Context, matchAddress, reason string) error {
	return self.updatePending(ctx, matchAddress, map[string]interface{}{
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": reason,
	})
}

func (self *gormRefundTasks) ListDue(ctx context.Context, now time.Time, limit int) (out []*model.RefundTask, err error) {
	err = self.db.WithContext(ctx).
		Where(pendingRefundTask+" AND deadline <= ?", now.Unix()).
		Order("deadline ASC").
		Limit(limit).
		Find(&out).
		Error
	return
}

func (self *gormRefundTasks) updatePending(ctx context.Context, matchAddress string, values map[string]interface{}) error {
	res := self.db.WithContext(ctx).
		Model(&model.RefundTask{}).
		Where("match_address = ? AND "+pendingRefundTask, matchAddress).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}
