package repository

import (
	"context"

	"github.com/arena-labs/syncer/src/utils/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormEvents struct {
	db *gorm.DB
}

func (self *gormEvents) Exists(ctx context.Context, signature string, index int) (out bool, err error) {
	var count int64
	err = self.db.WithContext(ctx).
		Model(&model.Event{}).
		Where("signature = ? AND event_index = ?", signature, index).
		Count(&count).
		Error
	return count > 0, err
}

func (self *gormEvents) ExistsBySignature(ctx context.Context, signature string) (out bool, err error) {
	var count int64
	err = self.db.WithContext(ctx).
		Model(&model.Event{}).
		Where("signature = ?", signature).
		Count(&count).
		Error
	return count > 0, err
}

func (self *gormEvents) Insert(ctx context.Context, event *model.Event) error {
	res := self.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(event)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (self *gormEvents) GetCheckpoint(ctx context.Context) (slot uint64, err error) {
	var state model.SyncState
	err = self.db.WithContext(ctx).
		Where("name = ?", model.SyncedComponentIndexer).
		Limit(1).
		Find(&state).
		Error
	return state.FinishedSlot, err
}

func (self *gormEvents) SetCheckpoint(ctx context.Context, slot uint64) error {
	return self.db.WithContext(ctx).
		Exec(`INSERT INTO sync_state (name, finished_slot, version)
		VALUES (?, ?, 1)
		ON CONFLICT (name) DO UPDATE
		SET finished_slot = EXCLUDED.finished_slot, version = sync_state.version + 1
		WHERE sync_state.finished_slot < EXCLUDED.finished_slot`,
			model.SyncedComponentIndexer, slot).
		Error
}

func (self *gormEvents) GetReconcileCursor(ctx context.Context) (out *model.ReconcileCursor, err error) {
	out = new(model.ReconcileCursor)
	err = self.db.WithContext(ctx).
		Where("name = ?", model.SyncedComponentReconciler).
		Limit(1).
		Find(out).
		Error
	out.Name = model.SyncedComponentReconciler
	return
}

func (self *gormEvents) SetReconcileCursor(ctx context.Context, cursor *model.ReconcileCursor) error {
	cursor.Name = model.SyncedComponentReconciler
	return self.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(cursor).
		Error
}
