package repository

import (
	"context"
	"errors"
	"time"

	"github.com/arena-labs/syncer/src/utils/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormRandomnessPool struct {
	db *gorm.DB
}

func (self *gormRandomnessPool) Get(ctx context.Context, address string) (out *model.RandomnessAccount, err error) {
	out = new(model.RandomnessAccount)
	err = self.db.WithContext(ctx).
		Where("address = ?", address).
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

func (self *gormRandomnessPool) GetByMatch(ctx context.Context, matchAddress string) (out *model.RandomnessAccount, err error) {
	out = new(model.RandomnessAccount)
	err = self.db.WithContext(ctx).
		Where("match_address = ? AND status = ?", matchAddress, model.RandomnessAccountStatusInUse).
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

func (self *gormRandomnessPool) Create(ctx context.Context, account *model.RandomnessAccount) error {
	res := self.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(account)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (self *gormRandomnessPool) Acquire(ctx context.Context, matchAddress string, now time.Time) (out *model.RandomnessAccount, err error) {
	var accounts []*model.RandomnessAccount
	err = self.db.WithContext(ctx).
		Raw(`UPDATE randomness_accounts
		SET status = ?, match_address = ?, last_used_at = ?
		WHERE address = (
			SELECT address
			FROM randomness_accounts
			WHERE status = ?
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *`,
			model.RandomnessAccountStatusInUse, matchAddress, now, model.RandomnessAccountStatusAvailable).
		Scan(&accounts).
		Error
	if err != nil {
		return
	}
	if len(accounts) == 0 {
		return nil, ErrNotFound
	}
	return accounts[0], nil
}

func (self *gormRandomnessPool) Consume(ctx context.Context, address, matchAddress string, now time.Time) (out *model.RandomnessAccount, err error) {
	var accounts []*model.RandomnessAccount
	err = self.db.WithContext(ctx).
		Raw(`UPDATE randomness_accounts
		SET status = ?, match_address = ?, last_used_at = ?
		WHERE address = ? AND status = ?
		RETURNING *`,
			model.RandomnessAccountStatusInUse, matchAddress, now, address, model.RandomnessAccountStatusAvailable).
		Scan(&accounts).
		Error
	if err != nil {
		return
	}
	if len(accounts) > 0 {
		return accounts[0], nil
	}

	// Already taken, fine only if it's taken by this match
	out, err = self.Get(ctx, address)
	if err != nil {
		return
	}
	if out.Status != model.RandomnessAccountStatusInUse || out.MatchAddress.String != matchAddress {
		return nil, ErrConflict
	}
	return
}

func (self *gormRandomnessPool) Release(ctx context.Context, address string, cooldownUntil time.Time) error {
	return self.transition(ctx, address, model.RandomnessAccountStatusInUse, map[string]interface{}{
		"status":         model.RandomnessAccountStatusCooldown,
		"cooldown_until": cooldownUntil,
		"match_address":  nil,
	})
}

func (self *gormRandomnessPool) Promote(ctx context.Context, address string, now time.Time) error {
	res := self.db.WithContext(ctx).
		Model(&model.RandomnessAccount{}).
		Where("address = ? AND status = ? AND cooldown_until <= ?", address, model.RandomnessAccountStatusCooldown, now).
		Updates(map[string]interface{}{
			"status":         model.RandomnessAccountStatusAvailable,
			"cooldown_until": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (self *gormRandomnessPool) Invalidate(ctx context.Context, address string, now time.Time) error {
	res := self.db.WithContext(ctx).
		Model(&model.RandomnessAccount{}).
		Where("address = ? AND status <> ?", address, model.RandomnessAccountStatusInvalid).
		Updates(map[string]interface{}{
			"status":         model.RandomnessAccountStatusInvalid,
			"invalidated_at": now,
			"match_address":  nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Either already invalid or missing
		_, err := self.Get(ctx, address)
		return err
	}
	return nil
}

func (self *gormRandomnessPool) ListByStatus(ctx context.Context, status model.RandomnessAccountStatus, limit int) (out []*model.RandomnessAccount, err error) {
	err = self.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).
		Error
	return
}

func (self *gormRandomnessPool) ListCooldownExpired(ctx context.Context, now time.Time, limit int) (out []*model.RandomnessAccount, err error) {
	err = self.db.WithContext(ctx).
		Where("status = ? AND cooldown_until <= ?", model.RandomnessAccountStatusCooldown, now).
		Order("cooldown_until ASC").
		Limit(limit).
		Find(&out).
		Error
	return
}

func (self *gormRandomnessPool) CountByStatus(ctx context.Context) (out map[model.RandomnessAccountStatus]int, err error) {
	var rows []struct {
		Status model.RandomnessAccountStatus
		Count  int
	}
	err = self.db.WithContext(ctx).
		Model(&model.RandomnessAccount{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).
		Error
	if err != nil {
		return
	}

	out = make(map[model.RandomnessAccountStatus]int, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return
}

func (self *gormRandomnessPool) transition(ctx context.Context, address string, from model.RandomnessAccountStatus, values map[string]interface{}) error {
	res := self.db.WithContext(ctx).
		Model(&model.RandomnessAccount{}).
		Where("address = ? AND status = ?", address, from).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}
