package repository

import (
	"context"
	"errors"
	"time"

	"github.com/arena-labs/syncer/src/utils/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormMatches struct {
	db *gorm.DB
}

func (self *gormMatches) Get(ctx context.Context, address string) (out *model.Match, err error) {
	out = new(model.Match)
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

func (self *gormMatches) Create(ctx context.Context, match *model.Match) error {
	if match.UpdatedAt.IsZero() {
		match.UpdatedAt = time.Now()
	}
	res := self.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(match)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (self *gormMatches) Update(ctx context.Context, match *model.Match, expected model.MatchStatus) error {
	next := match.Clone()
	next.Version = match.Version + 1
	next.UpdatedAt = time.Now()

	res := self.db.WithContext(ctx).
		Model(next).
		Where("status = ? AND version = ?", expected, match.Version).
		Select("*").
		Updates(next)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}

	match.Version = next.Version
	match.UpdatedAt = next.UpdatedAt
	return nil
}

func (self *gormMatches) ListByStatus(ctx context.Context, limit int, statuses ...model.MatchStatus) (out []*model.Match, err error) {
	err = self.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).
		Error
	return
}
