package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store backed by postgres
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) (self *GormStore) {
	self = new(GormStore)
	self.db = db
	return
}

func (self *GormStore) Events() Events {
	return &gormEvents{db: self.db}
}

func (self *GormStore) Matches() Matches {
	return &gormMatches{db: self.db}
}

func (self *GormStore) RefundTasks() RefundTasks {
	return &gormRefundTasks{db: self.db}
}

func (self *GormStore) RandomnessPool() RandomnessPool {
	return &gormRandomnessPool{db: self.db}
}

func (self *GormStore) Transaction(ctx context.Context, f func(tx Store) error) error {
	return self.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return f(NewGormStore(tx))
	})
}
