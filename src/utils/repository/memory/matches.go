package memory

import (
	"context"
	"sort"
	"time"

	"github.com/arena-labs/syncer/src/utils/model"
	"github.com/arena-labs/syncer/src/utils/repository"

	"golang.org/x/exp/slices"
)

type matches struct {
	*Store
}

func (self *matches) Get(ctx context.Context, address string) (*model.Match, error) {
	defer self.lock()()
	match, ok := self.state.matches[address]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return match.Clone(), nil
}

func (self *matches) Create(ctx context.Context, match *model.Match) error {
	defer self.lock()()
	if _, ok := self.state.matches[match.Address]; ok {
		return repository.ErrAlreadyExists
	}
	if match.UpdatedAt.IsZero() {
		match.UpdatedAt = time.Now()
	}
	self.state.matches[match.Address] = match.Clone()
	return nil
}

func (self *matches) Update(ctx context.Context, match *model.Match, expected model.MatchStatus) error {
	defer self.lock()()
	stored, ok := self.state.matches[match.Address]
	if !ok || stored.Status != expected || stored.Version != match.Version {
		return repository.ErrConflict
	}

	match.Version++
	match.UpdatedAt = time.Now()
	self.state.matches[match.Address] = match.Clone()
	return nil
}

func (self *matches) ListByStatus(ctx context.Context, limit int, statuses ...model.MatchStatus) (out []*model.Match, err error) {
	defer self.lock()()
	for _, match := range self.state.matches {
		if slices.Contains(statuses, match.Status) {
			out = append(out, match.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return
}
