package memory

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/arena-labs/syncer/src/utils/model"
	"github.com/arena-labs/syncer/src/utils/repository"
)

type randomnessPool struct {
	*Store
}

func copyAccount(account *model.RandomnessAccount) *model.RandomnessAccount {
	out := *account
	return &out
}

func (self *randomnessPool) Get(ctx context.Context, address string) (*model.RandomnessAccount, error) {
	defer self.lock()()
	account, ok := self.state.accounts[address]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyAccount(account), nil
}

func (self *randomnessPool) GetByMatch(ctx context.Context, matchAddress string) (*model.RandomnessAccount, error) {
	defer self.lock()()
	for _, account := range self.state.accounts {
		if account.Status == model.RandomnessAccountStatusInUse && account.MatchAddress.String == matchAddress {
			return copyAccount(account), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (self *randomnessPool) Create(ctx context.Context, account *model.RandomnessAccount) error {
	defer self.lock()()
	if _, ok := self.state.accounts[account.Address]; ok {
		return repository.ErrAlreadyExists
	}
	self.state.accounts[account.Address] = copyAccount(account)
	return nil
}

func (self *randomnessPool) Acquire(ctx context.Context, matchAddress string, now time.Time) (*model.RandomnessAccount, error) {
	defer self.lock()()
	var oldest *model.RandomnessAccount
	for _, account := range self.state.accounts {
		if account.Status != model.RandomnessAccountStatusAvailable {
			continue
		}
		if oldest == nil || account.CreatedAt.Before(oldest.CreatedAt) ||
			(account.CreatedAt.Equal(oldest.CreatedAt) && account.Address < oldest.Address) {
			oldest = account
		}
	}
	if oldest == nil {
		return nil, repository.ErrNotFound
	}
	take(oldest, matchAddress, now)
	return copyAccount(oldest), nil
}

func (self *randomnessPool) Consume(ctx context.Context, address, matchAddress string, now time.Time) (*model.RandomnessAccount, error) {
	defer self.lock()()
	account, ok := self.state.accounts[address]
	if !ok {
		return nil, repository.ErrNotFound
	}
	switch {
	case account.Status == model.RandomnessAccountStatusAvailable:
		take(account, matchAddress, now)
	case account.Status == model.RandomnessAccountStatusInUse && account.MatchAddress.String == matchAddress:
	default:
		return nil, repository.ErrConflict
	}
	return copyAccount(account), nil
}

func take(account *model.RandomnessAccount, matchAddress string, now time.Time) {
	account.Status = model.RandomnessAccountStatusInUse
	account.MatchAddress = sql.NullString{String: matchAddress, Valid: true}
	account.LastUsedAt = sql.NullTime{Time: now, Valid: true}
}

func (self *randomnessPool) Release(ctx context.Context, address string, cooldownUntil time.Time) error {
	defer self.lock()()
	account, ok := self.state.accounts[address]
	if !ok || account.Status != model.RandomnessAccountStatusInUse {
		return repository.ErrConflict
	}
	account.Status = model.RandomnessAccountStatusCooldown
	account.CooldownUntil = sql.NullTime{Time: cooldownUntil, Valid: true}
	account.MatchAddress = sql.NullString{}
	return nil
}

func (self *randomnessPool) Promote(ctx context.Context, address string, now time.Time) error {
	defer self.lock()()
	account, ok := self.state.accounts[address]
	if !ok || account.Status != model.RandomnessAccountStatusCooldown || account.CooldownUntil.Time.After(now) {
		return repository.ErrConflict
	}
	account.Status = model.RandomnessAccountStatusAvailable
	account.CooldownUntil = sql.NullTime{}
	return nil
}

func (self *randomnessPool) Invalidate(ctx context.Context, address string, now time.Time) error {
	defer self.lock()()
	account, ok := self.state.accounts[address]
	if !ok {
		return repository.ErrNotFound
	}
	if account.Status == model.RandomnessAccountStatusInvalid {
		return nil
	}
	account.Status = model.RandomnessAccountStatusInvalid
	account.InvalidatedAt = sql.NullTime{Time: now, Valid: true}
	account.MatchAddress = sql.NullString{}
	return nil
}

func (self *randomnessPool) ListByStatus(ctx context.Context, status model.RandomnessAccountStatus, limit int) (out []*model.RandomnessAccount, err error) {
	defer self.lock()()
	for _, account := range self.state.accounts {
		if account.Status == status {
			out = append(out, copyAccount(account))
		}
	}
	return sortAndLimit(out, limit), nil
}

func (self *randomnessPool) ListCooldownExpired(ctx context.Context, now time.Time, limit int) (out []*model.RandomnessAccount, err error) {
	defer self.lock()()
	for _, account := range self.state.accounts {
		if account.Status == model.RandomnessAccountStatusCooldown && !account.CooldownUntil.Time.After(now) {
			out = append(out, copyAccount(account))
		}
	}
	return sortAndLimit(out, limit), nil
}

func (self *randomnessPool) CountByStatus(ctx context.Context) (map[model.RandomnessAccountStatus]int, error) {
	defer self.lock()()
	out := make(map[model.RandomnessAccountStatus]int)
	for _, account := range self.state.accounts {
		out[account.Status]++
	}
	return out, nil
}

func sortAndLimit(accounts []*model.RandomnessAccount, limit int) []*model.RandomnessAccount {
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].CreatedAt.Equal(accounts[j].CreatedAt) {
			return accounts[i].Address < accounts[j].Address
		}
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
	if limit > 0 && len(accounts) > limit {
		accounts = accounts[:limit]
	}
	return accounts
}
