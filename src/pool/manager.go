package pool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/arena-labs/syncer/src/utils/config"
	"github.com/arena-labs/syncer/src/utils/model"
	"github.com/arena-labs/syncer/src/utils/monitoring"
	"github.com/arena-labs/syncer/src/utils/monitoring/report"
	"github.com/arena-labs/syncer/src/utils/oracle"
	"github.com/arena-labs/syncer/src/utils/repository"
	"github.com/arena-labs/syncer/src/utils/task"

	"go.uber.org/ratelimit"
)

// Pool is empty, replenishment was requested
var ErrNoAvailableAccount = errors.New("no available randomness account")

const maxRecordAttempts = 3

type Oracle interface {
	CreateAccount(ctx context.Context) (string, error)
	Commit(ctx context.Context, address string) error
	IsReady(ctx context.Context, address string) (bool, error)
	ReadValue(ctx context.Context, address string) (value string, ok bool, err error)
}

// Keeps a pool of randomness accounts and hands them out to matches
type Manager struct {
	*task.Task

	store   repository.Store
	oracle  Oracle
	report  *report.PoolReport
	limiter ratelimit.Limiter

	// Wakes up the replenisher before its next period
	replenish task.Trigger

	now func() time.Time
}

func NewManager(config *config.Config) (self *Manager) {
	self = new(Manager)
	self.report = &report.PoolReport{}
	self.replenish = task.NewTrigger()
	self.now = time.Now

	perSecond := config.Pool.ProvisionPerSecond
	if perSecond <= 0 {
		perSecond = 1
	}
	self.limiter = ratelimit.New(perSecond)

	self.Task = task.NewTask(config, "pool").
		WithPeriodicSubtaskFunc(config.Pool.SweepInterval, self.sweep).
		WithPeriodicSubtaskFunc(config.Pool.VerifyInterval, self.verify).
		WithPeriodicSubtaskFunc(config.Pool.ReclaimInterval, self.reclaim).
		WithTriggeredSubtaskFunc(config.Pool.ReplenishInterval, self.replenish, self.runReplenisher)

	return
}

func (self *Manager) WithStore(v repository.Store) *Manager {
	self.store = v
	return self
}

func (self *Manager) WithOracle(v Oracle) *Manager {
	self.oracle = v
	return self
}

func (self *Manager) WithMonitor(v *monitoring.Monitor) *Manager {
	self.report = v.GetReport().Pool
	return self
}

func (self *Manager) WithClock(now func() time.Time) *Manager {
	self.now = now
	return self
}

// Requests replenishment without waiting for the next period
func (self *Manager) TriggerReplenish() {
	self.replenish.Fire()
}

// Binds an available account to the match and commits it with the oracle.
// Returns the account already bound to the match if there is one.
func (self *Manager) Assign(ctx context.Context, matchAddress string) (*model.RandomnessAccount, error) {
	existing, err := self.store.RandomnessPool().GetByMatch(ctx, matchAddress)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		self.report.Errors.Database.Inc()
		return nil, err
	}

	attempts := self.Config.Pool.MaxAssignAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		account, err := self.store.RandomnessPool().Acquire(ctx, matchAddress, self.now())
		if errors.Is(err, repository.ErrNotFound) {
			self.report.State.CapacityErrors.Inc()
			self.Log.WithField("match", matchAddress).Warn("Randomness pool is empty")
			self.TriggerReplenish()
			return nil, ErrNoAvailableAccount
		}
		if err != nil {
			self.report.Errors.Database.Inc()
			return nil, err
		}

		err = self.oracle.Commit(ctx, account.Address)
		if err == nil {
			self.report.State.Assigned.Inc()
			self.Log.WithField("match", matchAddress).WithField("account", account.Address).Info("Assigned randomness account")
			return account, nil
		}

		self.report.Errors.Commit.Inc()
		if errors.Is(err, oracle.ErrVerificationFailed) {
			self.invalidate(ctx, account.Address, err)
			continue
		}

		// Account wasn't used, it goes through cooldown like any other
		self.release(ctx, account.Address)
		return nil, fmt.Errorf("failed to commit randomness account: %w", err)
	}

	return nil, fmt.Errorf("%w: %d accounts failed verification", ErrNoAvailableAccount, attempts)
}

// Gives the match a randomness account and records it on the match.
// A non-empty preferred account was chosen on chain and is consumed instead of assigning one.
// If the preferred account is taken by another match or not available, one is assigned from the pool.
func (self *Manager) AssignToMatch(ctx context.Context, matchAddress, preferred string) (address string, err error) {
	if preferred != "" {
		address, err = self.consume(ctx, matchAddress, preferred)
		if err != nil {
			return "", err
		}
	}

	if address == "" {
		var account *model.RandomnessAccount
		account, err = self.Assign(ctx, matchAddress)
		if err != nil {
			return "", err
		}
		address = account.Address
	}

	err = self.recordOnMatch(ctx, matchAddress, address)
	return
}

// Returns empty address if the account can't be bound to the match
func (self *Manager) consume(ctx context.Context, matchAddress, preferred string) (string, error) {
	_, err := self.store.RandomnessPool().Consume(ctx, preferred, matchAddress, self.now())
	switch {
	case err == nil:
		self.report.State.Assigned.Inc()
		return preferred, nil
	case errors.Is(err, repository.ErrNotFound):
		self.Log.WithField("account", preferred).Info("Randomness account isn't managed by the pool")
		return preferred, nil
	case errors.Is(err, repository.ErrConflict):
		self.report.State.Conflicts.Inc()
		self.Log.WithField("account", preferred).WithField("match", matchAddress).
			Warn("Randomness account isn't available for the match, assigning from the pool")
		return "", nil
	default:
		self.report.Errors.Database.Inc()
		return "", err
	}
}

func (self *Manager) recordOnMatch(ctx context.Context, matchAddress, address string) error {
	for i := 0; i < maxRecordAttempts; i++ {
		match, err := self.store.Matches().Get(ctx, matchAddress)
		if err != nil {
			return err
		}

		if match.Status.IsTerminal() {
			// Match finished while the account was being assigned
			return self.Release(ctx, matchAddress)
		}

		if match.RandomnessAccount.Valid && match.RandomnessAccount.String == address {
			return nil
		}

		next := match.Clone()
		next.RandomnessAccount = sql.NullString{String: address, Valid: true}
		next.UpdatedAt = self.now()
		err = self.store.Matches().Update(ctx, next, match.Status)
		if errors.Is(err, repository.ErrConflict) {
			continue
		}
		return err
	}
	return repository.ErrConflict
}

// Moves the account bound to the match to cooldown. No-op if there's none.
func (self *Manager) Release(ctx context.Context, matchAddress string) error {
	account, err := self.store.RandomnessPool().GetByMatch(ctx, matchAddress)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		self.report.Errors.Database.Inc()
		return err
	}
	return self.release(ctx, account.Address)
}

func (self *Manager) release(ctx context.Context, address string) error {
	until := self.now().Add(self.Config.Pool.CooldownWindow())
	err := self.store.RandomnessPool().Release(ctx, address, until)
	if err != nil {
		self.report.Errors.Database.Inc()
		self.Log.WithError(err).WithField("account", address).Warn("Failed to release randomness account")
		return err
	}
	self.report.State.Released.Inc()
	self.Log.WithField("account", address).WithField("until", until).Debug("Randomness account in cooldown")
	return nil
}

func (self *Manager) invalidate(ctx context.Context, address string, reason error) {
	self.Log.WithError(reason).WithField("account", address).Error("Randomness account failed verification, invalidating")
	err := self.store.RandomnessPool().Invalidate(ctx, address, self.now())
	if err != nil {
		self.report.Errors.Database.Inc()
		self.Log.WithError(err).WithField("account", address).Warn("Failed to invalidate randomness account")
		return
	}
	self.report.State.Invalidated.Inc()
	self.TriggerReplenish()
}

// Creates count accounts with the oracle, paced by the provisioning rate limit
func (self *Manager) Provision(ctx context.Context, count int) (created int, err error) {
	for created < count {
		self.limiter.Take()
		if err = ctx.Err(); err != nil {
			return
		}

		var address string
		address, err = self.oracle.CreateAccount(ctx)
		if err != nil {
			self.report.Errors.Provision.Inc()
			return
		}

		err = self.store.RandomnessPool().Create(ctx, &model.RandomnessAccount{
			Address:   address,
			Status:    model.RandomnessAccountStatusAvailable,
			CreatedAt: self.now(),
		})
		if err != nil {
			self.report.Errors.Database.Inc()
			return
		}

		created++
		self.report.State.Provisioned.Inc()
	}
	return
}

// Tops the pool up to the ceiling once it falls under the floor
func (self *Manager) Replenish(ctx context.Context) (created int, err error) {
	counts, err := self.refreshSizes(ctx)
	if err != nil {
		return
	}

	ready := counts[model.RandomnessAccountStatusAvailable] + counts[model.RandomnessAccountStatusCooldown]
	if ready >= self.Config.Pool.Floor {
		return
	}

	needed := self.Config.Pool.Ceiling - ready
	self.Log.WithField("ready", ready).WithField("needed", needed).Info("Replenishing randomness pool")

	created, err = self.Provision(ctx, needed)
	if err != nil {
		self.Log.WithError(err).WithField("created", created).Warn("Replenishment interrupted")
	}
	return
}

// Moves accounts whose cooldown passed back to Available
func (self *Manager) Recycle(ctx context.Context) (promoted int, err error) {
	now := self.now()
	accounts, err := self.store.RandomnessPool().ListCooldownExpired(ctx, now, self.Config.Pool.SweepBatchSize)
	if err != nil {
		self.report.Errors.Database.Inc()
		return
	}

	for _, account := range accounts {
		err = self.store.RandomnessPool().Promote(ctx, account.Address, now)
		if errors.Is(err, repository.ErrConflict) {
			continue
		}
		if err != nil {
			self.report.Errors.Database.Inc()
			return
		}
		promoted++
		self.report.State.Promoted.Inc()
	}
	return
}

// Reads values of accounts in use, the ones that fail verification are invalidated
func (self *Manager) VerifyInUse(ctx context.Context) (invalidated int, err error) {
	accounts, err := self.store.RandomnessPool().ListByStatus(ctx, model.RandomnessAccountStatusInUse, self.Config.Pool.SweepBatchSize)
	if err != nil {
		self.report.Errors.Database.Inc()
		return
	}

	for _, account := range accounts {
		ready, err := self.oracle.IsReady(ctx, account.Address)
		if err != nil {
			self.Log.WithError(err).WithField("account", account.Address).Warn("Failed to check randomness account")
			continue
		}
		if !ready {
			// Nothing revealed yet, nothing to verify
			continue
		}

		_, _, err = self.oracle.ReadValue(ctx, account.Address)
		if errors.Is(err, oracle.ErrVerificationFailed) {
			self.report.Errors.Verify.Inc()
			self.invalidate(ctx, account.Address, err)
			invalidated++
			continue
		}
		if err != nil {
			self.Log.WithError(err).WithField("account", account.Address).Warn("Failed to read randomness value")
		}
	}
	return
}

// Fixes accounts left behind by lost releases and matches left without an account
func (self *Manager) Reclaim(ctx context.Context) (released, assigned int, err error) {
	accounts, err := self.store.RandomnessPool().ListByStatus(ctx, model.RandomnessAccountStatusInUse, self.Config.Pool.SweepBatchSize)
	if err != nil {
		self.report.Errors.Database.Inc()
		return
	}

	for _, account := range accounts {
		if !account.MatchAddress.Valid {
			continue
		}
		match, err := self.store.Matches().Get(ctx, account.MatchAddress.String)
		if err != nil || !match.Status.IsTerminal() {
			continue
		}
		if self.release(ctx, account.Address) == nil {
			released++
		}
	}

	matches, err := self.store.Matches().ListByStatus(ctx, self.Config.Pool.SweepBatchSize, model.MatchStatusAwaitingRandomness)
	if err != nil {
		self.report.Errors.Database.Inc()
		return
	}

	for _, match := range matches {
		if !self.lacksAccount(ctx, match) {
			continue
		}

		_, err = self.AssignToMatch(ctx, match.Address, "")
		if errors.Is(err, ErrNoAvailableAccount) {
			err = nil
			break
		}
		if err != nil {
			self.Log.WithError(err).WithField("match", match.Address).Warn("Failed to assign randomness account")
			err = nil
			continue
		}
		assigned++
	}
	return
}

func (self *Manager) lacksAccount(ctx context.Context, match *model.Match) bool {
	if !match.RandomnessAccount.Valid {
		return true
	}
	account, err := self.store.RandomnessPool().Get(ctx, match.RandomnessAccount.String)
	if err != nil {
		// Accounts outside of the pool are trusted
		return false
	}
	return account.Status != model.RandomnessAccountStatusInUse || account.MatchAddress.String != match.Address
}

func (self *Manager) refreshSizes(ctx context.Context) (counts map[model.RandomnessAccountStatus]int, err error) {
	counts, err = self.store.RandomnessPool().CountByStatus(ctx)
	if err != nil {
		self.report.Errors.Database.Inc()
		return
	}
	self.report.State.Available.Store(int64(counts[model.RandomnessAccountStatusAvailable]))
	self.report.State.InUse.Store(int64(counts[model.RandomnessAccountStatusInUse]))
	self.report.State.Cooldown.Store(int64(counts[model.RandomnessAccountStatusCooldown]))
	self.report.State.Invalid.Store(int64(counts[model.RandomnessAccountStatusInvalid]))
	return
}

func (self *Manager) sweep() error {
	promoted, err := self.Recycle(self.Ctx)
	if err != nil {
		self.Log.WithError(err).Warn("Failed to recycle randomness accounts")
	} else if promoted > 0 {
		self.Log.WithField("count", promoted).Debug("Randomness accounts available again")
	}
	_, _ = self.refreshSizes(self.Ctx)
	return nil
}

func (self *Manager) verify() error {
	_, err := self.VerifyInUse(self.Ctx)
	if err != nil {
		self.Log.WithError(err).Warn("Failed to verify randomness accounts")
	}
	return nil
}

func (self *Manager) reclaim() error {
	released, assigned, err := self.Reclaim(self.Ctx)
	if err != nil {
		self.Log.WithError(err).Warn("Failed to reclaim randomness accounts")
		return nil
	}
	if released > 0 || assigned > 0 {
		self.Log.WithField("released", released).WithField("assigned", assigned).Info("Reclaimed randomness accounts")
	}
	return nil
}

func (self *Manager) runReplenisher() error {
	_, err := self.Replenish(self.Ctx)
	if err != nil {
		self.Log.WithError(err).Warn("Failed to replenish randomness pool")
	}
	return nil
}
