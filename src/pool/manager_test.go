package pool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/arena-labs/syncer/src/utils/config"
	"github.com/arena-labs/syncer/src/utils/model"
	"github.com/arena-labs/syncer/src/utils/oracle"
	"github.com/arena-labs/syncer/src/utils/repository/memory"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestManagerTestSuite(t *testing.T) {
	suite.Run(t, new(ManagerTestSuite))
}

type fakeOracle struct {
	mtx     sync.Mutex
	created int

	// Errors returned for given accounts
	commitErr map[string]error
	readErr   map[string]error
	notReady  map[string]bool
	committed []string
	read      []string
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{
		commitErr: make(map[string]error),
		readErr:   make(map[string]error),
		notReady:  make(map[string]bool),
	}
}

func (self *fakeOracle) CreateAccount(ctx context.Context) (string, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	self.created++
	return fmt.Sprintf("acc-%02d", self.created), nil
}

func (self *fakeOracle) Commit(ctx context.Context, address string) error {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	self.committed = append(self.committed, address)
	return self.commitErr[address]
}

func (self *fakeOracle) IsReady(ctx context.Context, address string) (bool, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	return !self.notReady[address], nil
}

func (self *fakeOracle) ReadValue(ctx context.Context, address string) (string, bool, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	self.read = append(self.read, address)
	if err := self.readErr[address]; err != nil {
		return "", false, err
	}
	return "42", true, nil
}

type ManagerTestSuite struct {
	suite.Suite
	ctx     context.Context
	now     time.Time
	store   *memory.Store
	oracle  *fakeOracle
	manager *Manager
}

func (s *ManagerTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Unix(1700000000, 0)
	s.store = memory.NewStore()
	s.oracle = newFakeOracle()

	cfg := config.Default()
	cfg.Pool.CooldownMinutes = 5
	cfg.Pool.Floor = 5
	cfg.Pool.Ceiling = 20
	cfg.Pool.MaxAssignAttempts = 3
	cfg.Pool.ProvisionPerSecond = 10000
	cfg.Pool.SweepBatchSize = 100

	s.manager = NewManager(cfg).
		WithStore(s.store).
		WithOracle(s.oracle).
		WithClock(func() time.Time { return s.now })
}

func (s *ManagerTestSuite) provision(count int) {
	created, err := s.manager.Provision(s.ctx, count)
	require.NoError(s.T(), err)
	require.Equal(s.T(), count, created)
}

func (s *ManagerTestSuite) match(address string, status model.MatchStatus) {
	require.NoError(s.T(), s.store.Matches().Create(s.ctx, &model.Match{
		Address:   address,
		Status:    status,
		CreatedAt: s.now,
	}))
}

func (s *ManagerTestSuite) account(address string) *model.RandomnessAccount {
	account, err := s.store.RandomnessPool().Get(s.ctx, address)
	require.NoError(s.T(), err)
	return account
}

func (s *ManagerTestSuite) TestAssignReleaseRecycle() {
	s.provision(2)
	s.match("m1", model.MatchStatusAwaitingRandomness)

	address, err := s.manager.AssignToMatch(s.ctx, "m1", "")
	require.NoError(s.T(), err)
	require.Equal(s.T(), "acc-01", address)
	require.Equal(s.T(), []string{"acc-01"}, s.oracle.committed)

	match, err := s.store.Matches().Get(s.ctx, "m1")
	require.NoError(s.T(), err)
	require.Equal(s.T(), "acc-01", match.RandomnessAccount.String)

	account := s.account("acc-01")
	require.Equal(s.T(), model.RandomnessAccountStatusInUse, account.Status)
	require.Equal(s.T(), "m1", account.MatchAddress.String)

	// Assigning again returns the same account
	again, err := s.manager.Assign(s.ctx, "m1")
	require.NoError(s.T(), err)
	require.Equal(s.T(), "acc-01", again.Address)

	require.NoError(s.T(), s.manager.Release(s.ctx, "m1"))
	account = s.account("acc-01")
	require.Equal(s.T(), model.RandomnessAccountStatusCooldown, account.Status)
	require.True(s.T(), account.CooldownUntil.Time.Equal(s.now.Add(5*time.Minute)))

	// Releasing twice is a no-op
	require.NoError(s.T(), s.manager.Release(s.ctx, "m1"))

	s.now = s.now.Add(4 * time.Minute)
	promoted, err := s.manager.Recycle(s.ctx)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 0, promoted)

	s.now = s.now.Add(time.Minute)
	promoted, err = s.manager.Recycle(s.ctx)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 1, promoted)
	require.Equal(s.T(), model.RandomnessAccountStatusAvailable, s.account("acc-01").Status)
}

func (s *ManagerTestSuite) TestEmptyPoolRequestsReplenishment() {
	_, err := s.manager.Assign(s.ctx, "m1")
	require.ErrorIs(s.T(), err, ErrNoAvailableAccount)
	require.Equal(s.T(), uint64(1), s.manager.report.State.CapacityErrors.Load())
	require.Len(s.T(), s.manager.replenish, 1)
}

func (s *ManagerTestSuite) TestVerificationFailureTriesNextAccount() {
	s.provision(2)
	s.oracle.commitErr["acc-01"] = oracle.ErrVerificationFailed

	account, err := s.manager.Assign(s.ctx, "m1")
	require.NoError(s.T(), err)
	require.Equal(s.T(), "acc-02", account.Address)
	require.Equal(s.T(), model.RandomnessAccountStatusInvalid, s.account("acc-01").Status)
	require.Equal(s.T(), uint64(1), s.manager.report.State.Invalidated.Load())
}

func (s *ManagerTestSuite) TestAllAccountsFailVerification() {
	s.provision(3)
	for _, address := range []string{"acc-01", "acc-02", "acc-03"} {
		s.oracle.commitErr[address] = oracle.ErrVerificationFailed
	}

	_, err := s.manager.Assign(s.ctx, "m1")
	require.ErrorIs(s.T(), err, ErrNoAvailableAccount)
}

func (s *ManagerTestSuite) TestTransientCommitFailure() {
	s.provision(1)
	s.oracle.commitErr["acc-01"] = errors.New("timeout")

	_, err := s.manager.Assign(s.ctx, "m1")
	require.Error(s.T(), err)
	require.NotErrorIs(s.T(), err, ErrNoAvailableAccount)
	require.Equal(s.T(), model.RandomnessAccountStatusCooldown, s.account("acc-01").Status)
}

func (s *ManagerTestSuite) TestPreferredAccountIsConsumed() {
	s.provision(2)
	s.match("m1", model.MatchStatusAwaitingRandomness)

	address, err := s.manager.AssignToMatch(s.ctx, "m1", "acc-02")
	require.NoError(s.T(), err)
	require.Equal(s.T(), "acc-02", address)
	require.Equal(s.T(), model.RandomnessAccountStatusInUse, s.account("acc-02").Status)
	require.Equal(s.T(), model.RandomnessAccountStatusAvailable, s.account("acc-01").Status)

	// Chosen on chain, not committed by the pool
	require.Empty(s.T(), s.oracle.committed)
}

func (s *ManagerTestSuite) TestPreferredAccountOfAnotherMatch() {
	s.provision(2)
	s.match("m1", model.MatchStatusAwaitingRandomness)
	s.match("m2", model.MatchStatusAwaitingRandomness)

	address, err := s.manager.AssignToMatch(s.ctx, "m1", "")
	require.NoError(s.T(), err)
	require.Equal(s.T(), "acc-01", address)

	// Joining transaction names an account that belongs to m1
	address, err = s.manager.AssignToMatch(s.ctx, "m2", "acc-01")
	require.NoError(s.T(), err)
	require.Equal(s.T(), "acc-02", address)

	require.Equal(s.T(), "m1", s.account("acc-01").MatchAddress.String)
	require.Equal(s.T(), "m2", s.account("acc-02").MatchAddress.String)

	m1, err := s.store.Matches().Get(s.ctx, "m1")
	require.NoError(s.T(), err)
	require.Equal(s.T(), "acc-01", m1.RandomnessAccount.String)
	m2, err := s.store.Matches().Get(s.ctx, "m2")
	require.NoError(s.T(), err)
	require.Equal(s.T(), "acc-02", m2.RandomnessAccount.String)
	require.Equal(s.T(), uint64(1), s.manager.report.State.Conflicts.Load())
}

func (s *ManagerTestSuite) TestPreferredAccountInCooldown() {
	s.provision(1)
	s.match("m1", model.MatchStatusWaiting)
	s.match("m2", model.MatchStatusAwaitingRandomness)

	_, err := s.manager.AssignToMatch(s.ctx, "m1", "")
	require.NoError(s.T(), err)
	require.NoError(s.T(), s.manager.Release(s.ctx, "m1"))

	// Only account is cooling down, nothing to assign
	_, err = s.manager.AssignToMatch(s.ctx, "m2", "acc-01")
	require.ErrorIs(s.T(), err, ErrNoAvailableAccount)

	account := s.account("acc-01")
	require.Equal(s.T(), model.RandomnessAccountStatusCooldown, account.Status)
	require.False(s.T(), account.MatchAddress.Valid)

	m2, err := s.store.Matches().Get(s.ctx, "m2")
	require.NoError(s.T(), err)
	require.False(s.T(), m2.RandomnessAccount.Valid)

	// Sweep assigns it once the cooldown is over
	s.now = s.now.Add(5 * time.Minute)
	_, err = s.manager.Recycle(s.ctx)
	require.NoError(s.T(), err)

	_, assigned, err := s.manager.Reclaim(s.ctx)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 1, assigned)
	require.Equal(s.T(), "m2", s.account("acc-01").MatchAddress.String)
}

func (s *ManagerTestSuite) TestReclaimFixesSharedAccount() {
	s.provision(2)
	s.match("m1", model.MatchStatusAwaitingRandomness)
	_, err := s.manager.AssignToMatch(s.ctx, "m1", "")
	require.NoError(s.T(), err)

	// Recorded before conflicts were detected
	require.NoError(s.T(), s.store.Matches().Create(s.ctx, &model.Match{
		Address:           "m2",
		Status:            model.MatchStatusAwaitingRandomness,
		RandomnessAccount: sql.NullString{String: "acc-01", Valid: true},
		CreatedAt:         s.now.Add(time.Second),
	}))

	_, assigned, err := s.manager.Reclaim(s.ctx)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 1, assigned)

	m2, err := s.store.Matches().Get(s.ctx, "m2")
	require.NoError(s.T(), err)
	require.Equal(s.T(), "acc-02", m2.RandomnessAccount.String)
	require.Equal(s.T(), "m1", s.account("acc-01").MatchAddress.String)
}

func (s *ManagerTestSuite) TestAssignToFinishedMatchReleases() {
	s.provision(1)
	s.match("m1", model.MatchStatusResolved)

	_, err := s.manager.AssignToMatch(s.ctx, "m1", "")
	require.NoError(s.T(), err)
	require.Equal(s.T(), model.RandomnessAccountStatusCooldown, s.account("acc-01").Status)
}

func (s *ManagerTestSuite) TestReplenishFloorAndCeiling() {
	s.provision(5)

	// At the floor, nothing to do
	created, err := s.manager.Replenish(s.ctx)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 0, created)

	// One account in use drops the pool under the floor
	_, err = s.manager.Assign(s.ctx, "m1")
	require.NoError(s.T(), err)

	created, err = s.manager.Replenish(s.ctx)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 16, created)

	counts, err := s.store.RandomnessPool().CountByStatus(s.ctx)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 20, counts[model.RandomnessAccountStatusAvailable])
	require.Equal(s.T(), 1, counts[model.RandomnessAccountStatusInUse])
	require.Equal(s.T(), int64(20), s.manager.report.State.Available.Load())
}

func (s *ManagerTestSuite) TestVerifyInUseInvalidates() {
	s.provision(2)
	_, err := s.manager.Assign(s.ctx, "m1")
	require.NoError(s.T(), err)
	_, err = s.manager.Assign(s.ctx, "m2")
	require.NoError(s.T(), err)

	s.oracle.readErr["acc-02"] = oracle.ErrVerificationFailed
	s.oracle.readErr["acc-01"] = errors.New("timeout")

	invalidated, err := s.manager.VerifyInUse(s.ctx)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 1, invalidated)
	require.Equal(s.T(), model.RandomnessAccountStatusInvalid, s.account("acc-02").Status)
	require.Equal(s.T(), model.RandomnessAccountStatusInUse, s.account("acc-01").Status)
	require.Len(s.T(), s.manager.replenish, 1)
}

func (s *ManagerTestSuite) TestVerifyInUseSkipsUnrevealed() {
	s.provision(2)
	_, err := s.manager.Assign(s.ctx, "m1")
	require.NoError(s.T(), err)
	_, err = s.manager.Assign(s.ctx, "m2")
	require.NoError(s.T(), err)

	s.oracle.notReady["acc-01"] = true
	s.oracle.readErr["acc-01"] = oracle.ErrVerificationFailed

	invalidated, err := s.manager.VerifyInUse(s.ctx)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 0, invalidated)
	require.Equal(s.T(), []string{"acc-02"}, s.oracle.read)
	require.Equal(s.T(), model.RandomnessAccountStatusInUse, s.account("acc-01").Status)
}

func (s *ManagerTestSuite) TestReclaim() {
	s.provision(3)

	// Release was lost after the match finished
	s.match("finished", model.MatchStatusWaiting)
	_, err := s.manager.AssignToMatch(s.ctx, "finished", "")
	require.NoError(s.T(), err)
	match, err := s.store.Matches().Get(s.ctx, "finished")
	require.NoError(s.T(), err)
	next := match.Clone()
	next.Status = model.MatchStatusRefunded
	require.NoError(s.T(), s.store.Matches().Update(s.ctx, next, model.MatchStatusWaiting))

	// Pool was empty at join time
	s.match("waiting", model.MatchStatusAwaitingRandomness)

	// Account invalidated while in use
	require.NoError(s.T(), s.store.Matches().Create(s.ctx, &model.Match{
		Address:           "broken",
		Status:            model.MatchStatusAwaitingRandomness,
		RandomnessAccount: sql.NullString{String: "acc-03", Valid: true},
		CreatedAt:         s.now.Add(time.Second),
	}))
	require.NoError(s.T(), s.store.RandomnessPool().Invalidate(s.ctx, "acc-03", s.now))

	released, assigned, err := s.manager.Reclaim(s.ctx)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 1, released)
	require.Equal(s.T(), 1, assigned)

	require.Equal(s.T(), model.RandomnessAccountStatusCooldown, s.account("acc-01").Status)

	waiting, err := s.store.Matches().Get(s.ctx, "waiting")
	require.NoError(s.T(), err)
	require.Equal(s.T(), "acc-02", waiting.RandomnessAccount.String)

	// Pool ran dry, the next sweep picks it up once acc-01 cools down
	broken, err := s.store.Matches().Get(s.ctx, "broken")
	require.NoError(s.T(), err)
	require.Equal(s.T(), "acc-03", broken.RandomnessAccount.String)

	s.now = s.now.Add(5 * time.Minute)
	_, err = s.manager.Recycle(s.ctx)
	require.NoError(s.T(), err)

	_, assigned, err = s.manager.Reclaim(s.ctx)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 1, assigned)

	broken, err = s.store.Matches().Get(s.ctx, "broken")
	require.NoError(s.T(), err)
	require.Equal(s.T(), "acc-01", broken.RandomnessAccount.String)
}
