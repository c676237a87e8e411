package refund

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/arena-labs/syncer/src/utils/config"
	"github.com/arena-labs/syncer/src/utils/model"
	"github.com/arena-labs/syncer/src/utils/notify"
	"github.com/arena-labs/syncer/src/utils/repository/memory"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestSchedulerTestSuite(t *testing.T) {
	suite.Run(t, new(SchedulerTestSuite))
}

type fakeSubmitter struct {
	mtx       sync.Mutex
	submitted []string
	err       error

	// Runs while the refund is in flight
	during func(match *model.Match)
}

func (self *fakeSubmitter) SubmitRefund(ctx context.Context, match *model.Match) (string, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if self.during != nil {
		self.during(match)
	}
	if self.err != nil {
		return "", self.err
	}
	self.submitted = append(self.submitted, match.Address)
	return "refund-" + match.Address, nil
}

type fakeReleaser struct {
	mtx      sync.Mutex
	released []string
}

func (self *fakeReleaser) Release(ctx context.Context, matchAddress string) error {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	self.released = append(self.released, matchAddress)
	return nil
}

type SchedulerTestSuite struct {
	suite.Suite
	ctx           context.Context
	now           time.Time
	store         *memory.Store
	submitter     *fakeSubmitter
	releaser      *fakeReleaser
	notifications chan *model.MatchNotification
	scheduler     *Scheduler
}

func (s *SchedulerTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Unix(1700000000, 0)
	s.store = memory.NewStore()
	s.submitter = &fakeSubmitter{}
	s.releaser = &fakeReleaser{}

	broadcaster := notify.NewBroadcaster()
	s.notifications = broadcaster.Subscribe(10)

	cfg := config.Default()
	cfg.Refunder.BatchSize = 10
	cfg.Refunder.GracePeriod = time.Hour
	cfg.Refunder.SubmitTimeout = time.Second
	cfg.Refunder.NumWorkers = 2

	s.scheduler = NewScheduler(cfg).
		WithStore(s.store).
		WithSubmitter(s.submitter).
		WithPool(s.releaser).
		WithBroadcaster(broadcaster).
		WithClock(func() time.Time { return s.now })
}

func (s *SchedulerTestSuite) TearDownTest() {
	s.scheduler.Workers.StopWait()
}

// Match waiting for an opponent with a deadline relative to now
func (s *SchedulerTestSuite) waiting(address string, deadline time.Duration) {
	d := s.now.Add(deadline).Unix()
	require.NoError(s.T(), s.store.Matches().Create(s.ctx, &model.Match{
		Address:   address,
		Status:    model.MatchStatusWaiting,
		Deadline:  d,
		CreatedAt: s.now,
	}))
	require.NoError(s.T(), s.store.RefundTasks().Upsert(s.ctx, address, d, s.now))
}

func (s *SchedulerTestSuite) task(address string) *model.RefundTask {
	task, err := s.store.RefundTasks().Get(s.ctx, address)
	require.NoError(s.T(), err)
	return task
}

func (s *SchedulerTestSuite) status(address string) model.MatchStatus {
	match, err := s.store.Matches().Get(s.ctx, address)
	require.NoError(s.T(), err)
	return match.Status
}

func (s *SchedulerTestSuite) TestRefundsOnlyAfterDeadline() {
	s.waiting("m1", -time.Minute)
	s.waiting("m2", time.Minute)

	executed, err := s.scheduler.Tick(s.ctx)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 1, executed)
	require.Equal(s.T(), []string{"m1"}, s.submitter.submitted)

	match, err := s.store.Matches().Get(s.ctx, "m1")
	require.NoError(s.T(), err)
	require.Equal(s.T(), model.MatchStatusRefunded, match.Status)
	require.Equal(s.T(), "refund-m1", match.RefundTx.String)

	task := s.task("m1")
	require.True(s.T(), task.ExecutedAt.Valid)
	require.Equal(s.T(), "refund-m1", task.ExecutedTransaction.String)

	require.Equal(s.T(), model.MatchStatusWaiting, s.status("m2"))
	require.Equal(s.T(), []string{"m1"}, s.releaser.released)

	notification := <-s.notifications
	require.Equal(s.T(), model.EventKindRefunded, notification.Type)
	require.Equal(s.T(), "m1", notification.Match.Address)

	// Executed refunds aren't repeated
	executed, err = s.scheduler.Tick(s.ctx)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 0, executed)
	require.Len(s.T(), s.submitter.submitted, 1)
}

func (s *SchedulerTestSuite) TestFinishedMatchIsCanceled() {
	s.waiting("m1", -time.Minute)
	match, err := s.store.Matches().Get(s.ctx, "m1")
	require.NoError(s.T(), err)
	next := match.Clone()
	next.Status = model.MatchStatusResolved
	require.NoError(s.T(), s.store.Matches().Update(s.ctx, next, model.MatchStatusWaiting))

	executed, err := s.scheduler.Tick(s.ctx)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 0, executed)
	require.Empty(s.T(), s.submitter.submitted)
	require.True(s.T(), s.task("m1").CanceledAt.Valid)
}

func (s *SchedulerTestSuite) TestResolvedWhileRefundInFlight() {
	s.waiting("m1", -time.Minute)

	// Indexer applies the resolution while the refund is being sent
	s.submitter.during = func(match *model.Match) {
		stored, err := s.store.Matches().Get(s.ctx, match.Address)
		require.NoError(s.T(), err)
		next := stored.Clone()
		next.Status = model.MatchStatusResolved
		next.PayoutTx = sql.NullString{String: "payout", Valid: true}
		require.NoError(s.T(), s.store.Matches().Update(s.ctx, next, model.MatchStatusWaiting))
	}

	executed, err := s.scheduler.Tick(s.ctx)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 0, executed)

	// Resolution wins, the match is never both
	match, err := s.store.Matches().Get(s.ctx, "m1")
	require.NoError(s.T(), err)
	require.Equal(s.T(), model.MatchStatusResolved, match.Status)
	require.False(s.T(), match.RefundTx.Valid)

	task := s.task("m1")
	require.True(s.T(), task.CanceledAt.Valid)
	require.False(s.T(), task.ExecutedAt.Valid)
}

func (s *SchedulerTestSuite) TestOwnRefundAppliedFirst() {
	s.waiting("m1", -time.Minute)

	s.submitter.during = func(match *model.Match) {
		stored, err := s.store.Matches().Get(s.ctx, match.Address)
		require.NoError(s.T(), err)
		next := stored.Clone()
		next.Status = model.MatchStatusRefunded
		next.RefundTx = sql.NullString{String: "refund-m1", Valid: true}
		require.NoError(s.T(), s.store.Matches().Update(s.ctx, next, model.MatchStatusWaiting))
	}

	executed, err := s.scheduler.Tick(s.ctx)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 1, executed)
	require.True(s.T(), s.task("m1").ExecutedAt.Valid)
}

func (s *SchedulerTestSuite) TestSubmissionFailureIsRetried() {
	s.waiting("m1", -time.Minute)
	s.submitter.err = errors.New("blockhash not found")

	for i := 0; i < 2; i++ {
		executed, err := s.scheduler.Tick(s.ctx)
		require.NoError(s.T(), err)
		require.Equal(s.T(), 0, executed)
	}

	task := s.task("m1")
	require.True(s.T(), task.IsPending())
	require.Equal(s.T(), 2, task.Attempts)
	require.Equal(s.T(), "blockhash not found", task.LastError)
	require.Equal(s.T(), model.MatchStatusWaiting, s.status("m1"))
	require.Equal(s.T(), uint64(2), s.scheduler.report.Errors.Submit.Load())

	s.submitter.err = nil
	executed, err := s.scheduler.Tick(s.ctx)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 1, executed)
	require.Equal(s.T(), model.MatchStatusRefunded, s.status("m1"))
}

func (s *SchedulerTestSuite) TestGivesUpAfterGracePeriod() {
	s.waiting("m1", -2*time.Hour)
	s.submitter.err = errors.New("unreachable")

	executed, err := s.scheduler.Tick(s.ctx)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 0, executed)
	require.Empty(s.T(), s.submitter.submitted)

	task := s.task("m1")
	require.True(s.T(), task.FailedAt.Valid)
	require.False(s.T(), task.IsPending())
	require.Equal(s.T(), uint64(1), s.scheduler.report.State.Overdue.Load())
	require.Equal(s.T(), model.MatchStatusWaiting, s.status("m1"))
}

func (s *SchedulerTestSuite) TestMovedDeadlineIsRescheduled() {
	s.waiting("m1", -time.Minute)

	// Joined with a later deadline, the task wasn't updated yet
	match, err := s.store.Matches().Get(s.ctx, "m1")
	require.NoError(s.T(), err)
	next := match.Clone()
	next.Status = model.MatchStatusAwaitingRandomness
	next.Deadline = s.now.Add(time.Hour).Unix()
	require.NoError(s.T(), s.store.Matches().Update(s.ctx, next, model.MatchStatusWaiting))

	executed, err := s.scheduler.Tick(s.ctx)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 0, executed)
	require.Empty(s.T(), s.submitter.submitted)
	require.Equal(s.T(), next.Deadline, s.task("m1").Deadline)
}
