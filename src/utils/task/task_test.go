package task

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arena-labs/syncer/src/utils/config"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestTaskTestSuite(t *testing.T) {
	suite.Run(t, new(TaskTestSuite))
}

type TaskTestSuite struct {
	suite.Suite
	config *config.Config
}

func (s *TaskTestSuite) SetupSuite() {
	s.config = config.Default()
}

func (s *TaskTestSuite) TestPeriodicSubtask() {
	var calls atomic.Int32
	task := NewTask(s.config, "periodic").
		WithPeriodicSubtaskFunc(10*time.Millisecond, func() error {
			calls.Add(1)
			return nil
		})

	require.Nil(s.T(), task.Start())
	require.Eventually(s.T(), func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	task.StopWait()
	require.Error(s.T(), task.CtxRunning.Err())
}

func (s *TaskTestSuite) TestTriggeredSubtask() {
	var calls atomic.Int32
	trigger := NewTrigger()
	task := NewTask(s.config, "triggered").
		WithTriggeredSubtaskFunc(time.Hour, trigger, func() error {
			calls.Add(1)
			return nil
		})

	require.Nil(s.T(), task.Start())
	require.Eventually(s.T(), func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	trigger.Fire()
	require.Eventually(s.T(), func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)

	task.StopWait()
}

func (s *TaskTestSuite) TestTriggerCoalesces() {
	trigger := NewTrigger()
	trigger.Fire()
	trigger.Fire()
	require.Len(s.T(), trigger, 1)
}

func (s *TaskTestSuite) TestSubtasksStopWithParent() {
	child := NewTask(s.config, "child").
		WithSubtaskFunc(func() error { return nil })
	var stopped atomic.Bool
	child.WithOnStop(func() { stopped.Store(true) })

	parent := NewTask(s.config, "parent").WithSubtask(child)
	require.Nil(s.T(), parent.Start())

	parent.StopWait()
	require.True(s.T(), stopped.Load())
	require.Error(s.T(), child.CtxRunning.Err())
}

func (s *TaskTestSuite) TestWorkerPool() {
	var done atomic.Int32
	task := NewTask(s.config, "workers").WithWorkerPool(2, 10)
	require.Nil(s.T(), task.Start())

	for i := 0; i < 20; i++ {
		task.SubmitToWorker(func() { done.Add(1) })
	}
	require.Eventually(s.T(), func() bool { return done.Load() == 20 }, time.Second, 5*time.Millisecond)
	task.StopWait()
}

func (s *TaskTestSuite) TestRetryStopsOnSuccess() {
	var attempts int
	err := NewRetry().
		WithMaxElapsedTime(time.Second).
		WithMaxInterval(time.Millisecond).
		WithOnError(func(err error, isDurationAcceptable bool) error { return err }).
		Run(func() error {
			attempts++
			if attempts < 3 {
				return errors.New("transient")
			}
			return nil
		})
	require.Nil(s.T(), err)
	require.Equal(s.T(), 3, attempts)
}
