package publisher

import (
	"testing"
	"time"

	"github.com/arena-labs/syncer/src/utils/config"
	"github.com/arena-labs/syncer/src/utils/model"
	"github.com/arena-labs/syncer/src/utils/monitoring"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestRedisPublisherTestSuite(t *testing.T) {
	suite.Run(t, new(RedisPublisherTestSuite))
}

type RedisPublisherTestSuite struct {
	suite.Suite
	config  *config.Config
	monitor *monitoring.Monitor
}

func (s *RedisPublisherTestSuite) SetupTest() {
	s.config = config.Default()
	s.config.Redis.MaxElapsedTime = 200 * time.Millisecond
	s.config.Redis.MaxInterval = 20 * time.Millisecond
	s.monitor = monitoring.NewMonitor(s.config)
}

func (s *RedisPublisherTestSuite) unreachable() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func (s *RedisPublisherTestSuite) TestGivesUpAfterMaxElapsedTime() {
	publisher := NewRedisPublisher[*model.MatchNotification](s.config, "publisher-test").
		WithClient(s.unreachable()).
		WithMonitor(s.monitor)

	publisher.publish(model.NewMatchNotification(model.EventKindCreated, &model.Match{Address: "m1"}))

	report := s.monitor.GetReport().Publisher
	require.Equal(s.T(), uint64(1), report.Errors.PersistentFailure.Load())
	require.Greater(s.T(), report.Errors.Publish.Load(), uint64(0))
	require.Zero(s.T(), report.State.MessagesPublished.Load())
}

func (s *RedisPublisherTestSuite) TestStopsWhenInputClosed() {
	input := make(chan *model.MatchNotification)
	publisher := NewRedisPublisher[*model.MatchNotification](s.config, "publisher-test").
		WithClient(s.unreachable()).
		WithMonitor(s.monitor).
		WithInputChannel(input)

	done := make(chan error, 1)
	go func() {
		done <- publisher.run()
	}()

	close(input)
	select {
	case err := <-done:
		require.NoError(s.T(), err)
	case <-time.After(5 * time.Second):
		s.T().Fatal("publisher didn't stop")
	}
}
