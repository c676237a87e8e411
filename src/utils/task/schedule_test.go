package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestScheduleBackOffTestSuite(t *testing.T) {
	suite.Run(t, new(ScheduleBackOffTestSuite))
}

type ScheduleBackOffTestSuite struct {
	suite.Suite
}

func (s *ScheduleBackOffTestSuite) TestFollowsScheduleAndRepeatsLast() {
	b := NewScheduleBackOff([]time.Duration{time.Second, 2 * time.Second, 5 * time.Second})

	require.Equal(s.T(), time.Second, b.NextBackOff())
	require.Equal(s.T(), 2*time.Second, b.NextBackOff())
	require.Equal(s.T(), 5*time.Second, b.NextBackOff())
	require.Equal(s.T(), 5*time.Second, b.NextBackOff())

	b.Reset()
	require.Equal(s.T(), time.Second, b.NextBackOff())
}

func (s *ScheduleBackOffTestSuite) TestEmptySchedule() {
	b := NewScheduleBackOff(nil)
	require.Equal(s.T(), time.Second, b.NextBackOff())
}
