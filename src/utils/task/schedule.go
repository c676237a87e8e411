package task

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Backoff that follows a fixed list of waiting times.
// The last one is repeated forever.
type ScheduleBackOff struct {
	schedule []time.Duration
	idx      int
}

var _ backoff.BackOff = (*ScheduleBackOff)(nil)

func NewScheduleBackOff(schedule []time.Duration) *ScheduleBackOff {
	if len(schedule) == 0 {
		schedule = []time.Duration{time.Second}
	}
	return &ScheduleBackOff{schedule: schedule}
}

func (self *ScheduleBackOff) NextBackOff() time.Duration {
	out := self.schedule[self.idx]
	if self.idx < len(self.schedule)-1 {
		self.idx++
	}
	return out
}

func (self *ScheduleBackOff) Reset() {
	self.idx = 0
}
