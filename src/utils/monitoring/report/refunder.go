package report

import (
	"go.uber.org/atomic"
)

type RefunderErrors struct {
	Submit   atomic.Uint64 `json:"submit"`
	Database atomic.Uint64 `json:"database"`
}

type RefunderState struct {
	Ticks    atomic.Uint64 `json:"ticks"`
	Due      atomic.Uint64 `json:"due"`
	Executed atomic.Uint64 `json:"executed"`
	Canceled atomic.Uint64 `json:"canceled"`

	// Gave up after the grace period, needs manual action
	Overdue atomic.Uint64 `json:"overdue"`
}

type RefunderReport struct {
	State  RefunderState  `json:"state"`
	Errors RefunderErrors `json:"errors"`
}
