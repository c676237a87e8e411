package report

import (
	"go.uber.org/atomic"
)

type PoolErrors struct {
	Provision atomic.Uint64 `json:"provision"`
	Commit    atomic.Uint64 `json:"commit"`
	Verify    atomic.Uint64 `json:"verify"`
	Database  atomic.Uint64 `json:"database"`
}

type PoolState struct {
	// Current sizes
	Available atomic.Int64 `json:"available"`
	InUse     atomic.Int64 `json:"in_use"`
	Cooldown  atomic.Int64 `json:"cooldown"`
	Invalid   atomic.Int64 `json:"invalid"`

	Assigned       atomic.Uint64 `json:"assigned"`
	Released       atomic.Uint64 `json:"released"`
	Promoted       atomic.Uint64 `json:"promoted"`
	Provisioned    atomic.Uint64 `json:"provisioned"`
	Invalidated    atomic.Uint64 `json:"invalidated"`
	CapacityErrors atomic.Uint64 `json:"capacity_errors"`
	Conflicts      atomic.Uint64 `json:"conflicts"`
}

type PoolReport struct {
	State  PoolState  `json:"state"`
	Errors PoolErrors `json:"errors"`
}
