package repository

import (
	"context"
	"errors"
	"time"

	"github.com/arena-labs/syncer/src/utils/model"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Conditional write lost against a concurrent writer
	ErrConflict = errors.New("conflicting update")
)

// Access to all stores. Stores obtained inside Transaction share it.
type Store interface {
	Events() Events
	Matches() Matches
	RefundTasks() RefundTasks
	RandomnessPool() RandomnessPool

	// Runs f atomically, any error rolls back everything f did
	Transaction(ctx context.Context, f func(tx Store) error) error
}

type Events interface {
	Exists(ctx context.Context, signature string, index int) (bool, error)
	ExistsBySignature(ctx context.Context, signature string) (bool, error)

	// ErrAlreadyExists if (signature, index) is already stored
	Insert(ctx context.Context, event *model.Event) error

	GetCheckpoint(ctx context.Context) (uint64, error)

	// Never moves the checkpoint backwards
	SetCheckpoint(ctx context.Context, slot uint64) error

	// Zero cursor if reconciliation never ran
	GetReconcileCursor(ctx context.Context) (*model.ReconcileCursor, error)
	SetReconcileCursor(ctx context.Context, cursor *model.ReconcileCursor) error
}

type Matches interface {
	Get(ctx context.Context, address string) (*model.Match, error)
	Create(ctx context.Context, match *model.Match) error

	// Writes match only if the stored row still has the expected status and match.Version.
	// Bumps match.Version on success, ErrConflict otherwise.
	Update(ctx context.Context, match *model.Match, expected model.MatchStatus) error

	ListByStatus(ctx context.Context, limit int, statuses ...model.MatchStatus) ([]*model.Match, error)
}

type RefundTasks interface {
	Get(ctx context.Context, matchAddress string) (*model.RefundTask, error)

	// Creates a pending task or reschedules an existing pending one
	Upsert(ctx context.Context, matchAddress string, deadline int64, now time.Time) error

	// No-op for tasks that aren't pending
	Cancel(ctx context.Context, matchAddress string, now time.Time) error

	// ErrConflict if the task is no longer pending
	MarkExecuted(ctx context.Context, matchAddress, signature string, now time.Time) error
	MarkFailed(ctx context.Context, matchAddress, reason string, now time.Time) error

	RecordFailure(ctx context.Context, matchAddress, reason string) error

	// Pending tasks with deadline <= now, oldest deadline first
	ListDue(ctx context.Context, now time.Time, limit int) ([]*model.RefundTask, error)
}

type RandomnessPool interface {
	Get(ctx context.Context, address string) (*model.RandomnessAccount, error)
	Create(ctx context.Context, account *model.RandomnessAccount) error

	// Atomically moves one Available account to InUse for the match. ErrNotFound if there's none.
	Acquire(ctx context.Context, matchAddress string, now time.Time) (*model.RandomnessAccount, error)

	// Moves the given account to InUse for the match.
	// Succeeds if it is already bound to the same match, ErrConflict otherwise.
	Consume(ctx context.Context, address, matchAddress string, now time.Time) (*model.RandomnessAccount, error)

	// InUse -> Cooldown
	Release(ctx context.Context, address string, cooldownUntil time.Time) error

	// Cooldown -> Available, only when cooldownUntil <= now
	Promote(ctx context.Context, address string, now time.Time) error

	// Any -> Invalid
	Invalidate(ctx context.Context, address string, now time.Time) error

	ListByStatus(ctx context.Context, status model.RandomnessAccountStatus, limit int) ([]*model.RandomnessAccount, error)
	ListCooldownExpired(ctx context.Context, now time.Time, limit int) ([]*model.RandomnessAccount, error)
	CountByStatus(ctx context.Context) (map[model.RandomnessAccountStatus]int, error)

	// Account currently InUse by the match
	GetByMatch(ctx context.Context, matchAddress string) (*model.RandomnessAccount, error)
}
