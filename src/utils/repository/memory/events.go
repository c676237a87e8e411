package memory

import (
	"context"

	"github.com/arena-labs/syncer/src/utils/model"
	"github.com/arena-labs/syncer/src/utils/repository"
)

type events struct {
	*Store
}

func (self *events) Exists(ctx context.Context, signature string, index int) (bool, error) {
	defer self.lock()()
	_, ok := self.state.events[eventKey{signature, index}]
	return ok, nil
}

func (self *events) ExistsBySignature(ctx context.Context, signature string) (bool, error) {
	defer self.lock()()
	return self.state.signatures[signature] > 0, nil
}

func (self *events) Insert(ctx context.Context, event *model.Event) error {
	defer self.lock()()
	key := eventKey{event.Signature, event.Index}
	if _, ok := self.state.events[key]; ok {
		return repository.ErrAlreadyExists
	}
	stored := *event
	self.state.events[key] = &stored
	self.state.signatures[event.Signature]++
	return nil
}

func (self *events) GetCheckpoint(ctx context.Context) (uint64, error) {
	defer self.lock()()
	return self.state.checkpoint, nil
}

func (self *events) SetCheckpoint(ctx context.Context, slot uint64) error {
	defer self.lock()()
	if slot > self.state.checkpoint {
		self.state.checkpoint = slot
	}
	return nil
}

func (self *events) GetReconcileCursor(ctx context.Context) (*model.ReconcileCursor, error) {
	defer self.lock()()
	out := self.state.cursor
	out.Name = model.SyncedComponentReconciler
	return &out, nil
}

func (self *events) SetReconcileCursor(ctx context.Context, cursor *model.ReconcileCursor) error {
	defer self.lock()()
	self.state.cursor = *cursor
	return nil
}

// Number of stored events, for tests
func (self *Store) EventCount() int {
	defer self.lock()()
	return len(self.state.events)
}
