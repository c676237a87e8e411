// Package memory keeps all repositories in process memory. Used in tests and local runs.
package memory

import (
	"context"
	"sync"

	"github.com/arena-labs/syncer/src/utils/model"
	"github.com/arena-labs/syncer/src/utils/repository"
)

type eventKey struct {
	signature string
	index     int
}

type state struct {
	events     map[eventKey]*model.Event
	signatures map[string]int
	checkpoint uint64
	cursor     model.ReconcileCursor
	matches    map[string]*model.Match
	tasks      map[string]*model.RefundTask
	accounts   map[string]*model.RandomnessAccount
}

func newState() *state {
	return &state{
		events:     make(map[eventKey]*model.Event),
		signatures: make(map[string]int),
		matches:    make(map[string]*model.Match),
		tasks:      make(map[string]*model.RefundTask),
		accounts:   make(map[string]*model.RandomnessAccount),
	}
}

func (self *state) clone() *state {
	out := newState()
	out.checkpoint = self.checkpoint
	out.cursor = self.cursor
	for k, v := range self.events {
		out.events[k] = v
	}
	for k, v := range self.signatures {
		out.signatures[k] = v
	}
	for k, v := range self.matches {
		out.matches[k] = v.Clone()
	}
	for k, v := range self.tasks {
		task := *v
		out.tasks[k] = &task
	}
	for k, v := range self.accounts {
		account := *v
		out.accounts[k] = &account
	}
	return out
}

type Store struct {
	mtx   *sync.Mutex
	state *state

	// Set for stores handed out inside Transaction, the lock is already held
	locked bool
}

func NewStore() (self *Store) {
	self = new(Store)
	self.mtx = &sync.Mutex{}
	self.state = newState()
	return
}

func (self *Store) lock() func() {
	if self.locked {
		return func() {}
	}
	self.mtx.Lock()
	return self.mtx.Unlock
}

func (self *Store) Events() repository.Events {
	return &events{self}
}

func (self *Store) Matches() repository.Matches {
	return &matches{self}
}

func (self *Store) RefundTasks() repository.RefundTasks {
	return &refundTasks{self}
}

func (self *Store) RandomnessPool() repository.RandomnessPool {
	return &randomnessPool{self}
}

func (self *Store) Transaction(ctx context.Context, f func(tx repository.Store) error) (err error) {
	defer self.lock()()

	snapshot := self.state.clone()
	defer func() {
		if err != nil {
			*self.state = *snapshot
		}
	}()

	if err = ctx.Err(); err != nil {
		return
	}

	return f(&Store{mtx: self.mtx, state: self.state, locked: true})
}
