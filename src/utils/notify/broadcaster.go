package notify

import (
	"sync"

	"github.com/arena-labs/syncer/src/utils/logger"
	"github.com/arena-labs/syncer/src/utils/model"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

// Fans out match notifications to subscribers. Never blocks the caller,
// a notification is dropped for subscribers that don't keep up.
type Broadcaster struct {
	log *logrus.Entry

	mtx         sync.RWMutex
	subscribers []chan *model.MatchNotification
	closed      bool

	Dropped *atomic.Uint64
}

func NewBroadcaster() (self *Broadcaster) {
	self = new(Broadcaster)
	self.log = logger.NewSublogger("broadcaster")
	self.Dropped = atomic.NewUint64(0)
	return
}

// New channel receiving all notifications emitted from now on
func (self *Broadcaster) Subscribe(capacity int) chan *model.MatchNotification {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	ch := make(chan *model.MatchNotification, capacity)
	if self.closed {
		close(ch)
		return ch
	}
	self.subscribers = append(self.subscribers, ch)
	return ch
}

func (self *Broadcaster) Emit(kind model.EventKind, match *model.Match) {
	if self == nil {
		return
	}

	self.mtx.RLock()
	defer self.mtx.RUnlock()
	if self.closed || len(self.subscribers) == 0 {
		return
	}

	notification := model.NewMatchNotification(kind, match)
	for _, ch := range self.subscribers {
		select {
		case ch <- notification:
		default:
			self.Dropped.Inc()
			self.log.WithField("match", match.Address).WithField("kind", kind).Warn("Subscriber is full, dropping notification")
		}
	}
}

// Closes all subscriber channels
func (self *Broadcaster) Close() {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if self.closed {
		return
	}
	self.closed = true
	for _, ch := range self.subscribers {
		close(ch)
	}
}
