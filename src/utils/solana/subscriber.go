package solana

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/arena-labs/syncer/src/utils/config"
	"github.com/arena-labs/syncer/src/utils/task"

	"go.uber.org/atomic"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const subscribeRequestId = 1

// Keeps a live subscription to logs mentioning the program.
// Delivery is best effort: logs emitted while disconnected are lost and not replayed.
type Subscriber struct {
	*task.Task

	isConnected *atomic.Bool

	mtx    sync.Mutex
	cancel context.CancelFunc

	// Called for every received notification, one at a time
	onLogs func(logs *Logs)

	// Called after every (re)connection
	onConnected func()
}

func NewSubscriber(config *config.Config) (self *Subscriber) {
	self = new(Subscriber)
	self.isConnected = atomic.NewBool(false)

	self.Task = task.NewTask(config, "subscriber").
		WithSubtaskFunc(self.run)

	return
}

func (self *Subscriber) WithOnLogs(f func(logs *Logs)) *Subscriber {
	self.onLogs = f
	return self
}

func (self *Subscriber) WithOnConnected(f func()) *Subscriber {
	self.onConnected = f
	return self
}

func (self *Subscriber) IsConnected() bool {
	return self.isConnected.Load()
}

func (self *Subscriber) run() error {
	return self.Subscribe(self.Ctx, self.Config.Solana.ProgramId, self.onLogs)
}

// Blocks until ctx is canceled or Disconnect is called. Reconnects after every drop.
func (self *Subscriber) Subscribe(ctx context.Context, address string, onLogs func(logs *Logs)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	self.mtx.Lock()
	self.cancel = cancel
	self.mtx.Unlock()

	schedule := task.NewScheduleBackOff(self.Config.Subscriber.ReconnectBackoff)

	for {
		err := self.connectAndRead(ctx, address, onLogs, schedule.Reset)
		self.isConnected.Store(false)

		if ctx.Err() != nil {
			self.Log.Info("Subscription finished")
			return nil
		}

		wait := schedule.NextBackOff()
		self.Log.WithError(err).WithField("wait", wait).Warn("Subscription dropped, reconnecting")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// Stops the subscription started with Subscribe
func (self *Subscriber) Disconnect() {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if self.cancel != nil {
		self.cancel()
	}
}

func (self *Subscriber) connectAndRead(ctx context.Context, address string, onLogs func(logs *Logs), onSubscribed func()) (err error) {
	conn, _, err := websocket.Dial(ctx, self.Config.Solana.WsUrl, nil)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	if self.Config.Subscriber.MaxMessageSize > 0 {
		conn.SetReadLimit(self.Config.Subscriber.MaxMessageSize)
	}

	err = wsjson.Write(ctx, conn, request{
		JsonRpc: "2.0",
		Id:      subscribeRequestId,
		Method:  "logsSubscribe",
		Params: []interface{}{
			map[string]interface{}{"mentions": []string{address}},
			map[string]interface{}{"commitment": self.Config.Solana.Commitment},
		},
	})
	if err != nil {
		return
	}

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go self.ping(connCtx, conn)

	for {
		var msg wsMessage
		err = wsjson.Read(connCtx, conn, &msg)
		if err != nil {
			return
		}

		switch {
		case msg.Id != nil && *msg.Id == subscribeRequestId:
			if msg.Error != nil {
				return msg.Error
			}
			self.isConnected.Store(true)
			onSubscribed()
			self.Log.WithField("address", address).Info("Subscribed to logs")
			if self.onConnected != nil {
				self.onConnected()
			}
		case msg.Method == "logsNotification":
			if onLogs == nil {
				continue
			}
			value := msg.Params.Result.Value
			onLogs(&Logs{
				Slot:      msg.Params.Result.Context.Slot,
				Signature: value.Signature,
				Failed:    isError(value.Err),
				Logs:      value.Logs,
			})
		default:
			self.Log.WithField("method", msg.Method).Trace("Skipping message")
		}
	}
}

// Closes the connection if the other side stops answering pings
func (self *Subscriber) ping(ctx context.Context, conn *websocket.Conn) {
	if self.Config.Subscriber.PingInterval <= 0 {
		return
	}

	ticker := time.NewTicker(self.Config.Subscriber.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		pingCtx, cancel := context.WithTimeout(ctx, self.Config.Subscriber.PingTimeout)
		err := conn.Ping(pingCtx)
		cancel()
		if err != nil && !errors.Is(err, context.Canceled) {
			self.Log.WithError(err).Warn("Ping failed, closing connection")
			conn.Close(websocket.StatusGoingAway, "ping timeout")
			return
		}
	}
}
