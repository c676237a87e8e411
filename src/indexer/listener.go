package indexer

import (
	"time"

	"github.com/arena-labs/syncer/src/utils/config"
	"github.com/arena-labs/syncer/src/utils/monitoring"
	"github.com/arena-labs/syncer/src/utils/monitoring/report"
	"github.com/arena-labs/syncer/src/utils/program"
	"github.com/arena-labs/syncer/src/utils/solana"
	"github.com/arena-labs/syncer/src/utils/task"
)

// Destination of parsed events
type EventSink interface {
	Enqueue(event *program.Event)
	IsKnown(signature string) bool
}

// Push path: turns logs pushed through the subscription into events
type Listener struct {
	*task.Task

	subscriber *solana.Subscriber
	parser     *program.Parser
	sink       EventSink
	report     *report.SubscriberReport

	// Called after every (re)connection
	onConnected func()
}

func NewListener(config *config.Config) (self *Listener) {
	self = new(Listener)
	self.report = &report.SubscriberReport{}

	self.subscriber = solana.NewSubscriber(config).
		WithOnLogs(self.OnLogs).
		WithOnConnected(self.connected)

	self.Task = task.NewTask(config, "listener").
		WithSubtask(self.subscriber.Task).
		WithPeriodicSubtaskFunc(5*time.Second, self.monitorConnection)

	return
}

func (self *Listener) WithParser(v *program.Parser) *Listener {
	self.parser = v
	return self
}

func (self *Listener) WithSink(v EventSink) *Listener {
	self.sink = v
	return self
}

func (self *Listener) WithMonitor(v *monitoring.Monitor) *Listener {
	self.report = v.GetReport().Subscriber
	return self
}

func (self *Listener) WithOnConnected(f func()) *Listener {
	self.onConnected = f
	return self
}

func (self *Listener) IsConnected() bool {
	return self.subscriber.IsConnected()
}

func (self *Listener) connected() {
	self.report.State.Connections.Inc()
	self.report.State.IsConnected.Store(true)
	if self.onConnected != nil {
		self.onConnected()
	}
}

func (self *Listener) monitorConnection() error {
	self.report.State.IsConnected.Store(self.subscriber.IsConnected())
	return nil
}

func (self *Listener) OnLogs(logs *solana.Logs) {
	self.report.State.LogsReceived.Inc()

	if logs.Failed {
		self.report.State.FailedTxs.Inc()
		return
	}

	events := self.parser.ParseLogs(logs.Signature, logs.Slot, logs.Logs)
	for _, event := range events {
		self.Log.WithField("signature", event.Signature).WithField("kind", event.Kind).Debug("Received event")
		self.sink.Enqueue(event)
	}
}
