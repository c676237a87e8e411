package monitoring

import (
	"math"
	"net/http"
	"time"

	"github.com/arena-labs/syncer/src/utils/config"
	"github.com/arena-labs/syncer/src/utils/monitoring/report"
	"github.com/arena-labs/syncer/src/utils/task"

	"github.com/gammazero/deque"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Stores and computes monitor counters
type Monitor struct {
	*task.Task

	Report report.Report

	historySize int

	collector *Collector

	// Event processing speed
	EventsApplied *deque.Deque[uint64]
}

func NewMonitor(config *config.Config) (self *Monitor) {
	self = new(Monitor)

	self.Report = report.Report{
		Run:        &report.RunReport{},
		Indexer:    &report.IndexerReport{},
		Subscriber: &report.SubscriberReport{},
		Refunder:   &report.RefunderReport{},
		Pool:       &report.PoolReport{},
		Publisher:  &report.PublisherReport{},
	}

	self.Report.Run.State.StartTimestamp.Store(time.Now().Unix())

	self.collector = NewCollector().WithMonitor(self)

	self.Task = task.NewTask(config, "monitor").
		WithPeriodicSubtaskFunc(time.Minute, self.monitorEvents)

	return self.WithMaxHistorySize(30)
}

func (self *Monitor) WithMaxHistorySize(maxHistorySize int) *Monitor {
	self.historySize = maxHistorySize
	self.EventsApplied = deque.New[uint64](self.historySize)
	return self
}

func (self *Monitor) GetReport() *report.Report {
	return &self.Report
}

func (self *Monitor) GetPrometheusCollector() prometheus.Collector {
	return self.collector
}

func round(f float64) float64 {
	return math.Round(f*100) / 100
}

// Measure event processing speed
func (self *Monitor) monitorEvents() (err error) {
	loaded := self.Report.Indexer.State.EventsApplied.Load()

	self.EventsApplied.PushBack(loaded)
	if self.EventsApplied.Len() > self.historySize {
		self.EventsApplied.PopFront()
	}
	value := float64(self.EventsApplied.Back()-self.EventsApplied.Front()) / float64(self.EventsApplied.Len())

	self.Report.Indexer.State.AverageEventsAppliedPerMinute.Store(round(value))
	return
}

func (self *Monitor) fill() {
	self.Report.Run.State.UpForSeconds.Store(uint64(time.Now().Unix() - self.Report.Run.State.StartTimestamp.Load()))

	current := self.Report.Indexer.State.CurrentSlot.Load()
	if current > 0 {
		self.Report.Indexer.State.SlotsBehind.Store(int64(current) - int64(self.Report.Indexer.State.FinishedSlot.Load()))
	}
}

// Healthy as long as pool and refunds don't need manual action
func (self *Monitor) IsOK() bool {
	if self.Report.Refunder.State.Overdue.Load() > 0 {
		return false
	}

	now := time.Now().Unix()
	if now-self.Report.Run.State.StartTimestamp.Load() < 300 {
		return true
	}

	// Reconciliation runs periodically, it shouldn't be stuck for long
	last := self.Report.Indexer.State.LastReconcileTimestamp.Load()
	return last == 0 || now-last < 600
}

func (self *Monitor) OnGetState(c *gin.Context) {
	self.fill()
	c.JSON(http.StatusOK, &self.Report)
}

func (self *Monitor) OnGetHealth(c *gin.Context) {
	self.fill()
	status := http.StatusOK
	if !self.IsOK() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, &self.Report)
}
