package syncer

import (
	"time"

	"github.com/arena-labs/syncer/src/indexer"
	"github.com/arena-labs/syncer/src/pool"
	"github.com/arena-labs/syncer/src/refund"
	"github.com/arena-labs/syncer/src/utils/config"
	"github.com/arena-labs/syncer/src/utils/model"
	"github.com/arena-labs/syncer/src/utils/monitoring"
	"github.com/arena-labs/syncer/src/utils/notify"
	"github.com/arena-labs/syncer/src/utils/oracle"
	"github.com/arena-labs/syncer/src/utils/program"
	"github.com/arena-labs/syncer/src/utils/publisher"
	"github.com/arena-labs/syncer/src/utils/relayer"
	"github.com/arena-labs/syncer/src/utils/repository"
	"github.com/arena-labs/syncer/src/utils/solana"
	"github.com/arena-labs/syncer/src/utils/task"
)

type Controller struct {
	*task.Task
}

// Main class that orchestrates the syncer.
// Indexer, refunds and pool maintenance can be disabled to run them as separate processes.
func NewController(config *config.Config) (self *Controller, err error) {
	self = new(Controller)

	self.Task = task.NewTask(config, "controller")

	parser, err := program.NewParser(config.Solana.ProgramId)
	if err != nil {
		return
	}

	db, err := model.NewConnection(self.Ctx, config, "arena-syncer")
	if err != nil {
		return
	}
	store := repository.NewGormStore(db)

	monitor := monitoring.NewMonitor(config)

	server := monitoring.NewServer(config).
		WithMonitor(monitor)

	broadcaster := notify.NewBroadcaster()

	client := solana.NewClient(config)

	// Indexer assigns accounts even when pool maintenance runs elsewhere
	poolManager := pool.NewManager(config).
		WithStore(store).
		WithOracle(oracle.NewClient(config)).
		WithMonitor(monitor)

	idx := indexer.NewIndexer(config).
		WithStore(store).
		WithParser(parser).
		WithLedger(client).
		WithPool(poolManager).
		WithBroadcaster(broadcaster).
		WithMonitor(monitor)

	refunder := refund.NewScheduler(config).
		WithStore(store).
		WithSubmitter(relayer.NewSubmitter(relayer.NewClient(config), client)).
		WithPool(poolManager).
		WithBroadcaster(broadcaster).
		WithMonitor(monitor)

	var notifications *task.Task
	if config.Redis.Enabled {
		notifications = publisher.NewRedisPublisher[*model.MatchNotification](config, "redis-publisher").
			WithInputChannel(broadcaster.Subscribe(config.Indexer.NotificationChannelSize)).
			WithMonitor(monitor).
			Task
	}

	self.Task = self.Task.
		WithSubtask(monitor.Task).
		WithSubtask(server.Task).
		WithConditionalSubtask(config.Redis.Enabled, notifications).
		WithConditionalSubtask(config.Pool.Enabled, poolManager.Task).
		WithConditionalSubtask(config.Indexer.Enabled, idx.Task).
		WithConditionalSubtask(config.Refunder.Enabled, refunder.Task).
		WithPeriodicSubtaskFunc(10*time.Second, func() error {
			monitor.GetReport().Indexer.State.NotificationsDropped.Store(broadcaster.Dropped.Load())
			return nil
		}).
		WithOnStop(broadcaster.Close).
		WithOnAfterStop(func() {
			sqlDB, err := db.DB()
			if err != nil {
				return
			}
			err = sqlDB.Close()
			if err != nil {
				self.Log.WithError(err).Warn("Failed to close database connection")
			}
		})

	return
}
