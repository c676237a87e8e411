package config

import (
	"time"

	"github.com/spf13/viper"
)

type Indexer struct {
	// Is the indexer started
	Enabled bool

	// How often recent signatures are fetched to fill gaps in the log subscription
	ReconcileInterval time.Duration

	// Number of signatures requested in one page
	ReconcileSignatureLimit int

	// Max number of signature pages fetched in one reconciliation run
	ReconcileMaxPages int

	// Reconciliation goes this many slots below the checkpoint
	ReconcileLookbackSlots uint64

	// Number of workers downloading transactions during reconciliation
	ReconcileNumWorkers int

	// Max number of transactions waiting in the worker queue
	ReconcileWorkerQueueSize int

	// Number of independent apply queues. Events of one match always go to the same queue.
	ApplierNumShards int

	// Capacity of a single apply queue
	ApplierShardQueueSize int

	// Max time applying one event is retried upon storage errors, 0 means no limit
	ApplierMaxElapsedTime time.Duration

	// Max time between apply retries
	ApplierMaxInterval time.Duration

	// How long applied event keys are remembered in memory
	SeenCacheExpiration time.Duration

	// Capacity of the outbound notification channel
	NotificationChannelSize int
}

func setIndexerDefaults() {
	viper.SetDefault("Indexer.Enabled", "true")
	viper.SetDefault("Indexer.ReconcileInterval", "30s")
	viper.SetDefault("Indexer.ReconcileSignatureLimit", "100")
	viper.SetDefault("Indexer.ReconcileMaxPages", "10")
	viper.SetDefault("Indexer.ReconcileLookbackSlots", "3000")
	viper.SetDefault("Indexer.ReconcileNumWorkers", "8")
	viper.SetDefault("Indexer.ReconcileWorkerQueueSize", "50")
	viper.SetDefault("Indexer.ApplierNumShards", "8")
	viper.SetDefault("Indexer.ApplierShardQueueSize", "100")
	viper.SetDefault("Indexer.ApplierMaxElapsedTime", "1m")
	viper.SetDefault("Indexer.ApplierMaxInterval", "5s")
	viper.SetDefault("Indexer.SeenCacheExpiration", "1h")
	viper.SetDefault("Indexer.NotificationChannelSize", "1000")
}
