package config

import (
	"time"

	"github.com/spf13/viper"
)

type Refunder struct {
	// Is the refund scheduler started
	Enabled bool

	// Time between checks for due refunds
	Interval time.Duration

	// Max number of due refunds handled in one tick
	BatchSize int

	// Refunds are retried until deadline + GracePeriod. 0 means retry forever.
	GracePeriod time.Duration

	// Timeout for building and sending one refund transaction
	SubmitTimeout time.Duration

	// Number of refunds submitted in parallel
	NumWorkers int

	// Max number of refunds waiting in the worker queue
	WorkerQueueSize int
}

func setRefunderDefaults() {
	viper.SetDefault("Refunder.Enabled", "true")
	viper.SetDefault("Refunder.Interval", "15s")
	viper.SetDefault("Refunder.BatchSize", "50")
	viper.SetDefault("Refunder.GracePeriod", "24h")
	viper.SetDefault("Refunder.SubmitTimeout", "45s")
	viper.SetDefault("Refunder.NumWorkers", "4")
	viper.SetDefault("Refunder.WorkerQueueSize", "50")
}
