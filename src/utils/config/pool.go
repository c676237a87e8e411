package config

import (
	"time"

	"github.com/spf13/viper"
)

type Pool struct {
	// Are pool maintenance tasks started
	Enabled bool

	// Time an account stays in cooldown after its match finished
	CooldownMinutes int

	// Replenishment starts when Available + Cooldown falls under this number
	Floor int

	// Replenishment provisions accounts until Available + Cooldown reaches this number
	Ceiling int

	// How often cooled down accounts are made available again
	SweepInterval time.Duration

	// How often the pool size is checked
	ReplenishInterval time.Duration

	// How often in-use accounts are verified with the oracle
	VerifyInterval time.Duration

	// How often accounts are reconciled with match state
	ReclaimInterval time.Duration

	// Max number of accounts tried when the oracle rejects a commit
	MaxAssignAttempts int

	// Max number of accounts created per second
	ProvisionPerSecond int

	// Max number of rows handled by one sweep
	SweepBatchSize int
}

func (self Pool) CooldownWindow() time.Duration {
	return time.Duration(self.CooldownMinutes) * time.Minute
}

func setPoolDefaults() {
	viper.SetDefault("Pool.Enabled", "true")
	viper.SetDefault("Pool.CooldownMinutes", "5")
	viper.SetDefault("Pool.Floor", "5")
	viper.SetDefault("Pool.Ceiling", "20")
	viper.SetDefault("Pool.SweepInterval", "30s")
	viper.SetDefault("Pool.ReplenishInterval", "1m")
	viper.SetDefault("Pool.VerifyInterval", "2m")
	viper.SetDefault("Pool.ReclaimInterval", "1m")
	viper.SetDefault("Pool.MaxAssignAttempts", "3")
	viper.SetDefault("Pool.ProvisionPerSecond", "2")
	viper.SetDefault("Pool.SweepBatchSize", "100")
}
