package config

import (
	"github.com/spf13/viper"
)

type Profiler struct {
	// Are pprof endpoints registered in the monitoring server
	Enabled bool

	// Fraction of blocking events reported, see runtime.SetBlockProfileRate
	BlockProfileRate int
}

func setProfilerDefaults() {
	viper.SetDefault("Profiler.Enabled", "false")
	viper.SetDefault("Profiler.BlockProfileRate", "0")
}
