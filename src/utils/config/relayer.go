package config

import (
	"time"

	"github.com/spf13/viper"
)

type Relayer struct {
	// Base url of the service that builds and signs refund transactions
	Url string

	// Key sent in the X-Api-Key header
	ApiKey string

	// Timeout of a single request
	RequestTimeout time.Duration
}

func setRelayerDefaults() {
	viper.SetDefault("Relayer.Url", "http://localhost:8091")
	viper.SetDefault("Relayer.ApiKey", "")
	viper.SetDefault("Relayer.RequestTimeout", "20s")
}
