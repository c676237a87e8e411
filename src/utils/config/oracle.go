package config

import (
	"time"

	"github.com/spf13/viper"
)

type Oracle struct {
	// Base url of the verifiable randomness gateway
	Url string

	// Key sent in the X-Api-Key header
	ApiKey string

	// Timeout of a single request
	RequestTimeout time.Duration
}

func setOracleDefaults() {
	viper.SetDefault("Oracle.Url", "http://localhost:8090")
	viper.SetDefault("Oracle.ApiKey", "")
	viper.SetDefault("Oracle.RequestTimeout", "20s")
}
