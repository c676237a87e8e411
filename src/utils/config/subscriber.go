package config

import (
	"time"

	"github.com/spf13/viper"
)

type Subscriber struct {
	// Waiting times between consecutive reconnection attempts. The last one is repeated.
	ReconnectBackoff []time.Duration

	// How often a ping is sent over an idle connection
	PingInterval time.Duration

	// Connection is considered broken if ping doesn't return in this time
	PingTimeout time.Duration

	// Max size of a single websocket message
	MaxMessageSize int64
}

func setSubscriberDefaults() {
	viper.SetDefault("Subscriber.ReconnectBackoff", []string{"1s", "2s", "5s", "10s", "30s"})
	viper.SetDefault("Subscriber.PingInterval", "20s")
	viper.SetDefault("Subscriber.PingTimeout", "10s")
	viper.SetDefault("Subscriber.MaxMessageSize", "4194304")
}
