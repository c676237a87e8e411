package config

import (
	"time"

	"github.com/spf13/viper"
)

type Solana struct {
	// JSON-RPC endpoint
	RpcUrl string

	// Websocket endpoint used for log subscriptions
	WsUrl string

	// Commitment level used for reads and subscriptions
	Commitment string

	// Address of the wager program whose logs are indexed
	ProgramId string

	// Timeout of a single RPC request
	RequestTimeout time.Duration

	// Transport settings
	DialerTimeout       time.Duration
	DialerKeepAlive     time.Duration
	IdleConnTimeout     time.Duration
	TLSHandshakeTimeout time.Duration

	// Client side rate limiting of RPC requests
	LimiterInterval  time.Duration
	LimiterBurstSize int
}

func setSolanaDefaults() {
	viper.SetDefault("Solana.RpcUrl", "https://api.devnet.solana.com")
	viper.SetDefault("Solana.WsUrl", "wss://api.devnet.solana.com")
	viper.SetDefault("Solana.Commitment", "confirmed")
	viper.SetDefault("Solana.ProgramId", "")
	viper.SetDefault("Solana.RequestTimeout", "30s")
	viper.SetDefault("Solana.DialerTimeout", "10s")
	viper.SetDefault("Solana.DialerKeepAlive", "30s")
	viper.SetDefault("Solana.IdleConnTimeout", "30s")
	viper.SetDefault("Solana.TLSHandshakeTimeout", "10s")
	viper.SetDefault("Solana.LimiterInterval", "100ms")
	viper.SetDefault("Solana.LimiterBurstSize", "10")
}
