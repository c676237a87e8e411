package report

import (
	"go.uber.org/atomic"
)

type SubscriberState struct {
	IsConnected  atomic.Bool   `json:"is_connected"`
	Connections  atomic.Uint64 `json:"connections"`
	LogsReceived atomic.Uint64 `json:"logs_received"`
	FailedTxs    atomic.Uint64 `json:"failed_txs"`
}

type SubscriberReport struct {
	State SubscriberState `json:"state"`
}
