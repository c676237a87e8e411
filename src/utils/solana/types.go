package solana

import "encoding/json"

type request struct {
	JsonRpc string        `json:"jsonrpc"`
	Id      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type response[T any] struct {
	JsonRpc string    `json:"jsonrpc"`
	Id      uint64    `json:"id"`
	Result  T         `json:"result"`
	Error   *RPCError `json:"error"`
}

type SignaturesOpts struct {
	// Max number of signatures returned, node caps it at 1000
	Limit int

	// Start searching backwards from this signature
	Before string

	// Search until this signature
	Until string
}

type SignatureInfo struct {
	Signature          string          `json:"signature"`
	Slot               uint64          `json:"slot"`
	Err                json.RawMessage `json:"err"`
	Memo               *string         `json:"memo"`
	BlockTime          *int64          `json:"blockTime"`
	ConfirmationStatus string          `json:"confirmationStatus"`
}

// Transaction failed on chain
func (self *SignatureInfo) Failed() bool {
	return isError(self.Err)
}

type TransactionMeta struct {
	Err         json.RawMessage `json:"err"`
	Fee         uint64          `json:"fee"`
	LogMessages []string        `json:"logMessages"`
}

type Transaction struct {
	Slot      uint64           `json:"slot"`
	BlockTime *int64           `json:"blockTime"`
	Meta      *TransactionMeta `json:"meta"`
}

func (self *Transaction) Failed() bool {
	return self.Meta != nil && isError(self.Meta.Err)
}

func (self *Transaction) Logs() []string {
	if self.Meta == nil {
		return nil
	}
	return self.Meta.LogMessages
}

// Logs of a single transaction pushed through the subscription
type Logs struct {
	Slot      uint64
	Signature string
	Failed    bool
	Logs      []string
}

type logsNotification struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value struct {
		Signature string          `json:"signature"`
		Err       json.RawMessage `json:"err"`
		Logs      []string        `json:"logs"`
	} `json:"value"`
}

type wsMessage struct {
	Id     *uint64         `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
	Method string          `json:"method"`
	Params struct {
		Result       logsNotification `json:"result"`
		Subscription uint64           `json:"subscription"`
	} `json:"params"`
}

func isError(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
