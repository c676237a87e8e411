package solana

import (
	"errors"
	"fmt"
)

var (
	ErrBadResponse = errors.New("bad response")
	ErrNotFound    = errors.New("not found")
)

// Error returned by the node inside a JSON-RPC response
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (self *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", self.Code, self.Message)
}
