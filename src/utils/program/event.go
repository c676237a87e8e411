package program

import (
	"github.com/arena-labs/syncer/src/utils/model"
)

// Program event extracted from transaction logs
type Event struct {
	// Position in the ledger, filled from the transaction
	Signature string
	Index     int
	Slot      uint64

	Kind         model.EventKind
	MatchAddress string

	// Encoded event fields following the match address
	Data []byte
}

func (self *Event) Decode() (Payload, error) {
	return Decode(self.Kind, self.Data)
}
