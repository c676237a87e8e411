package relayer

import (
	"context"

	"github.com/arena-labs/syncer/src/utils/model"
)

type Sender interface {
	SendTransaction(ctx context.Context, encoded string) (signature string, err error)
}

// Builds refund transactions with the relayer and sends them to the ledger
type Submitter struct {
	client *Client
	sender Sender
}

func NewSubmitter(client *Client, sender Sender) (self *Submitter) {
	self = new(Submitter)
	self.client = client
	self.sender = sender
	return
}

func (self *Submitter) SubmitRefund(ctx context.Context, match *model.Match) (signature string, err error) {
	encoded, err := self.client.BuildRefund(ctx, match)
	if err != nil {
		return
	}
	return self.sender.SendTransaction(ctx, encoded)
}
