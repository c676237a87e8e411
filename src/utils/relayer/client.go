package relayer

import (
	"context"
	"errors"
	"fmt"

	"github.com/arena-labs/syncer/src/utils/build_info"
	"github.com/arena-labs/syncer/src/utils/config"
	"github.com/arena-labs/syncer/src/utils/logger"
	"github.com/arena-labs/syncer/src/utils/model"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

var ErrEmptyTransaction = errors.New("relayer returned empty transaction")

// Client of the service holding the refund authority key.
// It builds and signs refund transactions, sending them is up to the caller.
type Client struct {
	client *resty.Client
	log    *logrus.Entry
}

type RefundRequest struct {
	MatchAddress  string   `json:"matchAddress"`
	Recipients    []string `json:"recipients"`
	StakeLamports uint64   `json:"stakeLamports"`
}

type refundResponse struct {
	// Signed transaction, base64 encoded
	Transaction string `json:"transaction"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewClient(config *config.Config) (self *Client) {
	self = new(Client)
	self.log = logger.NewSublogger("relayer-client")

	self.client = resty.New().
		SetBaseURL(config.Relayer.Url).
		SetTimeout(config.Relayer.RequestTimeout).
		SetHeader("User-Agent", "arena/syncer/"+build_info.Version).
		SetHeader("Accept", "application/json")

	if config.Relayer.ApiKey != "" {
		self.client.SetHeader("X-Api-Key", config.Relayer.ApiKey)
	}

	return
}

// Builds a signed transaction returning the stake to every participant of the match
func (self *Client) BuildRefund(ctx context.Context, match *model.Match) (encoded string, err error) {
	resp, err := self.client.R().
		SetContext(ctx).
		SetBody(RefundRequest{
			MatchAddress:  match.Address,
			Recipients:    match.Players,
			StakeLamports: match.StakeLamports,
		}).
		SetResult(&refundResponse{}).
		SetError(&errorResponse{}).
		Post("/v1/refunds")
	if err != nil {
		return
	}

	if !resp.IsSuccess() {
		msg := resp.Status()
		if e, ok := resp.Error().(*errorResponse); ok && e.Error != "" {
			msg = e.Error
		}
		self.log.WithField("match", match.Address).WithField("status", resp.StatusCode()).Debug("Relayer request failed")
		return "", fmt.Errorf("failed to build refund: %s", msg)
	}

	out := resp.Result().(*refundResponse)
	if out.Transaction == "" {
		return "", ErrEmptyTransaction
	}
	return out.Transaction, nil
}
