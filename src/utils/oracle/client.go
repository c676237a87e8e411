package oracle

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/arena-labs/syncer/src/utils/build_info"
	"github.com/arena-labs/syncer/src/utils/config"
	"github.com/arena-labs/syncer/src/utils/logger"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

var (
	// Oracle proved the account can't be trusted, it must never be used again
	ErrVerificationFailed = errors.New("randomness verification failed")

	ErrNotFound = errors.New("randomness account not found")
)

const verificationFailedCode = "verification_failed"

// Client of the verifiable randomness gateway
type Client struct {
	client *resty.Client
	log    *logrus.Entry
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type createResponse struct {
	Address string `json:"address"`
}

type accountResponse struct {
	Address  string `json:"address"`
	Ready    bool   `json:"ready"`
	Verified bool   `json:"verified"`
	Value    string `json:"value"`
}

func NewClient(config *config.Config) (self *Client) {
	self = new(Client)
	self.log = logger.NewSublogger("oracle-client")

	self.client = resty.New().
		SetBaseURL(config.Oracle.Url).
		SetTimeout(config.Oracle.RequestTimeout).
		SetHeader("User-Agent", "arena/syncer/"+build_info.Version).
		SetHeader("Accept", "application/json")

	if config.Oracle.ApiKey != "" {
		self.client.SetHeader("X-Api-Key", config.Oracle.ApiKey)
	}

	return
}

func (self *Client) toError(resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}

	if e, ok := resp.Error().(*errorResponse); ok && e.Error == verificationFailedCode {
		return ErrVerificationFailed
	}

	if resp.StatusCode() == http.StatusNotFound {
		return ErrNotFound
	}

	self.log.WithField("status", resp.StatusCode()).
		WithField("resp", string(resp.Body())).
		WithField("url", resp.Request.URL).
		Debug("Oracle request failed")

	return fmt.Errorf("unexpected status: %s", resp.Status())
}

// Provisions a new randomness account, returns its address
func (self *Client) CreateAccount(ctx context.Context) (address string, err error) {
	resp, err := self.client.R().
		SetContext(ctx).
		SetResult(&createResponse{}).
		SetError(&errorResponse{}).
		Post("/v1/accounts")
	if err != nil {
		return
	}
	if err = self.toError(resp); err != nil {
		return
	}

	out := resp.Result().(*createResponse)
	if out.Address == "" {
		return "", errors.New("empty account address")
	}
	return out.Address, nil
}

// Requests randomness for the account. ErrVerificationFailed if the oracle rejects the account.
func (self *Client) Commit(ctx context.Context, address string) (err error) {
	resp, err := self.client.R().
		SetContext(ctx).
		SetPathParam("address", address).
		SetError(&errorResponse{}).
		Post("/v1/accounts/{address}/commit")
	if err != nil {
		return
	}
	return self.toError(resp)
}

func (self *Client) get(ctx context.Context, address string) (out *accountResponse, err error) {
	resp, err := self.client.R().
		SetContext(ctx).
		SetPathParam("address", address).
		SetResult(&accountResponse{}).
		SetError(&errorResponse{}).
		Get("/v1/accounts/{address}")
	if err != nil {
		return
	}
	if err = self.toError(resp); err != nil {
		return
	}
	return resp.Result().(*accountResponse), nil
}

// Is the committed value revealed
func (self *Client) IsReady(ctx context.Context, address string) (bool, error) {
	account, err := self.get(ctx, address)
	if err != nil {
		return false, err
	}
	return account.Ready, nil
}

// Returns the revealed value, ok is false if it isn't ready yet
func (self *Client) ReadValue(ctx context.Context, address string) (value string, ok bool, err error) {
	account, err := self.get(ctx, address)
	if err != nil {
		return
	}
	if account.Ready && !account.Verified {
		return "", false, ErrVerificationFailed
	}
	if !account.Ready {
		return "", false, nil
	}
	return account.Value, true, nil
}
