package solana

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/arena-labs/syncer/src/utils/build_info"
	"github.com/arena-labs/syncer/src/utils/config"
	"github.com/arena-labs/syncer/src/utils/logger"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"
)

// JSON-RPC client for reading the ledger and submitting transactions
type Client struct {
	client  *resty.Client
	config  *config.Config
	log     *logrus.Entry
	limiter *rate.Limiter
	nextId  *atomic.Uint64
}

func NewClient(config *config.Config) (self *Client) {
	self = new(Client)
	self.config = config
	self.log = logger.NewSublogger("solana-client")
	self.nextId = atomic.NewUint64(0)

	burst := config.Solana.LimiterBurstSize
	if burst <= 0 {
		burst = 1
	}
	self.limiter = rate.NewLimiter(rate.Every(config.Solana.LimiterInterval), burst)

	self.client =
		resty.New().
			SetBaseURL(config.Solana.RpcUrl).
			SetTimeout(config.Solana.RequestTimeout).
			SetHeader("User-Agent", "arena/syncer/"+build_info.Version).
			SetHeader("Content-Type", "application/json").
			SetLogger(NewLogger()).
			SetTransport(self.createTransport()).
			OnBeforeRequest(self.onRateLimit).
			OnAfterResponse(self.onStatusToError)

	return
}

func (self *Client) createTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   self.config.Solana.DialerTimeout,
		KeepAlive: self.config.Solana.DialerKeepAlive,
	}

	return &http.Transport{
		ForceAttemptHTTP2:     true,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   self.config.Solana.TLSHandshakeTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		IdleConnTimeout:       self.config.Solana.IdleConnTimeout,
		MaxIdleConnsPerHost:   10,
	}
}

func (self *Client) onRateLimit(c *resty.Client, req *resty.Request) (err error) {
	// Blocks till the request is possible or ctx gets canceled
	err = self.limiter.Wait(req.Context())
	if err != nil {
		self.log.WithError(err).Debug("Rate limiting failed")
	}
	return
}

func (self *Client) onStatusToError(c *resty.Client, resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}
	if resp.StatusCode() > 399 && resp.StatusCode() < 500 {
		self.log.WithField("status", resp.StatusCode()).
			WithField("resp", string(resp.Body())).
			WithField("url", resp.Request.URL).
			Debug("Bad request")
	}
	return fmt.Errorf("unexpected status: %s", resp.Status())
}

func call[T any](ctx context.Context, self *Client, method string, params ...interface{}) (out T, err error) {
	if params == nil {
		params = []interface{}{}
	}

	result := new(response[T])
	resp, err := self.client.R().
		SetContext(ctx).
		SetBody(request{
			JsonRpc: "2.0",
			Id:      self.nextId.Inc(),
			Method:  method,
			Params:  params,
		}).
		SetResult(result).
		ForceContentType("application/json").
		Post("")
	if err != nil {
		return
	}

	if !resp.IsSuccess() {
		err = ErrBadResponse
		return
	}

	if result.Error != nil {
		err = result.Error
		return
	}

	return result.Result, nil
}

func (self *Client) commitment() map[string]interface{} {
	return map[string]interface{}{
		"commitment": self.config.Solana.Commitment,
	}
}

// Current ledger height
func (self *Client) GetSlot(ctx context.Context) (slot uint64, err error) {
	return call[uint64](ctx, self, "getSlot", self.commitment())
}

// Signatures of transactions that touched the address, most recent first
func (self *Client) GetSignaturesForAddress(ctx context.Context, address string, opts SignaturesOpts) (out []*SignatureInfo, err error) {
	cfg := self.commitment()
	if opts.Limit > 0 {
		cfg["limit"] = opts.Limit
	}
	if opts.Before != "" {
		cfg["before"] = opts.Before
	}
	if opts.Until != "" {
		cfg["until"] = opts.Until
	}

	return call[[]*SignatureInfo](ctx, self, "getSignaturesForAddress", address, cfg)
}

// Returns nil if the transaction isn't known to the node
func (self *Client) GetTransaction(ctx context.Context, signature string) (out *Transaction, err error) {
	cfg := self.commitment()
	cfg["encoding"] = "json"
	cfg["maxSupportedTransactionVersion"] = 0

	return call[*Transaction](ctx, self, "getTransaction", signature, cfg)
}

// Submits a signed, base64 encoded transaction. Returns its signature.
func (self *Client) SendTransaction(ctx context.Context, encoded string) (signature string, err error) {
	return call[string](ctx, self, "sendTransaction", encoded, map[string]interface{}{
		"encoding":            "base64",
		"preflightCommitment": self.config.Solana.Commitment,
	})
}
