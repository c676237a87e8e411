package relayer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arena-labs/syncer/src/utils/config"
	"github.com/arena-labs/syncer/src/utils/model"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestSubmitterTestSuite(t *testing.T) {
	suite.Run(t, new(SubmitterTestSuite))
}

type fakeSender struct {
	sent []string
	err  error
}

func (self *fakeSender) SendTransaction(ctx context.Context, encoded string) (string, error) {
	if self.err != nil {
		return "", self.err
	}
	self.sent = append(self.sent, encoded)
	return "refund-sig", nil
}

type SubmitterTestSuite struct {
	suite.Suite
	ctx    context.Context
	server *httptest.Server
	client *Client
}

func (s *SubmitterTestSuite) SetupSuite() {
	s.ctx = context.Background()
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req RefundRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if req.MatchAddress == "unknown" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"match not found"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"transaction": req.MatchAddress + ":" + req.Recipients[0],
		})
	}))

	cfg := config.Default()
	cfg.Relayer.Url = s.server.URL
	s.client = NewClient(cfg)
}

func (s *SubmitterTestSuite) TearDownSuite() {
	s.server.Close()
}

func (s *SubmitterTestSuite) TestSubmitRefund() {
	sender := &fakeSender{}
	submitter := NewSubmitter(s.client, sender)

	signature, err := submitter.SubmitRefund(s.ctx, &model.Match{
		Address:       "m1",
		Players:       []string{"alice", "bob"},
		StakeLamports: 100,
	})
	require.NoError(s.T(), err)
	require.Equal(s.T(), "refund-sig", signature)
	require.Equal(s.T(), []string{"m1:alice"}, sender.sent)
}

func (s *SubmitterTestSuite) TestBuildFailure() {
	sender := &fakeSender{}
	submitter := NewSubmitter(s.client, sender)

	_, err := submitter.SubmitRefund(s.ctx, &model.Match{Address: "unknown", Players: []string{"alice"}})
	require.ErrorContains(s.T(), err, "match not found")
	require.Empty(s.T(), sender.sent)
}

func (s *SubmitterTestSuite) TestSendFailure() {
	boom := errors.New("blockhash not found")
	submitter := NewSubmitter(s.client, &fakeSender{err: boom})

	_, err := submitter.SubmitRefund(s.ctx, &model.Match{Address: "m1", Players: []string{"alice"}})
	require.ErrorIs(s.T(), err, boom)
}
