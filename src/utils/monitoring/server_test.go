package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arena-labs/syncer/src/utils/config"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

type ServerTestSuite struct {
	suite.Suite
	monitor *Monitor
	server  *Server
}

func (s *ServerTestSuite) SetupTest() {
	cfg := config.Default()
	s.monitor = NewMonitor(cfg)
	s.server = NewServer(cfg).WithMonitor(s.monitor)
}

func (s *ServerTestSuite) get(path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.server.Router.ServeHTTP(w, req)
	return w
}

func (s *ServerTestSuite) TestHealth() {
	s.monitor.GetReport().Indexer.State.EventsApplied.Store(3)

	w := s.get("/v1/health")
	require.Equal(s.T(), http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &body))
	require.Contains(s.T(), body, "indexer")

	// Overdue refunds need an operator
	s.monitor.GetReport().Refunder.State.Overdue.Inc()
	w = s.get("/v1/health")
	require.Equal(s.T(), http.StatusServiceUnavailable, w.Code)
}

func (s *ServerTestSuite) TestMetrics() {
	s.monitor.GetReport().Pool.State.Available.Store(4)

	w := s.get("/metrics")
	require.Equal(s.T(), http.StatusOK, w.Code)
	require.Contains(s.T(), w.Body.String(), "indexer_events_applied")
	require.Contains(s.T(), w.Body.String(), `pool_accounts{app="arena-syncer",status="available"} 4`)
}

func (s *ServerTestSuite) TestAverageEventsApplied() {
	state := &s.monitor.GetReport().Indexer.State

	state.EventsApplied.Store(10)
	require.NoError(s.T(), s.monitor.monitorEvents())
	state.EventsApplied.Store(30)
	require.NoError(s.T(), s.monitor.monitorEvents())

	require.Equal(s.T(), 10.0, state.AverageEventsAppliedPerMinute.Load())
}
