package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestConfigTestSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

type ConfigTestSuite struct {
	suite.Suite
}

func (s *ConfigTestSuite) SetupTest() {
	viper.Reset()
}

func (s *ConfigTestSuite) TestDefaults() {
	config, err := Load("")
	require.NoError(s.T(), err)
	require.Equal(s.T(), 30*time.Second, config.Indexer.ReconcileInterval)
	require.Equal(s.T(), 15*time.Second, config.Refunder.Interval)
	require.Equal(s.T(), 50, config.Refunder.BatchSize)
	require.Equal(s.T(), 5*time.Minute, config.Pool.CooldownWindow())
	require.Equal(s.T(), 5, config.Pool.Floor)
	require.Equal(s.T(), 20, config.Pool.Ceiling)
	require.Equal(s.T(), []time.Duration{
		time.Second, 2 * time.Second, 5 * time.Second, 10 * time.Second, 30 * time.Second,
	}, config.Subscriber.ReconnectBackoff)
}

func (s *ConfigTestSuite) TestEnvOverrides() {
	s.T().Setenv("ARENA_POOL_FLOOR", "7")
	s.T().Setenv("ARENA_REFUNDER_INTERVAL", "1m")
	s.T().Setenv("ARENA_SUBSCRIBER_RECONNECT_BACKOFF", "1s,3s")

	config, err := Load("")
	require.NoError(s.T(), err)
	require.Equal(s.T(), 7, config.Pool.Floor)
	require.Equal(s.T(), time.Minute, config.Refunder.Interval)
	require.Equal(s.T(), []time.Duration{time.Second, 3 * time.Second}, config.Subscriber.ReconnectBackoff)
}

func (s *ConfigTestSuite) TestFile() {
	path := filepath.Join(s.T().TempDir(), "config.json")
	err := os.WriteFile(path, []byte(`{"Pool": {"CooldownMinutes": 10}, "Solana": {"ProgramId": "abc"}}`), 0o600)
	require.NoError(s.T(), err)

	config, err := Load(path)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 10*time.Minute, config.Pool.CooldownWindow())
	require.Equal(s.T(), "abc", config.Solana.ProgramId)
}

func (s *ConfigTestSuite) TestMissingFile() {
	_, err := Load(filepath.Join(s.T().TempDir(), "missing.json"))
	require.Error(s.T(), err)
}
