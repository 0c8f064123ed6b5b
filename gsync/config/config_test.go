package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	internal "github.com/ZanzyTHEbar/gacha-sync/gsync"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ConfigTestSuite tests the config package functionality
type ConfigTestSuite struct {
	suite.Suite
	tempDir string
	origDir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) SetupTest() {
	var err error
	suite.origDir, err = os.Getwd()
	require.NoError(suite.T(), err)

	suite.tempDir = suite.T().TempDir()

	// Change to temp directory so no stray config.yaml is picked up
	err = os.Chdir(suite.tempDir)
	require.NoError(suite.T(), err)
}

func (suite *ConfigTestSuite) TearDownTest() {
	if suite.origDir != "" {
		_ = os.Chdir(suite.origDir)
	}
}

func (suite *ConfigTestSuite) TestLoadConfigWithDefaults() {
	cfg, err := LoadConfig("")

	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), cfg)

	assert.Equal(suite.T(), "info", cfg.GSync.LogLevel)
	assert.Equal(suite.T(), internal.DefaultDatabaseDSN, cfg.GSync.Database.DSN)
	assert.Equal(suite.T(), internal.DefaultUserAgent, cfg.GSync.HTTP.UserAgent)
	assert.Equal(suite.T(), internal.DefaultKuroRecordEndpoint, cfg.GSync.Kuro.RecordEndpoint)
	assert.Equal(suite.T(), 5, cfg.GSync.Pacing.Burst)
	assert.Equal(suite.T(), 3*time.Second, cfg.Sleep())
	assert.Equal(suite.T(), 24*time.Hour, cfg.TTL())
	assert.Zero(suite.T(), cfg.Timeout())
}

func (suite *ConfigTestSuite) TestLoadConfigWithFile() {
	configContent := `
gsync:
  logLevel: debug
  database:
    dsn: "file:test.db"
  http:
    userAgent: "tester/1.0"
    timeoutSeconds: 15
  pacing:
    sleepSeconds: 1
    burst: 10
  validator:
    ttlHours: 12
`
	configFile := filepath.Join(suite.tempDir, "config.yaml")
	err := os.WriteFile(configFile, []byte(configContent), 0o644)
	require.NoError(suite.T(), err)

	cfg, err := LoadConfig(configFile)
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), "debug", cfg.GSync.LogLevel)
	assert.Equal(suite.T(), "file:test.db", cfg.GSync.Database.DSN)
	assert.Equal(suite.T(), "tester/1.0", cfg.GSync.HTTP.UserAgent)
	assert.Equal(suite.T(), 15*time.Second, cfg.Timeout())
	assert.Equal(suite.T(), time.Second, cfg.Sleep())
	assert.Equal(suite.T(), 10, cfg.GSync.Pacing.Burst)
	assert.Equal(suite.T(), 12*time.Hour, cfg.TTL())
	// Untouched keys keep their defaults
	assert.Equal(suite.T(), internal.DefaultKuroRecordEndpoint, cfg.GSync.Kuro.RecordEndpoint)
}

func (suite *ConfigTestSuite) TestLoadConfigEnvOverride() {
	suite.T().Setenv("GSYNC_PACING_BURST", "7")

	cfg, err := LoadConfig("")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 7, cfg.GSync.Pacing.Burst)
}

func (suite *ConfigTestSuite) TestLoadConfigRejectsInvalidValues() {
	configFile := filepath.Join(suite.tempDir, "config.yaml")
	err := os.WriteFile(configFile, []byte("gsync:\n  pacing:\n    burst: 0\n"), 0o644)
	require.NoError(suite.T(), err)

	_, err = LoadConfig(configFile)
	assert.Error(suite.T(), err)
}

func (suite *ConfigTestSuite) TestLoadConfigMalformedFile() {
	configFile := filepath.Join(suite.tempDir, "config.yaml")
	err := os.WriteFile(configFile, []byte("gsync: [unclosed"), 0o644)
	require.NoError(suite.T(), err)

	_, err = LoadConfig(configFile)
	assert.Error(suite.T(), err)
}
