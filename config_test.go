package main

import (
	"strings"
	"testing"
	"time"

	"github.com/9seconds/beacon/beaconlib"
	"github.com/9seconds/beacon/providers"
	"github.com/stretchr/testify/suite"
)

type ConfigTestSuite struct {
	suite.Suite
}

func (suite *ConfigTestSuite) SetupTest() {
	suite.T().Setenv(EnvAdminPassword, "")
	suite.T().Setenv(EnvDatabaseURL, "")
}

func (suite *ConfigTestSuite) TestDefaults() {
	conf, err := parseConfig(strings.NewReader(`{
  providers: [
    {
      name: ipapi
    }
  ]
}`))

	suite.Require().NoError(err)
	suite.Equal(DefaultListen, conf.GetListen())
	suite.Equal(DefaultDatabaseURL, conf.GetDatabaseURL())
	suite.Equal(DefaultPublicDir, conf.GetPublicDir())
	suite.Equal(DefaultLogFormat, conf.GetLogFormat())
	suite.Empty(conf.GetAdminPassword())
	suite.Equal(beaconlib.DefaultAdminCookieTTL, conf.GetAdminCookieTTL())
	suite.Equal(beaconlib.DefaultWorkerPoolSize, conf.GetWorkerPoolSize())
	suite.Equal(beaconlib.DefaultPendingWindow, conf.GetPendingWindow())
	suite.Equal(beaconlib.DefaultBackfillSize, conf.GetBackfillSize())
	suite.Equal(beaconlib.DefaultUpdateRateLimit, conf.GetUpdateRateLimit())
	suite.True(conf.GetResolveOnVisit())

	prov := conf.GetProviders()[0]

	suite.Equal("ipapi", prov.GetName())
	suite.Equal(DefaultHTTPTimeout, prov.GetHTTPTimeout())
	suite.Equal(DefaultRateLimitInterval, prov.GetRateLimitInterval())
	suite.Equal(DefaultRateLimitBurst, prov.GetRateLimitBurst())
	suite.EqualValues(DefaultCircuitBreakerThreshold, prov.GetCircuitBreakerThreshold())
	suite.EqualValues(0, prov.GetCacheItems())
	suite.NotNil(prov.GetSpecificParameters())
}

func (suite *ConfigTestSuite) TestFull() {
	conf, err := parseConfig(strings.NewReader(`{
  # hjson allows comments
  listen: 0.0.0.0:8080
  log_format: console
  database_url: libsql://beacon.turso.io
  admin_password: secret
  admin_cookie_ttl: 1h
  resolve_on_visit: false
  pending_window: 10m
  backfill_size: 20
  allowed_origins: ["https://example.com"]
  providers: [
    {
      name: ipinfo
      http_timeout: 2s
      circuit_breaker_threshold: 0
      cache_items: 1000
      cache_ttl: 10m
      specific_parameters: {
        auth_token: token
      }
    }
    {
      name: ipapi
    }
  ]
}`))

	suite.Require().NoError(err)
	suite.Equal("0.0.0.0:8080", conf.GetListen())
	suite.Equal("console", conf.GetLogFormat())
	suite.Equal("libsql://beacon.turso.io", conf.GetDatabaseURL())
	suite.Equal("secret", conf.GetAdminPassword())
	suite.Equal(time.Hour, conf.GetAdminCookieTTL())
	suite.False(conf.GetResolveOnVisit())
	suite.Equal(10*time.Minute, conf.GetPendingWindow())
	suite.Equal(20, conf.GetBackfillSize())
	suite.Equal([]string{"https://example.com"}, conf.GetAllowedOrigins())
	suite.Len(conf.GetProviders(), 2)

	prov := conf.GetProviders()[0]

	suite.Equal(2*time.Second, prov.GetHTTPTimeout())
	suite.EqualValues(0, prov.GetCircuitBreakerThreshold())
	suite.EqualValues(1000, prov.GetCacheItems())
	suite.Equal(10*time.Minute, prov.GetCacheTTL())
	suite.Equal("token", prov.GetSpecificParameters()["auth_token"])
}

func (suite *ConfigTestSuite) TestDefaultProviders() {
	conf, err := parseConfig(strings.NewReader(`{"listen": "127.0.0.1:3000"}`))

	suite.Require().NoError(err)
	suite.Len(conf.GetProviders(), 2)
	suite.Equal(providers.NameIPAPI, conf.GetProviders()[0].GetName())
	suite.Equal(providers.NameFreeIPAPI, conf.GetProviders()[1].GetName())
}

func (suite *ConfigTestSuite) TestEnvironment() {
	suite.T().Setenv(EnvAdminPassword, "from-env")
	suite.T().Setenv(EnvDatabaseURL, "/tmp/beacon.db")

	conf, err := parseConfig(strings.NewReader(`{
  admin_password: secret
  providers: [{"name": "ipapi"}]
}`))

	suite.Require().NoError(err)
	suite.Equal("from-env", conf.GetAdminPassword())
	suite.Equal("/tmp/beacon.db", conf.GetDatabaseURL())
}

func (suite *ConfigTestSuite) TestIncorrect() {
	testData := map[string]string{
		"garbage":          `{[`,
		"bad listen":       `{"listen": "localhost", "providers": [{"name": "ipapi"}]}`,
		"bad duration":     `{"pending_window": 10, "providers": [{"name": "ipapi"}]}`,
		"unparsable dur":   `{"pending_window": "forever", "providers": [{"name": "ipapi"}]}`,
		"bad log format":   `{"log_format": "xml", "providers": [{"name": "ipapi"}]}`,
		"empty name":       `{"providers": [{"http_timeout": "1s"}]}`,
		"duplicated names": `{"providers": [{"name": "ipapi"}, {"name": "ipapi"}]}`,
	}

	for name, content := range testData {
		_, err := parseConfig(strings.NewReader(content))

		suite.Error(err, name)
	}
}

func TestConfig(t *testing.T) {
	suite.Run(t, &ConfigTestSuite{})
}
