package main

import (
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/9seconds/beacon/beaconlib"
	"github.com/9seconds/beacon/providers"
	"github.com/goccy/go-json"
	"github.com/hjson/hjson-go/v4"
)

const (
	DefaultListen                    = "127.0.0.1:3000"
	DefaultDatabaseURL               = "beacon.db"
	DefaultPublicDir                 = "public"
	DefaultLogFormat                 = "json"
	DefaultHTTPTimeout               = 5 * time.Second
	DefaultRateLimitInterval         = 100 * time.Millisecond
	DefaultRateLimitBurst            = 10
	DefaultCircuitBreakerThreshold   = 5
	DefaultCircuitBreakerOpenTimeout = 30 * time.Second
	DefaultCacheTTL                  = time.Hour
	DefaultShutdownTimeout           = 10 * time.Second

	EnvAdminPassword = "BEACON_ADMIN_PASSWORD"
	EnvDatabaseURL   = "BEACON_DATABASE_URL"
)

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalJSON(b []byte) error {
	var v interface{}

	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("cannot unmarshal duration: %w", err)
	}

	vv, ok := v.(string)
	if !ok {
		return fmt.Errorf("incorrect duration: %v", v)
	}

	dur, err := time.ParseDuration(vv)
	if err != nil {
		return fmt.Errorf("cannot parse duration: %w", err)
	}

	d.Duration = dur

	return nil
}

type config struct {
	Listen          string           `json:"listen"`
	LogFormat       string           `json:"log_format"`
	DatabaseURL     string           `json:"database_url"`
	PublicDir       string           `json:"public_dir"`
	AdminPassword   string           `json:"admin_password"`
	AdminCookieTTL  duration         `json:"admin_cookie_ttl"`
	SecureCookie    bool             `json:"secure_cookie"`
	WorkerPoolSize  uint             `json:"worker_pool_size"`
	TrackTimeout    duration         `json:"track_timeout"`
	AttemptTimeout  duration         `json:"attempt_timeout"`
	ResolveOnVisit  *bool            `json:"resolve_on_visit"`
	PendingWindow   duration         `json:"pending_window"`
	BackfillSize    uint             `json:"backfill_size"`
	UpdateRateLimit uint             `json:"update_rate_limit"`
	AllowedOrigins  []string         `json:"allowed_origins"`
	ShutdownTimeout duration         `json:"shutdown_timeout"`
	Providers       []configProvider `json:"providers"`
}

func (c config) GetListen() string {
	if c.Listen != "" {
		return c.Listen
	}

	return DefaultListen
}

func (c config) GetLogFormat() string {
	if c.LogFormat != "" {
		return c.LogFormat
	}

	return DefaultLogFormat
}

func (c config) GetDatabaseURL() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}

	return DefaultDatabaseURL
}

func (c config) GetPublicDir() string {
	if c.PublicDir != "" {
		return c.PublicDir
	}

	return DefaultPublicDir
}

func (c config) GetAdminPassword() string {
	return c.AdminPassword
}

func (c config) GetAdminCookieTTL() time.Duration {
	if c.AdminCookieTTL.Duration == 0 {
		return beaconlib.DefaultAdminCookieTTL
	}

	return c.AdminCookieTTL.Duration
}

func (c config) GetSecureCookie() bool {
	return c.SecureCookie
}

func (c config) GetWorkerPoolSize() int {
	if c.WorkerPoolSize == 0 {
		return beaconlib.DefaultWorkerPoolSize
	}

	return int(c.WorkerPoolSize)
}

func (c config) GetTrackTimeout() time.Duration {
	if c.TrackTimeout.Duration == 0 {
		return beaconlib.DefaultTrackTimeout
	}

	return c.TrackTimeout.Duration
}

func (c config) GetAttemptTimeout() time.Duration {
	if c.AttemptTimeout.Duration == 0 {
		return beaconlib.DefaultAttemptTimeout
	}

	return c.AttemptTimeout.Duration
}

func (c config) GetResolveOnVisit() bool {
	if c.ResolveOnVisit == nil {
		return true
	}

	return *c.ResolveOnVisit
}

func (c config) GetPendingWindow() time.Duration {
	if c.PendingWindow.Duration == 0 {
		return beaconlib.DefaultPendingWindow
	}

	return c.PendingWindow.Duration
}

func (c config) GetBackfillSize() int {
	if c.BackfillSize == 0 {
		return beaconlib.DefaultBackfillSize
	}

	return int(c.BackfillSize)
}

func (c config) GetUpdateRateLimit() int {
	if c.UpdateRateLimit == 0 {
		return beaconlib.DefaultUpdateRateLimit
	}

	return int(c.UpdateRateLimit)
}

func (c config) GetAllowedOrigins() []string {
	return c.AllowedOrigins
}

func (c config) GetShutdownTimeout() time.Duration {
	if c.ShutdownTimeout.Duration == 0 {
		return DefaultShutdownTimeout
	}

	return c.ShutdownTimeout.Duration
}

// GetProviders returns ipapi and freeipapi if nothing is configured.
func (c config) GetProviders() []configProvider {
	if len(c.Providers) == 0 {
		return []configProvider{
			{Name: providers.NameIPAPI},
			{Name: providers.NameFreeIPAPI},
		}
	}

	return c.Providers
}

type configProvider struct {
	Name                      string            `json:"name"`
	HTTPTimeout               duration          `json:"http_timeout"`
	RateLimitInterval         duration          `json:"rate_limit_interval"`
	RateLimitBurst            uint              `json:"rate_limit_burst"`
	CircuitBreakerThreshold   *uint32           `json:"circuit_breaker_threshold"`
	CircuitBreakerOpenTimeout duration          `json:"circuit_breaker_open_timeout"`
	CacheItems                uint              `json:"cache_items"`
	CacheTTL                  duration          `json:"cache_ttl"`
	SpecificParameters        map[string]string `json:"specific_parameters"`
}

func (c configProvider) GetName() string {
	return c.Name
}

func (c configProvider) GetHTTPTimeout() time.Duration {
	if c.HTTPTimeout.Duration == 0 {
		return DefaultHTTPTimeout
	}

	return c.HTTPTimeout.Duration
}

func (c configProvider) GetRateLimitInterval() time.Duration {
	if c.RateLimitInterval.Duration == 0 {
		return DefaultRateLimitInterval
	}

	return c.RateLimitInterval.Duration
}

func (c configProvider) GetRateLimitBurst() int {
	if c.RateLimitBurst == 0 {
		return DefaultRateLimitBurst
	}

	return int(c.RateLimitBurst)
}

// GetCircuitBreakerThreshold returns 0 if circuit breaker is disabled
// explicitly.
func (c configProvider) GetCircuitBreakerThreshold() uint32 {
	if c.CircuitBreakerThreshold == nil {
		return DefaultCircuitBreakerThreshold
	}

	return *c.CircuitBreakerThreshold
}

func (c configProvider) GetCircuitBreakerOpenTimeout() time.Duration {
	if c.CircuitBreakerOpenTimeout.Duration == 0 {
		return DefaultCircuitBreakerOpenTimeout
	}

	return c.CircuitBreakerOpenTimeout.Duration
}

// GetCacheItems returns 0 if results should not be cached.
func (c configProvider) GetCacheItems() uint {
	return c.CacheItems
}

func (c configProvider) GetCacheTTL() time.Duration {
	if c.CacheTTL.Duration == 0 {
		return DefaultCacheTTL
	}

	return c.CacheTTL.Duration
}

func (c configProvider) GetSpecificParameters() map[string]string {
	if c.SpecificParameters == nil {
		return map[string]string{}
	}

	return c.SpecificParameters
}

func parseConfig(file io.Reader) (*config, error) {
	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("cannot read file: %w", err)
	}

	conf := config{}
	rawMap := map[string]interface{}{}

	if err := hjson.Unmarshal(content, &rawMap); err != nil {
		return nil, fmt.Errorf("cannot parse hjson: %w", err)
	}

	rawBytes, err := json.Marshal(rawMap)
	if err != nil {
		return nil, fmt.Errorf("cannot convert hjson to json: %w", err)
	}

	if err := json.Unmarshal(rawBytes, &conf); err != nil {
		return nil, fmt.Errorf("incorrect config structure: %w", err)
	}

	if value := os.Getenv(EnvAdminPassword); value != "" {
		conf.AdminPassword = value
	}

	if value := os.Getenv(EnvDatabaseURL); value != "" {
		conf.DatabaseURL = value
	}

	if _, _, err := net.SplitHostPort(conf.GetListen()); err != nil {
		return nil, fmt.Errorf("incorrect host:port for listen: %w", err)
	}

	switch conf.GetLogFormat() {
	case "json", "console":
	default:
		return nil, fmt.Errorf("unknown log format %s", conf.GetLogFormat())
	}

	seenProviderNames := map[string]struct{}{}

	for _, v := range conf.Providers {
		if v.GetName() == "" {
			return nil, fmt.Errorf("provider name is empty")
		}

		if _, ok := seenProviderNames[v.GetName()]; ok {
			return nil, fmt.Errorf("name %s is duplicated", v.GetName())
		}

		seenProviderNames[v.GetName()] = struct{}{}
	}

	return &conf, nil
}
