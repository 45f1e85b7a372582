// Package models - Service configuration and operational settings.
// This file defines the configuration structures for all service components.
//
// Configuration Philosophy:
// - Hierarchical configuration with logical grouping (server, storage, security, etc.)
// - Environment-friendly defaults that work out of the box
// - Validation catches misconfigurations before any component starts
// - Rate limit policies are validated here and again by the limiter constructor
package models

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypePostgres = "postgres"
	StorageTypeSQLite   = "sqlite"
)

// Cache type constants
const (
	CacheTypeMemory = "memory"
	CacheTypeRedis  = "redis"
)

// Provider type constants
const (
	ProviderTypeStatic = "static"
	ProviderTypeHTTP   = "http"
)

// Rate limit policy names used by the HTTP layer.
const (
	PolicyRead  = "read"
	PolicyWrite = "write"
)

// Config is the root configuration structure containing all service settings.
//
// Configuration Structure:
// - Server: HTTP server and network settings
// - Storage: Favorites and alerts persistence
// - Security: Admission control and client version gating
// - Logging: Structured logging and output configuration
// - Cache: Upstream response caching
// - Provider: Upstream facility data API
// - Alerts: Availability alert evaluation
// - Metrics, Observability: Monitoring and tracing
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	Storage       StorageConfig       `yaml:"storage" json:"storage"`
	Security      SecurityConfig      `yaml:"security" json:"security"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Cache         CacheConfig         `yaml:"cache" json:"cache"`
	Provider      ProviderConfig      `yaml:"provider" json:"provider"`
	Alerts        AlertsConfig        `yaml:"alerts" json:"alerts"`
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

type ServerConfig struct {
	Port         int           `yaml:"port" json:"port"`
	Host         string        `yaml:"host" json:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	TLSEnabled   bool          `yaml:"tls_enabled" json:"tls_enabled"`
	TLSCertFile  string        `yaml:"tls_cert_file" json:"tls_cert_file"`
	TLSKeyFile   string        `yaml:"tls_key_file" json:"tls_key_file"`
	CORS         CORSConfig    `yaml:"cors" json:"cors"`
}

type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" json:"allowed_headers"`
	MaxAge         int      `yaml:"max_age" json:"max_age"`
}

type StorageConfig struct {
	Type     string         `yaml:"type" json:"type"`
	Database DatabaseConfig `yaml:"database" json:"database"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"dsn" json:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}

type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// MinClientVersion rejects app clients that report an older X-Client-Version.
	// Empty disables the check.
	MinClientVersion string `yaml:"min_client_version" json:"min_client_version"`
}

// RateLimitConfig configures the admission controllers guarding the API. Each
// named policy gets its own isolated limiter.
type RateLimitConfig struct {
	Enabled           bool                             `yaml:"enabled" json:"enabled"`
	SweepInterval     time.Duration                    `yaml:"sweep_interval" json:"sweep_interval"`
	Shards            int                              `yaml:"shards" json:"shards"`
	TrustForwardedFor bool                             `yaml:"trust_forwarded_for" json:"trust_forwarded_for"`
	Policies          map[string]RateLimitPolicyConfig `yaml:"policies" json:"policies"`
}

// RateLimitPolicyConfig allows MaxRequests within any Window.
type RateLimitPolicyConfig struct {
	Window      time.Duration `yaml:"window" json:"window"`
	MaxRequests int           `yaml:"max_requests" json:"max_requests"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

type CacheConfig struct {
	Enabled  bool          `yaml:"enabled" json:"enabled"`
	Type     string        `yaml:"type" json:"type"`
	TTL      time.Duration `yaml:"ttl" json:"ttl"`
	StaleTTL time.Duration `yaml:"stale_ttl" json:"stale_ttl"`
	Redis    RedisConfig   `yaml:"redis" json:"redis"`
	Memory   MemoryConfig  `yaml:"memory" json:"memory"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr" json:"addr"`
	Password  string `yaml:"password" json:"password"`
	DB        int    `yaml:"db" json:"db"`
	PoolSize  int    `yaml:"pool_size" json:"pool_size"`
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
}

type MemoryConfig struct {
	MaxSize         int           `yaml:"max_size" json:"max_size"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
}

// ProviderConfig selects the upstream facility data source.
type ProviderConfig struct {
	Type              string        `yaml:"type" json:"type"`
	BaseURL           string        `yaml:"base_url" json:"base_url"`
	APIKey            string        `yaml:"api_key" json:"-"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int           `yaml:"burst" json:"burst"`
	CatalogPath       string        `yaml:"catalog_path" json:"catalog_path"`
}

type AlertsConfig struct {
	Enabled          bool          `yaml:"enabled" json:"enabled"`
	CheckInterval    time.Duration `yaml:"check_interval" json:"check_interval"`
	Cooldown         time.Duration `yaml:"cooldown" json:"cooldown"`
	MaxAlertsPerUser int           `yaml:"max_alerts_per_user" json:"max_alerts_per_user"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
}

// NewDefaultConfig creates a configuration with production-ready defaults.
//
// Default Values Rationale:
// - Port 8080: Standard non-privileged HTTP port
// - Memory storage and static provider: runs without external services
// - Rate limiting enabled: reads 60/min, writes 10/min per caller and route
// - Structured JSON logging for log aggregation
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			TLSEnabled:   false,
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"*"},
				MaxAge:         86400,
			},
		},
		Storage: StorageConfig{
			Type: StorageTypeMemory,
			Database: DatabaseConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled:           true,
				SweepInterval:     time.Minute,
				Shards:            32,
				TrustForwardedFor: true,
				Policies: map[string]RateLimitPolicyConfig{
					PolicyRead:  {Window: time.Minute, MaxRequests: 60},
					PolicyWrite: {Window: time.Minute, MaxRequests: 10},
				},
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Cache: CacheConfig{
			Enabled:  true,
			Type:     CacheTypeMemory,
			TTL:      5 * time.Minute,
			StaleTTL: 24 * time.Hour,
			Redis: RedisConfig{
				KeyPrefix: "facilitywatch:",
			},
			Memory: MemoryConfig{
				MaxSize:         1000,
				CleanupInterval: 10 * time.Minute,
			},
		},
		Provider: ProviderConfig{
			Type:              ProviderTypeStatic,
			Timeout:           10 * time.Second,
			RequestsPerSecond: 5,
			Burst:             10,
			CatalogPath:       "./data/catalog.yaml",
		},
		Alerts: AlertsConfig{
			Enabled:          true,
			CheckInterval:    15 * time.Minute,
			Cooldown:         6 * time.Hour,
			MaxAlertsPerUser: 25,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "facilitywatch",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "stdout",
				SampleRate: 1.0,
			},
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("invalid storage config: %w", err)
	}

	if err := c.Security.Validate(); err != nil {
		return fmt.Errorf("invalid security config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("invalid cache config: %w", err)
	}

	if err := c.Provider.Validate(); err != nil {
		return fmt.Errorf("invalid provider config: %w", err)
	}

	if err := c.Alerts.Validate(); err != nil {
		return fmt.Errorf("invalid alerts config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}

	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("invalid observability config: %w", err)
	}

	return nil
}

func (sc *ServerConfig) Validate() error {
	if sc.Port <= 0 || sc.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}

	if sc.Host == "" {
		return errors.New("host cannot be empty")
	}

	if sc.ReadTimeout < 0 {
		return errors.New("read timeout cannot be negative")
	}

	if sc.WriteTimeout < 0 {
		return errors.New("write timeout cannot be negative")
	}

	if sc.IdleTimeout < 0 {
		return errors.New("idle timeout cannot be negative")
	}

	if sc.TLSEnabled {
		if sc.TLSCertFile == "" {
			return errors.New("TLS cert file is required when TLS is enabled")
		}
		if sc.TLSKeyFile == "" {
			return errors.New("TLS key file is required when TLS is enabled")
		}
	}

	return nil
}

func (stc *StorageConfig) Validate() error {
	switch stc.Type {
	case StorageTypeMemory:
		return nil
	case StorageTypePostgres, StorageTypeSQLite:
		if stc.Database.DSN == "" {
			return errors.New("database DSN is required for database storage")
		}
		return nil
	default:
		return fmt.Errorf("invalid storage type: %s", stc.Type)
	}
}

func (sec *SecurityConfig) Validate() error {
	if err := sec.RateLimit.Validate(); err != nil {
		return err
	}

	if sec.MinClientVersion != "" {
		if _, err := semver.NewVersion(sec.MinClientVersion); err != nil {
			return fmt.Errorf("invalid min client version %q: %w", sec.MinClientVersion, err)
		}
	}

	return nil
}

func (rl *RateLimitConfig) Validate() error {
	if !rl.Enabled {
		return nil
	}

	if rl.SweepInterval <= 0 {
		return errors.New("rate limit sweep interval must be positive")
	}

	if rl.Shards < 0 {
		return errors.New("rate limit shards cannot be negative")
	}

	if len(rl.Policies) == 0 {
		return errors.New("at least one rate limit policy is required when rate limiting is enabled")
	}

	for _, name := range rl.PolicyNames() {
		p := rl.Policies[name]
		if p.Window <= 0 {
			return fmt.Errorf("rate limit policy %s: window must be positive", name)
		}
		if p.MaxRequests <= 0 {
			return fmt.Errorf("rate limit policy %s: max requests must be positive", name)
		}
	}

	return nil
}

// PolicyNames returns the configured policy names in sorted order.
func (rl *RateLimitConfig) PolicyNames() []string {
	names := make([]string, 0, len(rl.Policies))
	for name := range rl.Policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (lc *LoggingConfig) Validate() error {
	if !contains([]string{"debug", "info", "warn", "error"}, lc.Level) {
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}

	if !contains([]string{"json", "text"}, lc.Format) {
		return fmt.Errorf("invalid log format: %s", lc.Format)
	}

	if !contains([]string{"stdout", "stderr", "file"}, lc.Output) {
		return fmt.Errorf("invalid log output: %s", lc.Output)
	}

	if lc.Output == "file" && lc.FilePath == "" {
		return errors.New("file path is required when output is file")
	}

	return nil
}

func (cc *CacheConfig) Validate() error {
	if !cc.Enabled {
		return nil
	}

	if !contains([]string{CacheTypeMemory, CacheTypeRedis}, cc.Type) {
		return fmt.Errorf("invalid cache type: %s", cc.Type)
	}

	if cc.TTL < 0 {
		return errors.New("cache TTL cannot be negative")
	}

	if cc.StaleTTL < 0 {
		return errors.New("cache stale TTL cannot be negative")
	}

	if cc.Type == CacheTypeRedis && cc.Redis.Addr == "" {
		return errors.New("Redis address is required when cache type is redis")
	}

	if cc.Type == CacheTypeMemory && cc.Memory.CleanupInterval <= 0 {
		return errors.New("memory cache cleanup interval must be positive")
	}

	return nil
}

func (pc *ProviderConfig) Validate() error {
	switch pc.Type {
	case ProviderTypeStatic:
		if pc.CatalogPath == "" {
			return errors.New("catalog path is required for static provider")
		}
	case ProviderTypeHTTP:
		if pc.BaseURL == "" {
			return errors.New("base URL is required for http provider")
		}
		if pc.Timeout <= 0 {
			return errors.New("provider timeout must be positive")
		}
		if pc.RequestsPerSecond <= 0 {
			return errors.New("provider requests per second must be positive")
		}
		if pc.Burst <= 0 {
			return errors.New("provider burst must be positive")
		}
	default:
		return fmt.Errorf("invalid provider type: %s", pc.Type)
	}
	return nil
}

func (ac *AlertsConfig) Validate() error {
	if !ac.Enabled {
		return nil
	}

	if ac.CheckInterval <= 0 {
		return errors.New("alert check interval must be positive")
	}

	if ac.Cooldown < 0 {
		return errors.New("alert cooldown cannot be negative")
	}

	if ac.MaxAlertsPerUser < 0 {
		return errors.New("max alerts per user cannot be negative")
	}

	return nil
}

func (mc *MetricsConfig) Validate() error {
	if !mc.Enabled {
		return nil
	}

	if mc.Path == "" {
		return errors.New("metrics path cannot be empty")
	}

	if mc.Port <= 0 || mc.Port > 65535 {
		return errors.New("metrics port must be between 1 and 65535")
	}

	return nil
}

func (oc *ObservabilityConfig) Validate() error {
	if !oc.Tracing.Enabled {
		return nil
	}

	switch oc.Tracing.Exporter {
	case "stdout":
	case "otlp":
		if oc.Tracing.OTLPEndpoint == "" {
			return errors.New("OTLP endpoint is required when exporter is otlp")
		}
	default:
		return fmt.Errorf("invalid trace exporter: %s", oc.Tracing.Exporter)
	}

	if oc.Tracing.SampleRate < 0 || oc.Tracing.SampleRate > 1 {
		return errors.New("sample rate must be between 0 and 1")
	}

	return nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
