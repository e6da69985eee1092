package shared

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Server      ServerConfig      `toml:"server"`
	Cache       CacheConfig       `toml:"cache"`
	Resolver    ResolverConfig    `toml:"resolver"`
	Relay       RelayConfig       `toml:"relay"`
	RateLimit   RateLimitConfig   `toml:"ratelimit"`
	Credentials CredentialsConfig `toml:"credentials"`
	Log         LogConfig         `toml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	ShutdownSeconds int    `toml:"shutdown_seconds"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// CacheConfig sizes the short-ID cache.
type CacheConfig struct {
	Capacity   int `toml:"capacity"`
	TTLSeconds int `toml:"ttl_seconds"`
}

// TTL returns the entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// ResolverConfig contains media resolver settings.
type ResolverConfig struct {
	Backend                string `toml:"backend"`
	YTDLPPath              string `toml:"ytdlp_path"`
	TimeoutSeconds         int    `toml:"timeout_seconds"`
	MaxConcurrent          int    `toml:"max_concurrent"`
	CookiesFile            string `toml:"cookies_file"`
	ProxyURL               string `toml:"proxy_url"`
	ResultCacheSeconds     int    `toml:"result_cache_seconds"`
	DelegateURL            string `toml:"delegate_url"`
	DelegateTimeoutSeconds int    `toml:"delegate_timeout_seconds"`
}

// Timeout returns the local resolver timeout.
func (r ResolverConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// DelegateTimeout returns the delegate resolver timeout.
func (r ResolverConfig) DelegateTimeout() time.Duration {
	return time.Duration(r.DelegateTimeoutSeconds) * time.Second
}

// ResultCacheTTL returns how long resolved media records are reused.
func (r ResolverConfig) ResultCacheTTL() time.Duration {
	return time.Duration(r.ResultCacheSeconds) * time.Second
}

// RelayConfig contains upstream connection settings for the proxy relay.
type RelayConfig struct {
	UserAgent            string `toml:"user_agent"`
	DialTimeoutSeconds   int    `toml:"dial_timeout_seconds"`
	HeaderTimeoutSeconds int    `toml:"header_timeout_seconds"`
}

// RateLimitConfig bounds resolve and search requests per client address.
//
// TrustedProxies lists the CIDRs or addresses of reverse proxies whose X-Forwarded-For and
// X-Real-IP headers identify the client. Headers from any other peer are ignored.
type RateLimitConfig struct {
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Burst             int      `toml:"burst"`
	TrustedProxies    []string `toml:"trusted_proxies"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials for the client-credentials flow.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// Enabled reports whether both credentials are set.
func (s SpotifyConfig) Enabled() bool {
	return s.ClientID != "" && s.ClientSecret != ""
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides config values from deployment environment variables.
//
// getenv is usually [os.Getenv]; unparsable numeric values are reported and leave the field unchanged.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: PORT=%q", ErrInvalidConfig, v)
		}
		c.Server.Port = port
	}
	if v := getenv("REQUEST_TIMEOUT"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: REQUEST_TIMEOUT=%q", ErrInvalidConfig, v)
		}
		c.Resolver.TimeoutSeconds = secs
	}

	for env, field := range map[string]*string{
		"YT_DLP_PATH":           &c.Resolver.YTDLPPath,
		"COOKIES_FILE":          &c.Resolver.CookiesFile,
		"DELEGATE_URL":          &c.Resolver.DelegateURL,
		"PROXY_URL":             &c.Resolver.ProxyURL,
		"SPOTIFY_CLIENT_ID":     &c.Credentials.Spotify.ClientID,
		"SPOTIFY_CLIENT_SECRET": &c.Credentials.Spotify.ClientSecret,
		"LOG_LEVEL":             &c.Log.Level,
	} {
		if v := getenv(env); v != "" {
			*field = v
		}
	}

	return nil
}

// Validate checks values that would otherwise fail at request time.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port < 0 || c.Server.Port > 65535:
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	case c.Cache.Capacity <= 0:
		return fmt.Errorf("%w: cache.capacity must be positive", ErrInvalidConfig)
	case c.Cache.TTLSeconds <= 0:
		return fmt.Errorf("%w: cache.ttl_seconds must be positive", ErrInvalidConfig)
	case c.Resolver.TimeoutSeconds <= 0:
		return fmt.Errorf("%w: resolver.timeout_seconds must be positive", ErrInvalidConfig)
	case c.Resolver.MaxConcurrent <= 0:
		return fmt.Errorf("%w: resolver.max_concurrent must be positive", ErrInvalidConfig)
	}

	switch c.Resolver.Backend {
	case "ytdlp", "library":
	default:
		return fmt.Errorf("%w: resolver.backend %q", ErrInvalidConfig, c.Resolver.Backend)
	}

	if c.Resolver.DelegateURL != "" {
		u, err := url.Parse(c.Resolver.DelegateURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: resolver.delegate_url %q", ErrInvalidConfig, c.Resolver.DelegateURL)
		}
		if c.Resolver.DelegateTimeoutSeconds <= 0 {
			return fmt.Errorf("%w: resolver.delegate_timeout_seconds must be positive", ErrInvalidConfig)
		}
	}

	return nil
}
