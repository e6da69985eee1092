package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Server.Port != 8000 {
			t.Errorf("expected server port 8000, got %d", config.Server.Port)
		}

		if config.Cache.Capacity != 256 {
			t.Errorf("expected cache capacity 256, got %d", config.Cache.Capacity)
		}

		if config.Cache.TTL() != time.Hour {
			t.Errorf("expected cache ttl 1h, got %v", config.Cache.TTL())
		}

		if config.Resolver.Backend != "ytdlp" {
			t.Errorf("expected resolver backend ytdlp, got %s", config.Resolver.Backend)
		}

		if config.Resolver.Timeout() != 35*time.Second {
			t.Errorf("expected resolver timeout 35s, got %v", config.Resolver.Timeout())
		}

		if config.Resolver.DelegateURL != "" {
			t.Errorf("expected no delegate by default, got %s", config.Resolver.DelegateURL)
		}

		if config.Credentials.Spotify.Enabled() {
			t.Error("expected spotify credentials to be disabled by default")
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Server.Addr() != DefaultConfig().Server.Addr() {
			t.Errorf("created config address doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[server]
port = 9090

[cache]
capacity = 16

[resolver]
backend = "library"
delegate_url = "https://resolver.example.com"

[ratelimit]
trusted_proxies = ["10.0.0.0/8", "127.0.0.1"]

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Server.Port != 9090 {
			t.Errorf("expected server port 9090, got %d", config.Server.Port)
		}

		if config.Cache.Capacity != 16 {
			t.Errorf("expected cache capacity 16, got %d", config.Cache.Capacity)
		}

		if config.Cache.TTLSeconds != 3600 {
			t.Errorf("expected unset ttl to keep default 3600, got %d", config.Cache.TTLSeconds)
		}

		if config.Resolver.Backend != "library" {
			t.Errorf("expected backend library, got %s", config.Resolver.Backend)
		}

		if !config.Credentials.Spotify.Enabled() {
			t.Error("expected spotify credentials to be enabled")
		}

		if diff := cmp.Diff([]string{"10.0.0.0/8", "127.0.0.1"}, config.RateLimit.TrustedProxies); diff != "" {
			t.Errorf("trusted proxies mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("LoadConfig with missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("LoadConfig with malformed file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[server\nport = "), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfig(configPath); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestConfigApplyEnv(t *testing.T) {
	env := func(vars map[string]string) func(string) string {
		return func(k string) string { return vars[k] }
	}

	t.Run("overrides fields", func(t *testing.T) {
		config := DefaultConfig()
		err := config.ApplyEnv(env(map[string]string{
			"PORT":            "5050",
			"REQUEST_TIMEOUT": "12",
			"YT_DLP_PATH":     "/usr/local/bin/yt-dlp",
			"COOKIES_FILE":    "/tmp/c.txt",
			"DELEGATE_URL":    "http://delegate:8000",
			"LOG_LEVEL":       "debug",
		}))
		if err != nil {
			t.Fatalf("ApplyEnv() error = %v", err)
		}

		if config.Server.Port != 5050 {
			t.Errorf("expected port 5050, got %d", config.Server.Port)
		}
		if config.Resolver.TimeoutSeconds != 12 {
			t.Errorf("expected timeout 12, got %d", config.Resolver.TimeoutSeconds)
		}
		if config.Resolver.YTDLPPath != "/usr/local/bin/yt-dlp" {
			t.Errorf("unexpected ytdlp path %s", config.Resolver.YTDLPPath)
		}
		if config.Resolver.CookiesFile != "/tmp/c.txt" {
			t.Errorf("unexpected cookies file %s", config.Resolver.CookiesFile)
		}
		if config.Resolver.DelegateURL != "http://delegate:8000" {
			t.Errorf("unexpected delegate url %s", config.Resolver.DelegateURL)
		}
		if config.Log.Level != "debug" {
			t.Errorf("unexpected log level %s", config.Log.Level)
		}
	})

	t.Run("empty values leave defaults", func(t *testing.T) {
		config := DefaultConfig()
		if err := config.ApplyEnv(env(nil)); err != nil {
			t.Fatalf("ApplyEnv() error = %v", err)
		}
		if config.Server.Port != 8000 {
			t.Errorf("expected default port, got %d", config.Server.Port)
		}
	})

	t.Run("invalid numbers", func(t *testing.T) {
		for _, key := range []string{"PORT", "REQUEST_TIMEOUT"} {
			config := DefaultConfig()
			err := config.ApplyEnv(env(map[string]string{key: "abc"}))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("%s: expected ErrInvalidConfig, got %v", key, err)
			}
		}
	})
}

func TestConfigValidate(t *testing.T) {
	tc := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "zero capacity", mutate: func(c *Config) { c.Cache.Capacity = 0 }},
		{name: "negative ttl", mutate: func(c *Config) { c.Cache.TTLSeconds = -1 }},
		{name: "zero resolver timeout", mutate: func(c *Config) { c.Resolver.TimeoutSeconds = 0 }},
		{name: "zero concurrency", mutate: func(c *Config) { c.Resolver.MaxConcurrent = 0 }},
		{name: "port out of range", mutate: func(c *Config) { c.Server.Port = 70000 }},
		{name: "unknown backend", mutate: func(c *Config) { c.Resolver.Backend = "pytube" }},
		{name: "delegate without scheme", mutate: func(c *Config) { c.Resolver.DelegateURL = "delegate:8000" }},
		{name: "delegate without timeout", mutate: func(c *Config) {
			c.Resolver.DelegateURL = "http://delegate:8000"
			c.Resolver.DelegateTimeoutSeconds = 0
		}},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
