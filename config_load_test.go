package betclient

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_Valid(t *testing.T) {
	data := `{
		"api_base_url": "https://staging.example.com/api",
		"root_base_url": "https://staging.example.com",
		"timeout": "10s",
		"credential": {"store": "sqlite", "dsn": "/tmp/creds.db"},
		"cache": {"ttls": {"balance": "5s"}}
	}`
	path := writeTempFile(t, "config.json", data)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIBaseURL != "https://staging.example.com/api" {
		t.Errorf("expected staging api url, got %q", cfg.APIBaseURL)
	}
	if cfg.Timeout.Std() != 10*time.Second {
		t.Errorf("expected timeout 10s, got %s", cfg.Timeout)
	}
	if cfg.Credential.Store != CredentialStoreSQLite {
		t.Errorf("expected sqlite store, got %q", cfg.Credential.Store)
	}
	if cfg.Cache.TTLs[KeyBalance].Std() != 5*time.Second {
		t.Errorf("expected balance ttl 5s, got %s", cfg.Cache.TTLs[KeyBalance])
	}
	// Unset fields keep their defaults.
	if cfg.Cache.Backend != CacheBackendMemory {
		t.Errorf("expected default memory backend, got %q", cfg.Cache.Backend)
	}
	if err := ValidateConfig(*cfg); err != nil {
		t.Errorf("loaded config should validate: %v", err)
	}
}

func TestLoadConfig_IntegerFields(t *testing.T) {
	data := `{
		"cache": {"backend": "redis", "redis": {"addr": "localhost:6379", "db": 2}},
		"circuit_breaker": {"enabled": true, "failure_threshold": 3, "success_threshold": 1, "timeout": "5s"}
	}`
	path := writeTempFile(t, "config.json", data)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Cache.Redis.DB != 2 {
		t.Errorf("expected redis db 2, got %d", cfg.Cache.Redis.DB)
	}
	if cfg.CircuitBreaker.FailureThreshold != 3 {
		t.Errorf("expected failure threshold 3, got %d", cfg.CircuitBreaker.FailureThreshold)
	}

	for name, doc := range map[string]string{
		"fractional db":      `{"cache": {"redis": {"db": 1.5}}}`,
		"negative threshold": `{"circuit_breaker": {"failure_threshold": -1}}`,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadConfig(writeTempFile(t, "config.json", doc)); err == nil {
				t.Fatal("expected schema error")
			}
		})
	}
}

func TestLoadConfig_NonExistentFile(t *testing.T) {
	_, err := LoadConfig("/tmp/does-not-exist-config-12345.json")
	if err == nil {
		t.Fatal("expected error for non-existent file")
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	path := writeTempFile(t, "bad.json", `{invalid`)

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestLoadConfig_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown field", `{"retries": 3}`},
		{"bad duration", `{"timeout": "fifteen seconds"}`},
		{"numeric duration", `{"timeout": 15}`},
		{"unknown ttl key", `{"cache": {"ttls": {"odds": "1m"}}}`},
		{"unknown store", `{"credential": {"store": "keychain"}}`},
		{"non-http url", `{"api_base_url": "ftp://example.com"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempFile(t, "config.json", tt.data)
			if _, err := LoadConfig(path); err == nil {
				t.Fatal("expected schema error")
			}
		})
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	data := `
api_base_url: http://localhost:8080/api
root_base_url: http://localhost:8080
timeout: 3s
cache:
  backend: redis
  redis:
    addr: localhost:6379
    prefix: "betclient:"
  ttls:
    elections: 10m
circuit_breaker:
  enabled: true
  failure_threshold: 3
  timeout: 1m
`
	path := writeTempFile(t, "config.yaml", data)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Cache.Backend != CacheBackendRedis || cfg.Cache.Redis.Addr != "localhost:6379" {
		t.Errorf("unexpected cache config %+v", cfg.Cache)
	}
	if cfg.Cache.TTLs[KeyElections].Std() != 10*time.Minute {
		t.Errorf("expected elections ttl 10m, got %s", cfg.Cache.TTLs[KeyElections])
	}
	if !cfg.CircuitBreaker.Enabled || cfg.CircuitBreaker.FailureThreshold != 3 || cfg.CircuitBreaker.Timeout.Std() != time.Minute {
		t.Errorf("unexpected breaker config %+v", cfg.CircuitBreaker)
	}
}

func TestLoadConfig_EmptyYAMLUsesDefaults(t *testing.T) {
	path := writeTempFile(t, "config.yml", "")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIBaseURL != DefaultAPIBaseURL || cfg.RootBaseURL != DefaultRootBaseURL {
		t.Errorf("expected default urls, got %q %q", cfg.APIBaseURL, cfg.RootBaseURL)
	}
	if cfg.Timeout.Std() != DefaultTimeout {
		t.Errorf("expected default timeout, got %s", cfg.Timeout)
	}
}

func TestLoadConfig_UnsupportedExtension(t *testing.T) {
	path := writeTempFile(t, "config.toml", "key = value")
	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("BETCLIENT_API_BASE_URL", "http://127.0.0.1:9000/api")
	t.Setenv("BETCLIENT_TIMEOUT", "2s")
	t.Setenv("BETCLIENT_CREDENTIAL_STORE", "memory")
	t.Setenv("BETCLIENT_REDIS_DB", "4")
	t.Setenv("BETCLIENT_BREAKER_ENABLED", "true")

	cfg := DefaultConfig()
	if err := ApplyEnv(&cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIBaseURL != "http://127.0.0.1:9000/api" {
		t.Errorf("api url not overridden: %q", cfg.APIBaseURL)
	}
	if cfg.RootBaseURL != DefaultRootBaseURL {
		t.Errorf("root url should keep its default, got %q", cfg.RootBaseURL)
	}
	if cfg.Timeout.Std() != 2*time.Second {
		t.Errorf("timeout = %s, want 2s", cfg.Timeout)
	}
	if cfg.Credential.Store != CredentialStoreMemory {
		t.Errorf("credential store = %q", cfg.Credential.Store)
	}
	if cfg.Cache.Redis.DB != 4 {
		t.Errorf("redis db = %d, want 4", cfg.Cache.Redis.DB)
	}
	if !cfg.CircuitBreaker.Enabled {
		t.Error("breaker should be enabled")
	}
}

func TestApplyEnv_InvalidDuration(t *testing.T) {
	t.Setenv("BETCLIENT_TIMEOUT", "soon")
	cfg := DefaultConfig()
	if err := ApplyEnv(&cfg); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestValidateConfig_Defaults(t *testing.T) {
	if err := ValidateConfig(DefaultConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Config)
	}{
		{"missing api url", func(c *Config) { c.APIBaseURL = "" }},
		{"relative root url", func(c *Config) { c.RootBaseURL = "/elections" }},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }},
		{"sqlite without dsn", func(c *Config) { c.Credential = CredentialConfig{Store: CredentialStoreSQLite} }},
		{"postgres journal without dsn", func(c *Config) { c.Journal = JournalConfig{Driver: JournalPostgres} }},
		{"redis without addr", func(c *Config) { c.Cache.Backend = CacheBackendRedis }},
		{"unknown ttl key", func(c *Config) { c.Cache.TTLs = map[string]Duration{"odds": Duration(time.Second)} }},
		{"negative ttl", func(c *Config) { c.Cache.TTLs = map[string]Duration{KeyBalance: -1} }},
		{"negative breaker threshold", func(c *Config) { c.CircuitBreaker.FailureThreshold = -1 }},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.edit(&cfg)
			if err := ValidateConfig(cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return path
}
