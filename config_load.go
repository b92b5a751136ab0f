package betclient

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed config.schema.json
var configSchemaJSON string

var (
	configSchemaOnce sync.Once
	configSchema     *jsonschema.Schema
	configSchemaErr  error
)

func compiledConfigSchema() (*jsonschema.Schema, error) {
	configSchemaOnce.Do(func() {
		configSchema, configSchemaErr = jsonschema.CompileString("config.schema.json", configSchemaJSON)
	})
	return configSchema, configSchemaErr
}

// LoadConfig reads a config file, checks it against the embedded JSON
// schema and decodes it over DefaultConfig. Supported formats: JSON (.json),
// YAML (.yaml, .yml). Environment overrides are not applied; see ApplyEnv.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	var doc []byte
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		var raw interface{}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
		if raw == nil {
			raw = map[string]interface{}{}
		}
		if doc, err = json.Marshal(raw); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
		if err := validateDocument(doc); err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	case ".json":
		doc = data
		if err := validateDocument(doc); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q: use .json, .yaml, or .yml", ext)
	}

	return &cfg, nil
}

func validateDocument(doc []byte) error {
	schema, err := compiledConfigSchema()
	if err != nil {
		return fmt.Errorf("compiling config schema: %w", err)
	}
	var v interface{}
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("config does not match schema: %w", err)
	}
	return nil
}

// ApplyEnv overrides cfg with BETCLIENT_* environment variables.
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ValidateConfig validates a Config for correctness.
func ValidateConfig(cfg Config) error {
	if err := validateBaseURL("api_base_url", cfg.APIBaseURL); err != nil {
		return err
	}
	if err := validateBaseURL("root_base_url", cfg.RootBaseURL); err != nil {
		return err
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	switch cfg.Credential.Store {
	case "", CredentialStoreMemory, CredentialStoreFile:
	case CredentialStoreSQLite, CredentialStorePostgres:
		if cfg.Credential.DSN == "" {
			return fmt.Errorf("credential store %q requires a dsn", cfg.Credential.Store)
		}
	default:
		return fmt.Errorf("unknown credential store: %q", cfg.Credential.Store)
	}

	switch cfg.Cache.Backend {
	case "", CacheBackendMemory:
	case CacheBackendRedis:
		if cfg.Cache.Redis.Addr == "" {
			return fmt.Errorf("redis cache backend requires an addr")
		}
	default:
		return fmt.Errorf("unknown cache backend: %q", cfg.Cache.Backend)
	}
	for key, ttl := range cfg.Cache.TTLs {
		if !IsCacheKey(key) {
			return fmt.Errorf("unknown cache key in ttls: %q", key)
		}
		if ttl <= 0 {
			return fmt.Errorf("ttl for %q must be positive", key)
		}
	}

	switch cfg.Journal.Driver {
	case "", JournalNone:
	case JournalSQLite, JournalPostgres:
		if cfg.Journal.DSN == "" {
			return fmt.Errorf("journal driver %q requires a dsn", cfg.Journal.Driver)
		}
	default:
		return fmt.Errorf("unknown journal driver: %q", cfg.Journal.Driver)
	}

	cb := cfg.CircuitBreaker
	if cb.FailureThreshold < 0 || cb.SuccessThreshold < 0 || cb.Timeout < 0 {
		return fmt.Errorf("circuit breaker thresholds and timeout must not be negative")
	}

	switch strings.ToLower(cfg.Log.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("unknown log format: %q", cfg.Log.Format)
	}
	return nil
}

func validateBaseURL(field, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", field, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s has no host: %q", field, raw)
	}
	return nil
}
