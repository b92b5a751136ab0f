package betclient

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Default upstream locations.
const (
	DefaultAPIBaseURL  = "https://ugandavote-backend.onrender.com/api"
	DefaultRootBaseURL = "https://ugandavote-backend.onrender.com"
	DefaultTimeout     = 15 * time.Second
)

// Config holds the configuration for a Client. Every field can be set from
// a YAML/JSON file (LoadConfig) and overridden from the environment
// (ApplyEnv).
type Config struct {
	// APIBaseURL is the "/api"-prefixed upstream (auth, balance, bets, payments).
	APIBaseURL string `json:"api_base_url" yaml:"api_base_url" env:"BETCLIENT_API_BASE_URL"`
	// RootBaseURL is the root-prefixed upstream (elections, admin withdrawals).
	RootBaseURL string `json:"root_base_url" yaml:"root_base_url" env:"BETCLIENT_ROOT_BASE_URL"`
	// Timeout bounds every upstream call.
	Timeout Duration `json:"timeout" yaml:"timeout" env:"BETCLIENT_TIMEOUT"`

	Credential     CredentialConfig     `json:"credential" yaml:"credential"`
	Cache          CacheConfig          `json:"cache" yaml:"cache"`
	Journal        JournalConfig        `json:"journal" yaml:"journal"`
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker" yaml:"circuit_breaker"`
	Log            LogConfig            `json:"log" yaml:"log"`
}

// CredentialStoreKind names a durable credential backend.
type CredentialStoreKind string

// CredentialStoreKind constants.
const (
	CredentialStoreMemory   CredentialStoreKind = "memory"
	CredentialStoreFile     CredentialStoreKind = "file"
	CredentialStoreSQLite   CredentialStoreKind = "sqlite"
	CredentialStorePostgres CredentialStoreKind = "postgres"
)

// CredentialConfig selects where the bearer credential survives restarts.
type CredentialConfig struct {
	Store CredentialStoreKind `json:"store" yaml:"store" env:"BETCLIENT_CREDENTIAL_STORE"`
	// Path is the credential file for the "file" store; empty uses the user
	// config directory.
	Path string `json:"path,omitempty" yaml:"path,omitempty" env:"BETCLIENT_CREDENTIAL_PATH"`
	// DSN is used by the "sqlite" and "postgres" stores.
	DSN  string `json:"dsn,omitempty" yaml:"dsn,omitempty" env:"BETCLIENT_CREDENTIAL_DSN"`
	Slot string `json:"slot,omitempty" yaml:"slot,omitempty" env:"BETCLIENT_CREDENTIAL_SLOT"`
}

// CacheBackend names a response cache backend.
type CacheBackend string

// CacheBackend constants.
const (
	CacheBackendMemory CacheBackend = "memory"
	CacheBackendRedis  CacheBackend = "redis"
)

// CacheConfig configures the response cache.
type CacheConfig struct {
	Backend CacheBackend `json:"backend" yaml:"backend" env:"BETCLIENT_CACHE_BACKEND"`
	Redis   RedisConfig  `json:"redis,omitempty" yaml:"redis,omitempty"`
	// TTLs overrides the default lifetime of individual logical keys, e.g.
	// {"balance": "10s"}.
	TTLs map[string]Duration `json:"ttls,omitempty" yaml:"ttls,omitempty"`
}

// RedisConfig configures the Redis cache backend.
type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr" env:"BETCLIENT_REDIS_ADDR"`
	Password string `json:"password,omitempty" yaml:"password,omitempty" env:"BETCLIENT_REDIS_PASSWORD"`
	DB       int    `json:"db,omitempty" yaml:"db,omitempty" env:"BETCLIENT_REDIS_DB"`
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty" env:"BETCLIENT_REDIS_PREFIX"`
}

// JournalDriver names a mutation journal backend.
type JournalDriver string

// JournalDriver constants.
const (
	JournalNone     JournalDriver = "none"
	JournalSQLite   JournalDriver = "sqlite"
	JournalPostgres JournalDriver = "postgres"
)

// JournalConfig configures the mutation journal.
type JournalConfig struct {
	Driver JournalDriver `json:"driver" yaml:"driver" env:"BETCLIENT_JOURNAL_DRIVER"`
	DSN    string        `json:"dsn,omitempty" yaml:"dsn,omitempty" env:"BETCLIENT_JOURNAL_DSN"`
}

// CircuitBreakerConfig enables a breaker per upstream. Off by default.
type CircuitBreakerConfig struct {
	Enabled          bool     `json:"enabled" yaml:"enabled" env:"BETCLIENT_BREAKER_ENABLED"`
	FailureThreshold int      `json:"failure_threshold,omitempty" yaml:"failure_threshold,omitempty" env:"BETCLIENT_BREAKER_FAILURE_THRESHOLD"`
	SuccessThreshold int      `json:"success_threshold,omitempty" yaml:"success_threshold,omitempty" env:"BETCLIENT_BREAKER_SUCCESS_THRESHOLD"`
	Timeout          Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" env:"BETCLIENT_BREAKER_TIMEOUT"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" env:"BETCLIENT_LOG_LEVEL"`
	Format string `json:"format" yaml:"format" env:"BETCLIENT_LOG_FORMAT"`
}

// DefaultConfig returns the configuration used when nothing is specified:
// the production upstreams, a 15s timeout, an in-memory cache and a
// credential file in the user config directory.
func DefaultConfig() Config {
	return Config{
		APIBaseURL:  DefaultAPIBaseURL,
		RootBaseURL: DefaultRootBaseURL,
		Timeout:     Duration(DefaultTimeout),
		Credential:  CredentialConfig{Store: CredentialStoreFile},
		Cache:       CacheConfig{Backend: CacheBackendMemory},
		Journal:     JournalConfig{Driver: JournalNone},
		Log:         LogConfig{Level: "info", Format: "json"},
	}
}

// Duration is a time.Duration written as a Go duration string ("15s",
// "2m") in config files and environment variables.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(v)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"15s\": %w", err)
	}
	return d.UnmarshalText([]byte(s))
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}
