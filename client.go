// Package betclient is the single access layer between storefront
// components and the betting backends. A Client attaches the bearer
// credential to every call, caches read endpoints per logical key,
// collapses concurrent reads of the same key into one upstream call and
// invalidates cache categories when a mutation succeeds.
package betclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ugandavote/betclient/internal/cache"
	"github.com/ugandavote/betclient/internal/circuitbreaker"
	"github.com/ugandavote/betclient/internal/credential"
	"github.com/ugandavote/betclient/internal/dedupe"
	"github.com/ugandavote/betclient/internal/journal"
	"github.com/ugandavote/betclient/internal/logging"
	"github.com/ugandavote/betclient/internal/metrics"
	"github.com/ugandavote/betclient/upstream"
)

// Client is the process-wide facade over both upstreams. It owns the
// credential, the response cache and the in-flight read registry; nothing
// else should touch them. A Client is safe for concurrent use.
type Client struct {
	api  *upstream.Client
	root *upstream.Client

	creds   *credential.Manager
	cache   cache.Store
	reads   dedupe.Group[json.RawMessage]
	journal journal.Writer
	ttls    map[string]time.Duration

	// genMu orders cache writes against invalidations. generation is bumped
	// by every invalidation so a read that started earlier cannot store
	// stale data afterwards. cacheStale is set when an invalidation failed;
	// the cache is bypassed until a Clear succeeds.
	genMu      sync.Mutex
	generation uint64
	cacheStale bool

	hooksMu sync.RWMutex
	hooks   []func(context.Context, *Error)

	closers []io.Closer
}

type options struct {
	httpClient      *http.Client
	credentialStore credential.Store
	cacheStore      cache.Store
	journal         journal.Writer
}

// Option customises New beyond what Config expresses.
type Option func(*options)

// WithHTTPClient sets the *http.Client used for both upstreams.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithCredentialStore overrides the durable credential store from Config.
func WithCredentialStore(s credential.Store) Option {
	return func(o *options) { o.credentialStore = s }
}

// WithCacheStore overrides the cache backend from Config.
func WithCacheStore(s cache.Store) Option {
	return func(o *options) { o.cacheStore = s }
}

// WithJournal overrides the mutation journal from Config.
func WithJournal(w journal.Writer) Option {
	return func(o *options) { o.journal = w }
}

// New builds a Client from cfg. Any durable credential is loaded before New
// returns, so the first request is already authenticated.
func New(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{ttls: make(map[string]time.Duration, len(readPolicies))}
	for key, p := range readPolicies {
		c.ttls[key] = p.ttl
	}
	for key, ttl := range cfg.Cache.TTLs {
		c.ttls[key] = ttl.Std()
	}

	store := o.credentialStore
	if store == nil {
		s, err := c.openCredentialStore(cfg.Credential)
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		store = s
	}
	creds, err := credential.NewManager(ctx, store)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.creds = creds

	c.cache = o.cacheStore
	if c.cache == nil {
		if c.cache, err = c.openCache(ctx, cfg.Cache); err != nil {
			_ = c.Close()
			return nil, err
		}
	}

	c.journal = o.journal
	if c.journal == nil {
		if c.journal, err = c.openJournal(cfg.Journal); err != nil {
			_ = c.Close()
			return nil, err
		}
	}

	upOpts := []upstream.Option{
		upstream.WithTimeout(cfg.Timeout.Std()),
		upstream.WithAuthorizer(c.creds),
		upstream.WithUnauthorizedHandler(c.handleUnauthorized),
	}
	if o.httpClient != nil {
		upOpts = append(upOpts, upstream.WithHTTPClient(o.httpClient))
	}
	if cb := cfg.CircuitBreaker; cb.Enabled {
		upOpts = append(upOpts, upstream.WithCircuitBreaker(circuitbreaker.Config{
			FailureThreshold: cb.FailureThreshold,
			SuccessThreshold: cb.SuccessThreshold,
			Timeout:          cb.Timeout.Std(),
		}))
	}
	if c.api, err = upstream.New(upstream.NameAPI, cfg.APIBaseURL, upOpts...); err != nil {
		_ = c.Close()
		return nil, err
	}
	if c.root, err = upstream.New(upstream.NameRoot, cfg.RootBaseURL, upOpts...); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) openCredentialStore(cfg CredentialConfig) (credential.Store, error) {
	slot := cfg.Slot
	if slot == "" {
		slot = credential.DefaultSlot
	}
	switch cfg.Store {
	case CredentialStoreMemory:
		return credential.NewMemoryStore(), nil
	case CredentialStoreSQLite, CredentialStorePostgres:
		open := credential.NewSQLiteStore
		if cfg.Store == CredentialStorePostgres {
			open = credential.NewPostgresStore
		}
		s, err := open(cfg.DSN, slot)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, s)
		return s, nil
	default:
		return credential.NewFileStore(cfg.Path)
	}
}

func (c *Client) openCache(ctx context.Context, cfg CacheConfig) (cache.Store, error) {
	if cfg.Backend != CacheBackendRedis {
		return cache.NewMemory(), nil
	}
	r, err := cache.NewRedis(ctx, cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Redis.Prefix,
	})
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, r)
	return r, nil
}

func (c *Client) openJournal(cfg JournalConfig) (journal.Writer, error) {
	var (
		w   *journal.SQLWriter
		err error
	)
	switch cfg.Driver {
	case JournalSQLite:
		w, err = journal.NewSQLiteWriter(cfg.DSN)
	case JournalPostgres:
		w, err = journal.NewPostgresWriter(cfg.DSN)
	default:
		return journal.NoopWriter{}, nil
	}
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, w)
	return w, nil
}

// Close releases the durable stores and connections opened by New. Stores
// passed in through options are left open.
func (c *Client) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// Journal returns the mutation journal, for inspection.
func (c *Client) Journal() journal.Writer { return c.journal }

// OnUnauthenticated registers fn to run after every 401 reset, e.g. to send
// the UI back to its signed-out view.
func (c *Client) OnUnauthenticated(fn func(ctx context.Context, err *Error)) {
	c.hooksMu.Lock()
	c.hooks = append(c.hooks, fn)
	c.hooksMu.Unlock()
}

// Authenticated reports whether a credential is active.
func (c *Client) Authenticated() bool {
	_, ok := c.creds.Current()
	return ok
}

// SetCredential activates token for every later call to both upstreams and
// persists it. An empty token logs out: the credential is removed and the
// whole cache is cleared.
func (c *Client) SetCredential(ctx context.Context, token string) error {
	if token == "" {
		return c.Logout(ctx)
	}
	return c.creds.Set(ctx, token)
}

// Logout removes the credential and clears the cache.
func (c *Client) Logout(ctx context.Context) error {
	return c.reset(ctx, "logout")
}

// Reset is Logout under another name, for callers tearing a Client down
// between sessions or tests.
func (c *Client) Reset(ctx context.Context) error {
	return c.reset(ctx, "reset")
}

func (c *Client) reset(ctx context.Context, reason string) error {
	clearErr := c.clearCache(ctx)
	metrics.CredentialResets.WithLabelValues(reason).Inc()
	credErr := c.creds.Clear(ctx)
	if clearErr != nil {
		clearErr = fmt.Errorf("clear cache: %w", clearErr)
	}
	return errors.Join(clearErr, credErr)
}

// Pending returns the logical keys with a read in flight.
func (c *Client) Pending() []string {
	var keys []string
	for _, fk := range c.reads.Pending() {
		key, _, _ := strings.Cut(fk, "@")
		if len(keys) == 0 || keys[len(keys)-1] != key {
			keys = append(keys, key)
		}
	}
	return keys
}

// flightKey scopes in-flight reads to a cache generation. A caller arriving
// after an invalidation, login or logout never joins a fetch started
// before it.
func flightKey(key string, gen uint64) string {
	return key + "@" + strconv.FormatUint(gen, 10)
}

// handleUnauthorized runs once per 401 response, whichever endpoint got it.
func (c *Client) handleUnauthorized(ctx context.Context, se *upstream.StatusError) {
	log := logging.FromContext(ctx)
	log.Warn("upstream rejected credential, resetting session",
		"upstream", se.Upstream, "method", se.Method, "path", se.Path)

	if err := c.reset(ctx, "unauthorized"); err != nil {
		log.Error("failed to clear credential", "error", err.Error())
	}

	e := classify(se.Method+" "+se.Path, se)
	c.hooksMu.RLock()
	hooks := append([]func(context.Context, *Error){}, c.hooks...)
	c.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(ctx, e)
	}
}

func (c *Client) ttl(key string) time.Duration {
	if ttl, ok := c.ttls[key]; ok {
		return ttl
	}
	return time.Minute
}

// cacheState returns the current generation and whether the cache may be
// read or written. A stale cache is retried with Clear first.
func (c *Client) cacheState(ctx context.Context) (uint64, bool) {
	c.genMu.Lock()
	defer c.genMu.Unlock()
	if c.cacheStale {
		if err := c.cache.Clear(ctx); err == nil {
			c.cacheStale = false
			c.generation++
			logging.FromContext(ctx).Info("response cache recovered")
		}
	}
	return c.generation, !c.cacheStale
}

// storeIfCurrent caches raw under key unless an invalidation happened since
// gen was taken.
func (c *Client) storeIfCurrent(ctx context.Context, key string, raw json.RawMessage, gen uint64) {
	c.genMu.Lock()
	defer c.genMu.Unlock()
	if c.generation != gen || c.cacheStale {
		logging.FromContext(ctx).Debug("dropping read that raced an invalidation", "key", key)
		return
	}
	c.cache.Set(ctx, key, raw, c.ttl(key), readPolicies[key].tags...)
}

func (c *Client) invalidate(ctx context.Context, tags ...cache.Tag) {
	if len(tags) == 0 {
		return
	}
	c.genMu.Lock()
	c.generation++
	if err := c.cache.InvalidateTags(ctx, tags...); err != nil {
		c.markStale(ctx, err)
	}
	c.genMu.Unlock()
	for _, t := range tags {
		metrics.CacheInvalidations.WithLabelValues(string(t)).Inc()
	}
}

// clearCache empties the cache. On failure the cache stays bypassed until a
// later Clear succeeds, so entries from the previous session are never
// served.
func (c *Client) clearCache(ctx context.Context) error {
	c.genMu.Lock()
	c.generation++
	err := c.cache.Clear(ctx)
	c.cacheStale = err != nil
	if err != nil {
		logging.FromContext(ctx).Error("response cache clear failed, bypassing cache", "error", err.Error())
	}
	c.genMu.Unlock()
	metrics.CacheInvalidations.WithLabelValues("*").Inc()
	return err
}

// markStale falls back to a full Clear when a tag invalidation failed.
// Callers hold genMu.
func (c *Client) markStale(ctx context.Context, err error) {
	log := logging.FromContext(ctx)
	if clearErr := c.cache.Clear(ctx); clearErr == nil {
		log.Warn("tag invalidation failed, cleared response cache", "error", err.Error())
		return
	}
	c.cacheStale = true
	log.Error("tag invalidation failed, bypassing cache", "error", err.Error())
}

// read serves key from the cache, or fetches it once for every concurrent
// caller and caches the result before the in-flight registration is
// released. Failures are shared by all attached callers and never cached.
func (c *Client) read(ctx context.Context, op, key string, up *upstream.Client, path string) (json.RawMessage, error) {
	gen, usable := c.cacheState(ctx)
	if usable {
		if raw, ok := c.cache.Get(ctx, key); ok {
			metrics.CacheLookups.WithLabelValues(key, "hit").Inc()
			return raw, nil
		}
	}
	metrics.CacheLookups.WithLabelValues(key, "miss").Inc()

	ctx, _ = logging.EnsureRequestID(ctx)
	// The shared fetch outlives any single caller; the upstream timeout
	// still bounds it.
	fetchCtx := context.WithoutCancel(ctx)

	raw, joined, err := c.reads.Do(ctx, flightKey(key, gen), func() (json.RawMessage, error) {
		metrics.PendingRequests.Inc()
		defer metrics.PendingRequests.Dec()

		if usable {
			if raw, ok := c.cache.Get(fetchCtx, key); ok {
				return raw, nil
			}
		}
		raw, err := up.Do(fetchCtx, http.MethodGet, path, nil)
		if err != nil {
			return nil, classify(op, err)
		}
		c.storeIfCurrent(fetchCtx, key, raw, gen)
		return raw, nil
	})
	if joined {
		metrics.DedupShared.WithLabelValues(key).Inc()
	}
	if err != nil {
		return nil, classify(op, err)
	}
	return raw, nil
}

func cachedGet[T any](ctx context.Context, c *Client, op, key string, up *upstream.Client, path string) (T, error) {
	var out T
	raw, err := c.read(ctx, op, key, up, path)
	if err != nil {
		return out, err
	}
	if err := decode(raw, &out); err != nil {
		return out, decodeError(op, err)
	}
	return out, nil
}

// mutation describes one state-changing call.
type mutation struct {
	name   string
	op     Operation
	up     *upstream.Client
	method string
	path   string
	body   interface{}
}

// send issues m exactly once, journals the outcome and on success applies
// the invalidation rule for m.op.
func (c *Client) send(ctx context.Context, m mutation) (json.RawMessage, error) {
	ctx, reqID := logging.EnsureRequestID(ctx)
	raw, err := m.up.Do(ctx, m.method, m.path, m.body)
	c.record(ctx, reqID, m, err)
	if err != nil {
		return nil, classify(m.name, err)
	}
	c.invalidate(ctx, invalidationRules[m.op]...)
	return raw, nil
}

func mutate[T any](ctx context.Context, c *Client, m mutation) (T, error) {
	var out T
	raw, err := c.send(ctx, m)
	if err != nil {
		return out, err
	}
	if err := decode(raw, &out); err != nil {
		return out, decodeError(m.name, err)
	}
	return out, nil
}

func decode(raw json.RawMessage, v interface{}) error {
	return json.Unmarshal(raw, v)
}

func (c *Client) record(ctx context.Context, reqID string, m mutation, callErr error) {
	entry := journal.Entry{
		RequestID: reqID,
		Operation: string(m.op),
		Upstream:  m.up.Name(),
		Method:    m.method,
		Path:      m.path,
		CreatedAt: time.Now().UTC(),
	}
	var se *upstream.StatusError
	switch {
	case callErr == nil:
		entry.Status = http.StatusOK
	case errors.As(callErr, &se):
		entry.Status = se.StatusCode
		entry.ErrorMessage = classify(m.name, callErr).Message
	default:
		entry.ErrorMessage = callErr.Error()
	}
	if err := c.journal.Write(ctx, entry); err != nil {
		logging.FromContext(ctx).Warn("journal write failed", "operation", m.op, "error", err.Error())
	}
}
