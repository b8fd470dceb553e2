// Package router coordinates resolution: cache lookup, concurrent
// request de-duplication, strategy fallback in priority order, quota
// reservation and circuit breaking. It is the only caller of the
// strategies; everything above it sees typed payloads or a terminal
// error.
package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/tunedeck/tunedeck/pkg/breaker"
	"github.com/tunedeck/tunedeck/pkg/cache"
	"github.com/tunedeck/tunedeck/pkg/quota"
	"github.com/tunedeck/tunedeck/pkg/strategy"
)

// ErrAllStrategiesFailed is the terminal sentinel: every eligible
// strategy was tried or skipped and none produced a payload.
var ErrAllStrategiesFailed = errors.New("all strategies failed")

// Default per-attempt timeouts, scaled to how heavy each strategy is.
const (
	DefaultAPITimeout      = 10 * time.Second
	DefaultHeadlessTimeout = 20 * time.Second
	DefaultBrowserTimeout  = 45 * time.Second
)

// Config configures the router.
type Config struct {
	// Strategies in descending priority. The first entry is always
	// tried first when eligible.
	Strategies []strategy.Strategy

	// Timeouts bounds a single attempt per strategy name. Missing
	// entries fall back to DefaultTimeouts.
	Timeouts map[string]time.Duration

	// Metered names the strategies whose attempts reserve quota.
	// Unmetered strategies resolve for free.
	Metered map[string]bool

	// Breaker configures the per-strategy circuits.
	Breaker breaker.Config

	// TTLs holds the per-namespace cache lifetimes.
	TTLs cache.TTLConfig
}

// DefaultTimeouts returns the per-strategy attempt timeouts.
func DefaultTimeouts() map[string]time.Duration {
	return map[string]time.Duration{
		strategy.DirectAPIName: DefaultAPITimeout,
		strategy.HeadlessName:  DefaultHeadlessTimeout,
		strategy.BrowserName:   DefaultBrowserTimeout,
	}
}

// DefaultMetered returns the default quota-metered strategy set. Only
// the official API consumes the daily quota.
func DefaultMetered() map[string]bool {
	return map[string]bool{strategy.DirectAPIName: true}
}

// ExhaustedError is the terminal failure after fallback exhaustion. It
// carries the most actionable class seen across the chain, ranked
// permanent > blocked > rate_limited > transient > quota_exceeded.
type ExhaustedError struct {
	// Class is the decisive failure class.
	Class strategy.Class

	// Strategy produced the decisive failure; empty when every
	// strategy was skipped before attempting.
	Strategy string

	// Err is the decisive underlying failure, if any.
	Err error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	if e.Strategy != "" {
		return fmt.Sprintf("all strategies failed: %s (%s)", e.Class, e.Strategy)
	}
	return fmt.Sprintf("all strategies failed: %s", e.Class)
}

// Unwrap exposes the decisive failure.
func (e *ExhaustedError) Unwrap() error { return e.Err }

// Is matches the ErrAllStrategiesFailed sentinel.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrAllStrategiesFailed
}

// Stats is a point-in-time snapshot of the router counters.
type Stats struct {
	CacheHits   uint64                   `json:"cache_hits"`
	CacheMisses uint64                   `json:"cache_misses"`
	Shared      uint64                   `json:"singleflight_shared"`
	Strategies  map[string]StrategyStats `json:"strategies"`
}

// StrategyStats counts attempts and successes for one strategy.
type StrategyStats struct {
	Attempts  uint64        `json:"attempts"`
	Successes uint64        `json:"successes"`
	Circuit   breaker.State `json:"-"`

	// CircuitState is the circuit label for the stats endpoint.
	CircuitState string `json:"circuit_state"`
}

// Router resolves resource requests through cache, singleflight and
// the strategy fallback chain.
type Router struct {
	store    cache.Store
	ledger   *quota.Ledger
	breakers *breaker.Set
	config   Config
	logger   zerolog.Logger

	group singleflight.Group

	cacheHits   atomic.Uint64
	cacheMisses atomic.Uint64
	shared      atomic.Uint64

	mu       sync.Mutex
	perStrat map[string]*stratCounters
}

type stratCounters struct {
	attempts  atomic.Uint64
	successes atomic.Uint64
}

// NewRouter creates a router over the given store, ledger and
// strategies.
func NewRouter(store cache.Store, ledger *quota.Ledger, cfg Config, logger zerolog.Logger) (*Router, error) {
	if store == nil {
		return nil, errors.New("cache store cannot be nil")
	}
	if ledger == nil {
		return nil, errors.New("quota ledger cannot be nil")
	}
	if len(cfg.Strategies) == 0 {
		return nil, errors.New("at least one strategy is required")
	}

	if cfg.Timeouts == nil {
		cfg.Timeouts = DefaultTimeouts()
	}
	if cfg.Metered == nil {
		cfg.Metered = DefaultMetered()
	}
	if cfg.TTLs == (cache.TTLConfig{}) {
		cfg.TTLs = cache.DefaultTTLConfig()
	}

	r := &Router{
		store:    store,
		ledger:   ledger,
		breakers: breaker.NewSet(cfg.Breaker),
		config:   cfg,
		logger:   logger.With().Str("component", "router").Logger(),
		perStrat: make(map[string]*stratCounters, len(cfg.Strategies)),
	}
	for _, s := range cfg.Strategies {
		r.perStrat[s.Name()] = &stratCounters{}
	}
	return r, nil
}

// Resolve returns the payload for a resource request: from cache when
// fresh, otherwise through at most one concurrent upstream resolution
// per key. Concurrent callers for the same key share the leader's
// outcome, success or failure alike.
func (r *Router) Resolve(ctx context.Context, req strategy.Request) ([]byte, error) {
	ns := req.Key.Namespace
	keyStr := req.Key.String()

	if data, ok := r.cacheGet(ctx, req.Key); ok {
		r.cacheHits.Add(1)
		return data, nil
	}
	r.cacheMisses.Add(1)

	start := time.Now()
	v, err, shared := r.group.Do(keyStr, func() (result any, resErr error) {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error().
					Str("key", keyStr).
					Interface("panic", rec).
					Msg("Resolution panicked")
				result = nil
				resErr = &ExhaustedError{
					Class: strategy.ClassTransient,
					Err:   fmt.Errorf("resolution panic: %v", rec),
				}
			}
		}()
		return r.resolveUpstream(ctx, req)
	})
	resolutionDuration.WithLabelValues(string(ns)).Observe(time.Since(start).Seconds())

	if shared {
		r.shared.Add(1)
		singleflightShared.WithLabelValues(string(ns)).Inc()
		r.logger.Debug().Str("key", keyStr).Msg("Shared in-flight resolution")
	}
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// resolveUpstream walks the strategy chain for one singleflight
// leader.
func (r *Router) resolveUpstream(ctx context.Context, req strategy.Request) ([]byte, error) {
	ns := req.Key.Namespace
	var worst *failure

	for _, s := range r.config.Strategies {
		name := s.Name()

		if !s.Supports(ns) {
			continue
		}

		if err := r.breakers.Allow(name); err != nil {
			attemptsTotal.WithLabelValues(name, "circuit_open").Inc()
			r.logger.Debug().
				Str("strategy", name).
				Str("key", req.Key.String()).
				Msg("Circuit open, skipping strategy")
			worst = worst.update(strategy.ClassTransient, name, err)
			continue
		}

		var cost int64
		if r.config.Metered[name] {
			cost = r.ledger.Cost(ns)
		}
		if !r.ledger.TryReserve(ns, cost) {
			// The attempt never ran; hand back any half-open admission
			// so the strategy can still be probed once quota returns.
			r.breakers.ReleaseProbe(name)
			attemptsTotal.WithLabelValues(name, "quota_denied").Inc()
			r.logger.Warn().
				Str("strategy", name).
				Str("namespace", string(ns)).
				Int64("cost", cost).
				Msg("Quota reservation denied, skipping strategy")
			worst = worst.update(strategy.ClassQuotaExceeded, name, nil)
			continue
		}

		payload, err := r.attempt(ctx, s, req)
		if err == nil {
			r.breakers.RecordSuccess(name)
			r.counters(name).successes.Add(1)
			attemptsTotal.WithLabelValues(name, "success").Inc()
			r.cacheSet(ctx, req.Key, payload)
			return payload, nil
		}

		class := strategy.ClassOf(err)
		attemptsTotal.WithLabelValues(name, string(class)).Inc()
		r.logger.Warn().
			Str("strategy", name).
			Str("key", req.Key.String()).
			Str("class", string(class)).
			Err(err).
			Msg("Strategy attempt failed")

		switch class {
		case strategy.ClassPermanent:
			// Permanent failures say nothing about strategy health.
			// They must still settle a half-open admission or the
			// circuit would never see another attempt.
			r.breakers.ReleaseProbe(name)
			if cost > 0 && strategy.IsPreNetwork(err) {
				r.ledger.Refund(ns, cost)
			}
			if strategy.IsInvalidRequest(err) {
				// The request itself is broken; no other strategy can
				// do better.
				return nil, err
			}
		default:
			r.breakers.RecordFailure(name)
		}

		worst = worst.update(class, name, err)

		if ctx.Err() != nil {
			break
		}
	}

	term := worst.terminal()
	exhaustedTotal.WithLabelValues(string(term.Class)).Inc()
	return nil, term
}

// attempt runs one strategy under its per-attempt timeout.
func (r *Router) attempt(ctx context.Context, s strategy.Strategy, req strategy.Request) ([]byte, error) {
	r.counters(s.Name()).attempts.Add(1)

	attemptCtx, cancel := context.WithTimeout(ctx, r.timeout(s.Name()))
	defer cancel()

	return s.Resolve(attemptCtx, req)
}

func (r *Router) timeout(name string) time.Duration {
	if d, ok := r.config.Timeouts[name]; ok && d > 0 {
		return d
	}
	if d, ok := DefaultTimeouts()[name]; ok {
		return d
	}
	return DefaultHeadlessTimeout
}

// cacheGet reads the store; any store failure degrades to a miss so a
// broken cache never fails the request.
func (r *Router) cacheGet(ctx context.Context, key cache.Key) ([]byte, bool) {
	entry, err := r.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			r.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache read failed, treating as miss")
		}
		return nil, false
	}
	return entry.Data, true
}

// cacheSet writes the resolved payload; failures are logged and
// swallowed, the payload is still served.
func (r *Router) cacheSet(ctx context.Context, key cache.Key, payload []byte) {
	ttl := r.config.TTLs.For(key.Namespace)
	if err := r.store.Set(ctx, key, payload, ttl); err != nil {
		r.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache write failed")
	}
}

func (r *Router) counters(name string) *stratCounters {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.perStrat[name]
	if !ok {
		c = &stratCounters{}
		r.perStrat[name] = c
	}
	return c
}

// CircuitState reports the current circuit state for a strategy.
func (r *Router) CircuitState(name string) breaker.State {
	return r.breakers.State(name)
}

// Stats snapshots the router counters and circuit states.
func (r *Router) Stats() Stats {
	stats := Stats{
		CacheHits:   r.cacheHits.Load(),
		CacheMisses: r.cacheMisses.Load(),
		Shared:      r.shared.Load(),
		Strategies:  make(map[string]StrategyStats),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for name, c := range r.perStrat {
		state := r.breakers.State(name)
		stats.Strategies[name] = StrategyStats{
			Attempts:     c.attempts.Load(),
			Successes:    c.successes.Load(),
			Circuit:      state,
			CircuitState: state.String(),
		}
	}
	return stats
}

// failure tracks the most actionable failure class across the chain.
type failure struct {
	class    strategy.Class
	strategy string
	err      error
}

// classRank orders classes by how much they tell the caller.
var classRank = map[strategy.Class]int{
	strategy.ClassPermanent:     5,
	strategy.ClassBlocked:       4,
	strategy.ClassRateLimited:   3,
	strategy.ClassTransient:     2,
	strategy.ClassQuotaExceeded: 1,
}

func (f *failure) update(class strategy.Class, name string, err error) *failure {
	if f != nil && classRank[f.class] >= classRank[class] {
		return f
	}
	return &failure{class: class, strategy: name, err: err}
}

func (f *failure) terminal() *ExhaustedError {
	if f == nil {
		// Nothing was even eligible for the namespace.
		return &ExhaustedError{Class: strategy.ClassPermanent, Err: errors.New("no eligible strategy")}
	}
	return &ExhaustedError{Class: f.class, Strategy: f.strategy, Err: f.err}
}
