// Package breaker implements per-strategy circuit breaking. A strategy
// that keeps failing is taken out of rotation for an exponentially
// growing cool-off so the router stops hammering a blocked backend.
package breaker

import (
	"errors"
	"sync"
	"time"
)

// State represents the state of one strategy's circuit.
type State int

const (
	// StateClosed is the normal state where attempts are allowed.
	StateClosed State = iota
	// StateOpen is the state where attempts fail fast.
	StateOpen
	// StateHalfOpen admits a single probe after the open period.
	StateHalfOpen
)

// String returns the string representation of a circuit state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned when the circuit is open.
var ErrOpen = errors.New("circuit breaker is open")

// Default circuit configuration.
const (
	DefaultFailureThreshold = 5
	DefaultFailureWindow    = 2 * time.Minute
	DefaultBaseOpenDuration = 30 * time.Second
	DefaultMaxOpenDuration  = 10 * time.Minute
)

// Config configures circuit behavior. Zero fields fall back to the
// defaults.
type Config struct {
	// FailureThreshold is the number of failures within FailureWindow
	// that opens the circuit.
	FailureThreshold int

	// FailureWindow is the sliding window over which failures count.
	FailureWindow time.Duration

	// BaseOpenDuration is the first open period; each consecutive open
	// doubles it up to MaxOpenDuration.
	BaseOpenDuration time.Duration

	// MaxOpenDuration caps the exponential open period.
	MaxOpenDuration time.Duration
}

// DefaultConfig returns the default circuit configuration.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: DefaultFailureThreshold,
		FailureWindow:    DefaultFailureWindow,
		BaseOpenDuration: DefaultBaseOpenDuration,
		MaxOpenDuration:  DefaultMaxOpenDuration,
	}
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.FailureWindow <= 0 {
		c.FailureWindow = DefaultFailureWindow
	}
	if c.BaseOpenDuration <= 0 {
		c.BaseOpenDuration = DefaultBaseOpenDuration
	}
	if c.MaxOpenDuration <= 0 {
		c.MaxOpenDuration = DefaultMaxOpenDuration
	}
	return c
}

// circuit holds the state for a single strategy.
type circuit struct {
	state      State
	failures   []time.Time // within the sliding window
	openUntil  time.Time
	openCount  int       // consecutive opens, drives the backoff exponent
	probeStart time.Time // when the current half-open probe was admitted
}

// Stats is a point-in-time view of one circuit.
type Stats struct {
	State        State
	FailureCount int
	OpenUntil    time.Time
}

// Set tracks one circuit per strategy name.
type Set struct {
	mu       sync.Mutex
	circuits map[string]*circuit
	config   Config

	// now is injectable for transition tests.
	now func() time.Time
}

// NewSet creates a circuit set.
func NewSet(cfg Config) *Set {
	return &Set{
		circuits: make(map[string]*circuit),
		config:   cfg.withDefaults(),
		now:      time.Now,
	}
}

// Allow reports whether an attempt on the named strategy may proceed.
// An open circuit whose open period has elapsed moves to half-open and
// admits this one probe.
func (s *Set) Allow(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.circuit(name)

	switch c.state {
	case StateClosed:
		return nil

	case StateOpen:
		if !s.now().Before(c.openUntil) {
			c.state = StateHalfOpen
			c.probeStart = s.now()
			breakerState.WithLabelValues(name).Set(float64(StateHalfOpen))
			return nil
		}
		return ErrOpen

	case StateHalfOpen:
		// One probe at a time; the probe's outcome decides. A probe
		// that never reported back within the base open period is
		// considered lost and a replacement is admitted, so a crashed
		// attempt cannot leave the circuit stuck half-open.
		if !s.now().Before(c.probeStart.Add(s.config.BaseOpenDuration)) {
			c.probeStart = s.now()
			return nil
		}
		return ErrOpen

	default:
		return nil
	}
}

// RecordSuccess closes the circuit and clears its failure history.
func (s *Set) RecordSuccess(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.circuit(name)
	c.state = StateClosed
	c.failures = nil
	c.openCount = 0
	breakerState.WithLabelValues(name).Set(float64(StateClosed))
}

// RecordFailure registers a failed attempt. Reaching the threshold
// within the sliding window opens the circuit; a failed half-open probe
// re-opens it immediately.
func (s *Set) RecordFailure(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.circuit(name)
	now := s.now()

	switch c.state {
	case StateHalfOpen:
		s.open(name, c, now)

	case StateClosed:
		c.failures = append(c.failures, now)
		s.prune(c, now)
		if len(c.failures) >= s.config.FailureThreshold {
			s.open(name, c, now)
		}
	}
}

// ReleaseProbe returns a half-open probe admission without a verdict.
// Callers use it when an admitted attempt ends in a way that says
// nothing about strategy health, such as a quota denial before the
// request left the process or an error caused by the request itself.
// The circuit goes back to open with its elapsed deadline intact, so
// the next Allow admits a fresh probe immediately. No-op in any other
// state.
func (s *Set) ReleaseProbe(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.circuits[name]
	if !ok || c.state != StateHalfOpen {
		return
	}
	c.state = StateOpen
	breakerState.WithLabelValues(name).Set(float64(StateOpen))
}

// State returns the current state for a strategy, accounting for an
// elapsed open period.
func (s *Set) State(name string) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.circuits[name]
	if !ok {
		return StateClosed
	}
	if c.state == StateOpen && !s.now().Before(c.openUntil) {
		return StateHalfOpen
	}
	return c.state
}

// GetStats returns a snapshot of one circuit.
func (s *Set) GetStats(name string) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.circuits[name]
	if !ok {
		return Stats{State: StateClosed}
	}

	state := c.state
	if state == StateOpen && !s.now().Before(c.openUntil) {
		state = StateHalfOpen
	}

	return Stats{
		State:        state,
		FailureCount: len(c.failures),
		OpenUntil:    c.openUntil,
	}
}

// open transitions a circuit to Open with exponential backoff.
// Caller must hold s.mu.
func (s *Set) open(name string, c *circuit, now time.Time) {
	d := s.config.BaseOpenDuration << c.openCount
	if d > s.config.MaxOpenDuration || d <= 0 {
		d = s.config.MaxOpenDuration
	}

	c.state = StateOpen
	c.openUntil = now.Add(d)
	c.openCount++
	c.failures = nil

	breakerState.WithLabelValues(name).Set(float64(StateOpen))
	breakerOpens.WithLabelValues(name).Inc()
}

// prune discards failures older than the sliding window.
// Caller must hold s.mu.
func (s *Set) prune(c *circuit, now time.Time) {
	cutoff := now.Add(-s.config.FailureWindow)
	kept := c.failures[:0]
	for _, t := range c.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	c.failures = kept
}

// circuit returns the circuit for a name, creating it closed.
// Caller must hold s.mu.
func (s *Set) circuit(name string) *circuit {
	c, ok := s.circuits[name]
	if !ok {
		c = &circuit{state: StateClosed}
		s.circuits[name] = c
	}
	return c
}
