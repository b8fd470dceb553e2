package quota

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tunedeck/tunedeck/pkg/cache"
)

// Config holds the ledger configuration.
type Config struct {
	// Budgets is the per-namespace unit budget per 24h window.
	Budgets map[cache.Namespace]int64

	// Costs is the per-namespace cost of one metered resolution.
	Costs CostTable
}

// DefaultConfig splits the upstream's 10,000 daily units across the
// metered namespaces. Search dominates because a single search costs
// 100 units.
func DefaultConfig() Config {
	return Config{
		Budgets: map[cache.Namespace]int64{
			cache.NamespaceSearch:       8000,
			cache.NamespaceVideoDetails: 1000,
			cache.NamespaceComments:     1000,
		},
		Costs: DefaultCostTable(),
	}
}

// Ledger tracks consumed units against per-namespace fixed windows.
// Reservation is check-and-commit under one lock so concurrent strategy
// attempts from different keys can never overspend the budget.
type Ledger struct {
	mu      sync.Mutex
	windows map[cache.Namespace]*Window
	config  Config
	logger  zerolog.Logger

	// now is injectable for window-reset tests.
	now func() time.Time
}

// NewLedger creates a quota ledger.
func NewLedger(cfg Config, logger zerolog.Logger) *Ledger {
	return &Ledger{
		windows: make(map[cache.Namespace]*Window),
		config:  cfg,
		logger:  logger.With().Str("component", "quota-ledger").Logger(),
		now:     time.Now,
	}
}

// Cost returns the configured cost for one resolution in a namespace.
func (l *Ledger) Cost(ns cache.Namespace) int64 {
	return l.config.Costs.Cost(ns)
}

// TryReserve charges cost units against the namespace window. A zero
// cost is always granted without touching the window. The reservation
// is not refundable once the strategy reaches the network; see Refund.
func (l *Ledger) TryReserve(ns cache.Namespace, cost int64) bool {
	if cost <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.window(ns)
	now := l.now()
	if w.expiredAt(now) {
		l.logger.Info().
			Str("namespace", string(ns)).
			Int64("consumed", w.Consumed).
			Time("window_start", w.WindowStart).
			Msg("Quota window reset")
		w.resetAt(now)
	}

	if w.Consumed+cost > w.Budget {
		quotaDenied.WithLabelValues(string(ns)).Inc()
		l.logger.Warn().
			Str("namespace", string(ns)).
			Int64("cost", cost).
			Int64("remaining", w.Remaining()).
			Msg("Quota reservation denied")
		return false
	}

	w.Consumed += cost
	quotaConsumed.WithLabelValues(string(ns)).Set(float64(w.Consumed))
	return true
}

// Refund returns units to the window. Only valid for a reservation
// whose strategy failed on pure local validation before any upstream
// call was made; reservations that reached the network stay charged,
// reflecting real quota consumption.
func (l *Ledger) Refund(ns cache.Namespace, cost int64) {
	if cost <= 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.window(ns)
	w.Consumed -= cost
	if w.Consumed < 0 {
		w.Consumed = 0
	}
	quotaConsumed.WithLabelValues(string(ns)).Set(float64(w.Consumed))
}

// Snapshot returns a copy of every namespace window for the stats
// surface.
func (l *Ledger) Snapshot() map[cache.Namespace]Window {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[cache.Namespace]Window, len(l.windows))
	for ns, w := range l.windows {
		out[ns] = *w
	}
	return out
}

// window returns the live window for a namespace, creating it on first
// use. Caller must hold l.mu.
func (l *Ledger) window(ns cache.Namespace) *Window {
	w, ok := l.windows[ns]
	if !ok {
		w = &Window{
			Budget:      l.config.Budgets[ns],
			WindowStart: l.now(),
		}
		l.windows[ns] = w
	}
	return w
}
