// Package quota implements fixed-window budget tracking for the
// quota-metered upstream API. The ledger gates strategy invocations so
// the engine never spends past its daily allowance.
package quota

import (
	"time"

	"github.com/tunedeck/tunedeck/pkg/cache"
)

// WindowLength is the fixed quota window duration. The upstream API
// resets its budget daily.
const WindowLength = 24 * time.Hour

// Window holds the budget state for one namespace. Owned exclusively
// by the Ledger; strategies never touch it directly.
type Window struct {
	// Budget is the total units available per window.
	Budget int64 `json:"budget"`

	// Consumed is the units charged so far in the current window.
	Consumed int64 `json:"consumed"`

	// WindowStart is when the current window began.
	WindowStart time.Time `json:"window_start"`
}

// Remaining returns the unconsumed units in the current window.
func (w *Window) Remaining() int64 {
	r := w.Budget - w.Consumed
	if r < 0 {
		return 0
	}
	return r
}

// expiredAt reports whether the window has rolled over.
func (w *Window) expiredAt(now time.Time) bool {
	return !now.Before(w.WindowStart.Add(WindowLength))
}

// resetAt zeroes consumption and advances the window start.
// Fixed-window, not sliding: the budget is a soft operational ceiling.
func (w *Window) resetAt(now time.Time) {
	w.Consumed = 0
	w.WindowStart = now
}

// CostTable maps each namespace to the units one resolution costs.
type CostTable map[cache.Namespace]int64

// DefaultCostTable mirrors the published YouTube Data API unit costs:
// search.list is 100 units, videos.list and commentThreads.list are 1.
// Stream URLs are never served by the metered API, so they carry no
// cost entry.
func DefaultCostTable() CostTable {
	return CostTable{
		cache.NamespaceSearch:       100,
		cache.NamespaceVideoDetails: 1,
		cache.NamespaceComments:     1,
	}
}

// Cost returns the units charged for a namespace. Unlisted namespaces
// cost nothing.
func (t CostTable) Cost(ns cache.Namespace) int64 {
	return t[ns]
}
