package quota

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/tunedeck/tunedeck/pkg/cache"
)

func testConfig(budget int64) Config {
	return Config{
		Budgets: map[cache.Namespace]int64{
			cache.NamespaceSearch:       budget,
			cache.NamespaceVideoDetails: budget,
		},
		Costs: DefaultCostTable(),
	}
}

func TestLedger_TryReserve(t *testing.T) {
	tests := []struct {
		name    string
		budget  int64
		cost    int64
		prior   int64
		granted bool
	}{
		{
			name:    "fits within budget",
			budget:  1000,
			cost:    100,
			prior:   0,
			granted: true,
		},
		{
			name:    "exactly exhausts budget",
			budget:  1000,
			cost:    100,
			prior:   900,
			granted: true,
		},
		{
			name:    "would exceed budget",
			budget:  1000,
			cost:    100,
			prior:   950,
			granted: false,
		},
		{
			name:    "zero cost always granted",
			budget:  0,
			cost:    0,
			prior:   0,
			granted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := NewLedger(testConfig(tt.budget), zerolog.Nop())
			if tt.prior > 0 {
				if !ledger.TryReserve(cache.NamespaceSearch, tt.prior) {
					t.Fatal("prior reservation should be granted")
				}
			}

			if got := ledger.TryReserve(cache.NamespaceSearch, tt.cost); got != tt.granted {
				t.Errorf("TryReserve() = %v, want %v", got, tt.granted)
			}
		})
	}
}

func TestLedger_ZeroCostDoesNotMutate(t *testing.T) {
	ledger := NewLedger(testConfig(100), zerolog.Nop())

	if !ledger.TryReserve(cache.NamespaceSearch, 0) {
		t.Fatal("zero cost reservation should be granted")
	}

	snap := ledger.Snapshot()
	if w, ok := snap[cache.NamespaceSearch]; ok && w.Consumed != 0 {
		t.Errorf("Consumed = %d, want 0", w.Consumed)
	}
}

func TestLedger_WindowReset(t *testing.T) {
	ledger := NewLedger(testConfig(100), zerolog.Nop())

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := start
	ledger.now = func() time.Time { return now }

	if !ledger.TryReserve(cache.NamespaceSearch, 100) {
		t.Fatal("first reservation should be granted")
	}
	if ledger.TryReserve(cache.NamespaceSearch, 1) {
		t.Fatal("budget exhausted, reservation should be denied")
	}

	// Just before the window rolls over: still denied.
	now = start.Add(WindowLength - time.Second)
	if ledger.TryReserve(cache.NamespaceSearch, 1) {
		t.Fatal("window not yet expired, reservation should be denied")
	}

	// Crossing window-start + 24h resets consumption atomically.
	now = start.Add(WindowLength)
	if !ledger.TryReserve(cache.NamespaceSearch, 100) {
		t.Fatal("reservation after window reset should be granted")
	}

	snap := ledger.Snapshot()
	w := snap[cache.NamespaceSearch]
	if w.Consumed != 100 {
		t.Errorf("Consumed = %d, want 100", w.Consumed)
	}
	if !w.WindowStart.Equal(now) {
		t.Errorf("WindowStart = %v, want %v", w.WindowStart, now)
	}
}

func TestLedger_Refund(t *testing.T) {
	ledger := NewLedger(testConfig(100), zerolog.Nop())

	if !ledger.TryReserve(cache.NamespaceVideoDetails, 60) {
		t.Fatal("reservation should be granted")
	}
	ledger.Refund(cache.NamespaceVideoDetails, 60)

	snap := ledger.Snapshot()
	if w := snap[cache.NamespaceVideoDetails]; w.Consumed != 0 {
		t.Errorf("Consumed after refund = %d, want 0", w.Consumed)
	}

	// Refund never drives consumption negative.
	ledger.Refund(cache.NamespaceVideoDetails, 50)
	snap = ledger.Snapshot()
	if w := snap[cache.NamespaceVideoDetails]; w.Consumed != 0 {
		t.Errorf("Consumed = %d, want 0", w.Consumed)
	}
}

// Consumed must never exceed the budget, no matter how many goroutines
// race on reservations.
func TestLedger_ConcurrentReservations(t *testing.T) {
	const budget = 500
	ledger := NewLedger(testConfig(budget), zerolog.Nop())

	var wg sync.WaitGroup
	var grantedMu sync.Mutex
	granted := int64(0)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ledger.TryReserve(cache.NamespaceSearch, 10) {
				grantedMu.Lock()
				granted += 10
				grantedMu.Unlock()
			}
		}()
	}
	wg.Wait()

	if granted != budget {
		t.Errorf("granted = %d, want %d", granted, budget)
	}

	snap := ledger.Snapshot()
	if w := snap[cache.NamespaceSearch]; w.Consumed > budget {
		t.Errorf("Consumed = %d exceeds budget %d", w.Consumed, budget)
	}
}

func TestDefaultCostTable(t *testing.T) {
	costs := DefaultCostTable()

	if got := costs.Cost(cache.NamespaceSearch); got != 100 {
		t.Errorf("search cost = %d, want 100", got)
	}
	if got := costs.Cost(cache.NamespaceVideoDetails); got != 1 {
		t.Errorf("video_details cost = %d, want 1", got)
	}
	if got := costs.Cost(cache.NamespaceStreamURL); got != 0 {
		t.Errorf("stream_url cost = %d, want 0", got)
	}
}
