package breaker

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// testClock drives a Set through time without sleeping.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestSet(cfg Config) (*Set, *testClock) {
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := NewSet(cfg)
	s.now = clock.Now
	return s, clock
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("String() = %q, want %q", got, tt.expected)
		}
	}
}

func TestSet_OpensAtThreshold(t *testing.T) {
	s, _ := newTestSet(Config{FailureThreshold: 3})

	for i := 0; i < 2; i++ {
		s.RecordFailure("api")
		if got := s.State("api"); got != StateClosed {
			t.Fatalf("after %d failures State = %v, want closed", i+1, got)
		}
	}

	s.RecordFailure("api")
	if got := s.State("api"); got != StateOpen {
		t.Errorf("State = %v, want open", got)
	}
	if err := s.Allow("api"); !errors.Is(err, ErrOpen) {
		t.Errorf("Allow() = %v, want ErrOpen", err)
	}
}

func TestSet_FailuresOutsideWindowDoNotCount(t *testing.T) {
	s, clock := newTestSet(Config{FailureThreshold: 3, FailureWindow: time.Minute})

	s.RecordFailure("api")
	s.RecordFailure("api")

	// The first two failures age out of the sliding window.
	clock.Advance(2 * time.Minute)
	s.RecordFailure("api")

	if got := s.State("api"); got != StateClosed {
		t.Errorf("State = %v, want closed (stale failures pruned)", got)
	}
}

func TestSet_OpenToHalfOpenAfterElapse(t *testing.T) {
	s, clock := newTestSet(Config{FailureThreshold: 1, BaseOpenDuration: 30 * time.Second})

	s.RecordFailure("headless")
	if err := s.Allow("headless"); !errors.Is(err, ErrOpen) {
		t.Fatalf("Allow() while open = %v, want ErrOpen", err)
	}

	clock.Advance(31 * time.Second)
	if err := s.Allow("headless"); err != nil {
		t.Fatalf("Allow() after open elapsed = %v, want probe admitted", err)
	}
	if got := s.State("headless"); got != StateHalfOpen {
		t.Errorf("State = %v, want half-open", got)
	}

	// Only one probe is admitted.
	if err := s.Allow("headless"); !errors.Is(err, ErrOpen) {
		t.Errorf("second probe Allow() = %v, want ErrOpen", err)
	}
}

func TestSet_HalfOpenSuccessCloses(t *testing.T) {
	s, clock := newTestSet(Config{FailureThreshold: 1, BaseOpenDuration: 30 * time.Second})

	s.RecordFailure("browser")
	clock.Advance(31 * time.Second)
	if err := s.Allow("browser"); err != nil {
		t.Fatalf("probe should be admitted: %v", err)
	}

	s.RecordSuccess("browser")
	if got := s.State("browser"); got != StateClosed {
		t.Errorf("State = %v, want closed", got)
	}
	if s.GetStats("browser").FailureCount != 0 {
		t.Error("failure count should be cleared on success")
	}
}

func TestSet_HalfOpenFailureReopensWithBackoff(t *testing.T) {
	s, clock := newTestSet(Config{
		FailureThreshold: 1,
		BaseOpenDuration: 30 * time.Second,
		MaxOpenDuration:  10 * time.Minute,
	})

	// First open: 30s.
	s.RecordFailure("api")
	first := s.GetStats("api").OpenUntil
	if want := clock.Now().Add(30 * time.Second); !first.Equal(want) {
		t.Fatalf("first OpenUntil = %v, want %v", first, want)
	}

	// Failed probe: doubled to 60s.
	clock.Advance(31 * time.Second)
	if err := s.Allow("api"); err != nil {
		t.Fatalf("probe should be admitted: %v", err)
	}
	s.RecordFailure("api")

	second := s.GetStats("api").OpenUntil
	if want := clock.Now().Add(60 * time.Second); !second.Equal(want) {
		t.Errorf("second OpenUntil = %v, want %v", second, want)
	}
}

func TestSet_ReleaseProbeReadmits(t *testing.T) {
	s, clock := newTestSet(Config{FailureThreshold: 1, BaseOpenDuration: 30 * time.Second})

	s.RecordFailure("api")
	clock.Advance(31 * time.Second)
	if err := s.Allow("api"); err != nil {
		t.Fatalf("probe should be admitted: %v", err)
	}
	if err := s.Allow("api"); !errors.Is(err, ErrOpen) {
		t.Fatalf("second Allow() = %v, want ErrOpen", err)
	}

	// The attempt ended without a verdict. Handing the admission back
	// must let the very next Allow probe again.
	s.ReleaseProbe("api")
	if err := s.Allow("api"); err != nil {
		t.Fatalf("Allow() after release = %v, want probe admitted", err)
	}

	s.RecordSuccess("api")
	if got := s.State("api"); got != StateClosed {
		t.Errorf("State = %v, want closed", got)
	}
}

func TestSet_ReleaseProbeOutsideHalfOpenIsNoop(t *testing.T) {
	s, _ := newTestSet(Config{FailureThreshold: 1})

	s.ReleaseProbe("never-seen")
	if got := s.State("never-seen"); got != StateClosed {
		t.Errorf("State = %v, want closed", got)
	}

	s.RecordFailure("api")
	s.ReleaseProbe("api")
	if err := s.Allow("api"); !errors.Is(err, ErrOpen) {
		t.Errorf("Allow() = %v, want ErrOpen while open period runs", err)
	}
}

func TestSet_LostProbeReplaced(t *testing.T) {
	s, clock := newTestSet(Config{FailureThreshold: 1, BaseOpenDuration: 30 * time.Second})

	s.RecordFailure("browser")
	clock.Advance(31 * time.Second)
	if err := s.Allow("browser"); err != nil {
		t.Fatalf("probe should be admitted: %v", err)
	}

	// The admitted attempt never settles. After the base open period a
	// replacement probe is admitted instead of failing fast forever.
	clock.Advance(29 * time.Second)
	if err := s.Allow("browser"); !errors.Is(err, ErrOpen) {
		t.Fatalf("Allow() before probe timeout = %v, want ErrOpen", err)
	}
	clock.Advance(2 * time.Second)
	if err := s.Allow("browser"); err != nil {
		t.Errorf("Allow() after probe timeout = %v, want replacement admitted", err)
	}
}

func TestSet_BackoffCapped(t *testing.T) {
	s, clock := newTestSet(Config{
		FailureThreshold: 1,
		BaseOpenDuration: 30 * time.Second,
		MaxOpenDuration:  time.Minute,
	})

	for i := 0; i < 5; i++ {
		s.RecordFailure("api")
		clock.Advance(2 * time.Minute)
		if err := s.Allow("api"); err != nil {
			t.Fatalf("probe %d should be admitted: %v", i, err)
		}
	}

	s.RecordFailure("api")
	openUntil := s.GetStats("api").OpenUntil
	if want := clock.Now().Add(time.Minute); !openUntil.Equal(want) {
		t.Errorf("OpenUntil = %v, want capped at %v", openUntil, want)
	}
}

func TestSet_SuccessResetsOnlyNamedCircuit(t *testing.T) {
	s, _ := newTestSet(Config{FailureThreshold: 1})

	s.RecordFailure("api")
	s.RecordFailure("headless")
	s.RecordSuccess("headless")

	if got := s.State("api"); got != StateOpen {
		t.Errorf("api State = %v, want open", got)
	}
	if got := s.State("headless"); got != StateClosed {
		t.Errorf("headless State = %v, want closed", got)
	}
}

func TestSet_UnknownCircuitClosed(t *testing.T) {
	s, _ := newTestSet(DefaultConfig())

	if got := s.State("never-seen"); got != StateClosed {
		t.Errorf("State = %v, want closed", got)
	}
	if err := s.Allow("never-seen"); err != nil {
		t.Errorf("Allow() = %v, want nil", err)
	}
}
