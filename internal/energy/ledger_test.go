package energy

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedClock returns a clock function that advances by step on each call
// to advanceBy.
type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func (c *fixedClock) advanceBy(d time.Duration) { c.now = c.now.Add(d) }

func newTestLedger(clock *fixedClock) *Ledger {
	cfg := DefaultConfig()
	if clock != nil {
		cfg.Clock = clock.Now
	}
	return NewLedger(cfg)
}

func TestCreateResource(t *testing.T) {
	l := newTestLedger(nil)

	require.NoError(t, l.CreateResource("primary", 1))

	res, err := l.Snapshot("primary")
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Current)
	assert.Equal(t, 1.0, res.Capacity)
	assert.Equal(t, PhaseStable, res.Phase)
	assert.Equal(t, 1.0, res.Efficiency)
	assert.Equal(t, 1.0, res.FocusMultiplier)
	assert.Equal(t, 1.0, res.RecoveryEfficiency)
	// Full resource with neutral focus: ratio 1.0 but focus ≤ 1.2 means
	// sustained, not peak.
	assert.Equal(t, DevelopmentSustained, res.DevelopmentPhase)
	assert.NoError(t, res.Validate())
}

func TestCreateResourceInvalidCapacity(t *testing.T) {
	l := newTestLedger(nil)

	err := l.CreateResource("bad", 0)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	err = l.CreateResource("bad", -2)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestCreateResourceDuplicate(t *testing.T) {
	l := newTestLedger(nil)

	require.NoError(t, l.CreateResource("primary", 1))
	err := l.CreateResource("primary", 1)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestTickUnknownResource(t *testing.T) {
	l := newTestLedger(nil)
	err := l.Tick("missing", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTickBoundsHold(t *testing.T) {
	tests := []struct {
		name    string
		phase   Phase
		elapsed float64
	}{
		{name: "zero elapsed stable", phase: PhaseStable, elapsed: 0},
		{name: "negative elapsed charging", phase: PhaseCharging, elapsed: -50},
		{name: "huge elapsed charging", phase: PhaseCharging, elapsed: 1e9},
		{name: "huge elapsed discharging", phase: PhaseDischarging, elapsed: 1e9},
		{name: "small elapsed discharging", phase: PhaseDischarging, elapsed: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLedger(nil)
			require.NoError(t, l.CreateResource("r", 2))
			require.NoError(t, l.SetPhase("r", tt.phase))

			for i := 0; i < 50; i++ {
				require.NoError(t, l.Tick("r", tt.elapsed))
				res, err := l.Snapshot("r")
				require.NoError(t, err)
				assert.GreaterOrEqual(t, res.Current, 0.0)
				assert.LessOrEqual(t, res.Current, res.Capacity)
				require.NoError(t, res.Validate())
			}
		})
	}
}

func TestChargingMonotonicity(t *testing.T) {
	l := newTestLedger(nil)
	require.NoError(t, l.CreateResource("r", 10))

	// Drain part of the way first.
	require.NoError(t, l.SetPhase("r", PhaseDischarging))
	for i := 0; i < 20; i++ {
		require.NoError(t, l.Tick("r", 5))
	}

	require.NoError(t, l.SetPhase("r", PhaseCharging))
	prev, err := l.Snapshot("r")
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		require.NoError(t, l.Tick("r", 1))
		res, err := l.Snapshot("r")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.Current, prev.Current,
			"charging must never lose charge (tick %d)", i)
		prev = res
	}
}

func TestDischargeStrictlyDecreases(t *testing.T) {
	// Scenario: resource at current=1, capacity=1, discharging for 60
	// simulated minutes at the default decay rate.
	l := newTestLedger(nil)
	require.NoError(t, l.CreateResource("r", 1))
	require.NoError(t, l.SetPhase("r", PhaseDischarging))

	prev, err := l.Snapshot("r")
	require.NoError(t, err)

	for i := 0; i < 60; i++ {
		require.NoError(t, l.Tick("r", 1))
		res, err := l.Snapshot("r")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.Current, 0.0)
		if prev.Current > 0 {
			assert.Less(t, res.Current, prev.Current, "minute %d", i)
		}
		prev = res
	}
}

func TestFocusMultiplierDrift(t *testing.T) {
	l := newTestLedger(nil)
	require.NoError(t, l.CreateResource("r", 100))

	require.NoError(t, l.SetPhase("r", PhaseCharging))
	for i := 0; i < 10; i++ {
		require.NoError(t, l.Tick("r", 1))
	}
	res, err := l.Snapshot("r")
	require.NoError(t, err)
	assert.Equal(t, 1.5, res.FocusMultiplier, "charging drifts focus to its cap")

	require.NoError(t, l.SetPhase("r", PhaseDischarging))
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Tick("r", 1))
	}
	res, err = l.Snapshot("r")
	require.NoError(t, err)
	assert.Equal(t, 0.5, res.FocusMultiplier, "discharging drifts focus to its floor")
}

func TestStablePhaseFloorsFocus(t *testing.T) {
	l := newTestLedger(nil)
	require.NoError(t, l.CreateResource("r", 100))

	// Drive focus below the stable floor first.
	require.NoError(t, l.SetPhase("r", PhaseDischarging))
	for i := 0; i < 30; i++ {
		require.NoError(t, l.Tick("r", 0.1))
	}
	require.NoError(t, l.SetPhase("r", PhaseStable))
	require.NoError(t, l.Tick("r", 1))

	res, err := l.Snapshot("r")
	require.NoError(t, err)
	assert.Equal(t, 0.8, res.FocusMultiplier)
}

func TestDevelopmentPhaseDerivation(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
		focus float64
		want  DevelopmentPhase
	}{
		{name: "depleted is recovery", ratio: 0.1, focus: 1.0, want: DevelopmentRecovery},
		{name: "just below threshold is recovery", ratio: 0.29, focus: 1.5, want: DevelopmentRecovery},
		{name: "full with high focus is peak", ratio: 0.9, focus: 1.3, want: DevelopmentPeak},
		{name: "full with neutral focus is sustained", ratio: 0.9, focus: 1.0, want: DevelopmentSustained},
		{name: "mid is sustained", ratio: 0.7, focus: 1.0, want: DevelopmentSustained},
		{name: "low-mid is conservation", ratio: 0.5, focus: 1.0, want: DevelopmentConservation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := derivedDevelopmentPhase(tt.ratio, tt.focus)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProtectIdempotent(t *testing.T) {
	clock := &fixedClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	l := newTestLedger(clock)
	require.NoError(t, l.CreateResource("r", 1))
	require.NoError(t, l.SetPhase("r", PhaseDischarging))

	require.NoError(t, l.Protect("r"))
	once, err := l.Snapshot("r")
	require.NoError(t, err)

	clock.advanceBy(time.Minute)
	require.NoError(t, l.Protect("r"))
	twice, err := l.Snapshot("r")
	require.NoError(t, err)

	assert.Equal(t, once, twice, "second Protect must not change state")
	assert.Equal(t, PhaseStable, twice.Phase)
	assert.True(t, twice.Protected)
}

func TestProtectDoesNotBlockTicks(t *testing.T) {
	l := newTestLedger(nil)
	require.NoError(t, l.CreateResource("r", 1))
	require.NoError(t, l.Protect("r"))

	// Ticks still run; stable phase just means no active drain or charge.
	require.NoError(t, l.Tick("r", 5))
	res, err := l.Snapshot("r")
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Current)
}

func TestRelease(t *testing.T) {
	l := newTestLedger(nil)
	require.NoError(t, l.CreateResource("r", 1))

	require.NoError(t, l.Protect("r"))
	require.NoError(t, l.Release("r"))

	res, err := l.Snapshot("r")
	require.NoError(t, err)
	assert.False(t, res.Protected)
	assert.Equal(t, PhaseStable, res.Phase)

	// Release without protection is a no-op.
	require.NoError(t, l.Release("r"))
}

func TestRecoveryEfficiencyDrift(t *testing.T) {
	l := newTestLedger(nil)
	require.NoError(t, l.CreateResource("r", 100))

	// Deep drain, then charge: recovery efficiency should climb to its cap.
	require.NoError(t, l.SetPhase("r", PhaseDischarging))
	for i := 0; i < 200; i++ {
		require.NoError(t, l.Tick("r", 10))
	}
	low, err := l.Snapshot("r")
	require.NoError(t, err)
	require.Less(t, low.Ratio(), 0.3)

	require.NoError(t, l.SetPhase("r", PhaseCharging))
	for i := 0; i < 20; i++ {
		require.NoError(t, l.Tick("r", 1))
	}
	res, err := l.Snapshot("r")
	require.NoError(t, err)
	assert.Equal(t, 1.2, res.RecoveryEfficiency)
}

func TestSnapshotIsACopy(t *testing.T) {
	l := newTestLedger(nil)
	require.NoError(t, l.CreateResource("r", 1))

	res, err := l.Snapshot("r")
	require.NoError(t, err)
	res.Current = -999

	fresh, err := l.Snapshot("r")
	require.NoError(t, err)
	assert.Equal(t, 1.0, fresh.Current, "mutating a snapshot must not touch the ledger")
}

func TestSnapshotsAll(t *testing.T) {
	l := newTestLedger(nil)
	require.NoError(t, l.CreateResource("a", 1))
	require.NoError(t, l.CreateResource("b", 2))

	all := l.Snapshots()
	require.Len(t, all, 2)
	assert.Equal(t, 1.0, all["a"].Capacity)
	assert.Equal(t, 2.0, all["b"].Capacity)
}

func TestErrorsAreTyped(t *testing.T) {
	l := newTestLedger(nil)

	for _, err := range []error{
		l.Protect("missing"),
		l.Release("missing"),
		l.SetPhase("missing", PhaseCharging),
		l.Tick("missing", 1),
	} {
		assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
	}
}
