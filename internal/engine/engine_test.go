package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalsim/pulse/internal/config"
	"github.com/vitalsim/pulse/internal/energy"
	"github.com/vitalsim/pulse/internal/pattern"
)

func f(v float64) *float64 { return &v }

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(config.DefaultConfig())
	require.NoError(t, err)
	return e
}

func TestNewProvisionsPrimaryResource(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Resource(PrimaryResourceID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Capacity)
	assert.Equal(t, 1.0, res.Current)
	assert.Equal(t, energy.PhaseStable, res.Phase)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Energy.Capacity = -1

	_, err := New(cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfiguration)
}

func TestEnginesAreIndependent(t *testing.T) {
	a := newTestEngine(t)
	b := newTestEngine(t)

	a.RegisterPattern(pattern.TypeBehavioral, nil)
	assert.Equal(t, 1, a.SystemHealth().PatternCount)
	assert.Equal(t, 0, b.SystemHealth().PatternCount,
		"two engines must not share state")
}

func TestObserveAllReceivesSnapshots(t *testing.T) {
	e := newTestEngine(t)

	var snapshots []Snapshot
	e.ObserveAll().Subscribe(func(s Snapshot) { snapshots = append(snapshots, s) })

	e.StepEnergy(1)
	e.StepPatterns()

	require.Len(t, snapshots, 2)
	assert.Contains(t, snapshots[0].Resources, PrimaryResourceID)
	assert.NotNil(t, snapshots[1].Health.StageHistogram)
}

func TestObserveResourceDeliversLatestOnSubscribe(t *testing.T) {
	e := newTestEngine(t)

	var got []energy.Resource
	e.ObserveResource(PrimaryResourceID).Subscribe(func(r energy.Resource) {
		got = append(got, r)
	})
	require.Len(t, got, 1, "subscriber sees the current snapshot immediately")

	e.StepEnergy(1)
	require.Len(t, got, 2)
}

func TestObservePattern(t *testing.T) {
	e := newTestEngine(t)
	id := e.RegisterPattern(pattern.TypeCognitive, nil)

	var got []pattern.Pattern
	e.ObservePattern(id).Subscribe(func(p pattern.Pattern) { got = append(got, p) })
	require.Len(t, got, 1)

	require.NoError(t, e.UpdateMetrics(id, pattern.MetricsPatch{Strength: f(0.9)}))
	require.Len(t, got, 2)
	assert.Equal(t, 0.9, got[1].Metrics.Strength)
}

func TestUpdateMetricsNotFound(t *testing.T) {
	e := newTestEngine(t)
	err := e.UpdateMetrics("missing-id", pattern.MetricsPatch{Strength: f(0.5)})
	assert.ErrorIs(t, err, pattern.ErrNotFound)
}

func TestProtectReleasePassthrough(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.SetPhase(PrimaryResourceID, energy.PhaseDischarging))
	require.NoError(t, e.Protect(PrimaryResourceID))

	res, err := e.Resource(PrimaryResourceID)
	require.NoError(t, err)
	assert.Equal(t, energy.PhaseStable, res.Phase)
	assert.True(t, res.Protected)

	require.NoError(t, e.Release(PrimaryResourceID))
	res, err = e.Resource(PrimaryResourceID)
	require.NoError(t, err)
	assert.False(t, res.Protected)
}

func TestEndToEndEvolutionScenario(t *testing.T) {
	e := newTestEngine(t)
	id := e.RegisterPattern(pattern.TypeCognitive, nil)

	for _, s := range []float64{0.82, 0.86, 0.9, 0.94, 0.98} {
		require.NoError(t, e.UpdateMetrics(id, pattern.MetricsPatch{
			Strength:  f(s),
			Stability: f(0.8),
		}))
	}
	e.StepPatterns()

	p, err := e.Pattern(id)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Stage)

	summary := e.SystemHealth()
	assert.Equal(t, 1, summary.EvolvedCount)
}

func TestStartStop(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Energy.TickInterval = "5ms"
	cfg.Pattern.TickInterval = "10ms"

	e, err := New(cfg)
	require.NoError(t, err)

	tick := make(chan struct{}, 64)
	e.ObserveAll().Subscribe(func(Snapshot) {
		select {
		case tick <- struct{}{}:
		default:
		}
	})

	require.NoError(t, e.Start(context.Background()))
	// Start twice is a no-op, not a second pair of drivers.
	require.NoError(t, e.Start(context.Background()))

	select {
	case <-tick:
	case <-time.After(2 * time.Second):
		t.Fatal("no driver tick observed")
	}

	e.Stop()
	e.Stop() // idempotent
}

func TestStopViaContext(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Energy.TickInterval = "5ms"
	cfg.Pattern.TickInterval = "5ms"

	e, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, e.Start(ctx))
	cancel()

	// Stop after context cancellation must not hang.
	done := make(chan struct{})
	go func() {
		e.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after context cancellation")
	}
}
