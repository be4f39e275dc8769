// Package engine assembles the simulation core: the energy ledger, the
// pattern registry, the health aggregator, and the snapshot streams, plus
// the two periodic drivers that advance them.
//
// An Engine is an explicit instance: construct one per process (or per
// test) and inject it into consumers. There is no package-level
// singleton.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vitalsim/pulse/internal/config"
	"github.com/vitalsim/pulse/internal/energy"
	"github.com/vitalsim/pulse/internal/health"
	"github.com/vitalsim/pulse/internal/pattern"
	"github.com/vitalsim/pulse/internal/stream"
)

// PrimaryResourceID is the id of the resource the engine provisions at
// construction time.
const PrimaryResourceID = "primary"

// Snapshot is the combined engine state pushed to ObserveAll subscribers
// after every driver tick.
type Snapshot struct {
	Timestamp time.Time
	Resources map[string]energy.Resource
	Patterns  []pattern.Pattern
	Health    health.Summary
}

// Option customizes engine construction.
type Option func(*Engine)

// WithLogger sets the engine's logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock overrides the time source (used by tests).
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// Engine owns the simulation core and its drivers.
type Engine struct {
	cfg    *config.Config
	logger *slog.Logger
	clock  func() time.Time

	ledger     *energy.Ledger
	registry   *pattern.Registry
	aggregator *health.Aggregator

	mu              sync.Mutex
	resourceStreams map[string]*stream.Stream[energy.Resource]
	patternStreams  map[string]*stream.Stream[pattern.Pattern]
	allStream       *stream.Stream[Snapshot]
	healthStream    *stream.Stream[health.Summary]

	lastEnergyTick time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	done      sync.WaitGroup
}

// New builds an engine from configuration. The primary resource is
// provisioned immediately; configuration errors surface here and nowhere
// later.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine configuration: %w", err)
	}

	e := &Engine{
		cfg:             cfg,
		logger:          slog.Default(),
		clock:           time.Now,
		resourceStreams: make(map[string]*stream.Stream[energy.Resource]),
		patternStreams:  make(map[string]*stream.Stream[pattern.Pattern]),
		allStream:       stream.New[Snapshot](),
		healthStream:    stream.New[health.Summary](),
		stopCh:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.ledger = energy.NewLedger(&energy.Config{
		RecoveryRate: cfg.Energy.RecoveryRate,
		DecayRate:    cfg.Energy.DecayRate,
		Clock:        e.clock,
	})
	e.registry = pattern.NewRegistry(&pattern.Config{
		HistoryLimit: cfg.Pattern.HistoryLimit,
		Clock:        e.clock,
	})
	e.aggregator = health.NewAggregator(e.registry, e.ledger)

	if err := e.ledger.CreateResource(PrimaryResourceID, cfg.Energy.Capacity); err != nil {
		return nil, err
	}
	e.lastEnergyTick = e.clock()
	return e, nil
}

// Start launches the two periodic drivers: the energy ticker and the
// coarser pattern ticker. Each driver invocation runs to completion
// before the next is scheduled. Start is idempotent.
func (e *Engine) Start(ctx context.Context) error {
	energyInterval, err := e.cfg.EnergyTickInterval()
	if err != nil {
		return err
	}
	patternInterval, err := e.cfg.PatternTickInterval()
	if err != nil {
		return err
	}

	e.startOnce.Do(func() {
		e.logger.Info("engine starting",
			"energy_interval", energyInterval,
			"pattern_interval", patternInterval)

		e.done.Add(2)
		go e.runDriver(ctx, energyInterval, e.stepEnergy)
		go e.runDriver(ctx, patternInterval, e.stepPatterns)
	})
	return nil
}

// runDriver invokes step on every tick until the context is canceled or
// the engine is stopped.
func (e *Engine) runDriver(ctx context.Context, interval time.Duration, step func()) {
	defer e.done.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			step()
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		}
	}
}

// Stop halts both drivers and waits for in-flight ticks to finish. It is
// idempotent.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopCh)
		e.done.Wait()
		e.logger.Info("engine stopped")
	})
}

// stepEnergy advances the ledger by the wall-clock delta since the last
// energy tick, then publishes fresh snapshots.
func (e *Engine) stepEnergy() {
	now := e.clock()

	e.mu.Lock()
	elapsed := now.Sub(e.lastEnergyTick).Minutes()
	e.lastEnergyTick = now
	e.mu.Unlock()

	e.ledger.TickAll(elapsed)
	e.publish()
}

// stepPatterns runs the pattern registry tick, then publishes fresh
// snapshots including the recomputed system health.
func (e *Engine) stepPatterns() {
	e.registry.Tick()
	e.publish()
}

// publish pushes the current snapshots to every stream. It runs outside
// all component locks: each snapshot is a copy taken before any callback
// fires.
func (e *Engine) publish() {
	resources := e.ledger.Snapshots()
	patterns := e.registry.Snapshots()
	summary := e.aggregator.SystemHealth()

	snapshot := Snapshot{
		Timestamp: e.clock(),
		Resources: resources,
		Patterns:  patterns,
		Health:    summary,
	}

	e.mu.Lock()
	resourceStreams := make(map[string]*stream.Stream[energy.Resource], len(e.resourceStreams))
	for id, s := range e.resourceStreams {
		resourceStreams[id] = s
	}
	patternStreams := make(map[string]*stream.Stream[pattern.Pattern], len(e.patternStreams))
	for id, s := range e.patternStreams {
		patternStreams[id] = s
	}
	e.mu.Unlock()

	for id, s := range resourceStreams {
		if res, ok := resources[id]; ok {
			s.Publish(res)
		}
	}
	for _, p := range patterns {
		if s, ok := patternStreams[p.ID]; ok {
			s.Publish(p)
		}
	}
	e.healthStream.Publish(summary)
	e.allStream.Publish(snapshot)
}

// ObserveResource returns the latest-value stream for one resource.
func (e *Engine) ObserveResource(id string) *stream.Stream[energy.Resource] {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.resourceStreams[id]
	if !ok {
		s = stream.New[energy.Resource]()
		if res, err := e.ledger.Snapshot(id); err == nil {
			s.Publish(res)
		}
		e.resourceStreams[id] = s
	}
	return s
}

// ObservePattern returns the latest-value stream for one pattern.
func (e *Engine) ObservePattern(id string) *stream.Stream[pattern.Pattern] {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.patternStreams[id]
	if !ok {
		s = stream.New[pattern.Pattern]()
		if p, err := e.registry.Snapshot(id); err == nil {
			s.Publish(p)
		}
		e.patternStreams[id] = s
	}
	return s
}

// ObserveAll returns the combined snapshot stream.
func (e *Engine) ObserveAll() *stream.Stream[Snapshot] {
	return e.allStream
}

// ObserveHealth returns the system health stream.
func (e *Engine) ObserveHealth() *stream.Stream[health.Summary] {
	return e.healthStream
}

// RegisterPattern adds a pattern to the registry and returns its id.
func (e *Engine) RegisterPattern(typ pattern.Type, initial *pattern.Metrics) string {
	return e.registry.Register(typ, initial)
}

// UpdateMetrics ingests a metric sample for one pattern and pushes the
// updated pattern snapshot to its observers.
func (e *Engine) UpdateMetrics(id string, patch pattern.MetricsPatch) error {
	if err := e.registry.UpdateMetrics(id, patch); err != nil {
		return err
	}

	e.mu.Lock()
	s := e.patternStreams[id]
	e.mu.Unlock()
	if s != nil {
		if p, err := e.registry.Snapshot(id); err == nil {
			s.Publish(p)
		}
	}
	return nil
}

// RemovePattern deletes a pattern from the registry.
func (e *Engine) RemovePattern(id string) error {
	return e.registry.Remove(id)
}

// CreateResource registers an additional resource in the ledger.
func (e *Engine) CreateResource(id string, capacity float64) error {
	return e.ledger.CreateResource(id, capacity)
}

// SetPhase switches a resource's drive phase.
func (e *Engine) SetPhase(id string, phase energy.Phase) error {
	return e.ledger.SetPhase(id, phase)
}

// Protect pauses active draining or charging for a resource.
func (e *Engine) Protect(id string) error {
	return e.ledger.Protect(id)
}

// Release lifts protection from a resource.
func (e *Engine) Release(id string) error {
	return e.ledger.Release(id)
}

// Resource returns a snapshot of one resource.
func (e *Engine) Resource(id string) (energy.Resource, error) {
	return e.ledger.Snapshot(id)
}

// Pattern returns a deep-copied snapshot of one pattern.
func (e *Engine) Pattern(id string) (pattern.Pattern, error) {
	return e.registry.Snapshot(id)
}

// Patterns returns deep-copied snapshots of all patterns.
func (e *Engine) Patterns() []pattern.Pattern {
	return e.registry.Snapshots()
}

// SystemHealth returns the current system-wide summary.
func (e *Engine) SystemHealth() health.Summary {
	return e.aggregator.SystemHealth()
}

// Insights returns the analysis view for one pattern.
func (e *Engine) Insights(id string) (pattern.Insights, error) {
	return e.registry.InsightsFor(id)
}

// Bottlenecks lists current system constraints.
func (e *Engine) Bottlenecks() []string {
	return e.aggregator.Bottlenecks()
}

// Recommendations lists actionable suggestions.
func (e *Engine) Recommendations() []string {
	return e.aggregator.Recommendations()
}

// StepEnergy advances the energy ledger by elapsedMinutes of simulated
// time and publishes snapshots. It exists for deterministic tests and
// offline simulation; the running driver uses wall-clock deltas.
func (e *Engine) StepEnergy(elapsedMinutes float64) {
	e.ledger.TickAll(elapsedMinutes)
	e.publish()
}

// StepPatterns runs one pattern registry tick and publishes snapshots.
func (e *Engine) StepPatterns() {
	e.stepPatterns()
}
