// Package pattern implements the lifecycle registry: a keyed set of
// evolving entities whose metrics are sampled externally and whose
// lifecycle stage is re-derived each tick from rolling statistics over a
// bounded history window.
package pattern

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vitalsim/pulse/internal/stats"
)

// ErrNotFound indicates an operation referenced an unknown pattern id.
var ErrNotFound = errors.New("pattern not found")

const (
	// defaultHistoryLimit bounds each pattern's history ring.
	defaultHistoryLimit = 100
	// evolutionWindow is how many recent entries feed the evolution check.
	evolutionWindow = 5
	// lifecycleWindow is how many recent entries feed stage derivation.
	lifecycleWindow = 20
	// maxEvolutionStage caps the evolution stage counter.
	maxEvolutionStage = 10

	evolutionStrengthThreshold  = 0.8
	evolutionStabilityThreshold = 0.7
	evolutionBonus              = 0.1
)

// Config holds registry tuning parameters.
type Config struct {
	// HistoryLimit bounds each pattern's history. Default: 100
	HistoryLimit int
	// Clock overrides the time source (used by tests). Default: time.Now
	Clock func() time.Time
	// NewID overrides id generation (used by tests). Default: uuid.NewString
	NewID func() string
}

// DefaultConfig returns default registry configuration.
func DefaultConfig() *Config {
	return &Config{
		HistoryLimit: defaultHistoryLimit,
	}
}

// Registry owns the keyed map of all patterns. All methods are safe for
// concurrent use; Tick runs to completion under the write lock so ticks
// for the same pattern never interleave.
type Registry struct {
	mu       sync.RWMutex
	patterns map[string]*Pattern

	historyLimit int
	now          func() time.Time
	newID        func() string
}

// NewRegistry creates an empty pattern registry.
func NewRegistry(cfg *Config) *Registry {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	return &Registry{
		patterns:     make(map[string]*Pattern),
		historyLimit: limit,
		now:          clock,
		newID:        newID,
	}
}

// Register creates a new pattern at evolution stage 1 in the emerging
// lifecycle stage with an empty history, and returns its id. A nil
// initial leaves all metric scores at zero.
func (r *Registry) Register(typ Type, initial *Metrics) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := &Pattern{
		ID:    r.newID(),
		Type:  typ,
		Stage: 1,
		Lifecycle: Lifecycle{
			Stage: StageEmerging,
		},
	}
	if initial != nil {
		p.Metrics = *initial
		p.Metrics.Strength = clamp01(p.Metrics.Strength)
		p.Metrics.Coherence = clamp01(p.Metrics.Coherence)
		p.Metrics.Resonance = clamp01(p.Metrics.Resonance)
		p.Metrics.Stability = clamp01(p.Metrics.Stability)
		p.Metrics.Adaptability = clamp01(p.Metrics.Adaptability)
	}

	r.patterns[p.ID] = p
	return p.ID
}

// UpdateMetrics merges a partial update into a pattern's metrics and
// appends a history snapshot, evicting the oldest entry beyond the
// history limit.
func (r *Registry) UpdateMetrics(id string, patch MetricsPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.patterns[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	if patch.Strength != nil {
		p.Metrics.Strength = clamp01(*patch.Strength)
	}
	if patch.Coherence != nil {
		p.Metrics.Coherence = clamp01(*patch.Coherence)
	}
	if patch.Resonance != nil {
		p.Metrics.Resonance = clamp01(*patch.Resonance)
	}
	if patch.Stability != nil {
		p.Metrics.Stability = clamp01(*patch.Stability)
	}
	if patch.Adaptability != nil {
		p.Metrics.Adaptability = clamp01(*patch.Adaptability)
	}

	r.appendHistory(p)
	return nil
}

// Remove deletes a pattern from the registry.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.patterns[id]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	delete(r.patterns, id)
	return nil
}

// appendHistory records the current metrics and lifecycle. Caller must
// hold the write lock.
func (r *Registry) appendHistory(p *Pattern) {
	entry := HistoryEntry{
		Timestamp: r.now(),
		Metrics:   p.Metrics,
		Lifecycle: copyLifecycle(p.Lifecycle),
	}
	p.History = append(p.History, entry)
	if len(p.History) > r.historyLimit {
		// FIFO eviction: shift down in place to keep the backing array.
		overflow := len(p.History) - r.historyLimit
		copy(p.History, p.History[overflow:])
		p.History = p.History[:r.historyLimit]
	}
}

// Tick recomputes evolution and lifecycle state for every registered
// pattern. It never fails: patterns lacking sufficient history are
// skipped for the cycle.
func (r *Registry) Tick() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.patterns {
		r.tickEvolution(p)
		r.tickLifecycle(p)
	}
}

// tickEvolution applies the stage-advancement rule: sustained high
// strength and stability with a rising strength trend over the recent
// window. Caller must hold the write lock.
func (r *Registry) tickEvolution(p *Pattern) {
	// Refresh the statistical summary on every tick so lifecycle rules
	// never see stale variance.
	strengths := strengthHistory(p)
	p.Metrics.Statistics = computeStatistics(strengths)

	if !evolutionReady(p) {
		return
	}

	if p.Stage < maxEvolutionStage {
		p.Stage++
	}
	p.Metrics.Strength = clamp01(p.Metrics.Strength + evolutionBonus)
	p.Metrics.Adaptability = clamp01(p.Metrics.Adaptability + evolutionBonus)
	p.Metrics.Statistics = computeStatistics(strengthHistory(p))
}

// evolutionReady reports whether the evolution criteria currently hold.
// Caller must hold at least the read lock.
func evolutionReady(p *Pattern) bool {
	if len(p.History) < evolutionWindow {
		return false
	}

	recent := p.History[len(p.History)-evolutionWindow:]
	strengths := make([]float64, 0, evolutionWindow)
	stabilities := make([]float64, 0, evolutionWindow)
	for _, e := range recent {
		strengths = append(strengths, e.Metrics.Strength)
		stabilities = append(stabilities, e.Metrics.Stability)
	}

	return stats.Mean(strengths) >= evolutionStrengthThreshold &&
		stats.Mean(stabilities) >= evolutionStabilityThreshold &&
		stats.Trend(strengths) > 0
}

// tickLifecycle re-derives the lifecycle stage from the recent history
// window and records a transition when the stage changes. Caller must
// hold the write lock.
func (r *Registry) tickLifecycle(p *Pattern) {
	window := p.History
	if len(window) > lifecycleWindow {
		window = window[len(window)-lifecycleWindow:]
	}
	if len(window) < 2 {
		return
	}

	series := make([]float64, 0, len(window))
	for _, e := range window {
		series = append(series, e.Metrics.Vitality())
	}
	vitality := stats.Mean(series)
	vitalityTrend := stats.Trend(series)

	next := deriveStage(vitality, vitalityTrend, p.Metrics.Statistics.Variance)
	if next != p.Lifecycle.Stage {
		p.Lifecycle.Transitions = append(p.Lifecycle.Transitions, Transition{
			Timestamp: r.now(),
			From:      p.Lifecycle.Stage,
			To:        next,
			Trigger:   triggerFor(p.Lifecycle.Stage, next),
		})
		p.Lifecycle.Stage = next
		p.Lifecycle.Age = 0
	} else {
		p.Lifecycle.Age++
	}

	p.Lifecycle.Vitality = Vitality{
		Current:   clamp01(vitality),
		Trend:     vitalityTrend,
		Stability: clamp01(1 - 10*stats.Variance(series)),
	}

	forecast := predictionTable[p.Lifecycle.Stage]
	p.Lifecycle.Prediction = Prediction{
		NextStage:  forecast.next,
		Confidence: forecast.confidence(p.Metrics, vitalityTrend),
		Timeframe:  forecast.timeframe,
	}
}

// deriveStage evaluates the ordered lifecycle rules; the first match
// wins.
func deriveStage(vitality, vitalityTrend, variance float64) Stage {
	switch {
	case vitality < 0.3 && vitalityTrend < 0:
		return StageDeclining
	case vitality < 0.5 && variance > 0.1:
		return StageAdapting
	case vitality >= 0.7 && variance < 0.05:
		return StageStable
	case vitality >= 0.5 && vitalityTrend > 0:
		return StageGrowing
	default:
		return StageEmerging
	}
}

// strengthHistory extracts the full strength series from a pattern's
// history.
func strengthHistory(p *Pattern) []float64 {
	out := make([]float64, 0, len(p.History))
	for _, e := range p.History {
		out = append(out, e.Metrics.Strength)
	}
	return out
}

// computeStatistics summarizes a strength series.
func computeStatistics(values []float64) Statistics {
	moments := stats.ComputeMoments(values)
	return Statistics{
		Mean:     stats.Mean(values),
		Variance: stats.Variance(values),
		Skewness: moments.Skewness,
		Kurtosis: moments.Kurtosis,
		Trend:    stats.Trend(values),
	}
}

// Snapshot returns a deep copy of one pattern.
func (r *Registry) Snapshot(id string) (Pattern, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.patterns[id]
	if !ok {
		return Pattern{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return copyPattern(p), nil
}

// Snapshots returns deep copies of all patterns.
func (r *Registry) Snapshots() []Pattern {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Pattern, 0, len(r.patterns))
	for _, p := range r.patterns {
		out = append(out, copyPattern(p))
	}
	return out
}

// Count returns the number of registered patterns.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.patterns)
}

func copyPattern(p *Pattern) Pattern {
	out := *p
	out.Lifecycle = copyLifecycle(p.Lifecycle)
	out.History = make([]HistoryEntry, len(p.History))
	for i, e := range p.History {
		out.History[i] = e
		out.History[i].Lifecycle = copyLifecycle(e.Lifecycle)
	}
	return out
}

func copyLifecycle(l Lifecycle) Lifecycle {
	out := l
	out.Transitions = append([]Transition{}, l.Transitions...)
	return out
}
