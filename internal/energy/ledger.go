// Package energy implements the resource ledger: a keyed registry of
// bounded quantities that decay, recover, or hold steady depending on
// their drive phase. The ledger owns its resources exclusively and hands
// out snapshots, never references.
package energy

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

var (
	// ErrInvalidConfiguration indicates a construction-time error such as
	// a non-positive capacity. It is fatal for the operation that raised it.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrNotFound indicates an operation referenced an unknown resource id.
	ErrNotFound = errors.New("resource not found")
)

const (
	// efficiencyBoost applies when efficiency is at or above the boost
	// threshold during charging; efficiencyPenalty applies otherwise.
	efficiencyBoost    = 1.2
	efficiencyPenalty  = 0.8
	boostThreshold     = 0.8
	recoveryThreshold  = 0.3
	focusChargeStep    = 0.1
	focusDischargeStep = 0.02
	focusMax           = 1.5
	focusMin           = 0.5
	focusStableFloor   = 0.8
	recoveryEffMax     = 1.2
	recoveryEffMin     = 0.8
)

// Config holds ledger tuning parameters.
type Config struct {
	// RecoveryRate is the charge gained per simulated minute before
	// efficiency scaling. Default: 0.05
	RecoveryRate float64
	// DecayRate is the charge lost per simulated minute before efficiency
	// scaling. Default: 0.05
	DecayRate float64
	// Clock overrides the time source (used by tests). Default: time.Now
	Clock func() time.Time
}

// DefaultConfig returns default ledger configuration.
func DefaultConfig() *Config {
	return &Config{
		RecoveryRate: 0.05,
		DecayRate:    0.05,
	}
}

// Ledger manages a keyed set of resources. All methods are safe for
// concurrent use; mutation happens under a single write lock so ticks for
// the same resource never interleave.
type Ledger struct {
	mu        sync.RWMutex
	resources map[string]*Resource

	recoveryRate float64
	decayRate    float64
	now          func() time.Time
}

// NewLedger creates an empty ledger.
func NewLedger(cfg *Config) *Ledger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	recovery := cfg.RecoveryRate
	if recovery <= 0 {
		recovery = 0.05
	}
	decay := cfg.DecayRate
	if decay <= 0 {
		decay = 0.05
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Ledger{
		resources:    make(map[string]*Resource),
		recoveryRate: recovery,
		decayRate:    decay,
		now:          clock,
	}
}

// CreateResource registers a new resource starting full, in the stable
// phase, with all multipliers neutral. A non-positive capacity or a
// duplicate id fails with ErrInvalidConfiguration.
func (l *Ledger) CreateResource(id string, capacity float64) error {
	if capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive (got %v)", ErrInvalidConfiguration, capacity)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.resources[id]; exists {
		return fmt.Errorf("%w: resource %q already registered", ErrInvalidConfiguration, id)
	}

	now := l.now()
	l.resources[id] = &Resource{
		ID:                 id,
		Current:            capacity,
		Capacity:           capacity,
		Phase:              PhaseStable,
		Efficiency:         1.0,
		FocusMultiplier:    1.0,
		RecoveryEfficiency: 1.0,
		DevelopmentPhase:   derivedDevelopmentPhase(1.0, 1.0),
		LastTransition:     now,
	}
	return nil
}

// SetPhase switches the drive phase for a resource and records the
// transition time. Setting the current phase again is a no-op.
func (l *Ledger) SetPhase(id string, phase Phase) error {
	if !phase.IsValid() {
		return fmt.Errorf("%w: unknown phase %q", ErrInvalidConfiguration, phase)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	res, ok := l.resources[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if res.Phase == phase {
		return nil
	}
	res.Phase = phase
	res.LastTransition = l.now()
	return nil
}

// Protect pauses active draining or charging by forcing the resource into
// the stable phase. It does not block subsequent ticks. Repeated calls
// are idempotent: an already-protected resource is left untouched.
func (l *Ledger) Protect(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, ok := l.resources[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if res.Protected {
		return nil
	}
	res.Protected = true
	res.Phase = PhaseStable
	res.LastTransition = l.now()
	return nil
}

// Release lifts protection. The resource stays in the stable phase until
// an external caller switches it; release only re-enables phase changes.
func (l *Ledger) Release(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, ok := l.resources[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if !res.Protected {
		return nil
	}
	res.Protected = false
	res.LastTransition = l.now()
	return nil
}

// Tick advances one resource by elapsedMinutes of simulated time.
// Negative elapsed time is clamped to zero. Numeric inputs never fail;
// only an unknown id does.
func (l *Ledger) Tick(id string, elapsedMinutes float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, ok := l.resources[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	l.advance(res, elapsedMinutes)
	return nil
}

// TickAll advances every registered resource by elapsedMinutes.
func (l *Ledger) TickAll(elapsedMinutes float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, res := range l.resources {
		l.advance(res, elapsedMinutes)
	}
}

// advance applies one tick to a resource. Caller must hold the write lock.
func (l *Ledger) advance(res *Resource, elapsedMinutes float64) {
	if elapsedMinutes < 0 {
		elapsedMinutes = 0
	}

	effFactor := efficiencyPenalty
	if res.Efficiency >= boostThreshold {
		effFactor = efficiencyBoost
	}

	switch res.Phase {
	case PhaseCharging:
		res.Current += l.recoveryRate * elapsedMinutes * effFactor * res.RecoveryEfficiency
		res.FocusMultiplier = math.Min(focusMax, res.FocusMultiplier+focusChargeStep)
		// Recovery efficiency drifts up faster while deeply depleted.
		step := 0.02
		if res.Ratio() < recoveryThreshold {
			step = 0.05
		}
		res.RecoveryEfficiency = math.Min(recoveryEffMax, res.RecoveryEfficiency+step)
	case PhaseDischarging:
		res.Current -= l.decayRate * elapsedMinutes * effFactor / res.FocusMultiplier
		res.FocusMultiplier = math.Max(focusMin, res.FocusMultiplier-focusDischargeStep)
	case PhaseStable:
		if res.FocusMultiplier < focusStableFloor {
			res.FocusMultiplier = focusStableFloor
		}
	}

	// Clamp, then re-derive the dependent fields.
	res.Current = clamp(res.Current, 0, res.Capacity)

	hoursSinceTransition := l.now().Sub(res.LastTransition).Hours()
	if hoursSinceTransition < 0 {
		hoursSinceTransition = 0
	}
	sustainFactor := math.Min(1, hoursSinceTransition/8)
	res.Efficiency = clamp(0.7*res.Ratio()+0.3*sustainFactor, 0, 1) * res.Efficiency
	res.Efficiency = clamp(res.Efficiency, 0, 1)

	res.DevelopmentPhase = derivedDevelopmentPhase(res.Ratio(), res.FocusMultiplier)
	if res.DevelopmentPhase == DevelopmentSustained {
		res.SustainedDuration++
	} else {
		res.SustainedDuration = 0
	}
}

// Snapshot returns a copy of one resource.
func (l *Ledger) Snapshot(id string) (Resource, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	res, ok := l.resources[id]
	if !ok {
		return Resource{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return *res, nil
}

// Snapshots returns copies of all resources keyed by id.
func (l *Ledger) Snapshots() map[string]Resource {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]Resource, len(l.resources))
	for id, res := range l.resources {
		out[id] = *res
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
