package energy

import (
	"fmt"
	"time"
)

// Phase represents the active drive applied to a resource each tick.
type Phase string

const (
	PhaseCharging    Phase = "charging"
	PhaseDischarging Phase = "discharging"
	PhaseStable      Phase = "stable"
)

// IsValid checks if the phase value is valid
func (p Phase) IsValid() bool {
	switch p {
	case PhaseCharging, PhaseDischarging, PhaseStable:
		return true
	}
	return false
}

// DevelopmentPhase classifies a resource by its fill ratio and focus
// multiplier. It is derived on every tick and never assigned directly.
type DevelopmentPhase string

const (
	DevelopmentPeak         DevelopmentPhase = "peak"
	DevelopmentSustained    DevelopmentPhase = "sustained"
	DevelopmentConservation DevelopmentPhase = "conservation"
	DevelopmentRecovery     DevelopmentPhase = "recovery"
)

// IsValid checks if the development phase value is valid
func (p DevelopmentPhase) IsValid() bool {
	switch p {
	case DevelopmentPeak, DevelopmentSustained, DevelopmentConservation, DevelopmentRecovery:
		return true
	}
	return false
}

// Resource is one decaying/recovering quantity tracked by the ledger.
// Instances are owned exclusively by the ledger; callers only ever see
// copies returned by Snapshot.
type Resource struct {
	// ID identifies the resource within the ledger
	ID string
	// Current is the present level, always within [0, Capacity]
	Current float64
	// Capacity is the upper bound, strictly positive
	Capacity float64
	// Phase is the drive applied on the next tick
	Phase Phase
	// Efficiency modulates recovery, within [0, 1]
	Efficiency float64
	// FocusMultiplier amplifies or dampens drain, within [0.5, 1.5]
	FocusMultiplier float64
	// RecoveryEfficiency scales charging gains, within [0.8, 1.2]
	RecoveryEfficiency float64
	// SustainedDuration counts consecutive ticks spent in the sustained
	// development phase
	SustainedDuration int
	// DevelopmentPhase is derived from Current/Capacity and FocusMultiplier
	DevelopmentPhase DevelopmentPhase
	// LastTransition is when the phase last changed
	LastTransition time.Time
	// Protected marks the resource as paused by an external guardian
	Protected bool
}

// Ratio returns Current/Capacity.
func (r *Resource) Ratio() float64 {
	return r.Current / r.Capacity
}

// Validate checks resource invariants.
func (r *Resource) Validate() error {
	if r.Capacity <= 0 {
		return fmt.Errorf("capacity must be positive (got %v)", r.Capacity)
	}
	if r.Current < 0 || r.Current > r.Capacity {
		return fmt.Errorf("current %v outside [0, %v]", r.Current, r.Capacity)
	}
	if !r.Phase.IsValid() {
		return fmt.Errorf("invalid phase: %s", r.Phase)
	}
	if !r.DevelopmentPhase.IsValid() {
		return fmt.Errorf("invalid development phase: %s", r.DevelopmentPhase)
	}
	return nil
}

// derivedDevelopmentPhase classifies a resource from its fill ratio and
// focus multiplier.
func derivedDevelopmentPhase(ratio, focusMultiplier float64) DevelopmentPhase {
	switch {
	case ratio < recoveryThreshold:
		return DevelopmentRecovery
	case ratio > 0.8 && focusMultiplier > 1.2:
		return DevelopmentPeak
	case ratio > 0.6:
		return DevelopmentSustained
	default:
		return DevelopmentConservation
	}
}
