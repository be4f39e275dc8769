// Package health folds the pattern registry and the energy ledger into
// system-wide summaries: mean metric scores, lifecycle distribution,
// system vitality, and human-readable bottleneck and recommendation
// lists.
package health

import (
	"fmt"

	"github.com/vitalsim/pulse/internal/energy"
	"github.com/vitalsim/pulse/internal/pattern"
	"github.com/vitalsim/pulse/internal/stats"
)

const stableStabilityThreshold = 0.7

// SystemVitality is the mean of the per-pattern vitality components.
type SystemVitality struct {
	Current   float64
	Trend     float64
	Stability float64
}

// EnergySummary aggregates the ledger's resources.
type EnergySummary struct {
	// ResourceCount is the number of registered resources
	ResourceCount int
	// MeanRatio is the mean fill ratio across resources
	MeanRatio float64
	// DevelopmentPhases counts resources per development phase
	DevelopmentPhases map[energy.DevelopmentPhase]int
}

// Summary is the system-wide health view.
type Summary struct {
	// PatternCount is the number of registered patterns
	PatternCount int
	// MeanStrength is the mean strength across all patterns
	MeanStrength float64
	// MeanCoherence is the mean coherence across all patterns
	MeanCoherence float64
	// EvolvedCount is the number of patterns beyond evolution stage 1
	EvolvedCount int
	// StableCount is the number of patterns with stability >= 0.7
	StableCount int
	// StageHistogram counts patterns per lifecycle stage; every stage key
	// is always present
	StageHistogram map[pattern.Stage]int
	// Vitality is the system-wide vitality
	Vitality SystemVitality
	// Energy summarizes the ledger
	Energy EnergySummary
}

// Aggregator computes system health from the registry and the ledger.
type Aggregator struct {
	registry *pattern.Registry
	ledger   *energy.Ledger
}

// NewAggregator creates an aggregator over the given registry and ledger.
func NewAggregator(registry *pattern.Registry, ledger *energy.Ledger) *Aggregator {
	return &Aggregator{registry: registry, ledger: ledger}
}

// SystemHealth returns the current system-wide summary. An empty registry
// yields all-zero numeric fields and an all-zero stage histogram; it
// never fails.
func (a *Aggregator) SystemHealth() Summary {
	patterns := a.registry.Snapshots()

	histogram := make(map[pattern.Stage]int, len(pattern.Stages))
	for _, s := range pattern.Stages {
		histogram[s] = 0
	}

	summary := Summary{
		PatternCount:   len(patterns),
		StageHistogram: histogram,
		Energy:         a.energySummary(),
	}

	if len(patterns) == 0 {
		return summary
	}

	strengths := make([]float64, 0, len(patterns))
	coherences := make([]float64, 0, len(patterns))
	vitals := make([]float64, 0, len(patterns))
	trends := make([]float64, 0, len(patterns))
	stabilities := make([]float64, 0, len(patterns))

	for _, p := range patterns {
		strengths = append(strengths, p.Metrics.Strength)
		coherences = append(coherences, p.Metrics.Coherence)
		vitals = append(vitals, p.Lifecycle.Vitality.Current)
		trends = append(trends, p.Lifecycle.Vitality.Trend)
		stabilities = append(stabilities, p.Lifecycle.Vitality.Stability)

		histogram[p.Lifecycle.Stage]++
		if p.Stage > 1 {
			summary.EvolvedCount++
		}
		if p.Metrics.Stability >= stableStabilityThreshold {
			summary.StableCount++
		}
	}

	summary.MeanStrength = stats.Mean(strengths)
	summary.MeanCoherence = stats.Mean(coherences)
	summary.Vitality = SystemVitality{
		Current:   stats.Mean(vitals),
		Trend:     stats.Mean(trends),
		Stability: stats.Mean(stabilities),
	}
	return summary
}

// energySummary folds the ledger's snapshots.
func (a *Aggregator) energySummary() EnergySummary {
	phases := map[energy.DevelopmentPhase]int{
		energy.DevelopmentPeak:         0,
		energy.DevelopmentSustained:    0,
		energy.DevelopmentConservation: 0,
		energy.DevelopmentRecovery:     0,
	}
	summary := EnergySummary{DevelopmentPhases: phases}
	if a.ledger == nil {
		return summary
	}

	resources := a.ledger.Snapshots()
	summary.ResourceCount = len(resources)
	if len(resources) == 0 {
		return summary
	}

	ratios := make([]float64, 0, len(resources))
	for _, r := range resources {
		ratios = append(ratios, r.Ratio())
		phases[r.DevelopmentPhase]++
	}
	summary.MeanRatio = stats.Mean(ratios)
	return summary
}

// Bottlenecks lists the current system constraints in human-readable
// form. An empty list means no thresholds tripped.
func (a *Aggregator) Bottlenecks() []string {
	var out []string
	s := a.SystemHealth()

	if s.PatternCount > 0 {
		if s.MeanStrength < 0.4 {
			out = append(out, fmt.Sprintf("mean pattern strength is low (%.2f)", s.MeanStrength))
		}
		if s.MeanCoherence < 0.4 {
			out = append(out, fmt.Sprintf("mean pattern coherence is low (%.2f)", s.MeanCoherence))
		}
		if declining := s.StageHistogram[pattern.StageDeclining]; declining > s.PatternCount/2 {
			out = append(out, fmt.Sprintf("%d of %d patterns are declining", declining, s.PatternCount))
		}
		if s.Vitality.Current < 0.3 && s.Vitality.Trend < 0 {
			out = append(out, "system vitality is low and falling")
		}
	}
	if s.Energy.ResourceCount > 0 {
		if s.Energy.MeanRatio < 0.2 {
			out = append(out, fmt.Sprintf("energy reserves nearly depleted (%.0f%%)", s.Energy.MeanRatio*100))
		}
		if n := s.Energy.DevelopmentPhases[energy.DevelopmentRecovery]; n == s.Energy.ResourceCount {
			out = append(out, "all resources are in the recovery phase")
		}
	}
	return out
}

// Recommendations turns the current summary into actionable suggestions.
func (a *Aggregator) Recommendations() []string {
	var out []string
	s := a.SystemHealth()

	if s.PatternCount == 0 {
		return []string{"register patterns and feed metric samples to begin analysis"}
	}
	if s.MeanStrength < 0.5 {
		out = append(out, "increase sample frequency for weak patterns")
	}
	if s.EvolvedCount == 0 && s.PatternCount >= 3 {
		out = append(out, "no pattern has evolved yet; sustain strength above 0.8 to trigger evolution")
	}
	if s.StageHistogram[pattern.StageAdapting] > 0 {
		out = append(out, "hold conditions steady while adapting patterns settle")
	}
	if s.Energy.MeanRatio < 0.3 && s.Energy.ResourceCount > 0 {
		out = append(out, "switch depleted resources to the charging phase")
	}
	return out
}
