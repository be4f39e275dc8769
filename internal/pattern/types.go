package pattern

import (
	"fmt"
	"time"
)

// Type classifies what kind of behavior a pattern captures.
type Type string

const (
	TypeStructural Type = "structural"
	TypeBehavioral Type = "behavioral"
	TypeCognitive  Type = "cognitive"
)

// IsValid checks if the pattern type value is valid
func (t Type) IsValid() bool {
	switch t {
	case TypeStructural, TypeBehavioral, TypeCognitive:
		return true
	}
	return false
}

// Stage represents a pattern's lifecycle stage.
type Stage string

const (
	StageEmerging  Stage = "emerging"
	StageGrowing   Stage = "growing"
	StageStable    Stage = "stable"
	StageAdapting  Stage = "adapting"
	StageDeclining Stage = "declining"
)

// Stages lists all lifecycle stages in their canonical order.
var Stages = []Stage{StageEmerging, StageGrowing, StageStable, StageAdapting, StageDeclining}

// IsValid checks if the stage value is valid
func (s Stage) IsValid() bool {
	switch s {
	case StageEmerging, StageGrowing, StageStable, StageAdapting, StageDeclining:
		return true
	}
	return false
}

// Statistics holds the rolling statistical summary of a pattern's
// strength history.
type Statistics struct {
	Mean     float64
	Variance float64
	Skewness float64
	Kurtosis float64
	Trend    float64
}

// Metrics are the five core scores of a pattern, each within [0, 1],
// plus the derived statistics over its history.
type Metrics struct {
	Strength     float64
	Coherence    float64
	Resonance    float64
	Stability    float64
	Adaptability float64
	Statistics   Statistics
}

// Validate checks that all metric scores are within [0, 1].
func (m *Metrics) Validate() error {
	check := func(name string, v float64) error {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0, 1] (got %v)", name, v)
		}
		return nil
	}
	if err := check("strength", m.Strength); err != nil {
		return err
	}
	if err := check("coherence", m.Coherence); err != nil {
		return err
	}
	if err := check("resonance", m.Resonance); err != nil {
		return err
	}
	if err := check("stability", m.Stability); err != nil {
		return err
	}
	return check("adaptability", m.Adaptability)
}

// Vitality is the weighted combination of the five metric scores used to
// drive lifecycle decisions.
func (m *Metrics) Vitality() float64 {
	return m.Strength*0.3 + m.Coherence*0.2 + m.Resonance*0.2 +
		m.Stability*0.2 + m.Adaptability*0.1
}

// MetricsPatch is a partial metrics update. Nil fields are left
// untouched; set fields are clamped to [0, 1] on merge.
type MetricsPatch struct {
	Strength     *float64
	Coherence    *float64
	Resonance    *float64
	Stability    *float64
	Adaptability *float64
}

// Transition records one lifecycle stage change.
type Transition struct {
	Timestamp time.Time
	From      Stage
	To        Stage
	Trigger   string
}

// Prediction is the forecast of a pattern's next lifecycle stage.
type Prediction struct {
	NextStage  Stage
	Confidence float64
	Timeframe  time.Duration
}

// Vitality summarizes a pattern's recent health.
type Vitality struct {
	// Current is the latest vitality score, within [0, 1]
	Current float64
	// Trend is the slope of the recent vitality series
	Trend float64
	// Stability penalizes vitality variance, within [0, 1]
	Stability float64
}

// Lifecycle tracks where a pattern sits in its stage progression.
type Lifecycle struct {
	// Stage is only ever changed through the transition-recording path
	Stage Stage
	// Age counts ticks spent in the current stage
	Age int
	// Transitions is append-only and strictly time-ordered
	Transitions []Transition
	// Prediction forecasts the next stage
	Prediction Prediction
	// Vitality summarizes recent health
	Vitality Vitality
}

// HistoryEntry is one snapshot of a pattern's metrics and lifecycle at a
// point in time.
type HistoryEntry struct {
	Timestamp time.Time
	Metrics   Metrics
	Lifecycle Lifecycle
}

// Pattern is one tracked entity. Instances are owned exclusively by the
// registry; external callers only see copies.
type Pattern struct {
	ID   string
	Type Type
	// Stage is the evolution stage, starting at 1
	Stage     int
	Metrics   Metrics
	Lifecycle Lifecycle
	// History holds at most the registry's history limit of entries,
	// oldest evicted first
	History []HistoryEntry
}

// transitionTriggers maps from→to stage pairs to their trigger labels.
// Pairs not listed fall back to triggerDefault.
var transitionTriggers = map[[2]Stage]string{
	{StageEmerging, StageGrowing}:   "initial_growth",
	{StageGrowing, StageStable}:     "achieved_stability",
	{StageStable, StageAdapting}:    "environment_shift",
	{StageAdapting, StageGrowing}:   "successful_adaptation",
	{StageAdapting, StageStable}:    "achieved_stability",
	{StageGrowing, StageDeclining}:  "growth_stalled",
	{StageEmerging, StageDeclining}: "relevance_loss",
	{StageStable, StageDeclining}:   "relevance_loss",
	{StageAdapting, StageDeclining}: "relevance_loss",
	{StageDeclining, StageAdapting}: "revival_attempt",
	{StageDeclining, StageEmerging}: "restart",
}

const triggerDefault = "natural_evolution"

// triggerFor looks up the trigger label for a stage transition.
func triggerFor(from, to Stage) string {
	if trigger, ok := transitionTriggers[[2]Stage{from, to}]; ok {
		return trigger
	}
	return triggerDefault
}

// predictionSpec describes how to forecast the next stage from a given
// current stage.
type predictionSpec struct {
	next       Stage
	timeframe  time.Duration
	confidence func(m Metrics, vitalityTrend float64) float64
}

// predictionTable is the fixed per-stage forecast: which stage comes
// next, over what horizon, and how confidence derives from the current
// metrics and vitality trend.
var predictionTable = map[Stage]predictionSpec{
	StageEmerging: {
		next:      StageGrowing,
		timeframe: 5 * time.Minute,
		confidence: func(m Metrics, trend float64) float64 {
			return clamp01(0.3 + 0.4*m.Strength + 2*max0(trend))
		},
	},
	StageGrowing: {
		next:      StageStable,
		timeframe: 10 * time.Minute,
		confidence: func(m Metrics, trend float64) float64 {
			return clamp01(0.4 + 0.4*m.Stability + max0(trend))
		},
	},
	StageStable: {
		next:      StageAdapting,
		timeframe: 30 * time.Minute,
		confidence: func(m Metrics, trend float64) float64 {
			return clamp01(0.5 + 0.3*m.Coherence - max0(trend))
		},
	},
	StageAdapting: {
		next:      StageGrowing,
		timeframe: 10 * time.Minute,
		confidence: func(m Metrics, trend float64) float64 {
			return clamp01(0.3 + 0.5*m.Adaptability + max0(trend))
		},
	},
	StageDeclining: {
		next:      StageDeclining,
		timeframe: 5 * time.Minute,
		confidence: func(m Metrics, trend float64) float64 {
			return clamp01(0.6 + 2*max0(-trend))
		},
	},
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func max0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
