package pattern

import "fmt"

// Insights is the per-pattern analysis view returned to external callers.
type Insights struct {
	ID             string
	Type           Type
	Stage          int
	LifecycleStage Stage
	// EvolutionReady reports whether the stage-advancement criteria hold
	// right now
	EvolutionReady  bool
	Metrics         Metrics
	Lifecycle       Lifecycle
	Recommendations []string
}

// stageRecommendations holds the one stage-specific recommendation added
// after the threshold checks.
var stageRecommendations = map[Stage]string{
	StageEmerging:  "maintain consistent usage to establish a baseline",
	StageGrowing:   "keep current conditions; growth trend is positive",
	StageStable:    "introduce controlled variation to avoid stagnation",
	StageAdapting:  "reduce concurrent changes until metrics settle",
	StageDeclining: "review relevance; consider retiring or reworking the pattern",
}

// InsightsFor returns the analysis view for one pattern, including a
// recommendation list built from fixed threshold checks plus one
// stage-specific entry.
func (r *Registry) InsightsFor(id string) (Insights, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.patterns[id]
	if !ok {
		return Insights{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	return Insights{
		ID:              p.ID,
		Type:            p.Type,
		Stage:           p.Stage,
		LifecycleStage:  p.Lifecycle.Stage,
		EvolutionReady:  evolutionReady(p),
		Metrics:         p.Metrics,
		Lifecycle:       copyLifecycle(p.Lifecycle),
		Recommendations: recommendationsFor(p),
	}, nil
}

// recommendationsFor builds the recommendation list for a pattern.
func recommendationsFor(p *Pattern) []string {
	var recs []string
	if p.Metrics.Strength < 0.5 {
		recs = append(recs, "increase usage frequency")
	}
	if p.Metrics.Coherence < 0.5 {
		recs = append(recs, "improve structural consistency")
	}
	if p.Metrics.Stability < 0.5 {
		recs = append(recs, "stabilize execution cadence")
	}
	if p.Metrics.Adaptability < 0.4 {
		recs = append(recs, "expose the pattern to more varied contexts")
	}
	if rec, ok := stageRecommendations[p.Lifecycle.Stage]; ok {
		recs = append(recs, rec)
	}
	return recs
}
