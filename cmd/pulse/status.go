package main

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vitalsim/pulse/internal/engine"
	"github.com/vitalsim/pulse/internal/journal"
	"github.com/vitalsim/pulse/internal/pattern"
)

var (
	statusMinVitality float64

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Print the current system health summary",
		Long: `Print the system health summary: pattern counts, lifecycle stage
distribution, system vitality, energy reserves, and any bottlenecks or
recommendations.

State is read from the journal, so the journal must be enabled in the
configuration for status to see a running engine's patterns. With
--min-vitality set, status exits non-zero when system vitality is below
the floor, which makes it usable as a deployment gate.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}
)

func init() {
	statusCmd.Flags().Float64Var(&statusMinVitality, "min-vitality", 0,
		"Exit non-zero when system vitality is below this floor")
	rootCmd.AddCommand(statusCmd)
}

func runStatus() error {
	cfg, err := loadConfigOrDefault()
	if err != nil {
		return err
	}

	eng, err := engine.New(cfg)
	if err != nil {
		return err
	}

	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("opening journal: %w", err)
		}
		defer j.Close()
		if _, err := j.Rehydrate(eng); err != nil {
			return fmt.Errorf("rehydrating from journal: %w", err)
		}
		eng.StepPatterns()
	}

	printSummary(eng)

	if statusMinVitality > 0 {
		current := eng.SystemHealth().Vitality.Current
		if current < statusMinVitality {
			return fmt.Errorf("system vitality %.2f is below the required floor %.2f",
				current, statusMinVitality)
		}
	}
	return nil
}

func printSummary(eng *engine.Engine) {
	s := eng.SystemHealth()

	header := color.New(color.FgCyan, color.Bold)
	label := color.New(color.FgWhite)
	good := color.New(color.FgGreen)
	warn := color.New(color.FgYellow)
	bad := color.New(color.FgRed)

	header.Println("System Health")
	label.Printf("  Patterns:   %d registered, %d evolved, %d stable\n",
		s.PatternCount, s.EvolvedCount, s.StableCount)
	label.Printf("  Strength:   %.2f mean   Coherence: %.2f mean\n",
		s.MeanStrength, s.MeanCoherence)

	vitalityColor := good
	switch {
	case s.Vitality.Current < 0.3:
		vitalityColor = bad
	case s.Vitality.Current < 0.5:
		vitalityColor = warn
	}
	label.Printf("  Vitality:   ")
	vitalityColor.Printf("%.2f", s.Vitality.Current)
	label.Printf("  (trend %+.3f, stability %.2f)\n", s.Vitality.Trend, s.Vitality.Stability)

	header.Println("\nLifecycle Stages")
	for _, stage := range pattern.Stages {
		n := s.StageHistogram[stage]
		marker := "  "
		if stage == pattern.StageDeclining && n > 0 {
			marker = warn.Sprint("! ")
		}
		label.Printf("  %s%-10s %d\n", marker, stage, n)
	}

	header.Println("\nEnergy")
	ratioColor := good
	switch {
	case s.Energy.MeanRatio < 0.2:
		ratioColor = bad
	case s.Energy.MeanRatio < 0.5:
		ratioColor = warn
	}
	label.Printf("  Resources:  %d   Reserves: ", s.Energy.ResourceCount)
	ratioColor.Printf("%.0f%%\n", s.Energy.MeanRatio*100)

	phases := make([]string, 0, len(s.Energy.DevelopmentPhases))
	for phase, n := range s.Energy.DevelopmentPhases {
		if n > 0 {
			phases = append(phases, fmt.Sprintf("%s=%d", phase, n))
		}
	}
	sort.Strings(phases)
	if len(phases) > 0 {
		label.Printf("  Phases:     %v\n", phases)
	}

	if bottlenecks := eng.Bottlenecks(); len(bottlenecks) > 0 {
		header.Println("\nBottlenecks")
		for _, b := range bottlenecks {
			bad.Printf("  - %s\n", b)
		}
	}
	if recs := eng.Recommendations(); len(recs) > 0 {
		header.Println("\nRecommendations")
		for _, r := range recs {
			label.Printf("  - %s\n", r)
		}
	}
}
