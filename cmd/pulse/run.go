package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/vitalsim/pulse/internal/config"
	"github.com/vitalsim/pulse/internal/engine"
	"github.com/vitalsim/pulse/internal/journal"
	"github.com/vitalsim/pulse/internal/pattern"
)

var (
	runDemo     bool
	runDuration time.Duration

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Start the engine and its periodic drivers",
		Long: `Start the engine: the energy ticker advances the resource ledger, the
pattern ticker re-derives lifecycle stages, and every tick publishes a
fresh snapshot to subscribers. Runs until interrupted.

With --demo, a synthetic metric producer registers three patterns and
feeds them oscillating samples, which is useful for watching the
lifecycle predictor work without wiring a real producer.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine()
		},
	}
)

func init() {
	runCmd.Flags().BoolVar(&runDemo, "demo", false, "Feed synthetic metric samples")
	runCmd.Flags().DurationVar(&runDuration, "duration", 0, "Stop after this long (0 = run until interrupted)")
	rootCmd.AddCommand(runCmd)
}

// loadConfigOrDefault reads the config file, falling back to defaults
// when the file does not exist.
func loadConfigOrDefault() (*config.Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return config.DefaultConfig(), nil
	}
	return config.LoadConfig(configPath)
}

// newLogger builds a tint-backed slog logger at the configured level.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

func runEngine() error {
	cfg, err := loadConfigOrDefault()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	eng, err := engine.New(cfg, engine.WithLogger(logger))
	if err != nil {
		return err
	}

	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("opening journal: %w", err)
		}
		defer j.Close()

		mapping, err := j.Rehydrate(eng)
		if err != nil {
			return fmt.Errorf("rehydrating from journal: %w", err)
		}
		if len(mapping) > 0 {
			logger.Info("rehydrated patterns from journal", "count", len(mapping))
		}
		j.Attach(eng)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if runDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runDuration)
		defer cancel()
	}

	// Log every pattern stage change as it is published. Both drivers
	// publish, so the seen-stage map needs its own lock.
	var stageMu sync.Mutex
	lastStages := make(map[string]pattern.Stage)
	eng.ObserveAll().Subscribe(func(s engine.Snapshot) {
		stageMu.Lock()
		defer stageMu.Unlock()
		for _, p := range s.Patterns {
			if prev, ok := lastStages[p.ID]; ok && prev != p.Lifecycle.Stage {
				logger.Info("pattern stage changed",
					"pattern", p.ID,
					"from", prev,
					"to", p.Lifecycle.Stage,
					"vitality", fmt.Sprintf("%.2f", p.Lifecycle.Vitality.Current))
			}
			lastStages[p.ID] = p.Lifecycle.Stage
		}
	})

	if err := eng.Start(ctx); err != nil {
		return err
	}
	defer eng.Stop()

	g, gctx := errgroup.WithContext(ctx)
	if runDemo {
		g.Go(func() error {
			return feedDemoSamples(gctx, eng, logger)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	logger.Info("pulse running", "demo", runDemo, "journal", cfg.Journal.Enabled)
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// feedDemoSamples registers three patterns and feeds them oscillating
// metric samples, paced by a rate limiter so the engine's drivers see a
// steady ingest stream rather than a burst.
func feedDemoSamples(ctx context.Context, eng *engine.Engine, logger *slog.Logger) error {
	ids := []string{
		eng.RegisterPattern(pattern.TypeStructural, nil),
		eng.RegisterPattern(pattern.TypeBehavioral, nil),
		eng.RegisterPattern(pattern.TypeCognitive, nil),
	}
	logger.Info("registered demo patterns", "count", len(ids))

	limiter := rate.NewLimiter(rate.Every(500*time.Millisecond), 1)
	sample := func(v float64) *float64 { return &v }

	for step := 0; ; step++ {
		if err := limiter.Wait(ctx); err != nil {
			return nil // context canceled: clean shutdown
		}

		t := float64(step) / 10
		for i, id := range ids {
			phase := float64(i) * 2 * math.Pi / 3
			base := 0.55 + 0.35*math.Sin(t+phase)
			patch := pattern.MetricsPatch{
				Strength:     sample(clamp01(base)),
				Coherence:    sample(clamp01(base - 0.05)),
				Resonance:    sample(clamp01(0.5 + 0.2*math.Cos(t+phase))),
				Stability:    sample(clamp01(base + 0.1)),
				Adaptability: sample(clamp01(0.4 + 0.1*math.Sin(2*t+phase))),
			}
			if err := eng.UpdateMetrics(id, patch); err != nil {
				return err
			}
		}
	}
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
