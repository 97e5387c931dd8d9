package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"cppnevo/internal/config"
	"cppnevo/internal/cppn"
	"cppnevo/internal/evo"
	"cppnevo/internal/metrics"
	"cppnevo/internal/novelty"
)

type runOptions struct {
	store         storeFlags
	configPath    string
	runID         string
	seed          int64
	population    int
	generations   int
	workers       int
	targetPattern string
	selection     string
	sizePenalty   bool
	metricsAddr   string
	logLevel      string
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an evolution and persist its artefacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEvolution(cmd, opts)
		},
	}
	opts.store.register(cmd)
	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "YAML config path (defaults apply when empty)")
	flags.StringVar(&opts.runID, "run-id", "", "explicit run id (optional)")
	flags.Int64Var(&opts.seed, "seed", 1, "rng seed")
	flags.IntVar(&opts.population, "pop", 0, "population size override")
	flags.IntVar(&opts.generations, "gens", 0, "generation count override")
	flags.IntVar(&opts.workers, "workers", 0, "evaluation worker override")
	flags.StringVar(&opts.targetPattern, "target-pattern", targetNone, "target image: none|gradient|circle|checker")
	flags.StringVar(&opts.selection, "selection", "uniform", "parent selection: uniform|tournament")
	flags.BoolVar(&opts.sizePenalty, "size-penalty", false, "scale fitness down by genome size")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level: debug|info|warn|error")
	return cmd
}

func runEvolution(cmd *cobra.Command, opts *runOptions) error {
	ctx := cmd.Context()
	logger, err := newLogger(cmd, opts.logLevel)
	if err != nil {
		return err
	}

	cfg := config.Default()
	if opts.configPath != "" {
		cfg, err = config.Load(opts.configPath, logger)
		if err != nil {
			return err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("seed") || opts.configPath == "" {
		cfg.Seed = opts.seed
	}
	if opts.population > 0 {
		cfg.PopulationSize = opts.population
	}
	if opts.generations > 0 {
		cfg.NumGenerations = opts.generations
	}
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	target, err := buildTarget(opts.targetPattern, &cfg)
	if err != nil {
		return err
	}
	selector, err := selectorFromName(opts.selection)
	if err != nil {
		return err
	}
	var postprocessors []evo.FitnessPostprocessor
	if opts.sizePenalty {
		postprocessors = append(postprocessors, evo.SizeProportionalPostprocessor{})
	}

	store, closeStore, err := opts.store.open(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	var collector *metrics.Collector
	if opts.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		collector, err = metrics.New(reg)
		if err != nil {
			return err
		}
		stop := serveMetrics(opts.metricsAddr, reg, logger)
		defer stop()
	}

	population, err := evo.NewPopulation(evo.PopulationConfig{
		Config:         &cfg,
		Evaluator:      cppn.NewCPUEvaluator(&cfg),
		Estimator:      novelty.NewKNNEstimator(cfg.NoveltyK, cfg.NoveltyArchiveLen),
		Target:         target,
		Selector:       selector,
		Postprocessors: postprocessors,
		Store:          store,
		Metrics:        collector,
		Logger:         logger,
		RunID:          opts.runID,
	})
	if err != nil {
		return err
	}
	result, err := population.Run(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run completed run_id=%s pop=%d gens=%d seed=%d target=%s\n",
		result.RunID, cfg.PopulationSize, cfg.NumGenerations, cfg.Seed, opts.targetPattern)
	for _, diag := range result.Diagnostics {
		fmt.Fprintf(out, "generation=%d fitness_function=%s best_fitness=%.6f species=%d archive_coverage=%.3f\n",
			diag.Generation, diag.FitnessFunction, diag.BestFitness, diag.SpeciesCount, diag.ArchiveCoverage)
	}
	if result.Best != nil {
		fmt.Fprintf(out, "best_genome_id=%s final_best_fitness=%.6f\n", result.Best.ID, result.Best.FitnessOr(evo.WorstScore))
	}
	return nil
}

func newLogger(cmd *cobra.Command, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: lvl})), nil
}

func selectorFromName(name string) (evo.Selector, error) {
	switch name {
	case "", "uniform":
		return evo.UniformSelector{}, nil
	case "tournament":
		return evo.TournamentSelector{TournamentSize: 3}, nil
	default:
		return nil, fmt.Errorf("unsupported selection strategy: %s", name)
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}
