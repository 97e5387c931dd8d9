// Package metrics exposes run telemetry as Prometheus collectors. A nil
// *Collector is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cppnevo"

type Collector struct {
	generations         prometheus.Counter
	bestFitness         prometheus.Gauge
	meanFitness         prometheus.Gauge
	species             prometheus.Gauge
	threshold           prometheus.Gauge
	archiveCoverage     prometheus.Gauge
	archivePlacements   *prometheus.CounterVec
	mutations           *prometheus.CounterVec
	evaluationFailures  prometheus.Counter
	evaluationDurations prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		generations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Completed generations.",
		}),
		bestFitness: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_fitness",
			Help:      "Best fitness of the last evaluated generation.",
		}),
		meanFitness: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mean_fitness",
			Help:      "Mean fitness of the last evaluated generation.",
		}),
		species: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "species",
			Help:      "Live species after speciation.",
		}),
		threshold: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "speciation_threshold",
			Help:      "Current compatibility threshold.",
		}),
		archiveCoverage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "archive_coverage_ratio",
			Help:      "Fraction of occupied MAP-Elites cells.",
		}),
		archivePlacements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_placements_total",
			Help:      "Archive placement attempts by result.",
		}, []string{"result"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Mutation operator outcomes.",
		}, []string{"operator", "outcome"}),
		evaluationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluation_failures_total",
			Help:      "Genome evaluations that failed and received the worst score.",
		}),
		evaluationDurations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Wall time of the parallel evaluation phase.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
	if reg != nil {
		for _, collector := range []prometheus.Collector{
			c.generations, c.bestFitness, c.meanFitness, c.species, c.threshold,
			c.archiveCoverage, c.archivePlacements, c.mutations,
			c.evaluationFailures, c.evaluationDurations,
		} {
			if err := reg.Register(collector); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

// GenerationSummary is the slice of per-generation diagnostics exported as
// gauges.
type GenerationSummary struct {
	BestFitness     float64
	MeanFitness     float64
	Species         int
	Threshold       float64
	ArchiveCoverage float64
}

func (c *Collector) ObserveGeneration(s GenerationSummary) {
	if c == nil {
		return
	}
	c.generations.Inc()
	c.bestFitness.Set(s.BestFitness)
	c.meanFitness.Set(s.MeanFitness)
	c.species.Set(float64(s.Species))
	c.threshold.Set(s.Threshold)
	c.archiveCoverage.Set(s.ArchiveCoverage)
}

func (c *Collector) ObserveMutation(operator string, applied bool) {
	if c == nil {
		return
	}
	outcome := "noop"
	if applied {
		outcome = "applied"
	}
	c.mutations.WithLabelValues(operator, outcome).Inc()
}

func (c *Collector) ObservePlacement(accepted bool) {
	if c == nil {
		return
	}
	result := "rejected"
	if accepted {
		result = "accepted"
	}
	c.archivePlacements.WithLabelValues(result).Inc()
}

func (c *Collector) ObserveEvaluation(d time.Duration, failures int) {
	if c == nil {
		return
	}
	c.evaluationDurations.Observe(d.Seconds())
	if failures > 0 {
		c.evaluationFailures.Add(float64(failures))
	}
}
