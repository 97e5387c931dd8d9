package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorRecordsRunTelemetry(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	if err != nil {
		t.Fatalf("new collector: %v", err)
	}

	c.ObserveGeneration(GenerationSummary{BestFitness: 0.9, MeanFitness: 0.4, Species: 3, Threshold: 1.7, ArchiveCoverage: 0.25})
	c.ObserveGeneration(GenerationSummary{BestFitness: 0.95, Species: 2})
	c.ObserveMutation("add_node", true)
	c.ObserveMutation("add_node", false)
	c.ObserveMutation("add_node", true)
	c.ObservePlacement(true)
	c.ObservePlacement(false)
	c.ObserveEvaluation(20*time.Millisecond, 2)

	if got := testutil.ToFloat64(c.generations); got != 2 {
		t.Fatalf("expected 2 generations, got=%f", got)
	}
	if got := testutil.ToFloat64(c.bestFitness); got != 0.95 {
		t.Fatalf("expected best fitness gauge 0.95, got=%f", got)
	}
	if got := testutil.ToFloat64(c.species); got != 2 {
		t.Fatalf("expected species gauge 2, got=%f", got)
	}
	if got := testutil.ToFloat64(c.mutations.WithLabelValues("add_node", "applied")); got != 2 {
		t.Fatalf("expected two applied add_node mutations, got=%f", got)
	}
	if got := testutil.ToFloat64(c.archivePlacements.WithLabelValues("accepted")); got != 1 {
		t.Fatalf("expected one accepted placement, got=%f", got)
	}
	if got := testutil.ToFloat64(c.evaluationFailures); got != 2 {
		t.Fatalf("expected two evaluation failures, got=%f", got)
	}
	if n := testutil.CollectAndCount(c.evaluationDurations); n != 1 {
		t.Fatalf("expected one histogram series, got=%d", n)
	}
}

func TestCollectorRejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New(reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := New(reg); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	c.ObserveGeneration(GenerationSummary{})
	c.ObserveMutation("add_node", true)
	c.ObservePlacement(true)
	c.ObserveEvaluation(time.Second, 1)
}
