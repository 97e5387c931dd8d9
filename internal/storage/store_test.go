package storage

import (
	"context"
	"reflect"
	"testing"

	"cppnevo/internal/model"
)

// exerciseStore runs the same round trips against any backend.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := store.GetGenome(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing genome, ok=%t err=%v", ok, err)
	}

	fitness := 0.25
	genome := model.Genome{
		VersionedRecord: Versioned(),
		ID:              "g1",
		Nodes: []model.Node{
			{ID: 0, Type: "input", Activation: "identity"},
			{ID: 1, Type: "output", Layer: 1, Activation: "sin"},
		},
		Conns: []model.Connection{
			{Innovation: 1, From: 0, To: 1, Weight: 1.25, Enabled: true},
		},
		Fitness:   &fitness,
		ParentIDs: []string{"p1", "p2"},
	}
	if err := store.SaveGenome(ctx, genome); err != nil {
		t.Fatalf("save genome: %v", err)
	}
	loadedGenome, ok, err := store.GetGenome(ctx, "g1")
	if err != nil {
		t.Fatalf("get genome: %v", err)
	}
	if !ok || !reflect.DeepEqual(loadedGenome, genome) {
		t.Fatalf("genome mismatch: got=%+v want=%+v", loadedGenome, genome)
	}

	runs := []model.Run{
		{VersionedRecord: Versioned(), ID: "run-b", CreatedAtUTC: "2026-01-02T00:00:00Z", Seed: 2},
		{VersionedRecord: Versioned(), ID: "run-a", CreatedAtUTC: "2026-01-01T00:00:00Z", Seed: 1},
	}
	for _, run := range runs {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run %s: %v", run.ID, err)
		}
	}
	listed, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != "run-a" || listed[1].ID != "run-b" {
		t.Fatalf("unexpected run order: %+v", listed)
	}
	run, ok, err := store.GetRun(ctx, "run-b")
	if err != nil || !ok || run.Seed != 2 {
		t.Fatalf("get run: run=%+v ok=%t err=%v", run, ok, err)
	}

	cells := []model.ArchiveCell{{
		VersionedRecord: Versioned(),
		Index:           3,
		Coords:          []int{1, 1},
		VotingFns:       []string{"mse"},
		Scores:          map[string]float64{"mse": 0.5},
		Descriptor:      []float64{0.5, 0.75},
		Genome:          genome,
	}}
	if err := store.SaveArchive(ctx, "run-a", cells); err != nil {
		t.Fatalf("save archive: %v", err)
	}
	loadedCells, ok, err := store.GetArchive(ctx, "run-a")
	if err != nil {
		t.Fatalf("get archive: %v", err)
	}
	if !ok || !reflect.DeepEqual(loadedCells, cells) {
		t.Fatalf("archive mismatch: got=%+v want=%+v", loadedCells, cells)
	}

	diagnostics := []model.GenerationDiagnostics{
		{Generation: 0, BestFitness: 0.1, SpeciesCount: 2},
		{Generation: 1, BestFitness: 0.3, SpeciesCount: 3, ArchiveAccepted: 4},
	}
	if err := store.SaveGenerationDiagnostics(ctx, "run-a", diagnostics); err != nil {
		t.Fatalf("save diagnostics: %v", err)
	}
	loadedDiagnostics, ok, err := store.GetGenerationDiagnostics(ctx, "run-a")
	if err != nil {
		t.Fatalf("get diagnostics: %v", err)
	}
	if !ok || !reflect.DeepEqual(loadedDiagnostics, diagnostics) {
		t.Fatalf("diagnostics mismatch: got=%+v want=%+v", loadedDiagnostics, diagnostics)
	}

	lineage := []model.LineageRecord{{
		GenomeID:    "g1",
		ParentIDs:   []string{"p1", "p2"},
		Generation:  1,
		Operation:   "crossover",
		Fingerprint: "abc",
		Summary:     model.TopologySummary{TotalNodes: 2, TotalConnections: 1, EnabledConnections: 1, Depth: 1},
	}}
	if err := store.SaveLineage(ctx, "run-a", lineage); err != nil {
		t.Fatalf("save lineage: %v", err)
	}
	loadedLineage, ok, err := store.GetLineage(ctx, "run-a")
	if err != nil {
		t.Fatalf("get lineage: %v", err)
	}
	if !ok || !reflect.DeepEqual(loadedLineage, lineage) {
		t.Fatalf("lineage mismatch: got=%+v want=%+v", loadedLineage, lineage)
	}

	if _, ok, err := store.GetLineage(ctx, "run-missing"); err != nil || ok {
		t.Fatalf("expected missing lineage, ok=%t err=%v", ok, err)
	}
}
