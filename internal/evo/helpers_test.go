package evo

import (
	"math/rand"
	"testing"

	"cppnevo/internal/config"
	"cppnevo/internal/genome"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.UseInputBias = false
	cfg.InitConnectionProbability = 1
	cfg.OutputActivation = "identity"
	cfg.ColorMode = "L"
	cfg.NormalizeOutputs = false
	cfg.ResW, cfg.ResH = 4, 4
	cfg.MapElitesResolution = []int{5}
	cfg.MapElitesMinValues = []float64{0}
	cfg.MapElitesMaxValues = []float64{10}
	cfg.MapElitesDescriptors = []string{"connections"}
	return &cfg
}

func minimalGenome(t *testing.T, cfg *config.Config, tracker *genome.InnovationTracker, seed int64) *genome.Genome {
	t.Helper()
	g, err := genome.CreateMinimal(cfg, tracker, rand.New(rand.NewSource(seed)))
	if err != nil {
		t.Fatalf("create minimal: %v", err)
	}
	return g
}

// singleGeneGenome is one input wired to one output by innovation 1.
func singleGeneGenome(t *testing.T, cfg *config.Config, id string, weight float64) *genome.Genome {
	t.Helper()
	g := genome.New(id, cfg)
	if err := g.AddNode(genome.Node{ID: 0, Type: genome.Input, Activation: "identity"}); err != nil {
		t.Fatalf("add input: %v", err)
	}
	if err := g.AddNode(genome.Node{ID: 1, Type: genome.Output, Activation: "identity"}); err != nil {
		t.Fatalf("add output: %v", err)
	}
	if err := g.AddConnection(genome.Connection{Innovation: 1, From: 0, To: 1, Weight: weight, Enabled: true}); err != nil {
		t.Fatalf("add connection: %v", err)
	}
	g.RecomputeLayers()
	return g
}

func innovations(g *genome.Genome) map[int]bool {
	out := make(map[int]bool, g.ConnectionCount())
	for _, c := range g.Connections() {
		out[c.Innovation] = true
	}
	return out
}
