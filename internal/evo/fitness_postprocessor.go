package evo

import (
	"math"

	"cppnevo/internal/genome"
)

const sizeProportionalEfficiency = 0.05

// FitnessPostprocessor adjusts fitness values after evaluation and before
// speciation and selection. Genomes whose evaluation failed keep WorstScore.
type FitnessPostprocessor interface {
	Name() string
	Process(genomes []*genome.Genome)
}

// NoveltyBlendPostprocessor mixes novelty into fitness:
// (1-p)*fitness + p*novelty.
type NoveltyBlendPostprocessor struct {
	Proportion float64
}

func (NoveltyBlendPostprocessor) Name() string {
	return "novelty_blend"
}

func (p NoveltyBlendPostprocessor) Process(genomes []*genome.Genome) {
	if p.Proportion <= 0 {
		return
	}
	for _, g := range genomes {
		if g.Fitness == nil || g.Novelty == nil || failed(g) {
			continue
		}
		g.SetFitness((1-p.Proportion)*(*g.Fitness) + p.Proportion*(*g.Novelty))
	}
}

// ClampPostprocessor bounds fitness to the configured min/max when set.
type ClampPostprocessor struct {
	Min *float64
	Max *float64
}

func (ClampPostprocessor) Name() string {
	return "clamp"
}

func (p ClampPostprocessor) Process(genomes []*genome.Genome) {
	for _, g := range genomes {
		if g.Fitness == nil || failed(g) {
			continue
		}
		v := *g.Fitness
		if p.Min != nil && v < *p.Min {
			v = *p.Min
		}
		if p.Max != nil && v > *p.Max {
			v = *p.Max
		}
		g.SetFitness(v)
	}
}

// SizeProportionalPostprocessor penalizes larger genomes by complexity.
type SizeProportionalPostprocessor struct{}

func (SizeProportionalPostprocessor) Name() string {
	return "size_proportional"
}

func (SizeProportionalPostprocessor) Process(genomes []*genome.Genome) {
	for _, g := range genomes {
		if g.Fitness == nil || failed(g) {
			continue
		}
		complexity := float64(g.NodeCount() + g.EnabledConnectionCount())
		if complexity < 1 {
			complexity = 1
		}
		f := *g.Fitness
		if f >= 0 {
			f /= math.Pow(complexity, sizeProportionalEfficiency)
		} else {
			f *= math.Pow(complexity, sizeProportionalEfficiency)
		}
		g.SetFitness(f)
	}
}

func failed(g *genome.Genome) bool {
	return g.Fitness != nil && *g.Fitness == WorstScore
}
