package evo

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"cppnevo/internal/config"
	"cppnevo/internal/genome"
)

// Crossover builds a child from two parents aligned by innovation number.
//
// Matching genes come from a random parent and stay enabled unless either
// parent disabled them, in which case they are re-enabled with
// prob_reenable_connection. With probability crossover_ratio unmatched
// genes come from the fitter parent only; otherwise crossover_unique_genes
// picks the donors (fitter, less_fit or both). In the union case genes that
// would close a cycle are skipped.
func Crossover(rng *rand.Rand, a, b *genome.Genome, cfg *config.Config) (*genome.Genome, error) {
	if rng == nil {
		return nil, errors.New("random source is required")
	}
	if a == nil || b == nil {
		return nil, errors.New("two parents are required")
	}
	if cfg == nil {
		cfg = a.Config
	}
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	fitter, lessFit := rankParents(rng, a, b)
	fromFitter, fromLessFit := true, false
	if rng.Float64() >= cfg.CrossoverRatio {
		switch cfg.CrossoverUniqueGenes {
		case config.UniqueGenesLessFit:
			fromFitter, fromLessFit = false, true
		case config.UniqueGenesBoth:
			fromLessFit = true
		}
	}

	fitterGenes := indexByInnovation(fitter)
	lessFitGenes := indexByInnovation(lessFit)
	innovations := make([]int, 0, len(fitterGenes)+len(lessFitGenes))
	for innovation := range fitterGenes {
		innovations = append(innovations, innovation)
	}
	for innovation := range lessFitGenes {
		if _, ok := fitterGenes[innovation]; !ok {
			innovations = append(innovations, innovation)
		}
	}
	sort.Ints(innovations)

	inherited := make([]genome.Connection, 0, len(innovations))
	for _, innovation := range innovations {
		f, inFitter := fitterGenes[innovation]
		l, inLessFit := lessFitGenes[innovation]
		switch {
		case inFitter && inLessFit:
			gene := *f
			if rng.Float64() < 0.5 {
				gene = *l
			}
			gene.Enabled = true
			if !f.Enabled || !l.Enabled {
				gene.Enabled = rng.Float64() < cfg.ProbReenableConnection
			}
			inherited = append(inherited, gene)
		case inFitter && fromFitter:
			inherited = append(inherited, *f)
		case inLessFit && fromLessFit:
			inherited = append(inherited, *l)
		}
	}

	child := genome.New(genome.NewID(rng), cfg)
	child.ParentIDs = []string{a.ID, b.ID}
	child.SpeciesID = fitter.SpeciesID

	needed := make(map[genome.NodeID]struct{})
	for _, parent := range []*genome.Genome{fitter, lessFit} {
		for _, n := range parent.Nodes() {
			if n.Type != genome.Hidden {
				needed[n.ID] = struct{}{}
			}
		}
	}
	for _, c := range inherited {
		needed[c.From] = struct{}{}
		needed[c.To] = struct{}{}
	}
	ids := make([]genome.NodeID, 0, len(needed))
	for id := range needed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		f, inFitter := fitter.Node(id)
		l, inLessFit := lessFit.Node(id)
		var node genome.Node
		switch {
		case inFitter && inLessFit:
			node = *f
			if rng.Float64() < 0.5 {
				node = *l
			}
		case inFitter:
			node = *f
		case inLessFit:
			node = *l
		default:
			return nil, fmt.Errorf("%w: node %d referenced by no parent", genome.ErrNodeNotFound, id)
		}
		node.Output = 0
		if err := child.AddNode(node); err != nil {
			return nil, err
		}
	}

	for _, c := range inherited {
		if err := child.AddConnection(c); err != nil {
			if fromFitter && fromLessFit && errors.Is(err, ErrInvariantViolation) {
				continue
			}
			return nil, fmt.Errorf("inherit connection %s: %w", c.Key(), err)
		}
	}
	child.RecomputeLayers()
	return child, nil
}

// CanMate reports whether a and b may be crossed: parents from different
// species only mate with crossover_between_species_probability.
func CanMate(rng *rand.Rand, a, b *genome.Genome, cfg *config.Config) bool {
	if cfg == nil || !cfg.UseSpeciation || a.SpeciesID == b.SpeciesID {
		return true
	}
	return rng.Float64() < cfg.CrossoverBetweenSpeciesProbability
}

// rankParents orders the parents by fitness, breaking ties at random.
func rankParents(rng *rand.Rand, a, b *genome.Genome) (*genome.Genome, *genome.Genome) {
	fa, fb := a.FitnessOr(math.Inf(-1)), b.FitnessOr(math.Inf(-1))
	switch {
	case fa > fb:
		return a, b
	case fb > fa:
		return b, a
	case rng.Float64() < 0.5:
		return b, a
	default:
		return a, b
	}
}

func indexByInnovation(g *genome.Genome) map[int]*genome.Connection {
	out := make(map[int]*genome.Connection, g.ConnectionCount())
	for _, c := range g.Connections() {
		out[c.Innovation] = c
	}
	return out
}
