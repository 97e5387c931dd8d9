package evo

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"cppnevo/internal/genome"
)

// Selector chooses a parent from a species' breeding candidates, which are
// ordered best first.
type Selector interface {
	Name() string
	PickParent(rng *rand.Rand, breeders []*genome.Genome) (*genome.Genome, error)
}

// UniformSelector picks uniformly among the truncation-selected breeders.
type UniformSelector struct{}

func (UniformSelector) Name() string {
	return "uniform"
}

func (UniformSelector) PickParent(rng *rand.Rand, breeders []*genome.Genome) (*genome.Genome, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if len(breeders) == 0 {
		return nil, fmt.Errorf("%w: empty breeder pool", ErrNoMutationChoice)
	}
	return breeders[rng.Intn(len(breeders))], nil
}

// TournamentSelector samples candidates and picks the best fitness among them.
type TournamentSelector struct {
	TournamentSize int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) PickParent(rng *rand.Rand, breeders []*genome.Genome) (*genome.Genome, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if len(breeders) == 0 {
		return nil, fmt.Errorf("%w: empty breeder pool", ErrNoMutationChoice)
	}
	tournamentSize := s.TournamentSize
	if tournamentSize <= 0 {
		tournamentSize = 3
	}
	if tournamentSize > len(breeders) {
		tournamentSize = len(breeders)
	}

	best := breeders[rng.Intn(len(breeders))]
	for i := 1; i < tournamentSize; i++ {
		candidate := breeders[rng.Intn(len(breeders))]
		if candidate.FitnessOr(math.Inf(-1)) > best.FitnessOr(math.Inf(-1)) {
			best = candidate
		}
	}
	return best, nil
}

// RankByFitness returns genomes ordered by descending fitness; unevaluated
// genomes sort last and ties keep id order.
func RankByFitness(genomes []*genome.Genome) []*genome.Genome {
	return rankBy(genomes, func(g *genome.Genome) float64 { return g.FitnessOr(math.Inf(-1)) })
}

// RankByNovelty returns genomes ordered by descending novelty.
func RankByNovelty(genomes []*genome.Genome) []*genome.Genome {
	return rankBy(genomes, func(g *genome.Genome) float64 { return g.NoveltyOr(math.Inf(-1)) })
}

func rankBy(genomes []*genome.Genome, score func(*genome.Genome) float64) []*genome.Genome {
	out := append([]*genome.Genome(nil), genomes...)
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := score(out[i]), score(out[j])
		if si == sj {
			return out[i].ID < out[j].ID
		}
		return si > sj
	})
	return out
}
