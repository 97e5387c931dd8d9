package evo

import (
	"math"
	"sort"

	"cppnevo/internal/config"
	"cppnevo/internal/genome"
)

// SpeciationStats captures per-generation species partitioning diagnostics.
type SpeciationStats struct {
	SpeciesCount       int
	TargetSpeciesCount int
	Threshold          float64
	MeanSpeciesSize    float64
	LargestSpeciesSize int
	NewSpecies         []int
	ExtinctSpecies     []int
	DissolvedSpecies   []int
}

// Species is one persistent cluster of compatible genomes.
type Species struct {
	ID             int
	Representative *genome.Genome
	Members        []*genome.Genome
	Age            int
	BestFitness    float64
	Stagnation     int
	FoundedAt      int
	LastImproved   int
}

// Speciation keeps species and their representatives across generations and
// nudges the compatibility threshold toward species_target.
type Speciation struct {
	cfg       *config.Config
	Threshold float64
	species   []*Species
	nextID    int

	runBestID      string
	runBestFitness float64
}

func NewSpeciation(cfg *config.Config) *Speciation {
	return &Speciation{
		cfg:            cfg,
		Threshold:      cfg.InitSpeciesThreshold,
		nextID:         1,
		runBestFitness: math.Inf(-1),
	}
}

// Species returns the live species ordered by id.
func (s *Speciation) Species() []*Species {
	out := append([]*Species(nil), s.species...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Speciate assigns every genome to the first species whose representative
// lies within the threshold, founding a new species otherwise. It then
// adjusts the threshold, updates stagnation and removes species that have
// stagnated for longer than species_stagnation_threshold unless they hold
// the run's best genome, which elitism carries forward under the same id.
// When that genome is no longer present the generation's best is protected
// instead. A zero stagnation threshold disables removal. Genomes must already carry their fitness.
func (s *Speciation) Speciate(genomes []*genome.Genome, generation int) SpeciationStats {
	stats := SpeciationStats{TargetSpeciesCount: s.cfg.SpeciesTarget}
	for _, sp := range s.species {
		sp.Members = sp.Members[:0]
	}
	if len(genomes) == 0 {
		stats.Threshold = s.Threshold
		return stats
	}

	if !s.cfg.UseSpeciation {
		s.assignSingleSpecies(genomes, generation, &stats)
	} else {
		for _, g := range genomes {
			var home *Species
			for _, sp := range s.species {
				if g.CompatibilityDistance(sp.Representative) < s.Threshold {
					home = sp
					break
				}
			}
			if home == nil {
				home = &Species{ID: s.nextID, Representative: g.Clone(), BestFitness: math.Inf(-1), FoundedAt: generation}
				s.nextID++
				s.species = append(s.species, home)
				stats.NewSpecies = append(stats.NewSpecies, home.ID)
			}
			home.Members = append(home.Members, g)
			g.SpeciesID = home.ID
		}
	}

	live := s.species[:0]
	for _, sp := range s.species {
		if len(sp.Members) == 0 {
			stats.DissolvedSpecies = append(stats.DissolvedSpecies, sp.ID)
			continue
		}
		sp.Representative = sp.Members[0].Clone()
		live = append(live, sp)
	}
	s.species = live

	if s.cfg.UseSpeciation {
		switch {
		case len(s.species) < s.cfg.SpeciesTarget:
			s.Threshold = math.Max(s.cfg.SpeciesThresholdDelta, s.Threshold-s.cfg.SpeciesThresholdDelta)
		case len(s.species) > s.cfg.SpeciesTarget:
			s.Threshold += s.cfg.SpeciesThresholdDelta
		}
	}

	best := s.protectedGenome(genomes)
	survivors := s.species[:0]
	for _, sp := range s.species {
		sp.Age++
		top := math.Inf(-1)
		for _, m := range sp.Members {
			top = math.Max(top, m.FitnessOr(math.Inf(-1)))
		}
		if top > sp.BestFitness {
			sp.BestFitness = top
			sp.Stagnation = 0
			sp.LastImproved = generation
		} else {
			sp.Stagnation++
		}
		limit := s.cfg.SpeciesStagnationThreshold
		if limit > 0 && sp.Stagnation > limit && !containsGenome(sp.Members, best) {
			stats.ExtinctSpecies = append(stats.ExtinctSpecies, sp.ID)
			for _, m := range sp.Members {
				m.SpeciesID = 0
			}
			continue
		}
		survivors = append(survivors, sp)
	}
	s.species = survivors

	total, largest := 0, 0
	for _, sp := range s.species {
		total += len(sp.Members)
		largest = max(largest, len(sp.Members))
	}
	stats.SpeciesCount = len(s.species)
	stats.Threshold = s.Threshold
	stats.LargestSpeciesSize = largest
	if len(s.species) > 0 {
		stats.MeanSpeciesSize = float64(total) / float64(len(s.species))
	}
	return stats
}

func (s *Speciation) assignSingleSpecies(genomes []*genome.Genome, generation int, stats *SpeciationStats) {
	if len(s.species) == 0 {
		s.species = append(s.species, &Species{ID: s.nextID, BestFitness: math.Inf(-1), FoundedAt: generation})
		stats.NewSpecies = append(stats.NewSpecies, s.nextID)
		s.nextID++
	}
	sp := s.species[0]
	for _, g := range genomes {
		sp.Members = append(sp.Members, g)
		g.SpeciesID = sp.ID
	}
}

// SelectBreeders keeps the top species_selection_ratio of members (at least
// one) as breeding candidates. novelty_selection_ratio_within_species of
// those slots go to the most novel of the remaining members.
func (s *Speciation) SelectBreeders(members []*genome.Genome) []*genome.Genome {
	if len(members) == 0 {
		return nil
	}
	keep := int(math.Ceil(s.cfg.SpeciesSelectionRatio * float64(len(members))))
	keep = max(1, min(keep, len(members)))
	novelSlots := int(math.Round(s.cfg.NoveltySelectionRatioWithinSpecies * float64(keep)))
	novelSlots = min(novelSlots, keep-1)

	ranked := RankByFitness(members)
	breeders := append([]*genome.Genome(nil), ranked[:keep-novelSlots]...)
	if novelSlots > 0 {
		rest := RankByNovelty(ranked[keep-novelSlots:])
		breeders = append(breeders, rest[:novelSlots]...)
	}
	return breeders
}

// Elites returns the within_species_elitism fittest members.
func (s *Speciation) Elites(members []*genome.Genome) []*genome.Genome {
	n := min(s.cfg.WithinSpeciesElitism, len(members))
	if n <= 0 {
		return nil
	}
	return RankByFitness(members)[:n]
}

// protectedGenome updates the run's best and returns the member carrying it,
// falling back to the generation's best.
func (s *Speciation) protectedGenome(genomes []*genome.Genome) *genome.Genome {
	current := bestGenome(genomes)
	if f := current.FitnessOr(math.Inf(-1)); f > s.runBestFitness || s.runBestID == "" {
		s.runBestID, s.runBestFitness = current.ID, f
		return current
	}
	for _, g := range genomes {
		if g.ID == s.runBestID {
			return g
		}
	}
	return current
}

func bestGenome(genomes []*genome.Genome) *genome.Genome {
	var best *genome.Genome
	for _, g := range genomes {
		if best == nil || g.FitnessOr(math.Inf(-1)) > best.FitnessOr(math.Inf(-1)) {
			best = g
		}
	}
	return best
}

func containsGenome(members []*genome.Genome, target *genome.Genome) bool {
	for _, m := range members {
		if m == target {
			return true
		}
	}
	return false
}
