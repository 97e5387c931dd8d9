package genome

import (
	"math"
	"sort"
)

// CompatibilityDistance is the NEAT distance c1*E/N + c2*D/N + c3*W between
// g and other. Genes pair up by innovation number; a gene is excess when its
// innovation lies beyond the other genome's highest one and disjoint
// otherwise. N is the larger connection count, or 1 while both genomes are
// below compatibility_normalize_min.
func (g *Genome) CompatibilityDistance(other *Genome) float64 {
	c1, c2, c3, normalizeMin := 1.0, 1.0, 0.4, 20
	if g.Config != nil {
		c1 = g.Config.CompatibilityExcessCoefficient
		c2 = g.Config.CompatibilityDisjointCoefficient
		c3 = g.Config.CompatibilityWeightCoefficient
		normalizeMin = g.Config.CompatibilityNormalizeMin
	}

	mine := innovationIndex(g)
	theirs := innovationIndex(other)
	maxMine, maxTheirs := maxInnovation(mine), maxInnovation(theirs)

	innovations := make([]int, 0, len(mine)+len(theirs))
	for innovation := range mine {
		innovations = append(innovations, innovation)
	}
	for innovation := range theirs {
		if _, ok := mine[innovation]; !ok {
			innovations = append(innovations, innovation)
		}
	}
	// fixed summation order keeps the distance bit-for-bit symmetric
	sort.Ints(innovations)

	var excess, disjoint, matching int
	var weightDiff float64
	for _, innovation := range innovations {
		c, inMine := mine[innovation]
		o, inTheirs := theirs[innovation]
		switch {
		case inMine && inTheirs:
			matching++
			weightDiff += math.Abs(c.Weight - o.Weight)
		case inMine && innovation > maxTheirs, inTheirs && innovation > maxMine:
			excess++
		default:
			disjoint++
		}
	}

	n := max(len(mine), len(theirs))
	if len(mine) < normalizeMin && len(theirs) < normalizeMin {
		n = 1
	}
	if n == 0 {
		n = 1
	}
	avgWeightDiff := 0.0
	if matching > 0 {
		avgWeightDiff = weightDiff / float64(matching)
	}
	return c1*float64(excess)/float64(n) + c2*float64(disjoint)/float64(n) + c3*avgWeightDiff
}

func innovationIndex(g *Genome) map[int]*Connection {
	out := make(map[int]*Connection, len(g.conns))
	for _, c := range g.conns {
		out[c.Innovation] = c
	}
	return out
}

func maxInnovation(index map[int]*Connection) int {
	highest := 0
	for innovation := range index {
		if innovation > highest {
			highest = innovation
		}
	}
	return highest
}
