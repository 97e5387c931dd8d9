package evo

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"cppnevo/internal/genome"
	"cppnevo/internal/model"
)

type GenomeSignature struct {
	Fingerprint string
	Summary     model.TopologySummary
}

// ComputeGenomeSignature hashes a genome's structure. Weights are ignored, so
// two genomes share a fingerprint when they have the same nodes, activations
// and enabled edges.
func ComputeGenomeSignature(g *genome.Genome) GenomeSignature {
	actDist := make(map[string]int)
	depth := 0
	parts := make([]string, 0, g.NodeCount()+g.ConnectionCount()+4)

	for _, n := range g.Nodes() {
		if n.Type == genome.Hidden {
			actDist[n.Activation]++
		}
		if n.Layer > depth {
			depth = n.Layer
		}
		parts = append(parts, fmt.Sprintf("n%d:%s:%s", n.ID, n.Type, n.Activation))
	}
	edges := make([]string, 0, g.ConnectionCount())
	for c := range g.EnabledConnections() {
		edges = append(edges, fmt.Sprintf("e%d>%d", c.From, c.To))
	}
	sort.Strings(edges)
	parts = append(parts, edges...)

	summary := model.TopologySummary{
		TotalNodes:             g.NodeCount(),
		HiddenNodes:            g.HiddenNodeCount(),
		TotalConnections:       g.ConnectionCount(),
		EnabledConnections:     len(edges),
		Depth:                  depth,
		ActivationDistribution: actDist,
	}

	digest := sha1.Sum([]byte(strings.Join(parts, "|")))
	return GenomeSignature{
		Fingerprint: hex.EncodeToString(digest[:8]),
		Summary:     summary,
	}
}

// UniqueFingerprints counts distinct structures in a population.
func UniqueFingerprints(genomes []*genome.Genome) int {
	seen := make(map[string]struct{}, len(genomes))
	for _, g := range genomes {
		seen[ComputeGenomeSignature(g).Fingerprint] = struct{}{}
	}
	return len(seen)
}
