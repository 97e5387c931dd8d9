// Package archive implements the MAP-Elites grid: discretised behaviour
// descriptors index cells that each keep the best genome placed so far under
// a per-cell vote across fitness functions.
package archive

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"cppnevo/internal/config"
	"cppnevo/internal/genome"
	"cppnevo/internal/model"
)

var (
	ErrDescriptorShape   = errors.New("descriptor length does not match archive axes")
	ErrDescriptorRange   = errors.New("invalid descriptor axis range")
	ErrUnknownDescriptor = errors.New("unknown descriptor axis")
	ErrNoVotingFunctions = errors.New("archive has no voting functions")
)

// Descriptor axes a configuration may name.
const (
	AxisNovelty     = "novelty"
	AxisFitness     = "fitness"
	AxisConnections = "connections"
	AxisHiddenNodes = "hidden_nodes"
)

type cell struct {
	mu         sync.Mutex
	coords     []int
	votingFns  []string
	occupant   *genome.Genome
	scores     map[string]float64
	descriptor []float64
}

type Archive struct {
	resolution  []int
	minValues   []float64
	maxValues   []float64
	descriptors []string
	policy      string
	votingPool  []string
	cells       []*cell
}

// New builds an empty grid of prod(map_elites_resolution) cells. Each cell
// draws map_elites_voting_fns_per_cell names without replacement from
// map_elites_voting_fns, falling back to the configured fitness functions;
// a per-cell count of zero or one larger than the pool uses the whole pool.
func New(cfg *config.Config, rng *rand.Rand) (*Archive, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if rng == nil {
		return nil, errors.New("random source is required")
	}
	axes := len(cfg.MapElitesResolution)
	if axes == 0 || len(cfg.MapElitesMinValues) != axes || len(cfg.MapElitesMaxValues) != axes || len(cfg.MapElitesDescriptors) != axes {
		return nil, fmt.Errorf("%w: resolution, min, max and descriptor lists must agree", ErrDescriptorShape)
	}
	for i := 0; i < axes; i++ {
		if cfg.MapElitesResolution[i] <= 0 {
			return nil, fmt.Errorf("%w: map_elites_resolution[%d] must be > 0", ErrDescriptorRange, i)
		}
		if cfg.MapElitesMaxValues[i] <= cfg.MapElitesMinValues[i] {
			return nil, fmt.Errorf("%w: map_elites_max_values[%d] must exceed min", ErrDescriptorRange, i)
		}
	}
	for _, name := range cfg.MapElitesDescriptors {
		switch name {
		case AxisNovelty, AxisFitness, AxisConnections, AxisHiddenNodes:
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownDescriptor, name)
		}
	}
	pool := cfg.MapElitesVotingFns
	if len(pool) == 0 {
		pool = cfg.FitnessNames()
	}
	if len(pool) == 0 {
		return nil, ErrNoVotingFunctions
	}
	perCell := cfg.MapElitesVotingFnsPerCell
	if perCell <= 0 || perCell > len(pool) {
		perCell = len(pool)
	}

	total := 1
	for i, r := range cfg.MapElitesResolution {
		if r <= 0 {
			return nil, fmt.Errorf("map_elites_resolution[%d] must be > 0", i)
		}
		total *= r
	}
	a := &Archive{
		resolution:  append([]int(nil), cfg.MapElitesResolution...),
		minValues:   append([]float64(nil), cfg.MapElitesMinValues...),
		maxValues:   append([]float64(nil), cfg.MapElitesMaxValues...),
		descriptors: append([]string(nil), cfg.MapElitesDescriptors...),
		policy:      cfg.MapElitesVotePolicy,
		votingPool:  append([]string(nil), pool...),
		cells:       make([]*cell, total),
	}
	if a.policy == "" {
		a.policy = config.VoteMajority
	}
	for i := range a.cells {
		fns := make([]string, 0, perCell)
		for _, j := range rng.Perm(len(pool))[:perCell] {
			fns = append(fns, pool[j])
		}
		a.cells[i] = &cell{coords: a.coordsOf(i), votingFns: fns}
	}
	return a, nil
}

// VotingFunctions lists every function name a cell may vote with.
func (a *Archive) VotingFunctions() []string {
	return append([]string(nil), a.votingPool...)
}

func (a *Archive) Size() int {
	return len(a.cells)
}

func (a *Archive) Axes() []string {
	return append([]string(nil), a.descriptors...)
}

// Discretize clamps each value to its axis range and maps it to one of the
// axis' resolution buckets.
func (a *Archive) Discretize(values []float64) ([]int, error) {
	if len(values) != len(a.resolution) {
		return nil, fmt.Errorf("%w: got=%d want=%d", ErrDescriptorShape, len(values), len(a.resolution))
	}
	coords := make([]int, len(values))
	for i, v := range values {
		lo, hi, res := a.minValues[i], a.maxValues[i], a.resolution[i]
		if math.IsNaN(v) {
			v = lo
		}
		v = math.Max(lo, math.Min(hi, v))
		bucket := int(math.Floor((v - lo) / (hi - lo) * float64(res)))
		coords[i] = min(bucket, res-1)
	}
	return coords, nil
}

// Index flattens grid coordinates, first axis slowest.
func (a *Archive) Index(coords []int) int {
	idx := 0
	for i, c := range coords {
		idx = idx*a.resolution[i] + c
	}
	return idx
}

func (a *Archive) coordsOf(idx int) []int {
	coords := make([]int, len(a.resolution))
	for i := len(a.resolution) - 1; i >= 0; i-- {
		coords[i] = idx % a.resolution[i]
		idx /= a.resolution[i]
	}
	return coords
}

// Place offers g to the cell its descriptor falls in. An empty cell accepts
// unconditionally; an occupied cell is taken over only when the candidate
// wins the cell's vote. Missing scores count as -Inf and ties keep the
// incumbent. The decision and swap happen under the cell lock, so concurrent
// placements never lose an update.
func (a *Archive) Place(g *genome.Genome, descriptor []float64, scores map[string]float64) (bool, error) {
	coords, err := a.Discretize(descriptor)
	if err != nil {
		return false, err
	}
	c := a.cells[a.Index(coords)]

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.occupant != nil && !a.wins(c, scores) {
		return false, nil
	}
	c.occupant = g.Clone()
	c.scores = make(map[string]float64, len(c.votingFns))
	for _, name := range c.votingFns {
		if v, ok := scores[name]; ok {
			c.scores[name] = v
		}
	}
	c.descriptor = append([]float64(nil), descriptor...)
	return true, nil
}

func (a *Archive) wins(c *cell, scores map[string]float64) bool {
	wins := 0
	for _, name := range c.votingFns {
		if scoreOr(scores, name) > scoreOr(c.scores, name) {
			wins++
		}
	}
	switch a.policy {
	case config.VoteUnanimous:
		return wins == len(c.votingFns)
	case config.VoteAny:
		return wins > 0
	default:
		return wins*2 > len(c.votingFns)
	}
}

func scoreOr(scores map[string]float64, name string) float64 {
	if v, ok := scores[name]; ok && !math.IsNaN(v) {
		return v
	}
	return math.Inf(-1)
}

// CellView is a snapshot of one cell.
type CellView struct {
	Index      int
	Coords     []int
	VotingFns  []string
	Occupant   *genome.Genome
	Scores     map[string]float64
	Descriptor []float64
}

func (a *Archive) Cell(idx int) (CellView, bool) {
	if idx < 0 || idx >= len(a.cells) {
		return CellView{}, false
	}
	return a.cells[idx].view(idx), true
}

func (c *cell) view(idx int) CellView {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := CellView{
		Index:      idx,
		Coords:     append([]int(nil), c.coords...),
		VotingFns:  append([]string(nil), c.votingFns...),
		Descriptor: append([]float64(nil), c.descriptor...),
		Scores:     make(map[string]float64, len(c.scores)),
	}
	for k, s := range c.scores {
		v.Scores[k] = s
	}
	if c.occupant != nil {
		v.Occupant = c.occupant.Clone()
	}
	return v
}

// Occupants returns copies of every occupant in cell order.
func (a *Archive) Occupants() []*genome.Genome {
	out := make([]*genome.Genome, 0)
	for i := range a.cells {
		if v := a.cells[i].view(i); v.Occupant != nil {
			out = append(out, v.Occupant)
		}
	}
	return out
}

// Coverage is the fraction of occupied cells.
func (a *Archive) Coverage() float64 {
	occupied := 0
	for _, c := range a.cells {
		c.mu.Lock()
		if c.occupant != nil {
			occupied++
		}
		c.mu.Unlock()
	}
	return float64(occupied) / float64(len(a.cells))
}

// Records snapshots the occupied cells for persistence.
func (a *Archive) Records() []model.ArchiveCell {
	out := make([]model.ArchiveCell, 0)
	for i := range a.cells {
		v := a.cells[i].view(i)
		if v.Occupant == nil {
			continue
		}
		out = append(out, model.ArchiveCell{
			VersionedRecord: model.CurrentVersion(),
			Index:           v.Index,
			Coords:          v.Coords,
			VotingFns:       v.VotingFns,
			Scores:          v.Scores,
			Descriptor:      v.Descriptor,
			Genome:          v.Occupant.ToRecord(),
		})
	}
	return out
}

// Describe computes the raw descriptor of g along the named axes.
func Describe(g *genome.Genome, axes []string) ([]float64, error) {
	out := make([]float64, 0, len(axes))
	for _, axis := range axes {
		switch axis {
		case AxisNovelty:
			out = append(out, g.NoveltyOr(0))
		case AxisFitness:
			out = append(out, g.FitnessOr(0))
		case AxisConnections:
			out = append(out, float64(g.EnabledConnectionCount()))
		case AxisHiddenNodes:
			out = append(out, float64(g.HiddenNodeCount()))
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownDescriptor, axis)
		}
	}
	return out, nil
}
