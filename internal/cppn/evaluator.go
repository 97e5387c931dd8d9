package cppn

import (
	"context"
	"fmt"
	"math"

	"cppnevo/internal/config"
	"cppnevo/internal/genome"
	"cppnevo/internal/nn"
)

// Evaluator renders a genome over a coordinate grid. Implementations must be
// safe to call concurrently for different genomes.
type Evaluator interface {
	Evaluate(ctx context.Context, g *genome.Genome, grid CoordinateGrid) (*Image, error)
}

// CPUEvaluator is the reference evaluator. Nodes fire in feed-forward order;
// every node, inputs included, applies its activation to the weighted sum of
// its enabled inputs. A node without active inputs outputs 0. Connections
// with |weight| below WeightThreshold are inert.
type CPUEvaluator struct {
	WeightThreshold  float64
	NormalizeOutputs bool
}

func NewCPUEvaluator(cfg *config.Config) *CPUEvaluator {
	return &CPUEvaluator{
		WeightThreshold:  cfg.WeightThreshold,
		NormalizeOutputs: cfg.NormalizeOutputs,
	}
}

type compiledNode struct {
	id         genome.NodeID
	source     bool
	activation nn.ActivationFunc
	inputs     []compiledEdge
}

type compiledEdge struct {
	from   genome.NodeID
	weight float64
}

type program struct {
	nodes   []compiledNode
	outputs []genome.NodeID
}

func (e *CPUEvaluator) compile(g *genome.Genome) (program, error) {
	incoming := make(map[genome.NodeID][]compiledEdge)
	for c := range g.EnabledConnections() {
		if math.Abs(c.Weight) < e.WeightThreshold {
			continue
		}
		incoming[c.To] = append(incoming[c.To], compiledEdge{from: c.From, weight: c.Weight})
	}
	var p program
	for _, n := range g.FeedForwardOrder() {
		fn, err := nn.GetActivation(n.Activation)
		if err != nil {
			return program{}, fmt.Errorf("%w: node %d: %w", genome.ErrUnknownActivation, n.ID, err)
		}
		p.nodes = append(p.nodes, compiledNode{
			id:         n.ID,
			source:     n.IsSource(),
			activation: fn,
			inputs:     incoming[n.ID],
		})
		if n.Type == genome.Output {
			p.outputs = append(p.outputs, n.ID)
		}
	}
	if len(p.outputs) == 0 {
		return program{}, fmt.Errorf("%w: no output nodes", genome.ErrMalformedGenome)
	}
	return p, nil
}

func (p program) run(inputs []float64, values map[genome.NodeID]float64) []float64 {
	clear(values)
	for _, n := range p.nodes {
		if n.source {
			in := 0.0
			if int(n.id) < len(inputs) {
				in = inputs[n.id]
			}
			values[n.id] = n.activation(in)
			continue
		}
		if len(n.inputs) == 0 {
			values[n.id] = 0
			continue
		}
		sum := 0.0
		for _, edge := range n.inputs {
			sum += values[edge.from] * edge.weight
		}
		values[n.id] = n.activation(sum)
	}
	out := make([]float64, len(p.outputs))
	for i, id := range p.outputs {
		out[i] = values[id]
	}
	return out
}

// EvaluatePoint runs one forward pass for a single input vector and returns
// the raw output values ordered by output node id.
func (e *CPUEvaluator) EvaluatePoint(g *genome.Genome, inputs []float64) ([]float64, error) {
	p, err := e.compile(g)
	if err != nil {
		return nil, err
	}
	return p.run(inputs, make(map[genome.NodeID]float64, len(p.nodes))), nil
}

func (e *CPUEvaluator) Evaluate(ctx context.Context, g *genome.Genome, grid CoordinateGrid) (*Image, error) {
	p, err := e.compile(g)
	if err != nil {
		return nil, err
	}
	if len(grid.Inputs) != grid.W*grid.H {
		return nil, fmt.Errorf("coordinate grid has %d points, want %d", len(grid.Inputs), grid.W*grid.H)
	}
	img := NewImage(grid.W, grid.H, len(p.outputs))
	values := make(map[genome.NodeID]float64, len(p.nodes))
	for y := 0; y < grid.H; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := 0; x < grid.W; x++ {
			out := p.run(grid.Inputs[y*grid.W+x], values)
			for c, v := range out {
				img.Set(x, y, c, v)
			}
		}
	}
	if e.NormalizeOutputs {
		img.NormalizeChannels()
	}
	return img, nil
}
