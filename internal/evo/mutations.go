package evo

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"cppnevo/internal/config"
	"cppnevo/internal/genome"
	"cppnevo/internal/nn"
)

// AddRandomConnection links a random legal, not yet connected node pair.
type AddRandomConnection struct {
	Rand        *rand.Rand
	Tracker     *genome.InnovationTracker
	MaxAttempts int
}

func (o *AddRandomConnection) Name() string {
	return "add_connection"
}

func (o *AddRandomConnection) Applicable(g *genome.Genome) bool {
	return len(connectionSources(g)) > 0 && len(connectionTargets(g)) > 0
}

func (o *AddRandomConnection) Apply(_ context.Context, g *genome.Genome) error {
	if o == nil || o.Rand == nil {
		return errors.New("random source is required")
	}
	if o.Tracker == nil {
		return errors.New("innovation tracker is required")
	}
	sources, targets := connectionSources(g), connectionTargets(g)
	if len(sources) == 0 || len(targets) == 0 {
		return ErrNoMutationChoice
	}
	attempts := o.MaxAttempts
	if attempts <= 0 {
		attempts = 20
	}

	for i := 0; i < attempts; i++ {
		from := sources[o.Rand.Intn(len(sources))]
		to := targets[o.Rand.Intn(len(targets))]
		if !g.CanConnect(from, to) {
			continue
		}
		err := g.AddConnection(genome.Connection{
			Innovation: o.Tracker.ConnectionInnovation(from, to),
			From:       from,
			To:         to,
			Weight:     genome.RandomWeight(o.Rand, maxWeight(g)),
			Enabled:    true,
		})
		if err != nil {
			return err
		}
		g.RecomputeLayers()
		return nil
	}
	return fmt.Errorf("%w: %d attempts", ErrCapacityExhausted, attempts)
}

// AddRandomNode splits a random enabled connection. The incoming half gets
// weight 1 and the outgoing half keeps the original weight.
type AddRandomNode struct {
	Rand    *rand.Rand
	Tracker *genome.InnovationTracker
}

func (o *AddRandomNode) Name() string {
	return "add_node"
}

func (o *AddRandomNode) Applicable(g *genome.Genome) bool {
	return g.EnabledConnectionCount() > 0
}

func (o *AddRandomNode) Apply(_ context.Context, g *genome.Genome) error {
	if o == nil || o.Rand == nil {
		return errors.New("random source is required")
	}
	enabled := make([]*genome.Connection, 0, g.ConnectionCount())
	for c := range g.EnabledConnections() {
		enabled = append(enabled, c)
	}
	if len(enabled) == 0 {
		return ErrNoMutationChoice
	}
	return SplitConnection(g, o.Tracker, enabled[o.Rand.Intn(len(enabled))].Key(), o.Rand)
}

// SplitConnection inserts a hidden node on the connection stored under key.
// The node id comes from the tracker's split table so identical splits in
// different genomes share their genes.
func SplitConnection(g *genome.Genome, tracker *genome.InnovationTracker, key genome.ConnKey, rng *rand.Rand) error {
	if tracker == nil {
		return errors.New("innovation tracker is required")
	}
	original, ok := g.Connection(key)
	if !ok {
		return fmt.Errorf("%w: %s", genome.ErrConnectionNotFound, key)
	}
	if !original.Enabled {
		return fmt.Errorf("%w: connection %s is disabled", ErrNoMutationChoice, key)
	}

	id := tracker.NodeForSignature(genome.SplitSignature(original.Innovation), g.HasNode)
	activation := "identity"
	if g.Config != nil {
		activation = genome.RandomActivation(rng, g.Config.Activations)
	}
	if err := g.AddNode(genome.Node{ID: id, Type: genome.Hidden, Activation: activation}); err != nil {
		return err
	}

	original.Enabled = false
	in := genome.Connection{
		Innovation: tracker.ConnectionInnovation(original.From, id),
		From:       original.From,
		To:         id,
		Weight:     1.0,
		Enabled:    true,
	}
	out := genome.Connection{
		Innovation: tracker.ConnectionInnovation(id, original.To),
		From:       id,
		To:         original.To,
		Weight:     original.Weight,
		Enabled:    true,
	}
	if err := g.AddConnection(in); err != nil {
		original.Enabled = true
		_ = g.RemoveNode(id)
		return err
	}
	if err := g.AddConnection(out); err != nil {
		original.Enabled = true
		_ = g.RemoveNode(id)
		return err
	}
	g.RecomputeLayers()
	return nil
}

// RemoveRandomNode drops a hidden node and its incident connections.
type RemoveRandomNode struct {
	Rand *rand.Rand
}

func (o *RemoveRandomNode) Name() string {
	return "remove_node"
}

func (o *RemoveRandomNode) Applicable(g *genome.Genome) bool {
	return g.HiddenNodeCount() > 0
}

func (o *RemoveRandomNode) Apply(_ context.Context, g *genome.Genome) error {
	if o == nil || o.Rand == nil {
		return errors.New("random source is required")
	}
	hidden := g.NodesOfType(genome.Hidden)
	if len(hidden) == 0 {
		return ErrNoMutationChoice
	}
	if err := g.RemoveNode(hidden[o.Rand.Intn(len(hidden))].ID); err != nil {
		return err
	}
	g.RecomputeLayers()
	return nil
}

// MutateWeights visits every connection: with ReinitProbability the weight
// is resampled, otherwise it is perturbed by up to MaxDelta. Results are
// clamped to the configured max_weight.
type MutateWeights struct {
	Rand              *rand.Rand
	ReinitProbability float64
	MaxDelta          float64
}

func (o *MutateWeights) Name() string {
	return "mutate_weights"
}

func (o *MutateWeights) Applicable(g *genome.Genome) bool {
	return g.ConnectionCount() > 0
}

func (o *MutateWeights) Apply(_ context.Context, g *genome.Genome) error {
	if o == nil || o.Rand == nil {
		return errors.New("random source is required")
	}
	conns := g.Connections()
	if len(conns) == 0 {
		return ErrNoMutationChoice
	}
	limit := maxWeight(g)
	for _, c := range conns {
		if o.Rand.Float64() < o.ReinitProbability {
			c.Weight = genome.RandomWeight(o.Rand, limit)
			continue
		}
		delta := (o.Rand.Float64()*2 - 1) * o.MaxDelta
		c.Weight = nn.Clamp(c.Weight+delta, -limit, limit)
	}
	return nil
}

// ChangeRandomActivation swaps one eligible node's activation for a
// different configured one.
type ChangeRandomActivation struct {
	Rand *rand.Rand
}

func (o *ChangeRandomActivation) Name() string {
	return "mutate_activation"
}

func (o *ChangeRandomActivation) Applicable(g *genome.Genome) bool {
	return len(activationCandidates(g)) > 0
}

func (o *ChangeRandomActivation) Apply(_ context.Context, g *genome.Genome) error {
	if o == nil || o.Rand == nil {
		return errors.New("random source is required")
	}
	if g.Config == nil || len(g.Config.Activations) == 0 {
		return ErrNoMutationChoice
	}
	candidates := activationCandidates(g)
	if len(candidates) == 0 {
		return ErrNoMutationChoice
	}
	node := candidates[o.Rand.Intn(len(candidates))]

	choices := make([]string, 0, len(g.Config.Activations))
	for _, name := range g.Config.Activations {
		if name != node.Activation {
			choices = append(choices, name)
		}
	}
	if len(choices) == 0 {
		return ErrNoMutationChoice
	}
	node.Activation = choices[o.Rand.Intn(len(choices))]
	return nil
}

// ToggleRandomConnection disables a random enabled connection or, with
// ReenableProbability, re-enables a disabled one. Disabled genes already take
// part in the acyclicity check, so re-enabling never closes a cycle.
type ToggleRandomConnection struct {
	Rand                *rand.Rand
	ReenableProbability float64
}

func (o *ToggleRandomConnection) Name() string {
	return "toggle_connection"
}

func (o *ToggleRandomConnection) Applicable(g *genome.Genome) bool {
	return g.ConnectionCount() > 0
}

func (o *ToggleRandomConnection) Apply(_ context.Context, g *genome.Genome) error {
	if o == nil || o.Rand == nil {
		return errors.New("random source is required")
	}
	conns := g.Connections()
	if len(conns) == 0 {
		return ErrNoMutationChoice
	}
	c := conns[o.Rand.Intn(len(conns))]
	if c.Enabled {
		c.Enabled = false
	} else {
		if o.Rand.Float64() >= o.ReenableProbability {
			return fmt.Errorf("%w: re-enable of %s not drawn", ErrNoMutationChoice, c.Key())
		}
		c.Enabled = true
	}
	g.RecomputeLayers()
	return nil
}

func connectionSources(g *genome.Genome) []genome.NodeID {
	recurrent := g.Config != nil && g.Config.AllowRecurrent
	out := make([]genome.NodeID, 0, g.NodeCount())
	for _, n := range g.Nodes() {
		if n.Type == genome.Output && !recurrent {
			continue
		}
		out = append(out, n.ID)
	}
	return out
}

func connectionTargets(g *genome.Genome) []genome.NodeID {
	out := make([]genome.NodeID, 0, g.NodeCount())
	for _, n := range g.Nodes() {
		if !n.IsSource() {
			out = append(out, n.ID)
		}
	}
	return out
}

func activationCandidates(g *genome.Genome) []*genome.Node {
	if g.Config == nil {
		return nil
	}
	out := make([]*genome.Node, 0, g.NodeCount())
	for _, n := range g.Nodes() {
		switch n.Type {
		case genome.Hidden:
			out = append(out, n)
		case genome.Output:
			if g.Config.OutputActivation == "" {
				out = append(out, n)
			}
		case genome.Input, genome.Bias:
			if g.Config.AllowInputActivationMutation {
				out = append(out, n)
			}
		}
	}
	return out
}

func maxWeight(g *genome.Genome) float64 {
	if g.Config == nil || g.Config.MaxWeight <= 0 {
		return config.Default().MaxWeight
	}
	return g.Config.MaxWeight
}
