package genome

import (
	"fmt"

	"cppnevo/internal/config"
	"cppnevo/internal/model"
	"cppnevo/internal/nn"
)

// ToRecord returns the structural description of g: nodes ordered by id and
// connections ordered by innovation.
func (g *Genome) ToRecord() model.Genome {
	rec := model.Genome{
		VersionedRecord: model.CurrentVersion(),
		ID:              g.ID,
		Nodes:           make([]model.Node, 0, len(g.nodes)),
		Conns:           make([]model.Connection, 0, len(g.conns)),
		SpeciesID:       g.SpeciesID,
		ParentIDs:       append([]string(nil), g.ParentIDs...),
	}
	if g.Fitness != nil {
		v := *g.Fitness
		rec.Fitness = &v
	}
	if g.Novelty != nil {
		v := *g.Novelty
		rec.Novelty = &v
	}
	for _, n := range g.Nodes() {
		rec.Nodes = append(rec.Nodes, model.Node{
			ID:         int(n.ID),
			Type:       n.Type.String(),
			Layer:      n.Layer,
			Activation: n.Activation,
		})
	}
	for _, c := range g.Connections() {
		rec.Conns = append(rec.Conns, model.Connection{
			Innovation: c.Innovation,
			From:       int(c.From),
			To:         int(c.To),
			Weight:     c.Weight,
			Enabled:    c.Enabled,
		})
	}
	return rec
}

// FromRecord rebuilds a genome and validates it. Structural problems are
// reported as ErrMalformedGenome and unregistered activations as
// ErrUnknownActivation.
func FromRecord(rec model.Genome, cfg *config.Config) (*Genome, error) {
	g := New(rec.ID, cfg)
	g.SpeciesID = rec.SpeciesID
	g.ParentIDs = append([]string(nil), rec.ParentIDs...)
	if rec.Fitness != nil {
		g.SetFitness(*rec.Fitness)
	}
	if rec.Novelty != nil {
		g.SetNovelty(*rec.Novelty)
	}

	for _, n := range rec.Nodes {
		nodeType, err := ParseNodeType(n.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: node %d: %w", ErrMalformedGenome, n.ID, err)
		}
		if _, err := nn.GetActivation(n.Activation); err != nil {
			return nil, fmt.Errorf("%w: node %d: %w", ErrUnknownActivation, n.ID, err)
		}
		if g.HasNode(NodeID(n.ID)) {
			return nil, fmt.Errorf("%w: %w: %d", ErrMalformedGenome, ErrDuplicateNode, n.ID)
		}
		g.nodes[NodeID(n.ID)] = &Node{
			ID:         NodeID(n.ID),
			Type:       nodeType,
			Layer:      n.Layer,
			Activation: n.Activation,
		}
	}
	if len(g.NodesOfType(Output)) == 0 {
		return nil, fmt.Errorf("%w: no output nodes", ErrMalformedGenome)
	}

	for _, c := range rec.Conns {
		conn := &Connection{
			Innovation: c.Innovation,
			From:       NodeID(c.From),
			To:         NodeID(c.To),
			Weight:     c.Weight,
			Enabled:    c.Enabled,
		}
		if _, dup := g.conns[conn.Key()]; dup {
			return nil, fmt.Errorf("%w: %w: %s", ErrMalformedGenome, ErrDuplicateConnection, conn.Key())
		}
		g.conns[conn.Key()] = conn
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	g.RecomputeLayers()
	return g, nil
}
