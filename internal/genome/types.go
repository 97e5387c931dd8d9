// Package genome implements the CPPN genotype: integer-keyed node and
// connection arenas, the run-scoped innovation tracker and the structural
// primitives the evolutionary operators are built from.
package genome

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"sort"

	"github.com/google/uuid"

	"cppnevo/internal/config"
)

var (
	ErrInvalidShape       = errors.New("invalid genome shape")
	ErrUnknownActivation  = errors.New("unknown activation")
	ErrMalformedGenome    = errors.New("malformed genome")
	ErrInvariantViolation = errors.New("genome invariant violation")

	ErrDuplicateNode       = errors.New("node already exists")
	ErrDuplicateConnection = errors.New("connection already exists")
	ErrNodeNotFound        = errors.New("node not found")
	ErrConnectionNotFound  = errors.New("connection not found")
	ErrInvalidEndpoint     = errors.New("invalid connection endpoint")
	ErrCycle               = errors.New("connection would create a cycle")
)

type NodeID int

type NodeType int

const (
	Input NodeType = iota
	Output
	Hidden
	Bias
)

func (t NodeType) String() string {
	switch t {
	case Input:
		return "input"
	case Output:
		return "output"
	case Hidden:
		return "hidden"
	case Bias:
		return "bias"
	default:
		return fmt.Sprintf("node_type(%d)", int(t))
	}
}

func ParseNodeType(s string) (NodeType, error) {
	switch s {
	case "input":
		return Input, nil
	case "output":
		return Output, nil
	case "hidden":
		return Hidden, nil
	case "bias":
		return Bias, nil
	default:
		return 0, fmt.Errorf("unknown node type: %q", s)
	}
}

type Node struct {
	ID         NodeID
	Type       NodeType
	Layer      int
	Activation string

	// Output is scratch space for the last forward pass and is never persisted.
	Output float64
}

// IsSource reports whether the node is fed by coordinates rather than by
// connections.
func (n *Node) IsSource() bool {
	return n.Type == Input || n.Type == Bias
}

type ConnKey struct {
	From NodeID
	To   NodeID
}

func (k ConnKey) String() string {
	return fmt.Sprintf("%d->%d", k.From, k.To)
}

type Connection struct {
	Innovation int
	From       NodeID
	To         NodeID
	Weight     float64
	Enabled    bool
}

func (c *Connection) Key() ConnKey {
	return ConnKey{From: c.From, To: c.To}
}

type Genome struct {
	ID        string
	Config    *config.Config
	Fitness   *float64
	Novelty   *float64
	SpeciesID int
	ParentIDs []string

	nodes map[NodeID]*Node
	conns map[ConnKey]*Connection
}

// New returns an empty genome bound to cfg.
func New(id string, cfg *config.Config) *Genome {
	return &Genome{
		ID:     id,
		Config: cfg,
		nodes:  make(map[NodeID]*Node),
		conns:  make(map[ConnKey]*Connection),
	}
}

// NewID draws a genome id from r so seeded runs produce stable ids.
func NewID(r io.Reader) string {
	if r == nil {
		return uuid.NewString()
	}
	id, err := uuid.NewRandomFromReader(r)
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (g *Genome) Node(id NodeID) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

func (g *Genome) HasNode(id NodeID) bool {
	_, ok := g.nodes[id]
	return ok
}

func (g *Genome) Connection(key ConnKey) (*Connection, bool) {
	c, ok := g.conns[key]
	return c, ok
}

func (g *Genome) NodeCount() int { return len(g.nodes) }
func (g *Genome) ConnectionCount() int { return len(g.conns) }

// Nodes returns the node genes ordered by id.
func (g *Genome) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NodesOfType returns the nodes of one type ordered by id.
func (g *Genome) NodesOfType(t NodeType) []*Node {
	out := make([]*Node, 0)
	for _, n := range g.Nodes() {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

// Connections returns the connection genes ordered by innovation number.
func (g *Genome) Connections() []*Connection {
	out := make([]*Connection, 0, len(g.conns))
	for _, c := range g.conns {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Innovation == out[j].Innovation {
			return out[i].From < out[j].From || (out[i].From == out[j].From && out[i].To < out[j].To)
		}
		return out[i].Innovation < out[j].Innovation
	})
	return out
}

// EnabledConnections lazily yields enabled genes in innovation order.
func (g *Genome) EnabledConnections() iter.Seq[*Connection] {
	return func(yield func(*Connection) bool) {
		for _, c := range g.Connections() {
			if !c.Enabled {
				continue
			}
			if !yield(c) {
				return
			}
		}
	}
}

func (g *Genome) EnabledConnectionCount() int {
	n := 0
	for _, c := range g.conns {
		if c.Enabled {
			n++
		}
	}
	return n
}

func (g *Genome) HiddenNodeCount() int {
	n := 0
	for _, node := range g.nodes {
		if node.Type == Hidden {
			n++
		}
	}
	return n
}

// FitnessOr returns the fitness or fallback when unevaluated.
func (g *Genome) FitnessOr(fallback float64) float64 {
	if g.Fitness == nil {
		return fallback
	}
	return *g.Fitness
}

func (g *Genome) NoveltyOr(fallback float64) float64 {
	if g.Novelty == nil {
		return fallback
	}
	return *g.Novelty
}

func (g *Genome) SetFitness(v float64) { g.Fitness = &v }
func (g *Genome) SetNovelty(v float64) { g.Novelty = &v }

// Clone returns a deep copy with the same id, genes and scores.
func (g *Genome) Clone() *Genome {
	out := New(g.ID, g.Config)
	out.SpeciesID = g.SpeciesID
	out.ParentIDs = append([]string(nil), g.ParentIDs...)
	if g.Fitness != nil {
		out.SetFitness(*g.Fitness)
	}
	if g.Novelty != nil {
		out.SetNovelty(*g.Novelty)
	}
	for id, n := range g.nodes {
		copied := *n
		out.nodes[id] = &copied
	}
	for key, c := range g.conns {
		copied := *c
		out.conns[key] = &copied
	}
	return out
}

// ResetScores clears evaluation results, used when a genome changes shape.
func (g *Genome) ResetScores() {
	g.Fitness = nil
	g.Novelty = nil
}

func (g *Genome) AddNode(n Node) error {
	if _, exists := g.nodes[n.ID]; exists {
		return fmt.Errorf("%w: %w: %d", ErrInvariantViolation, ErrDuplicateNode, n.ID)
	}
	copied := n
	g.nodes[n.ID] = &copied
	return nil
}

// RemoveNode drops a hidden node together with every incident connection.
func (g *Genome) RemoveNode(id NodeID) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	if n.Type != Hidden {
		return fmt.Errorf("%w: node %d is %s", ErrInvariantViolation, id, n.Type)
	}
	for key := range g.conns {
		if key.From == id || key.To == id {
			delete(g.conns, key)
		}
	}
	delete(g.nodes, id)
	return nil
}

// AddConnection inserts a copy of c after checking endpoints, key uniqueness
// and, unless recurrence is allowed, acyclicity.
func (g *Genome) AddConnection(c Connection) error {
	key := c.Key()
	if _, exists := g.conns[key]; exists {
		return fmt.Errorf("%w: %w: %s", ErrInvariantViolation, ErrDuplicateConnection, key)
	}
	if err := g.checkEndpoints(c.From, c.To); err != nil {
		return err
	}
	if !g.allowRecurrent() && g.WouldCreateCycle(c.From, c.To) {
		return fmt.Errorf("%w: %w: %s", ErrInvariantViolation, ErrCycle, key)
	}
	copied := c
	g.conns[key] = &copied
	return nil
}

func (g *Genome) RemoveConnection(key ConnKey) error {
	if _, ok := g.conns[key]; !ok {
		return fmt.Errorf("%w: %s", ErrConnectionNotFound, key)
	}
	delete(g.conns, key)
	return nil
}

// CanConnect reports whether from->to is a legal new connection.
func (g *Genome) CanConnect(from, to NodeID) bool {
	if _, exists := g.conns[ConnKey{From: from, To: to}]; exists {
		return false
	}
	if g.checkEndpoints(from, to) != nil {
		return false
	}
	return g.allowRecurrent() || !g.WouldCreateCycle(from, to)
}

func (g *Genome) checkEndpoints(from, to NodeID) error {
	src, ok := g.nodes[from]
	if !ok {
		return fmt.Errorf("%w: %w: source %d", ErrInvalidEndpoint, ErrNodeNotFound, from)
	}
	dst, ok := g.nodes[to]
	if !ok {
		return fmt.Errorf("%w: %w: target %d", ErrInvalidEndpoint, ErrNodeNotFound, to)
	}
	if dst.IsSource() {
		return fmt.Errorf("%w: target %d is %s", ErrInvalidEndpoint, to, dst.Type)
	}
	if src.Type == Output && !g.allowRecurrent() {
		return fmt.Errorf("%w: source %d is an output", ErrInvalidEndpoint, from)
	}
	return nil
}

func (g *Genome) allowRecurrent() bool {
	return g.Config != nil && g.Config.AllowRecurrent
}
