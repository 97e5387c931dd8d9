package genome

import (
	"fmt"
	"sort"
)

// WouldCreateCycle reports whether adding from->to closes a directed cycle.
// Disabled connections count, so re-enabling a gene can never break
// acyclicity.
func (g *Genome) WouldCreateCycle(from, to NodeID) bool {
	if from == to {
		return true
	}
	return g.reachable(to, from)
}

func (g *Genome) reachable(start, target NodeID) bool {
	adjacency := g.adjacency(false)
	visited := map[NodeID]bool{start: true}
	stack := []NodeID{start}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if current == target {
			return true
		}
		for _, next := range adjacency[current] {
			if !visited[next] {
				visited[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}

// HasCycle reports whether the connection set contains any directed cycle.
func (g *Genome) HasCycle() bool {
	adjacency := g.adjacency(false)
	const (
		unvisited = iota
		active
		done
	)
	state := make(map[NodeID]int, len(g.nodes))
	var visit func(NodeID) bool
	visit = func(id NodeID) bool {
		state[id] = active
		for _, next := range adjacency[id] {
			switch state[next] {
			case active:
				return true
			case unvisited:
				if visit(next) {
					return true
				}
			}
		}
		state[id] = done
		return false
	}
	for _, n := range g.Nodes() {
		if state[n.ID] == unvisited && visit(n.ID) {
			return true
		}
	}
	return false
}

func (g *Genome) adjacency(enabledOnly bool) map[NodeID][]NodeID {
	adjacency := make(map[NodeID][]NodeID, len(g.nodes))
	for _, c := range g.Connections() {
		if enabledOnly && !c.Enabled {
			continue
		}
		adjacency[c.From] = append(adjacency[c.From], c.To)
	}
	return adjacency
}

// RecomputeLayers assigns each node its depth along enabled connections.
// Sources sit on layer 0, hidden nodes one past their deepest predecessor and
// every output on the layer after the deepest non-output node.
func (g *Genome) RecomputeLayers() {
	incoming := make(map[NodeID][]NodeID, len(g.nodes))
	outgoing := make(map[NodeID][]NodeID, len(g.nodes))
	indegree := make(map[NodeID]int, len(g.nodes))
	for _, c := range g.Connections() {
		if !c.Enabled {
			continue
		}
		src, dst := g.nodes[c.From], g.nodes[c.To]
		if src == nil || dst == nil || dst.Type == Output || src.Type == Output {
			continue
		}
		incoming[c.To] = append(incoming[c.To], c.From)
		outgoing[c.From] = append(outgoing[c.From], c.To)
		indegree[c.To]++
	}

	layers := make(map[NodeID]int, len(g.nodes))
	queue := make([]NodeID, 0, len(g.nodes))
	for _, n := range g.Nodes() {
		if n.Type == Output {
			continue
		}
		if indegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		layers[id] = g.layerFromPredecessors(id, incoming[id], layers)
		for _, next := range outgoing[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	deepest := 0
	for _, n := range g.Nodes() {
		if n.Type == Output {
			continue
		}
		if _, placed := layers[n.ID]; !placed {
			// only reachable with recurrent genomes
			layers[n.ID] = g.layerFromPredecessors(n.ID, incoming[n.ID], layers)
		}
		n.Layer = layers[n.ID]
		if n.Layer > deepest {
			deepest = n.Layer
		}
	}
	for _, n := range g.nodes {
		if n.Type == Output {
			n.Layer = deepest + 1
		}
	}
}

func (g *Genome) layerFromPredecessors(id NodeID, preds []NodeID, layers map[NodeID]int) int {
	if g.nodes[id].IsSource() {
		return 0
	}
	layer := 1
	for _, pred := range preds {
		if l, ok := layers[pred]; ok && l+1 > layer {
			layer = l + 1
		}
	}
	return layer
}

// FeedForwardOrder returns nodes sorted by layer then id, a valid evaluation
// order once RecomputeLayers has run on an acyclic genome.
func (g *Genome) FeedForwardOrder() []*Node {
	nodes := g.Nodes()
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Layer == nodes[j].Layer {
			return nodes[i].ID < nodes[j].ID
		}
		return nodes[i].Layer < nodes[j].Layer
	})
	return nodes
}

// Validate checks the structural invariants: endpoints exist, keys match
// their genes, innovation numbers are unique and, unless recurrence is
// allowed, the graph is acyclic.
func (g *Genome) Validate() error {
	seenInnovation := make(map[int]ConnKey, len(g.conns))
	for key, c := range g.conns {
		if key != c.Key() {
			return fmt.Errorf("%w: connection stored under %s has endpoints %s", ErrMalformedGenome, key, c.Key())
		}
		if err := g.checkEndpoints(c.From, c.To); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedGenome, err)
		}
		if other, dup := seenInnovation[c.Innovation]; dup {
			return fmt.Errorf("%w: innovation %d shared by %s and %s", ErrMalformedGenome, c.Innovation, other, key)
		}
		seenInnovation[c.Innovation] = key
	}
	if !g.allowRecurrent() && g.HasCycle() {
		return fmt.Errorf("%w: %w", ErrMalformedGenome, ErrCycle)
	}
	return nil
}
