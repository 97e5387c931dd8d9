package genome

import (
	"fmt"
	"sync"
)

// InnovationTracker issues historical markers for one evolutionary run. The
// same (from, to) shape always maps to the same innovation number and the
// same split signature maps to the same hidden node ids, so identical
// structural mutations in different genomes align during crossover.
//
// A tracker is created at run start and passed explicitly to every operator
// that can create genes. All methods are safe for concurrent use.
type InnovationTracker struct {
	mu             sync.Mutex
	nextInnovation int
	nextNodeID     NodeID
	connections    map[ConnKey]int
	nodes          map[string][]NodeID
}

func NewInnovationTracker() *InnovationTracker {
	return &InnovationTracker{
		nextInnovation: 1,
		connections:    make(map[ConnKey]int),
		nodes:          make(map[string][]NodeID),
	}
}

// ReserveNodeIDs makes sure minted node ids start at or after n, keeping the
// fixed input and output ids out of the hidden range.
func (t *InnovationTracker) ReserveNodeIDs(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if NodeID(n) > t.nextNodeID {
		t.nextNodeID = NodeID(n)
	}
}

// ConnectionInnovation returns the innovation number for from->to, minting
// one the first time the shape is seen in this run.
func (t *InnovationTracker) ConnectionInnovation(from, to NodeID) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := ConnKey{From: from, To: to}
	if innovation, ok := t.connections[key]; ok {
		return innovation
	}
	innovation := t.nextInnovation
	t.nextInnovation++
	t.connections[key] = innovation
	return innovation
}

// NodeForSignature returns the first node id issued for signature that taken
// rejects, minting a new id when every previous one is already in use. A
// genome that splits the same connection twice therefore gets a fresh node
// the second time while other genomes performing the first split share it.
func (t *InnovationTracker) NodeForSignature(signature string, taken func(NodeID) bool) NodeID {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, id := range t.nodes[signature] {
		if taken == nil || !taken(id) {
			return id
		}
	}
	id := t.nextNodeID
	t.nextNodeID++
	t.nodes[signature] = append(t.nodes[signature], id)
	return id
}

// SplitSignature names the hidden node created by splitting a connection.
func SplitSignature(innovation int) string {
	return fmt.Sprintf("split:%d", innovation)
}

func seedSignature(k int) string {
	return fmt.Sprintf("seed:%d", k)
}

// IssuedInnovations is the number of connection shapes seen so far.
func (t *InnovationTracker) IssuedInnovations() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.connections)
}

func (t *InnovationTracker) LastInnovation() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nextInnovation - 1
}
