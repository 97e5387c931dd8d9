package genome

import (
	"errors"
	"math/rand"
	"sync"
	"testing"

	"cppnevo/internal/config"
	"cppnevo/internal/model"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.UseInputBias = false
	cfg.InitConnectionProbability = 1
	cfg.OutputActivation = "identity"
	cfg.ColorMode = "RGB"
	return &cfg
}

func minimal(t *testing.T, cfg *config.Config, tracker *InnovationTracker, seed int64) *Genome {
	t.Helper()
	g, err := CreateMinimal(cfg, tracker, rand.New(rand.NewSource(seed)))
	if err != nil {
		t.Fatalf("create minimal: %v", err)
	}
	return g
}

func TestCreateMinimalLayout(t *testing.T) {
	cfg := testConfig()
	cfg.UseInputBias = true
	cfg.UseRadialDistance = true
	g := minimal(t, cfg, NewInnovationTracker(), 1)

	inputs := g.NodesOfType(Input)
	if len(inputs) != 3 {
		t.Fatalf("expected x, y and radial inputs, got=%d", len(inputs))
	}
	bias := g.NodesOfType(Bias)
	if len(bias) != 1 || bias[0].ID != 3 {
		t.Fatalf("expected bias node with id 3, got=%v", bias)
	}
	outputs := g.NodesOfType(Output)
	if len(outputs) != 3 || outputs[0].ID != 4 {
		t.Fatalf("expected three outputs starting at id 4, got=%d", len(outputs))
	}
	for _, out := range outputs {
		if out.Activation != "identity" {
			t.Fatalf("expected forced output activation, got=%q", out.Activation)
		}
		if out.Layer != 1 {
			t.Fatalf("expected outputs on layer 1, got=%d", out.Layer)
		}
	}
	if g.ConnectionCount() != 12 {
		t.Fatalf("expected fully connected 4x3 genome, got=%d connections", g.ConnectionCount())
	}
	for _, c := range g.Connections() {
		if c.Weight < -cfg.MaxWeight || c.Weight > cfg.MaxWeight {
			t.Fatalf("weight out of range: %f", c.Weight)
		}
	}
	if err := g.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestCreateMinimalSeedsSharedHiddenNodes(t *testing.T) {
	cfg := testConfig()
	cfg.HiddenNodesAtStart = 2
	tracker := NewInnovationTracker()
	a := minimal(t, cfg, tracker, 1)
	b := minimal(t, cfg, tracker, 2)

	hiddenA, hiddenB := a.NodesOfType(Hidden), b.NodesOfType(Hidden)
	if len(hiddenA) != 2 || len(hiddenB) != 2 {
		t.Fatalf("expected two seeded hidden nodes each, got=%d/%d", len(hiddenA), len(hiddenB))
	}
	for i := range hiddenA {
		if hiddenA[i].ID != hiddenB[i].ID {
			t.Fatalf("expected shared seeded hidden ids, got=%d/%d", hiddenA[i].ID, hiddenB[i].ID)
		}
		if hiddenA[i].ID < 5 {
			t.Fatalf("hidden id %d collides with input/output range", hiddenA[i].ID)
		}
		if hiddenA[i].Layer != 1 {
			t.Fatalf("expected seeded hidden node on layer 1, got=%d", hiddenA[i].Layer)
		}
	}
	for _, out := range a.NodesOfType(Output) {
		if out.Layer != 2 {
			t.Fatalf("expected outputs behind hidden layer, got=%d", out.Layer)
		}
	}
}

func TestCreateMinimalRejectsBadInput(t *testing.T) {
	cfg := testConfig()
	rng := rand.New(rand.NewSource(1))
	if _, err := CreateMinimalWithShape(cfg, NewInnovationTracker(), rng, 0, 3); !errors.Is(err, ErrInvalidShape) {
		t.Fatalf("expected invalid shape, got=%v", err)
	}
	if _, err := CreateMinimalWithShape(cfg, NewInnovationTracker(), rng, 2, -1); !errors.Is(err, ErrInvalidShape) {
		t.Fatalf("expected invalid shape, got=%v", err)
	}

	cfg.Activations = []string{"sin", "wobble"}
	if _, err := CreateMinimal(cfg, NewInnovationTracker(), rng); !errors.Is(err, ErrUnknownActivation) {
		t.Fatalf("expected unknown activation, got=%v", err)
	}
}

func TestAddConnectionGuardsInvariants(t *testing.T) {
	cfg := testConfig()
	tracker := NewInnovationTracker()
	g := minimal(t, cfg, tracker, 1)
	hidden := tracker.NodeForSignature("test", g.HasNode)
	if err := g.AddNode(Node{ID: hidden, Type: Hidden, Activation: "sin"}); err != nil {
		t.Fatalf("add node: %v", err)
	}
	if err := g.AddNode(Node{ID: hidden, Type: Hidden, Activation: "sin"}); !errors.Is(err, ErrDuplicateNode) {
		t.Fatalf("expected duplicate node, got=%v", err)
	}

	link := func(from, to NodeID) error {
		return g.AddConnection(Connection{Innovation: tracker.ConnectionInnovation(from, to), From: from, To: to, Weight: 1, Enabled: true})
	}
	if err := link(0, hidden); err != nil {
		t.Fatalf("link input to hidden: %v", err)
	}

	cases := []struct {
		name     string
		from, to NodeID
		want     error
	}{
		{name: "duplicate", from: 0, to: 2, want: ErrDuplicateConnection},
		{name: "into input", from: hidden, to: 1, want: ErrInvalidEndpoint},
		{name: "from output", from: 2, to: hidden, want: ErrInvalidEndpoint},
		{name: "self loop", from: hidden, to: hidden, want: ErrCycle},
		{name: "missing node", from: 99, to: 2, want: ErrNodeNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := link(tc.from, tc.to); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got=%v", tc.want, err)
			}
			if g.CanConnect(tc.from, tc.to) {
				t.Fatalf("expected CanConnect(%d, %d) to be false", tc.from, tc.to)
			}
		})
	}
}

func TestWouldCreateCycleCountsDisabledConnections(t *testing.T) {
	cfg := testConfig()
	tracker := NewInnovationTracker()
	g := minimal(t, cfg, tracker, 1)
	h1 := tracker.NodeForSignature("a", g.HasNode)
	_ = g.AddNode(Node{ID: h1, Type: Hidden, Activation: "sin"})
	h2 := tracker.NodeForSignature("b", g.HasNode)
	_ = g.AddNode(Node{ID: h2, Type: Hidden, Activation: "sin"})

	if err := g.AddConnection(Connection{Innovation: tracker.ConnectionInnovation(h1, h2), From: h1, To: h2, Weight: 1}); err != nil {
		t.Fatalf("add disabled connection: %v", err)
	}
	if !g.WouldCreateCycle(h2, h1) {
		t.Fatal("expected disabled edge to block the reverse connection")
	}
	if g.WouldCreateCycle(h1, 2) {
		t.Fatal("expected hidden to output to be acyclic")
	}
}

func TestCloneIsDeep(t *testing.T) {
	g := minimal(t, testConfig(), NewInnovationTracker(), 1)
	g.SetFitness(0.5)
	clone := g.Clone()
	if clone.ID != g.ID || clone.FitnessOr(0) != 0.5 {
		t.Fatalf("expected clone to keep id and scores, got id=%s fitness=%v", clone.ID, clone.Fitness)
	}

	for _, c := range clone.Connections() {
		c.Weight = 42
		c.Enabled = false
	}
	clone.SetFitness(1)
	for _, c := range g.Connections() {
		if c.Weight == 42 || !c.Enabled {
			t.Fatalf("mutating clone leaked into original gene %s", c.Key())
		}
	}
	if g.FitnessOr(0) != 0.5 {
		t.Fatalf("mutating clone fitness leaked into original: %f", g.FitnessOr(0))
	}
}

func TestEnabledConnectionsSkipsDisabledGenes(t *testing.T) {
	g := minimal(t, testConfig(), NewInnovationTracker(), 1)
	conns := g.Connections()
	conns[0].Enabled = false
	conns[3].Enabled = false

	count := 0
	last := 0
	for c := range g.EnabledConnections() {
		if !c.Enabled {
			t.Fatalf("yielded disabled gene %s", c.Key())
		}
		if c.Innovation <= last {
			t.Fatalf("expected innovation order, got %d after %d", c.Innovation, last)
		}
		last = c.Innovation
		count++
	}
	if count != len(conns)-2 || g.EnabledConnectionCount() != count {
		t.Fatalf("expected %d enabled genes, got=%d", len(conns)-2, count)
	}
}

func TestInnovationTrackerIsMonotonicAndShared(t *testing.T) {
	tracker := NewInnovationTracker()
	first := tracker.ConnectionInnovation(0, 5)
	second := tracker.ConnectionInnovation(1, 5)
	if first != 1 || second != 2 {
		t.Fatalf("expected innovations 1 and 2, got=%d,%d", first, second)
	}
	if again := tracker.ConnectionInnovation(0, 5); again != first {
		t.Fatalf("expected same shape to reuse innovation %d, got=%d", first, again)
	}

	tracker.ReserveNodeIDs(5)
	split := tracker.NodeForSignature(SplitSignature(first), nil)
	if split != 5 {
		t.Fatalf("expected first minted node id 5, got=%d", split)
	}
	if shared := tracker.NodeForSignature(SplitSignature(first), func(NodeID) bool { return false }); shared != split {
		t.Fatalf("expected identical split to share node %d, got=%d", split, shared)
	}
	taken := func(id NodeID) bool { return id == split }
	if fresh := tracker.NodeForSignature(SplitSignature(first), taken); fresh == split {
		t.Fatal("expected repeated split inside one genome to mint a new node")
	}
}

func TestInnovationTrackerConcurrentIdenticalShapes(t *testing.T) {
	tracker := NewInnovationTracker()
	tracker.ReserveNodeIDs(10)

	const workers = 32
	innovations := make([]int, workers)
	nodes := make([]NodeID, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			innovations[i] = tracker.ConnectionInnovation(3, 7)
			nodes[i] = tracker.NodeForSignature(SplitSignature(innovations[i]), nil)
			_ = tracker.ConnectionInnovation(NodeID(100+i), 7)
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if innovations[i] != innovations[0] || nodes[i] != nodes[0] {
			t.Fatalf("concurrent identical mutations diverged: innovation %d/%d node %d/%d", innovations[0], innovations[i], nodes[0], nodes[i])
		}
	}
	if got := tracker.IssuedInnovations(); got != workers+1 {
		t.Fatalf("expected %d distinct innovations, got=%d", workers+1, got)
	}
	if got := tracker.LastInnovation(); got != workers+1 {
		t.Fatalf("expected dense innovation numbering up to %d, got=%d", workers+1, got)
	}
}

func TestCompatibilityDistance(t *testing.T) {
	cfg := testConfig()
	tracker := NewInnovationTracker()
	a := minimal(t, cfg, tracker, 1)
	b := a.Clone()
	if d := a.CompatibilityDistance(b); d != 0 {
		t.Fatalf("expected zero distance to clone, got=%f", d)
	}

	for _, c := range b.Connections() {
		c.Weight += 1
	}
	if d := a.CompatibilityDistance(b); d < 0.3999 || d > 0.4001 {
		t.Fatalf("expected c3 * 1.0 weight distance, got=%f", d)
	}

	// one disjoint gene in a, one excess gene in b
	c := a.Clone()
	removed := c.Connections()[2]
	_ = c.RemoveConnection(removed.Key())
	hidden := tracker.NodeForSignature("x", c.HasNode)
	_ = c.AddNode(Node{ID: hidden, Type: Hidden, Activation: "sin"})
	_ = c.AddConnection(Connection{Innovation: tracker.ConnectionInnovation(0, hidden), From: 0, To: hidden, Weight: 0, Enabled: true})
	if d := a.CompatibilityDistance(c); d != 2 {
		t.Fatalf("expected one excess plus one disjoint gene, got=%f", d)
	}
}

func TestCompatibilityDistanceIsSymmetric(t *testing.T) {
	cfg := testConfig()
	cfg.InitConnectionProbability = 0.5
	cfg.HiddenNodesAtStart = 3
	tracker := NewInnovationTracker()
	genomes := make([]*Genome, 0, 8)
	for seed := int64(1); seed <= 8; seed++ {
		genomes = append(genomes, minimal(t, cfg, tracker, seed))
	}
	for _, a := range genomes {
		for _, b := range genomes {
			if ab, ba := a.CompatibilityDistance(b), b.CompatibilityDistance(a); ab != ba {
				t.Fatalf("distance not symmetric: %f vs %f", ab, ba)
			}
		}
	}
}

func TestRecordRoundTrip(t *testing.T) {
	cfg := testConfig()
	cfg.HiddenNodesAtStart = 1
	g := minimal(t, cfg, NewInnovationTracker(), 3)
	g.SetFitness(0.25)
	g.SpeciesID = 2
	g.Connections()[0].Enabled = false

	rec := g.ToRecord()
	loaded, err := FromRecord(rec, cfg)
	if err != nil {
		t.Fatalf("from record: %v", err)
	}
	if loaded.ID != g.ID || loaded.SpeciesID != 2 || loaded.FitnessOr(0) != 0.25 {
		t.Fatalf("unexpected metadata after round trip: id=%s species=%d", loaded.ID, loaded.SpeciesID)
	}
	if loaded.NodeCount() != g.NodeCount() || loaded.ConnectionCount() != g.ConnectionCount() {
		t.Fatalf("unexpected gene counts after round trip")
	}
	for _, c := range g.Connections() {
		other, ok := loaded.Connection(c.Key())
		if !ok || *other != *c {
			t.Fatalf("connection %s not preserved", c.Key())
		}
	}
	for _, n := range g.Nodes() {
		other, ok := loaded.Node(n.ID)
		if !ok || other.Type != n.Type || other.Layer != n.Layer || other.Activation != n.Activation {
			t.Fatalf("node %d not preserved", n.ID)
		}
	}
}

func TestFromRecordRejectsMalformed(t *testing.T) {
	cfg := testConfig()
	base := func() model.Genome {
		return model.Genome{
			ID: "g",
			Nodes: []model.Node{
				{ID: 0, Type: "input", Activation: "identity"},
				{ID: 1, Type: "output", Layer: 2, Activation: "identity"},
				{ID: 2, Type: "hidden", Layer: 1, Activation: "sin"},
			},
			Conns: []model.Connection{
				{Innovation: 1, From: 0, To: 2, Weight: 1, Enabled: true},
				{Innovation: 2, From: 2, To: 1, Weight: 1, Enabled: true},
			},
		}
	}
	if _, err := FromRecord(base(), cfg); err != nil {
		t.Fatalf("expected base record to load: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*model.Genome)
		want   error
	}{
		{name: "duplicate pair", mutate: func(r *model.Genome) {
			r.Conns = append(r.Conns, model.Connection{Innovation: 3, From: 0, To: 2})
		}, want: ErrMalformedGenome},
		{name: "duplicate node", mutate: func(r *model.Genome) {
			r.Nodes = append(r.Nodes, model.Node{ID: 2, Type: "hidden", Activation: "sin"})
		}, want: ErrMalformedGenome},
		{name: "missing endpoint", mutate: func(r *model.Genome) {
			r.Conns = append(r.Conns, model.Connection{Innovation: 3, From: 9, To: 1})
		}, want: ErrMalformedGenome},
		{name: "cycle", mutate: func(r *model.Genome) {
			r.Nodes = append(r.Nodes, model.Node{ID: 3, Type: "hidden", Activation: "sin"})
			r.Conns = append(r.Conns,
				model.Connection{Innovation: 3, From: 2, To: 3},
				model.Connection{Innovation: 4, From: 3, To: 2},
			)
		}, want: ErrMalformedGenome},
		{name: "unknown node type", mutate: func(r *model.Genome) {
			r.Nodes[2].Type = "memory"
		}, want: ErrMalformedGenome},
		{name: "unknown activation", mutate: func(r *model.Genome) {
			r.Nodes[2].Activation = "wobble"
		}, want: ErrUnknownActivation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := base()
			tc.mutate(&rec)
			if _, err := FromRecord(rec, cfg); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got=%v", tc.want, err)
			}
		})
	}
}

func TestRecomputeLayersOnChain(t *testing.T) {
	cfg := testConfig()
	tracker := NewInnovationTracker()
	g := minimal(t, cfg, tracker, 1)
	h1 := tracker.NodeForSignature("a", g.HasNode)
	_ = g.AddNode(Node{ID: h1, Type: Hidden, Activation: "sin"})
	h2 := tracker.NodeForSignature("b", g.HasNode)
	_ = g.AddNode(Node{ID: h2, Type: Hidden, Activation: "sin"})
	for _, c := range []Connection{
		{From: 0, To: h1, Enabled: true},
		{From: h1, To: h2, Enabled: true},
		{From: h2, To: 2, Enabled: true},
	} {
		c.Innovation = tracker.ConnectionInnovation(c.From, c.To)
		if err := g.AddConnection(c); err != nil {
			t.Fatalf("add connection: %v", err)
		}
	}
	g.RecomputeLayers()

	want := map[NodeID]int{0: 0, 1: 0, h1: 1, h2: 2, 2: 3, 3: 3, 4: 3}
	for id, layer := range want {
		n, _ := g.Node(id)
		if n.Layer != layer {
			t.Fatalf("node %d: expected layer %d, got=%d", id, layer, n.Layer)
		}
	}
	order := g.FeedForwardOrder()
	if order[len(order)-1].Type != Output {
		t.Fatalf("expected outputs last in feed-forward order")
	}
}
