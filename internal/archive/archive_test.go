package archive

import (
	"errors"
	"math/rand"
	"sync"
	"testing"

	"cppnevo/internal/config"
	"cppnevo/internal/genome"
)

func archiveConfig(votingFns []string, perCell int, policy string) *config.Config {
	cfg := config.Default()
	cfg.MapElitesResolution = []int{4, 2}
	cfg.MapElitesMinValues = []float64{0, 0}
	cfg.MapElitesMaxValues = []float64{1, 10}
	cfg.MapElitesDescriptors = []string{AxisNovelty, AxisConnections}
	cfg.MapElitesVotingFns = votingFns
	cfg.MapElitesVotingFnsPerCell = perCell
	cfg.MapElitesVotePolicy = policy
	return &cfg
}

func newArchive(t *testing.T, cfg *config.Config) *Archive {
	t.Helper()
	a, err := New(cfg, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("new archive: %v", err)
	}
	return a
}

func candidate(t *testing.T, cfg *config.Config, seed int64) *genome.Genome {
	t.Helper()
	g, err := genome.CreateMinimal(cfg, genome.NewInnovationTracker(), rand.New(rand.NewSource(seed)))
	if err != nil {
		t.Fatalf("create minimal: %v", err)
	}
	return g
}

func TestNewRejectsInvalidAxes(t *testing.T) {
	cases := []struct {
		name   string
		modify func(cfg *config.Config)
		want   error
	}{
		{name: "max equals min", modify: func(cfg *config.Config) { cfg.MapElitesMaxValues[1] = 0 }, want: ErrDescriptorRange},
		{name: "max below min", modify: func(cfg *config.Config) { cfg.MapElitesMinValues[0] = 2 }, want: ErrDescriptorRange},
		{name: "zero resolution", modify: func(cfg *config.Config) { cfg.MapElitesResolution[0] = 0 }, want: ErrDescriptorRange},
		{name: "length mismatch", modify: func(cfg *config.Config) { cfg.MapElitesMaxValues = []float64{1} }, want: ErrDescriptorShape},
		{name: "unknown axis", modify: func(cfg *config.Config) { cfg.MapElitesDescriptors[0] = "colour" }, want: ErrUnknownDescriptor},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := archiveConfig([]string{"mse"}, 1, config.VoteMajority)
			tc.modify(cfg)
			if _, err := New(cfg, rand.New(rand.NewSource(1))); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestDiscretizeClampsAndBuckets(t *testing.T) {
	a := newArchive(t, archiveConfig([]string{"mse"}, 1, config.VoteMajority))
	if a.Size() != 8 {
		t.Fatalf("expected 8 cells, got=%d", a.Size())
	}
	cases := []struct {
		values []float64
		want   []int
	}{
		{[]float64{0, 0}, []int{0, 0}},
		{[]float64{0.26, 4.9}, []int{1, 0}},
		{[]float64{0.99, 5}, []int{3, 1}},
		{[]float64{1, 10}, []int{3, 1}},
		{[]float64{-3, 42}, []int{0, 1}},
	}
	for _, tc := range cases {
		got, err := a.Discretize(tc.values)
		if err != nil {
			t.Fatalf("discretize %v: %v", tc.values, err)
		}
		if got[0] != tc.want[0] || got[1] != tc.want[1] {
			t.Fatalf("discretize %v: expected %v, got=%v", tc.values, tc.want, got)
		}
		if back := a.coordsOf(a.Index(got)); back[0] != got[0] || back[1] != got[1] {
			t.Fatalf("index round trip failed for %v: %v", got, back)
		}
	}
	if _, err := a.Discretize([]float64{1}); !errors.Is(err, ErrDescriptorShape) {
		t.Fatalf("expected descriptor shape error, got=%v", err)
	}
}

func TestVotingFunctionsDrawnPerCell(t *testing.T) {
	pool := []string{"mse", "mae", "psnr", "ncc"}
	a := newArchive(t, archiveConfig(pool, 2, config.VoteMajority))
	for i := 0; i < a.Size(); i++ {
		view, _ := a.Cell(i)
		if len(view.VotingFns) != 2 || view.VotingFns[0] == view.VotingFns[1] {
			t.Fatalf("cell %d: expected two distinct voting functions, got=%v", i, view.VotingFns)
		}
	}
	whole := newArchive(t, archiveConfig(pool, 9, config.VoteMajority))
	if view, _ := whole.Cell(0); len(view.VotingFns) != len(pool) {
		t.Fatalf("expected oversized per-cell count to use the whole pool, got=%v", view.VotingFns)
	}
}

func TestPlaceIsMonotonicAndTiesKeepIncumbent(t *testing.T) {
	cfg := archiveConfig([]string{"mse"}, 1, config.VoteMajority)
	a := newArchive(t, cfg)
	descriptor := []float64{0.1, 1}
	sequence := []float64{0.3, 0.2, 0.5, 0.5, 0.4, 0.9, 0.1}
	best := -1.0
	for i, score := range sequence {
		g := candidate(t, cfg, int64(i+1))
		accepted, err := a.Place(g, descriptor, map[string]float64{"mse": score})
		if err != nil {
			t.Fatalf("place: %v", err)
		}
		if want := score > best; accepted != want {
			t.Fatalf("step %d score %f: expected accepted=%v", i, score, want)
		}
		if accepted {
			best = score
		}
		coords, _ := a.Discretize(descriptor)
		view, _ := a.Cell(a.Index(coords))
		if view.Scores["mse"] != best {
			t.Fatalf("step %d: occupant score %f, expected running best %f", i, view.Scores["mse"], best)
		}
	}
	if got := a.Coverage(); got != 1.0/8 {
		t.Fatalf("expected one occupied cell of eight, got=%f", got)
	}
}

func TestVotePolicies(t *testing.T) {
	fns := []string{"mse", "mae", "ncc"}
	incumbent := map[string]float64{"mse": 0.5, "mae": 0.5, "ncc": 0.5}
	cases := []struct {
		name   string
		policy string
		scores map[string]float64
		want   bool
	}{
		{"majority two of three", config.VoteMajority, map[string]float64{"mse": 0.6, "mae": 0.6, "ncc": 0.1}, true},
		{"majority one of three", config.VoteMajority, map[string]float64{"mse": 0.6, "mae": 0.5, "ncc": 0.1}, false},
		{"majority ties", config.VoteMajority, map[string]float64{"mse": 0.5, "mae": 0.5, "ncc": 0.5}, false},
		{"majority missing score", config.VoteMajority, map[string]float64{"mse": 0.9}, false},
		{"unanimous", config.VoteUnanimous, map[string]float64{"mse": 0.6, "mae": 0.6, "ncc": 0.6}, true},
		{"unanimous one short", config.VoteUnanimous, map[string]float64{"mse": 0.6, "mae": 0.6, "ncc": 0.5}, false},
		{"any", config.VoteAny, map[string]float64{"mse": 0.1, "mae": 0.1, "ncc": 0.51}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := archiveConfig(fns, 3, tc.policy)
			a := newArchive(t, cfg)
			descriptor := []float64{0.5, 5}
			if ok, err := a.Place(candidate(t, cfg, 1), descriptor, incumbent); err != nil || !ok {
				t.Fatalf("expected empty cell to accept: ok=%v err=%v", ok, err)
			}
			ok, err := a.Place(candidate(t, cfg, 2), descriptor, tc.scores)
			if err != nil {
				t.Fatalf("place: %v", err)
			}
			if ok != tc.want {
				t.Fatalf("expected accepted=%v, got=%v", tc.want, ok)
			}
		})
	}
}

func TestConcurrentPlacementKeepsBest(t *testing.T) {
	cfg := archiveConfig([]string{"mse"}, 1, config.VoteMajority)
	a := newArchive(t, cfg)
	descriptor := []float64{0.9, 9}
	genomes := make([]*genome.Genome, 64)
	for i := range genomes {
		genomes[i] = candidate(t, cfg, int64(i+1))
	}

	var wg sync.WaitGroup
	for i, g := range genomes {
		wg.Add(1)
		go func(i int, g *genome.Genome) {
			defer wg.Done()
			_, _ = a.Place(g, descriptor, map[string]float64{"mse": float64(i)})
		}(i, g)
	}
	wg.Wait()

	coords, _ := a.Discretize(descriptor)
	view, _ := a.Cell(a.Index(coords))
	if view.Scores["mse"] != 63 || view.Occupant.ID != genomes[63].ID {
		t.Fatalf("expected best placement to win, got score=%f", view.Scores["mse"])
	}
}

func TestRecordsAndDescribe(t *testing.T) {
	cfg := archiveConfig([]string{"mse"}, 1, config.VoteMajority)
	a := newArchive(t, cfg)
	g := candidate(t, cfg, 1)
	g.SetNovelty(0.6)
	descriptor, err := Describe(g, a.Axes())
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if descriptor[0] != 0.6 || descriptor[1] != float64(g.EnabledConnectionCount()) {
		t.Fatalf("unexpected descriptor: %v", descriptor)
	}
	if _, err := a.Place(g, descriptor, map[string]float64{"mse": 1}); err != nil {
		t.Fatalf("place: %v", err)
	}
	records := a.Records()
	if len(records) != 1 || records[0].Genome.ID != g.ID {
		t.Fatalf("expected one record for %s, got=%v", g.ID, records)
	}
	if len(a.Occupants()) != 1 {
		t.Fatalf("expected one occupant")
	}
	if _, err := Describe(g, []string{"colour"}); !errors.Is(err, ErrUnknownDescriptor) {
		t.Fatalf("expected unknown descriptor, got=%v", err)
	}
}
