package genome

import (
	"fmt"
	"math/rand"

	"cppnevo/internal/config"
	"cppnevo/internal/nn"
)

const inputActivation = "identity"

// CreateMinimal builds the starting genome for cfg: coordinate inputs (x, y,
// optional radial distance, optional bias), one output per colour channel and
// hidden_nodes_at_start seeded hidden nodes, wired with probability
// init_connection_probability.
func CreateMinimal(cfg *config.Config, tracker *InnovationTracker, rng *rand.Rand) (*Genome, error) {
	return CreateMinimalWithShape(cfg, tracker, rng, cfg.NumInputs(), cfg.NumOutputs())
}

func CreateMinimalWithShape(cfg *config.Config, tracker *InnovationTracker, rng *rand.Rand, numInputs, numOutputs int) (*Genome, error) {
	if numInputs <= 0 || numOutputs <= 0 {
		return nil, fmt.Errorf("%w: inputs=%d outputs=%d", ErrInvalidShape, numInputs, numOutputs)
	}
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if tracker == nil {
		return nil, fmt.Errorf("innovation tracker is required")
	}
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if len(cfg.Activations) == 0 {
		return nil, fmt.Errorf("%w: no activations configured", ErrUnknownActivation)
	}
	if err := nn.ValidateActivations(cfg.Activations); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnknownActivation, err)
	}
	if cfg.OutputActivation != "" {
		if _, err := nn.GetActivation(cfg.OutputActivation); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnknownActivation, err)
		}
	}

	tracker.ReserveNodeIDs(numInputs + numOutputs)
	g := New(NewID(rng), cfg)

	inputs := make([]NodeID, 0, numInputs)
	for i := 0; i < numInputs; i++ {
		nodeType := Input
		if cfg.UseInputBias && i == numInputs-1 {
			nodeType = Bias
		}
		id := NodeID(i)
		if err := g.AddNode(Node{ID: id, Type: nodeType, Activation: inputActivation}); err != nil {
			return nil, err
		}
		inputs = append(inputs, id)
	}

	outputs := make([]NodeID, 0, numOutputs)
	for i := 0; i < numOutputs; i++ {
		id := NodeID(numInputs + i)
		activation := cfg.OutputActivation
		if activation == "" {
			activation = RandomActivation(rng, cfg.Activations)
		}
		if err := g.AddNode(Node{ID: id, Type: Output, Activation: activation}); err != nil {
			return nil, err
		}
		outputs = append(outputs, id)
	}

	connect := func(from, to NodeID) error {
		if rng.Float64() >= cfg.InitConnectionProbability {
			return nil
		}
		return g.AddConnection(Connection{
			Innovation: tracker.ConnectionInnovation(from, to),
			From:       from,
			To:         to,
			Weight:     RandomWeight(rng, cfg.MaxWeight),
			Enabled:    true,
		})
	}

	for k := 0; k < cfg.HiddenNodesAtStart; k++ {
		id := tracker.NodeForSignature(seedSignature(k), g.HasNode)
		if err := g.AddNode(Node{ID: id, Type: Hidden, Activation: RandomActivation(rng, cfg.Activations)}); err != nil {
			return nil, err
		}
		for _, in := range inputs {
			if err := connect(in, id); err != nil {
				return nil, err
			}
		}
		for _, out := range outputs {
			if err := connect(id, out); err != nil {
				return nil, err
			}
		}
	}
	for _, in := range inputs {
		for _, out := range outputs {
			if err := connect(in, out); err != nil {
				return nil, err
			}
		}
	}

	g.RecomputeLayers()
	return g, nil
}

// RandomActivation picks uniformly from names; callers validate names first.
func RandomActivation(rng *rand.Rand, names []string) string {
	if len(names) == 0 {
		return inputActivation
	}
	return names[rng.Intn(len(names))]
}

// RandomWeight draws uniformly from [-maxWeight, maxWeight].
func RandomWeight(rng *rand.Rand, maxWeight float64) float64 {
	return (rng.Float64()*2 - 1) * maxWeight
}
