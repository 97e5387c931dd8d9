package evo

import (
	"context"
	"errors"
	"math/rand"

	"cppnevo/internal/config"
	"cppnevo/internal/genome"
)

// WeightedMutation pairs an operator with the probability that it fires
// during one Mutate call.
type WeightedMutation struct {
	Operator    Operator
	Probability func(cfg *config.Config) float64
}

// MutationReport lists the operators that fired on one genome, split into
// those that changed it and those that turned out to be no-ops.
type MutationReport struct {
	Applied []string
	Noops   []string
}

func (r MutationReport) Changed() bool {
	return len(r.Applied) > 0
}

// Mutator applies every mutation category independently per its configured
// probability, scaled by the dynamic mutation-rate modifier.
type Mutator struct {
	cfg    *config.Config
	rng    *rand.Rand
	policy []WeightedMutation
}

func NewMutator(cfg *config.Config, tracker *genome.InnovationTracker, rng *rand.Rand) (*Mutator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if tracker == nil {
		return nil, errors.New("innovation tracker is required")
	}
	if rng == nil {
		return nil, errors.New("random source is required")
	}
	return &Mutator{cfg: cfg, rng: rng, policy: DefaultMutationPolicy(cfg, tracker, rng)}, nil
}

// NewMutatorWithPolicy builds a Mutator around an explicit operator set.
func NewMutatorWithPolicy(cfg *config.Config, rng *rand.Rand, policy []WeightedMutation) (*Mutator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if rng == nil {
		return nil, errors.New("random source is required")
	}
	for _, item := range policy {
		if item.Operator == nil || item.Probability == nil {
			return nil, errors.New("mutation policy entries need an operator and a probability")
		}
	}
	return &Mutator{cfg: cfg, rng: rng, policy: append([]WeightedMutation(nil), policy...)}, nil
}

// DefaultMutationPolicy wires the six mutation categories to their
// configured probabilities.
func DefaultMutationPolicy(cfg *config.Config, tracker *genome.InnovationTracker, rng *rand.Rand) []WeightedMutation {
	return []WeightedMutation{
		{
			Operator:    &AddRandomNode{Rand: rng, Tracker: tracker},
			Probability: func(cfg *config.Config) float64 { return cfg.ProbAddNode },
		},
		{
			Operator:    &AddRandomConnection{Rand: rng, Tracker: tracker, MaxAttempts: cfg.MaxAddConnectionAttempts},
			Probability: func(cfg *config.Config) float64 { return cfg.ProbAddConnection },
		},
		{
			Operator:    &RemoveRandomNode{Rand: rng},
			Probability: func(cfg *config.Config) float64 { return cfg.ProbRemoveNode },
		},
		{
			Operator:    &ToggleRandomConnection{Rand: rng, ReenableProbability: cfg.ProbReenableConnection},
			Probability: func(cfg *config.Config) float64 { return cfg.ProbDisableConnection },
		},
		{
			Operator:    &MutateWeights{Rand: rng, ReinitProbability: cfg.ProbWeightReinit, MaxDelta: cfg.WeightMutationMax},
			Probability: func(cfg *config.Config) float64 { return cfg.ProbMutateWeight },
		},
		{
			Operator:    &ChangeRandomActivation{Rand: rng},
			Probability: func(cfg *config.Config) float64 { return cfg.ProbMutateActivation },
		},
	}
}

// Mutate runs one mutation pass over g. Recoverable failures are recorded as
// no-ops; only context cancellation and unexpected errors are returned.
func (m *Mutator) Mutate(ctx context.Context, g *genome.Genome, generation int) (MutationReport, error) {
	var report MutationReport
	modifier := m.cfg.MutationRateModifier(generation)
	for _, item := range m.policy {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if m.rng.Float64() >= item.Probability(m.cfg)*modifier {
			continue
		}
		name := item.Operator.Name()
		if contextual, ok := item.Operator.(ContextualOperator); ok && !contextual.Applicable(g) {
			report.Noops = append(report.Noops, name)
			continue
		}
		if err := item.Operator.Apply(ctx, g); err != nil {
			if IsNoop(err) {
				report.Noops = append(report.Noops, name)
				continue
			}
			return report, err
		}
		report.Applied = append(report.Applied, name)
	}
	if report.Changed() {
		g.ResetScores()
	}
	return report, nil
}
