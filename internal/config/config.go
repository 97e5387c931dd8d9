// Package config holds the typed run configuration shared by genome
// construction, the evolutionary operators and the archive. The core only
// reads a Config; nothing below the CLI ever writes one.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"cppnevo/internal/nn"
)

const CurrentSchemaVersion = 1

var (
	ErrInvalidConfig  = errors.New("invalid config")
	ErrSchemaMismatch = errors.New("config schema version mismatch")
)

// Crossover policies applied when the less-fit parent is chosen to donate
// unmatched genes.
const (
	UniqueGenesFitter  = "fitter"
	UniqueGenesLessFit = "less_fit"
	UniqueGenesBoth    = "both"
)

// Vote policies for replacing an occupied archive cell.
const (
	VoteMajority  = "majority"
	VoteUnanimous = "unanimous"
	VoteAny       = "any"
)

const (
	ScheduleAlternating = "alternating"
	ScheduleNone        = "none"
)

type Config struct {
	SchemaVersion int `yaml:"schema_version"`

	PopulationSize       int    `yaml:"population_size"`
	NumGenerations       int    `yaml:"num_generations"`
	Seed                 int64  `yaml:"seed"`
	Workers              int    `yaml:"workers"`
	PopulationElitism    int    `yaml:"population_elitism"`
	WithinSpeciesElitism int    `yaml:"within_species_elitism"`
	ResW                 int    `yaml:"res_w"`
	ResH                 int    `yaml:"res_h"`
	ColorMode            string `yaml:"color_mode"`
	NormalizeOutputs     bool   `yaml:"normalize_outputs"`

	UseInputBias      bool `yaml:"use_input_bias"`
	UseRadialDistance bool `yaml:"use_radial_distance"`

	Activations                  []string `yaml:"activations"`
	OutputActivation             string   `yaml:"output_activation"`
	AllowInputActivationMutation bool     `yaml:"allow_input_activation_mutation"`
	HiddenNodesAtStart           int      `yaml:"hidden_nodes_at_start"`
	InitConnectionProbability    float64  `yaml:"init_connection_probability"`
	AllowRecurrent               bool     `yaml:"allow_recurrent"`

	DoCrossover                        bool    `yaml:"do_crossover"`
	CrossoverRatio                     float64 `yaml:"crossover_ratio"`
	CrossoverUniqueGenes               string  `yaml:"crossover_unique_genes"`
	CrossoverBetweenSpeciesProbability float64 `yaml:"crossover_between_species_probability"`

	UseDynamicMutationRates        bool    `yaml:"use_dynamic_mutation_rates"`
	DynamicMutationRateEndModifier float64 `yaml:"dynamic_mutation_rate_end_modifier"`
	ProbMutateActivation           float64 `yaml:"prob_mutate_activation"`
	ProbMutateWeight               float64 `yaml:"prob_mutate_weight"`
	ProbAddConnection              float64 `yaml:"prob_add_connection"`
	ProbAddNode                    float64 `yaml:"prob_add_node"`
	ProbRemoveNode                 float64 `yaml:"prob_remove_node"`
	ProbDisableConnection          float64 `yaml:"prob_disable_connection"`
	ProbReenableConnection         float64 `yaml:"prob_reenable_connection"`
	ProbWeightReinit               float64 `yaml:"prob_weight_reinit"`
	ProbRandomRestart              float64 `yaml:"prob_random_restart"`
	MaxWeight                      float64 `yaml:"max_weight"`
	WeightThreshold                float64 `yaml:"weight_threshold"`
	WeightMutationMax              float64 `yaml:"weight_mutation_max"`
	MaxAddConnectionAttempts       int     `yaml:"max_add_connection_attempts"`

	UseSpeciation                    bool    `yaml:"use_speciation"`
	SpeciesTarget                    int     `yaml:"species_target"`
	InitSpeciesThreshold             float64 `yaml:"init_species_threshold"`
	SpeciesThresholdDelta            float64 `yaml:"species_threshold_delta"`
	SpeciesStagnationThreshold       int     `yaml:"species_stagnation_threshold"`
	SpeciesSelectionRatio            float64 `yaml:"species_selection_ratio"`
	CompatibilityExcessCoefficient   float64 `yaml:"compatibility_excess_coefficient"`
	CompatibilityDisjointCoefficient float64 `yaml:"compatibility_disjoint_coefficient"`
	CompatibilityWeightCoefficient   float64 `yaml:"compatibility_weight_coefficient"`
	CompatibilityNormalizeMin        int     `yaml:"compatibility_normalize_min"`

	FitnessFunction       string   `yaml:"fitness_function"`
	FitnessScheduleType   string   `yaml:"fitness_schedule_type"`
	FitnessSchedulePeriod int      `yaml:"fitness_schedule_period"`
	FitnessSchedule       []string `yaml:"fitness_schedule"`
	MinFitness            *float64 `yaml:"min_fitness"`
	MaxFitness            *float64 `yaml:"max_fitness"`

	NoveltyArchiveLen                  int     `yaml:"novelty_archive_len"`
	NoveltyK                           int     `yaml:"novelty_k"`
	AutoencoderFrequency               int     `yaml:"autoencoder_frequency"`
	NoveltySelectionRatioWithinSpecies float64 `yaml:"novelty_selection_ratio_within_species"`
	NoveltyAdjustedFitnessProportion   float64 `yaml:"novelty_adjusted_fitness_proportion"`

	MapElitesResolution       []int     `yaml:"map_elites_resolution"`
	MapElitesMinValues        []float64 `yaml:"map_elites_min_values"`
	MapElitesMaxValues        []float64 `yaml:"map_elites_max_values"`
	MapElitesDescriptors      []string  `yaml:"map_elites_descriptors"`
	MapElitesVotingFnsPerCell int       `yaml:"map_elites_voting_fns_per_cell"`
	MapElitesVotingFns        []string  `yaml:"map_elites_voting_fns"`
	MapElitesVotePolicy       string    `yaml:"map_elites_vote_policy"`
}

// Default mirrors the reference CPPN defaults; probabilities follow the
// picbreeder-style settings rather than the slower original NEAT ones.
func Default() Config {
	return Config{
		SchemaVersion: CurrentSchemaVersion,

		PopulationSize:       10,
		NumGenerations:       1000,
		Seed:                 1,
		Workers:              4,
		PopulationElitism:    1,
		WithinSpeciesElitism: 1,
		ResW:                 28,
		ResH:                 28,
		ColorMode:            "RGB",
		NormalizeOutputs:     true,

		UseInputBias:      true,
		UseRadialDistance: false,

		Activations:                  nn.ListActivations(),
		AllowInputActivationMutation: true,
		InitConnectionProbability:    0.85,

		DoCrossover:                        true,
		CrossoverRatio:                     0.75,
		CrossoverUniqueGenes:               UniqueGenesFitter,
		CrossoverBetweenSpeciesProbability: 0.001,

		DynamicMutationRateEndModifier: 0.1,
		ProbMutateActivation:           0.15,
		ProbMutateWeight:               0.80,
		ProbAddConnection:              0.15,
		ProbAddNode:                    0.15,
		ProbRemoveNode:                 0.05,
		ProbDisableConnection:          0.05,
		ProbReenableConnection:         0.1,
		ProbWeightReinit:               0.1 * 0.80,
		ProbRandomRestart:              0.001,
		MaxWeight:                      3.0,
		WeightMutationMax:              2,
		MaxAddConnectionAttempts:       20,

		UseSpeciation:                    true,
		SpeciesTarget:                    3,
		InitSpeciesThreshold:             3,
		SpeciesThresholdDelta:            0.1,
		SpeciesStagnationThreshold:       100,
		SpeciesSelectionRatio:            0.8,
		CompatibilityExcessCoefficient:   1.0,
		CompatibilityDisjointCoefficient: 1.0,
		CompatibilityWeightCoefficient:   0.4,
		CompatibilityNormalizeMin:        20,

		FitnessFunction:       "mse",
		FitnessScheduleType:   ScheduleAlternating,
		FitnessSchedulePeriod: 10,

		NoveltyArchiveLen:    20,
		NoveltyK:             5,
		AutoencoderFrequency: 10,

		MapElitesResolution:       []int{30},
		MapElitesMinValues:        []float64{0.1},
		MapElitesMaxValues:        []float64{0.8},
		MapElitesDescriptors:      []string{"novelty"},
		MapElitesVotingFnsPerCell: 2,
		MapElitesVotingFns:        []string{"mse", "mae", "psnr", "ncc"},
		MapElitesVotePolicy:       VoteMajority,
	}
}

// NumInputs counts x, y and the optional radial-distance and bias inputs.
func (c *Config) NumInputs() int {
	n := 2
	if c.UseRadialDistance {
		n++
	}
	if c.UseInputBias {
		n++
	}
	return n
}

// NumOutputs is one output per colour channel.
func (c *Config) NumOutputs() int {
	return len(c.ColorMode)
}

// MutationRateModifier scales mutation probabilities linearly from 1 at
// generation 0 to DynamicMutationRateEndModifier at NumGenerations.
func (c *Config) MutationRateModifier(generation int) float64 {
	if !c.UseDynamicMutationRates || c.NumGenerations <= 0 {
		return 1
	}
	progress := math.Min(1, math.Max(0, float64(generation)/float64(c.NumGenerations)))
	return 1 + (c.DynamicMutationRateEndModifier-1)*progress
}

// FitnessNames returns every fitness function name the configuration can
// select, schedule entries first.
func (c *Config) FitnessNames() []string {
	if len(c.FitnessSchedule) > 0 {
		return append([]string(nil), c.FitnessSchedule...)
	}
	if c.FitnessFunction == "" {
		return nil
	}
	return []string{c.FitnessFunction}
}

// Clone returns a deep copy so callers can derive variants without sharing
// slices with the original.
func (c Config) Clone() Config {
	out := c
	out.Activations = append([]string(nil), c.Activations...)
	out.FitnessSchedule = append([]string(nil), c.FitnessSchedule...)
	out.MapElitesResolution = append([]int(nil), c.MapElitesResolution...)
	out.MapElitesMinValues = append([]float64(nil), c.MapElitesMinValues...)
	out.MapElitesMaxValues = append([]float64(nil), c.MapElitesMaxValues...)
	out.MapElitesDescriptors = append([]string(nil), c.MapElitesDescriptors...)
	out.MapElitesVotingFns = append([]string(nil), c.MapElitesVotingFns...)
	if c.MinFitness != nil {
		v := *c.MinFitness
		out.MinFitness = &v
	}
	if c.MaxFitness != nil {
		v := *c.MaxFitness
		out.MaxFitness = &v
	}
	return out
}

func (c *Config) Validate() error {
	if c.SchemaVersion != CurrentSchemaVersion {
		return fmt.Errorf("%w: got=%d want=%d", ErrSchemaMismatch, c.SchemaVersion, CurrentSchemaVersion)
	}
	var problems []string
	positive := func(name string, v int) {
		if v <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be > 0", name))
		}
	}
	nonNegative := func(name string, v int) {
		if v < 0 {
			problems = append(problems, fmt.Sprintf("%s must be >= 0", name))
		}
	}
	probability := func(name string, v float64) {
		if v < 0 || v > 1 || math.IsNaN(v) {
			problems = append(problems, fmt.Sprintf("%s must be in [0, 1]", name))
		}
	}

	positive("population_size", c.PopulationSize)
	positive("num_generations", c.NumGenerations)
	positive("res_w", c.ResW)
	positive("res_h", c.ResH)
	positive("species_target", c.SpeciesTarget)
	positive("max_add_connection_attempts", c.MaxAddConnectionAttempts)
	nonNegative("workers", c.Workers)
	nonNegative("population_elitism", c.PopulationElitism)
	nonNegative("within_species_elitism", c.WithinSpeciesElitism)
	nonNegative("hidden_nodes_at_start", c.HiddenNodesAtStart)
	nonNegative("species_stagnation_threshold", c.SpeciesStagnationThreshold)
	nonNegative("novelty_archive_len", c.NoveltyArchiveLen)
	nonNegative("novelty_k", c.NoveltyK)
	nonNegative("autoencoder_frequency", c.AutoencoderFrequency)
	nonNegative("compatibility_normalize_min", c.CompatibilityNormalizeMin)
	nonNegative("map_elites_voting_fns_per_cell", c.MapElitesVotingFnsPerCell)
	if c.PopulationElitism > c.PopulationSize {
		problems = append(problems, "population_elitism must not exceed population_size")
	}
	if c.NumOutputs() == 0 {
		problems = append(problems, "color_mode must name at least one channel")
	}

	probability("init_connection_probability", c.InitConnectionProbability)
	probability("crossover_ratio", c.CrossoverRatio)
	probability("crossover_between_species_probability", c.CrossoverBetweenSpeciesProbability)
	probability("prob_mutate_activation", c.ProbMutateActivation)
	probability("prob_mutate_weight", c.ProbMutateWeight)
	probability("prob_add_connection", c.ProbAddConnection)
	probability("prob_add_node", c.ProbAddNode)
	probability("prob_remove_node", c.ProbRemoveNode)
	probability("prob_disable_connection", c.ProbDisableConnection)
	probability("prob_reenable_connection", c.ProbReenableConnection)
	probability("prob_weight_reinit", c.ProbWeightReinit)
	probability("prob_random_restart", c.ProbRandomRestart)
	probability("species_selection_ratio", c.SpeciesSelectionRatio)
	probability("novelty_selection_ratio_within_species", c.NoveltySelectionRatioWithinSpecies)
	probability("novelty_adjusted_fitness_proportion", c.NoveltyAdjustedFitnessProportion)

	if c.MaxWeight <= 0 {
		problems = append(problems, "max_weight must be > 0")
	}
	if c.WeightMutationMax < 0 {
		problems = append(problems, "weight_mutation_max must be >= 0")
	}
	if c.SpeciesThresholdDelta <= 0 {
		problems = append(problems, "species_threshold_delta must be > 0")
	}
	if c.InitSpeciesThreshold <= 0 {
		problems = append(problems, "init_species_threshold must be > 0")
	}
	if c.UseDynamicMutationRates && c.DynamicMutationRateEndModifier < 0 {
		problems = append(problems, "dynamic_mutation_rate_end_modifier must be >= 0")
	}

	switch c.CrossoverUniqueGenes {
	case UniqueGenesFitter, UniqueGenesLessFit, UniqueGenesBoth:
	default:
		problems = append(problems, fmt.Sprintf("unknown crossover_unique_genes: %q", c.CrossoverUniqueGenes))
	}
	switch c.MapElitesVotePolicy {
	case VoteMajority, VoteUnanimous, VoteAny:
	default:
		problems = append(problems, fmt.Sprintf("unknown map_elites_vote_policy: %q", c.MapElitesVotePolicy))
	}
	switch c.FitnessScheduleType {
	case ScheduleAlternating, ScheduleNone, "":
	default:
		problems = append(problems, fmt.Sprintf("unknown fitness_schedule_type: %q", c.FitnessScheduleType))
	}
	if c.FitnessScheduleType == ScheduleAlternating && len(c.FitnessSchedule) > 0 && c.FitnessSchedulePeriod <= 0 {
		problems = append(problems, "fitness_schedule_period must be > 0 for an alternating schedule")
	}

	axes := len(c.MapElitesResolution)
	if axes == 0 {
		problems = append(problems, "map_elites_resolution must have at least one axis")
	}
	if len(c.MapElitesMinValues) != axes || len(c.MapElitesMaxValues) != axes || len(c.MapElitesDescriptors) != axes {
		problems = append(problems, "map_elites resolution, min, max and descriptor lists must have equal length")
	} else {
		for i := 0; i < axes; i++ {
			if c.MapElitesResolution[i] <= 0 {
				problems = append(problems, fmt.Sprintf("map_elites_resolution[%d] must be > 0", i))
			}
			if c.MapElitesMaxValues[i] <= c.MapElitesMinValues[i] {
				problems = append(problems, fmt.Sprintf("map_elites_max_values[%d] must exceed min", i))
			}
		}
	}

	if len(c.Activations) == 0 {
		problems = append(problems, "activations must not be empty")
	} else if err := nn.ValidateActivations(c.Activations); err != nil {
		problems = append(problems, err.Error())
	}
	if c.OutputActivation != "" {
		if _, err := nn.GetActivation(c.OutputActivation); err != nil {
			problems = append(problems, fmt.Sprintf("output_activation: %v", err))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
