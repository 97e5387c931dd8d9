package config

import (
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate defaults: %v", err)
	}
	if got := cfg.NumInputs(); got != 3 {
		t.Fatalf("unexpected default input count: %d", got)
	}
	if got := cfg.NumOutputs(); got != 3 {
		t.Fatalf("unexpected default output count: %d", got)
	}
}

func TestNumInputsDerivedFromFlags(t *testing.T) {
	cases := []struct {
		bias, radial bool
		want         int
	}{
		{false, false, 2},
		{true, false, 3},
		{false, true, 3},
		{true, true, 4},
	}
	for _, tc := range cases {
		cfg := Default()
		cfg.UseInputBias = tc.bias
		cfg.UseRadialDistance = tc.radial
		if got := cfg.NumInputs(); got != tc.want {
			t.Fatalf("bias=%v radial=%v: got=%d want=%d", tc.bias, tc.radial, got, tc.want)
		}
	}
}

func TestParseOverridesDefaultsAndWarnsOnUnknownKeys(t *testing.T) {
	data := []byte(`
population_size: 24
color_mode: L
activations: [sin, gauss]
bogus_setting: 3
`)
	cfg, warnings, err := Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.PopulationSize != 24 {
		t.Fatalf("unexpected population size: %d", cfg.PopulationSize)
	}
	if cfg.NumOutputs() != 1 {
		t.Fatalf("unexpected output count: %d", cfg.NumOutputs())
	}
	if cfg.MaxWeight != Default().MaxWeight {
		t.Fatalf("expected untouched default max weight, got %f", cfg.MaxWeight)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "bogus_setting") {
		t.Fatalf("expected one unknown-key warning, got %+v", warnings)
	}
}

func TestParseRejectsUnknownActivation(t *testing.T) {
	_, _, err := Parse([]byte("activations: [sin, wobble]\n"))
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got: %v", err)
	}
}

func TestParseRejectsSchemaMismatch(t *testing.T) {
	_, _, err := Parse([]byte("schema_version: 7\n"))
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"probability":   func(c *Config) { c.ProbAddNode = 1.5 },
		"population":    func(c *Config) { c.PopulationSize = 0 },
		"axes":          func(c *Config) { c.MapElitesMinValues = []float64{0, 1} },
		"axis range":    func(c *Config) { c.MapElitesMaxValues = []float64{0.1} },
		"vote policy":   func(c *Config) { c.MapElitesVotePolicy = "plurality" },
		"unique genes":  func(c *Config) { c.CrossoverUniqueGenes = "random" },
		"max weight":    func(c *Config) { c.MaxWeight = 0 },
		"output act":    func(c *Config) { c.OutputActivation = "nope" },
		"elitism":       func(c *Config) { c.PopulationElitism = 11 },
		"empty colours": func(c *Config) { c.ColorMode = "" },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected ErrInvalidConfig, got: %v", name, err)
		}
	}
}

func TestMutationRateModifier(t *testing.T) {
	cfg := Default()
	if got := cfg.MutationRateModifier(500); got != 1 {
		t.Fatalf("expected modifier 1 when disabled, got %f", got)
	}
	cfg.UseDynamicMutationRates = true
	cfg.NumGenerations = 100
	cfg.DynamicMutationRateEndModifier = 0.1
	if got := cfg.MutationRateModifier(0); got != 1 {
		t.Fatalf("unexpected start modifier: %f", got)
	}
	if got := cfg.MutationRateModifier(50); math.Abs(got-0.55) > 1e-9 {
		t.Fatalf("unexpected midpoint modifier: %f", got)
	}
	if got := cfg.MutationRateModifier(500); math.Abs(got-0.1) > 1e-9 {
		t.Fatalf("unexpected clamped modifier: %f", got)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.PopulationSize = 32
	cfg.FitnessSchedule = []string{"mse", "psnr"}
	minFitness := -1.0
	cfg.MinFitness = &minFitness

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.PopulationSize != 32 || len(loaded.FitnessSchedule) != 2 {
		t.Fatalf("unexpected loaded config: %+v", loaded)
	}
	if loaded.MinFitness == nil || *loaded.MinFitness != -1 {
		t.Fatalf("expected min fitness to survive round trip, got %v", loaded.MinFitness)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()
	clone.Activations[0] = "changed"
	clone.MapElitesResolution[0] = 99
	if cfg.Activations[0] == "changed" || cfg.MapElitesResolution[0] == 99 {
		t.Fatal("expected clone slices to be independent")
	}
}
