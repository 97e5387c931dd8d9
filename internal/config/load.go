package config

import (
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parse overlays YAML data onto Default and validates the result. Keys that
// do not belong to the schema are returned as warnings rather than failing
// the load.
func Parse(data []byte) (Config, []string, error) {
	cfg := Default()

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, nil, fmt.Errorf("parse config: %w", err)
	}
	warnings := unknownKeyWarnings(raw)

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, warnings, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, warnings, err
	}
	return cfg, warnings, nil
}

// Load reads and parses a YAML config file, logging unknown keys.
func Load(path string, logger *slog.Logger) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg, warnings, err := Parse(data)
	if logger == nil {
		logger = slog.Default()
	}
	for _, warning := range warnings {
		logger.Warn("config warning", "path", path, "detail", warning)
	}
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

func Marshal(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

func Save(path string, cfg Config) error {
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func unknownKeyWarnings(raw map[string]any) []string {
	known := knownKeys()
	var warnings []string
	for key := range raw {
		if _, ok := known[key]; !ok {
			warnings = append(warnings, fmt.Sprintf("unknown key %q ignored", key))
		}
	}
	sort.Strings(warnings)
	return warnings
}

func knownKeys() map[string]struct{} {
	t := reflect.TypeOf(Config{})
	keys := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("yaml")
		name, _, _ := strings.Cut(tag, ",")
		if name == "" || name == "-" {
			continue
		}
		keys[name] = struct{}{}
	}
	return keys
}
