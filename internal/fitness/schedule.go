package fitness

import (
	"fmt"

	"cppnevo/internal/config"
)

// Schedule picks the fitness function for a generation. An alternating
// schedule moves to the next entry every period generations and wraps.
type Schedule struct {
	names  []string
	period int
}

func NewSchedule(cfg *config.Config) (*Schedule, error) {
	names := []string{cfg.FitnessFunction}
	if cfg.FitnessScheduleType == config.ScheduleAlternating && len(cfg.FitnessSchedule) > 0 {
		names = append([]string(nil), cfg.FitnessSchedule...)
	}
	if err := Validate(names); err != nil {
		return nil, fmt.Errorf("fitness schedule: %w", err)
	}
	period := cfg.FitnessSchedulePeriod
	if period <= 0 {
		period = 1
	}
	return &Schedule{names: names, period: period}, nil
}

func (s *Schedule) At(generation int) string {
	if generation < 0 {
		generation = 0
	}
	return s.names[(generation/s.period)%len(s.names)]
}

// Names returns the distinct functions the schedule can select.
func (s *Schedule) Names() []string {
	seen := make(map[string]struct{}, len(s.names))
	out := make([]string, 0, len(s.names))
	for _, name := range s.names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
