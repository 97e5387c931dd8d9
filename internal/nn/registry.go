package nn

import (
	"errors"
	"fmt"
	"sort"
)

var ErrActivationNotFound = errors.New("activation not found")

type ActivationFunc func(x float64) float64

// activationRegistry is filled once in init and never written afterwards, so
// lookups need no locking.
var activationRegistry = map[string]ActivationFunc{}

func init() {
	registerBuiltInActivations()
}

func registerBuiltInActivations() {
	mustRegister("identity", Identity)
	mustRegister("sin", Sin)
	mustRegister("cos", Cos)
	mustRegister("sigmoid", Sigmoid)
	mustRegister("tanh", Tanh)
	mustRegister("gauss", Gauss)
	mustRegister("relu", ReLU)
	mustRegister("abs", Abs)
	mustRegister("round", Round)
	mustRegister("pulse", Pulse)
	mustRegister("square", Square)
	mustRegister("sawtooth", Sawtooth)
}

func mustRegister(name string, fn ActivationFunc) {
	if name == "" || fn == nil {
		panic("activation name and function are required")
	}
	if _, exists := activationRegistry[name]; exists {
		panic(fmt.Sprintf("activation already registered: %s", name))
	}
	activationRegistry[name] = fn
}

func GetActivation(name string) (ActivationFunc, error) {
	fn, ok := activationRegistry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrActivationNotFound, name)
	}
	return fn, nil
}

// ValidateActivations reports the first name without a registry entry.
func ValidateActivations(names []string) error {
	for _, name := range names {
		if _, err := GetActivation(name); err != nil {
			return err
		}
	}
	return nil
}

func ListActivations() []string {
	names := make([]string, 0, len(activationRegistry))
	for name := range activationRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
