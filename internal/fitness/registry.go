// Package fitness holds the named image-comparison functions used as fitness
// and archive voting functions, and the schedule that rotates between them.
// Every function returns larger values for better candidates.
package fitness

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"cppnevo/internal/cppn"
)

var (
	ErrFitnessNotFound = errors.New("fitness function not found")
	ErrNoTarget        = errors.New("fitness function requires a target image")
	ErrShapeMismatch   = errors.New("candidate and target shapes differ")
)

// maxPSNR caps psnr for identical images.
const maxPSNR = 100.0

type Func func(candidate, target *cppn.Image) (float64, error)

var registry = map[string]Func{}

func init() {
	mustRegister("mse", withTarget(mseFitness))
	mustRegister("mae", withTarget(maeFitness))
	mustRegister("psnr", withTarget(psnrFitness))
	mustRegister("ncc", withTarget(nccFitness))
	mustRegister("brightness", brightnessFitness)
}

func mustRegister(name string, fn Func) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("duplicate fitness function %q", name))
	}
	registry[name] = fn
}

func Get(name string) (Func, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFitnessNotFound, name)
	}
	return fn, nil
}

// Validate fails on the first unregistered name.
func Validate(names []string) error {
	for _, name := range names {
		if _, err := Get(name); err != nil {
			return err
		}
	}
	return nil
}

func List() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// NeedsTarget reports whether name compares against a target image.
func NeedsTarget(name string) bool {
	return name != "brightness"
}

func withTarget(fn func(candidate, target *cppn.Image) float64) Func {
	return func(candidate, target *cppn.Image) (float64, error) {
		if target == nil {
			return 0, ErrNoTarget
		}
		if candidate == nil {
			return 0, errors.New("candidate image is required")
		}
		if err := candidate.SameShape(target); err != nil {
			return 0, fmt.Errorf("%w: %dx%dx%d vs %dx%dx%d", ErrShapeMismatch,
				candidate.W, candidate.H, candidate.C, target.W, target.H, target.C)
		}
		return fn(candidate, target), nil
	}
}

func meanSquaredError(candidate, target *cppn.Image) float64 {
	if len(candidate.Pix) == 0 {
		return 0
	}
	sum := 0.0
	for i, v := range candidate.Pix {
		d := v - target.Pix[i]
		sum += d * d
	}
	return sum / float64(len(candidate.Pix))
}

func mseFitness(candidate, target *cppn.Image) float64 {
	return 1 - meanSquaredError(candidate, target)
}

func maeFitness(candidate, target *cppn.Image) float64 {
	if len(candidate.Pix) == 0 {
		return 1
	}
	sum := 0.0
	for i, v := range candidate.Pix {
		sum += math.Abs(v - target.Pix[i])
	}
	return 1 - sum/float64(len(candidate.Pix))
}

func psnrFitness(candidate, target *cppn.Image) float64 {
	mse := meanSquaredError(candidate, target)
	if mse == 0 {
		return maxPSNR
	}
	return math.Min(maxPSNR, 10*math.Log10(1/mse))
}

// nccFitness is the normalised cross-correlation in [-1, 1]; a constant
// image correlates with nothing and scores 0.
func nccFitness(candidate, target *cppn.Image) float64 {
	n := float64(len(candidate.Pix))
	if n == 0 {
		return 0
	}
	var meanC, meanT float64
	for i, v := range candidate.Pix {
		meanC += v
		meanT += target.Pix[i]
	}
	meanC /= n
	meanT /= n
	var cov, varC, varT float64
	for i, v := range candidate.Pix {
		dc, dt := v-meanC, target.Pix[i]-meanT
		cov += dc * dt
		varC += dc * dc
		varT += dt * dt
	}
	if varC == 0 || varT == 0 {
		return 0
	}
	return cov / math.Sqrt(varC*varT)
}

func brightnessFitness(candidate, _ *cppn.Image) (float64, error) {
	if candidate == nil {
		return 0, errors.New("candidate image is required")
	}
	if len(candidate.Pix) == 0 {
		return 0, nil
	}
	sum := 0.0
	for _, v := range candidate.Pix {
		sum += v
	}
	return sum / float64(len(candidate.Pix)), nil
}
