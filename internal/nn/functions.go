package nn

import "math"

func Identity(x float64) float64 { return x }

func Sin(x float64) float64 { return math.Sin(x) }

func Cos(x float64) float64 { return math.Cos(x) }

func Tanh(x float64) float64 { return math.Tanh(x) }

func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// Gauss is the unnormalised bell curve exp(-x^2/2) used by most CPPN work.
func Gauss(x float64) float64 {
	return math.Exp(-(x * x) / 2)
}

func ReLU(x float64) float64 {
	if x < 0 {
		return 0
	}
	return x
}

func Abs(x float64) float64 { return math.Abs(x) }

func Round(x float64) float64 { return math.Round(x) }

// Pulse is a square wave with period 2 and values in {-1, 1}.
func Pulse(x float64) float64 {
	if math.Mod(math.Floor(x), 2) == 0 {
		return 1
	}
	return -1
}

func Square(x float64) float64 { return x * x }

// Sawtooth maps x to its fractional part in [0, 1).
func Sawtooth(x float64) float64 {
	return x - math.Floor(x)
}

// Clamp limits value to [min, max].
func Clamp(value, min, max float64) float64 {
	if value > max {
		return max
	}
	if value < min {
		return min
	}
	return value
}
