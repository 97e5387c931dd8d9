package cppn

import (
	"math"

	"cppnevo/internal/config"
)

const radialScale = 1.4

// CoordinateGrid holds the input vector for every pixel, ordered like the
// genome's input node ids: x, y, optional radial distance, optional bias.
type CoordinateGrid struct {
	W, H   int
	Inputs [][]float64
}

func NewCoordinateGrid(cfg *config.Config) CoordinateGrid {
	return NewCoordinateGridWithSize(cfg.ResW, cfg.ResH, cfg.UseRadialDistance, cfg.UseInputBias)
}

func NewCoordinateGridWithSize(w, h int, radial, bias bool) CoordinateGrid {
	xs, ys := linspace(-0.5, 0.5, w), linspace(-0.5, 0.5, h)
	grid := CoordinateGrid{W: w, H: h, Inputs: make([][]float64, 0, w*h)}
	for _, y := range ys {
		for _, x := range xs {
			in := []float64{x, y}
			if radial {
				in = append(in, math.Sqrt(x*x+y*y)*radialScale)
			}
			if bias {
				in = append(in, 1)
			}
			grid.Inputs = append(grid.Inputs, in)
		}
	}
	return grid
}

func linspace(lo, hi float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{(lo + hi) / 2}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + step*float64(i)
	}
	return out
}
