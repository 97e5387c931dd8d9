package main

import (
	"fmt"
	"math"

	"cppnevo/internal/config"
	"cppnevo/internal/cppn"
)

const (
	targetNone     = "none"
	targetGradient = "gradient"
	targetCircle   = "circle"
	targetChecker  = "checker"
)

// buildTarget renders a synthetic target over the same coordinate grid the
// genomes see. "none" returns nil so fitness falls back to novelty.
func buildTarget(pattern string, cfg *config.Config) (*cppn.Image, error) {
	var shade func(x, y float64) float64
	switch pattern {
	case "", targetNone:
		return nil, nil
	case targetGradient:
		shade = func(x, _ float64) float64 { return x + 0.5 }
	case targetCircle:
		shade = func(x, y float64) float64 {
			if math.Hypot(x, y) < 0.3 {
				return 1
			}
			return 0
		}
	case targetChecker:
		shade = func(x, y float64) float64 {
			cx, cy := int(math.Floor((x+0.5)*3.999)), int(math.Floor((y+0.5)*3.999))
			return float64((cx + cy) % 2)
		}
	default:
		return nil, fmt.Errorf("unsupported target pattern: %s", pattern)
	}

	grid := cppn.NewCoordinateGridWithSize(cfg.ResW, cfg.ResH, false, false)
	img := cppn.NewImage(cfg.ResW, cfg.ResH, cfg.NumOutputs())
	for i, in := range grid.Inputs {
		v := shade(in[0], in[1])
		for c := 0; c < img.C; c++ {
			img.Set(i%grid.W, i/grid.W, c, v)
		}
	}
	return img, nil
}
