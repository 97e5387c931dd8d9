// Package cppn turns genomes into images: the coordinate grid fed to the
// input nodes, the image type and a reference CPU evaluator.
package cppn

import (
	"fmt"
	"math"
)

// Image is a row-major, channel-last float image.
type Image struct {
	W, H, C int
	Pix     []float64
}

func NewImage(w, h, c int) *Image {
	return &Image{W: w, H: h, C: c, Pix: make([]float64, w*h*c)}
}

func (im *Image) index(x, y, c int) int {
	return (y*im.W+x)*im.C + c
}

func (im *Image) At(x, y, c int) float64 {
	return im.Pix[im.index(x, y, c)]
}

func (im *Image) Set(x, y, c int, v float64) {
	im.Pix[im.index(x, y, c)] = v
}

// SameShape returns an error unless other has identical dimensions.
func (im *Image) SameShape(other *Image) error {
	if other == nil || im.W != other.W || im.H != other.H || im.C != other.C {
		return fmt.Errorf("image shape mismatch")
	}
	return nil
}

// NormalizeChannels rescales each channel to [0, 1]; a constant channel
// becomes 0.
func (im *Image) NormalizeChannels() {
	for c := 0; c < im.C; c++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for i := c; i < len(im.Pix); i += im.C {
			lo = math.Min(lo, im.Pix[i])
			hi = math.Max(hi, im.Pix[i])
		}
		span := hi - lo
		for i := c; i < len(im.Pix); i += im.C {
			if span == 0 || math.IsNaN(span) {
				im.Pix[i] = 0
				continue
			}
			im.Pix[i] = (im.Pix[i] - lo) / span
		}
	}
}

func (im *Image) Clone() *Image {
	out := *im
	out.Pix = append([]float64(nil), im.Pix...)
	return &out
}
