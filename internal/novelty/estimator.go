// Package novelty scores images by how far they sit from previously seen
// ones. The population controller retrains the estimator periodically and
// treats both calls as synchronous external jobs.
package novelty

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"cppnevo/internal/cppn"
)

var ErrShapeMismatch = errors.New("novelty: image shape mismatch")

// Estimator is the novelty collaborator. Score returns one value >= 0 per
// image; larger means more novel.
type Estimator interface {
	Retrain(ctx context.Context, corpus []*cppn.Image) error
	Score(ctx context.Context, images []*cppn.Image) ([]float64, error)
}

// KNNEstimator scores an image by its mean RMS distance to the k nearest
// images of a bounded reference corpus. Before the first retrain the batch
// being scored serves as its own corpus.
type KNNEstimator struct {
	K        int
	Capacity int

	mu     sync.RWMutex
	corpus []*cppn.Image
}

func NewKNNEstimator(k, capacity int) *KNNEstimator {
	if k <= 0 {
		k = 1
	}
	return &KNNEstimator{K: k, Capacity: capacity}
}

// Retrain replaces the reference corpus with the newest Capacity images.
func (e *KNNEstimator) Retrain(ctx context.Context, corpus []*cppn.Image) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	kept := corpus
	if e.Capacity > 0 && len(kept) > e.Capacity {
		kept = kept[len(kept)-e.Capacity:]
	}
	copied := make([]*cppn.Image, 0, len(kept))
	for _, img := range kept {
		if img != nil {
			copied = append(copied, img.Clone())
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.corpus = copied
	return nil
}

func (e *KNNEstimator) CorpusSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.corpus)
}

func (e *KNNEstimator) Score(ctx context.Context, images []*cppn.Image) ([]float64, error) {
	e.mu.RLock()
	reference := e.corpus
	e.mu.RUnlock()

	selfScoring := len(reference) == 0
	if selfScoring {
		reference = images
	}

	scores := make([]float64, len(images))
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if img == nil {
			return nil, fmt.Errorf("novelty: image %d is nil", i)
		}
		distances := make([]float64, 0, len(reference))
		for j, other := range reference {
			if selfScoring && i == j {
				continue
			}
			d, err := rmsDistance(img, other)
			if err != nil {
				return nil, err
			}
			distances = append(distances, d)
		}
		scores[i] = meanOfNearest(distances, e.K)
	}
	return scores, nil
}

func rmsDistance(a, b *cppn.Image) (float64, error) {
	if err := a.SameShape(b); err != nil {
		return 0, fmt.Errorf("%w: %dx%dx%d vs %dx%dx%d", ErrShapeMismatch, a.W, a.H, a.C, b.W, b.H, b.C)
	}
	if len(a.Pix) == 0 {
		return 0, nil
	}
	sum := 0.0
	for i, v := range a.Pix {
		d := v - b.Pix[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(a.Pix))), nil
}

func meanOfNearest(distances []float64, k int) float64 {
	if len(distances) == 0 {
		return 0
	}
	sort.Float64s(distances)
	k = min(k, len(distances))
	sum := 0.0
	for _, d := range distances[:k] {
		sum += d
	}
	return sum / float64(k)
}
