// Package face compares face embeddings and picks the stored identity an
// input embedding belongs to. It does no I/O: callers load candidates from
// the user store and log the per-record skips the matcher reports.
package face

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidEmbedding = errors.New("invalid embedding")

// Embedding is a fixed-length face feature vector produced by an external
// extractor. Two embeddings are only comparable when their lengths match.
type Embedding []float64

// Validate rejects empty vectors and non-finite components. It is called
// once at the boundary (request decoding, enrollment), never inside a scan.
func (e Embedding) Validate() error {
	if len(e) == 0 {
		return fmt.Errorf("%w: empty vector", ErrInvalidEmbedding)
	}
	for i, v := range e {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: component %d is not finite", ErrInvalidEmbedding, i)
		}
	}
	return nil
}

func (e Embedding) norm() float64 {
	var sum float64
	for _, v := range e {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// CosineSimilarity returns the normalized dot product of a and b, in [-1, 1].
// ok is false when the lengths differ or either vector has zero norm.
func CosineSimilarity(a, b Embedding) (sim float64, ok bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}
	na, nb := a.norm(), b.norm()
	if na == 0 || nb == 0 {
		return 0, false
	}
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	sim = dot / (na * nb)
	// rounding can push identical vectors a hair past 1
	return math.Max(-1, math.Min(1, sim)), true
}

// EuclideanDistance returns ||a-b||. ok is false when the lengths differ.
func EuclideanDistance(a, b Embedding) (dist float64, ok bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum), true
}
