package backbone

import (
	"math"
	"math/rand"

	"rachis/internal/layers"
	"rachis/internal/tensor"
)

// Selector produces the branch index a multi-branch stage should
// evaluate. Implementations may be learned or fixed policies; the branch
// container itself never selects.
type Selector interface {
	Select(features *tensor.Tensor) int
}

// FixedSelector always picks the same branch.
type FixedSelector int

func (f FixedSelector) Select(*tensor.Tensor) int { return int(f) }

// PooledSelector scores branches from globally pooled features through a
// linear projection and picks the argmax. Scores are averaged over the
// batch, so one branch is chosen per forward pass.
type PooledSelector struct {
	InChannels  int
	NumBranches int

	weight *tensor.Tensor // [branches, channels]
	bias   *tensor.Tensor // [branches]
}

func NewPooledSelector(rng *rand.Rand, inChannels, numBranches int) *PooledSelector {
	s := &PooledSelector{
		InChannels:  inChannels,
		NumBranches: numBranches,
		weight:      tensor.New(numBranches, inChannels),
		bias:        tensor.New(numBranches),
	}
	bound := math.Sqrt(3.0 / float64(inChannels))
	s.weight.UniformInit(ensureSelectorRNG(rng), bound)
	return s
}

func ensureSelectorRNG(rng *rand.Rand) *rand.Rand {
	if rng != nil {
		return rng
	}
	return newRNG(0)
}

func (s *PooledSelector) Select(features *tensor.Tensor) int {
	pooled := layers.GlobalAvgPool(features)
	n, c := pooled.Dim(0), pooled.Dim(1)

	best, bestScore := 0, math.Inf(-1)
	for br := 0; br < s.NumBranches; br++ {
		score := s.bias.At(br) * float64(n)
		for b := 0; b < n; b++ {
			for ch := 0; ch < c; ch++ {
				score += s.weight.At(br, ch) * pooled.At(b, ch, 0, 0)
			}
		}
		if score > bestScore {
			best, bestScore = br, score
		}
	}
	return best
}

func (s *PooledSelector) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{s.weight, s.bias}
}
