package backbone

import (
	"fmt"
	"math/rand"

	"rachis/internal/layers"
	"rachis/internal/model"
)

// StageParams is the resolved geometry of one residual stage.
type StageParams struct {
	InChannels         int
	BottleneckChannels int
	OutChannels        int
	BlockCount         int
	NumGroups          int
	StrideIn1x1        bool
	// FirstStride is carried by block 0 only; later blocks use stride 1.
	FirstStride int
	Dilation    int
	DCN         model.DCNConfig
	// MiddleKernels optionally sets the spatial kernel per block; empty
	// means 3x3 for every block, otherwise the length must equal
	// BlockCount.
	MiddleKernels []int
	UseUnfixedBN  bool
}

// NewStage chains BlockCount residual blocks into one stage. Only the
// first block carries the stage stride and the channel transition; every
// later block maps OutChannels to OutChannels at stride 1.
func NewStage(rng *rand.Rand, block BlockConstructor, p StageParams) (*layers.Sequential, error) {
	if p.BlockCount < 1 {
		return nil, fmt.Errorf("%w: stage needs at least one block, got %d", ErrConfigMismatch, p.BlockCount)
	}
	kernels := p.MiddleKernels
	if len(kernels) == 0 {
		kernels = make([]int, p.BlockCount)
		for i := range kernels {
			kernels[i] = 3
		}
	}
	if len(kernels) != p.BlockCount {
		return nil, fmt.Errorf("%w: %d middle kernel sizes for %d blocks", ErrConfigMismatch, len(kernels), p.BlockCount)
	}
	for i, k := range kernels {
		if k < 1 || k%2 == 0 {
			return nil, fmt.Errorf("%w: middle kernel size %d at block %d must be odd and positive", ErrConfigMismatch, k, i)
		}
	}

	seq := layers.NewSequential()
	stride := p.FirstStride
	in := p.InChannels
	for i := 0; i < p.BlockCount; i++ {
		seq.Add(block(rng, BlockParams{
			InChannels:         in,
			BottleneckChannels: p.BottleneckChannels,
			OutChannels:        p.OutChannels,
			NumGroups:          p.NumGroups,
			StrideIn1x1:        p.StrideIn1x1,
			Stride:             stride,
			Dilation:           p.Dilation,
			MiddleKernel:       kernels[i],
			DCN:                p.DCN,
			UseUnfixedBN:       p.UseUnfixedBN,
		}))
		stride = 1
		in = p.OutChannels
	}
	return seq, nil
}
