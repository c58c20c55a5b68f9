package backbone

import (
	"fmt"

	"rachis/internal/layers"
	"rachis/internal/model"
	"rachis/internal/tensor"
)

// HeadParams configures a classification head built from residual stages,
// used by detector variants that consume a single backbone feature map
// instead of pyramid levels.
type HeadParams struct {
	Block           string
	Stages          []model.StageSpec
	NumGroups       int
	WidthPerGroup   int
	StrideIn1x1     bool
	// StrideInit sets the first stage's stride; 0 derives it from the
	// stage index (1 for stage 1, otherwise 2).
	StrideInit      int
	Res2OutChannels int
	Dilation        int
	DCN             model.DCNConfig
	// DontLoad carries the stage names using unfixed batch norm, matching
	// the body's checkpoint-compatibility escape hatch.
	DontLoad []string
	Seed     int64
}

// Head chains extra residual stages on top of an existing feature map.
// Its input channel count is half the first stage's output channel count;
// that invariant is documented, not validated, and a violation surfaces
// as a shape panic at first forward.
type Head struct {
	stages      []*stage
	outChannels int
}

// NewHead assembles the head stages.
func NewHead(p HeadParams) (*Head, error) {
	if len(p.Stages) == 0 {
		return nil, fmt.Errorf("%w: head needs at least one stage", ErrConfigMismatch)
	}
	blockCtor, err := ResolveBlock(p.Block)
	if err != nil {
		return nil, err
	}
	dilation := p.Dilation
	if dilation < 1 {
		dilation = 1
	}

	factor := 1 << uint(p.Stages[0].Index-1)
	bottleneckChannels := p.NumGroups * p.WidthPerGroup * factor
	outChannels := p.Res2OutChannels * factor
	inChannels := outChannels / 2

	rng := newRNG(p.Seed)
	h := &Head{outChannels: outChannels}

	stride := p.StrideInit
	for _, spec := range p.Stages {
		name := fmt.Sprintf("layer%d", spec.Index)
		if stride == 0 {
			if spec.Index > 1 {
				stride = 2
			} else {
				stride = 1
			}
		}
		seq, err := NewStage(rng, blockCtor, StageParams{
			InChannels:         inChannels,
			BottleneckChannels: bottleneckChannels,
			OutChannels:        outChannels,
			BlockCount:         spec.BlockCount,
			NumGroups:          p.NumGroups,
			StrideIn1x1:        p.StrideIn1x1,
			FirstStride:        stride,
			Dilation:           dilation,
			DCN:                p.DCN,
			UseUnfixedBN:       headUnfixedBN(p, name),
		})
		if err != nil {
			return nil, fmt.Errorf("head stage %s: %w", name, err)
		}
		h.stages = append(h.stages, &stage{
			name:        name,
			index:       spec.Index,
			seq:         seq,
			outChannels: outChannels,
			firstStride: stride,
			dilation:    dilation,
			blocks:      spec.BlockCount,
		})
		stride = 0
		inChannels = outChannels
	}
	return h, nil
}

func headUnfixedBN(p HeadParams, stageName string) bool {
	if p.Block != "BottleneckWithFixedBatchNorm" {
		return false
	}
	for _, name := range p.DontLoad {
		if name == stageName {
			return true
		}
	}
	return false
}

// Forward runs the input through every head stage in order and returns
// the final feature map.
func (h *Head) Forward(x *tensor.Tensor) *tensor.Tensor {
	for _, s := range h.stages {
		x = s.seq.Forward(x)
	}
	return x
}

// OutChannels is the head's final channel count.
func (h *Head) OutChannels() int { return h.outChannels }

func (h *Head) Parameters() []*tensor.Tensor {
	var params []*tensor.Tensor
	for _, s := range h.stages {
		params = append(params, s.seq.Parameters()...)
	}
	return params
}

var _ layers.Layer = (*Head)(nil)
