package backbone

import (
	"fmt"

	"rachis/internal/catalog"
	"rachis/internal/layers"
	"rachis/internal/model"
	"rachis/internal/tensor"
)

// BranchStage is the multi-branch form of a residual stage: several
// structurally distinct branches built for the same stage slot, each with
// its own (first stride, dilation) pair. A forward pass evaluates exactly
// one branch; choosing the branch is a selector's job, external to this
// container.
type BranchStage struct {
	index       int
	outChannels int
	branches    []*layers.Sequential
	frozen      bool
}

// NewBranchStage builds every branch declared for the stage index in the
// configuration's branch specification. The stage index must exist in the
// architecture's stage sequence and have at least one declared branch.
func NewBranchStage(cfg model.Config, stageIndex, inChannels int) (*BranchStage, error) {
	specs, err := catalog.Lookup(cfg.ConvBody)
	if err != nil {
		return nil, err
	}
	var spec *model.StageSpec
	for i := range specs {
		if specs[i].Index == stageIndex {
			spec = &specs[i]
			break
		}
	}
	if spec == nil {
		return nil, fmt.Errorf("%w: architecture %s has no stage %d", ErrConfigMismatch, cfg.ConvBody, stageIndex)
	}
	branchSpecs := cfg.BranchSpecs[stageIndex]
	if len(branchSpecs) == 0 {
		return nil, fmt.Errorf("%w: no branches declared for stage %d", ErrConfigMismatch, stageIndex)
	}
	blockCtor, err := ResolveBlock(cfg.TransFunc)
	if err != nil {
		return nil, err
	}

	factor := 1 << uint(stageIndex-1)
	bottleneckChannels := cfg.NumGroups * cfg.WidthPerGroup * factor
	outChannels := cfg.Res2OutChannels * factor

	rng := newRNG(cfg.Seed)
	bs := &BranchStage{index: stageIndex, outChannels: outChannels}
	for i, branch := range branchSpecs {
		seq, err := NewStage(rng, blockCtor, StageParams{
			InChannels:         inChannels,
			BottleneckChannels: bottleneckChannels,
			OutChannels:        outChannels,
			BlockCount:         spec.BlockCount,
			NumGroups:          cfg.NumGroups,
			StrideIn1x1:        cfg.StrideIn1x1,
			FirstStride:        branch.FirstStride,
			Dilation:           branch.Dilation,
			DCN:                stageDCN(cfg, stageIndex),
		})
		if err != nil {
			return nil, fmt.Errorf("stage %d branch %d: %w", stageIndex, i, err)
		}
		bs.branches = append(bs.branches, seq)
	}

	if stageIndex < cfg.FreezeAt {
		bs.Freeze()
	}
	return bs, nil
}

// Forward evaluates the selected branch only; the other branches are not
// touched.
func (bs *BranchStage) Forward(x *tensor.Tensor, branch int) (*tensor.Tensor, error) {
	if branch < 0 || branch >= len(bs.branches) {
		return nil, fmt.Errorf("branch index %d out of range [0,%d)", branch, len(bs.branches))
	}
	return bs.branches[branch].Forward(x), nil
}

// Branches returns the number of branches.
func (bs *BranchStage) Branches() int { return len(bs.branches) }

// Index returns the stage's 1-based index.
func (bs *BranchStage) Index() int { return bs.index }

// OutChannels is identical for every branch of the stage.
func (bs *BranchStage) OutChannels() int { return bs.outChannels }

// Freeze marks every branch's parameters non-trainable.
func (bs *BranchStage) Freeze() {
	for _, branch := range bs.branches {
		freezeParams(branch.Parameters())
	}
	bs.frozen = true
}

// Frozen reports whether Freeze has been applied.
func (bs *BranchStage) Frozen() bool { return bs.frozen }

// Parameters returns the parameters of every branch in branch order.
func (bs *BranchStage) Parameters() []*tensor.Tensor {
	var params []*tensor.Tensor
	for _, branch := range bs.branches {
		params = append(params, branch.Parameters()...)
	}
	return params
}

// BuildStem constructs just the stem named by the configuration, for
// callers assembling custom bodies stage by stage.
func BuildStem(cfg model.Config) (*Stem, error) {
	ctor, err := ResolveStem(cfg.StemFunc)
	if err != nil {
		return nil, err
	}
	return ctor(newRNG(cfg.Seed), cfg.StemOutChannels), nil
}

// BuildStage constructs one single-branch stage of the configured
// architecture and returns it with its output channel count.
func BuildStage(cfg model.Config, stageIndex, inChannels int) (*layers.Sequential, int, error) {
	specs, err := catalog.Lookup(cfg.ConvBody)
	if err != nil {
		return nil, 0, err
	}
	var spec *model.StageSpec
	for i := range specs {
		if specs[i].Index == stageIndex {
			spec = &specs[i]
			break
		}
	}
	if spec == nil {
		return nil, 0, fmt.Errorf("%w: architecture %s has no stage %d", ErrConfigMismatch, cfg.ConvBody, stageIndex)
	}
	blockCtor, err := ResolveBlock(cfg.TransFunc)
	if err != nil {
		return nil, 0, err
	}

	factor := 1 << uint(stageIndex-1)
	outChannels := cfg.Res2OutChannels * factor
	firstStride := 1
	if stageIndex > 1 {
		firstStride = 2
	}

	seq, err := NewStage(newRNG(cfg.Seed), blockCtor, StageParams{
		InChannels:         inChannels,
		BottleneckChannels: cfg.NumGroups * cfg.WidthPerGroup * factor,
		OutChannels:        outChannels,
		BlockCount:         spec.BlockCount,
		NumGroups:          cfg.NumGroups,
		StrideIn1x1:        cfg.StrideIn1x1,
		FirstStride:        firstStride,
		Dilation:           1,
		DCN:                stageDCN(cfg, stageIndex),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("stage %d: %w", stageIndex, err)
	}
	return seq, outChannels, nil
}
