package backbone

import (
	"fmt"
	"math/rand"
	"time"

	"rachis/internal/catalog"
	"rachis/internal/layers"
	"rachis/internal/model"
	"rachis/internal/tensor"
)

// stage is one built residual stage plus the metadata the orchestrator
// keeps about it. Stages live in an ordered slice; the layer{index} name
// is metadata for freeze and export bookkeeping, never a lookup key.
type stage struct {
	name        string
	index       int
	seq         *layers.Sequential
	outChannels int
	firstStride int
	dilation    int
	blocks      int
	exported    bool
	frozen      bool
}

// Backbone composes the stem with an ordered sequence of residual stages
// and exports the feature maps its catalog entry marks for return.
type Backbone struct {
	arch        string
	stemName    string
	blockName   string
	stem        *Stem
	stages      []*stage
	outChannels int
}

// New compiles a backbone from the configuration. Every definition-time
// check (unknown names, schedule and length mismatches) fails here,
// before any module is constructed.
func New(cfg model.Config) (*Backbone, error) {
	stemCtor, err := ResolveStem(cfg.StemFunc)
	if err != nil {
		return nil, err
	}
	blockCtor, err := ResolveBlock(cfg.TransFunc)
	if err != nil {
		return nil, err
	}
	specs, err := catalog.Lookup(cfg.ConvBody)
	if err != nil {
		return nil, err
	}

	dilations, err := resolveDilations(cfg, len(specs))
	if err != nil {
		return nil, err
	}
	strides, err := resolveStrides(cfg, specs)
	if err != nil {
		return nil, err
	}
	if cfg.UseFPN || resRegActive(cfg.ResReg) {
		// The pyramid convention owns the geometry: dilation is forced
		// to 1 even when the configuration lists something else.
		for i := range dilations {
			dilations[i] = 1
		}
	}
	if len(cfg.StageWithDCN) != 0 && len(cfg.StageWithDCN) < specs[len(specs)-1].Index {
		return nil, fmt.Errorf("%w: %d deformable-conv flags for %d stages",
			ErrConfigMismatch, len(cfg.StageWithDCN), specs[len(specs)-1].Index)
	}
	if len(cfg.MiddleKernelSizes) != 0 && len(cfg.MiddleKernelSizes) != len(specs) {
		return nil, fmt.Errorf("%w: %d middle-kernel lists for %d stages",
			ErrConfigMismatch, len(cfg.MiddleKernelSizes), len(specs))
	}

	rng := newRNG(cfg.Seed)
	b := &Backbone{
		arch:      cfg.ConvBody,
		stemName:  cfg.StemFunc,
		blockName: cfg.TransFunc,
		stem:      stemCtor(rng, cfg.StemOutChannels),
	}

	in := cfg.StemOutChannels
	for i, spec := range specs {
		name := fmt.Sprintf("layer%d", spec.Index)
		factor := 1 << uint(spec.Index-1)
		bottleneckChannels := cfg.NumGroups * cfg.WidthPerGroup * factor
		outChannels := cfg.Res2OutChannels * factor

		var middle []int
		if len(cfg.MiddleKernelSizes) != 0 {
			middle = cfg.MiddleKernelSizes[i]
		}

		seq, err := NewStage(rng, blockCtor, StageParams{
			InChannels:         in,
			BottleneckChannels: bottleneckChannels,
			OutChannels:        outChannels,
			BlockCount:         spec.BlockCount,
			NumGroups:          cfg.NumGroups,
			StrideIn1x1:        cfg.StrideIn1x1,
			FirstStride:        strides[i],
			Dilation:           dilations[i],
			DCN:                stageDCN(cfg, spec.Index),
			MiddleKernels:      middle,
			UseUnfixedBN:       useUnfixedBN(cfg, name),
		})
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", name, err)
		}

		b.stages = append(b.stages, &stage{
			name:        name,
			index:       spec.Index,
			seq:         seq,
			outChannels: outChannels,
			firstStride: strides[i],
			dilation:    dilations[i],
			blocks:      spec.BlockCount,
			exported:    spec.ReturnFeatures,
		})
		in = outChannels
	}
	b.outChannels = in

	b.freeze(cfg.FreezeAt)
	return b, nil
}

// resolveDilations returns one dilation per stage. An empty configured
// list defaults to all ones; a non-empty list must match the stage count.
func resolveDilations(cfg model.Config, stageCount int) ([]int, error) {
	if len(cfg.Dilations) == 0 {
		d := make([]int, stageCount)
		for i := range d {
			d[i] = 1
		}
		return d, nil
	}
	if len(cfg.Dilations) != stageCount {
		return nil, fmt.Errorf("%w: %d dilations for %d stages", ErrConfigMismatch, len(cfg.Dilations), stageCount)
	}
	for i, d := range cfg.Dilations {
		if d < 1 {
			return nil, fmt.Errorf("%w: dilation %d at stage %d", ErrConfigMismatch, d, i)
		}
	}
	out := make([]int, stageCount)
	copy(out, cfg.Dilations)
	return out, nil
}

// resolveStrides derives the per-stage first-stride schedule. With a
// pyramid network or resolution adapter in play, stage 1 runs at stride 1
// and every later stage at stride 2, dilation forced to 1. Otherwise a
// fixed table maps the anchor stride to a three-stage schedule.
func resolveStrides(cfg model.Config, specs []model.StageSpec) ([]int, error) {
	if cfg.UseFPN || resRegActive(cfg.ResReg) {
		strides := make([]int, len(specs))
		for i, spec := range specs {
			if spec.Index > 1 {
				strides[i] = 2
			} else {
				strides[i] = 1
			}
		}
		return strides, nil
	}

	var table []int
	switch cfg.AnchorStride {
	case 4:
		table = []int{1, 1, 1}
	case 8:
		table = []int{1, 1, 2}
	case 16:
		table = []int{1, 2, 2}
	case 32:
		table = []int{2, 2, 2}
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidAnchorStride, cfg.AnchorStride)
	}
	if len(specs) > len(table) {
		return nil, fmt.Errorf("%w: anchor-stride schedule covers %d stages, architecture has %d",
			ErrConfigMismatch, len(table), len(specs))
	}
	return table[:len(specs)], nil
}

func stageDCN(cfg model.Config, stageIndex int) model.DCNConfig {
	enabled := false
	if len(cfg.StageWithDCN) >= stageIndex {
		enabled = cfg.StageWithDCN[stageIndex-1]
	}
	return model.DCNConfig{
		Enabled:          enabled,
		Modulated:        cfg.WithModulatedDCN,
		DeformableGroups: cfg.DeformableGroups,
	}
}

func useUnfixedBN(cfg model.Config, stageName string) bool {
	if cfg.TransFunc != "BottleneckWithFixedBatchNorm" {
		return false
	}
	for _, name := range cfg.DontLoad {
		if name == stageName {
			return true
		}
	}
	return false
}

func newRNG(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// freeze disables gradient updates for the stem (stage 0) and every stage
// with index < at. Applied exactly once at construction; at <= 0 freezes
// nothing.
func (b *Backbone) freeze(at int) {
	if at < 0 {
		return
	}
	for stageIndex := 0; stageIndex < at; stageIndex++ {
		if stageIndex == 0 {
			freezeParams(b.stem.Parameters())
			continue
		}
		for _, s := range b.stages {
			if s.index == stageIndex {
				freezeParams(s.seq.Parameters())
				s.frozen = true
			}
		}
	}
}

func freezeParams(params []*tensor.Tensor) {
	for _, p := range params {
		p.SetTrainable(false)
	}
}

// Forward runs the stem and every stage in order, collecting the outputs
// of exported stages in stage-index order.
func (b *Backbone) Forward(x *tensor.Tensor) []*tensor.Tensor {
	var outputs []*tensor.Tensor
	x = b.stem.Forward(x)
	for _, s := range b.stages {
		x = s.seq.Forward(x)
		if s.exported {
			outputs = append(outputs, x)
		}
	}
	return outputs
}

// OutChannels is the final stage's channel count; downstream proposal and
// head components size themselves from it.
func (b *Backbone) OutChannels() int { return b.outChannels }

// Arch returns the catalog name this backbone was compiled from.
func (b *Backbone) Arch() string { return b.arch }

// Parameters returns every parameter in deterministic order: stem first,
// then stages by index, blocks in chain order.
func (b *Backbone) Parameters() []*tensor.Tensor {
	params := b.stem.Parameters()
	for _, s := range b.stages {
		params = append(params, s.seq.Parameters()...)
	}
	return params
}

// StemFrozen reports whether the stem's parameters are all non-trainable.
func (b *Backbone) StemFrozen() bool {
	for _, p := range b.stem.Parameters() {
		if p.Trainable() {
			return false
		}
	}
	return true
}

// Summaries returns per-stage build metadata in stage order.
func (b *Backbone) Summaries() []model.StageSummary {
	out := make([]model.StageSummary, len(b.stages))
	for i, s := range b.stages {
		out[i] = model.StageSummary{
			Name:        s.name,
			Index:       s.index,
			Blocks:      s.blocks,
			FirstStride: s.firstStride,
			Dilation:    s.dilation,
			OutChannels: s.outChannels,
			Exported:    s.exported,
			Frozen:      s.frozen,
		}
	}
	return out
}

// StageParameters returns the parameters of the stage with the given
// 1-based index, or nil if no such stage exists.
func (b *Backbone) StageParameters(index int) []*tensor.Tensor {
	for _, s := range b.stages {
		if s.index == index {
			return s.seq.Parameters()
		}
	}
	return nil
}
