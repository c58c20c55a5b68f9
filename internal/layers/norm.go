package layers

import (
	"fmt"
	"math"

	"rachis/internal/tensor"
)

// NormFunc builds a normalization layer for a channel count. The stem and
// block registries bake a NormFunc into each registered variant.
type NormFunc func(channels int) Layer

const normEps = 1e-5

// FrozenBatchNorm2d applies a fixed per-channel affine transform derived
// from frozen batch statistics. Statistics and affine terms are buffers,
// not trainable parameters; a freshly constructed layer is the identity.
type FrozenBatchNorm2d struct {
	Channels int
	Weight   *tensor.Tensor
	Bias     *tensor.Tensor
	Mean     *tensor.Tensor
	Var      *tensor.Tensor
}

func NewFrozenBatchNorm2d(channels int) *FrozenBatchNorm2d {
	n := &FrozenBatchNorm2d{
		Channels: channels,
		Weight:   tensor.New(channels),
		Bias:     tensor.New(channels),
		Mean:     tensor.New(channels),
		Var:      tensor.New(channels),
	}
	n.Weight.Fill(1)
	n.Var.Fill(1)
	return n
}

func (f *FrozenBatchNorm2d) Forward(x *tensor.Tensor) *tensor.Tensor {
	n, c, h, w := x.Dim(0), x.Dim(1), x.Dim(2), x.Dim(3)
	if c != f.Channels {
		panic(fmt.Sprintf("layers: frozen BN expects %d channels, got %d", f.Channels, c))
	}
	out := tensor.New(n, c, h, w)
	xv, ov := x.Values(), out.Values()
	area := h * w
	for ch := 0; ch < c; ch++ {
		scale := f.Weight.At(ch) / math.Sqrt(f.Var.At(ch)+normEps)
		shift := f.Bias.At(ch) - f.Mean.At(ch)*scale
		for b := 0; b < n; b++ {
			base := (b*c + ch) * area
			for i := 0; i < area; i++ {
				ov[base+i] = xv[base+i]*scale + shift
			}
		}
	}
	return out
}

// Parameters is empty: frozen statistics never receive gradient updates.
func (f *FrozenBatchNorm2d) Parameters() []*tensor.Tensor { return nil }

// GroupNorm normalizes each sample over channel groups, then applies a
// trainable per-channel affine transform.
type GroupNorm struct {
	Groups   int
	Channels int
	Weight   *tensor.Tensor
	Bias     *tensor.Tensor
}

func NewGroupNorm(groups, channels int) *GroupNorm {
	if groups < 1 || channels%groups != 0 {
		panic(fmt.Sprintf("layers: %d channels not divisible into %d groups", channels, groups))
	}
	n := &GroupNorm{
		Groups:   groups,
		Channels: channels,
		Weight:   tensor.New(channels),
		Bias:     tensor.New(channels),
	}
	n.Weight.Fill(1)
	return n
}

// DefaultGroupNormGroups matches the detector's group-norm convention.
const DefaultGroupNormGroups = 32

// GroupNormDefault builds a GroupNorm with the default group count,
// falling back to one group per channel for narrow layers.
func GroupNormDefault(channels int) Layer {
	groups := DefaultGroupNormGroups
	if channels%groups != 0 {
		groups = channels
	}
	return NewGroupNorm(groups, channels)
}

func (g *GroupNorm) Forward(x *tensor.Tensor) *tensor.Tensor {
	n, c, h, w := x.Dim(0), x.Dim(1), x.Dim(2), x.Dim(3)
	if c != g.Channels {
		panic(fmt.Sprintf("layers: group norm expects %d channels, got %d", g.Channels, c))
	}
	out := tensor.New(n, c, h, w)
	xv, ov := x.Values(), out.Values()
	area := h * w
	perGroup := c / g.Groups
	groupSize := perGroup * area
	for b := 0; b < n; b++ {
		for grp := 0; grp < g.Groups; grp++ {
			base := (b*c + grp*perGroup) * area
			mean := 0.0
			for i := 0; i < groupSize; i++ {
				mean += xv[base+i]
			}
			mean /= float64(groupSize)
			variance := 0.0
			for i := 0; i < groupSize; i++ {
				d := xv[base+i] - mean
				variance += d * d
			}
			variance /= float64(groupSize)
			inv := 1.0 / math.Sqrt(variance+normEps)
			for pc := 0; pc < perGroup; pc++ {
				ch := grp*perGroup + pc
				scale := g.Weight.At(ch) * inv
				shift := g.Bias.At(ch) - mean*scale
				cbase := (b*c + ch) * area
				for i := 0; i < area; i++ {
					ov[cbase+i] = xv[cbase+i]*scale + shift
				}
			}
		}
	}
	return out
}

func (g *GroupNorm) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{g.Weight, g.Bias}
}

// BatchNorm2d normalizes each channel over the batch and spatial
// dimensions using statistics computed from the current input, then
// applies a trainable per-channel affine transform. Used for stages
// excluded from the frozen variant for checkpoint compatibility.
type BatchNorm2d struct {
	Channels int
	Weight   *tensor.Tensor
	Bias     *tensor.Tensor
}

func NewBatchNorm2d(channels int) *BatchNorm2d {
	n := &BatchNorm2d{
		Channels: channels,
		Weight:   tensor.New(channels),
		Bias:     tensor.New(channels),
	}
	n.Weight.Fill(1)
	return n
}

func (bn *BatchNorm2d) Forward(x *tensor.Tensor) *tensor.Tensor {
	n, c, h, w := x.Dim(0), x.Dim(1), x.Dim(2), x.Dim(3)
	if c != bn.Channels {
		panic(fmt.Sprintf("layers: batch norm expects %d channels, got %d", bn.Channels, c))
	}
	out := tensor.New(n, c, h, w)
	xv, ov := x.Values(), out.Values()
	area := h * w
	count := float64(n * area)
	for ch := 0; ch < c; ch++ {
		mean := 0.0
		for b := 0; b < n; b++ {
			base := (b*c + ch) * area
			for i := 0; i < area; i++ {
				mean += xv[base+i]
			}
		}
		mean /= count
		variance := 0.0
		for b := 0; b < n; b++ {
			base := (b*c + ch) * area
			for i := 0; i < area; i++ {
				d := xv[base+i] - mean
				variance += d * d
			}
		}
		variance /= count
		scale := bn.Weight.At(ch) / math.Sqrt(variance+normEps)
		shift := bn.Bias.At(ch) - mean*scale
		for b := 0; b < n; b++ {
			base := (b*c + ch) * area
			for i := 0; i < area; i++ {
				ov[base+i] = xv[base+i]*scale + shift
			}
		}
	}
	return out
}

func (bn *BatchNorm2d) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{bn.Weight, bn.Bias}
}
