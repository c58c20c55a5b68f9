package backbone

import (
	"fmt"
	"math/rand"

	"rachis/internal/layers"
	"rachis/internal/model"
	"rachis/internal/tensor"
)

// BlockParams is the resolved geometry of one residual block.
type BlockParams struct {
	InChannels         int
	BottleneckChannels int
	OutChannels        int
	NumGroups          int
	// StrideIn1x1 places the block stride in the 1x1 reduce conv (MSRA
	// convention) instead of the spatial conv (Caffe2 convention).
	StrideIn1x1  bool
	Stride       int
	Dilation     int
	MiddleKernel int
	DCN          model.DCNConfig
	// UseUnfixedBN swaps the baked normalization for an ordinary batch
	// norm, for loading checkpoints without frozen statistics.
	UseUnfixedBN bool
}

// Bottleneck is the residual unit: 1x1 reduce, spatial conv (optionally
// deformable), 1x1 expand, each followed by normalization, with an
// identity or projected shortcut added before the final activation.
// Output channel count is always exactly OutChannels.
type Bottleneck struct {
	OutChannels int

	downsample *layers.Sequential // nil when the shortcut is the identity
	conv1      *layers.Conv2d
	bn1        layers.Layer
	conv2      layers.Layer // *layers.Conv2d or *layers.DeformConv2d
	bn2        layers.Layer
	conv3      *layers.Conv2d
	bn3        layers.Layer
}

// NewBottleneck constructs one residual block. The caller guarantees that
// InChannels matches the previous block's output; a violation surfaces as
// a shape panic at first forward, not here.
func NewBottleneck(rng *rand.Rand, p BlockParams, norm layers.NormFunc) *Bottleneck {
	if p.MiddleKernel < 1 || p.MiddleKernel%2 == 0 {
		panic(fmt.Sprintf("backbone: middle kernel size must be odd and positive, got %d", p.MiddleKernel))
	}
	makeNorm := norm
	if p.UseUnfixedBN {
		makeNorm = func(c int) layers.Layer { return layers.NewBatchNorm2d(c) }
	}

	b := &Bottleneck{OutChannels: p.OutChannels}

	if p.InChannels != p.OutChannels {
		proj := layers.NewConv2d(p.InChannels, p.OutChannels, 1, p.Stride, 0, 1, 1, false)
		layers.KaimingUniform(rng, proj, 1)
		b.downsample = layers.NewSequential(proj, norm(p.OutChannels))
	}

	stride1x1, strideSpatial := 1, p.Stride
	if p.StrideIn1x1 {
		stride1x1, strideSpatial = p.Stride, 1
	}

	b.conv1 = layers.NewConv2d(p.InChannels, p.BottleneckChannels, 1, stride1x1, 0, 1, 1, false)
	layers.KaimingUniform(rng, b.conv1, 1)
	b.bn1 = makeNorm(p.BottleneckChannels)

	if p.DCN.Enabled {
		groups := p.DCN.DeformableGroups
		if groups < 1 {
			groups = 1
		}
		b.conv2 = layers.NewDeformConv2d(
			rng,
			p.BottleneckChannels, p.BottleneckChannels,
			p.MiddleKernel, strideSpatial, middlePadding(p.MiddleKernel, p.Dilation), p.Dilation,
			p.NumGroups, groups, p.DCN.Modulated,
		)
	} else {
		conv2 := layers.NewConv2d(
			p.BottleneckChannels, p.BottleneckChannels,
			p.MiddleKernel, strideSpatial, middlePadding(p.MiddleKernel, p.Dilation), p.Dilation,
			p.NumGroups, false,
		)
		layers.KaimingUniform(rng, conv2, 1)
		b.conv2 = conv2
	}
	b.bn2 = makeNorm(p.BottleneckChannels)

	b.conv3 = layers.NewConv2d(p.BottleneckChannels, p.OutChannels, 1, 1, 0, 1, 1, false)
	layers.KaimingUniform(rng, b.conv3, 1)
	b.bn3 = makeNorm(p.OutChannels)

	return b
}

// middlePadding: no padding for a 1x1 kernel, otherwise padding equal to
// the dilation (size-preserving at stride 1 for the common 3x3 case).
func middlePadding(kernel, dilation int) int {
	if kernel == 1 {
		return 0
	}
	return dilation
}

func (b *Bottleneck) Forward(x *tensor.Tensor) *tensor.Tensor {
	identity := x
	if b.downsample != nil {
		identity = b.downsample.Forward(x)
	}

	out := b.conv1.Forward(x)
	out = b.bn1.Forward(out)
	out = layers.ReLU{}.Forward(out)

	out = b.conv2.Forward(out)
	out = b.bn2.Forward(out)
	out = layers.ReLU{}.Forward(out)

	out = b.conv3.Forward(out)
	out = b.bn3.Forward(out)

	out.AddInPlace(identity)
	return layers.ReLU{}.Forward(out)
}

func (b *Bottleneck) Parameters() []*tensor.Tensor {
	var params []*tensor.Tensor
	params = append(params, b.conv1.Parameters()...)
	params = append(params, b.bn1.Parameters()...)
	params = append(params, b.conv2.Parameters()...)
	params = append(params, b.bn2.Parameters()...)
	params = append(params, b.conv3.Parameters()...)
	params = append(params, b.bn3.Parameters()...)
	if b.downsample != nil {
		params = append(params, b.downsample.Parameters()...)
	}
	return params
}

// HasProjection reports whether the shortcut path is a projection rather
// than the identity.
func (b *Bottleneck) HasProjection() bool { return b.downsample != nil }
