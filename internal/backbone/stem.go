package backbone

import (
	"math/rand"

	"rachis/internal/layers"
	"rachis/internal/tensor"
)

// Stem is the initial downsampling module preceding all stages:
// 7x7 stride-2 convolution, normalization, ReLU, 3x3 stride-2 max pool,
// for an overall 4x spatial reduction. Image input is assumed RGB.
type Stem struct {
	OutChannels int

	conv *layers.Conv2d
	norm layers.Layer
	pool *layers.MaxPool2d
}

// NewStem builds a stem with the given normalization variant. The
// convolution weight is Kaiming-uniform initialized (a=1) once here.
func NewStem(rng *rand.Rand, outChannels int, norm layers.NormFunc) *Stem {
	conv := layers.NewConv2d(3, outChannels, 7, 2, 3, 1, 1, false)
	layers.KaimingUniform(rng, conv, 1)
	return &Stem{
		OutChannels: outChannels,
		conv:        conv,
		norm:        norm(outChannels),
		pool:        layers.NewMaxPool2d(3, 2, 1),
	}
}

func (s *Stem) Forward(x *tensor.Tensor) *tensor.Tensor {
	x = s.conv.Forward(x)
	x = s.norm.Forward(x)
	x = layers.ReLU{}.Forward(x)
	return s.pool.Forward(x)
}

func (s *Stem) Parameters() []*tensor.Tensor {
	params := s.conv.Parameters()
	return append(params, s.norm.Parameters()...)
}
