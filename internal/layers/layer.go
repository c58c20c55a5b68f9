// Package layers provides the computation-graph primitives the backbone is
// assembled from: convolution, normalization, activation, pooling, and the
// Sequential container that chains them.
package layers

import "rachis/internal/tensor"

// Layer is a node of the computation graph. Forward panics on tensor shape
// mismatches; construction-time validation is the caller's job.
type Layer interface {
	Forward(x *tensor.Tensor) *tensor.Tensor
	Parameters() []*tensor.Tensor
}

// Sequential chains layers in order.
type Sequential struct {
	layers []Layer
}

func NewSequential(layers ...Layer) *Sequential {
	return &Sequential{layers: layers}
}

// Add appends a layer to the chain.
func (s *Sequential) Add(layer Layer) {
	s.layers = append(s.layers, layer)
}

// Forward runs the input through every layer in order.
func (s *Sequential) Forward(x *tensor.Tensor) *tensor.Tensor {
	for _, layer := range s.layers {
		x = layer.Forward(x)
	}
	return x
}

// Parameters returns the parameters of all layers, in layer order.
func (s *Sequential) Parameters() []*tensor.Tensor {
	var params []*tensor.Tensor
	for _, layer := range s.layers {
		params = append(params, layer.Parameters()...)
	}
	return params
}

// Len returns the number of layers in the chain.
func (s *Sequential) Len() int { return len(s.layers) }

// Layers exposes the chained layers in order.
func (s *Sequential) Layers() []Layer { return s.layers }

// Identity passes its input through unchanged.
type Identity struct{}

func (Identity) Forward(x *tensor.Tensor) *tensor.Tensor { return x }

func (Identity) Parameters() []*tensor.Tensor { return nil }

// ReLU applies max(0, x) element-wise.
type ReLU struct{}

func (ReLU) Forward(x *tensor.Tensor) *tensor.Tensor {
	out := x.Clone()
	v := out.Values()
	for i, val := range v {
		if val < 0 {
			v[i] = 0
		}
	}
	return out
}

func (ReLU) Parameters() []*tensor.Tensor { return nil }
