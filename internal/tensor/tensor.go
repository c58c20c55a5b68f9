// Package tensor provides the dense float64 tensor that feature maps and
// layer parameters are made of. Data is stored row-major (C-contiguous);
// feature maps use NCHW order.
package tensor

import (
	"fmt"
	"math"
	"math/rand"
)

// Tensor is a multi-dimensional array of float64 values.
//
// Tensors are not safe for concurrent mutation. Parameters additionally
// carry a trainable flag; the flag is set once at construction (or when a
// backbone freezes a stage) and is never revised during a run.
type Tensor struct {
	shape     []int
	values    []float64
	trainable bool
}

// New creates a zero-filled tensor with the given shape.
// Panics on an empty shape or non-positive dimension; shape errors are
// programmer bugs, not runtime conditions.
func New(shape ...int) *Tensor {
	if len(shape) == 0 {
		panic("tensor: shape cannot be empty")
	}
	size := 1
	for i, dim := range shape {
		if dim <= 0 {
			panic(fmt.Sprintf("tensor: shape[%d] must be positive, got %d", i, dim))
		}
		size *= dim
	}
	shapeCopy := make([]int, len(shape))
	copy(shapeCopy, shape)
	return &Tensor{
		shape:     shapeCopy,
		values:    make([]float64, size),
		trainable: true,
	}
}

// FromValues creates a tensor that adopts the given backing slice.
// The slice length must match the shape's element count.
func FromValues(values []float64, shape ...int) *Tensor {
	t := New(shape...)
	if len(values) != len(t.values) {
		panic(fmt.Sprintf("tensor: %d values for shape %v (want %d)", len(values), shape, len(t.values)))
	}
	copy(t.values, values)
	return t
}

// Shape returns a copy of the tensor's shape.
func (t *Tensor) Shape() []int {
	shape := make([]int, len(t.shape))
	copy(shape, t.shape)
	return shape
}

// Dim returns the size of dimension i.
func (t *Tensor) Dim(i int) int { return t.shape[i] }

// Dims returns the tensor's rank.
func (t *Tensor) Dims() int { return len(t.shape) }

// Size returns the total element count.
func (t *Tensor) Size() int { return len(t.values) }

// Values exposes the backing slice. Mutating it mutates the tensor.
func (t *Tensor) Values() []float64 { return t.values }

// At returns the element at the given indices.
func (t *Tensor) At(indices ...int) float64 {
	return t.values[t.flatIndex(indices)]
}

// Set stores v at the given indices.
func (t *Tensor) Set(v float64, indices ...int) {
	t.values[t.flatIndex(indices)] = v
}

func (t *Tensor) flatIndex(indices []int) int {
	if len(indices) != len(t.shape) {
		panic(fmt.Sprintf("tensor: expected %d indices, got %d", len(t.shape), len(indices)))
	}
	idx := 0
	for i, ind := range indices {
		if ind < 0 || ind >= t.shape[i] {
			panic(fmt.Sprintf("tensor: index[%d]=%d out of bounds [0,%d)", i, ind, t.shape[i]))
		}
		idx = idx*t.shape[i] + ind
	}
	return idx
}

// SameShape reports whether t and other have identical shapes.
func (t *Tensor) SameShape(other *Tensor) bool {
	if len(t.shape) != len(other.shape) {
		return false
	}
	for i := range t.shape {
		if t.shape[i] != other.shape[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the tensor, trainable flag included.
func (t *Tensor) Clone() *Tensor {
	c := New(t.shape...)
	copy(c.values, t.values)
	c.trainable = t.trainable
	return c
}

// Fill sets every element to v.
func (t *Tensor) Fill(v float64) {
	for i := range t.values {
		t.values[i] = v
	}
}

// AddInPlace accumulates other into t element-wise.
// Panics on shape mismatch.
func (t *Tensor) AddInPlace(other *Tensor) {
	if !t.SameShape(other) {
		panic(fmt.Sprintf("tensor: cannot add shapes %v and %v", t.shape, other.shape))
	}
	for i, v := range other.values {
		t.values[i] += v
	}
}

// Trainable reports whether the tensor participates in gradient updates.
func (t *Tensor) Trainable() bool { return t.trainable }

// SetTrainable marks the tensor trainable or frozen.
func (t *Tensor) SetTrainable(trainable bool) { t.trainable = trainable }

// UniformInit fills the tensor with samples from U(-bound, bound).
func (t *Tensor) UniformInit(rng *rand.Rand, bound float64) {
	for i := range t.values {
		t.values[i] = (rng.Float64()*2 - 1) * bound
	}
}

// MaxAbsDiff returns the largest absolute element-wise difference between
// two same-shaped tensors. Panics on shape mismatch.
func MaxAbsDiff(a, b *Tensor) float64 {
	if !a.SameShape(b) {
		panic(fmt.Sprintf("tensor: cannot compare shapes %v and %v", a.shape, b.shape))
	}
	max := 0.0
	for i := range a.values {
		if d := math.Abs(a.values[i] - b.values[i]); d > max {
			max = d
		}
	}
	return max
}
