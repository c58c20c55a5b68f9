package tensor

import (
	"math"
	"math/rand"
	"testing"
)

func TestNewZeroFilled(t *testing.T) {
	x := New(2, 3, 4, 4)
	if got := x.Size(); got != 96 {
		t.Fatalf("unexpected size: got=%d want=96", got)
	}
	for _, v := range x.Values() {
		if v != 0 {
			t.Fatalf("expected zero-filled tensor, found %f", v)
		}
	}
	if !x.Trainable() {
		t.Fatal("new tensor should default to trainable")
	}
}

func TestNewRejectsBadShape(t *testing.T) {
	tests := []struct {
		name  string
		shape []int
	}{
		{name: "empty", shape: nil},
		{name: "zero-dim", shape: []int{2, 0, 3}},
		{name: "negative-dim", shape: []int{-1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatal("expected panic")
				}
			}()
			New(tc.shape...)
		})
	}
}

func TestAtSetRowMajor(t *testing.T) {
	x := New(2, 3)
	x.Set(5, 1, 2)
	if got := x.At(1, 2); got != 5 {
		t.Fatalf("unexpected value: got=%f want=5", got)
	}
	// Row-major: element (1,2) is the last of six.
	if got := x.Values()[5]; got != 5 {
		t.Fatalf("row-major layout violated: got=%f want=5", got)
	}
}

func TestShapeReturnsCopy(t *testing.T) {
	x := New(4, 2)
	s := x.Shape()
	s[0] = 99
	if x.Dim(0) != 4 {
		t.Fatal("mutating Shape() result must not affect the tensor")
	}
}

func TestCloneIndependence(t *testing.T) {
	x := New(2, 2)
	x.Fill(1)
	x.SetTrainable(false)
	c := x.Clone()
	c.Set(7, 0, 0)
	if x.At(0, 0) != 1 {
		t.Fatal("clone shares storage with original")
	}
	if c.Trainable() {
		t.Fatal("clone should preserve trainable flag")
	}
}

func TestAddInPlace(t *testing.T) {
	a := FromValues([]float64{1, 2, 3, 4}, 2, 2)
	b := FromValues([]float64{10, 20, 30, 40}, 2, 2)
	a.AddInPlace(b)
	want := []float64{11, 22, 33, 44}
	for i, v := range a.Values() {
		if v != want[i] {
			t.Fatalf("unexpected sum at %d: got=%f want=%f", i, v, want[i])
		}
	}
}

func TestUniformInitBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	x := New(8, 8)
	x.UniformInit(rng, 0.5)
	for _, v := range x.Values() {
		if math.Abs(v) > 0.5 {
			t.Fatalf("sample %f outside bound 0.5", v)
		}
	}
}

func TestMaxAbsDiff(t *testing.T) {
	a := FromValues([]float64{1, 2}, 2)
	b := FromValues([]float64{1.5, 1}, 2)
	if got := MaxAbsDiff(a, b); math.Abs(got-1) > 1e-12 {
		t.Fatalf("unexpected diff: got=%f want=1", got)
	}
}
