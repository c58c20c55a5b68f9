package backbone

import (
	"math/rand"
	"testing"

	"rachis/internal/layers"
	"rachis/internal/model"
	"rachis/internal/tensor"
)

func frozenNorm(c int) layers.Layer { return layers.NewFrozenBatchNorm2d(c) }

func testBlockParams() BlockParams {
	return BlockParams{
		InChannels:         8,
		BottleneckChannels: 4,
		OutChannels:        16,
		NumGroups:          1,
		StrideIn1x1:        true,
		Stride:             1,
		Dilation:           1,
		MiddleKernel:       3,
	}
}

func TestBottleneckOutputChannels(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	b := NewBottleneck(rng, testBlockParams(), frozenNorm)
	x := tensor.New(1, 8, 8, 8)
	x.UniformInit(rng, 1)
	out := b.Forward(x)
	if out.Dim(1) != 16 {
		t.Fatalf("unexpected output channels: got=%d want=16", out.Dim(1))
	}
	if out.Dim(2) != 8 || out.Dim(3) != 8 {
		t.Fatalf("stride-1 block changed spatial size: %v", out.Shape())
	}
}

func TestBottleneckStridedSpatial(t *testing.T) {
	for _, strideIn1x1 := range []bool{true, false} {
		rng := rand.New(rand.NewSource(2))
		p := testBlockParams()
		p.Stride = 2
		p.StrideIn1x1 = strideIn1x1
		b := NewBottleneck(rng, p, frozenNorm)

		x := tensor.New(1, 8, 9, 9)
		x.UniformInit(rng, 1)
		out := b.Forward(x)
		// ceil(9/2) = 5 under the documented padding rule, regardless of
		// which conv carries the stride.
		if out.Dim(2) != 5 || out.Dim(3) != 5 {
			t.Fatalf("stride_in_1x1=%v: unexpected spatial size %v, want 5x5", strideIn1x1, out.Shape())
		}
	}
}

func TestBottleneckIdentityShortcut(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	p := testBlockParams()
	p.InChannels = 16 // in == out: shortcut must be the identity
	b := NewBottleneck(rng, p, frozenNorm)
	if b.HasProjection() {
		t.Fatal("expected identity shortcut when in == out channels")
	}
	p.InChannels = 8
	if !NewBottleneck(rng, p, frozenNorm).HasProjection() {
		t.Fatal("expected projection shortcut when in != out channels")
	}
}

func TestBottleneckDilationKeepsSize(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	p := testBlockParams()
	p.Dilation = 2
	b := NewBottleneck(rng, p, frozenNorm)
	x := tensor.New(1, 8, 10, 10)
	out := b.Forward(x)
	if out.Dim(2) != 10 || out.Dim(3) != 10 {
		t.Fatalf("dilated 3x3 at stride 1 changed spatial size: %v", out.Shape())
	}
}

func TestBottleneckMiddleKernelOne(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	p := testBlockParams()
	p.MiddleKernel = 1
	b := NewBottleneck(rng, p, frozenNorm)
	x := tensor.New(1, 8, 6, 6)
	out := b.Forward(x)
	// kernel 1 gets no padding, so the spatial size is preserved.
	if out.Dim(2) != 6 || out.Dim(3) != 6 {
		t.Fatalf("1x1 middle kernel changed spatial size: %v", out.Shape())
	}
}

func TestBottleneckRejectsEvenKernel(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for even middle kernel")
		}
	}()
	p := testBlockParams()
	p.MiddleKernel = 2
	NewBottleneck(rand.New(rand.NewSource(6)), p, frozenNorm)
}

func TestBottleneckDeformable(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	p := testBlockParams()
	p.DCN = model.DCNConfig{Enabled: true, DeformableGroups: 1}
	b := NewBottleneck(rng, p, frozenNorm)
	x := tensor.New(1, 8, 6, 6)
	x.UniformInit(rng, 1)
	out := b.Forward(x)
	if out.Dim(1) != 16 || out.Dim(2) != 6 || out.Dim(3) != 6 {
		t.Fatalf("unexpected deformable block output shape: %v", out.Shape())
	}
	if _, ok := b.conv2.(*layers.DeformConv2d); !ok {
		t.Fatalf("expected deformable middle conv, got %T", b.conv2)
	}
}

func TestBottleneckUnfixedBNHasTrainableNorms(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	p := testBlockParams()
	p.UseUnfixedBN = true
	b := NewBottleneck(rng, p, frozenNorm)
	// Frozen BN contributes zero parameters; the unfixed escape hatch
	// swaps in batch norms with weight+bias each: 3 convs + 3 norms*2
	// + projection conv = 10 tensors.
	if got := len(b.Parameters()); got != 10 {
		t.Fatalf("unexpected parameter count: got=%d want=10", got)
	}
}

func TestBottleneckGroupedConv(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	p := testBlockParams()
	p.NumGroups = 2
	b := NewBottleneck(rng, p, frozenNorm)
	x := tensor.New(1, 8, 4, 4)
	x.UniformInit(rng, 1)
	if out := b.Forward(x); out.Dim(1) != 16 {
		t.Fatalf("unexpected grouped block output channels: %d", out.Dim(1))
	}
}
