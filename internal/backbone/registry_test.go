package backbone

import (
	"errors"
	"math/rand"
	"testing"
)

func TestBuiltinComponentsRegistered(t *testing.T) {
	wantStems := []string{"StemWithFixedBatchNorm", "StemWithGN"}
	wantBlocks := []string{"BottleneckWithFixedBatchNorm", "BottleneckWithGN"}

	gotStems := Stems()
	if len(gotStems) != len(wantStems) {
		t.Fatalf("unexpected stem variants: got=%v want=%v", gotStems, wantStems)
	}
	for i := range wantStems {
		if gotStems[i] != wantStems[i] {
			t.Fatalf("unexpected stem variants: got=%v want=%v", gotStems, wantStems)
		}
	}
	gotBlocks := Blocks()
	if len(gotBlocks) != len(wantBlocks) {
		t.Fatalf("unexpected block variants: got=%v want=%v", gotBlocks, wantBlocks)
	}
	for i := range wantBlocks {
		if gotBlocks[i] != wantBlocks[i] {
			t.Fatalf("unexpected block variants: got=%v want=%v", gotBlocks, wantBlocks)
		}
	}
}

func TestResolveUnknownComponent(t *testing.T) {
	if _, err := ResolveStem("NoSuchStem"); !errors.Is(err, ErrUnknownComponent) {
		t.Fatalf("expected ErrUnknownComponent, got %v", err)
	}
	if _, err := ResolveBlock("NoSuchBlock"); !errors.Is(err, ErrUnknownComponent) {
		t.Fatalf("expected ErrUnknownComponent, got %v", err)
	}
}

func TestDuplicateRegistrationRejected(t *testing.T) {
	stemCtor := func(rng *rand.Rand, out int) *Stem { return nil }
	if err := RegisterStem("StemWithGN", stemCtor); !errors.Is(err, ErrComponentExists) {
		t.Fatalf("expected ErrComponentExists, got %v", err)
	}
	blockCtor := func(rng *rand.Rand, p BlockParams) *Bottleneck { return nil }
	if err := RegisterBlock("BottleneckWithGN", blockCtor); !errors.Is(err, ErrComponentExists) {
		t.Fatalf("expected ErrComponentExists, got %v", err)
	}
}

func TestRegisterRequiresNameAndConstructor(t *testing.T) {
	if err := RegisterStem("", func(rng *rand.Rand, out int) *Stem { return nil }); err == nil {
		t.Fatal("expected error for empty name")
	}
	if err := RegisterBlock("SomeBlock", nil); err == nil {
		t.Fatal("expected error for nil constructor")
	}
}
