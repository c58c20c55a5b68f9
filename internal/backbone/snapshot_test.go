package backbone

import (
	"errors"
	"testing"

	"rachis/internal/model"
	"rachis/internal/tensor"
)

func TestCaptureAndRestoreWeights(t *testing.T) {
	a, err := New(tinyConfig())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	cfg := tinyConfig()
	cfg.Seed = 99
	b, err := New(cfg)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	records := CaptureWeights(a.Parameters())
	if len(records) != len(a.Parameters()) {
		t.Fatalf("record count mismatch: got=%d want=%d", len(records), len(a.Parameters()))
	}
	if err := RestoreWeights(b.Parameters(), records); err != nil {
		t.Fatalf("restore: %v", err)
	}

	pa, pb := a.Parameters(), b.Parameters()
	for i := range pa {
		if tensor.MaxAbsDiff(pa[i], pb[i]) != 0 {
			t.Fatalf("parameter %d differs after restore", i)
		}
	}
}

func TestCaptureWeightsCopies(t *testing.T) {
	p := tensor.FromValues([]float64{1, 2}, 2)
	records := CaptureWeights([]*tensor.Tensor{p})
	records[0].Values[0] = 42
	if p.At(0) != 1 {
		t.Fatal("capture must not alias parameter storage")
	}
}

func TestRestoreWeightsRejectsMismatch(t *testing.T) {
	params := []*tensor.Tensor{tensor.New(2, 2)}

	err := RestoreWeights(params, nil)
	if !errors.Is(err, ErrConfigMismatch) {
		t.Fatalf("expected ErrConfigMismatch for count, got %v", err)
	}

	bad := []model.TensorRecord{{Shape: []int{4}, Values: []float64{1, 2, 3, 4}}}
	err = RestoreWeights(params, bad)
	if !errors.Is(err, ErrConfigMismatch) {
		t.Fatalf("expected ErrConfigMismatch for shape, got %v", err)
	}
	// Nothing may be written on a failed restore.
	if params[0].At(0, 0) != 0 {
		t.Fatal("failed restore wrote into parameters")
	}
}
