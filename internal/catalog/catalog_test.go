package catalog

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"rachis/internal/model"
)

func TestLookupKnownEntry(t *testing.T) {
	specs, err := Lookup("R-50-C4")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	want := []model.StageSpec{
		{Index: 1, BlockCount: 3},
		{Index: 2, BlockCount: 4},
		{Index: 3, BlockCount: 6, ReturnFeatures: true},
	}
	if diff := cmp.Diff(want, specs); diff != "" {
		t.Fatalf("unexpected stage specs (-want +got):\n%s", diff)
	}
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("R-999")
	if !errors.Is(err, ErrUnknownArchitecture) {
		t.Fatalf("expected ErrUnknownArchitecture, got %v", err)
	}
}

func TestAllEntriesHaveContiguousIndices(t *testing.T) {
	for _, name := range Archs() {
		t.Run(name, func(t *testing.T) {
			specs, err := Lookup(name)
			if err != nil {
				t.Fatalf("lookup: %v", err)
			}
			if len(specs) == 0 {
				t.Fatal("empty stage sequence")
			}
			for i, spec := range specs {
				if spec.Index != i+1 {
					t.Fatalf("stage %d has index %d, want %d", i, spec.Index, i+1)
				}
				if spec.BlockCount < 1 {
					t.Fatalf("stage %d has block count %d", i, spec.BlockCount)
				}
			}
		})
	}
}

func TestFPNVariantsExportEveryStage(t *testing.T) {
	for _, name := range []string{"R-50-FPN", "R-101-FPN", "R-152-FPN"} {
		specs, err := Lookup(name)
		if err != nil {
			t.Fatalf("lookup %s: %v", name, err)
		}
		for _, spec := range specs {
			if !spec.ReturnFeatures {
				t.Fatalf("%s stage %d not exported", name, spec.Index)
			}
		}
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	a, _ := Lookup("R-50-C4")
	a[0].BlockCount = 99
	b, _ := Lookup("R-50-C4")
	if b[0].BlockCount == 99 {
		t.Fatal("Lookup leaked catalog storage to the caller")
	}
}

func TestArchsSortedAndComplete(t *testing.T) {
	names := Archs()
	if len(names) != 13 {
		t.Fatalf("unexpected catalog size: got=%d want=13", len(names))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("catalog listing not sorted at %d: %s >= %s", i, names[i-1], names[i])
		}
	}
}
