// Package catalog holds the static architecture catalog: the mapping from
// architecture names to ordered stage descriptors. Entries are defined
// once at load time and never mutated.
package catalog

import (
	"errors"
	"fmt"
	"sort"

	"rachis/internal/model"
)

// ErrUnknownArchitecture is returned when a name has no catalog entry.
var ErrUnknownArchitecture = errors.New("unknown architecture")

func stages(rows ...[3]int) []model.StageSpec {
	specs := make([]model.StageSpec, len(rows))
	for i, r := range rows {
		specs[i] = model.StageSpec{
			Index:          r[0],
			BlockCount:     r[1],
			ReturnFeatures: r[2] != 0,
		}
	}
	return specs
}

var (
	resNet50To5 = stages([3]int{1, 3, 0}, [3]int{2, 4, 0}, [3]int{3, 6, 0}, [3]int{4, 3, 1})
	resNet50To4 = stages([3]int{1, 3, 0}, [3]int{2, 4, 0}, [3]int{3, 6, 1})

	resNet101To5 = stages([3]int{1, 3, 0}, [3]int{2, 4, 0}, [3]int{3, 23, 0}, [3]int{4, 3, 1})
	resNet101To4 = stages([3]int{1, 3, 0}, [3]int{2, 4, 0}, [3]int{3, 23, 1})

	resNet50FPNTo5  = stages([3]int{1, 3, 1}, [3]int{2, 4, 1}, [3]int{3, 6, 1}, [3]int{4, 3, 1})
	resNet101FPNTo5 = stages([3]int{1, 3, 1}, [3]int{2, 4, 1}, [3]int{3, 23, 1}, [3]int{4, 3, 1})
	resNet152FPNTo5 = stages([3]int{1, 3, 1}, [3]int{2, 8, 1}, [3]int{3, 36, 1}, [3]int{4, 3, 1})

	// Truncated third-stage variants.
	resNet50_3_4_2  = stages([3]int{1, 3, 0}, [3]int{2, 4, 0}, [3]int{3, 2, 1})
	resNet50_3_4_8  = stages([3]int{1, 3, 0}, [3]int{2, 4, 0}, [3]int{3, 8, 1})
	resNet50_3_4_14 = stages([3]int{1, 3, 0}, [3]int{2, 4, 0}, [3]int{3, 14, 1})
	resNet50_3_4_20 = stages([3]int{1, 3, 0}, [3]int{2, 4, 0}, [3]int{3, 20, 1})
)

var stageSpecs = map[string][]model.StageSpec{
	"R-50-C4":  resNet50To4,
	"R-50-C5":  resNet50To5,
	"R-101-C4": resNet101To4,
	"R-101-C5": resNet101To5,

	"R-50-FPN":            resNet50FPNTo5,
	"R-50-FPN-RETINANET":  resNet50FPNTo5,
	"R-101-FPN":           resNet101FPNTo5,
	"R-101-FPN-RETINANET": resNet101FPNTo5,
	"R-152-FPN":           resNet152FPNTo5,

	"R-50-3_4_2":  resNet50_3_4_2,
	"R-50-3_4_8":  resNet50_3_4_8,
	"R-50-3_4_14": resNet50_3_4_14,
	"R-50-3_4_20": resNet50_3_4_20,
}

// Lookup returns the ordered stage descriptors for an architecture name.
// The returned slice is a copy; callers may not reach the catalog's own
// storage through it.
func Lookup(name string) ([]model.StageSpec, error) {
	specs, ok := stageSpecs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownArchitecture, name)
	}
	out := make([]model.StageSpec, len(specs))
	copy(out, specs)
	return out, nil
}

// Archs lists every catalog entry in sorted order.
func Archs() []string {
	names := make([]string, 0, len(stageSpecs))
	for name := range stageSpecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
