// Package backbone assembles the convolutional feature-extraction body of
// a two-stage detector: stem, residual stages, optional multi-branch
// stages and resolution adapters, compiled from an architecture name and
// a configuration value.
package backbone

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"rachis/internal/layers"
)

// StemConstructor builds a stem variant for the given output channel
// count.
type StemConstructor func(rng *rand.Rand, outChannels int) *Stem

// BlockConstructor builds a residual-block variant from resolved per-block
// geometry.
type BlockConstructor func(rng *rand.Rand, p BlockParams) *Bottleneck

var stemRegistry = struct {
	mu sync.RWMutex
	m  map[string]StemConstructor
}{
	m: make(map[string]StemConstructor),
}

var blockRegistry = struct {
	mu sync.RWMutex
	m  map[string]BlockConstructor
}{
	m: make(map[string]BlockConstructor),
}

func init() {
	MustRegisterStem("StemWithFixedBatchNorm", func(rng *rand.Rand, out int) *Stem {
		return NewStem(rng, out, func(c int) layers.Layer { return layers.NewFrozenBatchNorm2d(c) })
	})
	MustRegisterStem("StemWithGN", func(rng *rand.Rand, out int) *Stem {
		return NewStem(rng, out, layers.GroupNormDefault)
	})
	MustRegisterBlock("BottleneckWithFixedBatchNorm", func(rng *rand.Rand, p BlockParams) *Bottleneck {
		return NewBottleneck(rng, p, func(c int) layers.Layer { return layers.NewFrozenBatchNorm2d(c) })
	})
	MustRegisterBlock("BottleneckWithGN", func(rng *rand.Rand, p BlockParams) *Bottleneck {
		return NewBottleneck(rng, p, layers.GroupNormDefault)
	})
}

// RegisterStem inserts a stem variant; registering an existing name is an
// error.
func RegisterStem(name string, ctor StemConstructor) error {
	if name == "" {
		return fmt.Errorf("stem name is required")
	}
	if ctor == nil {
		return fmt.Errorf("stem constructor is required")
	}
	stemRegistry.mu.Lock()
	defer stemRegistry.mu.Unlock()
	if _, exists := stemRegistry.m[name]; exists {
		return fmt.Errorf("%w: stem %s", ErrComponentExists, name)
	}
	stemRegistry.m[name] = ctor
	return nil
}

func MustRegisterStem(name string, ctor StemConstructor) {
	if err := RegisterStem(name, ctor); err != nil {
		panic(err)
	}
}

// ResolveStem returns the constructor registered under name.
func ResolveStem(name string) (StemConstructor, error) {
	stemRegistry.mu.RLock()
	ctor, ok := stemRegistry.m[name]
	stemRegistry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stem %s", ErrUnknownComponent, name)
	}
	return ctor, nil
}

// RegisterBlock inserts a residual-block variant; registering an existing
// name is an error.
func RegisterBlock(name string, ctor BlockConstructor) error {
	if name == "" {
		return fmt.Errorf("block name is required")
	}
	if ctor == nil {
		return fmt.Errorf("block constructor is required")
	}
	blockRegistry.mu.Lock()
	defer blockRegistry.mu.Unlock()
	if _, exists := blockRegistry.m[name]; exists {
		return fmt.Errorf("%w: block %s", ErrComponentExists, name)
	}
	blockRegistry.m[name] = ctor
	return nil
}

func MustRegisterBlock(name string, ctor BlockConstructor) {
	if err := RegisterBlock(name, ctor); err != nil {
		panic(err)
	}
}

// ResolveBlock returns the constructor registered under name.
func ResolveBlock(name string) (BlockConstructor, error) {
	blockRegistry.mu.RLock()
	ctor, ok := blockRegistry.m[name]
	blockRegistry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: block %s", ErrUnknownComponent, name)
	}
	return ctor, nil
}

// Stems lists the registered stem variants in sorted order.
func Stems() []string {
	stemRegistry.mu.RLock()
	defer stemRegistry.mu.RUnlock()
	names := make([]string, 0, len(stemRegistry.m))
	for name := range stemRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Blocks lists the registered block variants in sorted order.
func Blocks() []string {
	blockRegistry.mu.RLock()
	defer blockRegistry.mu.RUnlock()
	names := make([]string, 0, len(blockRegistry.m))
	for name := range blockRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
