package backbone

import (
	"fmt"
	"strings"
	"sync"

	"rachis/internal/catalog"
	"rachis/internal/layers"
	"rachis/internal/model"
	"rachis/internal/tensor"
)

// Model is the assembled pipeline handed to the rest of the detector: the
// backbone body plus the optional resolution adapter applied
// to every exported feature map.
type Model struct {
	Body *Backbone

	adapter layers.Layer // nil when resreg is off
	resReg  string
}

// Forward returns the exported feature maps in stage order, adapter
// applied.
func (m *Model) Forward(x *tensor.Tensor) []*tensor.Tensor {
	features := m.Body.Forward(x)
	if m.adapter == nil {
		return features
	}
	out := make([]*tensor.Tensor, len(features))
	for i, f := range features {
		out[i] = m.adapter.Forward(f)
	}
	return out
}

// OutChannels is the channel count of the final exported feature map; the
// adapters rescale spatial resolution only.
func (m *Model) OutChannels() int { return m.Body.OutChannels() }

// ResReg names the active adapter mode, or "off".
func (m *Model) ResReg() string {
	if m.resReg == "" {
		return ResRegOff
	}
	return m.resReg
}

// Parameters returns the body's parameters; the adapters hold none.
func (m *Model) Parameters() []*tensor.Tensor { return m.Body.Parameters() }

// BuilderFunc assembles a complete Model for one architecture family.
type BuilderFunc func(cfg model.Config) (*Model, error)

var builderRegistry = struct {
	mu sync.RWMutex
	m  map[string]BuilderFunc
}{
	m: make(map[string]BuilderFunc),
}

func init() {
	for _, name := range catalog.Archs() {
		if strings.Contains(name, "FPN") {
			MustRegisterBuilder(name, buildPyramidBody)
		} else {
			MustRegisterBuilder(name, buildPlainBody)
		}
	}
}

// RegisterBuilder inserts a top-level builder; registering an existing
// name is an error.
func RegisterBuilder(name string, fn BuilderFunc) error {
	if name == "" {
		return fmt.Errorf("builder name is required")
	}
	if fn == nil {
		return fmt.Errorf("builder function is required")
	}
	builderRegistry.mu.Lock()
	defer builderRegistry.mu.Unlock()
	if _, exists := builderRegistry.m[name]; exists {
		return fmt.Errorf("%w: builder %s", ErrComponentExists, name)
	}
	builderRegistry.m[name] = fn
	return nil
}

func MustRegisterBuilder(name string, fn BuilderFunc) {
	if err := RegisterBuilder(name, fn); err != nil {
		panic(err)
	}
}

// Build compiles the configured architecture into a Model by dispatching
// through the builder registry.
func Build(cfg model.Config) (*Model, error) {
	builderRegistry.mu.RLock()
	fn, ok := builderRegistry.m[cfg.ConvBody]
	builderRegistry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: backbone %s", ErrUnknownComponent, cfg.ConvBody)
	}
	return fn(cfg)
}

// buildPlainBody assembles a C4/C5-style body with the optional
// resolution adapter.
func buildPlainBody(cfg model.Config) (*Model, error) {
	adapter, err := newResReg(cfg.ResReg)
	if err != nil {
		return nil, err
	}
	body, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return &Model{Body: body, adapter: adapter, resReg: cfg.ResReg}, nil
}

// buildPyramidBody assembles the body for pyramid-network variants. The
// pyramid itself is an external collaborator consuming the exported
// feature list; the body only adopts the pyramid stride convention.
func buildPyramidBody(cfg model.Config) (*Model, error) {
	cfg.UseFPN = true
	body, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return &Model{Body: body}, nil
}
