package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"rachis/internal/model"
)

func TestParseEmptyReturnsDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if diff := cmp.Diff(model.DefaultConfig(), cfg); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestParseOverlaysDefaults(t *testing.T) {
	payload := []byte(`
conv_body: R-50-FPN
trans_func: BottleneckWithGN
stem_func: StemWithGN
num_groups: 32
width_per_group: 8
freeze_at: 0
use_fpn: true
seed: 7
`)
	cfg, err := Parse(payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.ConvBody != "R-50-FPN" || cfg.NumGroups != 32 || cfg.Seed != 7 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	// Untouched keys keep default values.
	if cfg.StemOutChannels != 64 || cfg.Res2OutChannels != 256 || !cfg.StrideIn1x1 {
		t.Fatalf("defaults lost under overlay: %+v", cfg)
	}
	if cfg.FreezeAt != 0 {
		t.Fatalf("explicit zero must override the default: %d", cfg.FreezeAt)
	}
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	if _, err := Parse([]byte("conv_body: [unclosed")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestValidateRejectsBadAxes(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.Config)
	}{
		{name: "empty conv_body", mutate: func(c *model.Config) { c.ConvBody = "" }},
		{name: "empty stem_func", mutate: func(c *model.Config) { c.StemFunc = "" }},
		{name: "zero num_groups", mutate: func(c *model.Config) { c.NumGroups = 0 }},
		{name: "zero width_per_group", mutate: func(c *model.Config) { c.WidthPerGroup = 0 }},
		{name: "zero stem channels", mutate: func(c *model.Config) { c.StemOutChannels = 0 }},
		{name: "zero res2 channels", mutate: func(c *model.Config) { c.Res2OutChannels = 0 }},
		{name: "zero deformable groups", mutate: func(c *model.Config) { c.DeformableGroups = 0 }},
		{name: "bad branch stage index", mutate: func(c *model.Config) {
			c.BranchSpecs = map[int][]model.BranchSpec{0: {{FirstStride: 1, Dilation: 1}}}
		}},
		{name: "bad branch stride", mutate: func(c *model.Config) {
			c.BranchSpecs = map[int][]model.BranchSpec{2: {{FirstStride: 0, Dilation: 1}}}
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := model.DefaultConfig()
			tc.mutate(&cfg)
			if err := Validate(cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backbone.yaml")
	payload := []byte("conv_body: R-101-C4\nfreeze_at: 3\n")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ConvBody != "R-101-C4" || cfg.FreezeAt != 3 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected read error")
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(model.DefaultConfig(), cfg); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}
}
