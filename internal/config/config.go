// Package config loads backbone configurations from YAML, layered over the
// stock defaults.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"rachis/internal/model"
)

// Parse decodes a YAML payload over the default configuration: keys absent
// from the payload keep their default values.
func Parse(data []byte) (model.Config, error) {
	cfg := model.DefaultConfig()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return model.Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return model.Config{}, err
	}
	return cfg, nil
}

// Load reads a YAML configuration file. An empty path returns the defaults.
func Load(path string) (model.Config, error) {
	if path == "" {
		return model.DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return model.Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the axes that must hold for any architecture; geometry
// checks that depend on the stage sequence happen at compile time.
func Validate(cfg model.Config) error {
	if cfg.ConvBody == "" {
		return fmt.Errorf("config: conv_body is required")
	}
	if cfg.StemFunc == "" || cfg.TransFunc == "" {
		return fmt.Errorf("config: stem_func and trans_func are required")
	}
	if cfg.NumGroups < 1 {
		return fmt.Errorf("config: num_groups must be >= 1, got %d", cfg.NumGroups)
	}
	if cfg.WidthPerGroup < 1 {
		return fmt.Errorf("config: width_per_group must be >= 1, got %d", cfg.WidthPerGroup)
	}
	if cfg.StemOutChannels < 1 {
		return fmt.Errorf("config: stem_out_channels must be >= 1, got %d", cfg.StemOutChannels)
	}
	if cfg.Res2OutChannels < 1 {
		return fmt.Errorf("config: res2_out_channels must be >= 1, got %d", cfg.Res2OutChannels)
	}
	if cfg.DeformableGroups < 1 {
		return fmt.Errorf("config: deformable_groups must be >= 1, got %d", cfg.DeformableGroups)
	}
	for stageIndex, branches := range cfg.BranchSpecs {
		if stageIndex < 1 {
			return fmt.Errorf("config: branch_specs stage index must be >= 1, got %d", stageIndex)
		}
		for i, branch := range branches {
			if branch.FirstStride < 1 || branch.Dilation < 1 {
				return fmt.Errorf("config: branch_specs[%d][%d] needs positive stride and dilation", stageIndex, i)
			}
		}
	}
	return nil
}
