package model

// Config carries every configuration axis the backbone compiler consumes.
// It is treated as an immutable value: builders read it during assembly
// and never retain it, so later mutation by the caller cannot change a
// built backbone.
type Config struct {
	// ConvBody names the architecture in the catalog, e.g. "R-50-C4".
	ConvBody string `yaml:"conv_body"`
	// StemFunc and TransFunc name the registered stem and residual-block
	// variants.
	StemFunc  string `yaml:"stem_func"`
	TransFunc string `yaml:"trans_func"`

	NumGroups       int `yaml:"num_groups"`
	WidthPerGroup   int `yaml:"width_per_group"`
	StemOutChannels int `yaml:"stem_out_channels"`
	Res2OutChannels int `yaml:"res2_out_channels"`

	// Dilations holds one dilation per stage; its length must equal the
	// architecture's stage count.
	Dilations []int `yaml:"dilations"`
	// StageWithDCN flags deformable convolution per stage index.
	StageWithDCN     []bool `yaml:"stage_with_dcn"`
	WithModulatedDCN bool   `yaml:"with_modulated_dcn"`
	DeformableGroups int    `yaml:"deformable_groups"`

	// StrideIn1x1 places each block's stride in the 1x1 reduce conv (the
	// MSRA convention) instead of the spatial conv (the Caffe2 one).
	StrideIn1x1 bool `yaml:"stride_in_1x1"`

	// AnchorStride selects the stage stride schedule when no FPN or
	// resolution adapter is in use. Valid values: 4, 8, 16, 32.
	AnchorStride int `yaml:"anchor_stride"`

	// FreezeAt disables gradient updates for the stem (stage 0) and every
	// stage with index < FreezeAt. Values <= 0 freeze nothing.
	FreezeAt int `yaml:"freeze_at"`

	// UseFPN switches the stride schedule to the pyramid convention:
	// stride 1 for stage 1, stride 2 afterwards, dilation forced to 1.
	UseFPN bool `yaml:"use_fpn"`

	// ResReg selects the optional resolution adapter applied
	// to every exported feature map: "" or "off", "up2", "up4", "down2",
	// "keep1".
	ResReg string `yaml:"resreg"`

	// MiddleKernelSizes optionally overrides the spatial kernel size per
	// block: one list per stage, each of length equal to that stage's
	// block count. Empty means 3x3 everywhere.
	MiddleKernelSizes [][]int `yaml:"middle_kernel_sizes"`

	// DontLoad lists stage names (e.g. "layer3") that use an ordinary
	// batch norm instead of the frozen variant, for loading checkpoints
	// that lack frozen statistics. Only honored with the frozen-BN block.
	DontLoad []string `yaml:"dont_load"`

	// BranchSpecs defines the multi-branch form of a stage: for a stage
	// index, each entry is one branch's (first_stride, dilation) pair.
	BranchSpecs map[int][]BranchSpec `yaml:"branch_specs"`

	// Seed fixes weight initialization; 0 draws a time-based seed.
	Seed int64 `yaml:"seed"`
}

// BranchSpec is one branch of a multi-branch stage.
type BranchSpec struct {
	FirstStride int `yaml:"first_stride"`
	Dilation    int `yaml:"dilation"`
}

// DCNConfig resolves the deformable-convolution axes for one stage.
type DCNConfig struct {
	Enabled          bool
	Modulated        bool
	DeformableGroups int
}

// DefaultConfig returns the detector's stock configuration: an R-50-C4
// body with frozen batch norm, anchor stride 16, and the first stage plus
// stem frozen.
func DefaultConfig() Config {
	return Config{
		ConvBody:         "R-50-C4",
		StemFunc:         "StemWithFixedBatchNorm",
		TransFunc:        "BottleneckWithFixedBatchNorm",
		NumGroups:        1,
		WidthPerGroup:    64,
		StemOutChannels:  64,
		Res2OutChannels:  256,
		StrideIn1x1:      true,
		AnchorStride:     16,
		FreezeAt:         2,
		DeformableGroups: 1,
	}
}
