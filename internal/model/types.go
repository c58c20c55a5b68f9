package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// StageSpec describes one residual stage of an architecture: its 1-based
// index, the number of residual blocks it chains, and whether its output
// is exported as a feature map. Within one architecture the indices are
// contiguous starting at 1; the stem is conceptually stage 0 and is never
// exported.
type StageSpec struct {
	Index          int  `json:"index"`
	BlockCount     int  `json:"block_count"`
	ReturnFeatures bool `json:"return_features"`
}

// StageSummary records the resolved geometry of one built stage.
type StageSummary struct {
	Name        string `json:"name"`
	Index       int    `json:"index"`
	Blocks      int    `json:"blocks"`
	FirstStride int    `json:"first_stride"`
	Dilation    int    `json:"dilation"`
	OutChannels int    `json:"out_channels"`
	Exported    bool   `json:"exported"`
	Frozen      bool   `json:"frozen"`
}

// BuildRecord is the persisted summary of one completed backbone build.
type BuildRecord struct {
	VersionedRecord
	ID           string         `json:"id"`
	Architecture string         `json:"architecture"`
	Stem         string         `json:"stem"`
	Block        string         `json:"block"`
	Stages       []StageSummary `json:"stages"`
	OutChannels  int            `json:"out_channels"`
	ParamCount   int            `json:"param_count"`
	ResReg       string         `json:"resreg,omitempty"`
	CreatedAtUTC string         `json:"created_at_utc"`
}

// TensorRecord is one parameter tensor of a snapshot: shape plus flat
// row-major values.
type TensorRecord struct {
	Shape  []int     `json:"shape"`
	Values []float64 `json:"values"`
}

// WeightSnapshot is the persisted parameter state of a built backbone.
// Tensors are stored in the backbone's deterministic parameter order and
// restored positionally, with shapes verified on restore.
type WeightSnapshot struct {
	VersionedRecord
	ID           string         `json:"id"`
	Architecture string         `json:"architecture"`
	Tensors      []TensorRecord `json:"tensors"`
	CreatedAtUTC string         `json:"created_at_utc"`
}

// SnapshotInfo is the listing view of a stored snapshot, without payload.
type SnapshotInfo struct {
	ID           string `json:"id"`
	Architecture string `json:"architecture"`
	TensorCount  int    `json:"tensor_count"`
	CreatedAtUTC string `json:"created_at_utc"`
}
