// Package rachis is the public API for compiling detector backbones,
// running forward passes, and persisting build records and weight
// snapshots.
package rachis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"rachis/internal/backbone"
	"rachis/internal/catalog"
	"rachis/internal/config"
	"rachis/internal/ctxlog"
	"rachis/internal/model"
	"rachis/internal/storage"
	"rachis/internal/tensor"
)

const defaultDBPath = "rachis.db"

type Options struct {
	StoreKind string
	DBPath    string
}

// Client owns a store plus the backbones built during its lifetime. Built
// models are held in memory keyed by build ID; only their metadata and
// weight snapshots are persisted.
type Client struct {
	store storage.Store

	mu     sync.RWMutex
	models map[string]*backbone.Model
}

type BuildSummary struct {
	BuildID      string
	Architecture string
	Stages       []model.StageSummary
	OutChannels  int
	ParamCount   int
}

type ForwardRequest struct {
	BuildID  string
	Batch    int
	Channels int
	Height   int
	Width    int
}

type ForwardSummary struct {
	FeatureShapes [][]int
	OutChannels   int
}

type SnapshotSummary struct {
	SnapshotID  string
	TensorCount int
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:  store,
		models: make(map[string]*backbone.Model),
	}, nil
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// Archs lists every known architecture name in sorted order.
func (c *Client) Archs() []string {
	return catalog.Archs()
}

// Describe compiles the configuration and reports the resulting geometry
// without persisting anything.
func (c *Client) Describe(cfg model.Config) (BuildSummary, error) {
	if err := config.Validate(cfg); err != nil {
		return BuildSummary{}, err
	}
	m, err := backbone.Build(cfg)
	if err != nil {
		return BuildSummary{}, err
	}
	return BuildSummary{
		Architecture: m.Body.Arch(),
		Stages:       m.Body.Summaries(),
		OutChannels:  m.OutChannels(),
		ParamCount:   len(m.Parameters()),
	}, nil
}

// Build compiles the configuration, records the build in the store, and
// keeps the model in memory for forward passes and snapshots.
func (c *Client) Build(ctx context.Context, cfg model.Config) (BuildSummary, error) {
	if err := config.Validate(cfg); err != nil {
		return BuildSummary{}, err
	}
	m, err := backbone.Build(cfg)
	if err != nil {
		return BuildSummary{}, err
	}

	summary := BuildSummary{
		BuildID:      uuid.NewString(),
		Architecture: m.Body.Arch(),
		Stages:       m.Body.Summaries(),
		OutChannels:  m.OutChannels(),
		ParamCount:   len(m.Parameters()),
	}
	record := model.BuildRecord{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: storage.CurrentSchemaVersion,
			CodecVersion:  storage.CurrentCodecVersion,
		},
		ID:           summary.BuildID,
		Architecture: summary.Architecture,
		Stem:         cfg.StemFunc,
		Block:        cfg.TransFunc,
		Stages:       summary.Stages,
		OutChannels:  summary.OutChannels,
		ParamCount:   summary.ParamCount,
		ResReg:       m.ResReg(),
		CreatedAtUTC: time.Now().UTC().Format(time.RFC3339),
	}
	if err := c.store.SaveBuildRecord(ctx, record); err != nil {
		return BuildSummary{}, err
	}

	c.mu.Lock()
	c.models[summary.BuildID] = m
	c.mu.Unlock()

	ctxlog.FromContext(ctx).Info("backbone built",
		"build_id", summary.BuildID,
		"architecture", summary.Architecture,
		"out_channels", summary.OutChannels,
		"param_tensors", summary.ParamCount)
	return summary, nil
}

// Builds lists the persisted build records.
func (c *Client) Builds(ctx context.Context) ([]model.BuildRecord, error) {
	return c.store.ListBuildRecords(ctx)
}

// Forward runs a zero-filled input of the requested geometry through a
// built backbone and reports the exported feature shapes.
func (c *Client) Forward(ctx context.Context, req ForwardRequest) (ForwardSummary, error) {
	if req.Batch <= 0 {
		req.Batch = 1
	}
	if req.Channels <= 0 {
		req.Channels = 3
	}
	if req.Height <= 0 || req.Width <= 0 {
		return ForwardSummary{}, fmt.Errorf("forward: height and width must be positive, got %dx%d", req.Height, req.Width)
	}
	m, err := c.model(req.BuildID)
	if err != nil {
		return ForwardSummary{}, err
	}

	features := m.Forward(tensor.New(req.Batch, req.Channels, req.Height, req.Width))
	summary := ForwardSummary{OutChannels: m.OutChannels()}
	for _, f := range features {
		summary.FeatureShapes = append(summary.FeatureShapes, f.Shape())
	}
	ctxlog.FromContext(ctx).Debug("forward pass complete",
		"build_id", req.BuildID,
		"features", len(summary.FeatureShapes))
	return summary, nil
}

// SaveSnapshot captures a built backbone's parameters into the store.
func (c *Client) SaveSnapshot(ctx context.Context, buildID string) (SnapshotSummary, error) {
	m, err := c.model(buildID)
	if err != nil {
		return SnapshotSummary{}, err
	}

	snapshot := model.WeightSnapshot{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: storage.CurrentSchemaVersion,
			CodecVersion:  storage.CurrentCodecVersion,
		},
		ID:           uuid.NewString(),
		Architecture: m.Body.Arch(),
		Tensors:      backbone.CaptureWeights(m.Parameters()),
		CreatedAtUTC: time.Now().UTC().Format(time.RFC3339),
	}
	if err := c.store.SaveSnapshot(ctx, snapshot); err != nil {
		return SnapshotSummary{}, err
	}
	ctxlog.FromContext(ctx).Info("snapshot saved",
		"snapshot_id", snapshot.ID,
		"build_id", buildID,
		"tensors", len(snapshot.Tensors))
	return SnapshotSummary{SnapshotID: snapshot.ID, TensorCount: len(snapshot.Tensors)}, nil
}

// RestoreSnapshot loads a stored snapshot into a built backbone. The
// snapshot must match the backbone's parameter tensors positionally.
func (c *Client) RestoreSnapshot(ctx context.Context, buildID, snapshotID string) error {
	m, err := c.model(buildID)
	if err != nil {
		return err
	}
	snapshot, ok, err := c.store.GetSnapshot(ctx, snapshotID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("snapshot %s not found", snapshotID)
	}
	if snapshot.Architecture != m.Body.Arch() {
		return fmt.Errorf("snapshot %s is for %s, backbone is %s", snapshotID, snapshot.Architecture, m.Body.Arch())
	}
	if err := backbone.RestoreWeights(m.Parameters(), snapshot.Tensors); err != nil {
		return fmt.Errorf("restore snapshot %s: %w", snapshotID, err)
	}
	ctxlog.FromContext(ctx).Info("snapshot restored",
		"snapshot_id", snapshotID,
		"build_id", buildID)
	return nil
}

// Snapshots lists stored snapshots without their payloads.
func (c *Client) Snapshots(ctx context.Context) ([]model.SnapshotInfo, error) {
	return c.store.ListSnapshots(ctx)
}

// DeleteSnapshot removes a stored snapshot.
func (c *Client) DeleteSnapshot(ctx context.Context, id string) error {
	return c.store.DeleteSnapshot(ctx, id)
}

func (c *Client) model(buildID string) (*backbone.Model, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.models[buildID]
	if !ok {
		return nil, fmt.Errorf("build %s not found in this session", buildID)
	}
	return m, nil
}
