package storage

import (
	"context"

	"rachis/internal/model"
)

// Store defines persistence operations for build records and weight
// snapshots.
type Store interface {
	Init(ctx context.Context) error
	SaveBuildRecord(ctx context.Context, record model.BuildRecord) error
	GetBuildRecord(ctx context.Context, id string) (model.BuildRecord, bool, error)
	ListBuildRecords(ctx context.Context) ([]model.BuildRecord, error)
	SaveSnapshot(ctx context.Context, snapshot model.WeightSnapshot) error
	GetSnapshot(ctx context.Context, id string) (model.WeightSnapshot, bool, error)
	ListSnapshots(ctx context.Context) ([]model.SnapshotInfo, error)
	DeleteSnapshot(ctx context.Context, id string) error
}
