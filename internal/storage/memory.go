package storage

import (
	"context"
	"sort"
	"sync"

	"rachis/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	builds      map[string]model.BuildRecord
	snapshots   map[string]model.WeightSnapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.builds = make(map[string]model.BuildRecord)
	s.snapshots = make(map[string]model.WeightSnapshot)
	return nil
}

func (s *MemoryStore) SaveBuildRecord(_ context.Context, record model.BuildRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record.Stages = append([]model.StageSummary(nil), record.Stages...)
	s.builds[record.ID] = record
	return nil
}

func (s *MemoryStore) GetBuildRecord(_ context.Context, id string) (model.BuildRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.builds[id]
	if !ok {
		return model.BuildRecord{}, false, nil
	}
	record.Stages = append([]model.StageSummary(nil), record.Stages...)
	return record, true, nil
}

func (s *MemoryStore) ListBuildRecords(_ context.Context) ([]model.BuildRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]model.BuildRecord, 0, len(s.builds))
	for _, record := range s.builds {
		record.Stages = append([]model.StageSummary(nil), record.Stages...)
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, snapshot model.WeightSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[snapshot.ID] = copySnapshot(snapshot)
	return nil
}

func (s *MemoryStore) GetSnapshot(_ context.Context, id string) (model.WeightSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.snapshots[id]
	if !ok {
		return model.WeightSnapshot{}, false, nil
	}
	return copySnapshot(snapshot), true, nil
}

func (s *MemoryStore) ListSnapshots(_ context.Context) ([]model.SnapshotInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]model.SnapshotInfo, 0, len(s.snapshots))
	for _, snapshot := range s.snapshots {
		infos = append(infos, model.SnapshotInfo{
			ID:           snapshot.ID,
			Architecture: snapshot.Architecture,
			TensorCount:  len(snapshot.Tensors),
			CreatedAtUTC: snapshot.CreatedAtUTC,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos, nil
}

func (s *MemoryStore) DeleteSnapshot(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.snapshots, id)
	return nil
}

func copySnapshot(snapshot model.WeightSnapshot) model.WeightSnapshot {
	tensors := make([]model.TensorRecord, len(snapshot.Tensors))
	for i, t := range snapshot.Tensors {
		tensors[i] = model.TensorRecord{
			Shape:  append([]int(nil), t.Shape...),
			Values: append([]float64(nil), t.Values...),
		}
	}
	snapshot.Tensors = tensors
	return snapshot
}
