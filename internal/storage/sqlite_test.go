//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "rachis.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	record := testBuildRecord("b1")
	if err := store.SaveBuildRecord(ctx, record); err != nil {
		t.Fatalf("save build record: %v", err)
	}
	loadedRecord, ok, err := store.GetBuildRecord(ctx, record.ID)
	if err != nil {
		t.Fatalf("get build record: %v", err)
	}
	if !ok {
		t.Fatalf("expected build record %s", record.ID)
	}
	if loadedRecord.Architecture != record.Architecture || len(loadedRecord.Stages) != len(record.Stages) {
		t.Fatalf("unexpected build record loaded: %+v", loadedRecord)
	}

	records, err := store.ListBuildRecords(ctx)
	if err != nil {
		t.Fatalf("list build records: %v", err)
	}
	if len(records) != 1 || records[0].ID != record.ID {
		t.Fatalf("unexpected build record listing: %+v", records)
	}

	snapshot := testSnapshot("s1")
	if err := store.SaveSnapshot(ctx, snapshot); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	loadedSnapshot, ok, err := store.GetSnapshot(ctx, snapshot.ID)
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	if !ok {
		t.Fatalf("expected snapshot %s", snapshot.ID)
	}
	if len(loadedSnapshot.Tensors) != 1 || loadedSnapshot.Tensors[0].Values[0] != 1 {
		t.Fatalf("unexpected snapshot loaded: %+v", loadedSnapshot)
	}

	infos, err := store.ListSnapshots(ctx)
	if err != nil {
		t.Fatalf("list snapshots: %v", err)
	}
	if len(infos) != 1 || infos[0].TensorCount != 1 {
		t.Fatalf("unexpected snapshot listing: %+v", infos)
	}

	if err := store.DeleteSnapshot(ctx, snapshot.ID); err != nil {
		t.Fatalf("delete snapshot: %v", err)
	}
	_, ok, err = store.GetSnapshot(ctx, snapshot.ID)
	if err != nil {
		t.Fatalf("get deleted snapshot: %v", err)
	}
	if ok {
		t.Fatal("deleted snapshot still present")
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "rachis.db")

	first := NewSQLiteStore(dbPath)
	if err := first.Init(ctx); err != nil {
		t.Fatalf("first init: %v", err)
	}
	record := testBuildRecord("persisted-build")
	if err := first.SaveBuildRecord(ctx, record); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}

	second := NewSQLiteStore(dbPath)
	if err := second.Init(ctx); err != nil {
		t.Fatalf("second init: %v", err)
	}
	t.Cleanup(func() {
		_ = second.Close()
	})

	loaded, ok, err := second.GetBuildRecord(ctx, record.ID)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if !ok || loaded.ID != record.ID {
		t.Fatalf("expected persisted build record, got ok=%t value=%+v", ok, loaded)
	}
}
