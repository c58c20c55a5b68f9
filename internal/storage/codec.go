package storage

import (
	"encoding/json"
	"errors"

	"rachis/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeBuildRecord(r model.BuildRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeBuildRecord(data []byte) (model.BuildRecord, error) {
	var record model.BuildRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.BuildRecord{}, err
	}
	if err := checkVersion(record.VersionedRecord); err != nil {
		return model.BuildRecord{}, err
	}
	return record, nil
}

func EncodeSnapshot(s model.WeightSnapshot) ([]byte, error) {
	return json.Marshal(s)
}

func DecodeSnapshot(data []byte) (model.WeightSnapshot, error) {
	var snapshot model.WeightSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return model.WeightSnapshot{}, err
	}
	if err := checkVersion(snapshot.VersionedRecord); err != nil {
		return model.WeightSnapshot{}, err
	}
	return snapshot, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
