package backbone

import (
	"fmt"

	"rachis/internal/model"
	"rachis/internal/tensor"
)

// CaptureWeights copies every parameter into serializable tensor records,
// in parameter order.
func CaptureWeights(params []*tensor.Tensor) []model.TensorRecord {
	records := make([]model.TensorRecord, len(params))
	for i, p := range params {
		records[i] = model.TensorRecord{
			Shape:  p.Shape(),
			Values: append([]float64(nil), p.Values()...),
		}
	}
	return records
}

// RestoreWeights writes records back into params positionally. The record
// count and every shape must match; nothing is written on mismatch.
func RestoreWeights(params []*tensor.Tensor, records []model.TensorRecord) error {
	if len(params) != len(records) {
		return fmt.Errorf("%w: %d stored tensors for %d parameters", ErrConfigMismatch, len(records), len(params))
	}
	for i, record := range records {
		if !shapeEqual(params[i].Shape(), record.Shape) {
			return fmt.Errorf("%w: tensor %d has shape %v, stored %v",
				ErrConfigMismatch, i, params[i].Shape(), record.Shape)
		}
		if len(record.Values) != params[i].Size() {
			return fmt.Errorf("%w: tensor %d has %d values, stored %d",
				ErrConfigMismatch, i, params[i].Size(), len(record.Values))
		}
	}
	for i, record := range records {
		copy(params[i].Values(), record.Values)
	}
	return nil
}

func shapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
