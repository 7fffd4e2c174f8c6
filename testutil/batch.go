package testutil

import (
	"github.com/kbukum/batchkit/pipeline"
)

// KindRecord is the batch variant all testutil batches report.
const KindRecord = "record"

// RecordBatch is a batch of float64 values. It carries exported
// transformation methods so capability lookup can distinguish
// "method exists but was never registered" from "no such method".
type RecordBatch struct {
	idx  pipeline.Index
	Vals []float64
}

// NewRecordBatch builds a batch over a copy of vals.
func NewRecordBatch(idx pipeline.Index, vals []float64) *RecordBatch {
	cp := make([]float64, len(vals))
	copy(cp, vals)
	return &RecordBatch{idx: append(pipeline.Index(nil), idx...), Vals: cp}
}

func (b *RecordBatch) Index() pipeline.Index { return b.idx }
func (b *RecordBatch) Kind() string          { return KindRecord }
func (b *RecordBatch) Data() any             { return b.Vals }

// Scale returns a new batch with every value multiplied by f.
func (b *RecordBatch) Scale(f float64) *RecordBatch {
	out := NewRecordBatch(b.idx, b.Vals)
	for i := range out.Vals {
		out.Vals[i] *= f
	}
	return out
}

// Offset returns a new batch with d added to every value.
func (b *RecordBatch) Offset(d float64) *RecordBatch {
	out := NewRecordBatch(b.idx, b.Vals)
	for i := range out.Vals {
		out.Vals[i] += d
	}
	return out
}
