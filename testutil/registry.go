package testutil

import (
	"context"
	"fmt"

	"github.com/kbukum/batchkit/errors"
	"github.com/kbukum/batchkit/pipeline"
)

// NewRegistry returns a registry holding the capabilities the pipeline
// test suites compose from, all registered for the record variant:
//
//	scale      multiply every value by args[0]
//	offset     add kwargs["delta"] to every value
//	combine    element-wise sum of joined batches prepended to args
//	dropAbove  skip the batch when any value exceeds kwargs["limit"]
//	fail       always return an internal error
func NewRegistry() *pipeline.Registry {
	r := pipeline.NewRegistry()
	r.Register(KindRecord, "scale", scale)
	r.Register(KindRecord, "offset", offset)
	r.Register(KindRecord, "combine", combine)
	r.Register(KindRecord, "dropAbove", dropAbove)
	r.Register(KindRecord, "fail", fail)
	return r
}

func record(b pipeline.Batch) (*RecordBatch, error) {
	rb, ok := b.(*RecordBatch)
	if !ok {
		return nil, errors.InvalidInput("batch", fmt.Sprintf("want *RecordBatch, got %T", b))
	}
	return rb, nil
}

func scale(ctx context.Context, b pipeline.Batch, args []any, kwargs map[string]any) (pipeline.Batch, error) {
	rb, err := record(b)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, errors.MissingField("factor")
	}
	f, ok := args[0].(float64)
	if !ok {
		return nil, errors.InvalidInput("factor", fmt.Sprintf("want float64, got %T", args[0]))
	}
	return rb.Scale(f), nil
}

func offset(ctx context.Context, b pipeline.Batch, args []any, kwargs map[string]any) (pipeline.Batch, error) {
	rb, err := record(b)
	if err != nil {
		return nil, err
	}
	d, ok := kwargs["delta"].(float64)
	if !ok {
		return nil, errors.MissingField("delta")
	}
	return rb.Offset(d), nil
}

func combine(ctx context.Context, b pipeline.Batch, args []any, kwargs map[string]any) (pipeline.Batch, error) {
	rb, err := record(b)
	if err != nil {
		return nil, err
	}
	out := NewRecordBatch(rb.idx, rb.Vals)
	for _, a := range args {
		jb, ok := a.(pipeline.Batch)
		if !ok {
			break
		}
		jr, err := record(jb)
		if err != nil {
			return nil, err
		}
		if len(jr.Vals) != len(out.Vals) {
			return nil, errors.InvalidInput("batch", "joined batch size mismatch")
		}
		for i, v := range jr.Vals {
			out.Vals[i] += v
		}
	}
	return out, nil
}

func dropAbove(ctx context.Context, b pipeline.Batch, args []any, kwargs map[string]any) (pipeline.Batch, error) {
	rb, err := record(b)
	if err != nil {
		return nil, err
	}
	limit, ok := kwargs["limit"].(float64)
	if !ok {
		return nil, errors.MissingField("limit")
	}
	for _, v := range rb.Vals {
		if v > limit {
			return nil, pipeline.ErrSkipBatch
		}
	}
	return rb, nil
}

func fail(ctx context.Context, b pipeline.Batch, args []any, kwargs map[string]any) (pipeline.Batch, error) {
	return nil, errors.Internal(fmt.Errorf("capability told to fail"))
}
