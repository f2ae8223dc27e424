package stepadapter

import (
	"context"

	"github.com/orama-network/wasmcore/internal/wasmcore/wasmtypes"
)

// BatchStep pairs a step id with its descriptor for ExecuteBatch.
type BatchStep struct {
	StepID string
	Step   *wasmtypes.StepDescriptor
}

// BatchResult carries one step's outcome within a batch.
type BatchResult struct {
	StepID string
	Result *Result
	Err    error
}

// ExecuteBatch runs steps sequentially against the same invCtx, merging each
// step's output before the next one runs. Grounded on the teacher's
// Invoker.BatchInvoke shape, minus its retry/backoff/DLQ handling — the core
// does not retry (spec §4.7, §5) and batch invocation here is a convenience
// wrapper, not a job-level orchestration primitive.
func (a *Adapter) ExecuteBatch(ctx context.Context, steps []BatchStep, invCtx *wasmtypes.InvocationContext) []BatchResult {
	results := make([]BatchResult, len(steps))
	for i, bs := range steps {
		if ctx.Err() != nil {
			results[i] = BatchResult{StepID: bs.StepID, Err: ctx.Err()}
			continue
		}
		res, err := a.Execute(ctx, bs.StepID, bs.Step, invCtx)
		results[i] = BatchResult{StepID: bs.StepID, Result: res, Err: err}
	}
	return results
}
