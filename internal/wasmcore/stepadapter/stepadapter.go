// Package stepadapter implements C7, the Step Executor Adapter: the
// external contract execute(step, &context) -> step_output | error the
// surrounding pipeline calls per invocation (spec §4.7).
package stepadapter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orama-network/wasmcore/internal/wasmcore/contracts"
	"github.com/orama-network/wasmcore/internal/wasmcore/engine"
	"github.com/orama-network/wasmcore/internal/wasmcore/loader"
	"github.com/orama-network/wasmcore/internal/wasmcore/wasmlog"
	"github.com/orama-network/wasmcore/internal/wasmcore/wasmtypes"
)

// Adapter presents the pipeline-facing step-execution contract over a
// Loader (C4) and Execution Engine (C6), recording one execution log per
// invocation via the metadata store (I4).
type Adapter struct {
	loader   *loader.Loader
	engine   *engine.Engine
	metadata contracts.MetadataStore
	logger   *wasmlog.Logger
}

// New builds an Adapter.
func New(loader *loader.Loader, engine *engine.Engine, metadata contracts.MetadataStore, logger *wasmlog.Logger) *Adapter {
	if logger == nil {
		logger = wasmlog.Nop()
	}
	return &Adapter{loader: loader, engine: engine, metadata: metadata, logger: logger}
}

// Result is the outcome of one step execution, handed back to the pipeline.
type Result struct {
	ExecutionID string
	Status      string
	Output      json.RawMessage
	Routing     *wasmtypes.RoutingNext
	Context     *wasmtypes.InvocationContext
}

const (
	statusSuccess = "success"
	statusFailed  = "failed"
)

// Execute runs stepID's module against invCtx, merges its output into
// invCtx, and records step_output[stepID], per spec §4.7. invCtx is updated
// in place only on success; a failed step leaves it untouched.
func (a *Adapter) Execute(ctx context.Context, stepID string, step *wasmtypes.StepDescriptor, invCtx *wasmtypes.InvocationContext) (*Result, error) {
	executionID := uuid.New().String()
	startedAt := time.Now()

	if err := step.Validate(); err != nil {
		a.recordLog(ctx, executionID, step.ModuleID, err, 0, 0, 0)
		return nil, err
	}

	compiled, rec, err := a.loader.Load(ctx, step.ModuleID)
	if err != nil {
		a.recordLog(ctx, executionID, step.ModuleID, err, 0, 0, 0)
		return nil, err
	}

	// The guest's set_context writes go to a copy of the variables.
	runCtx := &wasmtypes.InvocationContext{Steps: invCtx.Steps, Webhook: invCtx.Webhook}
	if invCtx.Variables != nil {
		runCtx.Variables = make(map[string]any, len(invCtx.Variables))
		for k, v := range invCtx.Variables {
			runCtx.Variables[k] = v
		}
	}
	execResult, err := a.engine.Execute(ctx, compiled, rec, step, runCtx, executionID)
	if err != nil {
		a.recordLog(ctx, executionID, step.ModuleID, err, 0, 0, 0)
		return nil, err
	}

	// The execution log is recorded exactly once below, after the guest
	// output has been parsed and validated, so its kind reflects the
	// invocation's true terminal outcome (success or the specific failure
	// kind) rather than the engine call's own success.
	outcome, parseErr := parseOutcome(execResult.Output)
	if parseErr != nil {
		a.recordLog(ctx, executionID, step.ModuleID, parseErr, execResult.FuelConsumed, execResult.PeakMemoryBytes, execResult.Duration)
		return nil, parseErr
	}
	if outcome.validationFailed {
		a.logger.ComponentWarn(wasmlog.ComponentStepAdapter, "step reported validation errors",
			zap.String("step_id", stepID), zap.String("module_id", step.ModuleID))
		validationErr := wasmtypes.NewInvalidOutput("guest reported validation_errors")
		a.recordLog(ctx, executionID, step.ModuleID, validationErr, execResult.FuelConsumed, execResult.PeakMemoryBytes, execResult.Duration)
		return &Result{ExecutionID: executionID, Status: statusFailed, Output: outcome.raw, Context: invCtx}, validationErr
	}

	a.recordLog(ctx, executionID, step.ModuleID, nil, execResult.FuelConsumed, execResult.PeakMemoryBytes, execResult.Duration)

	if invCtx.Variables == nil {
		invCtx.Variables = map[string]any{}
	}
	if updated := execResult.UpdatedContext; updated != nil {
		for k, v := range updated.Variables {
			invCtx.Variables[k] = v
		}
	}
	deepMerge(invCtx.Variables, outcome.merged)

	if invCtx.Steps == nil {
		invCtx.Steps = map[string]wasmtypes.StepOutput{}
	}
	completedAt := time.Now()
	invCtx.Steps[stepID] = wasmtypes.StepOutput{
		Status:      statusSuccess,
		Output:      outcome.merged,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
	}

	return &Result{
		ExecutionID: executionID,
		Status:      statusSuccess,
		Output:      outcome.raw,
		Routing:     outcome.routing,
		Context:     invCtx,
	}, nil
}

func (a *Adapter) recordLog(ctx context.Context, executionID, moduleID string, execErr error, fuel, peakMem uint64, duration time.Duration) {
	log := &wasmtypes.ExecutionLog{
		ExecutionID: executionID,
		ModuleID:    moduleID,
		FuelConsumed: fuel,
		PeakMemory:  peakMem,
		Duration:    duration,
		Timestamp:   time.Now(),
	}
	if execErr != nil {
		if kind, ok := wasmtypes.KindOf(execErr); ok {
			log.ErrorKind = kind
			log.ErrorDetail = execErr.Error()
		} else {
			log.ErrorKind = wasmtypes.ErrorKindInvalidOutput
			log.ErrorDetail = execErr.Error()
		}
	}
	if err := a.metadata.AppendExecutionLog(ctx, log); err != nil {
		a.logger.ComponentError(wasmlog.ComponentStepAdapter, "failed to append execution log",
			zap.String("execution_id", executionID), zap.Error(err))
	}
}
