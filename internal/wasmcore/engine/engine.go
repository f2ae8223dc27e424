// Package engine implements C6, the Execution Engine: per-invocation
// wazero store/instance construction, guest marshalling over the spec's
// ptr+length convention, and termination/error mapping (spec §4.6).
//
// Grounded on pkg/serverless/engine.go's NewEngine/Execute shape and
// execution/executor.go + execution/lifecycle.go's split between module
// compilation and per-call execution, but follows the ptr/len "handle"
// export path (callHandleFunction/writeToGuest) rather than the teacher's
// live WASI-stdio path, per the convention SPEC_FULL.md fixes.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/orama-network/wasmcore/internal/wasmcore/contracts"
	"github.com/orama-network/wasmcore/internal/wasmcore/hostcap"
	"github.com/orama-network/wasmcore/internal/wasmcore/wasmconfig"
	"github.com/orama-network/wasmcore/internal/wasmcore/wasmlog"
	"github.com/orama-network/wasmcore/internal/wasmcore/wasmtypes"
)

// Engine owns the shared wazero Runtime compiled modules are instantiated
// against, and the single "env" host module every invocation's capability
// calls are dispatched through.
type Engine struct {
	runtime wazero.Runtime
	cfg     *wasmconfig.Config
	logger  *wasmlog.Logger

	http contracts.HTTPExecutor
	db   contracts.DatabaseExecutor
}

// New builds an Engine. The runtime it owns is the same one the Module
// Loader (C4) and Compile Cache (C3) must compile modules against, since a
// wazero CompiledModule can only be instantiated on the Runtime that
// compiled it.
func New(ctx context.Context, cfg *wasmconfig.Config, http contracts.HTTPExecutor, db contracts.DatabaseExecutor, logger *wasmlog.Logger) (*Engine, error) {
	if logger == nil {
		logger = wasmlog.Nop()
	}
	// No runtime-wide WithMemoryLimitPages here: that knob is shared by every
	// module instantiated on this Runtime, but different steps configure
	// different per-invocation memory_limit_mib values (§4.6). Per-invocation
	// enforcement is instead retrofitted by the memory watchdog started in
	// Execute (see budget.go).
	rtCfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	runtime := wazero.NewRuntimeWithConfig(ctx, rtCfg)

	if cfg.EnableSystemInterface {
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
			runtime.Close(ctx)
			return nil, fmt.Errorf("engine: failed to instantiate WASI: %w", err)
		}
	}

	e := &Engine{runtime: runtime, cfg: cfg, logger: logger, http: http, db: db}
	if err := e.registerHostModule(ctx); err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("engine: failed to register host module: %w", err)
	}
	return e, nil
}

// Runtime exposes the shared wazero.Runtime so the Module Loader and
// Compile Cache can compile against the same instance this Engine
// instantiates modules on.
func (e *Engine) Runtime() wazero.Runtime {
	return e.runtime
}

// Close shuts down the underlying runtime and all modules registered on it.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// Result carries the outcome of one invocation: the guest's parsed output
// plus everything the Execution Log (I4) requires.
type Result struct {
	Output          json.RawMessage
	UpdatedContext  *wasmtypes.InvocationContext
	FuelConsumed    uint64
	PeakMemoryBytes uint64
	Duration        time.Duration
}

// Execute runs one invocation of compiled under step's limits, per spec
// §4.6's numbered procedure. rec supplies the module's permission set;
// invCtx is the context visible to get_context/set_context.
func (e *Engine) Execute(ctx context.Context, compiled wazero.CompiledModule, rec *wasmtypes.ModuleRecord, step *wasmtypes.StepDescriptor, invCtx *wasmtypes.InvocationContext, executionID string) (*Result, error) {
	start := time.Now()

	timeout := time.Duration(step.TimeoutSeconds) * time.Second
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	bud := newBudget(step.FuelLimit, step.MemoryLimitMiB)
	execCtx = withBudget(execCtx, bud)

	surf := hostcap.New(rec.ID, executionID, rec.Permissions, e.http, e.db, e.logger, invCtx)
	execCtx = withSurface(execCtx, surf)

	moduleConfig := wazero.NewModuleConfig().WithName(executionID)
	if e.cfg.EnableSystemInterface {
		moduleConfig = moduleConfig.
			WithEnv("WASMCORE_EXECUTION_ID", executionID).
			WithEnv("WASMCORE_MODULE_ID", rec.ID)
	}

	instance, err := e.runtime.InstantiateModule(execCtx, compiled, moduleConfig)
	if err != nil {
		return nil, mapInstantiateError(err, execCtx, bud, step)
	}
	defer instance.Close(ctx)

	memory := instance.ExportedMemory("memory")
	sampler := startMemorySampler(execCtx, func() uint64 {
		if memory == nil {
			return 0
		}
		return uint64(memory.Size())
	}, bud.memoryLimitBytes, func() {
		bud.memoryExceeded.Store(true)
		instance.Close(execCtx)
	})
	defer sampler.Stop()

	output, err := e.callEntry(execCtx, instance, step.EntryFunction, invCtx)

	duration := time.Since(start)
	peakBytes := uint64(0)
	if memory != nil {
		peakBytes = uint64(memory.Size())
	}

	if err != nil {
		return nil, mapCallError(err, execCtx, bud, step)
	}

	var parsed json.RawMessage
	if err := json.Unmarshal(output, &parsed); err != nil {
		return nil, wasmtypes.NewInvalidOutput("guest output was not valid JSON")
	}

	return &Result{
		Output:          parsed,
		UpdatedContext:  surf.Context(),
		FuelConsumed:    bud.consumed(),
		PeakMemoryBytes: peakBytes,
		Duration:        duration,
	}, nil
}

// callEntry serializes invCtx, writes it into guest memory, and invokes the
// guest's entry function with (ptr, len), per spec §4.6 step 4. Recovers any
// hostTrap panicked by a host capability thunk and surfaces it as the
// call's error.
func (e *Engine) callEntry(ctx context.Context, instance api.Module, entryFn string, invCtx *wasmtypes.InvocationContext) (out []byte, callErr error) {
	defer func() {
		if r := recover(); r != nil {
			if ht, ok := r.(hostTrap); ok {
				callErr = ht.err
				return
			}
			panic(r)
		}
	}()

	payload, err := json.Marshal(invCtx)
	if err != nil {
		return nil, wasmtypes.NewInvalidOutput("failed to encode invocation context")
	}

	allocFn := instance.ExportedFunction("alloc")
	if allocFn == nil {
		return nil, wasmtypes.NewInvalidModule("module does not export alloc", nil)
	}
	results, err := allocFn.Call(ctx, uint64(len(payload)))
	if err != nil {
		return nil, wasmtypes.NewGuestTrap("alloc call failed", err)
	}
	inputPtr := uint32(results[0])

	memory := instance.ExportedMemory("memory")
	if memory == nil {
		return nil, wasmtypes.NewInvalidModule("module does not export memory", nil)
	}
	if !memory.Write(inputPtr, payload) {
		return nil, wasmtypes.NewHostFunctionError("failed to write invocation context to guest memory", nil)
	}

	entry := instance.ExportedFunction(entryFn)
	if entry == nil {
		return nil, wasmtypes.NewInvalidModule(fmt.Sprintf("module does not export entry function %q", entryFn), nil)
	}
	results, err = entry.Call(ctx, uint64(inputPtr), uint64(len(payload)))
	if err != nil {
		return nil, wasmtypes.NewGuestTrap("entry function trapped", err)
	}
	if len(results) == 0 {
		return nil, wasmtypes.NewInvalidOutput("entry function returned no result")
	}

	packed := results[0]
	outPtr := uint32(packed >> 32)
	outLen := uint32(packed & 0xFFFFFFFF)
	if outLen == 0 {
		return []byte("null"), nil
	}

	result, ok := memory.Read(outPtr, outLen)
	if !ok {
		return nil, wasmtypes.NewHostFunctionError("failed to read result from guest memory", nil)
	}
	resultCopy := make([]byte, len(result))
	copy(resultCopy, result)
	return resultCopy, nil
}

func mapInstantiateError(err error, ctx context.Context, bud *budget, step *wasmtypes.StepDescriptor) error {
	if bud.memoryExceeded.Load() {
		return wasmtypes.NewMemoryLimitExceeded(step.MemoryLimitMiB)
	}
	if ctx.Err() == context.DeadlineExceeded {
		return wasmtypes.NewExecutionTimeout(step.TimeoutSeconds)
	}
	return wasmtypes.NewGuestTrap("module instantiation failed", err)
}

// mapCallError classifies a failed entry-function call. Budget/deadline
// checks run first: a timeout or memory/fuel trip that fires while an
// http_request/db_query host call is in flight surfaces as a
// NewHostFunctionError from the host thunk, which would otherwise shadow the
// real terminal kind here. The guest must be interrupted on a deadline
// regardless of whether a host call is in progress.
func mapCallError(err error, ctx context.Context, bud *budget, step *wasmtypes.StepDescriptor) error {
	if bud.memoryExceeded.Load() {
		return wasmtypes.NewMemoryLimitExceeded(step.MemoryLimitMiB)
	}
	if bud.fuelExhausted.Load() {
		return wasmtypes.NewFuelExhausted(bud.consumed())
	}
	if ctx.Err() == context.DeadlineExceeded {
		return wasmtypes.NewExecutionTimeout(step.TimeoutSeconds)
	}
	var execErr *wasmtypes.ExecutionError
	if asExecutionError(err, &execErr) {
		return execErr
	}
	return wasmtypes.NewGuestTrap("guest execution failed", err)
}

func asExecutionError(err error, target **wasmtypes.ExecutionError) bool {
	if ee, ok := err.(*wasmtypes.ExecutionError); ok {
		*target = ee
		return true
	}
	return false
}
