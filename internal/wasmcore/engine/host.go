package engine

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/orama-network/wasmcore/internal/wasmcore/hostcap"
	"github.com/orama-network/wasmcore/internal/wasmcore/wasmlog"
	"github.com/orama-network/wasmcore/internal/wasmcore/wasmtypes"
)

// hostModuleName is the single stable import module name all host functions
// are exposed under (SPEC_FULL.md §4's fixed convention).
const hostModuleName = "env"

type ctxKey int

const (
	surfaceCtxKey ctxKey = iota
	budgetCtxKey
)

func withSurface(ctx context.Context, s *hostcap.Surface) context.Context {
	return context.WithValue(ctx, surfaceCtxKey, s)
}

func surfaceFromCtx(ctx context.Context) *hostcap.Surface {
	s, _ := ctx.Value(surfaceCtxKey).(*hostcap.Surface)
	return s
}

func withBudget(ctx context.Context, b *budget) context.Context {
	return context.WithValue(ctx, budgetCtxKey, b)
}

func budgetFromCtx(ctx context.Context) *budget {
	b, _ := ctx.Value(budgetCtxKey).(*budget)
	return b
}

// hostTrap is panicked by a host thunk to abort the in-flight guest call
// with a specific terminal error kind; Engine.callEntry recovers it.
type hostTrap struct{ err error }

// chargeFuel is the only place fuel is spent: per host-boundary crossing,
// not per guest instruction (see hostCallFuelCost). A guest that never calls
// a host capability never reaches this function at all.
func chargeFuel(ctx context.Context) {
	b := budgetFromCtx(ctx)
	if b == nil {
		return
	}
	if !b.consume(hostCallFuelCost) {
		panic(hostTrap{wasmtypes.NewFuelExhausted(b.consumed())})
	}
}

// registerHostModule installs the five capabilities of §4.5 under the
// "env" import name, once, for the lifetime of the Engine's runtime. Every
// thunk pulls its invocation's Surface and budget out of ctx rather than off
// the Engine itself, so concurrent invocations against the same runtime
// never share mutable state (contrast with the teacher's single
// HostFunctions instance guarded by invCtxLock).
func (e *Engine) registerHostModule(ctx context.Context) error {
	_, err := e.runtime.NewHostModuleBuilder(hostModuleName).
		NewFunctionBuilder().WithFunc(e.hLog).Export("log").
		NewFunctionBuilder().WithFunc(e.hGetContext).Export("get_context").
		NewFunctionBuilder().WithFunc(e.hSetContext).Export("set_context").
		NewFunctionBuilder().WithFunc(e.hHTTPRequest).Export("http_request").
		NewFunctionBuilder().WithFunc(e.hDBQuery).Export("db_query").
		Instantiate(ctx)
	return err
}

func (e *Engine) hLog(ctx context.Context, mod api.Module, level int32, ptr, length uint32) {
	chargeFuel(ctx)
	msg, ok := mod.Memory().Read(ptr, length)
	if !ok {
		return
	}
	surf := surfaceFromCtx(ctx)
	if surf == nil {
		return
	}
	surf.Log(level, string(msg))
}

func (e *Engine) hGetContext(ctx context.Context, mod api.Module, keyPtr, keyLen uint32) uint64 {
	chargeFuel(ctx)
	key, ok := mod.Memory().Read(keyPtr, keyLen)
	if !ok {
		panic(hostTrap{wasmtypes.NewHostFunctionError("get_context: failed to read key", nil)})
	}
	surf := surfaceFromCtx(ctx)
	value, err := surf.GetContext(string(key))
	if err != nil {
		panic(hostTrap{err})
	}
	return e.writeToGuest(ctx, mod, []byte(value))
}

func (e *Engine) hSetContext(ctx context.Context, mod api.Module, keyPtr, keyLen, valPtr, valLen uint32) {
	chargeFuel(ctx)
	key, ok := mod.Memory().Read(keyPtr, keyLen)
	if !ok {
		panic(hostTrap{wasmtypes.NewHostFunctionError("set_context: failed to read key", nil)})
	}
	value, ok := mod.Memory().Read(valPtr, valLen)
	if !ok {
		panic(hostTrap{wasmtypes.NewHostFunctionError("set_context: failed to read value", nil)})
	}
	surf := surfaceFromCtx(ctx)
	if err := surf.SetContext(string(key), string(value)); err != nil {
		panic(hostTrap{err})
	}
}

func (e *Engine) hHTTPRequest(ctx context.Context, mod api.Module, cfgPtr, cfgLen uint32) uint64 {
	chargeFuel(ctx)
	cfg, ok := mod.Memory().Read(cfgPtr, cfgLen)
	if !ok {
		panic(hostTrap{wasmtypes.NewHostFunctionError("http_request: failed to read config", nil)})
	}
	surf := surfaceFromCtx(ctx)
	result, err := surf.HTTPRequest(ctx, string(cfg))
	if err != nil {
		panic(hostTrap{err})
	}
	return e.writeToGuest(ctx, mod, []byte(result))
}

func (e *Engine) hDBQuery(ctx context.Context, mod api.Module, cfgPtr, cfgLen uint32) uint64 {
	chargeFuel(ctx)
	cfg, ok := mod.Memory().Read(cfgPtr, cfgLen)
	if !ok {
		panic(hostTrap{wasmtypes.NewHostFunctionError("db_query: failed to read config", nil)})
	}
	surf := surfaceFromCtx(ctx)
	result, err := surf.DBQuery(ctx, string(cfg))
	if err != nil {
		panic(hostTrap{err})
	}
	return e.writeToGuest(ctx, mod, []byte(result))
}

// writeToGuest allocates a buffer in guest memory via its "alloc" export,
// writes data into it, and returns the packed (ptr<<32 | len) handle the
// spec's marshalling convention uses for every host->guest byte span.
// Grounded on the teacher's writeToGuest, generalized to the spec-fixed
// "alloc" export name.
func (e *Engine) writeToGuest(ctx context.Context, mod api.Module, data []byte) uint64 {
	if len(data) == 0 {
		return 0
	}
	allocFn := mod.ExportedFunction("alloc")
	if allocFn == nil {
		panic(hostTrap{wasmtypes.NewInvalidModule("module does not export alloc", nil)})
	}
	results, err := allocFn.Call(ctx, uint64(len(data)))
	if err != nil {
		panic(hostTrap{wasmtypes.NewGuestTrap("alloc call failed", err)})
	}
	ptr := uint32(results[0])
	if !mod.Memory().Write(ptr, data) {
		panic(hostTrap{wasmtypes.NewHostFunctionError("failed to write result into guest memory", nil)})
	}
	e.logger.ComponentDebug(wasmlog.ComponentEngine, "wrote result to guest", zap.Int("bytes", len(data)))
	return (uint64(ptr) << 32) | uint64(len(data))
}
