package engine

import (
	"context"
	"testing"

	"github.com/orama-network/wasmcore/internal/wasmcore/contracts"
	"github.com/orama-network/wasmcore/internal/wasmcore/wasmconfig"
	"github.com/orama-network/wasmcore/internal/wasmcore/wasmtypes"
)

// echoWASM exports memory, alloc(len i32)->i32 (always returns ptr 1024,
// ignoring len, so the input the engine writes there never overlaps the
// output segment), and handle(ptr,len i32,i32)->i64 which ignores its input
// entirely and returns the packed (ptr=100, len=2) handle pointing at a data
// segment holding the two bytes "{}" - a minimal stand-in for a guest that
// round-trips valid JSON through the spec's ptr/len convention.
var echoWASM = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x0c, 0x02, 0x60, 0x01, 0x7f, 0x01, 0x7f, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7e,
	0x03, 0x03, 0x02, 0x00, 0x01,
	0x05, 0x03, 0x01, 0x00, 0x01,
	0x07, 0x1b, 0x03,
	0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, 0x02, 0x00,
	0x05, 0x61, 0x6c, 0x6c, 0x6f, 0x63, 0x00, 0x00,
	0x06, 0x68, 0x61, 0x6e, 0x64, 0x6c, 0x65, 0x00, 0x01,
	0x0a, 0x11, 0x02,
	0x05, 0x00, 0x41, 0x80, 0x08, 0x0b,
	0x09, 0x00, 0x42, 0x82, 0x80, 0x80, 0x80, 0xc0, 0x0c, 0x0b,
	0x0b, 0x09, 0x01, 0x00, 0x41, 0xe4, 0x00, 0x0b, 0x02, 0x7b, 0x7d,
}

// invalidJSONWASM is byte-identical to echoWASM except its data segment
// holds two bytes that are not valid JSON ("ab" instead of "{}").
var invalidJSONWASM = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x0c, 0x02, 0x60, 0x01, 0x7f, 0x01, 0x7f, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7e,
	0x03, 0x03, 0x02, 0x00, 0x01,
	0x05, 0x03, 0x01, 0x00, 0x01,
	0x07, 0x1b, 0x03,
	0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, 0x02, 0x00,
	0x05, 0x61, 0x6c, 0x6c, 0x6f, 0x63, 0x00, 0x00,
	0x06, 0x68, 0x61, 0x6e, 0x64, 0x6c, 0x65, 0x00, 0x01,
	0x0a, 0x11, 0x02,
	0x05, 0x00, 0x41, 0x80, 0x08, 0x0b,
	0x09, 0x00, 0x42, 0x82, 0x80, 0x80, 0x80, 0xc0, 0x0c, 0x0b,
	0x0b, 0x09, 0x01, 0x00, 0x41, 0xe4, 0x00, 0x0b, 0x02, 0x61, 0x62,
}

func newTestEngine(t *testing.T) (*Engine, context.Context) {
	t.Helper()
	ctx := context.Background()
	cfg := wasmconfig.DefaultConfig()
	cfg.EnableSystemInterface = false
	e, err := New(ctx, cfg, noopHTTP{}, noopDB{}, nil)
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}
	t.Cleanup(func() { e.Close(ctx) })
	return e, ctx
}

type noopHTTP struct{}

func (noopHTTP) Do(ctx context.Context, req contracts.HTTPRequest) (*contracts.HTTPResponse, error) {
	return &contracts.HTTPResponse{Status: 200}, nil
}

type noopDB struct{}

func (noopDB) Query(ctx context.Context, req contracts.DBQueryRequest) (*contracts.DBQueryResult, error) {
	return &contracts.DBQueryResult{}, nil
}

func sampleStep() *wasmtypes.StepDescriptor {
	return &wasmtypes.StepDescriptor{
		ModuleID:       "mod-1",
		EntryFunction:  "handle",
		FuelLimit:      1_000_000,
		TimeoutSeconds: 5,
		MemoryLimitMiB: 16,
	}
}

func sampleRecord() *wasmtypes.ModuleRecord {
	return &wasmtypes.ModuleRecord{ID: "mod-1", Name: "echo"}
}

func TestExecuteSuccessPath(t *testing.T) {
	e, ctx := newTestEngine(t)
	compiled, err := e.Runtime().CompileModule(ctx, echoWASM)
	if err != nil {
		t.Fatalf("failed to compile test module: %v", err)
	}
	defer compiled.Close(ctx)

	invCtx := &wasmtypes.InvocationContext{Variables: map[string]interface{}{}}
	result, err := e.Execute(ctx, compiled, sampleRecord(), sampleStep(), invCtx, "exec-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result.Output) != "{}" {
		t.Fatalf("unexpected output: %s", result.Output)
	}
	if result.FuelConsumed != 0 {
		t.Fatalf("expected no fuel consumed without host calls, got %d", result.FuelConsumed)
	}
}

func TestExecuteMissingEntryFunction(t *testing.T) {
	e, ctx := newTestEngine(t)
	compiled, err := e.Runtime().CompileModule(ctx, echoWASM)
	if err != nil {
		t.Fatalf("failed to compile test module: %v", err)
	}
	defer compiled.Close(ctx)

	step := sampleStep()
	step.EntryFunction = "does_not_exist"
	_, err = e.Execute(ctx, compiled, sampleRecord(), step, &wasmtypes.InvocationContext{}, "exec-2")
	if err == nil {
		t.Fatal("expected an error for a missing entry function")
	}
	if kind, _ := wasmtypes.KindOf(err); kind != wasmtypes.ErrorKindInvalidModule {
		t.Fatalf("expected InvalidModule, got %v", kind)
	}
}

func TestExecuteInvalidOutputJSON(t *testing.T) {
	e, ctx := newTestEngine(t)
	compiled, err := e.Runtime().CompileModule(ctx, invalidJSONWASM)
	if err != nil {
		t.Fatalf("failed to compile test module: %v", err)
	}
	defer compiled.Close(ctx)

	_, err = e.Execute(ctx, compiled, sampleRecord(), sampleStep(), &wasmtypes.InvocationContext{}, "exec-3")
	if err == nil {
		t.Fatal("expected an InvalidOutput error")
	}
	if kind, _ := wasmtypes.KindOf(err); kind != wasmtypes.ErrorKindInvalidOutput {
		t.Fatalf("expected InvalidOutput, got %v", kind)
	}
}
