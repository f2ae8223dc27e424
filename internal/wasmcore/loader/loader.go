// Package loader implements C4, the Module Loader: fetching artifact bytes,
// verifying their integrity, compiling them, and populating the compile
// cache (spec §4.4).
package loader

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/orama-network/wasmcore/internal/wasmcore/cache"
	"github.com/orama-network/wasmcore/internal/wasmcore/contracts"
	"github.com/orama-network/wasmcore/internal/wasmcore/integrity"
	"github.com/orama-network/wasmcore/internal/wasmcore/wasmconfig"
	"github.com/orama-network/wasmcore/internal/wasmcore/wasmlog"
	"github.com/orama-network/wasmcore/internal/wasmcore/wasmtypes"
)

// Loader loads, verifies, and compiles modules, populating the shared cache.
type Loader struct {
	runtime   wazero.Runtime
	cache     *cache.ModuleCache
	artifacts contracts.ArtifactStore
	metadata  contracts.MetadataStore
	cfg       *wasmconfig.Config
	logger    *wasmlog.Logger
}

// New builds a Loader. runtime is the shared wazero runtime compiled modules
// belong to; cache is shared across invocation tasks (spec §5).
func New(runtime wazero.Runtime, cache *cache.ModuleCache, artifacts contracts.ArtifactStore, metadata contracts.MetadataStore, cfg *wasmconfig.Config, logger *wasmlog.Logger) *Loader {
	if logger == nil {
		logger = wasmlog.Nop()
	}
	return &Loader{runtime: runtime, cache: cache, artifacts: artifacts, metadata: metadata, cfg: cfg, logger: logger}
}

// Load resolves moduleID to a compiled module, honoring the cache, integrity
// verification, and compile steps of spec §4.4. It also returns the module's
// record, since callers need its id and permission set.
func (l *Loader) Load(ctx context.Context, moduleID string) (wazero.CompiledModule, *wasmtypes.ModuleRecord, error) {
	rec, err := l.metadata.GetModule(ctx, moduleID)
	if err != nil {
		return nil, nil, wasmtypes.NewModuleNotFound(moduleID)
	}

	compiled, err := l.cache.GetOrCompute(moduleID, func() (wazero.CompiledModule, error) {
		return l.fetchVerifyCompile(ctx, rec)
	})
	if err != nil {
		return nil, rec, err
	}
	return compiled, rec, nil
}

// fetchVerifyCompile implements spec §4.4 steps 2-4: fetch, verify hash,
// compile under the fixed execution configuration.
func (l *Loader) fetchVerifyCompile(ctx context.Context, rec *wasmtypes.ModuleRecord) (wazero.CompiledModule, error) {
	bytes, err := l.artifacts.Get(ctx, rec.ArtifactPath)
	if err != nil {
		return nil, wasmtypes.NewModuleNotFound(rec.ID)
	}

	// I1/I2: no guest instruction executes before this check succeeds.
	if verr := integrity.VerifyHash(bytes, rec.SHA256Hex); verr != nil {
		l.logger.SecurityEvent(wasmlog.ComponentLoader, "hash verification failed",
			zap.String("module_id", rec.ID), zap.String("expected", rec.SHA256Hex))
		return nil, verr
	}

	compiled, err := l.runtime.CompileModule(ctx, bytes)
	if err != nil {
		return nil, wasmtypes.NewInvalidModule(fmt.Sprintf("module %s failed to compile", rec.ID), err)
	}
	l.logger.ComponentDebug(wasmlog.ComponentLoader, "module compiled", zap.String("module_id", rec.ID), zap.Int("size_bytes", len(bytes)))
	return compiled, nil
}

// Precompile installs wasmBytes into the cache under moduleID ahead of first
// use, verifying integrity against expectedHash first. Grounded on
// Engine.Precompile in the teacher.
func (l *Loader) Precompile(ctx context.Context, moduleID string, wasmBytes []byte, expectedHash string) error {
	if err := integrity.VerifyHash(wasmBytes, expectedHash); err != nil {
		return err
	}
	compiled, err := l.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return wasmtypes.NewInvalidModule(fmt.Sprintf("module %s failed to compile", moduleID), err)
	}
	l.cache.Put(moduleID, compiled)
	return nil
}

// Invalidate evicts moduleID from the cache, e.g. after an admin replaces a
// module's permissions or deletes it.
func (l *Loader) Invalidate(ctx context.Context, moduleID string) {
	l.cache.Delete(ctx, moduleID)
}

// ValidateForRegistration attempts to compile wasmBytes without installing it
// anywhere, for the admin API's registration flow (spec §6): "attempt compile
// (reject on failure with InvalidModule)".
func (l *Loader) ValidateForRegistration(ctx context.Context, wasmBytes []byte) error {
	compiled, err := l.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return wasmtypes.NewInvalidModule("registration compile check failed", err)
	}
	return compiled.Close(ctx)
}
