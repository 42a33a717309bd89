// Package runtime defines the plugin execution delegate spec.md §9's
// design note anticipates: an Engine interface the lifecycle manager
// (C12) drives, satisfied here by a real WebAssembly engine rather than
// a stub, since the teacher repository is itself a publishable
// implementation of exactly that contract.
package runtime

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/nexusshell/nexusshell/internal/plugin/metadata"
)

// Engine is the contract C12 drives: load a module under a plugin id,
// invoke one of its exported functions, and unload it again.
type Engine interface {
	LoadPlugin(ctx context.Context, path string, id string) (metadata.Metadata, error)
	UnloadPlugin(ctx context.Context, id string) error
	Invoke(ctx context.Context, id, entry string, args ...uint64) ([]uint64, error)
}

// WasmEngine adapts wazero.Runtime to Engine: each load compiles the
// module and instantiates it, keyed by plugin id so Unload can tear
// down exactly the right instance.
type WasmEngine struct {
	runtime wazero.Runtime

	mu       sync.RWMutex
	modules  map[string]api.Module
	compiled map[string]wazero.CompiledModule
}

// NewWasmEngine builds a WasmEngine over a fresh wazero.Runtime. The
// caller owns ctx's lifetime; Close releases the runtime and every
// instantiated module.
func NewWasmEngine(ctx context.Context) *WasmEngine {
	return &WasmEngine{
		runtime:  wazero.NewRuntime(ctx),
		modules:  map[string]api.Module{},
		compiled: map[string]wazero.CompiledModule{},
	}
}

func (e *WasmEngine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// LoadPlugin compiles the module at path and instantiates it under id,
// deriving metadata from the same extractor C10 uses for discovery
// (spec.md §9's load_plugin(path, id) -> metadata contract).
func (e *WasmEngine) LoadPlugin(ctx context.Context, path string, id string) (metadata.Metadata, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return metadata.Metadata{}, fmt.Errorf("runtime: read %s: %w", path, err)
	}

	compiled, err := e.runtime.CompileModule(ctx, content)
	if err != nil {
		return metadata.Metadata{}, fmt.Errorf("runtime: compile %s: %w", path, err)
	}

	cfg := wazero.NewModuleConfig().WithName(id)
	mod, err := e.runtime.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		compiled.Close(ctx)
		return metadata.Metadata{}, fmt.Errorf("runtime: instantiate %s: %w", path, err)
	}

	e.mu.Lock()
	e.modules[id] = mod
	e.compiled[id] = compiled
	e.mu.Unlock()

	return metadata.Extract(content, path), nil
}

// UnloadPlugin tears down the instance and its compiled module.
func (e *WasmEngine) UnloadPlugin(ctx context.Context, id string) error {
	e.mu.Lock()
	mod, ok := e.modules[id]
	compiled := e.compiled[id]
	delete(e.modules, id)
	delete(e.compiled, id)
	e.mu.Unlock()

	if !ok {
		return fmt.Errorf("runtime: plugin %s not loaded", id)
	}
	if err := mod.Close(ctx); err != nil {
		return fmt.Errorf("runtime: close module %s: %w", id, err)
	}
	if compiled != nil {
		compiled.Close(ctx)
	}
	return nil
}

// Invoke calls entry on the loaded module for id.
func (e *WasmEngine) Invoke(ctx context.Context, id, entry string, args ...uint64) ([]uint64, error) {
	e.mu.RLock()
	mod, ok := e.modules[id]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("runtime: plugin %s not loaded", id)
	}

	fn := mod.ExportedFunction(entry)
	if fn == nil {
		return nil, fmt.Errorf("runtime: plugin %s has no exported function %q", id, entry)
	}
	return fn.Call(ctx, args...)
}
