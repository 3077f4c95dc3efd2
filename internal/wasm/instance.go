package wasm

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"
)

// InstanceManager creates and manages module instances.
type InstanceManager struct {
	runtime   *Runtime
	logger    *zap.Logger
	hostFuncs *HostFunctionsImpl

	// Serializes the instance limit check with instantiation.
	mu sync.Mutex
}

// NewInstanceManager creates a new instance manager.
func NewInstanceManager(runtime *Runtime, hostFuncs *HostFunctionsImpl, logger *zap.Logger) *InstanceManager {
	return &InstanceManager{
		runtime:   runtime,
		hostFuncs: hostFuncs,
		logger:    logger.With(zap.String("component", "wasm-instance")),
	}
}

// InstanceConfig holds configuration for creating instances.
type InstanceConfig struct {
	// Module name to instantiate.
	ModuleName string

	// Instance ID (if empty, one is generated).
	InstanceID string

	// Export names expected by the caller. Missing functions fail
	// instantiation instead of the first call.
	ABI ABI

	// Guest stdout and stderr. Discarded when nil.
	Stdout io.Writer
	Stderr io.Writer
}

// Instance represents an instantiated Wasm module.
type Instance struct {
	// wazero module instance.
	module  api.Module
	runtime *Runtime

	// Instance metadata.
	ID        string
	Name      string
	CreatedAt int64

	// Exported functions (cached for performance).
	exports map[string]api.Function

	closeOnce sync.Once
	closeErr  error
}

// Instantiate creates a new instance from a compiled module.
// Host functions are exported to the Wasm module.
func (m *InstanceManager) Instantiate(ctx context.Context, config *InstanceConfig) (*Instance, error) {
	// Get compiled module from cache.
	compiled, ok := m.runtime.GetCompiledModule(config.ModuleName)
	if !ok {
		return nil, &ModuleNotFoundError{ModuleName: config.ModuleName}
	}

	if err := m.instantiateHostModules(ctx); err != nil {
		return nil, err
	}

	// Generate instance ID if not provided.
	instanceID := config.InstanceID
	if instanceID == "" {
		instanceID = generateInstanceID()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if limit := m.runtime.config.MaxInstances; limit > 0 && m.runtime.InstanceCount() >= limit {
		return nil, &InstanceLimitError{Limit: limit}
	}

	m.logger.Info("Instantiating Wasm module",
		zap.String("module", config.ModuleName),
		zap.String("instance_id", instanceID),
	)

	// Reactor modules export _initialize instead of _start.
	// wazero skips start functions the module does not export.
	moduleConfig := wazero.NewModuleConfig().
		WithName(instanceID).
		WithStartFunctions(ExportInitialize)
	if config.Stdout != nil {
		moduleConfig = moduleConfig.WithStdout(config.Stdout)
	}
	if config.Stderr != nil {
		moduleConfig = moduleConfig.WithStderr(config.Stderr)
	}

	module, err := m.runtime.runtime.InstantiateModule(ctx, compiled.Module, moduleConfig)
	if err != nil {
		return nil, &InstantiationError{
			ModuleName: config.ModuleName,
			InstanceID: instanceID,
			Err:        err,
		}
	}

	abi := config.ABI.WithDefaults()
	exports, err := m.cacheExportedFunctions(module, config.ModuleName, abi)
	if err != nil {
		_ = module.Close(ctx)
		return nil, err
	}
	if module.ExportedMemory(abi.Memory) == nil {
		_ = module.Close(ctx)
		return nil, &MemoryNotFoundError{ModuleName: config.ModuleName, MemoryName: abi.Memory}
	}

	// Create instance wrapper.
	instance := &Instance{
		module:    module,
		runtime:   m.runtime,
		ID:        instanceID,
		Name:      config.ModuleName,
		CreatedAt: time.Now().Unix(),
		exports:   exports,
	}

	// Track active instance.
	m.runtime.StoreInstance(instanceID, module)

	m.logger.Info("Module instantiated successfully",
		zap.String("instance_id", instanceID),
		zap.Int("exported_functions", len(exports)),
	)

	return instance, nil
}

// ExportedFunction returns a cached export, falling back to a lookup.
func (i *Instance) ExportedFunction(name string) api.Function {
	if fn, ok := i.exports[name]; ok {
		return fn
	}
	return i.module.ExportedFunction(name)
}

// Close closes the instance and stops tracking it.
// Safe to call multiple times (idempotent).
func (i *Instance) Close(ctx context.Context) error {
	i.closeOnce.Do(func() {
		i.runtime.DeleteInstance(i.ID)
		i.closeErr = i.module.Close(ctx)
	})
	return i.closeErr
}

// cacheExportedFunctions caches references to the ABI functions.
// Every ABI function must be exported.
func (m *InstanceManager) cacheExportedFunctions(module api.Module, moduleName string, abi ABI) (map[string]api.Function, error) {
	exports := make(map[string]api.Function)

	for _, name := range abi.functions() {
		fn := module.ExportedFunction(name)
		if fn == nil {
			return nil, &FunctionNotFoundError{ModuleName: moduleName, FunctionName: name}
		}
		exports[name] = fn
	}

	return exports, nil
}

// instantiateHostModules instantiates WASI and the env host module once
// per runtime. Compiler modules built with wasi-sdk import both.
func (m *InstanceManager) instantiateHostModules(ctx context.Context) error {
	r := m.runtime
	r.hostOnce.Do(func() {
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, r.runtime); err != nil {
			r.hostErr = fmt.Errorf("failed to instantiate WASI: %w", err)
			return
		}

		builder := m.hostFuncs.export(r.runtime.NewHostModuleBuilder(ImportModuleEnv))
		if _, err := builder.Instantiate(ctx); err != nil {
			r.hostErr = fmt.Errorf("failed to instantiate host module: %w", err)
		}
	})
	return r.hostErr
}

var instanceSeq atomic.Uint64

// generateInstanceID generates a unique instance ID.
func generateInstanceID() string {
	return fmt.Sprintf("inst-%d-%d", time.Now().UnixNano(), instanceSeq.Add(1))
}
