package compiler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/woxQAQ/snapc/internal/bridge"
	"github.com/woxQAQ/snapc/internal/config"
	"github.com/woxQAQ/snapc/internal/wasm"
)

// Manager manages compiler package lifecycle.
type Manager struct {
	cfg         *config.Config
	runtime     *wasm.Runtime
	loader      *Loader
	registry    *Registry
	instanceMgr *wasm.InstanceManager
	logger      *zap.Logger

	// Guest stdout/stderr for new instances.
	stdout io.Writer
	stderr io.Writer

	mu     sync.RWMutex
	loaded bool
}

// NewManager creates a new compiler manager.
func NewManager(
	cfg *config.Config,
	runtime *wasm.Runtime,
	hostFuncs *wasm.HostFunctionsImpl,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		cfg:         cfg,
		runtime:     runtime,
		loader:      NewLoader(runtime, logger),
		registry:    NewRegistry(logger),
		instanceMgr: wasm.NewInstanceManager(runtime, hostFuncs, logger),
		logger:      logger.With(zap.String("component", "compiler-manager")),
	}
}

// SetGuestOutput routes the stdout and stderr of instances opened later.
func (m *Manager) SetGuestOutput(stdout, stderr io.Writer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stdout = stdout
	m.stderr = stderr
}

// LoadAll discovers and loads all compiler packages from configured paths.
func (m *Manager) LoadAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loaded {
		return fmt.Errorf("compilers already loaded")
	}

	paths := m.cfg.Compiler.Paths
	m.logger.Info("Loading compilers", zap.Strings("paths", paths))

	// Discover compiler packages
	pkgs, err := m.loader.Discover(ctx, paths)
	if err != nil {
		// No packages is not fatal: a module file may still be loaded
		var notFound *NoCompilersFoundError
		if errors.As(err, &notFound) {
			m.logger.Warn("No compilers found in configured paths",
				zap.Strings("paths", paths),
				zap.Error(notFound.Err),
			)
			m.loaded = true
			return nil
		}
		return err
	}

	// Register all packages
	for _, pkg := range pkgs {
		if err := m.registry.Register(pkg); err != nil {
			m.logger.Error("Failed to register compiler",
				zap.String("name", pkg.Manifest.Name),
				zap.Error(err),
			)
			continue
		}
	}

	m.loaded = true

	m.logger.Info("Compilers loaded successfully", zap.Int("count", m.registry.Count()))

	return nil
}

// LoadFile loads and registers a bare compiler .wasm file. Loading the same
// file again returns the registered package; a different file with the
// same name is a CompilerConflictError.
func (m *Manager) LoadFile(ctx context.Context, path string) (*Package, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	manifest, err := moduleFileManifest(path)
	if err != nil {
		return nil, err
	}
	if existing, ok := m.registry.Get(manifest.Name); ok {
		if existing.Manifest.WasmPath() != manifest.WasmPath() {
			return nil, &CompilerConflictError{
				CompilerName:   manifest.Name,
				RegisteredPath: existing.Manifest.WasmPath(),
				Path:           manifest.WasmPath(),
			}
		}
		return existing, nil
	}

	pkg, err := m.loader.load(ctx, manifest)
	if err != nil {
		return nil, err
	}
	if err := m.registry.Register(pkg); err != nil {
		return nil, err
	}
	return pkg, nil
}

// Get retrieves a compiler package by name.
func (m *Manager) Get(name string) (*Package, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pkg, ok := m.registry.Get(name)
	if !ok {
		return nil, &CompilerNotFoundError{CompilerName: name, Available: m.registry.Names()}
	}

	return pkg, nil
}

// Handle is an open compiler: a bridge bound to its own instance.
// Close releases the instance.
type Handle struct {
	*bridge.Bridge

	compiler *wasm.CompilerModule
}

// Close closes the compiler instance.
func (h *Handle) Close(ctx context.Context) error {
	return h.compiler.Close(ctx)
}

// Open instantiates a compiler and returns a ready bridge.
func (m *Manager) Open(ctx context.Context, name string) (*Handle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pkg, ok := m.registry.Get(name)
	if !ok {
		return nil, &CompilerNotFoundError{CompilerName: name, Available: m.registry.Names()}
	}

	abi := pkg.ABI()
	instance, err := m.instanceMgr.Instantiate(ctx, &wasm.InstanceConfig{
		ModuleName: pkg.Compiled.Name,
		ABI:        abi,
		Stdout:     m.stdout,
		Stderr:     m.stderr,
	})
	if err != nil {
		return nil, &CompilerLoadError{CompilerName: name, WasmPath: pkg.Manifest.WasmPath(), Err: err}
	}

	native := wasm.NewCompilerModule(instance, abi, m.logger)
	b, err := bridge.New(ctx, native, &bridge.Config{
		Name:           pkg.Name(),
		OutputCapacity: m.outputCapacity(pkg),
	}, m.logger)
	if err != nil {
		return nil, multierr.Append(err, native.Close(ctx))
	}

	m.logger.Info("Compiler opened",
		zap.String("name", name),
		zap.String("identity", b.Identity()),
		zap.String("instance_id", instance.ID),
	)

	return &Handle{Bridge: b, compiler: native}, nil
}

// OpenFile loads a bare compiler .wasm file and opens it.
func (m *Manager) OpenFile(ctx context.Context, path string) (*Handle, error) {
	pkg, err := m.LoadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return m.Open(ctx, pkg.Name())
}

// outputCapacity picks the package capacity, then the configured one. Zero
// leaves the bridge default.
func (m *Manager) outputCapacity(pkg *Package) uint32 {
	if c := pkg.OutputCapacity(); c > 0 {
		return c
	}
	if m.cfg != nil && m.cfg.Output.Capacity > 0 {
		return uint32(m.cfg.Output.Capacity)
	}
	return 0
}

// Shutdown gracefully shuts down all compilers.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down compiler manager")

	// Runtime close handles instance cleanup
	if err := m.runtime.Close(ctx); err != nil {
		m.logger.Error("Failed to shutdown runtime", zap.Error(err))
		return err
	}

	m.logger.Info("Compiler manager shutdown complete")
	return nil
}

// Registry returns the compiler registry (for testing/inspection).
func (m *Manager) Registry() *Registry {
	return m.registry
}

// IsLoaded returns whether compilers have been loaded.
func (m *Manager) IsLoaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}
