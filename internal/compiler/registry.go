package compiler

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry manages loaded compiler packages.
type Registry struct {
	sync.RWMutex
	packages map[string]*Package // name -> package
	logger   *zap.Logger
}

// NewRegistry creates a new compiler registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		packages: make(map[string]*Package),
		logger:   logger.With(zap.String("component", "compiler-registry")),
	}
}

// Register adds a compiler package to the registry.
func (r *Registry) Register(pkg *Package) error {
	r.Lock()
	defer r.Unlock()

	name := pkg.Manifest.Name

	if existing, exists := r.packages[name]; exists {
		return &CompilerConflictError{
			CompilerName:   name,
			RegisteredPath: existing.Manifest.WasmPath(),
			Path:           pkg.Manifest.WasmPath(),
		}
	}

	r.packages[name] = pkg

	r.logger.Info("Compiler registered",
		zap.String("name", name),
		zap.String("version", pkg.Manifest.Version),
	)

	return nil
}

// Get retrieves a compiler package by name.
func (r *Registry) Get(name string) (*Package, bool) {
	r.RLock()
	defer r.RUnlock()

	pkg, ok := r.packages[name]
	return pkg, ok
}

// Names returns the registered compiler names in sorted order.
func (r *Registry) Names() []string {
	r.RLock()
	defer r.RUnlock()

	names := make([]string, 0, len(r.packages))
	for name := range r.packages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns all registered packages sorted by name.
func (r *Registry) List() []*Package {
	names := r.Names()

	r.RLock()
	defer r.RUnlock()

	result := make([]*Package, 0, len(names))
	for _, name := range names {
		if pkg, ok := r.packages[name]; ok {
			result = append(result, pkg)
		}
	}
	return result
}

// Count returns the number of registered compilers.
func (r *Registry) Count() int {
	r.RLock()
	defer r.RUnlock()

	return len(r.packages)
}
