package compiler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/woxQAQ/snapc/internal/wasm"
)

// Loader handles loading compiler packages from disk.
type Loader struct {
	runtime      *wasm.Runtime
	moduleLoader *wasm.ModuleLoader
	logger       *zap.Logger
}

// NewLoader creates a new compiler loader.
func NewLoader(runtime *wasm.Runtime, logger *zap.Logger) *Loader {
	return &Loader{
		runtime:      runtime,
		moduleLoader: wasm.NewModuleLoader(runtime, logger),
		logger:       logger.With(zap.String("component", "compiler-loader")),
	}
}

// LoadCompiler loads a single compiler package from a directory.
func (l *Loader) LoadCompiler(ctx context.Context, dir string) (*Package, error) {
	l.logger.Debug("Loading compiler package", zap.String("dir", dir))

	// Parse manifest
	manifest, err := ParseManifest(dir)
	if err != nil {
		return nil, err
	}

	return l.load(ctx, manifest)
}

// LoadModuleFile loads a bare compiler .wasm file that follows the default
// export names. The compiler is named after the file.
func (l *Loader) LoadModuleFile(ctx context.Context, path string) (*Package, error) {
	manifest, err := moduleFileManifest(path)
	if err != nil {
		return nil, err
	}
	return l.load(ctx, manifest)
}

// moduleFileManifest describes a bare .wasm file as an unversioned package.
func moduleFileManifest(path string) (*Manifest, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	base := filepath.Base(abs)
	manifest := &Manifest{
		Name:    strings.TrimSuffix(base, filepath.Ext(base)),
		Version: "unversioned",
		Wasm:    WasmConfig{File: base},
		dir:     filepath.Dir(abs),
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, &CompilerLoadError{CompilerName: manifest.Name, WasmPath: abs, Err: err}
	}
	return manifest, nil
}

func (l *Loader) load(ctx context.Context, manifest *Manifest) (*Package, error) {
	wasmPath := manifest.WasmPath()
	l.logger.Info("Loading compiler",
		zap.String("name", manifest.Name),
		zap.String("version", manifest.Version),
		zap.String("wasm", wasmPath),
	)

	// Modules are cached by path so same-named files never share a compile.
	compiled, err := l.moduleLoader.LoadModuleFromFile(ctx, wasmPath, wasmPath)
	if err != nil {
		return nil, &CompilerLoadError{
			CompilerName: manifest.Name,
			WasmPath:     wasmPath,
			Err:          err,
		}
	}

	pkg := &Package{
		Manifest: manifest,
		Compiled: compiled,
		LoadedAt: time.Now(),
	}

	l.logger.Info("Compiler loaded successfully",
		zap.String("name", manifest.Name),
		zap.Int64("size_bytes", compiled.SizeBytes),
	)

	return pkg, nil
}

// Discover scans directories for compiler packages. Every subdirectory is
// loaded as a package; missing paths are skipped.
func (l *Loader) Discover(ctx context.Context, paths []string) ([]*Package, error) {
	var pkgs []*Package
	var errs error

	for _, basePath := range paths {
		l.logger.Debug("Scanning compiler directory", zap.String("path", basePath))

		// Read subdirectories
		entries, err := os.ReadDir(basePath)
		if err != nil {
			if os.IsNotExist(err) {
				l.logger.Warn("Compiler path does not exist", zap.String("path", basePath))
				continue
			}
			return nil, fmt.Errorf("failed to read directory '%s': %w", basePath, err)
		}

		// Try to load each subdirectory as a compiler package
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}

			pkgDir := filepath.Join(basePath, entry.Name())

			pkg, err := l.LoadCompiler(ctx, pkgDir)
			if err != nil {
				l.logger.Error("Failed to load compiler",
					zap.String("dir", pkgDir),
					zap.Error(err),
				)
				errs = multierr.Append(errs, err)
				continue
			}

			pkgs = append(pkgs, pkg)
		}
	}

	// If we found some compilers but had errors, log warning but continue
	if len(pkgs) > 0 && errs != nil {
		l.logger.Warn("Some compilers failed to load",
			zap.Int("loaded", len(pkgs)),
			zap.Int("failed", len(multierr.Errors(errs))),
		)
	}

	// If no compilers loaded, return error
	if len(pkgs) == 0 {
		l.logger.Debug("No compilers loaded", zap.Error(errs))
		return nil, &NoCompilersFoundError{Paths: paths, Err: errs}
	}

	return pkgs, nil
}
