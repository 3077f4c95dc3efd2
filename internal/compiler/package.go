package compiler

import (
	"time"

	"github.com/woxQAQ/snapc/internal/wasm"
)

// Package represents a loaded compiler package with its manifest and
// compiled Wasm module.
type Package struct {
	// Manifest is the parsed package metadata
	Manifest *Manifest

	// Compiled is the compiled Wasm module
	Compiled *wasm.CompiledModule

	// LoadedAt is the timestamp when the package was loaded
	LoadedAt time.Time
}

// Name returns the compiler name.
func (p *Package) Name() string {
	return p.Manifest.Name
}

// Version returns the package version.
func (p *Package) Version() string {
	return p.Manifest.Version
}

// ABI returns the export names the compiler module provides.
func (p *Package) ABI() wasm.ABI {
	return p.Manifest.Exports.WithDefaults()
}

// OutputCapacity returns the output capacity requested by the package, or
// zero when it defers to configuration.
func (p *Package) OutputCapacity() uint32 {
	return uint32(p.Manifest.OutputCapacity)
}
