package compiler

import (
	"fmt"
	"strings"
)

// CompilerLoadError reports a compiler module that could not be read,
// compiled or instantiated.
type CompilerLoadError struct {
	CompilerName string
	WasmPath     string
	Err          error
}

func (e *CompilerLoadError) Error() string {
	return fmt.Sprintf("failed to load compiler '%s' from %s: %v", e.CompilerName, e.WasmPath, e.Err)
}

func (e *CompilerLoadError) Unwrap() error {
	return e.Err
}

// CompilerNotFoundError lists the installed compilers when a name does not
// resolve.
type CompilerNotFoundError struct {
	CompilerName string
	Available    []string
}

func (e *CompilerNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("compiler '%s' not found (none installed)", e.CompilerName)
	}
	return fmt.Sprintf("compiler '%s' not found (installed: %s)", e.CompilerName, strings.Join(e.Available, ", "))
}

// CompilerConflictError occurs when a second module claims a registered
// compiler name.
type CompilerConflictError struct {
	CompilerName   string
	RegisteredPath string
	Path           string
}

func (e *CompilerConflictError) Error() string {
	if e.RegisteredPath == e.Path {
		return fmt.Sprintf("compiler '%s' from %s is already registered", e.CompilerName, e.Path)
	}
	return fmt.Sprintf("compiler '%s' from %s conflicts with %s registered under the same name",
		e.CompilerName, e.Path, e.RegisteredPath)
}

// NoCompilersFoundError occurs when discovery loads nothing. Err holds the
// combined failures of packages that were found but did not load.
type NoCompilersFoundError struct {
	Paths []string
	Err   error
}

func (e *NoCompilersFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("no compilers found in %v: %v", e.Paths, e.Err)
	}
	return fmt.Sprintf("no compilers found in %v", e.Paths)
}

func (e *NoCompilersFoundError) Unwrap() error {
	return e.Err
}
