package compiler

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/woxQAQ/snapc/internal/wasm"
)

// ManifestFile is the manifest name inside a compiler package directory.
const ManifestFile = "compiler.yaml"

// Manifest represents the compiler.yaml structure.
type Manifest struct {
	Name        string     `yaml:"name"`
	Version     string     `yaml:"version"`
	Description string     `yaml:"description"`
	Wasm        WasmConfig `yaml:"wasm"`
	Exports     wasm.ABI   `yaml:"exports"`
	Author      string     `yaml:"author"`
	License     string     `yaml:"license"`

	// Output region capacity in bytes. Zero defers to configuration.
	OutputCapacity int64 `yaml:"output_capacity"`

	// Internal fields
	dir string // Directory containing manifest
}

// WasmConfig holds Wasm module configuration.
type WasmConfig struct {
	File string `yaml:"file"`
}

// ParseManifest reads and parses compiler.yaml from a directory.
func ParseManifest(dir string) (*Manifest, error) {
	manifestPath := filepath.Join(dir, ManifestFile)

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, &ManifestError{Path: manifestPath, Err: err}
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &ManifestError{Path: manifestPath, Err: err}
	}

	m.dir = dir

	// Validate manifest
	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks manifest fields.
func (m *Manifest) Validate() error {
	// Check required fields
	if m.Name == "" {
		return &ManifestValidationError{
			Path:    m.Path(),
			Field:   "name",
			Message: "is required",
		}
	}

	if m.Version == "" {
		return &ManifestValidationError{
			Path:    m.Path(),
			Field:   "version",
			Message: "is required",
		}
	}

	if m.Wasm.File == "" {
		return &ManifestValidationError{
			Path:    m.Path(),
			Field:   "wasm.file",
			Message: "is required",
		}
	}

	if m.OutputCapacity < 0 || m.OutputCapacity > math.MaxUint32 {
		return &ManifestValidationError{
			Path:    m.Path(),
			Field:   "output_capacity",
			Message: fmt.Sprintf("%d is out of range (0-%d)", m.OutputCapacity, uint32(math.MaxUint32)),
		}
	}

	// Every export role needs its own function
	abi := m.Exports.WithDefaults()
	roles := make(map[string][]string)
	for _, binding := range []struct{ role, export string }{
		{"malloc", abi.Malloc},
		{"free", abi.Free},
		{"version", abi.Version},
		{"compile", abi.Compile},
	} {
		roles[binding.export] = append(roles[binding.export], binding.role)
		if r := roles[binding.export]; len(r) > 1 {
			return &ExportConflictError{Path: m.Path(), Export: binding.export, Roles: r}
		}
	}

	if _, err := os.Stat(m.WasmPath()); os.IsNotExist(err) {
		return &ManifestValidationError{
			Path:    m.Path(),
			Field:   "wasm.file",
			Message: fmt.Sprintf("names missing module %s", m.WasmPath()),
		}
	}

	return nil
}

// Path returns the manifest file path.
func (m *Manifest) Path() string {
	return filepath.Join(m.dir, ManifestFile)
}

// WasmPath returns the cleaned absolute path of the Wasm file. Compiled
// modules are cached under it.
func (m *Manifest) WasmPath() string {
	path := m.Wasm.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(m.dir, path)
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// Dir returns the directory containing the manifest.
func (m *Manifest) Dir() string {
	return m.dir
}

// ManifestError reports a compiler.yaml that could not be read or decoded.
// A missing manifest matches fs.ErrNotExist.
type ManifestError struct {
	Path string
	Err  error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("compiler manifest %s: %v", e.Path, e.Err)
}

func (e *ManifestError) Unwrap() error {
	return e.Err
}

// ManifestValidationError names the manifest field that failed validation.
type ManifestValidationError struct {
	Path    string
	Field   string
	Message string
}

func (e *ManifestValidationError) Error() string {
	return fmt.Sprintf("compiler manifest %s: %s %s", e.Path, e.Field, e.Message)
}

// ExportConflictError occurs when one export is bound to several ABI roles.
type ExportConflictError struct {
	Path   string
	Export string
	Roles  []string
}

func (e *ExportConflictError) Error() string {
	return fmt.Sprintf("compiler manifest %s: export %q is bound to %s",
		e.Path, e.Export, strings.Join(e.Roles, " and "))
}
