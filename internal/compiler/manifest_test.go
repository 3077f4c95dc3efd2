package compiler

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/woxQAQ/snapc/internal/testutil"
	"github.com/woxQAQ/snapc/internal/wasm"
)

func TestParseManifest_Valid(t *testing.T) {
	dir := writeValidPackage(t, t.TempDir())

	manifest, err := ParseManifest(dir)
	if err != nil {
		t.Fatalf("ParseManifest() failed: %v", err)
	}

	if manifest.Name != "fake" {
		t.Errorf("expected Name 'fake', got '%s'", manifest.Name)
	}

	if manifest.Version != "1.0.0" {
		t.Errorf("expected Version '1.0.0', got '%s'", manifest.Version)
	}

	if manifest.Wasm.File != "compiler.wasm" {
		t.Errorf("expected Wasm.File 'compiler.wasm', got '%s'", manifest.Wasm.File)
	}

	if manifest.WasmPath() != filepath.Join(dir, "compiler.wasm") {
		t.Errorf("unexpected WasmPath '%s'", manifest.WasmPath())
	}

	if manifest.Path() != filepath.Join(dir, ManifestFile) {
		t.Errorf("unexpected Path '%s'", manifest.Path())
	}

	if manifest.OutputCapacity != 0 {
		t.Errorf("expected OutputCapacity 0, got %d", manifest.OutputCapacity)
	}
}

func TestParseManifest_Exports(t *testing.T) {
	manifest := validManifest + `exports:
  compile: qjs_compile
  malloc: qjs_malloc
output_capacity: 1024
`
	dir := writePackage(t, t.TempDir(), "fake", manifest, testutil.CompilerWasm())

	m, err := ParseManifest(dir)
	if err != nil {
		t.Fatalf("ParseManifest() failed: %v", err)
	}

	pkg := &Package{Manifest: m}
	abi := pkg.ABI()
	if abi.Compile != "qjs_compile" || abi.Malloc != "qjs_malloc" {
		t.Errorf("export overrides not applied: %+v", abi)
	}
	if abi.Free != wasm.ExportFree || abi.Memory != wasm.ExportMemory {
		t.Errorf("unset exports not defaulted: %+v", abi)
	}
	if pkg.OutputCapacity() != 1024 {
		t.Errorf("expected OutputCapacity 1024, got %d", pkg.OutputCapacity())
	}
}

func TestParseManifest_NotFound(t *testing.T) {
	_, err := ParseManifest(filepath.Join(t.TempDir(), "nonexistent"))
	if err == nil {
		t.Fatal("ParseManifest() should fail for nonexistent directory")
	}

	_, ok := err.(*ManifestError)
	if !ok {
		t.Errorf("expected ManifestError, got %T", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing manifest should match fs.ErrNotExist, got %v", err)
	}
}

func TestParseManifest_InvalidYAML(t *testing.T) {
	dir := writePackage(t, t.TempDir(), "bad", "name: [unclosed\n", nil)

	_, err := ParseManifest(dir)
	if err == nil {
		t.Fatal("ParseManifest() should fail for invalid YAML")
	}

	_, ok := err.(*ManifestError)
	if !ok {
		t.Errorf("expected ManifestError, got %T", err)
	}
	if errors.Is(err, fs.ErrNotExist) {
		t.Errorf("decode failure should not match fs.ErrNotExist")
	}
}

func TestParseManifest_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		field    string
	}{
		{
			name:     "missing name",
			manifest: "version: 1.0.0\nwasm:\n  file: compiler.wasm\n",
			field:    "name",
		},
		{
			name:     "missing version",
			manifest: "name: fake\nwasm:\n  file: compiler.wasm\n",
			field:    "version",
		},
		{
			name:     "missing wasm file",
			manifest: "name: fake\nversion: 1.0.0\n",
			field:    "wasm.file",
		},
		{
			name:     "negative capacity",
			manifest: validManifest + "output_capacity: -1\n",
			field:    "output_capacity",
		},
		{
			name:     "capacity overflows u32",
			manifest: validManifest + "output_capacity: 4294967296\n",
			field:    "output_capacity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writePackage(t, t.TempDir(), "pkg", tt.manifest, testutil.CompilerWasm())

			_, err := ParseManifest(dir)
			if err == nil {
				t.Fatal("ParseManifest() should fail")
			}

			validationErr, ok := err.(*ManifestValidationError)
			if !ok {
				t.Fatalf("expected ManifestValidationError, got %T", err)
			}

			if validationErr.Field != tt.field {
				t.Errorf("expected Field '%s', got '%s'", tt.field, validationErr.Field)
			}
		})
	}
}

func TestParseManifest_WasmNotFound(t *testing.T) {
	dir := writePackage(t, t.TempDir(), "pkg", validManifest, nil)

	_, err := ParseManifest(dir)
	if err == nil {
		t.Fatal("ParseManifest() should fail for missing Wasm file")
	}

	validationErr, ok := err.(*ManifestValidationError)
	if !ok {
		t.Fatalf("expected ManifestValidationError, got %T", err)
	}
	if validationErr.Field != "wasm.file" {
		t.Errorf("expected Field 'wasm.file', got '%s'", validationErr.Field)
	}
	if !strings.Contains(validationErr.Message, filepath.Join(dir, "compiler.wasm")) {
		t.Errorf("message should name the resolved module path, got %q", validationErr.Message)
	}
}

func TestParseManifest_ExportConflict(t *testing.T) {
	dir := writePackage(t, t.TempDir(), "pkg", validManifest+"exports:\n  free: malloc\n", testutil.CompilerWasm())

	_, err := ParseManifest(dir)

	conflict, ok := err.(*ExportConflictError)
	if !ok {
		t.Fatalf("expected ExportConflictError, got %T", err)
	}
	if conflict.Export != "malloc" {
		t.Errorf("expected Export 'malloc', got '%s'", conflict.Export)
	}
	if diff := cmp.Diff([]string{"malloc", "free"}, conflict.Roles); diff != "" {
		t.Errorf("Roles mismatch (-want +got):\n%s", diff)
	}
}

func TestParseManifest_AbsoluteWasmPath(t *testing.T) {
	root := t.TempDir()
	wasmDir := writePackage(t, root, "shared", "", testutil.CompilerWasm())
	wasmFile := filepath.Join(wasmDir, "compiler.wasm")

	dir := writePackage(t, root, "pkg", "name: fake\nversion: 1.0.0\nwasm:\n  file: "+wasmFile+"\n", nil)

	manifest, err := ParseManifest(dir)
	if err != nil {
		t.Fatalf("ParseManifest() failed: %v", err)
	}

	if manifest.WasmPath() != wasmFile {
		t.Errorf("expected WasmPath '%s', got '%s'", wasmFile, manifest.WasmPath())
	}
}
