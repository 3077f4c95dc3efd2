package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/woxQAQ/snapc/internal/testutil"
)

const validManifest = `name: fake
version: 1.0.0
description: Test compiler
wasm:
  file: compiler.wasm
`

// writePackage creates a compiler package directory under root.
func writePackage(t *testing.T, root, dir, manifest string, wasmBytes []byte) string {
	t.Helper()

	pkgDir := filepath.Join(root, dir)
	if err := os.MkdirAll(pkgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if manifest != "" {
		if err := os.WriteFile(filepath.Join(pkgDir, ManifestFile), []byte(manifest), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if wasmBytes != nil {
		if err := os.WriteFile(filepath.Join(pkgDir, "compiler.wasm"), wasmBytes, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return pkgDir
}

func writeValidPackage(t *testing.T, root string) string {
	t.Helper()
	return writePackage(t, root, "fake", validManifest, testutil.CompilerWasm())
}
