package compiler

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

func newTestPackage(name string) *Package {
	return &Package{
		Manifest: &Manifest{
			Name:    name,
			Version: "1.0.0",
			dir:     "/tmp/" + name,
		},
	}
}

func TestRegistry_Register(t *testing.T) {
	registry := NewRegistry(zap.NewNop())

	err := registry.Register(newTestPackage("qjs"))
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	// Check count
	if registry.Count() != 1 {
		t.Errorf("expected count 1, got %d", registry.Count())
	}
}

func TestRegistry_Duplicate(t *testing.T) {
	registry := NewRegistry(zap.NewNop())

	// Register first package
	err := registry.Register(newTestPackage("qjs"))
	if err != nil {
		t.Fatalf("First Register() failed: %v", err)
	}

	// Try to register duplicate
	err = registry.Register(newTestPackage("qjs"))
	if err == nil {
		t.Fatal("Register() should fail for duplicate compiler")
	}

	conflict, ok := err.(*CompilerConflictError)
	if !ok {
		t.Fatalf("expected CompilerConflictError, got %T", err)
	}
	if conflict.RegisteredPath != conflict.Path {
		t.Errorf("re-registering one package should report a single path, got %s and %s",
			conflict.RegisteredPath, conflict.Path)
	}
}

func TestRegistry_Get(t *testing.T) {
	registry := NewRegistry(zap.NewNop())

	// Try to get before registering
	_, ok := registry.Get("qjs")
	if ok {
		t.Error("Get() should return false for non-existent compiler")
	}

	registry.Register(newTestPackage("qjs"))

	retrieved, ok := registry.Get("qjs")
	if !ok {
		t.Fatal("Get() should return true for existing compiler")
	}

	if retrieved.Name() != "qjs" {
		t.Errorf("expected name 'qjs', got '%s'", retrieved.Name())
	}

	if retrieved.Version() != "1.0.0" {
		t.Errorf("expected version '1.0.0', got '%s'", retrieved.Version())
	}
}

func TestRegistry_NamesAndList(t *testing.T) {
	registry := NewRegistry(zap.NewNop())

	for _, name := range []string{"qjs", "bellard", "aot"} {
		registry.Register(newTestPackage(name))
	}

	want := []string{"aot", "bellard", "qjs"}
	if diff := cmp.Diff(want, registry.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}

	var listed []string
	for _, pkg := range registry.List() {
		listed = append(listed, pkg.Name())
	}
	if diff := cmp.Diff(want, listed); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
}
