package wasm

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestNewRuntime(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatalf("Failed to create runtime: %v", err)
	}

	if runtime == nil {
		t.Fatal("Runtime is nil")
	}

	// Cleanup
	if err := runtime.Close(context.Background()); err != nil {
		t.Errorf("Failed to close runtime: %v", err)
	}
}

func TestRuntimeCloseIdempotent(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}

	// Close multiple times should not error.
	if err := runtime.Close(ctx); err != nil {
		t.Errorf("First close failed: %v", err)
	}
	if err := runtime.Close(ctx); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
}

func TestDefaultRuntimeConfig(t *testing.T) {
	config := DefaultRuntimeConfig()

	if config.MemoryPages != 65536 {
		t.Errorf("Default memory pages = %d, want 65536", config.MemoryPages)
	}

	if config.DebugEnabled {
		t.Error("Debug should be disabled by default")
	}

	if config.CacheDir != "" {
		t.Errorf("Default cache dir = %q, want empty", config.CacheDir)
	}

	if config.MaxInstances != 16 {
		t.Errorf("Default max instances = %d, want 16", config.MaxInstances)
	}
}

func TestRuntimeConfiguration(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	config := &RuntimeConfig{
		MemoryPages:  128,
		DebugEnabled: true,
		MaxInstances: 50,
	}

	runtime, err := NewRuntime(ctx, logger, config)
	if err != nil {
		t.Fatalf("Failed to create runtime: %v", err)
	}
	defer runtime.Close(ctx)

	if runtime.config.MemoryPages != 128 {
		t.Errorf("Memory pages not set correctly")
	}
}

func TestRuntimeCompilationCacheDir(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	config := DefaultRuntimeConfig()
	config.CacheDir = t.TempDir()

	runtime, err := NewRuntime(ctx, logger, config)
	if err != nil {
		t.Fatalf("Failed to create runtime: %v", err)
	}

	if runtime.cache == nil {
		t.Error("Compilation cache should be set when CacheDir is configured")
	}

	if err := runtime.Close(ctx); err != nil {
		t.Errorf("Failed to close runtime: %v", err)
	}
}

func TestRuntimeContextCancellation(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx, cancel := context.WithCancel(context.Background())

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}

	// Cancel context.
	cancel()

	// Close with cancelled context.
	err = runtime.Close(ctx)
	// wazero should handle cancelled context gracefully
	if err != nil && !errors.Is(err, context.Canceled) {
		t.Errorf("Unexpected error when closing with cancelled context: %v", err)
	}
}

func TestRuntimeModuleCache(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer runtime.Close(ctx)

	// Test storing and retrieving compiled modules.
	module := &CompiledModule{
		Name:       "test-module",
		Source:     "test",
		SizeBytes:  1024,
		CompiledAt: time.Now().Unix(),
	}

	runtime.StoreCompiledModule(module)

	retrieved, ok := runtime.GetCompiledModule("test-module")
	if !ok {
		t.Fatal("Failed to retrieve module from cache")
	}

	if retrieved.Name != "test-module" {
		t.Errorf("Retrieved wrong module: %s", retrieved.Name)
	}
}

func TestRuntimeInstanceTracking(t *testing.T) {
	ctx := context.Background()
	runtime, instance, compiler := newTestCompiler(t)

	if instance.ID == "" {
		t.Fatal("Instance ID should be generated")
	}

	if n := runtime.InstanceCount(); n != 1 {
		t.Errorf("InstanceCount() = %d, want 1", n)
	}

	// Closing the instance stops tracking it.
	if err := compiler.Close(ctx); err != nil {
		t.Fatalf("Failed to close instance: %v", err)
	}

	if n := runtime.InstanceCount(); n != 0 {
		t.Errorf("InstanceCount() = %d, want 0", n)
	}

	// A second close is a no-op.
	if err := instance.Close(ctx); err != nil {
		t.Errorf("Second Close() = %v, want nil", err)
	}
}

func TestRuntimeIsClosed(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}

	if runtime.IsClosed() {
		t.Error("Runtime should not be closed initially")
	}

	runtime.Close(ctx)

	if !runtime.IsClosed() {
		t.Error("Runtime should be closed after Close()")
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "compilation",
			err:  &CompilationError{ModuleName: "test", Err: &testError{}},
			want: "failed to compile Wasm module 'test': test error",
		},
		{
			name: "instantiation",
			err:  &InstantiationError{ModuleName: "test", InstanceID: "inst-1", Err: &testError{}},
			want: "failed to instantiate module 'test' (instance: inst-1): test error",
		},
		{
			name: "module not found",
			err:  &ModuleNotFoundError{ModuleName: "test"},
			want: "module 'test' not found in cache",
		},
		{
			name: "function not found",
			err:  &FunctionNotFoundError{ModuleName: "test", FunctionName: "compile"},
			want: "function 'compile' not found in module 'test'",
		},
		{
			name: "memory not found",
			err:  &MemoryNotFoundError{ModuleName: "test", MemoryName: "memory"},
			want: "memory 'memory' not exported by module 'test'",
		},
		{
			name: "memory access",
			err:  &MemoryAccessError{Operation: "read", Address: 8, Length: 4},
			want: "memory access out of range (op=read, addr=8, len=4)",
		},
		{
			name: "allocation",
			err:  &AllocationError{Size: 16},
			want: "guest malloc(16) returned null",
		},
		{
			name: "call",
			err:  &CallError{FunctionName: "compile", Err: &testError{}},
			want: "call to 'compile' failed: test error",
		},
		{
			name: "instance limit",
			err:  &InstanceLimitError{Limit: 2},
			want: "instance limit reached (2 live instances)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error message = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := &testError{}

	var target *testError
	if !errors.As(&CallError{FunctionName: "compile", Err: inner}, &target) {
		t.Error("CallError should unwrap to its cause")
	}
	if !errors.As(&CompilationError{ModuleName: "m", Err: inner}, &target) {
		t.Error("CompilationError should unwrap to its cause")
	}
}

func TestABIWithDefaults(t *testing.T) {
	abi := ABI{Compile: "qjs_compile"}.WithDefaults()

	if abi.Compile != "qjs_compile" {
		t.Errorf("Compile = %s, want qjs_compile", abi.Compile)
	}
	if abi.Malloc != ExportMalloc || abi.Free != ExportFree {
		t.Errorf("Allocator exports not defaulted: %+v", abi)
	}
	if abi.Memory != ExportMemory || abi.Version != ExportVersion {
		t.Errorf("Memory/version exports not defaulted: %+v", abi)
	}
}

// testError is a simple error for testing.
type testError struct{}

func (e *testError) Error() string {
	return "test error"
}
