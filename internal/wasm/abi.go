package wasm

// Compiler module exports
const (
	// ExportMemory is the linear memory shared with the host.
	ExportMemory = "memory"

	// ExportMalloc allocates memory in Wasm linear memory.
	// Signature: malloc(size: i32) -> i32 (pointer, 0 on failure)
	ExportMalloc = "malloc"

	// ExportFree frees memory in Wasm linear memory.
	// Signature: free(ptr: i32) -> void
	ExportFree = "free"

	// ExportVersion reports the compiler version.
	// Signature: compiler_version() -> i32
	ExportVersion = "compiler_version"

	// ExportCompile compiles the source at in_ptr into the buffer at out_ptr.
	// Signature: compile(in_ptr, in_len, is_global, is_strict, out_ptr, out_cap: i32) -> i32
	// Returns: bytes written, 0 when no snapshot was produced
	ExportCompile = "compile"

	// ExportInitialize is the reactor initializer, called once when present.
	ExportInitialize = "_initialize"
)

// Host import module
const (
	// ImportModuleEnv is the import module name for snapc host functions.
	ImportModuleEnv = "env"

	// ImportLogMessage lets the compiler log through the host logger.
	// Signature: log_message(level, ptr, len: i32)
	ImportLogMessage = "log_message"
)

// ABI names the exports a compiler module provides. Builds that prefix or
// rename their exports override the defaults through the package manifest.
type ABI struct {
	Memory  string `yaml:"memory"`
	Malloc  string `yaml:"malloc"`
	Free    string `yaml:"free"`
	Version string `yaml:"version"`
	Compile string `yaml:"compile"`
}

// DefaultABI returns the standard export names.
func DefaultABI() ABI {
	return ABI{
		Memory:  ExportMemory,
		Malloc:  ExportMalloc,
		Free:    ExportFree,
		Version: ExportVersion,
		Compile: ExportCompile,
	}
}

// WithDefaults fills empty names from DefaultABI.
func (a ABI) WithDefaults() ABI {
	d := DefaultABI()
	if a.Memory == "" {
		a.Memory = d.Memory
	}
	if a.Malloc == "" {
		a.Malloc = d.Malloc
	}
	if a.Free == "" {
		a.Free = d.Free
	}
	if a.Version == "" {
		a.Version = d.Version
	}
	if a.Compile == "" {
		a.Compile = d.Compile
	}
	return a
}

// functions lists the exported function names in a stable order.
func (a ABI) functions() []string {
	return []string{a.Malloc, a.Free, a.Version, a.Compile}
}
