package wasm

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// CompilerModule binds an instance to the compiler ABI.
//
// A CompilerModule is not safe for concurrent use: the guest allocator and
// linear memory are shared by every call.
type CompilerModule struct {
	instance *Instance
	memory   *Memory
	abi      ABI
	logger   *zap.Logger

	version api.Function
	compile api.Function
}

// NewCompilerModule wraps an instance created with the same ABI.
func NewCompilerModule(instance *Instance, abi ABI, logger *zap.Logger) *CompilerModule {
	abi = abi.WithDefaults()
	return &CompilerModule{
		instance: instance,
		memory:   NewMemory(instance, abi),
		abi:      abi,
		logger:   logger.With(zap.String("component", "wasm-compiler"), zap.String("instance_id", instance.ID)),
		version:  instance.ExportedFunction(abi.Version),
		compile:  instance.ExportedFunction(abi.Compile),
	}
}

// Version calls the version export.
func (c *CompilerModule) Version(ctx context.Context) (uint32, error) {
	results, err := c.version.Call(ctx)
	if err != nil {
		return 0, &CallError{FunctionName: c.abi.Version, Err: err}
	}
	return api.DecodeU32(results[0]), nil
}

// Allocate reserves size bytes through the guest allocator.
func (c *CompilerModule) Allocate(ctx context.Context, size uint32) (uint32, error) {
	return c.memory.Alloc(ctx, size)
}

// Free releases an address returned by Allocate.
func (c *CompilerModule) Free(ctx context.Context, addr uint32) error {
	return c.memory.Free(ctx, addr)
}

// ReadMemory returns a view of guest memory.
func (c *CompilerModule) ReadMemory(addr, length uint32) ([]byte, bool) {
	return c.memory.Read(addr, length)
}

// WriteMemory copies data into guest memory.
func (c *CompilerModule) WriteMemory(addr uint32, data []byte) bool {
	return c.memory.Write(addr, data)
}

// Compile calls the compile export and returns the number of bytes written
// to the output buffer.
func (c *CompilerModule) Compile(ctx context.Context, inAddr, inLen uint32, isGlobal, isStrict bool, outAddr, outCap uint32) (uint32, error) {
	c.logger.Debug("Calling compile",
		zap.Uint32("in_len", inLen),
		zap.Bool("is_global", isGlobal),
		zap.Bool("is_strict", isStrict),
		zap.Uint32("out_cap", outCap),
	)

	results, err := c.compile.Call(ctx,
		api.EncodeU32(inAddr),
		api.EncodeU32(inLen),
		encodeBool(isGlobal),
		encodeBool(isStrict),
		api.EncodeU32(outAddr),
		api.EncodeU32(outCap),
	)
	if err != nil {
		return 0, &CallError{FunctionName: c.abi.Compile, Err: err}
	}
	return api.DecodeU32(results[0]), nil
}

// Close closes the underlying instance.
func (c *CompilerModule) Close(ctx context.Context) error {
	return c.instance.Close(ctx)
}

func encodeBool(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
