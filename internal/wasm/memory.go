package wasm

import (
	"context"

	"github.com/tetratelabs/wazero/api"
)

// Memory provides memory operations for a compiler instance.
//
// Wasm linear memory is isolated from Go memory. Regions are obtained from
// the guest allocator through the malloc and free exports, and every access
// is bounds checked by wazero. Views returned by Read alias guest memory and
// are invalidated by the next guest call that grows memory.
type Memory struct {
	mem    api.Memory
	malloc api.Function
	free   api.Function
}

// NewMemory creates a memory helper bound to the instance's allocator.
func NewMemory(instance *Instance, abi ABI) *Memory {
	abi = abi.WithDefaults()
	return &Memory{
		mem:    instance.module.ExportedMemory(abi.Memory),
		malloc: instance.ExportedFunction(abi.Malloc),
		free:   instance.ExportedFunction(abi.Free),
	}
}

// Alloc reserves size bytes in guest memory. A null pointer from the guest
// allocator is reported as AllocationError.
func (m *Memory) Alloc(ctx context.Context, size uint32) (uint32, error) {
	results, err := m.malloc.Call(ctx, api.EncodeU32(size))
	if err != nil {
		return 0, &CallError{FunctionName: m.malloc.Definition().Name(), Err: err}
	}
	ptr := api.DecodeU32(results[0])
	if ptr == 0 {
		return 0, &AllocationError{Size: size}
	}
	return ptr, nil
}

// Free releases a region obtained from Alloc. Freeing zero is a no-op.
func (m *Memory) Free(ctx context.Context, ptr uint32) error {
	if ptr == 0 {
		return nil
	}
	if _, err := m.free.Call(ctx, api.EncodeU32(ptr)); err != nil {
		return &CallError{FunctionName: m.free.Definition().Name(), Err: err}
	}
	return nil
}

// Read returns a view of guest memory.
func (m *Memory) Read(ptr uint32, length uint32) ([]byte, bool) {
	return m.mem.Read(ptr, length)
}

// ReadCopy copies length bytes out of guest memory.
func (m *Memory) ReadCopy(ptr uint32, length uint32) ([]byte, error) {
	view, ok := m.mem.Read(ptr, length)
	if !ok {
		return nil, &MemoryAccessError{Operation: "read", Address: ptr, Length: length}
	}
	out := make([]byte, len(view))
	copy(out, view)
	return out, nil
}

// Write copies data into guest memory at ptr.
func (m *Memory) Write(ptr uint32, data []byte) bool {
	return m.mem.Write(ptr, data)
}

// Size returns the current memory size in bytes.
func (m *Memory) Size() uint32 {
	return m.mem.Size()
}
