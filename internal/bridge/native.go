// Package bridge marshals source programs into a native compiler's linear
// memory, invokes its compile entry point and copies the snapshot back out.
package bridge

import "context"

// NativeModule is the compiler module as seen by the bridge.
//
// Addresses are offsets into the module's linear memory. Allocate reports a
// null pointer as address 0. Compile returns the number of bytes written to
// the output buffer, 0 when nothing was produced.
//
// Implementations are not expected to be safe for concurrent use.
type NativeModule interface {
	Version(ctx context.Context) (uint32, error)
	Allocate(ctx context.Context, size uint32) (uint32, error)
	Free(ctx context.Context, addr uint32) error
	ReadMemory(addr, length uint32) ([]byte, bool)
	WriteMemory(addr uint32, data []byte) bool
	Compile(ctx context.Context, inAddr, inLen uint32, isGlobal, isStrict bool, outAddr, outCap uint32) (uint32, error)
}
