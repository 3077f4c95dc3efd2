package bridge

import (
	"context"

	"github.com/woxQAQ/snapc/pkg/protocol"
)

// invokeCompile makes exactly one native compile call. The returned count
// is authoritative.
func invokeCompile(ctx context.Context, native NativeModule, in Region, inLen uint32, opts protocol.CompileOptions, out Region) (uint32, error) {
	written, err := native.Compile(ctx, in.Addr, inLen, opts.IsForGlobal, opts.IsStrict, out.Addr, out.Size)
	if err != nil {
		return 0, &NativeCallError{Op: "compile", Err: err}
	}
	return written, nil
}

// readResult copies the snapshot out of the output region. It must run
// before the region is freed.
func readResult(native NativeModule, out Region, written, inLen uint32, opts protocol.CompileOptions) ([]byte, error) {
	if written == 0 {
		return nil, &NoSnapshotProducedError{InputLength: inLen, Options: opts, OutputCapacity: out.Size}
	}
	if written > out.Size {
		return nil, &MemoryAccessError{Op: "read", Addr: out.Addr, Length: written}
	}

	view, ok := native.ReadMemory(out.Addr, written)
	if !ok {
		return nil, &MemoryAccessError{Op: "read", Addr: out.Addr, Length: written}
	}
	snapshot := make([]byte, written)
	copy(snapshot, view)
	return snapshot, nil
}

// fill copies data into a region.
func fill(native NativeModule, r Region, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if !native.WriteMemory(r.Addr, data) {
		return &MemoryAccessError{Op: "write", Addr: r.Addr, Length: uint32(len(data))}
	}
	return nil
}
