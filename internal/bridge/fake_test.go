package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
)

const fakeMemorySize = 1 << 20

var errTrap = errors.New("wasm error: unreachable")

// fakeNative is an in-process NativeModule. Its compile output is "SNP",
// a flags byte (bit 0 global, bit 1 strict) and the input bytes.
type fakeNative struct {
	memory  []byte
	heap    uint32
	live    map[uint32]uint32
	version uint32

	// High-water mark of the bump allocator.
	peak uint32

	// Ordered record of native operations.
	events []string

	// Last compile call.
	lastInput    []byte
	lastInLen    uint32
	lastGlobal   bool
	lastStrict   bool
	lastOutCap   uint32
	inputRegion  Region
	compileCalls int

	// Failure hooks.
	versionErr   error
	failAllocAt  int // 1-based allocation number that returns null, 0 disables
	allocErr     error
	freeErr      error
	failWrite    bool
	compileErr   error
	compilePanic any
	writtenDelta uint32 // added to the returned byte count
	allocCount   int
}

func newFakeNative() *fakeNative {
	return &fakeNative{
		memory:  make([]byte, fakeMemorySize),
		heap:    16,
		live:    make(map[uint32]uint32),
		version: 7,
	}
}

func (f *fakeNative) Version(ctx context.Context) (uint32, error) {
	if f.versionErr != nil {
		return 0, f.versionErr
	}
	return f.version, nil
}

func (f *fakeNative) Allocate(ctx context.Context, size uint32) (uint32, error) {
	f.allocCount++
	if f.allocErr != nil {
		return 0, f.allocErr
	}
	if f.allocCount == f.failAllocAt || uint64(f.heap)+uint64(size) > fakeMemorySize {
		f.events = append(f.events, "malloc-null")
		return 0, nil
	}
	addr := f.heap
	f.heap = (f.heap + size + 7) &^ 7
	if f.heap > f.peak {
		f.peak = f.heap
	}
	f.live[addr] = size
	f.events = append(f.events, fmt.Sprintf("malloc(%d)", size))
	return addr, nil
}

func (f *fakeNative) Free(ctx context.Context, addr uint32) error {
	size, ok := f.live[addr]
	if !ok {
		return fmt.Errorf("free of unallocated address %d", addr)
	}
	delete(f.live, addr)
	if len(f.live) == 0 {
		f.heap = 16
	}
	f.events = append(f.events, fmt.Sprintf("free(%d)", size))
	return f.freeErr
}

func (f *fakeNative) ReadMemory(addr, length uint32) ([]byte, bool) {
	if uint64(addr)+uint64(length) > uint64(len(f.memory)) {
		return nil, false
	}
	f.events = append(f.events, "read")
	return f.memory[addr : addr+length], true
}

func (f *fakeNative) WriteMemory(addr uint32, data []byte) bool {
	if f.failWrite || uint64(addr)+uint64(len(data)) > uint64(len(f.memory)) {
		return false
	}
	copy(f.memory[addr:], data)
	f.events = append(f.events, "write")
	return true
}

func (f *fakeNative) Compile(ctx context.Context, inAddr, inLen uint32, isGlobal, isStrict bool, outAddr, outCap uint32) (uint32, error) {
	f.compileCalls++
	f.events = append(f.events, "compile")
	f.lastInLen = inLen
	f.lastGlobal = isGlobal
	f.lastStrict = isStrict
	f.lastOutCap = outCap
	f.inputRegion = Region{Addr: inAddr, Size: f.live[inAddr]}
	f.lastInput = append([]byte(nil), f.memory[inAddr:inAddr+f.inputRegion.Size]...)

	if f.compilePanic != nil {
		panic(f.compilePanic)
	}
	if f.compileErr != nil {
		return 0, f.compileErr
	}

	src := f.memory[inAddr : inAddr+inLen]
	if bytes.IndexByte(src, 0) >= 0 {
		return 0, errTrap
	}
	if bytes.IndexByte(src, ':') >= 0 || inLen+4 > outCap {
		return 0, nil
	}

	flags := byte(0)
	if isGlobal {
		flags |= 1
	}
	if isStrict {
		flags |= 2
	}
	out := f.memory[outAddr:]
	copy(out, "SNP")
	out[3] = flags
	copy(out[4:], src)
	return inLen + 4 + f.writtenDelta, nil
}

// liveCount returns the number of outstanding allocations.
func (f *fakeNative) liveCount() int {
	return len(f.live)
}
