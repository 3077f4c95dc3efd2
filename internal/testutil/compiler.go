package testutil

import "github.com/tetratelabs/wabin/leb128"

// Exports of the fake compiler beyond the standard compiler ABI. They let
// tests observe allocator state from the host.
const (
	ExportLiveAllocations = "live_allocations"
	ExportHeapTop         = "heap_top"
)

// Fixture constants.
const (
	// HeapBase is where the bump allocator starts and returns to once every
	// allocation has been freed.
	HeapBase = 1024

	// FakeVersion is returned by the version export.
	FakeVersion = 7

	// HeaderSize is the length of the snapshot header.
	HeaderSize = 4
)

// SnapshotMagic prefixes every snapshot produced by the fake compiler.
var SnapshotMagic = []byte("SNP")

// Names maps compiler ABI roles to export names.
type Names struct {
	Memory  string
	Malloc  string
	Free    string
	Version string
	Compile string
}

// DefaultNames returns the export names of the standard compiler ABI.
func DefaultNames() Names {
	return Names{
		Memory:  "memory",
		Malloc:  "malloc",
		Free:    "free",
		Version: "compiler_version",
		Compile: "compile",
	}
}

// Opcodes used by the fixture bodies.
const (
	opUnreachable = 0x00
	opBlock       = 0x02
	opLoop        = 0x03
	opIf          = 0x04
	opEnd         = 0x0b
	opBr          = 0x0c
	opBrIf        = 0x0d
	opReturn      = 0x0f
	opCall        = 0x10
	opLocalGet    = 0x20
	opLocalSet    = 0x21
	opGlobalGet   = 0x23
	opGlobalSet   = 0x24
	opI32Load8U   = 0x2d
	opI32Store8   = 0x3a
	opMemorySize  = 0x3f
	opMemoryGrow  = 0x40
	opI32Const    = 0x41
	opI32Eqz      = 0x45
	opI32Eq       = 0x46
	opI32GtU      = 0x4b
	opI32GeU      = 0x4f
	opI32Add      = 0x6a
	opI32Sub      = 0x6b
	opI32And      = 0x71
	opI32Or       = 0x72
	opI32Shl      = 0x74
	opI32ShrU     = 0x76
	blockVoid     = 0x40
)

// Global indices.
const (
	globalHeap = 0
	globalLive = 1
)

// CompilerWasm returns the fake compiler with the standard export names.
//
// The fake behaves like a real compiler at the bridge boundary:
//   - malloc is a bump allocator; when the number of live allocations drops
//     to zero the heap is reset to HeapBase.
//   - compile writes "SNP", a flags byte (bit 0 global, bit 1 strict), then
//     the input bytes. It returns 0 when the input contains ':' (a syntax
//     error) or when the output capacity is too small, and traps on a NUL
//     input byte.
//   - compile reports every call through the imported env.log_message.
func CompilerWasm() []byte {
	return CompilerWasmWithNames(DefaultNames())
}

// CompilerWasmWithNames returns the fake compiler exporting the given names.
// An empty name omits that export.
func CompilerWasmWithNames(n Names) []byte {
	b := newModuleBuilder(1, n.Memory)
	b.importFunc("env", "log_message", 3, 0)
	b.addGlobal(HeapBase) // globalHeap
	b.addGlobal(0)        // globalLive

	b.addFunc(n.Malloc, 1, 1, 1, mallocBody())
	b.addFunc(n.Free, 1, 0, 0, freeBody())
	b.addFunc(n.Version, 0, 1, 0, cat(i32Const(FakeVersion), []byte{opEnd}))
	b.addFunc(ExportLiveAllocations, 0, 1, 0, []byte{opGlobalGet, globalLive, opEnd})
	b.addFunc(ExportHeapTop, 0, 1, 0, []byte{opGlobalGet, globalHeap, opEnd})
	b.addFunc(n.Compile, 6, 1, 2, compileBody())

	return b.encode()
}

// EmptyWasm returns the smallest valid module: no imports, no exports.
func EmptyWasm() []byte {
	return newModuleBuilder(0, "").encode()
}

// ImportingWasm returns a module with a single function import and no
// exports.
func ImportingWasm(module, name string) []byte {
	b := newModuleBuilder(0, "")
	b.importFunc(module, name, 0, 0)
	return b.encode()
}

// malloc(size) -> ptr
func mallocBody() []byte {
	const size, ptr = 0, 1
	return cat(
		// ptr = heap
		[]byte{opGlobalGet, globalHeap, opLocalSet, ptr},
		// heap = (heap + size + 7) & -8
		[]byte{opGlobalGet, globalHeap, opLocalGet, size, opI32Add},
		i32Const(7), []byte{opI32Add},
		i32Const(-8), []byte{opI32And, opGlobalSet, globalHeap},
		// grow memory when heap passes the end of memory
		[]byte{opGlobalGet, globalHeap}, memoryBytes(), []byte{opI32GtU, opIf, blockVoid},
		[]byte{opGlobalGet, globalHeap}, memoryBytes(), []byte{opI32Sub},
		i32Const(65535), []byte{opI32Add},
		i32Const(16), []byte{opI32ShrU, opMemoryGrow, 0x00},
		i32Const(-1), []byte{opI32Eq, opIf, blockVoid},
		i32Const(0), []byte{opReturn, opEnd},
		[]byte{opEnd},
		// live++
		[]byte{opGlobalGet, globalLive}, i32Const(1), []byte{opI32Add, opGlobalSet, globalLive},
		[]byte{opLocalGet, ptr, opEnd},
	)
}

// free(ptr)
func freeBody() []byte {
	const ptr = 0
	return cat(
		[]byte{opLocalGet, ptr, opIf, blockVoid},
		// live--
		[]byte{opGlobalGet, globalLive}, i32Const(1), []byte{opI32Sub, opGlobalSet, globalLive},
		// reset the arena once nothing is live
		[]byte{opGlobalGet, globalLive, opI32Eqz, opIf, blockVoid},
		i32Const(HeapBase), []byte{opGlobalSet, globalHeap},
		[]byte{opEnd},
		[]byte{opEnd},
		[]byte{opEnd},
	)
}

// compile(in, len, global, strict, out, cap) -> written
func compileBody() []byte {
	const (
		in, length, isGlobal, isStrict, out, capacity = 0, 1, 2, 3, 4, 5
		i, b                                          = 6, 7
	)
	return cat(
		// log_message(0, in, len)
		i32Const(0), []byte{opLocalGet, in, opLocalGet, length, opCall, 0x00},
		// if len + 4 > cap: return 0
		[]byte{opLocalGet, length}, i32Const(HeaderSize), []byte{opI32Add, opLocalGet, capacity, opI32GtU, opIf, blockVoid},
		i32Const(0), []byte{opReturn, opEnd},
		// i = 0
		i32Const(0), []byte{opLocalSet, i},
		[]byte{opBlock, blockVoid, opLoop, blockVoid},
		// br_if done (i >= len)
		[]byte{opLocalGet, i, opLocalGet, length, opI32GeU, opBrIf, 1},
		// b = in[i]
		[]byte{opLocalGet, in, opLocalGet, i, opI32Add, opI32Load8U, 0x00, 0x00, opLocalSet, b},
		// NUL traps
		[]byte{opLocalGet, b, opI32Eqz, opIf, blockVoid, opUnreachable, opEnd},
		// ':' is a syntax error
		[]byte{opLocalGet, b}, i32Const(':'), []byte{opI32Eq, opIf, blockVoid},
		i32Const(0), []byte{opReturn, opEnd},
		// out[4+i] = b
		[]byte{opLocalGet, out, opLocalGet, i, opI32Add, opLocalGet, b, opI32Store8, 0x00, HeaderSize},
		// i++
		[]byte{opLocalGet, i}, i32Const(1), []byte{opI32Add, opLocalSet, i},
		[]byte{opBr, 0, opEnd, opEnd},
		// header
		store8(out, 0, SnapshotMagic[0]),
		store8(out, 1, SnapshotMagic[1]),
		store8(out, 2, SnapshotMagic[2]),
		[]byte{opLocalGet, out, opLocalGet, isGlobal, opLocalGet, isStrict}, i32Const(1),
		[]byte{opI32Shl, opI32Or, opI32Store8, 0x00, 3},
		// return len + 4
		[]byte{opLocalGet, length}, i32Const(HeaderSize), []byte{opI32Add, opEnd},
	)
}

// memoryBytes pushes memory.size * 65536.
func memoryBytes() []byte {
	return cat([]byte{opMemorySize, 0x00}, i32Const(16), []byte{opI32Shl})
}

func store8(base byte, offset byte, value byte) []byte {
	return cat([]byte{opLocalGet, base}, i32Const(int32(value)), []byte{opI32Store8, 0x00, offset})
}

func i32Const(v int32) []byte {
	return append([]byte{opI32Const}, leb128.EncodeInt32(v)...)
}

func cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
