package bridge

import (
	"errors"
	"fmt"

	"github.com/woxQAQ/snapc/pkg/protocol"
)

// ErrNoSnapshot matches every NoSnapshotProducedError via errors.Is.
var ErrNoSnapshot = errors.New("no snapshot produced")

// InvalidInputTypeError occurs when the source is neither text nor bytes
type InvalidInputTypeError struct {
	Type string
}

func (e *InvalidInputTypeError) Error() string {
	return fmt.Sprintf("invalid source type %s: expected string or []byte", e.Type)
}

// InvalidEncodingError occurs when the source is not valid UTF-8
type InvalidEncodingError struct {
	Kind   protocol.SourceKind
	Offset int
}

func (e *InvalidEncodingError) Error() string {
	return fmt.Sprintf("%s source is not valid UTF-8 (offset %d)", e.Kind, e.Offset)
}

// EncodingMismatchError occurs when the encoder wrote a different number of
// bytes than it measured. It indicates a bug, not bad input.
type EncodingMismatchError struct {
	Expected int
	Actual   int
}

func (e *EncodingMismatchError) Error() string {
	return fmt.Sprintf("internal error: encoded %d bytes, expected %d", e.Actual, e.Expected)
}

// SourceTooLargeError occurs when the source does not fit a 32-bit length
type SourceTooLargeError struct {
	Size int
}

func (e *SourceTooLargeError) Error() string {
	return fmt.Sprintf("source of %d bytes exceeds the native address space", e.Size)
}

// NoSnapshotProducedError occurs when the compiler wrote zero bytes. A
// syntax error and an exhausted output buffer are indistinguishable here.
type NoSnapshotProducedError struct {
	InputLength    uint32
	Options        protocol.CompileOptions
	OutputCapacity uint32
}

func (e *NoSnapshotProducedError) Error() string {
	return fmt.Sprintf("no snapshot produced (input %d bytes, global=%t, strict=%t, capacity %d): syntax error or output too large",
		e.InputLength, e.Options.IsForGlobal, e.Options.IsStrict, e.OutputCapacity)
}

func (e *NoSnapshotProducedError) Is(target error) bool {
	return target == ErrNoSnapshot
}

// OutputWriteFailedError occurs when a compiled snapshot cannot be written
type OutputWriteFailedError struct {
	Path string
	Err  error
}

func (e *OutputWriteFailedError) Error() string {
	return fmt.Sprintf("failed to write snapshot to %s: %v", e.Path, e.Err)
}

func (e *OutputWriteFailedError) Unwrap() error {
	return e.Err
}

// AllocationError occurs when the native allocator fails or returns null
type AllocationError struct {
	Size uint32
	Err  error
}

func (e *AllocationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("native allocation of %d bytes failed: %v", e.Size, e.Err)
	}
	return fmt.Sprintf("native allocation of %d bytes returned null", e.Size)
}

func (e *AllocationError) Unwrap() error {
	return e.Err
}

// MemoryAccessError occurs when a region cannot be read or written
type MemoryAccessError struct {
	Op     string
	Addr   uint32
	Length uint32
}

func (e *MemoryAccessError) Error() string {
	return fmt.Sprintf("native memory %s out of range (addr=%d, len=%d)", e.Op, e.Addr, e.Length)
}

// NativeCallError wraps a failure inside the native module, such as a trap.
// Such failures are never retried.
type NativeCallError struct {
	Op  string
	Err error
}

func (e *NativeCallError) Error() string {
	return fmt.Sprintf("native %s failed: %v", e.Op, e.Err)
}

func (e *NativeCallError) Unwrap() error {
	return e.Err
}
