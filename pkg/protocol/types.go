package protocol

// Shared value types for the snapshot compiler bridge.
// This package defines types used across internal packages and by embedders.

// SourceKind describes how a source program reached the bridge.
type SourceKind int

const (
	// SourceKindText is a Go string that the bridge encodes as UTF-8.
	SourceKindText SourceKind = iota + 1
	// SourceKindBytes is an already encoded byte sequence copied verbatim.
	SourceKindBytes
)

// String returns the kind name used in logs.
func (k SourceKind) String() string {
	switch k {
	case SourceKindText:
		return "text"
	case SourceKindBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// CompileOptions are passed unchanged to the native compile entry point.
type CompileOptions struct {
	// IsForGlobal compiles the program for global scope. False compiles it
	// for eval scope.
	IsForGlobal bool `json:"isForGlobal" yaml:"is_for_global"`

	// IsStrict compiles the program in strict mode.
	IsStrict bool `json:"isStrict" yaml:"is_strict"`
}

// DefaultCompileOptions returns global scope, non-strict.
func DefaultCompileOptions() CompileOptions {
	return CompileOptions{IsForGlobal: true, IsStrict: false}
}

// Snapshot is a compiled program owned by the host.
type Snapshot struct {
	Data    []byte         `json:"-"`
	Kind    SourceKind     `json:"kind"`
	Options CompileOptions `json:"options"`
	Path    string         `json:"path,omitempty"`
}

// Size returns the snapshot length in bytes.
func (s *Snapshot) Size() int {
	return len(s.Data)
}
