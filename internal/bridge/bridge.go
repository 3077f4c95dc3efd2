package bridge

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/woxQAQ/snapc/pkg/protocol"
)

// DefaultOutputCapacity is the size of the output region allocated for
// every compile call.
const DefaultOutputCapacity = 512 * 1024

// Config holds bridge configuration.
type Config struct {
	// Compiler name reported by Identity.
	Name string

	// Output region capacity in bytes. Zero selects DefaultOutputCapacity.
	// The region is never grown: a snapshot that does not fit surfaces as
	// NoSnapshotProducedError.
	OutputCapacity uint32
}

// Bridge compiles source programs through a NativeModule.
//
// Every call owns its input and output regions and frees both before
// returning. A Bridge does not serialize callers; concurrent calls on the
// same NativeModule must be prevented by the embedder.
type Bridge struct {
	native   NativeModule
	name     string
	version  uint32
	capacity uint32
	logger   *zap.Logger
}

// New queries the compiler version once and returns a ready bridge.
func New(ctx context.Context, native NativeModule, cfg *Config, logger *zap.Logger) (*Bridge, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	version, err := native.Version(ctx)
	if err != nil {
		return nil, &NativeCallError{Op: "version", Err: err}
	}

	b := &Bridge{
		native:   native,
		name:     cfg.Name,
		version:  version,
		capacity: cfg.OutputCapacity,
		logger:   logger.With(zap.String("component", "bridge")),
	}
	if b.name == "" {
		b.name = "native"
	}
	if b.capacity == 0 {
		b.capacity = DefaultOutputCapacity
	}

	b.logger.Info("Bridge ready",
		zap.String("compiler", b.name),
		zap.Uint32("version", b.version),
		zap.Uint32("output_capacity", b.capacity),
	)

	return b, nil
}

// Identity returns a human-readable identity embedding the compiler version.
func (b *Bridge) Identity() string {
	return fmt.Sprintf("snapc bridge (compiler %s v%d)", b.name, b.version)
}

// Version returns the compiler version reported at construction.
func (b *Bridge) Version() uint32 {
	return b.version
}

// OutputCapacity returns the output region size used for every call.
func (b *Bridge) OutputCapacity() uint32 {
	return b.capacity
}

// CompileText encodes source as NUL-terminated UTF-8 and compiles it. When
// outputPath is not empty the snapshot is also written there.
func (b *Bridge) CompileText(ctx context.Context, source string, opts protocol.CompileOptions, outputPath string) ([]byte, error) {
	snap, err := b.CompileSnapshot(ctx, source, opts, outputPath)
	if err != nil {
		return nil, err
	}
	return snap.Data, nil
}

// CompileBytes compiles already encoded source. The bytes are copied
// verbatim without a terminator.
func (b *Bridge) CompileBytes(ctx context.Context, source []byte, opts protocol.CompileOptions, outputPath string) ([]byte, error) {
	snap, err := b.CompileSnapshot(ctx, source, opts, outputPath)
	if err != nil {
		return nil, err
	}
	return snap.Data, nil
}

// Compile accepts a string, a []byte or an io.Reader. Readers are drained
// and compiled as bytes.
func (b *Bridge) Compile(ctx context.Context, source any, opts protocol.CompileOptions, outputPath string) ([]byte, error) {
	snap, err := b.CompileSnapshot(ctx, source, opts, outputPath)
	if err != nil {
		return nil, err
	}
	return snap.Data, nil
}

// CompileSnapshot is Compile returning the snapshot with its metadata.
func (b *Bridge) CompileSnapshot(ctx context.Context, source any, opts protocol.CompileOptions, outputPath string) (*protocol.Snapshot, error) {
	var (
		data  []byte
		inLen uint32
		kind  protocol.SourceKind
		err   error
	)

	switch src := source.(type) {
	case string:
		kind = protocol.SourceKindText
		data, inLen, err = encodeText(src)
	case []byte:
		kind = protocol.SourceKindBytes
		data = src
		inLen, err = checkBytes(src)
	case io.Reader:
		kind = protocol.SourceKindBytes
		if data, err = io.ReadAll(src); err != nil {
			return nil, fmt.Errorf("failed to read source: %w", err)
		}
		inLen, err = checkBytes(data)
	default:
		return nil, &InvalidInputTypeError{Type: fmt.Sprintf("%T", source)}
	}
	if err != nil {
		return nil, err
	}

	start := time.Now()
	snapshot, err := b.run(ctx, data, inLen, opts)
	if err != nil {
		b.logger.Debug("Compile failed",
			zap.Stringer("kind", kind),
			zap.Uint32("input_length", inLen),
			zap.Error(err),
		)
		return nil, err
	}

	b.logger.Debug("Compiled snapshot",
		zap.Stringer("kind", kind),
		zap.Uint32("input_length", inLen),
		zap.Int("snapshot_size", len(snapshot)),
		zap.Duration("duration", time.Since(start)),
	)

	if outputPath != "" {
		if err := writeSnapshot(outputPath, snapshot); err != nil {
			return nil, err
		}
	}

	return &protocol.Snapshot{
		Data:    snapshot,
		Kind:    kind,
		Options: opts,
		Path:    outputPath,
	}, nil
}

// run performs one compile: acquire input, write it, acquire output,
// invoke, free input, copy the result, free output.
func (b *Bridge) run(ctx context.Context, data []byte, inLen uint32, opts protocol.CompileOptions) (snapshot []byte, err error) {
	var out *regionGuard
	defer func() {
		if releaseErr := out.release(ctx); releaseErr != nil {
			err = multierr.Append(err, releaseErr)
			snapshot = nil
		}
	}()

	var written uint32
	err = withRegion(ctx, b.native, uint32(len(data)), func(in Region) error {
		if err := fill(b.native, in, data); err != nil {
			return err
		}

		var err error
		if out, err = acquire(ctx, b.native, b.capacity); err != nil {
			return err
		}

		written, err = invokeCompile(ctx, b.native, in, inLen, opts, out.region)
		return err
	})
	if err != nil {
		return nil, err
	}

	return readResult(b.native, out.region, written, inLen, opts)
}
