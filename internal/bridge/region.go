package bridge

import (
	"context"

	"go.uber.org/multierr"
)

// Region is a byte range inside native linear memory.
type Region struct {
	Addr uint32
	Size uint32
}

// regionGuard owns one allocation and frees it at most once.
type regionGuard struct {
	native   NativeModule
	region   Region
	released bool
}

// acquire allocates size bytes. Zero-sized requests allocate one byte so
// the native side always receives a real address.
func acquire(ctx context.Context, native NativeModule, size uint32) (*regionGuard, error) {
	if size == 0 {
		size = 1
	}
	addr, err := native.Allocate(ctx, size)
	if err != nil {
		return nil, &AllocationError{Size: size, Err: err}
	}
	if addr == 0 {
		return nil, &AllocationError{Size: size}
	}
	return &regionGuard{native: native, region: Region{Addr: addr, Size: size}}, nil
}

// release frees the region. Later calls are no-ops.
func (g *regionGuard) release(ctx context.Context) error {
	if g == nil || g.released {
		return nil
	}
	g.released = true
	if err := g.native.Free(ctx, g.region.Addr); err != nil {
		return &NativeCallError{Op: "free", Err: err}
	}
	return nil
}

// withRegion allocates a region, runs fn and frees the region on every exit
// path, panics included. A free failure is combined with fn's error.
func withRegion(ctx context.Context, native NativeModule, size uint32, fn func(Region) error) (err error) {
	guard, err := acquire(ctx, native, size)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, guard.release(ctx))
	}()
	return fn(guard.region)
}
