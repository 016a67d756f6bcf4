// Package buffers provides GPU buffer wrappers and the per-frame handlers that
// shuttle uniform, storage, and push-constant data into them. Handlers track a
// dirty status so unchanged frames skip both the copy and the upload.
package buffers

import (
	"unsafe"

	"github.com/flint3d/flint-go/engine/renderer/device"
)

// Status describes a handler's (or buffer's) dirty state across frames.
type Status int

const (
	// StatusReset marks a handler whose backing storage must be recreated
	// before the next use.
	StatusReset Status = iota

	// StatusChanged marks a handler whose contents were written this frame
	// and still need to reach the device.
	StatusChanged

	// StatusNormal marks a handler whose contents are unchanged.
	StatusNormal

	// StatusOverflow marks a handler that was pushed past its capacity.
	StatusOverflow
)

// String returns a short lowercase name for the status.
func (s Status) String() string {
	switch s {
	case StatusReset:
		return "reset"
	case StatusChanged:
		return "changed"
	case StatusNormal:
		return "normal"
	case StatusOverflow:
		return "overflow"
	default:
		return "unknown"
	}
}

// Buffer wraps one device allocation with map, flush, and lifetime management.
// Creation requests a persistent mapping; whether the allocator honors it is
// queried once and cached, so Map and Unmap behave correctly on both kinds of
// memory without the caller branching.
type Buffer struct {
	alloc      device.Allocator
	handle     device.Allocation
	size       uint64
	mapped     []byte
	persistent bool
	coherent   bool
}

// NewBuffer allocates a buffer and optionally uploads initial contents. When
// data is non-nil it is copied through a mapping, flushed if the memory is not
// coherent, and unmapped again unless the mapping is persistent.
//
// Parameters:
//   - alloc: the device allocator
//   - size: the buffer size in bytes, must be greater than zero
//   - usage: the buffer usage flags
//   - memory: the memory heap selector
//   - flags: extra allocation flags, typically AllocationFlagPersistentMap
//   - data: optional initial contents, at most size bytes are uploaded
//
// Returns:
//   - *Buffer: the new buffer
//   - error: non-nil if allocation or the initial upload fails
func NewBuffer(alloc device.Allocator, size uint64, usage device.BufferUsage, memory device.MemoryUsage, flags device.AllocationFlags, data []byte) (*Buffer, error) {
	handle, err := alloc.Allocate(device.AllocationCreateInfo{
		Size:   size,
		Usage:  usage,
		Memory: memory,
		Flags:  flags,
	})
	if err != nil {
		return nil, err
	}
	b := &Buffer{
		alloc:      alloc,
		handle:     handle,
		size:       size,
		persistent: alloc.IsPersistentlyMapped(handle),
		coherent:   alloc.IsCoherent(handle),
	}
	if data != nil {
		m, err := b.Map()
		if err != nil {
			alloc.Destroy(handle)
			return nil, err
		}
		copy(m, data)
		if err := b.Flush(); err != nil {
			alloc.Destroy(handle)
			return nil, err
		}
		b.Unmap()
	}
	return b, nil
}

// Map returns a writable view of the buffer's bytes, reusing the existing view
// when the buffer is already mapped.
//
// Returns:
//   - []byte: the mapped bytes
//   - error: non-nil if the memory is not host-visible or the buffer was released
func (b *Buffer) Map() ([]byte, error) {
	if b.mapped != nil {
		return b.mapped, nil
	}
	m, err := b.alloc.Map(b.handle)
	if err != nil {
		return nil, err
	}
	b.mapped = m
	return m, nil
}

// Unmap releases the current mapping. For persistently mapped buffers the view
// stays valid and this is a no-op.
func (b *Buffer) Unmap() {
	if b.persistent {
		return
	}
	b.alloc.Unmap(b.handle)
	b.mapped = nil
}

// Flush makes host writes visible to the device. On coherent memory this is a
// no-op.
//
// Returns:
//   - error: non-nil if the buffer was released
func (b *Buffer) Flush() error {
	if b.coherent {
		return nil
	}
	return b.alloc.Flush(b.handle)
}

// Invalidate makes device writes visible to the host. On coherent memory this
// is a no-op.
//
// Returns:
//   - error: non-nil if the buffer was released
func (b *Buffer) Invalidate() error {
	if b.coherent {
		return nil
	}
	return b.alloc.Invalidate(b.handle)
}

// Size returns the buffer size in bytes.
//
// Returns:
//   - uint64: the size
func (b *Buffer) Size() uint64 {
	return b.size
}

// Handle returns the underlying allocation handle for bind group creation.
//
// Returns:
//   - device.Allocation: the allocation handle
func (b *Buffer) Handle() device.Allocation {
	return b.handle
}

// IsPersistentlyMapped reports whether the buffer keeps a lifetime mapping.
//
// Returns:
//   - bool: true if the mapping outlives individual Map/Unmap pairs
func (b *Buffer) IsPersistentlyMapped() bool {
	return b.persistent
}

// Release destroys the allocation. The buffer must not be used afterwards;
// releasing twice is a no-op.
func (b *Buffer) Release() {
	if !b.handle.Valid() {
		return
	}
	b.alloc.Destroy(b.handle)
	b.handle = device.Allocation{}
	b.mapped = nil
}

// valueBytes reinterprets a value as its in-memory byte representation. The
// caller keeps the value alive for the duration of use; handlers copy the
// bytes immediately.
func valueBytes[T any](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), unsafe.Sizeof(*v))
}

// clampPushSize limits a write to the declared member size, so pushing a type
// larger than the shader-side declaration cannot stomp the next member.
func clampPushSize(declared uint32, actual int) uint32 {
	if declared == 0 || uint32(actual) < declared {
		return uint32(actual)
	}
	return declared
}
