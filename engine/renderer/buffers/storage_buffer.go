package buffers

import (
	"github.com/flint3d/flint-go/engine/renderer/device"
)

// StorageBuffer is a host-visible, persistently mapped buffer bindable as a
// storage buffer.
type StorageBuffer struct {
	*Buffer
}

// NewStorageBuffer allocates a storage buffer in upload memory with a
// persistent mapping request, optionally seeded with initial contents.
//
// Parameters:
//   - alloc: the device allocator
//   - size: the buffer size in bytes
//   - data: optional initial contents
//
// Returns:
//   - *StorageBuffer: the new buffer
//   - error: non-nil if allocation fails
func NewStorageBuffer(alloc device.Allocator, size uint64, data []byte) (*StorageBuffer, error) {
	b, err := NewBuffer(alloc, size,
		device.BufferUsageStorage|device.BufferUsageTransferDst,
		device.MemoryUsageCPUToGPU,
		device.AllocationFlagPersistentMap,
		data)
	if err != nil {
		return nil, err
	}
	return &StorageBuffer{Buffer: b}, nil
}
