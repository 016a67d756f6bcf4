package buffers

import (
	"github.com/flint3d/flint-go/engine/renderer/device"
)

// InstanceBuffer is a host-visible, persistently mapped buffer bindable as a
// per-instance vertex buffer. Instance data changes every frame, so it lives
// in upload memory rather than device-local memory.
type InstanceBuffer struct {
	*Buffer
}

// NewInstanceBuffer allocates an instance buffer in upload memory with a
// persistent mapping request.
//
// Parameters:
//   - alloc: the device allocator
//   - size: the buffer size in bytes
//
// Returns:
//   - *InstanceBuffer: the new buffer
//   - error: non-nil if allocation fails
func NewInstanceBuffer(alloc device.Allocator, size uint64) (*InstanceBuffer, error) {
	b, err := NewBuffer(alloc, size,
		device.BufferUsageVertex|device.BufferUsageTransferDst,
		device.MemoryUsageCPUToGPU,
		device.AllocationFlagPersistentMap,
		nil)
	if err != nil {
		return nil, err
	}
	return &InstanceBuffer{Buffer: b}, nil
}
