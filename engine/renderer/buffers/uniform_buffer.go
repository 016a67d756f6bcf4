package buffers

import (
	"github.com/flint3d/flint-go/engine/renderer/device"
)

// UniformBuffer is a host-visible, persistently mapped buffer bindable as a
// uniform buffer.
type UniformBuffer struct {
	*Buffer
}

// NewUniformBuffer allocates a uniform buffer in upload memory with a
// persistent mapping request, optionally seeded with initial contents.
//
// Parameters:
//   - alloc: the device allocator
//   - size: the buffer size in bytes
//   - data: optional initial contents
//
// Returns:
//   - *UniformBuffer: the new buffer
//   - error: non-nil if allocation fails
func NewUniformBuffer(alloc device.Allocator, size uint64, data []byte) (*UniformBuffer, error) {
	b, err := NewBuffer(alloc, size,
		device.BufferUsageUniform|device.BufferUsageTransferDst,
		device.MemoryUsageCPUToGPU,
		device.AllocationFlagPersistentMap,
		data)
	if err != nil {
		return nil, err
	}
	return &UniformBuffer{Buffer: b}, nil
}
