package buffers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flint3d/flint-go/engine/renderer/device"
	"github.com/flint3d/flint-go/engine/renderer/spirv"
)

// makeBlock builds a reflected block the way the shader layer would hand it to
// a handler.
func makeBlock(kind spirv.BlockKind, binding, size int32, members map[string]spirv.UniformInfo) *spirv.UniformBlock {
	return &spirv.UniformBlock{
		Binding:  binding,
		Size:     size,
		Stages:   spirv.StageVertex,
		Kind:     kind,
		Uniforms: members,
	}
}

func TestNewBufferUploadsInitialData(t *testing.T) {
	dev := device.NewHostDevice(device.WithNonCoherentMemory())
	data := []byte{1, 2, 3, 4}

	b, err := NewBuffer(dev.Allocator(), 4,
		device.BufferUsageUniform, device.MemoryUsageCPUToGPU,
		device.AllocationFlagPersistentMap, data)
	require.NoError(t, err)
	defer b.Release()

	assert.Equal(t, data, dev.DeviceBytes(b.Handle()), "initial contents were flushed")
	assert.Equal(t, 1, dev.FlushCount(b.Handle()))
	assert.Equal(t, uint64(4), b.Size())
	assert.True(t, b.IsPersistentlyMapped())
}

func TestBufferFlushIsNoopOnCoherentMemory(t *testing.T) {
	dev := device.NewHostDevice()
	b, err := NewBuffer(dev.Allocator(), 8,
		device.BufferUsageUniform, device.MemoryUsageCPUToGPU,
		device.AllocationFlagPersistentMap, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	require.NoError(t, err)
	defer b.Release()

	assert.Equal(t, 0, dev.FlushCount(b.Handle()))
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, dev.DeviceBytes(b.Handle()),
		"coherent memory is device-visible without a flush")
}

func TestBufferMapReturnsSameView(t *testing.T) {
	dev := device.NewHostDevice()
	b, err := NewBuffer(dev.Allocator(), 4,
		device.BufferUsageUniform, device.MemoryUsageCPUToGPU, 0, nil)
	require.NoError(t, err)
	defer b.Release()

	m1, err := b.Map()
	require.NoError(t, err)
	m2, err := b.Map()
	require.NoError(t, err)
	assert.Same(t, &m1[0], &m2[0], "second Map reuses the existing mapping")
}

func TestBufferReleaseIsIdempotent(t *testing.T) {
	dev := device.NewHostDevice()
	b, err := NewBuffer(dev.Allocator(), 4,
		device.BufferUsageUniform, device.MemoryUsageCPUToGPU, 0, nil)
	require.NoError(t, err)

	handle := b.Handle()
	b.Release()
	assert.Equal(t, uint64(0), dev.Allocator().Size(handle), "handle is stale after release")
	assert.NotPanics(t, func() { b.Release() })
}

func TestBufferKindsRequestPersistentUploadMemory(t *testing.T) {
	dev := device.NewHostDevice()

	ub, err := NewUniformBuffer(dev.Allocator(), 16, nil)
	require.NoError(t, err)
	defer ub.Release()
	assert.True(t, ub.IsPersistentlyMapped())

	sb, err := NewStorageBuffer(dev.Allocator(), 16, nil)
	require.NoError(t, err)
	defer sb.Release()
	assert.True(t, sb.IsPersistentlyMapped())

	ib, err := NewInstanceBuffer(dev.Allocator(), 16)
	require.NoError(t, err)
	defer ib.Release()
	assert.True(t, ib.IsPersistentlyMapped())
}

func TestClampPushSize(t *testing.T) {
	assert.Equal(t, uint32(4), clampPushSize(4, 16), "oversized pushes clamp to the declared member size")
	assert.Equal(t, uint32(3), clampPushSize(4, 3), "undersized pushes keep their own length")
	assert.Equal(t, uint32(16), clampPushSize(0, 16), "undeclared sizes never clamp")
}
