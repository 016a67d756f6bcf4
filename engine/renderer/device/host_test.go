package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flint3d/flint-go/engine/renderer/spirv"
)

func testAlloc(t *testing.T, dev HostDevice, size uint64, flags AllocationFlags) Allocation {
	t.Helper()
	a, err := dev.Allocator().Allocate(AllocationCreateInfo{
		Label:  "test",
		Size:   size,
		Usage:  BufferUsageUniform,
		Memory: MemoryUsageCPUToGPU,
		Flags:  flags,
	})
	require.NoError(t, err)
	return a
}

func TestHostDeviceAllocateAndMap(t *testing.T) {
	dev := NewHostDevice()
	a := testAlloc(t, dev, 8, 0)

	assert.True(t, a.Valid())
	assert.Equal(t, uint64(8), dev.Allocator().Size(a))

	m, err := dev.Allocator().Map(a)
	require.NoError(t, err)
	require.Len(t, m, 8)
	copy(m, []byte{1, 2, 3, 4})
	assert.Equal(t, []byte{1, 2, 3, 4, 0, 0, 0, 0}, dev.DeviceBytes(a),
		"coherent writes are device-visible immediately")

	_, err = dev.Allocator().Allocate(AllocationCreateInfo{Size: 0})
	assert.Error(t, err, "zero-size allocation")
}

func TestHostDeviceNonCoherentRequiresFlush(t *testing.T) {
	dev := NewHostDevice(WithNonCoherentMemory())
	a := testAlloc(t, dev, 4, 0)

	m, err := dev.Allocator().Map(a)
	require.NoError(t, err)
	copy(m, []byte{9, 9, 9, 9})
	assert.Equal(t, []byte{0, 0, 0, 0}, dev.DeviceBytes(a), "unflushed writes stay host-side")

	require.NoError(t, dev.Allocator().Flush(a))
	assert.Equal(t, []byte{9, 9, 9, 9}, dev.DeviceBytes(a))
	assert.Equal(t, 1, dev.FlushCount(a))
	assert.False(t, dev.Allocator().IsCoherent(a))
}

func TestHostDevicePersistentMapping(t *testing.T) {
	dev := NewHostDevice()
	a := testAlloc(t, dev, 4, AllocationFlagPersistentMap)
	assert.True(t, dev.Allocator().IsPersistentlyMapped(a))

	strict := NewHostDevice(WithoutPersistentMapping())
	b := testAlloc(t, strict, 4, AllocationFlagPersistentMap)
	assert.False(t, strict.Allocator().IsPersistentlyMapped(b),
		"persistent-map requests can be refused")
}

func TestHostDeviceRejectsMappingGPUOnlyMemory(t *testing.T) {
	dev := NewHostDevice()
	a, err := dev.Allocator().Allocate(AllocationCreateInfo{
		Size:   4,
		Memory: MemoryUsageGPUOnly,
	})
	require.NoError(t, err)

	_, err = dev.Allocator().Map(a)
	assert.Error(t, err)
}

func TestHostDeviceStaleHandles(t *testing.T) {
	dev := NewHostDevice()
	a := testAlloc(t, dev, 4, 0)
	dev.Allocator().Destroy(a)

	_, err := dev.Allocator().Map(a)
	assert.Error(t, err)
	assert.Error(t, dev.Allocator().Flush(a))
	assert.Error(t, dev.Allocator().Invalidate(a))
	assert.Equal(t, uint64(0), dev.Allocator().Size(a))
	assert.Nil(t, dev.DeviceBytes(a))
	assert.NotPanics(t, func() { dev.Allocator().Destroy(a) })

	// The slot is recycled with a bumped generation, so the old handle stays
	// stale after reuse.
	b := testAlloc(t, dev, 4, 0)
	assert.NotEqual(t, a, b)
	_, err = dev.Allocator().Map(a)
	assert.Error(t, err)
	_, err = dev.Allocator().Map(b)
	assert.NoError(t, err)
}

func TestHostDeviceShaderModules(t *testing.T) {
	dev := NewHostDevice()

	valid := spirv.NewCompiledStage([]uint32{spirv.Magic, 0x00010300, 0, 1, 0}, spirv.StageVertex)
	m, err := dev.CreateShaderModule(valid, "test/vertex")
	require.NoError(t, err)
	assert.True(t, m.Valid())

	bad := spirv.NewCompiledStage([]uint32{0xdeadbeef, 0, 0, 0, 0}, spirv.StageVertex)
	_, err = dev.CreateShaderModule(bad, "test/bad")
	assert.Error(t, err)

	dev.DestroyShaderModule(m)
	assert.NotPanics(t, func() { dev.DestroyShaderModule(m) })
}

func TestHostDeviceDescriptorSetLayouts(t *testing.T) {
	dev := NewHostDevice()

	l, err := dev.CreateDescriptorSetLayout("ok", []spirv.LayoutBinding{
		{Binding: 0, Kind: spirv.DescriptorKindUniformBuffer, Count: 1, Stages: spirv.StageVertex},
		{Binding: 1, Kind: spirv.DescriptorKindStorageBuffer, Count: 1, Stages: spirv.StageCompute},
	})
	require.NoError(t, err)
	assert.True(t, l.Valid())
	dev.DestroyDescriptorSetLayout(l)
	assert.NotPanics(t, func() { dev.DestroyDescriptorSetLayout(l) })

	_, err = dev.CreateDescriptorSetLayout("undefined kind", []spirv.LayoutBinding{
		{Binding: 0, Kind: spirv.DescriptorKindUndefined, Count: 1},
	})
	assert.Error(t, err)

	_, err = dev.CreateDescriptorSetLayout("out of order", []spirv.LayoutBinding{
		{Binding: 1, Kind: spirv.DescriptorKindUniformBuffer, Count: 1},
		{Binding: 0, Kind: spirv.DescriptorKindUniformBuffer, Count: 1},
	})
	assert.Error(t, err)
}
