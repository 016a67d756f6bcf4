package buffers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flint3d/flint-go/engine/renderer/device"
	"github.com/flint3d/flint-go/engine/renderer/spirv"
)

func particleBlock() *spirv.UniformBlock {
	return makeBlock(spirv.BlockKindStorage, 1, 16, map[string]spirv.UniformInfo{
		"items": {Binding: 1, Offset: 0, Size: 16, Kind: spirv.DescriptorKindStorageBuffer, Stages: spirv.StageCompute},
	})
}

func TestNewStorageHandlerPanicsWithoutAllocator(t *testing.T) {
	assert.Panics(t, func() { NewStorageHandler(nil) })
}

func TestNewStorageHandlerStartsReset(t *testing.T) {
	dev := device.NewHostDevice()
	h := NewStorageHandler(dev.Allocator())
	defer h.Release()

	assert.Equal(t, StatusReset, h.Status())
	assert.False(t, h.Update(nil), "the first Update rebinds even without a candidate block")
	assert.True(t, h.Update(nil))

	eager := NewStorageHandler(dev.Allocator(), WithStorageBlock(particleBlock()))
	defer eager.Release()
	assert.Equal(t, StatusChanged, eager.Status())
}

func TestStorageHandlerBindAndPush(t *testing.T) {
	dev := device.NewHostDevice(device.WithNonCoherentMemory())
	h := NewStorageHandler(dev.Allocator())
	defer h.Release()

	assert.False(t, h.Update(particleBlock()))
	assert.True(t, h.Update(particleBlock()))

	data := make([]byte, 16)
	for i := range data {
		data[i] = byte(i + 1)
	}
	h.PushAll(data)
	assert.Equal(t, StatusChanged, h.Status(), "same-size PushAll writes immediately")

	require.True(t, h.Update(particleBlock()))
	assert.Equal(t, data, dev.DeviceBytes(h.Buffer().Handle()))
}

func TestStorageHandlerDeferredReallocation(t *testing.T) {
	dev := device.NewHostDevice()
	h := NewStorageHandler(dev.Allocator())
	defer h.Release()

	h.Update(particleBlock())
	h.Update(particleBlock())
	oldHandle := h.Buffer().Handle()

	grown := make([]byte, 64)
	h.PushAll(grown)
	assert.Equal(t, StatusReset, h.Status(), "size change defers reallocation to the next Update")
	assert.Equal(t, oldHandle, h.Buffer().Handle(), "no mid-frame reallocation")

	assert.False(t, h.Update(particleBlock()), "the deferred reallocation skips this frame")
	assert.Equal(t, uint64(64), h.Buffer().Size())
	assert.Equal(t, uint64(0), dev.Allocator().Size(oldHandle), "old buffer was destroyed")

	require.True(t, h.Update(particleBlock()))
	h.PushAll(grown)
	assert.Equal(t, StatusChanged, h.Status(), "caller pushes again after the reallocation")
}

func TestStorageHandlerOverflow(t *testing.T) {
	dev := device.NewHostDevice()
	h := NewStorageHandler(dev.Allocator())
	defer h.Release()

	h.Update(particleBlock())
	h.Update(particleBlock())

	h.Push(make([]byte, 32), 0)
	assert.Equal(t, StatusOverflow, h.Status())
}

func TestStorageHandlerWithBlockOptionAllocatesEagerly(t *testing.T) {
	dev := device.NewHostDevice()
	h := NewStorageHandler(dev.Allocator(), WithStorageBlock(particleBlock()))
	defer h.Release()

	require.NotNil(t, h.Buffer())
	assert.True(t, h.Update(particleBlock()))
}

func TestPushStorageWritesTypedValue(t *testing.T) {
	dev := device.NewHostDevice(device.WithNonCoherentMemory())
	h := NewStorageHandler(dev.Allocator())
	defer h.Release()

	h.Update(particleBlock())
	h.Update(particleBlock())

	PushStorage(h, "items", [4]uint32{1, 2, 3, 4})
	require.True(t, h.Update(particleBlock()))

	got := dev.DeviceBytes(h.Buffer().Handle())
	require.Len(t, got, 16)
	assert.Equal(t, []byte{1, 0, 0, 0}, got[0:4])
	assert.Equal(t, []byte{4, 0, 0, 0}, got[12:16])
}
