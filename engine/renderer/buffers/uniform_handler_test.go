package buffers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flint3d/flint-go/engine/renderer/device"
	"github.com/flint3d/flint-go/engine/renderer/spirv"
)

func colorBlock() *spirv.UniformBlock {
	return makeBlock(spirv.BlockKindUniform, 0, 16, map[string]spirv.UniformInfo{
		"color": {Binding: 0, Offset: 0, Size: 16, Kind: spirv.DescriptorKindUniformBuffer, Stages: spirv.StageVertex},
	})
}

func TestNewUniformHandlerPanicsWithoutAllocator(t *testing.T) {
	assert.Panics(t, func() { NewUniformHandler(nil) })
}

func TestUniformHandlerFirstUpdateRebinds(t *testing.T) {
	dev := device.NewHostDevice()
	h := NewUniformHandler(dev.Allocator())
	defer h.Release()

	assert.False(t, h.Update(colorBlock()), "structural change skips binding this frame")
	assert.Equal(t, StatusChanged, h.Status())
	require.NotNil(t, h.Buffer())
	assert.Equal(t, uint64(16), h.Buffer().Size())

	assert.True(t, h.Update(colorBlock()), "identical block is bindable on the next frame")
	assert.Equal(t, StatusNormal, h.Status())
}

func TestUniformHandlerPushFlushesOnUpdate(t *testing.T) {
	dev := device.NewHostDevice(device.WithNonCoherentMemory())
	h := NewUniformHandler(dev.Allocator())
	defer h.Release()

	h.Update(colorBlock())
	h.Update(colorBlock())

	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	h.PushNamed("color", data)
	assert.Equal(t, StatusChanged, h.Status())

	assert.True(t, h.Update(colorBlock()))
	assert.Equal(t, StatusNormal, h.Status())
	assert.Equal(t, data, dev.DeviceBytes(h.Buffer().Handle()), "clean Update flushed the pending write")
}

func TestUniformHandlerSkipsUnchangedPush(t *testing.T) {
	dev := device.NewHostDevice()
	h := NewUniformHandler(dev.Allocator())
	defer h.Release()

	h.Update(colorBlock())
	h.Update(colorBlock())

	data := make([]byte, 16)
	for i := range data {
		data[i] = byte(i)
	}
	h.Push(data, 0)
	h.Update(colorBlock())

	h.Push(data, 0)
	assert.Equal(t, StatusNormal, h.Status(), "pushing identical bytes does not dirty the handler")
}

func TestUniformHandlerOverflow(t *testing.T) {
	dev := device.NewHostDevice()
	h := NewUniformHandler(dev.Allocator())
	defer h.Release()

	h.Update(colorBlock())
	h.Update(colorBlock())

	h.Push(make([]byte, 32), 0)
	assert.Equal(t, StatusOverflow, h.Status())
}

func TestUniformHandlerIgnoresUnknownMember(t *testing.T) {
	dev := device.NewHostDevice()
	h := NewUniformHandler(dev.Allocator())
	defer h.Release()

	h.Update(colorBlock())
	h.Update(colorBlock())

	h.PushNamed("missing", []byte{1, 2, 3, 4})
	assert.Equal(t, StatusNormal, h.Status())
}

func TestUniformHandlerStructuralChangeRecreatesBuffer(t *testing.T) {
	dev := device.NewHostDevice()
	h := NewUniformHandler(dev.Allocator())
	defer h.Release()

	h.Update(colorBlock())
	h.Update(colorBlock())
	oldHandle := h.Buffer().Handle()

	changed := colorBlock()
	changed.Uniforms["extra"] = spirv.UniformInfo{Offset: 16, Size: 16}
	changed.Size = 32

	assert.False(t, h.Update(changed))
	assert.NotEqual(t, oldHandle, h.Buffer().Handle())
	assert.Equal(t, uint64(0), dev.Allocator().Size(oldHandle), "old buffer was destroyed")
}

func TestUniformHandlerWithBlockOptionAllocatesEagerly(t *testing.T) {
	dev := device.NewHostDevice()
	h := NewUniformHandler(dev.Allocator(), WithUniformBlock(colorBlock()))
	defer h.Release()

	require.NotNil(t, h.Buffer())
	assert.True(t, h.Update(colorBlock()), "pre-bound handler is bindable on the first frame")
}

func TestUniformHandlerMultipipelineBindsOnce(t *testing.T) {
	dev := device.NewHostDevice()
	h := NewUniformHandler(dev.Allocator(), WithMultipipeline())
	defer h.Release()

	assert.False(t, h.Update(colorBlock()), "first bind still skips the frame")

	other := colorBlock()
	other.Binding = 3
	assert.True(t, h.Update(other), "layout differences are tolerated after the first bind")
}

func TestUniformHandlerReleaseForcesRebind(t *testing.T) {
	dev := device.NewHostDevice()
	h := NewUniformHandler(dev.Allocator())

	h.Update(colorBlock())
	h.Update(colorBlock())
	h.Release()
	assert.Equal(t, StatusReset, h.Status())
	assert.Nil(t, h.Buffer())

	assert.False(t, h.Update(colorBlock()), "released handler rebinds from scratch")
	require.NotNil(t, h.Buffer())
	h.Release()
}

func TestPushUniformWritesTypedValue(t *testing.T) {
	dev := device.NewHostDevice(device.WithNonCoherentMemory())
	h := NewUniformHandler(dev.Allocator())
	defer h.Release()

	h.Update(colorBlock())
	h.Update(colorBlock())

	PushUniform(h, "color", [4]float32{1, 0, 0, 1})
	require.True(t, h.Update(colorBlock()))

	got := dev.DeviceBytes(h.Buffer().Handle())
	require.Len(t, got, 16)
	// float32(1) is 0x3f800000 little-endian.
	assert.Equal(t, []byte{0, 0, 0x80, 0x3f}, got[0:4])
	assert.Equal(t, []byte{0, 0, 0, 0}, got[4:8])
	assert.Equal(t, []byte{0, 0, 0x80, 0x3f}, got[12:16])
}
