package buffers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flint3d/flint-go/engine/renderer/spirv"
)

func modelPushBlock() *spirv.UniformBlock {
	block := makeBlock(spirv.BlockKindPush, -1, 20, map[string]spirv.UniformInfo{
		"model": {Offset: 0, Size: 16, Kind: spirv.DescriptorKindUniformBuffer, Stages: spirv.StageVertex},
		"layer": {Offset: 16, Size: 4, Kind: spirv.DescriptorKindUniformBuffer, Stages: spirv.StageVertex},
	})
	block.Stages = spirv.StageVertex | spirv.StageFragment
	return block
}

type recordedPush struct {
	stages spirv.Stage
	offset uint32
	data   []byte
}

// byteRecorder is a Recorder that copies every push into a slice.
type byteRecorder struct {
	pushes []recordedPush
}

func (r *byteRecorder) PushConstants(stages spirv.Stage, offset uint32, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	r.pushes = append(r.pushes, recordedPush{stages: stages, offset: offset, data: cp})
	return nil
}

func TestPushHandlerStagesBytes(t *testing.T) {
	h := NewPushHandler()
	assert.False(t, h.Update(modelPushBlock()), "first bind reallocates the staging bytes")
	assert.True(t, h.Update(modelPushBlock()))
	require.Len(t, h.Data(), 20)

	h.PushNamed("layer", []byte{7, 0, 0, 0})
	assert.Equal(t, byte(7), h.Data()[16])

	h.PushNamed("missing", []byte{1})
	h.Push([]byte{1, 2, 3, 4}, 18)
	assert.Equal(t, byte(0), h.Data()[18], "out-of-range writes are ignored")
}

func TestPushHandlerClampsToMemberSize(t *testing.T) {
	h := NewPushHandler(WithPushBlock(modelPushBlock()))

	oversized := make([]byte, 12)
	for i := range oversized {
		oversized[i] = 0xff
	}
	h.PushNamed("layer", oversized)
	assert.Equal(t, byte(0xff), h.Data()[19], "member bytes are written")
	assert.Equal(t, byte(0), h.Data()[15], "preceding member is untouched")
}

func TestPushHandlerBindPush(t *testing.T) {
	rec := &byteRecorder{}

	empty := NewPushHandler()
	require.NoError(t, empty.BindPush(rec))
	assert.Empty(t, rec.pushes, "unbound handler records nothing")

	h := NewPushHandler(WithPushBlock(modelPushBlock()))
	PushConstant(h, "layer", uint32(9))
	require.NoError(t, h.BindPush(rec))

	require.Len(t, rec.pushes, 1)
	push := rec.pushes[0]
	assert.Equal(t, spirv.StageVertex|spirv.StageFragment, push.stages)
	assert.Equal(t, uint32(0), push.offset, "the whole block is recorded every bind")
	require.Len(t, push.data, 20)
	assert.Equal(t, byte(9), push.data[16])

	require.NoError(t, h.BindPush(rec))
	assert.Len(t, rec.pushes, 2, "BindPush records unconditionally")
}

func TestPushHandlerUpdateResizesStaging(t *testing.T) {
	h := NewPushHandler(WithPushBlock(modelPushBlock()))
	assert.True(t, h.Update(modelPushBlock()), "a matching block keeps the staged bytes")
	h.Push([]byte{1, 2, 3, 4}, 0)

	bigger := modelPushBlock()
	bigger.Size = 64
	assert.False(t, h.Update(bigger), "a structural change reallocates and skips the frame")
	require.Len(t, h.Data(), 64)
	assert.Equal(t, byte(0), h.Data()[0], "rebinding discards staged bytes")

	assert.False(t, h.Update(nil))
	assert.Nil(t, h.Data())
	assert.True(t, h.Update(nil))
}

func TestPushHandlerMultipipelineBindsOnce(t *testing.T) {
	h := NewPushHandler(WithPushMultipipeline())

	assert.False(t, h.Update(modelPushBlock()), "first bind reallocates")
	require.Len(t, h.Data(), 20)

	other := modelPushBlock()
	other.Size = 64
	assert.True(t, h.Update(other), "layout differences are tolerated once bound")
	assert.Len(t, h.Data(), 20, "the staged bytes keep the first block's size")
}

func TestPushConstantWritesTypedValue(t *testing.T) {
	h := NewPushHandler(WithPushBlock(modelPushBlock()))

	PushConstant(h, "model", [4]float32{1, 1, 1, 1})
	assert.Equal(t, []byte{0, 0, 0x80, 0x3f}, h.Data()[0:4])
}
