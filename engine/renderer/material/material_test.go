package material

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flint3d/flint-go/engine/renderer/device"
	"github.com/flint3d/flint-go/engine/renderer/pipeline"
	"github.com/flint3d/flint-go/engine/renderer/shader"
	"github.com/flint3d/flint-go/engine/renderer/shaderc"
	"github.com/flint3d/flint-go/engine/renderer/spirv"
)

const surfaceComputeWGSL = `
struct Params {
    tint: vec4<f32>,
};

@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(1) var<storage, read_write> results: array<f32>;

@compute @workgroup_size(1)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    results[id.x] = params.tint.r;
}
`

func surfacePipeline(t *testing.T) pipeline.Pipeline {
	t.Helper()
	cs, err := shaderc.CompileWGSL(surfaceComputeWGSL, spirv.StageCompute)
	require.NoError(t, err)
	prog := shader.NewProgram("surface", shader.WithCompiledStages(cs))
	return pipeline.NewPipeline("surface", pipeline.PipelineTypeCompute, prog)
}

func TestNewMaterialDefaultsAndOptions(t *testing.T) {
	dev := device.NewHostDevice()

	plain := NewMaterial(dev.Allocator())
	assert.Equal(t, [4]float32{1, 1, 1, 1}, plain.BaseColor())
	assert.Equal(t, float32(0), plain.Metallic())
	assert.Equal(t, float32(1), plain.Roughness())

	m := NewMaterial(dev.Allocator(),
		WithName("gold"),
		WithBaseColor([4]float32{1, 0.8, 0.2, 1}),
		WithMetallic(1),
		WithRoughness(0.3),
		WithPipelineKey("pbr"),
	)
	assert.Equal(t, "gold", m.Name())
	assert.Equal(t, [4]float32{1, 0.8, 0.2, 1}, m.BaseColor())
	assert.Equal(t, float32(1), m.Metallic())
	assert.Equal(t, float32(0.3), m.Roughness())
	assert.Equal(t, "pbr", m.PipelineKey())

	m.SetPipelineKey("pbr-2")
	assert.Equal(t, "pbr-2", m.PipelineKey())

	assert.Panics(t, func() { NewMaterial(nil) })
}

func TestMaterialUpdateBindsHandlersToProgramBlocks(t *testing.T) {
	dev := device.NewHostDevice()
	pl := surfacePipeline(t)
	m := NewMaterial(dev.Allocator())
	defer m.Release()

	assert.False(t, m.Update(pl), "first frame binds the handlers and skips drawing")
	assert.True(t, m.Update(pl), "second frame is bindable")

	uniform := m.UniformHandler("params")
	require.NotNil(t, uniform.Buffer())
	assert.Equal(t, uint64(16), uniform.Buffer().Size())

	storage := m.StorageHandler("results")
	require.NotNil(t, storage.Block())
	assert.Equal(t, spirv.BlockKindStorage, storage.Block().Kind)
}

func TestMaterialHandlersAreStablePerBlock(t *testing.T) {
	dev := device.NewHostDevice()
	m := NewMaterial(dev.Allocator())
	defer m.Release()

	assert.Same(t, m.UniformHandler("params"), m.UniformHandler("params"))
	assert.Same(t, m.StorageHandler("results"), m.StorageHandler("results"))
	assert.NotNil(t, m.PushHandler())
}

func TestMaterialReleaseForcesRebind(t *testing.T) {
	dev := device.NewHostDevice()
	pl := surfacePipeline(t)
	m := NewMaterial(dev.Allocator())

	m.Update(pl)
	m.Update(pl)
	m.Release()

	assert.False(t, m.Update(pl), "released handlers rebind on the next frame")
	assert.True(t, m.Update(pl))
	m.Release()
}

func TestSurfaceParamsMarshal(t *testing.T) {
	dev := device.NewHostDevice()
	m := NewMaterial(dev.Allocator(),
		WithBaseColor([4]float32{0.5, 0.25, 1, 1}),
		WithMetallic(0.75),
		WithRoughness(0.1),
	)

	params := m.SurfaceParams()
	assert.Equal(t, 32, params.Size())

	buf := params.Marshal()
	require.Len(t, buf, 32)
	assert.Equal(t, float32(0.5), math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4])))
	assert.Equal(t, float32(1), math.Float32frombits(binary.LittleEndian.Uint32(buf[12:16])))
	assert.Equal(t, float32(0.75), math.Float32frombits(binary.LittleEndian.Uint32(buf[16:20])))
	assert.Equal(t, float32(0.1), math.Float32frombits(binary.LittleEndian.Uint32(buf[20:24])))
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0}, buf[24:32], "padding stays zero")
}

func TestGPUSurfaceParamsSourceMatchesLayout(t *testing.T) {
	assert.Contains(t, GPUSurfaceParamsSource, "base_color: vec4<f32>")
	assert.Contains(t, GPUSurfaceParamsSource, "metallic: f32")
	assert.Contains(t, GPUSurfaceParamsSource, "roughness: f32")
}
