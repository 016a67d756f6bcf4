package pipeline

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flint3d/flint-go/engine/renderer/shader"
	"github.com/flint3d/flint-go/engine/renderer/shaderc"
	"github.com/flint3d/flint-go/engine/renderer/spirv"
)

const testVertexWGSL = `
struct Globals {
    mvp: mat4x4<f32>,
};

@group(0) @binding(0) var<uniform> globals: Globals;

@vertex
fn vs_main(@location(0) position: vec3<f32>) -> @builtin(position) vec4<f32> {
    return globals.mvp * vec4<f32>(position, 1.0);
}
`

const testComputeWGSL = `
@group(0) @binding(0) var<storage, read_write> values: array<u32>;

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    values[id.x] = values[id.x] + 1u;
}
`

func renderProgram(t *testing.T) shader.Program {
	t.Helper()
	vs, err := shaderc.CompileWGSL(testVertexWGSL, spirv.StageVertex, shaderc.WithEntryPoint("vs_main"))
	require.NoError(t, err)
	return shader.NewProgram("test-render", shader.WithCompiledStages(vs))
}

func computeProgram(t *testing.T) shader.Program {
	t.Helper()
	cs, err := shaderc.CompileWGSL(testComputeWGSL, spirv.StageCompute)
	require.NoError(t, err)
	return shader.NewProgram("test-compute", shader.WithCompiledStages(cs))
}

func TestNewPipelineDefaults(t *testing.T) {
	p := NewPipeline("main", PipelineTypeRender, renderProgram(t))

	assert.Equal(t, PipelineTypeRender, p.Type())
	assert.Equal(t, "main", p.PipelineKey())
	assert.True(t, p.DepthTestEnabled())
	assert.True(t, p.DepthWriteEnabled())
	assert.False(t, p.BlendEnabled())
	assert.Equal(t, wgpu.CullModeNone, p.CullMode())
	assert.Equal(t, wgpu.PrimitiveTopologyTriangleList, p.Topology())
	assert.Equal(t, wgpu.FrontFaceCCW, p.FrontFace())
	assert.Equal(t, wgpu.ColorWriteMaskAll, p.WriteMask())
	require.NotNil(t, p.BlendState())
	assert.Equal(t, wgpu.BlendFactorSrcAlpha, p.BlendState().Color.SrcFactor)
}

func TestNewPipelineOptions(t *testing.T) {
	p := NewPipeline("tuned", PipelineTypeRender, renderProgram(t),
		WithDepthTestEnabled(false),
		WithDepthWriteEnabled(false),
		WithDepthBias(2, 1.5),
		WithBlendEnabled(true),
		WithCullMode(wgpu.CullModeBack),
		WithTopology(wgpu.PrimitiveTopologyLineList),
		WithFrontFace(wgpu.FrontFaceCW),
	)

	assert.False(t, p.DepthTestEnabled())
	assert.False(t, p.DepthWriteEnabled())
	assert.Equal(t, int32(2), p.DepthBias())
	assert.Equal(t, float32(1.5), p.DepthBiasSlopeScale())
	assert.True(t, p.BlendEnabled())
	assert.Equal(t, wgpu.CullModeBack, p.CullMode())
	assert.Equal(t, wgpu.PrimitiveTopologyLineList, p.Topology())
	assert.Equal(t, wgpu.FrontFaceCW, p.FrontFace())
}

func TestNewPipelinePanicsOnMissingStage(t *testing.T) {
	assert.Panics(t, func() { NewPipeline("x", PipelineTypeRender, nil) })
	assert.Panics(t, func() { NewPipeline("x", PipelineTypeRender, computeProgram(t)) })
	assert.Panics(t, func() { NewPipeline("x", PipelineTypeCompute, renderProgram(t)) })
}

func TestPipelineUniformBlockLookup(t *testing.T) {
	p := NewPipeline("main", PipelineTypeRender, renderProgram(t))

	block, ok := p.UniformBlock("globals")
	require.True(t, ok)
	assert.Equal(t, spirv.BlockKindUniform, block.Kind)
	_, ok = block.Uniform("mvp")
	assert.True(t, ok)

	_, ok = p.UniformBlock("missing")
	assert.False(t, ok)
}

func TestPipelineObjectAccess(t *testing.T) {
	p := NewPipeline("main", PipelineTypeRender, renderProgram(t))
	assert.Nil(t, p.Pipeline().(*wgpu.RenderPipeline))

	c := NewPipeline("cull", PipelineTypeCompute, computeProgram(t))
	assert.Nil(t, c.Pipeline().(*wgpu.ComputePipeline))
}
