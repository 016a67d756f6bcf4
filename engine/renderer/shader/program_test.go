package shader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flint3d/flint-go/engine/renderer/device"
	"github.com/flint3d/flint-go/engine/renderer/spirv"
)

// Opcode, decoration, and storage class values used by the test assembler.
const (
	tOpName           = 5
	tOpMemberName     = 6
	tOpDecorate       = 71
	tOpMemberDecorate = 72
	tOpTypeFloat      = 22
	tOpTypeVector     = 23
	tOpTypeStruct     = 30
	tOpTypePointer    = 32
	tOpVariable       = 59

	tDecorBlock   = 2
	tDecorLoc     = 30
	tDecorBinding = 33
	tDecorSet     = 34
	tDecorOffset  = 35

	tClassInput        = 1
	tClassUniform      = 2
	tClassPushConstant = 9
)

type spvAsm struct {
	words []uint32
}

func newSpvAsm() *spvAsm {
	return &spvAsm{words: []uint32{spirv.Magic, 0x00010300, 0, 100, 0}}
}

func (a *spvAsm) inst(opcode uint32, operands ...uint32) *spvAsm {
	a.words = append(a.words, uint32(len(operands)+1)<<16|opcode)
	a.words = append(a.words, operands...)
	return a
}

func (a *spvAsm) name(id uint32, s string) *spvAsm {
	return a.inst(tOpName, append([]uint32{id}, packString(s)...)...)
}

func (a *spvAsm) memberName(structID, member uint32, s string) *spvAsm {
	return a.inst(tOpMemberName, append([]uint32{structID, member}, packString(s)...)...)
}

func packString(s string) []uint32 {
	b := append([]byte(s), 0)
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
	}
	return out
}

// blockBlob builds a stage binary declaring one uniform block with a single
// vec4 member named "value" at the given binding slot.
func blockBlob(t *testing.T, stage spirv.Stage, blockName string, binding uint32) *spirv.CompiledStage {
	t.Helper()
	a := newSpvAsm().
		name(10, blockName).
		memberName(5, 0, "value").
		inst(tOpDecorate, 5, tDecorBlock).
		inst(tOpDecorate, 10, tDecorSet, 0).
		inst(tOpDecorate, 10, tDecorBinding, binding).
		inst(tOpMemberDecorate, 5, 0, tDecorOffset, 0).
		inst(tOpTypeFloat, 1, 32).
		inst(tOpTypeVector, 2, 1, 4).
		inst(tOpTypeStruct, 5, 2).
		inst(tOpTypePointer, 6, tClassUniform, 5).
		inst(tOpVariable, 6, 10, tClassUniform)
	return spirv.NewCompiledStage(a.words, stage)
}

// pushBlob builds a stage binary declaring one push-constant block with a
// single vec4 member named "model".
func pushBlob(t *testing.T, stage spirv.Stage) *spirv.CompiledStage {
	t.Helper()
	a := newSpvAsm().
		name(50, "pc").
		memberName(51, 0, "model").
		inst(tOpMemberDecorate, 51, 0, tDecorOffset, 0).
		inst(tOpTypeFloat, 1, 32).
		inst(tOpTypeVector, 2, 1, 4).
		inst(tOpTypeStruct, 51, 2).
		inst(tOpTypePointer, 52, tClassPushConstant, 51).
		inst(tOpVariable, 52, 50, tClassPushConstant)
	return spirv.NewCompiledStage(a.words, stage)
}

// vertexBlob builds a vertex stage binary with a vec3 input at location 0 and
// the shared "globals" uniform block at binding 0.
func vertexBlob(t *testing.T) *spirv.CompiledStage {
	t.Helper()
	a := newSpvAsm().
		name(10, "globals").
		name(20, "position").
		memberName(5, 0, "value").
		inst(tOpDecorate, 5, tDecorBlock).
		inst(tOpDecorate, 10, tDecorSet, 0).
		inst(tOpDecorate, 10, tDecorBinding, 0).
		inst(tOpDecorate, 20, tDecorLoc, 0).
		inst(tOpMemberDecorate, 5, 0, tDecorOffset, 0).
		inst(tOpTypeFloat, 1, 32).
		inst(tOpTypeVector, 2, 1, 4).
		inst(tOpTypeVector, 3, 1, 3).
		inst(tOpTypeStruct, 5, 2).
		inst(tOpTypePointer, 6, tClassUniform, 5).
		inst(tOpTypePointer, 21, tClassInput, 3).
		inst(tOpVariable, 6, 10, tClassUniform).
		inst(tOpVariable, 21, 20, tClassInput)
	return spirv.NewCompiledStage(a.words, spirv.StageVertex)
}

func TestNewProgramPanicsOnEmptyName(t *testing.T) {
	assert.Panics(t, func() { NewProgram("") })
}

func TestNewProgramPanicsOnMalformedStage(t *testing.T) {
	bad := spirv.NewCompiledStage([]uint32{0xdeadbeef, 0, 0, 0, 0}, spirv.StageVertex)
	assert.Panics(t, func() { NewProgram("broken", WithCompiledStages(bad)) })
}

func TestProgramRejectsDuplicateStage(t *testing.T) {
	p := NewProgram("dup", WithCompiledStages(vertexBlob(t)))
	err := p.AddStage(vertexBlob(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already has a vertex stage")
}

func TestProgramMergesBlockAcrossStages(t *testing.T) {
	p := NewProgram("merged", WithCompiledStages(
		vertexBlob(t),
		blockBlob(t, spirv.StageFragment, "globals", 0),
	))

	assert.True(t, p.HasStage(spirv.StageVertex))
	assert.True(t, p.HasStage(spirv.StageFragment))
	assert.Equal(t, spirv.StageVertex|spirv.StageFragment, p.Stages())

	block, ok := p.UniformBlock("globals")
	require.True(t, ok)
	assert.Equal(t, spirv.StageVertex|spirv.StageFragment, block.Stages,
		"stage masks widen when both stages declare the block")
	u, ok := block.Uniform("value")
	require.True(t, ok)
	assert.Equal(t, spirv.StageVertex|spirv.StageFragment, u.Stages,
		"member stage masks follow the block")

	bindings := p.LayoutBindings()
	require.Len(t, bindings, 1)
	assert.Equal(t, uint32(0), bindings[0].Binding)
	assert.Equal(t, spirv.DescriptorKindUniformBuffer, bindings[0].Kind)
	assert.Equal(t, spirv.StageVertex|spirv.StageFragment, bindings[0].Stages)
}

func TestProgramLayoutAndPoolSizes(t *testing.T) {
	p := NewProgram("layout", WithCompiledStages(
		blockBlob(t, spirv.StageVertex, "transforms", 0),
		blockBlob(t, spirv.StageFragment, "surface", 1),
	))

	bindings := p.LayoutBindings()
	require.Len(t, bindings, 2)
	assert.Equal(t, uint32(0), bindings[0].Binding)
	assert.Equal(t, uint32(1), bindings[1].Binding)
	assert.Equal(t, uint32(1), p.LastDescriptorBinding())

	sizes := p.PoolSizes()
	require.Len(t, sizes, 1)
	assert.Equal(t, spirv.PoolSize{Kind: spirv.DescriptorKindUniformBuffer, Count: 2}, sizes[0])

	loc, ok := p.DescriptorLocation("surface")
	require.True(t, ok)
	assert.Equal(t, uint32(1), loc)
	size, ok := p.DescriptorSize("surface")
	require.True(t, ok)
	assert.Equal(t, uint32(16), size)

	_, ok = p.DescriptorLocation("missing")
	assert.False(t, ok)
}

func TestProgramMergesPushRangesAcrossStages(t *testing.T) {
	p := NewProgram("push", WithCompiledStages(
		pushBlob(t, spirv.StageVertex),
		blockBlob(t, spirv.StageFragment, "surface", 0),
	))
	require.NoError(t, p.AddStage(func() *spirv.CompiledStage {
		// A second stage declaring the same push block widens the range's
		// stage mask instead of adding a new range.
		return pushBlob(t, spirv.StageGeometry)
	}()))

	ranges := p.PushConstantRanges()
	require.Len(t, ranges, 1)
	assert.Equal(t, uint32(0), ranges[0].Offset)
	assert.Equal(t, uint32(16), ranges[0].Size)
	assert.Equal(t, spirv.StageVertex|spirv.StageGeometry, ranges[0].Stages)

	block, ok := p.UniformBlock("pc")
	require.True(t, ok)
	assert.Equal(t, spirv.BlockKindPush, block.Kind)
}

func TestProgramVertexAttributes(t *testing.T) {
	p := NewProgram("attrs", WithCompiledStages(vertexBlob(t)))

	attrs := p.VertexAttributes()
	require.Len(t, attrs, 1)
	assert.Equal(t, "position", attrs[0].Name)
	assert.Equal(t, spirv.FormatR32G32B32Float, attrs[0].Attribute.Format)

	a, ok := p.Attribute("position")
	require.True(t, ok)
	assert.Equal(t, int32(0), a.Location)
	assert.Equal(t, int32(12), a.Size)
}

func TestProgramPipelineStageOrder(t *testing.T) {
	p := NewProgram("order")
	require.NoError(t, p.AddStage(blockBlob(t, spirv.StageFragment, "surface", 0)))
	require.NoError(t, p.AddStage(vertexBlob(t)))

	stages := p.PipelineStages()
	require.Len(t, stages, 2)
	assert.Equal(t, spirv.StageVertex, stages[0].Stage(), "vertex sorts before fragment regardless of add order")
	assert.Equal(t, spirv.StageFragment, stages[1].Stage())
}

func TestProgramReload(t *testing.T) {
	p := NewProgram("reload", WithCompiledStages(
		vertexBlob(t),
		blockBlob(t, spirv.StageFragment, "globals", 0),
	))
	before := p.LayoutBindings()

	require.NoError(t, p.Reload())
	assert.Equal(t, before, p.LayoutBindings())
	block, ok := p.UniformBlock("globals")
	require.True(t, ok)
	assert.Equal(t, spirv.StageVertex|spirv.StageFragment, block.Stages)
}

func TestProgramReplaceStage(t *testing.T) {
	p := NewProgram("hotswap", WithCompiledStages(
		vertexBlob(t),
		blockBlob(t, spirv.StageFragment, "surface", 1),
	))

	require.NoError(t, p.ReplaceStage(blockBlob(t, spirv.StageFragment, "lighting", 2)))

	_, ok := p.UniformBlock("surface")
	assert.False(t, ok, "the replaced stage's blocks are gone after re-reflection")
	block, ok := p.UniformBlock("lighting")
	require.True(t, ok)
	assert.Equal(t, int32(2), block.Binding)
	assert.True(t, p.HasStage(spirv.StageVertex), "other stages survive the swap")
	assert.Equal(t, uint32(2), p.LastDescriptorBinding())

	err := p.ReplaceStage(blockBlob(t, spirv.StageCompute, "cull", 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no compute stage")
}

func TestProgramBlocksReturnsCopies(t *testing.T) {
	p := NewProgram("copies", WithCompiledStages(blockBlob(t, spirv.StageVertex, "globals", 0)))

	blocks := p.Blocks()
	require.Contains(t, blocks, "globals")
	blocks["globals"].Uniforms["value"] = spirv.UniformInfo{Offset: 99}

	fresh, ok := p.UniformBlock("globals")
	require.True(t, ok)
	u, _ := fresh.Uniform("value")
	assert.Equal(t, uint32(0), u.Offset, "mutating a returned block does not touch the program")
}

func TestProgramCreateDeviceObjects(t *testing.T) {
	dev := device.NewHostDevice()
	p := NewProgram("gpu", WithCompiledStages(
		vertexBlob(t),
		blockBlob(t, spirv.StageFragment, "surface", 1),
	))

	layout, err := p.CreateDescriptorSetLayout(dev)
	require.NoError(t, err)
	assert.True(t, layout.Valid())

	modules, err := p.CreateModules(dev)
	require.NoError(t, err)
	require.Len(t, modules, 2)
	for _, m := range modules {
		assert.True(t, m.Valid())
	}
}

func TestProgramEmptyLayoutSkipsDevice(t *testing.T) {
	dev := device.NewHostDevice()
	p := NewProgram("bare")

	layout, err := p.CreateDescriptorSetLayout(dev)
	require.NoError(t, err)
	assert.False(t, layout.Valid(), "a program with no bindings yields the zero handle")
}

func TestProgramMergeIsOrderIndependent(t *testing.T) {
	build := func(first, second *spirv.CompiledStage) Program {
		p := NewProgram("order")
		require.NoError(t, p.AddStage(first))
		require.NoError(t, p.AddStage(second))
		return p
	}
	a := build(vertexBlob(t), blockBlob(t, spirv.StageFragment, "globals", 0))
	b := build(blockBlob(t, spirv.StageFragment, "globals", 0), vertexBlob(t))

	assert.Equal(t, a.LayoutBindings(), b.LayoutBindings())
	assert.Equal(t, a.PoolSizes(), b.PoolSizes())
	assert.Equal(t, a.PushConstantRanges(), b.PushConstantRanges())
	assert.Equal(t, a.Stages(), b.Stages())
	assert.Equal(t, a.LastDescriptorBinding(), b.LastDescriptorBinding())

	ab, ok := a.UniformBlock("globals")
	require.True(t, ok)
	bb, ok := b.UniformBlock("globals")
	require.True(t, ok)
	assert.True(t, ab.Equal(bb), "the merged block is identical for either addition order")
	assert.Equal(t, ab.Stages, bb.Stages)
}
