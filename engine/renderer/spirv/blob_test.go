package spirv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompiledStageCopiesWords(t *testing.T) {
	words := []uint32{Magic, 0x00010300, 0, 1, 0}
	blob := NewCompiledStage(words, StageVertex)

	words[0] = 0
	assert.Equal(t, Magic, blob.Words()[0], "caller's slice is not shared")
	assert.Equal(t, StageVertex, blob.Stage())
	assert.Equal(t, "main", blob.EntryPoint())
	assert.Empty(t, blob.Source())
}

func TestCompiledStageBytesRoundTrip(t *testing.T) {
	blob := NewCompiledStage([]uint32{Magic, 0x00010300, 0, 42, 0}, StageFragment)

	decoded, err := CompiledStageFromBytes(blob.Bytes(), StageFragment)
	require.NoError(t, err)
	assert.Equal(t, blob.Words(), decoded.Words())
	assert.Equal(t, StageFragment, decoded.Stage())
}

func TestCompiledStageFromBytesRejectsBadInput(t *testing.T) {
	_, err := CompiledStageFromBytes(nil, StageVertex)
	assert.Error(t, err, "empty input")

	_, err = CompiledStageFromBytes([]byte{1, 2, 3}, StageVertex)
	assert.Error(t, err, "length not word-aligned")

	_, err = CompiledStageFromBytes([]byte{0xde, 0xad, 0xbe, 0xef}, StageVertex)
	assert.Error(t, err, "bad magic")
}

func TestCompiledStageWithSource(t *testing.T) {
	blob := NewCompiledStage([]uint32{Magic, 0x00010300, 0, 1, 0}, StageVertex)

	annotated := blob.WithSource("fn vs() {}", "vs_main")
	assert.Equal(t, "fn vs() {}", annotated.Source())
	assert.Equal(t, "vs_main", annotated.EntryPoint())
	assert.Equal(t, blob.Words(), annotated.Words())
	assert.Empty(t, blob.Source(), "original blob is unchanged")

	defaulted := blob.WithSource("src", "")
	assert.Equal(t, "main", defaulted.EntryPoint())
}

func TestStageMask(t *testing.T) {
	mask := StageVertex | StageFragment
	assert.True(t, mask.Has(StageVertex))
	assert.True(t, mask.Has(StageFragment))
	assert.False(t, mask.Has(StageCompute))
	assert.Equal(t, "vertex|fragment", mask.String())
	assert.Equal(t, "none", StageNone.String())
}

func TestStageFromExtension(t *testing.T) {
	assert.Equal(t, StageVertex, StageFromExtension("shaders/pbr.vert"))
	assert.Equal(t, StageFragment, StageFromExtension("shaders/pbr.frag"))
	assert.Equal(t, StageCompute, StageFromExtension("cull.comp"))
	assert.Equal(t, StageGeometry, StageFromExtension("wireframe.geom"))
	assert.Equal(t, StageTessControl, StageFromExtension("terrain.tesc"))
	assert.Equal(t, StageTessEval, StageFromExtension("terrain.tese"))
	assert.Equal(t, StageNone, StageFromExtension("readme.md"))
}
