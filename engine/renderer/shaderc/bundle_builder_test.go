package shaderc

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flint3d/flint-go/engine/renderer/shader"
	"github.com/flint3d/flint-go/engine/renderer/spirv"
)

func TestBuildBundle(t *testing.T) {
	sources := []Source{
		{Name: "pass", Stage: spirv.StageVertex, WGSL: passthroughVertexWGSL, EntryPoint: "vs_main"},
		{Name: "scale", Stage: spirv.StageCompute, WGSL: scaleComputeWGSL},
	}

	bundle, err := BuildBundle(sources, WithWorkers(2))
	require.NoError(t, err)
	assert.Equal(t, 2, bundle.Len())

	vs, ok := bundle.Lookup("pass", spirv.StageVertex)
	require.True(t, ok)
	assert.Equal(t, "vs_main", vs.EntryPoint())

	cs, ok := bundle.Lookup("scale", spirv.StageCompute)
	require.True(t, ok)
	assert.Equal(t, "main", cs.EntryPoint())
}

func TestBuildBundleFailsOnBadSource(t *testing.T) {
	sources := []Source{
		{Name: "pass", Stage: spirv.StageVertex, WGSL: passthroughVertexWGSL, EntryPoint: "vs_main"},
		{Name: "broken", Stage: spirv.StageFragment, WGSL: "fn oops( {"},
	}

	_, err := BuildBundle(sources, WithWorkers(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"broken"`, "the failing shader is named")
}

func TestBuildBundleClampsWorkerCount(t *testing.T) {
	bundle, err := BuildBundle([]Source{
		{Name: "pass", Stage: spirv.StageVertex, WGSL: passthroughVertexWGSL},
	}, WithWorkers(-3))
	require.NoError(t, err)
	assert.Equal(t, 1, bundle.Len())
}

func TestBuildBundleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shaders.bundle")
	sources := []Source{
		{Name: "pass", Stage: spirv.StageVertex, WGSL: passthroughVertexWGSL, EntryPoint: "vs_main"},
	}

	require.NoError(t, BuildBundleFile(path, sources))

	loaded := shader.NewBundle()
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, 1, loaded.Len())
	blob, ok := loaded.Lookup("pass", spirv.StageVertex)
	require.True(t, ok)
	assert.Equal(t, "vs_main", blob.EntryPoint())
}
