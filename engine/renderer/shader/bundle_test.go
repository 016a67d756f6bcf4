package shader

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flint3d/flint-go/engine/renderer/spirv"
)

func TestBundleAddAndLookup(t *testing.T) {
	b := NewBundle()
	require.NoError(t, b.Add("pbr", vertexBlob(t)))
	require.NoError(t, b.Add("pbr", blockBlob(t, spirv.StageFragment, "surface", 0)))
	require.NoError(t, b.Add("shadow", blockBlob(t, spirv.StageVertex, "globals", 0)))

	assert.Equal(t, 3, b.Len())
	assert.Equal(t, []string{"pbr", "shadow"}, b.Names())

	blob, ok := b.Lookup("pbr", spirv.StageVertex)
	require.True(t, ok)
	assert.Equal(t, spirv.StageVertex, blob.Stage())

	_, ok = b.Lookup("pbr", spirv.StageCompute)
	assert.False(t, ok)
	_, ok = b.Lookup("missing", spirv.StageVertex)
	assert.False(t, ok)
}

func TestBundleLookupHash(t *testing.T) {
	b := NewBundle()
	require.NoError(t, b.Add("pbr", vertexBlob(t)))
	require.NoError(t, b.Add("pbr", blockBlob(t, spirv.StageFragment, "surface", 0)))

	blob, ok := b.LookupHash(nameHash("pbr"), spirv.StageFragment)
	require.True(t, ok)
	assert.Equal(t, spirv.StageFragment, blob.Stage())

	_, ok = b.LookupHash(nameHash("pbr"), spirv.StageCompute)
	assert.False(t, ok)
	_, ok = b.LookupHash(nameHash("missing"), spirv.StageVertex)
	assert.False(t, ok)
}

func TestBundleAddReplacesSameNameAndStage(t *testing.T) {
	b := NewBundle()
	first := vertexBlob(t)
	require.NoError(t, b.Add("pbr", first))

	replacement := vertexBlob(t).WithSource("fn vs() {}", "vs_main")
	require.NoError(t, b.Add("pbr", replacement))

	assert.Equal(t, 1, b.Len())
	blob, ok := b.Lookup("pbr", spirv.StageVertex)
	require.True(t, ok)
	assert.Equal(t, "vs_main", blob.EntryPoint())
}

func TestBundleAddRejectsOversizedFields(t *testing.T) {
	b := NewBundle()
	assert.Error(t, b.Add("", vertexBlob(t)))

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	assert.Error(t, b.Add(string(long), vertexBlob(t)))

	bigEntry := vertexBlob(t).WithSource("", string(long[:80]))
	assert.Error(t, b.Add("pbr", bigEntry))
}

func TestBundleRoundTrip(t *testing.T) {
	src := NewBundle()
	require.NoError(t, src.Add("pbr", vertexBlob(t).WithSource("", "vs_main")))
	require.NoError(t, src.Add("pbr", blockBlob(t, spirv.StageFragment, "surface", 0)))
	require.NoError(t, src.Add("cull", blockBlob(t, spirv.StageCompute, "counters", 0)))

	var buf bytes.Buffer
	n, err := src.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	dst := NewBundle()
	read, err := dst.ReadFrom(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, n, read)
	assert.Equal(t, 3, dst.Len())

	vs, ok := dst.Lookup("pbr", spirv.StageVertex)
	require.True(t, ok)
	assert.Equal(t, "vs_main", vs.EntryPoint())
	original, _ := src.Lookup("pbr", spirv.StageVertex)
	assert.Equal(t, original.Words(), vs.Words())

	fs, ok := dst.Lookup("pbr", spirv.StageFragment)
	require.True(t, ok)
	assert.Equal(t, "main", fs.EntryPoint())
	assert.Empty(t, vs.Source(), "bundled stages carry no source text")
}

func TestBundleSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shaders.bundle")

	src := NewBundle()
	require.NoError(t, src.Add("pbr", vertexBlob(t)))
	require.NoError(t, src.Save(path))

	dst := NewBundle()
	require.NoError(t, dst.Load(path))
	assert.Equal(t, 1, dst.Len())

	assert.Error(t, dst.Load(filepath.Join(t.TempDir(), "missing.bundle")))
}

func TestBundleLoadFailureLeavesContentsUntouched(t *testing.T) {
	b := NewBundle()
	require.NoError(t, b.Add("keep", vertexBlob(t)))

	corrupt := func(mutate func(data []byte)) []byte {
		src := NewBundle()
		require.NoError(t, src.Add("pbr", vertexBlob(t)))
		var buf bytes.Buffer
		_, err := src.WriteTo(&buf)
		require.NoError(t, err)
		data := buf.Bytes()
		mutate(data)
		return data
	}

	cases := map[string]func(data []byte){
		"bad magic":           func(data []byte) { data[0] = 0 },
		"bad version":         func(data []byte) { binary.LittleEndian.PutUint32(data[4:], 99) },
		"corrupted name hash": func(data []byte) { data[bundleHeaderSize]++ },
		"entry range past payload": func(data []byte) {
			binary.LittleEndian.PutUint32(data[bundleHeaderSize+12:], 1<<30)
		},
		"corrupted stage binary": func(data []byte) {
			payloadStart := bundleHeaderSize + bundleEntrySize
			data[payloadStart] = 0
		},
	}
	for label, mutate := range cases {
		_, err := b.ReadFrom(bytes.NewReader(corrupt(mutate)))
		assert.Error(t, err, label)
		assert.Equal(t, 1, b.Len(), "%s: previous contents survive", label)
		_, ok := b.Lookup("keep", spirv.StageVertex)
		assert.True(t, ok, "%s: previous entry still resolvable", label)
	}

	_, err := b.ReadFrom(bytes.NewReader([]byte{1, 2, 3}))
	assert.Error(t, err, "truncated header")
	assert.Equal(t, 1, b.Len())
}
