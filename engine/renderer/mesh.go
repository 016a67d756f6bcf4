package renderer

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// mesh is the implementation of the Mesh interface.
type mesh struct {
	label        string
	vertexBuffer *wgpu.Buffer
	indexBuffer  *wgpu.Buffer
	indexCount   int
}

// Mesh holds the GPU vertex and index buffers for one piece of geometry.
// Meshes are created through Renderer.CreateMesh and passed to DrawCall.
type Mesh interface {
	// Label retrieves the debug label the mesh buffers were created with.
	//
	// Returns:
	//   - string: the mesh label
	Label() string

	// VertexBuffer retrieves the GPU vertex buffer, nil when the mesh was
	// created without vertex data.
	//
	// Returns:
	//   - *wgpu.Buffer: the vertex buffer
	VertexBuffer() *wgpu.Buffer

	// IndexBuffer retrieves the GPU index buffer, nil when the mesh was
	// created without index data.
	//
	// Returns:
	//   - *wgpu.Buffer: the index buffer
	IndexBuffer() *wgpu.Buffer

	// IndexCount retrieves the number of indices, used by indexed draw calls.
	//
	// Returns:
	//   - int: the index count
	IndexCount() int

	// Release destroys the mesh's GPU buffers. The mesh must not be drawn
	// after Release.
	Release()
}

var _ Mesh = &mesh{}

func (m *mesh) Label() string {
	return m.label
}

func (m *mesh) VertexBuffer() *wgpu.Buffer {
	return m.vertexBuffer
}

func (m *mesh) IndexBuffer() *wgpu.Buffer {
	return m.indexBuffer
}

func (m *mesh) IndexCount() int {
	return m.indexCount
}

func (m *mesh) Release() {
	if m.vertexBuffer != nil {
		m.vertexBuffer.Release()
		m.vertexBuffer = nil
	}
	if m.indexBuffer != nil {
		m.indexBuffer.Release()
		m.indexBuffer = nil
	}
}
