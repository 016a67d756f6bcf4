// Package material ties surface properties to the buffer handlers that feed a
// pipeline's shader blocks. A material owns one handler per named block in its
// pipeline's program and reconciles all of them once per frame, so draw code
// only pushes values and never touches buffers directly.
package material

import (
	"github.com/flint3d/flint-go/engine/renderer/buffers"
	"github.com/flint3d/flint-go/engine/renderer/device"
	"github.com/flint3d/flint-go/engine/renderer/pipeline"
	"github.com/flint3d/flint-go/engine/renderer/spirv"
)

// material is the implementation of the Material interface.
type material struct {
	name        string
	baseColor   [4]float32
	metallic    float32
	roughness   float32
	pipelineKey string

	alloc           device.Allocator
	uniformHandlers map[string]*buffers.UniformHandler
	storageHandlers map[string]*buffers.StorageHandler
	pushHandler     *buffers.PushHandler
}

// Material defines the interface for a render material: surface properties set
// at load time plus the per-block buffer handlers that carry its shader data.
//
// Surface properties (name, base color, metallic, roughness) are read-only
// through this interface. The pipeline key is mutable so materials can be
// rebound during pipeline hot reload.
type Material interface {
	// Name retrieves the material identifier.
	//
	// Returns:
	//   - string: the name of the material
	Name() string

	// BaseColor retrieves the albedo/diffuse RGBA color of the material.
	//
	// Returns:
	//   - [4]float32: the base color as RGBA values
	BaseColor() [4]float32

	// Metallic retrieves the metallic factor of the material.
	// A value of 0.0 represents a dielectric surface, 1.0 represents a fully metallic surface.
	//
	// Returns:
	//   - float32: the metallic factor
	Metallic() float32

	// Roughness retrieves the roughness factor of the material.
	// A value of 0.0 represents a perfectly smooth surface, 1.0 represents a fully rough surface.
	//
	// Returns:
	//   - float32: the roughness factor
	Roughness() float32

	// PipelineKey retrieves the key identifying the render pipeline this material uses.
	//
	// Returns:
	//   - string: the pipeline key
	PipelineKey() string

	// SetPipelineKey sets the render pipeline key for this material.
	//
	// Parameters:
	//   - key: the pipeline key to associate with this material
	SetPipelineKey(key string)

	// Update reconciles every handler against the blocks the pipeline's
	// program currently declares. Called once per frame before binding;
	// a false result means at least one buffer was recreated and the
	// material must not be bound this frame.
	//
	// Parameters:
	//   - pl: the pipeline the material will be drawn with
	//
	// Returns:
	//   - bool: true if every handler's buffer is valid for binding
	Update(pl pipeline.Pipeline) bool

	// UniformHandler retrieves the handler feeding a named uniform block,
	// creating it on first use.
	//
	// Parameters:
	//   - blockName: the block name as declared in the shaders
	//
	// Returns:
	//   - *buffers.UniformHandler: the handler, never nil
	UniformHandler(blockName string) *buffers.UniformHandler

	// StorageHandler retrieves the handler feeding a named storage block,
	// creating it on first use.
	//
	// Parameters:
	//   - blockName: the block name as declared in the shaders
	//
	// Returns:
	//   - *buffers.StorageHandler: the handler, never nil
	StorageHandler(blockName string) *buffers.StorageHandler

	// PushHandler retrieves the handler staging the material's
	// push-constant block.
	//
	// Returns:
	//   - *buffers.PushHandler: the handler, never nil
	PushHandler() *buffers.PushHandler

	// SurfaceParams builds the upload-ready GPU parameter block from the
	// material's surface properties.
	//
	// Returns:
	//   - GPUSurfaceParams: the parameter block
	SurfaceParams() GPUSurfaceParams

	// Release destroys every handler's GPU buffer. The material can be
	// reused; handlers rebind on the next Update.
	Release()
}

var _ Material = &material{}

// NewMaterial creates a new Material instance configured with the provided
// options. Panics if alloc is nil.
//
// Parameters:
//   - alloc: the device allocator backing the material's handlers
//   - options: variadic list of MaterialBuilderOption functions to configure the material
//
// Returns:
//   - Material: a new Material instance
func NewMaterial(alloc device.Allocator, options ...MaterialBuilderOption) Material {
	if alloc == nil {
		panic("material: NewMaterial requires a non-nil allocator")
	}
	m := &material{
		baseColor:       [4]float32{1, 1, 1, 1},
		metallic:        0.0,
		roughness:       1.0,
		alloc:           alloc,
		uniformHandlers: make(map[string]*buffers.UniformHandler),
		storageHandlers: make(map[string]*buffers.StorageHandler),
		pushHandler:     buffers.NewPushHandler(),
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *material) Name() string {
	return m.name
}

func (m *material) BaseColor() [4]float32 {
	return m.baseColor
}

func (m *material) Metallic() float32 {
	return m.metallic
}

func (m *material) Roughness() float32 {
	return m.roughness
}

func (m *material) PipelineKey() string {
	return m.pipelineKey
}

func (m *material) SetPipelineKey(key string) {
	m.pipelineKey = key
}

func (m *material) Update(pl pipeline.Pipeline) bool {
	ok := true
	for name, block := range pl.Program().Blocks() {
		switch block.Kind {
		case spirv.BlockKindUniform:
			if !m.UniformHandler(name).Update(block) {
				ok = false
			}
		case spirv.BlockKindStorage:
			if !m.StorageHandler(name).Update(block) {
				ok = false
			}
		case spirv.BlockKindPush:
			if !m.pushHandler.Update(block) {
				ok = false
			}
		}
	}
	return ok
}

func (m *material) UniformHandler(blockName string) *buffers.UniformHandler {
	h, ok := m.uniformHandlers[blockName]
	if !ok {
		h = buffers.NewUniformHandler(m.alloc)
		m.uniformHandlers[blockName] = h
	}
	return h
}

func (m *material) StorageHandler(blockName string) *buffers.StorageHandler {
	h, ok := m.storageHandlers[blockName]
	if !ok {
		h = buffers.NewStorageHandler(m.alloc)
		m.storageHandlers[blockName] = h
	}
	return h
}

func (m *material) PushHandler() *buffers.PushHandler {
	return m.pushHandler
}

func (m *material) Release() {
	for _, h := range m.uniformHandlers {
		h.Release()
	}
	for _, h := range m.storageHandlers {
		h.Release()
	}
}
