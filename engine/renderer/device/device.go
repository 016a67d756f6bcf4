// Package device abstracts the GPU objects the shader and buffer layers need:
// memory allocations, shader modules, and descriptor set layouts. Resources are
// referred to by opaque generational handles rather than raw pointers, so a
// stale handle held across a destroy is detected instead of corrupting memory.
package device

import (
	"github.com/flint3d/flint-go/engine/renderer/spirv"
)

// BufferUsage is a bitmask of the ways a buffer allocation may be used.
type BufferUsage uint32

const (
	// BufferUsageTransferSrc allows the buffer to be the source of a copy.
	BufferUsageTransferSrc BufferUsage = 1 << 0

	// BufferUsageTransferDst allows the buffer to be the destination of a copy.
	BufferUsageTransferDst BufferUsage = 1 << 1

	// BufferUsageUniform allows binding as a uniform buffer.
	BufferUsageUniform BufferUsage = 1 << 2

	// BufferUsageStorage allows binding as a storage buffer.
	BufferUsageStorage BufferUsage = 1 << 3

	// BufferUsageIndex allows binding as an index buffer.
	BufferUsageIndex BufferUsage = 1 << 4

	// BufferUsageVertex allows binding as a vertex buffer.
	BufferUsageVertex BufferUsage = 1 << 5

	// BufferUsageIndirect allows use as an indirect draw argument buffer.
	BufferUsageIndirect BufferUsage = 1 << 6
)

// MemoryUsage selects which memory heap an allocation should live in.
type MemoryUsage int

const (
	// MemoryUsageGPUOnly places the allocation in device-local memory not
	// visible to the host.
	MemoryUsageGPUOnly MemoryUsage = iota

	// MemoryUsageCPUToGPU places the allocation in host-visible memory
	// optimized for upload.
	MemoryUsageCPUToGPU

	// MemoryUsageGPUToCPU places the allocation in host-visible memory
	// optimized for readback.
	MemoryUsageGPUToCPU
)

// AllocationFlags adjust how an allocation is created.
type AllocationFlags uint32

const (
	// AllocationFlagPersistentMap keeps the allocation mapped for its whole
	// lifetime. Map returns the same view every call and Unmap is a no-op.
	AllocationFlagPersistentMap AllocationFlags = 1 << 0
)

// AllocationCreateInfo describes a buffer allocation request.
type AllocationCreateInfo struct {
	// Label is a debug name attached to the underlying buffer.
	Label string
	// Size is the allocation size in bytes, must be greater than zero.
	Size uint64
	// Usage is the set of buffer usages the allocation must support.
	Usage BufferUsage
	// Memory selects the memory heap.
	Memory MemoryUsage
	// Flags adjust the allocation behavior.
	Flags AllocationFlags
}

// Allocation is an opaque generational handle to a buffer allocation. The zero
// value is invalid.
type Allocation struct {
	index      uint32
	generation uint32
}

// Valid reports whether the handle has ever been assigned. A valid handle may
// still be stale if the allocation was destroyed.
//
// Returns:
//   - bool: true if the handle is non-zero
func (a Allocation) Valid() bool {
	return a.generation != 0
}

// ShaderModule is an opaque generational handle to a compiled shader module.
// The zero value is invalid.
type ShaderModule struct {
	index      uint32
	generation uint32
}

// Valid reports whether the handle has ever been assigned.
//
// Returns:
//   - bool: true if the handle is non-zero
func (m ShaderModule) Valid() bool {
	return m.generation != 0
}

// DescriptorSetLayout is an opaque generational handle to a descriptor set
// layout. The zero value is invalid.
type DescriptorSetLayout struct {
	index      uint32
	generation uint32
}

// Valid reports whether the handle has ever been assigned.
//
// Returns:
//   - bool: true if the handle is non-zero
func (l DescriptorSetLayout) Valid() bool {
	return l.generation != 0
}

// Allocator manages host-visible buffer memory. Implementations decide whether
// memory is coherent and whether persistent mapping is honored; callers query
// both properties instead of assuming them.
type Allocator interface {
	// Allocate creates a buffer allocation.
	//
	// Parameters:
	//   - info: the allocation request
	//
	// Returns:
	//   - Allocation: a handle to the new allocation
	//   - error: non-nil if the request is invalid or out of memory
	Allocate(info AllocationCreateInfo) (Allocation, error)

	// Map returns a writable view of the allocation's host-visible bytes.
	// For persistently mapped allocations the same view is returned every
	// call.
	//
	// Parameters:
	//   - a: the allocation to map
	//
	// Returns:
	//   - []byte: the mapped bytes, length equals the allocation size
	//   - error: non-nil if the handle is stale or the memory is not host-visible
	Map(a Allocation) ([]byte, error)

	// Unmap releases a mapping obtained from Map. For persistently mapped
	// allocations this is a no-op.
	//
	// Parameters:
	//   - a: the allocation to unmap
	Unmap(a Allocation)

	// Flush makes host writes visible to the device. Required after writing
	// through a mapping when IsCoherent reports false.
	//
	// Parameters:
	//   - a: the allocation to flush
	//
	// Returns:
	//   - error: non-nil if the handle is stale
	Flush(a Allocation) error

	// Invalidate makes device writes visible to the host. Required before
	// reading through a mapping when IsCoherent reports false.
	//
	// Parameters:
	//   - a: the allocation to invalidate
	//
	// Returns:
	//   - error: non-nil if the handle is stale
	Invalidate(a Allocation) error

	// IsCoherent reports whether host writes to the allocation are visible
	// to the device without an explicit Flush.
	//
	// Parameters:
	//   - a: the allocation to query
	//
	// Returns:
	//   - bool: true if the memory is host-coherent
	IsCoherent(a Allocation) bool

	// IsPersistentlyMapped reports whether the allocation was created with a
	// lifetime mapping.
	//
	// Parameters:
	//   - a: the allocation to query
	//
	// Returns:
	//   - bool: true if the allocation stays mapped until destroyed
	IsPersistentlyMapped(a Allocation) bool

	// Size returns the byte size of the allocation, 0 for stale handles.
	//
	// Parameters:
	//   - a: the allocation to query
	//
	// Returns:
	//   - uint64: the allocation size in bytes
	Size(a Allocation) uint64

	// Destroy releases the allocation. The handle becomes stale; destroying
	// a stale handle is a no-op.
	//
	// Parameters:
	//   - a: the allocation to destroy
	Destroy(a Allocation)
}

// Device creates and destroys the GPU objects derived from shader reflection.
type Device interface {
	// Allocator returns the device's buffer memory allocator.
	//
	// Returns:
	//   - Allocator: the allocator, never nil
	Allocator() Allocator

	// CreateShaderModule creates a shader module from a compiled stage blob.
	//
	// Parameters:
	//   - blob: the compiled stage
	//   - label: a debug name for the module
	//
	// Returns:
	//   - ShaderModule: a handle to the new module
	//   - error: non-nil if the blob cannot be consumed by this backend
	CreateShaderModule(blob *spirv.CompiledStage, label string) (ShaderModule, error)

	// DestroyShaderModule releases a shader module. Stale handles are ignored.
	//
	// Parameters:
	//   - m: the module to destroy
	DestroyShaderModule(m ShaderModule)

	// CreateDescriptorSetLayout creates a descriptor set layout from merged
	// program bindings.
	//
	// Parameters:
	//   - label: a debug name for the layout
	//   - bindings: the merged bindings in ascending slot order
	//
	// Returns:
	//   - DescriptorSetLayout: a handle to the new layout
	//   - error: non-nil if a binding kind is not supported by this backend
	CreateDescriptorSetLayout(label string, bindings []spirv.LayoutBinding) (DescriptorSetLayout, error)

	// DestroyDescriptorSetLayout releases a layout. Stale handles are ignored.
	//
	// Parameters:
	//   - l: the layout to destroy
	DestroyDescriptorSetLayout(l DescriptorSetLayout)
}
