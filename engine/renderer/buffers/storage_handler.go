package buffers

import (
	"bytes"
	"log"

	"github.com/flint3d/flint-go/engine/renderer/device"
	"github.com/flint3d/flint-go/engine/renderer/spirv"
)

// StorageHandler owns one storage buffer and keeps it synchronized with a
// reflected storage block. It follows the same per-frame Update contract as
// UniformHandler, with one addition: storage blocks end in runtime-sized
// arrays, so a whole-buffer push whose length differs from the current
// capacity records the new size and defers reallocation to the next Update
// instead of reallocating mid-frame.
type StorageHandler struct {
	alloc         device.Allocator
	multipipeline bool

	block  *spirv.UniformBlock
	size   uint32
	buffer *StorageBuffer
	data   []byte
	bound  bool
	status Status
}

// NewStorageHandler creates a handler with no bound block. The first Update
// binds it. Panics if alloc is nil.
//
// Parameters:
//   - alloc: the device allocator backing the handler's buffers
//   - opts: optional configuration
//
// Returns:
//   - *StorageHandler: the new handler
func NewStorageHandler(alloc device.Allocator, opts ...StorageHandlerOption) *StorageHandler {
	if alloc == nil {
		panic("buffers: NewStorageHandler requires a non-nil allocator")
	}
	h := &StorageHandler{alloc: alloc, status: StatusReset}
	for _, opt := range opts {
		opt(h)
	}
	if h.block != nil {
		h.status = StatusChanged
		h.size = uint32(h.block.Size)
		if h.size > 0 {
			buf, err := NewStorageBuffer(alloc, uint64(h.size), nil)
			if err != nil {
				log.Printf("buffers: storage handler initial buffer: %v", err)
			} else {
				h.buffer = buf
			}
		}
	}
	return h
}

// Update reconciles the handler with the block the current pipeline declares,
// applying any size recorded by a deferred whole-buffer push. Returns false on
// a structural change, meaning the buffer was recreated and must not be bound
// this frame.
//
// Parameters:
//   - block: the pipeline's storage block, nil when the pipeline has none
//
// Returns:
//   - bool: true if the handler's buffer is valid for binding this frame
func (h *StorageHandler) Update(block *spirv.UniformBlock) bool {
	if h.status == StatusReset ||
		(h.multipipeline && h.block == nil) ||
		(!h.multipipeline && !h.block.Equal(block)) {
		if block != nil &&
			((h.size == 0 && h.block == nil) ||
				(h.block != nil && !h.block.Equal(block) && uint32(h.block.Size) == h.size)) {
			h.size = uint32(block.Size)
		}
		h.block = block.Clone()
		h.bound = false
		if h.buffer != nil {
			h.buffer.Release()
			h.buffer = nil
		}
		h.data = nil
		if h.size > 0 {
			buf, err := NewStorageBuffer(h.alloc, uint64(h.size), nil)
			if err != nil {
				log.Printf("buffers: storage handler reallocate: %v", err)
			} else {
				h.buffer = buf
			}
		}
		h.status = StatusChanged
		return false
	}

	if h.status != StatusNormal {
		if h.bound {
			if err := h.buffer.Flush(); err != nil {
				log.Printf("buffers: storage handler flush: %v", err)
			}
			h.buffer.Unmap()
			h.bound = false
		}
		h.status = StatusNormal
	}
	return true
}

// PushAll replaces the whole buffer contents. When the data length differs
// from the current capacity the new size is recorded and the handler is put
// in the reset state; the next Update reallocates and the caller is expected
// to push again.
//
// Parameters:
//   - data: the full buffer contents
func (h *StorageHandler) PushAll(data []byte) {
	if uint32(len(data)) != h.size {
		h.size = uint32(len(data))
		h.status = StatusReset
		return
	}
	h.Push(data, 0)
}

// Push writes raw bytes at a byte offset. The buffer is mapped on first use
// and stays mapped until the next clean Update; unchanged bytes do not dirty
// the handler.
//
// Parameters:
//   - data: the bytes to write
//   - offset: the byte offset inside the buffer
func (h *StorageHandler) Push(data []byte, offset uint32) {
	if h.block == nil || h.buffer == nil {
		return
	}
	if !h.bound {
		m, err := h.buffer.Map()
		if err != nil {
			log.Printf("buffers: storage handler map: %v", err)
			return
		}
		h.data = m
		h.bound = true
	}
	end := int(offset) + len(data)
	if end > len(h.data) {
		log.Printf("buffers: storage push of %d bytes at offset %d overflows %d-byte buffer", len(data), offset, len(h.data))
		h.status = StatusOverflow
		return
	}
	if h.status == StatusChanged || !bytes.Equal(h.data[offset:end], data) {
		copy(h.data[offset:end], data)
		h.status = StatusChanged
	}
}

// PushNamed writes bytes to a named member of the block, clamping the write to
// the member's declared size. Unknown names are ignored.
//
// Parameters:
//   - name: the member name as declared in the shader
//   - data: the bytes to write
func (h *StorageHandler) PushNamed(name string, data []byte) {
	if h.block == nil {
		return
	}
	u, ok := h.block.Uniform(name)
	if !ok {
		return
	}
	n := clampPushSize(u.Size, len(data))
	h.Push(data[:n], u.Offset)
}

// PushStorage writes a typed value to a named member of the handler's block.
//
// Parameters:
//   - h: the handler to write through
//   - name: the member name as declared in the shader
//   - value: the value, its in-memory layout must match the shader layout
func PushStorage[T any](h *StorageHandler, name string, value T) {
	h.PushNamed(name, valueBytes(&value))
}

// Block returns the handler's snapshot of the bound block, nil before the
// first bind.
//
// Returns:
//   - *spirv.UniformBlock: the bound block snapshot
func (h *StorageHandler) Block() *spirv.UniformBlock {
	return h.block
}

// Buffer returns the backing storage buffer, nil before the first bind or
// while a deferred reallocation is pending.
//
// Returns:
//   - *StorageBuffer: the backing buffer
func (h *StorageHandler) Buffer() *StorageBuffer {
	return h.buffer
}

// Status returns the handler's current dirty state.
//
// Returns:
//   - Status: the state after the most recent Update or Push
func (h *StorageHandler) Status() Status {
	return h.status
}

// Release destroys the backing buffer. The handler can be reused; the next
// Update rebinds from scratch.
func (h *StorageHandler) Release() {
	if h.buffer != nil {
		h.buffer.Release()
		h.buffer = nil
	}
	h.data = nil
	h.bound = false
	h.block = nil
	h.size = 0
	h.status = StatusReset
}
