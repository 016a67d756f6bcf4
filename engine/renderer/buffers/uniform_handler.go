package buffers

import (
	"bytes"
	"log"

	"github.com/flint3d/flint-go/engine/renderer/device"
	"github.com/flint3d/flint-go/engine/renderer/spirv"
)

// UniformHandler owns one uniform buffer and keeps it synchronized with a
// reflected uniform block across frames. Update is called once per frame with
// the block the current pipeline declares; it recreates the buffer when the
// block's layout changed structurally and otherwise reports whether the cached
// contents are still bindable. Pushes between Updates write through a cached
// mapping and only mark the handler dirty when the bytes actually differ.
//
// A multipipeline handler is shared by several pipelines whose blocks share a
// layout; it binds to the first block it sees and ignores layout differences
// afterwards instead of thrashing the buffer.
type UniformHandler struct {
	alloc         device.Allocator
	multipipeline bool

	block  *spirv.UniformBlock
	size   uint32
	buffer *UniformBuffer
	data   []byte
	bound  bool
	status Status
}

// NewUniformHandler creates a handler with no bound block. The first Update
// binds it. Panics if alloc is nil.
//
// Parameters:
//   - alloc: the device allocator backing the handler's buffers
//   - opts: optional configuration
//
// Returns:
//   - *UniformHandler: the new handler
func NewUniformHandler(alloc device.Allocator, opts ...UniformHandlerOption) *UniformHandler {
	if alloc == nil {
		panic("buffers: NewUniformHandler requires a non-nil allocator")
	}
	h := &UniformHandler{alloc: alloc, status: StatusNormal}
	for _, opt := range opts {
		opt(h)
	}
	if h.block != nil {
		h.size = uint32(h.block.Size)
		buf, err := NewUniformBuffer(alloc, uint64(h.size), nil)
		if err != nil {
			log.Printf("buffers: uniform handler initial buffer: %v", err)
		} else {
			h.buffer = buf
		}
	}
	return h
}

// Update reconciles the handler with the block the current pipeline declares.
// A structural change (first bind, or a layout that no longer matches) drops
// the old buffer, allocates a fresh one, and returns false so the caller skips
// binding this frame. Otherwise any pending writes are flushed and unmapped
// and the handler reports true.
//
// Parameters:
//   - block: the pipeline's uniform block, nil when the pipeline has none
//
// Returns:
//   - bool: true if the handler's buffer is valid for binding this frame
func (h *UniformHandler) Update(block *spirv.UniformBlock) bool {
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
			buf, err := NewUniformBuffer(h.alloc, uint64(h.size), nil)
			if err != nil {
				log.Printf("buffers: uniform handler reallocate: %v", err)
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
				log.Printf("buffers: uniform handler flush: %v", err)
			}
			h.buffer.Unmap()
			h.bound = false
		}
		h.status = StatusNormal
	}
	return true
}

// Push writes raw bytes at a byte offset inside the block. The buffer is
// mapped on first use and stays mapped until the next clean Update. When the
// handler is already dirty the byte comparison is skipped and the data is
// copied unconditionally.
//
// Parameters:
//   - data: the bytes to write
//   - offset: the byte offset inside the block
func (h *UniformHandler) Push(data []byte, offset uint32) {
	if h.block == nil || h.buffer == nil {
		return
	}
	if !h.bound {
		m, err := h.buffer.Map()
		if err != nil {
			log.Printf("buffers: uniform handler map: %v", err)
			return
		}
		h.data = m
		h.bound = true
	}
	end := int(offset) + len(data)
	if end > len(h.data) {
		log.Printf("buffers: uniform push of %d bytes at offset %d overflows %d-byte block", len(data), offset, len(h.data))
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
func (h *UniformHandler) PushNamed(name string, data []byte) {
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

// PushUniform writes a typed value to a named member of the handler's block.
//
// Parameters:
//   - h: the handler to write through
//   - name: the member name as declared in the shader
//   - value: the value, its in-memory layout must match the shader layout
func PushUniform[T any](h *UniformHandler, name string, value T) {
	h.PushNamed(name, valueBytes(&value))
}

// Block returns the handler's snapshot of the bound block, nil before the
// first bind.
//
// Returns:
//   - *spirv.UniformBlock: the bound block snapshot
func (h *UniformHandler) Block() *spirv.UniformBlock {
	return h.block
}

// Buffer returns the backing uniform buffer, nil before the first bind.
//
// Returns:
//   - *UniformBuffer: the backing buffer
func (h *UniformHandler) Buffer() *UniformBuffer {
	return h.buffer
}

// Status returns the handler's current dirty state.
//
// Returns:
//   - Status: the state after the most recent Update or Push
func (h *UniformHandler) Status() Status {
	return h.status
}

// Release destroys the backing buffer. The handler can be reused; the next
// Update rebinds from scratch.
func (h *UniformHandler) Release() {
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
