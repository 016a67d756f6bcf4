package buffers

import (
	"github.com/flint3d/flint-go/engine/renderer/spirv"
)

// Recorder records commands that carry inline constant data. The native
// backend implements it on top of its command encoding; tests implement it
// with a byte slice.
type Recorder interface {
	// PushConstants records an inline constant write visible to the given
	// stages starting at the given byte offset.
	//
	// Parameters:
	//   - stages: the stages that read the range
	//   - offset: the byte offset inside the push-constant block
	//   - data: the bytes to record
	//
	// Returns:
	//   - error: non-nil if the backend rejects the write
	PushConstants(stages spirv.Stage, offset uint32, data []byte) error
}

// PushHandler stages push-constant data in host memory. Push constants live in
// command-buffer state rather than a buffer, so the handler is much simpler
// than its buffer-backed siblings: no allocation, no mapping, no dirty
// tracking. Writes are unconditional copies and BindPush records the whole
// block every time it is called.
type PushHandler struct {
	multipipeline bool

	block *spirv.UniformBlock
	data  []byte
}

// NewPushHandler creates a handler with no bound block. The first Update
// binds it.
//
// Parameters:
//   - opts: optional configuration
//
// Returns:
//   - *PushHandler: the new handler
func NewPushHandler(opts ...PushHandlerOption) *PushHandler {
	h := &PushHandler{}
	for _, opt := range opts {
		opt(h)
	}
	if h.block != nil {
		h.data = make([]byte, h.block.Size)
	}
	return h
}

// Update rebinds the handler when the pipeline's push block changed
// structurally, resizing the staging bytes to the new block and discarding any
// staged writes. A multipipeline handler binds to the first block it sees and
// tolerates per-pipeline differences afterwards.
//
// Parameters:
//   - block: the pipeline's push-constant block, nil when the pipeline has none
//
// Returns:
//   - bool: true if the staged bytes are valid for recording this frame, false when they were just reallocated
func (h *PushHandler) Update(block *spirv.UniformBlock) bool {
	if (h.multipipeline && h.block == nil) ||
		(!h.multipipeline && !h.block.Equal(block)) {
		h.block = block.Clone()
		if block != nil && block.Size > 0 {
			h.data = make([]byte, block.Size)
		} else {
			h.data = nil
		}
		return false
	}
	return true
}

// Push writes raw bytes at a byte offset inside the staged block. Writes past
// the block are ignored.
//
// Parameters:
//   - data: the bytes to write
//   - offset: the byte offset inside the block
func (h *PushHandler) Push(data []byte, offset uint32) {
	if h.data == nil || int(offset)+len(data) > len(h.data) {
		return
	}
	copy(h.data[offset:], data)
}

// PushNamed writes bytes to a named member of the block, clamping the write to
// the member's declared size. Unknown names are ignored.
//
// Parameters:
//   - name: the member name as declared in the shader
//   - data: the bytes to write
func (h *PushHandler) PushNamed(name string, data []byte) {
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

// PushConstant writes a typed value to a named member of the handler's block.
//
// Parameters:
//   - h: the handler to write through
//   - name: the member name as declared in the shader
//   - value: the value, its in-memory layout must match the shader layout
func PushConstant[T any](h *PushHandler, name string, value T) {
	h.PushNamed(name, valueBytes(&value))
}

// BindPush records the staged block into the given recorder for the stages the
// block declares. A handler with no bound block records nothing.
//
// Parameters:
//   - rec: the command recorder
//
// Returns:
//   - error: non-nil if the recorder rejects the write
func (h *PushHandler) BindPush(rec Recorder) error {
	if h.block == nil || len(h.data) == 0 {
		return nil
	}
	return rec.PushConstants(h.block.Stages, 0, h.data)
}

// Block returns the handler's snapshot of the bound block, nil before the
// first bind.
//
// Returns:
//   - *spirv.UniformBlock: the bound block snapshot
func (h *PushHandler) Block() *spirv.UniformBlock {
	return h.block
}

// Data returns the staged bytes, nil before the first bind. The slice is the
// handler's backing storage and must not be modified.
//
// Returns:
//   - []byte: the staged block contents
func (h *PushHandler) Data() []byte {
	return h.data
}
