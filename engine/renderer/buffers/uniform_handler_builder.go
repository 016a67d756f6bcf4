package buffers

import (
	"github.com/flint3d/flint-go/engine/renderer/spirv"
)

// UniformHandlerOption configures a UniformHandler at construction.
type UniformHandlerOption func(*UniformHandler)

// WithMultipipeline marks the handler as shared across pipelines with a common
// block layout. It binds once and tolerates per-pipeline block differences
// instead of recreating its buffer.
//
// Returns:
//   - UniformHandlerOption: the option to pass to NewUniformHandler
func WithMultipipeline() UniformHandlerOption {
	return func(h *UniformHandler) {
		h.multipipeline = true
	}
}

// WithUniformBlock binds the handler to a block immediately, allocating its
// buffer at construction instead of on the first Update.
//
// Parameters:
//   - block: the block to bind
//
// Returns:
//   - UniformHandlerOption: the option to pass to NewUniformHandler
func WithUniformBlock(block *spirv.UniformBlock) UniformHandlerOption {
	return func(h *UniformHandler) {
		h.block = block.Clone()
	}
}
