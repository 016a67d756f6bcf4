package buffers

import (
	"github.com/flint3d/flint-go/engine/renderer/spirv"
)

// PushHandlerOption configures a PushHandler at construction.
type PushHandlerOption func(*PushHandler)

// WithPushMultipipeline marks the handler as shared across pipelines with a
// common push block layout. It binds once and tolerates per-pipeline block
// differences instead of resizing its staging bytes.
//
// Returns:
//   - PushHandlerOption: the option to pass to NewPushHandler
func WithPushMultipipeline() PushHandlerOption {
	return func(h *PushHandler) {
		h.multipipeline = true
	}
}

// WithPushBlock binds the handler to a block immediately, sizing its staging
// bytes at construction instead of on the first Update.
//
// Parameters:
//   - block: the block to bind
//
// Returns:
//   - PushHandlerOption: the option to pass to NewPushHandler
func WithPushBlock(block *spirv.UniformBlock) PushHandlerOption {
	return func(h *PushHandler) {
		h.block = block.Clone()
	}
}
