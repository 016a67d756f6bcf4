package buffers

import (
	"github.com/flint3d/flint-go/engine/renderer/spirv"
)

// StorageHandlerOption configures a StorageHandler at construction.
type StorageHandlerOption func(*StorageHandler)

// WithStorageMultipipeline marks the handler as shared across pipelines with a
// common block layout.
//
// Returns:
//   - StorageHandlerOption: the option to pass to NewStorageHandler
func WithStorageMultipipeline() StorageHandlerOption {
	return func(h *StorageHandler) {
		h.multipipeline = true
	}
}

// WithStorageBlock binds the handler to a block immediately, allocating its
// buffer at construction instead of on the first Update.
//
// Parameters:
//   - block: the block to bind
//
// Returns:
//   - StorageHandlerOption: the option to pass to NewStorageHandler
func WithStorageBlock(block *spirv.UniformBlock) StorageHandlerOption {
	return func(h *StorageHandler) {
		h.block = block.Clone()
	}
}
