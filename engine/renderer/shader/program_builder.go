package shader

import (
	"github.com/flint3d/flint-go/engine/renderer/spirv"
)

type programConfig struct {
	stages []*spirv.CompiledStage
}

// ProgramOption configures a Program at construction.
type ProgramOption func(*programConfig)

// WithCompiledStages adds compiled stages during construction. Construction
// panics if any stage fails to reflect, so this option is for stages already
// known to be valid (typically straight out of the compiler front-end); use
// AddStage for error handling.
//
// Parameters:
//   - blobs: the compiled stages to add
//
// Returns:
//   - ProgramOption: the option to pass to NewProgram
func WithCompiledStages(blobs ...*spirv.CompiledStage) ProgramOption {
	return func(cfg *programConfig) {
		cfg.stages = append(cfg.stages, blobs...)
	}
}
