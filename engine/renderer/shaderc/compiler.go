// Package shaderc is the offline compiler front-end: it turns WGSL source into
// compiled stage blobs and batches whole shader directories into bundle
// archives. Runtime code that ships with prebuilt bundles never needs this
// package.
package shaderc

import (
	"fmt"
	"os"

	"github.com/gogpu/naga"
	nagaspirv "github.com/gogpu/naga/spirv"

	"github.com/flint3d/flint-go/engine/renderer/spirv"
)

// CompileWGSL compiles WGSL source into a stage blob. Debug info is always
// enabled so the reflection pass sees variable and member names; the size cost
// only exists in memory, bundles strip nothing and ship the same words.
//
// Parameters:
//   - source: the WGSL source text
//   - stage: the pipeline stage the entry point belongs to
//   - opts: optional configuration
//
// Returns:
//   - *spirv.CompiledStage: the compiled blob, annotated with the source for WGSL-native backends
//   - error: non-nil if compilation or validation fails
func CompileWGSL(source string, stage spirv.Stage, opts ...CompileOption) (*spirv.CompiledStage, error) {
	cfg := compileConfig{entryPoint: "main"}
	for _, opt := range opts {
		opt(&cfg)
	}
	raw, err := naga.CompileWithOptions(source, naga.CompileOptions{
		SPIRVVersion: nagaspirv.Version1_3,
		Debug:        true,
		Validate:     !cfg.skipValidation,
	})
	if err != nil {
		return nil, fmt.Errorf("shaderc: compile %s stage: %w", stage, err)
	}
	blob, err := spirv.CompiledStageFromBytes(raw, stage)
	if err != nil {
		return nil, fmt.Errorf("shaderc: compiler produced an invalid binary: %w", err)
	}
	return blob.WithSource(source, cfg.entryPoint), nil
}

// CompileFile reads a WGSL file and compiles it for the given stage.
//
// Parameters:
//   - path: the source file path
//   - stage: the pipeline stage the entry point belongs to
//   - opts: optional configuration
//
// Returns:
//   - *spirv.CompiledStage: the compiled blob
//   - error: non-nil if the file cannot be read or compilation fails
func CompileFile(path string, stage spirv.Stage, opts ...CompileOption) (*spirv.CompiledStage, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("shaderc: read %s: %w", path, err)
	}
	blob, err := CompileWGSL(string(source), stage, opts...)
	if err != nil {
		return nil, fmt.Errorf("shaderc: %s: %w", path, err)
	}
	return blob, nil
}

type compileConfig struct {
	entryPoint     string
	skipValidation bool
}

// CompileOption configures a single compilation.
type CompileOption func(*compileConfig)

// WithEntryPoint overrides the entry point name recorded on the blob, "main"
// by default.
//
// Parameters:
//   - name: the entry point function name
//
// Returns:
//   - CompileOption: the option to pass to CompileWGSL or CompileFile
func WithEntryPoint(name string) CompileOption {
	return func(cfg *compileConfig) {
		if name != "" {
			cfg.entryPoint = name
		}
	}
}

// WithoutValidation skips IR validation before code generation. Only useful
// for shaders already validated in a previous build step.
//
// Returns:
//   - CompileOption: the option to pass to CompileWGSL or CompileFile
func WithoutValidation() CompileOption {
	return func(cfg *compileConfig) {
		cfg.skipValidation = true
	}
}
