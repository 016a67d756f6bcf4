package shaderc

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"

	"github.com/flint3d/flint-go/engine/renderer/shader"
	"github.com/flint3d/flint-go/engine/renderer/spirv"
)

// Source is one shader to compile into a bundle.
type Source struct {
	// Name is the archive entry name, typically the shader's logical name
	// without an extension.
	Name string
	// Stage is the pipeline stage of the entry point.
	Stage spirv.Stage
	// WGSL is the shader source text.
	WGSL string
	// EntryPoint overrides the entry point name, "main" when empty.
	EntryPoint string
}

// BuildBundle compiles every source and packs the results into a bundle
// archive. Compilation runs on a bounded worker pool since large shader sets
// dominate build time; results are collected per-frame-style with a WaitGroup
// barrier rather than waiting for the pool to idle out. Any compile failure
// fails the whole build and names the offending shader.
//
// Parameters:
//   - sources: the shaders to compile
//   - opts: optional configuration
//
// Returns:
//   - *shader.Bundle: the populated archive
//   - error: non-nil if any source fails to compile or to pack
func BuildBundle(sources []Source, opts ...BuildOption) (*shader.Bundle, error) {
	cfg := buildConfig{workers: runtime.NumCPU()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.workers < 1 {
		cfg.workers = 1
	}

	blobs := make([]*spirv.CompiledStage, len(sources))
	errs := make([]error, len(sources))

	pool := worker.NewDynamicWorkerPool(cfg.workers, 256, 1*time.Second)
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		idx := i
		s := src
		pool.SubmitTask(worker.Task{
			ID: idx,
			Do: func() (any, error) {
				defer wg.Done()
				var compileOpts []CompileOption
				if s.EntryPoint != "" {
					compileOpts = append(compileOpts, WithEntryPoint(s.EntryPoint))
				}
				blob, err := CompileWGSL(s.WGSL, s.Stage, compileOpts...)
				if err != nil {
					errs[idx] = fmt.Errorf("shaderc: %q: %w", s.Name, err)
					return nil, err
				}
				blobs[idx] = blob
				return nil, nil
			},
		})
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	bundle := shader.NewBundle()
	for i, src := range sources {
		if err := bundle.Add(src.Name, blobs[i]); err != nil {
			return nil, err
		}
	}
	return bundle, nil
}

// BuildBundleFile compiles every source and writes the archive to a file.
//
// Parameters:
//   - path: the destination archive path
//   - sources: the shaders to compile
//   - opts: optional configuration
//
// Returns:
//   - error: non-nil if compilation or the final write fails
func BuildBundleFile(path string, sources []Source, opts ...BuildOption) error {
	bundle, err := BuildBundle(sources, opts...)
	if err != nil {
		return err
	}
	return bundle.Save(path)
}

type buildConfig struct {
	workers int
}

// BuildOption configures a bundle build.
type BuildOption func(*buildConfig)

// WithWorkers sets the number of parallel compile workers, one per CPU by
// default.
//
// Parameters:
//   - n: the worker count, values below 1 are clamped to 1
//
// Returns:
//   - BuildOption: the option to pass to BuildBundle
func WithWorkers(n int) BuildOption {
	return func(cfg *buildConfig) {
		cfg.workers = n
	}
}
