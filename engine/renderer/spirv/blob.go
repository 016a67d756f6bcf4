package spirv

import (
	"encoding/binary"
	"fmt"
)

// Magic is the SPIR-V binary magic number, the first word of every valid module.
const Magic uint32 = 0x07230203

// CompiledStage holds one compiled shader stage: an immutable sequence of
// 32-bit SPIR-V words plus the pipeline stage it belongs to. When the blob was
// produced by the built-in compiler front-end it also carries the original WGSL
// source and entry point name, which native backends that cannot consume SPIR-V
// directly (WebGPU) use for module creation. A CompiledStage is owned by
// exactly one Program or Bundle.
type CompiledStage struct {
	words      []uint32
	stage      Stage
	source     string
	entryPoint string
}

// NewCompiledStage creates a CompiledStage from raw SPIR-V words. The word
// slice is copied so later mutation of the caller's slice cannot affect the
// blob.
//
// Parameters:
//   - words: the SPIR-V module as 32-bit words
//   - stage: the pipeline stage the module was compiled for
//
// Returns:
//   - *CompiledStage: the immutable stage blob
func NewCompiledStage(words []uint32, stage Stage) *CompiledStage {
	cp := make([]uint32, len(words))
	copy(cp, words)
	return &CompiledStage{words: cp, stage: stage, entryPoint: "main"}
}

// CompiledStageFromBytes creates a CompiledStage from a little-endian byte
// encoding of a SPIR-V module, validating the length and magic number.
//
// Parameters:
//   - raw: the module bytes, length must be a multiple of 4
//   - stage: the pipeline stage the module was compiled for
//
// Returns:
//   - *CompiledStage: the immutable stage blob
//   - error: non-nil if the byte length is not word-aligned or the magic number is wrong
func CompiledStageFromBytes(raw []byte, stage Stage) (*CompiledStage, error) {
	if len(raw) == 0 || len(raw)%4 != 0 {
		return nil, fmt.Errorf("spirv: binary length %d is not a multiple of 4", len(raw))
	}
	words := make([]uint32, len(raw)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	if words[0] != Magic {
		return nil, fmt.Errorf("spirv: bad magic number 0x%08x", words[0])
	}
	return &CompiledStage{words: words, stage: stage, entryPoint: "main"}, nil
}

// Words returns the SPIR-V words of the module. The returned slice is the
// blob's backing storage and must not be modified.
//
// Returns:
//   - []uint32: the module words
func (c *CompiledStage) Words() []uint32 {
	return c.words
}

// Bytes returns the module encoded as little-endian bytes, suitable for
// writing to disk or packing into a Bundle.
//
// Returns:
//   - []byte: the little-endian encoding of the module words
func (c *CompiledStage) Bytes() []byte {
	raw := make([]byte, len(c.words)*4)
	for i, w := range c.words {
		binary.LittleEndian.PutUint32(raw[i*4:], w)
	}
	return raw
}

// Stage returns the pipeline stage this blob was compiled for.
//
// Returns:
//   - Stage: the stage tag
func (c *CompiledStage) Stage() Stage {
	return c.stage
}

// Source returns the WGSL source the blob was compiled from, or an empty
// string when the blob was loaded from a bundle or supplied as raw SPIR-V.
//
// Returns:
//   - string: the WGSL source, possibly empty
func (c *CompiledStage) Source() string {
	return c.source
}

// EntryPoint returns the entry point function name, "main" by default.
//
// Returns:
//   - string: the entry point name
func (c *CompiledStage) EntryPoint() string {
	return c.entryPoint
}

// WithSource returns a copy of the blob carrying the given WGSL source and
// entry point name. Used by the compiler front-end; the word data is shared
// since it is immutable.
//
// Parameters:
//   - source: the WGSL source the words were compiled from
//   - entryPoint: the entry point function name ("main" if empty)
//
// Returns:
//   - *CompiledStage: the annotated blob
func (c *CompiledStage) WithSource(source, entryPoint string) *CompiledStage {
	if entryPoint == "" {
		entryPoint = "main"
	}
	return &CompiledStage{words: c.words, stage: c.stage, source: source, entryPoint: entryPoint}
}
