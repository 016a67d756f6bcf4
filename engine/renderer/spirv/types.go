package spirv

// DescriptorKind is the category of GPU-bound resource a binding refers to.
type DescriptorKind int

const (
	// DescriptorKindUndefined marks a binding whose resource category could not be determined.
	DescriptorKindUndefined DescriptorKind = iota

	// DescriptorKindUniformBuffer is a read-only uniform buffer binding.
	DescriptorKindUniformBuffer

	// DescriptorKindStorageBuffer is a read-write (or read-only decorated) storage buffer binding.
	DescriptorKindStorageBuffer

	// DescriptorKindSampler is a standalone sampler binding.
	DescriptorKindSampler

	// DescriptorKindSampledImage is a sampled texture binding.
	DescriptorKindSampledImage

	// DescriptorKindStorageImage is a storage texture binding.
	DescriptorKindStorageImage

	// DescriptorKindCombinedImageSampler is a combined texture+sampler binding.
	DescriptorKindCombinedImageSampler
)

// String returns a short lowercase name for the descriptor kind.
func (k DescriptorKind) String() string {
	switch k {
	case DescriptorKindUniformBuffer:
		return "uniform_buffer"
	case DescriptorKindStorageBuffer:
		return "storage_buffer"
	case DescriptorKindSampler:
		return "sampler"
	case DescriptorKindSampledImage:
		return "sampled_image"
	case DescriptorKindStorageImage:
		return "storage_image"
	case DescriptorKindCombinedImageSampler:
		return "combined_image_sampler"
	default:
		return "undefined"
	}
}

// BlockKind identifies what backing mechanism a uniform block is bound through.
type BlockKind int

const (
	// BlockKindNone marks an unclassified block.
	BlockKindNone BlockKind = iota

	// BlockKindUniform is a uniform-buffer-backed block.
	BlockKindUniform

	// BlockKindStorage is a storage-buffer-backed block.
	BlockKindStorage

	// BlockKindPush is a push-constant block passed in command-buffer state.
	BlockKindPush
)

// Format identifies the numeric layout of a vertex input attribute.
type Format int

const (
	// FormatUndefined marks an attribute whose format could not be determined.
	FormatUndefined Format = iota
	// FormatR32Float is a single 32-bit float.
	FormatR32Float
	// FormatR32G32Float is a 2-component 32-bit float vector.
	FormatR32G32Float
	// FormatR32G32B32Float is a 3-component 32-bit float vector.
	FormatR32G32B32Float
	// FormatR32G32B32A32Float is a 4-component 32-bit float vector.
	FormatR32G32B32A32Float
	// FormatR32Sint is a single 32-bit signed integer.
	FormatR32Sint
	// FormatR32G32Sint is a 2-component 32-bit signed integer vector.
	FormatR32G32Sint
	// FormatR32G32B32Sint is a 3-component 32-bit signed integer vector.
	FormatR32G32B32Sint
	// FormatR32G32B32A32Sint is a 4-component 32-bit signed integer vector.
	FormatR32G32B32A32Sint
	// FormatR32Uint is a single 32-bit unsigned integer.
	FormatR32Uint
	// FormatR32G32Uint is a 2-component 32-bit unsigned integer vector.
	FormatR32G32Uint
	// FormatR32G32B32Uint is a 3-component 32-bit unsigned integer vector.
	FormatR32G32B32Uint
	// FormatR32G32B32A32Uint is a 4-component 32-bit unsigned integer vector.
	FormatR32G32B32A32Uint
)

// UniformInfo describes one named member inside a block, or one standalone
// binding when used in a program's binding table.
type UniformInfo struct {
	// Binding is the binding slot the uniform lives in.
	Binding uint32
	// Offset is the byte offset of the member inside its block (0 for standalone bindings).
	Offset uint32
	// Size is the byte size of the member, or the whole block for standalone bindings.
	Size uint32
	// Kind is the descriptor category of the owning binding.
	Kind DescriptorKind
	// Stages is the set of pipeline stages that reference the uniform.
	Stages Stage
	// ReadOnly is true when the binding is decorated non-writable.
	ReadOnly bool
	// WriteOnly is true when the binding is decorated non-readable.
	WriteOnly bool
}

// UniformBlock describes one uniform, storage, or push-constant block with its
// named members. Structural equality of two blocks is the dirty-check key used
// by the buffer handlers.
type UniformBlock struct {
	// Binding is the binding slot, or -1 when unassigned (push constants).
	Binding int32
	// Size is the byte size of the block.
	Size int32
	// Stages is the set of pipeline stages that reference the block.
	Stages Stage
	// Kind identifies the backing mechanism of the block.
	Kind BlockKind
	// Uniforms maps member names to their layout.
	Uniforms map[string]UniformInfo
}

// Uniform looks up a member of the block by name.
//
// Parameters:
//   - name: the member name
//
// Returns:
//   - UniformInfo: the member layout, zero value if absent
//   - bool: true if the member exists
func (b *UniformBlock) Uniform(name string) (UniformInfo, bool) {
	u, ok := b.Uniforms[name]
	return u, ok
}

// Equal reports structural equality: binding, size, stage mask, kind, and all
// members must match.
//
// Parameters:
//   - other: the block to compare against, may be nil
//
// Returns:
//   - bool: true if both blocks are structurally identical
func (b *UniformBlock) Equal(other *UniformBlock) bool {
	if b == nil || other == nil {
		return b == other
	}
	if b.Binding != other.Binding || b.Size != other.Size ||
		b.Stages != other.Stages || b.Kind != other.Kind ||
		len(b.Uniforms) != len(other.Uniforms) {
		return false
	}
	for name, u := range b.Uniforms {
		ou, ok := other.Uniforms[name]
		if !ok || u != ou {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the block. Handlers snapshot the bound block so
// later re-reflection of the owning program cannot mutate their dirty key.
//
// Returns:
//   - *UniformBlock: the copied block, nil if the receiver is nil
func (b *UniformBlock) Clone() *UniformBlock {
	if b == nil {
		return nil
	}
	cp := *b
	cp.Uniforms = make(map[string]UniformInfo, len(b.Uniforms))
	for name, u := range b.Uniforms {
		cp.Uniforms[name] = u
	}
	return &cp
}

// Attribute describes one vertex-input channel. Only meaningful for the
// vertex stage.
type Attribute struct {
	// Set is the vertex buffer binding index the attribute is sourced from.
	Set int32
	// Location is the shader input location.
	Location int32
	// Size is the byte size of one element of the attribute.
	Size int32
	// Format is the numeric layout of the attribute.
	Format Format
}

// PushConstantRange describes one push-constant byte range and the stages that
// read it. Ranges with identical offset and size are merged across stages.
type PushConstantRange struct {
	// Offset is the byte offset of the range.
	Offset uint32
	// Size is the byte size of the range.
	Size uint32
	// Stages is the merged set of stages referencing the range.
	Stages Stage
}

// LayoutBinding is one merged descriptor-set-layout binding: the slot,
// resource kind, array count, and the OR of every stage that declares it.
type LayoutBinding struct {
	// Binding is the binding slot.
	Binding uint32
	// Kind is the descriptor category.
	Kind DescriptorKind
	// Count is the descriptor array length, 1 for non-arrayed bindings.
	Count uint32
	// Stages is the merged stage mask.
	Stages Stage
}

// PoolSize is a descriptor-pool sizing entry: how many descriptors of one
// kind the program's unique bindings require.
type PoolSize struct {
	// Kind is the descriptor category.
	Kind DescriptorKind
	// Count is the number of unique bindings of that kind.
	Count uint32
}

// ReflectedBinding is one resource binding extracted from a single stage's
// binary, before cross-stage merging.
type ReflectedBinding struct {
	// Name is the binding's variable name (struct type name when the variable is anonymous).
	Name string
	// Set is the descriptor set index.
	Set uint32
	// Binding is the binding slot.
	Binding uint32
	// Count is the descriptor array length, 1 for non-arrayed bindings.
	Count uint32
	// Kind is the descriptor category.
	Kind DescriptorKind
	// Size is the block byte size for buffer kinds, 0 otherwise.
	Size uint32
	// ReadOnly is true when the binding is decorated non-writable.
	ReadOnly bool
	// WriteOnly is true when the binding is decorated non-readable.
	WriteOnly bool
	// Block holds the member layout for uniform and storage buffer kinds, nil otherwise.
	Block *UniformBlock
}

// ReflectedPushBlock is a push-constant block with its name and member layout.
type ReflectedPushBlock struct {
	// Name is the block's variable name (struct type name when anonymous).
	Name string
	// Block is the member layout with Kind BlockKindPush.
	Block *UniformBlock
}

// ReflectedAttribute is one named vertex input attribute.
type ReflectedAttribute struct {
	// Name is the input variable name.
	Name string
	// Attribute is the channel description.
	Attribute Attribute
}

// Reflection is the normalized resource description extracted from one
// compiled stage, independent of source language dialect.
type Reflection struct {
	// Stage is the stage the binary was compiled for.
	Stage Stage
	// Bindings are the resource bindings in (set, binding, name) order.
	Bindings []ReflectedBinding
	// PushRanges are the push-constant ranges declared by the stage.
	PushRanges []PushConstantRange
	// PushBlocks are the push-constant blocks with member layouts.
	PushBlocks []ReflectedPushBlock
	// Attributes are the vertex input attributes (vertex stage only).
	Attributes []ReflectedAttribute
}
