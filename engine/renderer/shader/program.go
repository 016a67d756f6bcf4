// Package shader builds pipeline-ready shader programs from compiled stage
// binaries. A Program reflects each stage, merges the per-stage resource
// descriptions into one pipeline-wide view, and derives the descriptor set
// layout, pool sizing, push-constant ranges, and vertex input description a
// pipeline needs. Bundle packs compiled stages into a single archive file for
// shipping without the compiler front-end.
package shader

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/flint3d/flint-go/engine/renderer/device"
	"github.com/flint3d/flint-go/engine/renderer/spirv"
)

// Program merges the reflection of several shader stages into one
// pipeline-wide resource description and answers layout queries against it.
type Program interface {
	// Name returns the program's debug name.
	//
	// Returns:
	//   - string: the name given at construction
	Name() string

	// AddStage reflects a compiled stage and merges its resources into the
	// program. Stages may be added in any order; derived layout data is
	// rebuilt after every addition.
	//
	// Parameters:
	//   - blob: the compiled stage to add
	//
	// Returns:
	//   - error: non-nil if the stage is already present or its binary is malformed
	AddStage(blob *spirv.CompiledStage) error

	// Reload discards all merged state and re-reflects every retained
	// stage. Called after the underlying binaries were recompiled in place.
	//
	// Returns:
	//   - error: non-nil if any retained binary no longer reflects cleanly
	Reload() error

	// ReplaceStage swaps in a freshly compiled blob for the stage it was
	// compiled for, then discards all merged state and re-reflects every
	// retained stage. Merged stage masks and pool counts are built
	// incrementally, so a single-stage patch cannot be applied in
	// isolation.
	//
	// Parameters:
	//   - blob: the replacement stage binary
	//
	// Returns:
	//   - error: non-nil if the program has no such stage or any retained binary fails to reflect
	ReplaceStage(blob *spirv.CompiledStage) error

	// Uniform looks up a standalone (non-block) resource such as a sampler
	// or image by name.
	//
	// Parameters:
	//   - name: the resource name as declared in the shader
	//
	// Returns:
	//   - spirv.UniformInfo: the merged resource info, zero value if absent
	//   - bool: true if the resource exists
	Uniform(name string) (spirv.UniformInfo, bool)

	// UniformBlock looks up a uniform, storage, or push-constant block by
	// name.
	//
	// Parameters:
	//   - name: the block name as declared in the shader
	//
	// Returns:
	//   - *spirv.UniformBlock: the merged block, nil if absent
	//   - bool: true if the block exists
	UniformBlock(name string) (*spirv.UniformBlock, bool)

	// Attribute looks up a vertex input attribute by name.
	//
	// Parameters:
	//   - name: the input variable name as declared in the vertex stage
	//
	// Returns:
	//   - spirv.Attribute: the attribute, zero value if absent
	//   - bool: true if the attribute exists
	Attribute(name string) (spirv.Attribute, bool)

	// Blocks returns every merged block keyed by name. The returned map and
	// blocks are copies; mutating them does not affect the program.
	//
	// Returns:
	//   - map[string]*spirv.UniformBlock: all uniform, storage, and push blocks
	Blocks() map[string]*spirv.UniformBlock

	// DescriptorLocation returns the binding slot of a named block or
	// standalone resource.
	//
	// Parameters:
	//   - name: the block or resource name
	//
	// Returns:
	//   - uint32: the binding slot
	//   - bool: true if the name exists
	DescriptorLocation(name string) (uint32, bool)

	// DescriptorSize returns the byte size of a named block or standalone
	// resource.
	//
	// Parameters:
	//   - name: the block or resource name
	//
	// Returns:
	//   - uint32: the byte size, 0 for unsized resources
	//   - bool: true if the name exists
	DescriptorSize(name string) (uint32, bool)

	// LayoutBindings returns the merged descriptor set layout bindings in
	// ascending slot order. The returned slice is a copy.
	//
	// Returns:
	//   - []spirv.LayoutBinding: the merged bindings
	LayoutBindings() []spirv.LayoutBinding

	// PoolSizes returns descriptor pool sizing derived from the merged
	// bindings, each unique binding slot counted once. The returned slice
	// is a copy in ascending kind order.
	//
	// Returns:
	//   - []spirv.PoolSize: the pool sizing entries
	PoolSizes() []spirv.PoolSize

	// PushConstantRanges returns the push-constant ranges, ranges with
	// identical offset and size merged across stages. The returned slice
	// is a copy in ascending offset order.
	//
	// Returns:
	//   - []spirv.PushConstantRange: the merged ranges
	PushConstantRanges() []spirv.PushConstantRange

	// VertexAttributes returns the vertex input attributes in ascending
	// location order. The returned slice is a copy.
	//
	// Returns:
	//   - []spirv.ReflectedAttribute: the named attributes
	VertexAttributes() []spirv.ReflectedAttribute

	// PipelineStages returns the retained stage blobs in pipeline order
	// (vertex first, compute last). The returned slice is a copy.
	//
	// Returns:
	//   - []*spirv.CompiledStage: the retained stages
	PipelineStages() []*spirv.CompiledStage

	// HasStage reports whether a stage of the given kind was added.
	//
	// Parameters:
	//   - stage: the stage bit to test
	//
	// Returns:
	//   - bool: true if the program contains the stage
	HasStage(stage spirv.Stage) bool

	// Stages returns the mask of all added stages.
	//
	// Returns:
	//   - spirv.Stage: the combined stage mask
	Stages() spirv.Stage

	// LastDescriptorBinding returns the highest binding slot in use, 0 when
	// the program has no bindings.
	//
	// Returns:
	//   - uint32: the highest slot
	LastDescriptorBinding() uint32

	// CreateDescriptorSetLayout creates a device layout from the merged
	// bindings. A program with no bindings returns the zero handle and no
	// error. The caller owns the returned handle.
	//
	// Parameters:
	//   - dev: the device to create the layout on
	//
	// Returns:
	//   - device.DescriptorSetLayout: the new layout handle
	//   - error: non-nil if the device rejects a binding
	CreateDescriptorSetLayout(dev device.Device) (device.DescriptorSetLayout, error)

	// CreateModules creates one device shader module per retained stage, in
	// pipeline order. On failure every module created so far is destroyed.
	// The caller owns the returned handles.
	//
	// Parameters:
	//   - dev: the device to create the modules on
	//
	// Returns:
	//   - []device.ShaderModule: one handle per stage, in PipelineStages order
	//   - error: non-nil if any module fails to create
	CreateModules(dev device.Device) ([]device.ShaderModule, error)
}

type program struct {
	mu   sync.RWMutex
	name string

	stages    []*spirv.CompiledStage
	stageMask spirv.Stage

	uniforms      map[string]spirv.UniformInfo
	uniformCounts map[string]uint32
	uniformBlocks map[string]*spirv.UniformBlock
	attributes    map[string]spirv.Attribute

	layoutBindings []spirv.LayoutBinding
	poolSizes      []spirv.PoolSize
	pushRanges     []spirv.PushConstantRange
	lastBinding    uint32
}

var _ Program = &program{}

// NewProgram creates an empty program with the given debug name. Panics if the
// name is empty.
//
// Parameters:
//   - name: the program's debug name, used in logs and device labels
//   - opts: optional configuration
//
// Returns:
//   - Program: the new program
func NewProgram(name string, opts ...ProgramOption) Program {
	if name == "" {
		panic("shader: NewProgram requires a non-empty name")
	}
	p := &program{
		name:          name,
		uniforms:      make(map[string]spirv.UniformInfo),
		uniformCounts: make(map[string]uint32),
		uniformBlocks: make(map[string]*spirv.UniformBlock),
		attributes:    make(map[string]spirv.Attribute),
	}
	cfg := programConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	for _, blob := range cfg.stages {
		if err := p.AddStage(blob); err != nil {
			panic(fmt.Sprintf("shader: program %q: %v", name, err))
		}
	}
	return p
}

func (p *program) Name() string {
	return p.name
}

func (p *program) AddStage(blob *spirv.CompiledStage) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stageMask.Has(blob.Stage()) {
		return fmt.Errorf("shader: program %q already has a %s stage", p.name, blob.Stage())
	}
	refl, err := spirv.Reflect(blob)
	if err != nil {
		return fmt.Errorf("shader: program %q: reflect %s stage: %w", p.name, blob.Stage(), err)
	}

	p.stages = append(p.stages, blob)
	sort.SliceStable(p.stages, func(i, j int) bool {
		return p.stages[i].Stage() < p.stages[j].Stage()
	})
	p.stageMask |= blob.Stage()
	p.merge(refl)
	p.rebuild()
	return nil
}

func (p *program) Reload() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reflectAllLocked()
}

func (p *program) ReplaceStage(blob *spirv.CompiledStage) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.stageMask.Has(blob.Stage()) {
		return fmt.Errorf("shader: program %q has no %s stage to replace", p.name, blob.Stage())
	}
	for i, old := range p.stages {
		if old.Stage() == blob.Stage() {
			p.stages[i] = blob
			break
		}
	}
	return p.reflectAllLocked()
}

func (p *program) reflectAllLocked() error {
	p.uniforms = make(map[string]spirv.UniformInfo)
	p.uniformCounts = make(map[string]uint32)
	p.uniformBlocks = make(map[string]*spirv.UniformBlock)
	p.attributes = make(map[string]spirv.Attribute)
	p.layoutBindings = nil
	p.poolSizes = nil
	p.pushRanges = nil
	p.lastBinding = 0

	for _, blob := range p.stages {
		refl, err := spirv.Reflect(blob)
		if err != nil {
			return fmt.Errorf("shader: program %q: reload %s stage: %w", p.name, blob.Stage(), err)
		}
		p.merge(refl)
	}
	p.rebuild()
	return nil
}

// merge folds one stage's reflection into the program's maps. A name that
// reappears with a different structure keeps the first structure and logs the
// conflict; its stage mask still widens so visibility stays correct.
func (p *program) merge(refl *spirv.Reflection) {
	for _, b := range refl.Bindings {
		if b.Block != nil {
			p.mergeBlock(b.Name, b.Block)
			continue
		}
		info := spirv.UniformInfo{
			Binding:   b.Binding,
			Size:      b.Size,
			Kind:      b.Kind,
			Stages:    refl.Stage,
			ReadOnly:  b.ReadOnly,
			WriteOnly: b.WriteOnly,
		}
		if existing, ok := p.uniforms[b.Name]; ok {
			if existing.Binding != info.Binding || existing.Kind != info.Kind {
				log.Printf("shader: program %q: resource %q differs between stages (binding %d/%s vs %d/%s)",
					p.name, b.Name, existing.Binding, existing.Kind, info.Binding, info.Kind)
			}
			existing.Stages |= refl.Stage
			p.uniforms[b.Name] = existing
		} else {
			p.uniforms[b.Name] = info
		}
		if b.Count > p.uniformCounts[b.Name] {
			p.uniformCounts[b.Name] = b.Count
		}
	}

	for _, pb := range refl.PushBlocks {
		p.mergeBlock(pb.Name, pb.Block)
	}

	for _, a := range refl.Attributes {
		if _, ok := p.attributes[a.Name]; !ok {
			p.attributes[a.Name] = a.Attribute
		}
	}
}

func (p *program) mergeBlock(name string, block *spirv.UniformBlock) {
	existing, ok := p.uniformBlocks[name]
	if !ok {
		p.uniformBlocks[name] = block.Clone()
		return
	}
	if !sameBlockStructure(existing, block) {
		log.Printf("shader: program %q: block %q differs between stages", p.name, name)
	}
	existing.Stages |= block.Stages
	for memberName, u := range existing.Uniforms {
		u.Stages = existing.Stages
		existing.Uniforms[memberName] = u
	}
}

// sameBlockStructure compares two blocks ignoring stage masks, which widen
// legitimately as stages are merged.
func sameBlockStructure(a, b *spirv.UniformBlock) bool {
	if a.Binding != b.Binding || a.Size != b.Size || a.Kind != b.Kind ||
		len(a.Uniforms) != len(b.Uniforms) {
		return false
	}
	for name, u := range a.Uniforms {
		ou, ok := b.Uniforms[name]
		if !ok || u.Offset != ou.Offset || u.Size != ou.Size || u.Kind != ou.Kind {
			return false
		}
	}
	return true
}

// rebuild recomputes the derived layout data from the merged maps. Iteration
// over maps is unordered, so everything is sorted before being stored.
func (p *program) rebuild() {
	type slotInfo struct {
		kind   spirv.DescriptorKind
		count  uint32
		stages spirv.Stage
	}
	slots := make(map[uint32]slotInfo)

	for _, block := range p.uniformBlocks {
		if block.Kind == spirv.BlockKindPush || block.Binding < 0 {
			continue
		}
		kind := spirv.DescriptorKindUniformBuffer
		if block.Kind == spirv.BlockKindStorage {
			kind = spirv.DescriptorKindStorageBuffer
		}
		slot := uint32(block.Binding)
		if existing, ok := slots[slot]; ok {
			existing.stages |= block.Stages
			slots[slot] = existing
		} else {
			slots[slot] = slotInfo{kind: kind, count: 1, stages: block.Stages}
		}
	}
	for name, u := range p.uniforms {
		count := p.uniformCounts[name]
		if count == 0 {
			count = 1
		}
		if existing, ok := slots[u.Binding]; ok {
			existing.stages |= u.Stages
			if count > existing.count {
				existing.count = count
			}
			slots[u.Binding] = existing
		} else {
			slots[u.Binding] = slotInfo{kind: u.Kind, count: count, stages: u.Stages}
		}
	}

	bindings := make([]spirv.LayoutBinding, 0, len(slots))
	poolCounts := make(map[spirv.DescriptorKind]uint32)
	var last uint32
	for slot, info := range slots {
		bindings = append(bindings, spirv.LayoutBinding{
			Binding: slot,
			Kind:    info.kind,
			Count:   info.count,
			Stages:  info.stages,
		})
		poolCounts[info.kind]++
		if slot > last {
			last = slot
		}
	}
	sort.Slice(bindings, func(i, j int) bool { return bindings[i].Binding < bindings[j].Binding })
	p.layoutBindings = bindings
	p.lastBinding = last

	sizes := make([]spirv.PoolSize, 0, len(poolCounts))
	for kind, count := range poolCounts {
		sizes = append(sizes, spirv.PoolSize{Kind: kind, Count: count})
	}
	sort.Slice(sizes, func(i, j int) bool { return sizes[i].Kind < sizes[j].Kind })
	p.poolSizes = sizes

	type rangeKey struct {
		offset uint32
		size   uint32
	}
	rangeStages := make(map[rangeKey]spirv.Stage)
	for _, block := range p.uniformBlocks {
		if block.Kind != spirv.BlockKindPush {
			continue
		}
		key := rangeKey{offset: 0, size: uint32(block.Size)}
		rangeStages[key] |= block.Stages
	}
	ranges := make([]spirv.PushConstantRange, 0, len(rangeStages))
	for key, stages := range rangeStages {
		ranges = append(ranges, spirv.PushConstantRange{Offset: key.offset, Size: key.size, Stages: stages})
	}
	sort.Slice(ranges, func(i, j int) bool {
		if ranges[i].Offset != ranges[j].Offset {
			return ranges[i].Offset < ranges[j].Offset
		}
		return ranges[i].Size < ranges[j].Size
	})
	p.pushRanges = ranges
}

func (p *program) Uniform(name string) (spirv.UniformInfo, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	u, ok := p.uniforms[name]
	return u, ok
}

func (p *program) UniformBlock(name string) (*spirv.UniformBlock, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, ok := p.uniformBlocks[name]
	if !ok {
		return nil, false
	}
	return b.Clone(), true
}

func (p *program) Attribute(name string) (spirv.Attribute, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	a, ok := p.attributes[name]
	return a, ok
}

func (p *program) Blocks() map[string]*spirv.UniformBlock {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]*spirv.UniformBlock, len(p.uniformBlocks))
	for name, b := range p.uniformBlocks {
		out[name] = b.Clone()
	}
	return out
}

func (p *program) DescriptorLocation(name string) (uint32, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if b, ok := p.uniformBlocks[name]; ok && b.Binding >= 0 {
		return uint32(b.Binding), true
	}
	if u, ok := p.uniforms[name]; ok {
		return u.Binding, true
	}
	return 0, false
}

func (p *program) DescriptorSize(name string) (uint32, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if b, ok := p.uniformBlocks[name]; ok {
		return uint32(b.Size), true
	}
	if u, ok := p.uniforms[name]; ok {
		return u.Size, true
	}
	return 0, false
}

func (p *program) LayoutBindings() []spirv.LayoutBinding {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]spirv.LayoutBinding, len(p.layoutBindings))
	copy(out, p.layoutBindings)
	return out
}

func (p *program) PoolSizes() []spirv.PoolSize {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]spirv.PoolSize, len(p.poolSizes))
	copy(out, p.poolSizes)
	return out
}

func (p *program) PushConstantRanges() []spirv.PushConstantRange {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]spirv.PushConstantRange, len(p.pushRanges))
	copy(out, p.pushRanges)
	return out
}

func (p *program) VertexAttributes() []spirv.ReflectedAttribute {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]spirv.ReflectedAttribute, 0, len(p.attributes))
	for name, a := range p.attributes {
		out = append(out, spirv.ReflectedAttribute{Name: name, Attribute: a})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Attribute.Location < out[j].Attribute.Location })
	return out
}

func (p *program) PipelineStages() []*spirv.CompiledStage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*spirv.CompiledStage, len(p.stages))
	copy(out, p.stages)
	return out
}

func (p *program) HasStage(stage spirv.Stage) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stageMask.Has(stage)
}

func (p *program) Stages() spirv.Stage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stageMask
}

func (p *program) LastDescriptorBinding() uint32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastBinding
}

func (p *program) CreateDescriptorSetLayout(dev device.Device) (device.DescriptorSetLayout, error) {
	bindings := p.LayoutBindings()
	if len(bindings) == 0 {
		return device.DescriptorSetLayout{}, nil
	}
	return dev.CreateDescriptorSetLayout(p.Name(), bindings)
}

func (p *program) CreateModules(dev device.Device) ([]device.ShaderModule, error) {
	stages := p.PipelineStages()
	modules := make([]device.ShaderModule, 0, len(stages))
	for _, blob := range stages {
		m, err := dev.CreateShaderModule(blob, fmt.Sprintf("%s/%s", p.Name(), blob.Stage()))
		if err != nil {
			for _, created := range modules {
				dev.DestroyShaderModule(created)
			}
			return nil, err
		}
		modules = append(modules, m)
	}
	return modules, nil
}
