package device

import (
	"fmt"
	"log"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/flint3d/flint-go/engine/renderer/spirv"
)

// wgpuDevice implements Device on top of a WebGPU device and queue. WebGPU has
// no host-mapped persistent buffers in the Vulkan sense, so host-visible
// allocations keep a staging byte slice on the CPU; Map hands out the staging
// bytes, memory reports non-coherent, and Flush uploads the staging bytes with
// a queue write. Persistent mapping is emulated by keeping the staging slice
// alive, which costs nothing extra.
type wgpuDevice struct {
	mu sync.Mutex

	device *wgpu.Device
	queue  *wgpu.Queue

	allocs      []wgpuAlloc
	freeAllocs  []uint32
	modules     []wgpuModule
	freeModules []uint32
	layouts     []wgpuLayout
	freeLayouts []uint32
}

type wgpuAlloc struct {
	live       bool
	generation uint32
	info       AllocationCreateInfo
	staging    []byte
	buffer     *wgpu.Buffer
	persistent bool
	flushes    int
}

type wgpuModule struct {
	live       bool
	generation uint32
	module     *wgpu.ShaderModule
}

type wgpuLayout struct {
	live       bool
	generation uint32
	layout     *wgpu.BindGroupLayout
}

// WGPUDevice extends Device with accessors that surface the native WebGPU
// objects behind the opaque handles. The renderer backend needs these when
// assembling bind groups and pipeline layouts; everything else should stay on
// the portable Device surface.
type WGPUDevice interface {
	Device

	// Buffer returns the underlying WebGPU buffer for an allocation, nil for
	// stale handles.
	//
	// Parameters:
	//   - a: the allocation to query
	//
	// Returns:
	//   - *wgpu.Buffer: the wrapped buffer
	Buffer(a Allocation) *wgpu.Buffer

	// ShaderModuleHandle returns the underlying WebGPU module for pipeline
	// creation, nil for stale handles.
	//
	// Parameters:
	//   - m: the module to query
	//
	// Returns:
	//   - *wgpu.ShaderModule: the wrapped module
	ShaderModuleHandle(m ShaderModule) *wgpu.ShaderModule

	// BindGroupLayoutHandle returns the underlying WebGPU layout for bind
	// group and pipeline layout creation, nil for stale handles.
	//
	// Parameters:
	//   - l: the layout to query
	//
	// Returns:
	//   - *wgpu.BindGroupLayout: the wrapped layout
	BindGroupLayoutHandle(l DescriptorSetLayout) *wgpu.BindGroupLayout
}

var _ WGPUDevice = &wgpuDevice{}
var _ Allocator = &wgpuDevice{}

// NewWGPUDevice wraps a WebGPU device and queue in the WGPUDevice interface.
// Panics if either is nil.
//
// Parameters:
//   - dev: the WebGPU device
//   - queue: the device's default queue
//
// Returns:
//   - WGPUDevice: the wrapped device
func NewWGPUDevice(dev *wgpu.Device, queue *wgpu.Queue) WGPUDevice {
	if dev == nil || queue == nil {
		panic("device: NewWGPUDevice requires a non-nil device and queue")
	}
	return &wgpuDevice{device: dev, queue: queue}
}

func (d *wgpuDevice) Allocator() Allocator {
	return d
}

// bufferUsageToWGPU maps the portable usage bits to WebGPU usage flags.
func bufferUsageToWGPU(usage BufferUsage) wgpu.BufferUsage {
	var out wgpu.BufferUsage
	if usage&BufferUsageTransferSrc != 0 {
		out |= wgpu.BufferUsageCopySrc
	}
	if usage&BufferUsageTransferDst != 0 {
		out |= wgpu.BufferUsageCopyDst
	}
	if usage&BufferUsageUniform != 0 {
		out |= wgpu.BufferUsageUniform
	}
	if usage&BufferUsageStorage != 0 {
		out |= wgpu.BufferUsageStorage
	}
	if usage&BufferUsageIndex != 0 {
		out |= wgpu.BufferUsageIndex
	}
	if usage&BufferUsageVertex != 0 {
		out |= wgpu.BufferUsageVertex
	}
	if usage&BufferUsageIndirect != 0 {
		out |= wgpu.BufferUsageIndirect
	}
	return out
}

func (d *wgpuDevice) Allocate(info AllocationCreateInfo) (Allocation, error) {
	if info.Size == 0 {
		return Allocation{}, fmt.Errorf("device: allocation size must be greater than zero")
	}
	usage := bufferUsageToWGPU(info.Usage)
	if info.Memory != MemoryUsageGPUOnly {
		// Uploads go through queue writes, which need CopyDst.
		usage |= wgpu.BufferUsageCopyDst
	}
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            info.Label,
		Size:             info.Size,
		Usage:            usage,
		MappedAtCreation: false,
	})
	if err != nil {
		return Allocation{}, fmt.Errorf("device: create buffer %q: %w", info.Label, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	slot := wgpuAlloc{
		live:       true,
		info:       info,
		buffer:     buf,
		persistent: info.Flags&AllocationFlagPersistentMap != 0,
	}
	if info.Memory != MemoryUsageGPUOnly {
		slot.staging = make([]byte, info.Size)
	}
	var index uint32
	if n := len(d.freeAllocs); n > 0 {
		index = d.freeAllocs[n-1]
		d.freeAllocs = d.freeAllocs[:n-1]
		slot.generation = d.allocs[index].generation + 1
		d.allocs[index] = slot
	} else {
		index = uint32(len(d.allocs))
		slot.generation = 1
		d.allocs = append(d.allocs, slot)
	}
	return Allocation{index: index, generation: slot.generation}, nil
}

func (d *wgpuDevice) lookupAlloc(a Allocation) *wgpuAlloc {
	if int(a.index) >= len(d.allocs) {
		return nil
	}
	slot := &d.allocs[a.index]
	if !slot.live || slot.generation != a.generation {
		return nil
	}
	return slot
}

func (d *wgpuDevice) Map(a Allocation) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	slot := d.lookupAlloc(a)
	if slot == nil {
		return nil, fmt.Errorf("device: map of stale allocation handle")
	}
	if slot.staging == nil {
		return nil, fmt.Errorf("device: allocation %q is not host-visible", slot.info.Label)
	}
	return slot.staging, nil
}

func (d *wgpuDevice) Unmap(a Allocation) {}

func (d *wgpuDevice) Flush(a Allocation) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	slot := d.lookupAlloc(a)
	if slot == nil {
		return fmt.Errorf("device: flush of stale allocation handle")
	}
	if slot.staging == nil {
		return nil
	}
	slot.flushes++
	if err := d.queue.WriteBuffer(slot.buffer, 0, slot.staging); err != nil {
		return fmt.Errorf("device: upload %q: %w", slot.info.Label, err)
	}
	return nil
}

func (d *wgpuDevice) Invalidate(a Allocation) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lookupAlloc(a) == nil {
		return fmt.Errorf("device: invalidate of stale allocation handle")
	}
	// Readback needs an async copy; nothing in the buffer layer reads GPU
	// writes back through this path yet.
	return nil
}

// IsCoherent always reports false: staging writes only reach the GPU buffer
// when Flush performs the queue write.
func (d *wgpuDevice) IsCoherent(a Allocation) bool {
	return false
}

func (d *wgpuDevice) IsPersistentlyMapped(a Allocation) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	slot := d.lookupAlloc(a)
	return slot != nil && slot.persistent
}

func (d *wgpuDevice) Size(a Allocation) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	slot := d.lookupAlloc(a)
	if slot == nil {
		return 0
	}
	return slot.info.Size
}

func (d *wgpuDevice) Destroy(a Allocation) {
	d.mu.Lock()
	defer d.mu.Unlock()
	slot := d.lookupAlloc(a)
	if slot == nil {
		return
	}
	slot.buffer.Release()
	slot.live = false
	slot.buffer = nil
	slot.staging = nil
	d.freeAllocs = append(d.freeAllocs, a.index)
}

func (d *wgpuDevice) Buffer(a Allocation) *wgpu.Buffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	slot := d.lookupAlloc(a)
	if slot == nil {
		return nil
	}
	return slot.buffer
}

// CreateShaderModule builds a WebGPU shader module. WebGPU consumes WGSL, not
// SPIR-V, so the blob must carry its compiler source; a bundle-loaded blob
// without source cannot be used on this backend.
func (d *wgpuDevice) CreateShaderModule(blob *spirv.CompiledStage, label string) (ShaderModule, error) {
	if blob.Source() == "" {
		log.Printf("device: shader module %q has no WGSL source, cannot create on WebGPU", label)
		return ShaderModule{}, fmt.Errorf("device: shader module %q has no WGSL source", label)
	}
	mod, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: blob.Source(),
		},
	})
	if err != nil {
		return ShaderModule{}, fmt.Errorf("device: create shader module %q: %w", label, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	slot := wgpuModule{live: true, module: mod}
	var index uint32
	if n := len(d.freeModules); n > 0 {
		index = d.freeModules[n-1]
		d.freeModules = d.freeModules[:n-1]
		slot.generation = d.modules[index].generation + 1
		d.modules[index] = slot
	} else {
		index = uint32(len(d.modules))
		slot.generation = 1
		d.modules = append(d.modules, slot)
	}
	return ShaderModule{index: index, generation: slot.generation}, nil
}

func (d *wgpuDevice) DestroyShaderModule(m ShaderModule) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(m.index) >= len(d.modules) {
		return
	}
	slot := &d.modules[m.index]
	if !slot.live || slot.generation != m.generation {
		return
	}
	slot.module.Release()
	slot.live = false
	slot.module = nil
	d.freeModules = append(d.freeModules, m.index)
}

func (d *wgpuDevice) ShaderModuleHandle(m ShaderModule) *wgpu.ShaderModule {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(m.index) >= len(d.modules) {
		return nil
	}
	slot := &d.modules[m.index]
	if !slot.live || slot.generation != m.generation {
		return nil
	}
	return slot.module
}

// stageToWGPU maps a stage mask to WebGPU visibility flags. Geometry and
// tessellation stages have no WebGPU equivalent and are dropped from the mask.
func stageToWGPU(stages spirv.Stage) wgpu.ShaderStage {
	var out wgpu.ShaderStage
	if stages.Has(spirv.StageVertex) {
		out |= wgpu.ShaderStageVertex
	}
	if stages.Has(spirv.StageFragment) {
		out |= wgpu.ShaderStageFragment
	}
	if stages.Has(spirv.StageCompute) {
		out |= wgpu.ShaderStageCompute
	}
	return out
}

func (d *wgpuDevice) CreateDescriptorSetLayout(label string, bindings []spirv.LayoutBinding) (DescriptorSetLayout, error) {
	entries := make([]wgpu.BindGroupLayoutEntry, 0, len(bindings))
	for _, b := range bindings {
		entry := wgpu.BindGroupLayoutEntry{
			Binding:    b.Binding,
			Visibility: stageToWGPU(b.Stages),
		}
		switch b.Kind {
		case spirv.DescriptorKindUniformBuffer:
			entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		case spirv.DescriptorKindStorageBuffer:
			entry.Buffer.Type = wgpu.BufferBindingTypeStorage
		case spirv.DescriptorKindSampler:
			entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
		case spirv.DescriptorKindSampledImage, spirv.DescriptorKindCombinedImageSampler:
			entry.Texture.SampleType = wgpu.TextureSampleTypeFloat
			entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
		case spirv.DescriptorKindStorageImage:
			entry.StorageTexture.Access = wgpu.StorageTextureAccessWriteOnly
			entry.StorageTexture.ViewDimension = wgpu.TextureViewDimension2D
		default:
			return DescriptorSetLayout{}, fmt.Errorf("device: layout %q binding %d has undefined kind", label, b.Binding)
		}
		entries = append(entries, entry)
	}
	layout, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   label,
		Entries: entries,
	})
	if err != nil {
		return DescriptorSetLayout{}, fmt.Errorf("device: create bind group layout %q: %w", label, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	slot := wgpuLayout{live: true, layout: layout}
	var index uint32
	if n := len(d.freeLayouts); n > 0 {
		index = d.freeLayouts[n-1]
		d.freeLayouts = d.freeLayouts[:n-1]
		slot.generation = d.layouts[index].generation + 1
		d.layouts[index] = slot
	} else {
		index = uint32(len(d.layouts))
		slot.generation = 1
		d.layouts = append(d.layouts, slot)
	}
	return DescriptorSetLayout{index: index, generation: slot.generation}, nil
}

func (d *wgpuDevice) DestroyDescriptorSetLayout(l DescriptorSetLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(l.index) >= len(d.layouts) {
		return
	}
	slot := &d.layouts[l.index]
	if !slot.live || slot.generation != l.generation {
		return
	}
	slot.layout.Release()
	slot.live = false
	slot.layout = nil
	d.freeLayouts = append(d.freeLayouts, l.index)
}

func (d *wgpuDevice) BindGroupLayoutHandle(l DescriptorSetLayout) *wgpu.BindGroupLayout {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(l.index) >= len(d.layouts) {
		return nil
	}
	slot := &d.layouts[l.index]
	if !slot.live || slot.generation != l.generation {
		return nil
	}
	return slot.layout
}
