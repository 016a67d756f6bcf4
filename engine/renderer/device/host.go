package device

import (
	"fmt"
	"sync"

	"github.com/flint3d/flint-go/engine/renderer/spirv"
)

// HostDevice is a Device backed entirely by host memory. It implements the
// full allocation, mapping, and flush contract without any GPU present, which
// makes the buffer and shader layers testable in isolation. Memory coherence
// and persistent mapping are configurable so callers exercise both code paths.
type HostDevice interface {
	Device

	// FlushCount returns how many times the allocation has been flushed.
	//
	// Parameters:
	//   - a: the allocation to query
	//
	// Returns:
	//   - int: the flush count, 0 for stale handles
	FlushCount(a Allocation) int

	// DeviceBytes returns the bytes the device side currently observes for
	// the allocation. For coherent memory this is the live mapping; for
	// non-coherent memory it reflects only flushed writes.
	//
	// Parameters:
	//   - a: the allocation to query
	//
	// Returns:
	//   - []byte: the device-visible bytes, nil for stale handles
	DeviceBytes(a Allocation) []byte
}

type hostAlloc struct {
	live       bool
	generation uint32
	info       AllocationCreateInfo
	host       []byte
	device     []byte // aliases host when coherent
	mapped     bool
	persistent bool
	flushes    int
}

type hostModule struct {
	live       bool
	generation uint32
	label      string
	words      int
}

type hostLayout struct {
	live       bool
	generation uint32
	label      string
	bindings   []spirv.LayoutBinding
}

type hostDevice struct {
	mu sync.Mutex

	coherent        bool
	allowPersistent bool

	allocs      []hostAlloc
	freeAllocs  []uint32
	modules     []hostModule
	freeModules []uint32
	layouts     []hostLayout
	freeLayouts []uint32
}

var _ HostDevice = &hostDevice{}
var _ Allocator = &hostDevice{}

// NewHostDevice creates a host-memory Device. By default memory is coherent
// and persistent mapping requests are honored; options flip either property.
//
// Parameters:
//   - opts: optional configuration
//
// Returns:
//   - HostDevice: the new device
func NewHostDevice(opts ...HostDeviceOption) HostDevice {
	h := &hostDevice{coherent: true, allowPersistent: true}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *hostDevice) Allocator() Allocator {
	return h
}

func (h *hostDevice) Allocate(info AllocationCreateInfo) (Allocation, error) {
	if info.Size == 0 {
		return Allocation{}, fmt.Errorf("device: allocation size must be greater than zero")
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	slot := hostAlloc{
		live: true,
		info: info,
		host: make([]byte, info.Size),
	}
	if h.coherent {
		slot.device = slot.host
	} else {
		slot.device = make([]byte, info.Size)
	}
	slot.persistent = h.allowPersistent && info.Flags&AllocationFlagPersistentMap != 0
	if slot.persistent {
		slot.mapped = true
	}

	var index uint32
	if n := len(h.freeAllocs); n > 0 {
		index = h.freeAllocs[n-1]
		h.freeAllocs = h.freeAllocs[:n-1]
		slot.generation = h.allocs[index].generation + 1
		h.allocs[index] = slot
	} else {
		index = uint32(len(h.allocs))
		slot.generation = 1
		h.allocs = append(h.allocs, slot)
	}
	return Allocation{index: index, generation: slot.generation}, nil
}

// lookupAlloc resolves a handle to its live slot, nil if stale.
func (h *hostDevice) lookupAlloc(a Allocation) *hostAlloc {
	if int(a.index) >= len(h.allocs) {
		return nil
	}
	slot := &h.allocs[a.index]
	if !slot.live || slot.generation != a.generation {
		return nil
	}
	return slot
}

func (h *hostDevice) Map(a Allocation) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	slot := h.lookupAlloc(a)
	if slot == nil {
		return nil, fmt.Errorf("device: map of stale allocation handle")
	}
	if slot.info.Memory == MemoryUsageGPUOnly {
		return nil, fmt.Errorf("device: allocation %q is not host-visible", slot.info.Label)
	}
	slot.mapped = true
	return slot.host, nil
}

func (h *hostDevice) Unmap(a Allocation) {
	h.mu.Lock()
	defer h.mu.Unlock()
	slot := h.lookupAlloc(a)
	if slot == nil || slot.persistent {
		return
	}
	slot.mapped = false
}

func (h *hostDevice) Flush(a Allocation) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	slot := h.lookupAlloc(a)
	if slot == nil {
		return fmt.Errorf("device: flush of stale allocation handle")
	}
	slot.flushes++
	if !h.coherent {
		copy(slot.device, slot.host)
	}
	return nil
}

func (h *hostDevice) Invalidate(a Allocation) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	slot := h.lookupAlloc(a)
	if slot == nil {
		return fmt.Errorf("device: invalidate of stale allocation handle")
	}
	if !h.coherent {
		copy(slot.host, slot.device)
	}
	return nil
}

func (h *hostDevice) IsCoherent(a Allocation) bool {
	return h.coherent
}

func (h *hostDevice) IsPersistentlyMapped(a Allocation) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	slot := h.lookupAlloc(a)
	return slot != nil && slot.persistent
}

func (h *hostDevice) Size(a Allocation) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	slot := h.lookupAlloc(a)
	if slot == nil {
		return 0
	}
	return slot.info.Size
}

func (h *hostDevice) Destroy(a Allocation) {
	h.mu.Lock()
	defer h.mu.Unlock()
	slot := h.lookupAlloc(a)
	if slot == nil {
		return
	}
	slot.live = false
	slot.host = nil
	slot.device = nil
	h.freeAllocs = append(h.freeAllocs, a.index)
}

func (h *hostDevice) FlushCount(a Allocation) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	slot := h.lookupAlloc(a)
	if slot == nil {
		return 0
	}
	return slot.flushes
}

func (h *hostDevice) DeviceBytes(a Allocation) []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	slot := h.lookupAlloc(a)
	if slot == nil {
		return nil
	}
	out := make([]byte, len(slot.device))
	copy(out, slot.device)
	return out
}

func (h *hostDevice) CreateShaderModule(blob *spirv.CompiledStage, label string) (ShaderModule, error) {
	words := blob.Words()
	if len(words) < 5 || words[0] != spirv.Magic {
		return ShaderModule{}, fmt.Errorf("device: shader module %q is not a valid binary", label)
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	slot := hostModule{live: true, label: label, words: len(words)}
	var index uint32
	if n := len(h.freeModules); n > 0 {
		index = h.freeModules[n-1]
		h.freeModules = h.freeModules[:n-1]
		slot.generation = h.modules[index].generation + 1
		h.modules[index] = slot
	} else {
		index = uint32(len(h.modules))
		slot.generation = 1
		h.modules = append(h.modules, slot)
	}
	return ShaderModule{index: index, generation: slot.generation}, nil
}

func (h *hostDevice) DestroyShaderModule(m ShaderModule) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if int(m.index) >= len(h.modules) {
		return
	}
	slot := &h.modules[m.index]
	if !slot.live || slot.generation != m.generation {
		return
	}
	slot.live = false
	h.freeModules = append(h.freeModules, m.index)
}

func (h *hostDevice) CreateDescriptorSetLayout(label string, bindings []spirv.LayoutBinding) (DescriptorSetLayout, error) {
	for i, b := range bindings {
		if b.Kind == spirv.DescriptorKindUndefined {
			return DescriptorSetLayout{}, fmt.Errorf("device: layout %q binding %d has undefined kind", label, b.Binding)
		}
		if i > 0 && bindings[i-1].Binding >= b.Binding {
			return DescriptorSetLayout{}, fmt.Errorf("device: layout %q bindings not in ascending slot order", label)
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	kept := make([]spirv.LayoutBinding, len(bindings))
	copy(kept, bindings)
	slot := hostLayout{live: true, label: label, bindings: kept}
	var index uint32
	if n := len(h.freeLayouts); n > 0 {
		index = h.freeLayouts[n-1]
		h.freeLayouts = h.freeLayouts[:n-1]
		slot.generation = h.layouts[index].generation + 1
		h.layouts[index] = slot
	} else {
		index = uint32(len(h.layouts))
		slot.generation = 1
		h.layouts = append(h.layouts, slot)
	}
	return DescriptorSetLayout{index: index, generation: slot.generation}, nil
}

func (h *hostDevice) DestroyDescriptorSetLayout(l DescriptorSetLayout) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if int(l.index) >= len(h.layouts) {
		return
	}
	slot := &h.layouts[l.index]
	if !slot.live || slot.generation != l.generation {
		return
	}
	slot.live = false
	slot.bindings = nil
	h.freeLayouts = append(h.freeLayouts, l.index)
}
