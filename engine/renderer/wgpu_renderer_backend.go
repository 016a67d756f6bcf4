package renderer

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/flint3d/flint-go/engine/renderer/device"
	"github.com/flint3d/flint-go/engine/renderer/pipeline"
	"github.com/flint3d/flint-go/engine/renderer/spirv"
)

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	// gpu wraps device and queue in the portable device abstraction so the
	// buffer handlers and shader programs can share the backend's GPU device.
	gpu device.WGPUDevice

	surfaceFormat        *wgpu.TextureFormat
	msaaTextureView      *wgpu.TextureView
	depthTextureView     *wgpu.TextureView
	renderPassDescriptor *wgpu.RenderPassDescriptor

	presentMode wgpu.PresentMode // defaults to PresentModeImmediate (Uncapped)
	sampleCount MSAASampleCount  // MSAA sample count for the main render pass

	// layouts caches the descriptor set layout created for each registered
	// pipeline, keyed by pipeline key, so bind group creation reuses the
	// layout the pipeline was built with.
	layouts map[string]device.DescriptorSetLayout

	// Frame state for batched rendering across multiple draw calls
	frameEncoder *wgpu.CommandEncoder
	framePass    *wgpu.RenderPassEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView

	// Compute frame state for batching all compute dispatches into a single GPU submission
	computeFrameEncoder *wgpu.CommandEncoder
}

type wgpuRendererBackend interface {
	Device() *wgpu.Device
	Queue() *wgpu.Queue
	Instance() *wgpu.Instance
	Adapter() *wgpu.Adapter
	Surface() *wgpu.Surface
	SetDevice(device *wgpu.Device)
	SetQueue(queue *wgpu.Queue)
	SetInstance(instance *wgpu.Instance)
	SetAdapter(adapter *wgpu.Adapter)
	SetSurface(surface *wgpu.Surface)

	// GPUDevice retrieves the portable device wrapper shared with the buffer
	// handlers and shader programs.
	//
	// Returns:
	//   - device.WGPUDevice: the wrapped GPU device
	GPUDevice() device.WGPUDevice

	// ConfigureSurface is a wrapper for boilerplate logic required when calling ConfigureSurface on a surface.
	// This is required when the surface size changes, such as when the window is resized.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	ConfigureSurface(width, height int)

	// SetPresentMode sets the surface present mode which controls how frames are delivered to the display.
	//
	// Parameters:
	//   - mode: the PresentMode to use (VSync or Uncapped)
	SetPresentMode(mode PresentMode)

	// RegisterRenderPipeline creates a render pipeline from the pipeline's shader
	// program: shader modules from the program's stage blobs, the bind group layout
	// from its merged layout bindings, and the vertex buffer layout from its
	// reflected vertex attributes.
	//
	// Parameters:
	//   - p: the pipeline object containing the program and fixed-function configuration
	//
	// Returns:
	//   - error: an error if the pipeline could not be created, otherwise nil
	RegisterRenderPipeline(p pipeline.Pipeline) error

	// RegisterComputePipeline creates a compute pipeline from the pipeline's shader
	// program: the compute shader module from the program's compute stage blob and
	// the bind group layout from its merged layout bindings.
	//
	// Parameters:
	//   - p: the pipeline object containing the program and configuration for the pipeline
	//
	// Returns:
	//   - error: an error if the pipeline could not be created, otherwise nil
	RegisterComputePipeline(p pipeline.Pipeline) error

	// CreateMesh creates GPU vertex and index buffers from raw byte data.
	//
	// Parameters:
	//   - label: the debug label for the mesh buffers
	//   - vertexData: the raw vertex data bytes to upload to the GPU
	//   - indexData: the raw index data bytes to upload to the GPU
	//   - indexCount: the number of indices represented in the indexData, used for draw calls
	//
	// Returns:
	//   - Mesh: the created mesh
	//   - error: an error if the buffers could not be created or initialized, otherwise nil
	CreateMesh(label string, vertexData, indexData []byte, indexCount int) (Mesh, error)

	// CreateBindGroup builds a bind group for a registered pipeline from the
	// buffers backing its layout bindings. Every binding slot the pipeline's
	// program declares must have a buffer in the map.
	//
	// Parameters:
	//   - p: the registered pipeline whose layout the bind group targets
	//   - bindingBuffers: the GPU buffer for each binding slot, keyed by binding index
	//
	// Returns:
	//   - *wgpu.BindGroup: the created bind group
	//   - error: an error if a binding has no buffer or creation fails
	CreateBindGroup(p pipeline.Pipeline, bindingBuffers map[uint32]*wgpu.Buffer) (*wgpu.BindGroup, error)

	// BeginComputeFrame creates a single command encoder for batching all compute dispatches
	// within a frame into one GPU submission. Must be paired with EndComputeFrame after all
	// DispatchCompute calls for the frame.
	//
	// Returns:
	//   - error: an error if the command encoder could not be created
	BeginComputeFrame() error

	// EndComputeFrame finishes the batched compute command encoder and submits the resulting
	// command buffer to the GPU queue. Must be called after BeginComputeFrame and all
	// DispatchCompute calls for the frame.
	EndComputeFrame()

	// DispatchCompute encodes a compute pass within the current batched compute frame.
	// BeginComputeFrame must be called before any DispatchCompute calls.
	//
	// Parameters:
	//   - p: the cached Pipeline containing the compute pipeline to use for dispatching
	//   - bindGroup: the bind group set on the compute pass
	//   - workGroupCount: the number of workgroups to dispatch in the x, y, and z dimensions
	DispatchCompute(p pipeline.Pipeline, bindGroup *wgpu.BindGroup, workGroupCount [3]uint32)

	// BeginFrame acquires the next swapchain texture, creates a command encoder, and begins
	// the main render pass. Must be paired with EndFrame after all DrawCall invocations.
	//
	// Returns:
	//   - error: an error if the swapchain texture could not be acquired
	BeginFrame() error

	// DrawCall encodes a single instanced draw command within the current render pass started by BeginFrame.
	// Multiple DrawCall invocations can be made between BeginFrame and EndFrame.
	//
	// Parameters:
	//   - p: the cached Pipeline containing the render pipeline to use
	//   - m: the mesh holding vertex and index buffers
	//   - instanceCount: the number of instances to draw
	//   - bindGroups: the bind groups set on the render pass, in group order
	DrawCall(p pipeline.Pipeline, m Mesh, instanceCount uint32, bindGroups []*wgpu.BindGroup)

	// DrawCallIndirect encodes a single indirect instanced draw command within the current render pass.
	// The instance count is read from the indirectBuffer on the GPU, allowing a compute shader to
	// control how many instances are drawn without CPU readback.
	//
	// Parameters:
	//   - p: the cached Pipeline containing the render pipeline to use
	//   - m: the mesh holding vertex and index buffers
	//   - indirectBuffer: the GPU buffer containing DrawIndexedIndirect arguments (20 bytes)
	//   - bindGroups: the bind groups set on the render pass, in group order
	DrawCallIndirect(p pipeline.Pipeline, m Mesh, indirectBuffer *wgpu.Buffer, bindGroups []*wgpu.BindGroup)

	// EndFrame ends the current render pass and submits the command buffer to the GPU.
	// Does not present the surface — call Present() after EndFrame to display the frame.
	// Must be called after BeginFrame and all DrawCall invocations.
	EndFrame()

	// Present presents the surface to the display and releases the swapchain texture.
	// Must be called once per frame after EndFrame.
	Present()
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool, sampleCount MSAASampleCount) wgpuRendererBackend {
	runtime.LockOSThread()
	w := &wgpuRendererBackendImpl{
		mu:          &sync.Mutex{},
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeImmediate,
		sampleCount: sampleCount,
		layouts:     make(map[string]device.DescriptorSetLayout),
	}
	w.SetSurface(w.instance.CreateSurface(surfaceDescriptor))

	a, err := w.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    w.surface,
	})
	if err != nil {
		panic(err)
	}
	w.SetAdapter(a)

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
	})
	if err != nil {
		panic(err)
	}
	w.SetDevice(d)
	w.SetQueue(d.GetQueue())
	w.gpu = device.NewWGPUDevice(w.device, w.queue)

	return w
}

func (b *wgpuRendererBackendImpl) GPUDevice() device.WGPUDevice {
	return b.gpu
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = &capabilities.Formats[0]

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      *b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	count := uint32(b.sampleCount)
	msaaEnabled := count > 1

	if msaaEnabled {
		// Create the MSAA texture that the render pass draws into; the resolved
		// result is written to the swapchain view as the ResolveTarget.
		msaaTexture, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
			Label: "MSAA Texture",
			Size: wgpu.Extent3D{
				Width:              uint32(width),
				Height:             uint32(height),
				DepthOrArrayLayers: 1,
			},
			MipLevelCount: 1,
			SampleCount:   count,
			Dimension:     wgpu.TextureDimension2D,
			Format:        *b.surfaceFormat,
			Usage:         wgpu.TextureUsageRenderAttachment,
		})
		if err != nil {
			panic(err)
		}
		b.msaaTextureView, err = msaaTexture.CreateView(nil)
		if err != nil {
			panic(err)
		}
	} else {
		// No MSAA — the render pass draws directly to the swapchain view.
		b.msaaTextureView = nil
	}

	// Depth texture sample count must match the color attachment.
	depthTexture, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Depth Texture",
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   count,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth24Plus,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		panic(err)
	}
	b.depthTextureView, err = depthTexture.CreateView(nil)
	if err != nil {
		panic(err)
	}

	// Build the cached render pass descriptor for the main render target.
	// When MSAA is enabled, View is the MSAA texture and ResolveTarget is
	// set per-frame to the swapchain view. When disabled, View is set
	// per-frame to the swapchain view and ResolveTarget remains nil.
	storeOp := wgpu.StoreOpStore
	if msaaEnabled {
		storeOp = wgpu.StoreOpDiscard // Don't store MSAA data, just resolve
	}
	b.renderPassDescriptor = &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:          b.msaaTextureView, // nil when MSAA is off; set in BeginFrame
				ResolveTarget: nil,               // set per-frame when MSAA is on
				LoadOp:        wgpu.LoadOpClear,
				StoreOp:       storeOp,
				ClearValue: wgpu.Color{
					R: 0.1, G: 0.1, B: 0.1, A: 1.0,
				},
			},
		},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            b.depthTextureView, // Persistent until resize
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard, // Depth not needed after resolving
			DepthClearValue: 1.0,
		},
	}
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeVSync:
		b.presentMode = wgpu.PresentModeFifo
	case PresentModeUncapped:
		fallthrough
	default:
		b.presentMode = wgpu.PresentModeImmediate
	}
}

// pipelineLayoutFor returns the cached descriptor set layout for a pipeline,
// creating it from the program's merged layout bindings on first use.
func (b *wgpuRendererBackendImpl) pipelineLayoutFor(p pipeline.Pipeline) (device.DescriptorSetLayout, error) {
	b.mu.Lock()
	handle, ok := b.layouts[p.PipelineKey()]
	b.mu.Unlock()
	if ok {
		return handle, nil
	}

	handle, err := p.Program().CreateDescriptorSetLayout(b.gpu)
	if err != nil {
		return device.DescriptorSetLayout{}, fmt.Errorf("pipeline %q: %w", p.PipelineKey(), err)
	}

	b.mu.Lock()
	b.layouts[p.PipelineKey()] = handle
	b.mu.Unlock()
	return handle, nil
}

// vertexFormatToWGPU maps a reflected attribute format to the WebGPU vertex format.
func vertexFormatToWGPU(f spirv.Format) (wgpu.VertexFormat, error) {
	switch f {
	case spirv.FormatR32Float:
		return wgpu.VertexFormatFloat32, nil
	case spirv.FormatR32G32Float:
		return wgpu.VertexFormatFloat32x2, nil
	case spirv.FormatR32G32B32Float:
		return wgpu.VertexFormatFloat32x3, nil
	case spirv.FormatR32G32B32A32Float:
		return wgpu.VertexFormatFloat32x4, nil
	case spirv.FormatR32Sint:
		return wgpu.VertexFormatSint32, nil
	case spirv.FormatR32G32Sint:
		return wgpu.VertexFormatSint32x2, nil
	case spirv.FormatR32G32B32Sint:
		return wgpu.VertexFormatSint32x3, nil
	case spirv.FormatR32G32B32A32Sint:
		return wgpu.VertexFormatSint32x4, nil
	case spirv.FormatR32Uint:
		return wgpu.VertexFormatUint32, nil
	case spirv.FormatR32G32Uint:
		return wgpu.VertexFormatUint32x2, nil
	case spirv.FormatR32G32B32Uint:
		return wgpu.VertexFormatUint32x3, nil
	case spirv.FormatR32G32B32A32Uint:
		return wgpu.VertexFormatUint32x4, nil
	default:
		return 0, fmt.Errorf("unsupported vertex attribute format %d", f)
	}
}

// vertexBufferLayout builds an interleaved vertex buffer layout from the
// program's reflected attributes, packing members in location order.
func vertexBufferLayout(attrs []spirv.ReflectedAttribute) ([]wgpu.VertexBufferLayout, error) {
	if len(attrs) == 0 {
		return nil, nil
	}
	wgpuAttrs := make([]wgpu.VertexAttribute, 0, len(attrs))
	var offset uint64
	for _, a := range attrs {
		format, err := vertexFormatToWGPU(a.Attribute.Format)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", a.Name, err)
		}
		wgpuAttrs = append(wgpuAttrs, wgpu.VertexAttribute{
			Format:         format,
			Offset:         offset,
			ShaderLocation: uint32(a.Attribute.Location),
		})
		offset += uint64(a.Attribute.Size)
	}
	return []wgpu.VertexBufferLayout{
		{
			ArrayStride: offset,
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes:  wgpuAttrs,
		},
	}, nil
}

// stageModules resolves the native shader module and entry point for each stage
// in the program, keyed by stage bit.
func (b *wgpuRendererBackendImpl) stageModules(p pipeline.Pipeline) (map[spirv.Stage]*wgpu.ShaderModule, map[spirv.Stage]string, error) {
	prog := p.Program()
	handles, err := prog.CreateModules(b.gpu)
	if err != nil {
		return nil, nil, fmt.Errorf("pipeline %q: %w", p.PipelineKey(), err)
	}
	modules := make(map[spirv.Stage]*wgpu.ShaderModule, len(handles))
	entryPoints := make(map[spirv.Stage]string, len(handles))
	for i, blob := range prog.PipelineStages() {
		modules[blob.Stage()] = b.gpu.ShaderModuleHandle(handles[i])
		entryPoints[blob.Stage()] = blob.EntryPoint()
	}
	return modules, entryPoints, nil
}

func (b *wgpuRendererBackendImpl) RegisterRenderPipeline(p pipeline.Pipeline) error {
	prog := p.Program()
	if !prog.HasStage(spirv.StageVertex) {
		return errors.New("a vertex stage must be present to create a render pipeline")
	}

	modules, entryPoints, err := b.stageModules(p)
	if err != nil {
		return err
	}

	var bindGroupLayouts []*wgpu.BindGroupLayout
	if len(prog.LayoutBindings()) > 0 {
		handle, layoutErr := b.pipelineLayoutFor(p)
		if layoutErr != nil {
			return layoutErr
		}
		bindGroupLayouts = append(bindGroupLayouts, b.gpu.BindGroupLayoutHandle(handle))
	}

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.PipelineKey(),
		BindGroupLayouts: bindGroupLayouts,
	})
	if err != nil {
		return err
	}

	vertexLayouts, err := vertexBufferLayout(prog.VertexAttributes())
	if err != nil {
		return fmt.Errorf("pipeline %q: %w", p.PipelineKey(), err)
	}

	var fragment *wgpu.FragmentState
	if fs, ok := modules[spirv.StageFragment]; ok {
		fragment = &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: entryPoints[spirv.StageFragment],
			Targets: []wgpu.ColorTargetState{
				func() wgpu.ColorTargetState {
					state := wgpu.ColorTargetState{
						Format:    *b.surfaceFormat,
						WriteMask: p.WriteMask(),
					}
					if p.BlendEnabled() {
						state.Blend = p.BlendState()
					}
					return state
				}(),
			},
		}
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.PipelineKey() + " Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     modules[spirv.StageVertex],
			EntryPoint: entryPoints[spirv.StageVertex],
			Buffers:    vertexLayouts,
		},
		Fragment: fragment,
		Primitive: wgpu.PrimitiveState{
			Topology:  p.Topology(),
			FrontFace: p.FrontFace(),
			CullMode:  p.CullMode(),
		},
		Multisample: wgpu.MultisampleState{
			Count: uint32(b.sampleCount),
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: func() *wgpu.DepthStencilState {
			depthCompare := wgpu.CompareFunctionLess
			if !p.DepthTestEnabled() {
				depthCompare = wgpu.CompareFunctionAlways
			}
			return &wgpu.DepthStencilState{
				Format:              wgpu.TextureFormatDepth24Plus,
				DepthWriteEnabled:   p.DepthWriteEnabled(),
				DepthCompare:        depthCompare,
				DepthBias:           p.DepthBias(),
				DepthBiasSlopeScale: p.DepthBiasSlopeScale(),
				StencilFront: wgpu.StencilFaceState{
					Compare: wgpu.CompareFunctionAlways,
				},
				StencilBack: wgpu.StencilFaceState{
					Compare: wgpu.CompareFunctionAlways,
				},
			}
		}(),
	})
	if err != nil {
		return err
	}

	p.SetRenderPipeline(created)

	return nil
}

func (b *wgpuRendererBackendImpl) RegisterComputePipeline(p pipeline.Pipeline) error {
	prog := p.Program()
	if !prog.HasStage(spirv.StageCompute) {
		return errors.New("a compute stage must be present to create a compute pipeline")
	}

	modules, entryPoints, err := b.stageModules(p)
	if err != nil {
		return err
	}

	var bindGroupLayouts []*wgpu.BindGroupLayout
	if len(prog.LayoutBindings()) > 0 {
		handle, layoutErr := b.pipelineLayoutFor(p)
		if layoutErr != nil {
			return layoutErr
		}
		bindGroupLayouts = append(bindGroupLayouts, b.gpu.BindGroupLayoutHandle(handle))
	}

	layout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.PipelineKey(),
		BindGroupLayouts: bindGroupLayouts,
	})
	if err != nil {
		return err
	}

	created, err := b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  p.PipelineKey() + " Compute Pipeline",
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     modules[spirv.StageCompute],
			EntryPoint: entryPoints[spirv.StageCompute],
		},
	})
	if err != nil {
		return err
	}

	p.SetComputePipeline(created)

	return nil
}

func (b *wgpuRendererBackendImpl) CreateMesh(label string, vertexData, indexData []byte, indexCount int) (Mesh, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	m := &mesh{label: label, indexCount: indexCount}

	if len(vertexData) > 0 {
		buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label:            label + " Vertex Buffer",
			Size:             uint64(len(vertexData)),
			Usage:            wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
			MappedAtCreation: false,
		})
		if err != nil {
			return nil, err
		}
		if err := b.queue.WriteBuffer(buf, 0, vertexData); err != nil {
			buf.Release()
			return nil, err
		}
		m.vertexBuffer = buf
	}

	if len(indexData) > 0 {
		buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label:            label + " Index Buffer",
			Size:             uint64(len(indexData)),
			Usage:            wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
			MappedAtCreation: false,
		})
		if err != nil {
			m.Release()
			return nil, err
		}
		if err := b.queue.WriteBuffer(buf, 0, indexData); err != nil {
			buf.Release()
			m.Release()
			return nil, err
		}
		m.indexBuffer = buf
	}

	return m, nil
}

func (b *wgpuRendererBackendImpl) CreateBindGroup(p pipeline.Pipeline, bindingBuffers map[uint32]*wgpu.Buffer) (*wgpu.BindGroup, error) {
	handle, err := b.pipelineLayoutFor(p)
	if err != nil {
		return nil, err
	}

	bindings := p.Program().LayoutBindings()
	entries := make([]wgpu.BindGroupEntry, 0, len(bindings))
	for _, lb := range bindings {
		buf, ok := bindingBuffers[lb.Binding]
		if !ok || buf == nil {
			return nil, fmt.Errorf("pipeline %q: binding %d has no buffer", p.PipelineKey(), lb.Binding)
		}
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: lb.Binding,
			Buffer:  buf,
			Offset:  0,
			Size:    wgpu.WholeSize,
		})
	}

	return b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   p.PipelineKey() + " Bind Group",
		Layout:  b.gpu.BindGroupLayoutHandle(handle),
		Entries: entries,
	})
}

func (b *wgpuRendererBackendImpl) BeginComputeFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	b.computeFrameEncoder = encoder
	return nil
}

func (b *wgpuRendererBackendImpl) EndComputeFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.computeFrameEncoder == nil {
		return
	}

	commandBuffer, err := b.computeFrameEncoder.Finish(nil)
	if err != nil {
		b.computeFrameEncoder.Release()
		b.computeFrameEncoder = nil
		return
	}

	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	b.computeFrameEncoder.Release()
	b.computeFrameEncoder = nil
}

func (b *wgpuRendererBackendImpl) DispatchCompute(
	p pipeline.Pipeline,
	bindGroup *wgpu.BindGroup,
	workGroupCount [3]uint32,
) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.computeFrameEncoder == nil {
		return
	}

	computePipeline := p.Pipeline().(*wgpu.ComputePipeline)

	pass := b.computeFrameEncoder.BeginComputePass(nil)
	pass.SetPipeline(computePipeline)
	if bindGroup != nil {
		pass.SetBindGroup(0, bindGroup, nil)
	}
	pass.DispatchWorkgroups(workGroupCount[0], workGroupCount[1], workGroupCount[2])
	pass.End()
}

func (b *wgpuRendererBackendImpl) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// If a previous frame's surface texture is still held, avoid acquiring
	// another one. Prevents wgpu-native validation errors like "Surface image
	// is already acquired" when frames overlap.
	if b.frameSurface != nil {
		return fmt.Errorf("previous frame surface not yet presented")
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return err
	}

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return err
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return err
	}

	// When MSAA is enabled, the MSAA texture is the color attachment View and
	// the swapchain view is the ResolveTarget. When MSAA is off, the swapchain
	// view is the color attachment View directly and ResolveTarget is nil.
	if b.sampleCount > 1 {
		b.renderPassDescriptor.ColorAttachments[0].ResolveTarget = view
	} else {
		b.renderPassDescriptor.ColorAttachments[0].View = view
	}
	pass := encoder.BeginRenderPass(b.renderPassDescriptor)

	b.frameEncoder = encoder
	b.framePass = pass
	b.frameSurface = surfaceTexture
	b.frameView = view

	return nil
}

func (b *wgpuRendererBackendImpl) DrawCall(
	p pipeline.Pipeline,
	m Mesh,
	instanceCount uint32,
	bindGroups []*wgpu.BindGroup,
) {
	b.mu.Lock()
	defer b.mu.Unlock()

	renderPipeline := p.Pipeline().(*wgpu.RenderPipeline)
	b.framePass.SetPipeline(renderPipeline)

	for i, bg := range bindGroups {
		b.framePass.SetBindGroup(uint32(i), bg, nil)
	}

	b.framePass.SetVertexBuffer(0, m.VertexBuffer(), 0, wgpu.WholeSize)
	b.framePass.SetIndexBuffer(m.IndexBuffer(), wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	b.framePass.DrawIndexed(uint32(m.IndexCount()), instanceCount, 0, 0, 0)
}

func (b *wgpuRendererBackendImpl) DrawCallIndirect(
	p pipeline.Pipeline,
	m Mesh,
	indirectBuffer *wgpu.Buffer,
	bindGroups []*wgpu.BindGroup,
) {
	b.mu.Lock()
	defer b.mu.Unlock()

	renderPipeline := p.Pipeline().(*wgpu.RenderPipeline)
	b.framePass.SetPipeline(renderPipeline)

	for i, bg := range bindGroups {
		b.framePass.SetBindGroup(uint32(i), bg, nil)
	}

	b.framePass.SetVertexBuffer(0, m.VertexBuffer(), 0, wgpu.WholeSize)
	b.framePass.SetIndexBuffer(m.IndexBuffer(), wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	b.framePass.DrawIndexedIndirect(indirectBuffer, 0)
}

func (b *wgpuRendererBackendImpl) EndFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.framePass.End()

	commandBuffer, err := b.frameEncoder.Finish(nil)
	if err != nil {
		b.frameEncoder.Release()
		b.frameView.Release()
		b.frameSurface.Release()
		b.frameEncoder = nil
		b.framePass = nil
		b.frameSurface = nil
		b.frameView = nil
		return
	}

	b.queue.Submit(commandBuffer)

	commandBuffer.Release()
	b.frameEncoder.Release()
	b.frameEncoder = nil
	b.framePass = nil
}

func (b *wgpuRendererBackendImpl) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()

	// If no frame surface is held, nothing to present.
	if b.frameSurface == nil {
		return
	}

	// Present the acquired surface image and release local references.
	b.surface.Present()

	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	if b.frameSurface != nil {
		b.frameSurface.Release()
		b.frameSurface = nil
	}
}

func (b *wgpuRendererBackendImpl) Device() *wgpu.Device {
	return b.device
}

func (b *wgpuRendererBackendImpl) Queue() *wgpu.Queue {
	return b.queue
}

func (b *wgpuRendererBackendImpl) Instance() *wgpu.Instance {
	return b.instance
}

func (b *wgpuRendererBackendImpl) Adapter() *wgpu.Adapter {
	return b.adapter
}

func (b *wgpuRendererBackendImpl) Surface() *wgpu.Surface {
	return b.surface
}

func (b *wgpuRendererBackendImpl) SetDevice(device *wgpu.Device) {
	b.device = device
}

func (b *wgpuRendererBackendImpl) SetQueue(queue *wgpu.Queue) {
	b.queue = queue
}

func (b *wgpuRendererBackendImpl) SetInstance(instance *wgpu.Instance) {
	b.instance = instance
}

func (b *wgpuRendererBackendImpl) SetAdapter(adapter *wgpu.Adapter) {
	b.adapter = adapter
}

func (b *wgpuRendererBackendImpl) SetSurface(surface *wgpu.Surface) {
	b.surface = surface
}
