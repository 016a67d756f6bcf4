package renderer

// RendererBackendType selects the GPU API implementation behind the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU renders through WebGPU.
	BackendTypeWGPU RendererBackendType = iota
)

// PresentMode controls how finished frames reach the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the vertical blank, capping the frame rate
	// at the monitor's refresh rate and eliminating tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents immediately for the lowest latency and
	// may tear.
	PresentModeUncapped
)

// MSAASampleCount is the multisample anti-aliasing sample count. WebGPU
// guarantees 1 and 4; 8 and 16 depend on the adapter.
type MSAASampleCount uint32

const (
	MSAAOff MSAASampleCount = 1
	MSAA4x  MSAASampleCount = 4
	MSAA8x  MSAASampleCount = 8
	MSAA16x MSAASampleCount = 16
)

// Valid reports whether the count is one the surface configuration accepts.
//
// Returns:
//   - bool: true for 1, 4, 8, or 16
func (c MSAASampleCount) Valid() bool {
	switch c {
	case MSAAOff, MSAA4x, MSAA8x, MSAA16x:
		return true
	}
	return false
}

// RendererBackend is the renderer's view of the selected GPU backend.
type RendererBackend interface {
	wgpuRendererBackend
}
