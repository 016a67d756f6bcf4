// Package window provides the GLFW window the renderer draws into, reduced to
// the surface the engine needs: a message loop, resize notification for
// swapchain reconfiguration, and key input.
package window

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/flint3d/flint-go/common"
)

// Window owns the platform window and delivers its events through callbacks.
type Window interface {
	// SetUpdateCallback sets the function called each message loop iteration.
	//
	// Parameters:
	//   - callback: function to call, nil to disable
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called when the framebuffer size
	// changes. The renderer reconfigures its surface from these dimensions.
	//
	// Parameters:
	//   - callback: function receiving the new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetKeyDownCallback sets the callback for key press and repeat events.
	//
	// Parameters:
	//   - callback: function receiving the virtual key code
	SetKeyDownCallback(callback func(key common.Key))

	// SetKeyUpCallback sets the callback for key release events.
	//
	// Parameters:
	//   - callback: function receiving the virtual key code
	SetKeyUpCallback(callback func(key common.Key))

	// SurfaceDescriptor returns a platform-appropriate descriptor for
	// creating a WebGPU surface over this window.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the descriptor, nil before the window is created
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning reports whether the window is still open.
	//
	// Returns:
	//   - bool: true until the window is closed
	IsRunning() bool

	// Close destroys the window and releases platform resources.
	//
	// Returns:
	//   - error: non-nil if the window was never created
	Close() error

	// ProcessMessages runs the message loop until the window closes,
	// invoking the update callback each iteration.
	ProcessMessages()

	// Width returns the current framebuffer width in pixels.
	//
	// Returns:
	//   - int: the width
	Width() int

	// Height returns the current framebuffer height in pixels.
	//
	// Returns:
	//   - int: the height
	Height() int
}

type engineWindow struct {
	title  string
	width  int
	height int

	platform *glfwWindow

	onUpdate  func()
	onResize  func(width, height int)
	onKeyDown func(key common.Key)
	onKeyUp   func(key common.Key)
}

var _ Window = &engineWindow{}

// NewWindow creates and opens a window. Panics if the platform window cannot
// be created.
//
// Parameters:
//   - options: functional options applied over the defaults
//
// Returns:
//   - Window: the open window
func NewWindow(options ...WindowOption) Window {
	w := &engineWindow{
		title:  "flint",
		width:  1280,
		height: 720,
	}
	for _, opt := range options {
		opt(w)
	}
	if err := openPlatformWindow(w); err != nil {
		panic(fmt.Sprintf("window: %v", err))
	}
	return w
}

func (w *engineWindow) SetUpdateCallback(callback func()) {
	w.onUpdate = callback
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *engineWindow) SetKeyDownCallback(callback func(key common.Key)) {
	w.onKeyDown = callback
}

func (w *engineWindow) SetKeyUpCallback(callback func(key common.Key)) {
	w.onKeyUp = callback
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	if w.platform == nil {
		return nil
	}
	return w.platform.surfaceDescriptor()
}

func (w *engineWindow) IsRunning() bool {
	return w.platform != nil && w.platform.isRunning()
}

func (w *engineWindow) Close() error {
	if w.platform == nil {
		return fmt.Errorf("window: not initialized")
	}
	w.platform.close()
	return nil
}

func (w *engineWindow) ProcessMessages() {
	for w.IsRunning() {
		w.platform.poll()
		if !w.IsRunning() {
			break
		}
		if w.onUpdate != nil {
			w.onUpdate()
		}
		runtime.Gosched()
	}
}

func (w *engineWindow) Width() int {
	return w.width
}

func (w *engineWindow) Height() int {
	return w.height
}
