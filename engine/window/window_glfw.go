package window

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/flint3d/flint-go/common"
)

// glfwWindow is the GLFW side of an engineWindow.
type glfwWindow struct {
	parent  *engineWindow
	window  *glfw.Window
	running bool
}

// openPlatformWindow creates the GLFW window and registers its event
// callbacks. GLFW requires the main OS thread for event handling.
func openPlatformWindow(w *engineWindow) error {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("initialize GLFW: %v", err)
	}

	// WebGPU brings its own graphics API; no OpenGL context.
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)

	win, err := glfw.CreateWindow(w.width, w.height, w.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return fmt.Errorf("create GLFW window: %v", err)
	}

	gw := &glfwWindow{parent: w, window: win, running: true}
	w.platform = gw

	win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		code := common.Key(key)
		if code == common.KeyEsc && action == glfw.Press {
			gw.running = false
			win.SetShouldClose(true)
			return
		}
		switch action {
		case glfw.Press, glfw.Repeat:
			if w.onKeyDown != nil {
				w.onKeyDown(code)
			}
		case glfw.Release:
			if w.onKeyUp != nil {
				w.onKeyUp(code)
			}
		}
	})

	// Surface configuration needs framebuffer pixels, not window units;
	// the two differ on high-DPI displays.
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.width = width
		w.height = height
		if w.onResize != nil {
			w.onResize(width, height)
		}
	})

	fbWidth, fbHeight := win.GetFramebufferSize()
	w.width = fbWidth
	w.height = fbHeight

	return nil
}

// surfaceDescriptor builds the per-platform WebGPU surface descriptor through
// the wgpuglfw bridge.
func (gw *glfwWindow) surfaceDescriptor() *wgpu.SurfaceDescriptor {
	return wgpuglfw.GetSurfaceDescriptor(gw.window)
}

func (gw *glfwWindow) isRunning() bool {
	return gw.running && !gw.window.ShouldClose()
}

func (gw *glfwWindow) close() {
	gw.running = false
	gw.window.SetShouldClose(true)
	gw.window.Destroy()
	glfw.Terminate()
}

// poll drains pending GLFW events without blocking.
func (gw *glfwWindow) poll() {
	glfw.PollEvents()
}
