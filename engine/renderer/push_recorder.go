package renderer

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/flint3d/flint-go/engine/renderer/buffers"
	"github.com/flint3d/flint-go/engine/renderer/spirv"
)

// pushRecorder is the implementation of the PushRecorder interface.
type pushRecorder struct {
	queue  *wgpu.Queue
	buffer *wgpu.Buffer
	size   uint64
}

// PushRecorder records push-constant writes for a frame. WebGPU has no native
// push constants, so the recorder emulates them with a small uniform buffer:
// each recorded range is written into the buffer at its declared offset, and
// the buffer is bound like any other uniform via CreateBindGroup.
type PushRecorder interface {
	buffers.Recorder

	// Buffer retrieves the uniform buffer backing the recorded ranges, for
	// inclusion in a bind group.
	//
	// Returns:
	//   - *wgpu.Buffer: the backing buffer
	Buffer() *wgpu.Buffer

	// Release destroys the backing buffer. The recorder must not be used
	// after Release.
	Release()
}

var _ PushRecorder = &pushRecorder{}

func (r *pushRecorder) PushConstants(stages spirv.Stage, offset uint32, data []byte) error {
	if uint64(offset)+uint64(len(data)) > r.size {
		return fmt.Errorf("push range %d+%d exceeds recorder size %d", offset, len(data), r.size)
	}
	return r.queue.WriteBuffer(r.buffer, uint64(offset), data)
}

func (r *pushRecorder) Buffer() *wgpu.Buffer {
	return r.buffer
}

func (r *pushRecorder) Release() {
	if r.buffer != nil {
		r.buffer.Release()
		r.buffer = nil
	}
}
