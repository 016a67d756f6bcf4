package common

// Key is a virtual key code delivered by the window's input callbacks. Values
// match GLFW key codes, which use ASCII for printable keys, so printable keys
// can be compared against character literals directly.
type Key uint32

const (
	KeyW Key = 87
	KeyA Key = 65
	KeyS Key = 83
	KeyD Key = 68
	KeyQ Key = 81
	KeyE Key = 69

	KeySpace      Key = 32
	KeyEsc        Key = 256
	KeyLeftShift  Key = 340
	KeyRightShift Key = 344
)

// Printable reports whether the key carries an ASCII glyph.
//
// Returns:
//   - bool: true for printable keys, false for function and modifier keys
func (k Key) Printable() bool {
	return k >= 32 && k < 127
}
