package window

// WindowOption configures a Window at construction.
type WindowOption func(w *engineWindow)

// WithTitle sets the window title.
//
// Parameters:
//   - title: the title bar text
//
// Returns:
//   - WindowOption: the option to pass to NewWindow
func WithTitle(title string) WindowOption {
	return func(w *engineWindow) {
		w.title = title
	}
}

// WithWidth sets the initial window width.
//
// Parameters:
//   - width: the width in pixels
//
// Returns:
//   - WindowOption: the option to pass to NewWindow
func WithWidth(width int) WindowOption {
	return func(w *engineWindow) {
		w.width = width
	}
}

// WithHeight sets the initial window height.
//
// Parameters:
//   - height: the height in pixels
//
// Returns:
//   - WindowOption: the option to pass to NewWindow
func WithHeight(height int) WindowOption {
	return func(w *engineWindow) {
		w.height = height
	}
}
