package clipboard

import "errors"

var (
	// ErrNoDisplay is returned on Unix when neither X11 nor Wayland is reachable.
	ErrNoDisplay = errors.New("clipboard initialization requires DISPLAY or WAYLAND_DISPLAY")
	// ErrUnsupported is returned by builds without clipboard support.
	ErrUnsupported = errors.New("clipboard operations require cgo support")
)
