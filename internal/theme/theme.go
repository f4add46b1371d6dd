// Package theme holds the colours of the viewer chrome: the window
// background behind the videos, the toolbar and the status bar.
package theme

import (
	"image/color"
	"sort"
	"strings"
)

// Theme defines the viewer chrome palette. Annotation colours are not part
// of a theme.
type Theme struct {
	Name string

	Background color.RGBA // behind the video canvases
	Bar        color.RGBA // toolbar and status bar
	BarText    color.RGBA

	Button       color.RGBA
	ButtonHover  color.RGBA
	ButtonActive color.RGBA // selected tool
	ButtonText   color.RGBA
}

// Default returns the built in theme: a dark canvas area with light bars.
func Default() *Theme {
	return &Theme{
		Name:         "default",
		Background:   color.RGBA{0x11, 0x18, 0x27, 0xff},
		Bar:          color.RGBA{0xe5, 0xe7, 0xeb, 0xff},
		BarText:      color.RGBA{0x00, 0x00, 0x00, 0xff},
		Button:       color.RGBA{200, 200, 200, 255},
		ButtonHover:  color.RGBA{180, 180, 180, 255},
		ButtonActive: color.RGBA{150, 150, 150, 255},
		ButtonText:   color.RGBA{0x00, 0x00, 0x00, 0xff},
	}
}

func dark() *Theme {
	return &Theme{
		Name:         "dark",
		Background:   color.RGBA{0x03, 0x07, 0x12, 0xff},
		Bar:          color.RGBA{0x1f, 0x29, 0x37, 0xff},
		BarText:      color.RGBA{0xe5, 0xe7, 0xeb, 0xff},
		Button:       color.RGBA{0x37, 0x41, 0x51, 0xff},
		ButtonHover:  color.RGBA{0x4b, 0x55, 0x63, 0xff},
		ButtonActive: color.RGBA{0x10, 0xb9, 0x81, 0xff},
		ButtonText:   color.RGBA{0xf9, 0xfa, 0xfb, 0xff},
	}
}

// pool is the poolside theme: bright enough to read in daylight.
func pool() *Theme {
	return &Theme{
		Name:         "pool",
		Background:   color.RGBA{0x0c, 0x4a, 0x6e, 0xff},
		Bar:          color.RGBA{0xe0, 0xf2, 0xfe, 0xff},
		BarText:      color.RGBA{0x0c, 0x4a, 0x6e, 0xff},
		Button:       color.RGBA{0xba, 0xe6, 0xfd, 0xff},
		ButtonHover:  color.RGBA{0x7d, 0xd3, 0xfc, 0xff},
		ButtonActive: color.RGBA{0x38, 0xbd, 0xf8, 0xff},
		ButtonText:   color.RGBA{0x08, 0x2f, 0x49, 0xff},
	}
}

func highContrast() *Theme {
	return &Theme{
		Name:         "high_contrast",
		Background:   color.RGBA{0x00, 0x00, 0x00, 0xff},
		Bar:          color.RGBA{0xff, 0xff, 0xff, 0xff},
		BarText:      color.RGBA{0x00, 0x00, 0x00, 0xff},
		Button:       color.RGBA{0xff, 0xff, 0xff, 0xff},
		ButtonHover:  color.RGBA{0xff, 0xff, 0x00, 0xff},
		ButtonActive: color.RGBA{0x00, 0x00, 0x00, 0xff},
		ButtonText:   color.RGBA{0x00, 0x00, 0x00, 0xff},
	}
}

var builtins = map[string]func() *Theme{
	"default":       Default,
	"dark":          dark,
	"pool":          pool,
	"high_contrast": highContrast,
}

// Builtin returns the named built in theme.
func Builtin(name string) (*Theme, bool) {
	fn, ok := builtins[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, false
	}
	return fn(), true
}

// Names lists the built in themes.
func Names() []string {
	out := make([]string, 0, len(builtins))
	for n := range builtins {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
