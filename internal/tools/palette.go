package tools

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/image/colornames"
)

// PaletteColor is a named drawing colour.
type PaletteColor struct {
	Name  string
	Color color.RGBA
}

var (
	paletteMu sync.RWMutex
	palette   = []PaletteColor{
		{"Emerald", DefaultColor},
		{"Blue", color.RGBA{0x3b, 0x82, 0xf6, 0xff}},
		{"Red", color.RGBA{0xef, 0x44, 0x44, 0xff}},
		{"Yellow", color.RGBA{0xea, 0xb3, 0x08, 0xff}},
		{"Purple", color.RGBA{0xa8, 0x55, 0xf7, 0xff}},
		{"Pink", color.RGBA{0xec, 0x48, 0x99, 0xff}},
		{"White", color.RGBA{0xff, 0xff, 0xff, 0xff}},
	}
)

// Palette returns a copy of the drawing colours in display order. The first
// entry is the default.
func Palette() []PaletteColor {
	paletteMu.RLock()
	defer paletteMu.RUnlock()
	out := make([]PaletteColor, len(palette))
	copy(out, palette)
	return out
}

// AddPaletteColor makes sure col is offered under name and returns its index.
// An existing entry with the same name is recoloured.
func AddPaletteColor(name string, col color.RGBA) int {
	paletteMu.Lock()
	defer paletteMu.Unlock()
	if name == "" {
		name = HexColor(col)
	}
	for i, p := range palette {
		if strings.EqualFold(p.Name, name) {
			palette[i].Color = col
			return i
		}
	}
	palette = append(palette, PaletteColor{Name: name, Color: col})
	return len(palette) - 1
}

// ParseColor accepts a palette name, an SVG colour name or #RRGGBB[AA].
func ParseColor(s string) (color.RGBA, error) {
	spec := strings.ToLower(strings.TrimSpace(s))
	if spec == "" {
		return color.RGBA{}, fmt.Errorf("color cannot be empty")
	}
	for _, p := range Palette() {
		if strings.ToLower(p.Name) == spec {
			return p.Color, nil
		}
	}
	if c, ok := colornames.Map[spec]; ok {
		return c, nil
	}
	if !strings.HasPrefix(spec, "#") || (len(spec) != 7 && len(spec) != 9) {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(spec[1:], 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	if len(spec) == 7 {
		return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// HexColor formats c as #RRGGBB, or #RRGGBBAA when translucent.
func HexColor(c color.RGBA) string {
	if c.A == 0xff {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}
