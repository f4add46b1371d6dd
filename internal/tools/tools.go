// Package tools implements the pointer driven drawing tools. Each tool is a
// small state machine behind the Handler interface; a Controller owns one
// instance of each for a single video channel.
package tools

import (
	"fmt"
	"image/color"
	"strings"
	"sync"
	"time"

	"github.com/example/swimlens/internal/annotation"
	"github.com/example/swimlens/internal/geometry"
)

// Tool selects the active interaction.
type Tool int

const (
	ToolNone Tool = iota
	ToolArrow
	ToolPen
	ToolAngle
	ToolEraser
	ToolWaterline
)

var toolNames = map[Tool]string{
	ToolNone:      "none",
	ToolArrow:     "arrow",
	ToolPen:       "pen",
	ToolAngle:     "angle",
	ToolEraser:    "eraser",
	ToolWaterline: "waterline",
}

func (t Tool) String() string {
	if n, ok := toolNames[t]; ok {
		return n
	}
	return fmt.Sprintf("tool(%d)", int(t))
}

// ParseTool resolves a tool by name.
func ParseTool(s string) (Tool, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, n := range toolNames {
		if n == s {
			return t, nil
		}
	}
	return ToolNone, fmt.Errorf("unknown tool %q", s)
}

// Thresholds used by the interaction machines.
const (
	// MinArrowLength is the drag distance an arrow must exceed to commit.
	MinArrowLength = 10
	// MinStrokePoints is the number of samples a pen stroke needs to commit.
	MinStrokePoints = 2
	// EraseWindow is how far from the current time the eraser looks.
	EraseWindow = 100 * time.Millisecond
)

// Settings are the drawing options shared by every channel.
type Settings struct {
	Color        color.RGBA
	Thickness    float64
	PenThickness float64
	ArrowStyle   annotation.ArrowStyle
	Reference    annotation.ReferenceSettings
}

// DefaultColor is the emerald used for new drawings.
var DefaultColor = color.RGBA{0x10, 0xb9, 0x81, 0xff}

// DefaultSettings returns the settings a fresh session starts with.
func DefaultSettings() Settings {
	return Settings{
		Color:        DefaultColor,
		Thickness:    4,
		PenThickness: 3,
		ArrowStyle:   annotation.StyleSolid,
		Reference:    annotation.DefaultReferenceSettings(),
	}
}

// SharedSettings guards the Settings that both channels' controllers read
// while the paint goroutine builds previews.
type SharedSettings struct {
	mu sync.RWMutex
	s  Settings
}

// NewSharedSettings wraps s.
func NewSharedSettings(s Settings) *SharedSettings { return &SharedSettings{s: s} }

// Get returns a copy of the current settings.
func (ss *SharedSettings) Get() Settings {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return ss.s
}

// Update applies fn under the write lock and returns the result.
func (ss *SharedSettings) Update(fn func(*Settings)) Settings {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	fn(&ss.s)
	return ss.s
}

// Handler is the capability every tool state machine exposes.
type Handler interface {
	PointerDown(p geometry.Point)
	PointerMove(p geometry.Point)
	PointerUp(p geometry.Point)
	// Preview describes uncommitted geometry to draw on top of the frame.
	Preview() Preview
	// Reset drops any in-progress state.
	Reset()
}

// Preview is transient tool geometry. It is never stored.
type Preview struct {
	Tool      Tool
	Color     color.RGBA
	Thickness float64
	Style     annotation.ArrowStyle

	// Arrow is set while an arrow drag is in progress.
	Arrow *[2]geometry.Point
	// Stroke holds the pen samples collected so far.
	Stroke []geometry.Point
	// AnglePoints holds the buffered angle clicks (at most two).
	AnglePoints []geometry.Point
	// Cursor is the last pointer position, used to draw the angle rubber band.
	Cursor *geometry.Point

	// Highlight is the eraser hover candidate.
	Highlight *Hit
}

// Empty reports whether there is nothing to draw.
func (p Preview) Empty() bool {
	return p.Arrow == nil && len(p.Stroke) == 0 && len(p.AnglePoints) == 0 && p.Highlight == nil
}

// Env is what a tool needs from its surroundings.
type Env struct {
	Store    *annotation.Store
	Channel  annotation.Channel
	Clock    func() time.Duration
	Settings *SharedSettings
	// OnWaterline is called with the new waterline percentage.
	OnWaterline func(pct float64)
	// PercentY converts a canvas point into a display rect percentage.
	PercentY func(geometry.Point) float64
}

func (e Env) now() time.Duration {
	if e.Clock == nil {
		return 0
	}
	return annotation.Timestamp(e.Clock())
}

func (e Env) settings() Settings {
	if e.Settings == nil {
		return DefaultSettings()
	}
	return e.Settings.Get()
}
