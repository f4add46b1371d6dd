// Package annotation owns the time-stamped drawings and reference guides laid
// over a video.
package annotation

import (
	"fmt"
	"image/color"
	"strings"
	"time"

	"github.com/example/swimlens/internal/geometry"
)

// Channel identifies one of the two comparison videos.
type Channel int

const (
	// ChannelBefore is the primary (left) video.
	ChannelBefore Channel = 0
	// ChannelAfter is the secondary (right) video.
	ChannelAfter Channel = 1
)

// String returns the badge label for the channel.
func (c Channel) String() string {
	if c == ChannelAfter {
		return "After"
	}
	return "Before"
}

// ChannelOrDefault resolves an optional channel from imported data. Absent
// values belong to the primary channel.
func ChannelOrDefault(c *int) Channel {
	if c == nil || *c != int(ChannelAfter) {
		return ChannelBefore
	}
	return ChannelAfter
}

// ArrowStyle selects the dash pattern used for an arrow shaft.
type ArrowStyle string

const (
	StyleSolid      ArrowStyle = "solid"
	StyleDashShort  ArrowStyle = "dash-short"
	StyleDashLong   ArrowStyle = "dash-long"
	StyleDot        ArrowStyle = "dot"
	StyleDashDot    ArrowStyle = "dash-dot"
	StyleDashDotDot ArrowStyle = "dash-dot-dot"
)

const defaultArrowStyle = StyleSolid

var arrowStyles = []ArrowStyle{StyleSolid, StyleDashShort, StyleDashLong, StyleDot, StyleDashDot, StyleDashDotDot}

// ArrowStyles lists the supported styles in display order.
func ArrowStyles() []ArrowStyle {
	out := make([]ArrowStyle, len(arrowStyles))
	copy(out, arrowStyles)
	return out
}

// ParseArrowStyle accepts a style name, treating "dashed" as dash-short.
func ParseArrowStyle(s string) (ArrowStyle, error) {
	spec := strings.ToLower(strings.TrimSpace(s))
	switch spec {
	case "":
		return defaultArrowStyle, nil
	case "dashed":
		return StyleDashShort, nil
	}
	for _, st := range arrowStyles {
		if string(st) == spec {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown arrow style %q", s)
}

// Dashed reports whether the style uses a dash pattern.
func (s ArrowStyle) Dashed() bool { return s != "" && s != StyleSolid }

// Arrow is a straight arrow from Start to End.
type Arrow struct {
	ID        string
	Start     geometry.Point
	End       geometry.Point
	Color     color.RGBA
	Thickness float64
	Timestamp time.Duration
	Style     ArrowStyle
	Channel   Channel
	CreatedAt time.Time
}

// Stroke is a freehand pen path.
type Stroke struct {
	ID        string
	Points    []geometry.Point
	Color     color.RGBA
	Thickness float64
	Timestamp time.Duration
	Channel   Channel
	CreatedAt time.Time
}

// Angle is a three point measurement. Points[1] is the vertex.
type Angle struct {
	ID        string
	Points    [3]geometry.Point
	Degrees   float64
	Color     color.RGBA
	Timestamp time.Duration
	Channel   Channel
	CreatedAt time.Time
}

// Vertex returns the measured corner.
func (a Angle) Vertex() geometry.Point { return a.Points[1] }

// NewAngle builds a measurement from three clicks, computing the angle at the
// second one.
func NewAngle(p1, vertex, p2 geometry.Point) Angle {
	return Angle{
		Points:  [3]geometry.Point{p1, vertex, p2},
		Degrees: geometry.AngleAtVertex(p1, vertex, p2),
	}
}

// Orientation of a reference line.
type Orientation int

const (
	Horizontal Orientation = iota
	Vertical
)

func (o Orientation) String() string {
	if o == Vertical {
		return "vertical"
	}
	return "horizontal"
}

// WaterlineID is the reserved identifier of the primary horizontal guide.
const WaterlineID = "waterline"

// ReferenceLine is an untimed guide positioned as a percentage of the video
// display area.
type ReferenceLine struct {
	ID          string
	Orientation Orientation
	Position    float64
	Color       color.RGBA
	Thickness   float64
}

// NewReferenceLine returns a line with its position clamped to [0,100].
func NewReferenceLine(id string, o Orientation, pos float64, col color.RGBA, thick float64) ReferenceLine {
	return ReferenceLine{ID: id, Orientation: o, Position: geometry.Clamp(pos, 0, 100), Color: col, Thickness: thick}
}

// Collection is the full set of annotations.
type Collection struct {
	Arrows         []Arrow
	Strokes        []Stroke
	Angles         []Angle
	ReferenceLines []ReferenceLine
}

// Visible is the time filtered subset of drawings.
type Visible struct {
	Arrows  []Arrow
	Strokes []Stroke
	Angles  []Angle
}

// Len returns the number of drawings in v.
func (v Visible) Len() int { return len(v.Arrows) + len(v.Strokes) + len(v.Angles) }

// Kind tags the drawing types for undo and erasing.
type Kind int

const (
	KindNone Kind = iota
	KindArrow
	KindStroke
	KindAngle
)

func (k Kind) String() string {
	switch k {
	case KindArrow:
		return "arrow"
	case KindStroke:
		return "stroke"
	case KindAngle:
		return "angle"
	}
	return "none"
}

// Ref points at a single drawing in a store.
type Ref struct {
	Kind      Kind
	ID        string
	CreatedAt time.Time
}

// Valid reports whether r names a drawing.
func (r Ref) Valid() bool { return r.Kind != KindNone && r.ID != "" }

// Timestamp converts a playback position to the millisecond precision used
// for annotation timestamps.
func Timestamp(d time.Duration) time.Duration { return d.Truncate(time.Millisecond) }
