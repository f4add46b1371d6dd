package annotation

import (
	"fmt"
	"image/color"
	"math"
)

// DefaultWaterline is the initial waterline height as a percentage of the
// video display area.
const DefaultWaterline = 34.7

// Limits accepted for the reference guide counts and widths.
const (
	MinLineCount     = 2
	MaxLineCount     = 10
	MinLineThickness = 1
	MaxLineThickness = 6
)

// ReferenceSettings describes how the reference guides are laid out.
type ReferenceSettings struct {
	LineCount         int
	VerticalLineCount int
	LineThickness     float64
	ShowHorizontal    bool
	ShowVertical      bool
	Waterline         float64
	ShowWaterline     bool
	Color             color.RGBA
	WaterlineColor    color.RGBA
}

// DefaultReferenceSettings returns the guide layout used on first start.
func DefaultReferenceSettings() ReferenceSettings {
	return ReferenceSettings{
		LineCount:         6,
		VerticalLineCount: 1,
		LineThickness:     6,
		Waterline:         DefaultWaterline,
		ShowWaterline:     true,
		Color:             color.RGBA{0xff, 0xff, 0xff, 0xff},
		WaterlineColor:    color.RGBA{0x3b, 0x82, 0xf6, 0xff},
	}
}

// Normalize clamps counts and widths into their accepted ranges.
func (r ReferenceSettings) Normalize() ReferenceSettings {
	r.LineCount = clampInt(r.LineCount, MinLineCount, MaxLineCount)
	r.VerticalLineCount = clampInt(r.VerticalLineCount, 1, MaxLineCount)
	r.LineThickness = math.Max(MinLineThickness, math.Min(MaxLineThickness, r.LineThickness))
	r.Waterline = math.Max(0, math.Min(100, r.Waterline))
	return r
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ReferenceLayout builds the guide set for the given settings: the waterline
// first, then evenly spaced horizontal lines at 100/(n+1) steps that do not
// coincide with it, then vertical lines.
func ReferenceLayout(rs ReferenceSettings) []ReferenceLine {
	rs = rs.Normalize()
	var lines []ReferenceLine
	if rs.ShowWaterline {
		lines = append(lines, NewReferenceLine(WaterlineID, Horizontal, rs.Waterline, rs.WaterlineColor, rs.LineThickness))
	}
	if rs.ShowHorizontal {
		step := 100 / float64(rs.LineCount+1)
		for i := 1; i <= rs.LineCount; i++ {
			pos := step * float64(i)
			if rs.ShowWaterline && math.Abs(pos-rs.Waterline) < 0.5 {
				continue
			}
			lines = append(lines, NewReferenceLine(fmt.Sprintf("h-line-%d", i), Horizontal, pos, rs.Color, rs.LineThickness))
		}
	}
	if rs.ShowVertical {
		step := 100 / float64(rs.VerticalLineCount+1)
		for i := 1; i <= rs.VerticalLineCount; i++ {
			lines = append(lines, NewReferenceLine(fmt.Sprintf("v-line-%d", i), Vertical, step*float64(i), rs.Color, rs.LineThickness))
		}
	}
	return lines
}
