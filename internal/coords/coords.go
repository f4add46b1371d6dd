// Package coords converts pointer positions into canvas pixels and into
// percentages of the video display area.
package coords

import "github.com/example/swimlens/internal/geometry"

// Mapper registers one channel canvas against the on-screen box it is drawn
// in. The canvas backing size is the video's native resolution while Bounds
// is whatever size the window gave it.
type Mapper struct {
	Canvas geometry.Size
	Bounds geometry.Rect
	Video  geometry.Size
}

// New returns a mapper for a canvas of the given size shown in bounds. The
// video size defaults to the canvas size.
func New(canvas geometry.Size, bounds geometry.Rect) Mapper {
	return Mapper{Canvas: canvas, Bounds: bounds, Video: canvas}
}

// WithVideo returns a copy of m using video as the intrinsic video size for
// display rect computations.
func (m Mapper) WithVideo(video geometry.Size) Mapper {
	m.Video = video
	return m
}

// Contains reports whether the client position lies over the canvas.
func (m Mapper) Contains(clientX, clientY float64) bool {
	return m.Bounds.Contains(geometry.Pt(clientX, clientY))
}

// ToCanvas maps a client position to canvas pixels.
func (m Mapper) ToCanvas(clientX, clientY float64) geometry.Point {
	sx, sy := 1.0, 1.0
	if m.Bounds.W > 0 {
		sx = m.Canvas.W / m.Bounds.W
	}
	if m.Bounds.H > 0 {
		sy = m.Canvas.H / m.Bounds.H
	}
	return geometry.Pt((clientX-m.Bounds.X)*sx, (clientY-m.Bounds.Y)*sy)
}

// FromCanvas maps canvas pixels back to a client position.
func (m Mapper) FromCanvas(p geometry.Point) (clientX, clientY float64) {
	sx, sy := 1.0, 1.0
	if m.Canvas.W > 0 {
		sx = m.Bounds.W / m.Canvas.W
	}
	if m.Canvas.H > 0 {
		sy = m.Bounds.H / m.Canvas.H
	}
	return m.Bounds.X + p.X*sx, m.Bounds.Y + p.Y*sy
}

// DisplayRect returns the contain-fit video area inside the canvas.
func (m Mapper) DisplayRect() geometry.Rect {
	return geometry.VideoDisplayRect(m.Video.W, m.Video.H, m.Canvas.W, m.Canvas.H)
}

// PercentY converts a canvas point to its height within the display rect as
// a percentage clamped to [0,100].
func (m Mapper) PercentY(p geometry.Point) float64 {
	r := m.DisplayRect()
	if r.H <= 0 {
		return 0
	}
	return geometry.Clamp((p.Y-r.Y)/r.H*100, 0, 100)
}

// PercentX is the horizontal counterpart of PercentY.
func (m Mapper) PercentX(p geometry.Point) float64 {
	r := m.DisplayRect()
	if r.W <= 0 {
		return 0
	}
	return geometry.Clamp((p.X-r.X)/r.W*100, 0, 100)
}

// FromPercentY returns the canvas Y of a percentage of the display rect.
func (m Mapper) FromPercentY(pct float64) float64 {
	r := m.DisplayRect()
	return r.Y + r.H*geometry.Clamp(pct, 0, 100)/100
}

// FromPercentX returns the canvas X of a percentage of the display rect.
func (m Mapper) FromPercentX(pct float64) float64 {
	r := m.DisplayRect()
	return r.X + r.W*geometry.Clamp(pct, 0, 100)/100
}
