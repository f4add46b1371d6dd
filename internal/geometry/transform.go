package geometry

// Transform maps points with independent X/Y scale followed by a translation.
// It is enough to express the contain-fit placement of a channel inside a
// comparison panel.
type Transform struct {
	ScaleX, ScaleY   float64
	OffsetX, OffsetY float64
}

// Identity returns the transform that leaves points unchanged.
func Identity() Transform { return Transform{ScaleX: 1, ScaleY: 1} }

// IsIdentity reports whether t leaves points unchanged.
func (t Transform) IsIdentity() bool {
	return t.ScaleX == 1 && t.ScaleY == 1 && t.OffsetX == 0 && t.OffsetY == 0
}

// Apply maps p.
func (t Transform) Apply(p Point) Point {
	return Point{X: p.X*t.ScaleX + t.OffsetX, Y: p.Y*t.ScaleY + t.OffsetY}
}

// ApplyAll maps every point, returning a new slice.
func (t Transform) ApplyAll(pts []Point) []Point {
	out := make([]Point, len(pts))
	for i, p := range pts {
		out[i] = t.Apply(p)
	}
	return out
}

// Length maps a scalar length such as a stroke width. The mean of both axes
// is used so non-uniform scaling stays visually balanced.
func (t Transform) Length(v float64) float64 {
	return v * (t.ScaleX + t.ScaleY) / 2
}

// Compose returns the transform equivalent to applying t first and then next.
func (t Transform) Compose(next Transform) Transform {
	return Transform{
		ScaleX:  t.ScaleX * next.ScaleX,
		ScaleY:  t.ScaleY * next.ScaleY,
		OffsetX: t.OffsetX*next.ScaleX + next.OffsetX,
		OffsetY: t.OffsetY*next.ScaleY + next.OffsetY,
	}
}

// FitTransform maps coordinates in a source of the given native size onto
// dst. The scale factors are independent, so callers decide the aspect by
// choosing dst, usually from VideoDisplayRect.
func FitTransform(src Size, dst Rect) Transform {
	if src.Empty() {
		return Transform{ScaleX: 1, ScaleY: 1, OffsetX: dst.X, OffsetY: dst.Y}
	}
	return Transform{
		ScaleX:  dst.W / src.W,
		ScaleY:  dst.H / src.H,
		OffsetX: dst.X,
		OffsetY: dst.Y,
	}
}

// ApplyRect maps r. Negative scales are not expected.
func (t Transform) ApplyRect(r Rect) Rect {
	o := t.Apply(Point{X: r.X, Y: r.Y})
	return Rect{X: o.X, Y: o.Y, W: r.W * t.ScaleX, H: r.H * t.ScaleY}
}
