// Package geometry holds the point, rectangle and transform maths shared by the
// annotation tools, the renderer and the export compositor.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Point is a position in canvas pixel space at the video's native resolution.
type Point struct {
	X, Y float64
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

func (p Point) vec() r2.Vec { return r2.Vec{X: p.X, Y: p.Y} }

func fromVec(v r2.Vec) Point { return Point{X: v.X, Y: v.Y} }

// Add returns p+q.
func (p Point) Add(q Point) Point { return fromVec(r2.Add(p.vec(), q.vec())) }

// Sub returns p-q.
func (p Point) Sub(q Point) Point { return fromVec(r2.Sub(p.vec(), q.vec())) }

// Scale returns p multiplied by f.
func (p Point) Scale(f float64) Point { return fromVec(r2.Scale(f, p.vec())) }

// Size is a width/height pair.
type Size struct {
	W, H float64
}

// Empty reports whether either dimension is not positive.
func (s Size) Empty() bool { return s.W <= 0 || s.H <= 0 }

// Rect is an axis-aligned rectangle with its origin at the top left.
type Rect struct {
	X, Y, W, H float64
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

// Center returns the midpoint of r.
func (r Rect) Center() Point { return Point{X: r.X + r.W/2, Y: r.Y + r.H/2} }

// Distance returns the euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return r2.Norm(r2.Sub(b.vec(), a.vec()))
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b Point) Point {
	return fromVec(r2.Scale(0.5, r2.Add(a.vec(), b.vec())))
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// AngleAtVertex returns the angle in degrees formed at vertex by the rays
// towards p1 and p2, rounded to one decimal place. A zero-length ray yields 0.
func AngleAtVertex(p1, vertex, p2 Point) float64 {
	v1 := r2.Sub(p1.vec(), vertex.vec())
	v2 := r2.Sub(p2.vec(), vertex.vec())
	m1 := r2.Norm(v1)
	m2 := r2.Norm(v2)
	if m1 == 0 || m2 == 0 {
		return 0
	}
	cos := Clamp(r2.Dot(v1, v2)/(m1*m2), -1, 1)
	deg := math.Acos(cos) * 180 / math.Pi
	return math.Round(deg*10) / 10
}

// DistanceToSegment returns the distance from p to the segment ab together
// with the projection parameter t, clamped to [0,1].
func DistanceToSegment(p, a, b Point) (dist, t float64) {
	ab := r2.Sub(b.vec(), a.vec())
	lenSq := r2.Dot(ab, ab)
	if lenSq == 0 {
		return Distance(p, a), 0
	}
	t = Clamp(r2.Dot(r2.Sub(p.vec(), a.vec()), ab)/lenSq, 0, 1)
	proj := r2.Add(a.vec(), r2.Scale(t, ab))
	return r2.Norm(r2.Sub(p.vec(), proj)), t
}

// VideoDisplayRect returns the area a video of the given intrinsic size
// occupies inside a canvas when scaled with contain-fit. Wider videos are
// letterboxed top and bottom, taller ones pillarboxed left and right. A video
// without dimensions covers the whole canvas.
func VideoDisplayRect(videoW, videoH, canvasW, canvasH float64) Rect {
	if videoW <= 0 || videoH <= 0 || canvasW <= 0 || canvasH <= 0 {
		return Rect{W: canvasW, H: canvasH}
	}
	videoAspect := videoW / videoH
	canvasAspect := canvasW / canvasH
	if videoAspect > canvasAspect {
		h := canvasW / videoAspect
		return Rect{X: 0, Y: (canvasH - h) / 2, W: canvasW, H: h}
	}
	w := canvasH * videoAspect
	return Rect{X: (canvasW - w) / 2, Y: 0, W: w, H: canvasH}
}
