package tools

import (
	"time"

	"github.com/example/swimlens/internal/annotation"
	"github.com/example/swimlens/internal/geometry"
)

// Tolerance is the pixel slack used when hit-testing drawings.
type Tolerance struct {
	// Segment applies to arrow shafts.
	Segment float64
	// Point applies to stroke samples and angle points.
	Point float64
}

var (
	// ClickTolerance is used when a click erases.
	ClickTolerance = Tolerance{Segment: 10, Point: 15}
	// HoverTolerance is used for the hover highlight.
	HoverTolerance = Tolerance{Segment: 18, Point: 18}
)

// Hit is a drawing found under the pointer.
type Hit struct {
	Ref    annotation.Ref
	Arrow  *annotation.Arrow
	Stroke *annotation.Stroke
	Angle  *annotation.Angle
}

// HitTest finds the drawing on ch under p among those timestamped within
// EraseWindow of now. Arrows win over strokes, strokes over angles.
func HitTest(store *annotation.Store, p geometry.Point, now time.Duration, ch annotation.Channel, tol Tolerance) *Hit {
	cand := store.NearTime(now, EraseWindow, ch)
	for i := range cand.Arrows {
		a := cand.Arrows[i]
		if d, _ := geometry.DistanceToSegment(p, a.Start, a.End); d < tol.Segment {
			return &Hit{Ref: annotation.Ref{Kind: annotation.KindArrow, ID: a.ID, CreatedAt: a.CreatedAt}, Arrow: &a}
		}
	}
	for i := range cand.Strokes {
		st := cand.Strokes[i]
		if anyWithin(p, st.Points, tol.Point) {
			return &Hit{Ref: annotation.Ref{Kind: annotation.KindStroke, ID: st.ID, CreatedAt: st.CreatedAt}, Stroke: &st}
		}
	}
	for i := range cand.Angles {
		a := cand.Angles[i]
		if anyWithin(p, a.Points[:], tol.Point) {
			return &Hit{Ref: annotation.Ref{Kind: annotation.KindAngle, ID: a.ID, CreatedAt: a.CreatedAt}, Angle: &a}
		}
	}
	return nil
}

func anyWithin(p geometry.Point, pts []geometry.Point, tol float64) bool {
	for _, q := range pts {
		if geometry.Distance(p, q) < tol {
			return true
		}
	}
	return false
}

// EraserTool removes the drawing under a click and highlights the one under
// the hovering pointer.
type EraserTool struct {
	env   Env
	hover *Hit
}

// NewEraserTool returns an eraser.
func NewEraserTool(env Env) *EraserTool { return &EraserTool{env: env} }

func (t *EraserTool) PointerDown(p geometry.Point) {
	hit := HitTest(t.env.Store, p, t.env.now(), t.env.Channel, ClickTolerance)
	t.hover = nil
	if hit == nil {
		return
	}
	t.env.Store.Remove(hit.Ref)
}

func (t *EraserTool) PointerMove(p geometry.Point) {
	t.hover = HitTest(t.env.Store, p, t.env.now(), t.env.Channel, HoverTolerance)
}

func (t *EraserTool) PointerUp(geometry.Point) {}

func (t *EraserTool) Preview() Preview {
	return Preview{Tool: ToolEraser, Highlight: t.hover}
}

func (t *EraserTool) Reset() { t.hover = nil }
