package tools

import (
	"github.com/example/swimlens/internal/annotation"
	"github.com/example/swimlens/internal/geometry"
)

// PenTool records a freehand path while the pointer is held.
type PenTool struct {
	env     Env
	drawing bool
	points  []geometry.Point
}

// NewPenTool returns an idle pen.
func NewPenTool(env Env) *PenTool { return &PenTool{env: env} }

func (t *PenTool) PointerDown(p geometry.Point) {
	t.drawing = true
	t.points = []geometry.Point{p}
}

func (t *PenTool) PointerMove(p geometry.Point) {
	if !t.drawing {
		return
	}
	t.points = append(t.points, p)
}

func (t *PenTool) PointerUp(geometry.Point) {
	if !t.drawing {
		return
	}
	pts := t.points
	t.Reset()
	if len(pts) < MinStrokePoints {
		return
	}
	s := t.env.settings()
	t.env.Store.AddStroke(annotation.Stroke{
		Points:    pts,
		Color:     s.Color,
		Thickness: s.PenThickness,
		Timestamp: t.env.now(),
		Channel:   t.env.Channel,
	})
}

func (t *PenTool) Preview() Preview {
	s := t.env.settings()
	return Preview{Tool: ToolPen, Color: s.Color, Thickness: s.PenThickness, Stroke: append([]geometry.Point(nil), t.points...)}
}

func (t *PenTool) Reset() {
	t.drawing = false
	t.points = nil
}

// Drawing reports whether a stroke is in progress.
func (t *PenTool) Drawing() bool { return t.drawing }
