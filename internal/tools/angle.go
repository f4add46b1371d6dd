package tools

import (
	"github.com/example/swimlens/internal/annotation"
	"github.com/example/swimlens/internal/geometry"
)

// AngleTool collects three clicks. The second click is the vertex.
type AngleTool struct {
	env    Env
	points []geometry.Point
	cursor *geometry.Point
}

// NewAngleTool returns an angle tool with an empty buffer.
func NewAngleTool(env Env) *AngleTool { return &AngleTool{env: env} }

func (t *AngleTool) PointerDown(p geometry.Point) {
	t.points = append(t.points, p)
	if len(t.points) < 3 {
		return
	}
	pts := t.points
	t.Reset()
	a := annotation.NewAngle(pts[0], pts[1], pts[2])
	a.Color = t.env.settings().Color
	a.Timestamp = t.env.now()
	a.Channel = t.env.Channel
	t.env.Store.AddAngle(a)
}

func (t *AngleTool) PointerMove(p geometry.Point) {
	if len(t.points) == 0 {
		return
	}
	t.cursor = &p
}

func (t *AngleTool) PointerUp(geometry.Point) {}

func (t *AngleTool) Preview() Preview {
	pv := Preview{Tool: ToolAngle, Color: t.env.settings().Color, Thickness: 2}
	pv.AnglePoints = append([]geometry.Point(nil), t.points...)
	if t.cursor != nil && len(t.points) > 0 {
		c := *t.cursor
		pv.Cursor = &c
	}
	return pv
}

func (t *AngleTool) Reset() {
	t.points = nil
	t.cursor = nil
}

// Pending returns the number of buffered clicks.
func (t *AngleTool) Pending() int { return len(t.points) }
