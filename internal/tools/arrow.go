package tools

import (
	"github.com/example/swimlens/internal/annotation"
	"github.com/example/swimlens/internal/geometry"
)

type arrowState int

const (
	arrowIdle arrowState = iota
	arrowDragging
)

// ArrowTool drags out an arrow: down fixes the start, move updates the
// preview end, up commits when the drag was long enough.
type ArrowTool struct {
	env   Env
	state arrowState
	start geometry.Point
	end   geometry.Point
}

// NewArrowTool returns an idle arrow tool.
func NewArrowTool(env Env) *ArrowTool { return &ArrowTool{env: env} }

func (t *ArrowTool) PointerDown(p geometry.Point) {
	t.state = arrowDragging
	t.start = p
	t.end = p
}

func (t *ArrowTool) PointerMove(p geometry.Point) {
	if t.state != arrowDragging {
		return
	}
	t.end = p
}

func (t *ArrowTool) PointerUp(p geometry.Point) {
	if t.state != arrowDragging {
		return
	}
	start := t.start
	t.Reset()
	if geometry.Distance(start, p) <= MinArrowLength {
		return
	}
	s := t.env.settings()
	t.env.Store.AddArrow(annotation.Arrow{
		Start:     start,
		End:       p,
		Color:     s.Color,
		Thickness: s.Thickness,
		Style:     s.ArrowStyle,
		Timestamp: t.env.now(),
		Channel:   t.env.Channel,
	})
}

func (t *ArrowTool) Preview() Preview {
	if t.state != arrowDragging {
		return Preview{Tool: ToolArrow}
	}
	s := t.env.settings()
	seg := [2]geometry.Point{t.start, t.end}
	return Preview{Tool: ToolArrow, Color: s.Color, Thickness: s.Thickness, Style: s.ArrowStyle, Arrow: &seg}
}

func (t *ArrowTool) Reset() {
	t.state = arrowIdle
	t.start = geometry.Point{}
	t.end = geometry.Point{}
}

// Dragging reports whether a drag is in progress.
func (t *ArrowTool) Dragging() bool { return t.state == arrowDragging }
