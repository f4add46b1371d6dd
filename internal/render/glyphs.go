package render

import (
	"fmt"
	"image/color"
	"math"

	"github.com/gogpu/gg"

	"github.com/example/swimlens/internal/annotation"
	"github.com/example/swimlens/internal/geometry"
)

// Angle glyph dimensions.
const (
	angleRayWidth     = 2
	angleVertexRadius = 6
	anglePointRadius  = 4
	angleArcRadius    = 40
	angleArcWidth     = 3
	angleArcAlpha     = 0x33
	angleLabelOffset  = 25
	angleLabelPadding = 6
	angleLabelAlpha   = 0xee
)

// ArrowHeadLength returns the arrowhead size for a shaft thickness.
func ArrowHeadLength(thickness float64) float64 {
	return (10 + thickness*1.2) * 1.5
}

// DashPattern returns the on/off lengths for an arrow style scaled by the
// line thickness. Solid arrows return nil.
func DashPattern(style annotation.ArrowStyle, thickness float64) []float64 {
	dash := math.Max(15, thickness*4)
	gap := math.Max(10, thickness*2.5)
	dot := math.Max(1, thickness)
	switch style {
	case annotation.StyleDashShort:
		return []float64{dash, gap}
	case annotation.StyleDashLong:
		return []float64{dash * 2, gap}
	case annotation.StyleDot:
		return []float64{dot, gap}
	case annotation.StyleDashDot:
		return []float64{dash, gap, dot, gap}
	case annotation.StyleDashDotDot:
		return []float64{dash, gap, dot, gap, dot, gap}
	}
	return nil
}

func drawArrow(dc *gg.Context, start, end geometry.Point, c color.RGBA, thickness float64, style annotation.ArrowStyle) error {
	head := ArrowHeadLength(thickness)
	angle := math.Atan2(end.Y-start.Y, end.X-start.X)

	dc.Push()
	defer dc.Pop()
	setColor(dc, c, float64(c.A)/255)
	dc.SetLineWidth(thickness)
	dc.SetLineCap(gg.LineCapRound)
	if dash := DashPattern(style, thickness); dash != nil {
		dc.SetDash(dash...)
	}
	dc.MoveTo(start.X, start.Y)
	dc.LineTo(end.X, end.Y)
	if err := dc.Stroke(); err != nil {
		return err
	}
	dc.ClearDash()

	dc.DrawCircle(start.X, start.Y, thickness*0.8)
	if err := dc.Fill(); err != nil {
		return err
	}

	dc.MoveTo(end.X, end.Y)
	dc.LineTo(end.X-head*math.Cos(angle-math.Pi/6), end.Y-head*math.Sin(angle-math.Pi/6))
	dc.LineTo(end.X-head*math.Cos(angle+math.Pi/6), end.Y-head*math.Sin(angle+math.Pi/6))
	dc.ClosePath()
	return dc.Fill()
}

func drawStroke(dc *gg.Context, pts []geometry.Point, c color.RGBA, thickness float64) error {
	if len(pts) < 2 {
		return nil
	}
	dc.Push()
	defer dc.Pop()
	setColor(dc, c, float64(c.A)/255)
	dc.SetLineWidth(thickness)
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)
	dc.MoveTo(pts[0].X, pts[0].Y)
	for _, p := range pts[1:] {
		dc.LineTo(p.X, p.Y)
	}
	return dc.Stroke()
}

// interiorSweep returns the start angle and positive sweep of the arc
// spanning the interior angle at v.
func interiorSweep(p1, v, p2 geometry.Point) (start, sweep float64) {
	a1 := math.Atan2(p1.Y-v.Y, p1.X-v.X)
	a2 := math.Atan2(p2.Y-v.Y, p2.X-v.X)
	diff := a2 - a1
	if diff > math.Pi {
		diff -= 2 * math.Pi
	}
	if diff < -math.Pi {
		diff += 2 * math.Pi
	}
	if diff < 0 {
		return a2, -diff
	}
	return a1, diff
}

func (e *Engine) drawAngle(dc *gg.Context, pts [3]geometry.Point, degrees float64, c color.RGBA) error {
	p1, v, p2 := pts[0], pts[1], pts[2]
	dc.Push()
	defer dc.Pop()

	setColor(dc, c, 1)
	dc.SetLineWidth(angleRayWidth)
	dc.SetLineCap(gg.LineCapRound)
	for _, end := range []geometry.Point{p1, p2} {
		dc.MoveTo(v.X, v.Y)
		dc.LineTo(end.X, end.Y)
		if err := dc.Stroke(); err != nil {
			return err
		}
	}
	for i, p := range pts {
		r := float64(anglePointRadius)
		if i == 1 {
			r = angleVertexRadius
		}
		dc.DrawCircle(p.X, p.Y, r)
		if err := dc.Fill(); err != nil {
			return err
		}
	}

	start, sweep := interiorSweep(p1, v, p2)
	if sweep > 0 {
		dc.MoveTo(v.X, v.Y)
		dc.LineTo(v.X+angleArcRadius*math.Cos(start), v.Y+angleArcRadius*math.Sin(start))
		dc.DrawArc(v.X, v.Y, angleArcRadius, start, start+sweep)
		dc.ClosePath()
		setColor(dc, c, angleArcAlpha/255.0)
		if err := dc.FillPreserve(); err != nil {
			return err
		}
		setColor(dc, c, 1)
		dc.SetLineWidth(angleArcWidth)
		if err := dc.Stroke(); err != nil {
			return err
		}
	}

	mid := start + sweep/2
	lx := v.X + math.Cos(mid)*(angleArcRadius+angleLabelOffset)
	ly := v.Y + math.Sin(mid)*(angleArcRadius+angleLabelOffset)
	return e.drawLabel(dc, fmt.Sprintf("%.1f°", degrees), lx, ly, c)
}

// drawLabel draws text left aligned at x and vertically centred on y over a
// rounded box tinted with bg.
func (e *Engine) drawLabel(dc *gg.Context, s string, x, y float64, bg color.RGBA) error {
	dc.SetFont(e.label)
	w, _ := dc.MeasureString(s)
	boxW := w + angleLabelPadding*2
	boxH := 20.0 + angleLabelPadding*2
	setColor(dc, bg, angleLabelAlpha/255.0)
	dc.DrawRoundedRectangle(x, y-boxH/2, boxW, boxH, 4)
	if err := dc.Fill(); err != nil {
		return err
	}
	dc.SetRGBA(1, 1, 1, 1)
	dc.DrawStringAnchored(s, x+angleLabelPadding, y, 0, 0.5)
	return nil
}

// drawAnglePending shows the buffered angle clicks and a rubber band ray to
// the pointer.
func drawAnglePending(dc *gg.Context, pts []geometry.Point, cursor *geometry.Point, c color.RGBA) error {
	dc.Push()
	defer dc.Pop()
	setColor(dc, c, 1)
	dc.SetLineWidth(angleRayWidth)
	dc.SetLineCap(gg.LineCapRound)
	if len(pts) >= 2 {
		dc.MoveTo(pts[1].X, pts[1].Y)
		dc.LineTo(pts[0].X, pts[0].Y)
		if err := dc.Stroke(); err != nil {
			return err
		}
	}
	if cursor != nil {
		from := pts[len(pts)-1]
		dc.SetDash(6, 4)
		dc.MoveTo(from.X, from.Y)
		dc.LineTo(cursor.X, cursor.Y)
		if err := dc.Stroke(); err != nil {
			return err
		}
		dc.ClearDash()
	}
	for i, p := range pts {
		r := float64(anglePointRadius)
		if i == 1 {
			r = angleVertexRadius
		}
		dc.DrawCircle(p.X, p.Y, r)
		if err := dc.Fill(); err != nil {
			return err
		}
	}
	return nil
}

// DrawBadge draws a channel label box in the top left corner of a panel whose
// origin is at (x, y).
func (e *Engine) DrawBadge(dc *gg.Context, label string, x, y float64) error {
	dc.Push()
	defer dc.Pop()
	dc.SetRGBA(0, 0, 0, 0.7)
	dc.DrawRectangle(x+10, y+10, 100, 40)
	if err := dc.Fill(); err != nil {
		return err
	}
	dc.SetFont(e.badge)
	dc.SetRGBA(1, 1, 1, 1)
	dc.DrawStringAnchored(label, x+60, y+30, 0.5, 0.5)
	return nil
}
