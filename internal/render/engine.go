// Package render draws annotations, reference guides and tool previews onto a
// gg context. The same Engine serves the interactive viewer and the export
// pipeline.
package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"github.com/rs/zerolog"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/example/swimlens/internal/annotation"
	"github.com/example/swimlens/internal/geometry"
	"github.com/example/swimlens/internal/tools"
)

const (
	labelFontSize = 14
	badgeFontSize = 20
)

// HighlightColor marks the drawing under the eraser.
var HighlightColor = color.RGBA{0xef, 0x44, 0x44, 0xff}

// Engine renders frames. It is safe for sequential use by one goroutine per
// gg context; the font faces it holds are read only.
type Engine struct {
	log   zerolog.Logger
	label text.Face
	badge text.Face
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for draw failures.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine loads the embedded Go fonts and returns a ready engine.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{log: zerolog.Nop()}
	for _, o := range opts {
		o(e)
	}
	regular, err := text.NewFontSource(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("load regular font: %w", err)
	}
	bold, err := text.NewFontSource(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("load bold font: %w", err)
	}
	e.label = regular.Face(labelFontSize)
	e.badge = bold.Face(badgeFontSize)
	return e, nil
}

// Frame describes one channel's overlay for one instant.
type Frame struct {
	// Canvas is the channel's drawing space, normally the native video size.
	Canvas geometry.Size
	// Video is the intrinsic video size used for the reference guide area.
	Video   geometry.Size
	Time    time.Duration
	Channel annotation.Channel

	Visible        annotation.Visible
	ReferenceLines []annotation.ReferenceLine
	Preview        *tools.Preview
	Highlight      *tools.Hit

	// Transform maps canvas space onto the output context. The zero value
	// is treated as identity.
	Transform geometry.Transform
	// ReferenceArea overrides the area the guides span, in canvas space.
	ReferenceArea *geometry.Rect

	// Clear wipes the whole output before drawing.
	Clear bool
	// Background is drawn contain-fit into the display area after clearing.
	Background image.Image
	// SkipAnnotations leaves out the stored drawings and guides.
	SkipAnnotations bool
}

func (f Frame) transform() geometry.Transform {
	if f.Transform == (geometry.Transform{}) {
		return geometry.Identity()
	}
	return f.Transform
}

// DisplayRect returns the contain-fit area of the video inside the canvas,
// in canvas space.
func (f Frame) DisplayRect() geometry.Rect {
	if f.ReferenceArea != nil {
		return *f.ReferenceArea
	}
	return geometry.VideoDisplayRect(f.Video.W, f.Video.H, f.Canvas.W, f.Canvas.H)
}

type layer func(dc *gg.Context, f Frame, t geometry.Transform) error

// DrawFrame paints f onto dc. Layers go bottom up: background, guides,
// annotations, angle glyphs, tool preview and eraser highlight. ctx is
// checked between layers so a cancelled export stops promptly.
func (e *Engine) DrawFrame(ctx context.Context, dc *gg.Context, f Frame) error {
	t := f.transform()
	layers := []struct {
		name string
		fn   layer
	}{
		{"background", e.drawBackground},
		{"reference", e.drawReference},
		{"annotations", e.drawAnnotations},
		{"angles", e.drawAngles},
		{"preview", e.drawPreview},
		{"highlight", e.drawHighlight},
	}
	for _, l := range layers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.fn(dc, f, t); err != nil {
			e.log.Debug().Err(err).Str("layer", l.name).Msg("draw layer failed")
			return fmt.Errorf("draw %s: %w", l.name, err)
		}
	}
	return nil
}

func (e *Engine) drawBackground(dc *gg.Context, f Frame, t geometry.Transform) error {
	if f.Clear {
		dc.Clear()
	}
	if f.Background == nil {
		return nil
	}
	area := t.ApplyRect(f.DisplayRect())
	dc.DrawImageEx(gg.ImageBufFromImage(f.Background), gg.DrawImageOptions{
		X:             area.X,
		Y:             area.Y,
		DstWidth:      area.W,
		DstHeight:     area.H,
		Interpolation: gg.InterpBilinear,
		Opacity:       1,
		BlendMode:     gg.BlendNormal,
	})
	return nil
}

func (e *Engine) drawReference(dc *gg.Context, f Frame, t geometry.Transform) error {
	if f.SkipAnnotations || len(f.ReferenceLines) == 0 {
		return nil
	}
	area := t.ApplyRect(f.DisplayRect())
	dc.Push()
	defer dc.Pop()
	for _, l := range f.ReferenceLines {
		setColor(dc, l.Color, 1)
		w := t.Length(l.Thickness)
		dc.SetLineWidth(w)
		dc.SetLineCap(gg.LineCapButt)
		dc.SetDash(referenceDash(w)...)
		if l.Orientation == annotation.Vertical {
			x := area.X + area.W*l.Position/100
			dc.MoveTo(x, area.Y)
			dc.LineTo(x, area.Y+area.H)
		} else {
			y := area.Y + area.H*l.Position/100
			dc.MoveTo(area.X, y)
			dc.LineTo(area.X+area.W, y)
		}
		if err := dc.Stroke(); err != nil {
			return err
		}
	}
	dc.ClearDash()
	return nil
}

func referenceDash(w float64) []float64 {
	return []float64{max(12, 3*w), max(8, 2*w)}
}

func (e *Engine) drawAnnotations(dc *gg.Context, f Frame, t geometry.Transform) error {
	if f.SkipAnnotations {
		return nil
	}
	for _, a := range f.Visible.Arrows {
		if err := drawArrow(dc, t.Apply(a.Start), t.Apply(a.End), a.Color, t.Length(a.Thickness), a.Style); err != nil {
			return err
		}
	}
	for _, s := range f.Visible.Strokes {
		if err := drawStroke(dc, t.ApplyAll(s.Points), s.Color, t.Length(s.Thickness)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) drawAngles(dc *gg.Context, f Frame, t geometry.Transform) error {
	if f.SkipAnnotations {
		return nil
	}
	for _, a := range f.Visible.Angles {
		pts := t.ApplyAll(a.Points[:])
		if err := e.drawAngle(dc, [3]geometry.Point{pts[0], pts[1], pts[2]}, a.Degrees, a.Color); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) drawPreview(dc *gg.Context, f Frame, t geometry.Transform) error {
	p := f.Preview
	if p == nil || p.Empty() {
		return nil
	}
	if p.Arrow != nil {
		if err := drawArrow(dc, t.Apply(p.Arrow[0]), t.Apply(p.Arrow[1]), p.Color, t.Length(p.Thickness), p.Style); err != nil {
			return err
		}
	}
	if len(p.Stroke) > 1 {
		if err := drawStroke(dc, t.ApplyAll(p.Stroke), p.Color, t.Length(p.Thickness)); err != nil {
			return err
		}
	}
	if len(p.AnglePoints) > 0 {
		pts := t.ApplyAll(p.AnglePoints)
		var cursor *geometry.Point
		if p.Cursor != nil {
			c := t.Apply(*p.Cursor)
			cursor = &c
		}
		if err := drawAnglePending(dc, pts, cursor, p.Color); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) drawHighlight(dc *gg.Context, f Frame, t geometry.Transform) error {
	h := f.Highlight
	if h == nil && f.Preview != nil {
		h = f.Preview.Highlight
	}
	if h == nil {
		return nil
	}
	switch {
	case h.Arrow != nil:
		a := h.Arrow
		return drawArrow(dc, t.Apply(a.Start), t.Apply(a.End), HighlightColor, t.Length(a.Thickness+4), a.Style)
	case h.Stroke != nil:
		s := h.Stroke
		return drawStroke(dc, t.ApplyAll(s.Points), HighlightColor, t.Length(s.Thickness+4))
	case h.Angle != nil:
		pts := t.ApplyAll(h.Angle.Points[:])
		return e.drawAngle(dc, [3]geometry.Point{pts[0], pts[1], pts[2]}, h.Angle.Degrees, HighlightColor)
	}
	return nil
}

// setColor applies c with its alpha replaced by a. gg expects straight
// alpha, so the channels are passed through unscaled.
func setColor(dc *gg.Context, c color.RGBA, a float64) {
	dc.SetRGBA(float64(c.R)/255, float64(c.G)/255, float64(c.B)/255, a)
}
