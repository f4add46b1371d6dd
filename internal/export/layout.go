package export

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/gogpu/gg"

	"github.com/example/swimlens/internal/annotation"
	"github.com/example/swimlens/internal/geometry"
	"github.com/example/swimlens/internal/render"
)

// Panel is one channel's placement on the output canvas.
type Panel struct {
	Channel annotation.Channel
	// Bounds is the panel area on the output canvas.
	Bounds geometry.Rect
	// Fit is where the video lands inside Bounds after contain-fit.
	Fit geometry.Rect
	// Video is the channel's native size, the space annotations live in.
	Video geometry.Size
	// Transform maps annotation coordinates onto the output canvas.
	Transform geometry.Transform
}

// Layout is the output canvas and its panels.
type Layout struct {
	Width, Height int
	Comparison    bool
	Panels        []Panel
}

// SingleLayout records the primary channel at its native size.
func SingleLayout(v0 geometry.Size) Layout {
	w, h := evenCeil(v0.W), evenCeil(v0.H)
	full := geometry.Rect{W: v0.W, H: v0.H}
	return Layout{
		Width:  w,
		Height: h,
		Panels: []Panel{{
			Channel:   annotation.ChannelBefore,
			Bounds:    full,
			Fit:       full,
			Video:     v0,
			Transform: geometry.Identity(),
		}},
	}
}

// ComparisonLayout places both channels side by side. Each half is as wide
// as the primary video and as tall as the taller video, and each video is
// contain-fit inside its half. The second channel's annotations are remapped
// by its fit offset and scale.
func ComparisonLayout(v0, v1 geometry.Size, gap float64) Layout {
	h := math.Max(v0.H, v1.H)
	l := Layout{
		Width:      evenCeil(2*v0.W + gap),
		Height:     evenCeil(h),
		Comparison: true,
	}
	for i, v := range []geometry.Size{v0, v1} {
		bounds := geometry.Rect{X: float64(i) * (v0.W + gap), W: v0.W, H: h}
		fit := geometry.VideoDisplayRect(v.W, v.H, bounds.W, bounds.H)
		fit.X += bounds.X
		fit.Y += bounds.Y
		l.Panels = append(l.Panels, Panel{
			Channel:   annotation.Channel(i),
			Bounds:    bounds,
			Fit:       fit,
			Video:     v,
			Transform: geometry.FitTransform(v, fit),
		})
	}
	return l
}

func evenCeil(v float64) int {
	n := int(math.Ceil(v))
	if n%2 == 1 {
		n++
	}
	return n
}

var (
	canvasBackground = color.RGBA{0x11, 0x18, 0x27, 0xff}
	panelBackground  = color.RGBA{0x1f, 0x29, 0x37, 0xff}
)

const panelCorner = 12

// composer paints output frames for a layout.
type composer struct {
	engine *render.Engine
	layout Layout
	dc     *gg.Context
	shadow *image.RGBA
	at     image.Point
}

func newComposer(e *render.Engine, l Layout) *composer {
	c := &composer{engine: e, layout: l, dc: gg.NewContext(l.Width, l.Height)}
	if l.Comparison {
		opts := render.DefaultShadowOptions()
		opts.Corner = panelCorner
		c.shadow, c.at = render.PanelShadow(geometry.Size{W: l.Panels[0].Bounds.W, H: l.Panels[0].Bounds.H}, opts)
	}
	return c
}

// channelFrame is what the composer needs from one channel.
type channelFrame struct {
	Image   image.Image
	Visible annotation.Visible
}

// compose paints one output frame and returns it.
func (c *composer) compose(ctx context.Context, frames []channelFrame, lines []annotation.ReferenceLine, annotate bool) (image.Image, error) {
	dc := c.dc
	if c.layout.Comparison {
		dc.ClearWithColor(gg.FromColor(canvasBackground))
	} else {
		dc.ClearWithColor(gg.Black)
	}
	for i, p := range c.layout.Panels {
		if i >= len(frames) {
			break
		}
		if c.layout.Comparison {
			if err := c.drawPanel(p); err != nil {
				return nil, err
			}
		}
		if img := frames[i].Image; img != nil {
			dc.DrawImageEx(gg.ImageBufFromImage(img), gg.DrawImageOptions{
				X:             p.Fit.X,
				Y:             p.Fit.Y,
				DstWidth:      p.Fit.W,
				DstHeight:     p.Fit.H,
				Interpolation: gg.InterpBilinear,
				Opacity:       1,
				BlendMode:     gg.BlendNormal,
			})
		}
		if c.layout.Comparison {
			if err := c.engine.DrawBadge(dc, p.Channel.String(), p.Bounds.X, p.Bounds.Y); err != nil {
				return nil, fmt.Errorf("badge: %w", err)
			}
		}
		f := render.Frame{
			Canvas:          p.Video,
			Video:           p.Video,
			Channel:         p.Channel,
			Visible:         frames[i].Visible,
			ReferenceLines:  lines,
			Transform:       p.Transform,
			SkipAnnotations: !annotate,
		}
		if err := c.engine.DrawFrame(ctx, dc, f); err != nil {
			return nil, err
		}
	}
	return dc.Image(), nil
}

func (c *composer) drawPanel(p Panel) error {
	dc := c.dc
	if c.shadow != nil {
		dc.DrawImage(gg.ImageBufFromImage(c.shadow), p.Bounds.X+float64(c.at.X), p.Bounds.Y+float64(c.at.Y))
	}
	dc.SetColor(panelBackground)
	dc.DrawRoundedRectangle(p.Bounds.X, p.Bounds.Y, p.Bounds.W, p.Bounds.H, panelCorner)
	return dc.Fill()
}

func (c *composer) close() {
	_ = c.dc.Close()
}
