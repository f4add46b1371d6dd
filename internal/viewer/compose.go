package viewer

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"time"

	"github.com/gogpu/gg"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/example/swimlens/internal/annotation"
	"github.com/example/swimlens/internal/geometry"
	"github.com/example/swimlens/internal/playback"
	"github.com/example/swimlens/internal/render"
	"github.com/example/swimlens/internal/theme"
)

// Overlay caches the gg context the annotations are drawn on. It belongs to
// the paint goroutine.
type Overlay struct {
	dc   *gg.Context
	w, h int
}

func (o *Overlay) context(w, h int) *gg.Context {
	if o.dc == nil || o.w != w || o.h != h {
		if o.dc != nil {
			_ = o.dc.Close()
		}
		o.dc = gg.NewContext(w, h)
		o.w, o.h = w, h
	}
	o.dc.Clear()
	return o.dc
}

func (o *Overlay) Close() {
	if o.dc != nil {
		_ = o.dc.Close()
		o.dc = nil
	}
}

// Compose paints the whole window for layout l into dst, which must match
// the layout size. ctx is checked between stages so a newer paint can
// supersede it.
func (s *Session) Compose(ctx context.Context, l Layout, dst *image.RGBA, ov *Overlay) error {
	s.mu.Lock()
	tool := s.tool
	hover := s.hover
	th := s.theme
	s.mu.Unlock()

	draw.Draw(dst, dst.Bounds(), &image.Uniform{th.Background}, image.Point{}, draw.Src)
	for i, m := range l.Mappers {
		v := s.sync.Video(annotation.Channel(i))
		if v == nil {
			continue
		}
		if frame := v.Frame(); frame != nil {
			xdraw.ApproxBiLinear.Scale(dst, rectOf(m.Bounds), frame, frame.Bounds(), draw.Src, nil)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dc := ov.context(l.Width, l.Height)
	comparison := len(l.Mappers) > 1
	for i, m := range l.Mappers {
		ch := annotation.Channel(i)
		now := s.sync.CurrentTime(ch)
		pv := s.ctrls[i].Preview()
		f := render.Frame{
			Canvas:         m.Canvas,
			Video:          m.Video,
			Time:           now,
			Channel:        ch,
			Visible:        s.store.VisibleFor(annotation.Timestamp(now), ch),
			ReferenceLines: s.store.ReferenceLines(),
			Transform:      geometry.FitTransform(m.Canvas, m.Bounds),
		}
		if !pv.Empty() {
			f.Preview = &pv
			f.Highlight = pv.Highlight
		}
		if err := s.engine.DrawFrame(ctx, dc, f); err != nil {
			return err
		}
		if comparison {
			if err := s.engine.DrawBadge(dc, ch.String(), m.Bounds.X, m.Bounds.Y); err != nil {
				return fmt.Errorf("badge: %w", err)
			}
		}
	}
	draw.Draw(dst, dst.Bounds(), dc.Image(), image.Point{}, draw.Over)
	if err := ctx.Err(); err != nil {
		return err
	}

	drawToolbar(dst, l, th, tool.String(), hover)
	for i, r := range l.Seek {
		drawSeek(dst, r, th, s.sync.State(annotation.Channel(i)))
	}
	drawStatus(dst, l, th, s.statusLine())

	snap := image.NewRGBA(dst.Bounds())
	copy(snap.Pix, dst.Pix)
	s.mu.Lock()
	s.last = snap
	s.mu.Unlock()
	return nil
}

func (s *Session) statusLine() string {
	t := s.sync.CurrentTime(annotation.ChannelBefore)
	st := s.sync.State(annotation.ChannelBefore)
	line := fmt.Sprintf("%s / %s  x%g  tool:%s", formatTime(t), formatTime(st.Duration), st.PlaybackRate, s.Tool())
	if s.sync.Comparison() {
		line += "  2:" + formatTime(s.sync.CurrentTime(annotation.ChannelAfter))
	}
	if s.export != nil {
		if p := s.export.Progress(); p.Status.Active() {
			line += fmt.Sprintf("  export %s %.0f%%", p.Status, p.Percent)
		}
	}
	if msg := s.Message(); msg != "" {
		line += "  " + msg
	}
	return line
}

// formatTime renders d as m:ss.mmm.
func formatTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	m := d / time.Minute
	sec := (d % time.Minute) / time.Second
	ms := (d % time.Second) / time.Millisecond
	return fmt.Sprintf("%d:%02d.%03d", m, sec, ms)
}

func drawToolbar(dst *image.RGBA, l Layout, th *theme.Theme, tool string, hover int) {
	draw.Draw(dst, l.Toolbar, &image.Uniform{th.Bar}, image.Point{}, draw.Src)
	text := image.NewUniform(th.ButtonText)
	for i, b := range l.buttons {
		c := th.Button
		if t, ok := actionTools[b.action]; ok && t.String() == tool {
			c = th.ButtonActive
		} else if i == hover {
			c = th.ButtonHover
		}
		draw.Draw(dst, b.rect, &image.Uniform{c}, image.Point{}, draw.Src)
		d := &font.Drawer{Dst: dst, Src: text, Face: basicfont.Face7x13,
			Dot: fixed.P(b.rect.Min.X+4, b.rect.Min.Y+14)}
		d.DrawString(b.label)
	}
}

// drawSeek paints a scrubber track filled up to the channel's position.
func drawSeek(dst *image.RGBA, r image.Rectangle, th *theme.Theme, st playback.ChannelState) {
	track := image.Rect(r.Min.X, r.Min.Y+2, r.Max.X, r.Max.Y-2)
	if track.Empty() {
		return
	}
	draw.Draw(dst, track, &image.Uniform{th.Button}, image.Point{}, draw.Src)
	if st.Duration <= 0 {
		return
	}
	frac := min(float64(st.CurrentTime)/float64(st.Duration), 1)
	fill := track
	fill.Max.X = track.Min.X + int(frac*float64(track.Dx()-1)+0.5) + 1
	c := th.ButtonActive
	if st.Playing {
		c = th.ButtonHover
	}
	draw.Draw(dst, fill, &image.Uniform{c}, image.Point{}, draw.Src)
}

func drawStatus(dst *image.RGBA, l Layout, th *theme.Theme, text string) {
	draw.Draw(dst, l.Status, &image.Uniform{th.Bar}, image.Point{}, draw.Src)
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(th.BarText), Face: basicfont.Face7x13,
		Dot: fixed.P(l.Status.Min.X+6, l.Status.Min.Y+16)}
	d.DrawString(text)
}
