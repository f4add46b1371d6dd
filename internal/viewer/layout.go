package viewer

import (
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/example/swimlens/internal/coords"
	"github.com/example/swimlens/internal/geometry"
)

const (
	toolbarHeight = 28
	statusHeight  = 24
	panelGap      = 8
	panelPadding  = 8
)

// button is a toolbar entry bound to a named action.
type button struct {
	label  string
	action string
	rect   image.Rectangle
}

var toolbarEntries = []struct{ label, action string }{
	{"1:Arrow", actionToolArrow},
	{"2:Pen", actionToolPen},
	{"3:Angle", actionToolAngle},
	{"4:Erase", actionToolEraser},
	{"5:Water", actionToolWaterline},
	{"Space:Play", actionPlay},
	{"!:Play1", actionToggleBefore},
	{"@:Play2", actionToggleAfter},
	{"B:Both", actionPlayBoth},
	{"-:Slower", actionSlower},
	{"+:Faster", actionFaster},
	{"C:Clear", actionClear},
	{"E:Export", actionExport},
	{"X:Cancel", actionCancelExport},
	{"^C:Copy", actionCopy},
}

// Layout is the window arrangement for one size.
type Layout struct {
	Width, Height int
	Toolbar       image.Rectangle
	Status        image.Rectangle
	Content       image.Rectangle
	// Mappers holds one entry per loaded channel, in channel order.
	Mappers []coords.Mapper
	// Seek holds each channel's scrubber, in the padding under its canvas.
	Seek    []image.Rectangle
	buttons []button
}

// ComputeLayout arranges the toolbar, status bar and one contain-fit canvas
// per video. Two videos sit side by side in equal halves.
func ComputeLayout(width, height int, videos []geometry.Size) Layout {
	l := Layout{
		Width:   width,
		Height:  height,
		Toolbar: image.Rect(0, 0, width, toolbarHeight),
		Status:  image.Rect(0, max(toolbarHeight, height-statusHeight), width, height),
	}
	l.Content = image.Rect(0, toolbarHeight, width, l.Status.Min.Y)

	area := geometry.Rect{
		X: float64(l.Content.Min.X + panelPadding),
		Y: float64(l.Content.Min.Y + panelPadding),
		W: float64(max(0, l.Content.Dx()-2*panelPadding)),
		H: float64(max(0, l.Content.Dy()-2*panelPadding)),
	}
	n := len(videos)
	if n > 0 {
		slot := (area.W - float64(panelGap*(n-1))) / float64(n)
		for i, v := range videos {
			half := geometry.Rect{X: area.X + float64(i)*(slot+panelGap), Y: area.Y, W: max(0, slot), H: area.H}
			fit := geometry.VideoDisplayRect(v.W, v.H, half.W, half.H)
			bounds := geometry.Rect{X: half.X + fit.X, Y: half.Y + fit.Y, W: fit.W, H: fit.H}
			l.Mappers = append(l.Mappers, coords.New(v, bounds))
			l.Seek = append(l.Seek, image.Rect(int(half.X), int(area.Y+area.H), int(half.X+half.W), l.Content.Max.Y))
		}
	}

	meas := &font.Drawer{Face: basicfont.Face7x13}
	x := 4
	for _, e := range toolbarEntries {
		w := meas.MeasureString(e.label).Ceil() + 8
		l.buttons = append(l.buttons, button{label: e.label, action: e.action, rect: image.Rect(x, 4, x+w, toolbarHeight-4)})
		x += w + 4
	}
	return l
}

// ChannelAt returns the channel whose canvas contains the client point, or -1.
func (l Layout) ChannelAt(x, y float64) int {
	for i, m := range l.Mappers {
		if m.Contains(x, y) {
			return i
		}
	}
	return -1
}

// SeekAt returns the channel whose scrubber contains p, or -1.
func (l Layout) SeekAt(p image.Point) int {
	for i, r := range l.Seek {
		if p.In(r) {
			return i
		}
	}
	return -1
}

// SeekFraction maps a client x onto channel i's scrubber as 0..1.
func (l Layout) SeekFraction(i int, x float64) float64 {
	if i < 0 || i >= len(l.Seek) || l.Seek[i].Dx() <= 1 {
		return 0
	}
	r := l.Seek[i]
	return geometry.Clamp((x-float64(r.Min.X))/float64(r.Dx()-1), 0, 1)
}

func (l Layout) buttonAt(p image.Point) (button, bool) {
	for _, b := range l.buttons {
		if p.In(b.rect) {
			return b, true
		}
	}
	return button{}, false
}

func rectOf(r geometry.Rect) image.Rectangle {
	return image.Rect(int(r.X+0.5), int(r.Y+0.5), int(r.X+r.W+0.5), int(r.Y+r.H+0.5))
}
