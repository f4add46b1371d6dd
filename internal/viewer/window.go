package viewer

import (
	"context"
	"fmt"
	"image"
	"sync"

	"golang.org/x/exp/shiny/driver"
	"golang.org/x/exp/shiny/screen"
	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/lifecycle"
	"golang.org/x/mobile/event/mouse"
	"golang.org/x/mobile/event/paint"
	"golang.org/x/mobile/event/size"

	"github.com/example/swimlens/internal/playback"
)

// frameDropThreshold specifies how many consecutive frames can be canceled
// before a draw is allowed to complete to keep the UI responsive.
const frameDropThreshold = 10

// Run opens the window and blocks until it is closed.
func (s *Session) Run(title string) error {
	var runErr error
	driver.Main(func(scr screen.Screen) { runErr = s.Main(scr, title) })
	return runErr
}

// Main runs the event loop on an existing screen.
func (s *Session) Main(scr screen.Screen, title string) error {
	width, height := s.initialSize()
	w, err := scr.NewWindow(&screen.NewWindowOptions{Width: width, Height: height, Title: title})
	if err != nil {
		return fmt.Errorf("new window: %w", err)
	}
	defer w.Release()
	s.Resize(width, height)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.OnRepaint(func() { w.Send(paint.Event{}) })
	defer s.OnRepaint(nil)
	unsubscribe := s.store.Subscribe(func() { w.Send(paint.Event{}) })
	defer unsubscribe()

	ticker := playback.NewTickerScheduler(ctx, playback.DisplayInterval)
	defer ticker.Stop()
	var tick func()
	tick = func() {
		if s.Tick(playback.DisplayInterval) {
			w.Send(paint.Event{})
		}
		ticker.Schedule(tick)
	}
	ticker.Schedule(tick)

	var (
		paintMu     sync.Mutex
		paintCancel context.CancelFunc
		dropCount   int
	)
	paintCh := make(chan Layout, 1)
	paintDone := make(chan struct{})
	go func() {
		defer close(paintDone)
		ov := &Overlay{}
		defer ov.Close()
		for l := range paintCh {
			pctx, pcancel := context.WithCancel(ctx)
			paintMu.Lock()
			paintCancel = pcancel
			paintMu.Unlock()
			s.paint(pctx, scr, w, l, ov)
			paintMu.Lock()
			paintCancel = nil
			if pctx.Err() == nil {
				dropCount = 0
			}
			paintMu.Unlock()
			pcancel()
		}
	}()
	defer func() {
		close(paintCh)
		paintMu.Lock()
		if paintCancel != nil {
			paintCancel()
		}
		paintMu.Unlock()
		<-paintDone
	}()

	for {
		switch e := w.NextEvent().(type) {
		case lifecycle.Event:
			if e.To == lifecycle.StageDead {
				return nil
			}
		case size.Event:
			s.Resize(e.WidthPx, e.HeightPx)
			w.Send(paint.Event{})
		case paint.Event:
			paintMu.Lock()
			if paintCancel != nil && dropCount < frameDropThreshold {
				paintCancel()
				dropCount++
			}
			paintMu.Unlock()
			l := s.Layout()
			select {
			case paintCh <- l:
			default:
				select {
				case <-paintCh:
				default:
				}
				paintCh <- l
			}
		case mouse.Event:
			if s.HandleMouse(e) {
				w.Send(paint.Event{})
			}
		case key.Event:
			if s.HandleKey(e) {
				w.Send(paint.Event{})
			}
			if s.Quit() {
				if s.export != nil {
					s.export.Cancel()
				}
				return nil
			}
		case error:
			s.log.Error().Err(e).Msg("window")
		}
	}
}

func (s *Session) paint(ctx context.Context, scr screen.Screen, w screen.Window, l Layout, ov *Overlay) {
	if l.Width <= 0 || l.Height <= 0 {
		return
	}
	b, err := scr.NewBuffer(image.Point{l.Width, l.Height})
	if err != nil {
		s.log.Error().Err(err).Msg("new buffer")
		return
	}
	defer b.Release()
	if err := s.Compose(ctx, l, b.RGBA(), ov); err != nil {
		if ctx.Err() == nil {
			s.log.Warn().Err(err).Msg("paint")
		}
		return
	}
	w.Upload(image.Point{}, b, b.Bounds())
	w.Publish()
}

func (s *Session) initialSize() (int, int) {
	sizes := s.videoSizes()
	width, height := 960, 600
	if len(sizes) == 0 {
		return width, height
	}
	vw := 0.0
	vh := 0.0
	for _, sz := range sizes {
		vw += sz.W
		vh = max(vh, sz.H)
	}
	scale := min(1, 1600/vw, 900/vh)
	width = int(vw*scale) + 2*panelPadding + panelGap*(len(sizes)-1)
	height = int(vh*scale) + 2*panelPadding + toolbarHeight + statusHeight
	return max(width, 640), max(height, 360)
}
