// Package viewer is the interactive SwimLens window: one or two video
// canvases with the drawing tools, transport keys and export controls.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/mouse"

	"github.com/example/swimlens/internal/annotation"
	"github.com/example/swimlens/internal/clipboard"
	"github.com/example/swimlens/internal/export"
	"github.com/example/swimlens/internal/geometry"
	"github.com/example/swimlens/internal/notify"
	"github.com/example/swimlens/internal/playback"
	"github.com/example/swimlens/internal/render"
	"github.com/example/swimlens/internal/theme"
	"github.com/example/swimlens/internal/tools"
)

const (
	actionToolArrow     = "tool-arrow"
	actionToolPen       = "tool-pen"
	actionToolAngle     = "tool-angle"
	actionToolEraser    = "tool-eraser"
	actionToolWaterline = "tool-waterline"
	actionPlay          = "play"
	actionPlayBoth      = "play-both"
	actionToggleBefore  = "toggle-before"
	actionToggleAfter   = "toggle-after"
	actionSlower        = "slower"
	actionFaster        = "faster"
	actionClear         = "clear"
	actionExport        = "export"
	actionCancelExport  = "cancel-export"
	actionCopy          = "copy"
	actionUndo          = "undo"
	actionStepBack      = "step-back"
	actionStepForward   = "step-forward"
	actionQuit          = "quit"
)

// messageDuration is how long a status message stays up.
const messageDuration = 2 * time.Second

// playbackRates are the speeds the rate keys step through.
var playbackRates = []float64{0.25, 0.5, 1, 2}

// copyFunc is replaced in tests.
var copyFunc = clipboard.WriteImage

// Session is the window-independent state of the viewer. Event handlers run
// on the window goroutine; Compose may run concurrently on the paint
// goroutine.
type Session struct {
	sync     *playback.Synchronizer
	store    *annotation.Store
	engine   *render.Engine
	settings *tools.SharedSettings
	ctrls    [2]*tools.Controller
	keymap   tools.Keymap
	log      zerolog.Logger
	now      func() time.Time

	export     *export.Pipeline
	exportOpts export.Options
	notifier   *notify.Notifier

	mu           sync.Mutex
	theme        *theme.Theme
	layout       Layout
	tool         tools.Tool
	capture      int
	scrub        int
	hover        int
	message      string
	messageUntil time.Time
	last         *image.RGBA
	quit         bool
	repaint      func()
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l zerolog.Logger) Option { return func(s *Session) { s.log = l } }

// WithSettings sets the tool settings the session starts with.
func WithSettings(st tools.Settings) Option {
	return func(s *Session) { s.settings = tools.NewSharedSettings(st) }
}

// WithExport enables the export keys.
func WithExport(p *export.Pipeline, opts export.Options) Option {
	return func(s *Session) {
		s.export = p
		s.exportOpts = opts
	}
}

// WithNotifier announces clipboard copies.
func WithNotifier(n *notify.Notifier) Option { return func(s *Session) { s.notifier = n } }

// WithTheme sets the chrome colours.
func WithTheme(t *theme.Theme) Option { return func(s *Session) { s.theme = t } }

// WithClock replaces the wall clock used for status messages.
func WithClock(now func() time.Time) Option { return func(s *Session) { s.now = now } }

// NewSession builds a session around loaded videos. The reference guides are
// laid out from the settings.
func NewSession(sy *playback.Synchronizer, store *annotation.Store, engine *render.Engine, opts ...Option) *Session {
	s := &Session{
		sync:    sy,
		store:   store,
		engine:  engine,
		log:     zerolog.Nop(),
		now:     time.Now,
		capture: -1,
		scrub:   -1,
		hover:   -1,
		tool:    tools.ToolArrow,
	}
	for _, o := range opts {
		o(s)
	}
	if s.theme == nil {
		s.theme = theme.Default()
	}
	if s.settings == nil {
		s.settings = tools.NewSharedSettings(tools.DefaultSettings())
	}
	for i := range s.ctrls {
		ch := annotation.Channel(i)
		s.ctrls[i] = tools.NewController(tools.Env{
			Store:    store,
			Channel:  ch,
			Clock:    sy.Clock(ch),
			Settings: s.settings,
			OnWaterline: func(pct float64) {
				s.log.Debug().Float64("waterline", pct).Msg("waterline moved")
			},
		})
		s.ctrls[i].SetTool(s.tool)
	}
	store.SetReferenceLines(annotation.ReferenceLayout(s.settings.Get().Reference))
	if s.export != nil {
		s.export.OnProgress(s.onExportProgress)
	}
	return s
}

// Settings returns a copy of the current tool settings.
func (s *Session) Settings() tools.Settings { return s.settings.Get() }

// Controller returns the tool controller for ch.
func (s *Session) Controller(ch annotation.Channel) *tools.Controller { return s.ctrls[int(ch)&1] }

// OnRepaint registers the function that asks the window for a new frame.
func (s *Session) OnRepaint(fn func()) {
	s.mu.Lock()
	s.repaint = fn
	s.mu.Unlock()
}

func (s *Session) requestRepaint() {
	s.mu.Lock()
	fn := s.repaint
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *Session) videoSizes() []geometry.Size {
	var out []geometry.Size
	for i := range 2 {
		v := s.sync.Video(annotation.Channel(i))
		if v == nil {
			break
		}
		out = append(out, v.Size())
	}
	return out
}

// Resize recomputes the layout for a new window size.
func (s *Session) Resize(width, height int) Layout {
	l := ComputeLayout(width, height, s.videoSizes())
	s.mu.Lock()
	s.layout = l
	s.mu.Unlock()
	for i, m := range l.Mappers {
		s.ctrls[i].SetPercentMapper(m.PercentY)
	}
	return l
}

// Layout returns the current layout.
func (s *Session) Layout() Layout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layout
}

// Tool returns the tool selected for both channels.
func (s *Session) Tool() tools.Tool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tool
}

// SetTool selects t on both channels, dropping any half-drawn shape.
func (s *Session) SetTool(t tools.Tool) {
	s.mu.Lock()
	s.tool = t
	s.capture = -1
	s.mu.Unlock()
	for _, c := range s.ctrls {
		c.SetTool(t)
	}
}

// Quit reports whether the user asked to close the window.
func (s *Session) Quit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quit
}

func (s *Session) setMessage(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.mu.Lock()
	s.message = msg
	s.messageUntil = s.now().Add(messageDuration)
	s.mu.Unlock()
	s.log.Info().Msg(msg)
}

// Message returns the status message if it has not expired.
func (s *Session) Message() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.message == "" || !s.now().Before(s.messageUntil) {
		return ""
	}
	return s.message
}

// HandleMouse routes a pointer event to the toolbar or to the channel under
// the pointer. A press captures the pointer for that channel until release.
// It returns true when the window should repaint.
func (s *Session) HandleMouse(e mouse.Event) bool {
	s.mu.Lock()
	l := s.layout
	capture := s.capture
	s.mu.Unlock()

	x, y := float64(e.X), float64(e.Y)
	press := e.Direction == mouse.DirPress && e.Button == mouse.ButtonLeft
	release := e.Direction == mouse.DirRelease && e.Button == mouse.ButtonLeft

	if capture < 0 && image.Pt(int(e.X), int(e.Y)).In(l.Toolbar) {
		b, ok := l.buttonAt(image.Pt(int(e.X), int(e.Y)))
		s.mu.Lock()
		prev := s.hover
		s.hover = -1
		if ok {
			for i := range l.buttons {
				if l.buttons[i].action == b.action {
					s.hover = i
				}
			}
		}
		changed := prev != s.hover
		s.mu.Unlock()
		if ok && press {
			s.Trigger(b.action)
			return true
		}
		return changed
	}

	if s.handleScrub(e, l, capture, press, release) {
		return true
	}

	ch := capture
	if ch < 0 {
		ch = l.ChannelAt(x, y)
	}
	for i, c := range s.ctrls {
		if i != ch && c.Focused() {
			c.Blur()
		}
	}
	if ch < 0 || ch >= len(l.Mappers) {
		return true
	}
	p := l.Mappers[ch].ToCanvas(x, y)
	c := s.ctrls[ch]
	switch {
	case press:
		s.mu.Lock()
		s.capture = ch
		s.mu.Unlock()
		c.PointerDown(p)
	case release:
		s.mu.Lock()
		s.capture = -1
		s.mu.Unlock()
		c.PointerUp(p)
	case e.Direction == mouse.DirNone:
		c.PointerMove(p)
	}
	return true
}

// handleScrub drags a channel's scrubber. A press on a scrubber holds it
// until release, even when the pointer leaves the bar.
func (s *Session) handleScrub(e mouse.Event, l Layout, capture int, press, release bool) bool {
	s.mu.Lock()
	scrub := s.scrub
	if scrub < 0 && capture < 0 && press {
		scrub = l.SeekAt(image.Pt(int(e.X), int(e.Y)))
		s.scrub = scrub
	}
	if release {
		s.scrub = -1
	}
	s.mu.Unlock()
	if scrub < 0 {
		return false
	}
	if err := s.seekChannel(annotation.Channel(scrub), l.SeekFraction(scrub, float64(e.X))); err != nil {
		s.log.Warn().Err(err).Int("channel", scrub).Msg("seek")
		s.setMessage("seek: %v", err)
	}
	return true
}

// seekChannel moves ch to frac of its duration, snapped to a whole frame.
func (s *Session) seekChannel(ch annotation.Channel, frac float64) error {
	d := s.sync.State(ch).Duration
	if frac >= 1 {
		return s.sync.SeekChannel(ch, d)
	}
	n := math.Round(frac * float64(d) / float64(playback.FrameInterval))
	t := min(time.Duration(n)*playback.FrameInterval, d)
	return s.sync.SeekChannel(ch, t)
}

// stepRate moves the shared playback rate one step along playbackRates.
func (s *Session) stepRate(dir int) {
	cur := s.sync.PlaybackRate()
	next := cur
	if dir > 0 {
		next = playbackRates[len(playbackRates)-1]
		for _, r := range playbackRates {
			if r > cur+1e-9 {
				next = r
				break
			}
		}
	} else {
		next = playbackRates[0]
		for i := len(playbackRates) - 1; i >= 0; i-- {
			if playbackRates[i] < cur-1e-9 {
				next = playbackRates[i]
				break
			}
		}
	}
	s.sync.SetPlaybackRate(next)
	s.setMessage("playback rate x%g", next)
}

// HandleKey applies a key event. It returns true when the window should
// repaint.
func (s *Session) HandleKey(e key.Event) bool {
	if e.Direction == key.DirRelease {
		return false
	}
	if e.Modifiers&key.ModControl != 0 && (e.Code == key.CodeC || e.Rune == 'c' || e.Rune == 'C') {
		s.Trigger(actionCopy)
		return true
	}
	switch s.keymap.Action(e) {
	case tools.ActionUndo:
		s.Trigger(actionUndo)
		return true
	case tools.ActionTogglePlay:
		s.Trigger(actionPlay)
		return true
	case tools.ActionSeekBack:
		s.Trigger(actionStepBack)
		return true
	case tools.ActionSeekForward:
		s.Trigger(actionStepForward)
		return true
	case tools.ActionToggleBefore:
		s.Trigger(actionToggleBefore)
		return true
	case tools.ActionToggleAfter:
		s.Trigger(actionToggleAfter)
		return true
	case tools.ActionSlower:
		s.Trigger(actionSlower)
		return true
	case tools.ActionFaster:
		s.Trigger(actionFaster)
		return true
	}
	if e.Direction != key.DirPress || e.Modifiers&(key.ModControl|key.ModAlt|key.ModMeta) != 0 {
		return false
	}
	action, ok := runeActions[e.Rune]
	if !ok {
		return false
	}
	s.Trigger(action)
	return true
}

var runeActions = map[rune]string{
	'1': actionToolArrow, '2': actionToolPen, '3': actionToolAngle,
	'4': actionToolEraser, '5': actionToolWaterline,
	'!': actionToggleBefore, '@': actionToggleAfter,
	'-': actionSlower, '+': actionFaster,
	'b': actionPlayBoth, 'B': actionPlayBoth,
	'c': actionClear, 'C': actionClear,
	'e': actionExport, 'E': actionExport,
	'x': actionCancelExport, 'X': actionCancelExport,
	'q': actionQuit, 'Q': actionQuit,
}

var actionTools = map[string]tools.Tool{
	actionToolArrow:     tools.ToolArrow,
	actionToolPen:       tools.ToolPen,
	actionToolAngle:     tools.ToolAngle,
	actionToolEraser:    tools.ToolEraser,
	actionToolWaterline: tools.ToolWaterline,
}

// Trigger runs a named action.
func (s *Session) Trigger(action string) {
	if t, ok := actionTools[action]; ok {
		s.SetTool(t)
		return
	}
	var err error
	switch action {
	case actionPlay:
		err = s.sync.TogglePlay()
	case actionPlayBoth:
		err = s.sync.PlayBoth()
	case actionToggleBefore:
		err = s.sync.ToggleChannel(annotation.ChannelBefore)
	case actionToggleAfter:
		err = s.sync.ToggleChannel(annotation.ChannelAfter)
	case actionSlower:
		s.stepRate(-1)
	case actionFaster:
		s.stepRate(1)
	case actionStepBack:
		err = s.sync.StepFrame(-1)
	case actionStepForward:
		err = s.sync.StepFrame(1)
	case actionUndo:
		if r := s.store.RemoveMostRecent(); r.Valid() {
			s.setMessage("removed %s", r.Kind)
		}
	case actionClear:
		s.store.ClearDrawings()
		s.setMessage("cleared drawings")
	case actionExport:
		s.startExport()
	case actionCancelExport:
		if s.export != nil {
			s.export.Cancel()
		}
	case actionCopy:
		err = s.Copy()
	case actionQuit:
		s.mu.Lock()
		s.quit = true
		s.mu.Unlock()
	}
	if err != nil {
		s.log.Warn().Err(err).Str("action", action).Msg("action failed")
		s.setMessage("%s: %v", action, err)
	}
}

func (s *Session) startExport() {
	if s.export == nil {
		s.setMessage("export is not available")
		return
	}
	if s.export.Progress().Status.Active() {
		s.setMessage("export already running")
		return
	}
	if err := s.export.Start(context.Background(), s.exportOpts); err != nil {
		var f *export.Failure
		if errors.As(err, &f) {
			s.setMessage("export failed: %s", f.Summary)
			return
		}
		s.setMessage("export failed: %v", err)
	}
}

func (s *Session) onExportProgress(p export.Progress) {
	switch p.Status {
	case export.StatusComplete:
		s.setMessage("exported %s", p.Path)
	case export.StatusError:
		if p.Err != nil {
			s.setMessage("export failed: %s", p.Err.Summary)
		}
	case export.StatusIdle:
		if p.Message != "" {
			s.setMessage("%s", p.Message)
		}
	}
	s.requestRepaint()
}

// Exporting reports whether an export owns the playback clock.
func (s *Session) Exporting() bool {
	return s.export != nil && s.export.Progress().Status.Active()
}

// Tick advances playback by one display interval. It is a no-op while an
// export drives the videos. It returns true when the window should repaint.
func (s *Session) Tick(wall time.Duration) bool {
	if s.Exporting() {
		return true
	}
	playing := false
	for i := range 2 {
		if s.sync.State(annotation.Channel(i)).Playing {
			playing = true
		}
	}
	if !playing {
		return s.Message() != ""
	}
	if err := s.sync.Tick(wall); err != nil {
		s.log.Warn().Err(err).Msg("playback")
		s.sync.Pause()
		s.setMessage("playback stopped: %v", err)
	}
	return true
}

// Copy puts the last painted video area on the clipboard.
func (s *Session) Copy() error {
	s.mu.Lock()
	last, content := s.last, s.layout.Content
	s.mu.Unlock()
	if last == nil {
		return fmt.Errorf("nothing painted yet")
	}
	r := content.Intersect(last.Bounds())
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), last, r.Min, draw.Src)
	if err := copyFunc(out); err != nil {
		return fmt.Errorf("copy frame: %w", err)
	}
	s.setMessage("frame copied to clipboard")
	if s.notifier != nil {
		s.notifier.Copy("frame")
	}
	return nil
}
