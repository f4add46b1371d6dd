package tools

import (
	"image/color"
	"testing"
	"time"

	"golang.org/x/mobile/event/key"

	"github.com/example/swimlens/internal/annotation"
	"github.com/example/swimlens/internal/geometry"
)

func newEnv(ch annotation.Channel, now time.Duration) (Env, *annotation.Store) {
	store := annotation.NewStore()
	return Env{
		Store:    store,
		Channel:  ch,
		Clock:    func() time.Duration { return now },
		Settings: NewSharedSettings(DefaultSettings()),
	}, store
}

func TestArrowRequiresMinimumDrag(t *testing.T) {
	env, store := newEnv(annotation.ChannelBefore, 0)
	tool := NewArrowTool(env)

	tool.PointerDown(geometry.Pt(100, 100))
	tool.PointerMove(geometry.Pt(105, 100))
	tool.PointerUp(geometry.Pt(109, 100))
	if n := len(store.Snapshot().Arrows); n != 0 {
		t.Fatalf("9px drag created %d arrows", n)
	}

	tool.PointerDown(geometry.Pt(100, 100))
	tool.PointerUp(geometry.Pt(111, 100))
	if n := len(store.Snapshot().Arrows); n != 1 {
		t.Fatalf("11px drag created %d arrows, want 1", n)
	}
}

func TestArrowCommitUsesChannelTimeAndSettings(t *testing.T) {
	env, store := newEnv(annotation.ChannelAfter, 1234567*time.Microsecond)
	env.Settings.Update(func(s *Settings) { s.ArrowStyle = annotation.StyleDot })
	tool := NewArrowTool(env)

	tool.PointerDown(geometry.Pt(0, 0))
	tool.PointerMove(geometry.Pt(30, 40))
	pv := tool.Preview()
	if pv.Arrow == nil || pv.Arrow[1] != geometry.Pt(30, 40) {
		t.Fatalf("unexpected preview %+v", pv)
	}
	tool.PointerUp(geometry.Pt(30, 40))

	arrows := store.Snapshot().Arrows
	if len(arrows) != 1 {
		t.Fatalf("expected one arrow, got %d", len(arrows))
	}
	a := arrows[0]
	if a.Timestamp != 1234*time.Millisecond {
		t.Errorf("timestamp = %v, want 1.234s", a.Timestamp)
	}
	if a.Channel != annotation.ChannelAfter || a.Style != annotation.StyleDot || a.Thickness != 4 {
		t.Errorf("unexpected arrow %+v", a)
	}
	if tool.Preview().Arrow != nil {
		t.Error("preview should clear after commit")
	}
}

func TestPenNeedsTwoPoints(t *testing.T) {
	env, store := newEnv(annotation.ChannelBefore, 0)
	pen := NewPenTool(env)

	pen.PointerDown(geometry.Pt(1, 1))
	pen.PointerUp(geometry.Pt(1, 1))
	if len(store.Snapshot().Strokes) != 0 {
		t.Fatal("single point should not commit")
	}

	pen.PointerDown(geometry.Pt(1, 1))
	pen.PointerMove(geometry.Pt(2, 2))
	pen.PointerMove(geometry.Pt(3, 3))
	pen.PointerUp(geometry.Pt(3, 3))
	strokes := store.Snapshot().Strokes
	if len(strokes) != 1 || len(strokes[0].Points) != 3 {
		t.Fatalf("unexpected strokes %+v", strokes)
	}
	if strokes[0].Thickness != env.Settings.Get().PenThickness {
		t.Errorf("pen thickness = %v", strokes[0].Thickness)
	}
}

func TestAngleCommitsOnThirdClick(t *testing.T) {
	env, store := newEnv(annotation.ChannelBefore, time.Second)
	tool := NewAngleTool(env)

	tool.PointerDown(geometry.Pt(10, 0))
	tool.PointerDown(geometry.Pt(0, 0))
	if tool.Pending() != 2 || len(store.Snapshot().Angles) != 0 {
		t.Fatal("angle committed too early")
	}
	tool.PointerDown(geometry.Pt(0, 10))
	if tool.Pending() != 0 {
		t.Fatal("buffer should reset after commit")
	}
	angles := store.Snapshot().Angles
	if len(angles) != 1 {
		t.Fatalf("expected one angle, got %d", len(angles))
	}
	if angles[0].Degrees != 90 || angles[0].Vertex() != geometry.Pt(0, 0) {
		t.Fatalf("unexpected angle %+v", angles[0])
	}
}

func TestEraserHitsArrowMidpointOnly(t *testing.T) {
	env, store := newEnv(annotation.ChannelBefore, time.Second)
	store.AddArrow(annotation.Arrow{Start: geometry.Pt(0, 100), End: geometry.Pt(200, 100), Timestamp: time.Second})
	eraser := NewEraserTool(env)

	eraser.PointerDown(geometry.Pt(100, 120))
	if len(store.Snapshot().Arrows) != 1 {
		t.Fatal("click 20px away must not erase")
	}
	eraser.PointerDown(geometry.Pt(100, 100))
	if len(store.Snapshot().Arrows) != 0 {
		t.Fatal("click on midpoint should erase")
	}
}

func TestEraserIgnoresSegmentExtension(t *testing.T) {
	env, store := newEnv(annotation.ChannelBefore, 0)
	store.AddArrow(annotation.Arrow{Start: geometry.Pt(0, 0), End: geometry.Pt(50, 0)})
	NewEraserTool(env).PointerDown(geometry.Pt(80, 0))
	if len(store.Snapshot().Arrows) != 1 {
		t.Fatal("click beyond the arrow end should miss")
	}
}

func TestEraserRespectsTimeWindowAndChannel(t *testing.T) {
	env, store := newEnv(annotation.ChannelBefore, 2*time.Second)
	store.AddStroke(annotation.Stroke{Points: []geometry.Point{{X: 10, Y: 10}, {X: 20, Y: 20}}, Timestamp: time.Second})
	store.AddStroke(annotation.Stroke{Points: []geometry.Point{{X: 10, Y: 10}, {X: 20, Y: 20}}, Timestamp: 2 * time.Second, Channel: annotation.ChannelAfter})
	NewEraserTool(env).PointerDown(geometry.Pt(10, 10))
	if len(store.Snapshot().Strokes) != 2 {
		t.Fatal("eraser removed a stroke outside its window or channel")
	}
}

func TestEraserPriorityAndHover(t *testing.T) {
	env, store := newEnv(annotation.ChannelBefore, 0)
	store.AddAngle(annotation.NewAngle(geometry.Pt(50, 50), geometry.Pt(0, 0), geometry.Pt(50, -50)))
	store.AddStroke(annotation.Stroke{Points: []geometry.Point{{X: 0, Y: 0}, {X: 5, Y: 5}}})
	arrow := store.AddArrow(annotation.Arrow{Start: geometry.Pt(-20, 0), End: geometry.Pt(20, 0)})

	eraser := NewEraserTool(env)
	eraser.PointerMove(geometry.Pt(0, 17))
	pv := eraser.Preview()
	if pv.Highlight == nil || pv.Highlight.Ref.ID != arrow.ID {
		t.Fatalf("hover should highlight the arrow, got %+v", pv.Highlight)
	}
	if len(store.Snapshot().Arrows) != 1 {
		t.Fatal("hover must not erase")
	}

	eraser.PointerDown(geometry.Pt(0, 1))
	snap := store.Snapshot()
	if len(snap.Arrows) != 0 || len(snap.Strokes) != 1 || len(snap.Angles) != 1 {
		t.Fatalf("expected only the arrow erased, got %+v", snap)
	}
	eraser.PointerDown(geometry.Pt(0, 1))
	snap = store.Snapshot()
	if len(snap.Strokes) != 0 || len(snap.Angles) != 1 {
		t.Fatal("stroke should be erased before the angle")
	}
}

func TestControllerTagsChannelAndResetsOnToolChange(t *testing.T) {
	store := annotation.NewStore()
	settings := NewSharedSettings(DefaultSettings())
	left := NewController(Env{Store: store, Channel: annotation.ChannelBefore, Settings: settings})
	right := NewController(Env{Store: store, Channel: annotation.ChannelAfter, Settings: settings})
	left.SetTool(ToolArrow)
	right.SetTool(ToolArrow)

	right.PointerDown(geometry.Pt(0, 0))
	right.PointerUp(geometry.Pt(0, 50))
	if v := store.VisibleFor(0, annotation.ChannelAfter); len(v.Arrows) != 1 {
		t.Fatal("right channel arrow not tagged with its channel")
	}
	if left.Preview().Arrow != nil {
		t.Fatal("unfocused channel should not preview")
	}

	left.PointerDown(geometry.Pt(0, 0))
	left.PointerMove(geometry.Pt(40, 0))
	if left.Preview().Arrow == nil {
		t.Fatal("expected preview while dragging")
	}
	left.SetTool(ToolPen)
	left.SetTool(ToolArrow)
	if left.Preview().Arrow != nil {
		t.Fatal("tool switch should drop the drag")
	}
}

func TestWaterlineToolUpdatesReferenceLines(t *testing.T) {
	env, store := newEnv(annotation.ChannelBefore, 0)
	c := NewController(env)
	c.SetPercentMapper(func(p geometry.Point) float64 { return p.Y / 2 })
	c.SetTool(ToolWaterline)
	c.PointerDown(geometry.Pt(0, 80))

	if got := env.Settings.Get().Reference.Waterline; got != 40 {
		t.Fatalf("waterline = %v, want 40", got)
	}
	lines := store.ReferenceLines()
	if len(lines) == 0 || lines[0].ID != annotation.WaterlineID || lines[0].Position != 40 {
		t.Fatalf("unexpected lines %+v", lines)
	}
}

// Run with -race: pointer input on the window goroutine and previews on the
// paint goroutine touch the same tool state.
func TestControllerPreviewConcurrentWithInput(t *testing.T) {
	store := annotation.NewStore()
	settings := NewSharedSettings(DefaultSettings())
	pen := NewController(Env{Store: store, Channel: annotation.ChannelBefore, Settings: settings})
	water := NewController(Env{Store: store, Channel: annotation.ChannelAfter, Settings: settings})
	pen.SetTool(ToolPen)
	water.SetTool(ToolWaterline)
	water.SetPercentMapper(func(p geometry.Point) float64 { return p.Y })

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range 2000 {
			pen.Preview()
			water.Preview()
			if i%100 == 0 {
				_ = pen.Env()
			}
		}
	}()
	pen.PointerDown(geometry.Pt(0, 0))
	for i := range 2000 {
		pen.PointerMove(geometry.Pt(float64(i), 1))
		if i%50 == 0 {
			water.PointerDown(geometry.Pt(0, float64(i%100)))
		}
	}
	<-done
	pen.PointerUp(geometry.Pt(2000, 1))

	strokes := store.Snapshot().Strokes
	if len(strokes) != 1 || len(strokes[0].Points) != 2001 {
		t.Fatalf("unexpected strokes %d", len(strokes))
	}
	if !settings.Get().Reference.ShowWaterline {
		t.Fatal("waterline tool did not update shared settings")
	}
}

func TestKeymap(t *testing.T) {
	km := Keymap{}
	cases := map[key.Code]Action{
		key.CodeEscape:          ActionUndo,
		key.CodeDeleteBackspace: ActionUndo,
		key.CodeDeleteForward:   ActionUndo,
		key.CodeSpacebar:        ActionTogglePlay,
		key.CodeLeftArrow:       ActionSeekBack,
		key.CodeRightArrow:      ActionSeekForward,
		key.CodeHyphenMinus:     ActionSlower,
		key.CodeEqualSign:       ActionFaster,
		key.Code1:               ActionNone,
		key.CodeA:               ActionNone,
	}
	for code, want := range cases {
		if got := km.Action(key.Event{Code: code, Direction: key.DirPress}); got != want {
			t.Errorf("code %v: got %v want %v", code, got, want)
		}
	}
	shifted := map[key.Code]Action{key.Code1: ActionToggleBefore, key.Code2: ActionToggleAfter}
	for code, want := range shifted {
		if got := km.Action(key.Event{Code: code, Modifiers: key.ModShift, Direction: key.DirPress}); got != want {
			t.Errorf("shift+%v: got %v want %v", code, got, want)
		}
	}
	km.TextFocus = true
	if got := km.Action(key.Event{Code: key.CodeSpacebar, Direction: key.DirPress}); got != ActionNone {
		t.Errorf("text focus should suppress keys, got %v", got)
	}
}

func TestParseColor(t *testing.T) {
	cases := map[string]color.RGBA{
		"emerald":   DefaultColor,
		"Red":       {0xef, 0x44, 0x44, 0xff},
		"navy":      {0x00, 0x00, 0x80, 0xff},
		"#102030":   {0x10, 0x20, 0x30, 0xff},
		"#10203080": {0x10, 0x20, 0x30, 0x80},
	}
	for in, want := range cases {
		got, err := ParseColor(in)
		if err != nil {
			t.Fatalf("ParseColor(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseColor(%q) = %v, want %v", in, got, want)
		}
	}
	for _, bad := range []string{"", "#12", "#zzzzzz", "notacolor"} {
		if _, err := ParseColor(bad); err == nil {
			t.Errorf("ParseColor(%q) expected error", bad)
		}
	}
}

func TestAddPaletteColor(t *testing.T) {
	before := len(Palette())
	idx := AddPaletteColor("lane-rope", color.RGBA{1, 2, 3, 0xff})
	if idx != before {
		t.Fatalf("index = %d, want %d", idx, before)
	}
	if again := AddPaletteColor("Lane-Rope", color.RGBA{4, 5, 6, 0xff}); again != idx {
		t.Fatalf("re-adding by name gave %d", again)
	}
	got, err := ParseColor("lane-rope")
	if err != nil || got != (color.RGBA{4, 5, 6, 0xff}) {
		t.Fatalf("ParseColor(lane-rope) = %v, %v", got, err)
	}
	if HexColor(got) != "#040506" {
		t.Errorf("HexColor = %s", HexColor(got))
	}
}
