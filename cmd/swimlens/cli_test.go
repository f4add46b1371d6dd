package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"flag"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/swimlens/internal/annotation"
	"github.com/example/swimlens/internal/config"
	"github.com/example/swimlens/internal/export"
	"github.com/example/swimlens/internal/geometry"
	"github.com/example/swimlens/internal/media"
	"github.com/example/swimlens/internal/playback/playbacktest"
	"github.com/example/swimlens/internal/theme"
	"github.com/example/swimlens/internal/tools"
	"github.com/example/swimlens/internal/viewer"
)

func newTestRoot(t *testing.T) (*root, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	return &root{
		fs:      flag.NewFlagSet("swimlens", flag.ContinueOnError),
		program: "swimlens",
		config:  config.New(),
		log:     zerolog.Nop(),
		stdout:  out,
		stderr:  &bytes.Buffer{},
	}, out
}

type testClip struct{ *playbacktest.Video }

func (testClip) Close() error { return nil }

func fakeSources(t *testing.T) {
	t.Helper()
	orig := openClip
	openClip = func(src media.Source, _ zerolog.Logger) (clip, error) {
		if strings.Contains(src.URL, "missing") {
			return nil, media.ErrNotOpened
		}
		return testClip{playbacktest.New(64, 48, time.Second)}, nil
	}
	t.Cleanup(func() { openClip = orig })
}

func box(typ string, payload []byte) []byte {
	b := make([]byte, 8, 8+len(payload))
	binary.BigEndian.PutUint32(b, uint32(8+len(payload)))
	copy(b[4:], typ)
	return append(b, payload...)
}

func minimalMP4() []byte {
	return append(box("ftyp", []byte("isom\x00\x00\x02\x00")), box("moov", box("mvhd", make([]byte, 100)))...)
}

type fakeRecorder struct {
	path   string
	frames int
}

func (r *fakeRecorder) Supported(c media.Codec) bool { return c.Container == "mp4" }

func (r *fakeRecorder) Start(path string, _ media.Codec, _ float64, _, _ int) error {
	r.path = path
	return os.WriteFile(path, nil, 0o644)
}

func (r *fakeRecorder) WriteFrame(image.Image) error {
	r.frames++
	return nil
}

func (r *fakeRecorder) Stop() error { return os.WriteFile(r.path, minimalMP4(), 0o644) }

func TestParseShape(t *testing.T) {
	s, err := parseShape("arrow 10 20 80 20 at=500ms ch=1 color=red width=6 style=dashed")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.kind != "arrow" || len(s.points) != 2 || s.points[1] != geometry.Pt(80, 20) {
		t.Fatalf("unexpected arrow %+v", s)
	}
	if s.at != 500*time.Millisecond || s.ch == nil || *s.ch != 1 || s.width != 6 {
		t.Fatalf("options not applied: %+v", s)
	}

	s, err = parseShape("pen 0,0 5,5 10,0 at=1200")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.points) != 3 || s.at != 1200*time.Millisecond {
		t.Fatalf("unexpected pen %+v", s)
	}

	if s, err = parseShape("angle 0,0 10,10 20,0"); err != nil || len(s.points) != 3 {
		t.Fatalf("angle pairs: %+v %v", s, err)
	}

	for _, bad := range []string{
		"",
		"circle 1 2 3",
		"arrow 1 2 3",
		"pen 1,1",
		"arrow 1 2 3 4 ch=2",
		"arrow 1 2 3 4 colour=nope",
		"arrow 1 2 3 4 style=wavy",
		"arrow 1 2 3 4 at=-1s",
		"arrow 1 2 3 4 size=3",
		"pen 1;1 2,2",
	} {
		if _, err := parseShape(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestShapeAddUsesSettingsAndChannel(t *testing.T) {
	store := annotation.NewStore()
	settings := tools.DefaultSettings()
	for _, spec := range []string{
		"arrow 0 0 50 0 at=500ms ch=1",
		"pen 0,0 5,5",
		"angle 10 0 0 0 0 10 color=#ff0000",
	} {
		s, err := parseShape(spec)
		if err != nil {
			t.Fatalf("%q: %v", spec, err)
		}
		s.add(store, settings)
	}
	snap := store.Snapshot()
	if len(snap.Arrows) != 1 || len(snap.Strokes) != 1 || len(snap.Angles) != 1 {
		t.Fatalf("unexpected collection %+v", snap)
	}
	a := snap.Arrows[0]
	if a.Channel != annotation.ChannelAfter || a.Timestamp != 500*time.Millisecond || a.Thickness != settings.Thickness {
		t.Errorf("arrow not filled from settings: %+v", a)
	}
	if snap.Strokes[0].Thickness != settings.PenThickness || snap.Strokes[0].Channel != annotation.ChannelBefore {
		t.Errorf("stroke not filled from settings: %+v", snap.Strokes[0])
	}
	if got := snap.Angles[0].Degrees; got < 89.9 || got > 90.1 {
		t.Errorf("angle degrees = %v", got)
	}
	if snap.Angles[0].Color.R != 0xff {
		t.Errorf("angle colour = %v", snap.Angles[0].Color)
	}
}

func TestParseExportCmd(t *testing.T) {
	r, _ := newTestRoot(t)
	c, err := parseExportCmd([]string{"-quality", "high", "-format", "webm", "a.mp4", "b.mp4"}, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.opts.Quality.Bitrate() != 10_000_000 || c.opts.Format != "webm" {
		t.Fatalf("options not parsed: %+v", c.opts)
	}
	if c.opts.PlaybackRate != 16 || c.opts.AppName != "swimlens" || !c.opts.IncludeAnnotations {
		t.Fatalf("defaults not taken from config: %+v", c.opts)
	}

	var uerr *UsageError
	if _, err := parseExportCmd(nil, r); !errors.As(err, &uerr) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if _, err := parseExportCmd([]string{"camera:0"}, r); err == nil || !strings.Contains(err.Error(), "-max-duration") {
		t.Fatalf("expected max-duration error, got %v", err)
	}
	if _, err := parseExportCmd([]string{"-max-duration", "5s", "camera:0"}, r); err != nil {
		t.Fatalf("camera with max duration: %v", err)
	}
	if _, err := parseExportCmd([]string{"-quality", "ultra", "a.mp4"}, r); err == nil {
		t.Fatalf("expected quality error")
	}
}

func TestExportRunWritesFile(t *testing.T) {
	fakeSources(t)
	rec := &fakeRecorder{}
	orig := newRecorder
	newRecorder = func(zerolog.Logger) export.Recorder { return rec }
	t.Cleanup(func() { newRecorder = orig })

	r, out := newTestRoot(t)
	dir := t.TempDir()
	c, err := parseExportCmd([]string{"-dir", dir, "-no-progress", "-draw", "arrow 5 5 40 5", "a.mp4"}, r)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := c.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	path := strings.TrimSpace(out.String())
	if filepath.Dir(path) != dir || !strings.HasPrefix(filepath.Base(path), "swimlens-video-") || filepath.Ext(path) != ".mp4" {
		t.Fatalf("unexpected output path %q", path)
	}
	if err := media.VerifyMP4(path); err != nil {
		t.Fatalf("output not an mp4: %v", err)
	}
	if rec.frames == 0 {
		t.Fatalf("no frames written")
	}
}

func TestExportRunOpenFailure(t *testing.T) {
	fakeSources(t)
	r, _ := newTestRoot(t)
	c, err := parseExportCmd([]string{"-no-progress", "missing.mp4"}, r)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	err = c.Run()
	if !errors.Is(err, media.ErrNotOpened) {
		t.Fatalf("expected wrapped open error, got %v", err)
	}
}

func TestViewRunOpensWindow(t *testing.T) {
	fakeSources(t)
	var (
		title string
		got   *viewer.Session
	)
	orig := runWindow
	runWindow = func(s *viewer.Session, tt string) error {
		got, title = s, tt
		return nil
	}
	t.Cleanup(func() { runWindow = orig })

	r, _ := newTestRoot(t)
	c, err := parseViewCmd([]string{"-tool", "pen", "-draw", "arrow 1 1 30 1", "before.mp4", "after.mp4"}, r)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := c.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got == nil {
		t.Fatalf("window not opened")
	}
	if got.Tool() != tools.ToolPen {
		t.Errorf("tool = %v", got.Tool())
	}
	if title != "SwimLens - before.mp4 vs after.mp4" {
		t.Errorf("title = %q", title)
	}
}

func TestViewThemeFallsBackToDefault(t *testing.T) {
	orig := themeLoader
	themeLoader = func() *theme.Loader { return &theme.Loader{ConfigDir: t.TempDir()} }
	t.Cleanup(func() { themeLoader = orig })

	r, _ := newTestRoot(t)
	c, err := parseViewCmd([]string{"-theme", "pool", "a.mp4"}, r)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := c.loadTheme().Name; got != "pool" {
		t.Errorf("theme = %q", got)
	}
	c.themeName = "no-such-theme"
	if got := c.loadTheme().Name; got != "default" {
		t.Errorf("fallback theme = %q", got)
	}
}

func TestParseViewCmdRejectsBadFlags(t *testing.T) {
	r, _ := newTestRoot(t)
	for _, args := range [][]string{
		{"-tool", "lasso", "a.mp4"},
		{"-color", "nope", "a.mp4"},
		{"-waterline", "101", "a.mp4"},
	} {
		if _, err := parseViewCmd(args, r); err == nil {
			t.Errorf("expected error for %v", args)
		}
	}
}

func TestProbeAtomsOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, minimalMP4(), 0o644); err != nil {
		t.Fatal(err)
	}
	r, out := newTestRoot(t)
	c, err := parseProbeCmd([]string{"-atoms-only", path}, r)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := c.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{"[ftyp] @ 0", "[moov]", "    [mvhd]"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestProbeDecodesSource(t *testing.T) {
	fakeSources(t)
	r, out := newTestRoot(t)
	c, err := parseProbeCmd([]string{"camera:1"}, r)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := c.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "size:     64x48") || !strings.Contains(out.String(), "duration: live") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

func TestConfigPrintAndSave(t *testing.T) {
	r, out := newTestRoot(t)
	r.config.Export.Quality = "high"
	c, err := parseConfigCmd([]string{"print"}, r)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := c.Run(); err != nil {
		t.Fatalf("print: %v", err)
	}
	if !strings.Contains(out.String(), "quality = high") {
		t.Errorf("print output missing quality:\n%s", out.String())
	}

	path := filepath.Join(t.TempDir(), "nested", "swimlens.rc")
	c, err = parseConfigCmd([]string{"save", "-output", path}, r)
	if err != nil {
		t.Fatalf("parse save: %v", err)
	}
	if err := c.Run(); err != nil {
		t.Fatalf("save: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("saved file: %v", err)
	}
	defer f.Close()
	cfg, err := config.Parse(f)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if cfg.Export.Quality != "high" {
		t.Errorf("quality did not round trip: %q", cfg.Export.Quality)
	}

	if c, err = parseConfigCmd([]string{"erase"}, r); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := c.Run(); err == nil {
		t.Errorf("expected unknown config command error")
	}
}

func TestColorsMarksDrawingColor(t *testing.T) {
	r, out := newTestRoot(t)
	c, err := parseColorsCmd(nil, r)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := c.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "*  0: Emerald") {
		t.Errorf("default colour not marked:\n%s", out.String())
	}
}

func TestVersion(t *testing.T) {
	r, out := newTestRoot(t)
	if err := (&versionCmd{root: r}).Run(); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); got != "swimlens version dev\n" {
		t.Errorf("version output = %q", got)
	}
}

func TestUsageErrorRendersHelp(t *testing.T) {
	r := newRoot()
	r.stderr = &bytes.Buffer{}
	err := r.Run(nil)
	var uerr *UsageError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected usage error, got %v", err)
	}
	msg := uerr.Error()
	for _, want := range []string{"Usage: swimlens", "export", "-log-level"} {
		if !strings.Contains(msg, want) {
			t.Errorf("help missing %q:\n%s", want, msg)
		}
	}

	rr, _ := newTestRoot(t)
	_, err = parseExportCmd(nil, rr)
	if !errors.As(err, &uerr) || !strings.Contains(uerr.Error(), "Usage: swimlens export") {
		t.Errorf("export help not rendered: %v", err)
	}
}
