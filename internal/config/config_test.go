package config

import (
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/swimlens/internal/annotation"
	"github.com/example/swimlens/internal/tools"
)

func TestParse(t *testing.T) {
	input := `
save_dir = /tmp/exports
log_level = DEBUG

[tools]
color = red
thickness = 6
arrow_style: dash-dot

[reference]
line_count = 4
show_horizontal = true
waterline = 40

[export]
quality = high
playback_rate = 8
gap = 24
include_annotations = false

[notify]
export = true

[palette]
cap = #ffcc00
`
	cfg, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.SaveDir != "/tmp/exports" {
		t.Errorf("Expected save_dir '/tmp/exports', got '%s'", cfg.SaveDir)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log_level 'debug', got '%s'", cfg.LogLevel)
	}
	if cfg.Tools.Color != (color.RGBA{0xef, 0x44, 0x44, 0xff}) {
		t.Errorf("Unexpected tool color: %+v", cfg.Tools.Color)
	}
	if cfg.Tools.Thickness != 6 || cfg.Tools.ArrowStyle != annotation.StyleDashDot {
		t.Errorf("Unexpected tools: %+v", cfg.Tools)
	}
	if cfg.Tools.PenThickness != 3 {
		t.Errorf("Missing keys should keep defaults, pen_thickness = %v", cfg.Tools.PenThickness)
	}
	ref := cfg.Tools.Reference
	if ref.LineCount != 4 || !ref.ShowHorizontal || ref.Waterline != 40 || !ref.ShowWaterline {
		t.Errorf("Unexpected reference: %+v", ref)
	}
	if cfg.Export.Quality != "high" || cfg.Export.PlaybackRate != 8 || cfg.Export.Gap != 24 || cfg.Export.IncludeAnnotations {
		t.Errorf("Unexpected export: %+v", cfg.Export)
	}
	if cfg.Export.FPS != 30 || cfg.Export.Format != "auto" {
		t.Errorf("Export defaults lost: %+v", cfg.Export)
	}
	if !cfg.Notify.Export || cfg.Notify.Copy {
		t.Errorf("Unexpected notify: %+v", cfg.Notify)
	}
	if cfg.Palette["cap"] != (color.RGBA{0xff, 0xcc, 0x00, 0xff}) {
		t.Errorf("Unexpected palette: %+v", cfg.Palette)
	}
}

func TestDefaults(t *testing.T) {
	cfg := New()
	if cfg.Tools.Reference.Waterline != annotation.DefaultWaterline {
		t.Errorf("waterline default = %v", cfg.Tools.Reference.Waterline)
	}
	if cfg.Export.PlaybackRate != 16 || cfg.AppName != "swimlens" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestParseErrors(t *testing.T) {
	for _, input := range []string{
		"[export]\nquality = ultra\n",
		"[export]\nplayback_rate = 0\n",
		"[reference]\nwaterline = 140\n",
		"[notify]\nexport = maybe\n",
		"[tools]\narrow_style = zigzag\n",
		"[palette]\nfoo = nope\n",
	} {
		if _, err := Parse(strings.NewReader(input)); err == nil {
			t.Errorf("expected error for %q", input)
		}
	}
}

func TestCircular(t *testing.T) {
	input := `save_dir = /home/user/swims
app_name = club
theme = pool

[tools]
color = #3b82f6
pen_thickness = 5

[reference]
vertical_line_count = 3
show_vertical = true
waterline = 28.5

[export]
format = webm
transcode = false
ffmpeg = /opt/ffmpeg/bin/ffmpeg

[notify]
export = true
copy = true

[palette]
lane = #123456
`
	cfg, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Initial parse failed: %v", err)
	}

	generated := cfg.String()

	cfg2, err := Parse(strings.NewReader(generated))
	if err != nil {
		t.Fatalf("Circular parse failed: %v\n%s", err, generated)
	}

	if cfg.SaveDir != cfg2.SaveDir || cfg.AppName != cfg2.AppName || cfg2.Theme != "pool" {
		t.Errorf("Root mismatch: %q/%q/%q vs %q/%q/%q", cfg.SaveDir, cfg.AppName, cfg.Theme, cfg2.SaveDir, cfg2.AppName, cfg2.Theme)
	}
	if cfg.Tools != cfg2.Tools {
		t.Errorf("Tools mismatch: %+v vs %+v", cfg.Tools, cfg2.Tools)
	}
	if cfg.Export != cfg2.Export {
		t.Errorf("Export mismatch: %+v vs %+v", cfg.Export, cfg2.Export)
	}
	if cfg.Notify != cfg2.Notify {
		t.Errorf("Notify mismatch: %+v vs %+v", cfg.Notify, cfg2.Notify)
	}
	if cfg.Palette["lane"] != cfg2.Palette["lane"] {
		t.Errorf("Palette mismatch: %v vs %v", cfg.Palette, cfg2.Palette)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SWIMLENS_EXPORT_QUALITY", "high")
	t.Setenv("SWIMLENS_REFERENCE_WATERLINE", "50")
	t.Setenv("SWIMLENS_LOG_LEVEL", "warn")

	cfg := New()
	if err := ApplyEnv(cfg); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Export.Quality != "high" {
		t.Errorf("quality = %q", cfg.Export.Quality)
	}
	if cfg.Tools.Reference.Waterline != 50 {
		t.Errorf("waterline = %v", cfg.Tools.Reference.Waterline)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("log level = %q", cfg.LogLevel)
	}
}

func TestApplyEnvInvalid(t *testing.T) {
	t.Setenv("SWIMLENS_EXPORT_FPS", "fast")
	if err := ApplyEnv(New()); err == nil || !strings.Contains(err.Error(), "SWIMLENS_EXPORT_FPS") {
		t.Fatalf("expected error naming the variable, got %v", err)
	}
}

func TestLoaderPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.rc")
	if err := os.WriteFile(path, []byte("[export]\nquality = low\nfps = 25\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HOME", dir)
	t.Setenv("SWIMLENS_EXPORT_QUALITY", "medium")

	l := NewLoader("1.0.0", path)
	if got := l.GetConfigPath(); got != path {
		t.Fatalf("GetConfigPath = %q, want %q", got, path)
	}
	cfg, err := l.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Export.FPS != 25 {
		t.Errorf("file value lost: fps = %v", cfg.Export.FPS)
	}
	if cfg.Export.Quality != "medium" {
		t.Errorf("environment should win over the file, quality = %q", cfg.Export.Quality)
	}
}

func TestLoaderMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := NewLoader("1.0.0", filepath.Join(t.TempDir(), "absent.rc")).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Export.PlaybackRate != 16 {
		t.Errorf("expected defaults, got %+v", cfg.Export)
	}
}

func TestSaveAndRegisterPalette(t *testing.T) {
	cfg := New()
	cfg.Palette["kickboard"] = color.RGBA{0x01, 0x02, 0x03, 0xff}
	path := filepath.Join(t.TempDir(), "nested", "config.rc")
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	back, err := Parse(f)
	if err != nil {
		t.Fatalf("Parse saved: %v", err)
	}
	back.RegisterPalette()
	if c, err := tools.ParseColor("kickboard"); err != nil || c != (color.RGBA{0x01, 0x02, 0x03, 0xff}) {
		t.Errorf("registered palette colour = %v, %v", c, err)
	}
}
