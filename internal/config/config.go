// Package config reads and writes the SwimLens RC file.
package config

import (
	"fmt"
	"image/color"
	"sort"
	"strings"

	"github.com/example/swimlens/internal/tools"
)

// Notify holds notification settings.
type Notify struct {
	Export       bool
	ExportFailed bool
	Copy         bool
}

// Export holds the defaults for recorded exports. Format and Quality are kept
// as text and validated where they are used.
type Export struct {
	Format             string
	Quality            string
	PlaybackRate       float64
	FPS                float64
	Gap                int
	Transcode          bool
	FFmpeg             string
	IncludeAnnotations bool
}

// Config holds the application configuration.
type Config struct {
	SaveDir  string
	LogLevel string
	AppName  string
	// Theme names a built in viewer theme or a .theme file.
	Theme  string
	Tools  tools.Settings
	Export Export
	Notify Notify
	// Palette adds named colours on top of the built in ones.
	Palette map[string]color.RGBA
}

// New creates a new Config with defaults.
func New() *Config {
	return &Config{
		LogLevel: "info",
		AppName:  "swimlens",
		Tools:    tools.DefaultSettings(),
		Export: Export{
			Format:             "auto",
			Quality:            "medium",
			PlaybackRate:       16,
			FPS:                30,
			Gap:                16,
			Transcode:          true,
			FFmpeg:             "ffmpeg",
			IncludeAnnotations: true,
		},
		Palette: make(map[string]color.RGBA),
	}
}

// RegisterPalette makes the configured colours available to the tools.
func (c *Config) RegisterPalette() {
	names := make([]string, 0, len(c.Palette))
	for name := range c.Palette {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		tools.AddPaletteColor(name, c.Palette[name])
	}
}

// String implements fmt.Stringer and returns the configuration in RC format.
func (c *Config) String() string {
	var sb strings.Builder

	if c.SaveDir != "" {
		fmt.Fprintf(&sb, "save_dir = %s\n", c.SaveDir)
	}
	if c.LogLevel != "" {
		fmt.Fprintf(&sb, "log_level = %s\n", c.LogLevel)
	}
	if c.AppName != "" {
		fmt.Fprintf(&sb, "app_name = %s\n", c.AppName)
	}
	if c.Theme != "" {
		fmt.Fprintf(&sb, "theme = %s\n", c.Theme)
	}
	sb.WriteString("\n")

	t := c.Tools
	sb.WriteString("[tools]\n")
	fmt.Fprintf(&sb, "color = %s\n", tools.HexColor(t.Color))
	fmt.Fprintf(&sb, "thickness = %g\n", t.Thickness)
	fmt.Fprintf(&sb, "pen_thickness = %g\n", t.PenThickness)
	fmt.Fprintf(&sb, "arrow_style = %s\n", t.ArrowStyle)
	sb.WriteString("\n")

	r := t.Reference
	sb.WriteString("[reference]\n")
	fmt.Fprintf(&sb, "line_count = %d\n", r.LineCount)
	fmt.Fprintf(&sb, "vertical_line_count = %d\n", r.VerticalLineCount)
	fmt.Fprintf(&sb, "line_thickness = %g\n", r.LineThickness)
	fmt.Fprintf(&sb, "show_horizontal = %v\n", r.ShowHorizontal)
	fmt.Fprintf(&sb, "show_vertical = %v\n", r.ShowVertical)
	fmt.Fprintf(&sb, "waterline = %g\n", r.Waterline)
	fmt.Fprintf(&sb, "show_waterline = %v\n", r.ShowWaterline)
	fmt.Fprintf(&sb, "color = %s\n", tools.HexColor(r.Color))
	fmt.Fprintf(&sb, "waterline_color = %s\n", tools.HexColor(r.WaterlineColor))
	sb.WriteString("\n")

	e := c.Export
	sb.WriteString("[export]\n")
	fmt.Fprintf(&sb, "format = %s\n", e.Format)
	fmt.Fprintf(&sb, "quality = %s\n", e.Quality)
	fmt.Fprintf(&sb, "playback_rate = %g\n", e.PlaybackRate)
	fmt.Fprintf(&sb, "fps = %g\n", e.FPS)
	fmt.Fprintf(&sb, "gap = %d\n", e.Gap)
	fmt.Fprintf(&sb, "transcode = %v\n", e.Transcode)
	fmt.Fprintf(&sb, "ffmpeg = %s\n", e.FFmpeg)
	fmt.Fprintf(&sb, "include_annotations = %v\n", e.IncludeAnnotations)
	sb.WriteString("\n")

	sb.WriteString("[notify]\n")
	fmt.Fprintf(&sb, "export = %v\n", c.Notify.Export)
	fmt.Fprintf(&sb, "export_failed = %v\n", c.Notify.ExportFailed)
	fmt.Fprintf(&sb, "copy = %v\n", c.Notify.Copy)

	if len(c.Palette) > 0 {
		names := make([]string, 0, len(c.Palette))
		for name := range c.Palette {
			names = append(names, name)
		}
		sort.Strings(names)
		sb.WriteString("\n[palette]\n")
		for _, name := range names {
			fmt.Fprintf(&sb, "%s = %s\n", name, tools.HexColor(c.Palette[name]))
		}
	}
	return sb.String()
}
